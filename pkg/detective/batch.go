package detective

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// BatchOptions configures DetectFiles.
type BatchOptions struct {
	Options

	// Concurrency limits the files processed at once. Defaults to GOMAXPROCS.
	Concurrency int
	// FailFast stops the scan at the first file that fails. Otherwise the
	// failure is recorded in its FileResult and the scan goes on.
	FailFast bool
}

// FileResult is the outcome for one file of a batch.
type FileResult struct {
	Path         string
	Dialect      Dialect
	Dependencies *DependencyMap
	Err          error
}

// DetectFiles runs the detective configured for each path's extension over
// the files in fsys. Results are in the order of paths.
//
// The returned error is the first failure when FailFast is set, or the
// context error if ctx was canceled before every file was scheduled. Files
// that never ran carry the context error in their FileResult.
func DetectFiles(ctx context.Context, fsys fs.FS, paths []string, opts BatchOptions) ([]FileResult, error) {
	if opts.Config == nil {
		opts.Config = DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	detectives := make(map[Dialect]Detective, 3)
	for _, d := range []Dialect{DialectES, DialectCommonJS, DialectAMD} {
		det, err := New(d, opts.Options)
		if err != nil {
			return nil, err
		}
		detectives[d] = det
	}

	results := make([]FileResult, len(paths))
	for i, path := range paths {
		results[i] = FileResult{Path: path, Dialect: DialectForPath(opts.Config, path)}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	scheduled := 0
	var skipErr error
	for ; scheduled < len(results); scheduled++ {
		if skipErr = gctx.Err(); skipErr != nil {
			break
		}
		res := &results[scheduled]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				res.Err = err
				return nil
			}
			res.Dependencies, res.Err = detectFile(fsys, res.Path, detectives[res.Dialect])
			if res.Err == nil {
				return nil
			}
			opts.Logger.Debug("detection failed", slog.String("path", res.Path), slog.Any("error", res.Err))
			if opts.FailFast {
				return fmt.Errorf("%s: %w", res.Path, res.Err)
			}
			return nil
		})
	}
	err := g.Wait()
	for i := scheduled; i < len(results); i++ {
		results[i].Err = skipErr
	}
	if err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func detectFile(fsys fs.FS, path string, det Detective) (*DependencyMap, error) {
	if det == nil {
		return nil, ErrUnknownDialect
	}
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, err
	}
	return det.Detect(FromText(string(data), path))
}
