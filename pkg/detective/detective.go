// Package detective extracts the module dependencies of JavaScript and
// TypeScript source files and classifies how each one is used.
//
// A Detective turns one file into a DependencyMap. There is one detective per
// module dialect (ES modules, CommonJS and AMD). They share no state across
// calls, so files may be processed concurrently.
package detective

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aperturerobotics/detective/internal/js_ast"
	"github.com/aperturerobotics/detective/internal/js_parser"
	"github.com/aperturerobotics/detective/internal/walker"
)

var (
	// ErrMissingSource is returned when no source was given at all.
	ErrMissingSource = errors.New("detective: source not given")

	// ErrUnknownDialect is returned for dialect names and values that no
	// detective handles.
	ErrUnknownDialect = errors.New("detective: unknown dialect")
)

// ParseError is returned when the source cannot be parsed.
type ParseError = js_parser.ParseError

// AST is a parsed source file.
type AST = js_ast.AST

// Dialect is a module syntax dialect.
type Dialect uint8

const (
	// DialectUnknown selects the dialect from the file extension.
	DialectUnknown Dialect = iota
	DialectES
	DialectCommonJS
	DialectAMD
)

func (d Dialect) String() string {
	switch d {
	case DialectES:
		return "es"
	case DialectCommonJS:
		return "commonjs"
	case DialectAMD:
		return "amd"
	}
	return "unknown"
}

// ParseDialect parses a dialect name. It accepts "es" (or "es6", "esm"),
// "commonjs" (or "cjs") and "amd", in any case.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "es", "es6", "esm":
		return DialectES, nil
	case "commonjs", "cjs":
		return DialectCommonJS, nil
	case "amd":
		return DialectAMD, nil
	}
	return DialectUnknown, fmt.Errorf("%w: %q", ErrUnknownDialect, s)
}

// MarshalYAML implements yaml.Marshaler.
func (d Dialect) MarshalYAML() (interface{}, error) {
	if d == DialectUnknown || d > DialectAMD {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDialect, d)
	}
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Dialect) UnmarshalYAML(value *yaml.Node) error {
	var name string
	if err := value.Decode(&name); err != nil {
		return err
	}
	parsed, err := ParseDialect(name)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = parsed
	return nil
}

// Source is the input of a detective: source text or a parsed tree.
type Source struct {
	// Path names the file in errors and logs and picks the grammar for text.
	Path string
	// Dialect overrides the dialect Detect picks from Path.
	Dialect Dialect

	text *string
	tree *js_ast.AST
}

// FromText returns a source for the given file contents. Empty contents are
// valid and have no dependencies.
func FromText(contents, path string) *Source {
	return &Source{Path: path, text: &contents}
}

// FromAST returns a source for a tree that was already parsed.
func FromAST(tree *AST) *Source {
	src := &Source{tree: tree}
	if tree != nil {
		src.Path = tree.Path
	}
	return src
}

// ParseSource parses contents once so the result can be given to several
// detectives.
func ParseSource(contents, path string) (*Source, error) {
	tree, err := js_parser.Parse(contents, path, js_parser.Options{})
	if err != nil {
		return nil, err
	}
	return FromAST(tree), nil
}

func (s *Source) input() walker.Input {
	if s.tree != nil {
		return walker.Tree{AST: s.tree}
	}
	return walker.Text{Contents: *s.text, Path: s.Path}
}

// Options configures a detective.
type Options struct {
	// Config defaults to DefaultConfig.
	Config *Config
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Detective extracts the dependencies of one file in one dialect.
type Detective interface {
	Dialect() Dialect
	Detect(src *Source) (*DependencyMap, error)
}

// New returns the detective for dialect d.
func New(d Dialect, opts Options) (Detective, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	det := &detective{
		dialect:  d,
		cfg:      cfg,
		patterns: newPatterns(cfg.Patterns),
		log:      log.With(slog.String("dialect", d.String())),
	}
	switch d {
	case DialectES:
		det.newPass = newESPass
	case DialectCommonJS:
		det.newPass = newCommonJSPass
	case DialectAMD:
		det.newPass = newAMDPass
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownDialect, d)
	}
	return det, nil
}

// Detect runs the detective for src.Dialect, or for the dialect configured
// for the extension of src.Path when no dialect is set.
func Detect(src *Source, opts Options) (*DependencyMap, error) {
	if src == nil {
		return nil, ErrMissingSource
	}
	d := src.Dialect
	if d == DialectUnknown {
		d = DialectForPath(opts.Config, src.Path)
	}
	det, err := New(d, opts)
	if err != nil {
		return nil, err
	}
	return det.Detect(src)
}

// pass is the per-call state of one detective run.
type pass interface {
	visit(n js_ast.Node)
	finish(tree *js_ast.AST)
}

type detective struct {
	dialect  Dialect
	cfg      *Config
	patterns *patterns
	log      *slog.Logger
	newPass  func(d *detective, acc *accumulator, path string) pass
}

func (d *detective) Dialect() Dialect {
	return d.dialect
}

func (d *detective) Detect(src *Source) (*DependencyMap, error) {
	if src == nil || (src.text == nil && src.tree == nil) {
		return nil, ErrMissingSource
	}

	ctx, span := startDetectSpan(context.Background(), d.dialect, src.Path)
	defer span.End()
	start := time.Now()

	tree, err := walker.Load(src.input())
	if err != nil {
		d.log.Debug("parse failed", slog.String("path", src.Path), slog.Any("error", err))
		span.RecordError(err)
		recordDetectMetrics(ctx, d.dialect, time.Since(start), 0, false)
		return nil, err
	}

	acc := newAccumulator()
	p := d.newPass(d, acc, src.Path)
	walker.WalkAST(tree, p.visit)
	if tree != nil {
		p.finish(tree)
	}
	deps := acc.result()

	setDetectSpanResult(span, deps.Len())
	recordDetectMetrics(ctx, d.dialect, time.Since(start), deps.Len(), true)
	d.log.Debug("detected dependencies",
		slog.String("path", src.Path),
		slog.Int("dependencies", deps.Len()),
		slog.Duration("elapsed", time.Since(start)),
	)
	return deps, nil
}

// visitReference handles the nodes every dialect treats alike: dynamic
// imports and require-like calls and member accesses. It reports whether n
// was one of them.
func (d *detective) visitReference(acc *accumulator, path string, n js_ast.Node) bool {
	switch e := n.Data.(type) {
	case *js_ast.EImportCall:
		if id, ok := literalString(e.Source); ok {
			acc.addDependency(id)
		} else {
			d.log.Debug("skipping computed dynamic import",
				slog.String("path", path),
				slog.Int("line", int(n.Loc.Line)),
			)
		}

	case *js_ast.ECall:
		if id, ok := d.patterns.matchCall(e); ok {
			acc.addDependency(id)
		}

	case *js_ast.EDot, *js_ast.EIndex:
		if id, ok := d.patterns.matchMember(e); ok {
			acc.addDependency(id)
		}

	default:
		return false
	}
	return true
}
