package detective

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"src/a.js":     {Data: []byte("import x from './x';\nexport { x };\n")},
		"src/b.cjs":    {Data: []byte("const y = require('./y');\nmodule.exports = { y };\n")},
		"src/bad.js":   {Data: []byte("import {")},
		"src/empty.js": {Data: nil},
		"src/c.ts":     {Data: []byte("import type { T } from './t';\n")},
	}
}

func TestDetectFiles(t *testing.T) {
	paths := []string{"src/a.js", "src/b.cjs", "src/bad.js", "src/missing.js", "src/empty.js", "src/c.ts"}
	results, err := DetectFiles(context.Background(), testFS(), paths, BatchOptions{Concurrency: 2})
	require.NoError(t, err)
	require.Len(t, results, len(paths))

	for i, res := range results {
		assert.Equal(t, paths[i], res.Path)
	}

	assert.NoError(t, results[0].Err)
	assert.Equal(t, DialectES, results[0].Dialect)
	assert.JSONEq(t, `{"./x":{"importSpecifiers":[{"name":"x","isDefault":true,"exported":true}]}}`, string(mustMarshal(t, results[0].Dependencies)))

	assert.NoError(t, results[1].Err)
	assert.Equal(t, DialectCommonJS, results[1].Dialect)
	assert.JSONEq(t, `{"./y":{"importSpecifiers":[{"name":"y","isDefault":true,"exported":true}]}}`, string(mustMarshal(t, results[1].Dependencies)))

	var parseErr *ParseError
	assert.True(t, errors.As(results[2].Err, &parseErr))
	assert.Nil(t, results[2].Dependencies)

	assert.ErrorIs(t, results[3].Err, fs.ErrNotExist)

	assert.NoError(t, results[4].Err)
	assert.Zero(t, results[4].Dependencies.Len())

	assert.NoError(t, results[5].Err)
	assert.Equal(t, []string{"./t"}, results[5].Dependencies.Keys())
}

func TestDetectFilesFailFast(t *testing.T) {
	_, err := DetectFiles(context.Background(), testFS(), []string{"src/a.js", "src/bad.js"}, BatchOptions{FailFast: true})
	require.Error(t, err)

	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
	assert.Contains(t, err.Error(), "src/bad.js")
}

func TestDetectFilesCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := DetectFiles(ctx, testFS(), []string{"src/a.js", "src/b.cjs"}, BatchOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.ErrorIs(t, res.Err, context.Canceled, res.Path)
		assert.Nil(t, res.Dependencies)
	}
}

func TestDetectFilesFailFastMarksSkipped(t *testing.T) {
	paths := []string{"src/bad.js", "src/a.js", "src/b.cjs", "src/c.ts"}
	results, err := DetectFiles(context.Background(), testFS(), paths, BatchOptions{Concurrency: 1, FailFast: true})
	require.Error(t, err)
	require.Len(t, results, len(paths))

	var parseErr *ParseError
	assert.True(t, errors.As(results[0].Err, &parseErr))
	for _, res := range results[1:] {
		// Each later file either ran before the failure was seen or was skipped
		if res.Err == nil {
			assert.NotNil(t, res.Dependencies, res.Path)
		} else {
			assert.ErrorIs(t, res.Err, context.Canceled, res.Path)
		}
	}
}

func TestDetectFilesMatchesDetect(t *testing.T) {
	fsys := testFS()
	results, err := DetectFiles(context.Background(), fsys, []string{"src/a.js"}, BatchOptions{})
	require.NoError(t, err)

	direct, err := Detect(FromText(string(fsys["src/a.js"].Data), "src/a.js"), Options{})
	require.NoError(t, err)
	assert.Equal(t, mustMarshal(t, direct), mustMarshal(t, results[0].Dependencies))
}
