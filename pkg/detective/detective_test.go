package detective

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func detectJSON(t *testing.T, source, path string) string {
	t.Helper()
	deps, err := Detect(FromText(source, path), Options{})
	require.NoError(t, err)
	out, err := json.Marshal(deps)
	require.NoError(t, err)
	return string(out)
}

func TestEmptySource(t *testing.T) {
	deps, err := Detect(FromText("", "empty.js"), Options{})
	require.NoError(t, err)
	assert.Zero(t, deps.Len())
	assert.JSONEq(t, `{}`, detectJSON(t, "", "empty.js"))
}

func TestMissingSource(t *testing.T) {
	_, err := Detect(nil, Options{})
	assert.ErrorIs(t, err, ErrMissingSource)

	det, err := New(DialectES, Options{})
	require.NoError(t, err)
	_, err = det.Detect(&Source{Path: "a.js"})
	assert.ErrorIs(t, err, ErrMissingSource)
	_, err = det.Detect(FromAST(nil))
	assert.ErrorIs(t, err, ErrMissingSource)
}

func TestImports(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "named",
			source: `import { a } from "m";`,
			want:   `{"m":{"importSpecifiers":[{"name":"a","isDefault":false,"exported":false}]}}`,
		},
		{
			name:   "default",
			source: `import d from "m";`,
			want:   `{"m":{"importSpecifiers":[{"name":"d","isDefault":true,"exported":false}]}}`,
		},
		{
			name:   "namespace",
			source: `import * as ns from "m";`,
			want:   `{"m":{"importSpecifiers":[{"name":"ns","isDefault":false,"exported":false}]}}`,
		},
		{
			name:   "aliased and default alias",
			source: `import d, { a as b, default as e } from "m";`,
			want: `{"m":{"importSpecifiers":[
				{"name":"d","isDefault":true,"exported":false},
				{"name":"b","isDefault":false,"exported":false},
				{"name":"e","isDefault":true,"exported":false}]}}`,
		},
		{
			name:   "side effect",
			source: `import "./polyfill";`,
			want:   `{"./polyfill":{}}`,
		},
		{
			name:   "duplicate statements are not merged",
			source: "import { a } from 'm';\nimport { a } from 'm';",
			want: `{"m":{"importSpecifiers":[
				{"name":"a","isDefault":false,"exported":false},
				{"name":"a","isDefault":false,"exported":false}]}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.want, detectJSON(t, tt.source, "a.js"))
		})
	}
}

func TestReexports(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "named with source",
			source: `export { a } from "m";`,
			want:   `{"m":{"importSpecifiers":[{"name":"a","isDefault":false,"exported":true}]}}`,
		},
		{
			name:   "default as name",
			source: `export { default as isArray } from './is-array';`,
			want:   `{"./is-array":{"importSpecifiers":[{"name":"isArray","isDefault":true,"exported":true}]}}`,
		},
		{
			name:   "star",
			source: `export * from "m";`,
			want:   `{"m":{}}`,
		},
		{
			name:   "star as namespace",
			source: `export * as ns from "m";`,
			want:   `{"m":{"importSpecifiers":[{"name":"ns","isDefault":true,"exported":true}]}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.want, detectJSON(t, tt.source, "a.js"))
		})
	}
}

func TestExportPropagation(t *testing.T) {
	t.Run("import then export", func(t *testing.T) {
		got := detectJSON(t, "import { a } from 'm';\nexport { a };", "a.js")
		assert.JSONEq(t, `{"m":{"importSpecifiers":[{"name":"a","isDefault":false,"exported":true}]}}`, got)
	})

	t.Run("export before import is not propagated", func(t *testing.T) {
		got := detectJSON(t, "export { a };\nimport { a } from 'm';", "a.js")
		assert.JSONEq(t, `{"m":{"importSpecifiers":[{"name":"a","isDefault":false,"exported":false}]}}`, got)
	})

	t.Run("export default identifier", func(t *testing.T) {
		got := detectJSON(t, "import foo from 'm';\nexport default foo;", "a.js")
		assert.JSONEq(t, `{"m":{"importSpecifiers":[{"name":"foo","isDefault":true,"exported":true}]}}`, got)
	})

	t.Run("first match per dependency", func(t *testing.T) {
		got := detectJSON(t, "import { a } from 'm';\nimport { a } from 'm';\nimport { a } from 'n';\nexport { a };", "a.js")
		assert.JSONEq(t, `{
			"m":{"importSpecifiers":[
				{"name":"a","isDefault":false,"exported":true},
				{"name":"a","isDefault":false,"exported":false}]},
			"n":{"importSpecifiers":[{"name":"a","isDefault":false,"exported":true}]}}`, got)
	})

	t.Run("local declarations are ignored", func(t *testing.T) {
		got := detectJSON(t, "import { a } from 'm';\nconst b = 1;\nexport { b };", "a.js")
		assert.JSONEq(t, `{"m":{"importSpecifiers":[{"name":"a","isDefault":false,"exported":false}]}}`, got)
	})
}

func TestDynamicImport(t *testing.T) {
	got := detectJSON(t, "import('m');\nimport(name);\nimport(`./tpl`);\nimport('./' + name);", "a.js")
	assert.JSONEq(t, `{"m":{}}`, got)
}

func TestRequireLikeCalls(t *testing.T) {
	source := `
		const fs = require('fs');
		require('b').c;
		require('e')['f'];
		require.resolve('d');
		foo('x');
		require(name);
		require();
	`
	deps, err := Detect(FromText(source, "a.js"), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"fs", "b", "e", "d"}, deps.Keys())

	rec, ok := deps.Get("fs")
	require.True(t, ok)
	assert.Empty(t, rec.ImportSpecifiers)
}

func TestReferencesInKeysAndDefaults(t *testing.T) {
	sources := map[string]string{
		"pattern default":        `const { a = require("x") } = obj;`,
		"computed object key":    `const o = { [require("x")]: 1 };`,
		"computed method name":   `class A { [require("x")]() {} }`,
		"computed object method": `const o = { [require("x")]() {} };`,
		"computed pattern key":   `const { [require("x")]: v } = obj;`,
		"nested pattern default": `const { a: { b = import("x") } } = obj;`,
	}
	for name, source := range sources {
		t.Run(name, func(t *testing.T) {
			deps, err := Detect(FromText(source, "a.js"), Options{})
			require.NoError(t, err)
			assert.Equal(t, []string{"x"}, deps.Keys())
		})
	}
}

func TestEscapedSources(t *testing.T) {
	deps, err := Detect(FromText(`import "\a"; import "\1"; require("\uD83D\uDE00");`, "a.js"), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "\x01", "\U0001F600"}, deps.Keys())
}

func TestKeysKeepTraversalOrder(t *testing.T) {
	deps, err := Detect(FromText("import 'z';\nimport 'a';\nexport * from 'm';\nimport('b');\n", "a.mjs"), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "m", "b"}, deps.Keys())
	assert.Equal(t, `{"z":{},"a":{},"m":{},"b":{}}`, string(mustMarshal(t, deps)))
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	out, err := json.Marshal(v)
	require.NoError(t, err)
	return out
}

func TestDeterministicOutput(t *testing.T) {
	source := `
		import React, { useState as useS } from 'react';
		import * as path from 'path';
		export { join } from 'path';
		export { useS };
		const lazy = () => import('./lazy');
		require('./legacy');
	`
	first := detectJSON(t, source, "a.js")
	second := detectJSON(t, source, "a.js")
	assert.Equal(t, first, second)
}

func TestGetReturnsCopy(t *testing.T) {
	deps, err := Detect(FromText(`import { a } from "m";`, "a.js"), Options{})
	require.NoError(t, err)

	rec, ok := deps.Get("m")
	require.True(t, ok)
	rec.ImportSpecifiers[0].Exported = true

	again, _ := deps.Get("m")
	assert.False(t, again.ImportSpecifiers[0].Exported)

	_, ok = deps.Get("missing")
	assert.False(t, ok)
}

func TestTypeScriptSources(t *testing.T) {
	source := "import type { Props } from './types';\nimport { render } from './render';\nexport const x: number = 1;\n"
	got := detectJSON(t, source, "a.ts")
	assert.JSONEq(t, `{
		"./types":{"importSpecifiers":[{"name":"Props","isDefault":false,"exported":false}]},
		"./render":{"importSpecifiers":[{"name":"render","isDefault":false,"exported":false}]}}`, got)

	got = detectJSON(t, "import React from 'react';\nexport const App = () => <div>{import('./lazy')}</div>;\n", "App.tsx")
	assert.JSONEq(t, `{"react":{"importSpecifiers":[{"name":"React","isDefault":true,"exported":false}]},"./lazy":{}}`, got)
}

func TestParseErrorIsReturned(t *testing.T) {
	_, err := Detect(FromText("import { from 'x';", "broken.js"), Options{})
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "broken.js", parseErr.Path)
}

func TestParsedSourceIsReusable(t *testing.T) {
	src, err := ParseSource("const a = require('./a');\nexport { a };\n", "mixed.js")
	require.NoError(t, err)

	es, err := New(DialectES, Options{})
	require.NoError(t, err)
	esDeps, err := es.Detect(src)
	require.NoError(t, err)

	cjs, err := New(DialectCommonJS, Options{})
	require.NoError(t, err)
	cjsDeps, err := cjs.Detect(src)
	require.NoError(t, err)

	assert.JSONEq(t, `{"./a":{}}`, string(mustMarshal(t, esDeps)))
	assert.JSONEq(t, `{"./a":{"importSpecifiers":[{"name":"a","isDefault":true,"exported":false}]}}`, string(mustMarshal(t, cjsDeps)))
}

func TestDispatch(t *testing.T) {
	assert.Equal(t, DialectES, DialectForPath(nil, "src/index.js"))
	assert.Equal(t, DialectES, DialectForPath(nil, "src/index.tsx"))
	assert.Equal(t, DialectCommonJS, DialectForPath(nil, "src/index.cjs"))
	assert.Equal(t, DialectCommonJS, DialectForPath(nil, "SRC/INDEX.CJS"))

	// .cjs picks the CommonJS detective, which records the require binding
	got := detectJSON(t, "const a = require('./a');", "index.cjs")
	assert.JSONEq(t, `{"./a":{"importSpecifiers":[{"name":"a","isDefault":true,"exported":false}]}}`, got)

	src := FromText("define(['./dep'], function (dep) {});", "index.js")
	src.Dialect = DialectAMD
	deps, err := Detect(src, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"./dep"}, deps.Keys())
}

func TestNewUnknownDialect(t *testing.T) {
	_, err := New(DialectUnknown, Options{})
	assert.ErrorIs(t, err, ErrUnknownDialect)
	_, err = New(Dialect(42), Options{})
	assert.ErrorIs(t, err, ErrUnknownDialect)

	det, err := New(DialectAMD, Options{})
	require.NoError(t, err)
	assert.Equal(t, DialectAMD, det.Dialect())
}

func TestParseDialect(t *testing.T) {
	tests := map[string]Dialect{
		"es":       DialectES,
		"ESM":      DialectES,
		"es6":      DialectES,
		"commonjs": DialectCommonJS,
		" cjs ":    DialectCommonJS,
		"AMD":      DialectAMD,
	}
	for name, want := range tests {
		got, err := ParseDialect(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
		if name == "es" || name == "commonjs" {
			assert.Equal(t, name, got.String())
		}
	}

	_, err := ParseDialect("umd")
	assert.ErrorIs(t, err, ErrUnknownDialect)
	assert.Equal(t, "unknown", Dialect(42).String())
}
