package detective

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aperturerobotics/detective/internal/js_ast"
)

func TestAccumulator(t *testing.T) {
	acc := newAccumulator()
	acc.addDependency("m")
	acc.addSpecifier("m", Specifier{Name: "a"})
	acc.addDependency("n")
	acc.addDependency("m")
	acc.addSpecifier("m", Specifier{Name: "a"})

	deps := acc.result()
	assert.Equal(t, []string{"m", "n"}, deps.Keys())

	rec, ok := deps.Get("m")
	require.True(t, ok)
	assert.Equal(t, []Specifier{{Name: "a"}, {Name: "a"}}, rec.ImportSpecifiers)

	rec, ok = deps.Get("n")
	require.True(t, ok)
	assert.Nil(t, rec.ImportSpecifiers)
}

func TestAccumulatorRequiresRegistration(t *testing.T) {
	acc := newAccumulator()
	assert.PanicsWithValue(t, `Internal error: specifier "a" added to unregistered dependency "m"`, func() {
		acc.addSpecifier("m", Specifier{Name: "a"})
	})
}

func TestMarkExported(t *testing.T) {
	acc := newAccumulator()
	acc.addDependency("m")
	acc.addSpecifier("m", Specifier{Name: "a"})
	acc.addSpecifier("m", Specifier{Name: "a"})
	acc.addSpecifier("m", Specifier{Name: "b"})
	acc.addDependency("side")
	acc.markExported("a")
	acc.markExported("missing")

	rec, _ := acc.result().Get("m")
	assert.Equal(t, []Specifier{
		{Name: "a", Exported: true},
		{Name: "a"},
		{Name: "b"},
	}, rec.ImportSpecifiers)
}

func TestNilDependencyMap(t *testing.T) {
	var deps *DependencyMap
	assert.Zero(t, deps.Len())
	assert.Nil(t, deps.Keys())
	_, ok := deps.Get("m")
	assert.False(t, ok)
}

func str(s string) js_ast.Node {
	return js_ast.Node{Data: &js_ast.EString{Value: s}}
}

func ident(name string) js_ast.Node {
	return js_ast.Node{Data: &js_ast.EIdentifier{Name: name}}
}

func dot(target js_ast.Node, name string) js_ast.Node {
	return js_ast.Node{Data: &js_ast.EDot{Target: target, Name: name}}
}

func call(target js_ast.Node, args ...js_ast.Node) *js_ast.ECall {
	return &js_ast.ECall{Target: target, Args: args}
}

func TestPatterns(t *testing.T) {
	p := newPatterns(DefaultConfig().Patterns)

	matches := []*js_ast.ECall{
		call(ident("require"), str("a")),
		call(dot(ident("require"), "resolve"), str("a")),
		call(dot(ident("System"), "import"), str("a")),
	}
	for _, c := range matches {
		id, ok := p.matchCall(c)
		assert.True(t, ok, calleeName(c.Target))
		assert.Equal(t, "a", id)
	}

	misses := []*js_ast.ECall{
		call(ident("require")),
		call(ident("require"), str("")),
		call(ident("require"), ident("name")),
		call(ident("load"), str("a")),
		call(js_ast.Node{Data: &js_ast.Other{Kind: "sequence_expression"}}, str("a")),
		call(js_ast.Node{}, str("a")),
	}
	for _, c := range misses {
		_, ok := p.matchCall(c)
		assert.False(t, ok)
	}

	requireA := js_ast.Node{Data: call(ident("require"), str("a"))}
	id, ok := p.matchMember(&js_ast.EDot{Target: requireA, Name: "b"})
	assert.True(t, ok)
	assert.Equal(t, "a", id)
	id, ok = p.matchMember(&js_ast.EIndex{Target: requireA, Index: str("b")})
	assert.True(t, ok)
	assert.Equal(t, "a", id)

	_, ok = p.matchMember(&js_ast.EDot{Target: ident("require"), Name: "cache"})
	assert.False(t, ok)
	resolveA := js_ast.Node{Data: call(dot(ident("require"), "resolve"), str("a"))}
	_, ok = p.matchMember(&js_ast.EDot{Target: resolveA, Name: "length"})
	assert.False(t, ok)
	_, ok = p.matchMember(&js_ast.EIdentifier{Name: "require"})
	assert.False(t, ok)
}

func TestSpecifiers(t *testing.T) {
	assert.Equal(t, Specifier{Name: "d", IsDefault: true},
		importSpecifier(js_ast.ImportItem{Kind: js_ast.ImportDefault, Imported: "default", Local: "d"}))
	assert.Equal(t, Specifier{Name: "ns"},
		importSpecifier(js_ast.ImportItem{Kind: js_ast.ImportNamespace, Local: "ns"}))
	assert.Equal(t, Specifier{Name: "c"},
		importSpecifier(js_ast.ImportItem{Kind: js_ast.ImportNamed, Imported: "b", Local: "c"}))

	assert.Equal(t, Specifier{Name: "x", Exported: true},
		reexportSpecifier(js_ast.ExportItem{Local: "x", Exported: "x"}))
	assert.Equal(t, Specifier{Name: "ns", IsDefault: true, Exported: true},
		reexportSpecifier(js_ast.ExportItem{Exported: "ns"}))

	binding := js_ast.Node{Data: &js_ast.BObject{Properties: []js_ast.PropertyBinding{
		{Key: "a", Value: js_ast.Node{Data: &js_ast.BIdentifier{Name: "a"}}},
		{Key: "nested", Value: js_ast.Node{Data: &js_ast.BObject{}}},
		{Key: "default", Value: js_ast.Node{Data: &js_ast.BIdentifier{Name: "def"}}},
	}}}
	assert.Equal(t, []Specifier{{Name: "a"}, {Name: "def", IsDefault: true}}, requireSpecifiers(binding))
	assert.Nil(t, requireSpecifiers(js_ast.Node{}))
}
