package detective

import (
	"strings"

	"github.com/aperturerobotics/detective/internal/js_ast"
)

// patterns recognizes dependencies referenced through ordinary calls and
// member accesses. A failed match is never an error.
type patterns struct {
	requireCallees map[string]struct{}
	moduleCallees  map[string]struct{}
}

func newPatterns(cfg PatternConfig) *patterns {
	return &patterns{
		requireCallees: toSet(cfg.RequireCallees),
		moduleCallees:  toSet(cfg.ModuleCallees),
	}
}

// matchCall matches require("m"), require.resolve("m") and the like.
func (p *patterns) matchCall(call *js_ast.ECall) (string, bool) {
	if _, ok := p.requireCallees[calleeName(call.Target)]; !ok || len(call.Args) == 0 {
		return "", false
	}
	return literalString(call.Args[0])
}

// matchModule matches calls that evaluate to the module itself, such as
// require("m").
func (p *patterns) matchModule(call *js_ast.ECall) (string, bool) {
	if _, ok := p.moduleCallees[calleeName(call.Target)]; !ok || len(call.Args) == 0 {
		return "", false
	}
	return literalString(call.Args[0])
}

// matchMember matches require("m").foo and require("m")["foo"].
func (p *patterns) matchMember(n js_ast.N) (string, bool) {
	var target js_ast.Node
	switch e := n.(type) {
	case *js_ast.EDot:
		target = e.Target
	case *js_ast.EIndex:
		target = e.Target
	default:
		return "", false
	}
	call, ok := target.Data.(*js_ast.ECall)
	if !ok {
		return "", false
	}
	return p.matchModule(call)
}

// calleeName renders an identifier or a chain of property accesses on one,
// such as "System.import". Anything else renders as "".
func calleeName(n js_ast.Node) string {
	switch e := n.Data.(type) {
	case *js_ast.EIdentifier:
		return e.Name
	case *js_ast.EDot:
		if base := calleeName(e.Target); base != "" {
			return base + "." + e.Name
		}
	}
	return ""
}

// literalString returns the value of a non-empty string literal.
func literalString(n js_ast.Node) (string, bool) {
	s, ok := n.Data.(*js_ast.EString)
	if !ok || s.Value == "" {
		return "", false
	}
	return s.Value, true
}

func sourceID(s *js_ast.EString) (string, bool) {
	if s == nil || s.Value == "" {
		return "", false
	}
	return s.Value, true
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[strings.TrimSpace(name)] = struct{}{}
	}
	return set
}
