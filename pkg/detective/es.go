package detective

import "github.com/aperturerobotics/detective/internal/js_ast"

// esPass detects ES module dependencies.
//
// An export without a source only flips specifiers that were registered
// before it, so "export { a }; import { a } from 'm'" leaves a unexported.
type esPass struct {
	*detective
	acc  *accumulator
	path string
}

func newESPass(d *detective, acc *accumulator, path string) pass {
	return &esPass{detective: d, acc: acc, path: path}
}

func (p *esPass) visit(n js_ast.Node) {
	switch s := n.Data.(type) {
	case *js_ast.SImport:
		id, ok := sourceID(s.Source)
		if !ok {
			return
		}
		p.acc.addDependency(id)
		for _, item := range s.Items {
			p.acc.addSpecifier(id, importSpecifier(item))
		}

	case *js_ast.SExportNamed:
		if id, ok := sourceID(s.Source); ok {
			p.acc.addDependency(id)
			for _, item := range s.Items {
				p.acc.addSpecifier(id, reexportSpecifier(item))
			}
			return
		}
		for _, item := range s.Items {
			p.acc.markExported(item.Exported)
		}

	case *js_ast.SExportAll:
		if id, ok := sourceID(s.Source); ok {
			p.acc.addDependency(id)
		}

	case *js_ast.SExportDefault:
		if id, ok := s.Value.Data.(*js_ast.EIdentifier); ok {
			p.acc.markExported(id.Name)
		}

	default:
		p.visitReference(p.acc, p.path, n)
	}
}

func (p *esPass) finish(*js_ast.AST) {}
