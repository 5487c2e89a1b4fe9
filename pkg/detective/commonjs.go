package detective

import (
	"log/slog"

	"github.com/aperturerobotics/detective/internal/js_ast"
	"github.com/aperturerobotics/detective/pkg/cjsexports"
)

// commonJSPass detects require() dependencies. Bindings of
// "const x = require('m')" become specifiers, and once the whole file has
// been walked the export analysis marks the ones that are exported again.
type commonJSPass struct {
	*detective
	acc  *accumulator
	path string
}

func newCommonJSPass(d *detective, acc *accumulator, path string) pass {
	return &commonJSPass{detective: d, acc: acc, path: path}
}

func (p *commonJSPass) visit(n js_ast.Node) {
	if local, ok := n.Data.(*js_ast.SLocal); ok {
		for _, decl := range local.Decls {
			call, ok := decl.ValueOrNil.Data.(*js_ast.ECall)
			if !ok {
				continue
			}
			id, ok := p.patterns.matchModule(call)
			if !ok {
				continue
			}
			p.acc.addDependency(id)
			for _, spec := range requireSpecifiers(decl.Binding) {
				p.acc.addSpecifier(id, spec)
			}
		}
		return
	}
	p.visitReference(p.acc, p.path, n)
}

func (p *commonJSPass) finish(tree *js_ast.AST) {
	res := cjsexports.Analyze(tree, cjsexports.Options{
		CallMode:      p.cfg.CommonJS.CallMode,
		ModuleCallees: p.cfg.Patterns.ModuleCallees,
	})

	for _, path := range res.Reexports {
		p.acc.addDependency(path)
	}
	for _, re := range res.RequireExports {
		p.acc.addDependency(re.Path)
		p.acc.addSpecifier(re.Path, Specifier{Name: re.Name, IsDefault: true, Exported: true})
	}
	for _, local := range res.ExportedLocals {
		p.acc.markExported(local)
	}

	p.log.Debug("analyzed commonjs exports",
		slog.String("path", p.path),
		slog.Int("exports", len(res.Exports)),
		slog.Int("reexports", len(res.Reexports)),
	)
}
