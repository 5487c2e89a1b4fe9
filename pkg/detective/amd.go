package detective

import "github.com/aperturerobotics/detective/internal/js_ast"

// pseudoDeps are the names AMD loaders resolve to the module's own require,
// exports and module objects.
var pseudoDeps = map[string]struct{}{
	"require": {},
	"exports": {},
	"module":  {},
}

// amdPass detects the dependency arrays of define() and require() as well as
// the require() calls of the simplified CommonJS wrapper.
type amdPass struct {
	*detective
	acc           *accumulator
	path          string
	defineCallees map[string]struct{}
}

func newAMDPass(d *detective, acc *accumulator, path string) pass {
	return &amdPass{
		detective:     d,
		acc:           acc,
		path:          path,
		defineCallees: toSet(d.cfg.AMD.DefineCallees),
	}
}

func (p *amdPass) visit(n js_ast.Node) {
	if call, ok := n.Data.(*js_ast.ECall); ok {
		if _, ok := p.defineCallees[calleeName(call.Target)]; ok {
			p.addDependencyArray(call.Args)
		}
	}
	p.visitReference(p.acc, p.path, n)
}

// addDependencyArray handles define(deps, f), define(id, deps, f) and
// require(deps, f).
func (p *amdPass) addDependencyArray(args []js_ast.Node) {
	for i, arg := range args {
		if i > 1 {
			return
		}
		arr, ok := arg.Data.(*js_ast.EArray)
		if !ok {
			continue
		}
		for _, item := range arr.Items {
			id, ok := literalString(item)
			if !ok {
				continue
			}
			if _, pseudo := pseudoDeps[id]; pseudo && !p.cfg.AMD.KeepPseudoDeps {
				continue
			}
			p.acc.addDependency(id)
		}
		return
	}
}

func (p *amdPass) finish(*js_ast.AST) {}
