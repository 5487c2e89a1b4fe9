// Package cjsexports detects CommonJS named exports from JavaScript source code.
//
// It walks the syntax tree to find CJS export patterns such as exports.foo,
// module.exports = {...}, and Object.defineProperty(exports, ...). Variables
// are tracked by name, so shadowed bindings are not told apart.
package cjsexports

import (
	"sort"

	"github.com/aperturerobotics/detective/internal/js_ast"
	"github.com/aperturerobotics/detective/internal/js_parser"
)

// Result contains the detected CJS exports from a module.
type Result struct {
	// Exports are the named export identifiers found.
	Exports []string
	// Reexports are module paths whose whole export object is re-exported via require().
	Reexports []string
	// ExportedLocals are local identifiers whose values become exports, in
	// source order. "exports.a = b" contributes "b".
	ExportedLocals []string
	// RequireExports are "exports.name = require(path)" assignments, in source order.
	RequireExports []RequireExport
}

// RequireExport is a single export whose value is a required module.
type RequireExport struct {
	Name string
	Path string
}

// Options configures CJS export detection.
type Options struct {
	// CallMode analyzes function return exports (for module.exports = function(){...}).
	CallMode bool
	// ModuleCallees are the callee names, dotted for member callees, that
	// load a module. Empty means "require".
	ModuleCallees []string
}

// ParseError is returned when parsing fails.
type ParseError = js_parser.ParseError

// Parse analyzes JavaScript source code and returns detected CJS exports.
func Parse(source string, filename string, opts Options) (*Result, error) {
	tree, err := js_parser.Parse(source, filename, js_parser.Options{})
	if err != nil {
		return nil, err
	}
	return Analyze(tree, opts), nil
}

// Analyze runs detection on a tree that was already parsed.
func Analyze(tree *js_ast.AST, opts Options) *Result {
	w := &walker{
		tree:      tree,
		opts:      opts,
		callees:   map[string]struct{}{"require": {}},
		exports:   make(map[string]struct{}),
		reexports: make(map[string]struct{}),
		locals:    make(map[string]struct{}),
		// Track variable assignments: identifier name -> what it holds
		varRequire:    make(map[string]string),              // var x = require("mod") -> "mod"
		varExports:    make(map[string]struct{}),            // var e = exports
		varModExports: make(map[string]struct{}),            // var m = module.exports
		varObject:     make(map[string]*objInfo),            // var o = { ... }
		varFunc:       make(map[string]*funcInfo),           // function f() or var f = function/arrow
		varProps:      make(map[string]map[string]struct{}), // x.foo = ... on any other variable
	}

	if len(opts.ModuleCallees) > 0 {
		w.callees = make(map[string]struct{}, len(opts.ModuleCallees))
		for _, name := range opts.ModuleCallees {
			w.callees[name] = struct{}{}
		}
	}

	w.analyze()

	return &Result{
		Exports:        sortedKeys(w.exports),
		Reexports:      sortedKeys(w.reexports),
		ExportedLocals: w.exportedLocals,
		RequireExports: w.requireExports,
	}
}

// objInfo tracks object literal properties assigned to a variable.
type objInfo struct {
	props   map[string]struct{}
	spreads []string // require() paths spread into this object
}

// funcInfo tracks function bodies for call-mode analysis.
type funcInfo struct {
	body []js_ast.Node
}

// walker walks the AST to detect CJS exports.
type walker struct {
	tree    *js_ast.AST
	opts    Options
	callees map[string]struct{}

	exports        map[string]struct{}
	reexports      map[string]struct{}
	exportedLocals []string
	locals         map[string]struct{}
	requireExports []RequireExport

	// Variable tracking maps
	varRequire    map[string]string
	varExports    map[string]struct{}
	varModExports map[string]struct{}
	varObject     map[string]*objInfo
	varFunc       map[string]*funcInfo
	varProps      map[string]map[string]struct{}

	// When module.exports = something is encountered, prior exports.X assignments
	// are invalidated.
	moduleExportsOverridden bool
}

// analyze runs the full analysis pass.
func (w *walker) analyze() {
	// First pass: collect variable declarations and property assignments.
	w.each(w.collect)

	// Second pass: look for export patterns.
	w.each(w.detect)
}

func (w *walker) each(visit func(js_ast.Node)) {
	for _, stmt := range w.tree.Stmts {
		js_ast.Walk(stmt, visit)
	}
}

func (w *walker) collect(n js_ast.Node) {
	switch d := n.Data.(type) {
	case *js_ast.SLocal:
		for _, decl := range d.Decls {
			w.collectDecl(decl)
		}

	case *js_ast.EFunction:
		// function Foo() {}
		if d.Name != "" {
			w.varFunc[d.Name] = &funcInfo{body: d.Body}
		}

	case *js_ast.EAssign:
		// obj.coco = 1, Module.foo = 'bar'
		if dot, ok := d.Target.Data.(*js_ast.EDot); ok {
			if id, ok := dot.Target.Data.(*js_ast.EIdentifier); ok {
				if info, ok := w.varObject[id.Name]; ok {
					info.props[dot.Name] = struct{}{}
					return
				}
				props := w.varProps[id.Name]
				if props == nil {
					props = make(map[string]struct{})
					w.varProps[id.Name] = props
				}
				props[dot.Name] = struct{}{}
			}
		}
	}
}

// collectDecl processes a single variable declaration.
func (w *walker) collectDecl(decl js_ast.Decl) {
	if decl.ValueOrNil.Data == nil {
		return
	}
	b, ok := decl.Binding.Data.(*js_ast.BIdentifier)
	if !ok {
		return
	}
	name := b.Name
	val := decl.ValueOrNil

	// var x = require("mod")
	if path, ok := w.extractRequire(val); ok {
		w.varRequire[name] = path
		return
	}

	// var e = exports
	if w.isExportsRef(val) {
		w.varExports[name] = struct{}{}
		return
	}

	// var m = module.exports
	if w.isModuleExportsAccess(val) {
		w.varModExports[name] = struct{}{}
		return
	}

	switch v := val.Data.(type) {
	case *js_ast.EAssign:
		// var x = module.exports = {}
		if w.isModuleExportsAccess(v.Target) {
			w.varModExports[name] = struct{}{}
			if obj, ok := v.Value.Data.(*js_ast.EObject); ok {
				w.varObject[name] = w.newObjInfo(obj)
			}
		}

	case *js_ast.EObject:
		// var o = { ... }
		w.varObject[name] = w.newObjInfo(v)

	case *js_ast.EFunction:
		// var f = function() {} or var f = () => {}
		w.varFunc[name] = &funcInfo{body: v.Body}
	}
}

func (w *walker) newObjInfo(obj *js_ast.EObject) *objInfo {
	info := &objInfo{props: make(map[string]struct{})}
	w.extractObjectProps(obj, info)
	return info
}

// detect checks a single node for export patterns.
func (w *walker) detect(n js_ast.Node) {
	switch d := n.Data.(type) {
	case *js_ast.EAssign:
		w.checkExportAssignment(d.Target, d.Value)
	case *js_ast.ECall:
		w.checkCallExpr(d)
	}
}

// checkCallExpr processes function call expressions.
func (w *walker) checkCallExpr(call *js_ast.ECall) {
	switch {
	// Object.defineProperty(exports, "name", { ... })
	case w.isObjectDefineProperty(call):
		w.handleDefineProperty(call)

	// Object.defineProperty(module, "exports", { value: {...} })
	case w.isModuleDefineProperty(call):
		w.handleModuleDefineProperty(call)

	// Object.assign(module.exports, {...}, ...)
	case w.isObjectAssign(call) && len(call.Args) >= 2 && w.isExportsTarget(call.Args[0]):
		w.handleObjectAssignToModuleExports(call.Args[1:])

	// Object.assign(module, { exports: {...} })
	case w.isObjectAssign(call) && len(call.Args) >= 2 && w.isModuleRef(call.Args[0]):
		w.handleObjectAssignToModule(call.Args[1:])

	// __exportStar(require("x"), exports), require("tslib").__exportStar(...)
	// or (0, tslib.__exportStar)(...)
	case w.isHelperCall(call, "__exportStar") && len(call.Args) >= 2 && w.isExportsTarget(call.Args[1]):
		w.handleExportSource(call.Args[0])

	// __export({...}) or __export(require("..."))
	case w.isHelperCall(call, "__export") && len(call.Args) >= 1:
		w.handleExportSource(call.Args[0])
	}
}

// checkExportAssignment checks if an assignment targets exports.
func (w *walker) checkExportAssignment(left js_ast.Node, right js_ast.Node) {
	// exports.foo = value
	if name, ok := w.getExportsPropertyName(left); ok {
		if !w.moduleExportsOverridden {
			w.exportValue(name, right)
		}
		return
	}

	// module.exports.foo = value (always add, even after override)
	if name, ok := w.getModuleExportsPropertyName(left); ok {
		w.exportValue(name, right)
		return
	}

	// module.exports = value
	if w.isModuleExportsAccess(left) {
		w.handleModuleExportsAssignment(right)
		return
	}
}

// exportValue records one named export and what flows into it.
func (w *walker) exportValue(name string, value js_ast.Node) {
	w.addExport(name)
	if path, ok := w.extractRequire(value); ok {
		w.requireExports = append(w.requireExports, RequireExport{Name: name, Path: path})
		return
	}
	if id, ok := value.Data.(*js_ast.EIdentifier); ok {
		w.addExportedLocal(id.Name)
	}
}

// handleModuleExportsAssignment processes module.exports = <value>.
func (w *walker) handleModuleExportsAssignment(value js_ast.Node) {
	w.moduleExportsOverridden = true
	w.exports = make(map[string]struct{})
	w.reexports = make(map[string]struct{})
	w.exportedLocals = nil
	w.locals = make(map[string]struct{})
	w.requireExports = nil

	switch v := value.Data.(type) {
	case *js_ast.EObject:
		w.handleModuleExportsObject(v)

	case *js_ast.ECall:
		// module.exports = require("lib")
		if path, ok := w.extractRequire(value); ok {
			w.addReexport(path)
			return
		}
		// module.exports = fn()
		if id, ok := v.Target.Data.(*js_ast.EIdentifier); ok {
			if fi, ok := w.varFunc[id.Name]; ok {
				w.analyzeFuncBody(fi.body)
			}
		}

	case *js_ast.EIdentifier:
		w.addExportedLocal(v.Name)
		// module.exports = require("lib") variable
		if path, ok := w.varRequire[v.Name]; ok {
			w.addReexport(path)
			w.collectExportsFromVarProps(v.Name)
			return
		}
		// module.exports = obj variable
		if info, ok := w.varObject[v.Name]; ok {
			w.addObjInfo(info)
			return
		}
		// module.exports = funcVar (in call mode, analyze func body)
		if fi, ok := w.varFunc[v.Name]; ok {
			if w.opts.CallMode {
				w.analyzeFuncBody(fi.body)
			} else {
				// Even without call mode, check for static properties on the function
				w.collectExportsFromVarProps(v.Name)
			}
			return
		}
		w.collectExportsFromVarProps(v.Name)

	case *js_ast.EFunction:
		// module.exports = function() { ... } or () => { ... }
		if w.opts.CallMode {
			w.analyzeFuncBody(v.Body)
		}
	}
}

func (w *walker) collectExportsFromVarProps(name string) {
	for prop := range w.varProps[name] {
		w.addExport(prop)
	}
}

func (w *walker) addObjInfo(info *objInfo) {
	for name := range info.props {
		w.addExport(name)
	}
	for _, path := range info.spreads {
		w.addReexport(path)
	}
}

// handleModuleExportsObject processes module.exports = { ... }.
func (w *walker) handleModuleExportsObject(obj *js_ast.EObject) {
	for _, prop := range obj.Properties {
		if prop.Kind == js_ast.PropertySpread {
			w.handleSpreadProp(prop)
			continue
		}
		if prop.Key == "" {
			continue
		}
		if prop.Kind == js_ast.PropertyMethod {
			w.addExport(prop.Key)
			continue
		}
		w.exportValue(prop.Key, prop.Value)
	}
}

// handleSpreadProp handles { ...require("x") } and { ...obj } in an export object.
func (w *walker) handleSpreadProp(prop js_ast.Property) {
	if path, ok := w.extractRequire(prop.Value); ok {
		w.addReexport(path)
		return
	}
	if id, ok := prop.Value.Data.(*js_ast.EIdentifier); ok {
		if info, ok := w.varObject[id.Name]; ok {
			w.addObjInfo(info)
			return
		}
		if path, ok := w.varRequire[id.Name]; ok {
			w.addReexport(path)
		}
	}
}

// handleDefineProperty processes Object.defineProperty(exports, "name", descriptor).
func (w *walker) handleDefineProperty(call *js_ast.ECall) {
	name := w.exprToString(call.Args[1])
	if name == "" {
		return
	}
	desc, ok := call.Args[2].Data.(*js_ast.EObject)
	if !ok {
		return
	}
	// An empty descriptor defines nothing readable.
	for _, prop := range desc.Properties {
		if prop.Key == "value" || prop.Key == "get" {
			w.addExport(name)
			return
		}
	}
}

// handleModuleDefineProperty processes Object.defineProperty(module, "exports", { value }).
func (w *walker) handleModuleDefineProperty(call *js_ast.ECall) {
	desc, ok := call.Args[2].Data.(*js_ast.EObject)
	if !ok {
		return
	}
	for _, prop := range desc.Properties {
		if prop.Key == "value" && prop.Kind != js_ast.PropertySpread {
			w.handleModuleExportsAssignment(prop.Value)
			return
		}
	}
}

// handleObjectAssignToModuleExports processes Object.assign(module.exports, ...sources).
func (w *walker) handleObjectAssignToModuleExports(args []js_ast.Node) {
	for _, arg := range args {
		w.handleExportSource(arg)
	}
}

// handleObjectAssignToModule processes Object.assign(module, { exports: ... }).
func (w *walker) handleObjectAssignToModule(args []js_ast.Node) {
	for _, arg := range args {
		obj, ok := arg.Data.(*js_ast.EObject)
		if !ok {
			continue
		}
		for _, prop := range obj.Properties {
			if prop.Key == "exports" && prop.Kind != js_ast.PropertySpread {
				w.handleModuleExportsAssignment(prop.Value)
			}
		}
	}
}

// handleExportSource merges one source object into the exports: an object
// literal, a require() call or a tracked variable.
func (w *walker) handleExportSource(arg js_ast.Node) {
	if path, ok := w.extractRequire(arg); ok {
		w.addReexport(path)
		return
	}
	switch a := arg.Data.(type) {
	case *js_ast.EObject:
		w.handleModuleExportsObject(a)
	case *js_ast.EIdentifier:
		if info, ok := w.varObject[a.Name]; ok {
			w.addObjInfo(info)
		} else if path, ok := w.varRequire[a.Name]; ok {
			w.addReexport(path)
		}
	}
}

// analyzeFuncBody collects exports from the values a function returns.
func (w *walker) analyzeFuncBody(stmts []js_ast.Node) {
	for _, stmt := range stmts {
		w.analyzeFuncStmt(stmt)
	}
}

func (w *walker) analyzeFuncStmt(stmt js_ast.Node) {
	switch s := stmt.Data.(type) {
	case *js_ast.SReturn:
		if s.ValueOrNil.Data != nil {
			w.analyzeReturnValue(s.ValueOrNil)
		}
	case *js_ast.Other:
		// Blocks, if statements and loops, but not nested functions
		w.analyzeFuncBody(s.Children)
	}
}

func (w *walker) analyzeReturnValue(value js_ast.Node) {
	switch v := value.Data.(type) {
	case *js_ast.EObject:
		w.handleModuleExportsObject(v)
	case *js_ast.EIdentifier:
		if info, ok := w.varObject[v.Name]; ok {
			w.addObjInfo(info)
			return
		}
		w.collectExportsFromVarProps(v.Name)
	case *js_ast.ECall:
		if path, ok := w.extractRequire(value); ok {
			w.addReexport(path)
		}
	}
}

// isExportsRef reports whether expr is the free "exports" identifier.
func (w *walker) isExportsRef(expr js_ast.Node) bool {
	id, ok := unwrapCommaExpr(expr).Data.(*js_ast.EIdentifier)
	return ok && id.Name == "exports"
}

func (w *walker) isModuleRef(expr js_ast.Node) bool {
	id, ok := unwrapCommaExpr(expr).Data.(*js_ast.EIdentifier)
	return ok && id.Name == "module"
}

// isModuleExportsAccess matches module.exports and module["exports"].
func (w *walker) isModuleExportsAccess(expr js_ast.Node) bool {
	switch e := unwrapCommaExpr(expr).Data.(type) {
	case *js_ast.EDot:
		return e.Name == "exports" && w.isModuleRef(e.Target)
	case *js_ast.EIndex:
		return w.exprToString(e.Index) == "exports" && w.isModuleRef(e.Target)
	}
	return false
}

// isExportsTarget matches anything that refers to the export object:
// exports, module.exports or an alias of either.
func (w *walker) isExportsTarget(expr js_ast.Node) bool {
	if w.isExportsRef(expr) || w.isModuleExportsAccess(expr) {
		return true
	}
	if id, ok := expr.Data.(*js_ast.EIdentifier); ok {
		_, isExports := w.varExports[id.Name]
		_, isModExports := w.varModExports[id.Name]
		return isExports || isModExports
	}
	return false
}

// memberAccess splits target.name and target["name"].
func (w *walker) memberAccess(expr js_ast.Node) (js_ast.Node, string, bool) {
	switch e := expr.Data.(type) {
	case *js_ast.EDot:
		return e.Target, e.Name, true
	case *js_ast.EIndex:
		if s, ok := e.Index.Data.(*js_ast.EString); ok {
			return e.Target, s.Value, true
		}
	}
	return js_ast.Node{}, "", false
}

// getExportsPropertyName matches exports.foo, exports["foo"] and the same on
// an exports alias.
func (w *walker) getExportsPropertyName(expr js_ast.Node) (string, bool) {
	target, name, ok := w.memberAccess(expr)
	if !ok {
		return "", false
	}
	if w.isExportsRef(target) {
		return name, true
	}
	if id, ok := target.Data.(*js_ast.EIdentifier); ok {
		if _, isAlias := w.varExports[id.Name]; isAlias {
			return name, true
		}
	}
	return "", false
}

// getModuleExportsPropertyName matches module.exports.foo and the same on a
// module.exports alias.
func (w *walker) getModuleExportsPropertyName(expr js_ast.Node) (string, bool) {
	target, name, ok := w.memberAccess(expr)
	if !ok {
		return "", false
	}
	if w.isModuleExportsAccess(target) {
		return name, true
	}
	if id, ok := target.Data.(*js_ast.EIdentifier); ok {
		if _, isAlias := w.varModExports[id.Name]; isAlias {
			return name, true
		}
	}
	return "", false
}

// extractRequire matches require("path") with a string literal argument.
func (w *walker) extractRequire(expr js_ast.Node) (string, bool) {
	call, ok := expr.Data.(*js_ast.ECall)
	if !ok || len(call.Args) == 0 {
		return "", false
	}
	if _, ok := w.callees[calleeName(call.Target)]; !ok {
		return "", false
	}
	s, ok := call.Args[0].Data.(*js_ast.EString)
	if !ok {
		return "", false
	}
	return s.Value, true
}

// calleeName returns "a.b.c" for an identifier or a chain of static member
// accesses, and "" for anything else.
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

func (w *walker) isObjectMethod(call *js_ast.ECall, method string) bool {
	dot, ok := call.Target.Data.(*js_ast.EDot)
	if !ok || dot.Name != method {
		return false
	}
	id, ok := dot.Target.Data.(*js_ast.EIdentifier)
	return ok && id.Name == "Object"
}

func (w *walker) isObjectDefineProperty(call *js_ast.ECall) bool {
	return len(call.Args) >= 3 && w.isObjectMethod(call, "defineProperty") && w.isExportsTarget(call.Args[0])
}

func (w *walker) isModuleDefineProperty(call *js_ast.ECall) bool {
	return len(call.Args) >= 3 && w.isObjectMethod(call, "defineProperty") &&
		w.isModuleRef(call.Args[0]) && w.exprToString(call.Args[1]) == "exports"
}

func (w *walker) isObjectAssign(call *js_ast.ECall) bool {
	return w.isObjectMethod(call, "assign")
}

// isHelperCall matches name(...), x.name(...) and (0, x.name)(...).
func (w *walker) isHelperCall(call *js_ast.ECall, name string) bool {
	switch t := unwrapCommaExpr(call.Target).Data.(type) {
	case *js_ast.EIdentifier:
		return t.Name == name
	case *js_ast.EDot:
		return t.Name == name
	}
	return false
}

// unwrapCommaExpr returns the last operand of a comma expression such as (0, exports).
func unwrapCommaExpr(expr js_ast.Node) js_ast.Node {
	if seq, ok := expr.Data.(*js_ast.Other); ok && seq.Kind == "sequence_expression" && len(seq.Children) > 0 {
		return unwrapCommaExpr(seq.Children[len(seq.Children)-1])
	}
	return expr
}

func (w *walker) exprToString(expr js_ast.Node) string {
	switch e := expr.Data.(type) {
	case *js_ast.EString:
		return e.Value
	case *js_ast.EIdentifier:
		return e.Name
	}
	return ""
}

// extractObjectProps records the static keys and required spreads of an object literal.
func (w *walker) extractObjectProps(obj *js_ast.EObject, info *objInfo) {
	for _, prop := range obj.Properties {
		if prop.Kind == js_ast.PropertySpread {
			if path, ok := w.extractRequire(prop.Value); ok {
				info.spreads = append(info.spreads, path)
				continue
			}
			if id, ok := prop.Value.Data.(*js_ast.EIdentifier); ok {
				if other, ok := w.varObject[id.Name]; ok {
					for name := range other.props {
						info.props[name] = struct{}{}
					}
					info.spreads = append(info.spreads, other.spreads...)
				}
			}
			continue
		}
		if prop.Key != "" {
			info.props[prop.Key] = struct{}{}
		}
	}
}

func (w *walker) addExport(name string) {
	w.exports[name] = struct{}{}
}

func (w *walker) addReexport(path string) {
	w.reexports[path] = struct{}{}
}

func (w *walker) addExportedLocal(name string) {
	if name == "exports" || name == "module" || name == "undefined" {
		return
	}
	if _, ok := w.locals[name]; ok {
		return
	}
	w.locals[name] = struct{}{}
	w.exportedLocals = append(w.exportedLocals, name)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
