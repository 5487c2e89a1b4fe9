// Package js_ast is the syntax tree the detectives consume.
//
// Only the constructs that carry module dependencies get their own node type.
// Everything else is kept as an Other node so that traversal can still reach
// calls and imports nested inside it.
package js_ast

// Language is the grammar a tree was parsed with. The zero value means the
// grammar is picked from the file extension.
type Language uint8

const (
	LanguageUnknown Language = iota
	LanguageJavaScript
	LanguageTypeScript
	LanguageTSX
)

func (l Language) String() string {
	switch l {
	case LanguageJavaScript:
		return "javascript"
	case LanguageTypeScript:
		return "typescript"
	case LanguageTSX:
		return "tsx"
	}
	return "unknown"
}

// Loc is a 1-based line and 0-based column.
type Loc struct {
	Line   int32
	Column int32
}

type AST struct {
	Path     string
	Language Language
	Stmts    []Node
}

type Node struct {
	Loc  Loc
	Data N
}

// N is implemented by every node variant in this file and nothing else.
type N interface{ isNode() }

func (*SImport) isNode()        {}
func (*SExportNamed) isNode()   {}
func (*SExportAll) isNode()     {}
func (*SExportDefault) isNode() {}
func (*SExpr) isNode()          {}
func (*SLocal) isNode()         {}
func (*SReturn) isNode()        {}
func (*EImportCall) isNode()    {}
func (*ECall) isNode()          {}
func (*EDot) isNode()           {}
func (*EIndex) isNode()         {}
func (*EAssign) isNode()        {}
func (*EObject) isNode()        {}
func (*EArray) isNode()         {}
func (*EFunction) isNode()      {}
func (*EIdentifier) isNode()    {}
func (*EString) isNode()        {}
func (*BIdentifier) isNode()    {}
func (*BObject) isNode()        {}
func (*Other) isNode()          {}

type ImportKind uint8

const (
	ImportNamed ImportKind = iota
	ImportDefault
	ImportNamespace
)

// ImportItem is one binding of an import clause. For "import { a as b }"
// Imported is "a" and Local is "b". Namespace imports leave Imported empty.
type ImportItem struct {
	Kind     ImportKind
	Imported string
	Local    string
	Loc      Loc
}

// SImport is "import ... from 'source'" or a bare "import 'source'". Source
// is nil only for forms without a string source (TypeScript "import x = y").
type SImport struct {
	Items    []ImportItem
	Source   *EString
	TypeOnly bool
}

// ExportItem is one entry of an export clause. For "export { a as b }" Local
// is "a" and Exported is "b". "export * as ns from" has no local binding.
type ExportItem struct {
	Local    string
	Exported string
	Loc      Loc
}

// SExportNamed covers "export { ... }", "export { ... } from 'source'",
// "export * as ns from 'source'" and "export <declaration>". Declaration.Data
// is nil unless the statement wraps a declaration.
type SExportNamed struct {
	Items       []ExportItem
	Source      *EString
	Declaration Node
}

// SExportAll is "export * from 'source'".
type SExportAll struct {
	Source *EString
}

// SExportDefault is "export default <value>".
type SExportDefault struct {
	Value Node
}

type SExpr struct {
	Value Node
}

type Decl struct {
	Binding    Node
	ValueOrNil Node
}

// SLocal is a var, let or const declaration.
type SLocal struct {
	Kind  string
	Decls []Decl
}

type SReturn struct {
	ValueOrNil Node
}

// EImportCall is the dynamic "import(source)" form.
type EImportCall struct {
	Source       Node
	OptionsOrNil Node
}

type ECall struct {
	Target Node
	Args   []Node
}

// EDot is a member access with a static property name, "target.name".
type EDot struct {
	Target Node
	Name   string
}

// EIndex is a computed member access, "target[index]".
type EIndex struct {
	Target Node
	Index  Node
}

type EAssign struct {
	Target Node
	Value  Node
}

type PropertyKind uint8

const (
	PropertyNormal PropertyKind = iota
	PropertyShorthand
	PropertySpread
	PropertyMethod
)

// Property is one member of an object literal. Key is empty for computed keys
// and spreads. KeyOrNil holds the expression of a computed key. Computed
// method names are held by the method's EFunction instead.
type Property struct {
	Kind     PropertyKind
	Key      string
	KeyOrNil Node
	Value    Node
}

type EObject struct {
	Properties []Property
}

type EArray struct {
	Items []Node
}

// EFunction is any function form. Arrow functions with an expression body get
// a single SReturn statement in Body.
// KeyOrNil is the expression of a computed method name, "[key]() {}".
type EFunction struct {
	Name     string
	KeyOrNil Node
	Arrow    bool
	Params   []Node
	Body     []Node
}

type EIdentifier struct {
	Name string
}

// EString is a string literal with quotes removed and escapes decoded.
// Template literals are never EString, even without substitutions.
type EString struct {
	Value string
}

type BIdentifier struct {
	Name string
}

// PropertyBinding is one member of an object pattern. KeyOrNil holds the
// expression of a computed key and DefaultOrNil the fallback in "{ a = b }".
type PropertyBinding struct {
	Key          string
	KeyOrNil     Node
	Value        Node
	DefaultOrNil Node
}

// BObject is an object destructuring pattern, "{ a, b: c }".
type BObject struct {
	Properties []PropertyBinding
}

// Other holds a construct with no dedicated node type. Kind is the grammar's
// name for it.
type Other struct {
	Kind     string
	Children []Node
}
