// Package js_parser parses JavaScript and TypeScript with tree-sitter and
// lowers the concrete syntax tree into js_ast nodes.
package js_parser

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/aperturerobotics/detective/internal/js_ast"
)

type Options struct {
	// Language selects the grammar. LanguageUnknown picks it from the path.
	Language js_ast.Language
}

// ParseError is returned when the source does not parse. No partial tree is
// produced.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// LanguageForPath maps a file extension to a grammar. Unknown extensions are
// parsed as JavaScript, which also accepts JSX.
func LanguageForPath(filename string) js_ast.Language {
	switch strings.ToLower(path.Ext(filename)) {
	case ".ts", ".mts", ".cts":
		return js_ast.LanguageTypeScript
	case ".tsx":
		return js_ast.LanguageTSX
	}
	return js_ast.LanguageJavaScript
}

func grammar(lang js_ast.Language) *sitter.Language {
	switch lang {
	case js_ast.LanguageTypeScript:
		return typescript.GetLanguage()
	case js_ast.LanguageTSX:
		return tsx.GetLanguage()
	}
	return javascript.GetLanguage()
}

// Parse parses source and returns its tree. The filename is used for error
// messages and, unless opts says otherwise, to pick the grammar.
func Parse(source string, filename string, opts Options) (*js_ast.AST, error) {
	lang := opts.Language
	if lang == js_ast.LanguageUnknown {
		lang = LanguageForPath(filename)
	}

	ctx, span := startParseSpan(context.Background(), lang, filename, len(source))
	defer span.End()
	start := time.Now()

	tree, err := parse(ctx, source, filename, lang)
	recordParseMetrics(ctx, lang, time.Since(start), err == nil)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	setParseSpanResult(span, len(tree.Stmts))
	return tree, nil
}

func parse(ctx context.Context, source string, filename string, lang js_ast.Language) (*js_ast.AST, error) {
	if !utf8.ValidString(source) {
		return nil, &ParseError{Path: filename, Message: "source is not valid UTF-8"}
	}

	content := []byte(source)
	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(grammar(lang))

	tree, err := p.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, &ParseError{Path: filename, Message: err.Error()}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, syntaxError(root, content, filename)
	}

	c := converter{content: content}
	return &js_ast.AST{
		Path:     filename,
		Language: lang,
		Stmts:    c.namedChildren(root),
	}, nil
}

// syntaxError reports the first ERROR or MISSING node in source order.
func syntaxError(root *sitter.Node, content []byte, filename string) *ParseError {
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if n.IsMissing() || n.IsError() {
			pt := n.StartPoint()
			msg := fmt.Sprintf("Expected %q", n.Type())
			if n.IsError() {
				text := n.Content(content)
				if len(text) > 32 {
					text = text[:32] + "..."
				}
				msg = fmt.Sprintf("Unexpected %q", text)
			}
			return &ParseError{
				Path:    filename,
				Line:    int(pt.Row) + 1,
				Column:  int(pt.Column),
				Message: msg,
			}
		}

		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			if child := n.Child(i); child != nil && (child.HasError() || child.IsMissing()) {
				stack = append(stack, child)
			}
		}
	}
	return &ParseError{Path: filename, Message: "syntax error"}
}

type converter struct {
	content []byte
}

func (c *converter) text(n *sitter.Node) string {
	return n.Content(c.content)
}

func loc(n *sitter.Node) js_ast.Loc {
	pt := n.StartPoint()
	return js_ast.Loc{Line: int32(pt.Row) + 1, Column: int32(pt.Column)}
}

func (c *converter) namedChildren(n *sitter.Node) []js_ast.Node {
	count := int(n.NamedChildCount())
	out := make([]js_ast.Node, 0, count)
	for i := 0; i < count; i++ {
		child := n.NamedChild(i)
		if child == nil || child.Type() == "comment" || child.Type() == "hash_bang_line" {
			continue
		}
		if converted := c.node(child); converted.Data != nil {
			out = append(out, converted)
		}
	}
	return out
}

func (c *converter) field(n *sitter.Node, name string) js_ast.Node {
	if child := n.ChildByFieldName(name); child != nil {
		return c.node(child)
	}
	return js_ast.Node{}
}

func (c *converter) other(n *sitter.Node) js_ast.Node {
	return js_ast.Node{Loc: loc(n), Data: &js_ast.Other{Kind: n.Type(), Children: c.namedChildren(n)}}
}

func (c *converter) node(n *sitter.Node) js_ast.Node {
	switch n.Type() {
	case "import_statement":
		return c.importStatement(n)

	case "export_statement":
		return c.exportStatement(n)

	case "expression_statement":
		if inner := firstNamed(n); inner != nil {
			return js_ast.Node{Loc: loc(n), Data: &js_ast.SExpr{Value: c.node(inner)}}
		}

	case "lexical_declaration", "variable_declaration":
		return c.localDeclaration(n)

	case "return_statement":
		s := &js_ast.SReturn{}
		if inner := firstNamed(n); inner != nil {
			s.ValueOrNil = c.node(inner)
		}
		return js_ast.Node{Loc: loc(n), Data: s}

	case "parenthesized_expression":
		if inner := firstNamed(n); inner != nil {
			return c.node(inner)
		}

	case "call_expression":
		return c.callExpression(n)

	case "member_expression":
		target := c.field(n, "object")
		prop := n.ChildByFieldName("property")
		if target.Data != nil && prop != nil {
			return js_ast.Node{Loc: loc(n), Data: &js_ast.EDot{Target: target, Name: c.text(prop)}}
		}

	case "subscript_expression":
		target := c.field(n, "object")
		index := c.field(n, "index")
		if target.Data != nil && index.Data != nil {
			return js_ast.Node{Loc: loc(n), Data: &js_ast.EIndex{Target: target, Index: index}}
		}

	case "assignment_expression":
		target := c.field(n, "left")
		value := c.field(n, "right")
		if target.Data != nil && value.Data != nil {
			return js_ast.Node{Loc: loc(n), Data: &js_ast.EAssign{Target: target, Value: value}}
		}

	case "object":
		return c.object(n)

	case "array":
		return js_ast.Node{Loc: loc(n), Data: &js_ast.EArray{Items: c.namedChildren(n)}}

	case "function", "function_expression", "function_declaration", "generator_function",
		"generator_function_declaration", "arrow_function", "method_definition":
		return c.function(n)

	case "identifier", "property_identifier", "shorthand_property_identifier",
		"shorthand_property_identifier_pattern":
		return js_ast.Node{Loc: loc(n), Data: &js_ast.EIdentifier{Name: c.text(n)}}

	case "string":
		return js_ast.Node{Loc: loc(n), Data: &js_ast.EString{Value: c.stringValue(n)}}
	}

	return c.other(n)
}

func firstNamed(n *sitter.Node) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child != nil && child.Type() != "comment" {
			return child
		}
	}
	return nil
}

func (c *converter) source(n *sitter.Node) *js_ast.EString {
	if src := n.ChildByFieldName("source"); src != nil && src.Type() == "string" {
		return &js_ast.EString{Value: c.stringValue(src)}
	}
	return nil
}

// moduleExportName reads an identifier or the string form used by
// "import { 'a-b' as c }".
func (c *converter) moduleExportName(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	if n.Type() == "string" {
		return c.stringValue(n)
	}
	return c.text(n)
}

func (c *converter) importStatement(n *sitter.Node) js_ast.Node {
	s := &js_ast.SImport{Source: c.source(n)}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "type", "typeof":
			s.TypeOnly = true
		case "import_clause":
			s.Items = c.importClause(child, s.Items)
		}
	}
	return js_ast.Node{Loc: loc(n), Data: s}
}

func (c *converter) importClause(n *sitter.Node, items []js_ast.ImportItem) []js_ast.ImportItem {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "identifier":
			name := c.text(child)
			items = append(items, js_ast.ImportItem{Kind: js_ast.ImportDefault, Imported: "default", Local: name, Loc: loc(child)})

		case "namespace_import":
			if id := firstNamed(child); id != nil {
				items = append(items, js_ast.ImportItem{Kind: js_ast.ImportNamespace, Local: c.text(id), Loc: loc(child)})
			}

		case "named_imports":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				spec := child.NamedChild(j)
				if spec == nil || spec.Type() != "import_specifier" {
					continue
				}
				imported := c.moduleExportName(spec.ChildByFieldName("name"))
				local := imported
				if alias := spec.ChildByFieldName("alias"); alias != nil {
					local = c.text(alias)
				}
				items = append(items, js_ast.ImportItem{Kind: js_ast.ImportNamed, Imported: imported, Local: local, Loc: loc(spec)})
			}
		}
	}
	return items
}

func (c *converter) exportStatement(n *sitter.Node) js_ast.Node {
	var (
		isDefault bool
		isStar    bool
		clause    *sitter.Node
		namespace *sitter.Node
	)
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "default":
			isDefault = true
		case "*":
			isStar = true
		case "export_clause":
			clause = child
		case "namespace_export":
			namespace = child
		}
	}

	source := c.source(n)
	switch {
	case isDefault:
		value := c.field(n, "value")
		if value.Data == nil {
			value = c.field(n, "declaration")
		}
		return js_ast.Node{Loc: loc(n), Data: &js_ast.SExportDefault{Value: value}}

	case namespace != nil:
		var exported string
		if name := firstNamed(namespace); name != nil {
			exported = c.moduleExportName(name)
		}
		return js_ast.Node{Loc: loc(n), Data: &js_ast.SExportNamed{
			Items:  []js_ast.ExportItem{{Exported: exported, Loc: loc(namespace)}},
			Source: source,
		}}

	case isStar:
		return js_ast.Node{Loc: loc(n), Data: &js_ast.SExportAll{Source: source}}

	case clause != nil:
		s := &js_ast.SExportNamed{Source: source}
		for i := 0; i < int(clause.NamedChildCount()); i++ {
			spec := clause.NamedChild(i)
			if spec == nil || spec.Type() != "export_specifier" {
				continue
			}
			local := c.moduleExportName(spec.ChildByFieldName("name"))
			exported := local
			if alias := spec.ChildByFieldName("alias"); alias != nil {
				exported = c.moduleExportName(alias)
			}
			s.Items = append(s.Items, js_ast.ExportItem{Local: local, Exported: exported, Loc: loc(spec)})
		}
		return js_ast.Node{Loc: loc(n), Data: s}
	}

	if decl := c.field(n, "declaration"); decl.Data != nil {
		return js_ast.Node{Loc: loc(n), Data: &js_ast.SExportNamed{Declaration: decl}}
	}

	// TypeScript "export = x" and "export as namespace X"
	return c.other(n)
}

func (c *converter) localDeclaration(n *sitter.Node) js_ast.Node {
	s := &js_ast.SLocal{}
	if kind := n.ChildByFieldName("kind"); kind != nil {
		s.Kind = c.text(kind)
	} else if first := n.Child(0); first != nil {
		s.Kind = first.Type()
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == nil || child.Type() != "variable_declarator" {
			continue
		}
		decl := js_ast.Decl{ValueOrNil: c.field(child, "value")}
		if name := child.ChildByFieldName("name"); name != nil {
			decl.Binding = c.binding(name)
		}
		s.Decls = append(s.Decls, decl)
	}
	return js_ast.Node{Loc: loc(n), Data: s}
}

func (c *converter) binding(n *sitter.Node) js_ast.Node {
	switch n.Type() {
	case "identifier":
		return js_ast.Node{Loc: loc(n), Data: &js_ast.BIdentifier{Name: c.text(n)}}

	case "object_pattern":
		b := &js_ast.BObject{}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if child == nil {
				continue
			}
			switch child.Type() {
			case "shorthand_property_identifier_pattern":
				name := c.text(child)
				b.Properties = append(b.Properties, js_ast.PropertyBinding{
					Key:   name,
					Value: js_ast.Node{Loc: loc(child), Data: &js_ast.BIdentifier{Name: name}},
				})

			case "pair_pattern":
				key := child.ChildByFieldName("key")
				value := child.ChildByFieldName("value")
				if key == nil || value == nil {
					continue
				}
				b.Properties = append(b.Properties, js_ast.PropertyBinding{
					Key:      c.propertyKey(key),
					KeyOrNil: c.computedKey(key),
					Value:    c.binding(value),
				})

			case "object_assignment_pattern":
				// { a = fallback }
				left := child.ChildByFieldName("left")
				if left == nil {
					continue
				}
				name := c.text(left)
				b.Properties = append(b.Properties, js_ast.PropertyBinding{
					Key:          name,
					Value:        js_ast.Node{Loc: loc(left), Data: &js_ast.BIdentifier{Name: name}},
					DefaultOrNil: c.field(child, "right"),
				})
			}
		}
		return js_ast.Node{Loc: loc(n), Data: b}
	}
	return c.other(n)
}

func (c *converter) propertyKey(n *sitter.Node) string {
	switch n.Type() {
	case "property_identifier", "identifier", "number", "private_property_identifier":
		return c.text(n)
	case "string":
		return c.stringValue(n)
	}
	return ""
}

// computedKey returns the expression inside "[expr]", or a node with nil Data
// for any other key.
func (c *converter) computedKey(n *sitter.Node) js_ast.Node {
	if n == nil || n.Type() != "computed_property_name" {
		return js_ast.Node{}
	}
	if inner := firstNamed(n); inner != nil {
		return c.node(inner)
	}
	return js_ast.Node{}
}

func (c *converter) callExpression(n *sitter.Node) js_ast.Node {
	fn := n.ChildByFieldName("function")
	argsNode := n.ChildByFieldName("arguments")

	var args []js_ast.Node
	if argsNode != nil {
		if argsNode.Type() == "arguments" {
			args = c.namedChildren(argsNode)
		} else if arg := c.node(argsNode); arg.Data != nil {
			// Tagged template
			args = []js_ast.Node{arg}
		}
	}

	if fn != nil && fn.Type() == "import" {
		call := &js_ast.EImportCall{}
		if len(args) > 0 {
			call.Source = args[0]
		}
		if len(args) > 1 {
			call.OptionsOrNil = args[1]
		}
		return js_ast.Node{Loc: loc(n), Data: call}
	}

	var target js_ast.Node
	if fn != nil {
		target = c.node(fn)
	}
	if target.Data == nil {
		return c.other(n)
	}
	return js_ast.Node{Loc: loc(n), Data: &js_ast.ECall{Target: target, Args: args}}
}

func (c *converter) object(n *sitter.Node) js_ast.Node {
	obj := &js_ast.EObject{}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "pair":
			key := child.ChildByFieldName("key")
			value := child.ChildByFieldName("value")
			if key == nil || value == nil {
				continue
			}
			obj.Properties = append(obj.Properties, js_ast.Property{
				Kind:     js_ast.PropertyNormal,
				Key:      c.propertyKey(key),
				KeyOrNil: c.computedKey(key),
				Value:    c.node(value),
			})

		case "shorthand_property_identifier":
			name := c.text(child)
			obj.Properties = append(obj.Properties, js_ast.Property{
				Kind:  js_ast.PropertyShorthand,
				Key:   name,
				Value: js_ast.Node{Loc: loc(child), Data: &js_ast.EIdentifier{Name: name}},
			})

		case "spread_element":
			if inner := firstNamed(child); inner != nil {
				obj.Properties = append(obj.Properties, js_ast.Property{
					Kind:  js_ast.PropertySpread,
					Value: c.node(inner),
				})
			}

		case "method_definition":
			var key string
			if name := child.ChildByFieldName("name"); name != nil {
				key = c.propertyKey(name)
			}
			obj.Properties = append(obj.Properties, js_ast.Property{
				Kind:  js_ast.PropertyMethod,
				Key:   key,
				Value: c.function(child),
			})
		}
	}
	return js_ast.Node{Loc: loc(n), Data: obj}
}

func (c *converter) function(n *sitter.Node) js_ast.Node {
	fn := &js_ast.EFunction{Arrow: n.Type() == "arrow_function"}
	if name := n.ChildByFieldName("name"); name != nil {
		if name.Type() == "computed_property_name" {
			fn.KeyOrNil = c.computedKey(name)
		} else {
			fn.Name = c.text(name)
		}
	}
	if params := n.ChildByFieldName("parameters"); params != nil {
		fn.Params = c.namedChildren(params)
	} else if param := n.ChildByFieldName("parameter"); param != nil {
		fn.Params = []js_ast.Node{c.binding(param)}
	}
	if body := n.ChildByFieldName("body"); body != nil {
		if body.Type() == "statement_block" {
			fn.Body = c.namedChildren(body)
		} else {
			// Arrow function with an expression body
			fn.Body = []js_ast.Node{{Loc: loc(body), Data: &js_ast.SReturn{ValueOrNil: c.node(body)}}}
		}
	}
	return js_ast.Node{Loc: loc(n), Data: fn}
}

// stringValue decodes a string literal node. The grammar splits the contents
// into string_fragment and escape_sequence children. Escaped UTF-16
// surrogate pairs are joined; a lone surrogate becomes U+FFFD.
func (c *converter) stringValue(n *sitter.Node) string {
	var sb strings.Builder
	var high rune
	flush := func() {
		if high != 0 {
			sb.WriteRune(utf8.RuneError)
			high = 0
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "string_fragment":
			flush()
			sb.WriteString(c.text(child))
		case "escape_sequence":
			esc := c.text(child)
			unit, ok := surrogate(esc)
			if !ok {
				flush()
				sb.WriteString(decodeEscape(esc))
				continue
			}
			if high != 0 {
				if r := utf16.DecodeRune(high, unit); r != utf8.RuneError {
					sb.WriteRune(r)
					high = 0
					continue
				}
				flush()
			}
			if unit < 0xdc00 {
				high = unit
			} else {
				sb.WriteRune(utf8.RuneError)
			}
		}
	}
	flush()
	return sb.String()
}

// surrogate returns the code unit of a "\uXXXX" escape in the surrogate range.
func surrogate(esc string) (rune, bool) {
	if len(esc) != 6 || esc[1] != 'u' {
		return 0, false
	}
	v, err := strconv.ParseUint(esc[2:], 16, 16)
	if err != nil || !utf16.IsSurrogate(rune(v)) {
		return 0, false
	}
	return rune(v), true
}

// decodeEscape decodes one JavaScript escape sequence. Unrecognized escapes
// stand for the escaped character itself.
func decodeEscape(esc string) string {
	if len(esc) < 2 || esc[0] != '\\' {
		return esc
	}
	body := esc[1:]
	switch body[0] {
	case '\n', '\r':
		// Line continuation
		return ""
	case 'b':
		return "\b"
	case 'f':
		return "\f"
	case 'n':
		return "\n"
	case 'r':
		return "\r"
	case 't':
		return "\t"
	case 'v':
		return "\v"
	case 'x':
		if v, err := strconv.ParseUint(body[1:], 16, 8); err == nil && len(body) == 3 {
			return string(rune(v))
		}
	case 'u':
		hex := body[1:]
		if strings.HasPrefix(hex, "{") && strings.HasSuffix(hex, "}") {
			hex = hex[1 : len(hex)-1]
		} else if len(hex) != 4 {
			break
		}
		if v, err := strconv.ParseUint(hex, 16, 32); err == nil && utf8.ValidRune(rune(v)) {
			return string(rune(v))
		} else if err == nil && utf16.IsSurrogate(rune(v)) {
			return string(utf8.RuneError)
		}
	case '0', '1', '2', '3', '4', '5', '6', '7':
		// Legacy octal: at most three digits and at most \377
		digits := body
		if v, err := strconv.ParseUint(digits, 8, 32); err == nil {
			if v <= 0o377 {
				return string(rune(v))
			}
			v, _ = strconv.ParseUint(digits[:2], 8, 32)
			return string(rune(v)) + digits[2:]
		}
	}
	if r, size := utf8.DecodeRuneInString(body); r == 0x2028 || r == 0x2029 {
		if size == len(body) {
			return ""
		}
	}
	return body
}
