package js_ast

import "fmt"

// Children appends the direct children of n to dst in source order and
// returns the extended slice. Nodes with a nil Data are skipped.
func Children(dst []Node, n N) []Node {
	switch d := n.(type) {
	case *SImport, *SExportAll, *EIdentifier, *EString, *BIdentifier:
		// Leaves. Import and export sources are not separate nodes.

	case *SExportNamed:
		dst = appendNode(dst, d.Declaration)

	case *SExportDefault:
		dst = appendNode(dst, d.Value)

	case *SExpr:
		dst = appendNode(dst, d.Value)

	case *SLocal:
		for _, decl := range d.Decls {
			dst = appendNode(dst, decl.Binding)
			dst = appendNode(dst, decl.ValueOrNil)
		}

	case *SReturn:
		dst = appendNode(dst, d.ValueOrNil)

	case *EImportCall:
		dst = appendNode(dst, d.Source)
		dst = appendNode(dst, d.OptionsOrNil)

	case *ECall:
		dst = appendNode(dst, d.Target)
		for _, arg := range d.Args {
			dst = appendNode(dst, arg)
		}

	case *EDot:
		dst = appendNode(dst, d.Target)

	case *EIndex:
		dst = appendNode(dst, d.Target)
		dst = appendNode(dst, d.Index)

	case *EAssign:
		dst = appendNode(dst, d.Target)
		dst = appendNode(dst, d.Value)

	case *EObject:
		for _, prop := range d.Properties {
			dst = appendNode(dst, prop.KeyOrNil)
			dst = appendNode(dst, prop.Value)
		}

	case *EArray:
		for _, item := range d.Items {
			dst = appendNode(dst, item)
		}

	case *EFunction:
		dst = appendNode(dst, d.KeyOrNil)
		for _, param := range d.Params {
			dst = appendNode(dst, param)
		}
		for _, stmt := range d.Body {
			dst = appendNode(dst, stmt)
		}

	case *BObject:
		for _, prop := range d.Properties {
			dst = appendNode(dst, prop.KeyOrNil)
			dst = appendNode(dst, prop.Value)
			dst = appendNode(dst, prop.DefaultOrNil)
		}

	case *Other:
		for _, child := range d.Children {
			dst = appendNode(dst, child)
		}

	default:
		panic(fmt.Sprintf("Internal error: unhandled node type %T", n))
	}
	return dst
}

func appendNode(dst []Node, n Node) []Node {
	if n.Data == nil {
		return dst
	}
	return append(dst, n)
}

// Walk calls visit for root and every node below it, parents before
// children and siblings in source order.
func Walk(root Node, visit func(Node)) {
	if root.Data == nil {
		return
	}
	stack := []Node{root}
	var scratch []Node
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visit(n)

		// Push in reverse so the first child is popped next
		scratch = Children(scratch[:0], n.Data)
		for i := len(scratch) - 1; i >= 0; i-- {
			stack = append(stack, scratch[i])
		}
	}
}
