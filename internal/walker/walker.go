// Package walker feeds every node of a source file to a visitor, parsing the
// source first when it is given as text.
package walker

import (
	"errors"

	"github.com/aperturerobotics/detective/internal/js_ast"
	"github.com/aperturerobotics/detective/internal/js_parser"
)

// ErrMissingInput is returned when neither source text nor a tree is given.
var ErrMissingInput = errors.New("walker: no source text or syntax tree given")

// Input is either Text or Tree.
type Input interface{ isInput() }

func (Text) isInput() {}
func (Tree) isInput() {}

// Text is raw source. Path picks the grammar unless Language is set.
type Text struct {
	Contents string
	Path     string
	Language js_ast.Language
}

// Tree is a source that was already parsed.
type Tree struct {
	AST *js_ast.AST
}

// Load returns the tree for in. Empty source text yields a nil tree and no
// error.
func Load(in Input) (*js_ast.AST, error) {
	switch in := in.(type) {
	case Text:
		if in.Contents == "" {
			return nil, nil
		}
		return js_parser.Parse(in.Contents, in.Path, js_parser.Options{Language: in.Language})

	case Tree:
		if in.AST == nil {
			return nil, ErrMissingInput
		}
		return in.AST, nil
	}
	return nil, ErrMissingInput
}

// Walk loads in and calls visit once for every node in pre-order, which is
// the order the constructs appear in the source.
func Walk(in Input, visit func(js_ast.Node)) error {
	tree, err := Load(in)
	if err != nil {
		return err
	}
	WalkAST(tree, visit)
	return nil
}

// WalkAST is Walk for a tree that is already loaded. A nil tree is empty.
func WalkAST(tree *js_ast.AST, visit func(js_ast.Node)) {
	if tree == nil {
		return
	}
	for _, stmt := range tree.Stmts {
		js_ast.Walk(stmt, visit)
	}
}
