package detective

import "github.com/aperturerobotics/detective/internal/js_ast"

// importSpecifier converts one clause of an import declaration.
//
//	import d from "m"            -> {d, default}
//	import * as ns from "m"      -> {ns}
//	import { a, b as c } from "m" -> {a}, {c}
//	import { default as x } from "m" -> {x, default}
func importSpecifier(item js_ast.ImportItem) Specifier {
	return Specifier{
		Name:      item.Local,
		IsDefault: item.Kind == js_ast.ImportDefault || (item.Kind == js_ast.ImportNamed && item.Imported == "default"),
	}
}

// reexportSpecifier converts one clause of "export { ... } from". The binding
// is visible by construction, so it starts out exported.
func reexportSpecifier(item js_ast.ExportItem) Specifier {
	return Specifier{
		Name:      item.Exported,
		IsDefault: item.Local == "" || item.Local == "default",
		Exported:  true,
	}
}

// requireSpecifiers converts the binding of "const x = require(...)".
// Nested destructuring patterns are not followed.
func requireSpecifiers(binding js_ast.Node) []Specifier {
	switch b := binding.Data.(type) {
	case *js_ast.BIdentifier:
		return []Specifier{{Name: b.Name, IsDefault: true}}

	case *js_ast.BObject:
		var specs []Specifier
		for _, prop := range b.Properties {
			local, ok := prop.Value.Data.(*js_ast.BIdentifier)
			if !ok {
				continue
			}
			specs = append(specs, Specifier{Name: local.Name, IsDefault: prop.Key == "default"})
		}
		return specs
	}
	return nil
}
