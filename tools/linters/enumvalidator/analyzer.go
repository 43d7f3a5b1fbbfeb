// Package enumvalidator reports string literals written into enum-typed
// struct fields. An enum is a named string type with at least one constant
// of that type declared in its package, like model.Role or chat.State.
package enumvalidator

import (
	"go/ast"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

var Analyzer = &analysis.Analyzer{
	Name:     "enumvalidator",
	Doc:      "reports string literals assigned to enum-typed struct fields",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

func run(pass *analysis.Pass) (any, error) {
	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	enums := make(map[*types.Named]bool)

	filter := []ast.Node{
		(*ast.AssignStmt)(nil),
		(*ast.CompositeLit)(nil),
	}
	insp.Preorder(filter, func(n ast.Node) {
		switch n := n.(type) {
		case *ast.AssignStmt:
			if len(n.Lhs) != len(n.Rhs) {
				return
			}
			for i, lhs := range n.Lhs {
				sel, ok := lhs.(*ast.SelectorExpr)
				if !ok {
					continue
				}
				if s, ok := pass.TypesInfo.Selections[sel]; !ok || s.Kind() != types.FieldVal {
					continue
				}
				check(pass, enums, sel.Sel, n.Rhs[i])
			}

		case *ast.CompositeLit:
			if _, ok := underlyingStruct(pass.TypesInfo.TypeOf(n)); !ok {
				return
			}
			for _, elt := range n.Elts {
				kv, ok := elt.(*ast.KeyValueExpr)
				if !ok {
					continue
				}
				if key, ok := kv.Key.(*ast.Ident); ok {
					check(pass, enums, key, kv.Value)
				}
			}
		}
	})
	return nil, nil
}

func check(pass *analysis.Pass, enums map[*types.Named]bool, field *ast.Ident, value ast.Expr) {
	lit, ok := value.(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return
	}
	obj, ok := pass.TypesInfo.ObjectOf(field).(*types.Var)
	if !ok || !obj.IsField() {
		return
	}
	named, ok := obj.Type().(*types.Named)
	if !ok || !isEnum(enums, named) {
		return
	}
	pass.Reportf(lit.Pos(), "enum field %s assigned string literal %s; use a %s constant",
		field.Name, lit.Value, named.Obj().Name())
}

// isEnum reports whether named is a string type with declared constants.
func isEnum(cache map[*types.Named]bool, named *types.Named) bool {
	if v, ok := cache[named]; ok {
		return v
	}
	result := false
	basic, ok := named.Underlying().(*types.Basic)
	if ok && basic.Info()&types.IsString != 0 && named.Obj().Pkg() != nil {
		scope := named.Obj().Pkg().Scope()
		for _, name := range scope.Names() {
			c, ok := scope.Lookup(name).(*types.Const)
			if ok && types.Identical(c.Type(), named) {
				result = true
				break
			}
		}
	}
	cache[named] = result
	return result
}

func underlyingStruct(t types.Type) (*types.Struct, bool) {
	if t == nil {
		return nil, false
	}
	if p, ok := t.Underlying().(*types.Pointer); ok {
		t = p.Elem()
	}
	s, ok := t.Underlying().(*types.Struct)
	return s, ok
}
