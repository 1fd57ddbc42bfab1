// Package divfirst defines an analyzer that reports integer expressions that
// divide before multiplying.
package divfirst

import (
	"go/ast"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/astutil"
	"golang.org/x/tools/go/ast/inspector"
)

// Analyzer reports products with an integer quotient as a factor, such as
// a / b * c. The quotient is truncated before it is scaled, so the result can
// be off by up to c-1; vesting amounts must be computed as a * c / b.
var Analyzer = &analysis.Analyzer{
	Name:     "divfirst",
	Doc:      "reports integer division before multiplication",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

func isInteger(pass *analysis.Pass, e ast.Expr) bool {
	b, ok := pass.TypesInfo.TypeOf(e).Underlying().(*types.Basic)
	return ok && b.Info()&types.IsInteger != 0
}

func run(pass *analysis.Pass) (any, error) {
	check := func(e ast.Expr) {
		quo, ok := astutil.Unparen(e).(*ast.BinaryExpr)
		if !ok || quo.Op != token.QUO || !isInteger(pass, quo) {
			return
		} else if tv, ok := pass.TypesInfo.Types[quo]; ok && tv.Value != nil {
			return // constant
		}
		pass.Reportf(quo.Pos(), "integer division before multiplication truncates; multiply first")
	}

	nodeFilter := []ast.Node{
		(*ast.BinaryExpr)(nil),
		(*ast.AssignStmt)(nil),
	}
	inspect := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	inspect.Preorder(nodeFilter, func(n ast.Node) {
		switch node := n.(type) {
		case *ast.BinaryExpr:
			if node.Op == token.MUL {
				check(node.X)
				check(node.Y)
			}
		case *ast.AssignStmt:
			if node.Tok == token.MUL_ASSIGN {
				for _, rhs := range node.Rhs {
					check(rhs)
				}
			}
		}
	})

	return nil, nil
}
