package planner

import (
	"fmt"
	"strings"

	"github.com/nainya/miniql/sql/ast"
)

// Explain renders a plan tree as one indented line per node, in the style
// of toydb's plan_to_string: each node's own description, a child
// rendered two spaces further in on the following lines.
func Explain(n *Node) string {
	return explainNode(n, 0)
}

func explainNode(n *Node, depth int) string {
	if n == nil {
		return ""
	}
	prefix := strings.Repeat("  ", depth)
	line := prefix + describe(n)
	if n.Child == nil {
		return line
	}
	return line + "\n" + explainNode(n.Child, depth+1)
}

func describe(n *Node) string {
	switch n.Kind {
	case TableScan:
		return fmt.Sprintf("TableScan(%s) [cost=%.1f, rows=%d]", n.Table, n.EstCost, n.EstRows)
	case IndexScan:
		return fmt.Sprintf("IndexScan(%s, %s) [cost=%.1f, rows=%d]", n.Table, n.Index, n.EstCost, n.EstRows)
	case Filter:
		return fmt.Sprintf("Filter(selectivity=%.2f) [rows=%d]", n.Selectivity, n.EstRows)
	case Sort:
		return fmt.Sprintf("Sort(%s)", n.OrderBy)
	case Limit:
		return fmt.Sprintf("Limit(%d)", n.LimitN)
	case Project:
		return fmt.Sprintf("Project(%s)", projectColumns(n.Items))
	default:
		return n.Kind.String()
	}
}

func projectColumns(items []ast.SelectItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if item.Star {
			parts = append(parts, "*")
			continue
		}
		parts = append(parts, describeExpr(item.Expr))
	}
	return strings.Join(parts, ", ")
}

func describeExpr(e ast.Expr) string {
	switch v := e.(type) {
	case *ast.QualifiedName:
		if v.Qualifier != "" {
			return v.Qualifier + "." + v.Name
		}
		return v.Name
	case *ast.AggExpr:
		if v.Star {
			return v.Func + "(*)"
		}
		return v.Func + "(" + describeExpr(v.Arg) + ")"
	case *ast.Literal:
		return v.Val
	case *ast.BinaryExpr:
		return describeExpr(v.Left) + " " + v.Op + " " + describeExpr(v.Right)
	default:
		return "?"
	}
}
