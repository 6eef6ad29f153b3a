package exec

import (
	"github.com/nainya/miniql/catalog"
	"github.com/nainya/miniql/internal/dberr"
	"github.com/nainya/miniql/sql/ast"
)

// evalValue resolves e (a literal or a column reference) against r.
func evalValue(e ast.Expr, r *Row) (Value, error) {
	switch v := e.(type) {
	case *ast.Literal:
		if v.Kind == "STRING" {
			return TextValue(v.Val), nil
		}
		return CastText(v.Val, numericGuess(v.Val)), nil
	case *ast.QualifiedName:
		return r.ResolveValue(v)
	default:
		return NullValue, dberr.Newf(dberr.LogicFailure, "unsupported expression in predicate")
	}
}

// numericGuess picks INT vs FLOAT for a bare numeric literal token based on
// whether it contains a decimal point.
func numericGuess(s string) catalog.ColType {
	for _, ch := range s {
		if ch == '.' {
			return catalog.TypeFloat
		}
	}
	return catalog.TypeInt
}

func truthy(v Value) bool {
	switch v.Kind {
	case catalog.TypeInt:
		return v.I != 0
	case catalog.TypeFloat:
		return v.F != 0
	default:
		return v.S != ""
	}
}

// evalPredicate evaluates a WHERE/HAVING/ON expression against r, per the
// executor's _evaluate_expr: binary comparisons attempt numeric coercion,
// AND/OR short-circuit.
func evalPredicate(e ast.Expr, r *Row) (bool, error) {
	bin, ok := e.(*ast.BinaryExpr)
	if !ok {
		v, err := evalValue(e, r)
		if err != nil {
			return false, err
		}
		return truthy(v), nil
	}

	switch bin.Op {
	case "AND":
		left, err := evalPredicate(bin.Left, r)
		if err != nil {
			return false, err
		}
		if !left {
			return false, nil
		}
		return evalPredicate(bin.Right, r)
	case "OR":
		left, err := evalPredicate(bin.Left, r)
		if err != nil {
			return false, err
		}
		if left {
			return true, nil
		}
		return evalPredicate(bin.Right, r)
	default:
		left, err := evalValue(bin.Left, r)
		if err != nil {
			return false, err
		}
		right, err := evalValue(bin.Right, r)
		if err != nil {
			return false, err
		}
		cmp := compare(left, right)
		switch bin.Op {
		case "=":
			return cmp == 0, nil
		case "!=":
			return cmp != 0, nil
		case "<":
			return cmp < 0, nil
		case ">":
			return cmp > 0, nil
		case "<=":
			return cmp <= 0, nil
		case ">=":
			return cmp >= 0, nil
		default:
			return false, dberr.Newf(dberr.LogicFailure, "unknown operator %q", bin.Op)
		}
	}
}
