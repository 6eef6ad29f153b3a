package exec

import (
	"strings"

	"github.com/nainya/miniql/sql/ast"
)

// hasAggregate reports whether any select-list item is an aggregate call.
func hasAggregate(items []ast.SelectItem) bool {
	for _, item := range items {
		if _, ok := item.Expr.(*ast.AggExpr); ok {
			return true
		}
	}
	return false
}

// applyAggregation groups rows by sel.GroupBy (or treats the whole input as
// one group when aggregates are present without GROUP BY) and computes one
// output row per group, keyed by first-seen group order. The computed
// aggregate/group-by values are written into a synthetic single-column-per-
// item Row bound to a Schema named after each select item's rendered text,
// so the later projection stage can resolve them uniformly.
func (e *Executor) applyAggregation(rows []*Row, schema *Schema, sel *ast.Select) ([]*Row, error) {
	type group struct {
		key  string
		rows []*Row
	}

	order := make([]string, 0)
	groups := make(map[string]*group)

	for _, r := range rows {
		key, err := groupKey(sel.GroupBy, r)
		if err != nil {
			return nil, err
		}
		g, ok := groups[key]
		if !ok {
			g = &group{key: key}
			groups[key] = g
			order = append(order, key)
		}
		g.rows = append(g.rows, r)
	}
	if len(order) == 0 && len(sel.GroupBy) == 0 {
		// Aggregates with no GROUP BY and zero input rows still return one
		// row (e.g. COUNT(*) = 0), matching the "entire input is a single
		// group" rule.
		order = append(order, "")
		groups[""] = &group{}
	}

	outSchema := &Schema{}
	for _, item := range sel.Items {
		outSchema.Columns = append(outSchema.Columns, ColumnBinding{Name: describeSelectItem(item)})
	}

	var out []*Row
	for _, key := range order {
		g := groups[key]
		values := make([]Value, len(sel.Items))
		for i, item := range sel.Items {
			switch v := item.Expr.(type) {
			case *ast.AggExpr:
				val, err := computeAggregate(v, g.rows)
				if err != nil {
					return nil, err
				}
				values[i] = val
			case *ast.QualifiedName:
				if len(g.rows) > 0 {
					val, err := g.rows[0].ResolveValue(v)
					if err != nil {
						return nil, err
					}
					values[i] = val
				}
			}
		}
		outRow := &Row{Schema: outSchema, Values: values}

		if sel.Having != nil {
			ok, err := evalPredicate(sel.Having, outRow)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, outRow)
	}
	return out, nil
}

func groupKey(groupBy []string, r *Row) (string, error) {
	if len(groupBy) == 0 {
		return "", nil
	}
	var sb strings.Builder
	for _, col := range groupBy {
		val, err := r.ResolveValue(&ast.QualifiedName{Name: col})
		if err != nil {
			return "", err
		}
		sb.WriteString(val.String())
		sb.WriteByte('\x00')
	}
	return sb.String(), nil
}

func computeAggregate(agg *ast.AggExpr, rows []*Row) (Value, error) {
	if agg.Func == "COUNT" && agg.Star {
		return IntValue(int64(len(rows))), nil
	}

	var nums []float64
	var strs []string
	nonNull := 0
	for _, r := range rows {
		val, err := r.ResolveValue(agg.Arg)
		if err != nil {
			return NullValue, err
		}
		if val == NullValue {
			continue
		}
		nonNull++
		if f, ok := val.asFloat(); ok {
			nums = append(nums, f)
		} else {
			strs = append(strs, val.String())
		}
	}

	switch agg.Func {
	case "COUNT":
		return IntValue(int64(nonNull)), nil
	case "SUM":
		var sum float64
		for _, n := range nums {
			sum += n
		}
		return FloatValue(sum), nil
	case "AVG":
		if len(nums) == 0 {
			return NullValue, nil
		}
		var sum float64
		for _, n := range nums {
			sum += n
		}
		return FloatValue(sum / float64(len(nums))), nil
	case "MIN":
		return minMax(nums, strs, true)
	case "MAX":
		return minMax(nums, strs, false)
	default:
		return NullValue, nil
	}
}

func minMax(nums []float64, strs []string, wantMin bool) (Value, error) {
	if len(nums) > 0 {
		best := nums[0]
		for _, n := range nums[1:] {
			if (wantMin && n < best) || (!wantMin && n > best) {
				best = n
			}
		}
		return FloatValue(best), nil
	}
	if len(strs) > 0 {
		best := strs[0]
		for _, s := range strs[1:] {
			if (wantMin && s < best) || (!wantMin && s > best) {
				best = s
			}
		}
		return TextValue(best), nil
	}
	return NullValue, nil
}
