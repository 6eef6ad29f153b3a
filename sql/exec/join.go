package exec

import "github.com/nainya/miniql/sql/ast"

// applyJoin runs a nested-loop INNER join of leftRows (already scanned)
// against sel.Join's table, evaluating the ON condition per combined row.
// LEFT/RIGHT are parsed but executed as INNER, matching spec.md's explicit
// allowance that outer semantics are not required.
func (e *Executor) applyJoin(leftRows []*Row, leftSchema *Schema, sel *ast.Select) ([]*Row, *Schema, error) {
	rightRows, rightSchema, err := e.scanTable(sel.Join.Table, sel.Join.Alias)
	if err != nil {
		return nil, nil, err
	}

	combinedSchema := joinSchema(leftSchema.Columns, rightSchema.Columns)

	var out []*Row
	for _, lr := range leftRows {
		for _, rr := range rightRows {
			values := make([]Value, 0, len(lr.Values)+len(rr.Values))
			values = append(values, lr.Values...)
			values = append(values, rr.Values...)
			combined := &Row{Schema: combinedSchema, Values: values}

			ok, err := evalPredicate(sel.Join.On, combined)
			if err != nil {
				return nil, nil, err
			}
			if ok {
				out = append(out, combined)
			}
		}
	}
	return out, combinedSchema, nil
}
