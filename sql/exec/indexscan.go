package exec

import (
	"github.com/nainya/miniql/catalog"
	"github.com/nainya/miniql/sql/ast"
	"github.com/nainya/miniql/sql/planner"
)

// bottomScanNode walks down a plan's Child chain to the leaf TableScan or
// IndexScan node the planner chose.
func bottomScanNode(n *planner.Node) *planner.Node {
	for n.Child != nil {
		n = n.Child
	}
	return n
}

// scanViaIndex fetches only the rows whose indexed column satisfies node's
// condition, using the secondary index's sorted key range in place of a
// full table scan. ok is false when the condition shape doesn't map onto a
// usable key range (caller should fall back to scanTable).
func (e *Executor) scanViaIndex(node *planner.Node, table, alias string) (rows []*Row, schema *Schema, ok bool, err error) {
	bin, isBinary := node.Condition.(*ast.BinaryExpr)
	if !isBinary {
		return nil, nil, false, nil
	}
	lit, isLit := bin.Right.(*ast.Literal)
	if !isLit {
		return nil, nil, false, nil
	}

	cols, err := e.catalog.GetColumns(table)
	if err != nil {
		return nil, nil, false, err
	}
	colType, _, err := findColumn(cols, node.Column)
	if err != nil {
		return nil, nil, false, err
	}

	lo, hi, ok, err := indexRangeBounds(node.Index, colType, bin.Op, lit.Val)
	if err != nil {
		return nil, nil, false, err
	}
	if !ok {
		return nil, nil, false, nil
	}

	entries, err := e.engine.RangeScan([]byte(lo), []byte(hi))
	if err != nil {
		return nil, nil, false, err
	}

	bindings := make([]ColumnBinding, len(cols))
	for i, c := range cols {
		bindings[i] = ColumnBinding{Table: table, Alias: alias, Name: c.Name}
	}
	schema = &Schema{Columns: bindings}

	for _, entry := range entries {
		rowid, err := catalog.RowidFromIndexKey(string(entry.Key))
		if err != nil {
			continue
		}
		raw, err := e.engine.Get([]byte(catalog.RowKey(table, rowid)))
		if err != nil {
			// Index entry survives its row's tombstone until the owning
			// DELETE statement removes it explicitly; a missing row here
			// just means the entry is stale.
			continue
		}
		vals, err := DecodeRow(raw)
		if err != nil {
			continue
		}
		for len(vals) < len(cols) {
			vals = append(vals, NullValue)
		}
		rows = append(rows, &Row{Schema: schema, Values: vals})
	}
	return rows, schema, true, nil
}

// indexRangeBounds translates a single comparison (column op literal) into
// the [lo, hi] key range over an index's sorted entries.
func indexRangeBounds(indexName string, colType catalog.ColType, op, value string) (lo, hi string, ok bool, err error) {
	prefix := catalog.IndexPrefix(indexName)

	if op == "=" {
		lo, hi, err = catalog.IndexScanBounds(indexName, colType, value)
		return lo, hi, err == nil, err
	}

	enc, err := catalog.EncodeIndexValue(colType, value)
	if err != nil {
		return "", "", false, err
	}

	if colType == catalog.TypeText {
		// TEXT encodings vary in length, so entry keys are not ordered by
		// value across prefix-related strings; scan the whole index and
		// leave the comparison to the WHERE filter.
		return prefix, prefix + "~", true, nil
	}

	switch op {
	case ">":
		return prefix + enc + ":" + catalog.MaxRowidSuffix, prefix + "~", true, nil
	case ">=":
		return prefix + enc + ":" + catalog.MinRowidSuffix, prefix + "~", true, nil
	case "<":
		return prefix, prefix + enc + ":" + catalog.MinRowidSuffix, true, nil
	case "<=":
		return prefix, prefix + enc + ":" + catalog.MaxRowidSuffix, true, nil
	default:
		return "", "", false, nil
	}
}
