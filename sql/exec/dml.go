package exec

import (
	"github.com/nainya/miniql/catalog"
	"github.com/nainya/miniql/sql/ast"
	"github.com/nainya/miniql/sql/planner"
)

// execUpdate performs a full table scan, applying the assignment list to
// every matching row and overwriting its key, per the executor's UPDATE
// semantics (no partial-index-scan optimization for UPDATE/DELETE). Any
// index covering an assigned column has its old entry removed and a fresh
// one inserted so a later IndexScan doesn't see stale rowids.
func (e *Executor) execUpdate(s *ast.Update) error {
	cols, err := e.catalog.GetColumns(s.Table)
	if err != nil {
		return err
	}
	colIndex := make(map[string]int, len(cols))
	for i, c := range cols {
		colIndex[c.Name] = i
	}
	indexes, err := e.catalog.ListIndexes(s.Table)
	if err != nil {
		return err
	}

	lo, hi := catalog.RowPrefixBounds(s.Table)
	kvs, err := e.engine.RangeScan([]byte(lo), []byte(hi))
	if err != nil {
		return err
	}

	bindings := make([]ColumnBinding, len(cols))
	for i, c := range cols {
		bindings[i] = ColumnBinding{Table: s.Table, Name: c.Name}
	}
	schema := &Schema{Columns: bindings}

	for _, kv := range kvs {
		vals, err := DecodeRow(kv.Value)
		if err != nil {
			continue
		}
		for len(vals) < len(cols) {
			vals = append(vals, NullValue)
		}
		row := &Row{Schema: schema, Values: vals}

		if s.Where != nil {
			ok, err := evalPredicate(s.Where, row)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
		}

		rowid, err := rowidFromKey(string(kv.Key), s.Table)
		if err != nil {
			continue
		}

		oldVals := make(map[int]Value, len(s.Assignments))
		changed := make(map[int]bool, len(s.Assignments))
		for _, assign := range s.Assignments {
			idx, ok := colIndex[assign.Column]
			if !ok {
				continue
			}
			lit := assign.Value.(*ast.Literal)
			oldVals[idx] = vals[idx]
			changed[idx] = true
			vals[idx] = literalToValue(lit, cols[idx].Type)
		}

		for _, idx := range indexes {
			colType, colIdx, err := findColumn(cols, idx.Column)
			if err != nil || !changed[colIdx] {
				continue
			}
			oldKey, err := catalog.IndexEntryKey(idx.Name, colType, oldVals[colIdx].String(), rowid)
			if err == nil {
				_ = e.engine.Delete([]byte(oldKey))
			}
			newKey, err := catalog.IndexEntryKey(idx.Name, colType, vals[colIdx].String(), rowid)
			if err == nil {
				if err := e.engine.Insert([]byte(newKey), nil); err != nil {
					return err
				}
			}
		}

		if err := e.engine.Insert(kv.Key, EncodeRow(vals)); err != nil {
			return err
		}
	}
	return nil
}

// execDelete tombstones every row matching WHERE and decrements the
// table's row-count statistic, per the executor's DELETE semantics (no
// physical row removal). Every secondary index entry for a deleted row is
// removed alongside it.
func (e *Executor) execDelete(s *ast.Delete) error {
	cols, err := e.catalog.GetColumns(s.Table)
	if err != nil {
		return err
	}
	indexes, err := e.catalog.ListIndexes(s.Table)
	if err != nil {
		return err
	}
	bindings := make([]ColumnBinding, len(cols))
	for i, c := range cols {
		bindings[i] = ColumnBinding{Table: s.Table, Name: c.Name}
	}
	schema := &Schema{Columns: bindings}

	lo, hi := catalog.RowPrefixBounds(s.Table)
	kvs, err := e.engine.RangeScan([]byte(lo), []byte(hi))
	if err != nil {
		return err
	}

	deleted := 0
	for _, kv := range kvs {
		vals, err := DecodeRow(kv.Value)
		if err != nil {
			continue
		}
		for len(vals) < len(cols) {
			vals = append(vals, NullValue)
		}
		row := &Row{Schema: schema, Values: vals}

		if s.Where != nil {
			ok, err := evalPredicate(s.Where, row)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
		}

		rowid, err := rowidFromKey(string(kv.Key), s.Table)
		if err == nil {
			for _, idx := range indexes {
				colType, colIdx, err := findColumn(cols, idx.Column)
				if err != nil {
					continue
				}
				idxKey, err := catalog.IndexEntryKey(idx.Name, colType, vals[colIdx].String(), rowid)
				if err != nil {
					continue
				}
				_ = e.engine.Delete([]byte(idxKey))
			}
		}

		if err := e.engine.Delete(kv.Key); err != nil {
			return err
		}
		deleted++
	}

	rowCount, _ := e.catalog.GetStats(s.Table)
	remaining := rowCount - deleted
	if remaining < 0 {
		remaining = 0
	}
	return e.catalog.UpdateStats(s.Table, remaining)
}

func (e *Executor) execExplain(s *ast.Explain) (*Result, error) {
	stats := &catalogStats{catalog: e.catalog, engine: e.engine}
	plan, err := planner.Plan(s.Stmt, stats)
	if err != nil {
		return nil, err
	}
	return &Result{Explain: planner.Explain(plan)}, nil
}
