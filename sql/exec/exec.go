// Package exec pulls rows through a plan tree and executes every statement
// kind the façade accepts, grounded on toydb's Executor (row-dict scans,
// nested-loop join with ambiguity detection, GROUP BY/aggregates, ORDER BY,
// LIMIT, projection) and rendered through typed Value/Row rather than
// Python dicts.
package exec

import (
	"sort"

	"github.com/nainya/miniql/catalog"
	"github.com/nainya/miniql/internal/dberr"
	"github.com/nainya/miniql/internal/logger"
	"github.com/nainya/miniql/sql/ast"
	"github.com/nainya/miniql/sql/planner"
	"github.com/nainya/miniql/storage"
)

// Engine is the storage surface the executor reads and writes through.
// *storage.Store satisfies it.
type Engine interface {
	Insert(key, val []byte) error
	Delete(key []byte) error
	Get(key []byte) ([]byte, error)
	RangeScan(lo, hi []byte) ([]storage.KV, error)
}

// Executor runs parsed statements against a catalog and storage engine.
type Executor struct {
	engine  Engine
	catalog *catalog.Catalog
	log     *logger.Logger
}

// New builds an Executor over engine and cat.
func New(engine Engine, cat *catalog.Catalog, log *logger.Logger) *Executor {
	if log == nil {
		log = logger.Global()
	}
	return &Executor{engine: engine, catalog: cat, log: log}
}

// Result is what Execute returns for a SELECT or EXPLAIN; other statements
// return a nil Result.
type Result struct {
	Columns []string
	Rows    [][]Value
	Explain string
}

// Execute dispatches stmt to the matching handler, per spec.md's façade
// contract: SELECT/EXPLAIN return a Result, everything else returns nil.
func (e *Executor) Execute(stmt ast.Statement) (*Result, error) {
	switch s := stmt.(type) {
	case *ast.Explain:
		return e.execExplain(s)
	case *ast.CreateTable:
		return nil, e.execCreateTable(s)
	case *ast.DropTable:
		return nil, e.catalog.DropTable(s.Table)
	case *ast.AlterTableAddColumn:
		return nil, e.execAlterTable(s)
	case *ast.CreateIndex:
		return nil, e.execCreateIndex(s)
	case *ast.DropIndex:
		return nil, e.catalog.DropIndex(s.Index)
	case *ast.Insert:
		return nil, e.execInsert(s)
	case *ast.Select:
		return e.execSelect(s)
	case *ast.Update:
		return nil, e.execUpdate(s)
	case *ast.Delete:
		return nil, e.execDelete(s)
	default:
		return nil, dberr.Newf(dberr.LogicFailure, "unsupported statement type %T", stmt)
	}
}

func (e *Executor) execCreateTable(s *ast.CreateTable) error {
	cols := make([]catalog.Column, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = catalog.Column{Name: c.Name, Type: catalog.ColType(c.Type), Ordinal: i}
	}
	return e.catalog.CreateTable(s.Table, cols)
}

func (e *Executor) execAlterTable(s *ast.AlterTableAddColumn) error {
	return e.catalog.AddColumn(s.Table, catalog.Column{Name: s.Column.Name, Type: catalog.ColType(s.Column.Type)})
}

func (e *Executor) execCreateIndex(s *ast.CreateIndex) error {
	if err := e.catalog.CreateIndex(s.Index, s.Table, s.Column); err != nil {
		return err
	}
	return e.backfillIndex(s.Index, s.Table, s.Column)
}

// backfillIndex populates a freshly created index from every existing row.
func (e *Executor) backfillIndex(indexName, table, column string) error {
	cols, err := e.catalog.GetColumns(table)
	if err != nil {
		return err
	}
	colType, colIdx, err := findColumn(cols, column)
	if err != nil {
		return err
	}

	lo, hi := catalog.RowPrefixBounds(table)
	rows, err := e.engine.RangeScan([]byte(lo), []byte(hi))
	if err != nil {
		return err
	}
	for _, kv := range rows {
		vals, err := DecodeRow(kv.Value)
		if err != nil || colIdx >= len(vals) {
			continue
		}
		rowid, err := rowidFromKey(string(kv.Key), table)
		if err != nil {
			continue
		}
		idxKey, err := catalog.IndexEntryKey(indexName, colType, vals[colIdx].String(), rowid)
		if err != nil {
			continue
		}
		if err := e.engine.Insert([]byte(idxKey), nil); err != nil {
			return err
		}
	}
	return nil
}

func findColumn(cols []catalog.Column, name string) (catalog.ColType, int, error) {
	for i, c := range cols {
		if c.Name == name {
			return c.Type, i, nil
		}
	}
	return "", 0, dberr.Newf(dberr.SchemaFailure, "column %q does not exist", name)
}

func (e *Executor) execInsert(s *ast.Insert) error {
	cols, err := e.catalog.GetColumns(s.Table)
	if err != nil {
		return err
	}
	if len(s.Values) != len(cols) {
		return dberr.Newf(dberr.SchemaFailure, "column count mismatch: expected %d, got %d", len(cols), len(s.Values))
	}

	vals := make([]Value, len(cols))
	for i, v := range s.Values {
		lit := v.(*ast.Literal)
		vals[i] = literalToValue(lit, cols[i].Type)
	}

	rowid, err := e.catalog.NextRowid(s.Table)
	if err != nil {
		return err
	}
	key := catalog.RowKey(s.Table, rowid)
	if err := e.engine.Insert([]byte(key), EncodeRow(vals)); err != nil {
		return err
	}

	indexes, err := e.catalog.ListIndexes(s.Table)
	if err != nil {
		return err
	}
	for _, idx := range indexes {
		colType, colIdx, err := findColumn(cols, idx.Column)
		if err != nil {
			continue
		}
		idxKey, err := catalog.IndexEntryKey(idx.Name, colType, vals[colIdx].String(), rowid)
		if err != nil {
			continue
		}
		if err := e.engine.Insert([]byte(idxKey), nil); err != nil {
			return err
		}
	}

	rowCount, _ := e.catalog.GetStats(s.Table)
	return e.catalog.UpdateStats(s.Table, rowCount+1)
}

func literalToValue(lit *ast.Literal, colType catalog.ColType) Value {
	if lit.Kind == "STRING" {
		return CastText(lit.Val, catalog.TypeText)
	}
	return CastText(lit.Val, colType)
}

// scanTable returns every live (non-tombstoned, non-metadata) row of table
// as fully materialized Rows bound to a single-table Schema. alias is the
// table's FROM/JOIN alias, if any ("" when the query didn't give one), and
// is carried on every ColumnBinding so alias-qualified references resolve.
func (e *Executor) scanTable(table, alias string) ([]*Row, *Schema, error) {
	cols, err := e.catalog.GetColumns(table)
	if err != nil {
		return nil, nil, err
	}
	bindings := make([]ColumnBinding, len(cols))
	for i, c := range cols {
		bindings[i] = ColumnBinding{Table: table, Alias: alias, Name: c.Name}
	}
	schema := &Schema{Columns: bindings}

	lo, hi := catalog.RowPrefixBounds(table)
	kvs, err := e.engine.RangeScan([]byte(lo), []byte(hi))
	if err != nil {
		return nil, nil, err
	}

	var rows []*Row
	for _, kv := range kvs {
		vals, err := DecodeRow(kv.Value)
		if err != nil {
			continue
		}
		for len(vals) < len(cols) {
			vals = append(vals, NullValue)
		}
		rows = append(rows, &Row{Schema: schema, Values: vals})
	}
	return rows, schema, nil
}

func rowidFromKey(key, table string) (uint64, error) {
	if len(key) < len(table)+1+20 {
		return 0, dberr.Newf(dberr.StorageFailure, "malformed row key %q", key)
	}
	suffix := key[len(key)-20:]
	var n uint64
	for _, ch := range suffix {
		if ch < '0' || ch > '9' {
			return 0, dberr.Newf(dberr.StorageFailure, "malformed row key %q", key)
		}
		n = n*10 + uint64(ch-'0')
	}
	return n, nil
}

func (e *Executor) execSelect(sel *ast.Select) (*Result, error) {
	stats := &catalogStats{catalog: e.catalog, engine: e.engine}
	plan, err := planner.Plan(sel, stats)
	if err != nil {
		return nil, err
	}
	rows, schema, err := e.runPlan(plan, sel)
	if err != nil {
		return nil, err
	}

	cols := columnNames(sel.Items, schema)
	out := make([][]Value, 0, len(rows))
	for _, r := range rows {
		projected, err := projectRow(sel.Items, r)
		if err != nil {
			return nil, err
		}
		out = append(out, projected)
	}
	return &Result{Columns: cols, Rows: out}, nil
}

// runPlan executes everything below the Project node: the scan/join,
// WHERE filter, grouping/aggregates, ORDER BY and LIMIT. It
// returns the post-aggregation rows still bound to a Schema so the
// projection stage can resolve select-list expressions.
func (e *Executor) runPlan(plan *planner.Node, sel *ast.Select) ([]*Row, *Schema, error) {
	var rows []*Row
	var schema *Schema
	var err error

	scanNode := bottomScanNode(plan)
	if scanNode.Kind == planner.IndexScan {
		var viaIndex bool
		rows, schema, viaIndex, err = e.scanViaIndex(scanNode, sel.From, sel.FromAlias)
		if err != nil {
			return nil, nil, err
		}
		if !viaIndex {
			rows, schema, err = e.scanTable(sel.From, sel.FromAlias)
		}
	} else {
		rows, schema, err = e.scanTable(sel.From, sel.FromAlias)
	}
	if err != nil {
		return nil, nil, err
	}

	if sel.Join != nil {
		rows, schema, err = e.applyJoin(rows, schema, sel)
		if err != nil {
			return nil, nil, err
		}
	}

	if sel.Where != nil {
		filtered := rows[:0:0]
		for _, r := range rows {
			ok, err := evalPredicate(sel.Where, r)
			if err != nil {
				return nil, nil, err
			}
			if ok {
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}

	hasAgg := hasAggregate(sel.Items)
	if hasAgg || len(sel.GroupBy) > 0 {
		rows, err = e.applyAggregation(rows, schema, sel)
		if err != nil {
			return nil, nil, err
		}
	}

	if sel.OrderBy != "" {
		rows, err = sortRows(rows, sel.OrderBy)
		if err != nil {
			return nil, nil, err
		}
	}
	if sel.Limit != nil && *sel.Limit < len(rows) {
		rows = rows[:*sel.Limit]
	}
	return rows, schema, nil
}

func sortRows(rows []*Row, orderBy string) ([]*Row, error) {
	qn := &ast.QualifiedName{Name: orderBy}
	sorted := make([]*Row, len(rows))
	copy(sorted, rows)
	var sortErr error
	sort.SliceStable(sorted, func(i, j int) bool {
		vi, err := sorted[i].ResolveValue(qn)
		if err != nil {
			sortErr = err
			return false
		}
		vj, err := sorted[j].ResolveValue(qn)
		if err != nil {
			sortErr = err
			return false
		}
		return compare(vi, vj) < 0
	})
	if sortErr != nil {
		return nil, sortErr
	}
	return sorted, nil
}

func columnNames(items []ast.SelectItem, schema *Schema) []string {
	if len(items) == 1 && items[0].Star {
		names := make([]string, len(schema.Columns))
		for i, b := range schema.Columns {
			names[i] = b.Name
		}
		return names
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, describeSelectItem(item))
	}
	return names
}

func describeSelectItem(item ast.SelectItem) string {
	if item.Star {
		return "*"
	}
	switch v := item.Expr.(type) {
	case *ast.QualifiedName:
		if v.Qualifier != "" {
			return v.Qualifier + "." + v.Name
		}
		return v.Name
	case *ast.AggExpr:
		arg := "*"
		if !v.Star {
			arg = v.Arg.Name
		}
		return v.Func + "(" + arg + ")"
	default:
		return ""
	}
}

func projectRow(items []ast.SelectItem, r *Row) ([]Value, error) {
	if len(items) == 1 && items[0].Star {
		return r.Values, nil
	}
	out := make([]Value, 0, len(items))
	for _, item := range items {
		switch v := item.Expr.(type) {
		case *ast.QualifiedName:
			val, err := r.ResolveValue(v)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		case *ast.AggExpr:
			// Aggregates are materialized into r.Values ahead of time by
			// applyAggregation; see aggregate.go.
			val, err := r.ResolveValue(&ast.QualifiedName{Name: describeSelectItem(item)})
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
	}
	return out, nil
}
