// Package catalog is a thin layer of persistent metadata over the
// transactional store: tables, columns, indexes and statistics, each
// encoded as a row under a reserved key prefix.
package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nainya/miniql/internal/dberr"
	"github.com/nainya/miniql/storage"
)

const (
	tablesPrefix  = "__catalog__tables:"
	columnsPrefix = "__catalog__columns:"
	indexesPrefix = "__catalog__indexes:"
	statsPrefix   = "__catalog__stats:"
	rowidPrefix   = "__catalog__rowid__:"

	// deleted is the sentinel value written over a dropped metadata row.
	// The catalog never physically deletes a key.
	deleted = "DELETED"
)

// ColType is a declared SQL column type.
type ColType string

const (
	TypeInt   ColType = "INT"
	TypeFloat ColType = "FLOAT"
	TypeText  ColType = "TEXT"
)

// Column describes one column of a table.
type Column struct {
	Name    string
	Type    ColType
	Ordinal int
}

// Index describes a registered secondary index.
type Index struct {
	Name   string
	Table  string
	Column string
}

// Catalog layers table/column/index/statistics metadata over a
// transactional key-value store.
type Catalog struct {
	engine Engine
}

// Engine is the transactional-store surface the catalog reads and writes
// through. *storage.Store satisfies it.
type Engine interface {
	Insert(key, val []byte) error
	Get(key []byte) ([]byte, error)
	RangeScan(lo, hi []byte) ([]storage.KV, error)
}

// New creates a catalog over engine.
func New(engine Engine) *Catalog {
	return &Catalog{engine: engine}
}

func tableKey(name string) string   { return tablesPrefix + name }
func columnKey(table, col string) string { return columnsPrefix + table + ":" + col }
func columnPrefix(table string) string   { return columnsPrefix + table + ":" }
func indexKey(name string) string   { return indexesPrefix + name }
func statsKey(table string) string  { return statsPrefix + table }
func rowidKey(table string) string  { return rowidPrefix + table }

// RowKey builds the storage key for row rowid of table.
func RowKey(table string, rowid uint64) string {
	return fmt.Sprintf("%s:%020d", table, rowid)
}

// RowPrefixBounds returns the inclusive [lo, hi] range covering every row
// of table, excluding catalog keys.
func RowPrefixBounds(table string) (lo, hi string) {
	return table + ":" + strings.Repeat("0", 20), table + ":" + strings.Repeat("9", 20)
}

// CreateTable registers a new table and its columns.
func (c *Catalog) CreateTable(table string, cols []Column) error {
	if c.TableExists(table) {
		return dberr.Newf(dberr.SchemaFailure, "table %q already exists", table)
	}

	if err := c.engine.Insert([]byte(tableKey(table)), []byte(fmt.Sprintf("columns=%d", len(cols)))); err != nil {
		return err
	}
	for i, col := range cols {
		val := fmt.Sprintf("type=%s,ordinal=%d", col.Type, i)
		if err := c.engine.Insert([]byte(columnKey(table, col.Name)), []byte(val)); err != nil {
			return err
		}
	}
	return nil
}

// DropTable marks a table and its columns as deleted.
func (c *Catalog) DropTable(table string) error {
	if !c.TableExists(table) {
		return dberr.Newf(dberr.SchemaFailure, "table %q does not exist", table)
	}

	lo, hi := columnPrefix(table), columnPrefix(table)+"~"
	rows, err := c.engine.RangeScan([]byte(lo), []byte(hi))
	if err != nil {
		return err
	}
	for _, row := range rows {
		if string(row.Value) != deleted {
			if err := c.engine.Insert(row.Key, []byte(deleted)); err != nil {
				return err
			}
		}
	}

	return c.engine.Insert([]byte(tableKey(table)), []byte(deleted))
}

// TableExists reports whether table is a live (non-dropped) table.
func (c *Catalog) TableExists(table string) bool {
	key := tableKey(table)
	rows, err := c.engine.RangeScan([]byte(key), []byte(key+"~"))
	if err != nil {
		return false
	}
	for _, row := range rows {
		if string(row.Key) == key && string(row.Value) != deleted {
			return true
		}
	}
	return false
}

// ListTables returns every live table name, sorted.
func (c *Catalog) ListTables() ([]string, error) {
	rows, err := c.engine.RangeScan([]byte(tablesPrefix), []byte(tablesPrefix+"~"))
	if err != nil {
		return nil, err
	}
	var tables []string
	for _, row := range rows {
		if string(row.Value) == deleted {
			continue
		}
		tables = append(tables, strings.TrimPrefix(string(row.Key), tablesPrefix))
	}
	sort.Strings(tables)
	return tables, nil
}

// GetColumns returns table's columns in declared (ordinal) order.
func (c *Catalog) GetColumns(table string) ([]Column, error) {
	if !c.TableExists(table) {
		return nil, dberr.Newf(dberr.SchemaFailure, "table %q does not exist", table)
	}

	lo, hi := columnPrefix(table), columnPrefix(table)+"~"
	rows, err := c.engine.RangeScan([]byte(lo), []byte(hi))
	if err != nil {
		return nil, err
	}

	cols := make([]Column, 0, len(rows))
	for _, row := range rows {
		if string(row.Value) == deleted {
			continue
		}
		meta := parseKV(string(row.Value))
		ordinal, err := strconv.Atoi(meta["ordinal"])
		if err != nil {
			return nil, dberr.Wrap(dberr.SchemaFailure, "parse column ordinal", err)
		}
		name := string(row.Key)
		if idx := strings.LastIndex(name, ":"); idx >= 0 {
			name = name[idx+1:]
		}
		cols = append(cols, Column{Name: name, Type: ColType(meta["type"]), Ordinal: ordinal})
	}

	sort.Slice(cols, func(i, j int) bool { return cols[i].Ordinal < cols[j].Ordinal })
	return cols, nil
}

// AddColumn appends a column to an existing table (ALTER TABLE ADD COLUMN).
func (c *Catalog) AddColumn(table string, col Column) error {
	if !c.TableExists(table) {
		return dberr.Newf(dberr.SchemaFailure, "table %q does not exist", table)
	}

	current, err := c.GetColumns(table)
	if err != nil {
		return err
	}
	ordinal := len(current)

	val := fmt.Sprintf("type=%s,ordinal=%d", col.Type, ordinal)
	if err := c.engine.Insert([]byte(columnKey(table, col.Name)), []byte(val)); err != nil {
		return err
	}
	return c.engine.Insert([]byte(tableKey(table)), []byte(fmt.Sprintf("columns=%d", ordinal+1)))
}

// CreateIndex registers a secondary index over table.column.
func (c *Catalog) CreateIndex(name, table, column string) error {
	if !c.TableExists(table) {
		return dberr.Newf(dberr.SchemaFailure, "table %q does not exist", table)
	}
	cols, err := c.GetColumns(table)
	if err != nil {
		return err
	}
	found := false
	for _, col := range cols {
		if col.Name == column {
			found = true
			break
		}
	}
	if !found {
		return dberr.Newf(dberr.SchemaFailure, "column %q does not exist in table %q", column, table)
	}

	val := fmt.Sprintf("table=%s,column=%s", table, column)
	return c.engine.Insert([]byte(indexKey(name)), []byte(val))
}

// DropIndex marks an index as deleted.
func (c *Catalog) DropIndex(name string) error {
	if _, err := c.engine.Get([]byte(indexKey(name))); err != nil {
		return dberr.Newf(dberr.SchemaFailure, "index %q does not exist", name)
	}
	return c.engine.Insert([]byte(indexKey(name)), []byte(deleted))
}

// ListIndexes returns every live index, optionally filtered to one table.
func (c *Catalog) ListIndexes(table string) ([]Index, error) {
	rows, err := c.engine.RangeScan([]byte(indexesPrefix), []byte(indexesPrefix+"~"))
	if err != nil {
		return nil, err
	}

	var indexes []Index
	for _, row := range rows {
		if string(row.Value) == deleted {
			continue
		}
		meta := parseKV(string(row.Value))
		if table != "" && meta["table"] != table {
			continue
		}
		indexes = append(indexes, Index{
			Name:   strings.TrimPrefix(string(row.Key), indexesPrefix),
			Table:  meta["table"],
			Column: meta["column"],
		})
	}
	return indexes, nil
}

// NextRowid returns the next unused rowid for table, persisting the
// updated counter so concurrent or rapid-fire INSERTs into the same table
// never collide the way a nanosecond clock read can.
func (c *Catalog) NextRowid(table string) (uint64, error) {
	key := []byte(rowidKey(table))
	var next uint64
	if val, err := c.engine.Get(key); err == nil {
		if n, err := strconv.ParseUint(string(val), 10, 64); err == nil {
			next = n
		}
	}
	next++
	if err := c.engine.Insert(key, []byte(strconv.FormatUint(next, 10))); err != nil {
		return 0, err
	}
	return next, nil
}

// UpdateStats writes the row-count statistic for table.
func (c *Catalog) UpdateStats(table string, rowCount int) error {
	return c.engine.Insert([]byte(statsKey(table)), []byte(fmt.Sprintf("rows=%d", rowCount)))
}

// GetStats returns table's row-count statistic, or zero if never recorded.
func (c *Catalog) GetStats(table string) (rowCount int, ok bool) {
	val, err := c.engine.Get([]byte(statsKey(table)))
	if err != nil {
		return 0, false
	}
	meta := parseKV(string(val))
	n, err := strconv.Atoi(meta["rows"])
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseKV parses "a=1,b=2" into a map.
func parseKV(s string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 2 {
			out[kv[0]] = kv[1]
		}
	}
	return out
}
