package exec

import (
	"github.com/nainya/miniql/internal/dberr"
	"github.com/nainya/miniql/sql/ast"
)

// ColumnBinding names one ordinal position of a Schema: which base table
// (and optional alias) it came from, and its column name.
type ColumnBinding struct {
	Table string
	Alias string
	Name  string
}

// Schema binds row ordinals to column names for one or more joined tables.
// It is built once per query (by the executor) and shared by every Row
// produced for that query, rather than recomputed per row.
type Schema struct {
	Columns []ColumnBinding
}

// Row is one materialized row: a fixed-width value slice positioned
// according to the query's Schema.
type Row struct {
	Schema *Schema
	Values []Value
}

// Get returns the value at ordinal i.
func (r *Row) Get(i int) Value { return r.Values[i] }

// Resolve finds the ordinal qn refers to within r's schema, applying the
// same ambiguity rule the executor's join path uses: an unqualified name
// that matches more than one binding is rejected, even when a qualified or
// alias-qualified form of the same name would resolve cleanly.
func (s *Schema) Resolve(qn *ast.QualifiedName) (int, error) {
	if qn.Qualifier != "" {
		for i, b := range s.Columns {
			if (b.Table == qn.Qualifier || b.Alias == qn.Qualifier) && b.Name == qn.Name {
				return i, nil
			}
		}
		return -1, dberr.Newf(dberr.SchemaFailure, "column %q not found", qn.Qualifier+"."+qn.Name)
	}

	match := -1
	for i, b := range s.Columns {
		if b.Name == qn.Name {
			if match != -1 {
				return -1, dberr.Newf(dberr.AmbiguousColumn, "column %q is ambiguous", qn.Name)
			}
			match = i
		}
	}
	if match == -1 {
		return -1, dberr.Newf(dberr.SchemaFailure, "column %q not found", qn.Name)
	}
	return match, nil
}

// ResolveValue resolves qn against r and returns its value.
func (r *Row) ResolveValue(qn *ast.QualifiedName) (Value, error) {
	i, err := r.Schema.Resolve(qn)
	if err != nil {
		return NullValue, err
	}
	return r.Values[i], nil
}

// joinSchema concatenates a left and right table's bindings into one
// combined schema, as the nested-loop join path does before evaluating ON.
func joinSchema(left, right []ColumnBinding) *Schema {
	combined := make([]ColumnBinding, 0, len(left)+len(right))
	combined = append(combined, left...)
	combined = append(combined, right...)
	return &Schema{Columns: combined}
}
