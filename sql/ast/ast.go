// Package ast defines the abstract syntax produced by sql/parser for every
// statement the engine's SQL dialect accepts.
package ast

// Statement is any top-level SQL statement.
type Statement interface {
	statementNode()
}

// Expr is any expression node: a literal, a qualified name, a binary
// operator application, or an aggregate call.
type Expr interface {
	exprNode()
}

// ColType is a column type name from a column definition.
type ColType string

const (
	TypeInt   ColType = "INT"
	TypeFloat ColType = "FLOAT"
	TypeText  ColType = "TEXT"
)

// ColumnDef is one column of a CREATE TABLE or ALTER TABLE ADD COLUMN.
type ColumnDef struct {
	Name string
	Type ColType
}

// Explain wraps a Select for plan-only execution.
type Explain struct {
	Stmt *Select
}

func (*Explain) statementNode() {}

// CreateTable is `CREATE TABLE name (col_def, ...)`.
type CreateTable struct {
	Table   string
	Columns []ColumnDef
}

func (*CreateTable) statementNode() {}

// CreateIndex is `CREATE INDEX name ON table (column)`.
type CreateIndex struct {
	Index  string
	Table  string
	Column string
}

func (*CreateIndex) statementNode() {}

// DropTable is `DROP TABLE name`.
type DropTable struct {
	Table string
}

func (*DropTable) statementNode() {}

// DropIndex is `DROP INDEX name`.
type DropIndex struct {
	Index string
}

func (*DropIndex) statementNode() {}

// AlterTableAddColumn is `ALTER TABLE name ADD COLUMN col_def`.
type AlterTableAddColumn struct {
	Table  string
	Column ColumnDef
}

func (*AlterTableAddColumn) statementNode() {}

// Insert is `INSERT INTO name VALUES (literal, ...)`.
type Insert struct {
	Table  string
	Values []Expr
}

func (*Insert) statementNode() {}

// Assignment is one `name = literal` pair of an UPDATE's SET clause.
type Assignment struct {
	Column string
	Value  Expr
}

// Update is `UPDATE name SET name = literal, ... [WHERE expr]`.
type Update struct {
	Table       string
	Assignments []Assignment
	Where       Expr
}

func (*Update) statementNode() {}

// Delete is `DELETE FROM name [WHERE expr]`.
type Delete struct {
	Table string
	Where Expr
}

func (*Delete) statementNode() {}

// JoinKind distinguishes the three parsed join flavors. Left/Right are
// accepted by the grammar but executed with Inner semantics.
type JoinKind int

const (
	NoJoin JoinKind = iota
	Inner
	Left
	Right
)

// Join describes a single `[INNER|LEFT|RIGHT] JOIN name [AS alias] ON expr`
// clause.
type Join struct {
	Kind  JoinKind
	Table string
	Alias string // "" when absent
	On    Expr
}

// SelectItem is one entry of a select_list: either a bare/aggregate column
// expression, or `*`.
type SelectItem struct {
	Star bool
	Expr Expr // nil when Star is true
}

// Select is a full SELECT statement.
type Select struct {
	Items     []SelectItem
	From      string
	FromAlias string // "" when absent
	Join      *Join  // nil when there is no join clause
	Where     Expr
	GroupBy   []string
	Having    Expr
	OrderBy   string // "" when absent
	Limit     *int   // nil when absent
}

func (*Select) statementNode() {}

// Literal is a constant value: a string, a number (kept as text and parsed
// lazily by the executor/value layer), or nil for an unrecognized literal.
type Literal struct {
	// Kind is one of "STRING" or "NUMBER", matching the originating token.
	Kind string
	Val  string
}

func (*Literal) exprNode() {}

// QualifiedName is `name` or `name.name` (table/alias-qualified column).
type QualifiedName struct {
	Qualifier string // "" when unqualified
	Name      string
}

func (*QualifiedName) exprNode() {}

// BinaryExpr is `left op right`, where op is one of
// "=", "!=", "<", ">", "<=", ">=", "AND", "OR".
type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
}

func (*BinaryExpr) exprNode() {}

// AggExpr is an aggregate call: COUNT(*), COUNT(col), SUM(col), AVG(col),
// MIN(col), MAX(col).
type AggExpr struct {
	Func string // "COUNT", "SUM", "AVG", "MIN", "MAX"
	Star bool
	Arg  *QualifiedName // nil when Star is true
}

func (*AggExpr) exprNode() {}
