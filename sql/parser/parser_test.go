package parser

import (
	"testing"

	"github.com/nainya/miniql/sql/ast"
)

func TestParseCreateTable(t *testing.T) {
	stmt, err := Parse("CREATE TABLE users (id INT, name TEXT, balance FLOAT)")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ct, ok := stmt.(*ast.CreateTable)
	if !ok {
		t.Fatalf("got %T, want *ast.CreateTable", stmt)
	}
	if ct.Table != "users" || len(ct.Columns) != 3 {
		t.Fatalf("unexpected CreateTable: %+v", ct)
	}
	if ct.Columns[0].Type != ast.TypeInt || ct.Columns[1].Type != ast.TypeText || ct.Columns[2].Type != ast.TypeFloat {
		t.Errorf("unexpected column types: %+v", ct.Columns)
	}
}

func TestParseCreateIndex(t *testing.T) {
	stmt, err := Parse("CREATE INDEX idx_name ON users (name)")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ci, ok := stmt.(*ast.CreateIndex)
	if !ok {
		t.Fatalf("got %T, want *ast.CreateIndex", stmt)
	}
	if ci.Index != "idx_name" || ci.Table != "users" || ci.Column != "name" {
		t.Errorf("unexpected CreateIndex: %+v", ci)
	}
}

func TestParseDropTableAndIndex(t *testing.T) {
	stmt, err := Parse("DROP TABLE users")
	if err != nil {
		t.Fatal(err)
	}
	if dt, ok := stmt.(*ast.DropTable); !ok || dt.Table != "users" {
		t.Errorf("unexpected DropTable: %+v", stmt)
	}

	stmt, err = Parse("DROP INDEX idx_name")
	if err != nil {
		t.Fatal(err)
	}
	if di, ok := stmt.(*ast.DropIndex); !ok || di.Index != "idx_name" {
		t.Errorf("unexpected DropIndex: %+v", stmt)
	}
}

func TestParseAlterTableAddColumn(t *testing.T) {
	stmt, err := Parse("ALTER TABLE users ADD COLUMN age INT")
	if err != nil {
		t.Fatal(err)
	}
	alt, ok := stmt.(*ast.AlterTableAddColumn)
	if !ok {
		t.Fatalf("got %T", stmt)
	}
	if alt.Table != "users" || alt.Column.Name != "age" || alt.Column.Type != ast.TypeInt {
		t.Errorf("unexpected AlterTableAddColumn: %+v", alt)
	}
}

func TestParseInsert(t *testing.T) {
	stmt, err := Parse("INSERT INTO users VALUES (1, 'Alice', 99.5)")
	if err != nil {
		t.Fatal(err)
	}
	ins, ok := stmt.(*ast.Insert)
	if !ok {
		t.Fatalf("got %T", stmt)
	}
	if ins.Table != "users" || len(ins.Values) != 3 {
		t.Fatalf("unexpected Insert: %+v", ins)
	}
	lit0 := ins.Values[0].(*ast.Literal)
	if lit0.Kind != "NUMBER" || lit0.Val != "1" {
		t.Errorf("value 0 = %+v", lit0)
	}
	lit1 := ins.Values[1].(*ast.Literal)
	if lit1.Kind != "STRING" || lit1.Val != "Alice" {
		t.Errorf("value 1 = %+v", lit1)
	}
}

func TestParseSelectStar(t *testing.T) {
	stmt, err := Parse("SELECT * FROM users WHERE id = 1")
	if err != nil {
		t.Fatal(err)
	}
	sel, ok := stmt.(*ast.Select)
	if !ok {
		t.Fatalf("got %T", stmt)
	}
	if len(sel.Items) != 1 || !sel.Items[0].Star {
		t.Fatalf("unexpected select list: %+v", sel.Items)
	}
	where, ok := sel.Where.(*ast.BinaryExpr)
	if !ok || where.Op != "=" {
		t.Fatalf("unexpected WHERE: %+v", sel.Where)
	}
}

func TestParseSelectWithJoinGroupByOrderByLimit(t *testing.T) {
	sql := "SELECT uid, COUNT(*) FROM orders JOIN users ON orders.uid = users.id " +
		"WHERE orders.amount > 10 GROUP BY uid HAVING uid > 1 ORDER BY uid LIMIT 5"
	stmt, err := Parse(sql)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sel := stmt.(*ast.Select)
	if sel.From != "orders" {
		t.Errorf("From = %q, want orders", sel.From)
	}
	if sel.Join == nil || sel.Join.Table != "users" || sel.Join.Kind != ast.Inner {
		t.Fatalf("unexpected Join: %+v", sel.Join)
	}
	if len(sel.GroupBy) != 1 || sel.GroupBy[0] != "uid" {
		t.Errorf("GroupBy = %+v, want [uid]", sel.GroupBy)
	}
	if sel.Having == nil {
		t.Error("expected HAVING clause")
	}
	if sel.OrderBy != "uid" {
		t.Errorf("OrderBy = %q, want uid", sel.OrderBy)
	}
	if sel.Limit == nil || *sel.Limit != 5 {
		t.Errorf("Limit = %v, want 5", sel.Limit)
	}
}

func TestParseSelectWithBareAndAsAliases(t *testing.T) {
	stmt, err := Parse("SELECT u.name, o.product FROM users u INNER JOIN orders AS o ON u.id = o.user_id")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sel := stmt.(*ast.Select)
	if sel.FromAlias != "u" {
		t.Errorf("FromAlias = %q, want u", sel.FromAlias)
	}
	if sel.Join == nil || sel.Join.Alias != "o" {
		t.Fatalf("unexpected Join: %+v", sel.Join)
	}
}

func TestParseSelectWithoutAliasLeavesFromAliasEmpty(t *testing.T) {
	stmt, err := Parse("SELECT * FROM users WHERE id = 1")
	if err != nil {
		t.Fatal(err)
	}
	sel := stmt.(*ast.Select)
	if sel.FromAlias != "" {
		t.Errorf("FromAlias = %q, want empty", sel.FromAlias)
	}
}

func TestParseUpdate(t *testing.T) {
	stmt, err := Parse("UPDATE users SET name = 'Bob', balance = 10 WHERE id = 1")
	if err != nil {
		t.Fatal(err)
	}
	upd, ok := stmt.(*ast.Update)
	if !ok {
		t.Fatalf("got %T", stmt)
	}
	if upd.Table != "users" || len(upd.Assignments) != 2 {
		t.Fatalf("unexpected Update: %+v", upd)
	}
	if upd.Where == nil {
		t.Error("expected WHERE clause")
	}
}

func TestParseDelete(t *testing.T) {
	stmt, err := Parse("DELETE FROM users WHERE id = 1")
	if err != nil {
		t.Fatal(err)
	}
	del, ok := stmt.(*ast.Delete)
	if !ok {
		t.Fatalf("got %T", stmt)
	}
	if del.Table != "users" || del.Where == nil {
		t.Fatalf("unexpected Delete: %+v", del)
	}
}

func TestParseExplainSelect(t *testing.T) {
	stmt, err := Parse("EXPLAIN SELECT * FROM users")
	if err != nil {
		t.Fatal(err)
	}
	ex, ok := stmt.(*ast.Explain)
	if !ok {
		t.Fatalf("got %T", stmt)
	}
	if ex.Stmt.From != "users" {
		t.Errorf("unexpected Explain.Stmt: %+v", ex.Stmt)
	}
}

func TestParseRejectsMalformedInput(t *testing.T) {
	cases := []string{
		"SELECT FROM users",
		"CREATE TABLE (id INT)",
		"INSERT INTO users VALUES (1,",
		"SELEC * FROM users",
	}
	for _, sql := range cases {
		if _, err := Parse(sql); err == nil {
			t.Errorf("Parse(%q) = nil error, want parse failure", sql)
		}
	}
}

func TestParseAndOrPrecedence(t *testing.T) {
	stmt, err := Parse("SELECT * FROM t WHERE a = 1 AND b = 2 OR c = 3")
	if err != nil {
		t.Fatal(err)
	}
	sel := stmt.(*ast.Select)
	top, ok := sel.Where.(*ast.BinaryExpr)
	if !ok || top.Op != "OR" {
		t.Fatalf("top-level op = %+v, want OR", sel.Where)
	}
	left, ok := top.Left.(*ast.BinaryExpr)
	if !ok || left.Op != "AND" {
		t.Fatalf("left of OR = %+v, want AND", top.Left)
	}
}
