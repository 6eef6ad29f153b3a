package exec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nainya/miniql/catalog"
	"github.com/nainya/miniql/sql/parser"
	"github.com/nainya/miniql/storage"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	dir, err := os.MkdirTemp("", "exec-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	s, err := storage.Open(storage.Config{
		DataPath:     filepath.Join(dir, "test.db"),
		WalPath:      filepath.Join(dir, "test.db.wal"),
		BufferFrames: 16,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	return New(s, catalog.New(s), nil)
}

func mustExec(t *testing.T, e *Executor, sql string) *Result {
	t.Helper()
	stmt, err := parser.Parse(sql)
	if err != nil {
		t.Fatalf("parse %q: %v", sql, err)
	}
	res, err := e.Execute(stmt)
	if err != nil {
		t.Fatalf("execute %q: %v", sql, err)
	}
	return res
}

func setupUsers(t *testing.T, e *Executor) {
	t.Helper()
	mustExec(t, e, "CREATE TABLE users (id INT, name TEXT, age INT)")
	mustExec(t, e, "INSERT INTO users VALUES (1, 'alice', 30)")
	mustExec(t, e, "INSERT INTO users VALUES (2, 'bob', 25)")
	mustExec(t, e, "INSERT INTO users VALUES (3, 'carol', 40)")
}

func TestCreateTableAndInsertSelect(t *testing.T) {
	e := newTestExecutor(t)
	setupUsers(t, e)

	res := mustExec(t, e, "SELECT * FROM users")
	if len(res.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(res.Rows))
	}
	if len(res.Columns) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(res.Columns))
	}
}

func TestSelectWithWhere(t *testing.T) {
	e := newTestExecutor(t)
	setupUsers(t, e)

	res := mustExec(t, e, "SELECT name FROM users WHERE age > 28")
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(res.Rows))
	}
}

func TestSelectProjectsQualifiedColumn(t *testing.T) {
	e := newTestExecutor(t)
	setupUsers(t, e)

	res := mustExec(t, e, "SELECT users.name FROM users WHERE users.id = 2")
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(res.Rows))
	}
	if res.Rows[0][0].S != "bob" {
		t.Fatalf("expected bob, got %+v", res.Rows[0][0])
	}
}

func TestInsertColumnCountMismatchFails(t *testing.T) {
	e := newTestExecutor(t)
	mustExec(t, e, "CREATE TABLE t (a INT)")

	stmt, err := parser.Parse("INSERT INTO t VALUES (1, 2)")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := e.Execute(stmt); err == nil {
		t.Fatal("expected column count mismatch error")
	}
}

func TestUpdateModifiesMatchingRows(t *testing.T) {
	e := newTestExecutor(t)
	setupUsers(t, e)

	mustExec(t, e, "UPDATE users SET age = 99 WHERE name = 'bob'")

	res := mustExec(t, e, "SELECT age FROM users WHERE name = 'bob'")
	if len(res.Rows) != 1 || res.Rows[0][0].I != 99 {
		t.Fatalf("expected updated age 99, got %+v", res.Rows)
	}
	// unrelated rows untouched
	res = mustExec(t, e, "SELECT age FROM users WHERE name = 'alice'")
	if len(res.Rows) != 1 || res.Rows[0][0].I != 30 {
		t.Fatalf("expected alice age unchanged, got %+v", res.Rows)
	}
}

func TestDeleteTombstonesMatchingRows(t *testing.T) {
	e := newTestExecutor(t)
	setupUsers(t, e)

	mustExec(t, e, "DELETE FROM users WHERE name = 'carol'")

	res := mustExec(t, e, "SELECT * FROM users")
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows after delete, got %d", len(res.Rows))
	}
	for _, row := range res.Rows {
		if row[1].S == "carol" {
			t.Fatal("deleted row still visible")
		}
	}
}

func TestJoinAmbiguousUnqualifiedColumnRejected(t *testing.T) {
	e := newTestExecutor(t)
	mustExec(t, e, "CREATE TABLE a (id INT, name TEXT)")
	mustExec(t, e, "CREATE TABLE b (id INT, name TEXT)")
	mustExec(t, e, "INSERT INTO a VALUES (1, 'x')")
	mustExec(t, e, "INSERT INTO b VALUES (1, 'y')")

	stmt, err := parser.Parse("SELECT name FROM a JOIN b ON a.id = b.id")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := e.Execute(stmt); err == nil {
		t.Fatal("expected ambiguous column error")
	}
}

func TestJoinQualifiedColumnsResolve(t *testing.T) {
	e := newTestExecutor(t)
	mustExec(t, e, "CREATE TABLE orders (id INT, uid INT, amount INT)")
	mustExec(t, e, "CREATE TABLE users (id INT, name TEXT)")
	mustExec(t, e, "INSERT INTO users VALUES (1, 'alice')")
	mustExec(t, e, "INSERT INTO orders VALUES (1, 1, 50)")
	mustExec(t, e, "INSERT INTO orders VALUES (2, 1, 75)")

	res := mustExec(t, e, "SELECT users.name, orders.amount FROM orders JOIN users ON orders.uid = users.id")
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 joined rows, got %d", len(res.Rows))
	}
	for _, row := range res.Rows {
		if row[0].S != "alice" {
			t.Fatalf("expected alice, got %+v", row)
		}
	}
}

func TestJoinWithTableAliasesResolvesQualifiedColumns(t *testing.T) {
	e := newTestExecutor(t)
	mustExec(t, e, "CREATE TABLE users (id INT, name TEXT)")
	mustExec(t, e, "CREATE TABLE orders (id INT, user_id INT, product TEXT)")
	mustExec(t, e, "INSERT INTO users VALUES (1, 'alice')")
	mustExec(t, e, "INSERT INTO orders VALUES (1, 1, 'widget')")
	mustExec(t, e, "INSERT INTO orders VALUES (2, 1, 'gadget')")

	res := mustExec(t, e, "SELECT u.name, o.product FROM users u INNER JOIN orders o ON u.id = o.user_id")
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 joined rows, got %d", len(res.Rows))
	}
	for _, row := range res.Rows {
		if row[0].S != "alice" {
			t.Fatalf("expected alice, got %+v", row)
		}
	}
}

func TestJoinWithTableAliasesRejectsAmbiguousColumn(t *testing.T) {
	e := newTestExecutor(t)
	mustExec(t, e, "CREATE TABLE users (id INT, name TEXT)")
	mustExec(t, e, "CREATE TABLE orders (id INT, user_id INT, name TEXT)")
	mustExec(t, e, "INSERT INTO users VALUES (1, 'alice')")
	mustExec(t, e, "INSERT INTO orders VALUES (1, 1, 'widget')")

	stmt, err := parser.Parse("SELECT name FROM users u INNER JOIN orders o ON u.id = o.user_id")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := e.Execute(stmt); err == nil {
		t.Fatal("expected ambiguous column error")
	}
}

func TestGroupByCountAggregate(t *testing.T) {
	e := newTestExecutor(t)
	mustExec(t, e, "CREATE TABLE orders (id INT, uid INT, amount INT)")
	mustExec(t, e, "INSERT INTO orders VALUES (1, 1, 10)")
	mustExec(t, e, "INSERT INTO orders VALUES (2, 1, 20)")
	mustExec(t, e, "INSERT INTO orders VALUES (3, 2, 30)")

	res := mustExec(t, e, "SELECT uid, COUNT(*) FROM orders GROUP BY uid")
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(res.Rows))
	}
}

func TestOrderByAndLimit(t *testing.T) {
	e := newTestExecutor(t)
	setupUsers(t, e)

	res := mustExec(t, e, "SELECT name FROM users ORDER BY age LIMIT 1")
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(res.Rows))
	}
	if res.Rows[0][0].S != "bob" {
		t.Fatalf("expected youngest user bob first, got %+v", res.Rows[0])
	}
}

func TestCreateIndexBackfillsExistingRows(t *testing.T) {
	e := newTestExecutor(t)
	setupUsers(t, e)

	mustExec(t, e, "CREATE INDEX idx_age ON users (age)")

	res := mustExec(t, e, "SELECT name FROM users WHERE age = 25")
	if len(res.Rows) != 1 || res.Rows[0][0].S != "bob" {
		t.Fatalf("expected bob via indexed lookup, got %+v", res.Rows)
	}
}

func TestInsertMaintainsIndexForNewRows(t *testing.T) {
	e := newTestExecutor(t)
	setupUsers(t, e)
	mustExec(t, e, "CREATE INDEX idx_age ON users (age)")

	mustExec(t, e, "INSERT INTO users VALUES (4, 'dave', 25)")

	res := mustExec(t, e, "SELECT name FROM users WHERE age = 25")
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows with age 25, got %d", len(res.Rows))
	}
}

func TestUpdateMaintainsIndexEntries(t *testing.T) {
	e := newTestExecutor(t)
	setupUsers(t, e)
	mustExec(t, e, "CREATE INDEX idx_age ON users (age)")

	mustExec(t, e, "UPDATE users SET age = 99 WHERE name = 'bob'")

	res := mustExec(t, e, "SELECT name FROM users WHERE age = 25")
	if len(res.Rows) != 0 {
		t.Fatalf("expected no rows left at the old indexed age, got %+v", res.Rows)
	}

	res = mustExec(t, e, "SELECT name FROM users WHERE age = 99")
	if len(res.Rows) != 1 || res.Rows[0][0].S != "bob" {
		t.Fatalf("expected bob via the updated index entry, got %+v", res.Rows)
	}
}

func TestDeleteRemovesIndexEntries(t *testing.T) {
	e := newTestExecutor(t)
	setupUsers(t, e)
	mustExec(t, e, "CREATE INDEX idx_age ON users (age)")

	mustExec(t, e, "DELETE FROM users WHERE name = 'bob'")

	res := mustExec(t, e, "SELECT name FROM users WHERE age = 25")
	if len(res.Rows) != 0 {
		t.Fatalf("expected the index entry for the deleted row to be gone, got %+v", res.Rows)
	}
}

func TestExplainRendersPlanText(t *testing.T) {
	e := newTestExecutor(t)
	setupUsers(t, e)

	res := mustExec(t, e, "EXPLAIN SELECT * FROM users WHERE age > 10")
	if res.Explain == "" {
		t.Fatal("expected non-empty explain output")
	}
}

func TestDropTableRemovesFromCatalog(t *testing.T) {
	e := newTestExecutor(t)
	mustExec(t, e, "CREATE TABLE gone (id INT)")
	mustExec(t, e, "DROP TABLE gone")

	stmt, err := parser.Parse("INSERT INTO gone VALUES (1)")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := e.Execute(stmt); err == nil {
		t.Fatal("expected insert into dropped table to fail")
	}
}

func TestAlterTableAddColumnDefaultsNull(t *testing.T) {
	e := newTestExecutor(t)
	mustExec(t, e, "CREATE TABLE t (a INT)")
	mustExec(t, e, "INSERT INTO t VALUES (1)")
	mustExec(t, e, "ALTER TABLE t ADD COLUMN b TEXT")

	res := mustExec(t, e, "SELECT * FROM t")
	if len(res.Rows) != 1 || len(res.Rows[0]) != 2 {
		t.Fatalf("expected padded row with 2 columns, got %+v", res.Rows)
	}
	if res.Rows[0][1] != NullValue {
		t.Fatalf("expected null default for new column, got %+v", res.Rows[0][1])
	}
}
