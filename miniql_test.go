package miniql

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nainya/miniql/sql/exec"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dir, err := os.MkdirTemp("", "miniql-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	db, err := Open(Config{
		DataPath:     filepath.Join(dir, "test.db"),
		BufferFrames: 16,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustExecute(t *testing.T, db *DB, sql string) *exec.Result {
	t.Helper()
	res, err := db.Execute(sql)
	if err != nil {
		t.Fatalf("execute %q: %v", sql, err)
	}
	return res
}

func TestOpenCreateInsertSelect(t *testing.T) {
	db := newTestDB(t)

	if _, err := db.Execute("CREATE TABLE widgets (id INT, name TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := db.Execute("INSERT INTO widgets VALUES (1, 'gizmo')"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	res, err := db.Execute("SELECT * FROM widgets")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(res.Rows))
	}
}

func TestListTablesAndDescribeTable(t *testing.T) {
	db := newTestDB(t)
	mustExecute(t, db, "CREATE TABLE widgets (id INT, name TEXT)")
	mustExecute(t, db, "CREATE INDEX idx_name ON widgets (name)")

	tables, err := db.ListTables()
	if err != nil {
		t.Fatalf("list tables: %v", err)
	}
	if len(tables) != 1 || tables[0] != "widgets" {
		t.Fatalf("expected [widgets], got %v", tables)
	}

	desc, err := db.DescribeTable("widgets")
	if err != nil {
		t.Fatalf("describe table: %v", err)
	}
	if len(desc.Columns) != 2 {
		t.Fatalf("expected 2 columns, got %d", len(desc.Columns))
	}
	if len(desc.Indexes) != 1 || desc.Indexes[0].Name != "idx_name" {
		t.Fatalf("expected idx_name, got %+v", desc.Indexes)
	}
}

func TestExplicitTransactionCommit(t *testing.T) {
	db := newTestDB(t)

	txnID, err := db.BeginTransaction()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := db.CommitTransaction(txnID); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestExplicitTransactionAbort(t *testing.T) {
	db := newTestDB(t)

	txnID, err := db.BeginTransaction()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := db.AbortTransaction(txnID); err != nil {
		t.Fatalf("abort: %v", err)
	}
}

func TestCheckpointAndFlush(t *testing.T) {
	db := newTestDB(t)
	mustExecute(t, db, "CREATE TABLE t (a INT)")
	mustExecute(t, db, "INSERT INTO t VALUES (1)")

	if err := db.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := db.Checkpoint(); err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
}

func TestExplainReturnsPlanText(t *testing.T) {
	db := newTestDB(t)
	mustExecute(t, db, "CREATE TABLE t (a INT)")
	mustExecute(t, db, "INSERT INTO t VALUES (1)")

	res, err := db.Execute("EXPLAIN SELECT * FROM t WHERE a > 0")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if res.Explain == "" {
		t.Fatal("expected non-empty explain text")
	}
}
