// Package miniql is the embedded SQL façade: it opens a transactional
// key-value store and catalog, parses and executes statements against
// them, and exposes the programmatic interface a driving process uses
// (execute, explicit transactions, checkpoint/flush/close, and basic
// catalog introspection).
package miniql

import (
	"sync"
	"time"

	"github.com/nainya/miniql/catalog"
	"github.com/nainya/miniql/internal/logger"
	"github.com/nainya/miniql/internal/obs"
	"github.com/nainya/miniql/sql/ast"
	"github.com/nainya/miniql/sql/exec"
	"github.com/nainya/miniql/sql/parser"
	"github.com/nainya/miniql/storage"
)

// DB is a single open database: one transactional store, one catalog
// layered over it, and one executor wired to both.
type DB struct {
	store   *storage.Store
	catalog *catalog.Catalog
	exec    *exec.Executor
	log     *logger.Logger
	metrics *obs.Metrics
}

// Config controls how Open builds a DB.
type Config struct {
	// DataPath and WalPath name the page file and the write-ahead log.
	// If WalPath is empty it defaults to DataPath + ".wal".
	DataPath string
	WalPath  string

	// BufferFrames sizes the buffer pool, in pages. Defaults to 256.
	BufferFrames int

	Logger  *logger.Logger
	Metrics *obs.Metrics
}

// defaultMetrics is the metric set shared by every DB opened without
// Config.Metrics; obs.New registers its collectors on the process-wide
// default registry, which accepts each collector only once.
var (
	defaultMetricsOnce sync.Once
	defaultMetrics     *obs.Metrics
)

// Open opens (creating if absent) the database at cfg.DataPath, replaying
// any committed transactions an unclean shutdown left in the WAL.
func Open(cfg Config) (*DB, error) {
	if cfg.WalPath == "" {
		cfg.WalPath = cfg.DataPath + ".wal"
	}
	if cfg.BufferFrames <= 0 {
		cfg.BufferFrames = 256
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Global()
	}
	if cfg.Metrics == nil {
		defaultMetricsOnce.Do(func() { defaultMetrics = obs.New() })
		cfg.Metrics = defaultMetrics
	}

	store, err := storage.Open(storage.Config{
		DataPath:     cfg.DataPath,
		WalPath:      cfg.WalPath,
		BufferFrames: cfg.BufferFrames,
		Logger:       cfg.Logger,
		Metrics:      cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}

	cat := catalog.New(store)
	return &DB{
		store:   store,
		catalog: cat,
		exec:    exec.New(store, cat, cfg.Logger),
		log:     cfg.Logger,
		metrics: cfg.Metrics,
	}, nil
}

// Execute parses and runs one SQL statement. SELECT and EXPLAIN return a
// populated *exec.Result; every other statement returns nil.
func (db *DB) Execute(sql string) (*exec.Result, error) {
	start := time.Now()
	stmt, err := parser.Parse(sql)
	if err != nil {
		db.log.QueryLogger("parse_error").LogQuery(sql, time.Since(start), err)
		if db.metrics != nil {
			db.metrics.RecordQuery("parse_error", "error", time.Since(start))
		}
		return nil, err
	}

	res, err := db.exec.Execute(stmt)
	db.log.LogQuery(sql, time.Since(start), err)
	if db.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		db.metrics.RecordQuery(statementKind(stmt), status, time.Since(start))
	}
	return res, err
}

func statementKind(stmt ast.Statement) string {
	switch stmt.(type) {
	case *ast.Explain:
		return "explain"
	case *ast.CreateTable:
		return "create_table"
	case *ast.DropTable:
		return "drop_table"
	case *ast.AlterTableAddColumn:
		return "alter_table"
	case *ast.CreateIndex:
		return "create_index"
	case *ast.DropIndex:
		return "drop_index"
	case *ast.Insert:
		return "insert"
	case *ast.Select:
		return "select"
	case *ast.Update:
		return "update"
	case *ast.Delete:
		return "delete"
	default:
		return "unknown"
	}
}

// BeginTransaction starts an explicit transaction and returns its ID.
func (db *DB) BeginTransaction() (uint64, error) {
	return db.store.BeginTransaction()
}

// CommitTransaction commits the transaction started by BeginTransaction.
func (db *DB) CommitTransaction(txnID uint64) error {
	return db.store.Commit(txnID)
}

// AbortTransaction rolls back the transaction started by BeginTransaction.
func (db *DB) AbortTransaction(txnID uint64) error {
	return db.store.Abort(txnID)
}

// Checkpoint flushes all dirty pages and truncates the WAL.
func (db *DB) Checkpoint() error {
	return db.store.Checkpoint()
}

// Flush fsyncs the buffer pool's dirty pages without truncating the WAL.
func (db *DB) Flush() error {
	return db.store.Flush()
}

// Close releases every resource Open acquired.
func (db *DB) Close() error {
	return db.store.Close()
}

// ListTables returns every live table name, sorted.
func (db *DB) ListTables() ([]string, error) {
	return db.catalog.ListTables()
}

// TableDescription is one table's schema and indexes, for introspection.
type TableDescription struct {
	Name    string
	Columns []catalog.Column
	Indexes []catalog.Index
}

// DescribeTable returns table's declared columns and registered indexes.
func (db *DB) DescribeTable(table string) (*TableDescription, error) {
	cols, err := db.catalog.GetColumns(table)
	if err != nil {
		return nil, err
	}
	indexes, err := db.catalog.ListIndexes(table)
	if err != nil {
		return nil, err
	}
	return &TableDescription{Name: table, Columns: cols, Indexes: indexes}, nil
}

// ListIndexes returns every index registered on table, or every index in
// the database if table is empty.
func (db *DB) ListIndexes(table string) ([]catalog.Index, error) {
	return db.catalog.ListIndexes(table)
}
