// Package storage combines the B-tree, buffer pool, page manager and
// write-ahead log into a single transactional key-value API: insert, get,
// delete, range_scan, explicit transactions, checkpoint and flush.
package storage

import (
	"bytes"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nainya/miniql/internal/bufpool"
	"github.com/nainya/miniql/internal/btree"
	"github.com/nainya/miniql/internal/dberr"
	"github.com/nainya/miniql/internal/logger"
	"github.com/nainya/miniql/internal/obs"
	"github.com/nainya/miniql/internal/page"
	"github.com/nainya/miniql/internal/pager"
	"github.com/nainya/miniql/internal/wal"
)

// KV is a single live key-value pair returned from a range scan.
type KV struct {
	Key   []byte
	Value []byte
}

// txn tracks the single in-flight transaction's undo log. Undo entries
// carry the tagged (possibly tombstoned) raw bytes that were in the tree
// before this transaction touched the key, so abort can restore them
// exactly without a second WAL record.
type txn struct {
	id   uint64
	undo []undoEntry
}

type undoEntry struct {
	key     []byte
	existed bool
	raw     []byte
}

// Store is the transactional key-value store. At most one transaction may
// be in flight at a time.
type Store struct {
	mu sync.Mutex

	path   string
	pager  *pager.Pager
	pool   *bufpool.Pool
	tree   *btree.BTree
	log    *wal.WAL
	rec    *wal.Recovery
	logger *logger.Logger
	metrics *obs.Metrics

	nextTxnID uint64
	active    *txn
}

// Config controls how a Store is opened.
type Config struct {
	DataPath      string // path to the page file
	WalPath       string // path to the WAL file
	BufferFrames  int    // buffer pool capacity, in pages
	Logger        *logger.Logger
	Metrics       *obs.Metrics
}

// Open opens the data and WAL files at the given paths, recovering any
// committed transactions left by an unclean shutdown.
func Open(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = logger.Global()
	}
	slog := cfg.Logger.StorageLogger()

	pgr, err := pager.Open(cfg.DataPath, slog)
	if err != nil {
		return nil, err
	}

	pool := bufpool.New(pgr, cfg.BufferFrames, slog, cfg.Metrics)

	w := &wal.WAL{Path: cfg.WalPath}
	if err := w.Open(); err != nil {
		pgr.Close()
		return nil, dberr.Wrap(dberr.StorageFailure, "open WAL", err)
	}

	s := &Store{
		path:    cfg.DataPath,
		pager:   pgr,
		pool:    pool,
		log:     w,
		rec:     wal.NewRecovery(w),
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}

	s.tree = &btree.BTree{}
	s.tree.SetCallbacks(s.getPage, s.newPage, s.delPage)
	s.tree.SetRoot(uint64(pgr.RootPageID()))

	if err := s.recover(); err != nil {
		pgr.Close()
		w.Close()
		return nil, err
	}

	// Transaction IDs are not persisted. Every transaction's begin record
	// carries an LSN no smaller than its ID, so seeding the counter past the
	// WAL's highest LSN keeps new IDs clear of every ID still in the log.
	s.nextTxnID = s.log.NextLSN()

	return s, nil
}

// recover replays every committed mutation found in the WAL into the
// B-tree, per the engine's crash recovery protocol, and logs a summary of
// what it found so an operator can tell a clean start from a real replay.
func (s *Store) recover() error {
	stats, err := s.rec.RecoverWithStats(func(op wal.OpType, key, value []byte) error {
		switch op {
		case wal.OpInsert:
			s.tree.Insert(key, value)
		case wal.OpDelete:
			s.tree.Insert(key, value) // value already carries the tombstone tag
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.StorageLogger().Info("WAL recovery complete").
		Int("committed_txns", stats.CommittedTxns).
		Int("uncommitted_txns", stats.UncommittedTxns).
		Int("replayed_ops", stats.ReplayedOperations).
		Uint64("last_checkpoint_lsn", stats.LastCheckpointLSN).
		Send()
	return nil
}

// getPage fetches a page's payload by ID, copying it out so the caller may
// hold the slice beyond the fetch's pin.
func (s *Store) getPage(ptr uint64) []byte {
	pg, err := s.pool.Fetch(page.ID(ptr))
	if err != nil {
		panic(err)
	}
	buf := make([]byte, len(pg.Payload))
	copy(buf, pg.Payload)
	s.pool.Unpin(page.ID(ptr))
	return buf
}

// newPage allocates a fresh page, writes buf into its payload and returns
// the new page ID.
func (s *Store) newPage(buf []byte) uint64 {
	kind := page.KindLeaf
	if btree.BNode(buf).BType() == btree.BNODE_NODE {
		kind = page.KindInternal
	}
	pg, err := s.pool.NewPage(kind)
	if err != nil {
		panic(err)
	}
	copy(pg.Payload, buf)
	s.pool.MarkDirty(pg.ID)
	s.pool.Unpin(pg.ID)
	return uint64(pg.ID)
}

// delPage is a no-op: pages are reclaimed only by truncation, which this
// engine does not implement.
func (s *Store) delPage(ptr uint64) {}

// withRecover turns a panic from the get/new/del page callbacks into a
// StorageFailure, since the B-tree's callback signatures carry no error
// return.
func withRecover(err *error) {
	if r := recover(); r != nil {
		if e, ok := r.(error); ok {
			*err = dberr.Wrap(dberr.StorageFailure, "page access", e)
		} else {
			*err = dberr.Newf(dberr.StorageFailure, "page access: %v", r)
		}
	}
}

// BeginTransaction starts the single in-flight transaction and returns its
// ID.
func (s *Store) BeginTransaction() (txnID uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		return 0, dberr.New(dberr.TransactionFailure, "a transaction is already in flight")
	}

	id := atomic.AddUint64(&s.nextTxnID, 1)
	entry := wal.Entry{LSN: s.log.NextLSN(), TxnID: id, OpType: wal.OpBegin, Timestamp: time.Now()}
	if err := s.log.Write(entry); err != nil {
		return 0, dberr.Wrap(dberr.StorageFailure, "write begin record", err)
	}

	s.active = &txn{id: id}
	return id, nil
}

func (s *Store) requireActive(txnID uint64) error {
	if s.active == nil || s.active.id != txnID {
		return dberr.Newf(dberr.TransactionFailure, "no active transaction %d", txnID)
	}
	return nil
}

// InsertTxn logs and applies an insert within txnID.
func (s *Store) InsertTxn(txnID uint64, key, val []byte) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer withRecover(&err)

	if err := s.requireActive(txnID); err != nil {
		return err
	}

	raw, existed := s.tree.Get(key)
	s.active.undo = append(s.active.undo, undoEntry{key: append([]byte(nil), key...), existed: existed, raw: raw})

	tagged := encodeLive(val)
	entry := wal.Entry{LSN: s.log.NextLSN(), TxnID: txnID, OpType: wal.OpInsert, Key: key, Value: tagged, Timestamp: time.Now()}
	if err := s.log.Write(entry); err != nil {
		return dberr.Wrap(dberr.StorageFailure, "write insert record", err)
	}

	s.tree.Insert(key, tagged)
	if s.metrics != nil {
		s.metrics.WalAppendsTotal.Inc()
		s.metrics.WalBytesWritten.Add(float64(entry.Size()))
	}
	return nil
}

// DeleteTxn logs and applies a tombstoning delete within txnID.
func (s *Store) DeleteTxn(txnID uint64, key []byte) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer withRecover(&err)

	if err := s.requireActive(txnID); err != nil {
		return err
	}

	raw, existed := s.tree.Get(key)
	s.active.undo = append(s.active.undo, undoEntry{key: append([]byte(nil), key...), existed: existed, raw: raw})

	tombstone := encodeTombstone()
	entry := wal.Entry{LSN: s.log.NextLSN(), TxnID: txnID, OpType: wal.OpDelete, Key: key, Value: tombstone, Timestamp: time.Now()}
	if err := s.log.Write(entry); err != nil {
		return dberr.Wrap(dberr.StorageFailure, "write delete record", err)
	}

	s.tree.Insert(key, tombstone)
	if s.metrics != nil {
		s.metrics.WalAppendsTotal.Inc()
		s.metrics.WalBytesWritten.Add(float64(entry.Size()))
	}
	return nil
}

// Commit appends and fsyncs a commit record. Only once Fsync returns does
// the transaction become durable.
func (s *Store) Commit(txnID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActive(txnID); err != nil {
		return err
	}

	entry := wal.Entry{LSN: s.log.NextLSN(), TxnID: txnID, OpType: wal.OpCommit, Timestamp: time.Now()}
	if err := s.log.Write(entry); err != nil {
		return dberr.Wrap(dberr.StorageFailure, "write commit record", err)
	}
	if err := s.log.Fsync(); err != nil {
		return dberr.Wrap(dberr.StorageFailure, "fsync commit record", err)
	}

	if s.metrics != nil {
		s.metrics.TxnCommitsTotal.Inc()
	}
	s.active = nil
	return nil
}

// Abort reverses every mutation txnID applied, by re-inserting each key's
// pre-image, then appends an abort record.
func (s *Store) Abort(txnID uint64) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer withRecover(&err)

	if err := s.requireActive(txnID); err != nil {
		return err
	}

	for i := len(s.active.undo) - 1; i >= 0; i-- {
		u := s.active.undo[i]
		if u.existed {
			s.tree.Insert(u.key, u.raw)
		} else {
			s.tree.Insert(u.key, encodeTombstone())
		}
	}

	entry := wal.Entry{LSN: s.log.NextLSN(), TxnID: txnID, OpType: wal.OpAbort, Timestamp: time.Now()}
	if err := s.log.Write(entry); err != nil {
		return dberr.Wrap(dberr.StorageFailure, "write abort record", err)
	}

	if s.metrics != nil {
		s.metrics.TxnAbortsTotal.Inc()
	}
	s.active = nil
	return nil
}

// Insert performs an auto-commit insert: begin, insert, commit.
func (s *Store) Insert(key, val []byte) error {
	id, err := s.BeginTransaction()
	if err != nil {
		return err
	}
	if err := s.InsertTxn(id, key, val); err != nil {
		s.Abort(id)
		return err
	}
	return s.Commit(id)
}

// Delete performs an auto-commit tombstoning delete.
func (s *Store) Delete(key []byte) error {
	id, err := s.BeginTransaction()
	if err != nil {
		return err
	}
	if err := s.DeleteTxn(id, key); err != nil {
		s.Abort(id)
		return err
	}
	return s.Commit(id)
}

// Get returns the live value for key, or dberr.ErrKeyNotFound if it is
// absent or tombstoned.
func (s *Store) Get(key []byte) (val []byte, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer withRecover(&err)

	raw, ok := s.tree.Get(key)
	if !ok {
		return nil, dberr.ErrKeyNotFound
	}
	v, live := decodeValue(raw)
	if !live {
		return nil, dberr.ErrKeyNotFound
	}
	return v, nil
}

// RangeScan returns every live key-value pair with lo <= key <= hi, sorted
// ascending. The range is inclusive on both ends.
func (s *Store) RangeScan(lo, hi []byte) (rows []KV, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer withRecover(&err)

	s.tree.Scan(lo, func(k, raw []byte) bool {
		if bytes.Compare(k, hi) > 0 {
			return false
		}
		if v, live := decodeValue(raw); live {
			rows = append(rows, KV{Key: append([]byte(nil), k...), Value: v})
		}
		return true
	})
	return rows, nil
}

// Checkpoint flushes the buffer pool, syncs the data file, appends and
// syncs a checkpoint record, then truncates the WAL.
func (s *Store) Checkpoint() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.pool.FlushAll(); err != nil {
		return err
	}
	if err := s.pager.SetRootPageID(page.ID(s.tree.GetRoot())); err != nil {
		return err
	}
	if err := s.pager.Sync(); err != nil {
		return err
	}

	entry := wal.Entry{LSN: s.log.NextLSN(), TxnID: 0, OpType: wal.OpCheckpoint, Timestamp: time.Now()}
	if err := s.log.Write(entry); err != nil {
		return dberr.Wrap(dberr.StorageFailure, "write checkpoint record", err)
	}
	if err := s.log.Fsync(); err != nil {
		return dberr.Wrap(dberr.StorageFailure, "fsync checkpoint record", err)
	}
	if err := s.log.Truncate(); err != nil {
		return dberr.Wrap(dberr.StorageFailure, "truncate WAL", err)
	}

	if s.metrics != nil {
		s.metrics.CheckpointsTotal.Inc()
	}
	return nil
}

// Flush writes every dirty buffer pool frame to disk without touching the
// WAL.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.pool.FlushAll(); err != nil {
		return err
	}
	return s.pager.SetRootPageID(page.ID(s.tree.GetRoot()))
}

// Close flushes and releases the underlying files.
func (s *Store) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.log.Close(); err != nil {
		return err
	}
	return s.pager.Close()
}
