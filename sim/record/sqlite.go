// Package record persists dispatch exchanges to a SQLite database so that a
// run can be inspected after the fact.
package record

import (
	"database/sql"
	"fmt"
	"sync"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/inference-sim/pagesim/sim/trace"
)

const createExchangeTable = `
CREATE TABLE IF NOT EXISTS exchanges (
	seq          INTEGER PRIMARY KEY,
	clock_ns     INTEGER NOT NULL,
	worker       INTEGER NOT NULL,
	page         INTEGER NOT NULL,
	address      INTEGER NOT NULL,
	kind         TEXT    NOT NULL,
	frame        INTEGER NOT NULL,
	victim_owner INTEGER NOT NULL,
	victim_page  INTEGER NOT NULL,
	wrote_back   INTEGER NOT NULL,
	cost_ns      INTEGER NOT NULL
)`

const insertExchange = `
INSERT INTO exchanges
	(seq, clock_ns, worker, page, address, kind, frame, victim_owner, victim_page, wrote_back, cost_ns)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// DefaultBatchSize is the number of records buffered before a flush.
const DefaultBatchSize = 10000

// DefaultPath returns a fresh database file name for a run.
func DefaultPath() string {
	return "pagesim_" + xid.New().String() + ".sqlite3"
}

// SQLiteRecorder buffers exchange records and writes them in transactions.
type SQLiteRecorder struct {
	mu        sync.Mutex
	db        *sql.DB
	statement *sql.Stmt
	path      string
	pending   []trace.ExchangeRecord
	batchSize int
	closed    bool
}

// NewSQLiteRecorder opens (or creates) the database at path. The recorder is
// also registered with atexit so that a fatal exit still flushes it.
func NewSQLiteRecorder(path string, batchSize int) (*SQLiteRecorder, error) {
	if path == "" {
		path = DefaultPath()
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening recording database %s: %w", path, err)
	}
	if _, err := db.Exec(createExchangeTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating exchanges table: %w", err)
	}
	stmt, err := db.Prepare(insertExchange)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing insert: %w", err)
	}
	r := &SQLiteRecorder{
		db:        db,
		statement: stmt,
		path:      path,
		batchSize: batchSize,
	}
	atexit.Register(func() { _ = r.Close() })
	return r, nil
}

// Path returns the database file name.
func (r *SQLiteRecorder) Path() string {
	return r.path
}

// Record buffers rec, flushing when the batch is full.
func (r *SQLiteRecorder) Record(rec trace.ExchangeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("record exchange %d: recorder closed", rec.Seq)
	}
	r.pending = append(r.pending, rec)
	if len(r.pending) >= r.batchSize {
		return r.flushLocked()
	}
	return nil
}

// Flush writes every buffered record in one transaction.
func (r *SQLiteRecorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	return r.flushLocked()
}

func (r *SQLiteRecorder) flushLocked() error {
	if len(r.pending) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	stmt := tx.Stmt(r.statement)
	for _, rec := range r.pending {
		_, err := stmt.Exec(rec.Seq, rec.Clock, rec.Worker, rec.Page, rec.Address, rec.Kind,
			rec.Frame, rec.VictimOwner, rec.VictimPage, rec.WroteBack, rec.CostNs)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("inserting exchange %d: %w", rec.Seq, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing exchanges: %w", err)
	}
	r.pending = nil
	return nil
}

// Close flushes and releases the database. Safe to call more than once.
func (r *SQLiteRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	flushErr := r.flushLocked()
	r.closed = true
	r.statement.Close()
	if err := r.db.Close(); err != nil && flushErr == nil {
		return fmt.Errorf("closing recording database: %w", err)
	}
	return flushErr
}

// Count returns the number of persisted exchanges.
func (r *SQLiteRecorder) Count() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM exchanges").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting exchanges: %w", err)
	}
	return n, nil
}
