package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TxState is the lifecycle state of a Transaction.
type TxState int

const (
	TxActive TxState = iota
	TxCommitted
	TxRolledBack
)

func (s TxState) String() string {
	switch s {
	case TxActive:
		return "active"
	case TxCommitted:
		return "committed"
	case TxRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Transaction groups a batch of WAL rows that must become durable (or be
// discarded) atomically.
type Transaction struct {
	ID      string
	State   TxState
	Started time.Time
}

// Checkpoint marks a point in the WAL before which every row is known
// durable in the objects table, allowing TruncateBefore to reclaim log
// space.
type Checkpoint struct {
	ID        string
	Position  int64
	CreatedAt time.Time
}

// WAL is the write-ahead log guarding object-store durability, backed by
// sqlstore's `wal` table rather than a private log file: every Put/Delete
// appends a row here, and CommitTx/Flush mark it durable. Because the WAL
// row and the corresponding objects/object_index rows share the same
// *sql.DB, Database wraps both in one SQL transaction, so a crash between
// the WAL write and the object write — the gap a separate on-disk log
// exists to close — cannot happen: SQLite's own transaction durability
// closes it instead.
type WAL struct {
	db *sql.DB

	mu  sync.Mutex
	txs map[string]*Transaction
}

// OpenWAL wraps db for WAL bookkeeping. db is expected to already carry
// the schema sqlstore.Open creates.
func OpenWAL(db *sql.DB) *WAL {
	return &WAL{db: db, txs: make(map[string]*Transaction)}
}

// BeginTx starts a new transaction and returns its id.
func (w *WAL) BeginTx() *Transaction {
	w.mu.Lock()
	defer w.mu.Unlock()
	tx := &Transaction{ID: uuid.NewString(), State: TxActive, Started: timeNow()}
	w.txs[tx.ID] = tx
	return tx
}

// TxState reports the current state of txID, or (TxState(0), false) if
// unknown.
func (w *WAL) TxState(txID string) (TxState, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	tx, ok := w.txs[txID]
	if !ok {
		return 0, false
	}
	return tx.State, true
}

// Append inserts one unflushed WAL row for txID's operation, using exec
// as the statement executor so the caller can pass either db itself or
// an in-flight *sql.Tx to keep the WAL row and its paired object
// mutation in the same SQL transaction.
func (w *WAL) Append(exec interface {
	Exec(query string, args ...any) (sql.Result, error)
}, txID, operation string, payload []byte) (int64, error) {
	w.mu.Lock()
	tx, ok := w.txs[txID]
	w.mu.Unlock()
	if !ok || tx.State != TxActive {
		return 0, fmt.Errorf("store: append to non-active transaction %q", txID)
	}
	res, err := exec.Exec(`insert into wal(operation, payload, transaction_id, created_at, flushed) values (?, ?, ?, ?, 0)`,
		operation, payload, txID, timeNow().Unix())
	if err != nil {
		return 0, fmt.Errorf("store: append wal: %w", err)
	}
	return res.LastInsertId()
}

// CommitTx marks the transaction committed; its rows are already durable
// once the SQL transaction that wrote them commits.
func (w *WAL) CommitTx(txID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	tx, ok := w.txs[txID]
	if !ok || tx.State != TxActive {
		return fmt.Errorf("store: commit of non-active transaction %q", txID)
	}
	tx.State = TxCommitted
	return nil
}

// RollbackTx discards every WAL row written under txID.
func (w *WAL) RollbackTx(txID string) error {
	w.mu.Lock()
	tx, ok := w.txs[txID]
	if !ok || tx.State != TxActive {
		w.mu.Unlock()
		return fmt.Errorf("store: rollback of non-active transaction %q", txID)
	}
	tx.State = TxRolledBack
	w.mu.Unlock()
	_, err := w.db.Exec(`delete from wal where transaction_id = ?`, txID)
	return err
}

// Flush marks every currently-unflushed row durable and returns the count
// flushed.
func (w *WAL) Flush() (int, error) {
	res, err := w.db.Exec(`update wal set flushed = 1 where flushed = 0`)
	if err != nil {
		return 0, fmt.Errorf("store: flush wal: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// UnflushedCount reports how many rows have not yet been marked flushed.
func (w *WAL) UnflushedCount() (int, error) {
	var n int
	err := w.db.QueryRow(`select count(*) from wal where flushed = 0`).Scan(&n)
	return n, err
}

// CreateCheckpoint records a checkpoint at the current high-watermark WAL
// id.
func (w *WAL) CreateCheckpoint(meta string) (Checkpoint, error) {
	var pos int64
	if err := w.db.QueryRow(`select coalesce(max(id), 0) from wal`).Scan(&pos); err != nil {
		return Checkpoint{}, err
	}
	now := timeNow()
	res, err := w.db.Exec(`insert into wal_checkpoints(position, meta, created_at) values (?, ?, ?)`, pos, meta, now.Unix())
	if err != nil {
		return Checkpoint{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Checkpoint{}, err
	}
	return Checkpoint{ID: fmt.Sprintf("%d", id), Position: pos, CreatedAt: now}, nil
}

// LastCheckpoint returns the most recently created checkpoint, or false if
// none exists.
func (w *WAL) LastCheckpoint() (Checkpoint, bool, error) {
	var id int64
	var pos, createdAt int64
	err := w.db.QueryRow(`select id, position, created_at from wal_checkpoints order by id desc limit 1`).Scan(&id, &pos, &createdAt)
	if err == sql.ErrNoRows {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, err
	}
	return Checkpoint{ID: fmt.Sprintf("%d", id), Position: pos, CreatedAt: time.Unix(createdAt, 0)}, true, nil
}

// TruncateBefore deletes flushed WAL rows at or before position, never
// touching rows above it.
func (w *WAL) TruncateBefore(position int64) error {
	_, err := w.db.Exec(`delete from wal where id <= ? and flushed = 1`, position)
	return err
}

// Recover calls apply, in id order, for every WAL row that is still
// unflushed — exactly those a crash could have interrupted before this
// process restarted.
func (w *WAL) Recover(apply func(operation string, payload []byte, txID string) error) error {
	rows, err := w.db.Query(`select operation, payload, transaction_id from wal where flushed = 0 order by id asc`)
	if err != nil {
		return fmt.Errorf("store: recover wal: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var op string
		var payload []byte
		var txID string
		if err := rows.Scan(&op, &payload, &txID); err != nil {
			return err
		}
		if err := apply(op, payload, txID); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close is a no-op: the underlying *sql.DB is owned and closed by the
// repository that opened it, not by the WAL.
func (w *WAL) Close() error { return nil }
