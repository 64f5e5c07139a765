// Package kv adapts go.etcd.io/bbolt into the named-table,
// byte-key/byte-value, ACID-transaction capability the library index
// is built on. Each bbolt bucket is one spec "table"; bbolt's own
// single-writer MVCC model gives us the "snapshot readers, exclusive
// writer" semantics directly.
package kv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

// ErrTableNotExist is returned by read-side table lookups when the
// named table has never been created. Callers that treat "does not
// exist" as "empty" (the library reader) downgrade this explicitly;
// everything else should surface it.
var ErrTableNotExist = errors.New("kv: table does not exist")

// DB is an embedded, on-disk, transactional key-value store.
type DB struct {
	bolt *bbolt.DB
}

// Open creates or opens the database file at path, creating parent
// directories as needed.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("kv: create db dir: %w", err)
		}
	}
	b, err := bbolt.Open(path, 0o644, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("kv: open %s: %w", path, err)
	}
	return &DB{bolt: b}, nil
}

// Close releases the underlying file.
func (db *DB) Close() error {
	return db.bolt.Close()
}

// View runs fn inside a read-only snapshot transaction. Multiple
// readers may run concurrently with each other and with the writer.
func (db *DB) View(fn func(tx *ReadTx) error) error {
	return db.bolt.View(func(btx *bbolt.Tx) error {
		return fn(&ReadTx{tx: btx})
	})
}

// Update runs fn inside the single write transaction. On any error
// returned by fn, the transaction is rolled back and the database is
// left at its prior state; commit failures are surfaced as-is.
func (db *DB) Update(fn func(tx *WriteTx) error) error {
	return db.bolt.Update(func(btx *bbolt.Tx) error {
		return fn(&WriteTx{tx: btx})
	})
}

// ReadTx is a read-only snapshot transaction.
type ReadTx struct {
	tx *bbolt.Tx
}

// Table opens an existing table for reading. It returns
// ErrTableNotExist if the table was never created.
func (t *ReadTx) Table(name string) (*ReadTable, error) {
	b := t.tx.Bucket([]byte(name))
	if b == nil {
		return nil, fmt.Errorf("kv: open table %q: %w", name, ErrTableNotExist)
	}
	return &ReadTable{bucket: b}, nil
}

// WriteTx is the single exclusive write transaction.
type WriteTx struct {
	tx *bbolt.Tx
}

// Table opens (creating if necessary) a table for writing.
func (t *WriteTx) Table(name string) (*WriteTable, error) {
	b, err := t.tx.CreateBucketIfNotExists([]byte(name))
	if err != nil {
		return nil, fmt.Errorf("kv: open table %q: %w", name, err)
	}
	return &WriteTable{bucket: b}, nil
}

// DeleteTable truncates a table, recreating it empty. Non-meta tables
// are truncated this way at the start of a full scan.
func (t *WriteTx) DeleteTable(name string) error {
	if err := t.tx.DeleteBucket([]byte(name)); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
		return fmt.Errorf("kv: delete table %q: %w", name, err)
	}
	if _, err := t.tx.CreateBucketIfNotExists([]byte(name)); err != nil {
		return fmt.Errorf("kv: recreate table %q: %w", name, err)
	}
	return nil
}

// ReadTable is a read-only view of one table.
type ReadTable struct {
	bucket *bbolt.Bucket
}

// Get returns the value for key, or ok=false if absent.
func (rt *ReadTable) Get(key []byte) (value []byte, ok bool) {
	v := rt.bucket.Get(key)
	if v == nil {
		return nil, false
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true
}

// Len returns the number of entries in the table.
func (rt *ReadTable) Len() int {
	return rt.bucket.Stats().KeyN
}

// Range iterates keys in [start, end) lexicographic order, calling fn
// for each. A nil end means "to the end of the table". Iteration
// stops early if fn returns an error, and that error is returned.
func (rt *ReadTable) Range(start, end []byte, fn func(key, value []byte) error) error {
	c := rt.bucket.Cursor()
	for k, v := c.Seek(start); k != nil; k, v = c.Next() {
		if end != nil && bytesCompare(k, end) >= 0 {
			break
		}
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

// WriteTable is a writable view of one table within the write
// transaction.
type WriteTable struct {
	bucket *bbolt.Bucket
}

// Get returns the value for key, or ok=false if absent.
func (wt *WriteTable) Get(key []byte) (value []byte, ok bool) {
	v := wt.bucket.Get(key)
	if v == nil {
		return nil, false
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true
}

// Insert stores value under key, returning the previous value if any.
func (wt *WriteTable) Insert(key, value []byte) (prev []byte, existed bool, err error) {
	prev, existed = wt.Get(key)
	if err := wt.bucket.Put(key, value); err != nil {
		return nil, false, fmt.Errorf("kv: insert: %w", err)
	}
	return prev, existed, nil
}

// Remove deletes key, returning the previous value if any.
func (wt *WriteTable) Remove(key []byte) (prev []byte, existed bool, err error) {
	prev, existed = wt.Get(key)
	if !existed {
		return nil, false, nil
	}
	if err := wt.bucket.Delete(key); err != nil {
		return nil, false, fmt.Errorf("kv: remove: %w", err)
	}
	return prev, existed, nil
}

// Len returns the number of entries in the table.
func (wt *WriteTable) Len() int {
	return wt.bucket.Stats().KeyN
}

// Range iterates keys in [start, end) lexicographic order.
func (wt *WriteTable) Range(start, end []byte, fn func(key, value []byte) error) error {
	c := wt.bucket.Cursor()
	for k, v := c.Seek(start); k != nil; k, v = c.Next() {
		if end != nil && bytesCompare(k, end) >= 0 {
			break
		}
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

func bytesCompare(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
