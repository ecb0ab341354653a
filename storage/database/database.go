// Package database is the node's storage abstraction: a pluggable
// key/value backend exposed through read/write transactions, so the ledger
// can apply a block's account, pending and vote-weight changes atomically.
package database

import (
	"github.com/ravine-network/ravine/log"
)

var logger = log.NewModuleLogger(log.StorageDatabase)

// BackendType names which concrete engine backs a Database.
type BackendType string

const (
	BackendBadger   BackendType = "badger"
	BackendLevelDB  BackendType = "leveldb"
	BackendMemory   BackendType = "memory"
)

// Txn is a single read or read-write transaction. Badger's native
// View/Update transactions are the motivating implementation: the ledger's
// Process(txn, block) entry point needs every table write a block touches
// (accounts, pending, votes, blocks) to commit or fail together, which only
// a real transaction object can guarantee.
type Txn interface {
	Get(table Table, key []byte) ([]byte, error)
	Put(table Table, key, value []byte) error
	Delete(table Table, key []byte) error
	Iterate(table Table, prefix []byte, fn func(key, value []byte) bool) error

	// Writable reports whether this transaction accepts Put/Delete; the
	// ledger asserts on this before doing any mutation so a read-only
	// caller gets a clear error instead of a silent no-op.
	Writable() bool
}

// Database is the backend-agnostic store. View opens a read-only
// transaction, Update opens a read-write one and commits it if fn returns
// nil, rolling back otherwise.
type Database interface {
	Type() BackendType
	View(fn func(txn Txn) error) error
	Update(fn func(txn Txn) error) error
	Close() error
}

// ErrReadOnly is returned by a read-only Txn's Put/Delete.
type ErrReadOnly struct{ Table Table }

func (e ErrReadOnly) Error() string {
	return "database: write attempted on read-only transaction (table " + string(e.Table) + ")"
}
