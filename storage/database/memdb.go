package database

import (
	"bytes"
	"sync"
)

// memDatabase is an in-process backend with no atomicity beyond a single
// mutex; it exists purely for unit tests that want a Database without
// touching disk, following the corpus's own convention of a MemoryDB
// backend alongside the real engines.
type memDatabase struct {
	mu   sync.Mutex
	data map[Table]map[string][]byte
}

func NewMemDatabase() Database {
	d := &memDatabase{data: make(map[Table]map[string][]byte)}
	return d
}

func (d *memDatabase) Type() BackendType { return BackendMemory }

func (d *memDatabase) View(fn func(txn Txn) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn(&memTxn{db: d, writable: false})
}

func (d *memDatabase) Update(fn func(txn Txn) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn(&memTxn{db: d, writable: true})
}

func (d *memDatabase) Close() error { return nil }

type memTxn struct {
	db       *memDatabase
	writable bool
}

func (t *memTxn) Writable() bool { return t.writable }

func (t *memTxn) Get(table Table, key []byte) ([]byte, error) {
	tbl, ok := t.db.data[table]
	if !ok {
		return nil, nil
	}
	v, ok := tbl[string(key)]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (t *memTxn) Put(table Table, key, value []byte) error {
	if !t.writable {
		return ErrReadOnly{Table: table}
	}
	tbl, ok := t.db.data[table]
	if !ok {
		tbl = make(map[string][]byte)
		t.db.data[table] = tbl
	}
	tbl[string(key)] = append([]byte(nil), value...)
	return nil
}

func (t *memTxn) Delete(table Table, key []byte) error {
	if !t.writable {
		return ErrReadOnly{Table: table}
	}
	if tbl, ok := t.db.data[table]; ok {
		delete(tbl, string(key))
	}
	return nil
}

func (t *memTxn) Iterate(table Table, prefix []byte, fn func(key, value []byte) bool) error {
	tbl, ok := t.db.data[table]
	if !ok {
		return nil
	}
	for k, v := range tbl {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if !fn([]byte(k), v) {
			break
		}
	}
	return nil
}
