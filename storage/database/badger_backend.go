package database

import (
	"github.com/dgraph-io/badger"
	"github.com/pkg/errors"
)

// badgerDatabase is the preferred backend: badger's Txn natively supports
// the atomic multi-table read/write the ledger's Process(txn, block) entry
// point requires, where LevelDB would need a hand-rolled batch plus a
// read-your-own-writes shim to do the same job.
type badgerDatabase struct {
	db  *badger.DB
	dir string
}

// NewBadgerDatabase opens (creating if absent) a badger store at dir.
func NewBadgerDatabase(dir string) (Database, error) {
	opts := badger.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "database: failed to open badger store")
	}
	logger.Info("Opened badger database", "dir", dir)
	return &badgerDatabase{db: db, dir: dir}, nil
}

func (d *badgerDatabase) Type() BackendType { return BackendBadger }

func (d *badgerDatabase) View(fn func(txn Txn) error) error {
	return d.db.View(func(t *badger.Txn) error {
		return fn(&badgerTxn{txn: t, writable: false})
	})
}

func (d *badgerDatabase) Update(fn func(txn Txn) error) error {
	return d.db.Update(func(t *badger.Txn) error {
		return fn(&badgerTxn{txn: t, writable: true})
	})
}

func (d *badgerDatabase) Close() error {
	if err := d.db.Close(); err != nil {
		return errors.Wrap(err, "database: failed to close badger store")
	}
	logger.Info("Closed badger database", "dir", d.dir)
	return nil
}

type badgerTxn struct {
	txn      *badger.Txn
	writable bool
}

func (t *badgerTxn) Writable() bool { return t.writable }

func (t *badgerTxn) Get(table Table, key []byte) ([]byte, error) {
	item, err := t.txn.Get(prefixedKey(table, key))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t *badgerTxn) Put(table Table, key, value []byte) error {
	if !t.writable {
		return ErrReadOnly{Table: table}
	}
	return t.txn.Set(prefixedKey(table, key), value)
}

func (t *badgerTxn) Delete(table Table, key []byte) error {
	if !t.writable {
		return ErrReadOnly{Table: table}
	}
	return t.txn.Delete(prefixedKey(table, key))
}

func (t *badgerTxn) Iterate(table Table, prefix []byte, fn func(key, value []byte) bool) error {
	opts := badger.DefaultIteratorOptions
	it := t.txn.NewIterator(opts)
	defer it.Close()

	full := prefixedKey(table, prefix)
	for it.Seek(full); it.ValidForPrefix(full); it.Next() {
		item := it.Item()
		v, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		k := item.KeyCopy(nil)[1:] // strip table prefix byte
		if !fn(k, v) {
			break
		}
	}
	return nil
}
