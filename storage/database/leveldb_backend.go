package database

import (
	"bytes"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"
	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// leveldbDatabase is the secondary backend, kept for operators who already
// have a LevelDB-based datadir from the legacy ecosystem tooling. LevelDB
// has no native multi-key transaction, so Update buffers writes into a
// batch and an overlay map (for read-your-own-writes within the same
// transaction) and commits the batch only once fn returns nil.
type leveldbDatabase struct {
	db   *leveldb.DB
	path string

	compTimeMeter  metrics.Meter
	diskReadMeter  metrics.Meter
	diskWriteMeter metrics.Meter

	quitLock sync.Mutex
	quitChan chan chan error
}

func getLevelDBOptions(cacheSizeMB, numHandles int) *opt.Options {
	if cacheSizeMB < 16 {
		cacheSizeMB = 16
	}
	if numHandles < 16 {
		numHandles = 16
	}
	return &opt.Options{
		OpenFilesCacheCapacity: numHandles,
		BlockCacheCapacity:     cacheSizeMB / 2 * opt.MiB,
		WriteBuffer:            cacheSizeMB / 4 * opt.MiB,
	}
}

// NewLevelDBDatabase opens (recovering from corruption if needed) a LevelDB
// store at path, mirroring the corpus's own recover-on-open convention.
func NewLevelDBDatabase(path string, cacheSizeMB, numHandles int) (Database, error) {
	db, err := leveldb.OpenFile(path, getLevelDBOptions(cacheSizeMB, numHandles))
	if _, corrupted := err.(*lerrors.ErrCorrupted); corrupted {
		logger.Warn("Recovering corrupted leveldb store", "path", path)
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, errors.Wrap(err, "database: failed to open leveldb store")
	}
	ld := &leveldbDatabase{db: db, path: path}
	ld.meter("ravine/db/leveldb/")
	logger.Info("Opened leveldb database", "path", path)
	return ld, nil
}

func (d *leveldbDatabase) Type() BackendType { return BackendLevelDB }

func (d *leveldbDatabase) meter(prefix string) {
	d.compTimeMeter = metrics.NewRegisteredMeter(prefix+"compaction/time", nil)
	d.diskReadMeter = metrics.NewRegisteredMeter(prefix+"disk/read", nil)
	d.diskWriteMeter = metrics.NewRegisteredMeter(prefix+"disk/write", nil)

	if !metrics.Enabled {
		return
	}
	d.quitLock.Lock()
	d.quitChan = make(chan chan error)
	d.quitLock.Unlock()
	go d.collect(3 * time.Second)
}

func (d *leveldbDatabase) collect(refresh time.Duration) {
	s := new(leveldb.DBStats)
	var prevRead, prevWrite uint64
	var errc chan error
	var merr error
	for {
		merr = d.db.Stats(s)
		if merr != nil {
			break
		}
		d.diskReadMeter.Mark(int64(s.IORead - prevRead))
		d.diskWriteMeter.Mark(int64(s.IOWrite - prevWrite))
		prevRead, prevWrite = s.IORead, s.IOWrite

		select {
		case errc = <-d.quitChan:
			goto done
		case <-time.After(refresh):
		}
	}
done:
	if errc == nil {
		errc = <-d.quitChan
	}
	errc <- merr
}

func (d *leveldbDatabase) View(fn func(txn Txn) error) error {
	snap, err := d.db.GetSnapshot()
	if err != nil {
		return errors.Wrap(err, "database: failed to snapshot leveldb store")
	}
	defer snap.Release()
	return fn(&leveldbTxn{snap: snap, writable: false})
}

func (d *leveldbDatabase) Update(fn func(txn Txn) error) error {
	snap, err := d.db.GetSnapshot()
	if err != nil {
		return errors.Wrap(err, "database: failed to snapshot leveldb store")
	}
	defer snap.Release()

	t := &leveldbTxn{
		snap:     snap,
		writable: true,
		batch:    new(leveldb.Batch),
		overlay:  make(map[string][]byte),
		deleted:  make(map[string]bool),
	}
	if err := fn(t); err != nil {
		return err
	}
	return d.db.Write(t.batch, nil)
}

func (d *leveldbDatabase) Close() error {
	d.quitLock.Lock()
	defer d.quitLock.Unlock()
	if d.quitChan != nil {
		errc := make(chan error)
		d.quitChan <- errc
		<-errc
		d.quitChan = nil
	}
	if err := d.db.Close(); err != nil {
		return errors.Wrap(err, "database: failed to close leveldb store")
	}
	logger.Info("Closed leveldb database", "path", d.path)
	return nil
}

type leveldbTxn struct {
	snap     *leveldb.Snapshot
	writable bool
	batch    *leveldb.Batch
	overlay  map[string][]byte
	deleted  map[string]bool
}

func (t *leveldbTxn) Writable() bool { return t.writable }

func (t *leveldbTxn) Get(table Table, key []byte) ([]byte, error) {
	full := prefixedKey(table, key)
	if t.writable {
		k := string(full)
		if t.deleted[k] {
			return nil, nil
		}
		if v, ok := t.overlay[k]; ok {
			return v, nil
		}
	}
	v, err := t.snap.Get(full, nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

func (t *leveldbTxn) Put(table Table, key, value []byte) error {
	if !t.writable {
		return ErrReadOnly{Table: table}
	}
	full := prefixedKey(table, key)
	t.batch.Put(full, value)
	t.overlay[string(full)] = value
	delete(t.deleted, string(full))
	return nil
}

func (t *leveldbTxn) Delete(table Table, key []byte) error {
	if !t.writable {
		return ErrReadOnly{Table: table}
	}
	full := prefixedKey(table, key)
	t.batch.Delete(full)
	t.deleted[string(full)] = true
	delete(t.overlay, string(full))
	return nil
}

func (t *leveldbTxn) Iterate(table Table, prefix []byte, fn func(key, value []byte) bool) error {
	full := prefixedKey(table, prefix)
	it := t.snap.NewIterator(util.BytesPrefix(full), nil)
	defer it.Release()
	for it.Next() {
		k := append([]byte(nil), it.Key()...)
		v := append([]byte(nil), it.Value()...)
		if t.writable && t.deleted[string(k)] {
			continue
		}
		if !fn(bytes.TrimPrefix(k, full[:1]), v) {
			return it.Error()
		}
	}
	return it.Error()
}
