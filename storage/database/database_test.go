package database

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemDatabasePutGetDelete(t *testing.T) {
	db := NewMemDatabase()
	defer db.Close()

	err := db.Update(func(txn Txn) error {
		return txn.Put(TableBlocks, []byte("k1"), []byte("v1"))
	})
	require.NoError(t, err)

	err = db.View(func(txn Txn) error {
		v, err := txn.Get(TableBlocks, []byte("k1"))
		require.NoError(t, err)
		require.Equal(t, []byte("v1"), v)
		return nil
	})
	require.NoError(t, err)

	err = db.Update(func(txn Txn) error {
		return txn.Delete(TableBlocks, []byte("k1"))
	})
	require.NoError(t, err)

	err = db.View(func(txn Txn) error {
		v, err := txn.Get(TableBlocks, []byte("k1"))
		require.NoError(t, err)
		require.Nil(t, v)
		return nil
	})
	require.NoError(t, err)
}

func TestMemDatabaseReadOnlyRejectsWrite(t *testing.T) {
	db := NewMemDatabase()
	defer db.Close()

	err := db.View(func(txn Txn) error {
		require.False(t, txn.Writable())
		return txn.Put(TableBlocks, []byte("k"), []byte("v"))
	})
	require.Error(t, err)
}

func TestMemDatabaseIteratePrefix(t *testing.T) {
	db := NewMemDatabase()
	defer db.Close()

	err := db.Update(func(txn Txn) error {
		require.NoError(t, txn.Put(TableUnchecked, append([]byte("dep1"), 'a'), []byte("x")))
		require.NoError(t, txn.Put(TableUnchecked, append([]byte("dep1"), 'b'), []byte("y")))
		require.NoError(t, txn.Put(TableUnchecked, append([]byte("dep2"), 'c'), []byte("z")))
		return nil
	})
	require.NoError(t, err)

	var matched int
	err = db.View(func(txn Txn) error {
		return txn.Iterate(TableUnchecked, []byte("dep1"), func(k, v []byte) bool {
			matched++
			return true
		})
	})
	require.NoError(t, err)
	require.Equal(t, 2, matched)
}

func TestSeparateTablesDontCollide(t *testing.T) {
	db := NewMemDatabase()
	defer db.Close()

	err := db.Update(func(txn Txn) error {
		require.NoError(t, txn.Put(TableAccountsV1, []byte("k"), []byte("a")))
		require.NoError(t, txn.Put(TableBlocks, []byte("k"), []byte("b")))
		return nil
	})
	require.NoError(t, err)

	err = db.View(func(txn Txn) error {
		a, _ := txn.Get(TableAccountsV1, []byte("k"))
		b, _ := txn.Get(TableBlocks, []byte("k"))
		require.Equal(t, []byte("a"), a)
		require.Equal(t, []byte("b"), b)
		return nil
	})
	require.NoError(t, err)
}
