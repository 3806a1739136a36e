package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemDBRoundTrip(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	require.NoError(t, db.Put([]byte("k"), []byte("v")))

	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)

	ok, err := db.Has([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, db.Delete([]byte("k")))

	got, err = db.Get([]byte("k"))
	require.NoError(t, err)
	require.Nil(t, got)

	ok, err = db.Has([]byte("k"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLevelDBRoundTrip(t *testing.T) {
	dir := t.TempDir()

	db, err := NewLevelDB(dir)
	require.NoError(t, err)

	require.NoError(t, db.Put([]byte("k"), []byte("v")))
	db.Close()

	// Values must survive a reopen.
	db, err = NewLevelDB(dir)
	require.NoError(t, err)
	defer db.Close()

	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)

	missing, err := db.Get([]byte("absent"))
	require.NoError(t, err)
	require.Nil(t, missing)

	require.NoError(t, db.Delete([]byte("k")))
	ok, err := db.Has([]byte("k"))
	require.NoError(t, err)
	require.False(t, ok)
}
