package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testDatabase(t *testing.T, db Database) {
	t.Helper()

	_, err := db.Get([]byte("missing"))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.Put([]byte("k"), []byte("v1")))
	value, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), value)

	has, err := db.Has([]byte("k"))
	require.NoError(t, err)
	require.True(t, has)

	require.NoError(t, db.Put([]byte("k"), []byte("v2")))
	value, err = db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), value)

	require.NoError(t, db.Delete([]byte("k")))
	has, err = db.Has([]byte("k"))
	require.NoError(t, err)
	require.False(t, has)
	_, err = db.Get([]byte("k"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemDB(t *testing.T) {
	testDatabase(t, NewMemDB())
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	original := []byte("value")
	require.NoError(t, db.Put([]byte("k"), original))
	original[0] = 'X'

	stored, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("value"), stored)

	stored[0] = 'Y'
	again, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("value"), again)
}

func TestLevelDB(t *testing.T) {
	db, err := NewLevelDB(t.TempDir())
	require.NoError(t, err)
	defer db.Close()
	testDatabase(t, db)
}
