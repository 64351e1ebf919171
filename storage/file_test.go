package storage

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	adaptarrdb "adaptarr.dev/db"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := adaptarrdb.ConnectSQLite()
	require.NoError(t, err)
	return gdb
}

func TestFromBytesIdempotent(t *testing.T) {
	gdb := openTestDB(t)
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	body := []byte("<document/>")
	first, err := store.FromBytes(gdb, body, "application/xml")
	require.NoError(t, err)

	second, err := store.FromBytes(gdb, body, "application/xml")
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)

	var count int64
	gdb.Model(&adaptarrdb.File{}).Count(&count)
	require.EqualValues(t, 1, count)
}

func TestFromBytesCoalescesConcurrentWrites(t *testing.T) {
	gdb := openTestDB(t)
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	body := []byte("same bytes, two writers")
	const writers = 8

	var wg sync.WaitGroup
	ids := make([]uint, writers)
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			row, err := store.FromBytes(gdb, body, "text/plain")
			errs[i] = err
			if err == nil {
				ids[i] = row.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < writers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, ids[0], ids[i], "every concurrent writer must coalesce to the same row")
	}

	var count int64
	gdb.Model(&adaptarrdb.File{}).Count(&count)
	require.EqualValues(t, 1, count)

	var row adaptarrdb.File
	require.NoError(t, gdb.First(&row, ids[0]).Error)
	data, err := store.ReadAll(&row)
	require.NoError(t, err)
	require.Equal(t, body, data)
}

func TestETagChangesWithContent(t *testing.T) {
	gdb := openTestDB(t)
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	a, err := store.FromBytes(gdb, []byte("a"), "")
	require.NoError(t, err)
	b, err := store.FromBytes(gdb, []byte("b"), "")
	require.NoError(t, err)

	require.NotEqual(t, ETag(a), ETag(b))
}
