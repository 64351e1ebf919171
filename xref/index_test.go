package xref

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	adaptarrdb "adaptarr.dev/db"
	"adaptarr.dev/storage"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := adaptarrdb.ConnectSQLite()
	require.NoError(t, err)
	return gdb
}

const sampleCNXML = `<document>
  <content>
    <figure id="fig-1"><caption>A cat</caption></figure>
    <exercise id="ex-1">
      <problem><para>What is a cat?</para>
        <figure id="fig-2"><caption>Hint cat</caption></figure>
      </problem>
      <solution id="sol-1"><para>It meows.</para></solution>
    </exercise>
    <exercise id="ex-2">
      <solution id="sol-2"><para>Again.</para></solution>
    </exercise>
    <note id="note-1" type="warning"><para>careful</para></note>
    <note id="note-2"><para>plain</para></note>
  </content>
</document>`

func seedDocument(t *testing.T, gdb *gorm.DB, store *storage.Store, cnxml string) uint {
	t.Helper()
	index, err := store.FromBytes(gdb, []byte(cnxml), "application/xml")
	require.NoError(t, err)

	doc := adaptarrdb.Document{Title: "t", Language: "en", IndexFileID: index.ID}
	require.NoError(t, gdb.Create(&doc).Error)
	return doc.ID
}

func TestIndexClassifiesAndCounts(t *testing.T) {
	gdb := openTestDB(t)
	store, err := storage.NewStore(t.TempDir())
	require.NoError(t, err)
	docID := seedDocument(t, gdb, store, sampleCNXML)

	require.NoError(t, Index(gdb, store, docID))

	targets, err := List(gdb, docID)
	require.NoError(t, err)

	byID := make(map[string]adaptarrdb.XrefTarget, len(targets))
	for _, tg := range targets {
		byID[tg.ElementID] = tg
	}
	require.Len(t, byID, 8)

	require.Equal(t, "figure", byID["fig-1"].Type)
	require.Equal(t, 1, byID["fig-1"].Counter)
	require.Nil(t, byID["fig-1"].Context)
	require.NotNil(t, byID["fig-1"].Description)
	require.Equal(t, "A cat", *byID["fig-1"].Description)

	require.Equal(t, "figure", byID["fig-2"].Type)
	require.Equal(t, 2, byID["fig-2"].Counter)
	require.Nil(t, byID["fig-2"].Context, "a figure has no context of its own, even inside an exercise")
	require.Equal(t, "Hint cat", *byID["fig-2"].Description)

	require.Equal(t, "exercise", byID["ex-1"].Type)
	require.Equal(t, "solution", byID["sol-1"].Type)
	require.Equal(t, 1, byID["sol-1"].Counter)
	require.Equal(t, "ex-1", *byID["sol-1"].Context)

	require.Equal(t, "solution", byID["sol-2"].Type)
	require.Equal(t, 1, byID["sol-2"].Counter, "solution counter resets on entering a new exercise")
	require.Equal(t, "ex-2", *byID["sol-2"].Context)

	require.Equal(t, "warning", byID["note-1"].Type)
	require.Equal(t, "note", byID["note-2"].Type)

	var doc adaptarrdb.Document
	require.NoError(t, gdb.First(&doc, docID).Error)
	require.True(t, doc.XrefsReady)
}

func TestIndexIsIdempotent(t *testing.T) {
	gdb := openTestDB(t)
	store, err := storage.NewStore(t.TempDir())
	require.NoError(t, err)
	docID := seedDocument(t, gdb, store, sampleCNXML)

	require.NoError(t, Index(gdb, store, docID))
	require.NoError(t, Index(gdb, store, docID))

	var count int64
	gdb.Model(&adaptarrdb.XrefTarget{}).Where("document_id = ?", docID).Count(&count)
	require.EqualValues(t, 8, count)
}

func TestListFailsBeforeReady(t *testing.T) {
	gdb := openTestDB(t)
	store, err := storage.NewStore(t.TempDir())
	require.NoError(t, err)
	docID := seedDocument(t, gdb, store, sampleCNXML)

	_, err = List(gdb, docID)
	require.Error(t, err)
}

func TestSweepIndexesUnreadyDocuments(t *testing.T) {
	gdb := openTestDB(t)
	store, err := storage.NewStore(t.TempDir())
	require.NoError(t, err)
	docID := seedDocument(t, gdb, store, sampleCNXML)

	var failures []uint
	require.NoError(t, Sweep(gdb, store, func(id uint, err error) {
		failures = append(failures, id)
	}))
	require.Empty(t, failures)

	var doc adaptarrdb.Document
	require.NoError(t, gdb.First(&doc, docID).Error)
	require.True(t, doc.XrefsReady)
}
