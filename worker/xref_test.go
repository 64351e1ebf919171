package worker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
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

func TestXrefProcessorIndexesDocument(t *testing.T) {
	gdb := openTestDB(t)
	store, err := storage.NewStore(t.TempDir())
	require.NoError(t, err)

	index, err := store.FromBytes(gdb, []byte(`<document><figure id="f1"><caption>A</caption></figure></document>`), "application/xml")
	require.NoError(t, err)
	doc := adaptarrdb.Document{Title: "t", Language: "en", IndexFileID: index.ID}
	require.NoError(t, gdb.Create(&doc).Error)

	p := XrefProcessor{DB: gdb, Store: store}
	payload, err := json.Marshal(xrefPayload{DocumentID: doc.ID})
	require.NoError(t, err)
	require.NoError(t, p.Process(context.Background(), payload))

	var updated adaptarrdb.Document
	require.NoError(t, gdb.First(&updated, doc.ID).Error)
	require.True(t, updated.XrefsReady)
}

func TestRunStartupSweepIndexesUnreadyDocuments(t *testing.T) {
	gdb := openTestDB(t)
	store, err := storage.NewStore(t.TempDir())
	require.NoError(t, err)

	index, err := store.FromBytes(gdb, []byte(`<document><figure id="f1"><caption>A</caption></figure></document>`), "application/xml")
	require.NoError(t, err)
	doc := adaptarrdb.Document{Title: "t", Language: "en", IndexFileID: index.ID}
	require.NoError(t, gdb.Create(&doc).Error)

	require.NoError(t, RunStartupSweep(gdb, store, logrus.NewEntry(logrus.New())))

	var updated adaptarrdb.Document
	require.NoError(t, gdb.First(&updated, doc.ID).Error)
	require.True(t, updated.XrefsReady)
}
