package db

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbridge/finbridge/errors"
	"github.com/finbridge/finbridge/plugin"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	database, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewStore(database), mock
}

func TestInsertDocument(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO documents").
		WithArgs("scan.pdf", "/uploads/scan.pdf", int64(2048), DocStatusPending).
		WillReturnResult(sqlmock.NewResult(7, 1))

	id, err := store.InsertDocument(context.Background(), "scan.pdf", "/uploads/scan.pdf", 2048)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkProcessed(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("UPDATE documents SET status").
		WithArgs(DocStatusProcessed, `{"amounts":["123.45"]}`, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.MarkProcessed(context.Background(), 7, map[string]interface{}{
		"amounts": []string{"123.45"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailed(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("UPDATE documents SET status").
		WithArgs(DocStatusFailed, "ocr content unavailable", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.MarkFailed(context.Background(), 7, errors.ErrOCR)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentScan(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	processed := created.Add(time.Minute)

	rows := sqlmock.NewRows([]string{
		"id", "filename", "stored_path", "size_bytes", "status", "fields", "error", "created_at", "processed_at",
	}).AddRow(int64(7), "scan.pdf", "/uploads/scan.pdf", int64(2048),
		DocStatusProcessed, `{"amounts":["42"]}`, nil, created, processed)
	mock.ExpectQuery("SELECT (.+) FROM documents WHERE id").WithArgs(int64(7)).WillReturnRows(rows)

	doc, err := store.Document(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "scan.pdf", doc.Filename)
	assert.Equal(t, DocStatusProcessed, doc.Status)
	assert.Equal(t, []interface{}{"42"}, doc.Fields["amounts"])
	require.NotNil(t, doc.ProcessedAt)
	assert.Equal(t, processed, *doc.ProcessedAt)
}

func TestRecordSync(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO sync_log").
		WithArgs(sqlmock.AnyArg(), "bigcapital", "invoice", "InvoicePlane-41",
			"200", "created", true, "", "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := store.RecordSync(context.Background(), "bigcapital", "invoice", "InvoicePlane-41",
		&plugin.SyncResult{Success: true, ExternalID: "200", Action: "created"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncHistoryFiltersByPlugin(t *testing.T) {
	store, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{
		"id", "plugin", "record_type", "reference", "external_id", "action", "success", "error", "error_type", "created_at",
	}).AddRow("u1", "bigcapital", "invoice", "InvoicePlane-1", "200", "created", true, nil, nil, time.Now())
	mock.ExpectQuery("SELECT (.+) FROM sync_log WHERE plugin").
		WithArgs("bigcapital", 10).
		WillReturnRows(rows)

	entries, err := store.SyncHistory(context.Background(), "bigcapital", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "InvoicePlane-1", entries[0].Reference)
	assert.True(t, entries[0].Success)
}

func TestMigrateAppliesOnce(t *testing.T) {
	database, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer database.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_version").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(len(migrations)))

	require.NoError(t, Migrate(database))
	assert.NoError(t, mock.ExpectationsWereMet())
}
