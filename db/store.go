package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/finbridge/finbridge/errors"
	"github.com/finbridge/finbridge/plugin"
)

// Document record statuses.
const (
	DocStatusPending   = "pending"
	DocStatusProcessed = "processed"
	DocStatusFailed    = "failed"
)

// DocumentRecord is one uploaded document's row.
type DocumentRecord struct {
	ID          int64                  `json:"id"`
	Filename    string                 `json:"filename"`
	StoredPath  string                 `json:"stored_path"`
	SizeBytes   int64                  `json:"size_bytes"`
	Status      string                 `json:"status"`
	Fields      map[string]interface{} `json:"fields,omitempty"`
	Error       string                 `json:"error,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
}

// SyncLogEntry is one recorded sync attempt.
type SyncLogEntry struct {
	ID         string    `json:"id"`
	Plugin     string    `json:"plugin"`
	RecordType string    `json:"record_type"`
	Reference  string    `json:"reference"`
	ExternalID string    `json:"external_id,omitempty"`
	Action     string    `json:"action,omitempty"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	ErrorType  string    `json:"error_type,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store wraps the database with typed accessors.
type Store struct {
	db *sql.DB
}

// NewStore builds a store over an open database.
func NewStore(database *sql.DB) *Store {
	return &Store{db: database}
}

// InsertDocument records a newly uploaded document as pending and returns
// its row id.
func (s *Store) InsertDocument(ctx context.Context, filename, storedPath string, size int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (filename, stored_path, size_bytes, status) VALUES (?, ?, ?, ?)`,
		filename, storedPath, size, DocStatusPending)
	if err != nil {
		return 0, errors.Wrapf(err, "insert document %s", filename)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "document insert id")
	}
	return id, nil
}

// MarkProcessed stores the aggregated extraction fields and flips the
// document to processed.
func (s *Store) MarkProcessed(ctx context.Context, id int64, fields map[string]interface{}) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return errors.Wrapf(err, "encode fields for document %d", id)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, fields = ?, error = NULL, processed_at = CURRENT_TIMESTAMP WHERE id = ?`,
		DocStatusProcessed, string(raw), id)
	if err != nil {
		return errors.Wrapf(err, "mark document %d processed", id)
	}
	return nil
}

// MarkFailed records a processing failure against the document.
func (s *Store) MarkFailed(ctx context.Context, id int64, cause error) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, error = ?, processed_at = CURRENT_TIMESTAMP WHERE id = ?`,
		DocStatusFailed, cause.Error(), id)
	if err != nil {
		return errors.Wrapf(err, "mark document %d failed", id)
	}
	return nil
}

// Document returns one document row.
func (s *Store) Document(ctx context.Context, id int64) (*DocumentRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, stored_path, size_bytes, status, fields, error, created_at, processed_at
		 FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

// Documents returns the most recent document rows, newest first.
func (s *Store) Documents(ctx context.Context, limit int) ([]DocumentRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, stored_path, size_bytes, status, fields, error, created_at, processed_at
		 FROM documents ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list documents")
	}
	defer rows.Close()

	var out []DocumentRecord
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *doc)
	}
	return out, errors.Wrap(rows.Err(), "iterate documents")
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row scanner) (*DocumentRecord, error) {
	var doc DocumentRecord
	var fields, errText sql.NullString
	var processedAt sql.NullTime
	err := row.Scan(&doc.ID, &doc.Filename, &doc.StoredPath, &doc.SizeBytes,
		&doc.Status, &fields, &errText, &doc.CreatedAt, &processedAt)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(err, "document not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan document")
	}
	if fields.Valid && fields.String != "" {
		if err := json.Unmarshal([]byte(fields.String), &doc.Fields); err != nil {
			return nil, errors.Wrapf(err, "decode fields for document %d", doc.ID)
		}
	}
	doc.Error = errText.String
	if processedAt.Valid {
		doc.ProcessedAt = &processedAt.Time
	}
	return &doc, nil
}

// RecordSync appends one sync attempt to the log and returns its id.
func (s *Store) RecordSync(ctx context.Context, pluginName, recordType, reference string, result *plugin.SyncResult) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_log (id, plugin, record_type, reference, external_id, action, success, error, error_type)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, pluginName, recordType, reference,
		result.ExternalID, result.Action, result.Success, result.Error, result.ErrorType)
	if err != nil {
		return "", errors.Wrapf(err, "record sync for %s", reference)
	}
	return id, nil
}

// SyncHistory returns the most recent sync attempts for a plugin, newest
// first. An empty plugin name returns attempts across all plugins.
func (s *Store) SyncHistory(ctx context.Context, pluginName string, limit int) ([]SyncLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, plugin, record_type, reference, external_id, action, success, error, error_type, created_at
	          FROM sync_log`
	args := []interface{}{}
	if pluginName != "" {
		query += ` WHERE plugin = ?`
		args = append(args, pluginName)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list sync history")
	}
	defer rows.Close()

	var out []SyncLogEntry
	for rows.Next() {
		var e SyncLogEntry
		var externalID, action, errText, errType sql.NullString
		if err := rows.Scan(&e.ID, &e.Plugin, &e.RecordType, &e.Reference,
			&externalID, &action, &e.Success, &errText, &errType, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan sync log entry")
		}
		e.ExternalID = externalID.String
		e.Action = action.String
		e.Error = errText.String
		e.ErrorType = errType.String
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "iterate sync log")
}
