package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/naqeebali-shamsi/intellifill/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'uploaded',
	confidence REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS extracted_fields (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id),
	position    INTEGER NOT NULL,
	key         TEXT NOT NULL,
	raw_value   TEXT NOT NULL,
	field_type  TEXT NOT NULL,
	confidence  REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS reprocess_attempts (
	id             TEXT PRIMARY KEY,
	document_id    TEXT NOT NULL REFERENCES documents(id),
	attempt_number INTEGER NOT NULL,
	settings_tier  INTEGER NOT NULL,
	old_confidence REAL NOT NULL DEFAULT 0,
	new_confidence REAL NOT NULL DEFAULT 0,
	improvement    REAL NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE(document_id, attempt_number)
);

CREATE TABLE IF NOT EXISTS templates (
	id             TEXT PRIMARY KEY,
	owner_id       TEXT NOT NULL,
	name           TEXT NOT NULL,
	form_type      TEXT NOT NULL DEFAULT '',
	field_mappings TEXT NOT NULL,
	usage_count    INTEGER NOT NULL DEFAULT 0,
	is_public      INTEGER NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS field_mappings (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	form_id     TEXT NOT NULL,
	mappings    TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE(document_id, form_id)
);

CREATE INDEX IF NOT EXISTS idx_documents_user ON documents(user_id);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_fields_document ON extracted_fields(document_id);
CREATE INDEX IF NOT EXISTS idx_attempts_document ON reprocess_attempts(document_id);
CREATE INDEX IF NOT EXISTS idx_templates_owner ON templates(owner_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateDocument(ctx context.Context, doc *model.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.Status == "" {
		doc.Status = model.DocStatusUploaded
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, user_id, name, status, confidence, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.UserID, doc.Name, string(doc.Status), doc.Confidence, now, now,
	)
	return eris.Wrap(err, "sqlite: insert document")
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	var d model.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, status, confidence, created_at, updated_at FROM documents WHERE id = ?`,
		id,
	).Scan(&d.ID, &d.UserID, &d.Name, &d.Status, &d.Confidence, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: document %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get document %s", id)
	}
	return &d, nil
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, userID string) ([]model.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, status, confidence, created_at, updated_at FROM documents
		 WHERE user_id = ? ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list documents")
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.ID, &d.UserID, &d.Name, &d.Status, &d.Confidence, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan document")
		}
		docs = append(docs, d)
	}
	return docs, eris.Wrap(rows.Err(), "sqlite: list documents iterate")
}

func (s *SQLiteStore) BeginProcessing(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, updated_at = ? WHERE id = ? AND status != ?`,
		string(model.DocStatusProcessing), time.Now().UTC(), id, string(model.DocStatusProcessing),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: begin processing %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	if n > 0 {
		return true, nil
	}
	// Distinguish an in-flight document from a missing one.
	if _, err := s.GetDocument(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *SQLiteStore) FinishProcessing(ctx context.Context, id string, status model.DocumentStatus, confidence float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, confidence = ?, updated_at = ? WHERE id = ?`,
		string(status), confidence, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish processing %s", id)
	}
	return checkRowsAffected(res, "document", id)
}

func (s *SQLiteStore) ReplaceFields(ctx context.Context, documentID string, fields []model.ExtractedField) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM extracted_fields WHERE document_id = ?`, documentID,
	); err != nil {
		return eris.Wrapf(err, "sqlite: clear fields for %s", documentID)
	}
	for i, f := range fields {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO extracted_fields (id, document_id, position, key, raw_value, field_type, confidence)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), documentID, i, f.Key, f.RawValue, string(f.FieldType), f.Confidence,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert field %s for %s", f.Key, documentID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit fields")
}

func (s *SQLiteStore) FieldsForDocument(ctx context.Context, documentID string) ([]model.ExtractedField, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, raw_value, field_type, confidence, document_id FROM extracted_fields
		 WHERE document_id = ? ORDER BY position`,
		documentID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: fields for document %s", documentID)
	}
	defer rows.Close()
	return scanFields(rows)
}

func (s *SQLiteStore) FieldsForUser(ctx context.Context, userID string) ([]model.ExtractedField, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT f.key, f.raw_value, f.field_type, f.confidence, f.document_id
		 FROM extracted_fields f
		 JOIN documents d ON d.id = f.document_id
		 WHERE d.user_id = ? AND d.status = ?
		 ORDER BY d.created_at, f.position`,
		userID, string(model.DocStatusCompleted),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: fields for user %s", userID)
	}
	defer rows.Close()
	return scanFields(rows)
}

func (s *SQLiteStore) MaxAttemptNumber(ctx context.Context, documentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(attempt_number), 0) FROM reprocess_attempts WHERE document_id = ?`,
		documentID,
	).Scan(&n)
	return n, eris.Wrapf(err, "sqlite: max attempt for %s", documentID)
}

func (s *SQLiteStore) CreateAttempt(ctx context.Context, attempt *model.ReprocessAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reprocess_attempts (id, document_id, attempt_number, settings_tier, old_confidence, new_confidence, improvement, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		attempt.ID, attempt.DocumentID, attempt.AttemptNumber, attempt.SettingsTier,
		attempt.OldConfidence, attempt.NewConfidence, attempt.Improvement, attempt.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert attempt for %s", attempt.DocumentID)
}

func (s *SQLiteStore) UpdateAttemptOutcome(ctx context.Context, attemptID string, newConfidence, improvement float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reprocess_attempts SET new_confidence = ?, improvement = ? WHERE id = ?`,
		newConfidence, improvement, attemptID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update attempt %s", attemptID)
	}
	return checkRowsAffected(res, "attempt", attemptID)
}

func (s *SQLiteStore) ListAttempts(ctx context.Context, documentID string) ([]model.ReprocessAttempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, attempt_number, settings_tier, old_confidence, new_confidence, improvement, created_at
		 FROM reprocess_attempts WHERE document_id = ? ORDER BY attempt_number`,
		documentID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list attempts for %s", documentID)
	}
	defer rows.Close()

	var attempts []model.ReprocessAttempt
	for rows.Next() {
		var a model.ReprocessAttempt
		if err := rows.Scan(&a.ID, &a.DocumentID, &a.AttemptNumber, &a.SettingsTier,
			&a.OldConfidence, &a.NewConfidence, &a.Improvement, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan attempt")
		}
		attempts = append(attempts, a)
	}
	return attempts, eris.Wrap(rows.Err(), "sqlite: list attempts iterate")
}

func (s *SQLiteStore) CreateTemplate(ctx context.Context, t *model.Template) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	mappingsJSON, err := json.Marshal(t.FieldMappings)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal template mappings")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO templates (id, owner_id, name, form_type, field_mappings, usage_count, is_public, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, t.Name, t.FormType, string(mappingsJSON), t.UsageCount, t.IsPublic, t.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert template")
}

func (s *SQLiteStore) ListVisibleTemplates(ctx context.Context, userID string) ([]model.Template, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, name, form_type, field_mappings, usage_count, is_public, created_at
		 FROM templates WHERE owner_id = ? OR is_public = 1
		 ORDER BY usage_count DESC, created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list templates")
	}
	defer rows.Close()

	var tmpls []model.Template
	for rows.Next() {
		var t model.Template
		var mappingsJSON string
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Name, &t.FormType, &mappingsJSON,
			&t.UsageCount, &t.IsPublic, &t.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan template")
		}
		if err := json.Unmarshal([]byte(mappingsJSON), &t.FieldMappings); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal template mappings")
		}
		tmpls = append(tmpls, t)
	}
	return tmpls, eris.Wrap(rows.Err(), "sqlite: list templates iterate")
}

func (s *SQLiteStore) IncrementTemplateUsage(ctx context.Context, templateID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE templates SET usage_count = usage_count + 1 WHERE id = ?`,
		templateID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment usage %s", templateID)
	}
	return checkRowsAffected(res, "template", templateID)
}

func (s *SQLiteStore) SaveMappings(ctx context.Context, documentID, formID string, mappings []model.FieldMapping) error {
	mappingsJSON, err := json.Marshal(mappings)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal mappings")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO field_mappings (id, document_id, form_id, mappings, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(document_id, form_id) DO UPDATE SET mappings = excluded.mappings, created_at = excluded.created_at`,
		uuid.New().String(), documentID, formID, string(mappingsJSON), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save mappings for %s/%s", documentID, formID)
}

func (s *SQLiteStore) GetMappings(ctx context.Context, documentID, formID string) ([]model.FieldMapping, error) {
	var mappingsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT mappings FROM field_mappings WHERE document_id = ? AND form_id = ?`,
		documentID, formID,
	).Scan(&mappingsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get mappings for %s/%s", documentID, formID)
	}
	var mappings []model.FieldMapping
	if err := json.Unmarshal([]byte(mappingsJSON), &mappings); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal mappings")
	}
	return mappings, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func scanFields(rows *sql.Rows) ([]model.ExtractedField, error) {
	var fields []model.ExtractedField
	for rows.Next() {
		var f model.ExtractedField
		if err := rows.Scan(&f.Key, &f.RawValue, &f.FieldType, &f.Confidence, &f.SourceDocumentID); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan field")
		}
		fields = append(fields, f)
	}
	return fields, eris.Wrap(rows.Err(), "sqlite: fields iterate")
}
