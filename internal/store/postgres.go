package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/naqeebali-shamsi/intellifill/internal/db"
	"github.com/naqeebali-shamsi/intellifill/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_document":     `SELECT id, user_id, name, status, confidence, created_at, updated_at FROM documents WHERE id = $1`,
	"begin_processing": `UPDATE documents SET status = $1, updated_at = $2 WHERE id = $3 AND status != $1`,
	"finish_processing": `UPDATE documents SET status = $1, confidence = $2, updated_at = $3 WHERE id = $4`,
	"max_attempt":      `SELECT COALESCE(MAX(attempt_number), 0) FROM reprocess_attempts WHERE document_id = $1`,
	"insert_attempt":   `INSERT INTO reprocess_attempts (id, document_id, attempt_number, settings_tier, old_confidence, new_confidence, improvement, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	"update_attempt":   `UPDATE reprocess_attempts SET new_confidence = $1, improvement = $2 WHERE id = $3`,
	"increment_usage":  `UPDATE templates SET usage_count = usage_count + 1 WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id    TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'uploaded',
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS extracted_fields (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	document_id TEXT NOT NULL REFERENCES documents(id),
	position    INTEGER NOT NULL,
	key         TEXT NOT NULL,
	raw_value   TEXT NOT NULL,
	field_type  TEXT NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS reprocess_attempts (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	document_id    TEXT NOT NULL REFERENCES documents(id),
	attempt_number INTEGER NOT NULL,
	settings_tier  INTEGER NOT NULL,
	old_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	new_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	improvement    DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(document_id, attempt_number)
);

CREATE TABLE IF NOT EXISTS templates (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	owner_id       TEXT NOT NULL,
	name           TEXT NOT NULL,
	form_type      TEXT NOT NULL DEFAULT '',
	field_mappings JSONB NOT NULL,
	usage_count    INTEGER NOT NULL DEFAULT 0,
	is_public      BOOLEAN NOT NULL DEFAULT false,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS field_mappings (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	document_id TEXT NOT NULL,
	form_id     TEXT NOT NULL,
	mappings    JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(document_id, form_id)
);

CREATE INDEX IF NOT EXISTS idx_documents_user ON documents(user_id);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_fields_document ON extracted_fields(document_id);
CREATE INDEX IF NOT EXISTS idx_attempts_document ON reprocess_attempts(document_id);
CREATE INDEX IF NOT EXISTS idx_templates_owner ON templates(owner_id);
CREATE INDEX IF NOT EXISTS idx_templates_public ON templates(is_public) WHERE is_public;
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateDocument(ctx context.Context, doc *model.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.Status == "" {
		doc.Status = model.DocStatusUploaded
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, user_id, name, status, confidence, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		doc.ID, doc.UserID, doc.Name, string(doc.Status), doc.Confidence, now, now,
	)
	return eris.Wrap(err, "postgres: insert document")
}

func (s *PostgresStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	var d model.Document
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, name, status, confidence, created_at, updated_at FROM documents WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.UserID, &d.Name, &d.Status, &d.Confidence, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: document %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get document %s", id)
	}
	return &d, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, userID string) ([]model.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, status, confidence, created_at, updated_at FROM documents
		 WHERE user_id = $1 ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list documents")
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.ID, &d.UserID, &d.Name, &d.Status, &d.Confidence, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan document")
		}
		docs = append(docs, d)
	}
	return docs, eris.Wrap(rows.Err(), "postgres: list documents iterate")
}

func (s *PostgresStore) BeginProcessing(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET status = $1, updated_at = $2 WHERE id = $3 AND status != $1`,
		string(model.DocStatusProcessing), time.Now().UTC(), id,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: begin processing %s", id)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	if _, err := s.GetDocument(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *PostgresStore) FinishProcessing(ctx context.Context, id string, status model.DocumentStatus, confidence float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET status = $1, confidence = $2, updated_at = $3 WHERE id = $4`,
		string(status), confidence, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish processing %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "document %s", id)
	}
	return nil
}

func (s *PostgresStore) ReplaceFields(ctx context.Context, documentID string, fields []model.ExtractedField) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM extracted_fields WHERE document_id = $1`, documentID,
	); err != nil {
		return eris.Wrapf(err, "postgres: clear fields for %s", documentID)
	}

	rows := make([][]any, 0, len(fields))
	for i, f := range fields {
		rows = append(rows, []any{
			uuid.New().String(), documentID, i, f.Key, f.RawValue, string(f.FieldType), f.Confidence,
		})
	}
	_, err := db.CopyFrom(ctx, s.pool, "extracted_fields",
		[]string{"id", "document_id", "position", "key", "raw_value", "field_type", "confidence"}, rows)
	return eris.Wrapf(err, "postgres: copy fields for %s", documentID)
}

func (s *PostgresStore) FieldsForDocument(ctx context.Context, documentID string) ([]model.ExtractedField, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, raw_value, field_type, confidence, document_id FROM extracted_fields
		 WHERE document_id = $1 ORDER BY position`,
		documentID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: fields for document %s", documentID)
	}
	defer rows.Close()
	return scanPgFields(rows)
}

func (s *PostgresStore) FieldsForUser(ctx context.Context, userID string) ([]model.ExtractedField, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT f.key, f.raw_value, f.field_type, f.confidence, f.document_id
		 FROM extracted_fields f
		 JOIN documents d ON d.id = f.document_id
		 WHERE d.user_id = $1 AND d.status = $2
		 ORDER BY d.created_at, f.position`,
		userID, string(model.DocStatusCompleted),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: fields for user %s", userID)
	}
	defer rows.Close()
	return scanPgFields(rows)
}

func (s *PostgresStore) MaxAttemptNumber(ctx context.Context, documentID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(attempt_number), 0) FROM reprocess_attempts WHERE document_id = $1`,
		documentID,
	).Scan(&n)
	return n, eris.Wrapf(err, "postgres: max attempt for %s", documentID)
}

func (s *PostgresStore) CreateAttempt(ctx context.Context, attempt *model.ReprocessAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO reprocess_attempts (id, document_id, attempt_number, settings_tier, old_confidence, new_confidence, improvement, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		attempt.ID, attempt.DocumentID, attempt.AttemptNumber, attempt.SettingsTier,
		attempt.OldConfidence, attempt.NewConfidence, attempt.Improvement, attempt.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert attempt for %s", attempt.DocumentID)
}

func (s *PostgresStore) UpdateAttemptOutcome(ctx context.Context, attemptID string, newConfidence, improvement float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE reprocess_attempts SET new_confidence = $1, improvement = $2 WHERE id = $3`,
		newConfidence, improvement, attemptID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update attempt %s", attemptID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "attempt %s", attemptID)
	}
	return nil
}

func (s *PostgresStore) ListAttempts(ctx context.Context, documentID string) ([]model.ReprocessAttempt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, document_id, attempt_number, settings_tier, old_confidence, new_confidence, improvement, created_at
		 FROM reprocess_attempts WHERE document_id = $1 ORDER BY attempt_number`,
		documentID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list attempts for %s", documentID)
	}
	defer rows.Close()

	var attempts []model.ReprocessAttempt
	for rows.Next() {
		var a model.ReprocessAttempt
		if err := rows.Scan(&a.ID, &a.DocumentID, &a.AttemptNumber, &a.SettingsTier,
			&a.OldConfidence, &a.NewConfidence, &a.Improvement, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan attempt")
		}
		attempts = append(attempts, a)
	}
	return attempts, eris.Wrap(rows.Err(), "postgres: list attempts iterate")
}

func (s *PostgresStore) CreateTemplate(ctx context.Context, t *model.Template) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	mappingsJSON, err := json.Marshal(t.FieldMappings)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal template mappings")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO templates (id, owner_id, name, form_type, field_mappings, usage_count, is_public, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.OwnerID, t.Name, t.FormType, mappingsJSON, t.UsageCount, t.IsPublic, t.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert template")
}

func (s *PostgresStore) ListVisibleTemplates(ctx context.Context, userID string) ([]model.Template, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, name, form_type, field_mappings, usage_count, is_public, created_at
		 FROM templates WHERE owner_id = $1 OR is_public
		 ORDER BY usage_count DESC, created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list templates")
	}
	defer rows.Close()

	var tmpls []model.Template
	for rows.Next() {
		var t model.Template
		var mappingsJSON []byte
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Name, &t.FormType, &mappingsJSON,
			&t.UsageCount, &t.IsPublic, &t.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan template")
		}
		if err := json.Unmarshal(mappingsJSON, &t.FieldMappings); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal template mappings")
		}
		tmpls = append(tmpls, t)
	}
	return tmpls, eris.Wrap(rows.Err(), "postgres: list templates iterate")
}

func (s *PostgresStore) IncrementTemplateUsage(ctx context.Context, templateID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE templates SET usage_count = usage_count + 1 WHERE id = $1`,
		templateID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: increment usage %s", templateID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "template %s", templateID)
	}
	return nil
}

func (s *PostgresStore) SaveMappings(ctx context.Context, documentID, formID string, mappings []model.FieldMapping) error {
	mappingsJSON, err := json.Marshal(mappings)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal mappings")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO field_mappings (id, document_id, form_id, mappings, created_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (document_id, form_id) DO UPDATE SET mappings = $4, created_at = $5`,
		uuid.New().String(), documentID, formID, mappingsJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save mappings for %s/%s", documentID, formID)
}

func (s *PostgresStore) GetMappings(ctx context.Context, documentID, formID string) ([]model.FieldMapping, error) {
	var mappingsJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT mappings FROM field_mappings WHERE document_id = $1 AND form_id = $2`,
		documentID, formID,
	).Scan(&mappingsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get mappings for %s/%s", documentID, formID)
	}
	var mappings []model.FieldMapping
	if err := json.Unmarshal(mappingsJSON, &mappings); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal mappings")
	}
	return mappings, nil
}

func scanPgFields(rows pgx.Rows) ([]model.ExtractedField, error) {
	var fields []model.ExtractedField
	for rows.Next() {
		var f model.ExtractedField
		if err := rows.Scan(&f.Key, &f.RawValue, &f.FieldType, &f.Confidence, &f.SourceDocumentID); err != nil {
			return nil, eris.Wrap(err, "postgres: scan field")
		}
		fields = append(fields, f)
	}
	return fields, eris.Wrap(rows.Err(), "postgres: fields iterate")
}
