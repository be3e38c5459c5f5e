package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/docpipe/internal/core/domain"
)

// RecordRepository persists extraction jobs and their validated records.
type RecordRepository struct {
	db *sql.DB
}

func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *RecordRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across cli/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS extraction_jobs (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	mime_type TEXT,
	page_count INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS extraction_records (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL REFERENCES extraction_jobs(id),
	start_page INTEGER NOT NULL,
	end_page INTEGER NOT NULL,
	classification TEXT NOT NULL,
	confidence INTEGER NOT NULL DEFAULT 0,
	contract TEXT NOT NULL,
	fields JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_extraction_jobs_status ON extraction_jobs(status);
CREATE INDEX IF NOT EXISTS idx_extraction_records_job ON extraction_records(job_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *RecordRepository) CreateJob(ctx context.Context, doc *domain.Document) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO extraction_jobs (id, source, mime_type, page_count, status, error_message, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`,
		doc.ID, doc.Source, doc.MimeType, len(doc.Pages), string(doc.Status), "", doc.CreatedAt, now,
	)
	if err != nil {
		return fmt.Errorf("insert extraction job: %w", err)
	}
	return nil
}

func (r *RecordRepository) GetJob(ctx context.Context, documentID string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, source, mime_type, status, created_at
FROM extraction_jobs
WHERE id = $1
`, documentID)

	var doc domain.Document
	var status string
	if err := row.Scan(&doc.ID, &doc.Source, &doc.MimeType, &status, &doc.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("extraction job not found: %s", documentID)
		}
		return nil, fmt.Errorf("scan extraction job: %w", err)
	}
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}

func (r *RecordRepository) UpdateJobStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE extraction_jobs
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, documentID, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

func (r *RecordRepository) SaveRecord(ctx context.Context, documentID string, group domain.SplitGroup, classification string, confidence int, record domain.Record) error {
	fieldsJSON, err := json.Marshal(record.Fields)
	if err != nil {
		return fmt.Errorf("marshal record fields: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO extraction_records (id, job_id, start_page, end_page, classification, confidence, contract, fields, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		uuid.New().String(), documentID, group.Start, group.End, classification, confidence, record.Contract, fieldsJSON, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert extraction record: %w", err)
	}
	return nil
}
