package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/WindyStu/RAGJurisChat/internal/models"
)

// SQLiteLedger implements Ledger using SQLite.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteLedger{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS ingest_runs (
		id TEXT PRIMARY KEY,
		collection TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		documents INTEGER NOT NULL DEFAULT 0,
		chunks INTEGER NOT NULL DEFAULT 0,
		inserted INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON ingest_runs(started_at);

	CREATE TABLE IF NOT EXISTS ingested_documents (
		run_id TEXT NOT NULL,
		doc_id TEXT NOT NULL,
		path TEXT NOT NULL,
		title TEXT,
		checksum TEXT,
		size INTEGER NOT NULL DEFAULT 0,
		chunks INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, doc_id),
		FOREIGN KEY (run_id) REFERENCES ingest_runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_ingested_run ON ingested_documents(run_id);
	`
	_, err := db.Exec(schema)
	return err
}

// StartRun inserts a running run for collection.
func (s *SQLiteLedger) StartRun(ctx context.Context, collection string) (*models.IngestRun, error) {
	run := &models.IngestRun{
		ID:         uuid.New().String(),
		Collection: collection,
		Status:     models.RunRunning,
		StartedAt:  time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingest_runs (id, collection, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Collection, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	return run, nil
}

// RecordDocument upserts the outcome of one file within a run.
func (s *SQLiteLedger) RecordDocument(ctx context.Context, doc *models.IngestedDocument) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO ingested_documents (run_id, doc_id, path, title, checksum, size, chunks, skipped)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.RunID, doc.DocID, doc.Path, doc.Title, doc.Checksum, doc.Size, doc.Chunks, doc.Skipped,
	)
	if err != nil {
		return fmt.Errorf("failed to record document: %w", err)
	}
	return nil
}

// FinishRun stores counters and the final status.
func (s *SQLiteLedger) FinishRun(ctx context.Context, run *models.IngestRun, runErr error) error {
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Status = models.RunSucceeded
	run.Error = ""
	if runErr != nil {
		run.Status = models.RunFailed
		run.Error = runErr.Error()
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE ingest_runs SET status = ?, finished_at = ?, documents = ?, chunks = ?, inserted = ?, error = ?
		 WHERE id = ?`,
		run.Status, now, run.Documents, run.Chunks, run.Inserted, run.Error, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("run not found: %s", run.ID)
	}
	return nil
}

const runColumns = `id, collection, status, started_at, finished_at, documents, chunks, inserted, error`

func scanRun(row interface{ Scan(...any) error }) (*models.IngestRun, error) {
	var run models.IngestRun
	var finished sql.NullTime
	if err := row.Scan(&run.ID, &run.Collection, &run.Status, &run.StartedAt, &finished,
		&run.Documents, &run.Chunks, &run.Inserted, &run.Error); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

// LastRun returns the most recently started run, or nil.
func (s *SQLiteLedger) LastRun(ctx context.Context) (*models.IngestRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM ingest_runs ORDER BY started_at DESC, rowid DESC LIMIT 1`)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// ListRuns returns up to limit runs, newest first.
func (s *SQLiteLedger) ListRuns(ctx context.Context, limit int) ([]*models.IngestRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM ingest_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.IngestRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DocumentsForRun returns the documents recorded for runID ordered by path.
func (s *SQLiteLedger) DocumentsForRun(ctx context.Context, runID string) ([]*models.IngestedDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, doc_id, path, title, checksum, size, chunks, skipped
		 FROM ingested_documents WHERE run_id = ? ORDER BY path`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.IngestedDocument
	for rows.Next() {
		var d models.IngestedDocument
		if err := rows.Scan(&d.RunID, &d.DocID, &d.Path, &d.Title, &d.Checksum, &d.Size, &d.Chunks, &d.Skipped); err != nil {
			return nil, err
		}
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}
