// Package storage keeps the local ledger of ingestion runs.
package storage

import (
	"context"

	"github.com/WindyStu/RAGJurisChat/internal/models"
)

// Ledger records ingestion runs and the documents each run read.
type Ledger interface {
	StartRun(ctx context.Context, collection string) (*models.IngestRun, error)
	RecordDocument(ctx context.Context, doc *models.IngestedDocument) error
	// FinishRun stores the final counters of run; runErr marks it failed.
	FinishRun(ctx context.Context, run *models.IngestRun, runErr error) error

	// LastRun returns the most recent run, or nil when none exists.
	LastRun(ctx context.Context) (*models.IngestRun, error)
	ListRuns(ctx context.Context, limit int) ([]*models.IngestRun, error)
	DocumentsForRun(ctx context.Context, runID string) ([]*models.IngestedDocument, error)

	Close() error
}
