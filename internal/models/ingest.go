package models

import "time"

// Ingest run states.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// IngestRun is one ingestion pass as recorded in the local ledger.
type IngestRun struct {
	ID         string     `json:"id"`
	Collection string     `json:"collection"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Documents  int        `json:"documents"`
	Chunks     int        `json:"chunks"`
	Inserted   int        `json:"inserted"`
	Error      string     `json:"error,omitempty"`
}

// IngestedDocument records what one run did with one source file. Chunk text is
// owned by the vector store and never kept here.
type IngestedDocument struct {
	RunID    string `json:"run_id"`
	DocID    string `json:"doc_id"`
	Path     string `json:"path"`
	Title    string `json:"title"`
	Checksum string `json:"checksum"`
	Size     int64  `json:"size"`
	Chunks   int    `json:"chunks"`
	// Skipped is set when the file produced no chunks.
	Skipped bool `json:"skipped"`
}
