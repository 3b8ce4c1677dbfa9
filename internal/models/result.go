package models

// SearchResult is a single similarity hit: identifier, distance, and the stored text.
// Results are ordered by ascending Score (nearest first) under the L2 metric.
type SearchResult struct {
	ID    int64   `json:"id"`
	Score float64 `json:"score"`
	Text  string  `json:"text"`
}

// Answer is the response to a question: generated text plus the passages used to ground it.
type Answer struct {
	Answer   string          `json:"answer"`
	Passages []*SearchResult `json:"passages"`
	Model    string          `json:"model,omitempty"`
	// QueryTime is the end-to-end latency in milliseconds.
	QueryTime int64 `json:"query_time_ms"`
}

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	RunID      string `json:"run_id"`
	Collection string `json:"collection"`
	Documents  int    `json:"documents"`
	Chunks     int    `json:"chunks"`
	Inserted   int    `json:"inserted"`
	Skipped    int    `json:"skipped"`
	DurationMS int64  `json:"duration_ms"`
}
