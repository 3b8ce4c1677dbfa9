// Package cli provides output helpers for the jurischat command.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/WindyStu/RAGJurisChat/internal/models"
	"github.com/WindyStu/RAGJurisChat/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text", "json" or "" (text).
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

const rule = "------------------------------------------------------------"

// passagePreview bounds passage text in text output.
const passagePreview = 120

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// WriteAnswer writes an answer and its grounding passages to w in the given format.
func WriteAnswer(w io.Writer, answer *models.Answer, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, answer)
	}
	fmt.Fprintf(w, "%s\n\n", strings.TrimSpace(answer.Answer))
	if len(answer.Passages) == 0 {
		fmt.Fprintf(w, "(no passages retrieved, %dms)\n", answer.QueryTime)
		return nil
	}
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Grounded on %d passages in %dms", len(answer.Passages), answer.QueryTime)
	if answer.Model != "" {
		fmt.Fprintf(w, " (%s)", answer.Model)
	}
	fmt.Fprintln(w)
	for i, p := range answer.Passages {
		fmt.Fprintf(w, "[%d] id=%d distance=%.4f\n    %s\n", i+1, p.ID, p.Score, utils.Truncate(oneLine(p.Text), passagePreview))
	}
	return nil
}

// WriteChunks writes chunker output for inspection.
func WriteChunks(w io.Writer, chunks []*models.Chunk, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, chunks)
	}
	for _, c := range chunks {
		label := c.Label()
		if label == "" {
			label = "-"
		}
		fmt.Fprintf(w, "#%d %s (%d chars)\n%s\n%s\n", c.Index, label, utils.RuneLen(c.Text), c.Text, rule)
	}
	fmt.Fprintf(w, "%d chunks\n", len(chunks))
	return nil
}

// WriteIngestReport writes the summary of an ingestion run.
func WriteIngestReport(w io.Writer, report *models.IngestReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "Ingested %d documents (%d skipped) into %q: %d chunks, %d inserted in %s\n",
		report.Documents, report.Skipped, report.Collection, report.Chunks, report.Inserted,
		(time.Duration(report.DurationMS) * time.Millisecond).String())
	if report.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", report.RunID)
	}
	return nil
}

// WriteRuns writes ledger runs, newest first.
func WriteRuns(w io.Writer, runs []*models.IngestRun, format OutputFormat) error {
	if format == OutputJSON {
		if runs == nil {
			runs = []*models.IngestRun{}
		}
		return writeJSON(w, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No ingestion runs recorded.")
		return nil
	}
	for _, r := range runs {
		finished := "-"
		if r.FinishedAt != nil {
			finished = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(w, "%s  %-9s  %s  docs=%d chunks=%d inserted=%d  took=%s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Status, r.ID,
			r.Documents, r.Chunks, r.Inserted, finished)
		if r.Error != "" {
			fmt.Fprintf(w, "    error: %s\n", r.Error)
		}
	}
	return nil
}

// WriteError writes err with its kind in the given format.
func WriteError(w io.Writer, err error, format OutputFormat) {
	if format == OutputJSON {
		_ = writeJSON(w, map[string]string{"error": err.Error(), "kind": models.KindOf(err)})
		return
	}
	fmt.Fprintf(w, "Error [%s]: %v\n", models.KindOf(err), err)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
