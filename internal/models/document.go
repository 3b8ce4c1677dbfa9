// Package models defines core data structures for documents, chunks, questions, and answers.
package models

import "time"

// Document is the raw text of one source file, read once during ingestion.
type Document struct {
	Path     string    `json:"path"`
	Title    string    `json:"title"`
	Content  string    `json:"-"`
	Size     int64     `json:"size"`
	ReadAt   time.Time `json:"read_at"`
	Checksum string    `json:"checksum"`
}

// Chunk is a bounded-length passage of legal text. Chapter and Article hold the
// structural labels (e.g. "第一章", "第一条") when the chunker could derive them.
type Chunk struct {
	ID      string `json:"id"`
	Source  string `json:"source,omitempty"`
	Chapter string `json:"chapter,omitempty"`
	Article string `json:"article,omitempty"`
	Index   int    `json:"index"`
	Text    string `json:"text"`
}

// Label returns the most specific structural label of the chunk, or "".
func (c *Chunk) Label() string {
	if c.Article != "" {
		return c.Article
	}
	return c.Chapter
}
