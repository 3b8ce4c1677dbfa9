// Package vector is the gateway to the vector database holding indexed legal passages.
package vector

import (
	"context"

	"github.com/WindyStu/RAGJurisChat/internal/models"
)

// Field names of an indexed record.
const (
	FieldID        = "id"
	FieldEmbedding = "embedding"
	FieldText      = "text"
)

// DefaultTopK is the number of passages retrieved per question.
const DefaultTopK = 3

// Store wraps collection management, insert and similarity search.
type Store interface {
	// EnsureCollection drops any existing collection of that name and creates it empty.
	EnsureCollection(ctx context.Context, name string, dim int) error
	// BuildIndex creates a flat index over the vector field and leaves the collection
	// searchable even before any Insert.
	BuildIndex(ctx context.Context, name, field string) error
	// Insert stores paired records, makes them durable and loads the collection for search.
	Insert(ctx context.Context, name string, texts []string, vectors [][]float32) (int, error)
	// Search returns up to topK results ordered nearest first.
	Search(ctx context.Context, name string, query []float32, topK int) ([]*models.SearchResult, error)
	Close(ctx context.Context) error
}

// Opener acquires a Store connection scoped to one run or query. Callers must Close it.
type Opener func(ctx context.Context) (Store, error)
