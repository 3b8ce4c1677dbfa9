package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/WindyStu/RAGJurisChat/pkg/utils"
)

// MockEmbedder is a deterministic offline embedder. Each rune and rune bigram is hashed
// into a bucket, so texts sharing characters land close together under L2.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 1024
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns a unit-length bag-of-characters vector for text.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emb := make([]float32, e.dimensions)
	var prev rune
	for _, r := range strings.ToLower(text) {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			prev = 0
			continue
		}
		emb[e.bucket(string(r))] += 1
		if prev != 0 {
			emb[e.bucket(string([]rune{prev, r}))] += 0.5
		}
		prev = r
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

func (e *MockEmbedder) bucket(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(e.dimensions))
}

// EmbedBatch calls Embed for each text.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
