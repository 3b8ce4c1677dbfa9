// Package search answers legal questions from the indexed passages.
package search

import (
	"context"
	"strings"
	"time"

	"github.com/WindyStu/RAGJurisChat/internal/embedding"
	"github.com/WindyStu/RAGJurisChat/internal/generation"
	"github.com/WindyStu/RAGJurisChat/internal/models"
	"github.com/WindyStu/RAGJurisChat/internal/vector"
	"go.uber.org/zap"
)

// Options holds per-engine retrieval settings.
type Options struct {
	Collection string
	TopK       int
	// Model is reported in answers; empty omits it.
	Model string
}

// Engine is the query driver: embed, retrieve, compose.
type Engine struct {
	open     vector.Opener
	embedder embedding.Embedder
	composer *generation.Composer
	opts     Options
	logger   *zap.Logger
}

// NewEngine creates an engine. Each Ask acquires its own store connection from open.
func NewEngine(
	open vector.Opener,
	embedder embedding.Embedder,
	composer *generation.Composer,
	opts Options,
	logger *zap.Logger,
) *Engine {
	if opts.TopK <= 0 {
		opts.TopK = vector.DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		open:     open,
		embedder: embedder,
		composer: composer,
		opts:     opts,
		logger:   logger,
	}
}

// Ask answers question grounded on the nearest passages. An empty retrieval still
// reaches the chat model with an empty grounding block. The store connection is
// closed on every path. Retrieval embeds the whitespace-collapsed question while the
// chat model receives the question as asked, trimmed.
func (e *Engine) Ask(ctx context.Context, question string) (*models.Answer, error) {
	startTime := time.Now()
	asked := strings.TrimSpace(question)
	q := &models.Question{Text: asked}
	if err := ProcessQuestion(q); err != nil {
		return nil, err
	}

	store, err := e.open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := store.Close(context.WithoutCancel(ctx)); cerr != nil {
			e.logger.Warn("close vector store", zap.Error(cerr))
		}
	}()

	vecs, err := e.embedder.EmbedBatch(ctx, []string{q.Text})
	if err != nil {
		return nil, err
	}
	results, err := store.Search(ctx, e.opts.Collection, vecs[0], e.opts.TopK)
	if err != nil {
		return nil, err
	}

	passages := make([]string, len(results))
	for i, r := range results {
		passages[i] = r.Text
	}
	e.logger.Debug("retrieved passages", zap.Int("count", len(results)), zap.String("collection", e.opts.Collection))

	reply, err := e.composer.Compose(ctx, asked, passages)
	if err != nil {
		return nil, err
	}
	return &models.Answer{
		Answer:    reply,
		Passages:  results,
		Model:     e.opts.Model,
		QueryTime: time.Since(startTime).Milliseconds(),
	}, nil
}
