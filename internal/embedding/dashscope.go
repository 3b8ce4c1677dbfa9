package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/WindyStu/RAGJurisChat/internal/models"
	"go.uber.org/zap"
)

// MaxBatchSize is the most inputs the service accepts in one request.
const MaxBatchSize = 10

// DashScopeConfig configures the OpenAI-compatible DashScope embeddings client.
type DashScopeConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	Dimensions     int
	BatchSize      int
	EncodingFormat string
	// Timeout bounds each batch request.
	Timeout time.Duration
}

// DashScopeEmbedder calls POST {BaseURL}/embeddings in batches of at most MaxBatchSize.
type DashScopeEmbedder struct {
	cfg    DashScopeConfig
	client *http.Client
	logger *zap.Logger
}

// Option configures a DashScopeEmbedder.
type Option func(*DashScopeEmbedder)

// WithLogger sets the logger for request diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(e *DashScopeEmbedder) {
		e.logger = l
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *DashScopeEmbedder) {
		e.client = c
	}
}

// NewDashScopeEmbedder validates cfg and returns a client. A missing API key is a
// configuration error.
func NewDashScopeEmbedder(cfg DashScopeConfig, opts ...Option) (*DashScopeEmbedder, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: embedding API key is not set", models.ErrConfiguration)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: embedding base URL is not set", models.ErrConfiguration)
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: embedding dimensions must be positive", models.ErrConfiguration)
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.EncodingFormat == "" {
		cfg.EncodingFormat = "float"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	e := &DashScopeEmbedder{
		cfg:    cfg,
		client: &http.Client{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

type embeddingRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	Dimensions     int      `json:"dimensions"`
	EncodingFormat string   `json:"encoding_format"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     *int      `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Embed returns the embedding of a single text.
func (e *DashScopeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in order, one request per batch. The first failing batch
// aborts the call; no partial result is returned.
func (e *DashScopeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("%w: input %d is empty", models.ErrEmbeddingService, i)
		}
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := e.embedOnce(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", start, end-1, err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *DashScopeEmbedder) embedOnce(ctx context.Context, batch []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(embeddingRequest{
		Model:          e.cfg.Model,
		Input:          batch,
		Dimensions:     e.cfg.Dimensions,
		EncodingFormat: e.cfg.EncodingFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", models.ErrEmbeddingService, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", models.ErrEmbeddingService, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	started := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, models.WrapTimeout(models.ErrEmbeddingService, "request", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.WrapTimeout(models.ErrEmbeddingService, "read response", err)
	}
	e.logger.Debug("embedding request",
		zap.Int("inputs", len(batch)),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(started)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s", models.ErrEmbeddingService, resp.StatusCode, snippet(payload))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", models.ErrEmbeddingService, err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("%w: %s (%s)", models.ErrEmbeddingService, parsed.Error.Message, parsed.Error.Code)
	}
	return e.orderVectors(parsed, len(batch))
}

// orderVectors places each returned embedding at its input position. Entries without
// an index are taken in response order.
func (e *DashScopeEmbedder) orderVectors(parsed embeddingResponse, n int) ([][]float32, error) {
	if len(parsed.Data) != n {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", models.ErrEmbeddingService, n, len(parsed.Data))
	}
	out := make([][]float32, n)
	for i, d := range parsed.Data {
		pos := i
		if d.Index != nil {
			pos = *d.Index
		}
		if pos < 0 || pos >= n || out[pos] != nil {
			return nil, fmt.Errorf("%w: invalid or duplicate embedding index %d", models.ErrEmbeddingService, pos)
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("%w: embedding %d is missing", models.ErrEmbeddingService, pos)
		}
		if len(d.Embedding) != e.cfg.Dimensions {
			return nil, fmt.Errorf("%w: embedding %d has dimension %d, expected %d",
				models.ErrEmbeddingService, pos, len(d.Embedding), e.cfg.Dimensions)
		}
		out[pos] = d.Embedding
	}
	return out, nil
}

// Dimensions returns the configured embedding dimension.
func (e *DashScopeEmbedder) Dimensions() int {
	return e.cfg.Dimensions
}

// Close releases idle connections.
func (e *DashScopeEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 300 {
		s = s[:300] + "..."
	}
	return s
}
