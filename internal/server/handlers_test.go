package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/WindyStu/RAGJurisChat/internal/config"
	"github.com/WindyStu/RAGJurisChat/internal/embedding"
	"github.com/WindyStu/RAGJurisChat/internal/generation"
	"github.com/WindyStu/RAGJurisChat/internal/models"
	"github.com/WindyStu/RAGJurisChat/internal/search"
	"github.com/WindyStu/RAGJurisChat/internal/storage"
	"github.com/WindyStu/RAGJurisChat/internal/vector"
	"go.uber.org/zap"
)

type stubAsker struct {
	got    string
	answer *models.Answer
	err    error
}

func (s *stubAsker) Ask(ctx context.Context, question string) (*models.Answer, error) {
	s.got = question
	return s.answer, s.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Vector.Type = config.VectorTypeMemory
	cfg.Vector.MemoryPath = filepath.Join(t.TempDir(), "vectors.bin")
	cfg.Ingest.LedgerPath = filepath.Join(t.TempDir(), "ledger.db")
	return cfg
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var out errorResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return out
}

func TestHandleAsk_errorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"invalid question", fmt.Errorf("%w: question is empty", models.ErrInvalidQuestion), http.StatusBadRequest, models.KindInvalidQuestion},
		{"embedding timeout", models.WrapTimeout(models.ErrEmbeddingService, "embed", context.DeadlineExceeded), http.StatusGatewayTimeout, models.KindTimeout},
		{"raw deadline", fmt.Errorf("search: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, models.KindTimeout},
		{"store", fmt.Errorf("%w: collection missing", models.ErrStore), http.StatusInternalServerError, models.KindStore},
		{"generation", fmt.Errorf("%w: empty output", models.ErrGenerationService), http.StatusInternalServerError, models.KindGenerationService},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, models.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(&stubAsker{err: tt.err}, nil, testConfig(t), zap.NewNop())
			r := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader("问题"))
			w := httptest.NewRecorder()
			srv.handleAsk(w, r)
			if w.Code != tt.wantStatus {
				t.Errorf("status: got %d, want %d", w.Code, tt.wantStatus)
			}
			body := decodeError(t, w)
			if body.Kind != tt.wantKind || body.Error == "" {
				t.Errorf("body = %+v, want kind %s", body, tt.wantKind)
			}
		})
	}
}

func TestHandleAsk_bodyIsLimited(t *testing.T) {
	asker := &stubAsker{answer: &models.Answer{Answer: "ok"}}
	srv := NewServer(asker, nil, testConfig(t), zap.NewNop())
	big := strings.Repeat("a", MaxQuestionBody+100)
	r := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(big))
	w := httptest.NewRecorder()
	srv.handleAsk(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if len(asker.got) != MaxQuestionBody {
		t.Errorf("question length = %d, want %d", len(asker.got), MaxQuestionBody)
	}
}

func TestRouter_askEndToEnd(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	mem, err := vector.NewMemoryStore("", vector.MetricL2, cfg.Vector.TextMaxLength, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	emb := embedding.NewMockEmbedder(128)
	texts := []string{
		"第一条 中华人民共和国是工人阶级领导的社会主义国家。",
		"第二条 中华人民共和国的一切权力属于人民。",
	}
	vecs, err := emb.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatal(err)
	}
	if err := mem.EnsureCollection(ctx, cfg.Milvus.Collection, 128); err != nil {
		t.Fatal(err)
	}
	if _, err := mem.Insert(ctx, cfg.Milvus.Collection, texts, vecs); err != nil {
		t.Fatal(err)
	}

	composer := generation.NewComposer(generation.EchoModel{}, cfg.Chat.SystemPreamble)
	engine := search.NewEngine(mem.Open, emb, composer,
		search.Options{Collection: cfg.Milvus.Collection, TopK: 3, Model: "echo"}, zap.NewNop())
	ts := httptest.NewServer(NewServer(engine, nil, cfg, zap.NewNop()).Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/ask", "text/plain; charset=utf-8", strings.NewReader("一切权力属于谁？"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	var answer models.Answer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		t.Fatal(err)
	}
	if len(answer.Passages) != 2 {
		t.Fatalf("passages = %d, want 2", len(answer.Passages))
	}
	if answer.Passages[0].Text != texts[1] {
		t.Errorf("top passage = %q", answer.Passages[0].Text)
	}
	if !strings.Contains(answer.Answer, texts[1]) {
		t.Errorf("answer does not quote the passage: %q", answer.Answer)
	}

	empty, err := http.Post(ts.URL+"/api/ask", "text/plain", strings.NewReader("  \n "))
	if err != nil {
		t.Fatal(err)
	}
	empty.Body.Close()
	if empty.StatusCode != http.StatusBadRequest {
		t.Errorf("empty question status: got %d, want 400", empty.StatusCode)
	}
}

func TestRouter_unknownMethod(t *testing.T) {
	ts := httptest.NewServer(NewServer(&stubAsker{}, nil, testConfig(t), nil).Handler())
	defer ts.Close()
	resp, err := http.Get(ts.URL + "/api/ask")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d", resp.StatusCode)
	}
}

func TestHandleHealth(t *testing.T) {
	srv := NewServer(&stubAsker{}, nil, testConfig(t), zap.NewNop())
	w := httptest.NewRecorder()
	srv.handleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("got %d %s", w.Code, w.Body.String())
	}
}

func TestHandleStatus_reportsLastRun(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	ledger, err := storage.NewSQLiteLedger(cfg.Ingest.LedgerPath)
	if err != nil {
		t.Fatal(err)
	}
	defer ledger.Close()

	srv := NewServer(&stubAsker{}, ledger, cfg, zap.NewNop())
	w := httptest.NewRecorder()
	srv.handleStatus(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	var before statusResponse
	if err := json.NewDecoder(w.Body).Decode(&before); err != nil {
		t.Fatal(err)
	}
	if before.LastRun != nil {
		t.Errorf("expected no run yet, got %+v", before.LastRun)
	}
	if before.Collection != "law_articles" || before.VectorStore != config.VectorTypeMemory || before.TopK != 3 {
		t.Errorf("status = %+v", before)
	}

	run, err := ledger.StartRun(ctx, cfg.Milvus.Collection)
	if err != nil {
		t.Fatal(err)
	}
	run.Documents, run.Chunks, run.Inserted = 2, 7, 7
	if err := ledger.FinishRun(ctx, run, nil); err != nil {
		t.Fatal(err)
	}

	w = httptest.NewRecorder()
	srv.handleStatus(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var after statusResponse
	if err := json.NewDecoder(w.Body).Decode(&after); err != nil {
		t.Fatal(err)
	}
	if after.LastRun == nil || after.LastRun.ID != run.ID || after.LastRun.Status != models.RunSucceeded || after.LastRun.Chunks != 7 {
		t.Errorf("last run = %+v", after.LastRun)
	}
	if after.DiskUsage["ledger"] == 0 || after.DiskUsageTotal == 0 {
		t.Errorf("disk usage not reported: %+v", after.DiskUsage)
	}
}
