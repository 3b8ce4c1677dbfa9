package search

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/WindyStu/RAGJurisChat/internal/embedding"
	"github.com/WindyStu/RAGJurisChat/internal/generation"
	"github.com/WindyStu/RAGJurisChat/internal/indexer"
	"github.com/WindyStu/RAGJurisChat/internal/models"
	"github.com/WindyStu/RAGJurisChat/internal/vector"
	"go.uber.org/zap"
)

const testCollection = "law_articles"

type recordingModel struct {
	calls  int
	system string
	user   string
	err    error
}

func (m *recordingModel) Complete(ctx context.Context, system, user string) (string, error) {
	m.calls++
	m.system, m.user = system, user
	if m.err != nil {
		return "", m.err
	}
	return "答复", nil
}

// countingOpener wraps an Opener and counts acquired and released connections.
type countingOpener struct {
	open           vector.Opener
	opened, closed int
	searchErr      error
}

type countedStore struct {
	vector.Store
	owner *countingOpener
}

func (s *countedStore) Search(ctx context.Context, name string, q []float32, k int) ([]*models.SearchResult, error) {
	if s.owner.searchErr != nil {
		return nil, s.owner.searchErr
	}
	return s.Store.Search(ctx, name, q, k)
}

func (s *countedStore) Close(ctx context.Context) error {
	s.owner.closed++
	return s.Store.Close(ctx)
}

func (c *countingOpener) Open(ctx context.Context) (vector.Store, error) {
	st, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	c.opened++
	return &countedStore{Store: st, owner: c}, nil
}

func newMemoryStore(t *testing.T) *vector.MemoryStore {
	t.Helper()
	m, err := vector.NewMemoryStore("", vector.MetricL2, 2000, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestEngine_endToEnd(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)
	emb := embedding.NewMockEmbedder(256)
	chunker := indexer.NewChunker(512, 1000, 800)

	doc := "第一章 总则\n第一条 本法律适用于中华人民共和国境内的民事活动。\n第二条 民事主体在民事活动中的法律地位一律平等。"
	chunks, err := chunker.Chunk("民法", doc)
	if err != nil {
		t.Fatal(err)
	}
	var article1 *models.Chunk
	for _, ch := range chunks {
		if ch.Article == "第一条" && strings.Contains(ch.Text, "本法律适用于") {
			article1 = ch
		}
	}
	if article1 == nil {
		t.Fatalf("no chunk labelled 第一条 in %v", chunks)
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "民法.txt"), []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	idx := indexer.NewIndexer(store.Open, emb, chunker, nil,
		indexer.Options{Collection: testCollection, Recursive: true, AllowReset: true})
	if _, err := idx.IngestDirectories(ctx, []string{dir}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	model := &recordingModel{}
	composer := generation.NewComposer(model, "前言：\n")
	engine := NewEngine(store.Open, emb, composer, Options{Collection: testCollection, TopK: 3, Model: "qwen-plus"}, nil)

	answer, err := engine.Ask(ctx, "本法律适用于哪些民事活动？")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer.Answer != "答复" || answer.Model != "qwen-plus" {
		t.Errorf("answer = %+v", answer)
	}
	if len(answer.Passages) == 0 || answer.Passages[0].Text != article1.Text {
		t.Errorf("top passage = %+v, want %q", answer.Passages, article1.Text)
	}
	if !strings.Contains(model.system, article1.Text) {
		t.Errorf("grounding block does not contain the article verbatim: %q", model.system)
	}
	if model.user != "本法律适用于哪些民事活动？" {
		t.Errorf("user turn = %q", model.user)
	}
}

func TestEngine_emptyRetrievalStillComposes(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)
	if err := store.EnsureCollection(ctx, testCollection, 16); err != nil {
		t.Fatal(err)
	}
	model := &recordingModel{}
	engine := NewEngine(store.Open, embedding.NewMockEmbedder(16), generation.NewComposer(model, "P"),
		Options{Collection: testCollection}, zap.NewNop())

	answer, err := engine.Ask(ctx, "问题")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(answer.Passages) != 0 {
		t.Errorf("passages = %v", answer.Passages)
	}
	if model.calls != 1 || model.system != "P" {
		t.Errorf("composer calls = %d system = %q", model.calls, model.system)
	}
}

func TestEngine_userTurnKeepsQuestionLayout(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)
	if err := store.EnsureCollection(ctx, testCollection, 16); err != nil {
		t.Fatal(err)
	}
	model := &recordingModel{}
	engine := NewEngine(store.Open, embedding.NewMockEmbedder(16), generation.NewComposer(model, "P"),
		Options{Collection: testCollection}, zap.NewNop())

	if _, err := engine.Ask(ctx, "  什么是\n  正当防卫？ \t"); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if want := "什么是\n  正当防卫？"; model.user != want {
		t.Errorf("user turn = %q, want %q", model.user, want)
	}
}

func TestEngine_closesStoreOnEveryPath(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)
	_ = store.EnsureCollection(ctx, testCollection, 8)

	tests := []struct {
		name      string
		searchErr error
		chatErr   error
		wantErr   error
	}{
		{"success", nil, nil, nil},
		{"store failure", models.ErrStore, nil, models.ErrStore},
		{"generation failure", nil, models.ErrGenerationService, models.ErrGenerationService},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opener := &countingOpener{open: store.Open, searchErr: tt.searchErr}
			model := &recordingModel{err: tt.chatErr}
			engine := NewEngine(opener.Open, embedding.NewMockEmbedder(8), generation.NewComposer(model, "P"),
				Options{Collection: testCollection}, nil)
			_, err := engine.Ask(ctx, "问题")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if opener.opened != 1 || opener.closed != 1 {
				t.Errorf("opened %d closed %d", opener.opened, opener.closed)
			}
		})
	}
}

func TestEngine_invalidQuestionOpensNothing(t *testing.T) {
	opener := &countingOpener{open: newMemoryStore(t).Open}
	engine := NewEngine(opener.Open, embedding.NewMockEmbedder(8), generation.NewComposer(&recordingModel{}, "P"),
		Options{Collection: testCollection}, nil)
	_, err := engine.Ask(context.Background(), " 　 ")
	if !errors.Is(err, models.ErrInvalidQuestion) {
		t.Errorf("err = %v", err)
	}
	if opener.opened != 0 {
		t.Errorf("opened %d connections for an invalid question", opener.opened)
	}
}

func TestProcessQuestion(t *testing.T) {
	q := &models.Question{Text: " 合同　无效\n的情形 "}
	if err := ProcessQuestion(q); err != nil {
		t.Fatal(err)
	}
	if q.Text != "合同 无效 的情形" {
		t.Errorf("Text = %q", q.Text)
	}
}
