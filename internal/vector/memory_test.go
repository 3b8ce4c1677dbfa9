package vector

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/WindyStu/RAGJurisChat/internal/models"
	"go.uber.org/zap"
)

const testCollection = "law_articles"

func newStore(t *testing.T, path string) *MemoryStore {
	t.Helper()
	m, err := NewMemoryStore(path, MetricL2, 2000, zap.NewNop())
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	return m
}

func seed(t *testing.T, s Store, texts []string, vecs [][]float32) {
	t.Helper()
	ctx := context.Background()
	if err := s.EnsureCollection(ctx, testCollection, len(vecs[0])); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	if err := s.BuildIndex(ctx, testCollection, FieldEmbedding); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	n, err := s.Insert(ctx, testCollection, texts, vecs)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if n != len(texts) {
		t.Fatalf("Insert returned %d, want %d", n, len(texts))
	}
}

func TestMemoryStore_insertSearchRoundTrip(t *testing.T) {
	m := newStore(t, "")
	texts := []string{"第一条 本法律适用于...", "第二条 公民的基本权利", "第三条 国家机构"}
	vecs := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	seed(t, m, texts, vecs)

	for i := range texts {
		results, err := m.Search(context.Background(), testCollection, vecs[i], DefaultTopK)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if len(results) != 3 {
			t.Fatalf("got %d results", len(results))
		}
		if results[0].Text != texts[i] {
			t.Errorf("nearest to %d = %q", i, results[0].Text)
		}
		if math.Abs(results[0].Score) > 1e-9 {
			t.Errorf("self distance = %v", results[0].Score)
		}
		for j := 1; j < len(results); j++ {
			if results[j].Score < results[j-1].Score {
				t.Errorf("results not ordered nearest first: %v", results)
			}
		}
	}
}

func TestMemoryStore_fewerThanTopK(t *testing.T) {
	m := newStore(t, "")
	seed(t, m, []string{"甲", "乙"}, [][]float32{{1, 0}, {0, 1}})
	results, err := m.Search(context.Background(), testCollection, []float32{1, 1}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}
}

func TestMemoryStore_ensureCollectionResets(t *testing.T) {
	m := newStore(t, "")
	ctx := context.Background()
	seed(t, m, []string{"甲"}, [][]float32{{1, 0}})

	for _, dim := range []int{2, 4} {
		if err := m.EnsureCollection(ctx, testCollection, dim); err != nil {
			t.Fatalf("EnsureCollection: %v", err)
		}
		if m.Count(testCollection) != 0 {
			t.Errorf("collection not empty after reset: %d", m.Count(testCollection))
		}
		results, err := m.Search(ctx, testCollection, make([]float32, dim), 3)
		if err != nil {
			t.Fatalf("Search after reset: %v", err)
		}
		if len(results) != 0 {
			t.Errorf("got %d results from empty collection", len(results))
		}
	}
}

func TestMemoryStore_errors(t *testing.T) {
	m := newStore(t, "")
	ctx := context.Background()
	seed(t, m, []string{"甲"}, [][]float32{{1, 0}})

	tests := []struct {
		name string
		run  func() error
	}{
		{"dimension mismatch insert", func() error {
			_, err := m.Insert(ctx, testCollection, []string{"乙"}, [][]float32{{1, 0, 0}})
			return err
		}},
		{"length mismatch", func() error {
			_, err := m.Insert(ctx, testCollection, []string{"乙", "丙"}, [][]float32{{1, 0}})
			return err
		}},
		{"text too long", func() error {
			long := string(make([]byte, 2001))
			_, err := m.Insert(ctx, testCollection, []string{long}, [][]float32{{1, 0}})
			return err
		}},
		{"dimension mismatch search", func() error {
			_, err := m.Search(ctx, testCollection, []float32{1}, 3)
			return err
		}},
		{"unknown collection", func() error {
			_, err := m.Search(ctx, "missing", []float32{1, 0}, 3)
			return err
		}},
		{"index on non-vector field", func() error {
			return m.BuildIndex(ctx, testCollection, FieldText)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, models.ErrStore) {
				t.Errorf("err = %v, want store error", err)
			}
		})
	}
	if m.Count(testCollection) != 1 {
		t.Errorf("rejected inserts changed the collection: %d", m.Count(testCollection))
	}
}

func TestMemoryStore_autoIDs(t *testing.T) {
	m := newStore(t, "")
	seed(t, m, []string{"甲", "乙"}, [][]float32{{1, 0}, {0, 1}})
	results, _ := m.Search(context.Background(), testCollection, []float32{1, 0}, 2)
	if results[0].ID == results[1].ID || results[0].ID <= 0 {
		t.Errorf("ids not unique positive: %d %d", results[0].ID, results[1].ID)
	}
}

func TestMemoryStore_persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors", "store.bin")
	m := newStore(t, path)
	seed(t, m, []string{"第一条 内容", "第二条 内容"}, [][]float32{{0.5, 0.5}, {-1, 2}})

	reopened := newStore(t, path)
	if reopened.Count(testCollection) != 2 {
		t.Fatalf("Count after reload = %d", reopened.Count(testCollection))
	}
	results, err := reopened.Search(context.Background(), testCollection, []float32{-1, 2}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Text != "第二条 内容" || results[0].Score != 0 {
		t.Errorf("got %+v", results[0])
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind")
	}
}

func TestMemoryStore_corruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.bin")
	if err := os.WriteFile(path, []byte("garbage"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewMemoryStore(path, MetricL2, 0, nil); !errors.Is(err, models.ErrStore) {
		t.Errorf("err = %v, want store error", err)
	}
}

func TestMemorySession_closed(t *testing.T) {
	m := newStore(t, "")
	ctx := context.Background()
	s, err := m.Open(ctx)
	if err != nil {
		t.Fatal(err)
	}
	seed(t, s, []string{"甲"}, [][]float32{{1}})
	if err := s.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Search(ctx, testCollection, []float32{1}, 1); !errors.Is(err, models.ErrStore) {
		t.Errorf("search on closed session: %v", err)
	}

	again, _ := m.Open(ctx)
	defer again.Close(ctx)
	if results, err := again.Search(ctx, testCollection, []float32{1}, 1); err != nil || len(results) != 1 {
		t.Errorf("new session should see data: %v %v", results, err)
	}
}

func TestMemoryStore_innerProductOrdersDescending(t *testing.T) {
	m, _ := NewMemoryStore("", MetricIP, 0, nil)
	seed(t, m, []string{"low", "high"}, [][]float32{{0.1, 0}, {0.9, 0}})
	results, _ := m.Search(context.Background(), testCollection, []float32{1, 0}, 2)
	if results[0].Text != "high" {
		t.Errorf("got %q first", results[0].Text)
	}
}
