package vector

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/WindyStu/RAGJurisChat/internal/models"
	"go.uber.org/zap"
)

const memoryMagic = "JCV1"

type memoryCollection struct {
	dim     int
	indexed bool
	nextID  int64
	ids     []int64
	texts   []string
	vectors [][]float32
}

// MemoryStore is an exhaustive in-process vector store with the same contract as the
// Milvus gateway. When path is set, every insert is persisted there and other processes
// pick up the file on their next Open.
type MemoryStore struct {
	path          string
	metric        Metric
	textMaxLength int
	logger        *zap.Logger

	mu          sync.RWMutex
	collections map[string]*memoryCollection
	loadedAt    time.Time
}

// NewMemoryStore returns a store backed by path ("" keeps it in memory only), loading
// any existing contents.
func NewMemoryStore(path string, metric Metric, textMaxLength int, logger *zap.Logger) (*MemoryStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &MemoryStore{
		path:          path,
		metric:        metric,
		textMaxLength: textMaxLength,
		logger:        logger,
		collections:   make(map[string]*memoryCollection),
	}
	if err := m.reloadIfChanged(); err != nil {
		return nil, err
	}
	return m, nil
}

// Open returns a session on the shared store, reloading the backing file if another
// process rewrote it.
func (m *MemoryStore) Open(ctx context.Context) (Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.WrapTimeout(models.ErrStore, "open", err)
	}
	if err := m.reloadIfChanged(); err != nil {
		return nil, err
	}
	return &memorySession{store: m}, nil
}

// EnsureCollection drops name if present and creates it empty with dimension dim.
func (m *MemoryStore) EnsureCollection(ctx context.Context, name string, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", models.ErrStore, dim)
	}
	m.mu.Lock()
	if _, ok := m.collections[name]; ok {
		m.logger.Warn("dropping existing collection", zap.String("collection", name))
	}
	m.collections[name] = &memoryCollection{dim: dim, nextID: 1}
	m.mu.Unlock()
	return m.persist()
}

// BuildIndex marks the vector field as searchable. Search is always exhaustive.
func (m *MemoryStore) BuildIndex(ctx context.Context, name, field string) error {
	if field != FieldEmbedding {
		return fmt.Errorf("%w: field %q is not a vector field", models.ErrStore, field)
	}
	m.mu.Lock()
	c, ok := m.collections[name]
	if ok {
		c.indexed = true
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: collection %q not found", models.ErrStore, name)
	}
	return m.persist()
}

// Insert appends records with auto-assigned IDs. The whole call is rejected if any
// record violates the schema.
func (m *MemoryStore) Insert(ctx context.Context, name string, texts []string, vectors [][]float32) (int, error) {
	if len(texts) != len(vectors) {
		return 0, fmt.Errorf("%w: %d texts but %d vectors", models.ErrStore, len(texts), len(vectors))
	}
	m.mu.Lock()
	c, ok := m.collections[name]
	if !ok {
		m.mu.Unlock()
		return 0, fmt.Errorf("%w: collection %q not found", models.ErrStore, name)
	}
	for i := range texts {
		if len(vectors[i]) != c.dim {
			m.mu.Unlock()
			return 0, fmt.Errorf("%w: vector %d has dimension %d, collection expects %d",
				models.ErrStore, i, len(vectors[i]), c.dim)
		}
		if m.textMaxLength > 0 && len(texts[i]) > m.textMaxLength {
			m.mu.Unlock()
			return 0, fmt.Errorf("%w: text %d is %d bytes, field max is %d",
				models.ErrStore, i, len(texts[i]), m.textMaxLength)
		}
	}
	for i := range texts {
		vec := make([]float32, c.dim)
		copy(vec, vectors[i])
		c.ids = append(c.ids, c.nextID)
		c.texts = append(c.texts, texts[i])
		c.vectors = append(c.vectors, vec)
		c.nextID++
	}
	m.mu.Unlock()
	if err := m.persist(); err != nil {
		return 0, err
	}
	return len(texts), nil
}

// Search scores every record and returns the topK nearest.
func (m *MemoryStore) Search(ctx context.Context, name string, query []float32, topK int) ([]*models.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: collection %q not found", models.ErrStore, name)
	}
	if len(query) != c.dim {
		return nil, fmt.Errorf("%w: query dimension %d, collection expects %d", models.ErrStore, len(query), c.dim)
	}
	if topK <= 0 || len(c.ids) == 0 {
		return []*models.SearchResult{}, nil
	}
	results := make([]*models.SearchResult, len(c.ids))
	for i, vec := range c.vectors {
		results[i] = &models.SearchResult{ID: c.ids[i], Score: m.metric.Score(query, vec), Text: c.texts[i]}
	}
	sort.SliceStable(results, func(i, j int) bool { return m.metric.Nearer(results[i].Score, results[j].Score) })
	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

// Count returns the number of records in name, or -1 if it does not exist.
func (m *MemoryStore) Count(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[name]
	if !ok {
		return -1
	}
	return len(c.ids)
}

// Close is a no-op; the store is persisted on every write.
func (m *MemoryStore) Close(ctx context.Context) error {
	return nil
}

func (m *MemoryStore) reloadIfChanged() error {
	if m.path == "" {
		return nil
	}
	info, err := os.Stat(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: stat %s: %v", models.ErrStore, m.path, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !info.ModTime().After(m.loadedAt) {
		return nil
	}
	collections, err := readCollections(m.path)
	if err != nil {
		return fmt.Errorf("%w: load %s: %v", models.ErrStore, m.path, err)
	}
	m.collections = collections
	m.loadedAt = info.ModTime()
	m.logger.Debug("loaded vector file", zap.String("path", m.path), zap.Int("collections", len(collections)))
	return nil
}

// persist writes all collections to a temp file and renames it over path. Format:
// magic, collection count, then per collection: name, dim, indexed, nextID, record
// count and per record: id, text, dim float32s. All integers little-endian.
func (m *MemoryStore) persist() error {
	if m.path == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("%w: create vector dir: %v", models.ErrStore, err)
	}
	tmp := m.path + ".tmp"
	if err := writeCollections(tmp, m.collections); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: write vector file: %v", models.ErrStore, err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("%w: replace vector file: %v", models.ErrStore, err)
	}
	if info, err := os.Stat(m.path); err == nil {
		m.loadedAt = info.ModTime()
	}
	return nil
}

func writeCollections(path string, collections map[string]*memoryCollection) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	le := binary.LittleEndian

	names := make([]string, 0, len(collections))
	for name := range collections {
		names = append(names, name)
	}
	sort.Strings(names)

	_, _ = w.WriteString(memoryMagic)
	_ = binary.Write(w, le, uint32(len(names)))
	for _, name := range names {
		c := collections[name]
		writeString(w, name)
		_ = binary.Write(w, le, uint32(c.dim))
		indexed := uint8(0)
		if c.indexed {
			indexed = 1
		}
		_ = binary.Write(w, le, indexed)
		_ = binary.Write(w, le, c.nextID)
		_ = binary.Write(w, le, uint32(len(c.ids)))
		for i, id := range c.ids {
			_ = binary.Write(w, le, id)
			writeString(w, c.texts[i])
			_, _ = w.Write(float32SliceToBytes(c.vectors[i]))
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeString(w *bufio.Writer, s string) {
	_ = binary.Write(w, binary.LittleEndian, uint32(len(s)))
	_, _ = w.WriteString(s)
}

func readCollections(path string) (map[string]*memoryCollection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := bufio.NewReader(f)
	le := binary.LittleEndian

	magic := make([]byte, len(memoryMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != memoryMagic {
		return nil, fmt.Errorf("not a vector file")
	}
	var n uint32
	if err := binary.Read(r, le, &n); err != nil {
		return nil, fmt.Errorf("read collection count: %w", err)
	}
	out := make(map[string]*memoryCollection, n)
	for i := uint32(0); i < n; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("read collection name: %w", err)
		}
		var dim, count uint32
		var indexed uint8
		c := &memoryCollection{}
		if err := binary.Read(r, le, &dim); err != nil {
			return nil, fmt.Errorf("read dimensions: %w", err)
		}
		if err := binary.Read(r, le, &indexed); err != nil {
			return nil, fmt.Errorf("read index flag: %w", err)
		}
		if err := binary.Read(r, le, &c.nextID); err != nil {
			return nil, fmt.Errorf("read next id: %w", err)
		}
		if err := binary.Read(r, le, &count); err != nil {
			return nil, fmt.Errorf("read count: %w", err)
		}
		c.dim = int(dim)
		c.indexed = indexed == 1
		buf := make([]byte, c.dim*4)
		for j := uint32(0); j < count; j++ {
			var id int64
			if err := binary.Read(r, le, &id); err != nil {
				return nil, fmt.Errorf("read id: %w", err)
			}
			text, err := readString(r)
			if err != nil {
				return nil, fmt.Errorf("read text: %w", err)
			}
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, fmt.Errorf("read vector: %w", err)
			}
			c.ids = append(c.ids, id)
			c.texts = append(c.texts, text)
			c.vectors = append(c.vectors, bytesToFloat32Slice(buf))
		}
		out[name] = c
	}
	return out, nil
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}

// memorySession is one scoped connection to a MemoryStore.
type memorySession struct {
	store  *MemoryStore
	mu     sync.Mutex
	closed bool
}

func (s *memorySession) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: connection is closed", models.ErrStore)
	}
	return nil
}

func (s *memorySession) EnsureCollection(ctx context.Context, name string, dim int) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.store.EnsureCollection(ctx, name, dim)
}

func (s *memorySession) BuildIndex(ctx context.Context, name, field string) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.store.BuildIndex(ctx, name, field)
}

func (s *memorySession) Insert(ctx context.Context, name string, texts []string, vectors [][]float32) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	return s.store.Insert(ctx, name, texts, vectors)
}

func (s *memorySession) Search(ctx context.Context, name string, query []float32, topK int) ([]*models.SearchResult, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.store.Search(ctx, name, query, topK)
}

func (s *memorySession) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
