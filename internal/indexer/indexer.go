package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/WindyStu/RAGJurisChat/internal/embedding"
	"github.com/WindyStu/RAGJurisChat/internal/extract"
	"github.com/WindyStu/RAGJurisChat/internal/fileid"
	"github.com/WindyStu/RAGJurisChat/internal/models"
	"github.com/WindyStu/RAGJurisChat/internal/storage"
	"github.com/WindyStu/RAGJurisChat/internal/vector"
	"go.uber.org/zap"
)

// Options holds ingestion settings.
type Options struct {
	Collection string
	Dimensions int
	// Extensions restricts which files are read; empty means every supported extension.
	Extensions []string
	Recursive  bool
	// AllowReset must be set for a run to drop and recreate the collection.
	AllowReset bool
}

// Indexer is the ingestion driver: reset collection, build index, read, chunk, embed, insert.
type Indexer struct {
	open      vector.Opener
	embedder  embedding.Embedder
	chunker   *Chunker
	extractor *extract.Extractor
	opts      Options
	ledger    storage.Ledger // optional
	logger    *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for progress output.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithLedger records every run and the documents it read.
func WithLedger(l storage.Ledger) IndexerOption {
	return func(idx *Indexer) { idx.ledger = l }
}

// NewIndexer creates an indexer with the given dependencies.
// extractor may be nil; when nil, every file is read as plain text.
func NewIndexer(
	open vector.Opener,
	embedder embedding.Embedder,
	chunker *Chunker,
	extractor *extract.Extractor,
	opts Options,
	options ...IndexerOption,
) *Indexer {
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = extract.SupportedExtensions
	}
	if opts.Dimensions <= 0 {
		opts.Dimensions = embedder.Dimensions()
	}
	idx := &Indexer{
		open:      open,
		embedder:  embedder,
		chunker:   chunker,
		extractor: extractor,
		opts:      opts,
		logger:    zap.NewNop(),
	}
	for _, opt := range options {
		opt(idx)
	}
	return idx
}

// IngestDirectories reads every matching file under dirs and loads it into a freshly
// reset collection. Any failure aborts the run; the ledger marks it failed.
func (idx *Indexer) IngestDirectories(ctx context.Context, dirs []string) (*models.IngestReport, error) {
	files, err := CollectFiles(dirs, idx.opts.Extensions, idx.opts.Recursive)
	if err != nil {
		return nil, err
	}
	return idx.IngestFiles(ctx, files)
}

// IngestFiles runs ingestion over an explicit file list.
func (idx *Indexer) IngestFiles(ctx context.Context, files []string) (report *models.IngestReport, err error) {
	startTime := time.Now()
	if !idx.opts.AllowReset {
		return nil, fmt.Errorf("%w: ingestion drops collection %q; reset must be allowed explicitly",
			models.ErrConfiguration, idx.opts.Collection)
	}

	report = &models.IngestReport{Collection: idx.opts.Collection}
	var run *models.IngestRun
	if idx.ledger != nil {
		run, err = idx.ledger.StartRun(ctx, idx.opts.Collection)
		if err != nil {
			return nil, err
		}
		report.RunID = run.ID
		defer func() {
			run.Documents, run.Chunks, run.Inserted = report.Documents, report.Chunks, report.Inserted
			if ferr := idx.ledger.FinishRun(context.WithoutCancel(ctx), run, err); ferr != nil {
				idx.logger.Warn("record ingest run", zap.Error(ferr))
			}
		}()
	}

	store, err := idx.open(ctx)
	if err != nil {
		return report, err
	}
	defer func() {
		if cerr := store.Close(context.WithoutCancel(ctx)); cerr != nil {
			idx.logger.Warn("close vector store", zap.Error(cerr))
		}
	}()

	idx.logger.Warn("resetting collection", zap.String("collection", idx.opts.Collection))
	if err = store.EnsureCollection(ctx, idx.opts.Collection, idx.opts.Dimensions); err != nil {
		return report, err
	}
	if err = store.BuildIndex(ctx, idx.opts.Collection, vector.FieldEmbedding); err != nil {
		return report, err
	}

	var texts []string
	for _, path := range files {
		if err = ctx.Err(); err != nil {
			return report, err
		}
		var chunks []*models.Chunk
		chunks, err = idx.readFile(ctx, run, path)
		if err != nil {
			return report, err
		}
		report.Documents++
		if len(chunks) == 0 {
			report.Skipped++
			continue
		}
		for _, ch := range chunks {
			texts = append(texts, ch.Text)
		}
	}
	report.Chunks = len(texts)

	if len(texts) > 0 {
		var vectors [][]float32
		vectors, err = idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return report, err
		}
		report.Inserted, err = store.Insert(ctx, idx.opts.Collection, texts, vectors)
		if err != nil {
			return report, err
		}
	}
	report.DurationMS = time.Since(startTime).Milliseconds()
	idx.logger.Info("ingestion finished",
		zap.String("collection", report.Collection),
		zap.Int("documents", report.Documents),
		zap.Int("chunks", report.Chunks),
		zap.Int("inserted", report.Inserted),
		zap.Int64("duration_ms", report.DurationMS))
	return report, nil
}

func (idx *Indexer) readFile(ctx context.Context, run *models.IngestRun, path string) ([]*models.Chunk, error) {
	idx.logger.Debug("indexer reading file", zap.String("path", path))
	doc, err := idx.extractor.Read(path)
	if err != nil {
		return nil, err
	}
	chunks, err := idx.chunker.Chunk(doc.Title, doc.Content)
	if err != nil {
		return nil, err
	}
	if run != nil {
		rec := &models.IngestedDocument{
			RunID:    run.ID,
			DocID:    fileid.DocID(path),
			Path:     path,
			Title:    doc.Title,
			Checksum: doc.Checksum,
			Size:     doc.Size,
			Chunks:   len(chunks),
			Skipped:  len(chunks) == 0,
		}
		if err := idx.ledger.RecordDocument(ctx, rec); err != nil {
			return nil, err
		}
	}
	idx.logger.Debug("indexer file chunked", zap.String("path", path), zap.Int("chunks", len(chunks)))
	return chunks, nil
}

// CollectFiles lists regular files under dirs whose extension is in exts, sorted and
// de-duplicated. A dir may also name a single file.
func CollectFiles(dirs []string, exts []string, recursive bool) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}
	for _, dir := range dirs {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("absolute path: %w", err)
		}
		info, err := os.Stat(absDir)
		if err != nil {
			return nil, fmt.Errorf("stat directory: %w", err)
		}
		if !info.IsDir() {
			if info.Mode().IsRegular() && extensionAllowed(filepath.Ext(absDir), exts) {
				add(absDir)
			}
			continue
		}
		err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if path != absDir && (!recursive || strings.HasPrefix(d.Name(), ".")) {
					return filepath.SkipDir
				}
				return nil
			}
			if !extensionAllowed(filepath.Ext(path), exts) {
				return nil
			}
			// Resolve symlinks so we only read regular files
			finfo, statErr := os.Stat(path)
			if statErr != nil || !finfo.Mode().IsRegular() {
				return nil
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	if extNorm == "" {
		return false
	}
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
