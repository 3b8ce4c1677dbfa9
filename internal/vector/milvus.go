package vector

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/WindyStu/RAGJurisChat/internal/config"
	"github.com/WindyStu/RAGJurisChat/internal/models"
	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
	"go.uber.org/zap"
)

// MilvusStore is one connection to a Milvus server.
type MilvusStore struct {
	client        *milvusclient.Client
	ops           collectionOps
	shards        int32
	indexName     string
	metric        Metric
	textMaxLength int
	timeout       time.Duration
	logger        *zap.Logger
}

// DialMilvus connects to the server in mc. The connection lives until Close.
func DialMilvus(ctx context.Context, mc config.MilvusConfig, vc config.VectorConfig, logger *zap.Logger) (*MilvusStore, error) {
	metric, err := ParseMetric(vc.Metric)
	if err != nil {
		return nil, err
	}
	timeout := mc.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	c, err := milvusclient.New(dialCtx, &milvusclient.ClientConfig{
		Address:  mc.Address,
		Username: mc.Username,
		Password: mc.Password,
		DBName:   mc.DBName,
	})
	if err != nil {
		return nil, models.WrapTimeout(models.ErrStore, "connect to milvus at "+mc.Address, err)
	}
	shards := mc.Shards
	if shards <= 0 {
		shards = 2
	}
	return &MilvusStore{
		client:        c,
		ops:           clientOps{client: c},
		shards:        int32(shards),
		indexName:     vc.IndexName,
		metric:        metric,
		textMaxLength: vc.TextMaxLength,
		timeout:       timeout,
		logger:        logger,
	}, nil
}

// EnsureCollection drops name if it exists and recreates it with the id/embedding/text schema.
func (s *MilvusStore) EnsureCollection(ctx context.Context, name string, dim int) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return models.WrapTimeout(models.ErrStore, "has collection", err)
	}
	if exists {
		s.logger.Warn("dropping existing collection", zap.String("collection", name))
		if err := s.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(name)); err != nil {
			return models.WrapTimeout(models.ErrStore, "drop collection", err)
		}
	}
	opt := milvusclient.NewCreateCollectionOption(name, buildSchema(name, dim, s.textMaxLength)).
		WithShardNum(s.shards)
	if err := s.client.CreateCollection(ctx, opt); err != nil {
		return models.WrapTimeout(models.ErrStore, "create collection", err)
	}
	s.logger.Info("created collection", zap.String("collection", name), zap.Int("dim", dim))
	return nil
}

// BuildIndex creates a FLAT index over field with the configured metric and loads the
// collection, so an empty collection is already searchable.
func (s *MilvusStore) BuildIndex(ctx context.Context, name, field string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.ops.createIndex(ctx, name, field, s.indexName, entityMetric(s.metric)); err != nil {
		return err
	}
	return s.ops.load(ctx, name)
}

// Insert writes the records, flushes and loads the collection.
func (s *MilvusStore) Insert(ctx context.Context, name string, texts []string, vectors [][]float32) (int, error) {
	if len(texts) != len(vectors) {
		return 0, fmt.Errorf("%w: %d texts but %d vectors", models.ErrStore, len(texts), len(vectors))
	}
	if len(texts) == 0 {
		return 0, nil
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return 0, fmt.Errorf("%w: vector %d has dimension %d, expected %d", models.ErrStore, i, len(v), dim)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opt := milvusclient.NewColumnBasedInsertOption(name).
		WithFloatVectorColumn(FieldEmbedding, dim, vectors).
		WithVarcharColumn(FieldText, texts)
	res, err := s.client.Insert(ctx, opt)
	if err != nil {
		return 0, models.WrapTimeout(models.ErrStore, "insert", err)
	}

	if err := s.ops.flush(ctx, name); err != nil {
		return 0, err
	}
	if err := s.ops.load(ctx, name); err != nil {
		return 0, err
	}
	s.logger.Info("inserted records", zap.String("collection", name), zap.Int64("count", res.InsertCount))
	return int(res.InsertCount), nil
}

// collectionOps are the awaited calls that change what a collection serves.
type collectionOps interface {
	createIndex(ctx context.Context, name, field, indexName string, metric entity.MetricType) error
	flush(ctx context.Context, name string) error
	load(ctx context.Context, name string) error
}

type clientOps struct {
	client *milvusclient.Client
}

func (o clientOps) createIndex(ctx context.Context, name, field, indexName string, metric entity.MetricType) error {
	task, err := o.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(name, field, index.NewFlatIndex(metric)).WithIndexName(indexName))
	if err != nil {
		return models.WrapTimeout(models.ErrStore, "create index", err)
	}
	if err := task.Await(ctx); err != nil {
		return models.WrapTimeout(models.ErrStore, "await index", err)
	}
	return nil
}

func (o clientOps) flush(ctx context.Context, name string) error {
	task, err := o.client.Flush(ctx, milvusclient.NewFlushOption(name))
	if err != nil {
		return models.WrapTimeout(models.ErrStore, "flush", err)
	}
	if err := task.Await(ctx); err != nil {
		return models.WrapTimeout(models.ErrStore, "await flush", err)
	}
	return nil
}

func (o clientOps) load(ctx context.Context, name string) error {
	task, err := o.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(name))
	if err != nil {
		return models.WrapTimeout(models.ErrStore, "load collection", err)
	}
	if err := task.Await(ctx); err != nil {
		return models.WrapTimeout(models.ErrStore, "await load", err)
	}
	return nil
}

// Search runs an ANN search on the embedding field and returns the stored text.
func (s *MilvusStore) Search(ctx context.Context, name string, query []float32, topK int) ([]*models.SearchResult, error) {
	if topK <= 0 {
		return []*models.SearchResult{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opt := milvusclient.NewSearchOption(name, topK, []entity.Vector{entity.FloatVector(query)}).
		WithANNSField(FieldEmbedding).
		WithOutputFields(FieldText)
	sets, err := s.client.Search(ctx, opt)
	if err != nil {
		return nil, models.WrapTimeout(models.ErrStore, "search", err)
	}
	if len(sets) == 0 || sets[0].ResultCount == 0 {
		return []*models.SearchResult{}, nil
	}
	rs := sets[0]
	return convertResults(rs.IDs, rs.Scores, rs.GetColumn(FieldText), rs.ResultCount)
}

// Close releases the connection.
func (s *MilvusStore) Close(ctx context.Context) error {
	if err := s.client.Close(ctx); err != nil {
		return fmt.Errorf("%w: close: %v", models.ErrStore, err)
	}
	return nil
}

func buildSchema(name string, dim, textMaxLength int) *entity.Schema {
	if textMaxLength <= 0 {
		textMaxLength = 2000
	}
	return &entity.Schema{
		CollectionName: name,
		Description:    "legal article passages",
		Fields: []*entity.Field{
			{
				Name:       FieldID,
				DataType:   entity.FieldTypeInt64,
				PrimaryKey: true,
				AutoID:     true,
			},
			{
				Name:     FieldEmbedding,
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(dim),
				},
			},
			{
				Name:     FieldText,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": strconv.Itoa(textMaxLength),
				},
			},
		},
	}
}

func entityMetric(m Metric) entity.MetricType {
	switch m {
	case MetricIP:
		return entity.IP
	case MetricCosine:
		return entity.COSINE
	default:
		return entity.L2
	}
}

// convertResults zips the id, score and text columns of one result set.
func convertResults(ids column.Column, scores []float32, texts column.Column, count int) ([]*models.SearchResult, error) {
	if ids == nil || texts == nil {
		return nil, fmt.Errorf("%w: search result is missing id or text column", models.ErrStore)
	}
	if ids.Len() < count || texts.Len() < count || len(scores) < count {
		return nil, fmt.Errorf("%w: search result has %d ids, %d texts, %d scores for %d hits",
			models.ErrStore, ids.Len(), texts.Len(), len(scores), count)
	}
	out := make([]*models.SearchResult, 0, count)
	for i := 0; i < count; i++ {
		id, err := ids.GetAsInt64(i)
		if err != nil {
			return nil, fmt.Errorf("%w: id %d: %v", models.ErrStore, i, err)
		}
		text, err := texts.GetAsString(i)
		if err != nil {
			return nil, fmt.Errorf("%w: text %d: %v", models.ErrStore, i, err)
		}
		out = append(out, &models.SearchResult{ID: id, Score: float64(scores[i]), Text: text})
	}
	return out, nil
}
