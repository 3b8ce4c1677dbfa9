package vector

import (
	"context"
	"fmt"

	"github.com/WindyStu/RAGJurisChat/internal/config"
	"github.com/WindyStu/RAGJurisChat/internal/models"
	"go.uber.org/zap"
)

// NewOpener returns an Opener for the store type in cfg.Vector.Type.
// Supported types: "milvus" (default), "memory".
func NewOpener(cfg *config.Config, logger *zap.Logger) (Opener, error) {
	metric, err := ParseMetric(cfg.Vector.Metric)
	if err != nil {
		return nil, err
	}
	switch cfg.Vector.Type {
	case config.VectorTypeMilvus, "":
		mc, vc := cfg.Milvus, cfg.Vector
		return func(ctx context.Context) (Store, error) {
			return DialMilvus(ctx, mc, vc, logger)
		}, nil
	case config.VectorTypeMemory:
		m, err := NewMemoryStore(cfg.Vector.MemoryPath, metric, cfg.Vector.TextMaxLength, logger)
		if err != nil {
			return nil, err
		}
		return m.Open, nil
	default:
		return nil, fmt.Errorf("%w: unknown vector store type %q (supported: milvus, memory)",
			models.ErrConfiguration, cfg.Vector.Type)
	}
}
