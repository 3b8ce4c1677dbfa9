package embedding

import (
	"fmt"

	"github.com/WindyStu/RAGJurisChat/internal/config"
	"github.com/WindyStu/RAGJurisChat/internal/models"
	"go.uber.org/zap"
)

// New builds the embedder selected by cfg.Provider.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	switch cfg.Provider {
	case config.ProviderMock:
		logger.Warn("using mock embedder; vectors are not semantic")
		return NewMockEmbedder(cfg.Dimensions), nil
	case config.ProviderDashScope, "":
		return NewDashScopeEmbedder(DashScopeConfig{
			BaseURL:        cfg.BaseURL,
			APIKey:         cfg.APIKey(),
			Model:          cfg.Model,
			Dimensions:     cfg.Dimensions,
			BatchSize:      cfg.BatchSize,
			EncodingFormat: cfg.EncodingFormat,
			Timeout:        cfg.Timeout(),
		}, WithLogger(logger))
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", models.ErrConfiguration, cfg.Provider)
	}
}
