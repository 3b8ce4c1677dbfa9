package generation

import (
	"fmt"

	"github.com/WindyStu/RAGJurisChat/internal/config"
	"github.com/WindyStu/RAGJurisChat/internal/models"
	"go.uber.org/zap"
)

// New builds the Composer for cfg.Provider.
func New(cfg config.ChatConfig, logger *zap.Logger) (*Composer, error) {
	switch cfg.Provider {
	case config.ProviderMock:
		logger.Warn("using echo chat model; answers are the retrieved passages")
		return NewComposer(EchoModel{Preamble: cfg.SystemPreamble}, cfg.SystemPreamble), nil
	case config.ProviderDashScope, "":
		client, err := NewChatClient(ChatConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey(),
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout(),
		}, nil, logger)
		if err != nil {
			return nil, err
		}
		return NewComposer(client, cfg.SystemPreamble), nil
	default:
		return nil, fmt.Errorf("%w: unknown chat provider %q", models.ErrConfiguration, cfg.Provider)
	}
}
