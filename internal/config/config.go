// Package config provides configuration loading and structs for the JurisChat server and ingestion tool.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/WindyStu/RAGJurisChat/internal/models"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	LogLevel  string          `yaml:"log_level"`
	Server    ServerConfig    `yaml:"server"`
	Milvus    MilvusConfig    `yaml:"milvus"`
	Vector    VectorConfig    `yaml:"vector"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chat      ChatConfig      `yaml:"chat"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Ingest    IngestConfig    `yaml:"ingest"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// RequestTimeoutSecs bounds a whole /api/ask request.
	RequestTimeoutSecs int `yaml:"request_timeout_secs"`
}

// MilvusConfig holds the vector database connection settings.
type MilvusConfig struct {
	Address     string `yaml:"address"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	DBName      string `yaml:"db_name"`
	Collection  string `yaml:"collection"`
	Shards      int    `yaml:"shards"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// VectorConfig selects the vector store and its index/search parameters.
type VectorConfig struct {
	// Type is "milvus" (default) or "memory".
	Type          string `yaml:"type"`
	MemoryPath    string `yaml:"memory_path"`
	IndexName     string `yaml:"index_name"`
	Metric        string `yaml:"metric"`
	TextMaxLength int    `yaml:"text_max_length"`
	TopK          int    `yaml:"top_k"`
}

// EmbeddingConfig holds the remote embedding service settings.
type EmbeddingConfig struct {
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	Dimensions     int    `yaml:"dimensions"`
	BatchSize      int    `yaml:"batch_size"`
	EncodingFormat string `yaml:"encoding_format"`
	APIKeyEnv      string `yaml:"api_key_env"`
	TimeoutSecs    int    `yaml:"timeout_secs"`
	// Provider is "dashscope" (default) or "mock" for offline runs.
	Provider string `yaml:"provider"`
}

// ChatConfig holds the chat-completion service settings.
type ChatConfig struct {
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	APIKeyEnv      string  `yaml:"api_key_env"`
	SystemPreamble string  `yaml:"system_preamble"`
	Temperature    float64 `yaml:"temperature"`
	TimeoutSecs    int     `yaml:"timeout_secs"`
	// Provider is "dashscope" (default) or "mock", which echoes the grounding passages.
	Provider string `yaml:"provider"`
}

// ChunkerConfig holds the legal text chunking limits, in characters.
type ChunkerConfig struct {
	MaxLength         int `yaml:"max_length"`
	ArticleMaxLength  int `yaml:"article_max_length"`
	SentenceSoftLimit int `yaml:"sentence_soft_limit"`
}

// IngestConfig holds ingestion source and ledger settings.
type IngestConfig struct {
	Directories    []string `yaml:"directories"`
	Extensions     []string `yaml:"extensions"`
	Recursive      *bool    `yaml:"recursive"`
	LedgerPath     string   `yaml:"ledger_path"`
	WatchDebounceS int      `yaml:"watch_debounce_secs"`
}

// RecursiveOrDefault returns whether to walk directories recursively; defaults to true when unset.
func (i *IngestConfig) RecursiveOrDefault() bool {
	if i.Recursive != nil {
		return *i.Recursive
	}
	return true
}

// APIKey returns the credential from the environment variable named by APIKeyEnv.
func (e *EmbeddingConfig) APIKey() string {
	return strings.TrimSpace(os.Getenv(e.APIKeyEnv))
}

// Timeout returns the per-call timeout for embedding requests.
func (e *EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSecs) * time.Second
}

// APIKey returns the credential from the environment variable named by APIKeyEnv.
func (c *ChatConfig) APIKey() string {
	return strings.TrimSpace(os.Getenv(c.APIKeyEnv))
}

// Timeout returns the per-call timeout for chat requests.
func (c *ChatConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Timeout returns the per-call timeout for vector store operations.
func (m *MilvusConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSecs) * time.Second
}

// Load reads .env (if present next to the config or in the working directory), then
// parses the config file at path, applies defaults and environment overrides, and expands paths.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	loadDotEnv(filepath.Dir(path))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	finish(&cfg, filepath.Dir(path))
	return &cfg, nil
}

// Default returns a config built from defaults and environment overrides only.
// Relative paths are resolved against baseDir.
func Default(baseDir string) *Config {
	loadDotEnv(baseDir)
	var cfg Config
	finish(&cfg, baseDir)
	return &cfg
}

func finish(cfg *Config, configDir string) {
	ApplyDefaults(cfg)
	applyEnv(cfg)
	cfg.Vector.MemoryPath = expandPath(cfg.Vector.MemoryPath, configDir)
	cfg.Ingest.LedgerPath = expandPath(cfg.Ingest.LedgerPath, configDir)
	for i := range cfg.Ingest.Directories {
		cfg.Ingest.Directories[i] = expandPath(cfg.Ingest.Directories[i], configDir)
	}
}

// Validate checks settings that must be present before the server or ingestion can run.
// A missing credential is a configuration error at startup, not per request.
func (c *Config) Validate() error {
	if c.Embedding.Provider != ProviderMock && c.Embedding.APIKey() == "" {
		return fmt.Errorf("%w: environment variable %s is not set", models.ErrConfiguration, c.Embedding.APIKeyEnv)
	}
	if c.Chat.Provider != ProviderMock && c.Chat.APIKey() == "" {
		return fmt.Errorf("%w: environment variable %s is not set", models.ErrConfiguration, c.Chat.APIKeyEnv)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("%w: embedding.dimensions must be positive", models.ErrConfiguration)
	}
	if c.Vector.Type == VectorTypeMilvus && c.Milvus.Address == "" {
		return fmt.Errorf("%w: milvus.address is required", models.ErrConfiguration)
	}
	if c.Chunker.SentenceSoftLimit > c.Chunker.ArticleMaxLength {
		return fmt.Errorf("%w: chunker.sentence_soft_limit (%d) exceeds article_max_length (%d)",
			models.ErrConfiguration, c.Chunker.SentenceSoftLimit, c.Chunker.ArticleMaxLength)
	}
	// Chunk limits count characters; the store's text field counts bytes.
	if need := c.Chunker.MaxLength * utf8.UTFMax; need > c.Vector.TextMaxLength {
		return fmt.Errorf("%w: vector.text_max_length (%d bytes) cannot hold a chunk of chunker.max_length %d characters; set it to at least %d",
			models.ErrConfiguration, c.Vector.TextMaxLength, c.Chunker.MaxLength, need)
	}
	return nil
}

// Save writes the config to path. Used by init-config to write a starter file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// loadDotEnv loads .env from dir and the working directory. Existing environment
// variables win over file values.
func loadDotEnv(dir string) {
	candidates := []string{filepath.Join(dir, ".env")}
	if cwd, err := os.Getwd(); err == nil && filepath.Clean(cwd) != filepath.Clean(dir) {
		candidates = append(candidates, filepath.Join(cwd, ".env"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// applyEnv applies environment overrides for deployment-specific settings.
func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("MILVUS_ADDRESS")); v != "" {
		cfg.Milvus.Address = v
	}
	if v := strings.TrimSpace(os.Getenv("JURISCHAT_PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Server.Port = port
		}
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
