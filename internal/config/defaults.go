package config

import "unicode/utf8"

// Vector store types.
const (
	VectorTypeMilvus = "milvus"
	VectorTypeMemory = "memory"
)

// Embedding providers.
const (
	ProviderDashScope = "dashscope"
	ProviderMock      = "mock"
)

// MaxEmbeddingBatch is the most texts the embedding service accepts per request.
const MaxEmbeddingBatch = 10

// DefaultSystemPreamble instructs the model to answer from the supplied statute text.
// The retrieved passages are appended after it.
const DefaultSystemPreamble = "请根据以下法律条文内容回答用户问题，并适当结合一些中国相关法律信息，最后总结给予建议进行回答：\n"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeoutSecs == 0 {
		cfg.Server.RequestTimeoutSecs = 180
	}
	if cfg.Milvus.Address == "" {
		cfg.Milvus.Address = "localhost:19530"
	}
	if cfg.Milvus.Collection == "" {
		cfg.Milvus.Collection = "law_articles"
	}
	if cfg.Milvus.Shards == 0 {
		cfg.Milvus.Shards = 2
	}
	if cfg.Milvus.TimeoutSecs == 0 {
		cfg.Milvus.TimeoutSecs = 30
	}
	if cfg.Vector.Type == "" {
		cfg.Vector.Type = VectorTypeMilvus
	}
	if cfg.Vector.MemoryPath == "" {
		cfg.Vector.MemoryPath = ".jurischat/vectors.bin"
	}
	if cfg.Vector.IndexName == "" {
		cfg.Vector.IndexName = "basic_index"
	}
	if cfg.Vector.Metric == "" {
		cfg.Vector.Metric = "L2"
	}
	if cfg.Vector.TopK == 0 {
		cfg.Vector.TopK = 3
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-v3"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1024
	}
	if cfg.Embedding.BatchSize <= 0 || cfg.Embedding.BatchSize > MaxEmbeddingBatch {
		cfg.Embedding.BatchSize = MaxEmbeddingBatch
	}
	if cfg.Embedding.EncodingFormat == "" {
		cfg.Embedding.EncodingFormat = "float"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "DASHSCOPE_API_KEY"
	}
	if cfg.Embedding.TimeoutSecs == 0 {
		cfg.Embedding.TimeoutSecs = 30
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderDashScope
	}
	if cfg.Chat.BaseURL == "" {
		cfg.Chat.BaseURL = cfg.Embedding.BaseURL
	}
	if cfg.Chat.Model == "" {
		cfg.Chat.Model = "qwen-plus"
	}
	if cfg.Chat.APIKeyEnv == "" {
		cfg.Chat.APIKeyEnv = cfg.Embedding.APIKeyEnv
	}
	if cfg.Chat.SystemPreamble == "" {
		cfg.Chat.SystemPreamble = DefaultSystemPreamble
	}
	if cfg.Chat.Provider == "" {
		cfg.Chat.Provider = ProviderDashScope
	}
	if cfg.Chat.TimeoutSecs == 0 {
		cfg.Chat.TimeoutSecs = 120
	}
	if cfg.Chunker.MaxLength == 0 {
		cfg.Chunker.MaxLength = 512
	}
	if cfg.Chunker.ArticleMaxLength == 0 {
		cfg.Chunker.ArticleMaxLength = 1000
	}
	if cfg.Chunker.SentenceSoftLimit == 0 {
		cfg.Chunker.SentenceSoftLimit = 800
	}
	if cfg.Vector.TextMaxLength == 0 {
		cfg.Vector.TextMaxLength = max(2000, cfg.Chunker.MaxLength*utf8.UTFMax)
	}
	if cfg.Ingest.Extensions == nil {
		cfg.Ingest.Extensions = []string{".docx", ".txt", ".md", ".pdf", ".xlsx", ".odt", ".rtf"}
	}
	if cfg.Ingest.LedgerPath == "" {
		cfg.Ingest.LedgerPath = ".jurischat/ledger.db"
	}
	if cfg.Ingest.WatchDebounceS == 0 {
		cfg.Ingest.WatchDebounceS = 5
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Ingest.Directories) > 0 && cfg.Ingest.Recursive == nil {
		t := true
		cfg.Ingest.Recursive = &t
	}
}
