package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port               int               `json:"port"`
	SupportedLanguages []string          `json:"supported_languages"`
	LogConfig          logger.LogConfig  `json:"log_config"`
	Ingest             IngestConfig      `json:"ingest"`
	Retrieval          RetrievalConfig   `json:"retrieval"`
	VectorStore        VectorStoreConfig `json:"vector_store"`
	AI                 AIConfig          `json:"ai"`
	Cache              CacheConfig       `json:"cache"`
	Tasks              TaskConfig        `json:"tasks"`
	FileStore          FileStoreConfig   `json:"file_store"`
	Auth               AuthConfig        `json:"auth"`
}

type IngestConfig struct {
	ChunkSize         int      `json:"chunk_size"`
	ChunkOverlap      int      `json:"chunk_overlap"`
	BatchSize         int      `json:"batch_size"`
	Workers           int      `json:"workers"`
	DirectoryWorkers  int      `json:"directory_workers"`
	ReplaceExisting   *bool    `json:"replace_existing"`
	MaxUploadSize     int64    `json:"max_upload_size"`
	AllowedExtensions []string `json:"allowed_extensions"`
}

type RetrievalConfig struct {
	TopK      int     `json:"top_k"`
	QueryTopK int     `json:"query_top_k"`
	Threshold float64 `json:"threshold"`
}

type VectorStoreConfig struct {
	Type           string      `json:"type"`
	CollectionBase string      `json:"collection_base"`
	MaxRetries     int         `json:"max_retries"`
	RetryDelay     int         `json:"retry_delay"`
	Data           interface{} `json:"data"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type AIProviderConfig struct {
	Name string      `json:"name"`
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type AIModelConfig struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type AIConfig struct {
	Providers       []AIProviderConfig `json:"providers"`
	Embedders       []AIModelConfig    `json:"embedders"`
	Generators      []AIModelConfig    `json:"generators"`
	Dimension       int                `json:"dimension"`
	EmbedTimeout    int                `json:"embed_timeout"`
	GenerateTimeout int                `json:"generate_timeout"`
}

type CacheConfig struct {
	EmbeddingSize int `json:"embedding_size"`
	EmbeddingTTL  int `json:"embedding_ttl"`
	QuerySize     int `json:"query_size"`
	QueryTTL      int `json:"query_ttl"`

	// Persistent enables a postgres tier behind the in-memory embedding cache.
	Persistent         *DatabaseConfig `json:"persistent"`
	PersistentTTLHours int             `json:"persistent_ttl_hours"`
	PersistentPrune    string          `json:"persistent_prune_spec"`
}

type TaskConfig struct {
	RetentionHours    int    `json:"retention_hours"`
	SweepSpec         string `json:"sweep_spec"`
	UploadMaxAgeHours int    `json:"upload_max_age_hours"`
	UploadCleanupSpec string `json:"upload_cleanup_spec"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type AuthConfig struct {
	JWTSecret       string   `json:"jwt_secret"`
	UploadRateLimit int      `json:"upload_rate_limit"`
	CORSOrigins     []string `json:"cors_origins"`
}

func Default() *Config {
	replace := true
	return &Config{
		Port:               8000,
		SupportedLanguages: []string{"en", "fr", "es"},
		LogConfig: logger.LogConfig{
			Level:   "info",
			Console: true,
		},
		Ingest: IngestConfig{
			ChunkSize:         1000,
			ChunkOverlap:      200,
			BatchSize:         128,
			Workers:           4,
			DirectoryWorkers:  4,
			ReplaceExisting:   &replace,
			MaxUploadSize:     1 << 30,
			AllowedExtensions: []string{"txt", "pdf", "docx", "html", "md"},
		},
		Retrieval: RetrievalConfig{
			TopK:      5,
			QueryTopK: 100,
		},
		VectorStore: VectorStoreConfig{
			Type:           "memory",
			CollectionBase: "scriptumai",
			MaxRetries:     3,
			RetryDelay:     5,
		},
		AI: AIConfig{
			Providers: []AIProviderConfig{
				{Name: "ollama", Type: "ollama", Data: map[string]interface{}{"base_url": "http://localhost:11434"}},
			},
			Embedders:       []AIModelConfig{{Provider: "ollama", Model: "nomic-embed-text"}},
			Generators:      []AIModelConfig{{Provider: "ollama", Model: "llama3.2"}},
			Dimension:       768,
			EmbedTimeout:    60,
			GenerateTimeout: 120,
		},
		Cache: CacheConfig{
			EmbeddingSize: 1000,
			EmbeddingTTL:  3600,
			QuerySize:     100,
			QueryTTL:      300,
		},
		Tasks: TaskConfig{
			RetentionHours:    24,
			SweepSpec:         "0 * * * *",
			UploadMaxAgeHours: 6,
			UploadCleanupSpec: "30 * * * *",
		},
		Auth: AuthConfig{
			UploadRateLimit: 1,
		},
		FileStore: FileStoreConfig{
			Type: "local",
			Data: map[string]interface{}{"dir": filepath.Join(os.TempDir(), "scriptum-uploads")},
		},
	}
}

// Load reads a JSON config on top of Default. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 {
		return fmt.Errorf("port is required")
	}
	if len(c.SupportedLanguages) == 0 {
		return fmt.Errorf("supported_languages must not be empty")
	}
	for i, lang := range c.SupportedLanguages {
		lang = strings.ToLower(strings.TrimSpace(lang))
		if lang == "" {
			return fmt.Errorf("supported_languages[%d] is empty", i)
		}
		c.SupportedLanguages[i] = lang
	}
	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size must be positive")
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap must be in [0, chunk_size)")
	}
	if c.Ingest.BatchSize <= 0 {
		c.Ingest.BatchSize = 128
	}
	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = 1
	}
	if c.Ingest.DirectoryWorkers <= 0 {
		c.Ingest.DirectoryWorkers = 1
	}
	if c.Ingest.ReplaceExisting == nil {
		replace := true
		c.Ingest.ReplaceExisting = &replace
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 5
	}
	if c.Retrieval.QueryTopK <= 0 {
		c.Retrieval.QueryTopK = c.Retrieval.TopK
	}
	if c.VectorStore.Type == "" {
		c.VectorStore.Type = "memory"
	}
	if c.VectorStore.CollectionBase == "" {
		return fmt.Errorf("vector_store.collection_base is required")
	}
	if c.VectorStore.MaxRetries <= 0 {
		c.VectorStore.MaxRetries = 1
	}
	if c.AI.Dimension <= 0 {
		return fmt.Errorf("ai.dimension must be positive")
	}
	if len(c.AI.Embedders) == 0 {
		return fmt.Errorf("ai.embedders must not be empty")
	}
	names := make(map[string]struct{}, len(c.AI.Providers))
	for _, p := range c.AI.Providers {
		if p.Name == "" || p.Type == "" {
			return fmt.Errorf("ai.providers entries need name and type")
		}
		names[p.Name] = struct{}{}
	}
	for _, ref := range append(append([]AIModelConfig{}, c.AI.Embedders...), c.AI.Generators...) {
		if _, ok := names[ref.Provider]; !ok {
			return fmt.Errorf("ai model %q references unknown provider %q", ref.Model, ref.Provider)
		}
	}
	if c.Tasks.RetentionHours <= 0 {
		c.Tasks.RetentionHours = 24
	}
	if c.Tasks.SweepSpec == "" {
		c.Tasks.SweepSpec = "0 * * * *"
	}
	if c.Tasks.UploadMaxAgeHours <= 0 {
		c.Tasks.UploadMaxAgeHours = 6
	}
	if c.Tasks.UploadCleanupSpec == "" {
		c.Tasks.UploadCleanupSpec = "30 * * * *"
	}
	if c.Cache.Persistent != nil && c.Cache.PersistentPrune == "" {
		c.Cache.PersistentPrune = "0 3 * * *"
	}
	if c.FileStore.Type == "" {
		c.FileStore.Type = "local"
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	return nil
}

func (c *Config) Replace() bool {
	return c.Ingest.ReplaceExisting == nil || *c.Ingest.ReplaceExisting
}
