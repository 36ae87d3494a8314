package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	StoreChromem  = "chromem"
	StorePgvector = "pgvector"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Corpus      CorpusConfig      `yaml:"corpus"`
	EmbedLLM    LLMConfig         `yaml:"embed_llm"`
	ChatLLM     LLMConfig         `yaml:"chat_llm"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	RAG         RAGConfig         `yaml:"rag"`
}

type ServerConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	// RequestTimeout bounds a whole POST / call. Zero means no limit.
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type CorpusConfig struct {
	Dir string `yaml:"dir"`
}

// LLMConfig configures one hosted model, either the embedder or the chat model
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	Key         string  `yaml:"key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

type VectorStoreConfig struct {
	Type     string         `yaml:"type"`
	Chromem  ChromemConfig  `yaml:"chromem"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type ChromemConfig struct {
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
	Compress   bool   `yaml:"compress"`
	// EncryptionKey is used by snapshot export/import; it must be 32 bytes when set.
	EncryptionKey string `yaml:"encryption_key"`
}

type PostgresConfig struct {
	DSN       string `yaml:"dsn"`
	Dimension int    `yaml:"dimension"`
	Debug     bool   `yaml:"debug"`
}

type RAGConfig struct {
	TopK        int    `yaml:"top_k"`
	PersonaName string `yaml:"persona_name"`
	// Dedupe keys entries by content hash and skips chunks already indexed.
	// Off by default: every start appends the whole corpus again.
	Dedupe bool `yaml:"dedupe"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8000,
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   5 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Pretty: true},
		Corpus:  CorpusConfig{Dir: "data"},
		EmbedLLM: LLMConfig{
			Provider: ProviderOpenAI,
			Model:    "text-embedding-3-small",
		},
		ChatLLM: LLMConfig{
			Provider: ProviderOpenAI,
			Model:    "gpt-4o",
		},
		VectorStore: VectorStoreConfig{
			Type: StoreChromem,
			Chromem: ChromemConfig{
				Path:       "db/chromem",
				Collection: "personal_data",
			},
			Postgres: PostgresConfig{Dimension: 1536},
		},
		RAG: RAGConfig{
			TopK:        3,
			PersonaName: "Alex Melia",
		},
	}
}

// LoadConfig reads the YAML file at path over the defaults and applies
// environment overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(cfg)
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Corpus.Dir == "" {
		return errors.New("corpus.dir is required")
	}
	for name, llm := range map[string]LLMConfig{"embed_llm": c.EmbedLLM, "chat_llm": c.ChatLLM} {
		if llm.Provider != ProviderOpenAI && llm.Provider != ProviderOllama {
			return fmt.Errorf("%s.provider must be %q or %q, got %q", name, ProviderOpenAI, ProviderOllama, llm.Provider)
		}
		if llm.Model == "" {
			return fmt.Errorf("%s.model is required", name)
		}
	}
	switch c.VectorStore.Type {
	case StoreChromem:
		if c.VectorStore.Chromem.Path == "" || c.VectorStore.Chromem.Collection == "" {
			return errors.New("vector_store.chromem.path and collection are required")
		}
		if k := c.VectorStore.Chromem.EncryptionKey; k != "" && len(k) != 32 {
			return fmt.Errorf("vector_store.chromem.encryption_key must be 32 bytes, got %d", len(k))
		}
	case StorePgvector:
		if c.VectorStore.Postgres.DSN == "" {
			return errors.New("vector_store.postgres.dsn is required")
		}
		if c.VectorStore.Postgres.Dimension < 1 {
			return fmt.Errorf("vector_store.postgres.dimension must be positive, got %d", c.VectorStore.Postgres.Dimension)
		}
	default:
		return fmt.Errorf("vector_store.type must be %q or %q, got %q", StoreChromem, StorePgvector, c.VectorStore.Type)
	}
	if c.RAG.TopK < 1 {
		return fmt.Errorf("rag.top_k must be at least 1, got %d", c.RAG.TopK)
	}
	return nil
}

// Addr is the listen address of the HTTP service
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func applyEnv(cfg *Config) {
	// one credential serves both models, as with the hosted provider
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if cfg.EmbedLLM.Key == "" {
			cfg.EmbedLLM.Key = key
		}
		if cfg.ChatLLM.Key == "" {
			cfg.ChatLLM.Key = key
		}
	}
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		if cfg.EmbedLLM.BaseURL == "" && cfg.EmbedLLM.Provider == ProviderOpenAI {
			cfg.EmbedLLM.BaseURL = base
		}
		if cfg.ChatLLM.BaseURL == "" && cfg.ChatLLM.Provider == ProviderOpenAI {
			cfg.ChatLLM.BaseURL = base
		}
	}
	cfg.Server.Port = getEnvInt("PERSONA_RAG_PORT", cfg.Server.Port)
	cfg.Corpus.Dir = getEnv("PERSONA_RAG_DATA_DIR", cfg.Corpus.Dir)
	cfg.VectorStore.Chromem.Path = getEnv("PERSONA_RAG_DB_PATH", cfg.VectorStore.Chromem.Path)
	cfg.VectorStore.Postgres.DSN = getEnv("PERSONA_RAG_PG_DSN", cfg.VectorStore.Postgres.DSN)
	cfg.Logging.Level = getEnv("PERSONA_RAG_LOG_LEVEL", cfg.Logging.Level)
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
