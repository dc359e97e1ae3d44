// Package config loads assistant configuration from an optional YAML file
// with environment-variable overlay for secrets and deployment paths.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ismaeeeelshaikh/college-ai-assistant/llm"
	"github.com/ismaeeeelshaikh/college-ai-assistant/memory"
	"github.com/ismaeeeelshaikh/college-ai-assistant/rag"
)

// Provider backends.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Memory store backends.
const (
	MemoryStoreFile  = "file"
	MemoryStoreRedis = "redis"
)

// Config is the full assistant configuration.
type Config struct {
	DataDir    string `yaml:"data_dir"`
	IndexPath  string `yaml:"index_path"`
	MemoryPath string `yaml:"memory_path"`

	Provider    string `yaml:"provider"`     // openai | ollama
	MemoryStore string `yaml:"memory_store"` // file | redis
	RedisAddr   string `yaml:"redis_addr"`

	OpenAI    llm.OpenAIConfig    `yaml:"openai"`
	Ollama    llm.OllamaConfig    `yaml:"ollama"`
	Rerank    llm.RerankConfig    `yaml:"rerank"`
	Search    llm.SearchConfig    `yaml:"search"`
	Splitter  rag.SplitterConfig  `yaml:"splitter"`
	Retriever rag.RetrieverConfig `yaml:"retriever"`
	Reranker  rag.RerankerConfig  `yaml:"reranker"`
	WebSearch rag.WebSearchConfig `yaml:"web_search"`
	Memory    memory.TableConfig  `yaml:"memory"`

	HistoryLimit int `yaml:"history_limit"` // turns included in the prompt
}

// Default returns a runnable configuration: local file paths, the hosted
// OpenAI-compatible provider, file-backed memory.
func Default() Config {
	return Config{
		DataDir:      "data",
		IndexPath:    "data/index.gob",
		MemoryPath:   "data/memory.json",
		Provider:     ProviderOpenAI,
		MemoryStore:  MemoryStoreFile,
		RedisAddr:    "localhost:6379",
		OpenAI:       llm.DefaultOpenAIConfig(),
		Ollama:       llm.DefaultOllamaConfig(),
		Rerank:       llm.DefaultRerankConfig(),
		Search:       llm.DefaultSearchConfig(),
		Splitter:     rag.DefaultSplitterConfig(),
		Retriever:    rag.DefaultRetrieverConfig(),
		Reranker:     rag.DefaultRerankerConfig(),
		WebSearch:    rag.DefaultWebSearchConfig(),
		Memory:       memory.DefaultTableConfig(),
		HistoryLimit: 6,
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty and the file exists), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays secrets and deployment knobs from the environment.
func (c *Config) applyEnv() {
	setString := func(dst *string, keys ...string) {
		for _, key := range keys {
			if v := os.Getenv(key); v != "" {
				*dst = v
				return
			}
		}
	}

	setString(&c.OpenAI.APIKey, "GROQ_API_KEY", "OPENAI_API_KEY")
	setString(&c.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&c.OpenAI.ChatModel, "CHAT_MODEL")
	setString(&c.OpenAI.EmbeddingModel, "EMBEDDING_MODEL")
	setString(&c.Rerank.APIKey, "JINA_API_KEY")
	setString(&c.Search.APIKey, "SERPAPI_API_KEY")
	setString(&c.Ollama.Host, "OLLAMA_HOST_URL")
	setString(&c.Provider, "LLM_PROVIDER")
	setString(&c.MemoryStore, "MEMORY_STORE")
	setString(&c.RedisAddr, "REDIS_ADDR")
	setString(&c.DataDir, "DATA_DIR")
	setString(&c.IndexPath, "INDEX_PATH")
	setString(&c.MemoryPath, "MEMORY_PATH")
	setString(&c.WebSearch.OrgName, "ORG_NAME")
	setString(&c.WebSearch.OrgDomain, "ORG_DOMAIN")
}

// Validate rejects configurations the pipeline cannot start with.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	switch c.MemoryStore {
	case MemoryStoreFile, MemoryStoreRedis:
	default:
		return fmt.Errorf("unknown memory store %q", c.MemoryStore)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.IndexPath == "" {
		return fmt.Errorf("index_path is required")
	}
	if c.Provider == ProviderOpenAI && c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai provider selected but no API key set (GROQ_API_KEY or OPENAI_API_KEY)")
	}
	if c.MemoryStore == MemoryStoreRedis && c.RedisAddr == "" {
		return fmt.Errorf("redis memory store selected but redis_addr is empty")
	}
	if c.Retriever.TopK <= 0 {
		return fmt.Errorf("retriever top_k must be positive")
	}
	if c.Retriever.MMRLambda < 0 || c.Retriever.MMRLambda > 1 {
		return fmt.Errorf("retriever mmr_lambda must be in [0,1]")
	}
	return nil
}
