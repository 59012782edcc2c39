package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	LLM         LLMConfig         `yaml:"llm"`
	Embedding   LLMConfig         `yaml:"embedding"`
	Reranker    RerankerConfig    `yaml:"reranker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Database    DatabaseConfig    `yaml:"database"`
	Session     SessionConfig     `yaml:"session"`
	Ingest      IngestConfig      `yaml:"ingest"`
}

type ServerConfig struct {
	Address     string `yaml:"address"`
	UploadDir   string `yaml:"upload_dir"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
	CookieName  string `yaml:"cookie_name"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// LLMConfig describes a remote model endpoint. The key itself is read from
// the environment variable named by APIKeyEnv.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

// Key resolves the API key from the environment.
func (c LLMConfig) Key() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return strings.TrimPrefix(os.Getenv(c.APIKeyEnv), "Bearer ")
}

type RerankerConfig struct {
	Enabled     bool      `yaml:"enabled"`
	TopN        int       `yaml:"top_n"`
	QueryPrompt string    `yaml:"query_prompt"`
	Dimensions  int       `yaml:"dimensions"`
	Model       LLMConfig `yaml:"model"`
}

type VectorStoreConfig struct {
	Type           string  `yaml:"type"`
	Collection     string  `yaml:"collection"`
	PersistDir     string  `yaml:"persist_dir"`
	Compress       bool    `yaml:"compress"`
	EncryptionKey  string  `yaml:"encryption_key"`
	SearchType     string  `yaml:"search_type"`
	TopK           int     `yaml:"top_k"`
	FetchK         int     `yaml:"fetch_k"`
	LambdaMult     float64 `yaml:"lambda_mult"`
	ScoreThreshold float32 `yaml:"score_threshold"`
	Dimensions     int     `yaml:"dimensions"`
}

type DatabaseConfig struct {
	DSN   string `yaml:"dsn"`
	Debug bool   `yaml:"debug"`
}

type SessionConfig struct {
	Store string        `yaml:"store"`
	TTL   time.Duration `yaml:"ttl"`
	Redis RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type IngestConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	MaxUploads   int `yaml:"max_uploads"`
}

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	StoreChromem  = "chromem"
	StorePgvector = "pgvector"

	SessionMemory = "memory"
	SessionRedis  = "redis"
)

// LoadConfig reads the YAML file at path. A missing file yields the defaults.
// Any .env files named in envFiles (or ./.env) are loaded first so that
// api_key_env lookups succeed.
func LoadConfig(path string, envFiles ...string) (*Config, error) {
	loadEnv(envFiles...)

	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":5000"
	}
	if cfg.Server.UploadDir == "" {
		cfg.Server.UploadDir = "uploads"
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 32
	}
	if cfg.Server.CookieName == "" {
		cfg.Server.CookieName = "docflow_session"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderOpenAI
	}
	if cfg.LLM.Provider == ProviderOpenAI && cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "GOOGLE_API_KEY"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gemini-2.0-flash"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.5
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = cfg.LLM.Provider
	}
	if cfg.Embedding.BaseURL == "" && cfg.Embedding.Provider == cfg.LLM.Provider {
		cfg.Embedding.BaseURL = cfg.LLM.BaseURL
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = cfg.LLM.APIKeyEnv
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-004"
	}

	if cfg.Reranker.TopN == 0 {
		cfg.Reranker.TopN = 5
	}
	if cfg.Reranker.QueryPrompt == "" {
		cfg.Reranker.QueryPrompt = "Represent this sentence for searching relevant passages: "
	}
	if cfg.Reranker.Dimensions == 0 {
		cfg.Reranker.Dimensions = 512
	}
	if cfg.Reranker.Model.Provider == "" {
		cfg.Reranker.Model.Provider = ProviderOllama
	}
	if cfg.Reranker.Model.BaseURL == "" && cfg.Reranker.Model.Provider == ProviderOllama {
		cfg.Reranker.Model.BaseURL = "http://localhost:11434"
	}
	if cfg.Reranker.Model.Model == "" {
		cfg.Reranker.Model.Model = "mxbai-embed-large"
	}

	vs := &cfg.VectorStore
	if vs.Type == "" {
		vs.Type = StoreChromem
	}
	if vs.Collection == "" {
		vs.Collection = "user"
	}
	if vs.SearchType == "" {
		vs.SearchType = "mmr"
	}
	if vs.TopK == 0 {
		vs.TopK = 10
	}
	if vs.FetchK == 0 {
		vs.FetchK = 20
	}
	if vs.LambdaMult == 0 {
		vs.LambdaMult = 0.5
	}
	if vs.ScoreThreshold == 0 {
		vs.ScoreThreshold = 0.5
	}
	if vs.Dimensions == 0 {
		vs.Dimensions = 768
	}

	if cfg.Session.Store == "" {
		cfg.Session.Store = SessionMemory
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = 24 * time.Hour
	}
	if cfg.Session.Redis.Addr == "" {
		cfg.Session.Redis.Addr = "localhost:6379"
	}

	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 1024
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 256
	}
	if cfg.Ingest.MaxUploads == 0 {
		cfg.Ingest.MaxUploads = 10
	}
}

// Validate rejects values no component knows how to serve.
func (c *Config) Validate() error {
	for name, p := range map[string]string{
		"llm.provider":            c.LLM.Provider,
		"embedding.provider":      c.Embedding.Provider,
		"reranker.model.provider": c.Reranker.Model.Provider,
	} {
		if p != ProviderOpenAI && p != ProviderOllama {
			return fmt.Errorf("%s must be %q or %q, got %q", name, ProviderOpenAI, ProviderOllama, p)
		}
	}
	switch c.VectorStore.Type {
	case StoreChromem:
	case StorePgvector:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the %s vector store", StorePgvector)
		}
	default:
		return fmt.Errorf("vector_store.type %q is not supported", c.VectorStore.Type)
	}
	switch c.VectorStore.SearchType {
	case "similarity", "mmr", "similarity_score_threshold":
	default:
		return fmt.Errorf("vector_store.search_type %q is not supported", c.VectorStore.SearchType)
	}
	if c.VectorStore.LambdaMult < 0 || c.VectorStore.LambdaMult > 1 {
		return fmt.Errorf("vector_store.lambda_mult must be within [0, 1]")
	}
	if c.VectorStore.FetchK < c.VectorStore.TopK {
		return fmt.Errorf("vector_store.fetch_k must be >= top_k")
	}
	if c.Session.Store != SessionMemory && c.Session.Store != SessionRedis {
		return fmt.Errorf("session.store %q is not supported", c.Session.Store)
	}
	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap must be smaller than ingest.chunk_size")
	}
	return nil
}
