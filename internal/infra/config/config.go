// Package config provides application-wide configuration.
// Values are resolved in order: built-in defaults, then an optional YAML file,
// then environment variables. A .env file is loaded into the environment first
// so local development needs no shell setup. The resulting Config is built
// once at process start and treated as immutable afterwards.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for ragmux.
type Config struct {
	// LLM capability
	LLMProvider     string `yaml:"llm_provider"`      // "ollama" | "openai"
	OllamaBaseURL   string `yaml:"ollama_base_url"`   // default http://localhost:11434
	OllamaChatModel string `yaml:"ollama_chat_model"` // default llama3.2:3b
	OllamaEmbed     string `yaml:"ollama_embed_model"`
	OpenAIBaseURL   string `yaml:"openai_base_url"`
	OpenAIAPIKey    string `yaml:"-"` // env only, never from file
	OpenAIChatModel string `yaml:"openai_chat_model"`
	OpenAIEmbed     string `yaml:"openai_embed_model"`

	// Relational database (Chinook)
	DBDriver   string `yaml:"db_driver"` // "postgres" | "sqlite"
	DBHost     string `yaml:"db_host"`
	DBPort     int    `yaml:"db_port"`
	DBName     string `yaml:"db_name"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"-"` // env only
	SQLitePath string `yaml:"sqlite_path"`

	// Vector indexes
	VectorStore     string `yaml:"vector_store"` // "local" | "qdrant"
	QdrantURL       string `yaml:"qdrant_url"`
	QdrantAPIKey    string `yaml:"-"` // env only
	ProductIndexDir string `yaml:"product_index_dir"`
	FeedbackIndex   string `yaml:"feedback_index_dir"`
	ProductDataDir  string `yaml:"product_data_dir"`
	FeedbackDataDir string `yaml:"feedback_data_dir"`

	// Routing
	MaxRounds     int           `yaml:"max_rounds"`
	SearchK       int           `yaml:"search_k"`
	MinSimilarity float64       `yaml:"min_similarity"`
	ToolTimeout   time.Duration `yaml:"tool_timeout"`

	// HTTP
	HTTPHost      string `yaml:"http_host"`
	HTTPPort      int    `yaml:"http_port"`
	AccessKeyHash string `yaml:"-"` // env only
}

const (
	envKeyLLMProvider     = "LLM_PROVIDER"
	envKeyOllamaBaseURL   = "OLLAMA_BASE_URL"
	envKeyOllamaChatModel = "OLLAMA_CHAT_MODEL"
	envKeyOllamaEmbed     = "OLLAMA_EMBED_MODEL"
	envKeyOpenAIBaseURL   = "OPENAI_BASE_URL"
	envKeyOpenAIAPIKey    = "OPENAI_API_KEY"
	envKeyOpenAIChatModel = "OPENAI_CHAT_MODEL"
	envKeyOpenAIEmbed     = "OPENAI_EMBED_MODEL"
	envKeyDBDriver        = "DB_DRIVER"
	envKeyDBHost          = "DB_HOST"
	envKeyDBPort          = "DB_PORT"
	envKeyDBName          = "DB_NAME"
	envKeyDBUser          = "DB_USER"
	envKeyDBPassword      = "DB_PASSWORD"
	envKeySQLitePath      = "SQLITE_PATH"
	envKeyVectorStore     = "VECTOR_STORE"
	envKeyQdrantURL       = "QDRANT_URL"
	envKeyQdrantAPIKey    = "QDRANT_API_KEY"
	envKeyProductIndexDir = "PRODUCT_INDEX_DIR"
	envKeyFeedbackIndex   = "FEEDBACK_INDEX_DIR"
	envKeyProductDataDir  = "PRODUCT_DATA_DIR"
	envKeyFeedbackDataDir = "FEEDBACK_DATA_DIR"
	envKeyMaxRounds       = "MAX_ROUNDS"
	envKeySearchK         = "SEARCH_K"
	envKeyMinSimilarity   = "MIN_SIMILARITY"
	envKeyToolTimeout     = "TOOL_TIMEOUT"
	envKeyHTTPHost        = "HTTP_HOST"
	envKeyHTTPPort        = "HTTP_PORT"
	envKeyAccessKeyHash   = "ACCESS_KEY_HASH"
)

// defaults returns a Config with every field set to its safe local default.
// Database defaults match the reference Chinook deployment.
func defaults() Config {
	return Config{
		LLMProvider:     "ollama",
		OllamaBaseURL:   "http://localhost:11434",
		OllamaChatModel: "llama3.2:3b",
		OllamaEmbed:     "nomic-embed-text",
		OpenAIBaseURL:   "https://api.openai.com/v1",
		OpenAIChatModel: "gpt-4o-mini",
		OpenAIEmbed:     "text-embedding-3-small",

		DBDriver:   "postgres",
		DBHost:     "localhost",
		DBPort:     5432,
		DBName:     "chinook",
		DBUser:     "chinook",
		DBPassword: "chinook",
		SQLitePath: "data/chinook.db",

		VectorStore:     "local",
		QdrantURL:       "http://localhost:6333",
		ProductIndexDir: "vector_stores/product",
		FeedbackIndex:   "vector_stores/feedback",
		ProductDataDir:  "data/products",
		FeedbackDataDir: "data/feedback",

		MaxRounds:     5,
		SearchK:       4,
		MinSimilarity: 0.25,
		ToolTimeout:   30 * time.Second,

		HTTPHost: "0.0.0.0",
		HTTPPort: 8080,
	}
}

// Load builds the Config: defaults, optional YAML file at path (empty path
// skips the file), then environment variables. A .env file in the working
// directory is merged into the environment first, never overriding variables
// that are already set.
func Load(path string) (Config, error) {
	// Best-effort: a missing .env is not an error.
	_ = godotenv.Load()

	cfg := defaults()

	if path != "" {
		if err := loadFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadFile overlays YAML values from path onto cfg.
func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays environment variables onto cfg.
func applyEnv(cfg *Config) {
	cfg.LLMProvider = envOr(envKeyLLMProvider, cfg.LLMProvider)
	cfg.OllamaBaseURL = envOr(envKeyOllamaBaseURL, cfg.OllamaBaseURL)
	cfg.OllamaChatModel = envOr(envKeyOllamaChatModel, cfg.OllamaChatModel)
	cfg.OllamaEmbed = envOr(envKeyOllamaEmbed, cfg.OllamaEmbed)
	cfg.OpenAIBaseURL = envOr(envKeyOpenAIBaseURL, cfg.OpenAIBaseURL)
	cfg.OpenAIAPIKey = envOr(envKeyOpenAIAPIKey, cfg.OpenAIAPIKey)
	cfg.OpenAIChatModel = envOr(envKeyOpenAIChatModel, cfg.OpenAIChatModel)
	cfg.OpenAIEmbed = envOr(envKeyOpenAIEmbed, cfg.OpenAIEmbed)

	cfg.DBDriver = envOr(envKeyDBDriver, cfg.DBDriver)
	cfg.DBHost = envOr(envKeyDBHost, cfg.DBHost)
	cfg.DBPort = envIntOr(envKeyDBPort, cfg.DBPort)
	cfg.DBName = envOr(envKeyDBName, cfg.DBName)
	cfg.DBUser = envOr(envKeyDBUser, cfg.DBUser)
	cfg.DBPassword = envOr(envKeyDBPassword, cfg.DBPassword)
	cfg.SQLitePath = envOr(envKeySQLitePath, cfg.SQLitePath)

	cfg.VectorStore = envOr(envKeyVectorStore, cfg.VectorStore)
	cfg.QdrantURL = envOr(envKeyQdrantURL, cfg.QdrantURL)
	cfg.QdrantAPIKey = envOr(envKeyQdrantAPIKey, cfg.QdrantAPIKey)
	cfg.ProductIndexDir = envOr(envKeyProductIndexDir, cfg.ProductIndexDir)
	cfg.FeedbackIndex = envOr(envKeyFeedbackIndex, cfg.FeedbackIndex)
	cfg.ProductDataDir = envOr(envKeyProductDataDir, cfg.ProductDataDir)
	cfg.FeedbackDataDir = envOr(envKeyFeedbackDataDir, cfg.FeedbackDataDir)

	cfg.MaxRounds = envIntOr(envKeyMaxRounds, cfg.MaxRounds)
	cfg.SearchK = envIntOr(envKeySearchK, cfg.SearchK)
	cfg.MinSimilarity = envFloatOr(envKeyMinSimilarity, cfg.MinSimilarity)
	cfg.ToolTimeout = envDurationOr(envKeyToolTimeout, cfg.ToolTimeout)

	cfg.HTTPHost = envOr(envKeyHTTPHost, cfg.HTTPHost)
	cfg.HTTPPort = envIntOr(envKeyHTTPPort, cfg.HTTPPort)
	cfg.AccessKeyHash = envOr(envKeyAccessKeyHash, cfg.AccessKeyHash)
}

// validate rejects configurations the rest of the system cannot work with.
func (c Config) validate() error {
	switch c.LLMProvider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("config: unknown llm provider %q", c.LLMProvider)
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unknown db driver %q", c.DBDriver)
	}
	switch c.VectorStore {
	case "local", "qdrant":
	default:
		return fmt.Errorf("config: unknown vector store %q", c.VectorStore)
	}
	if c.MaxRounds <= 0 {
		return fmt.Errorf("config: max_rounds must be positive, got %d", c.MaxRounds)
	}
	if c.SearchK <= 0 {
		return fmt.Errorf("config: search_k must be positive, got %d", c.SearchK)
	}
	return nil
}

// PostgresDSN renders the lib/pq connection string.
func (c Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword,
	)
}

// envOr returns the value of the environment variable key, or fallback if not set.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envIntOr returns the integer value of key, or fallback on missing/invalid.
func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// envFloatOr returns the float value of key, or fallback on missing/invalid.
func envFloatOr(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

// envDurationOr returns the duration value of key (e.g. "30s"), or fallback.
func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
