package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Cache drivers.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheValkey = "valkey"
	CacheNone   = "none"
)

// Config holds the cityrag service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Reranker  RerankerConfig  `yaml:"reranker"`
	Generator GeneratorConfig `yaml:"generator"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Cache     CacheConfig     `yaml:"cache"`
	Database  DatabaseConfig  `yaml:"database"`
	Workers   WorkersConfig   `yaml:"workers"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings. Empty disables auth.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	ShutdownSec     int      `yaml:"shutdown_timeout_sec"`
	CORSOrigins     []string `yaml:"cors_origins"`
}

// CorpusConfig locates the precomputed corpus artifacts.
type CorpusConfig struct {
	MetadataPath string `yaml:"metadata_path"` // parquet
	IndexPath    string `yaml:"index_path"`    // FAISS IndexFlatL2
}

// EmbeddingConfig holds the query embedder settings.
type EmbeddingConfig struct {
	Provider         string `yaml:"provider"`
	APIKey           string `yaml:"api_key"`
	BaseURL          string `yaml:"base_url"`
	Model            string `yaml:"model"`
	Dimensions       int    `yaml:"dimensions"`
	QueryInstruction string `yaml:"query_instruction"`
}

// RerankerConfig holds the cross-encoder service settings.
type RerankerConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"` // informational
	RawScores  bool   `yaml:"raw_scores"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// GeneratorConfig holds the generative model settings.
type GeneratorConfig struct {
	Provider    string       `yaml:"provider"`
	APIKey      string       `yaml:"api_key"`
	BaseURL     string       `yaml:"base_url"`
	Model       string       `yaml:"model"`
	TimeoutSec  int          `yaml:"timeout_sec"`
	MaxRetries  *int         `yaml:"max_retries"`
	BackoffMs   int          `yaml:"backoff_ms"`
	Budget      BudgetConfig `yaml:"budget"`
	HealthCheck bool         `yaml:"health_check"` // include in /health (costs a request per probe)
}

// BudgetConfig holds generation token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// RetrievalConfig holds candidate selection settings.
type RetrievalConfig struct {
	SearchK      int      `yaml:"search_k"`
	MaxPerMetric int      `yaml:"max_per_metric"`
	Threshold    *float64 `yaml:"threshold"`
}

// CacheConfig holds query embedding cache settings.
type CacheConfig struct {
	Driver string `yaml:"driver"` // memory (default), redis, valkey, none
	Size   int    `yaml:"size"`   // memory driver entries
	TTLSec int    `yaml:"ttl_sec"`
}

// DatabaseConfig holds redis/valkey connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// WorkersConfig bounds concurrent compute stages.
type WorkersConfig struct {
	Concurrency     int `yaml:"concurrency"` // 0 = runtime.NumCPU()
	QueueTimeoutSec int `yaml:"queue_timeout_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "tei"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "intfloat/multilingual-e5-base"
	}
	if c.Reranker.TimeoutSec <= 0 {
		c.Reranker.TimeoutSec = 30
	}
	if c.Generator.Provider == "" {
		c.Generator.Provider = "gemini"
	}
	if c.Generator.Model == "" {
		c.Generator.Model = "gemini-2.5-flash-lite"
	}
	if c.Generator.TimeoutSec <= 0 {
		c.Generator.TimeoutSec = 30
	}
	if c.Generator.MaxRetries == nil {
		retries := 2
		c.Generator.MaxRetries = &retries
	}
	if c.Generator.BackoffMs <= 0 {
		c.Generator.BackoffMs = 500
	}
	if c.Retrieval.SearchK <= 0 {
		c.Retrieval.SearchK = 30
	}
	if c.Retrieval.MaxPerMetric <= 0 {
		c.Retrieval.MaxPerMetric = 2
	}
	if c.Retrieval.Threshold == nil {
		threshold := 0.3
		c.Retrieval.Threshold = &threshold
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = CacheMemory
	}
	if c.Cache.Size <= 0 {
		c.Cache.Size = 10000
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 7 * 24 * 3600
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Corpus.MetadataPath == "" || c.Corpus.IndexPath == "" {
		return errors.New("corpus.metadata_path and corpus.index_path are required")
	}
	if c.Embedding.BaseURL == "" {
		return errors.New("embedding.base_url is required")
	}
	if c.Reranker.BaseURL == "" {
		return errors.New("reranker.base_url is required")
	}
	if c.Generator.APIKey == "" {
		return errors.New("generator.api_key is required")
	}
	if c.Generator.MaxRetries != nil && *c.Generator.MaxRetries < 0 {
		return fmt.Errorf("generator.max_retries must be >= 0, got %d", *c.Generator.MaxRetries)
	}
	switch c.Generator.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf(
			"generator.budget.action must be \"warn\" or \"reject\", got %q",
			c.Generator.Budget.Action,
		)
	}
	if t := c.Retrieval.Threshold; t != nil && (math.IsNaN(*t) || math.IsInf(*t, 0)) {
		return errors.New("retrieval.threshold must be a finite number")
	}
	switch c.Cache.Driver {
	case CacheMemory, CacheNone:
		// ok
	case CacheRedis, CacheValkey:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for cache.driver %q", c.Cache.Driver)
		}
	default:
		return fmt.Errorf("cache.driver must be one of memory, redis, valkey, none; got %q", c.Cache.Driver)
	}
	if c.Workers.Concurrency < 0 {
		return fmt.Errorf("workers.concurrency must be >= 0, got %d", c.Workers.Concurrency)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// secretsDir is where Docker mounts secrets.
var secretsDir = "/run/secrets"

// expandEnvVars replaces ${VAR} and ${VAR:-default}. Lookup order: environment,
// secret file <secretsDir>/<lowercase VAR>, default.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := strings.TrimSpace(os.Getenv(varName))
		if val == "" {
			val = readSecret(varName)
		}
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

// readSecret reads a Docker secret file. KEY=value content yields value.
func readSecret(name string) string {
	data, err := os.ReadFile(filepath.Join(secretsDir, strings.ToLower(name)))
	if err != nil {
		return ""
	}
	raw := strings.TrimSpace(string(data))
	if _, v, ok := strings.Cut(raw, "="); ok {
		raw = v
	}
	return strings.TrimSpace(raw)
}
