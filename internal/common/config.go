package common

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/ternarybob/studygen/internal/interfaces"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Storage     StorageConfig    `toml:"storage"`
	Logging     LoggingConfig    `toml:"logging"`
	Gemini      GeminiConfig     `toml:"gemini"`
	Claude      ClaudeConfig     `toml:"claude"`
	LLM         LLMConfig        `toml:"llm"`
	Retry       RetryConfig      `toml:"retry"`
	Extraction  ExtractionConfig `toml:"extraction"`
	Index       IndexConfig      `toml:"index"`
	Pipeline    PipelineConfig   `toml:"pipeline"`
	Locks       LocksConfig      `toml:"locks"`
	Metrics     MetricsConfig    `toml:"metrics"`
}

type StorageConfig struct {
	Type   string       `toml:"type"` // "badger" (default) or "sqlite"
	Badger BadgerConfig `toml:"badger"`
	SQLite SQLiteConfig `toml:"sqlite"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// SQLiteConfig represents SQLite-specific configuration
type SQLiteConfig struct {
	Path          string `toml:"path"`
	CacheSizeMB   int    `toml:"cache_size_mb"`
	WALMode       bool   `toml:"wal_mode"`
	BusyTimeoutMS int    `toml:"busy_timeout_ms"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// GeminiConfig contains Google Gemini configuration for embeddings, generation and OCR
type GeminiConfig struct {
	APIKey         string  `toml:"api_key"`
	Model          string  `toml:"model"`           // Generation model (default: "gemini-2.0-flash")
	EmbedModel     string  `toml:"embed_model"`     // Embedding model (default: "gemini-embedding-001")
	EmbedDimension int     `toml:"embed_dimension"` // Output dimensionality (default: 768)
	Timeout        string  `toml:"timeout"`         // Per-call timeout as duration string (default: "2m")
	RateLimit      string  `toml:"rate_limit"`      // Minimum interval between calls (default: "1s")
	Temperature    float32 `toml:"temperature"`
	BaseURL        string  `toml:"base_url"`        // Optional API endpoint override, e.g. a gateway
}

// ClaudeConfig contains Anthropic Claude configuration for generation
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Timeout     string  `toml:"timeout"`
	RateLimit   string  `toml:"rate_limit"`
	Temperature float32 `toml:"temperature"`
	BaseURL     string  `toml:"base_url"`
}

// LLMProvider represents the generation provider type
type LLMProvider string

const (
	LLMProviderGemini LLMProvider = "gemini"
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig selects the generation provider. Embeddings always use Gemini.
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"`
}

// RetryConfig controls the transient-error retry policy shared by embedding and generation calls
type RetryConfig struct {
	MaxRetries        int     `toml:"max_retries"`
	InitialBackoff    string  `toml:"initial_backoff"`
	MaxBackoff        string  `toml:"max_backoff"`
	BackoffMultiplier float64 `toml:"backoff_multiplier"`
}

// ExtractionConfig controls text extraction and the OCR fallback
type ExtractionConfig struct {
	OCREngine     string `toml:"ocr_engine"` // "tesseract", "gemini" or "none"
	PdftoppmPath  string `toml:"pdftoppm_path"`
	TesseractPath string `toml:"tesseract_path"`
	Language      string `toml:"language"` // tesseract language code
	DPI           int    `toml:"dpi"`
	MaxOCRPages   int    `toml:"max_ocr_pages"` // 0 = all pages
}

// IndexConfig controls the document index and retrieval
type IndexConfig struct {
	TopK          int     `toml:"top_k"`
	MinScore      float64 `toml:"min_score"`       // Passages must score strictly above this
	MaxEmbedChars int     `toml:"max_embed_chars"` // Embedding input is truncated to this many characters
	BuildTimeout  string  `toml:"build_timeout"`   // Bound on one shared extract+embed build, e.g. "10m"
}

// PipelineConfig controls pipeline execution
type PipelineConfig struct {
	Workers     int    `toml:"workers"`
	Timeout     string `toml:"timeout"` // Upper bound for one run, e.g. "5m"
	DefaultUser string `toml:"default_user"`
}

// LocksConfig selects the keyed locker used for index and record writes
type LocksConfig struct {
	Backend       string `toml:"backend"` // "local" or "redis"
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	TTL           string `toml:"ttl"`
}

type MetricsConfig struct {
	Enabled  bool   `toml:"enabled"`
	Textfile string `toml:"textfile"` // Prometheus text exposition written after each command
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Type: "badger",
			Badger: BadgerConfig{
				Path: "./data/badger",
			},
			SQLite: SQLiteConfig{
				Path:          "./data/studygen.db",
				CacheSizeMB:   16,
				WALMode:       true,
				BusyTimeoutMS: 5000,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Gemini: GeminiConfig{
			Model:          "gemini-2.0-flash",
			EmbedModel:     "gemini-embedding-001",
			EmbedDimension: 768,
			Timeout:        "2m",
			RateLimit:      "1s",
			Temperature:    0.7,
		},
		Claude: ClaudeConfig{
			Model:       "claude-haiku-4-5",
			MaxTokens:   8192,
			Timeout:     "2m",
			RateLimit:   "1s",
			Temperature: 0.7,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
		},
		Retry: RetryConfig{
			MaxRetries:        3,
			InitialBackoff:    "2s",
			MaxBackoff:        "60s",
			BackoffMultiplier: 2.0,
		},
		Extraction: ExtractionConfig{
			OCREngine:     "tesseract",
			PdftoppmPath:  "pdftoppm",
			TesseractPath: "tesseract",
			Language:      "eng",
			DPI:           200,
		},
		Index: IndexConfig{
			TopK:          3,
			MinScore:      0,
			MaxEmbedChars: 30000,
			BuildTimeout:  "10m",
		},
		Pipeline: PipelineConfig{
			Workers:     4,
			Timeout:     "5m",
			DefaultUser: "guest",
		},
		Locks: LocksConfig{
			Backend: "local",
			TTL:     "2m",
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> .env -> env.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// .env never overrides variables already present in the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies STUDYGEN_* environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("STUDYGEN_ENV"); env != "" {
		config.Environment = env
	}

	// Storage
	if storageType := os.Getenv("STUDYGEN_STORAGE_TYPE"); storageType != "" {
		config.Storage.Type = storageType
	}
	if badgerPath := os.Getenv("STUDYGEN_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if sqlitePath := os.Getenv("STUDYGEN_SQLITE_PATH"); sqlitePath != "" {
		config.Storage.SQLite.Path = sqlitePath
	}

	// Logging
	if level := os.Getenv("STUDYGEN_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("STUDYGEN_LOG_OUTPUT"); output != "" {
		config.Logging.Output = splitList(output)
	}

	// Gemini
	if model := os.Getenv("STUDYGEN_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if embedModel := os.Getenv("STUDYGEN_GEMINI_EMBED_MODEL"); embedModel != "" {
		config.Gemini.EmbedModel = embedModel
	}
	if rateLimit := os.Getenv("STUDYGEN_GEMINI_RATE_LIMIT"); rateLimit != "" {
		config.Gemini.RateLimit = rateLimit
	}
	if temperature := os.Getenv("STUDYGEN_GEMINI_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Gemini.Temperature = float32(t)
		}
	}

	// Claude
	if model := os.Getenv("STUDYGEN_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}

	// LLM
	if provider := os.Getenv("STUDYGEN_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(strings.ToLower(provider))
	}

	// Retry
	if maxRetries := os.Getenv("STUDYGEN_RETRY_MAX_RETRIES"); maxRetries != "" {
		if n, err := strconv.Atoi(maxRetries); err == nil {
			config.Retry.MaxRetries = n
		}
	}

	// Extraction
	if engine := os.Getenv("STUDYGEN_OCR_ENGINE"); engine != "" {
		config.Extraction.OCREngine = engine
	}
	if pdftoppm := os.Getenv("STUDYGEN_PDFTOPPM_PATH"); pdftoppm != "" {
		config.Extraction.PdftoppmPath = pdftoppm
	}
	if tesseract := os.Getenv("STUDYGEN_TESSERACT_PATH"); tesseract != "" {
		config.Extraction.TesseractPath = tesseract
	}

	// Index
	if minScore := os.Getenv("STUDYGEN_INDEX_MIN_SCORE"); minScore != "" {
		if s, err := strconv.ParseFloat(minScore, 64); err == nil {
			config.Index.MinScore = s
		}
	}

	// Pipeline
	if workers := os.Getenv("STUDYGEN_PIPELINE_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil {
			config.Pipeline.Workers = n
		}
	}
	if timeout := os.Getenv("STUDYGEN_PIPELINE_TIMEOUT"); timeout != "" {
		config.Pipeline.Timeout = timeout
	}

	// Locks
	if backend := os.Getenv("STUDYGEN_LOCKS_BACKEND"); backend != "" {
		config.Locks.Backend = backend
	}
	if addr := os.Getenv("STUDYGEN_REDIS_ADDR"); addr != "" {
		config.Locks.RedisAddr = addr
	}
	if password := os.Getenv("STUDYGEN_REDIS_PASSWORD"); password != "" {
		config.Locks.RedisPassword = password
	}

	// Metrics
	if textfile := os.Getenv("STUDYGEN_METRICS_TEXTFILE"); textfile != "" {
		config.Metrics.Enabled = true
		config.Metrics.Textfile = textfile
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, logLevel string) {
	if logLevel != "" {
		config.Logging.Level = logLevel
	}
}

// Validate checks enumerated settings and duration strings
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "", "badger", "sqlite":
	default:
		return fmt.Errorf("unsupported storage type: %s (expected 'badger' or 'sqlite')", c.Storage.Type)
	}

	switch c.LLM.DefaultProvider {
	case LLMProviderGemini, LLMProviderClaude:
	default:
		return fmt.Errorf("unsupported llm provider: %s", c.LLM.DefaultProvider)
	}

	switch c.Extraction.OCREngine {
	case "tesseract", "gemini", "none":
	default:
		return fmt.Errorf("unsupported ocr engine: %s", c.Extraction.OCREngine)
	}

	switch c.Locks.Backend {
	case "local":
	case "redis":
		if c.Locks.RedisAddr == "" {
			return fmt.Errorf("locks.redis_addr is required when locks.backend is 'redis'")
		}
	default:
		return fmt.Errorf("unsupported lock backend: %s", c.Locks.Backend)
	}

	durations := map[string]string{
		"gemini.timeout":        c.Gemini.Timeout,
		"gemini.rate_limit":     c.Gemini.RateLimit,
		"claude.timeout":        c.Claude.Timeout,
		"claude.rate_limit":     c.Claude.RateLimit,
		"retry.initial_backoff": c.Retry.InitialBackoff,
		"retry.max_backoff":     c.Retry.MaxBackoff,
		"pipeline.timeout":      c.Pipeline.Timeout,
		"index.build_timeout":   c.Index.BuildTimeout,
		"locks.ttl":             c.Locks.TTL,
	}
	for name, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %q: %w", name, value, err)
		}
	}

	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be at least 1, got %d", c.Pipeline.Workers)
	}

	return nil
}

// ParseDurationOr parses a duration string, returning fallback when empty or invalid
func ParseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// ResolveAPIKey resolves an API key with priority: environment -> KV store -> config value
func ResolveAPIKey(ctx context.Context, kvStorage interfaces.KeyValueStorage, name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key":    {"STUDYGEN_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
		"anthropic_api_key": {"STUDYGEN_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
	}

	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if kvStorage != nil {
		apiKey, err := kvStorage.Get(ctx, name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment, KV store, or config", name)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
