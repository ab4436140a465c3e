package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kitbuilder587/ba-analyser/internal/domain"
)

var (
	ErrMissingAPIKey    = errors.New("api key for the selected LLM provider is required")
	ErrUnknownProvider  = errors.New("unknown LLM provider")
	ErrMissingDB        = errors.New("DATABASE_URL is required for postgres store")
	ErrUnknownStore     = errors.New("unknown store type")
	ErrInvalidThreshold = errors.New("ANALYSIS_QUALITY_THRESHOLD must be within [0, 100]")
)

const (
	ProviderAnthropic  = "anthropic"
	ProviderOpenRouter = "openrouter"
	ProviderMock       = "mock"

	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

type Config struct {
	LLM       LLMConfig
	Analysis  AnalysisConfig
	HTTP      HTTPConfig
	Telegram  TelegramConfig
	Store     StoreConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

type LLMConfig struct {
	Provider    string
	Anthropic   ProviderConfig
	OpenRouter  ProviderConfig
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
	// GenerationTemperature - генерация историй, анализ и правки идут на Temperature
	GenerationTemperature float64
	Retry                 RetryConfig
}

type ProviderConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type RetryConfig struct {
	Attempts int
	MinWait  time.Duration
	MaxWait  time.Duration
}

type AnalysisConfig struct {
	QualityThreshold     float64
	DimensionConcurrency int
}

type HTTPConfig struct {
	Addr        string
	CORSOrigins []string
}

type TelegramConfig struct {
	Token string
}

type StoreConfig struct {
	Type        string
	DatabaseURL string
	SQLitePath  string
}

type CacheConfig struct {
	TTL time.Duration
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		LLM: LLMConfig{
			Provider: strings.ToLower(getEnvOrDefault("LLM_PROVIDER", ProviderMock)),
			Anthropic: ProviderConfig{
				APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
				Model:   getEnvOrDefault("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
				BaseURL: getEnvOrDefault("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
			},
			OpenRouter: ProviderConfig{
				APIKey:  os.Getenv("OPENROUTER_API_KEY"),
				Model:   getEnvOrDefault("OPENROUTER_MODEL", "anthropic/claude-3.5-sonnet"),
				BaseURL: getEnvOrDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
			},
			Timeout:     time.Duration(getEnvIntOrDefault("LLM_TIMEOUT_SEC", 120)) * time.Second,
			MaxTokens:   getEnvIntOrDefault("LLM_MAX_TOKENS", 4096),
			Temperature: getEnvFloatOrDefault("LLM_TEMPERATURE_ANALYSIS", 0.1),

			GenerationTemperature: getEnvFloatOrDefault("LLM_TEMPERATURE_GENERATION", 0.4),
			Retry: RetryConfig{
				Attempts: getEnvIntOrDefault("LLM_RETRY_ATTEMPTS", 5),
				MinWait:  time.Duration(getEnvIntOrDefault("LLM_RETRY_MIN_WAIT_SEC", 2)) * time.Second,
				MaxWait:  time.Duration(getEnvIntOrDefault("LLM_RETRY_MAX_WAIT_SEC", 30)) * time.Second,
			},
		},
		Analysis: AnalysisConfig{
			QualityThreshold:     getEnvFloatOrDefault("ANALYSIS_QUALITY_THRESHOLD", 80),
			DimensionConcurrency: getEnvIntOrDefault("ANALYSIS_DIMENSION_CONCURRENCY", 1),
		},
		HTTP: HTTPConfig{
			Addr: getEnvOrDefault("HTTP_ADDR", ":8000"),
			CORSOrigins: getEnvListOrDefault("HTTP_CORS_ORIGINS", []string{
				"http://localhost:5173",
				"http://127.0.0.1:5173",
			}),
		},
		Telegram: TelegramConfig{
			Token: os.Getenv("TELEGRAM_BOT_TOKEN"),
		},
		Store: StoreConfig{
			Type:        strings.ToLower(getEnvOrDefault("STORE_TYPE", StoreMemory)),
			DatabaseURL: os.Getenv("DATABASE_URL"),
			SQLitePath:  getEnvOrDefault("SQLITE_PATH", "ba-analyser.db"),
		},
		Cache: CacheConfig{
			TTL: time.Duration(getEnvIntOrDefault("CACHE_TTL_SEC", 3600)) * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvIntOrDefault("RATE_LIMIT_PER_MINUTE", 20),
		},
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderAnthropic:
		if c.LLM.Anthropic.APIKey == "" {
			return ErrMissingAPIKey
		}
	case ProviderOpenRouter:
		if c.LLM.OpenRouter.APIKey == "" {
			return ErrMissingAPIKey
		}
	case ProviderMock:
	default:
		return ErrUnknownProvider
	}

	switch c.Store.Type {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			return ErrMissingDB
		}
	default:
		return ErrUnknownStore
	}

	if domain.ValidateThreshold(c.Analysis.QualityThreshold) != nil {
		return ErrInvalidThreshold
	}
	return nil
}

// Model - модель активного провайдера
func (c *Config) Model() string {
	switch c.LLM.Provider {
	case ProviderAnthropic:
		return c.LLM.Anthropic.Model
	case ProviderOpenRouter:
		return c.LLM.OpenRouter.Model
	default:
		return ProviderMock
	}
}

// Setting - одна строка для `ba-analyser config`
type Setting struct {
	Key   string
	Value string
}

// Settings - эффективная конфигурация с замаскированными секретами
func (c *Config) Settings() []Setting {
	return []Setting{
		{"LLM_PROVIDER", c.LLM.Provider},
		{"ANTHROPIC_API_KEY", maskSecret(c.LLM.Anthropic.APIKey)},
		{"ANTHROPIC_MODEL", c.LLM.Anthropic.Model},
		{"ANTHROPIC_BASE_URL", c.LLM.Anthropic.BaseURL},
		{"OPENROUTER_API_KEY", maskSecret(c.LLM.OpenRouter.APIKey)},
		{"OPENROUTER_MODEL", c.LLM.OpenRouter.Model},
		{"OPENROUTER_BASE_URL", c.LLM.OpenRouter.BaseURL},
		{"LLM_TIMEOUT_SEC", strconv.Itoa(int(c.LLM.Timeout / time.Second))},
		{"LLM_MAX_TOKENS", strconv.Itoa(c.LLM.MaxTokens)},
		{"LLM_TEMPERATURE_ANALYSIS", strconv.FormatFloat(c.LLM.Temperature, 'g', -1, 64)},
		{"LLM_TEMPERATURE_GENERATION", strconv.FormatFloat(c.LLM.GenerationTemperature, 'g', -1, 64)},
		{"LLM_RETRY_ATTEMPTS", strconv.Itoa(c.LLM.Retry.Attempts)},
		{"ANALYSIS_QUALITY_THRESHOLD", strconv.FormatFloat(c.Analysis.QualityThreshold, 'g', -1, 64)},
		{"ANALYSIS_DIMENSION_CONCURRENCY", strconv.Itoa(c.Analysis.DimensionConcurrency)},
		{"HTTP_ADDR", c.HTTP.Addr},
		{"HTTP_CORS_ORIGINS", strings.Join(c.HTTP.CORSOrigins, ",")},
		{"TELEGRAM_BOT_TOKEN", maskSecret(c.Telegram.Token)},
		{"STORE_TYPE", c.Store.Type},
		{"DATABASE_URL", maskSecret(c.Store.DatabaseURL)},
		{"SQLITE_PATH", c.Store.SQLitePath},
		{"CACHE_TTL_SEC", strconv.Itoa(int(c.Cache.TTL / time.Second))},
		{"RATE_LIMIT_PER_MINUTE", strconv.Itoa(c.RateLimit.RequestsPerMinute)},
		{"LOG_LEVEL", c.Log.Level},
		{"LOG_FORMAT", c.Log.Format},
	}
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvListOrDefault - значения через запятую, пустые элементы выкидываются
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
