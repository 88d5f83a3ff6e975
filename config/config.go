package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Search    SearchConfig    `mapstructure:"search"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// SearchConfig holds shopping search provider configuration
type SearchConfig struct {
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
	Engine   string `mapstructure:"engine"`
	UseProxy bool   `mapstructure:"use_proxy"`
}

// FetchConfig holds content-fetch proxy configuration
type FetchConfig struct {
	ProxyURL        string        `mapstructure:"proxy_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxContentChars int           `mapstructure:"max_content_chars"`
}

// LLMConfig holds classification service configuration
type LLMConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Model             string        `mapstructure:"model"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryInitialDelay time.Duration `mapstructure:"retry_initial_delay"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP  int `mapstructure:"per_ip"` // requests per minute per client IP
	Search int `mapstructure:"search"` // provider requests per hour
}

// PipelineConfig holds the tunable business policy of the search pipeline
type PipelineConfig struct {
	BatchSize             int     `mapstructure:"batch_size"`
	MaxItemsPerCategory   int     `mapstructure:"max_items_per_category"`
	SimplifiedTopN        int     `mapstructure:"simplified_top_n"`
	MaxParallelCategories int     `mapstructure:"max_parallel_categories"`
	PriceCapRatio         float64 `mapstructure:"price_cap_ratio"`
	BudgetResortRatio     float64 `mapstructure:"budget_resort_ratio"`
	DefaultMaxBudget      float64 `mapstructure:"default_max_budget"`
	ContentSampleChars    int     `mapstructure:"content_sample_chars"`
	BundleCount           int     `mapstructure:"bundle_count"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/outfitter/")

	// Environment variable settings
	v.SetEnvPrefix("OUTFITTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads variables from a .env file in the working directory.
// Existing environment variables are never overridden.
func loadEnvFile() error {
	if err := godotenv.Load(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Search provider defaults
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.base_url", "https://serpapi.com/search.json")
	v.SetDefault("search.engine", "google_shopping")
	v.SetDefault("search.use_proxy", false)

	// Content proxy defaults
	v.SetDefault("fetch.proxy_url", "https://r.jina.ai/")
	v.SetDefault("fetch.timeout", "15s")
	v.SetDefault("fetch.max_content_chars", 20000)

	// Classification service defaults
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_initial_delay", "1s")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "6h")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 30)
	v.SetDefault("ratelimit.search", 1000)

	// Pipeline defaults
	v.SetDefault("pipeline.batch_size", 5)
	v.SetDefault("pipeline.max_items_per_category", 7)
	v.SetDefault("pipeline.simplified_top_n", 3)
	v.SetDefault("pipeline.max_parallel_categories", 4)
	v.SetDefault("pipeline.price_cap_ratio", 1.3)
	v.SetDefault("pipeline.budget_resort_ratio", 1.1)
	v.SetDefault("pipeline.default_max_budget", 100000.0)
	v.SetDefault("pipeline.content_sample_chars", 1500)
	v.SetDefault("pipeline.bundle_count", 3)

	v.SetDefault("log.level", "")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key is required (set OUTFITTER_LLM_API_KEY)")
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	if config.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm max_retries must be >= 0, got: %d", config.LLM.MaxRetries)
	}

	p := config.Pipeline
	if p.BatchSize <= 0 || p.MaxItemsPerCategory <= 0 || p.SimplifiedTopN <= 0 || p.MaxParallelCategories <= 0 {
		return fmt.Errorf("pipeline sizes must be positive")
	}

	if p.PriceCapRatio < 1 || p.BudgetResortRatio < 1 {
		return fmt.Errorf("pipeline ratios must be >= 1 (price_cap_ratio=%.2f, budget_resort_ratio=%.2f)",
			p.PriceCapRatio, p.BudgetResortRatio)
	}

	return nil
}
