package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	INIES     INIESConfig `mapstructure:"inies"`
	Browser   BrowserConfig
	Catalogue CatalogueConfig
	Solutions SolutionsConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Sync      SyncConfig
	Scoring   ScoringConfig
	Auth      AuthConfig
	Postgres  PostgresConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"` // empty: debug in development, info in production
}

// INIESConfig holds the remote database endpoints
type INIESConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	SearchPath         string        `mapstructure:"search_path"`
	ProductURLTemplate string        `mapstructure:"product_url_template"`
	Timeout            time.Duration `mapstructure:"timeout"`
	UserAgent          string        `mapstructure:"user_agent"`
}

// BrowserConfig holds detail-page rendering settings
type BrowserConfig struct {
	Headless      bool          `mapstructure:"headless"`
	ExecPath      string        `mapstructure:"exec_path"`
	ReadyTimeout  time.Duration `mapstructure:"ready_timeout"`
	SettleDelay   time.Duration `mapstructure:"settle_delay"`
	TabDelay      time.Duration `mapstructure:"tab_delay"`
	OptionalDelay time.Duration `mapstructure:"optional_delay"`
}

// CatalogueConfig holds catalogue file settings
type CatalogueConfig struct {
	Path       string `mapstructure:"path"`
	OutputPath string `mapstructure:"output_path"` // defaults to path
	Sheet      string `mapstructure:"sheet"`
}

// SolutionsConfig holds the solutions store location
type SolutionsConfig struct {
	Path string `mapstructure:"path"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Discovery  float64 `mapstructure:"discovery"`  // search requests per second
	Extraction float64 `mapstructure:"extraction"` // detail pages per minute
}

// SyncConfig holds sync orchestration settings
type SyncConfig struct {
	Workers int `mapstructure:"workers"`
}

// ScoringConfig holds normalization settings
type ScoringConfig struct {
	ReferenceLife       float64 `mapstructure:"reference_life"`
	IncludeUnclassified bool    `mapstructure:"include_unclassified"`
}

// AuthConfig holds stored credentials; an empty map disables the check
type AuthConfig struct {
	Users map[string]string `mapstructure:"users"` // username -> bcrypt hash
}

// PostgresConfig holds the optional reporting mirror; an empty DSN disables it
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	Schema   string `mapstructure:"schema"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/inies/")

	// Environment variable settings: INIES_CACHE_REDIS_URL -> cache.redis_url
	v.SetEnvPrefix("INIES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads a .env file from the working directory if there is one.
// Variables already set in the environment win.
func loadEnvFile() error {
	err := godotenv.Load()
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})
	v.SetDefault("log.level", "")

	// INIES defaults
	v.SetDefault("inies.base_url", "https://base-inies.fr")
	v.SetDefault("inies.search_path", "/api/SearchProduits")
	v.SetDefault("inies.product_url_template", "https://base-inies.fr/consultation/infos-produit/%s")
	v.SetDefault("inies.timeout", "30s")
	v.SetDefault("inies.user_agent", "inies-catalogue/1.0")

	// Browser defaults
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.ready_timeout", "15s")
	v.SetDefault("browser.settle_delay", "2s")
	v.SetDefault("browser.tab_delay", "1s")
	v.SetDefault("browser.optional_delay", "2s")

	// Storage defaults
	v.SetDefault("catalogue.path", "base_inies_complete.xlsx")
	v.SetDefault("catalogue.output_path", "")
	v.SetDefault("catalogue.sheet", "Sheet1")
	v.SetDefault("solutions.path", "solutions_db.json")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "720h") // 30 days

	// Rate limit defaults
	v.SetDefault("ratelimit.discovery", 1)
	v.SetDefault("ratelimit.extraction", 30)

	v.SetDefault("sync.workers", 1)

	// Scoring defaults
	v.SetDefault("scoring.reference_life", 50)
	v.SetDefault("scoring.include_unclassified", true)

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.schema", "public")
	v.SetDefault("postgres.max_conns", 4)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	if u, err := url.Parse(config.INIES.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("INIES base URL must be an absolute URL, got: %q", config.INIES.BaseURL)
	}

	if strings.Count(config.INIES.ProductURLTemplate, "%s") != 1 {
		return fmt.Errorf("product URL template must contain exactly one %%s, got: %q", config.INIES.ProductURLTemplate)
	}

	if config.Catalogue.Path == "" {
		return fmt.Errorf("catalogue path is required (set INIES_CATALOGUE_PATH)")
	}

	if config.Sync.Workers < 1 {
		return fmt.Errorf("sync workers must be at least 1, got: %d", config.Sync.Workers)
	}

	if config.Scoring.ReferenceLife <= 0 {
		return fmt.Errorf("scoring reference life must be positive, got: %v", config.Scoring.ReferenceLife)
	}

	if config.RateLimit.Discovery < 0 || config.RateLimit.Extraction < 0 {
		return fmt.Errorf("rate limits cannot be negative")
	}

	return nil
}
