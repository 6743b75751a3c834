// Package config provides configuration management for the application.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/amaumene/moviematch/internal/constants"
	apperrors "github.com/amaumene/moviematch/internal/errors"
)

const (
	// Default configuration file name
	defaultConfigFile = "config.json"
	// Default database path
	defaultDatabasePath = "./cache.db"
)

// Config holds the application configuration.
// Values come from defaults, then the optional config file, then the environment.
type Config struct {
	TMDBAPIKey string
	Language   string

	// Where catalog pages come from: "direct" (TMDB) or "proxy" (another server)
	SourceMode string
	ProxyURL   string

	Port           string
	AllowedOrigins []string

	// Storage settings
	DatabasePath   string
	CacheSize      int
	CacheTTL       time.Duration
	PageCacheTTL   time.Duration
	ImageCacheSize int

	// Stream tuning
	RefillThreshold int
	PreloadCount    int
	FetchTimeout    time.Duration
	MaxRetries      int

	SessionIdleTTL  time.Duration
	JanitorInterval time.Duration

	LogLevel string
	LogFile  string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("TMDB_API_KEY", "")
	v.SetDefault("LANGUAGE", constants.DefaultLanguage)
	v.SetDefault("SOURCE_MODE", constants.DefaultSourceMode)
	v.SetDefault("PROXY_URL", "")
	v.SetDefault("PORT", constants.DefaultPort)
	v.SetDefault("ALLOWED_ORIGINS", strings.Join(constants.DefaultAllowedOrigins, ","))
	v.SetDefault("DATABASE_PATH", defaultDatabasePath)
	v.SetDefault("CACHE_SIZE", constants.DefaultCacheSize)
	v.SetDefault("CACHE_TTL", time.Duration(constants.DefaultCacheTTL)*time.Hour)
	v.SetDefault("PAGE_CACHE_TTL", time.Duration(constants.DefaultPageCacheTTL)*time.Hour)
	v.SetDefault("IMAGE_CACHE_SIZE", constants.DefaultImageCacheSize)
	v.SetDefault("REFILL_THRESHOLD", constants.DefaultRefillThreshold)
	v.SetDefault("PRELOAD_COUNT", constants.DefaultPreloadCount)
	v.SetDefault("FETCH_TIMEOUT", constants.DefaultFetchTimeout)
	v.SetDefault("MAX_RETRIES", constants.DefaultMaxRetries)
	v.SetDefault("SESSION_IDLE_TTL", constants.DefaultSessionIdleTTL)
	v.SetDefault("JANITOR_INTERVAL", constants.DefaultJanitorInterval)
	v.SetDefault("LOG_LEVEL", constants.DefaultLogLevel)
	v.SetDefault("LOG_FILE", "")
}

// Load reads configuration from the optional file at path and the environment.
// An empty path falls back to CONFIG_FILE, then config.json. A missing file
// is not an error. Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path == "" {
		path = getEnvOrDefault("CONFIG_FILE", defaultConfigFile)
	}
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, apperrors.NewConfigurationError(fmt.Sprintf("failed to load config file %s", path), err)
		}
	}

	cfg := &Config{
		TMDBAPIKey:      strings.TrimSpace(v.GetString("TMDB_API_KEY")),
		Language:        v.GetString("LANGUAGE"),
		SourceMode:      strings.ToLower(v.GetString("SOURCE_MODE")),
		ProxyURL:        v.GetString("PROXY_URL"),
		Port:            v.GetString("PORT"),
		AllowedOrigins:  splitList(v.GetStringSlice("ALLOWED_ORIGINS")),
		DatabasePath:    v.GetString("DATABASE_PATH"),
		CacheSize:       v.GetInt("CACHE_SIZE"),
		CacheTTL:        v.GetDuration("CACHE_TTL"),
		PageCacheTTL:    v.GetDuration("PAGE_CACHE_TTL"),
		ImageCacheSize:  v.GetInt("IMAGE_CACHE_SIZE"),
		RefillThreshold: v.GetInt("REFILL_THRESHOLD"),
		PreloadCount:    v.GetInt("PRELOAD_COUNT"),
		FetchTimeout:    v.GetDuration("FETCH_TIMEOUT"),
		MaxRetries:      v.GetInt("MAX_RETRIES"),
		SessionIdleTTL:  v.GetDuration("SESSION_IDLE_TTL"),
		JanitorInterval: v.GetDuration("JANITOR_INTERVAL"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		LogFile:         v.GetString("LOG_FILE"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid.
// Sets default values for missing optional fields.
func (c *Config) Validate() error {
	// TMDB_API_KEY is optional: proxy mode and the session API work without it

	switch c.SourceMode {
	case "":
		c.SourceMode = constants.DefaultSourceMode
	case constants.SourceModeDirect, constants.SourceModeProxy:
	default:
		return apperrors.NewConfigurationError(fmt.Sprintf("unknown SOURCE_MODE %q", c.SourceMode), nil)
	}

	if c.SourceMode == constants.SourceModeProxy && c.ProxyURL == "" {
		return apperrors.NewConfigurationError("PROXY_URL is required when SOURCE_MODE is proxy", nil)
	}

	if c.RefillThreshold < 0 || c.PreloadCount < 0 || c.MaxRetries < 0 {
		return apperrors.NewConfigurationError("REFILL_THRESHOLD, PRELOAD_COUNT and MAX_RETRIES must not be negative", nil)
	}

	if c.Port == "" {
		c.Port = constants.DefaultPort
	}
	if c.Language == "" {
		c.Language = constants.DefaultLanguage
	}
	if c.CacheSize <= 0 {
		c.CacheSize = constants.DefaultCacheSize
	}
	if c.ImageCacheSize <= 0 {
		c.ImageCacheSize = constants.DefaultImageCacheSize
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Duration(constants.DefaultCacheTTL) * time.Hour
	}
	if c.PageCacheTTL <= 0 {
		c.PageCacheTTL = time.Duration(constants.DefaultPageCacheTTL) * time.Hour
	}
	if c.RefillThreshold == 0 {
		c.RefillThreshold = constants.DefaultRefillThreshold
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = constants.DefaultFetchTimeout
	}
	if c.SessionIdleTTL <= 0 {
		c.SessionIdleTTL = constants.DefaultSessionIdleTTL
	}
	if c.JanitorInterval <= 0 {
		c.JanitorInterval = constants.DefaultJanitorInterval
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = append([]string(nil), constants.DefaultAllowedOrigins...)
	}

	return nil
}

// splitList accepts both list values from a config file and comma-separated
// strings from the environment.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// getEnvOrDefault returns environment variable value or default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
