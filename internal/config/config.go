// Package config provides configuration management using Viper.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jobrunner/s2tile/internal/domain"
)

// EnvPrefix is the prefix of environment overrides (S2TILE_SERVER_PORT, ...).
const EnvPrefix = "S2TILE"

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Build   BuildConfig   `mapstructure:"build"`
	Index   IndexConfig   `mapstructure:"index"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Watch   WatchConfig   `mapstructure:"watch"`
	TLS     TLSConfig     `mapstructure:"tls"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"` // e.g., ["https://example.com", "*.sub.domain.tld"]
}

// Enabled returns true if CORS is configured with at least one allowed origin.
func (c *CORSConfig) Enabled() bool {
	return len(c.AllowedOrigins) > 0
}

// StorageConfig holds tile source configuration.
type StorageConfig struct {
	Type      string      `mapstructure:"type"`       // s3, azure, http, local
	LocalPath string      `mapstructure:"local_path"` // tile tree (local) or download cache (remote)
	S3        S3Config    `mapstructure:"s3"`
	Azure     AzureConfig `mapstructure:"azure"`
	HTTP      HTTPConfig  `mapstructure:"http"`
}

// S3Config holds AWS S3 configuration.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	RequesterPays   bool   `mapstructure:"requester_pays"`
}

// AzureConfig holds Azure Blob Storage configuration.
type AzureConfig struct {
	Container        string `mapstructure:"container"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	ConnectionString string `mapstructure:"connection_string"`
	Prefix           string `mapstructure:"prefix"`
}

// HTTPConfig holds HTTP download configuration.
type HTTPConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	IndexFile string        `mapstructure:"index_file"` // default: index.txt
	Timeout   time.Duration `mapstructure:"timeout"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
}

// BuildConfig holds build plan assembly configuration.
type BuildConfig struct {
	CacheSize   int      `mapstructure:"cache_size"`  // parsed metadata documents kept
	Concurrency int      `mapstructure:"concurrency"` // parallel tile builds
	Profiles    []string `mapstructure:"profiles"`    // profiles built per tile
	WorldFiles  bool     `mapstructure:"world_files"` // write .j2w files
}

// IndexConfig holds plan index configuration.
type IndexConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// SyncConfig holds periodic storage sync configuration.
type SyncConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// WatchConfig holds file watcher configuration (local storage only).
type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// TLSConfig holds TLS/CertMagic configuration.
type TLSConfig struct {
	Enabled  bool      `mapstructure:"enabled"`
	Domains  []string  `mapstructure:"domains"`
	Email    string    `mapstructure:"email"`
	CacheDir string    `mapstructure:"cache_dir"`
	Staging  bool      `mapstructure:"staging"` // Use Let's Encrypt staging
	DNS      DNSConfig `mapstructure:"dns"`
}

// DNSConfig holds Azure DNS settings for DNS-01 challenges.
type DNSConfig struct {
	SubscriptionID    string `mapstructure:"subscription_id"`
	ResourceGroupName string `mapstructure:"resource_group_name"`
	ClientID          string `mapstructure:"client_id"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
}

// Defaults sets the default configuration values.
func Defaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 60*time.Second)
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)
	viper.SetDefault("server.cors.allowed_origins", []string{})

	// Storage defaults
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local_path", "./data")
	viper.SetDefault("storage.s3.region", "eu-central-1")
	viper.SetDefault("storage.http.index_file", "index.txt")
	viper.SetDefault("storage.http.timeout", 5*time.Minute)

	// Build defaults
	viper.SetDefault("build.cache_size", 128)
	viper.SetDefault("build.concurrency", 4)
	viper.SetDefault("build.profiles", domain.ProfileTags())
	viper.SetDefault("build.world_files", true)

	// Index defaults
	viper.SetDefault("index.enabled", false)
	viper.SetDefault("index.path", "./plans.db")

	// Sync defaults
	viper.SetDefault("sync.enabled", false)
	viper.SetDefault("sync.interval", time.Hour)

	// Watch defaults
	viper.SetDefault("watch.enabled", true)
	viper.SetDefault("watch.debounce", 500*time.Millisecond)

	// TLS defaults
	viper.SetDefault("tls.enabled", false)
	viper.SetDefault("tls.cache_dir", "./.certmagic")
	viper.SetDefault("tls.staging", false)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)
	viper.SetDefault("metrics.path", "/metrics")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// Load loads configuration from environment and config file.
func Load(configPath string) (*Config, error) {
	Defaults()

	// Environment variable binding
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Config file
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/s2tile")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return &domain.ConfigError{Field: "server.port", Message: fmt.Sprintf("invalid port %d", c.Server.Port)}
	}

	if c.TLS.Enabled {
		if len(c.TLS.Domains) == 0 {
			return &domain.ConfigError{Field: "tls.domains", Message: "TLS enabled but no domains specified"}
		}
		if c.TLS.Email == "" {
			return &domain.ConfigError{Field: "tls.email", Message: "TLS enabled but no email specified"}
		}
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return &domain.ConfigError{Field: "metrics.port", Message: fmt.Sprintf("invalid port %d", c.Metrics.Port)}
	}

	if err := c.Build.Validate(); err != nil {
		return err
	}

	if c.Index.Enabled && c.Index.Path == "" {
		return &domain.ConfigError{Field: "index.path", Message: "plan index enabled but no path specified"}
	}

	if c.Sync.Enabled && c.Sync.Interval <= 0 {
		return &domain.ConfigError{Field: "sync.interval", Message: "must be positive"}
	}

	if c.Storage.LocalPath == "" {
		return &domain.ConfigError{Field: "storage.local_path", Message: "required"}
	}

	switch c.Storage.Type {
	case "local":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return &domain.ConfigError{Field: "storage.s3.bucket", Message: "required"}
		}
		if c.Storage.S3.Region == "" {
			return &domain.ConfigError{Field: "storage.s3.region", Message: "required"}
		}
	case "azure":
		if c.Storage.Azure.Container == "" {
			return &domain.ConfigError{Field: "storage.azure.container", Message: "required"}
		}
		if c.Storage.Azure.AccountName == "" && c.Storage.Azure.ConnectionString == "" {
			return &domain.ConfigError{Field: "storage.azure", Message: "account name or connection string is required"}
		}
	case "http":
		if c.Storage.HTTP.BaseURL == "" {
			return &domain.ConfigError{Field: "storage.http.base_url", Message: "required"}
		}
	default:
		return &domain.ConfigError{Field: "storage.type", Message: fmt.Sprintf("unknown storage type %q", c.Storage.Type)}
	}

	return nil
}

// Validate checks build settings and the configured profile tags.
func (b *BuildConfig) Validate() error {
	if b.CacheSize < 1 {
		return &domain.ConfigError{Field: "build.cache_size", Message: "must be at least 1"}
	}
	if b.Concurrency < 1 {
		return &domain.ConfigError{Field: "build.concurrency", Message: "must be at least 1"}
	}
	if len(b.Profiles) == 0 {
		return &domain.ConfigError{Field: "build.profiles", Message: "at least one profile is required"}
	}
	for _, tag := range b.Profiles {
		if _, err := domain.LookupProfile(tag); err != nil {
			return &domain.ConfigError{
				Field:   "build.profiles",
				Message: fmt.Sprintf("unknown profile %q (known: %s)", tag, strings.Join(domain.ProfileTags(), ", ")),
			}
		}
	}
	return nil
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Address returns the metrics listen address.
func (c *MetricsConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// IsRemote reports whether tiles are fetched into LocalPath from a remote backend.
func (c *StorageConfig) IsRemote() bool {
	return c.Type != "local"
}

// AbsLocalPath returns LocalPath made absolute, falling back to the raw value.
func (c *StorageConfig) AbsLocalPath() string {
	abs, err := filepath.Abs(c.LocalPath)
	if err != nil {
		return c.LocalPath
	}
	return abs
}
