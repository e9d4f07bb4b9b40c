// Package config loads service configuration from defaults, an optional YAML
// file and the environment. Nested keys map to environment variables by
// upper-casing and replacing dots, so worker.delay_min is WORKER_DELAY_MIN.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Render   RenderConfig   `mapstructure:"render"`
	Preview  PreviewConfig  `mapstructure:"preview"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	// URL takes precedence over the discrete connection fields.
	URL        string `mapstructure:"url"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	Name       string `mapstructure:"name"`
	SSLMode    string `mapstructure:"ssl_mode"`
	MaxConns   int32  `mapstructure:"max_conns"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Stream   string `mapstructure:"stream"`
	// relay polling of the outbox table
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
}

type BrowserConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Headless          bool          `mapstructure:"headless"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	SettleDelay       time.Duration `mapstructure:"settle_delay"`
	UserAgent         string        `mapstructure:"user_agent"`
	ViewportWidth     int           `mapstructure:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height"`
	Locale            string        `mapstructure:"locale"`
	TimezoneID        string        `mapstructure:"timezone"`
	Proxy             string        `mapstructure:"proxy"`
}

type FetchConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	AcceptLanguage string        `mapstructure:"accept_language"`
}

type WorkerConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	DelayMin  time.Duration `mapstructure:"delay_min"`
	DelayMax  time.Duration `mapstructure:"delay_max"`
	IdleDelay time.Duration `mapstructure:"idle_delay"`
}

type RenderConfig struct {
	// DynamicDomains are forced onto the browser in addition to the
	// registrations that already require it.
	DynamicDomains []string `mapstructure:"dynamic_domains"`
}

type PreviewConfig struct {
	CacheSize int           `mapstructure:"cache_size"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
	MinDelay  time.Duration `mapstructure:"min_delay"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads the file named by CONFIG_FILE, if set, and the environment.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile is Load with an explicit config file path. An empty path skips
// the file.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Render.DynamicDomains = splitList(cfg.Render.DynamicDomains)
	cfg.Server.CORSOrigins = splitList(cfg.Server.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8084)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.cors_origins", []string{"http://localhost:*", "https://localhost:*"})

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "product_extractor")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.sqlite_path", "product-extractor.db")

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "stream:item_checks")
	v.SetDefault("redis.poll_interval", 5*time.Second)
	v.SetDefault("redis.batch_size", 100)

	v.SetDefault("browser.enabled", true)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.navigation_timeout", 60*time.Second)
	v.SetDefault("browser.settle_delay", 2*time.Second)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.viewport_width", 1920)
	v.SetDefault("browser.viewport_height", 1080)
	v.SetDefault("browser.locale", "en-US")
	v.SetDefault("browser.timezone", "")
	v.SetDefault("browser.proxy", "")

	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.user_agent", "")
	v.SetDefault("fetch.accept_language", "en-US,en;q=0.9")

	v.SetDefault("worker.enabled", true)
	v.SetDefault("worker.delay_min", 10*time.Second)
	v.SetDefault("worker.delay_max", 15*time.Second)
	v.SetDefault("worker.idle_delay", 60*time.Second)

	v.SetDefault("render.dynamic_domains", []string{})

	v.SetDefault("preview.cache_size", 256)
	v.SetDefault("preview.cache_ttl", 15*time.Minute)
	v.SetDefault("preview.min_delay", time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" && (c.Database.Host == "" || c.Database.Name == "") {
			return fmt.Errorf("database host and name are required")
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("DATABASE_SQLITE_PATH is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if c.Worker.DelayMin <= 0 || c.Worker.IdleDelay <= 0 {
		return fmt.Errorf("worker delays must be positive")
	}
	if c.Worker.DelayMin > c.Worker.DelayMax {
		return fmt.Errorf("WORKER_DELAY_MIN cannot be greater than WORKER_DELAY_MAX")
	}

	if c.Browser.NavigationTimeout <= 0 || c.Fetch.Timeout <= 0 {
		return fmt.Errorf("navigation and fetch timeouts must be positive")
	}

	if c.Redis.Enabled && c.Redis.BatchSize < 1 {
		return fmt.Errorf("REDIS_BATCH_SIZE must be at least 1")
	}

	if c.Preview.CacheSize < 1 {
		return fmt.Errorf("PREVIEW_CACHE_SIZE must be at least 1")
	}

	return nil
}

// splitList flattens comma separated entries and drops blanks, so a list
// set through a single environment variable behaves like a YAML sequence.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, entry := range in {
		for _, part := range strings.Split(entry, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
