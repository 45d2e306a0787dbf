// Package config manages application configuration. Load resolves, in
// priority order: built-in defaults, a YAML file, then YTWATCH_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"ytwatch/enrich"
	"ytwatch/importer"
	"ytwatch/scrape"
	"ytwatch/watch"
)

// Duration wraps time.Duration so YAML files can say "500ms" or "30s".
type Duration time.Duration

// UnmarshalYAML parses a duration string such as "30s".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	dur, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(dur)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ScrapeConfig controls the watch-history page pipeline.
type ScrapeConfig struct {
	// HistoryURL is the page the initial fetch targets.
	HistoryURL string `yaml:"history_url"`
	// MaxPages caps continuation fetches after the initial page.
	MaxPages int `yaml:"max_pages"`
	// PageDelay is the pause between page fetches.
	PageDelay Duration `yaml:"page_delay"`
	// UserAgent is sent on every page fetch.
	UserAgent string `yaml:"user_agent"`
	// CookieFile holds persisted YouTube session cookies. The watch-history
	// page renders empty for logged-out fetches, so set this for real runs.
	CookieFile string `yaml:"cookie_file"`
}

// MergeConfig controls the watch merge policy.
type MergeConfig struct {
	// Cooldown is the window within which repeat marks do not increment
	// the view count.
	Cooldown Duration `yaml:"cooldown"`
}

// StoreConfig selects and locates the record store.
type StoreConfig struct {
	// Driver is "sqlite" or "memory".
	Driver string `yaml:"driver"`
	// Path is the SQLite database file.
	Path string `yaml:"path"`
}

// HistoryConfig controls browser-history cross-referencing.
type HistoryConfig struct {
	// DBPath is the Chromium History database file.
	DBPath string `yaml:"db_path"`
	// Horizon is how far back to search when no explicit start is given.
	Horizon Duration `yaml:"horizon"`
}

// ImportConfig controls the chunked bulk importer.
type ImportConfig struct {
	// ChunkDelay is the pause between sequential chunks.
	ChunkDelay Duration `yaml:"chunk_delay"`
	// ParallelWidth caps concurrent chunks in parallel imports.
	ParallelWidth int `yaml:"parallel_width"`
}

// APIConfig holds YouTube Data API settings.
type APIConfig struct {
	// Key is the Data API key. Empty disables backfill.
	Key string `yaml:"key"`
	// DailyQuota is the unit budget backfill runs may spend.
	DailyQuota int `yaml:"daily_quota"`
}

// HTTPConfig tunes the fetch client.
type HTTPConfig struct {
	// Timeout bounds individual requests.
	Timeout Duration `yaml:"timeout"`
	// PageRPS is requests per second against youtube.com pages.
	PageRPS float64 `yaml:"page_rps"`
	// DataAPIRPS is requests per second against the Data API host.
	DataAPIRPS float64 `yaml:"data_api_rps"`
	// MaxRetries caps retry attempts per request.
	MaxRetries int `yaml:"max_retries"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Development switches to the human-readable console encoder.
	Development bool `yaml:"development"`
}

// Build constructs a zap logger from the section.
func (c LogConfig) Build() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("config: invalid log level %q: %w", c.Level, err)
	}
	zcfg := zap.NewProductionConfig()
	if c.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level
	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("config: building logger: %w", err)
	}
	return logger, nil
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics. Empty disables serving.
	Addr string `yaml:"addr"`
}

// Config holds all application configuration.
type Config struct {
	Scrape  ScrapeConfig  `yaml:"scrape"`
	Merge   MergeConfig   `yaml:"merge"`
	Store   StoreConfig   `yaml:"store"`
	History HistoryConfig `yaml:"history"`
	Import  ImportConfig  `yaml:"import"`
	API     APIConfig     `yaml:"api"`
	HTTP    HTTPConfig    `yaml:"http"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// DefaultConfig returns configuration with safe defaults.
func DefaultConfig() *Config {
	return &Config{
		Scrape: ScrapeConfig{
			HistoryURL: watch.DefaultHistoryURL,
			MaxPages:   scrape.DefaultMaxPages,
			PageDelay:  Duration(scrape.DefaultPageDelay),
			UserAgent:  "ytwatch/1.0",
		},
		Merge: MergeConfig{
			Cooldown: Duration(watch.DefaultCooldown),
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   "ytwatch.db",
		},
		History: HistoryConfig{
			Horizon: Duration(30 * 24 * time.Hour),
		},
		Import: ImportConfig{
			ChunkDelay:    Duration(importer.DefaultChunkDelay),
			ParallelWidth: importer.DefaultParallelWidth,
		},
		API: APIConfig{
			DailyQuota: enrich.DefaultDailyQuota,
		},
		HTTP: HTTPConfig{
			Timeout:    Duration(30 * time.Second),
			PageRPS:    2.5,
			DataAPIRPS: 1.0,
			MaxRetries: 3,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from defaults, then a config file, then
// environment variables, and validates the result.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.loadFromFile(); err != nil {
		// Config file is optional.
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: loading file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configPaths lists candidate config file locations in lookup order.
func configPaths() []string {
	paths := []string{"ytwatch.yaml"}
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		paths = append(paths, filepath.Join(dir, "ytwatch", "ytwatch.yaml"))
	} else if home := os.Getenv("HOME"); home != "" {
		paths = append(paths, filepath.Join(home, ".config", "ytwatch", "ytwatch.yaml"))
	}
	return paths
}

// loadFromFile loads the first config file found among configPaths.
func (c *Config) loadFromFile() error {
	for _, path := range configPaths() {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		return nil
	}
	return os.ErrNotExist
}

// loadFromEnv overrides config with environment variables.
func (c *Config) loadFromEnv() {
	if v := os.Getenv("YTWATCH_HISTORY_URL"); v != "" {
		c.Scrape.HistoryURL = v
	}
	if v := os.Getenv("YTWATCH_MAX_PAGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Scrape.MaxPages = n
		}
	}
	if v := os.Getenv("YTWATCH_PAGE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Scrape.PageDelay = Duration(d)
		}
	}
	if v := os.Getenv("YTWATCH_USER_AGENT"); v != "" {
		c.Scrape.UserAgent = v
	}
	if v := os.Getenv("YTWATCH_COOKIE_FILE"); v != "" {
		c.Scrape.CookieFile = v
	}
	if v := os.Getenv("YTWATCH_COOLDOWN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Merge.Cooldown = Duration(d)
		}
	}
	if v := os.Getenv("YTWATCH_STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("YTWATCH_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("YTWATCH_HISTORY_DB"); v != "" {
		c.History.DBPath = v
	}
	if v := os.Getenv("YTWATCH_HISTORY_HORIZON"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.History.Horizon = Duration(d)
		}
	}
	if v := os.Getenv("YTWATCH_IMPORT_CHUNK_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Import.ChunkDelay = Duration(d)
		}
	}
	if v := os.Getenv("YTWATCH_IMPORT_PARALLEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Import.ParallelWidth = n
		}
	}
	if v := os.Getenv("YTWATCH_API_KEY"); v != "" {
		c.API.Key = v
	}
	if v := os.Getenv("YTWATCH_API_QUOTA"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.API.DailyQuota = n
		}
	}
	if v := os.Getenv("YTWATCH_HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.HTTP.Timeout = Duration(d)
		}
	}
	if v := os.Getenv("YTWATCH_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("YTWATCH_LOG_DEVELOPMENT"); v != "" {
		c.Log.Development = v == "true" || v == "1"
	}
	if v := os.Getenv("YTWATCH_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
}

// Validate checks that configuration values are valid and consistent.
func (c *Config) Validate() error {
	if c.Scrape.HistoryURL == "" {
		return fmt.Errorf("config: scrape.history_url must not be empty")
	}
	if c.Scrape.MaxPages < 0 {
		return fmt.Errorf("config: scrape.max_pages must be non-negative")
	}
	if c.Scrape.PageDelay < 0 {
		return fmt.Errorf("config: scrape.page_delay must be non-negative")
	}
	if c.Merge.Cooldown < 0 {
		return fmt.Errorf("config: merge.cooldown must be non-negative")
	}
	switch c.Store.Driver {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("config: store.driver must be sqlite or memory, got %q", c.Store.Driver)
	}
	if c.Store.Driver == "sqlite" && c.Store.Path == "" {
		return fmt.Errorf("config: store.path must be set for the sqlite driver")
	}
	if c.History.Horizon < 0 {
		return fmt.Errorf("config: history.horizon must be non-negative")
	}
	if c.Import.ParallelWidth < 0 {
		return fmt.Errorf("config: import.parallel_width must be non-negative")
	}
	if c.API.DailyQuota < 0 {
		return fmt.Errorf("config: api.daily_quota must be non-negative")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("config: http.timeout must be positive")
	}
	if c.HTTP.PageRPS <= 0 || c.HTTP.DataAPIRPS <= 0 {
		return fmt.Errorf("config: http rates must be positive")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("config: http.max_retries must be non-negative")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level must be debug, info, warn, or error, got %q", c.Log.Level)
	}
	return nil
}
