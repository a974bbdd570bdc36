package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// DefaultUserAgent identifies the crawler to target sites
const DefaultUserAgent = "ShoppingDeals Bot/1.0 (+https://shopping-deals.app)"

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production" - production requires trigger secrets
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Crawler     CrawlerConfig   `toml:"crawler"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Triggers    TriggersConfig  `toml:"triggers"`
	Seed        SeedConfig      `toml:"seed"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
	InMemory       bool   `toml:"in_memory"`        // Keep everything in memory (tests, dry runs)
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
	Dir    string   `toml:"dir"`    // Log directory; empty = <executable dir>/logs
}

// CrawlerConfig holds browser and politeness defaults; targets may override
// the user agent, delay and selectors in their own crawl config
type CrawlerConfig struct {
	UserAgent          string   `toml:"user_agent"`          // Used when the target does not set one
	Delay              string   `toml:"delay"`               // Politeness delay between navigations (e.g. "3s")
	RequestTimeout     string   `toml:"request_timeout"`     // Navigation and operation timeout per page
	NavigationAttempts int      `toml:"navigation_attempts"` // Attempts per URL before recording a partial failure
	ViewportWidth      int      `toml:"viewport_width"`
	ViewportHeight     int      `toml:"viewport_height"`
	Headless           bool     `toml:"headless"`
	NoSandbox          bool     `toml:"no_sandbox"`         // Required when running as root in containers
	ChromePath         string   `toml:"chrome_path"`        // Empty = let chromedp locate Chrome
	RenderWait         string   `toml:"render_wait"`        // Extra wait after load for client-side rendering
	SelectorWait       string   `toml:"selector_wait"`      // Max wait for product/deal cards to appear
	MaxPages           int      `toml:"max_pages"`          // Pagination cap per category
	ExcludeCategories  []string `toml:"exclude_categories"` // Category slugs that never hold products
}

// SchedulerConfig controls retry and cadence of scheduled crawls
type SchedulerConfig struct {
	Enabled       bool     `toml:"enabled"`        // Start scheduled crawls with "serve"
	MaxAttempts   int      `toml:"max_attempts"`   // Attempts per scheduled crawl
	RetryInterval string   `toml:"retry_interval"` // Wait between failed attempts (e.g. "1h")
	CrawlInterval string   `toml:"crawl_interval"` // Wait between scheduled crawls (e.g. "24h")
	Schedule      string   `toml:"schedule"`       // Optional cron expression; replaces the interval loop when set
	Kinds         []string `toml:"kinds"`          // Crawl kinds scheduled per active target
}

// TriggersConfig secures the HTTP crawl triggers
type TriggersConfig struct {
	AdminToken      string  `toml:"admin_token"`       // Bearer token for /api/admin/crawl
	APIKey          string  `toml:"api_key"`           // Bearer token for /api/crawl
	CronSecret      string  `toml:"cron_secret"`       // Shared secret for /api/cron/crawl
	CronMaxAttempts int     `toml:"cron_max_attempts"` // Attempts per target for the timer trigger
	CronRetry       string  `toml:"cron_retry"`        // Wait between timer trigger attempts (e.g. "5m")
	RateLimit       float64 `toml:"rate_limit"`        // Requests per second across /api; 0 disables
	RateBurst       int     `toml:"rate_burst"`
	StaleAfter      string  `toml:"stale_after"` // Last crawl older than this is reported as stale
}

// SeedConfig points at a targets file loaded into storage at startup
type SeedConfig struct {
	TargetsFile string `toml:"targets_file"` // TOML or YAML; empty = no seeding
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Crawler: CrawlerConfig{
			UserAgent:          DefaultUserAgent,
			Delay:              "3s",
			RequestTimeout:     "30s",
			NavigationAttempts: 3,
			ViewportWidth:      1920,
			ViewportHeight:     1080,
			Headless:           true,
			NoSandbox:          true,
			RenderWait:         "2s",
			SelectorWait:       "10s",
			MaxPages:           50,
			ExcludeCategories:  []string{"angebote-der-woche", "geschenkgutscheine", "gutscheine"},
		},
		Scheduler: SchedulerConfig{
			Enabled:       false, // Opt-in; the cron trigger is the usual production driver
			MaxAttempts:   3,
			RetryInterval: "1h",
			CrawlInterval: "24h",
			Kinds:         []string{"deals"},
		},
		Triggers: TriggersConfig{
			CronMaxAttempts: 2,
			CronRetry:       "5m",
			RateLimit:       2,
			RateBurst:       5,
			StaleAfter:      "24h",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files. CLI flags are applied afterwards with ApplyFlagOverrides.
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

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("PRICEWATCH_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("PRICEWATCH_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("PRICEWATCH_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if path := os.Getenv("PRICEWATCH_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}

	if level := os.Getenv("PRICEWATCH_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if ua := os.Getenv("PRICEWATCH_USER_AGENT"); ua != "" {
		config.Crawler.UserAgent = ua
	}
	if chrome := os.Getenv("PRICEWATCH_CHROME_PATH"); chrome != "" {
		config.Crawler.ChromePath = chrome
	}

	// Trigger secrets are normally only supplied through the environment
	if token := os.Getenv("PRICEWATCH_ADMIN_TOKEN"); token != "" {
		config.Triggers.AdminToken = token
	}
	if key := os.Getenv("PRICEWATCH_API_KEY"); key != "" {
		config.Triggers.APIKey = key
	}
	if secret := os.Getenv("PRICEWATCH_CRON_SECRET"); secret != "" {
		config.Triggers.CronSecret = secret
	}

	if seed := os.Getenv("PRICEWATCH_TARGETS_FILE"); seed != "" {
		config.Seed.TargetsFile = seed
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks values that would otherwise fail late at crawl time
func (c *Config) Validate() error {
	for name, value := range map[string]string{
		"crawler.delay":            c.Crawler.Delay,
		"crawler.request_timeout":  c.Crawler.RequestTimeout,
		"crawler.render_wait":      c.Crawler.RenderWait,
		"crawler.selector_wait":    c.Crawler.SelectorWait,
		"scheduler.retry_interval": c.Scheduler.RetryInterval,
		"scheduler.crawl_interval": c.Scheduler.CrawlInterval,
		"triggers.cron_retry":      c.Triggers.CronRetry,
		"triggers.stale_after":     c.Triggers.StaleAfter,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", name, err)
		}
	}

	if c.Scheduler.Schedule != "" {
		if err := ValidateJobSchedule(c.Scheduler.Schedule); err != nil {
			return fmt.Errorf("invalid scheduler.schedule: %w", err)
		}
	}

	for _, kind := range c.Scheduler.Kinds {
		if kind != "products" && kind != "deals" {
			return fmt.Errorf("invalid scheduler.kinds entry %q (expected products or deals)", kind)
		}
	}
	return nil
}

// ValidateJobSchedule validates a cron schedule expression and ensures minimum 5-minute interval
func ValidateJobSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	parts := strings.Fields(schedule)
	if len(parts) < 5 {
		return fmt.Errorf("invalid cron format: expected 5 fields")
	}

	minuteField := parts[0]
	if minuteField == "*" {
		return fmt.Errorf("schedule must have minimum 5-minute interval (every minute is not allowed)")
	}

	if strings.HasPrefix(minuteField, "*/") {
		interval, err := strconv.Atoi(strings.TrimPrefix(minuteField, "*/"))
		if err == nil && interval < 5 {
			return fmt.Errorf("schedule interval must be at least 5 minutes, got %d", interval)
		}
	}

	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// CrawlDelay returns the default politeness delay
func (c *Config) CrawlDelay() time.Duration {
	return parseDurationOr(c.Crawler.Delay, 3*time.Second)
}

// RequestTimeout returns the per-page navigation/operation timeout
func (c *Config) RequestTimeout() time.Duration {
	return parseDurationOr(c.Crawler.RequestTimeout, 30*time.Second)
}

// RenderWait returns the extra wait after a page load
func (c *Config) RenderWait() time.Duration {
	return parseDurationOr(c.Crawler.RenderWait, 0)
}

// SelectorWait returns the max wait for card selectors to appear
func (c *Config) SelectorWait() time.Duration {
	return parseDurationOr(c.Crawler.SelectorWait, 10*time.Second)
}

// RetryInterval returns the wait between failed scheduled attempts
func (c *Config) RetryInterval() time.Duration {
	return parseDurationOr(c.Scheduler.RetryInterval, time.Hour)
}

// CrawlInterval returns the wait between scheduled crawls
func (c *Config) CrawlInterval() time.Duration {
	return parseDurationOr(c.Scheduler.CrawlInterval, 24*time.Hour)
}

// CronRetryInterval returns the wait between attempts of the timer trigger
func (c *Config) CronRetryInterval() time.Duration {
	return parseDurationOr(c.Triggers.CronRetry, 5*time.Minute)
}

// StaleAfter returns the age after which a last crawl is reported stale
func (c *Config) StaleAfter() time.Duration {
	return parseDurationOr(c.Triggers.StaleAfter, 24*time.Hour)
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
