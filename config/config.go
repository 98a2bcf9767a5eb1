package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Engine    EngineConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Cache     CacheConfig
	Database  DatabaseConfig
	Scheduler SchedulerConfig
	Webhook   WebhookConfig
	Redis     RedisConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser session.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// DefaultProxy is the proxy URL for all browser and HTTP traffic.
	DefaultProxy string

	// MaxPages bounds the number of concurrently open tabs.
	MaxPages int // default: 4

	// StartupTimeout bounds launch + connect.
	StartupTimeout time.Duration // default: 30s

	// Stealth injects the stealth script into every page.
	Stealth bool // default: true

	UserAgent string // default: desktop Chrome
}

// Fetch modes.
const (
	FetchModeBrowser = "browser"
	FetchModeHTTP    = "http"
	FetchModeAuto    = "auto"
)

// ScraperConfig controls extraction behaviour.
type ScraperConfig struct {
	// TargetDomain is the only host family scrape accepts.
	TargetDomain string // default: "paulsmith.com"

	// FetchMode selects the page backend: browser, http or auto.
	FetchMode string // default: "browser"

	// ScrapeTimeout is the deadline for one whole scrape call.
	ScrapeTimeout time.Duration // default: 30s

	// ExtractTimeout bounds price extraction once the page is loaded and the
	// name found. It is separate from ScrapeTimeout so a slow load cannot
	// discard a named result.
	ExtractTimeout time.Duration // default: 10s

	// NavigationTimeout is the max time for navigation alone.
	NavigationTimeout time.Duration // default: 15s

	// SelectorTimeout bounds a single selector query on a live page.
	SelectorTimeout time.Duration // default: 3s

	// MarkerTimeout bounds the soft wait for the product heading.
	MarkerTimeout time.Duration // default: 5s

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string

	// BlockAds drops requests to known ad and tracking hosts.
	BlockAds bool // default: true
}

// EngineConfig controls the static HTTP backend and auto dispatch.
type EngineConfig struct {
	// HTTPTimeout is the deadline for the pure HTTP backend.
	HTTPTimeout time.Duration // default: 8s

	// EscalationDelay is how long auto mode waits before starting the
	// browser alongside the HTTP backend.
	EscalationDelay time.Duration // default: 2s

	// DomainMemoryTTL is how long the winning backend is remembered per host.
	DomainMemoryTTL time.Duration // default: 24h

	// FailureTTL is how long auto mode skips a backend that failed on a host.
	FailureTTL time.Duration // default: 1h
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 2

	// Burst is the maximum burst size per API key.
	Burst int // default: 5
}

// CORSConfig controls cross-origin access for the dashboard.
type CORSConfig struct {
	AllowedOrigins []string // default: ["http://localhost:5173"]
}

// CacheConfig controls the scrape result cache.
type CacheConfig struct {
	// Backend is "memory" or "memcache".
	Backend string // default: "memory"

	// MaxEntries caps the in-memory cache.
	MaxEntries int // default: 1000

	// TTL is the longest any entry is kept.
	TTL time.Duration // default: 1h

	MemcacheAddr string // default: "localhost:11211"
}

// DatabaseConfig selects the product store. An empty URL means in-memory.
type DatabaseConfig struct {
	URL string
}

// SchedulerConfig controls periodic price re-checks.
type SchedulerConfig struct {
	Enabled bool // default: true

	// Spec is a six-field cron expression (with seconds).
	Spec string // default: "0 0 */12 * * *"

	// RunOnStart triggers one check immediately after startup.
	RunOnStart bool // default: false

	// Concurrency bounds parallel scrapes during a check run.
	Concurrency int // default: 2
}

// WebhookConfig controls price change webhooks. Empty URL disables them.
type WebhookConfig struct {
	URL    string
	Secret string
}

// RedisConfig controls the price event stream. Empty Addr disables it.
type RedisConfig struct {
	Addr   string
	DB     int    // default: 0
	Stream string // default: "pricescout:price-changes"

	// MaxLen approximately caps the stream length.
	MaxLen int64 // default: 10000
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("PRICESCOUT_HOST", "0.0.0.0"),
			Port: envIntOr("PRICESCOUT_PORT", 8080),
			Mode: envOr("PRICESCOUT_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("PRICESCOUT_HEADLESS", true),
			NoSandbox:      envBoolOr("PRICESCOUT_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("PRICESCOUT_BROWSER_BIN"),
			DefaultProxy:   os.Getenv("PRICESCOUT_PROXY"),
			MaxPages:       envIntOr("PRICESCOUT_MAX_PAGES", 4),
			StartupTimeout: envDurationOr("PRICESCOUT_STARTUP_TIMEOUT", 30*time.Second),
			Stealth:        envBoolOr("PRICESCOUT_STEALTH", true),
			UserAgent:      envOr("PRICESCOUT_USER_AGENT", defaultUserAgent),
		},
		Scraper: ScraperConfig{
			TargetDomain:      envOr("PRICESCOUT_TARGET_DOMAIN", "paulsmith.com"),
			FetchMode:         envOr("PRICESCOUT_FETCH_MODE", FetchModeBrowser),
			ScrapeTimeout:     envDurationOr("PRICESCOUT_SCRAPE_TIMEOUT", 30*time.Second),
			ExtractTimeout:    envDurationOr("PRICESCOUT_EXTRACT_TIMEOUT", 10*time.Second),
			NavigationTimeout: envDurationOr("PRICESCOUT_NAV_TIMEOUT", 15*time.Second),
			SelectorTimeout:   envDurationOr("PRICESCOUT_SELECTOR_TIMEOUT", 3*time.Second),
			MarkerTimeout:     envDurationOr("PRICESCOUT_MARKER_TIMEOUT", 5*time.Second),
			BlockedResourceTypes: envSliceOr("PRICESCOUT_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
			BlockAds: envBoolOr("PRICESCOUT_BLOCK_ADS", true),
		},
		Engine: EngineConfig{
			HTTPTimeout:     envDurationOr("PRICESCOUT_HTTP_TIMEOUT", 8*time.Second),
			EscalationDelay: envDurationOr("PRICESCOUT_ESCALATION_DELAY", 2*time.Second),
			DomainMemoryTTL: envDurationOr("PRICESCOUT_DOMAIN_MEMORY_TTL", 24*time.Hour),
			FailureTTL:      envDurationOr("PRICESCOUT_FAILURE_TTL", time.Hour),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("PRICESCOUT_AUTH_ENABLED", true),
			APIKeys: envSliceOr("PRICESCOUT_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("PRICESCOUT_RATE_RPS", 2.0),
			Burst:             envIntOr("PRICESCOUT_RATE_BURST", 5),
		},
		CORS: CORSConfig{
			AllowedOrigins: envSliceOr("PRICESCOUT_CORS_ORIGINS", []string{"http://localhost:5173"}),
		},
		Cache: CacheConfig{
			Backend:      envOr("PRICESCOUT_CACHE_BACKEND", "memory"),
			MaxEntries:   envIntOr("PRICESCOUT_CACHE_MAX_ENTRIES", 1000),
			TTL:          envDurationOr("PRICESCOUT_CACHE_TTL", time.Hour),
			MemcacheAddr: envOr("PRICESCOUT_MEMCACHE_ADDR", "localhost:11211"),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Scheduler: SchedulerConfig{
			Enabled:     envBoolOr("PRICESCOUT_SCHEDULER_ENABLED", true),
			Spec:        envOr("PRICESCOUT_SCHEDULER_SPEC", "0 0 */12 * * *"),
			RunOnStart:  envBoolOr("PRICESCOUT_SCHEDULER_RUN_ON_START", false),
			Concurrency: envIntOr("PRICESCOUT_SCHEDULER_CONCURRENCY", 2),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("PRICESCOUT_WEBHOOK_URL"),
			Secret: os.Getenv("PRICESCOUT_WEBHOOK_SECRET"),
		},
		Redis: RedisConfig{
			Addr:   os.Getenv("PRICESCOUT_REDIS_ADDR"),
			DB:     envIntOr("PRICESCOUT_REDIS_DB", 0),
			Stream: envOr("PRICESCOUT_REDIS_STREAM", "pricescout:price-changes"),
			MaxLen: int64(envIntOr("PRICESCOUT_REDIS_MAXLEN", 10000)),
		},
		Log: LogConfig{
			Level:  envOr("PRICESCOUT_LOG_LEVEL", "info"),
			Format: envOr("PRICESCOUT_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
