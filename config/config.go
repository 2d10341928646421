package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all server configuration.
type Config struct {
	Server    ServerConfig
	Scraper   ScraperConfig
	Engine    EngineConfig
	Export    ExportConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"

	// ShutdownTimeout bounds how long in-flight jobs may drain on shutdown.
	ShutdownTimeout time.Duration // default: 5s
}

// ScraperConfig controls the tax search scrape job.
type ScraperConfig struct {
	// BaseURL is the search results endpoint of the tax office.
	BaseURL string // default: "https://publictax.smith-county.com/Search/Results"

	// DetailsURL is the account details page; the account number is appended.
	DetailsURL string

	// Queries are the owner-name prefixes searched, one job pass each.
	// The single value "all" expands to 0-9 and A-Z.
	Queries []string // default: ["0"]

	// MaxPages caps the pages fetched per query. 0 fetches every page.
	MaxPages int // default: 2

	// PayStatus filters accounts by payment status ("Unpaid", "Paid" or "").
	PayStatus string // default: "Unpaid"

	// RealOnly keeps only real-estate accounts.
	RealOnly bool // default: true

	// PageTimeout is the deadline for fetching one results page.
	PageTimeout time.Duration // default: 30s

	// Headers are sent with every results page request, by either engine.
	// Format: "Name=value,Name=value".
	Headers map[string]string // default: Referer of the search form
}

// EngineConfig controls how search pages are fetched.
type EngineConfig struct {
	// BrowserFallback adds the headless browser engine behind the HTTP engine.
	BrowserFallback bool // default: false

	// EscalationDelays is the staged start delay for each engine tier.
	EscalationDelays []time.Duration // default: [0s, 5s]

	// Headless controls whether the fallback browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Stealth injects anti-detection evasions into browser pages.
	Stealth bool // default: true
}

// ExportConfig controls the downloadable artifact.
type ExportConfig struct {
	// Filename is advertised in the Content-Disposition header.
	Filename string // default: "beta-results.xlsx"
}

// AuthConfig controls API key authentication on /run-scraper.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of accepted keys.
	APIKeys []string
}

// RateLimitConfig controls per-identity rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per identity.
	RequestsPerSecond float64 // default: 0.2

	// Burst is the maximum burst size per identity.
	Burst int // default: 2
}

// CacheConfig controls the results-page cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached pages.
	MaxEntries int // default: 500

	// TTL is how long a parsed page stays fresh. 0 disables caching.
	TTL time.Duration // default: 10m
}

// WebhookConfig controls job notifications.
type WebhookConfig struct {
	// URL receives job.completed and job.failed events. Empty disables them.
	URL string

	// Secret signs each payload with HMAC-SHA256 when non-empty.
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// ClientConfig holds configuration for the trigger binaries.
type ClientConfig struct {
	// ServerURL is the base URL of the scrape server.
	ServerURL string // default: "http://127.0.0.1:8080"

	// DownloadDir is where downloaded artifacts are saved.
	DownloadDir string // default: "."

	// APIKey is sent as X-API-Key when non-empty.
	APIKey string

	Log LogConfig
}

// allQueries is the expansion of the "all" query keyword.
var allQueries = []string{
	"0", "1", "2", "3", "4", "5", "6", "7", "8", "9",
	"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L", "M",
	"N", "O", "P", "Q", "R", "S", "T", "U", "V", "W", "X", "Y", "Z",
}

// Load reads server configuration from the environment with sane defaults.
// A .env file in the working directory is applied first when present.
func Load() *Config {
	loadDotEnv()

	queries := envSliceOr("TAXSCRAPE_QUERIES", []string{"0"})
	if len(queries) == 1 && strings.EqualFold(queries[0], "all") {
		queries = append([]string(nil), allQueries...)
	}

	return &Config{
		Server: ServerConfig{
			Host:            envOr("TAXSCRAPE_HOST", "0.0.0.0"),
			Port:            envIntOr("TAXSCRAPE_PORT", 8080),
			Mode:            envOr("TAXSCRAPE_MODE", "release"),
			ShutdownTimeout: envDurationOr("TAXSCRAPE_SHUTDOWN_TIMEOUT", 5*time.Second),
		},
		Scraper: ScraperConfig{
			BaseURL:     envOr("TAXSCRAPE_BASE_URL", "https://publictax.smith-county.com/Search/Results"),
			DetailsURL:  envOr("TAXSCRAPE_DETAILS_URL", "https://publictax.smith-county.com/Accounts/AccountDetails?taxAccountNumber="),
			Queries:     queries,
			MaxPages:    envIntOr("TAXSCRAPE_MAX_PAGES", 2),
			PayStatus:   envOr("TAXSCRAPE_PAY_STATUS", "Unpaid"),
			RealOnly:    envBoolOr("TAXSCRAPE_REAL_ONLY", true),
			PageTimeout: envDurationOr("TAXSCRAPE_PAGE_TIMEOUT", 30*time.Second),
			Headers:     envMapOr("TAXSCRAPE_SCRAPER_HEADERS", map[string]string{
				"Referer": "https://publictax.smith-county.com/Search",
			}),
		},
		Engine: EngineConfig{
			BrowserFallback:  envBoolOr("TAXSCRAPE_BROWSER_FALLBACK", false),
			EscalationDelays: envDurationSliceOr("TAXSCRAPE_ESCALATION_DELAYS", []time.Duration{0, 5 * time.Second}),
			Headless:         envBoolOr("TAXSCRAPE_HEADLESS", true),
			NoSandbox:        envBoolOr("TAXSCRAPE_NO_SANDBOX", false),
			BrowserBin:       os.Getenv("TAXSCRAPE_BROWSER_BIN"),
			Stealth:          envBoolOr("TAXSCRAPE_STEALTH", true),
		},
		Export: ExportConfig{
			Filename: envOr("TAXSCRAPE_EXPORT_FILENAME", "beta-results.xlsx"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("TAXSCRAPE_AUTH_ENABLED", false),
			APIKeys: envSliceOr("TAXSCRAPE_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("TAXSCRAPE_RATE_RPS", 0.2),
			Burst:             envIntOr("TAXSCRAPE_RATE_BURST", 2),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("TAXSCRAPE_CACHE_MAX_ENTRIES", 500),
			TTL:        envDurationOr("TAXSCRAPE_CACHE_TTL", 10*time.Minute),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("TAXSCRAPE_WEBHOOK_URL"),
			Secret: os.Getenv("TAXSCRAPE_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("TAXSCRAPE_LOG_LEVEL", "info"),
			Format: envOr("TAXSCRAPE_LOG_FORMAT", "json"),
		},
	}
}

// LoadClient reads trigger configuration from the environment.
func LoadClient() *ClientConfig {
	loadDotEnv()

	return &ClientConfig{
		ServerURL:   strings.TrimRight(envOr("TAXSCRAPE_SERVER_URL", "http://127.0.0.1:8080"), "/"),
		DownloadDir: envOr("TAXSCRAPE_DOWNLOAD_DIR", "."),
		APIKey:      os.Getenv("TAXSCRAPE_API_KEY"),
		Log: LogConfig{
			Level:  envOr("TAXSCRAPE_LOG_LEVEL", "info"),
			Format: envOr("TAXSCRAPE_LOG_FORMAT", "text"),
		},
	}
}

// loadDotEnv applies .env without overriding variables already set.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("config: could not read .env", "error", err)
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

// envMapOr parses "k=v,k=v". Pairs without "=" or with an empty key are
// skipped; the value may itself contain "=".
func envMapOr(key string, fallback map[string]string) map[string]string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	result := make(map[string]string)
	for _, p := range strings.Split(v, ",") {
		k, val, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}
		result[k] = strings.TrimSpace(val)
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}

func envDurationSliceOr(key string, fallback []time.Duration) []time.Duration {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]time.Duration, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				if d, err := time.ParseDuration(trimmed); err == nil {
					result = append(result, d)
				}
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
