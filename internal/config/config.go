package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "trustscan"

	// DefaultListenAddr is the address the HTTP API binds to.
	DefaultListenAddr = ":8080"

	// DefaultTimeout is the end-to-end deadline of a normal analysis.
	DefaultTimeout = 20 * time.Second

	// DeepTimeout is the end-to-end deadline of a deep analysis.
	DeepTimeout = 60 * time.Second

	// MinTimeout and MaxTimeout bound any caller supplied deadline.
	MinTimeout = 1 * time.Second
	MaxTimeout = 60 * time.Second

	// DefaultDomainAgeTimeout bounds the registry lookup.
	DefaultDomainAgeTimeout = 5 * time.Second

	// DefaultFetchTimeout bounds the homepage fetch including redirects.
	DefaultFetchTimeout = 8 * time.Second

	// DefaultMaxRedirects is the number of redirect hops followed.
	DefaultMaxRedirects = 5

	// DefaultMaxHTMLBytes caps how much HTML is read from a page.
	DefaultMaxHTMLBytes = 500 * 1024

	// DefaultAIPromptMaxChars caps the HTML text embedded in the AI prompt.
	DefaultAIPromptMaxChars = 15000

	// DefaultUserAgent is a realistic desktop browser User-Agent.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	// DefaultRDAPBaseURL is the bootstrap RDAP redirector.
	DefaultRDAPBaseURL = "https://rdap.org/domain/"

	// DefaultGeminiBaseURL is the Gemini REST endpoint root.
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultGeminiModel is the model used for AI judgment.
	DefaultGeminiModel = "gemini-2.0-flash"

	// DefaultAITemperature keeps AI output stable between runs.
	DefaultAITemperature = 0.3

	// DefaultAIMaxOutputTokens bounds the AI response.
	DefaultAIMaxOutputTokens = 1024

	// DefaultAIMinBudget is the least remaining time worth spending on AI.
	DefaultAIMinBudget = 2 * time.Second

	// DefaultCacheTTL is how long an analysis stays cached.
	DefaultCacheTTL = 24 * time.Hour

	// DefaultCacheVersion tags cache keys. Bump it when scoring changes.
	DefaultCacheVersion = "v3"

	// DefaultCrawlMaxPages is the number of extra pages fetched in deep mode.
	DefaultCrawlMaxPages = 6

	// DefaultBatchSize is the number of concurrent analyses from the CLI.
	DefaultBatchSize = 4
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Rate limit scopes.
const (
	ScopeAnalyze = "analyze"
	ScopeFlagged = "flagged"
)

// RateLimit configures one token bucket scope.
type RateLimit struct {
	// Capacity is the maximum burst.
	Capacity int `yaml:"capacity"`
	// RefillPerSecond is the number of tokens added each second.
	RefillPerSecond float64 `yaml:"refillPerSecond"`
}

// DefaultRateLimits returns the rate limits applied per scope.
func DefaultRateLimits() map[string]RateLimit {
	return map[string]RateLimit{
		ScopeAnalyze: {Capacity: 10, RefillPerSecond: 0.2},
		ScopeFlagged: {Capacity: 30, RefillPerSecond: 1},
	}
}

// Config holds all configuration options for trustscan.
// It is populated from defaults, the config file, the environment and CLI
// flags in that order, then passed down explicitly.
type Config struct {
	// ListenAddr is the HTTP API address.
	ListenAddr string

	// Timeout is the default end-to-end analysis deadline.
	Timeout time.Duration

	// DeepTimeout is the deadline used when deep analysis is requested
	// without an explicit timeout.
	DeepTimeout time.Duration

	// DomainAgeTimeout bounds the registry lookup.
	DomainAgeTimeout time.Duration

	// FetchTimeout bounds the homepage fetch.
	FetchTimeout time.Duration

	// MaxRedirects is the number of redirect hops the fetcher follows.
	MaxRedirects int

	// MaxHTMLBytes caps how much of an HTML body is read.
	MaxHTMLBytes int64

	// AIPromptMaxChars caps the HTML text sent to the AI judge.
	AIPromptMaxChars int

	// UserAgent is sent with every outbound HTTP request.
	UserAgent string

	// RDAPBaseURL is the registry lookup endpoint; the domain is appended.
	RDAPBaseURL string

	// WhoisFallback enables a WHOIS lookup when RDAP yields nothing.
	WhoisFallback bool

	// GeminiAPIKey is the AI credential. Empty disables AI judgment.
	GeminiAPIKey string

	// GeminiBaseURL is the AI REST endpoint root.
	GeminiBaseURL string

	// GeminiModel is the AI model name.
	GeminiModel string

	// AITemperature is the sampling temperature of the AI judge.
	AITemperature float64

	// AIMaxOutputTokens bounds the AI response.
	AIMaxOutputTokens int

	// AIMinBudget is the least remaining deadline needed to call the AI judge.
	AIMinBudget time.Duration

	// AgentBaseURL is the optional remote analyzer. Empty disables delegation.
	AgentBaseURL string

	// Storage selects the durable backend: memory, sqlite or postgres.
	Storage string

	// DBDir is the SQLite database directory.
	DBDir string

	// DatabaseURL is the PostgreSQL connection string.
	DatabaseURL string

	// CacheTTL is how long an analysis stays cached.
	CacheTTL time.Duration

	// CacheVersion is the schema version tag in cache keys.
	CacheVersion string

	// CrawlMaxPages is the number of extra pages fetched in deep mode.
	CrawlMaxPages int

	// ProxyAddress is an optional SOCKS5 proxy ("host:port") for outbound
	// website traffic.
	ProxyAddress string

	// RateLimits maps a scope to its token bucket parameters.
	RateLimits map[string]RateLimit

	// BatchSize is the number of concurrent analyses from the CLI.
	BatchSize int

	// Verbose enables debug logging.
	Verbose bool

	// JSONLog switches log output to JSON.
	JSONLog bool

	// ConfigFilePath is the explicit configuration file path, if any.
	ConfigFilePath string
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		ListenAddr:        DefaultListenAddr,
		Timeout:           DefaultTimeout,
		DeepTimeout:       DeepTimeout,
		DomainAgeTimeout:  DefaultDomainAgeTimeout,
		FetchTimeout:      DefaultFetchTimeout,
		MaxRedirects:      DefaultMaxRedirects,
		MaxHTMLBytes:      DefaultMaxHTMLBytes,
		AIPromptMaxChars:  DefaultAIPromptMaxChars,
		UserAgent:         DefaultUserAgent,
		RDAPBaseURL:       DefaultRDAPBaseURL,
		WhoisFallback:     true,
		GeminiBaseURL:     DefaultGeminiBaseURL,
		GeminiModel:       DefaultGeminiModel,
		AITemperature:     DefaultAITemperature,
		AIMaxOutputTokens: DefaultAIMaxOutputTokens,
		AIMinBudget:       DefaultAIMinBudget,
		Storage:           StorageMemory,
		DBDir:             XDGDataDir(),
		CacheTTL:          DefaultCacheTTL,
		CacheVersion:      DefaultCacheVersion,
		CrawlMaxPages:     DefaultCrawlMaxPages,
		RateLimits:        DefaultRateLimits(),
		BatchSize:         DefaultBatchSize,
	}
}

// XDGDataDir returns the XDG data directory for trustscan.
// On Linux: ~/.local/share/trustscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for trustscan.
// On Linux: ~/.config/trustscan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ClampTimeout bounds a requested deadline to [MinTimeout, MaxTimeout].
// Zero selects the default or deep default.
func (c *Config) ClampTimeout(requested time.Duration, deep bool) time.Duration {
	if requested <= 0 {
		requested = c.Timeout
		if deep {
			requested = c.DeepTimeout
		}
	}
	if requested < MinTimeout {
		return MinTimeout
	}
	if requested > MaxTimeout {
		return MaxTimeout
	}
	return requested
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c.Timeout <= 0 || c.DeepTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.DomainAgeTimeout <= 0 || c.FetchTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxRedirects < 0 {
		return ErrInvalidMaxRedirects
	}
	if c.MaxHTMLBytes <= 0 {
		return ErrInvalidMaxHTMLBytes
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.CacheTTL <= 0 || c.CacheVersion == "" {
		return ErrInvalidCache
	}

	switch c.Storage {
	case StorageMemory:
	case StorageSQLite:
		if c.DBDir == "" {
			return ErrMissingDBDir
		}
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return ErrMissingDatabaseURL
		}
	default:
		return ErrUnknownStorage
	}

	for _, rl := range c.RateLimits {
		if rl.Capacity <= 0 || rl.RefillPerSecond <= 0 {
			return ErrInvalidRateLimit
		}
	}

	return nil
}
