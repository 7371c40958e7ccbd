package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".trustscan.yaml"

// Environment variables read by ApplyEnv.
const (
	EnvGeminiAPIKey = "GEMINI_API_KEY"
	EnvAgentURL     = "TRUSTSCAN_AGENT_URL"
	EnvDatabaseURL  = "TRUSTSCAN_DATABASE_URL"
	EnvStorage      = "TRUSTSCAN_STORAGE"
	EnvListenAddr   = "TRUSTSCAN_LISTEN"
)

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File is the structure of the YAML configuration file. Zero values leave
// the corresponding Config field untouched.
type File struct {
	Server struct {
		Listen string `yaml:"listen,omitempty"`
	} `yaml:"server,omitempty"`

	Analysis struct {
		Timeout          time.Duration `yaml:"timeout,omitempty"`
		DeepTimeout      time.Duration `yaml:"deepTimeout,omitempty"`
		DomainAgeTimeout time.Duration `yaml:"domainAgeTimeout,omitempty"`
		FetchTimeout     time.Duration `yaml:"fetchTimeout,omitempty"`
		MaxRedirects     int           `yaml:"maxRedirects,omitempty"`
		MaxHTMLBytes     int64         `yaml:"maxHtmlBytes,omitempty"`
		UserAgent        string        `yaml:"userAgent,omitempty"`
		RDAPBaseURL      string        `yaml:"rdapBaseUrl,omitempty"`
		WhoisFallback    *bool         `yaml:"whoisFallback,omitempty"`
		CrawlMaxPages    int           `yaml:"crawlMaxPages,omitempty"`
		Proxy            string        `yaml:"proxy,omitempty"`
		BatchSize        int           `yaml:"batchSize,omitempty"`
	} `yaml:"analysis,omitempty"`

	AI struct {
		BaseURL         string        `yaml:"baseUrl,omitempty"`
		Model           string        `yaml:"model,omitempty"`
		Temperature     *float64      `yaml:"temperature,omitempty"`
		MaxOutputTokens int           `yaml:"maxOutputTokens,omitempty"`
		PromptMaxChars  int           `yaml:"promptMaxChars,omitempty"`
		MinBudget       time.Duration `yaml:"minBudget,omitempty"`
		AgentBaseURL    string        `yaml:"agentBaseUrl,omitempty"`
	} `yaml:"ai,omitempty"`

	Storage struct {
		Backend      string        `yaml:"backend,omitempty"`
		DBDir        string        `yaml:"dbDir,omitempty"`
		DatabaseURL  string        `yaml:"databaseUrl,omitempty"`
		CacheTTL     time.Duration `yaml:"cacheTtl,omitempty"`
		CacheVersion string        `yaml:"cacheVersion,omitempty"`
	} `yaml:"storage,omitempty"`

	RateLimits map[string]RateLimit `yaml:"rateLimits,omitempty"`
}

// LoadConfigFile loads a YAML configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}
	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. .trustscan.yaml in the current directory
// 3. .trustscan.yaml in the user's home directory
// 4. config.yaml in the XDG config directory
//
// Returns an empty string if nothing is found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	candidates := make([]string, 0, 3)
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// Apply overlays non-zero file values onto cfg.
func (f *File) Apply(cfg *Config) {
	setString(&cfg.ListenAddr, f.Server.Listen)

	a := f.Analysis
	setDuration(&cfg.Timeout, a.Timeout)
	setDuration(&cfg.DeepTimeout, a.DeepTimeout)
	setDuration(&cfg.DomainAgeTimeout, a.DomainAgeTimeout)
	setDuration(&cfg.FetchTimeout, a.FetchTimeout)
	setInt(&cfg.MaxRedirects, a.MaxRedirects)
	if a.MaxHTMLBytes != 0 {
		cfg.MaxHTMLBytes = a.MaxHTMLBytes
	}
	setString(&cfg.UserAgent, a.UserAgent)
	setString(&cfg.RDAPBaseURL, a.RDAPBaseURL)
	if a.WhoisFallback != nil {
		cfg.WhoisFallback = *a.WhoisFallback
	}
	setInt(&cfg.CrawlMaxPages, a.CrawlMaxPages)
	setString(&cfg.ProxyAddress, a.Proxy)
	setInt(&cfg.BatchSize, a.BatchSize)

	ai := f.AI
	setString(&cfg.GeminiBaseURL, ai.BaseURL)
	setString(&cfg.GeminiModel, ai.Model)
	if ai.Temperature != nil {
		cfg.AITemperature = *ai.Temperature
	}
	setInt(&cfg.AIMaxOutputTokens, ai.MaxOutputTokens)
	setInt(&cfg.AIPromptMaxChars, ai.PromptMaxChars)
	setDuration(&cfg.AIMinBudget, ai.MinBudget)
	setString(&cfg.AgentBaseURL, ai.AgentBaseURL)

	s := f.Storage
	setString(&cfg.Storage, strings.ToLower(s.Backend))
	setString(&cfg.DBDir, s.DBDir)
	setString(&cfg.DatabaseURL, s.DatabaseURL)
	setDuration(&cfg.CacheTTL, s.CacheTTL)
	setString(&cfg.CacheVersion, s.CacheVersion)

	if len(f.RateLimits) > 0 {
		if cfg.RateLimits == nil {
			cfg.RateLimits = make(map[string]RateLimit)
		}
		for scope, rl := range f.RateLimits {
			cfg.RateLimits[scope] = rl
		}
	}
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return err
		}
	}
	return nil
}

// ApplyEnv overlays environment variables onto cfg. lookup is usually
// os.LookupEnv.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvGeminiAPIKey); ok {
		cfg.GeminiAPIKey = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvAgentURL); ok {
		cfg.AgentBaseURL = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvDatabaseURL); ok && v != "" {
		cfg.DatabaseURL = v
	}
	if v, ok := lookup(EnvStorage); ok && v != "" {
		cfg.Storage = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup(EnvListenAddr); ok && v != "" {
		cfg.ListenAddr = v
	}
}

// Load builds a Config from defaults, an optional file and the environment.
// An explicitly given path that does not exist is an error; a missing
// default file is not.
func Load(configPath string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := NewConfig()
	cfg.ConfigFilePath = configPath

	path := FindConfigFile(configPath)
	switch {
	case path != "":
		f, err := LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		f.Apply(cfg)
	case configPath != "":
		return nil, ErrConfigNotFound
	}

	if lookup != nil {
		ApplyEnv(cfg, lookup)
	}
	return cfg, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
