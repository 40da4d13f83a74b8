package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/coveworks/bulk-restore/internal/retry"
)

type Config struct {
	APIBaseURL string
	Auth       AuthConfig

	// Listing behavior
	PageLimit  int
	MaxResults int // 0 disables the ceiling

	// Task polling and submission fan-out
	PollTimeout  time.Duration
	PollInterval time.Duration
	Concurrency  int

	// Plan/report persistence, disabled when ArtifactProvider is empty
	ArtifactProvider string
	Azure            AzureConfig

	RetryMaxAttempts  int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
	RetryMultiplier   float64
	RetryEnableJitter bool
}

type AuthConfig struct {
	Method    string // "token" or "file"
	Token     string // only if Method == token
	TokenFile string // required if Method == file
}

type AzureConfig struct {
	Account   string
	Container string
	SASToken  string

	ClientID     string
	ClientSecret string
	TenantID     string
}

// Load reads config from environment variables, applies defaults and validates.
func Load() (Config, error) {
	get := func(key, def string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return def
	}

	parseInt := func(key string, def int) int {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				return n
			}
		}
		return def
	}

	parseDur := func(key string, def time.Duration) time.Duration {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			if d, err := time.ParseDuration(v); err == nil {
				return d
			}
		}
		return def
	}

	parseFloat := func(key string, def float64) float64 {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
				return f
			}
		}
		return def
	}

	parseBool := func(key string, def bool) bool {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "y", "on":
				return true
			case "0", "false", "no", "n", "off":
				return false
			}
		}
		return def
	}

	fileReadable := func(path string) bool {
		if strings.TrimSpace(path) == "" {
			return false
		}
		f, err := os.Open(path)
		if err != nil {
			return false
		}
		_ = f.Close()
		return true
	}

	// -------------------------
	// Auth parsing (fallbacks)
	// -------------------------
	method := strings.ToLower(strings.TrimSpace(get("AUTH_METHOD", "")))
	tokenEnv := strings.TrimSpace(get("API_TOKEN", ""))
	tokenFile := strings.TrimSpace(get("API_TOKEN_FILE", ""))

	if method == "" {
		switch {
		case tokenEnv != "":
			method = "token"
		case fileReadable(tokenFile):
			method = "file"
		default:
			return Config{}, errors.New("no auth method configured: set AUTH_METHOD=token with API_TOKEN, or provide a readable API_TOKEN_FILE")
		}
	}

	auth := AuthConfig{Method: method}
	switch method {
	case "token":
		auth.Token = tokenEnv
		if auth.Token == "" {
			return Config{}, errors.New("auth method token requires API_TOKEN")
		}

	case "file":
		auth.TokenFile = tokenFile
		if !fileReadable(auth.TokenFile) {
			return Config{}, errors.New("auth method file requires a readable API_TOKEN_FILE")
		}

	default:
		return Config{}, errors.New("unsupported auth method: " + method)
	}

	cfg := Config{
		APIBaseURL: strings.TrimSpace(get("API_BASE_URL", "")),
		Auth:       auth,

		PageLimit:  parseInt("PAGE_LIMIT", 100),
		MaxResults: parseInt("MAX_RESULTS", 1000),

		PollTimeout:  parseDur("POLL_TIMEOUT", 600*time.Second),
		PollInterval: parseDur("POLL_INTERVAL", 20*time.Second),
		Concurrency:  parseInt("CONCURRENCY", 4),

		ArtifactProvider: strings.ToLower(strings.TrimSpace(get("ARTIFACT_PROVIDER", ""))),
		Azure: AzureConfig{
			Account:      get("AZURE_STORAGE_ACCOUNT", ""),
			Container:    get("AZURE_STORAGE_CONTAINER", ""),
			SASToken:     get("AZURE_STORAGE_SAS", ""),
			ClientID:     get("AZURE_CLIENT_ID", ""),
			ClientSecret: get("AZURE_CLIENT_SECRET", ""),
			TenantID:     get("AZURE_TENANT_ID", ""),
		},

		RetryMaxAttempts:  parseInt("RETRY_MAX_ATTEMPTS", retry.Default.MaxAttempts),
		RetryInitialDelay: parseDur("RETRY_INITIAL_DELAY", retry.Default.InitialDelay),
		RetryMaxDelay:     parseDur("RETRY_MAX_DELAY", retry.Default.MaxDelay),
		RetryMultiplier:   parseFloat("RETRY_MULTIPLIER", retry.Default.Multiplier),
		RetryEnableJitter: parseBool("RETRY_JITTER", retry.Default.Jitter),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate checks cross-field requirements.
// For the azure artifact provider: Account+Container and either SAS or Service
// Principal (MSI is accepted implicitly by the provider impl).
func (c *Config) validate() error {
	if c.APIBaseURL == "" {
		return errors.New("API_BASE_URL is required")
	}
	if c.PageLimit < 1 {
		return errors.New("PAGE_LIMIT must be at least 1")
	}
	if c.PollInterval <= 0 || c.PollTimeout <= 0 {
		return errors.New("POLL_INTERVAL and POLL_TIMEOUT must be positive")
	}
	if c.Concurrency < 1 {
		return errors.New("CONCURRENCY must be at least 1")
	}

	switch c.ArtifactProvider {
	case "":
		// Artifacts disabled.
	case "azure":
		if c.Azure.Account == "" || c.Azure.Container == "" {
			return errors.New("azure: AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_CONTAINER are required")
		}
	default:
		return errors.New("unsupported artifact provider: " + c.ArtifactProvider)
	}
	return nil
}

// RetryOptions converts retry-related config values to retry.Options.
func (c Config) RetryOptions() retry.Options {
	return retry.Options{
		MaxAttempts:  c.RetryMaxAttempts,
		InitialDelay: c.RetryInitialDelay,
		MaxDelay:     c.RetryMaxDelay,
		Multiplier:   c.RetryMultiplier,
		Jitter:       c.RetryEnableJitter,
	}
}
