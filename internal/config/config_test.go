package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coveworks/bulk-restore/internal/retry"
)

var knownKeys = []string{
	"API_BASE_URL", "API_TOKEN", "API_TOKEN_FILE", "AUTH_METHOD",
	"PAGE_LIMIT", "MAX_RESULTS",
	"POLL_TIMEOUT", "POLL_INTERVAL", "CONCURRENCY",
	"ARTIFACT_PROVIDER",
	"AZURE_STORAGE_ACCOUNT", "AZURE_STORAGE_CONTAINER", "AZURE_STORAGE_SAS",
	"AZURE_CLIENT_ID", "AZURE_CLIENT_SECRET", "AZURE_TENANT_ID",
	"RETRY_MAX_ATTEMPTS", "RETRY_INITIAL_DELAY", "RETRY_MAX_DELAY",
	"RETRY_MULTIPLIER", "RETRY_JITTER",
}

// scrubEnv removes every config key from the environment so tests see only
// what they set themselves. t.Setenv cannot unset, hence the manual restore.
func scrubEnv(t *testing.T) {
	t.Helper()
	for _, k := range knownKeys {
		k := k
		if old, ok := os.LookupEnv(k); ok {
			t.Cleanup(func() { _ = os.Setenv(k, old) })
			_ = os.Unsetenv(k)
		}
	}
}

func writeTokenFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "api-token")
	if err := os.WriteFile(path, []byte("secret-token\n"), 0o600); err != nil {
		t.Fatalf("write token file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	scrubEnv(t)
	t.Setenv("API_BASE_URL", "https://api.example.com")
	t.Setenv("API_TOKEN", "tok")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Auth.Method != "token" {
		t.Fatalf("want method token inferred from API_TOKEN, got %q", cfg.Auth.Method)
	}
	if cfg.PageLimit != 100 || cfg.MaxResults != 1000 {
		t.Fatalf("want defaults 100/1000, got %d/%d", cfg.PageLimit, cfg.MaxResults)
	}
	if cfg.PollTimeout != 600*time.Second || cfg.PollInterval != 20*time.Second {
		t.Fatalf("want poll defaults 600s/20s, got %s/%s", cfg.PollTimeout, cfg.PollInterval)
	}
	if cfg.Concurrency != 4 {
		t.Fatalf("want concurrency 4, got %d", cfg.Concurrency)
	}
	if cfg.ArtifactProvider != "" {
		t.Fatalf("want artifacts disabled by default, got %q", cfg.ArtifactProvider)
	}
	if cfg.RetryMaxAttempts != retry.Default.MaxAttempts {
		t.Fatalf("want retry defaults, got attempts=%d", cfg.RetryMaxAttempts)
	}
}

func TestLoadAuthSelection(t *testing.T) {
	t.Run("file method inferred from readable token file", func(t *testing.T) {
		scrubEnv(t)
		t.Setenv("API_BASE_URL", "https://api.example.com")
		t.Setenv("API_TOKEN_FILE", writeTokenFile(t))

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.Auth.Method != "file" || cfg.Auth.TokenFile == "" {
			t.Fatalf("want file method, got %+v", cfg.Auth)
		}
	})

	t.Run("no credentials at all", func(t *testing.T) {
		scrubEnv(t)
		t.Setenv("API_BASE_URL", "https://api.example.com")

		if _, err := Load(); err == nil || !strings.Contains(err.Error(), "no auth method") {
			t.Fatalf("want no-auth-method error, got %v", err)
		}
	})

	t.Run("explicit token method without token", func(t *testing.T) {
		scrubEnv(t)
		t.Setenv("API_BASE_URL", "https://api.example.com")
		t.Setenv("AUTH_METHOD", "token")

		if _, err := Load(); err == nil || !strings.Contains(err.Error(), "requires API_TOKEN") {
			t.Fatalf("want missing-token error, got %v", err)
		}
	})

	t.Run("explicit file method without readable file", func(t *testing.T) {
		scrubEnv(t)
		t.Setenv("API_BASE_URL", "https://api.example.com")
		t.Setenv("AUTH_METHOD", "file")
		t.Setenv("API_TOKEN_FILE", "/nonexistent/token")

		if _, err := Load(); err == nil || !strings.Contains(err.Error(), "readable API_TOKEN_FILE") {
			t.Fatalf("want unreadable-file error, got %v", err)
		}
	})

	t.Run("unsupported method", func(t *testing.T) {
		scrubEnv(t)
		t.Setenv("API_BASE_URL", "https://api.example.com")
		t.Setenv("AUTH_METHOD", "oauth")

		if _, err := Load(); err == nil || !strings.Contains(err.Error(), "unsupported auth method") {
			t.Fatalf("want unsupported-method error, got %v", err)
		}
	})
}

func TestLoadValidation(t *testing.T) {
	t.Run("base url required", func(t *testing.T) {
		scrubEnv(t)
		t.Setenv("API_TOKEN", "tok")

		if _, err := Load(); err == nil || !strings.Contains(err.Error(), "API_BASE_URL") {
			t.Fatalf("want base-url error, got %v", err)
		}
	})

	t.Run("zero poll interval rejected", func(t *testing.T) {
		scrubEnv(t)
		t.Setenv("API_BASE_URL", "https://api.example.com")
		t.Setenv("API_TOKEN", "tok")
		t.Setenv("POLL_INTERVAL", "0s")

		if _, err := Load(); err == nil {
			t.Fatal("want error for zero poll interval")
		}
	})

	t.Run("zero concurrency rejected", func(t *testing.T) {
		scrubEnv(t)
		t.Setenv("API_BASE_URL", "https://api.example.com")
		t.Setenv("API_TOKEN", "tok")
		t.Setenv("CONCURRENCY", "0")

		if _, err := Load(); err == nil {
			t.Fatal("want error for zero concurrency")
		}
	})

	t.Run("azure artifacts need account and container", func(t *testing.T) {
		scrubEnv(t)
		t.Setenv("API_BASE_URL", "https://api.example.com")
		t.Setenv("API_TOKEN", "tok")
		t.Setenv("ARTIFACT_PROVIDER", "azure")
		t.Setenv("AZURE_STORAGE_ACCOUNT", "acct")

		if _, err := Load(); err == nil || !strings.Contains(err.Error(), "AZURE_STORAGE_CONTAINER") {
			t.Fatalf("want incomplete-azure error, got %v", err)
		}

		t.Setenv("AZURE_STORAGE_CONTAINER", "artifacts")
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load with complete azure config: %v", err)
		}
		if cfg.ArtifactProvider != "azure" {
			t.Fatalf("want azure provider, got %q", cfg.ArtifactProvider)
		}
	})

	t.Run("unknown artifact provider rejected", func(t *testing.T) {
		scrubEnv(t)
		t.Setenv("API_BASE_URL", "https://api.example.com")
		t.Setenv("API_TOKEN", "tok")
		t.Setenv("ARTIFACT_PROVIDER", "ftp")

		if _, err := Load(); err == nil || !strings.Contains(err.Error(), "unsupported artifact provider") {
			t.Fatalf("want unsupported-provider error, got %v", err)
		}
	})
}

func TestLoadOverridesAndFallbacks(t *testing.T) {
	scrubEnv(t)
	t.Setenv("API_BASE_URL", "https://api.example.com")
	t.Setenv("API_TOKEN", "tok")
	t.Setenv("PAGE_LIMIT", "25")
	t.Setenv("MAX_RESULTS", "0")
	t.Setenv("POLL_TIMEOUT", "90s")
	t.Setenv("POLL_INTERVAL", "5s")
	t.Setenv("CONCURRENCY", "2")
	t.Setenv("RETRY_MAX_ATTEMPTS", "7")
	t.Setenv("RETRY_MULTIPLIER", "-3") // invalid, falls back to default

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.PageLimit != 25 {
		t.Fatalf("want page limit 25, got %d", cfg.PageLimit)
	}
	if cfg.MaxResults != 0 {
		t.Fatalf("want ceiling disabled (0), got %d", cfg.MaxResults)
	}
	if cfg.PollTimeout != 90*time.Second || cfg.PollInterval != 5*time.Second {
		t.Fatalf("want 90s/5s, got %s/%s", cfg.PollTimeout, cfg.PollInterval)
	}
	if cfg.Concurrency != 2 {
		t.Fatalf("want concurrency 2, got %d", cfg.Concurrency)
	}

	ro := cfg.RetryOptions()
	if ro.MaxAttempts != 7 {
		t.Fatalf("want 7 attempts, got %d", ro.MaxAttempts)
	}
	if ro.Multiplier != retry.Default.Multiplier {
		t.Fatalf("want default multiplier after invalid override, got %v", ro.Multiplier)
	}
}
