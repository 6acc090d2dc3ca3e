package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// validConfig returns a default config that passes validation.
func validConfig() *Config {
	cfg := NewConfig()
	cfg.EncryptionKey = "test-key"
	cfg.DBDir = "/tmp/byteforge-test"
	return cfg
}

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("tool timeouts", func(t *testing.T) {
		t.Parallel()
		if cfg.ReconTimeout != 120*time.Second {
			t.Errorf("expected ReconTimeout 120s, got %v", cfg.ReconTimeout)
		}
		if cfg.CrawlTimeout != 300*time.Second {
			t.Errorf("expected CrawlTimeout 300s, got %v", cfg.CrawlTimeout)
		}
		if cfg.VulnScanTimeout != 600*time.Second {
			t.Errorf("expected VulnScanTimeout 600s, got %v", cfg.VulnScanTimeout)
		}
		if cfg.ProbeTimeout != 5*time.Second {
			t.Errorf("expected ProbeTimeout 5s, got %v", cfg.ProbeTimeout)
		}
	})

	t.Run("scanner defaults", func(t *testing.T) {
		t.Parallel()
		if cfg.Templates != "cves,vulnerabilities,exposures" {
			t.Errorf("unexpected templates %q", cfg.Templates)
		}
		if cfg.Severities != "info,low,medium,high,critical" {
			t.Errorf("unexpected severities %q", cfg.Severities)
		}
		if cfg.ScannerRateLimit != 50 {
			t.Errorf("expected rate limit 50, got %d", cfg.ScannerRateLimit)
		}
	})

	t.Run("default dispatcher is in-process", func(t *testing.T) {
		t.Parallel()
		if cfg.Dispatcher != DispatcherInProcess {
			t.Errorf("got %q", cfg.Dispatcher)
		}
	})

	t.Run("default DBDir is XDG data dir", func(t *testing.T) {
		t.Parallel()
		if cfg.DBDir != XDGDataDir() {
			t.Errorf("got %q", cfg.DBDir)
		}
		if !strings.HasSuffix(cfg.DBDir, AppName) {
			t.Errorf("expected DBDir to end with %q", AppName)
		}
	})

	t.Run("no default encryption key", func(t *testing.T) {
		t.Parallel()
		if cfg.EncryptionKey != "" {
			t.Error("encryption key must not have a default")
		}
	})

	t.Run("profiles are initialised", func(t *testing.T) {
		t.Parallel()
		if cfg.Profiles == nil {
			t.Fatal("expected non-nil profiles")
		}
	})
}

// TestConfigValidate tests validation of each field.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid", mutate: func(*Config) {}, wantErr: nil},
		{name: "missing key", mutate: func(c *Config) { c.EncryptionKey = "" }, wantErr: ErrMissingEncryptionKey},
		{name: "missing db dir", mutate: func(c *Config) { c.DBDir = "" }, wantErr: ErrMissingDBDir},
		{name: "unknown dispatcher", mutate: func(c *Config) { c.Dispatcher = "celery" }, wantErr: ErrInvalidDispatcher},
		{name: "redis without url", mutate: func(c *Config) {
			c.Dispatcher = DispatcherRedis
			c.RedisURL = ""
		}, wantErr: ErrMissingRedisURL},
		{name: "zero concurrency", mutate: func(c *Config) { c.Concurrency = 0 }, wantErr: ErrInvalidConcurrency},
		{name: "zero probe timeout", mutate: func(c *Config) { c.ProbeTimeout = 0 }, wantErr: ErrInvalidTimeout},
		{name: "negative recon timeout", mutate: func(c *Config) { c.ReconTimeout = -time.Second }, wantErr: ErrInvalidTimeout},
		{name: "negative crawl depth", mutate: func(c *Config) { c.CrawlDepth = -1 }, wantErr: ErrInvalidCrawlDepth},
		{name: "zero rate limit", mutate: func(c *Config) { c.ScannerRateLimit = 0 }, wantErr: ErrInvalidRateLimit},
		{name: "bad log format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: ErrInvalidLogFormat},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.wantErr == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

// TestProfilesGet tests merging of default and per-target profiles.
func TestProfilesGet(t *testing.T) {
	t.Parallel()

	profiles := &Profiles{
		Defaults: ScanProfile{
			CrawlDepth: 2,
			Templates:  "cves",
			Headers:    map[string]string{"User-Agent": "byteforge"},
		},
		Targets: map[string]ScanProfile{
			"example.com": {
				CrawlDepth: 5,
				Endpoints:  []string{"https://example.com/search?q=1"},
				Headers:    map[string]string{"Cookie": "a=b"},
			},
		},
	}

	t.Run("unknown host gets defaults", func(t *testing.T) {
		t.Parallel()

		got := profiles.Get("other.com")
		if got.CrawlDepth != 2 || got.Templates != "cves" {
			t.Errorf("unexpected profile %+v", got)
		}
	})

	t.Run("override merges over defaults", func(t *testing.T) {
		t.Parallel()

		got := profiles.Get("example.com")
		if got.CrawlDepth != 5 {
			t.Errorf("expected depth 5, got %d", got.CrawlDepth)
		}
		if got.Templates != "cves" {
			t.Errorf("expected inherited templates, got %q", got.Templates)
		}
		if len(got.Endpoints) != 1 {
			t.Errorf("expected 1 endpoint, got %v", got.Endpoints)
		}
		if got.Headers["User-Agent"] != "byteforge" || got.Headers["Cookie"] != "a=b" {
			t.Errorf("unexpected headers %v", got.Headers)
		}
	})

	t.Run("merge does not mutate defaults", func(t *testing.T) {
		t.Parallel()

		_ = profiles.Get("example.com")
		if _, ok := profiles.Defaults.Headers["Cookie"]; ok {
			t.Error("defaults were mutated")
		}
	})

	t.Run("nil profiles", func(t *testing.T) {
		t.Parallel()

		var p *Profiles
		if got := p.Get("example.com"); got.CrawlDepth != 0 {
			t.Errorf("expected empty profile, got %+v", got)
		}
	})
}

// TestLoadConfigFile tests YAML loading.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("loads all sections", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `
db_dir: /var/lib/byteforge
encryption_key: file-key
dispatcher: redis
redis_url: redis://broker:6379/1
concurrency: 8
timeouts:
  recon: 30s
  probe: 2s
scanner:
  crawl_depth: 4
  templates: cves
log:
  level: debug
  format: json
profiles:
  targets:
    example.com:
      crawl_depth: 6
`
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		f, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("failed to load: %v", err)
		}

		cfg := NewConfig()
		cfg.Apply(f)

		if cfg.DBDir != "/var/lib/byteforge" {
			t.Errorf("DBDir: got %q", cfg.DBDir)
		}
		if cfg.EncryptionKey != "file-key" {
			t.Errorf("EncryptionKey: got %q", cfg.EncryptionKey)
		}
		if cfg.Dispatcher != DispatcherRedis {
			t.Errorf("Dispatcher: got %q", cfg.Dispatcher)
		}
		if cfg.Concurrency != 8 {
			t.Errorf("Concurrency: got %d", cfg.Concurrency)
		}
		if cfg.ReconTimeout != 30*time.Second || cfg.ProbeTimeout != 2*time.Second {
			t.Errorf("timeouts: got %v %v", cfg.ReconTimeout, cfg.ProbeTimeout)
		}
		if cfg.CrawlTimeout != DefaultCrawlTimeout {
			t.Errorf("unset timeout should keep default, got %v", cfg.CrawlTimeout)
		}
		if cfg.CrawlDepth != 4 || cfg.Templates != "cves" {
			t.Errorf("scanner: got %d %q", cfg.CrawlDepth, cfg.Templates)
		}
		if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
			t.Errorf("log: got %q %q", cfg.LogLevel, cfg.LogFormat)
		}
		if got := cfg.Profiles.Get("example.com").CrawlDepth; got != 6 {
			t.Errorf("profile depth: got %d", got)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("concurrency: [unclosed"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected parse error")
		}
	})
}

// TestFindConfigFile tests explicit path handling.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "explicit.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}

	if got := FindConfigFile(path); got != path {
		t.Errorf("expected %q, got %q", path, got)
	}
	if got := FindConfigFile(path + ".missing"); got != "" {
		t.Errorf("expected empty for missing explicit path, got %q", got)
	}
}

// TestApplyEnv tests the environment overlay. Not parallel: uses t.Setenv.
func TestApplyEnv(t *testing.T) {
	t.Setenv("BYTEFORGE_ENCRYPTION_KEY", "env-key")
	t.Setenv("BYTEFORGE_DISPATCHER", "redis")
	t.Setenv("BYTEFORGE_CONCURRENCY", "12")
	t.Setenv("BYTEFORGE_RECON_TIMEOUT", "45s")
	t.Setenv("BYTEFORGE_TOOL_DIR", "/opt/tools")

	cfg := NewConfig()
	cfg.Templates = "from-file"
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}

	if cfg.EncryptionKey != "env-key" {
		t.Errorf("EncryptionKey: got %q", cfg.EncryptionKey)
	}
	if cfg.Dispatcher != DispatcherRedis {
		t.Errorf("Dispatcher: got %q", cfg.Dispatcher)
	}
	if cfg.Concurrency != 12 {
		t.Errorf("Concurrency: got %d", cfg.Concurrency)
	}
	if cfg.ReconTimeout != 45*time.Second {
		t.Errorf("ReconTimeout: got %v", cfg.ReconTimeout)
	}
	if cfg.ToolDir != "/opt/tools" {
		t.Errorf("ToolDir: got %q", cfg.ToolDir)
	}
	if cfg.Templates != "from-file" {
		t.Errorf("unset env must not override, got %q", cfg.Templates)
	}
}

// TestApplyEnvInvalid tests that malformed numeric values are reported.
func TestApplyEnvInvalid(t *testing.T) {
	t.Setenv("BYTEFORGE_CONCURRENCY", "many")

	cfg := NewConfig()
	err := cfg.ApplyEnv()
	if err == nil || !strings.Contains(err.Error(), "BYTEFORGE_CONCURRENCY") {
		t.Errorf("expected error naming the variable, got %v", err)
	}
}

// TestLoad tests the full precedence chain.
func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("encryption_key: file-key\nconcurrency: 3\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BYTEFORGE_CONCURRENCY", "9")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.EncryptionKey != "file-key" {
		t.Errorf("EncryptionKey: got %q", cfg.EncryptionKey)
	}
	if cfg.Concurrency != 9 {
		t.Errorf("env should win over file, got %d", cfg.Concurrency)
	}

	if _, err := Load(path + ".missing"); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("expected ErrConfigNotFound for explicit missing path, got %v", err)
	}
}
