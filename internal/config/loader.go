package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".byteforge"

// EnvPrefix prefixes every environment variable read by byteforge.
const EnvPrefix = "BYTEFORGE"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of the .byteforge configuration file.
// Every field is optional; zero values leave the current setting untouched.
type File struct {
	DBDir         string `yaml:"db_dir,omitempty"`
	EncryptionKey string `yaml:"encryption_key,omitempty"`
	ToolDir       string `yaml:"tool_dir,omitempty"`
	Dispatcher    string `yaml:"dispatcher,omitempty"`
	RedisURL      string `yaml:"redis_url,omitempty"`
	RedisQueue    string `yaml:"redis_queue,omitempty"`
	Concurrency   int    `yaml:"concurrency,omitempty"`
	MetricsAddr   string `yaml:"metrics_addr,omitempty"`

	Timeouts struct {
		Recon             time.Duration `yaml:"recon,omitempty"`
		Crawl             time.Duration `yaml:"crawl,omitempty"`
		VulnerabilityScan time.Duration `yaml:"vulnerability_scan,omitempty"`
		Probe             time.Duration `yaml:"probe,omitempty"`
	} `yaml:"timeouts,omitempty"`

	Scanner struct {
		CrawlDepth  int    `yaml:"crawl_depth,omitempty"`
		Templates   string `yaml:"templates,omitempty"`
		Severities  string `yaml:"severities,omitempty"`
		RateLimit   int    `yaml:"rate_limit,omitempty"`
		DNSResolver string `yaml:"dns_resolver,omitempty"`
		NativeCrawl bool   `yaml:"native_crawl,omitempty"`
	} `yaml:"scanner,omitempty"`

	Log struct {
		Level      string `yaml:"level,omitempty"`
		Format     string `yaml:"format,omitempty"`
		File       string `yaml:"file,omitempty"`
		MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
		MaxBackups int    `yaml:"max_backups,omitempty"`
		MaxAgeDays int    `yaml:"max_age_days,omitempty"`
	} `yaml:"log,omitempty"`

	Profiles Profiles `yaml:"profiles,omitempty"`
}

// LoadConfigFile loads a configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if f.Profiles.Targets == nil {
		f.Profiles.Targets = make(map[string]ScanProfile)
	}

	return &f, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. configPath, if specified
// 2. .byteforge in the current directory
// 3. config.yaml in the XDG config directory
// 4. .byteforge in the user's home directory
//
// Returns an empty string when nothing is found.
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
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// Apply overlays the non-zero values of f onto c.
func (c *Config) Apply(f *File) {
	if f == nil {
		return
	}

	setString(&c.DBDir, f.DBDir)
	setString(&c.EncryptionKey, f.EncryptionKey)
	setString(&c.ToolDir, f.ToolDir)
	if f.Dispatcher != "" {
		c.Dispatcher = DispatcherMode(f.Dispatcher)
	}
	setString(&c.RedisURL, f.RedisURL)
	setString(&c.RedisQueue, f.RedisQueue)
	setInt(&c.Concurrency, f.Concurrency)
	setString(&c.MetricsAddr, f.MetricsAddr)

	setDuration(&c.ReconTimeout, f.Timeouts.Recon)
	setDuration(&c.CrawlTimeout, f.Timeouts.Crawl)
	setDuration(&c.VulnScanTimeout, f.Timeouts.VulnerabilityScan)
	setDuration(&c.ProbeTimeout, f.Timeouts.Probe)

	setInt(&c.CrawlDepth, f.Scanner.CrawlDepth)
	setString(&c.Templates, f.Scanner.Templates)
	setString(&c.Severities, f.Scanner.Severities)
	setInt(&c.ScannerRateLimit, f.Scanner.RateLimit)
	setString(&c.DNSResolver, f.Scanner.DNSResolver)
	if f.Scanner.NativeCrawl {
		c.NativeCrawl = true
	}

	setString(&c.LogLevel, f.Log.Level)
	setString(&c.LogFormat, f.Log.Format)
	setString(&c.LogFile, f.Log.File)
	setInt(&c.LogMaxSizeMB, f.Log.MaxSizeMB)
	setInt(&c.LogMaxBackups, f.Log.MaxBackups)
	setInt(&c.LogMaxAgeDays, f.Log.MaxAgeDays)

	profiles := f.Profiles
	c.Profiles = &profiles
}

// envKeys lists every setting that may be supplied through the environment.
// The variable name is EnvPrefix + "_" + upper-cased key.
var envKeys = []string{
	"db_dir",
	"encryption_key",
	"tool_dir",
	"dispatcher",
	"redis_url",
	"redis_queue",
	"concurrency",
	"metrics_addr",
	"recon_timeout",
	"crawl_timeout",
	"vulnerability_scan_timeout",
	"probe_timeout",
	"crawl_depth",
	"templates",
	"severities",
	"rate_limit",
	"dns_resolver",
	"log_level",
	"log_format",
	"log_file",
}

// ApplyEnv overlays BYTEFORGE_* environment variables onto c.
// Variable names are EnvPrefix + "_" + the upper-cased key, e.g.
// BYTEFORGE_ENCRYPTION_KEY.
func (c *Config) ApplyEnv() error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	c.DBDir = stringOr(v, "db_dir", c.DBDir)
	c.EncryptionKey = stringOr(v, "encryption_key", c.EncryptionKey)
	c.ToolDir = stringOr(v, "tool_dir", c.ToolDir)
	c.Dispatcher = DispatcherMode(stringOr(v, "dispatcher", string(c.Dispatcher)))
	c.RedisURL = stringOr(v, "redis_url", c.RedisURL)
	c.RedisQueue = stringOr(v, "redis_queue", c.RedisQueue)
	c.MetricsAddr = stringOr(v, "metrics_addr", c.MetricsAddr)
	c.Templates = stringOr(v, "templates", c.Templates)
	c.Severities = stringOr(v, "severities", c.Severities)
	c.DNSResolver = stringOr(v, "dns_resolver", c.DNSResolver)
	c.LogLevel = stringOr(v, "log_level", c.LogLevel)
	c.LogFormat = stringOr(v, "log_format", c.LogFormat)
	c.LogFile = stringOr(v, "log_file", c.LogFile)

	var err error
	if c.Concurrency, err = intOr(v, "concurrency", c.Concurrency); err != nil {
		return err
	}
	if c.CrawlDepth, err = intOr(v, "crawl_depth", c.CrawlDepth); err != nil {
		return err
	}
	if c.ScannerRateLimit, err = intOr(v, "rate_limit", c.ScannerRateLimit); err != nil {
		return err
	}
	if c.ReconTimeout, err = durationOr(v, "recon_timeout", c.ReconTimeout); err != nil {
		return err
	}
	if c.CrawlTimeout, err = durationOr(v, "crawl_timeout", c.CrawlTimeout); err != nil {
		return err
	}
	if c.VulnScanTimeout, err = durationOr(v, "vulnerability_scan_timeout", c.VulnScanTimeout); err != nil {
		return err
	}
	if c.ProbeTimeout, err = durationOr(v, "probe_timeout", c.ProbeTimeout); err != nil {
		return err
	}

	return nil
}

// Load builds a Config from defaults, the config file and the environment.
// An explicitly requested file that does not exist is an error; a missing
// default file is not.
func Load(configPath string) (*Config, error) {
	cfg := NewConfig()
	cfg.ConfigFilePath = configPath

	path := FindConfigFile(configPath)
	if path == "" && configPath != "" {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
	}
	if path != "" {
		f, err := LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		cfg.Apply(f)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
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

func stringOr(v *viper.Viper, key, fallback string) string {
	if !v.IsSet(key) {
		return fallback
	}
	return v.GetString(key)
}

func intOr(v *viper.Viper, key string, fallback int) (int, error) {
	if !v.IsSet(key) {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return fallback, fmt.Errorf("invalid %s_%s: %w", EnvPrefix, strings.ToUpper(key), err)
	}
	return n, nil
}

func durationOr(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	if !v.IsSet(key) {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return fallback, fmt.Errorf("invalid %s_%s: %w", EnvPrefix, strings.ToUpper(key), err)
	}
	return d, nil
}
