package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "byteforge"

	// DefaultReconTimeout bounds a single subdomain enumeration run.
	DefaultReconTimeout = 120 * time.Second

	// DefaultCrawlTimeout bounds a single crawler run.
	DefaultCrawlTimeout = 300 * time.Second

	// DefaultVulnScanTimeout bounds a single template scanner run.
	// Template scans are the slowest phase by a wide margin.
	DefaultVulnScanTimeout = 600 * time.Second

	// DefaultProbeTimeout bounds each individual active probe request.
	DefaultProbeTimeout = 5 * time.Second

	// DefaultCrawlDepth is the crawler recursion depth.
	DefaultCrawlDepth = 3

	// DefaultTemplates selects the template tags passed to the scanner.
	DefaultTemplates = "cves,vulnerabilities,exposures"

	// DefaultSeverities is the scanner severity filter.
	DefaultSeverities = "info,low,medium,high,critical"

	// DefaultScannerRateLimit is the scanner's requests-per-second cap.
	DefaultScannerRateLimit = 50

	// DefaultConcurrency is the number of jobs executed at once per process.
	DefaultConcurrency = 4

	// DefaultRedisQueue is the list key used by the Redis dispatcher.
	DefaultRedisQueue = "byteforge:jobs"

	// DefaultMetricsAddr is where `serve` exposes Prometheus metrics.
	DefaultMetricsAddr = "127.0.0.1:9464"

	// DefaultLogLevel is used when no level is configured.
	DefaultLogLevel = "info"

	// DefaultLogFormat is used when no format is configured.
	DefaultLogFormat = "text"

	// DefaultLogMaxSizeMB is the rotation threshold for the log file.
	DefaultLogMaxSizeMB = 50

	// DefaultLogMaxBackups is the number of rotated log files kept.
	DefaultLogMaxBackups = 5

	// DefaultLogMaxAgeDays is how long rotated log files are kept.
	DefaultLogMaxAgeDays = 28
)

// DispatcherMode selects how submitted jobs reach an executor.
type DispatcherMode string

const (
	// DispatcherInProcess runs jobs on goroutines inside the submitting process.
	DispatcherInProcess DispatcherMode = "inprocess"

	// DispatcherRedis pushes jobs onto a Redis list consumed by workers.
	DispatcherRedis DispatcherMode = "redis"
)

// Config holds all configuration for byteforge.
// It is populated from defaults, then the config file, then the environment,
// then CLI flags, and passed through the application explicitly.
type Config struct {
	// DBDir is the directory holding the SQLite database.
	// Defaults to the XDG data directory (~/.local/share/byteforge on Linux).
	DBDir string

	// EncryptionKey is the secret from which the field cipher key is derived.
	// It has no default and must be supplied.
	EncryptionKey string

	// ToolDir is searched for scanner binaries before PATH.
	// Defaults to ~/go/bin, where `go install` places them.
	ToolDir string

	// Dispatcher selects the job dispatcher implementation.
	Dispatcher DispatcherMode

	// RedisURL is the broker address for the Redis dispatcher.
	RedisURL string

	// RedisQueue is the list key jobs are pushed to.
	RedisQueue string

	// Concurrency bounds how many jobs one process executes at a time.
	Concurrency int

	// ReconTimeout, CrawlTimeout and VulnScanTimeout bound external tool runs.
	ReconTimeout    time.Duration
	CrawlTimeout    time.Duration
	VulnScanTimeout time.Duration

	// ProbeTimeout bounds each active probe HTTP request.
	ProbeTimeout time.Duration

	// CrawlDepth is the default crawler recursion depth.
	CrawlDepth int

	// Templates and Severities are passed to the template scanner.
	Templates  string
	Severities string

	// ScannerRateLimit is the template scanner's request rate cap.
	ScannerRateLimit int

	// DNSResolver ("host:port") resolves discovered subdomains.
	// Empty disables resolution.
	DNSResolver string

	// NativeCrawl enables the built-in spider when no crawler binary is
	// installed. Otherwise crawls fall back to simulated output.
	NativeCrawl bool

	// MetricsAddr is the listen address of the metrics endpoint.
	// Empty disables the endpoint.
	MetricsAddr string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// LogFormat is text or json.
	LogFormat string

	// LogFile, when set, receives logs with size-based rotation.
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	// Verbose forces debug level logging.
	Verbose bool

	// ConfigFilePath is the explicit config file path, if any.
	ConfigFilePath string

	// Profiles holds per-target scan overrides loaded from the config file.
	Profiles *Profiles
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		DBDir:            XDGDataDir(),
		ToolDir:          DefaultToolDir(),
		Dispatcher:       DispatcherInProcess,
		RedisURL:         "redis://localhost:6379/0",
		RedisQueue:       DefaultRedisQueue,
		Concurrency:      DefaultConcurrency,
		ReconTimeout:     DefaultReconTimeout,
		CrawlTimeout:     DefaultCrawlTimeout,
		VulnScanTimeout:  DefaultVulnScanTimeout,
		ProbeTimeout:     DefaultProbeTimeout,
		CrawlDepth:       DefaultCrawlDepth,
		Templates:        DefaultTemplates,
		Severities:       DefaultSeverities,
		ScannerRateLimit: DefaultScannerRateLimit,
		MetricsAddr:      DefaultMetricsAddr,
		LogLevel:         DefaultLogLevel,
		LogFormat:        DefaultLogFormat,
		LogMaxSizeMB:     DefaultLogMaxSizeMB,
		LogMaxBackups:    DefaultLogMaxBackups,
		LogMaxAgeDays:    DefaultLogMaxAgeDays,
		Profiles:         NewProfiles(),
	}
}

// XDGDataDir returns the XDG data directory for byteforge.
// On Linux: ~/.local/share/byteforge
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for byteforge.
// On Linux: ~/.config/byteforge
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DefaultToolDir returns ~/go/bin, or an empty string when the home
// directory is unknown.
func DefaultToolDir() string {
	if xdg.Home == "" {
		return ""
	}
	return filepath.Join(xdg.Home, "go", "bin")
}

// Validate checks if the configuration is valid and returns the first problem found.
// Commands that do not touch persisted data may skip it.
func (c *Config) Validate() error {
	if c.EncryptionKey == "" {
		return ErrMissingEncryptionKey
	}

	if c.DBDir == "" {
		return ErrMissingDBDir
	}

	switch c.Dispatcher {
	case DispatcherInProcess:
	case DispatcherRedis:
		if c.RedisURL == "" {
			return ErrMissingRedisURL
		}
	default:
		return ErrInvalidDispatcher
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.ReconTimeout <= 0 || c.CrawlTimeout <= 0 || c.VulnScanTimeout <= 0 || c.ProbeTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.CrawlDepth < 0 {
		return ErrInvalidCrawlDepth
	}

	if c.ScannerRateLimit <= 0 {
		return ErrInvalidRateLimit
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return ErrInvalidLogFormat
	}

	return nil
}
