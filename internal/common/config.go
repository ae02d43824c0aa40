package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string            `toml:"environment"` // "development" or "production"
	Server      ServerConfig      `toml:"server"`
	Paths       PathsConfig       `toml:"paths"`
	Workers     WorkersConfig     `toml:"workers"`
	Cache       CacheConfig       `toml:"cache"`
	Logging     LoggingConfig     `toml:"logging"`
	WebSocket   WebSocketConfig   `toml:"websocket"`
	Storage     StorageConfig     `toml:"storage"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// PathsConfig controls the on-disk project layout. Every artifact path is
// resolved relative to ProjectRoot; requests carrying absolute paths are rejected.
type PathsConfig struct {
	ProjectRoot string `toml:"project_root"` // Base directory for results/, storage/, logs/
}

// WorkersConfig controls compute-worker execution
type WorkersConfig struct {
	Cap             int    `toml:"cap"`              // Max concurrent workers (0 = runtime.NumCPU())
	GracePeriod     string `toml:"grace_period"`     // Wait between graceful signal and hard kill (default: "5s")
	ManifestPath    string `toml:"manifest_path"`    // Optional workers.yaml overriding built-in commands
	ForecastTimeout string `toml:"forecast_timeout"` // Default deadline for forecast jobs
	ProfileTimeout  string `toml:"profile_timeout"`  // Default deadline for load-profile jobs
	PypsaTimeout    string `toml:"pypsa_timeout"`    // Default deadline for optimization jobs
	ExtractTimeout  string `toml:"extract_timeout"`  // Deadline for synchronous result extraction
	MaxTimeout      string `toml:"max_timeout"`      // Upper bound for per-request timeout overrides
}

// CacheConfig controls the in-memory TTL cache
type CacheConfig struct {
	SweepInterval  string `toml:"sweep_interval"`  // Expired-entry sweep interval (default: "30s")
	SectorTTL      string `toml:"sector_ttl"`      // TTL for cached sector data
	CorrelationTTL string `toml:"correlation_ttl"` // TTL for cached correlation tables
	ResultsTTL     string `toml:"results_ttl"`     // TTL for extracted optimization summaries
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Format string   `toml:"format"` // "json" or "text"
	Output []string `toml:"output"` // "stdout", "file"
}

// WebSocketConfig controls the real-time transport and log streaming
type WebSocketConfig struct {
	QueueSize          int      `toml:"queue_size"`           // Per-session outbound queue capacity (default: 256)
	LogMinLevel        string   `toml:"log_min_level"`        // Minimum log level broadcast to the logs room
	LogExcludePatterns []string `toml:"log_exclude_patterns"` // Log message patterns excluded from broadcasting
	LogThrottle        string   `toml:"log_throttle"`         // Minimum interval between broadcast log entries
}

type StorageConfig struct {
	HistoryDir     string `toml:"history_dir"`      // Job history database dir, relative to project root
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete history database on startup for clean test runs
}

// MaintenanceConfig controls scheduled background upkeep
type MaintenanceConfig struct {
	Enabled           bool   `toml:"enabled"`
	RescanSchedule    string `toml:"rescan_schedule"`    // Cron spec for periodic artifact rescans
	RetentionSchedule string `toml:"retention_schedule"` // Cron spec for the archive retention sweep
	RetentionDays     int    `toml:"retention_days"`     // Archive records older than this are removed
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in fulmen.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Paths: PathsConfig{
			ProjectRoot: "./data",
		},
		Workers: WorkersConfig{
			Cap:             0, // NumCPU
			GracePeriod:     "5s",
			ManifestPath:    "",
			ForecastTimeout: "10m",
			ProfileTimeout:  "15m",
			PypsaTimeout:    "30m",
			ExtractTimeout:  "2m",
			MaxTimeout:      "2h",
		},
		Cache: CacheConfig{
			SweepInterval:  "30s",
			SectorTTL:      "10m",
			CorrelationTTL: "10m",
			ResultsTTL:     "30m",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		WebSocket: WebSocketConfig{
			QueueSize:   256,
			LogMinLevel: "info",
			LogExcludePatterns: []string{
				"WebSocket client connected",
				"WebSocket client disconnected",
				"HTTP request",
				"HTTP response",
			},
			LogThrottle: "250ms",
		},
		Storage: StorageConfig{
			HistoryDir: "storage/history",
		},
		Maintenance: MaintenanceConfig{
			Enabled:           true,
			RescanSchedule:    "@every 10m",
			RetentionSchedule: "@daily",
			RetentionDays:     90,
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier files.
// CLI flags are applied afterwards via ApplyFlagOverrides and take highest priority.
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

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FULMEN_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("FULMEN_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("FULMEN_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Paths configuration
	if root := os.Getenv("FULMEN_PROJECT_ROOT"); root != "" {
		config.Paths.ProjectRoot = root
	}

	// Workers configuration
	if cap := os.Getenv("FULMEN_WORKERS_CAP"); cap != "" {
		if c, err := strconv.Atoi(cap); err == nil {
			config.Workers.Cap = c
		}
	}
	if grace := os.Getenv("FULMEN_WORKERS_GRACE_PERIOD"); grace != "" {
		if _, err := time.ParseDuration(grace); err == nil {
			config.Workers.GracePeriod = grace
		}
	}
	if manifest := os.Getenv("FULMEN_WORKERS_MANIFEST"); manifest != "" {
		config.Workers.ManifestPath = manifest
	}
	if timeout := os.Getenv("FULMEN_WORKERS_FORECAST_TIMEOUT"); timeout != "" {
		if _, err := time.ParseDuration(timeout); err == nil {
			config.Workers.ForecastTimeout = timeout
		}
	}
	if timeout := os.Getenv("FULMEN_WORKERS_PROFILE_TIMEOUT"); timeout != "" {
		if _, err := time.ParseDuration(timeout); err == nil {
			config.Workers.ProfileTimeout = timeout
		}
	}
	if timeout := os.Getenv("FULMEN_WORKERS_PYPSA_TIMEOUT"); timeout != "" {
		if _, err := time.ParseDuration(timeout); err == nil {
			config.Workers.PypsaTimeout = timeout
		}
	}

	// Cache configuration
	if sweep := os.Getenv("FULMEN_CACHE_SWEEP_INTERVAL"); sweep != "" {
		if _, err := time.ParseDuration(sweep); err == nil {
			config.Cache.SweepInterval = sweep
		}
	}

	// Logging configuration
	if level := os.Getenv("FULMEN_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("FULMEN_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("FULMEN_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range splitString(output, ",") {
			trimmed := trimSpace(o)
			if trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// WebSocket configuration
	if size := os.Getenv("FULMEN_WEBSOCKET_QUEUE_SIZE"); size != "" {
		if s, err := strconv.Atoi(size); err == nil && s > 0 {
			config.WebSocket.QueueSize = s
		}
	}
	if minLevel := os.Getenv("FULMEN_WEBSOCKET_LOG_MIN_LEVEL"); minLevel != "" {
		config.WebSocket.LogMinLevel = minLevel
	}
	if throttle := os.Getenv("FULMEN_WEBSOCKET_LOG_THROTTLE"); throttle != "" {
		if _, err := time.ParseDuration(throttle); err == nil {
			config.WebSocket.LogThrottle = throttle
		}
	}

	// Storage configuration
	if historyDir := os.Getenv("FULMEN_STORAGE_HISTORY_DIR"); historyDir != "" {
		config.Storage.HistoryDir = historyDir
	}

	// Maintenance configuration
	if enabled := os.Getenv("FULMEN_MAINTENANCE_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Maintenance.Enabled = e
		}
	}
	if schedule := os.Getenv("FULMEN_MAINTENANCE_RESCAN_SCHEDULE"); schedule != "" {
		config.Maintenance.RescanSchedule = schedule
	}
	if days := os.Getenv("FULMEN_MAINTENANCE_RETENTION_DAYS"); days != "" {
		if d, err := strconv.Atoi(days); err == nil && d > 0 {
			config.Maintenance.RetentionDays = d
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string, projectRoot string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
	if projectRoot != "" {
		config.Paths.ProjectRoot = projectRoot
	}
}

// ParseDurationOr parses a duration string, falling back to the given default
// when the string is empty or malformed.
func ParseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// Helper functions for string manipulation
func splitString(s, sep string) []string {
	result := []string{}
	start := 0
	for i := 0; i < len(s); i++ {
		if i+len(sep) <= len(s) && s[i:i+len(sep)] == sep {
			result = append(result, s[start:i])
			start = i + len(sep)
			i = start - 1
		}
	}
	result = append(result, s[start:])
	return result
}

func trimSpace(s string) string {
	start := 0
	end := len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t' || s[start] == '\n' || s[start] == '\r') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t' || s[end-1] == '\n' || s[end-1] == '\r') {
		end--
	}
	return s[start:end]
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// DeepCloneConfig creates a deep copy of the Config struct
func DeepCloneConfig(c *Config) *Config {
	if c == nil {
		return nil
	}

	clone := *c

	if len(c.Logging.Output) > 0 {
		clone.Logging.Output = make([]string, len(c.Logging.Output))
		copy(clone.Logging.Output, c.Logging.Output)
	}

	if len(c.WebSocket.LogExcludePatterns) > 0 {
		clone.WebSocket.LogExcludePatterns = make([]string, len(c.WebSocket.LogExcludePatterns))
		copy(clone.WebSocket.LogExcludePatterns, c.WebSocket.LogExcludePatterns)
	}

	return &clone
}
