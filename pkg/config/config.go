package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/viper"

	"github.com/paulschiretz/pgl-mirror/pkg/buildinfo"
	"github.com/paulschiretz/pgl-mirror/pkg/logfile"
	"github.com/paulschiretz/pgl-mirror/pkg/pathsync"
	"github.com/paulschiretz/pgl-mirror/pkg/plog"
	"github.com/paulschiretz/pgl-mirror/pkg/util"
)

// ConfigFileName is the name of the configuration file.
const ConfigFileName = "pgl-mirror.config.json"

// EnvPrefix is prepended to every environment variable override, e.g.
// PGL_MIRROR_INTERVAL_SECONDS.
const EnvPrefix = "PGL_MIRROR"

// Keys shared by the config file, the environment and the bound flags.
const (
	KeySource              = "source"
	KeyReplica             = "replica"
	KeyIntervalSeconds     = "interval_seconds"
	KeyLogFile             = "log_file"
	KeyLogLevel            = "log_level"
	KeyOnce                = "once"
	KeyDetection           = "detection"
	KeyExclude             = "exclude"
	KeyLock                = "lock"
	KeyMetrics             = "metrics"
	KeyMetricsTextfile     = "metrics_textfile"
	KeyLogRotateMaxSizeMB  = "log_rotate_max_size_mb"
	KeyLogRotateMaxBackups = "log_rotate_max_backups"
	KeyLogRotateFormat     = "log_rotate_format"
)

// DefaultDir is the per-user directory holding the default log file and,
// optionally, the config file.
var DefaultDir = filepath.Join("~", ".pgl-mirror")

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Source          string   `json:"source"`
	Replica         string   `json:"replica"`
	IntervalSeconds int      `json:"interval_seconds"`
	LogFile         string   `json:"log_file"`
	LogLevel        string   `json:"log_level"`
	Once            bool     `json:"once"`
	Detection       string   `json:"detection"`
	Exclude         []string `json:"exclude"`
	Lock            bool     `json:"lock"`
	Metrics         bool     `json:"metrics"`
	MetricsTextfile string   `json:"metrics_textfile"`

	LogRotateMaxSizeMB  int    `json:"log_rotate_max_size_mb"`
	LogRotateMaxBackups int    `json:"log_rotate_max_backups"`
	LogRotateFormat     string `json:"log_rotate_format"`
}

// NewDefault returns a Config populated with the built-in defaults.
func NewDefault() Config {
	return Config{
		IntervalSeconds:     120,
		LogFile:             filepath.Join(DefaultDir, buildinfo.AppID+".log"),
		LogLevel:            "info",
		Detection:           pathsync.DetectModTime.String(),
		Exclude:             []string{},
		Lock:                true,
		Metrics:             true,
		LogRotateMaxSizeMB:  10,
		LogRotateMaxBackups: 5,
		LogRotateFormat:     logfile.Gzip.String(),
	}
}

// SetDefaults registers the values of NewDefault with v so that unset keys
// resolve to them.
func SetDefaults(v *viper.Viper) {
	d := NewDefault()
	v.SetDefault(KeyIntervalSeconds, d.IntervalSeconds)
	v.SetDefault(KeyLogFile, d.LogFile)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyOnce, d.Once)
	v.SetDefault(KeyDetection, d.Detection)
	v.SetDefault(KeyExclude, d.Exclude)
	v.SetDefault(KeyLock, d.Lock)
	v.SetDefault(KeyMetrics, d.Metrics)
	v.SetDefault(KeyMetricsTextfile, d.MetricsTextfile)
	v.SetDefault(KeyLogRotateMaxSizeMB, d.LogRotateMaxSizeMB)
	v.SetDefault(KeyLogRotateMaxBackups, d.LogRotateMaxBackups)
	v.SetDefault(KeyLogRotateFormat, d.LogRotateFormat)
}

// ReadFile points v at the config file and reads it. An explicit path must
// exist; without one the working directory and DefaultDir are searched and a
// missing file is not an error. Environment overrides are enabled either way.
func ReadFile(v *viper.Viper, explicitPath string) error {
	if explicitPath != "" {
		configPath, err := util.ExpandPath(explicitPath)
		if err != nil {
			return err
		}
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		if defaultDir, err := util.ExpandPath(DefaultDir); err == nil {
			v.AddConfigPath(defaultDir)
		}
		v.SetConfigName(strings.TrimSuffix(ConfigFileName, filepath.Ext(ConfigFileName)))
	}
	v.SetConfigType("json")

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicitPath == "" && (errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return nil
		}
		return fmt.Errorf("error reading config file %s: %w", v.ConfigFileUsed(), err)
	}
	plog.Debug("Loaded configuration file", "path", v.ConfigFileUsed())
	return nil
}

// Load builds a Config from v. Defaults are registered first, so keys missing
// from the file, the environment and the flags fall back to NewDefault.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)
	cfg := Config{
		Source:              v.GetString(KeySource),
		Replica:             v.GetString(KeyReplica),
		IntervalSeconds:     v.GetInt(KeyIntervalSeconds),
		LogFile:             v.GetString(KeyLogFile),
		LogLevel:            v.GetString(KeyLogLevel),
		Once:                v.GetBool(KeyOnce),
		Detection:           v.GetString(KeyDetection),
		Exclude:             v.GetStringSlice(KeyExclude),
		Lock:                v.GetBool(KeyLock),
		Metrics:             v.GetBool(KeyMetrics),
		MetricsTextfile:     v.GetString(KeyMetricsTextfile),
		LogRotateMaxSizeMB:  v.GetInt(KeyLogRotateMaxSizeMB),
		LogRotateMaxBackups: v.GetInt(KeyLogRotateMaxBackups),
		LogRotateFormat:     v.GetString(KeyLogRotateFormat),
	}
	if cfg.Exclude == nil {
		cfg.Exclude = []string{}
	}
	return cfg, nil
}

// Generate writes cfg as indented JSON to path, creating the parent directory
// when needed. An existing file is overwritten.
func Generate(path string, cfg Config) error {
	path, err := util.ExpandPath(path)
	if err != nil {
		return err
	}
	jsonData, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config to JSON: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), util.UserWritableDirPerms); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, append(jsonData, '\n'), util.UserWritableFilePerms); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	plog.Info("Successfully saved config file", "path", path)
	return nil
}

// Validate checks the configuration for logical errors. It does not touch
// the filesystem; root accessibility is the job of the preflight checks.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Source) == "" {
		return fmt.Errorf("%w: source path cannot be empty", ErrInvalid)
	}
	if strings.TrimSpace(c.Replica) == "" {
		return fmt.Errorf("%w: replica path cannot be empty", ErrInvalid)
	}
	if c.IntervalSeconds <= 0 {
		return fmt.Errorf("%w: interval must be a positive number of seconds, got %d", ErrInvalid, c.IntervalSeconds)
	}
	if strings.TrimSpace(c.LogFile) == "" {
		return fmt.Errorf("%w: log file path cannot be empty", ErrInvalid)
	}
	if !plog.IsValidLevel(c.LogLevel) {
		return fmt.Errorf("%w: unknown log level %q", ErrInvalid, c.LogLevel)
	}
	if _, err := pathsync.ParseDetection(c.Detection); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := logfile.ParseFormat(c.LogRotateFormat); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.LogRotateMaxSizeMB < 0 {
		return fmt.Errorf("%w: log_rotate_max_size_mb cannot be negative", ErrInvalid)
	}
	if c.LogRotateMaxBackups < 0 {
		return fmt.Errorf("%w: log_rotate_max_backups cannot be negative", ErrInvalid)
	}
	return validateGlobPatterns(KeyExclude, c.Exclude)
}

// Interval returns IntervalSeconds as a duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// LogRotateMaxSizeBytes converts the rotation threshold to bytes. Zero
// disables rotation.
func (c *Config) LogRotateMaxSizeBytes() int64 {
	return int64(c.LogRotateMaxSizeMB) * 1024 * 1024
}

// LogSummary prints the effective configuration at startup.
func (c *Config) LogSummary() {
	logArgs := []interface{}{
		"source", c.Source,
		"replica", c.Replica,
		"interval", c.Interval(),
		"log_file", c.LogFile,
		"log_level", c.LogLevel,
		"detection", c.Detection,
		"lock", c.Lock,
		"metrics", c.Metrics,
	}
	if c.Once {
		logArgs = append(logArgs, "once", true)
	}
	if len(c.Exclude) > 0 {
		logArgs = append(logArgs, "exclude", strings.Join(c.Exclude, ", "))
	}
	if c.MetricsTextfile != "" {
		logArgs = append(logArgs, "metrics_textfile", c.MetricsTextfile)
	}
	if c.LogRotateMaxSizeMB > 0 {
		logArgs = append(logArgs, "log_rotate", fmt.Sprintf("%dMB x%d (%s)",
			c.LogRotateMaxSizeMB, c.LogRotateMaxBackups, c.LogRotateFormat))
	}
	plog.Info("Configuration loaded", logArgs...)
}

// validateGlobPatterns checks if a list of strings are valid glob patterns.
func validateGlobPatterns(fieldName string, patterns []string) error {
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("%w: invalid glob pattern for %s: %q", ErrInvalid, fieldName, pattern)
		}
	}
	return nil
}
