// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/add0794/automated-file-mover/internal/validation"
)

// Config holds the application configuration.
type Config struct {
	Watch   WatchConfig
	Mover   MoverConfig
	Journal JournalConfig
	Logger  LoggerConfig
	Notify  NotifyConfig
}

// WatchConfig holds watch root configuration.
type WatchConfig struct {
	// Dir is the single directory being observed (default: ~/WatchZone)
	Dir string `json:"watch_dir" validate:"required"`
	// QuietPeriod is how long a path must stay unchanged before it is
	// considered stable (default: 2s)
	QuietPeriod time.Duration `json:"quiet_period" validate:"-"`
}

// MoverConfig holds move policy configuration.
type MoverConfig struct {
	// DestinationRoot bounds where entries may be moved to (default: home directory)
	DestinationRoot string `json:"destination_root" validate:"required"`
	// MaxAttempts is the retry budget per destination (default: 3)
	MaxAttempts int `json:"max_attempts" validate:"gte=1,lte=10"`
	// BackoffBase is the first retry delay, doubled per attempt (default: 500ms)
	BackoffBase time.Duration `json:"backoff_base" validate:"-"`
	// BackoffCap limits the retry delay growth (default: 8s)
	BackoffCap time.Duration `json:"backoff_cap" validate:"-"`
}

// JournalConfig holds the move journal configuration.
type JournalConfig struct {
	// Path is the Badger database directory (default: ~/.watchzone/journal)
	Path string `json:"journal_path" validate:"required"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string `json:"log_level" validate:"oneof=debug info warn error"`
	Format string `json:"log_format" validate:"omitempty,oneof=json pretty"`
}

// NotifyConfig holds notification configuration.
type NotifyConfig struct {
	// Desktop enables D-Bus desktop notifications (default: true)
	Desktop bool `json:"notify_desktop"`
	// Email enables SMTP notifications (default: false)
	Email          bool   `json:"notify_email"`
	EmailSender    string `json:"email_sender" validate:"omitempty,email"`
	EmailPassword  string `json:"-"`
	EmailRecipient string `json:"email_recipient" validate:"omitempty,email"`
	SMTPHost       string `json:"smtp_host"`
	SMTPPort       int    `json:"smtp_port" validate:"gte=1,lte=65535"`
}

// Flags carries raw command-line flag values into Load. Cobra owns flag
// parsing, so values arrive as strings and empty means "not set".
type Flags struct {
	WatchDir        string
	QuietPeriod     string
	DestinationRoot string
	MaxAttempts     string
	JournalPath     string
	LogLevel        string
	LogFormat       string
	NotifyDesktop   string
	NotifyEmail     string
	EmailRecipient  string
	EnvFile         string
}

// Load builds configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(flags Flags) (*Config, error) {
	envFile := flags.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(envFile)

	cfg := &Config{
		Watch: WatchConfig{
			Dir: getConfigValue(flags.WatchDir, "WATCH_DIR", ""),
		},
		Mover: MoverConfig{
			DestinationRoot: getConfigValue(flags.DestinationRoot, "DESTINATION_ROOT", ""),
			MaxAttempts:     getIntConfigValue(flags.MaxAttempts, "MAX_ATTEMPTS", 3),
		},
		Journal: JournalConfig{
			Path: getConfigValue(flags.JournalPath, "JOURNAL_PATH", ""),
		},
		Logger: LoggerConfig{
			Level:  strings.ToLower(getConfigValue(flags.LogLevel, "LOG_LEVEL", "info")),
			Format: strings.ToLower(getConfigValue(flags.LogFormat, "LOG_FORMAT", "")),
		},
		Notify: NotifyConfig{
			Desktop:        getBoolConfigValue(flags.NotifyDesktop, "NOTIFY_DESKTOP", true),
			Email:          getBoolConfigValue(flags.NotifyEmail, "NOTIFY_EMAIL", false),
			EmailSender:    getConfigValue("", "EMAIL_SENDER", ""),
			EmailPassword:  getConfigValue("", "EMAIL_PASSWORD", ""),
			EmailRecipient: getConfigValue(flags.EmailRecipient, "EMAIL_RECIPIENT", ""),
			SMTPHost:       getConfigValue("", "SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:       getIntConfigValue("", "SMTP_PORT", 465),
		},
	}

	// Parse durations.
	quietStr := getConfigValue(flags.QuietPeriod, "QUIET_PERIOD", "2s")
	quiet, err := time.ParseDuration(quietStr)
	if err != nil {
		return nil, fmt.Errorf("invalid quiet period %q: %w", quietStr, err)
	}
	cfg.Watch.QuietPeriod = quiet

	backoffBaseStr := getConfigValue("", "BACKOFF_BASE", "500ms")
	backoffBase, err := time.ParseDuration(backoffBaseStr)
	if err != nil {
		return nil, fmt.Errorf("invalid backoff base %q: %w", backoffBaseStr, err)
	}
	cfg.Mover.BackoffBase = backoffBase

	backoffCapStr := getConfigValue("", "BACKOFF_CAP", "8s")
	backoffCap, err := time.ParseDuration(backoffCapStr)
	if err != nil {
		return nil, fmt.Errorf("invalid backoff cap %q: %w", backoffCapStr, err)
	}
	cfg.Mover.BackoffCap = backoffCap

	// Expand paths.
	if err := cfg.expandWatchDir(); err != nil {
		return nil, fmt.Errorf("invalid watch dir: %w", err)
	}
	if err := cfg.expandDestinationRoot(); err != nil {
		return nil, fmt.Errorf("invalid destination root: %w", err)
	}
	if err := cfg.expandJournalPath(); err != nil {
		return nil, fmt.Errorf("invalid journal path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all config values are present and consistent.
func (c *Config) Validate() error {
	if err := validation.New().Validate(c); err != nil {
		return err
	}

	if c.Watch.QuietPeriod <= 0 {
		return fmt.Errorf("quiet period must be positive, got %s", c.Watch.QuietPeriod)
	}
	if c.Mover.BackoffBase <= 0 {
		return fmt.Errorf("backoff base must be positive, got %s", c.Mover.BackoffBase)
	}
	if c.Mover.BackoffCap < c.Mover.BackoffBase {
		return fmt.Errorf("backoff cap %s is below backoff base %s", c.Mover.BackoffCap, c.Mover.BackoffBase)
	}

	// The journal must not live inside the watch root or every write to it
	// would surface as a watch event.
	if isWithin(c.Journal.Path, c.Watch.Dir) {
		return fmt.Errorf("journal path %s must not be inside the watch dir %s", c.Journal.Path, c.Watch.Dir)
	}

	if c.Notify.Email {
		if c.Notify.EmailSender == "" {
			return fmt.Errorf("email notifications enabled but EMAIL_SENDER is not set")
		}
		if c.Notify.EmailPassword == "" {
			return fmt.Errorf("email notifications enabled but EMAIL_PASSWORD is not set")
		}
	}

	return nil
}

// expandWatchDir expands ~ and makes the path absolute.
// Defaults to ~/WatchZone.
func (c *Config) expandWatchDir() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "WatchZone")

	expanded, err := expandPath(c.Watch.Dir, defaultPath)
	if err != nil {
		return err
	}
	c.Watch.Dir = expanded
	return nil
}

// expandDestinationRoot expands ~ and makes the path absolute.
// Defaults to the home directory.
func (c *Config) expandDestinationRoot() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	expanded, err := expandPath(c.Mover.DestinationRoot, homeDir)
	if err != nil {
		return err
	}
	c.Mover.DestinationRoot = expanded
	return nil
}

// expandJournalPath expands ~ and makes the path absolute.
// Defaults to ~/.watchzone/journal.
func (c *Config) expandJournalPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, ".watchzone", "journal")

	expanded, err := expandPath(c.Journal.Path, defaultPath)
	if err != nil {
		return err
	}
	c.Journal.Path = expanded
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// isWithin reports whether path sits at or below root after cleaning.
func isWithin(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=value.
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present.
		value = strings.Trim(value, `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
