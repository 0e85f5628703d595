package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds application configuration.
type Config struct {
	// SessionSecret keys the HMAC over session tokens. When empty, the
	// token service falls back to a fixed default key and logs a warning.
	// Set it via config.json or the COVERGATE_SESSION_SECRET env var.
	SessionSecret string `json:"session_secret,omitempty"`

	// SessionTimeoutHours is how long an issued session token stays valid.
	SessionTimeoutHours int `json:"session_timeout_hours"`

	// DailyGenerationLimit is the number of cover letters a user may
	// generate per local calendar day.
	DailyGenerationLimit int `json:"daily_generation_limit"`

	// RateMaxRequests and RateWindowMinutes are the default sliding-window
	// parameters applied to gated actions. Callers may override per action.
	RateMaxRequests   int `json:"rate_max_requests"`
	RateWindowMinutes int `json:"rate_window_minutes"`

	// InvitedUsersFile is the path of the invitation document. Defaults to
	// invited_users.json under the base directory.
	InvitedUsersFile string `json:"invited_users_file,omitempty"`

	// AuditLogFile is the path of the append-only security audit log.
	// Defaults to security_audit.log under the base directory.
	AuditLogFile string `json:"audit_log_file,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is
	// locked" errors). 0 means use sql.DB default.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		SessionTimeoutHours:  24,
		DailyGenerationLimit: 5,
		RateMaxRequests:      10,
		RateWindowMinutes:    60,
	}
}

// Load loads configuration from baseDir/config.json, fills path defaults
// relative to baseDir, and applies environment overrides. Returns default
// config if the file doesn't exist. The baseDir parameter allows tests to
// use t.TempDir() instead of ~/.covergate.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}

	if cfg.InvitedUsersFile == "" {
		cfg.InvitedUsersFile = filepath.Join(baseDir, "invited_users.json")
	}
	if cfg.AuditLogFile == "" {
		cfg.AuditLogFile = filepath.Join(baseDir, "security_audit.log")
	}

	applyEnv(cfg)
	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return Merge(DefaultConfig(), cfg), nil
}

// applyEnv overrides config values from environment variables. The secret
// in particular should come from the environment rather than a file on
// shared hosts.
func applyEnv(cfg *Config) {
	if v := os.Getenv("COVERGATE_SESSION_SECRET"); v != "" {
		cfg.SessionSecret = v
	}
	if v := os.Getenv("COVERGATE_SESSION_TIMEOUT_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SessionTimeoutHours = n
		}
	}
	if v := os.Getenv("COVERGATE_DAILY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DailyGenerationLimit = n
		}
	}
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.SessionSecret = overlay.SessionSecret
	if result.SessionSecret == "" {
		result.SessionSecret = base.SessionSecret
	}

	result.SessionTimeoutHours = overlay.SessionTimeoutHours
	if result.SessionTimeoutHours == 0 {
		result.SessionTimeoutHours = base.SessionTimeoutHours
	}

	result.DailyGenerationLimit = overlay.DailyGenerationLimit
	if result.DailyGenerationLimit == 0 {
		result.DailyGenerationLimit = base.DailyGenerationLimit
	}

	result.RateMaxRequests = overlay.RateMaxRequests
	if result.RateMaxRequests == 0 {
		result.RateMaxRequests = base.RateMaxRequests
	}

	result.RateWindowMinutes = overlay.RateWindowMinutes
	if result.RateWindowMinutes == 0 {
		result.RateWindowMinutes = base.RateWindowMinutes
	}

	result.InvitedUsersFile = overlay.InvitedUsersFile
	if result.InvitedUsersFile == "" {
		result.InvitedUsersFile = base.InvitedUsersFile
	}

	result.AuditLogFile = overlay.AuditLogFile
	if result.AuditLogFile == "" {
		result.AuditLogFile = base.AuditLogFile
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
