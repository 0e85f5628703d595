package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SessionTimeoutHours != 24 {
		t.Fatalf("SessionTimeoutHours = %d, want 24", cfg.SessionTimeoutHours)
	}
	if cfg.DailyGenerationLimit != 5 {
		t.Fatalf("DailyGenerationLimit = %d, want 5", cfg.DailyGenerationLimit)
	}
	if cfg.RateMaxRequests != 10 || cfg.RateWindowMinutes != 60 {
		t.Fatalf("rate defaults = %d/%dm, want 10/60m", cfg.RateMaxRequests, cfg.RateWindowMinutes)
	}
}

func TestLoad_PathDefaultsUnderBaseDir(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.InvitedUsersFile != filepath.Join(tmpDir, "invited_users.json") {
		t.Errorf("InvitedUsersFile = %q, want under base dir", cfg.InvitedUsersFile)
	}
	if cfg.AuditLogFile != filepath.Join(tmpDir, "security_audit.log") {
		t.Errorf("AuditLogFile = %q, want under base dir", cfg.AuditLogFile)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	body := `{"daily_generation_limit": 10, "session_timeout_hours": 8, "invited_users_file": "/srv/app/invited_users.json"}`
	if err := os.WriteFile(configPath, []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DailyGenerationLimit != 10 {
		t.Fatalf("DailyGenerationLimit = %d, want 10", cfg.DailyGenerationLimit)
	}
	if cfg.SessionTimeoutHours != 8 {
		t.Fatalf("SessionTimeoutHours = %d, want 8", cfg.SessionTimeoutHours)
	}
	if cfg.InvitedUsersFile != "/srv/app/invited_users.json" {
		t.Fatalf("InvitedUsersFile = %q, want explicit path preserved", cfg.InvitedUsersFile)
	}
	// Unset fields still take defaults
	if cfg.RateMaxRequests != 10 {
		t.Fatalf("RateMaxRequests = %d, want default 10", cfg.RateMaxRequests)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()

	t.Setenv("COVERGATE_SESSION_SECRET", "env-secret")
	t.Setenv("COVERGATE_SESSION_TIMEOUT_HOURS", "12")
	t.Setenv("COVERGATE_DAILY_LIMIT", "3")

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SessionSecret != "env-secret" {
		t.Errorf("SessionSecret = %q, want %q", cfg.SessionSecret, "env-secret")
	}
	if cfg.SessionTimeoutHours != 12 {
		t.Errorf("SessionTimeoutHours = %d, want 12", cfg.SessionTimeoutHours)
	}
	if cfg.DailyGenerationLimit != 3 {
		t.Errorf("DailyGenerationLimit = %d, want 3", cfg.DailyGenerationLimit)
	}
}

func TestLoad_EnvOverridesIgnoreGarbage(t *testing.T) {
	tmpDir := t.TempDir()

	t.Setenv("COVERGATE_SESSION_TIMEOUT_HOURS", "not-a-number")
	t.Setenv("COVERGATE_DAILY_LIMIT", "-2")

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SessionTimeoutHours != 24 {
		t.Errorf("SessionTimeoutHours = %d, want default 24", cfg.SessionTimeoutHours)
	}
	if cfg.DailyGenerationLimit != 5 {
		t.Errorf("DailyGenerationLimit = %d, want default 5", cfg.DailyGenerationLimit)
	}
}

func TestMerge_DisabledTools(t *testing.T) {
	base := &Config{DisabledTools: []string{"get_audit_summary"}}
	overlay := &Config{DisabledTools: []string{"get_audit_summary", " get_quota_status "}}

	result := Merge(base, overlay)

	if len(result.DisabledTools) != 2 {
		t.Fatalf("DisabledTools length = %d, want 2 (deduplicated)", len(result.DisabledTools))
	}
	if result.DisabledTools[1] != "get_quota_status" {
		t.Errorf("DisabledTools[1] = %q, want trimmed %q", result.DisabledTools[1], "get_quota_status")
	}
}
