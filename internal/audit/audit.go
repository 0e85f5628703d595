// Package audit writes the append-only security event log. Each event is a
// single line:
//
//	<ts> - SECURITY - INFO - {"timestamp":...,"event_type":...,"user_email":...,"details":{...}}
//
// Lines are never rewritten or reordered. The file format is consumed by
// external monitoring, so it stays stable independently of the diagnostic
// logger.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event kinds recorded by the governance core.
const (
	KindAuthSuccess       = "AUTH_SUCCESS"
	KindAuthFailure       = "AUTH_FAILURE"
	KindFileAccess        = "FILE_ACCESS"
	KindDirectoryAccess   = "DIRECTORY_ACCESS"
	KindRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	KindGeneration        = "COVER_LETTER_GENERATED"
	KindAdminLimitReset   = "ADMIN_LIMIT_RESET"
)

// entry is the JSON payload of one audit line.
type entry struct {
	Timestamp string         `json:"timestamp"`
	EventType string         `json:"event_type"`
	UserEmail string         `json:"user_email"`
	Details   map[string]any `json:"details"`
}

// Log is an append-only audit event sink backed by a line-oriented file.
// Appends are serialized and written with a single write call each, so
// concurrent writers cannot interleave partial lines.
type Log struct {
	path string
	mu   sync.Mutex
	log  *zap.Logger
	now  func() time.Time
}

// New creates an audit log writing to path.
func New(path string, logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{
		path: path,
		log:  logger,
		now:  time.Now,
	}
}

// Record appends one event line. A nil details map is recorded as {}.
func (l *Log) Record(kind, identity string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}

	now := l.now()
	payload, err := json.Marshal(entry{
		Timestamp: now.Format(time.RFC3339),
		EventType: kind,
		UserEmail: identity,
		Details:   details,
	})
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	line := fmt.Sprintf("%s - SECURITY - INFO - %s\n", now.Format("2006-01-02 15:04:05"), payload)

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		l.log.Error("audit log open failed", zap.String("path", l.path), zap.Error(err))
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		l.log.Error("audit log append failed", zap.String("path", l.path), zap.Error(err))
		return fmt.Errorf("append audit log: %w", err)
	}
	return nil
}

// RecordAuthAttempt records an authentication attempt.
func (l *Log) RecordAuthAttempt(email string, success bool, ipAddress string) error {
	kind := KindAuthFailure
	if success {
		kind = KindAuthSuccess
	}
	details := map[string]any{}
	if ipAddress != "" {
		details["ip_address"] = ipAddress
	}
	return l.Record(kind, email, details)
}

// RecordFileAccess records a file access event.
func (l *Log) RecordFileAccess(identity, filePath, action string) error {
	return l.Record(KindFileAccess, identity, map[string]any{
		"file_path": filePath,
		"action":    action,
	})
}

// Stats are aggregate counts over the audit log, classified by event kind.
type Stats struct {
	TotalAuthAttempts   int `json:"total_auth_attempts"`
	SuccessfulLogins    int `json:"successful_logins"`
	FailedLogins        int `json:"failed_logins"`
	FileAccesses        int `json:"file_accesses"`
	RateLimitViolations int `json:"rate_limit_violations"`
	GenerationEvents    int `json:"generation_events"`
	AdminResets         int `json:"admin_resets"`
}

// Aggregate scans the log and counts events by kind. Classification is a
// substring match per line, so partially corrupt lines are counted when the
// kind survives and silently skipped otherwise. A missing log file yields
// zero stats.
func (l *Log) Aggregate() (Stats, error) {
	var stats Stats

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return stats, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	// Audit lines are short, but a corrupt line could be arbitrarily long.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, KindAuthSuccess):
			stats.SuccessfulLogins++
			stats.TotalAuthAttempts++
		case strings.Contains(line, KindAuthFailure):
			stats.FailedLogins++
			stats.TotalAuthAttempts++
		case strings.Contains(line, KindFileAccess):
			stats.FileAccesses++
		case strings.Contains(line, KindRateLimitExceeded):
			stats.RateLimitViolations++
		case strings.Contains(line, KindGeneration):
			stats.GenerationEvents++
		case strings.Contains(line, KindAdminLimitReset):
			stats.AdminResets++
		}
	}
	if err := scanner.Err(); err != nil {
		// A torn tail write should not fail the whole aggregation.
		l.log.Warn("audit log scan stopped early", zap.Error(err))
	}

	return stats, nil
}
