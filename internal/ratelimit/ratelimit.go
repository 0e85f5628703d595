// Package ratelimit implements sliding-window admission control per
// (identity, action). Request timestamps live in the shared SQLite store;
// prune, count, and append happen inside one transaction so concurrent
// requests for the same identity cannot lose an increment.
package ratelimit

import (
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/benedictkwok/cover-letter-assistant/internal/audit"
	"github.com/benedictkwok/cover-letter-assistant/internal/identity"
)

// Limiter admits or rejects actions against a sliding window.
type Limiter struct {
	db    *sql.DB
	audit *audit.Log
	log   *zap.Logger
	now   func() time.Time
}

// NewLimiter creates a limiter over the shared database. The audit log
// receives a RATE_LIMIT_EXCEEDED event for every rejection.
func NewLimiter(db *sql.DB, auditLog *audit.Log, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		db:    db,
		audit: auditLog,
		log:   logger,
		now:   time.Now,
	}
}

// Admit decides whether one more request for (identity, action) fits inside
// the trailing window, recording the request timestamp when it does. The
// window slides continuously: entries older than now-window are pruned on
// every call, and a rejection adds no timestamp. Different actions have
// fully independent windows.
//
// Admission is a pure boolean decision: storage failures deny (fail closed)
// and are logged, never surfaced.
func (l *Limiter) Admit(email, action string, maxRequests int, window time.Duration) bool {
	id := identity.Normalize(email)
	now := l.now().Unix()
	cutoff := now - int64(window.Seconds())

	tx, err := l.db.Begin()
	if err != nil {
		l.log.Error("rate limiter begin failed", zap.Error(err))
		return false
	}
	defer tx.Rollback()

	// Prune everything at or before the cutoff; surviving entries all
	// satisfy ts > now-window. Pruning is idempotent, so a retried call
	// after a crash sees the same window.
	if _, err := tx.Exec(
		`DELETE FROM rate_events WHERE action = ? AND identity = ? AND ts <= ?`,
		action, id, cutoff,
	); err != nil {
		l.log.Error("rate limiter prune failed", zap.String("action", action), zap.Error(err))
		return false
	}

	var count int
	if err := tx.QueryRow(
		`SELECT COUNT(*) FROM rate_events WHERE action = ? AND identity = ?`,
		action, id,
	).Scan(&count); err != nil {
		l.log.Error("rate limiter count failed", zap.String("action", action), zap.Error(err))
		return false
	}

	if count >= maxRequests {
		// Keep the prune even though the request is rejected.
		if err := tx.Commit(); err != nil {
			l.log.Error("rate limiter commit failed", zap.Error(err))
		}
		if l.audit != nil {
			if err := l.audit.Record(audit.KindRateLimitExceeded, id, map[string]any{
				"action":        action,
				"request_count": count,
				"max_allowed":   maxRequests,
			}); err != nil {
				l.log.Warn("rate limit audit event dropped", zap.Error(err))
			}
		}
		return false
	}

	if _, err := tx.Exec(
		`INSERT INTO rate_events (action, identity, ts) VALUES (?, ?, ?)`,
		action, id, now,
	); err != nil {
		l.log.Error("rate limiter append failed", zap.String("action", action), zap.Error(err))
		return false
	}

	if err := tx.Commit(); err != nil {
		l.log.Error("rate limiter commit failed", zap.Error(err))
		return false
	}
	return true
}

// WindowCount returns the number of recorded requests currently inside the
// window, without admitting anything. Used by the admin surface.
func (l *Limiter) WindowCount(email, action string, window time.Duration) (int, error) {
	id := identity.Normalize(email)
	cutoff := l.now().Unix() - int64(window.Seconds())

	var count int
	err := l.db.QueryRow(
		`SELECT COUNT(*) FROM rate_events WHERE action = ? AND identity = ? AND ts > ?`,
		action, id, cutoff,
	).Scan(&count)
	return count, err
}
