// Package quota tracks per-identity daily generation counts. The store only
// ever holds the current local calendar date: every read discards all other
// date keys, so the reset at midnight is implicit eviction rather than a
// scheduled job. There is deliberately no multi-day history here; long-term
// analytics live in the analytics package.
package quota

import (
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/benedictkwok/cover-letter-assistant/internal/audit"
	"github.com/benedictkwok/cover-letter-assistant/internal/identity"
)

// Status describes an identity's standing against today's quota.
type Status struct {
	Allowed   bool      `json:"allowed"`
	UsedToday int       `json:"used_today"`
	Remaining int       `json:"remaining"`
	Limit     int       `json:"daily_limit"`
	ResetsAt  time.Time `json:"reset_time"`
}

// DayStats aggregates today's usage across all identities, for the admin
// surface.
type DayStats struct {
	Date        string         `json:"date"`
	TotalToday  int            `json:"total_today"`
	UsersToday  int            `json:"users_today"`
	UsageByUser map[string]int `json:"usage_by_user"`
}

// Tracker counts generations per identity per local calendar day.
type Tracker struct {
	db    *sql.DB
	audit *audit.Log
	limit int
	log   *zap.Logger
	now   func() time.Time
}

// NewTracker creates a tracker with the given daily limit.
func NewTracker(db *sql.DB, auditLog *audit.Log, limit int, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		db:    db,
		audit: auditLog,
		limit: limit,
		log:   logger,
		now:   time.Now,
	}
}

// Limit returns the configured daily limit.
func (t *Tracker) Limit() int { return t.limit }

// dayKey is the local calendar date used as the sole retention key.
func (t *Tracker) dayKey(now time.Time) string {
	return now.Format("2006-01-02")
}

// resetTime is local midnight of the day following now.
func (t *Tracker) resetTime(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
}

// Status reports the identity's usage for today. Every call first evicts
// rows for any other date, so the store self-truncates to a single day.
// Limit enforcement is the caller's job: Status is the check, Record the act.
func (t *Tracker) Status(email string) (Status, error) {
	id := identity.Normalize(email)
	now := t.now()
	today := t.dayKey(now)

	status := Status{
		Limit:    t.limit,
		ResetsAt: t.resetTime(now),
	}

	tx, err := t.db.Begin()
	if err != nil {
		return status, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM daily_usage WHERE day != ?`, today); err != nil {
		return status, err
	}

	var used int
	err = tx.QueryRow(
		`SELECT count FROM daily_usage WHERE day = ? AND identity = ?`, today, id,
	).Scan(&used)
	if err != nil && err != sql.ErrNoRows {
		return status, err
	}

	if err := tx.Commit(); err != nil {
		return status, err
	}

	status.UsedToday = used
	status.Allowed = used < t.limit
	status.Remaining = t.limit - used
	if status.Remaining < 0 {
		status.Remaining = 0
	}
	return status, nil
}

// Record counts one generation for the identity today. It is deliberately
// unconditional: the limit was checked via Status before the gated action
// ran, and an action that already happened must be counted even past the
// limit. Returns whether the count was persisted.
func (t *Tracker) Record(email string) bool {
	id := identity.Normalize(email)
	now := t.now()
	today := t.dayKey(now)

	if _, err := t.db.Exec(
		`INSERT INTO daily_usage (day, identity, count) VALUES (?, ?, 1)
		 ON CONFLICT(day, identity) DO UPDATE SET count = count + 1`,
		today, id,
	); err != nil {
		t.log.Error("daily usage record failed", zap.String("identity", id), zap.Error(err))
		return false
	}

	var count int
	if err := t.db.QueryRow(
		`SELECT count FROM daily_usage WHERE day = ? AND identity = ?`, today, id,
	).Scan(&count); err != nil {
		count = 0
	}

	if t.audit != nil {
		if err := t.audit.Record(audit.KindGeneration, id, map[string]any{
			"daily_count": count,
			"date":        today,
		}); err != nil {
			t.log.Warn("generation audit event dropped", zap.Error(err))
		}
	}
	return true
}

// Reset clears the identity's count for today. Administrative action only.
func (t *Tracker) Reset(email string) error {
	id := identity.Normalize(email)
	today := t.dayKey(t.now())

	if _, err := t.db.Exec(
		`DELETE FROM daily_usage WHERE day = ? AND identity = ?`, today, id,
	); err != nil {
		return err
	}

	if t.audit != nil {
		if err := t.audit.Record(audit.KindAdminLimitReset, id, map[string]any{
			"date":         today,
			"admin_action": true,
		}); err != nil {
			t.log.Warn("limit reset audit event dropped", zap.Error(err))
		}
	}
	return nil
}

// DailyStats aggregates today's usage for the admin surface.
func (t *Tracker) DailyStats() (DayStats, error) {
	today := t.dayKey(t.now())
	stats := DayStats{Date: today, UsageByUser: map[string]int{}}

	rows, err := t.db.Query(
		`SELECT identity, count FROM daily_usage WHERE day = ?`, today,
	)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var count int
		if err := rows.Scan(&id, &count); err != nil {
			return stats, err
		}
		stats.UsageByUser[id] = count
		stats.TotalToday += count
		stats.UsersToday++
	}
	return stats, rows.Err()
}
