// Package analytics records every generation request in the usage log and
// maintains per-identity rollups, then serves the statistics views built on
// them. The log is the source of truth; usage_summary is a running rollup
// kept in the same transaction so the two never drift.
package analytics

import (
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/benedictkwok/cover-letter-assistant/internal/errors"
	"github.com/benedictkwok/cover-letter-assistant/internal/identity"
)

// Action types recorded against usage_logs.
const (
	ActionGenerate = "generate_cover_letter"
	ActionRefine   = "refine_cover_letter"
)

// GenerationRecord is one request outcome to log.
type GenerationRecord struct {
	Identity     string
	SessionID    string
	ActionType   string
	CompanyName  string
	JobTitle     string
	LetterChars  int
	ProcessingMS int64
	Success      bool
	ErrorMessage string
}

// UserStats is the per-identity rollup.
type UserStats struct {
	Identity          string    `json:"user_email"`
	FirstUse          time.Time `json:"first_use"`
	LastUse           time.Time `json:"last_use"`
	TotalGenerations  int       `json:"total_generations"`
	TotalProcessingMS int64     `json:"total_processing_ms"`
	AvgLetterChars    float64   `json:"avg_letter_chars"`
}

// Stats is the system-wide usage view.
type Stats struct {
	TotalUsers       int            `json:"total_users"`
	TotalRequests    int            `json:"total_requests"`
	TotalGenerations int            `json:"total_generations"`
	SuccessRate      float64        `json:"success_rate"`
	AvgProcessingMS  float64        `json:"avg_processing_ms"`
	DailyActivity    map[string]int `json:"daily_activity"`
	BusiestDay       string         `json:"busiest_day,omitempty"`
}

// Activity compares the trailing 24 hours to the 24 hours before it.
type Activity struct {
	Last24h     int     `json:"requests_last_24h"`
	Previous24h int     `json:"requests_previous_24h"`
	GrowthPct   float64 `json:"growth_pct"`
	ActiveUsers int     `json:"active_users_24h"`
}

// Recorder writes and reads the usage log.
type Recorder struct {
	db  *sql.DB
	log *zap.Logger
	now func() time.Time
}

// NewRecorder creates a usage recorder over the shared database.
func NewRecorder(db *sql.DB, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		db:  db,
		log: logger,
		now: time.Now,
	}
}

// LogGeneration appends one request to the usage log and folds it into the
// identity's rollup in the same transaction. Failed requests are logged but
// only successes advance the generation count and letter-length average.
func (r *Recorder) LogGeneration(rec GenerationRecord) error {
	id := identity.Normalize(rec.Identity)
	ts := r.now().Unix()
	success := 0
	avgChars := 0.0
	if rec.Success {
		success = 1
		avgChars = float64(rec.LetterChars)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return errors.NewPersistence(err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO usage_logs
			(identity, session_id, action_type, company_name, job_title,
			 letter_chars, processing_ms, success, error_message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rec.SessionID, rec.ActionType, rec.CompanyName, rec.JobTitle,
		rec.LetterChars, rec.ProcessingMS, success, rec.ErrorMessage, ts)
	if err != nil {
		return errors.NewPersistence(err)
	}

	_, err = tx.Exec(
		`INSERT INTO usage_summary
			(identity, first_use, last_use, total_generations, total_processing_ms, avg_letter_chars)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(identity) DO UPDATE SET
			last_use = excluded.last_use,
			total_generations = total_generations + excluded.total_generations,
			total_processing_ms = total_processing_ms + excluded.total_processing_ms,
			avg_letter_chars = CASE
				WHEN excluded.total_generations = 0 THEN avg_letter_chars
				ELSE (avg_letter_chars * total_generations + excluded.avg_letter_chars)
					/ (total_generations + 1)
			END`,
		id, ts, ts, success, rec.ProcessingMS, avgChars)
	if err != nil {
		return errors.NewPersistence(err)
	}

	if err := tx.Commit(); err != nil {
		return errors.NewPersistence(err)
	}
	r.log.Debug("usage recorded",
		zap.String("identity", id),
		zap.String("action", rec.ActionType),
		zap.Bool("success", rec.Success))
	return nil
}

// UserStats returns the identity's rollup, or NOT_FOUND when the identity
// has never made a request.
func (r *Recorder) UserStats(email string) (*UserStats, error) {
	id := identity.Normalize(email)

	var stats UserStats
	var firstUse, lastUse int64
	err := r.db.QueryRow(
		`SELECT first_use, last_use, total_generations, total_processing_ms, avg_letter_chars
		 FROM usage_summary WHERE identity = ?`, id,
	).Scan(&firstUse, &lastUse, &stats.TotalGenerations, &stats.TotalProcessingMS, &stats.AvgLetterChars)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("no usage recorded for " + id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	stats.Identity = id
	stats.FirstUse = time.Unix(firstUse, 0)
	stats.LastUse = time.Unix(lastUse, 0)
	return &stats, nil
}

// AggregatedStats returns the system-wide view: totals, success rate,
// average processing time, and per-day request counts for the last 30 days.
func (r *Recorder) AggregatedStats() (*Stats, error) {
	stats := &Stats{DailyActivity: make(map[string]int)}

	var successes int
	var totalMS sql.NullFloat64
	err := r.db.QueryRow(
		`SELECT COUNT(*), COUNT(DISTINCT identity),
			COALESCE(SUM(success), 0), AVG(processing_ms)
		 FROM usage_logs`,
	).Scan(&stats.TotalRequests, &stats.TotalUsers, &successes, &totalMS)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	stats.TotalGenerations = successes
	if stats.TotalRequests > 0 {
		stats.SuccessRate = float64(successes) / float64(stats.TotalRequests)
	}
	if totalMS.Valid {
		stats.AvgProcessingMS = totalMS.Float64
	}

	cutoff := r.now().AddDate(0, 0, -30).Unix()
	rows, err := r.db.Query(
		`SELECT date(created_at, 'unixepoch', 'localtime') AS day, COUNT(*)
		 FROM usage_logs WHERE created_at >= ?
		 GROUP BY day ORDER BY day`, cutoff)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()
	for rows.Next() {
		var day string
		var count int
		if err := rows.Scan(&day, &count); err != nil {
			return nil, errors.NewInternal(err)
		}
		stats.DailyActivity[day] = count
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	best := 0
	for day, count := range stats.DailyActivity {
		if count > best || (count == best && day > stats.BusiestDay) {
			best = count
			stats.BusiestDay = day
		}
	}
	return stats, nil
}

// DailyCount returns the identity's request count for one local day
// (formatted 2006-01-02).
func (r *Recorder) DailyCount(email, day string) (int, error) {
	id := identity.Normalize(email)

	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM usage_logs
		 WHERE identity = ? AND date(created_at, 'unixepoch', 'localtime') = ?`,
		id, day,
	).Scan(&count)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return count, nil
}

// RecentActivity compares the trailing 24 hours against the 24 hours before
// it. Growth is reported as a percentage; a previous window of zero with any
// current traffic reads as 100% growth.
func (r *Recorder) RecentActivity() (*Activity, error) {
	now := r.now()
	dayAgo := now.Add(-24 * time.Hour).Unix()
	twoDaysAgo := now.Add(-48 * time.Hour).Unix()

	act := &Activity{}
	err := r.db.QueryRow(
		`SELECT COUNT(*), COUNT(DISTINCT identity)
		 FROM usage_logs WHERE created_at > ?`, dayAgo,
	).Scan(&act.Last24h, &act.ActiveUsers)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	err = r.db.QueryRow(
		`SELECT COUNT(*) FROM usage_logs WHERE created_at > ? AND created_at <= ?`,
		twoDaysAgo, dayAgo,
	).Scan(&act.Previous24h)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	switch {
	case act.Previous24h > 0:
		act.GrowthPct = float64(act.Last24h-act.Previous24h) / float64(act.Previous24h) * 100
	case act.Last24h > 0:
		act.GrowthPct = 100
	}
	return act, nil
}
