package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/benedictkwok/cover-letter-assistant/internal/db"
	gateerrors "github.com/benedictkwok/cover-letter-assistant/internal/errors"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewRecorder(database, nil)
}

func TestUserStats_UnknownIdentity(t *testing.T) {
	r := newTestRecorder(t)

	_, err := r.UserStats("nobody@x.com")
	if !gateerrors.Is(err, gateerrors.ErrNotFound) {
		t.Errorf("UserStats() error = %v, want NOT_FOUND", err)
	}
}

func TestLogGeneration_BuildsRollup(t *testing.T) {
	r := newTestRecorder(t)

	records := []GenerationRecord{
		{Identity: "A@X.com", SessionID: "s1", ActionType: ActionGenerate,
			CompanyName: "Acme", JobTitle: "Engineer",
			LetterChars: 1000, ProcessingMS: 200, Success: true},
		{Identity: "a@x.com", SessionID: "s2", ActionType: ActionGenerate,
			LetterChars: 2000, ProcessingMS: 400, Success: true},
		{Identity: "a@x.com", SessionID: "s3", ActionType: ActionRefine,
			ProcessingMS: 100, Success: false, ErrorMessage: "upstream timeout"},
	}
	for i, rec := range records {
		if err := r.LogGeneration(rec); err != nil {
			t.Fatalf("LogGeneration(%d) error = %v", i, err)
		}
	}

	stats, err := r.UserStats("a@x.com")
	if err != nil {
		t.Fatalf("UserStats() error = %v", err)
	}
	if stats.TotalGenerations != 2 {
		t.Errorf("TotalGenerations = %d, want 2 (failures excluded)", stats.TotalGenerations)
	}
	if stats.TotalProcessingMS != 700 {
		t.Errorf("TotalProcessingMS = %d, want 700", stats.TotalProcessingMS)
	}
	if math.Abs(stats.AvgLetterChars-1500) > 0.01 {
		t.Errorf("AvgLetterChars = %f, want 1500", stats.AvgLetterChars)
	}
	if stats.FirstUse.After(stats.LastUse) {
		t.Errorf("FirstUse %v after LastUse %v", stats.FirstUse, stats.LastUse)
	}
}

func TestAggregatedStats(t *testing.T) {
	r := newTestRecorder(t)

	for _, rec := range []GenerationRecord{
		{Identity: "a@x.com", ActionType: ActionGenerate, ProcessingMS: 100, Success: true},
		{Identity: "b@x.com", ActionType: ActionGenerate, ProcessingMS: 300, Success: true},
		{Identity: "a@x.com", ActionType: ActionGenerate, ProcessingMS: 200, Success: false},
	} {
		if err := r.LogGeneration(rec); err != nil {
			t.Fatalf("LogGeneration() error = %v", err)
		}
	}

	stats, err := r.AggregatedStats()
	if err != nil {
		t.Fatalf("AggregatedStats() error = %v", err)
	}
	if stats.TotalUsers != 2 {
		t.Errorf("TotalUsers = %d, want 2", stats.TotalUsers)
	}
	if stats.TotalRequests != 3 {
		t.Errorf("TotalRequests = %d, want 3", stats.TotalRequests)
	}
	if stats.TotalGenerations != 2 {
		t.Errorf("TotalGenerations = %d, want 2", stats.TotalGenerations)
	}
	if math.Abs(stats.SuccessRate-2.0/3.0) > 0.001 {
		t.Errorf("SuccessRate = %f, want 0.667", stats.SuccessRate)
	}
	if math.Abs(stats.AvgProcessingMS-200) > 0.01 {
		t.Errorf("AvgProcessingMS = %f, want 200", stats.AvgProcessingMS)
	}

	today := time.Now().Format("2006-01-02")
	if stats.DailyActivity[today] != 3 {
		t.Errorf("DailyActivity[%s] = %d, want 3", today, stats.DailyActivity[today])
	}
	if stats.BusiestDay != today {
		t.Errorf("BusiestDay = %q, want %q", stats.BusiestDay, today)
	}
}

func TestDailyCount(t *testing.T) {
	r := newTestRecorder(t)

	for i := 0; i < 2; i++ {
		if err := r.LogGeneration(GenerationRecord{
			Identity: "a@x.com", ActionType: ActionGenerate, Success: true,
		}); err != nil {
			t.Fatalf("LogGeneration() error = %v", err)
		}
	}

	today := time.Now().Format("2006-01-02")
	count, err := r.DailyCount("A@X.com", today)
	if err != nil {
		t.Fatalf("DailyCount() error = %v", err)
	}
	if count != 2 {
		t.Errorf("DailyCount = %d, want 2", count)
	}

	count, err = r.DailyCount("a@x.com", "1999-01-01")
	if err != nil {
		t.Fatalf("DailyCount() error = %v", err)
	}
	if count != 0 {
		t.Errorf("DailyCount for empty day = %d, want 0", count)
	}
}

func TestAggregatedStats_EmptyDatabase(t *testing.T) {
	r := newTestRecorder(t)

	stats, err := r.AggregatedStats()
	if err != nil {
		t.Fatalf("AggregatedStats() error = %v", err)
	}
	if stats.TotalRequests != 0 || stats.SuccessRate != 0 || stats.AvgProcessingMS != 0 {
		t.Errorf("empty database stats = %+v, want zeros", stats)
	}
}

func TestRecentActivity_ComparesWindows(t *testing.T) {
	r := newTestRecorder(t)

	base := time.Now()
	// Three requests in the last 24h from two users, one in the day before.
	times := []struct {
		identity string
		at       time.Time
	}{
		{"a@x.com", base.Add(-1 * time.Hour)},
		{"a@x.com", base.Add(-2 * time.Hour)},
		{"b@x.com", base.Add(-23 * time.Hour)},
		{"a@x.com", base.Add(-30 * time.Hour)},
	}
	for _, tt := range times {
		at := tt.at
		r.now = func() time.Time { return at }
		if err := r.LogGeneration(GenerationRecord{
			Identity: tt.identity, ActionType: ActionGenerate, Success: true,
		}); err != nil {
			t.Fatalf("LogGeneration() error = %v", err)
		}
	}
	r.now = func() time.Time { return base }

	act, err := r.RecentActivity()
	if err != nil {
		t.Fatalf("RecentActivity() error = %v", err)
	}
	if act.Last24h != 3 {
		t.Errorf("Last24h = %d, want 3", act.Last24h)
	}
	if act.Previous24h != 1 {
		t.Errorf("Previous24h = %d, want 1", act.Previous24h)
	}
	if act.ActiveUsers != 2 {
		t.Errorf("ActiveUsers = %d, want 2", act.ActiveUsers)
	}
	if math.Abs(act.GrowthPct-200) > 0.01 {
		t.Errorf("GrowthPct = %f, want 200", act.GrowthPct)
	}
}

func TestRecentActivity_ZeroPreviousWindow(t *testing.T) {
	r := newTestRecorder(t)

	if err := r.LogGeneration(GenerationRecord{
		Identity: "a@x.com", ActionType: ActionGenerate, Success: true,
	}); err != nil {
		t.Fatalf("LogGeneration() error = %v", err)
	}

	act, err := r.RecentActivity()
	if err != nil {
		t.Fatalf("RecentActivity() error = %v", err)
	}
	if act.GrowthPct != 100 {
		t.Errorf("GrowthPct = %f, want 100 with empty previous window", act.GrowthPct)
	}
}
