package prefs

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/benedictkwok/cover-letter-assistant/internal/identity"
)

// SessionUpdate carries one generation session's learning signal: the
// highlights the user selected, the letter as generated versus as edited,
// and the job context for the history entry.
type SessionUpdate struct {
	Highlights     []string
	OriginalLetter string
	EditedLetter   string
	JobText        string
	SessionID      string
}

// Engine learns per-user writing preferences from generation sessions and
// turns them into prompt hints for later generations.
type Engine struct {
	store *Store
	log   *zap.Logger
	now   func() time.Time
}

// NewEngine creates a preference engine over the given store.
func NewEngine(store *Store, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store: store,
		log:   logger,
		now:   time.Now,
	}
}

// LearnFromSession folds one session into the identity's profile: selected
// highlights merge into the preferred list, the original/edited diff feeds
// the edit patterns, and a truncated history entry is appended. Each list
// keeps its most recent entries up to a fixed cap.
func (e *Engine) LearnFromSession(email string, update SessionUpdate) (DiffResult, error) {
	id := identity.Normalize(email)
	profile, err := e.store.Load(id)
	if err != nil {
		return DiffResult{}, err
	}

	diff := AnalyzeEdits(update.OriginalLetter, update.EditedLetter)

	profile.PreferredHighlights = mergeCapped(profile.PreferredHighlights, update.Highlights, MaxHighlights)
	profile.EditPatterns.RemovedWords = mergeCapped(profile.EditPatterns.RemovedWords, diff.Removals, MaxRemovedWords)
	profile.EditPatterns.AddedPhrases = mergeCapped(profile.EditPatterns.AddedPhrases, diff.Additions, MaxAddedPhrases)

	profile.ApplicationHistory = append(profile.ApplicationHistory, HistoryEntry{
		Date:           e.now().Format(time.RFC3339),
		JobText:        truncateJobText(update.JobText),
		HighlightsUsed: update.Highlights,
		SessionID:      update.SessionID,
	})
	if n := len(profile.ApplicationHistory); n > MaxHistoryEntries {
		profile.ApplicationHistory = profile.ApplicationHistory[n-MaxHistoryEntries:]
	}

	profile.UsageCount++

	if err := e.store.Save(profile); err != nil {
		return DiffResult{}, err
	}
	e.log.Debug("session preferences learned",
		zap.String("identity", id),
		zap.Int("removed_words", len(diff.Removals)),
		zap.Int("added_phrases", len(diff.Additions)),
		zap.Int("usage_count", profile.UsageCount))
	return diff, nil
}

// Profile returns the stored profile for the identity.
func (e *Engine) Profile(email string) (*Profile, error) {
	return e.store.Load(email)
}

// Reset clears everything learned for the identity.
func (e *Engine) Reset(email string) error {
	return e.store.Reset(email)
}

// PersonalizationContext renders the identity's learned preferences as up to
// three hint lines for the generation prompt. An identity with no learned
// signal gets an empty string so the prompt stays untouched.
func (e *Engine) PersonalizationContext(email string) (string, error) {
	profile, err := e.store.Load(email)
	if err != nil {
		return "", err
	}

	var lines []string
	if hl := lastN(profile.PreferredHighlights, 5); len(hl) > 0 {
		lines = append(lines, fmt.Sprintf(
			"The user typically likes to highlight these strengths: %s", strings.Join(hl, ", ")))
	}
	if phrases := multiWord(profile.EditPatterns.AddedPhrases, 3); len(phrases) > 0 {
		lines = append(lines, fmt.Sprintf(
			"The user often includes phrases like: %s", strings.Join(phrases, "; ")))
	}
	if removed := lastN(profile.EditPatterns.RemovedWords, 5); len(removed) > 0 {
		lines = append(lines, fmt.Sprintf(
			"The user typically avoids these words/phrases: %s", strings.Join(removed, ", ")))
	}
	return strings.Join(lines, "\n"), nil
}

// multiWord picks up to max entries that contain more than one word,
// preferring the most recent.
func multiWord(list []string, max int) []string {
	var out []string
	for i := len(list) - 1; i >= 0 && len(out) < max; i-- {
		if strings.Contains(strings.TrimSpace(list[i]), " ") {
			out = append(out, list[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
