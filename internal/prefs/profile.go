package prefs

import (
	"strings"
	"time"
)

// List caps. Learned lists are ordered sets: duplicates collapse to the
// most recent occurrence and the oldest entries fall off first.
const (
	MaxHighlights     = 50
	MaxRemovedWords   = 50
	MaxAddedPhrases   = 50
	MaxHistoryEntries = 20

	// maxJobTextChars bounds the job text recorded per history entry.
	maxJobTextChars = 100
)

// EditPatterns are the learned word-level editing habits.
type EditPatterns struct {
	RemovedWords []string `json:"commonly_removed_words"`
	AddedPhrases []string `json:"commonly_added_phrases"`
}

// HistoryEntry is one job application recorded against the profile.
type HistoryEntry struct {
	Date           string   `json:"date"`
	JobText        string   `json:"job_text"`
	HighlightsUsed []string `json:"highlights_used"`
	SessionID      string   `json:"session_id"`
}

// Profile is the per-identity preference document. Created lazily on first
// use; mutated after every accepted edit; reset keeps the identity key.
type Profile struct {
	Identity            string         `json:"user_email"`
	PreferredHighlights []string       `json:"preferred_highlights"`
	EditPatterns        EditPatterns   `json:"edit_patterns"`
	ApplicationHistory  []HistoryEntry `json:"job_application_history"`
	UsageCount          int            `json:"usage_count"`
	LastUpdated         time.Time      `json:"last_updated"`
}

// mergeCapped appends incoming entries to existing, collapses duplicates to
// their most recent occurrence, and trims to the most recent max entries.
func mergeCapped(existing, incoming []string, max int) []string {
	combined := make([]string, 0, len(existing)+len(incoming))
	combined = append(combined, existing...)
	combined = append(combined, incoming...)

	// Walk backwards so the newest occurrence of a duplicate wins.
	seen := make(map[string]bool, len(combined))
	reversed := make([]string, 0, len(combined))
	for i := len(combined) - 1; i >= 0; i-- {
		s := strings.TrimSpace(combined[i])
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		reversed = append(reversed, s)
		if len(reversed) == max {
			break
		}
	}

	if len(reversed) == 0 {
		return nil
	}
	out := make([]string, len(reversed))
	for i, s := range reversed {
		out[len(out)-1-i] = s
	}
	return out
}

// lastN returns the trailing n entries of list (all of them when shorter).
func lastN(list []string, n int) []string {
	if len(list) <= n {
		return list
	}
	return list[len(list)-n:]
}

// truncateJobText bounds the recorded job text, marking the cut with an
// ellipsis. Counts runes, not bytes.
func truncateJobText(text string) string {
	runes := []rune(text)
	if len(runes) <= maxJobTextChars {
		return text
	}
	return string(runes[:maxJobTextChars]) + "..."
}
