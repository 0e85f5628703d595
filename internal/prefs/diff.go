package prefs

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Replacement is a replace span from the edit alignment: the user swapped
// one run of words for another. Replacements are an immediate learning
// signal only; they are not persisted as pairs.
type Replacement struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// DiffResult is the word-level edit script between a generated letter and
// its user-edited version.
type DiffResult struct {
	Removals     []string
	Additions    []string
	Replacements []Replacement
}

// Empty reports whether the diff carries no signal.
func (d DiffResult) Empty() bool {
	return len(d.Removals) == 0 && len(d.Additions) == 0 && len(d.Replacements) == 0
}

// AnalyzeEdits aligns the two texts as whitespace-separated word sequences
// and classifies the minimal edit script. The alignment is difflib's
// longest-matching-block recursion; when several minimal scripts exist its
// tie-breaking decides which words count as replaced rather than
// removed/added, and tests pin that choice.
//
// Words the user took out land in Removals one word at a time, from both
// delete spans and the original side of replace spans. Words the user put
// in land in Additions, with multi-word insert spans joined into a single
// phrase entry so phrase-level preferences survive.
//
// Identical or empty inputs produce an empty diff: nothing to learn.
func AnalyzeEdits(original, edited string) DiffResult {
	if original == "" || edited == "" || original == edited {
		return DiffResult{}
	}

	o := strings.Fields(original)
	e := strings.Fields(edited)

	var result DiffResult
	matcher := difflib.NewMatcher(o, e)
	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'd':
			result.Removals = append(result.Removals, o[op.I1:op.I2]...)
		case 'i':
			result.Additions = append(result.Additions, joinSpan(e[op.J1:op.J2])...)
		case 'r':
			result.Removals = append(result.Removals, o[op.I1:op.I2]...)
			result.Additions = append(result.Additions, joinSpan(e[op.J1:op.J2])...)
			result.Replacements = append(result.Replacements, Replacement{
				From: strings.Join(o[op.I1:op.I2], " "),
				To:   strings.Join(e[op.J1:op.J2], " "),
			})
		}
	}
	return result
}

// joinSpan keeps a single word as-is and joins a longer run into one
// phrase entry.
func joinSpan(words []string) []string {
	if len(words) <= 1 {
		return words
	}
	return []string{strings.Join(words, " ")}
}
