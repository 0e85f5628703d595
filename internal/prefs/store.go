package prefs

import (
	"database/sql"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/benedictkwok/cover-letter-assistant/internal/errors"
	"github.com/benedictkwok/cover-letter-assistant/internal/identity"
)

// Store persists preference profiles, one row per identity.
type Store struct {
	db  *sql.DB
	log *zap.Logger
	now func() time.Time
}

// NewStore creates a profile store over the shared database.
func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:  db,
		log: logger,
		now: time.Now,
	}
}

// Load returns the identity's profile, or a fresh default when none exists
// yet. Profiles are created lazily; absence is not an error. A corrupt
// stored column degrades to an empty list with a warning rather than
// failing the read.
func (s *Store) Load(email string) (*Profile, error) {
	id := identity.Normalize(email)

	var (
		highlightsJSON, removedJSON, addedJSON, historyJSON sql.NullString
		usageCount                                          int
		lastUpdated                                         int64
	)
	err := s.db.QueryRow(
		`SELECT highlights_json, removed_words_json, added_phrases_json, history_json,
			usage_count, last_updated
		 FROM preference_profiles WHERE identity = ?`, id,
	).Scan(&highlightsJSON, &removedJSON, &addedJSON, &historyJSON, &usageCount, &lastUpdated)
	if err == sql.ErrNoRows {
		return &Profile{Identity: id}, nil
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	p := &Profile{
		Identity:    id,
		UsageCount:  usageCount,
		LastUpdated: time.Unix(lastUpdated, 0),
	}
	s.decodeList(id, "highlights", highlightsJSON, &p.PreferredHighlights)
	s.decodeList(id, "removed_words", removedJSON, &p.EditPatterns.RemovedWords)
	s.decodeList(id, "added_phrases", addedJSON, &p.EditPatterns.AddedPhrases)
	if historyJSON.Valid && historyJSON.String != "" {
		if err := json.Unmarshal([]byte(historyJSON.String), &p.ApplicationHistory); err != nil {
			s.log.Warn("corrupt profile column, treating as empty",
				zap.String("identity", id), zap.String("column", "history"), zap.Error(err))
			p.ApplicationHistory = nil
		}
	}
	return p, nil
}

// decodeList unmarshals one JSON list column, degrading to empty on corruption.
func (s *Store) decodeList(id, column string, raw sql.NullString, dst *[]string) {
	if !raw.Valid || raw.String == "" {
		return
	}
	if err := json.Unmarshal([]byte(raw.String), dst); err != nil {
		s.log.Warn("corrupt profile column, treating as empty",
			zap.String("identity", id), zap.String("column", column), zap.Error(err))
		*dst = nil
	}
}

// Save upserts the profile and stamps LastUpdated.
func (s *Store) Save(p *Profile) error {
	p.LastUpdated = s.now()

	highlightsJSON, err := encodeList(p.PreferredHighlights)
	if err != nil {
		return errors.NewInternal(err)
	}
	removedJSON, err := encodeList(p.EditPatterns.RemovedWords)
	if err != nil {
		return errors.NewInternal(err)
	}
	addedJSON, err := encodeList(p.EditPatterns.AddedPhrases)
	if err != nil {
		return errors.NewInternal(err)
	}
	var historyJSON sql.NullString
	if len(p.ApplicationHistory) > 0 {
		data, err := json.Marshal(p.ApplicationHistory)
		if err != nil {
			return errors.NewInternal(err)
		}
		historyJSON = sql.NullString{String: string(data), Valid: true}
	}

	_, err = s.db.Exec(
		`INSERT INTO preference_profiles
			(identity, highlights_json, removed_words_json, added_phrases_json, history_json, usage_count, last_updated)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(identity) DO UPDATE SET
			highlights_json = excluded.highlights_json,
			removed_words_json = excluded.removed_words_json,
			added_phrases_json = excluded.added_phrases_json,
			history_json = excluded.history_json,
			usage_count = excluded.usage_count,
			last_updated = excluded.last_updated`,
		p.Identity, highlightsJSON, removedJSON, addedJSON, historyJSON,
		p.UsageCount, p.LastUpdated.Unix(),
	)
	if err != nil {
		return errors.NewPersistence(err)
	}
	return nil
}

// Reset clears everything learned for the identity but keeps the row: the
// identity key survives with a zeroed usage count.
func (s *Store) Reset(email string) error {
	return s.Save(&Profile{Identity: identity.Normalize(email)})
}

func encodeList(list []string) (sql.NullString, error) {
	if len(list) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
