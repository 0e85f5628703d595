// Package invite reads and mutates the invited-users document. The document
// is the source of truth for who may use the service at all; the external
// admin interface writes it too, so reads must tolerate whatever is on disk.
package invite

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/benedictkwok/cover-letter-assistant/internal/errors"
	"github.com/benedictkwok/cover-letter-assistant/internal/identity"
)

// User statuses. Users are never deleted outright by normal operation,
// only transitioned between statuses.
const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusSuspended = "suspended"
)

// Access levels.
const (
	AccessUser  = "user"
	AccessAdmin = "admin"
)

// User is one invited identity's record.
type User struct {
	DisplayName string `json:"display_name"`
	Status      string `json:"status"`
	AccessLevel string `json:"access_level"`
	InvitedDate string `json:"invited_date"`
	Notes       string `json:"notes,omitempty"`
}

// Settings is the registry-wide settings block.
type Settings struct {
	MaxUsers              int  `json:"max_users"`
	InvitationRequired    bool `json:"invitation_required"`
	AllowSelfRegistration bool `json:"allow_self_registration"`
}

// document is the on-disk shape of invited_users.json.
type document struct {
	InvitedUsers map[string]User `json:"invited_users"`
	AdminUsers   []string        `json:"admin_users,omitempty"`
	Settings     *Settings       `json:"settings,omitempty"`
}

// Registry provides invitation lookups and administrative mutation over the
// invited-users document. Mutations are whole-document rewrites with
// last-writer-wins semantics; there is no concurrent-edit detection against
// the external admin interface.
type Registry struct {
	path string
	mu   sync.Mutex
	log  *zap.Logger
	now  func() time.Time
}

// NewRegistry creates a registry over the document at path.
func NewRegistry(path string, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		path: path,
		log:  logger,
		now:  time.Now,
	}
}

// load reads the document from disk. A missing or malformed file degrades to
// an empty document so a corrupt registry denies access instead of failing
// the whole request path. All map keys come back normalized.
func (r *Registry) load() *document {
	doc := &document{InvitedUsers: map[string]User{}}

	data, err := os.ReadFile(r.path)
	if err != nil {
		if !os.IsNotExist(err) {
			r.log.Warn("invitation document unreadable, treating as empty",
				zap.String("path", r.path), zap.Error(err))
		}
		return doc
	}

	var raw document
	if err := json.Unmarshal(data, &raw); err != nil {
		gerr := errors.NewMalformed(r.path, err)
		r.log.Warn("invitation document malformed, treating as empty",
			zap.String("path", r.path), zap.String("error", gerr.Message))
		return doc
	}

	for email, user := range raw.InvitedUsers {
		doc.InvitedUsers[identity.Normalize(email)] = user
	}
	for _, email := range raw.AdminUsers {
		doc.AdminUsers = append(doc.AdminUsers, identity.Normalize(email))
	}
	doc.Settings = raw.Settings
	return doc
}

// save rewrites the whole document. Last writer wins.
func (r *Registry) save(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.NewInternal(err)
	}
	if err := os.WriteFile(r.path, data, 0600); err != nil {
		return errors.NewPersistence(fmt.Errorf("write invitation document: %w", err))
	}
	return nil
}

// IsInvited reports whether the identity is on the invitation list.
// Comparison is case-insensitive via normalization on both sides.
func (r *Registry) IsInvited(email string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.load().InvitedUsers[identity.Normalize(email)]
	return ok
}

// Lookup returns the invited user's record. Absence is a normal negative
// result, reported as NotFound.
func (r *Registry) Lookup(email string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := identity.Normalize(email)
	user, ok := r.load().InvitedUsers[key]
	if !ok {
		return nil, errors.NewNotFound(key)
	}
	return &user, nil
}

// Add invites a new identity. The email must be a valid address; the access
// level defaults to "user". Fails with Conflict when the identity is already
// invited, and enforces the max_users setting when one is configured.
func (r *Registry) Add(email, displayName, accessLevel, notes string) error {
	if !identity.Valid(email) {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid email address: %q", email))
	}
	if accessLevel == "" {
		accessLevel = AccessUser
	}
	if accessLevel != AccessUser && accessLevel != AccessAdmin {
		return errors.NewInvalidRequest(fmt.Sprintf("access level must be %q or %q", AccessUser, AccessAdmin))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	doc := r.load()
	key := identity.Normalize(email)
	if _, exists := doc.InvitedUsers[key]; exists {
		return errors.NewConflict(fmt.Sprintf("%s is already invited", key))
	}
	if doc.Settings != nil && doc.Settings.MaxUsers > 0 && len(doc.InvitedUsers) >= doc.Settings.MaxUsers {
		return errors.NewConflict(fmt.Sprintf("invitation list is full (max %d users)", doc.Settings.MaxUsers))
	}

	doc.InvitedUsers[key] = User{
		DisplayName: displayName,
		Status:      StatusActive,
		AccessLevel: accessLevel,
		InvitedDate: r.now().Format("2006-01-02"),
		Notes:       notes,
	}
	return r.save(doc)
}

// UpdateStatus transitions an invited identity between statuses.
func (r *Registry) UpdateStatus(email, status string) error {
	if status != StatusActive && status != StatusInactive && status != StatusSuspended {
		return errors.NewInvalidRequest(fmt.Sprintf("unknown status %q", status))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	doc := r.load()
	key := identity.Normalize(email)
	user, ok := doc.InvitedUsers[key]
	if !ok {
		return errors.NewNotFound(key)
	}

	user.Status = status
	doc.InvitedUsers[key] = user
	return r.save(doc)
}

// Remove drops an identity from the invitation list entirely. Prefer
// UpdateStatus; Remove exists for administrative cleanup.
func (r *Registry) Remove(email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := r.load()
	key := identity.Normalize(email)
	if _, ok := doc.InvitedUsers[key]; !ok {
		return errors.NewNotFound(key)
	}

	delete(doc.InvitedUsers, key)
	return r.save(doc)
}

// All returns every invited user keyed by normalized identity, for the
// admin surface.
func (r *Registry) All() map[string]User {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load().InvitedUsers
}

// Admins returns the identities with administrative access: the explicit
// admin_users list plus any invited user with the admin access level.
func (r *Registry) Admins() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := r.load()
	seen := make(map[string]bool)
	admins := make([]string, 0)

	for _, email := range doc.AdminUsers {
		if !seen[email] {
			seen[email] = true
			admins = append(admins, email)
		}
	}
	for email, user := range doc.InvitedUsers {
		if user.AccessLevel == AccessAdmin && !seen[email] {
			seen[email] = true
			admins = append(admins, email)
		}
	}

	sort.Strings(admins)
	return admins
}

// CurrentSettings returns the settings block, or defaults when absent.
func (r *Registry) CurrentSettings() Settings {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := r.load()
	if doc.Settings == nil {
		return Settings{InvitationRequired: true}
	}
	return *doc.Settings
}
