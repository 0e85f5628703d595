// Package gate composes the access-control layers into the single
// authorization surface the tool handlers call. The checks always run in the
// same order: identity format, invitation, credential, rate limit, daily
// quota. Each layer fails closed and the first denial wins.
package gate

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/benedictkwok/cover-letter-assistant/internal/analytics"
	"github.com/benedictkwok/cover-letter-assistant/internal/audit"
	"github.com/benedictkwok/cover-letter-assistant/internal/config"
	"github.com/benedictkwok/cover-letter-assistant/internal/errors"
	"github.com/benedictkwok/cover-letter-assistant/internal/identity"
	"github.com/benedictkwok/cover-letter-assistant/internal/invite"
	"github.com/benedictkwok/cover-letter-assistant/internal/prefs"
	"github.com/benedictkwok/cover-letter-assistant/internal/quota"
	"github.com/benedictkwok/cover-letter-assistant/internal/ratelimit"
	"github.com/benedictkwok/cover-letter-assistant/internal/token"
)

// ActionAuthenticate is the rate-limit bucket for sign-in attempts. It is
// independent of the per-tool action buckets used by Authorize.
const ActionAuthenticate = "authenticate"

// Session is the result of a successful authentication.
type Session struct {
	Identity   string `json:"user_email"`
	Credential string `json:"session_token"`
	SessionID  string `json:"session_id"`
}

// Decision is the outcome of an authorization check. Remaining reports the
// generation budget left after this request would complete.
type Decision struct {
	Identity  string    `json:"user_email"`
	Remaining int       `json:"remaining_today"`
	Limit     int       `json:"daily_limit"`
	ResetsAt  time.Time `json:"reset_time"`
}

// CompletedGeneration carries everything recorded after a generation
// finishes: the quota consumption, the usage log entry, and the editing
// signal for preference learning.
type CompletedGeneration struct {
	Identity       string
	SessionID      string
	ActionType     string
	CompanyName    string
	JobTitle       string
	JobText        string
	Highlights     []string
	OriginalLetter string
	EditedLetter   string
	LetterChars    int
	ProcessingMS   int64
	Success        bool
	ErrorMessage   string
}

// Gatekeeper front-ends every layer of access control.
type Gatekeeper struct {
	cfg       *config.Config
	invites   *invite.Registry
	tokens    *token.Service
	limiter   *ratelimit.Limiter
	quota     *quota.Tracker
	prefs     *prefs.Engine
	analytics *analytics.Recorder
	audit     *audit.Log
	log       *zap.Logger
}

// New wires the gatekeeper from its component layers.
func New(cfg *config.Config, invites *invite.Registry, tokens *token.Service,
	limiter *ratelimit.Limiter, quotas *quota.Tracker, engine *prefs.Engine,
	recorder *analytics.Recorder, auditLog *audit.Log, logger *zap.Logger) *Gatekeeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gatekeeper{
		cfg:       cfg,
		invites:   invites,
		tokens:    tokens,
		limiter:   limiter,
		quota:     quotas,
		prefs:     engine,
		analytics: recorder,
		audit:     auditLog,
		log:       logger,
	}
}

// Authenticate validates the identity against the invitation registry and,
// when invited, issues a session. Attempts are rate limited per identity so
// the invitation list cannot be probed quickly, and every attempt lands in
// the audit log.
func (g *Gatekeeper) Authenticate(email string) (*Session, error) {
	id := identity.Normalize(email)
	if !identity.Valid(id) {
		g.audit.RecordAuthAttempt(id, false, "")
		return nil, errors.NewInvalidRequest("invalid email address format")
	}
	if !g.limiter.Admit(id, ActionAuthenticate, g.cfg.RateMaxRequests, g.rateWindow()) {
		return nil, errors.NewRateLimited(ActionAuthenticate, g.cfg.RateMaxRequests)
	}
	if !g.invites.IsInvited(id) {
		g.audit.RecordAuthAttempt(id, false, "")
		return nil, errors.NewUnauthorized("this email address has not been invited")
	}

	credential, err := g.tokens.Issue(id)
	if err != nil {
		g.audit.RecordAuthAttempt(id, false, "")
		return nil, err
	}
	g.audit.RecordAuthAttempt(id, true, "")
	return &Session{
		Identity:   id,
		Credential: credential,
		SessionID:  NewSessionID(),
	}, nil
}

// Authorize runs the full pre-generation check chain for one request.
// Returns a typed denial naming the failing layer, or the remaining budget
// when every layer admits the request. Nothing is consumed here; quota is
// spent by CompleteGeneration once the work succeeds.
func (g *Gatekeeper) Authorize(email, credential, action string) (*Decision, error) {
	id := identity.Normalize(email)
	if !identity.Valid(id) {
		return nil, errors.NewInvalidRequest("invalid email address format")
	}
	if !g.tokens.Verify(id, credential) {
		g.audit.RecordAuthAttempt(id, false, "")
		return nil, errors.NewUnauthorized("invalid or expired session")
	}

	if !g.limiter.Admit(id, action, g.cfg.RateMaxRequests, g.rateWindow()) {
		return nil, errors.NewRateLimited(action, g.cfg.RateMaxRequests)
	}

	status, err := g.quota.Status(id)
	if err != nil {
		return nil, err
	}
	if !status.Allowed {
		return nil, errors.NewQuotaExceeded(status.UsedToday, status.Limit)
	}
	return &Decision{
		Identity:  id,
		Remaining: status.Remaining,
		Limit:     status.Limit,
		ResetsAt:  status.ResetsAt,
	}, nil
}

// CompleteGeneration records everything that follows a finished generation,
// in fixed order: quota consumption, usage analytics, preference learning,
// then the audit trail entry written by the quota layer itself. Recording
// failures are logged but never undo the generation; the user already has
// the letter.
func (g *Gatekeeper) CompleteGeneration(done CompletedGeneration) {
	id := identity.Normalize(done.Identity)

	if done.Success {
		g.quota.Record(id)
	}

	if err := g.analytics.LogGeneration(analytics.GenerationRecord{
		Identity:     id,
		SessionID:    done.SessionID,
		ActionType:   done.ActionType,
		CompanyName:  done.CompanyName,
		JobTitle:     done.JobTitle,
		LetterChars:  done.LetterChars,
		ProcessingMS: done.ProcessingMS,
		Success:      done.Success,
		ErrorMessage: done.ErrorMessage,
	}); err != nil {
		g.log.Warn("usage logging failed", zap.String("identity", id), zap.Error(err))
	}

	if done.Success {
		if _, err := g.prefs.LearnFromSession(id, prefs.SessionUpdate{
			Highlights:     done.Highlights,
			OriginalLetter: done.OriginalLetter,
			EditedLetter:   done.EditedLetter,
			JobText:        done.JobText,
			SessionID:      done.SessionID,
		}); err != nil {
			g.log.Warn("preference learning failed", zap.String("identity", id), zap.Error(err))
		}
	}
}

func (g *Gatekeeper) rateWindow() time.Duration {
	return time.Duration(g.cfg.RateWindowMinutes) * time.Minute
}

// QuotaStatus reports the identity's generation budget without consuming it.
func (g *Gatekeeper) QuotaStatus(email string) (quota.Status, error) {
	return g.quota.Status(email)
}

// PersonalizationContext returns the learned prompt hints for the identity.
func (g *Gatekeeper) PersonalizationContext(email string) (string, error) {
	return g.prefs.PersonalizationContext(email)
}

// NewSessionID returns a ULID string; lexicographic order follows issue time.
func NewSessionID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(rand.Reader, 0)).String()
}
