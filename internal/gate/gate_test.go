package gate

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/benedictkwok/cover-letter-assistant/internal/analytics"
	"github.com/benedictkwok/cover-letter-assistant/internal/audit"
	"github.com/benedictkwok/cover-letter-assistant/internal/config"
	"github.com/benedictkwok/cover-letter-assistant/internal/db"
	gateerrors "github.com/benedictkwok/cover-letter-assistant/internal/errors"
	"github.com/benedictkwok/cover-letter-assistant/internal/invite"
	"github.com/benedictkwok/cover-letter-assistant/internal/prefs"
	"github.com/benedictkwok/cover-letter-assistant/internal/quota"
	"github.com/benedictkwok/cover-letter-assistant/internal/ratelimit"
	"github.com/benedictkwok/cover-letter-assistant/internal/token"
)

func newTestGatekeeper(t *testing.T) (*Gatekeeper, *invite.Registry) {
	t.Helper()
	tmpDir := t.TempDir()

	database, err := db.Init(tmpDir)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.SessionSecret = "test-secret"
	cfg.DailyGenerationLimit = 5
	cfg.RateMaxRequests = 10
	cfg.RateWindowMinutes = 60

	auditLog := audit.New(filepath.Join(tmpDir, "security_audit.log"), nil)
	registry := invite.NewRegistry(filepath.Join(tmpDir, "invited_users.json"), nil)
	tokens := token.NewService(cfg.SessionSecret, 24*time.Hour, registry, nil)
	limiter := ratelimit.NewLimiter(database, auditLog, nil)
	tracker := quota.NewTracker(database, auditLog, cfg.DailyGenerationLimit, nil)
	engine := prefs.NewEngine(prefs.NewStore(database, nil), nil)
	recorder := analytics.NewRecorder(database, nil)

	return New(cfg, registry, tokens, limiter, tracker, engine, recorder, auditLog, nil), registry
}

func TestAuthenticate_RejectsMalformedEmail(t *testing.T) {
	g, _ := newTestGatekeeper(t)

	_, err := g.Authenticate("not-an-email")
	require.True(t, gateerrors.Is(err, gateerrors.ErrInvalidRequest))
}

func TestAuthenticate_RejectsUninvited(t *testing.T) {
	g, _ := newTestGatekeeper(t)

	_, err := g.Authenticate("stranger@x.com")
	require.True(t, gateerrors.Is(err, gateerrors.ErrUnauthorized))
}

func TestAuthenticate_IssuesSessionForInvited(t *testing.T) {
	g, registry := newTestGatekeeper(t)
	require.NoError(t, registry.Add("A@X.com", "A", "user", ""))

	session, err := g.Authenticate("a@x.com")
	require.NoError(t, err)
	require.Equal(t, "a@x.com", session.Identity)
	require.NotEmpty(t, session.Credential)
	require.Len(t, session.SessionID, 26)
}

func TestAuthorize_RejectsBadCredential(t *testing.T) {
	g, registry := newTestGatekeeper(t)
	require.NoError(t, registry.Add("a@x.com", "A", "user", ""))

	_, err := g.Authorize("a@x.com", "bogus:token", "generate_cover_letter")
	require.True(t, gateerrors.Is(err, gateerrors.ErrUnauthorized))
}

func TestGenerationLifecycle(t *testing.T) {
	g, registry := newTestGatekeeper(t)
	require.NoError(t, registry.Add("a@x.com", "A", "user", ""))

	session, err := g.Authenticate("a@x.com")
	require.NoError(t, err)

	// The daily limit admits exactly five generations.
	for i := 0; i < 5; i++ {
		decision, err := g.Authorize(session.Identity, session.Credential, "generate_cover_letter")
		require.NoError(t, err, "generation %d", i+1)
		require.Equal(t, 5-i, decision.Remaining)

		g.CompleteGeneration(CompletedGeneration{
			Identity:       session.Identity,
			SessionID:      session.SessionID,
			ActionType:     analytics.ActionGenerate,
			CompanyName:    "Acme",
			JobTitle:       "Engineer",
			JobText:        "Backend Engineer at Acme",
			Highlights:     []string{"Go"},
			OriginalLetter: "Thanks for considering my resume",
			EditedLetter:   "Thanks for reviewing my application",
			LetterChars:    1200,
			ProcessingMS:   250,
			Success:        true,
		})
	}

	// The sixth request is over quota.
	_, err = g.Authorize(session.Identity, session.Credential, "generate_cover_letter")
	require.True(t, gateerrors.Is(err, gateerrors.ErrQuotaExceeded))

	status, err := g.QuotaStatus(session.Identity)
	require.NoError(t, err)
	require.Equal(t, 5, status.UsedToday)
	require.Equal(t, 0, status.Remaining)

	// Edits were learned along the way.
	ctx, err := g.PersonalizationContext(session.Identity)
	require.NoError(t, err)
	require.Contains(t, ctx, "highlight these strengths: Go")
	require.Contains(t, ctx, "avoids these words/phrases")
}

func TestAuthorize_RateLimitBeforeQuota(t *testing.T) {
	g, registry := newTestGatekeeper(t)
	g.cfg.RateMaxRequests = 3
	require.NoError(t, registry.Add("a@x.com", "A", "user", ""))

	session, err := g.Authenticate("a@x.com")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := g.Authorize(session.Identity, session.Credential, "generate_cover_letter")
		require.NoError(t, err)
	}
	_, err = g.Authorize(session.Identity, session.Credential, "generate_cover_letter")
	require.True(t, gateerrors.Is(err, gateerrors.ErrRateLimited))
}

func TestAuthenticate_RateLimited(t *testing.T) {
	g, registry := newTestGatekeeper(t)
	g.cfg.RateMaxRequests = 2
	require.NoError(t, registry.Add("a@x.com", "A", "user", ""))

	for i := 0; i < 2; i++ {
		_, err := g.Authenticate("a@x.com")
		require.NoError(t, err)
	}
	_, err := g.Authenticate("a@x.com")
	require.True(t, gateerrors.Is(err, gateerrors.ErrRateLimited))
}

func TestCompleteGeneration_FailureSkipsQuotaAndLearning(t *testing.T) {
	g, registry := newTestGatekeeper(t)
	require.NoError(t, registry.Add("a@x.com", "A", "user", ""))

	g.CompleteGeneration(CompletedGeneration{
		Identity:     "a@x.com",
		SessionID:    NewSessionID(),
		ActionType:   analytics.ActionGenerate,
		Success:      false,
		ErrorMessage: "upstream timeout",
	})

	status, err := g.QuotaStatus("a@x.com")
	require.NoError(t, err)
	require.Equal(t, 0, status.UsedToday)

	ctx, err := g.PersonalizationContext("a@x.com")
	require.NoError(t, err)
	require.Empty(t, ctx)
}

func TestNewSessionID_UniqueAndOrdered(t *testing.T) {
	a := NewSessionID()
	b := NewSessionID()
	require.Len(t, a, 26)
	require.NotEqual(t, a, b)
}
