package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/benedictkwok/cover-letter-assistant/internal/analytics"
	"github.com/benedictkwok/cover-letter-assistant/internal/audit"
	"github.com/benedictkwok/cover-letter-assistant/internal/errors"
	"github.com/benedictkwok/cover-letter-assistant/internal/identity"
	"github.com/benedictkwok/cover-letter-assistant/internal/quota"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db        *sql.DB
	analytics *analytics.Recorder
	quota     *quota.Tracker
	audit     *audit.Log
	started   time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, recorder *analytics.Recorder, tracker *quota.Tracker, auditLog *audit.Log) *Handlers {
	return &Handlers{
		db:        db,
		analytics: recorder,
		quota:     tracker,
		audit:     auditLog,
		started:   time.Now(),
	}
}

// QuotaStatusRequest represents the arguments for get_quota_status.
type QuotaStatusRequest struct {
	Email string `json:"email,omitempty"`
}

// HandleUsageStatistics handles the get_usage_statistics tool call.
func (h *Handlers) HandleUsageStatistics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.analytics.AggregatedStats()
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(stats)
}

// HandleRecentActivity handles the get_recent_activity tool call.
func (h *Handlers) HandleRecentActivity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	activity, err := h.analytics.RecentActivity()
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(activity)
}

// HandleSystemHealth handles the get_system_health tool call.
func (h *Handlers) HandleSystemHealth(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	health := map[string]any{
		"status":         "healthy",
		"database":       "ok",
		"audit_log":      "ok",
		"uptime_seconds": int(time.Since(h.started).Seconds()),
	}
	if err := h.db.PingContext(ctx); err != nil {
		health["status"] = "degraded"
		health["database"] = "unreachable"
	}
	if _, err := h.audit.Aggregate(); err != nil {
		health["status"] = "degraded"
		health["audit_log"] = "unreadable"
	}
	return successResult(health)
}

// HandleQuotaStatus handles the get_quota_status tool call. With an email it
// reports that user's budget; without one it reports today's aggregate only.
func (h *Handlers) HandleQuotaStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[QuotaStatusRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if input.Email == "" {
		stats, err := h.quota.DailyStats()
		if err != nil {
			return errorResult(err), nil
		}
		return successResult(map[string]any{
			"date":        stats.Date,
			"total_today": stats.TotalToday,
			"users_today": stats.UsersToday,
			"daily_limit": h.quota.Limit(),
		})
	}

	id := identity.Normalize(input.Email)
	if !identity.Valid(id) {
		return errorResult(errors.NewInvalidRequest("invalid email address format")), nil
	}
	status, err := h.quota.Status(id)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(status)
}

// HandleAuditSummary handles the get_audit_summary tool call.
func (h *Handlers) HandleAuditSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.audit.Aggregate()
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(stats)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if gErr, ok := err.(*errors.GateError); ok {
		errorObj := map[string]any{
			"code":    gErr.Code,
			"message": gErr.Message,
			"status":  gErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if gErr.Code != errors.ErrInternal && gErr.Details != nil {
			errorObj["details"] = gErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
