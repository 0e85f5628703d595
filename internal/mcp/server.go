package mcp

import (
	"context"
	"database/sql"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/benedictkwok/cover-letter-assistant/internal/analytics"
	"github.com/benedictkwok/cover-letter-assistant/internal/audit"
	"github.com/benedictkwok/cover-letter-assistant/internal/config"
	"github.com/benedictkwok/cover-letter-assistant/internal/quota"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"get_usage_statistics": {
		def:     usageStatisticsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUsageStatistics },
	},
	"get_recent_activity": {
		def:     recentActivityToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRecentActivity },
	},
	"get_system_health": {
		def:     systemHealthToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSystemHealth },
	},
	"get_quota_status": {
		def:     quotaStatusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleQuotaStatus },
	},
	"get_audit_summary": {
		def:     auditSummaryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAuditSummary },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with the analytics tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(db *sql.DB, cfg *config.Config, recorder *analytics.Recorder,
	tracker *quota.Tracker, auditLog *audit.Log, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"covergate",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(db, recorder, tracker, auditLog)

	disabled := make(map[string]bool)
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(db *sql.DB, cfg *config.Config, recorder *analytics.Recorder,
	tracker *quota.Tracker, auditLog *audit.Log, version string) error {
	s := NewServer(db, cfg, recorder, tracker, auditLog, version)
	return server.ServeStdio(s)
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
