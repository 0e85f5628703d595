package mcp

import "github.com/mark3labs/mcp-go/mcp"

var usageStatisticsToolDef = mcp.NewTool("get_usage_statistics",
	mcp.WithDescription("System-wide usage statistics: request totals, distinct users, success rate, average processing time, and per-day request counts for the last 30 days. Aggregate-only; no per-user data is exposed."),
)

var recentActivityToolDef = mcp.NewTool("get_recent_activity",
	mcp.WithDescription("Request volume for the trailing 24 hours compared to the 24 hours before it, with active-user count and growth percentage."),
)

var systemHealthToolDef = mcp.NewTool("get_system_health",
	mcp.WithDescription("Service health snapshot: database reachability, audit log writability, and uptime."),
)

var quotaStatusToolDef = mcp.NewTool("get_quota_status",
	mcp.WithDescription("Daily generation quota. With an email, reports that user's usage, remaining budget, and reset time; without one, reports today's aggregate usage across all users."),
	mcp.WithString("email",
		mcp.Description("User email address. Omit for the aggregate view."),
	),
)

var auditSummaryToolDef = mcp.NewTool("get_audit_summary",
	mcp.WithDescription("Counts of security audit events: authentication attempts and outcomes, file accesses, rate-limit violations, generations, and admin resets."),
)
