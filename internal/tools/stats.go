package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/recall-mcp/recall/internal/session"
	"github.com/recall-mcp/recall/internal/store"
)

// StatsTool handles the stats MCP tool: counts and recent mutation history
// for the session's namespace.
type StatsTool struct {
	resolver *session.Resolver
	store    *store.Store
}

// NewStatsTool creates a StatsTool.
func NewStatsTool(r *session.Resolver, s *store.Store) *StatsTool {
	return &StatsTool{resolver: r, store: s}
}

// Definition returns the MCP tool definition for stats.
func (t *StatsTool) Definition() mcp.Tool {
	return mcp.NewTool("stats",
		mcp.WithDescription("Show counts and recent mutation history for the session's namespace."),
		mcp.WithString("session_token",
			mcp.Required(),
			mcp.Description("Session token from handshake"),
		),
		mcp.WithNumber("audit_limit",
			mcp.Description("Recent audit entries to include (default 10)"),
		),
	)
}

// Handle processes the stats tool call.
func (t *StatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	token := req.GetString("session_token", "")
	namespace, err := t.resolver.RequireResolved(token)
	if err != nil {
		return errResult(err), nil
	}

	stats, err := t.store.NamespaceStats(namespace)
	if err != nil {
		return errResult(err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "namespace: %s\nlabels: %d\nversions: %d\narchived: %d\nedges: %d\n",
		namespace, stats.Labels, stats.Versions, stats.Archived, stats.Edges)
	if stats.LastWrite != nil {
		fmt.Fprintf(&b, "last write: %s\n", *stats.LastWrite)
	}

	trail, err := t.store.AuditTrail(namespace, intArg(req, "audit_limit", 10))
	if err == nil && len(trail) > 0 {
		b.WriteString("\nrecent activity:\n")
		for _, e := range trail {
			fmt.Fprintf(&b, "- %s %s %s", e.CreatedAt, e.Action, e.Label)
			if e.Selector != "" {
				fmt.Fprintf(&b, " (%s)", e.Selector)
			}
			if e.OverrodeCritical {
				b.WriteString(" [forced]")
			}
			b.WriteString("\n")
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}
