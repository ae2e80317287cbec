package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/recall-mcp/recall/internal/relevance"
	"github.com/recall-mcp/recall/internal/session"
)

// ExploreTool handles the explore MCP tool: breadth-first traversal of
// relationship edges from a starting label.
type ExploreTool struct {
	resolver *session.Resolver
	engine   *relevance.Engine
}

// NewExploreTool creates an ExploreTool.
func NewExploreTool(r *session.Resolver, e *relevance.Engine) *ExploreTool {
	return &ExploreTool{resolver: r, engine: e}
}

// Definition returns the MCP tool definition for explore.
func (t *ExploreTool) Definition() mcp.Tool {
	return mcp.NewTool("explore",
		mcp.WithDescription(
			"Walk the relationship graph outward from a label, returning previews of connected "+
				"contexts with the path that reached each one. Previews only; follow up with "+
				"get_context for full content.",
		),
		mcp.WithString("session_token",
			mcp.Required(),
			mcp.Description("Session token from handshake"),
		),
		mcp.WithString("label",
			mcp.Required(),
			mcp.Description("Starting label"),
		),
		mcp.WithNumber("max_depth",
			mcp.Description("Hops to traverse, 1-5 (default 2)"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum nodes to return (default 20)"),
		),
	)
}

// Handle processes the explore tool call.
func (t *ExploreTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	token := req.GetString("session_token", "")
	namespace, err := t.resolver.RequireResolved(token)
	if err != nil {
		return errResult(err), nil
	}

	label := req.GetString("label", "")
	if strings.TrimSpace(label) == "" {
		return mcp.NewToolResultError("validation: 'label' is required"), nil
	}

	nodes, err := t.engine.Explore(namespace, label,
		intArg(req, "max_depth", 0), intArg(req, "max_results", 0))
	if err != nil {
		return errResult(err), nil
	}
	if len(nodes) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf(
			"Nothing stored under %q and no edges to follow.", label)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d node(s) reachable from %q:\n", len(nodes), label)
	for _, n := range nodes {
		indent := strings.Repeat("  ", n.Depth)
		if n.Via == "" {
			fmt.Fprintf(&b, "\n%s%s v%d (%s)\n%s%s\n", indent, n.Label, n.Version, n.Priority, indent, n.Preview)
			continue
		}
		fmt.Fprintf(&b, "\n%s%s v%d (%s, via %s/%s)\n%s%s\n",
			indent, n.Label, n.Version, n.Priority, n.Via, n.EdgeKind, indent, n.Preview)
	}
	return mcp.NewToolResultText(b.String()), nil
}
