package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/recall-mcp/recall/internal/relevance"
	"github.com/recall-mcp/recall/internal/session"
)

// QueryTool handles the query MCP tool: relevance search without exact
// labels, with staged content loading.
type QueryTool struct {
	resolver *session.Resolver
	engine   *relevance.Engine
}

// NewQueryTool creates a QueryTool.
func NewQueryTool(r *session.Resolver, e *relevance.Engine) *QueryTool {
	return &QueryTool{resolver: r, engine: e}
}

// Definition returns the MCP tool definition for query.
func (t *QueryTool) Definition() mcp.Tool {
	return mcp.NewTool("query",
		mcp.WithDescription(
			"Find contexts relevant to a question or task description, without knowing exact "+
				"labels. Only the top-scoring matches carry full content; the rest are previews "+
				"(each match says which). depth=preview skips content entirely; depth=deep also "+
				"follows relationship edges one hop from the loaded matches.",
		),
		mcp.WithString("session_token",
			mcp.Required(),
			mcp.Description("Session token from handshake"),
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("What you're working on or looking for"),
		),
		mcp.WithString("depth",
			mcp.Description("preview, full (default), or deep"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum matches to return (default 10)"),
		),
	)
}

// Handle processes the query tool call.
func (t *QueryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	token := req.GetString("session_token", "")
	namespace, err := t.resolver.RequireResolved(token)
	if err != nil {
		return errResult(err), nil
	}

	text := strings.TrimSpace(req.GetString("text", ""))
	if text == "" {
		return mcp.NewToolResultError("validation: 'text' is required"), nil
	}
	depth, err := relevance.ParseDepth(req.GetString("depth", ""))
	if err != nil {
		return errResult(err), nil
	}

	result, err := t.engine.Query(ctx, namespace, text, depth, intArg(req, "max_results", 0))
	if err != nil {
		return errResult(err), nil
	}
	if len(result.Matches) == 0 {
		return mcp.NewToolResultText("No matching contexts. Absence of stored context, not a fault."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d match(es):\n", len(result.Matches))
	for _, m := range result.Matches {
		fmt.Fprintf(&b, "\n── %s v%d (score %.2f, %s)", m.Label, m.Version, m.Score, m.Priority)
		if m.FullLoaded {
			b.WriteString(" [full]\n")
			b.WriteString(m.Content)
			b.WriteString("\n")
		} else {
			b.WriteString(" [preview]\n")
			b.WriteString(m.Preview)
			b.WriteString("\n")
		}
	}
	if len(result.Explored) > 0 {
		fmt.Fprintf(&b, "\nExplored via edges (%d):\n", len(result.Explored))
		for _, e := range result.Explored {
			fmt.Fprintf(&b, "- %s (via %s, %s): %s\n", e.Label, e.FromLabel, e.EdgeKind, e.Preview)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}
