package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/recall-mcp/recall/internal/relevance"
	"github.com/recall-mcp/recall/internal/session"
	"github.com/recall-mcp/recall/internal/store"
)

// DeleteContextTool handles the delete_context MCP tool: versioned delete
// with critical protection and archive-before-delete.
type DeleteContextTool struct {
	resolver *session.Resolver
	store    *store.Store
	engine   *relevance.Engine
}

// NewDeleteContextTool creates a DeleteContextTool.
func NewDeleteContextTool(r *session.Resolver, s *store.Store, e *relevance.Engine) *DeleteContextTool {
	return &DeleteContextTool{resolver: r, store: s, engine: e}
}

// Definition returns the MCP tool definition for delete_context.
func (t *DeleteContextTool) Definition() mcp.Tool {
	return mcp.NewTool("delete_context",
		mcp.WithDescription(
			"Delete context versions by label. Refuses when any version of the label is "+
				"critical unless force=true. Deleted versions are archived first by default; "+
				"a failed archive aborts the delete.",
		),
		mcp.WithString("session_token",
			mcp.Required(),
			mcp.Description("Session token from handshake"),
		),
		mcp.WithString("label",
			mcp.Required(),
			mcp.Description("Label to delete"),
		),
		mcp.WithString("version",
			mcp.Description("'latest' (default), 'all', or a version number"),
		),
		mcp.WithBoolean("force",
			mcp.Description("Override critical protection (explicit, audited)"),
		),
		mcp.WithBoolean("archive",
			mcp.Description("Archive deleted versions first (default true)"),
		),
		mcp.WithString("reason",
			mcp.Description("Why this is being deleted; stored with the archive"),
		),
	)
}

// Handle processes the delete_context tool call.
func (t *DeleteContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	token := req.GetString("session_token", "")
	namespace, err := t.resolver.RequireResolved(token)
	if err != nil {
		return errResult(err), nil
	}

	sel, err := store.ParseSelector(req.GetString("version", ""))
	if err != nil {
		return errResult(err), nil
	}

	res, err := t.store.Delete(store.DeleteParams{
		Namespace:        namespace,
		Label:            req.GetString("label", ""),
		Selector:         sel,
		Archive:          boolArg(req, "archive", true),
		OverrideCritical: boolArg(req, "force", false),
		Reason:           req.GetString("reason", ""),
		Session:          token,
	})
	if err != nil {
		return errResult(err), nil
	}

	t.engine.Forget(ctx, namespace, res.IDs)

	msg := fmt.Sprintf("Deleted %d version(s) of %q", res.Deleted, req.GetString("label", ""))
	if res.Archived > 0 {
		msg += fmt.Sprintf(" (%d archived)", res.Archived)
	}
	return mcp.NewToolResultText(msg + "."), nil
}
