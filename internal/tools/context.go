package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/recall-mcp/recall/internal/relevance"
	"github.com/recall-mcp/recall/internal/session"
	"github.com/recall-mcp/recall/internal/store"
)

// PutContextTool handles the put_context MCP tool: versioned writes into
// the resolved namespace.
type PutContextTool struct {
	resolver *session.Resolver
	store    *store.Store
	engine   *relevance.Engine
}

// NewPutContextTool creates a PutContextTool.
func NewPutContextTool(r *session.Resolver, s *store.Store, e *relevance.Engine) *PutContextTool {
	return &PutContextTool{resolver: r, store: s, engine: e}
}

// Definition returns the MCP tool definition for put_context.
func (t *PutContextTool) Definition() mcp.Tool {
	return mcp.NewTool("put_context",
		mcp.WithDescription(
			"Store a context record under a label. Never overwrites: each put creates a new "+
				"version and prior versions stay retrievable. Use priority=critical for records "+
				"that must survive accidental deletion.",
		),
		mcp.WithString("session_token",
			mcp.Required(),
			mcp.Description("Session token from handshake"),
		),
		mcp.WithString("label",
			mcp.Required(),
			mcp.Description("Stable identifier for this context (e.g. 'auth_design', 'jwt_config')"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The context body to store"),
		),
		mcp.WithString("priority",
			mcp.Description("critical, important, or reference (default reference)"),
		),
		mcp.WithString("tags",
			mcp.Description("Comma-separated tags for discovery"),
		),
		mcp.WithString("related",
			mcp.Description("Comma-separated labels this context relates to; recorded as explicit edges"),
		),
	)
}

// Handle processes the put_context tool call.
func (t *PutContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	token := req.GetString("session_token", "")
	namespace, err := t.resolver.RequireResolved(token)
	if err != nil {
		return errResult(err), nil
	}

	priority, err := store.ParsePriority(req.GetString("priority", ""))
	if err != nil {
		return errResult(err), nil
	}

	ref, err := t.store.Put(store.PutParams{
		Namespace:     namespace,
		Label:         req.GetString("label", ""),
		Content:       req.GetString("content", ""),
		Tags:          splitList(req.GetString("tags", "")),
		Priority:      priority,
		Related:       splitList(req.GetString("related", "")),
		OwningSession: token,
	})
	if err != nil {
		return errResult(err), nil
	}

	t.engine.Index(ctx, namespace, ref, req.GetString("content", ""))

	return mcp.NewToolResultText(fmt.Sprintf(
		"Stored %q version %d in namespace %q.", ref.Label, ref.Version, ref.Namespace,
	)), nil
}

// ─── GetContextTool ──────────────────────────────────────────────────────────

// GetContextTool handles the get_context MCP tool: exact-label retrieval
// with a version selector.
type GetContextTool struct {
	resolver *session.Resolver
	store    *store.Store
}

// NewGetContextTool creates a GetContextTool.
func NewGetContextTool(r *session.Resolver, s *store.Store) *GetContextTool {
	return &GetContextTool{resolver: r, store: s}
}

// Definition returns the MCP tool definition for get_context.
func (t *GetContextTool) Definition() mcp.Tool {
	return mcp.NewTool("get_context",
		mcp.WithDescription(
			"Retrieve context by exact label. version selects 'latest' (default), 'all', or a "+
				"specific version number. Use query instead when you don't know the label.",
		),
		mcp.WithString("session_token",
			mcp.Required(),
			mcp.Description("Session token from handshake"),
		),
		mcp.WithString("label",
			mcp.Required(),
			mcp.Description("Label to retrieve"),
		),
		mcp.WithString("version",
			mcp.Description("'latest' (default), 'all', or a version number"),
		),
		mcp.WithBoolean("preview_only",
			mcp.Description("Return previews instead of full content"),
		),
	)
}

// Handle processes the get_context tool call.
func (t *GetContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	token := req.GetString("session_token", "")
	namespace, err := t.resolver.RequireResolved(token)
	if err != nil {
		return errResult(err), nil
	}

	sel, err := store.ParseSelector(req.GetString("version", ""))
	if err != nil {
		return errResult(err), nil
	}
	previewOnly := boolArg(req, "preview_only", false)

	records, err := t.store.Get(namespace, req.GetString("label", ""), sel)
	if err != nil {
		return errResult(err), nil
	}

	// Reads feed the recency signal.
	if !previewOnly {
		_ = t.store.Touch(namespace, records[0].Label)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d version(s) of %q:\n", len(records), records[0].Label)
	for _, r := range records {
		fmt.Fprintf(&b, "\n── version %d (%s, created %s)\n", r.Version, r.Priority, r.CreatedAt)
		if len(r.Tags) > 0 {
			fmt.Fprintf(&b, "tags: %s\n", strings.Join(r.Tags, ", "))
		}
		if len(r.RelatedLabels) > 0 {
			fmt.Fprintf(&b, "related: %s\n", strings.Join(r.RelatedLabels, ", "))
		}
		if previewOnly {
			fmt.Fprintf(&b, "%s\n", r.Preview)
		} else {
			fmt.Fprintf(&b, "%s\n", r.Content)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}
