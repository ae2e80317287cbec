package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/recall-mcp/recall/internal/session"
	"github.com/recall-mcp/recall/internal/store"
)

// SelectNamespaceTool handles the select_namespace MCP tool. Allowed
// while PENDING — it is the transition out of PENDING.
type SelectNamespaceTool struct {
	resolver *session.Resolver
}

// NewSelectNamespaceTool creates a SelectNamespaceTool.
func NewSelectNamespaceTool(r *session.Resolver) *SelectNamespaceTool {
	return &SelectNamespaceTool{resolver: r}
}

// Definition returns the MCP tool definition for select_namespace.
func (t *SelectNamespaceTool) Definition() mcp.Tool {
	return mcp.NewTool("select_namespace",
		mcp.WithDescription(
			"Select the project namespace for this session. Provisions the namespace on first "+
				"use (idempotent). Required once per session before any context operation; "+
				"re-selecting the same namespace is a no-op.",
		),
		mcp.WithString("session_token",
			mcp.Required(),
			mcp.Description("Session token from handshake"),
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Namespace name: lowercase letters, digits, '-' and '_', max 64 chars"),
		),
	)
}

// Handle processes the select_namespace tool call.
func (t *SelectNamespaceTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	token := req.GetString("session_token", "")
	name := req.GetString("name", "")
	if token == "" {
		return mcp.NewToolResultError("validation: 'session_token' is required"), nil
	}
	if name == "" {
		return mcp.NewToolResultError("validation: 'name' is required"), nil
	}

	sel, err := t.resolver.SelectNamespace(token, name)
	if err != nil {
		return errResult(err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "status: resolved\nnamespace: %s\n", sel.Namespace)
	if sel.Stats != nil {
		fmt.Fprintf(&b, "existing data: %d labels, %d versions, %d archived, %d edges\n",
			sel.Stats.Labels, sel.Stats.Versions, sel.Stats.Archived, sel.Stats.Edges)
		if sel.Stats.LastWrite != nil {
			fmt.Fprintf(&b, "last write: %s\n", *sel.Stats.LastWrite)
		}
	} else {
		b.WriteString("no existing data: namespace content is created on first write\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ─── ListNamespacesTool ──────────────────────────────────────────────────────

// ListNamespacesTool handles the list_namespaces MCP tool. Discovery:
// allowed while PENDING.
type ListNamespacesTool struct {
	store *store.Store
}

// NewListNamespacesTool creates a ListNamespacesTool.
func NewListNamespacesTool(s *store.Store) *ListNamespacesTool {
	return &ListNamespacesTool{store: s}
}

// Definition returns the MCP tool definition for list_namespaces.
func (t *ListNamespacesTool) Definition() mcp.Tool {
	return mcp.NewTool("list_namespaces",
		mcp.WithDescription("List all provisioned project namespaces."),
	)
}

// Handle processes the list_namespaces tool call.
func (t *ListNamespacesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names, err := t.store.ListNamespaces()
	if err != nil {
		return errResult(err), nil
	}
	if len(names) == 0 {
		return mcp.NewToolResultText("No namespaces provisioned yet. select_namespace creates one."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d namespace(s):\n", len(names))
	for _, n := range names {
		fmt.Fprintf(&b, "- %s\n", n)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ─── NamespaceInfoTool ───────────────────────────────────────────────────────

// NamespaceInfoTool handles the namespace_info MCP tool. Discovery:
// allowed while PENDING.
type NamespaceInfoTool struct {
	store *store.Store
}

// NewNamespaceInfoTool creates a NamespaceInfoTool.
func NewNamespaceInfoTool(s *store.Store) *NamespaceInfoTool {
	return &NamespaceInfoTool{store: s}
}

// Definition returns the MCP tool definition for namespace_info.
func (t *NamespaceInfoTool) Definition() mcp.Tool {
	return mcp.NewTool("namespace_info",
		mcp.WithDescription("Show stats for one namespace: labels, versions, archives, edges."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Namespace name"),
		),
	)
}

// Handle processes the namespace_info tool call.
func (t *NamespaceInfoTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return mcp.NewToolResultError("validation: 'name' is required"), nil
	}

	stats, err := t.store.NamespaceStats(name)
	if err != nil {
		return errResult(err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "namespace: %s\nlabels: %d\nversions: %d\narchived: %d\nedges: %d\n",
		name, stats.Labels, stats.Versions, stats.Archived, stats.Edges)
	if stats.LastWrite != nil {
		fmt.Fprintf(&b, "last write: %s\n", *stats.LastWrite)
	}
	return mcp.NewToolResultText(b.String()), nil
}
