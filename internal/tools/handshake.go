package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/recall-mcp/recall/internal/session"
)

// HandshakeTool handles the handshake MCP tool: it mints or refreshes a
// session for a client fingerprint. Allowed while PENDING.
type HandshakeTool struct {
	resolver *session.Resolver
}

// NewHandshakeTool creates a HandshakeTool.
func NewHandshakeTool(r *session.Resolver) *HandshakeTool {
	return &HandshakeTool{resolver: r}
}

// Definition returns the MCP tool definition for handshake.
func (t *HandshakeTool) Definition() mcp.Tool {
	return mcp.NewTool("handshake",
		mcp.WithDescription(
			"Open or resume a memory session. Call this first: it returns the session_token "+
				"every other tool requires. A client reconnecting within the continuity window "+
				"resumes its previous namespace automatically.",
		),
		mcp.WithString("client_id",
			mcp.Required(),
			mcp.Description("Stable client fingerprint (e.g. host+agent identifier)"),
		),
		mcp.WithString("session_token",
			mcp.Description("Existing session token to resume; omit to start fresh"),
		),
	)
}

// Handle processes the handshake tool call.
func (t *HandshakeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	clientID := req.GetString("client_id", "")
	if clientID == "" {
		return mcp.NewToolResultError("validation: 'client_id' is required"), nil
	}
	token := req.GetString("session_token", "")

	status, err := t.resolver.Resolve(token, clientID)
	if err != nil {
		return errResult(err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "session_token: %s\nstate: %s\n", status.Token, status.State)
	if status.Namespace != "" {
		fmt.Fprintf(&b, "namespace: %s\n", status.Namespace)
	} else {
		b.WriteString("Select a namespace with select_namespace before storing or querying contexts.\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}
