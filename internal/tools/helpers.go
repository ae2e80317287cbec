// Package tools provides the MCP tool handlers for Recall.
//
// Each tool handler follows the same pattern:
// - A struct with dependencies (resolver, store, engine) injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a result
//
// Tool results for failures carry a "kind: detail" prefix from the error
// taxonomy so the calling agent can branch: selection_required → select a
// namespace and retry; not_found → absence, not a fault; unavailable →
// retry with backoff.
package tools

import (
	"errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// kinder is implemented by every typed error in the taxonomy.
type kinder interface {
	Kind() string
}

// errResult renders a typed error as a tool error with its kind prefix.
// Errors outside the taxonomy render as "internal" — still never a bare
// generic string, the detail follows the prefix.
func errResult(err error) *mcp.CallToolResult {
	var k kinder
	if errors.As(err, &k) {
		return mcp.NewToolResultError(k.Kind() + ": " + err.Error())
	}
	return mcp.NewToolResultError("internal: " + err.Error())
}

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// splitList parses a comma-separated argument into trimmed items.
func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
