// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates concrete implementations and
// injects them into the tool handlers that depend on them. No business
// logic lives here — only wiring.
package server

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/recall-mcp/recall/internal/config"
	"github.com/recall-mcp/recall/internal/relevance"
	"github.com/recall-mcp/recall/internal/session"
	"github.com/recall-mcp/recall/internal/store"
	"github.com/recall-mcp/recall/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Options carries the composition root's external inputs. Embedding is
// optional: nil disables the semantic side-index and queries run on the
// keyword path alone.
type Options struct {
	Config    config.Config
	Logger    *zap.Logger
	Embedding chromem.EmbeddingFunc
}

// New creates and configures the MCP server with all tools registered.
//
// The returned cleanup function closes the store and the session cache
// and must be called on shutdown (typically via defer). It is always
// non-nil and safe to call even when initialization failed partway.
func New(opts Options) (*server.MCPServer, func(), error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	cfg := opts.Config

	// --- Create shared dependencies ---

	st, err := store.New(store.Config{
		DataDir:          cfg.DataDir,
		MaxContentLength: cfg.MaxContentLength,
		PreviewLength:    cfg.PreviewLength,
		CandidateCap:     cfg.CandidateCap,
	}, log)
	if err != nil {
		return nil, noop, fmt.Errorf("creating store: %w", err)
	}

	cache, err := session.NewCache(cfg.CacheTTL)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, noop, fmt.Errorf("creating session cache: %w", err)
	}
	cleanup := func() {
		cache.Close()
		if err := st.Close(); err != nil {
			log.Warn("store close", zap.Error(err))
		}
	}

	resolver := session.NewResolver(st, cache, cfg.SessionIdleTTL, log)

	// Semantic index is optional and best-effort; its absence only
	// narrows scoring to the keyword signal.
	var sem *relevance.SemanticIndex
	if opts.Embedding != nil {
		sem = relevance.NewSemanticIndex(opts.Embedding, log)
	}

	engine := relevance.NewEngine(st, sem, relevance.Config{
		CandidateCap: cfg.CandidateCap,
		MaxResults:   cfg.MaxResults,
		ExploreDepth: cfg.ExploreDepth,
		Policy: relevance.LoadPolicy{
			FullLimit: cfg.FullLoadLimit,
			MinScore:  cfg.MinScore,
		},
	}, log)

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		"recall",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Session and discovery tools (allowed while PENDING) ---

	handshake := tools.NewHandshakeTool(resolver)
	s.AddTool(handshake.Definition(), handshake.Handle)

	listNamespaces := tools.NewListNamespacesTool(st)
	s.AddTool(listNamespaces.Definition(), listNamespaces.Handle)

	namespaceInfo := tools.NewNamespaceInfoTool(st)
	s.AddTool(namespaceInfo.Definition(), namespaceInfo.Handle)

	selectNamespace := tools.NewSelectNamespaceTool(resolver)
	s.AddTool(selectNamespace.Definition(), selectNamespace.Handle)

	// --- Context tools (require a resolved session) ---

	putContext := tools.NewPutContextTool(resolver, st, engine)
	s.AddTool(putContext.Definition(), putContext.Handle)

	getContext := tools.NewGetContextTool(resolver, st)
	s.AddTool(getContext.Definition(), getContext.Handle)

	deleteContext := tools.NewDeleteContextTool(resolver, st, engine)
	s.AddTool(deleteContext.Definition(), deleteContext.Handle)

	// --- Relevance and exploration tools ---

	query := tools.NewQueryTool(resolver, engine)
	s.AddTool(query.Definition(), query.Handle)

	explore := tools.NewExploreTool(resolver, engine)
	s.AddTool(explore.Definition(), explore.Handle)

	stats := tools.NewStatsTool(resolver, st)
	s.AddTool(stats.Definition(), stats.Handle)

	return s, cleanup, nil
}

// noop is the default cleanup when initialization fails before any
// resource was acquired.
func noop() {}

// serverInstructions returns the system instructions that tell the AI
// how to use Recall effectively.
func serverInstructions() string {
	return `You have access to Recall, a persistent memory MCP server.
Memory survives between conversations — use it to carry project context
across sessions instead of asking the user to repeat themselves.

## SESSION LIFECYCLE (do this first)

1. Call handshake with a stable client_id at the start of every session.
   It returns the session_token that every other tool requires.
2. If the handshake response says "pending", pick a namespace:
   - list_namespaces / namespace_info to see what exists
   - select_namespace to bind this session to a project
   A reconnecting client usually resumes its previous namespace
   automatically and skips this step.
3. Any context tool called before selection fails with
   "selection_required" — select a namespace and retry. It is a
   recoverable state, not a fault.

One session maps to one namespace. To work on a different project,
start a new session with a fresh handshake.

## STORING CONTEXT (put_context)

- Labels are stable identifiers: "auth_design", "jwt_config",
  "deploy_checklist". Reuse the same label when updating — each put
  creates a NEW VERSION, nothing is overwritten, history stays
  retrievable.
- priority=critical marks records that must survive accidental
  deletion (credentials layouts, invariants, hard-won decisions).
  Deleting any version of a critical label requires force=true.
- Use related to connect labels: related="auth_design,session_model"
  records edges the explore tool can follow later.
- Use tags for discovery terms that don't appear in the content.

## RETRIEVING CONTEXT

- get_context when you know the label. version picks 'latest'
  (default), 'all', or a number.
- query when you don't: describe what you're working on and Recall
  returns scored matches. Only the top matches carry full content;
  the rest are previews — each match is marked [full] or [preview].
  Use get_context to load a preview you need in full.
- depth=preview for orientation, depth=deep to also follow
  relationship edges from the loaded matches.
- explore walks the relationship graph outward from a label,
  previews only. Good for "what else relates to this?".

## DELETING CONTEXT (delete_context)

- Deletes are versioned like reads: 'latest', 'all', or a number.
- Deleted versions are archived first by default. Give a reason —
  it is stored with the archive.
- A critical label refuses deletion without force=true. Confirm with
  the user before forcing.

## WHEN TO SAVE (proactively, after each of these)

- Architectural decisions or tradeoffs made
- Bug fixes: what was wrong, why, how it was fixed
- Conventions or patterns established
- Configuration, environment, or deployment details
- Gotchas, edge cases, and discoveries

## WHEN TO QUERY

- At the start of a session, query for the task at hand
- Before making decisions that might have prior art
- When the user references earlier work`
}
