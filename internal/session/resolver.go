// Package session implements the session/project resolver: the state
// machine that maps an opaque client credential to a tenant namespace
// before any data operation proceeds.
//
// States: UNSEEN → PENDING → RESOLVED. There is no transition back from
// RESOLVED — only a brand-new session token starts fresh. While PENDING,
// only the discovery allow-list (handshake, list-namespaces,
// namespace-info, select-namespace) may execute; everything else goes
// through RequireResolved and fails fast with SelectionRequired.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/recall-mcp/recall/internal/store"
)

// State is a session's resolution state.
type State string

// Session states.
const (
	StateUnseen   State = "unseen"
	StatePending  State = "pending"
	StateResolved State = "resolved"
)

// SelectionRequiredError signals an operation attempted before the
// session resolved a namespace. Recoverable: the caller should call
// select_namespace and retry, not back off.
type SelectionRequiredError struct {
	SessionToken string
	State        State
}

func (e *SelectionRequiredError) Error() string {
	return fmt.Sprintf("session %q is %s: select a namespace before this operation", e.SessionToken, e.State)
}

// Kind returns the error taxonomy kind.
func (e *SelectionRequiredError) Kind() string { return "selection_required" }

// Status is the resolver's view of one session.
type Status struct {
	Token     string `json:"token"`
	State     State  `json:"state"`
	Namespace string `json:"namespace,omitempty"`
}

// Selection is the result of selecting a namespace. Stats is present only
// when the namespace already holds data; absent implies "created on first
// write".
type Selection struct {
	Namespace string                `json:"namespace"`
	Stats     *store.NamespaceStats `json:"stats,omitempty"`
}

// Resolver owns session state. It composes the durable session rows in
// the store with an in-process namespace cache; the rows are
// authoritative, the cache only supplies a default at session creation.
type Resolver struct {
	store   *store.Store
	cache   *Cache
	idleTTL time.Duration
	log     *zap.Logger
	now     func() time.Time
}

// NewResolver creates a Resolver. idleTTL is the session idle expiry
// (default 24h when zero).
func NewResolver(st *store.Store, cache *Cache, idleTTL time.Duration, log *zap.Logger) *Resolver {
	if idleTTL <= 0 {
		idleTTL = 24 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		store:   st,
		cache:   cache,
		idleTTL: idleTTL,
		log:     log.Named("resolver"),
		now:     time.Now,
	}
}

// Handshake mints a new session for a client fingerprint. If the
// namespace cache holds a live entry for the fingerprint, the session is
// created directly RESOLVED to that namespace (reconnect continuity);
// otherwise it starts PENDING.
func (r *Resolver) Handshake(fingerprint string) (*Status, error) {
	token := uuid.NewString()
	return r.createSession(token, fingerprint)
}

// Resolve looks up the session for a token, creating one if the token is
// unseen or its session idle-expired. Touches last_active_at on hit.
func (r *Resolver) Resolve(token, fingerprint string) (*Status, error) {
	if token == "" {
		return r.Handshake(fingerprint)
	}

	row, err := r.store.GetSession(token)
	if err != nil {
		return nil, err
	}
	if row != nil && r.expired(row) {
		r.log.Debug("session idle-expired, replacing",
			zap.String("token", token),
			zap.String("last_active", row.LastActiveAt))
		if err := r.store.DeleteSession(token); err != nil {
			return nil, err
		}
		row = nil
	}
	if row == nil {
		return r.createSession(token, fingerprint)
	}

	if err := r.store.TouchSession(token); err != nil {
		return nil, err
	}
	return statusOf(row), nil
}

func (r *Resolver) createSession(token, fingerprint string) (*Status, error) {
	namespace := ""
	if r.cache != nil {
		if ns, ok := r.cache.Lookup(fingerprint); ok {
			namespace = ns
		}
	}
	if err := r.store.CreateSession(token, fingerprint, namespace); err != nil {
		return nil, err
	}
	st := &Status{Token: token, State: StatePending}
	if namespace != "" {
		st.State = StateResolved
		st.Namespace = namespace
	}
	return st, nil
}

// SelectNamespace resolves a PENDING session to a namespace, or
// idempotently re-selects the same namespace on a RESOLVED session.
// Selecting a different namespace on a RESOLVED session is rejected:
// there is no transition back to PENDING. The namespace is provisioned
// idempotently and the fingerprint cache entry refreshed.
func (r *Resolver) SelectNamespace(token, rawName string) (*Selection, error) {
	name, err := store.SanitizeNamespace(rawName)
	if err != nil {
		return nil, err
	}

	row, err := r.store.GetSession(token)
	if err != nil {
		return nil, err
	}
	if row == nil || r.expired(row) {
		return nil, &store.NotFoundError{Session: token}
	}
	if row.State == "resolved" && row.Namespace != nil && *row.Namespace != name {
		return nil, &store.ValidationError{
			Field:  "namespace",
			Value:  name,
			Reason: fmt.Sprintf("session already resolved to %q; start a new session to switch", *row.Namespace),
		}
	}

	// Stats are collected before provisioning so "already existed" is
	// distinguishable from "created just now".
	existed, err := r.store.NamespaceExists(name)
	if err != nil {
		return nil, err
	}
	if err := r.store.ProvisionNamespace(name); err != nil {
		return nil, err
	}
	if err := r.store.ResolveSession(token, name); err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Remember(row.ClientFingerprint, name)
	}

	sel := &Selection{Namespace: name}
	if existed {
		stats, err := r.store.NamespaceStats(name)
		if err == nil && stats.Versions > 0 {
			sel.Stats = stats
		}
	}

	r.log.Info("namespace selected",
		zap.String("token", token),
		zap.String("namespace", name),
		zap.Bool("existed", existed))
	return sel, nil
}

// RequireResolved is the gate every non-discovery operation calls first:
// it returns the session's namespace, or a typed SelectionRequired error
// the caller can distinguish from a timeout or transient failure.
func (r *Resolver) RequireResolved(token string) (string, error) {
	if token == "" {
		return "", &SelectionRequiredError{SessionToken: token, State: StateUnseen}
	}
	row, err := r.store.GetSession(token)
	if err != nil {
		return "", err
	}
	if row == nil || r.expired(row) {
		return "", &SelectionRequiredError{SessionToken: token, State: StateUnseen}
	}
	if row.State != "resolved" || row.Namespace == nil || *row.Namespace == "" {
		return "", &SelectionRequiredError{SessionToken: token, State: StatePending}
	}
	if err := r.store.TouchSession(token); err != nil {
		return "", err
	}
	return *row.Namespace, nil
}

func (r *Resolver) expired(row *store.SessionRow) bool {
	last, ok := store.ParseTime(row.LastActiveAt)
	if !ok {
		return false
	}
	return r.now().UTC().Sub(last) > r.idleTTL
}

func statusOf(row *store.SessionRow) *Status {
	st := &Status{Token: row.Token, State: StatePending}
	if row.State == "resolved" && row.Namespace != nil {
		st.State = StateResolved
		st.Namespace = *row.Namespace
	}
	return st
}
