package store

import (
	"database/sql"
)

// Session persistence. The resolver in internal/session owns the state
// machine; this file only makes session rows durable so reconnecting
// clients hitting a different process still resolve against the shared
// backing store.

// SessionRow is the durable form of a client session.
type SessionRow struct {
	Token             string  `json:"token"`
	State             string  `json:"state"` // "pending" or "resolved"
	Namespace         *string `json:"namespace,omitempty"`
	ClientFingerprint string  `json:"client_fingerprint"`
	CreatedAt         string  `json:"created_at"`
	LastActiveAt      string  `json:"last_active_at"`
}

// CreateSession inserts a new session row. A non-empty namespace creates
// the session already resolved (reconnect continuity via the namespace
// cache); otherwise it starts pending.
func (s *Store) CreateSession(token, fingerprint, namespace string) error {
	state := "pending"
	var ns *string
	if namespace != "" {
		state = "resolved"
		ns = &namespace
	}
	if _, err := s.execHook(s.db,
		`INSERT INTO sessions (token, state, namespace, client_fingerprint) VALUES (?, ?, ?, ?)`,
		token, state, ns, fingerprint,
	); err != nil {
		return &UnavailableError{Op: "create session", Err: err}
	}
	return nil
}

// GetSession retrieves a session row by token. Returns (nil, nil) when
// the token is unknown — an UNSEEN token is not a fault.
func (s *Store) GetSession(token string) (*SessionRow, error) {
	row := s.db.QueryRow(
		`SELECT token, state, namespace, client_fingerprint, created_at, last_active_at
		 FROM sessions WHERE token = ?`, token,
	)
	var sr SessionRow
	if err := row.Scan(&sr.Token, &sr.State, &sr.Namespace, &sr.ClientFingerprint, &sr.CreatedAt, &sr.LastActiveAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, &UnavailableError{Op: "get session", Err: err}
	}
	return &sr, nil
}

// ResolveSession transitions a session to resolved with the given
// namespace and bumps its activity timestamp.
func (s *Store) ResolveSession(token, namespace string) error {
	res, err := s.execHook(s.db,
		`UPDATE sessions SET state = 'resolved', namespace = ?, last_active_at = datetime('now')
		 WHERE token = ?`,
		namespace, token,
	)
	if err != nil {
		return &UnavailableError{Op: "resolve session", Err: err}
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return &NotFoundError{Session: token}
	}
	return nil
}

// TouchSession bumps a session's last_active_at.
func (s *Store) TouchSession(token string) error {
	if _, err := s.execHook(s.db,
		`UPDATE sessions SET last_active_at = datetime('now') WHERE token = ?`, token,
	); err != nil {
		return &UnavailableError{Op: "touch session", Err: err}
	}
	return nil
}

// DeleteSession removes a session row. Used when an idle-expired session
// is lazily replaced.
func (s *Store) DeleteSession(token string) error {
	if _, err := s.execHook(s.db,
		`DELETE FROM sessions WHERE token = ?`, token,
	); err != nil {
		return &UnavailableError{Op: "delete session", Err: err}
	}
	return nil
}
