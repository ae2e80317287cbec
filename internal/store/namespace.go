package store

import (
	"database/sql"
	"regexp"
)

// namespacePattern is the strict allow-list for tenant namespace names:
// lowercase alphanumerics, hyphen and underscore, leading alphanumeric,
// at most 64 characters. Namespace names come from callers and end up in
// every query's scope column, so nothing outside this set is accepted.
var namespacePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// SanitizeNamespace validates a caller-supplied namespace name. It does
// not rewrite: a name either matches the allow-list or is rejected, so
// two different inputs can never collapse into the same namespace.
func SanitizeNamespace(raw string) (string, error) {
	if !namespacePattern.MatchString(raw) {
		return "", &ValidationError{
			Field:  "namespace",
			Value:  Truncate(raw, 80),
			Reason: "must match [a-z0-9][a-z0-9_-]{0,63}",
		}
	}
	return raw, nil
}

// ProvisionNamespace creates the namespace if it does not exist.
// Idempotent: provisioning an existing namespace is a no-op.
func (s *Store) ProvisionNamespace(name string) error {
	name, err := SanitizeNamespace(name)
	if err != nil {
		return err
	}
	if _, err := s.execHook(s.db,
		`INSERT OR IGNORE INTO namespaces (name) VALUES (?)`, name,
	); err != nil {
		return &UnavailableError{Op: "provision namespace", Err: err}
	}
	return nil
}

// NamespaceExists reports whether a namespace has been provisioned.
func (s *Store) NamespaceExists(name string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM namespaces WHERE name = ?`, name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, &UnavailableError{Op: "namespace exists", Err: err}
	}
	return true, nil
}

// ListNamespaces returns all provisioned namespaces, alphabetically.
func (s *Store) ListNamespaces() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM namespaces ORDER BY name`)
	if err != nil {
		return nil, &UnavailableError{Op: "list namespaces", Err: err}
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, &UnavailableError{Op: "list namespaces", Err: err}
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// NamespaceStats aggregates existing data for a namespace. Returns
// NotFound for an unprovisioned namespace.
func (s *Store) NamespaceStats(name string) (*NamespaceStats, error) {
	ok, err := s.NamespaceExists(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &NotFoundError{Namespace: name}
	}

	stats := &NamespaceStats{}
	_ = s.db.QueryRow(`SELECT COUNT(DISTINCT label) FROM contexts WHERE namespace = ?`, name).Scan(&stats.Labels)
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM contexts WHERE namespace = ?`, name).Scan(&stats.Versions)
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM archives WHERE namespace = ?`, name).Scan(&stats.Archived)
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM edges WHERE namespace = ?`, name).Scan(&stats.Edges)

	var last sql.NullString
	_ = s.db.QueryRow(`SELECT MAX(created_at) FROM contexts WHERE namespace = ?`, name).Scan(&last)
	if last.Valid {
		stats.LastWrite = &last.String
	}

	return stats, nil
}
