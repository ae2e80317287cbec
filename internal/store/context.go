package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// maxLabelLength caps label size; labels are identifiers, not content.
const maxLabelLength = 256

// validateLabel rejects empty or oversized labels before any SQL sees them.
func validateLabel(label string) (string, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", &ValidationError{Field: "label", Value: label, Reason: "must not be empty"}
	}
	if len(label) > maxLabelLength {
		return "", &ValidationError{Field: "label", Value: Truncate(label, 40), Reason: fmt.Sprintf("must be at most %d characters", maxLabelLength)}
	}
	return label, nil
}

// Put writes a new version of a context record. It never mutates in place:
// the version number is MAX(version)+1 for the (namespace, label) pair,
// assigned inside the write transaction. Preview and key concepts are
// derived at write time so reads stay cheap. Explicit relationship edges
// for Related labels are recorded in the same transaction.
func (s *Store) Put(p PutParams) (*VersionRef, error) {
	label, err := validateLabel(p.Label)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Content) == "" {
		return nil, &ValidationError{Field: "content", Value: "", Reason: "must not be empty"}
	}
	if s.cfg.MaxContentLength > 0 && len(p.Content) > s.cfg.MaxContentLength {
		return nil, &ValidationError{Field: "content", Value: Truncate(p.Content, 40), Reason: fmt.Sprintf("exceeds maximum length %d", s.cfg.MaxContentLength)}
	}
	if p.Priority == "" {
		p.Priority = PriorityReference
	}
	if _, err := ParsePriority(string(p.Priority)); err != nil {
		return nil, err
	}

	ok, err := s.NamespaceExists(p.Namespace)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &NotFoundError{Namespace: p.Namespace}
	}

	preview := DerivePreview(p.Content, s.cfg.PreviewLength)
	concepts := DeriveKeyConcepts(p.Content, p.Tags, s.cfg.MaxKeyConcepts)
	id := s.newID()

	tx, err := s.beginTxHook()
	if err != nil {
		return nil, &UnavailableError{Op: "put", Err: err}
	}
	defer tx.Rollback() //nolint:errcheck

	// Version assignment and insert in one statement keeps MAX(version)+1
	// race-free under the transaction.
	if _, err := s.execHook(tx,
		`INSERT INTO contexts (id, namespace, label, version, content, preview, key_concepts, tags, priority, owning_session)
		 VALUES (?, ?, ?,
		         COALESCE((SELECT MAX(version) FROM contexts WHERE namespace = ? AND label = ?), 0) + 1,
		         ?, ?, ?, ?, ?, ?)`,
		id, p.Namespace, label,
		p.Namespace, label,
		p.Content, preview,
		marshalList(concepts), marshalList(normalizeTags(p.Tags)), string(p.Priority), nullableString(p.OwningSession),
	); err != nil {
		return nil, &UnavailableError{Op: "put", Err: err}
	}

	for _, rel := range p.Related {
		rel = strings.TrimSpace(rel)
		if rel == "" || rel == label {
			continue
		}
		if _, err := s.execHook(tx,
			`INSERT OR IGNORE INTO edges (namespace, from_label, to_label, kind) VALUES (?, ?, ?, ?)`,
			p.Namespace, label, rel, EdgeExplicit,
		); err != nil {
			return nil, &UnavailableError{Op: "put edges", Err: err}
		}
	}

	var version int
	if err := tx.QueryRow(
		`SELECT version FROM contexts WHERE id = ?`, id,
	).Scan(&version); err != nil {
		return nil, &UnavailableError{Op: "put", Err: err}
	}

	if _, err := s.execHook(tx,
		`INSERT INTO audit (namespace, action, label, selector, record_count, session)
		 VALUES (?, 'put', ?, ?, 1, ?)`,
		p.Namespace, label, SelectVersion(version).String(), nullableString(p.OwningSession),
	); err != nil {
		return nil, &UnavailableError{Op: "put audit", Err: err}
	}

	if err := s.commitHook(tx); err != nil {
		return nil, &UnavailableError{Op: "put commit", Err: err}
	}

	return &VersionRef{Namespace: p.Namespace, Label: label, Version: version, ID: id}, nil
}

// normalizeTags trims, lowercases, and dedups caller tags.
func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

const recordColumns = `id, namespace, label, version, content, preview, key_concepts, tags, priority,
	created_at, last_accessed_at, access_count, owning_session`

func scanRecord(row interface{ Scan(...any) error }) (*Record, error) {
	var r Record
	var concepts, tags string
	var owning *string
	if err := row.Scan(
		&r.ID, &r.Namespace, &r.Label, &r.Version, &r.Content, &r.Preview,
		&concepts, &tags, &r.Priority,
		&r.CreatedAt, &r.LastAccessedAt, &r.AccessCount, &owning,
	); err != nil {
		return nil, err
	}
	r.KeyConcepts = unmarshalList(concepts)
	r.Tags = unmarshalList(tags)
	if owning != nil {
		r.OwningSession = *owning
	}
	return &r, nil
}

// Get retrieves context records by version selector. "Latest" is the
// greatest created_at for the label, ties broken by highest version number
// (the insertion sequence) so resolution is never ambiguous. An empty
// result is a NotFoundError carrying the offending identifiers.
func (s *Store) Get(namespace, label string, sel VersionSelector) ([]Record, error) {
	label, err := validateLabel(label)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + recordColumns + `
		FROM contexts WHERE namespace = ? AND label = ?`
	args := []any{namespace, label}

	switch {
	case sel.All:
		query += ` ORDER BY created_at DESC, version DESC`
	case sel.Latest:
		query += ` ORDER BY created_at DESC, version DESC LIMIT 1`
	default:
		query += ` AND version = ?`
		args = append(args, sel.Version)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, &UnavailableError{Op: "get", Err: err}
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, &UnavailableError{Op: "get", Err: err}
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, &UnavailableError{Op: "get", Err: err}
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Namespace: namespace, Label: label, Version: sel.String()}
	}

	related, err := s.relatedLabels(namespace, label)
	if err == nil {
		for i := range records {
			records[i].RelatedLabels = related
		}
	}

	return records, nil
}

// Latest returns the most-recently-created version of a label.
func (s *Store) Latest(namespace, label string) (*Record, error) {
	records, err := s.Get(namespace, label, SelectLatest)
	if err != nil {
		return nil, err
	}
	return &records[0], nil
}

// LatestMeta returns the latest version of a label without its content,
// for preview-only hops during exploration.
func (s *Store) LatestMeta(namespace, label string) (*Record, error) {
	label, err := validateLabel(label)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRow(
		`SELECT id, namespace, label, version, preview, key_concepts, tags, priority, created_at
		 FROM contexts WHERE namespace = ? AND label = ?
		 ORDER BY created_at DESC, version DESC LIMIT 1`,
		namespace, label,
	)
	var r Record
	var concepts, tags string
	if err := row.Scan(&r.ID, &r.Namespace, &r.Label, &r.Version, &r.Preview, &concepts, &tags, &r.Priority, &r.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, &NotFoundError{Namespace: namespace, Label: label, Version: "latest"}
		}
		return nil, &UnavailableError{Op: "latest meta", Err: err}
	}
	r.KeyConcepts = unmarshalList(concepts)
	r.Tags = unmarshalList(tags)
	return &r, nil
}

// Touch increments access_count and updates last_accessed_at on every
// version of the label, feeding the relevance engine's recency signal.
func (s *Store) Touch(namespace, label string) error {
	label, err := validateLabel(label)
	if err != nil {
		return err
	}
	res, err := s.execHook(s.db,
		`UPDATE contexts SET access_count = access_count + 1, last_accessed_at = datetime('now')
		 WHERE namespace = ? AND label = ?`,
		namespace, label,
	)
	if err != nil {
		return &UnavailableError{Op: "touch", Err: err}
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return &NotFoundError{Namespace: namespace, Label: label}
	}
	return nil
}

// Candidates returns metadata-only latest-version rows whose label,
// preview, key concepts, or tags match any of the given keywords. The FTS
// index does the cheap token match; reduction to latest-per-label happens
// here. Full content is never loaded on this path.
func (s *Store) Candidates(namespace string, keywords []string, cap int) ([]Candidate, error) {
	if cap <= 0 {
		cap = s.cfg.CandidateCap
	}
	match := sanitizeFTS(keywords)
	if match == "" {
		return nil, nil
	}

	// Over-fetch so latest-per-label reduction still fills the cap when a
	// label has many matching versions.
	rows, err := s.db.Query(
		`SELECT c.label, c.version, c.preview, c.key_concepts, c.tags, c.priority,
		        c.created_at, c.last_accessed_at, c.access_count
		 FROM contexts_fts f
		 JOIN contexts c ON c.seq = f.rowid
		 WHERE contexts_fts MATCH ? AND c.namespace = ?
		 ORDER BY f.rank LIMIT ?`,
		match, namespace, cap*4,
	)
	if err != nil {
		return nil, &UnavailableError{Op: "candidates", Err: err}
	}
	defer rows.Close()

	best := make(map[string]Candidate)
	var order []string
	for rows.Next() {
		var c Candidate
		var concepts, tags string
		if err := rows.Scan(&c.Label, &c.Version, &c.Preview, &concepts, &tags, &c.Priority,
			&c.CreatedAt, &c.LastAccessedAt, &c.AccessCount); err != nil {
			return nil, &UnavailableError{Op: "candidates", Err: err}
		}
		c.KeyConcepts = unmarshalList(concepts)
		c.Tags = unmarshalList(tags)

		prev, seen := best[c.Label]
		if !seen {
			best[c.Label] = c
			order = append(order, c.Label)
			continue
		}
		if c.CreatedAt > prev.CreatedAt || (c.CreatedAt == prev.CreatedAt && c.Version > prev.Version) {
			best[c.Label] = c
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &UnavailableError{Op: "candidates", Err: err}
	}

	// order is first-seen order, which is the FTS rank order the query
	// paid for; truncating in that order keeps the best-ranked labels
	// when more labels match than the cap admits.
	out := make([]Candidate, 0, len(order))
	for _, label := range order {
		out = append(out, best[label])
		if len(out) >= cap {
			break
		}
	}
	return out, nil
}

// relatedLabels returns the distinct explicit-edge targets of a label.
func (s *Store) relatedLabels(namespace, label string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT to_label FROM edges
		 WHERE namespace = ? AND from_label = ? AND kind = ?
		 ORDER BY to_label`,
		namespace, label, EdgeExplicit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
