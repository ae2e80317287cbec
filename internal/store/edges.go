package store

// AddEdge declares an explicit relationship between two labels in a
// namespace. Self-edges are rejected; duplicates are ignored.
func (s *Store) AddEdge(namespace, from, to string) error {
	from, err := validateLabel(from)
	if err != nil {
		return err
	}
	to, err = validateLabel(to)
	if err != nil {
		return err
	}
	if from == to {
		return &ValidationError{Field: "related", Value: to, Reason: "a context cannot relate to itself"}
	}
	if _, err := s.execHook(s.db,
		`INSERT OR IGNORE INTO edges (namespace, from_label, to_label, kind) VALUES (?, ?, ?, ?)`,
		namespace, from, to, EdgeExplicit,
	); err != nil {
		return &UnavailableError{Op: "add edge", Err: err}
	}
	return nil
}

// EdgesFrom returns the outgoing edges of a label, optionally filtered by
// kind. Explicit edges sort before co-accessed ones, then by strength.
func (s *Store) EdgesFrom(namespace, label, kind string) ([]Edge, error) {
	label, err := validateLabel(label)
	if err != nil {
		return nil, err
	}

	query := `SELECT from_label, to_label, kind, strength, created_at
		FROM edges WHERE namespace = ? AND from_label = ?`
	args := []any{namespace, label}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY kind, strength DESC, to_label`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, &UnavailableError{Op: "edges", Err: err}
	}
	defer rows.Close()

	var out []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.FromLabel, &e.ToLabel, &e.Kind, &e.Strength, &e.CreatedAt); err != nil {
			return nil, &UnavailableError{Op: "edges", Err: err}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecordCoAccess infers co-accessed edges between labels materialized
// together by one query. Each pair's edge strength is incremented; edges
// are created on first co-access. Best-effort: this feeds a soft relevance
// signal and never fails a read path, so the caller may ignore the error.
func (s *Store) RecordCoAccess(namespace string, labels []string) error {
	if len(labels) < 2 {
		return nil
	}
	for i, from := range labels {
		for j, to := range labels {
			if i == j {
				continue
			}
			if _, err := s.execHook(s.db,
				`INSERT INTO edges (namespace, from_label, to_label, kind, strength)
				 VALUES (?, ?, ?, ?, 1.0)
				 ON CONFLICT (namespace, from_label, to_label, kind)
				 DO UPDATE SET strength = strength + 1.0`,
				namespace, from, to, EdgeCoAccessed,
			); err != nil {
				return &UnavailableError{Op: "co-access", Err: err}
			}
		}
	}
	return nil
}
