package store

// Delete removes context versions with label-level critical protection and
// archive-before-delete ordering. The whole pipeline — resolve targets,
// critical check, archive writes, row deletes, audit entry — runs in one
// transaction: a failure at any step leaves the store exactly as before
// the call. Re-deleting an already-deleted target resolves an empty set
// and returns NotFound; it never double-archives.
func (s *Store) Delete(p DeleteParams) (*DeleteResult, error) {
	label, err := validateLabel(p.Label)
	if err != nil {
		return nil, err
	}

	tx, err := s.beginTxHook()
	if err != nil {
		return nil, &UnavailableError{Op: "delete", Err: err}
	}
	defer tx.Rollback() //nolint:errcheck

	// Resolve the target set.
	query := `SELECT ` + recordColumns + ` FROM contexts WHERE namespace = ? AND label = ?`
	args := []any{p.Namespace, label}
	switch {
	case p.Selector.All:
		query += ` ORDER BY version`
	case p.Selector.Latest:
		query += ` ORDER BY created_at DESC, version DESC LIMIT 1`
	default:
		query += ` AND version = ?`
		args = append(args, p.Selector.Version)
	}

	rows, err := tx.Query(query, args...)
	if err != nil {
		return nil, &UnavailableError{Op: "delete resolve", Err: err}
	}
	var targets []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			rows.Close()
			return nil, &UnavailableError{Op: "delete resolve", Err: err}
		}
		targets = append(targets, *r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, &UnavailableError{Op: "delete resolve", Err: err}
	}
	rows.Close()

	if len(targets) == 0 {
		return nil, &NotFoundError{Namespace: p.Namespace, Label: label, Version: p.Selector.String()}
	}

	// Critical protection is label-level, all-or-nothing: if ANY version of
	// the label is critical, deleting ANY version requires the override —
	// even when the resolved target set contains no critical version.
	critRows, err := tx.Query(
		`SELECT version FROM contexts WHERE namespace = ? AND label = ? AND priority = ? ORDER BY version`,
		p.Namespace, label, string(PriorityCritical),
	)
	if err != nil {
		return nil, &UnavailableError{Op: "delete critical check", Err: err}
	}
	var critical []int
	for critRows.Next() {
		var v int
		if err := critRows.Scan(&v); err != nil {
			critRows.Close()
			return nil, &UnavailableError{Op: "delete critical check", Err: err}
		}
		critical = append(critical, v)
	}
	if err := critRows.Err(); err != nil {
		critRows.Close()
		return nil, &UnavailableError{Op: "delete critical check", Err: err}
	}
	critRows.Close()

	if len(critical) > 0 && !p.OverrideCritical {
		return nil, &CriticalProtectedError{Namespace: p.Namespace, Label: label, CriticalVersions: critical}
	}

	// Archive strictly before delete. A failed archive write aborts the
	// whole operation before any live row is touched.
	archived := 0
	if p.Archive {
		for _, r := range targets {
			if _, err := s.execHook(tx,
				`INSERT INTO archives (id, context_id, namespace, label, version, content, preview,
				                       key_concepts, tags, priority, created_at, delete_reason, deleted_by_session)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				s.newID(), r.ID, r.Namespace, r.Label, r.Version, r.Content, r.Preview,
				marshalList(r.KeyConcepts), marshalList(r.Tags), string(r.Priority), r.CreatedAt,
				nullableString(p.Reason), nullableString(p.Session),
			); err != nil {
				return nil, &ArchivalFailedError{Namespace: p.Namespace, Label: label, Err: err}
			}
			archived++
		}
	}

	deleted := 0
	ids := make([]string, 0, len(targets))
	for _, r := range targets {
		ids = append(ids, r.ID)
		res, err := s.execHook(tx, `DELETE FROM contexts WHERE id = ?`, r.ID)
		if err != nil {
			return nil, &UnavailableError{Op: "delete rows", Err: err}
		}
		n, _ := res.RowsAffected()
		deleted += int(n)
	}

	if _, err := s.execHook(tx,
		`INSERT INTO audit (namespace, action, label, selector, record_count, overrode_critical, archived, session)
		 VALUES (?, 'delete', ?, ?, ?, ?, ?, ?)`,
		p.Namespace, label, p.Selector.String(), deleted,
		boolToInt(p.OverrideCritical), boolToInt(p.Archive), nullableString(p.Session),
	); err != nil {
		return nil, &UnavailableError{Op: "delete audit", Err: err}
	}

	if err := s.commitHook(tx); err != nil {
		return nil, &UnavailableError{Op: "delete commit", Err: err}
	}

	return &DeleteResult{Deleted: deleted, Archived: archived, IDs: ids}, nil
}

// ArchivedVersions returns the archive copies for a label, newest first.
func (s *Store) ArchivedVersions(namespace, label string) ([]Record, error) {
	label, err := validateLabel(label)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(
		`SELECT context_id, namespace, label, version, content, preview, key_concepts, tags, priority,
		        created_at, deleted_at, 0, deleted_by_session
		 FROM archives WHERE namespace = ? AND label = ?
		 ORDER BY deleted_at DESC, version DESC`,
		namespace, label,
	)
	if err != nil {
		return nil, &UnavailableError{Op: "archives", Err: err}
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, &UnavailableError{Op: "archives", Err: err}
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// AuditEntry is one row of the mutation trail.
type AuditEntry struct {
	Namespace        string `json:"namespace"`
	Action           string `json:"action"`
	Label            string `json:"label"`
	Selector         string `json:"selector,omitempty"`
	RecordCount      int    `json:"record_count"`
	OverrodeCritical bool   `json:"overrode_critical"`
	Archived         bool   `json:"archived"`
	Session          string `json:"session,omitempty"`
	CreatedAt        string `json:"created_at"`
}

// AuditTrail returns recent audit entries for a namespace, newest first.
func (s *Store) AuditTrail(namespace string, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT namespace, action, label, COALESCE(selector, ''), record_count,
		        overrode_critical, archived, COALESCE(session, ''), created_at
		 FROM audit WHERE namespace = ? ORDER BY id DESC LIMIT ?`,
		namespace, limit,
	)
	if err != nil {
		return nil, &UnavailableError{Op: "audit trail", Err: err}
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var overrode, archived int
		if err := rows.Scan(&e.Namespace, &e.Action, &e.Label, &e.Selector, &e.RecordCount,
			&overrode, &archived, &e.Session, &e.CreatedAt); err != nil {
			return nil, &UnavailableError{Op: "audit trail", Err: err}
		}
		e.OverrodeCritical = overrode != 0
		e.Archived = archived != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
