// Package store implements the versioned context store backing Recall.
//
// It uses SQLite with an FTS5 candidate index to durably store namespaced,
// versioned context records with archival, audit, and relationship edges.
// Every operation is namespace-scoped at this boundary: identical labels in
// two namespaces never interact, and a lookup with the wrong namespace
// returns NotFound, never another namespace's data.
package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ─── Types ───────────────────────────────────────────────────────────────────

// Priority classifies a context record. Critical records may not be
// deleted without an explicit override.
type Priority string

// Priority tiers, lowest to highest.
const (
	PriorityReference Priority = "reference"
	PriorityImportant Priority = "important"
	PriorityCritical  Priority = "critical"
)

// ParsePriority validates a priority string. Empty defaults to reference;
// anything else unknown is a ValidationError, never silently coerced.
func ParsePriority(s string) (Priority, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "":
		return PriorityReference, nil
	case string(PriorityReference):
		return PriorityReference, nil
	case string(PriorityImportant):
		return PriorityImportant, nil
	case string(PriorityCritical):
		return PriorityCritical, nil
	default:
		return "", &ValidationError{Field: "priority", Value: s, Reason: "must be reference, important, or critical"}
	}
}

// Record is one versioned, labeled unit of stored knowledge.
type Record struct {
	ID             string   `json:"id"`
	Namespace      string   `json:"namespace"`
	Label          string   `json:"label"`
	Version        int      `json:"version"`
	Content        string   `json:"content,omitempty"`
	Preview        string   `json:"preview"`
	KeyConcepts    []string `json:"key_concepts,omitempty"`
	RelatedLabels  []string `json:"related_labels,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Priority       Priority `json:"priority"`
	CreatedAt      string   `json:"created_at"`
	LastAccessedAt *string  `json:"last_accessed_at,omitempty"`
	AccessCount    int      `json:"access_count"`
	OwningSession  string   `json:"owning_session,omitempty"`
}

// VersionRef identifies a newly written version.
type VersionRef struct {
	Namespace string `json:"namespace"`
	Label     string `json:"label"`
	Version   int    `json:"version"`
	ID        string `json:"id"`
}

// PutParams holds the input for writing a new context version.
type PutParams struct {
	Namespace     string
	Label         string
	Content       string
	Tags          []string
	Priority      Priority
	Related       []string
	OwningSession string
}

// DeleteParams holds the input for a delete operation.
type DeleteParams struct {
	Namespace        string
	Label            string
	Selector         VersionSelector
	Archive          bool
	OverrideCritical bool
	Reason           string
	Session          string
}

// DeleteResult reports what a delete actually did. IDs carries the
// removed record IDs for side-index cleanup.
type DeleteResult struct {
	Deleted  int      `json:"deleted"`
	Archived int      `json:"archived"`
	IDs      []string `json:"-"`
}

// Candidate is the metadata-only view of a label's latest version, used
// by the relevance engine for cheap scoring. No content is carried.
type Candidate struct {
	Label          string
	Version        int
	Preview        string
	KeyConcepts    []string
	Tags           []string
	Priority       Priority
	CreatedAt      string
	LastAccessedAt *string
	AccessCount    int
}

// Edge is a relationship between two labels within one namespace.
type Edge struct {
	FromLabel string  `json:"from_label"`
	ToLabel   string  `json:"to_label"`
	Kind      string  `json:"kind"`
	Strength  float64 `json:"strength"`
	CreatedAt string  `json:"created_at"`
}

// Edge kinds.
const (
	EdgeExplicit   = "explicit"
	EdgeCoAccessed = "co_accessed"
)

// NamespaceStats summarizes existing data in a namespace.
type NamespaceStats struct {
	Labels    int     `json:"labels"`
	Versions  int     `json:"versions"`
	Archived  int     `json:"archived"`
	Edges     int     `json:"edges"`
	LastWrite *string `json:"last_write,omitempty"`
}

// ─── Version selectors ──────────────────────────────────────────────────────

// VersionSelector picks which versions of a label an operation targets.
type VersionSelector struct {
	All     bool
	Latest  bool
	Version int
}

// Selector constructors.
var (
	SelectAll    = VersionSelector{All: true}
	SelectLatest = VersionSelector{Latest: true}
)

// SelectVersion targets one explicit version.
func SelectVersion(v int) VersionSelector { return VersionSelector{Version: v} }

// ParseSelector parses "all", "latest", "" (latest), or an explicit
// version number.
func ParseSelector(s string) (VersionSelector, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "", "latest":
		return SelectLatest, nil
	case "all":
		return SelectAll, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 1 {
		return VersionSelector{}, &ValidationError{Field: "version", Value: s, Reason: "must be 'all', 'latest', or a positive version number"}
	}
	return SelectVersion(v), nil
}

// String renders the selector for error messages and audit rows.
func (v VersionSelector) String() string {
	switch {
	case v.All:
		return "all"
	case v.Latest:
		return "latest"
	default:
		return "v" + strconv.Itoa(v.Version)
	}
}

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds store configuration.
type Config struct {
	DataDir          string
	MaxContentLength int
	PreviewLength    int
	MaxKeyConcepts   int
	CandidateCap     int
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:          filepath.Join(home, ".recall"),
		MaxContentLength: 100_000,
		PreviewLength:    400,
		MaxKeyConcepts:   12,
		CandidateCap:     50,
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the durable context store backed by SQLite.
type Store struct {
	db    *sql.DB
	cfg   Config
	log   *zap.Logger
	hooks storeHooks

	mu      sync.Mutex // guards entropy
	entropy io.Reader
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// storeHooks is a test-injection seam: production code always uses the
// defaults, tests can force failures mid-transaction (e.g. archive writes).
type storeHooks struct {
	exec    func(db execer, query string, args ...any) (sql.Result, error)
	beginTx func(db *sql.DB) (*sql.Tx, error)
	commit  func(tx *sql.Tx) error
}

func defaultStoreHooks() storeHooks {
	return storeHooks{
		exec: func(db execer, query string, args ...any) (sql.Result, error) {
			return db.Exec(query, args...)
		},
		beginTx: func(db *sql.DB) (*sql.Tx, error) { return db.Begin() },
		commit:  func(tx *sql.Tx) error { return tx.Commit() },
	}
}

func (s *Store) execHook(db execer, query string, args ...any) (sql.Result, error) {
	if s.hooks.exec != nil {
		return s.hooks.exec(db, query, args...)
	}
	return db.Exec(query, args...)
}

func (s *Store) beginTxHook() (*sql.Tx, error) {
	if s.hooks.beginTx != nil {
		return s.hooks.beginTx(s.db)
	}
	return s.db.Begin()
}

func (s *Store) commitHook(tx *sql.Tx) error {
	if s.hooks.commit != nil {
		return s.hooks.commit(tx)
	}
	return tx.Commit()
}

// New creates a Store with the given configuration. It creates the data
// directory if needed, opens SQLite in WAL mode, and runs migrations.
func New(cfg Config, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "recall.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	s := &Store{
		db:      db,
		cfg:     cfg,
		log:     log.Named("store"),
		hooks:   defaultStoreHooks(),
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("store: migration: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// newID mints a ULID. Lexically time-ordered; the monotonic entropy
// source keeps same-millisecond IDs ordered within a process.
func (s *Store) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS namespaces (
			name       TEXT PRIMARY KEY,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS sessions (
			token              TEXT PRIMARY KEY,
			state              TEXT NOT NULL DEFAULT 'pending',
			namespace          TEXT,
			client_fingerprint TEXT NOT NULL DEFAULT '',
			created_at         TEXT NOT NULL DEFAULT (datetime('now')),
			last_active_at     TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_fingerprint ON sessions(client_fingerprint);
		CREATE INDEX IF NOT EXISTS idx_sessions_active      ON sessions(last_active_at);

		CREATE TABLE IF NOT EXISTS contexts (
			seq              INTEGER PRIMARY KEY AUTOINCREMENT,
			id               TEXT    NOT NULL UNIQUE,
			namespace        TEXT    NOT NULL,
			label            TEXT    NOT NULL,
			version          INTEGER NOT NULL,
			content          TEXT    NOT NULL,
			preview          TEXT    NOT NULL,
			key_concepts     TEXT    NOT NULL DEFAULT '[]',
			tags             TEXT    NOT NULL DEFAULT '[]',
			priority         TEXT    NOT NULL DEFAULT 'reference',
			created_at       TEXT    NOT NULL DEFAULT (datetime('now')),
			last_accessed_at TEXT,
			access_count     INTEGER NOT NULL DEFAULT 0,
			owning_session   TEXT,
			UNIQUE (namespace, label, version)
		);

		CREATE INDEX IF NOT EXISTS idx_ctx_ns_label ON contexts(namespace, label, created_at DESC, version DESC);
		CREATE INDEX IF NOT EXISTS idx_ctx_created  ON contexts(created_at DESC);

		CREATE VIRTUAL TABLE IF NOT EXISTS contexts_fts USING fts5(
			label,
			preview,
			key_concepts,
			tags,
			content='contexts',
			content_rowid='seq'
		);

		CREATE TABLE IF NOT EXISTS archives (
			id                 TEXT PRIMARY KEY,
			context_id         TEXT NOT NULL,
			namespace          TEXT NOT NULL,
			label              TEXT NOT NULL,
			version            INTEGER NOT NULL,
			content            TEXT NOT NULL,
			preview            TEXT NOT NULL,
			key_concepts       TEXT NOT NULL,
			tags               TEXT NOT NULL,
			priority           TEXT NOT NULL,
			created_at         TEXT NOT NULL,
			deleted_at         TEXT NOT NULL DEFAULT (datetime('now')),
			delete_reason      TEXT,
			deleted_by_session TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_arch_ns_label ON archives(namespace, label);

		CREATE TABLE IF NOT EXISTS edges (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			namespace  TEXT NOT NULL,
			from_label TEXT NOT NULL,
			to_label   TEXT NOT NULL,
			kind       TEXT NOT NULL DEFAULT 'explicit',
			strength   REAL NOT NULL DEFAULT 1.0,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			UNIQUE (namespace, from_label, to_label, kind)
		);

		CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(namespace, from_label);
		CREATE INDEX IF NOT EXISTS idx_edges_to   ON edges(namespace, to_label);

		CREATE TABLE IF NOT EXISTS audit (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			namespace         TEXT NOT NULL,
			action            TEXT NOT NULL,
			label             TEXT NOT NULL,
			selector          TEXT,
			record_count      INTEGER NOT NULL DEFAULT 0,
			overrode_critical INTEGER NOT NULL DEFAULT 0,
			archived          INTEGER NOT NULL DEFAULT 0,
			session           TEXT,
			created_at        TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_audit_ns ON audit(namespace, created_at DESC);
	`
	if _, err := s.execHook(s.db, schema); err != nil {
		return err
	}

	// FTS triggers (idempotent: created only if missing).
	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='trigger' AND name='ctx_fts_insert'",
	).Scan(&name)

	if err == sql.ErrNoRows {
		triggers := `
			CREATE TRIGGER ctx_fts_insert AFTER INSERT ON contexts BEGIN
				INSERT INTO contexts_fts(rowid, label, preview, key_concepts, tags)
				VALUES (new.seq, new.label, new.preview, new.key_concepts, new.tags);
			END;

			CREATE TRIGGER ctx_fts_delete AFTER DELETE ON contexts BEGIN
				INSERT INTO contexts_fts(contexts_fts, rowid, label, preview, key_concepts, tags)
				VALUES ('delete', old.seq, old.label, old.preview, old.key_concepts, old.tags);
			END;
		`
		if _, err := s.execHook(s.db, triggers); err != nil {
			return err
		}
	} else if err != nil && err != sql.ErrNoRows {
		return err
	}

	return nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Truncate shortens a string to max length with ellipsis.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// marshalList encodes a string slice as a JSON array, never nil.
func marshalList(items []string) string {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// unmarshalList decodes a JSON array column, tolerating legacy blanks.
func unmarshalList(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	return items
}

// sanitizeFTS wraps each word in quotes and ORs them for safe FTS5
// candidate queries. "jwt token expiry" → `"jwt" OR "token" OR "expiry"`.
func sanitizeFTS(keywords []string) string {
	quoted := make([]string, 0, len(keywords))
	for _, w := range keywords {
		w = strings.Trim(w, `"`)
		if w == "" {
			continue
		}
		quoted = append(quoted, `"`+w+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// Now returns the current time formatted for SQLite.
func Now() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05")
}

// ParseTime parses a SQLite timestamp produced by Now() or datetime('now').
func ParseTime(s string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
