package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// newTestStore creates a Store in a temp directory with a provisioned
// test namespace.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{
		DataDir:          t.TempDir(),
		MaxContentLength: 100_000,
		PreviewLength:    400,
		MaxKeyConcepts:   12,
		CandidateCap:     50,
	}, nil)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.ProvisionNamespace("proj-a"); err != nil {
		t.Fatalf("failed to provision namespace: %v", err)
	}
	return s
}

func mustPut(t *testing.T, s *Store, p PutParams) *VersionRef {
	t.Helper()
	if p.Namespace == "" {
		p.Namespace = "proj-a"
	}
	ref, err := s.Put(p)
	if err != nil {
		t.Fatalf("Put(%q) error: %v", p.Label, err)
	}
	return ref
}

// ─── Put / versioning ────────────────────────────────────────────────────────

func TestPut_VersionsNeverOverwrite(t *testing.T) {
	s := newTestStore(t)

	v1 := mustPut(t, s, PutParams{Label: "auth_design", Content: "x = 1"})
	v2 := mustPut(t, s, PutParams{Label: "auth_design", Content: "x = 2"})

	if v1.Version != 1 || v2.Version != 2 {
		t.Fatalf("versions = %d, %d, want 1, 2", v1.Version, v2.Version)
	}

	latest, err := s.Latest("proj-a", "auth_design")
	if err != nil {
		t.Fatalf("Latest error: %v", err)
	}
	if latest.Content != "x = 2" {
		t.Errorf("latest content = %q, want %q", latest.Content, "x = 2")
	}

	old, err := s.Get("proj-a", "auth_design", SelectVersion(1))
	if err != nil {
		t.Fatalf("Get v1 error: %v", err)
	}
	if old[0].Content != "x = 1" {
		t.Errorf("v1 content = %q, want %q", old[0].Content, "x = 1")
	}
}

func TestPut_VersionsIndependentPerLabel(t *testing.T) {
	s := newTestStore(t)

	mustPut(t, s, PutParams{Label: "a", Content: "one"})
	mustPut(t, s, PutParams{Label: "a", Content: "two"})
	ref := mustPut(t, s, PutParams{Label: "b", Content: "first of b"})

	if ref.Version != 1 {
		t.Errorf("label b first version = %d, want 1", ref.Version)
	}
}

func TestPut_UnprovisionedNamespace(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Put(PutParams{Namespace: "nope", Label: "x", Content: "body"})
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want NotFoundError", err)
	}
	if nf.Namespace != "nope" {
		t.Errorf("error namespace = %q, want %q", nf.Namespace, "nope")
	}
}

func TestPut_Validation(t *testing.T) {
	s := newTestStore(t)

	cases := []struct {
		name string
		p    PutParams
	}{
		{"empty label", PutParams{Namespace: "proj-a", Label: "", Content: "body"}},
		{"empty content", PutParams{Namespace: "proj-a", Label: "x", Content: "  "}},
		{"oversized label", PutParams{Namespace: "proj-a", Label: strings.Repeat("a", 300), Content: "body"}},
		{"bad priority", PutParams{Namespace: "proj-a", Label: "x", Content: "body", Priority: "urgent"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Put(tc.p)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("error = %v, want ValidationError", err)
			}
		})
	}
}

func TestPut_RelatedRecordsEdges(t *testing.T) {
	s := newTestStore(t)

	mustPut(t, s, PutParams{Label: "auth_design", Content: "uses sessions", Related: []string{"session_model", "auth_design"}})

	edges, err := s.EdgesFrom("proj-a", "auth_design", EdgeExplicit)
	if err != nil {
		t.Fatalf("EdgesFrom error: %v", err)
	}
	if len(edges) != 1 || edges[0].ToLabel != "session_model" {
		t.Errorf("edges = %+v, want single edge to session_model (self-edge dropped)", edges)
	}
}

// ─── Get ─────────────────────────────────────────────────────────────────────

func TestGet_AllNewestFirst(t *testing.T) {
	s := newTestStore(t)

	mustPut(t, s, PutParams{Label: "x", Content: "one"})
	mustPut(t, s, PutParams{Label: "x", Content: "two"})
	mustPut(t, s, PutParams{Label: "x", Content: "three"})

	records, err := s.Get("proj-a", "x", SelectAll)
	if err != nil {
		t.Fatalf("Get all error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[0].Version != 3 || records[2].Version != 1 {
		t.Errorf("order = %d,%d,%d, want newest first", records[0].Version, records[1].Version, records[2].Version)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)
	mustPut(t, s, PutParams{Label: "x", Content: "body"})

	cases := []struct {
		name      string
		namespace string
		label     string
		sel       VersionSelector
	}{
		{"unknown label", "proj-a", "ghost", SelectLatest},
		{"unknown version", "proj-a", "x", SelectVersion(9)},
		{"other namespace", "proj-b", "x", SelectLatest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Get(tc.namespace, tc.label, tc.sel)
			var nf *NotFoundError
			if !errors.As(err, &nf) {
				t.Errorf("error = %v, want NotFoundError", err)
			}
		})
	}
}

func TestTouch_FeedsRecencySignal(t *testing.T) {
	s := newTestStore(t)
	mustPut(t, s, PutParams{Label: "x", Content: "body"})

	if err := s.Touch("proj-a", "x"); err != nil {
		t.Fatalf("Touch error: %v", err)
	}
	rec, err := s.Latest("proj-a", "x")
	if err != nil {
		t.Fatalf("Latest error: %v", err)
	}
	if rec.AccessCount != 1 {
		t.Errorf("access count = %d, want 1", rec.AccessCount)
	}
	if rec.LastAccessedAt == nil {
		t.Error("last_accessed_at should be set after touch")
	}

	if err := s.Touch("proj-a", "ghost"); err == nil {
		t.Error("Touch on unknown label should fail")
	}
}

// ─── Delete / critical protection / archival ────────────────────────────────

func TestDelete_ArchivesBeforeDelete(t *testing.T) {
	s := newTestStore(t)
	mustPut(t, s, PutParams{Label: "x", Content: "one"})
	mustPut(t, s, PutParams{Label: "x", Content: "two"})

	res, err := s.Delete(DeleteParams{
		Namespace: "proj-a", Label: "x",
		Selector: SelectLatest, Archive: true, Reason: "superseded",
	})
	if err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if res.Deleted != 1 || res.Archived != 1 {
		t.Errorf("deleted=%d archived=%d, want 1, 1", res.Deleted, res.Archived)
	}

	// v2 gone, v1 intact.
	if _, err := s.Get("proj-a", "x", SelectVersion(2)); err == nil {
		t.Error("v2 should be gone")
	}
	if _, err := s.Get("proj-a", "x", SelectVersion(1)); err != nil {
		t.Errorf("v1 should survive: %v", err)
	}

	archived, err := s.ArchivedVersions("proj-a", "x")
	if err != nil {
		t.Fatalf("ArchivedVersions error: %v", err)
	}
	if len(archived) != 1 || archived[0].Version != 2 || archived[0].Content != "two" {
		t.Errorf("archive = %+v, want v2 with original content", archived)
	}
}

func TestDelete_CriticalProtectionIsLabelLevel(t *testing.T) {
	s := newTestStore(t)
	mustPut(t, s, PutParams{Label: "jwt_config", Content: "v1 body"})
	mustPut(t, s, PutParams{Label: "jwt_config", Content: "v2 body", Priority: PriorityCritical})

	// Deleting the non-critical v1 is still blocked: protection covers
	// every version of the label.
	_, err := s.Delete(DeleteParams{
		Namespace: "proj-a", Label: "jwt_config",
		Selector: SelectVersion(1), Archive: true,
	})
	var cp *CriticalProtectedError
	if !errors.As(err, &cp) {
		t.Fatalf("error = %v, want CriticalProtectedError", err)
	}
	if len(cp.CriticalVersions) != 1 || cp.CriticalVersions[0] != 2 {
		t.Errorf("critical versions = %v, want [2]", cp.CriticalVersions)
	}

	// Explicit override goes through and is audited.
	res, err := s.Delete(DeleteParams{
		Namespace: "proj-a", Label: "jwt_config",
		Selector: SelectAll, Archive: true, OverrideCritical: true,
	})
	if err != nil {
		t.Fatalf("forced delete error: %v", err)
	}
	if res.Deleted != 2 {
		t.Errorf("deleted = %d, want 2", res.Deleted)
	}

	trail, err := s.AuditTrail("proj-a", 5)
	if err != nil {
		t.Fatalf("AuditTrail error: %v", err)
	}
	if len(trail) == 0 || trail[0].Action != "delete" || !trail[0].OverrodeCritical {
		t.Errorf("latest audit = %+v, want delete with overrode_critical", trail)
	}
}

func TestDelete_ArchiveFailureAbortsEverything(t *testing.T) {
	s := newTestStore(t)
	mustPut(t, s, PutParams{Label: "x", Content: "body"})

	s.hooks.exec = func(db execer, query string, args ...any) (sql.Result, error) {
		if strings.Contains(query, "INSERT INTO archives") {
			return nil, fmt.Errorf("disk full")
		}
		return db.Exec(query, args...)
	}

	_, err := s.Delete(DeleteParams{
		Namespace: "proj-a", Label: "x", Selector: SelectLatest, Archive: true,
	})
	var af *ArchivalFailedError
	if !errors.As(err, &af) {
		t.Fatalf("error = %v, want ArchivalFailedError", err)
	}

	s.hooks = defaultStoreHooks()

	// Nothing was mutated: record still readable, nothing archived.
	if _, err := s.Latest("proj-a", "x"); err != nil {
		t.Errorf("record should survive failed archive: %v", err)
	}
	archived, _ := s.ArchivedVersions("proj-a", "x")
	if len(archived) != 0 {
		t.Errorf("archives = %d, want 0", len(archived))
	}
}

func TestDelete_AlreadyDeletedIsNotFound(t *testing.T) {
	s := newTestStore(t)
	mustPut(t, s, PutParams{Label: "x", Content: "body"})

	if _, err := s.Delete(DeleteParams{Namespace: "proj-a", Label: "x", Selector: SelectAll, Archive: true}); err != nil {
		t.Fatalf("first delete error: %v", err)
	}

	_, err := s.Delete(DeleteParams{Namespace: "proj-a", Label: "x", Selector: SelectAll, Archive: true})
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("second delete error = %v, want NotFoundError", err)
	}

	// No double-archive.
	archived, _ := s.ArchivedVersions("proj-a", "x")
	if len(archived) != 1 {
		t.Errorf("archives = %d, want 1", len(archived))
	}
}

func TestAudit_SelectorFormMatchesAcrossActions(t *testing.T) {
	s := newTestStore(t)
	mustPut(t, s, PutParams{Label: "x", Content: "body"})

	if _, err := s.Delete(DeleteParams{
		Namespace: "proj-a", Label: "x", Selector: SelectVersion(1), Archive: true,
	}); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	trail, err := s.AuditTrail("proj-a", 5)
	if err != nil {
		t.Fatalf("AuditTrail error: %v", err)
	}
	if len(trail) != 2 {
		t.Fatalf("got %d audit rows, want 2", len(trail))
	}
	// Put and delete of the same version render the same selector form.
	if trail[0].Selector != "v1" || trail[1].Selector != "v1" {
		t.Errorf("selectors = %q, %q, want v1 for both", trail[0].Selector, trail[1].Selector)
	}
}

// ─── Candidates (metadata index) ─────────────────────────────────────────────

func TestCandidates_MatchesWithoutLoadingContent(t *testing.T) {
	s := newTestStore(t)
	mustPut(t, s, PutParams{Label: "jwt_config", Content: "Token rotation policy. Keys must rotate every 90 days."})
	mustPut(t, s, PutParams{Label: "deploy_notes", Content: "Blue green deployment with health checks."})

	got, err := s.Candidates("proj-a", []string{"jwt", "rotation"}, 10)
	if err != nil {
		t.Fatalf("Candidates error: %v", err)
	}
	if len(got) != 1 || got[0].Label != "jwt_config" {
		t.Fatalf("candidates = %+v, want only jwt_config", got)
	}
	if got[0].Preview == "" {
		t.Error("candidate should carry a preview")
	}
}

func TestCandidates_LatestVersionPerLabel(t *testing.T) {
	s := newTestStore(t)
	mustPut(t, s, PutParams{Label: "jwt_config", Content: "jwt version one"})
	mustPut(t, s, PutParams{Label: "jwt_config", Content: "jwt version two"})

	got, err := s.Candidates("proj-a", []string{"jwt"}, 10)
	if err != nil {
		t.Fatalf("Candidates error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1 (latest per label)", len(got))
	}
	if got[0].Version != 2 {
		t.Errorf("candidate version = %d, want 2", got[0].Version)
	}
}

func TestCandidates_CapKeepsBestRankedNotAlphabetical(t *testing.T) {
	s := newTestStore(t)
	// The heavy match sorts alphabetically last; a cap of 1 must still
	// keep it over the label that barely mentions the term.
	mustPut(t, s, PutParams{Label: "aaa_misc", Content: "General deployment notes. The checklist mentions jwt once."})
	mustPut(t, s, PutParams{
		Label:   "zzz_jwt_rotation",
		Content: "jwt rotation policy. The jwt signing keys must rotate every 90 days. Audit every jwt usage.",
		Tags:    []string{"jwt"},
	})

	got, err := s.Candidates("proj-a", []string{"jwt"}, 1)
	if err != nil {
		t.Fatalf("Candidates error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1", len(got))
	}
	if got[0].Label != "zzz_jwt_rotation" {
		t.Errorf("capped candidate = %q, want zzz_jwt_rotation (best match)", got[0].Label)
	}
}

func TestCandidates_NamespaceIsolation(t *testing.T) {
	s := newTestStore(t)
	if err := s.ProvisionNamespace("proj-b"); err != nil {
		t.Fatal(err)
	}
	mustPut(t, s, PutParams{Namespace: "proj-a", Label: "jwt_config", Content: "jwt in a"})
	mustPut(t, s, PutParams{Namespace: "proj-b", Label: "jwt_other", Content: "jwt in b"})

	got, err := s.Candidates("proj-a", []string{"jwt"}, 10)
	if err != nil {
		t.Fatalf("Candidates error: %v", err)
	}
	for _, c := range got {
		if c.Label == "jwt_other" {
			t.Error("candidate leaked from another namespace")
		}
	}
}

// ─── Edges ───────────────────────────────────────────────────────────────────

func TestAddEdge_RejectsSelfEdge(t *testing.T) {
	s := newTestStore(t)
	err := s.AddEdge("proj-a", "x", "x")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("error = %v, want ValidationError", err)
	}
}

func TestRecordCoAccess_StrengthensOnRepeat(t *testing.T) {
	s := newTestStore(t)

	labels := []string{"a", "b"}
	if err := s.RecordCoAccess("proj-a", labels); err != nil {
		t.Fatalf("first co-access: %v", err)
	}
	if err := s.RecordCoAccess("proj-a", labels); err != nil {
		t.Fatalf("second co-access: %v", err)
	}

	edges, err := s.EdgesFrom("proj-a", "a", EdgeCoAccessed)
	if err != nil {
		t.Fatalf("EdgesFrom error: %v", err)
	}
	if len(edges) != 1 || edges[0].Strength != 2.0 {
		t.Errorf("edges = %+v, want single co_accessed edge with strength 2", edges)
	}

	// Single-label access is not co-access.
	if err := s.RecordCoAccess("proj-a", []string{"a"}); err != nil {
		t.Errorf("single-label co-access should be a no-op: %v", err)
	}
}

// ─── Namespaces ──────────────────────────────────────────────────────────────

func TestSanitizeNamespace(t *testing.T) {
	valid := []string{"proj-a", "a", "my_project", "p2", "abc-def_123"}
	for _, v := range valid {
		if _, err := SanitizeNamespace(v); err != nil {
			t.Errorf("SanitizeNamespace(%q) = %v, want ok", v, err)
		}
	}

	invalid := []string{"", "Proj", "-leading", "_leading", "has space", "has/slash", "a.b", strings.Repeat("a", 65)}
	for _, v := range invalid {
		if _, err := SanitizeNamespace(v); err == nil {
			t.Errorf("SanitizeNamespace(%q) should be rejected", v)
		}
	}
}

func TestProvisionNamespace_Idempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.ProvisionNamespace("proj-a"); err != nil {
		t.Fatalf("re-provision error: %v", err)
	}
	names, err := s.ListNamespaces()
	if err != nil {
		t.Fatalf("ListNamespaces error: %v", err)
	}
	if len(names) != 1 {
		t.Errorf("namespaces = %v, want single proj-a", names)
	}
}

func TestNamespaceStats(t *testing.T) {
	s := newTestStore(t)
	mustPut(t, s, PutParams{Label: "x", Content: "one"})
	mustPut(t, s, PutParams{Label: "x", Content: "two"})
	mustPut(t, s, PutParams{Label: "y", Content: "other", Related: []string{"x"}})

	stats, err := s.NamespaceStats("proj-a")
	if err != nil {
		t.Fatalf("NamespaceStats error: %v", err)
	}
	if stats.Labels != 2 || stats.Versions != 3 || stats.Edges != 1 {
		t.Errorf("stats = %+v, want 2 labels, 3 versions, 1 edge", stats)
	}
	if stats.LastWrite == nil {
		t.Error("last write should be set")
	}

	if _, err := s.NamespaceStats("ghost"); err == nil {
		t.Error("stats for unknown namespace should be NotFound")
	}
}

// ─── Sessions ────────────────────────────────────────────────────────────────

func TestSessionRows(t *testing.T) {
	s := newTestStore(t)

	if err := s.CreateSession("tok-1", "fp-1", ""); err != nil {
		t.Fatalf("CreateSession error: %v", err)
	}
	row, err := s.GetSession("tok-1")
	if err != nil {
		t.Fatalf("GetSession error: %v", err)
	}
	if row.State != "pending" || row.Namespace != nil {
		t.Errorf("row = %+v, want pending with nil namespace", row)
	}

	if err := s.ResolveSession("tok-1", "proj-a"); err != nil {
		t.Fatalf("ResolveSession error: %v", err)
	}
	row, _ = s.GetSession("tok-1")
	if row.State != "resolved" || row.Namespace == nil || *row.Namespace != "proj-a" {
		t.Errorf("row = %+v, want resolved to proj-a", row)
	}

	// Unknown token is absence, not a fault.
	row, err = s.GetSession("ghost")
	if err != nil || row != nil {
		t.Errorf("GetSession(ghost) = %v, %v, want nil, nil", row, err)
	}

	// Resolving an unknown token is a fault.
	err = s.ResolveSession("ghost", "proj-a")
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Session != "ghost" {
		t.Errorf("error = %v, want NotFoundError for session ghost", err)
	}

	if err := s.DeleteSession("tok-1"); err != nil {
		t.Fatalf("DeleteSession error: %v", err)
	}
	row, _ = s.GetSession("tok-1")
	if row != nil {
		t.Error("session should be gone after delete")
	}
}

func TestCreateSession_WithNamespaceStartsResolved(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateSession("tok-2", "fp-2", "proj-a"); err != nil {
		t.Fatalf("CreateSession error: %v", err)
	}
	row, _ := s.GetSession("tok-2")
	if row.State != "resolved" || row.Namespace == nil || *row.Namespace != "proj-a" {
		t.Errorf("row = %+v, want resolved to proj-a", row)
	}
}

// ─── Selectors / priorities ──────────────────────────────────────────────────

func TestParseSelector(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"", "latest", true},
		{"latest", "latest", true},
		{"ALL", "all", true},
		{"3", "v3", true},
		{"0", "", false},
		{"-1", "", false},
		{"banana", "", false},
	}
	for _, tc := range cases {
		sel, err := ParseSelector(tc.in)
		if tc.ok != (err == nil) {
			t.Errorf("ParseSelector(%q) error = %v, want ok=%v", tc.in, err, tc.ok)
			continue
		}
		if tc.ok && sel.String() != tc.want {
			t.Errorf("ParseSelector(%q) = %q, want %q", tc.in, sel.String(), tc.want)
		}
	}
}

func TestParsePriority(t *testing.T) {
	cases := []struct {
		in   string
		want Priority
		ok   bool
	}{
		{"", PriorityReference, true},
		{"critical", PriorityCritical, true},
		{"IMPORTANT", PriorityImportant, true},
		{"reference", PriorityReference, true},
		{"urgent", "", false},
	}
	for _, tc := range cases {
		got, err := ParsePriority(tc.in)
		if tc.ok != (err == nil) {
			t.Errorf("ParsePriority(%q) error = %v, want ok=%v", tc.in, err, tc.ok)
			continue
		}
		if tc.ok && got != tc.want {
			t.Errorf("ParsePriority(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
