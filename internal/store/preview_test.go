package store

import (
	"strings"
	"testing"
)

func TestDerivePreview_FavorsHeadingsAndDirectives(t *testing.T) {
	content := `# JWT Configuration

Some introductory text about token handling that goes on for a while
so the paragraph counts as substantial context for the preview.

Keys must rotate every 90 days. The signing algorithm is RS256.
Never log raw tokens.`

	preview := DerivePreview(content, 400)

	if !strings.Contains(preview, "JWT Configuration") {
		t.Errorf("preview should carry the heading, got: %s", preview)
	}
	if !strings.Contains(preview, "must rotate") {
		t.Errorf("preview should carry directive sentences, got: %s", preview)
	}
	if !strings.Contains(preview, "Never log raw tokens") {
		t.Errorf("preview should carry all directives, got: %s", preview)
	}
}

func TestDerivePreview_Deterministic(t *testing.T) {
	content := "Plain text. Must stay identical across calls. More text here."
	a := DerivePreview(content, 200)
	b := DerivePreview(content, 200)
	if a != b {
		t.Errorf("previews differ: %q vs %q", a, b)
	}
}

func TestDerivePreview_Bounded(t *testing.T) {
	content := strings.Repeat("word ", 500)
	preview := DerivePreview(content, 100)
	if len(preview) > 103 { // maxLen plus ellipsis
		t.Errorf("preview length = %d, want <= 103", len(preview))
	}
}

func TestDerivePreview_FallbackToHead(t *testing.T) {
	preview := DerivePreview("short note", 400)
	if preview != "short note" {
		t.Errorf("preview = %q, want the content itself", preview)
	}
}

func TestDeriveKeyConcepts_TagsFirst(t *testing.T) {
	concepts := DeriveKeyConcepts(
		"database migration with rollback support. migration scripts live in db/migrations.",
		[]string{"Infra", "infra", "deploy"},
		5,
	)

	if len(concepts) > 5 {
		t.Fatalf("got %d concepts, want at most 5", len(concepts))
	}
	if concepts[0] != "infra" || concepts[1] != "deploy" {
		t.Errorf("concepts = %v, want normalized tags first", concepts)
	}
	found := false
	for _, c := range concepts {
		if c == "migration" {
			found = true
		}
	}
	if !found {
		t.Errorf("concepts = %v, want frequent token 'migration'", concepts)
	}
}

func TestDeriveKeyConcepts_SkipsStopwords(t *testing.T) {
	concepts := DeriveKeyConcepts("the and for with this that should would could", nil, 10)
	if len(concepts) != 0 {
		t.Errorf("concepts = %v, want none from pure stopwords", concepts)
	}
}

func TestDeriveKeyConcepts_Deterministic(t *testing.T) {
	content := "alpha beta gamma alpha beta alpha"
	a := DeriveKeyConcepts(content, nil, 10)
	b := DeriveKeyConcepts(content, nil, 10)
	if strings.Join(a, ",") != strings.Join(b, ",") {
		t.Errorf("concept sets differ: %v vs %v", a, b)
	}
	// Frequency order, ties alphabetical.
	if a[0] != "alpha" || a[1] != "beta" || a[2] != "gamma" {
		t.Errorf("concepts = %v, want frequency order alpha, beta, gamma", a)
	}
}

func TestSanitizeFTS(t *testing.T) {
	got := sanitizeFTS([]string{"jwt", "rotation", ""})
	if got != `"jwt" OR "rotation"` {
		t.Errorf("sanitizeFTS = %q, want quoted OR-joined keywords", got)
	}
	if sanitizeFTS(nil) != "" {
		t.Error("empty keyword set should produce empty match")
	}
	if sanitizeFTS([]string{`"`}) != "" {
		t.Error("quote-only keyword should be dropped")
	}
}
