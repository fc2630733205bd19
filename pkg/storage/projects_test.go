package storage

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pydex/pydex/pkg/search"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("closing store: %v", err)
		}
	})
	if err := store.CreateTable(); err != nil {
		t.Fatalf("creating table: %v", err)
	}
	return store
}

func compileQuery(t *testing.T, query string) search.SQLBuilder {
	t.Helper()
	term, err := search.Parse(query)
	if err != nil {
		t.Fatalf("Parse(%q): %v", query, err)
	}
	builder, err := search.Compile(term)
	if err != nil {
		t.Fatalf("Compile(%q): %v", query, err)
	}
	return builder
}

func TestInsertIfMissing(t *testing.T) {
	store := newTestStore(t)

	if err := store.InsertIfMissing("numpy", "numpy"); err != nil {
		t.Fatal(err)
	}
	date := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := store.UpdateSummary("numpy", "Array computing.", "1.26.4", &date); err != nil {
		t.Fatal(err)
	}

	// A second insert must not clobber the crawled columns.
	if err := store.InsertIfMissing("numpy", "NumPy"); err != nil {
		t.Fatal(err)
	}

	project, err := store.GetExact("numpy")
	if err != nil {
		t.Fatal(err)
	}
	if project == nil {
		t.Fatal("project not found after insert")
	}
	if project.Summary != "Array computing." || project.ReleaseVersion != "1.26.4" {
		t.Errorf("crawled columns lost: %+v", project)
	}
	if project.ReleaseDate == nil || !project.ReleaseDate.Equal(date) {
		t.Errorf("ReleaseDate = %v, want %v", project.ReleaseDate, date)
	}
}

func TestGetExactMissing(t *testing.T) {
	store := newTestStore(t)

	project, err := store.GetExact("nope")
	if err != nil {
		t.Fatal(err)
	}
	if project != nil {
		t.Errorf("expected nil for missing project, got %+v", project)
	}
}

func TestRemoveIfFound(t *testing.T) {
	store := newTestStore(t)

	if err := store.InsertIfMissing("numpy", "numpy"); err != nil {
		t.Fatal(err)
	}
	if err := store.RemoveIfFound("numpy"); err != nil {
		t.Fatal(err)
	}
	// Removing an absent row is a no-op, not an error.
	if err := store.RemoveIfFound("numpy"); err != nil {
		t.Fatal(err)
	}

	count, err := store.CountAll()
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("CountAll = %d, want 0", count)
	}
}

func TestFullyPopulate(t *testing.T) {
	store := newTestStore(t)

	if err := store.InsertIfMissing("stale", "stale"); err != nil {
		t.Fatal(err)
	}
	if err := store.InsertIfMissing("numpy", "numpy"); err != nil {
		t.Fatal(err)
	}
	date := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := store.UpdateSummary("numpy", "Array computing.", "1.26.4", &date); err != nil {
		t.Fatal(err)
	}

	err := store.FullyPopulate(map[string]string{
		"numpy":  "numpy",
		"django": "Django",
	})
	if err != nil {
		t.Fatal(err)
	}

	if project, _ := store.GetExact("stale"); project != nil {
		t.Error("stale row survived resync")
	}
	if project, _ := store.GetExact("django"); project == nil {
		t.Error("new upstream project not inserted")
	} else if project.PreferredName != "Django" {
		t.Errorf("PreferredName = %q", project.PreferredName)
	}
	if project, _ := store.GetExact("numpy"); project == nil || project.Summary != "Array computing." {
		t.Errorf("resync clobbered existing row: %+v", project)
	}
}

func TestFullyPopulateRejectsEmptyList(t *testing.T) {
	store := newTestStore(t)

	if err := store.InsertIfMissing("numpy", "numpy"); err != nil {
		t.Fatal(err)
	}
	if err := store.FullyPopulate(nil); err == nil {
		t.Fatal("expected error for empty upstream list")
	}

	count, err := store.CountAll()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("empty resync deleted rows: count = %d", count)
	}
}

func TestSearchRelevanceOrdering(t *testing.T) {
	store := newTestStore(t)

	for _, name := range []string{
		"aaa-abc", "numpy-image", "xnumpy", "numpy", "bbb", "poly-numpy-ext",
	} {
		if err := store.InsertIfMissing(name, name); err != nil {
			t.Fatal(err)
		}
	}

	builder := compileQuery(t, "name:numpy")
	results, err := store.Search(builder, 10, 0)
	if err != nil {
		t.Fatal(err)
	}

	var got []string
	for _, p := range results {
		got = append(got, p.CanonicalName)
	}
	// Exact match first, then prefix/suffix matches, then other substring
	// matches ordered by match offset, alphabetical last.
	want := []string{"numpy", "numpy-image", "xnumpy", "poly-numpy-ext"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Search order = %v, want %v", got, want)
	}
}

func TestSearchWildcardOrdering(t *testing.T) {
	store := newTestStore(t)

	for _, name := range []string{
		"scikit-learn", "scikit-image", "scikit-build-core", "unrelated",
	} {
		if err := store.InsertIfMissing(name, name); err != nil {
			t.Fatal(err)
		}
	}

	builder := compileQuery(t, "name:scikit-*")
	results, err := store.Search(builder, 10, 0)
	if err != nil {
		t.Fatal(err)
	}

	var got []string
	for _, p := range results {
		got = append(got, p.CanonicalName)
	}
	// Fuzzy matches order by name length, alphabetical on ties.
	want := []string{"scikit-image", "scikit-learn", "scikit-build-core"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Search order = %v, want %v", got, want)
	}
}

func TestSearchPagination(t *testing.T) {
	store := newTestStore(t)

	for _, name := range []string{"pkg-a", "pkg-b", "pkg-c", "pkg-d"} {
		if err := store.InsertIfMissing(name, name); err != nil {
			t.Fatal(err)
		}
	}

	builder := compileQuery(t, "name:pkg-*")

	count, err := store.Count(builder)
	if err != nil {
		t.Fatal(err)
	}
	if count != 4 {
		t.Errorf("Count = %d, want 4", count)
	}

	page, err := store.Search(builder, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].CanonicalName != "pkg-c" || page[1].CanonicalName != "pkg-d" {
		t.Errorf("second page = %+v", page)
	}
}

func TestSearchSummaryMatch(t *testing.T) {
	store := newTestStore(t)

	if err := store.InsertIfMissing("matplotlib", "matplotlib"); err != nil {
		t.Fatal(err)
	}
	if err := store.UpdateSummary("matplotlib", "Publication quality plotting", "3.8.0", nil); err != nil {
		t.Fatal(err)
	}
	if err := store.InsertIfMissing("plotless", "plotless"); err != nil {
		t.Fatal(err)
	}

	results, err := store.Search(compileQuery(t, `summary:"plotting"`), 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].CanonicalName != "matplotlib" {
		t.Errorf("summary search results = %+v", results)
	}
}
