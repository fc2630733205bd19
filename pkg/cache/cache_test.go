package cache

import (
	"reflect"
	"sort"
	"testing"
)

type fakeInfo struct {
	Summary  string   `json:"summary"`
	Requires []string `json:"requires"`
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("creating cache: %v", err)
	}
	return c
}

func TestSetGet(t *testing.T) {
	c := newTestCache(t)

	want := fakeInfo{Summary: "Array computing.", Requires: []string{"mypy"}}
	if err := c.Set(PkgInfoNamespace, "numpy", "1.26.4", want); err != nil {
		t.Fatal(err)
	}

	var got fakeInfo
	hit, err := c.Get(PkgInfoNamespace, "numpy", "1.26.4", &got)
	if err != nil {
		t.Fatal(err)
	}
	if !hit {
		t.Fatal("expected cache hit")
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Get = %+v, want %+v", got, want)
	}
}

func TestGetMiss(t *testing.T) {
	c := newTestCache(t)

	var got fakeInfo
	hit, err := c.Get(PkgInfoNamespace, "numpy", "1.26.4", &got)
	if err != nil {
		t.Fatal(err)
	}
	if hit {
		t.Error("expected miss on empty cache")
	}
}

func TestVersionsAreIndependent(t *testing.T) {
	c := newTestCache(t)

	if err := c.Set(PkgInfoNamespace, "numpy", "1.0", fakeInfo{Summary: "old"}); err != nil {
		t.Fatal(err)
	}
	if err := c.Set(PkgInfoNamespace, "numpy", "2.0", fakeInfo{Summary: "new"}); err != nil {
		t.Fatal(err)
	}

	var got fakeInfo
	if hit, _ := c.Get(PkgInfoNamespace, "numpy", "1.0", &got); !hit || got.Summary != "old" {
		t.Errorf("version 1.0 entry = %+v (hit=%v)", got, hit)
	}
}

func TestOddVersionStrings(t *testing.T) {
	c := newTestCache(t)

	// Version strings are not filesystem-safe, keys must still round-trip.
	version := "1.0+local/“weird”..stuff"
	if err := c.Set(PkgInfoNamespace, "pkg", version, fakeInfo{Summary: "x"}); err != nil {
		t.Fatal(err)
	}
	var got fakeInfo
	if hit, err := c.Get(PkgInfoNamespace, "pkg", version, &got); err != nil || !hit {
		t.Fatalf("hit=%v err=%v", hit, err)
	}
}

func TestDelete(t *testing.T) {
	c := newTestCache(t)

	if err := c.Set(PkgInfoNamespace, "numpy", "1.0", fakeInfo{}); err != nil {
		t.Fatal(err)
	}
	if err := c.Delete(PkgInfoNamespace, "numpy", "1.0"); err != nil {
		t.Fatal(err)
	}
	if err := c.Delete(PkgInfoNamespace, "numpy", "1.0"); err != nil {
		t.Errorf("deleting missing entry: %v", err)
	}

	var got fakeInfo
	if hit, _ := c.Get(PkgInfoNamespace, "numpy", "1.0", &got); hit {
		t.Error("entry survived Delete")
	}
}

func TestDeleteAll(t *testing.T) {
	c := newTestCache(t)

	for _, version := range []string{"1.0", "1.1", "2.0"} {
		if err := c.Set(PkgInfoNamespace, "numpy", version, fakeInfo{}); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.Set(PkgInfoNamespace, "django", "5.0", fakeInfo{}); err != nil {
		t.Fatal(err)
	}

	if err := c.DeleteAll(PkgInfoNamespace, "numpy"); err != nil {
		t.Fatal(err)
	}

	names, err := c.Names(PkgInfoNamespace)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names, []string{"django"}) {
		t.Errorf("Names = %v, want [django]", names)
	}
}

func TestCountEntries(t *testing.T) {
	c := newTestCache(t)

	if n, err := c.CountEntries(PkgInfoNamespace); err != nil || n != 0 {
		t.Errorf("CountEntries = (%d, %v), want (0, nil)", n, err)
	}

	for _, version := range []string{"1.0", "1.1"} {
		if err := c.Set(PkgInfoNamespace, "numpy", version, fakeInfo{}); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.Set(PkgInfoNamespace, "django", "5.0", fakeInfo{}); err != nil {
		t.Fatal(err)
	}

	n, err := c.CountEntries(PkgInfoNamespace)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("CountEntries = %d, want 3", n)
	}
}

func TestNames(t *testing.T) {
	c := newTestCache(t)

	names, err := c.Names(PkgInfoNamespace)
	if err != nil {
		t.Fatal(err)
	}
	if names != nil {
		t.Errorf("Names on empty cache = %v", names)
	}

	for _, name := range []string{"numpy", "django", "flask"} {
		if err := c.Set(PkgInfoNamespace, name, "1.0", fakeInfo{}); err != nil {
			t.Fatal(err)
		}
	}

	names, err = c.Names(PkgInfoNamespace)
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(names)
	want := []string{"django", "flask", "numpy"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("Names = %v, want %v", names, want)
	}
}
