package index

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const sampleProjectJSON = `{
  "name": "cycler",
  "files": [
    {
      "filename": "cycler-0.12.1-py3-none-any.whl",
      "url": "https://files.example.invalid/cycler-0.12.1-py3-none-any.whl",
      "size": 8321,
      "upload-time": "2023-10-07T05:37:29.000000Z",
      "yanked": false,
      "core-metadata": {"sha256": "abc"}
    },
    {
      "filename": "cycler-0.12.0.tar.gz",
      "url": "https://files.example.invalid/cycler-0.12.0.tar.gz",
      "yanked": "broken sdist"
    }
  ],
  "versions": ["0.12.0", "0.12.1"],
  "_quarantined_files": [
    {
      "filename": "cycler-0.13.0.tar.gz",
      "upload_time": "2024-01-05T10:00:00Z",
      "quarantine_release_time": "2024-02-01T00:00:00Z"
    }
  ]
}`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /simple/{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", jsonContentType)
		_, _ = w.Write([]byte(`{"projects": [{"name": "Cycler"}, {"name": "numpy"}]}`))
	})
	mux.HandleFunc("GET /simple/cycler/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", jsonContentType)
		_, _ = w.Write([]byte(sampleProjectJSON))
	})
	mux.HandleFunc("GET /simple/legacy/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>
			<a href="https://files.example.invalid/legacy-1.0.tar.gz#sha256=aa" data-yanked="why">legacy-1.0.tar.gz</a>
		</body></html>`))
	})
	mux.HandleFunc("GET /simple/cycler/{resource}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("resource") != "cycler-0.12.1-py3-none-any.whl.metadata" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("Metadata-Version: 2.1\nName: cycler\n"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestGetProjectPageJSON(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(server.URL+"/simple", nil)

	detail, err := client.GetProjectPage(context.Background(), "cycler")
	if err != nil {
		t.Fatalf("GetProjectPage: %v", err)
	}
	if detail.Name != "cycler" {
		t.Errorf("Name = %q", detail.Name)
	}
	if len(detail.Files) != 2 {
		t.Fatalf("got %d files, want 2", len(detail.Files))
	}

	whl := detail.Files[0]
	if !whl.IsWheel() || !whl.HasSize || whl.Size != 8321 {
		t.Errorf("wheel file parsed badly: %+v", whl)
	}
	if whl.UploadTime == nil || whl.UploadTime.Year() != 2023 {
		t.Errorf("upload time not parsed: %+v", whl.UploadTime)
	}
	if !whl.DistInfoMetadata {
		t.Error("core-metadata hash map should mark DistInfoMetadata")
	}

	sdist := detail.Files[1]
	if !sdist.Yanked || sdist.YankedReason != "broken sdist" {
		t.Errorf("string yanked field parsed badly: %+v", sdist)
	}

	quarantined, err := detail.QuarantinedFiles()
	if err != nil {
		t.Fatalf("QuarantinedFiles: %v", err)
	}
	if len(quarantined) != 1 || quarantined[0].Filename != "cycler-0.13.0.tar.gz" {
		t.Errorf("quarantined files = %+v", quarantined)
	}
	if _, err := quarantined[0].AvailableFrom(); err != nil {
		t.Errorf("AvailableFrom: %v", err)
	}
}

func TestGetProjectPageHTMLFallback(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(server.URL+"/simple", nil)

	detail, err := client.GetProjectPage(context.Background(), "legacy")
	if err != nil {
		t.Fatalf("GetProjectPage: %v", err)
	}
	if len(detail.Files) != 1 {
		t.Fatalf("got %d files, want 1", len(detail.Files))
	}
	f := detail.Files[0]
	if f.Filename != "legacy-1.0.tar.gz" {
		t.Errorf("Filename = %q", f.Filename)
	}
	if f.URL != "https://files.example.invalid/legacy-1.0.tar.gz" {
		t.Errorf("URL fragment not stripped: %q", f.URL)
	}
	if !f.Yanked || f.YankedReason != "why" {
		t.Errorf("yanked attr parsed badly: %+v", f)
	}
}

func TestGetProjectPageNotFound(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(server.URL+"/simple", nil)

	_, err := client.GetProjectPage(context.Background(), "no-such-project")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetProjectList(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(server.URL+"/simple", nil)

	list, err := client.GetProjectList(context.Background())
	if err != nil {
		t.Fatalf("GetProjectList: %v", err)
	}
	if len(list.Projects) != 2 {
		t.Fatalf("got %d projects, want 2", len(list.Projects))
	}
	if list.Projects[0].NormalizedName != "cycler" {
		t.Errorf("NormalizedName = %q, want %q", list.Projects[0].NormalizedName, "cycler")
	}
}

func TestGetResource(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(server.URL+"/simple", nil)

	body, err := client.GetResource(context.Background(), "cycler", "cycler-0.12.1-py3-none-any.whl.metadata")
	if err != nil {
		t.Fatalf("GetResource: %v", err)
	}
	if len(body) == 0 {
		t.Fatal("empty resource body")
	}

	_, err = client.GetResource(context.Background(), "cycler", "missing.metadata")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestNormalizeNameIdempotent(t *testing.T) {
	tests := map[string]string{
		"Django":           "django",
		"foo__Bar":         "foo-bar",
		"a.b-c_d":          "a-b-c-d",
		"scikit-learn":     "scikit-learn",
		"ruamel.yaml.clib": "ruamel-yaml-clib",
	}
	for in, want := range tests {
		got := NormalizeName(in)
		if got != want {
			t.Errorf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
		if again := NormalizeName(got); again != got {
			t.Errorf("NormalizeName not idempotent for %q: %q -> %q", in, got, again)
		}
	}
}
