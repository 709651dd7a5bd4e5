package store_test

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"timeline-go/internal/store"
	"timeline-go/internal/timeline"
)

// fakeContentsAPI emulates the hosted contents endpoint closely enough to
// exercise the client: base64 bodies with embedded line breaks, blob-SHA
// revision checks, and the documented failure statuses.
type fakeContentsAPI struct {
	mu    sync.Mutex
	files map[string][]byte

	lastAuth   string
	lastAccept string
}

func newFakeContentsAPI() *fakeContentsAPI {
	return &fakeContentsAPI{files: make(map[string][]byte)}
}

func blobSHA(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// wrappedBase64 encodes like the live API does, inserting a newline every
// 60 characters.
func wrappedBase64(data []byte) string {
	enc := base64.StdEncoding.EncodeToString(data)
	var b strings.Builder
	for len(enc) > 60 {
		b.WriteString(enc[:60])
		b.WriteString("\n")
		enc = enc[60:]
	}
	b.WriteString(enc)
	b.WriteString("\n")
	return b.String()
}

func (f *fakeContentsAPI) handler() http.Handler {
	const prefix = "/repos/owner/repo/contents/"
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, prefix) {
			http.NotFound(w, r)
			return
		}
		path := strings.TrimPrefix(r.URL.Path, prefix)

		f.mu.Lock()
		defer f.mu.Unlock()
		f.lastAuth = r.Header.Get("Authorization")
		f.lastAccept = r.Header.Get("Accept")

		switch r.Method {
		case http.MethodGet:
			f.get(w, path)
		case http.MethodPut:
			f.put(w, r, path)
		case http.MethodDelete:
			f.del(w, r, path)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

func (f *fakeContentsAPI) get(w http.ResponseWriter, path string) {
	if data, ok := f.files[path]; ok {
		json.NewEncoder(w).Encode(map[string]any{
			"type":    "file",
			"path":    path,
			"sha":     blobSHA(data),
			"content": wrappedBase64(data),
		})
		return
	}

	var items []map[string]any
	dirPrefix := path + "/"
	seenDirs := map[string]bool{}
	for p, data := range f.files {
		rest, ok := strings.CutPrefix(p, dirPrefix)
		if !ok {
			continue
		}
		if i := strings.Index(rest, "/"); i >= 0 {
			sub := dirPrefix + rest[:i]
			if !seenDirs[sub] {
				seenDirs[sub] = true
				items = append(items, map[string]any{"type": "dir", "path": sub, "sha": "tree"})
			}
			continue
		}
		items = append(items, map[string]any{"type": "file", "path": p, "sha": blobSHA(data)})
	}
	if items == nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"message": "Not Found"})
		return
	}
	json.NewEncoder(w).Encode(items)
}

func (f *fakeContentsAPI) put(w http.ResponseWriter, r *http.Request, path string) {
	var req struct {
		Content string `json:"content"`
		SHA     string `json:"sha"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	current, exists := f.files[path]
	switch {
	case !exists && req.SHA != "":
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"message": "Not Found"})
		return
	case exists && req.SHA == "":
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"message": `"sha" wasn't supplied`})
		return
	case exists && req.SHA != blobSHA(current):
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"message": path + " does not match sha"})
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.files[path] = data
	if !exists {
		w.WriteHeader(http.StatusCreated)
	}
	json.NewEncoder(w).Encode(map[string]any{"content": map[string]string{"sha": blobSHA(data)}})
}

func (f *fakeContentsAPI) del(w http.ResponseWriter, r *http.Request, path string) {
	var req struct {
		SHA string `json:"sha"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	current, exists := f.files[path]
	if !exists {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"message": "Not Found"})
		return
	}
	if req.SHA != blobSHA(current) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"message": "is at a different sha"})
		return
	}
	delete(f.files, path)
	json.NewEncoder(w).Encode(map[string]any{"content": nil})
}

func newGitHubStore(t *testing.T, fake *fakeContentsAPI) *store.GitHubStore {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	gs, err := store.NewGitHubStore(store.GitHubOptions{
		Token:   "test-token",
		Owner:   "owner",
		Repo:    "repo",
		Branch:  "main",
		APIBase: srv.URL,
		RawBase: "https://raw.test",
		Client:  srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewGitHubStore() error = %v", err)
	}
	return gs
}

func TestGitHubStoreGet(t *testing.T) {
	ctx := context.Background()
	fake := newFakeContentsAPI()
	gs := newGitHubStore(t, fake)

	t.Run("missing file", func(t *testing.T) {
		if _, err := gs.Get(ctx, "timeline-data.csv"); !errors.Is(err, timeline.ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("decodes line-wrapped base64", func(t *testing.T) {
		long := strings.Repeat("date,year,description\n", 20)
		fake.files["timeline-data.csv"] = []byte(long)

		fc, err := gs.Get(ctx, "timeline-data.csv")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if string(fc.Content) != long {
			t.Error("content mangled by base64 line breaks")
		}
		if fc.Revision != blobSHA([]byte(long)) {
			t.Errorf("Revision = %s", fc.Revision)
		}
	})

	t.Run("sends auth and accept headers", func(t *testing.T) {
		gs.Get(ctx, "timeline-data.csv")
		if fake.lastAuth != "Bearer test-token" {
			t.Errorf("Authorization = %q", fake.lastAuth)
		}
		if fake.lastAccept != "application/vnd.github+json" {
			t.Errorf("Accept = %q", fake.lastAccept)
		}
	})
}

func TestGitHubStorePut(t *testing.T) {
	ctx := context.Background()

	t.Run("create, replace, stale", func(t *testing.T) {
		fake := newFakeContentsAPI()
		gs := newGitHubStore(t, fake)

		rev, err := gs.Put(ctx, "timeline-data.csv", []byte("v1"), "create", "")
		if err != nil {
			t.Fatalf("Put(create) error = %v", err)
		}
		if rev != blobSHA([]byte("v1")) {
			t.Errorf("revision = %s", rev)
		}

		rev2, err := gs.Put(ctx, "timeline-data.csv", []byte("v2"), "update", rev)
		if err != nil {
			t.Fatalf("Put(replace) error = %v", err)
		}
		if rev2 == rev {
			t.Error("revision did not advance")
		}

		// The platform reports a stale blob SHA as a 422 naming the sha.
		if _, err := gs.Put(ctx, "timeline-data.csv", []byte("v3"), "update", rev); !errors.Is(err, timeline.ErrConflict) {
			t.Errorf("Put(stale) error = %v, want ErrConflict", err)
		}
	})

	t.Run("write against vanished baseline conflicts", func(t *testing.T) {
		fake := newFakeContentsAPI()
		gs := newGitHubStore(t, fake)

		if _, err := gs.Put(ctx, "timeline-data.csv", []byte("v1"), "update", "deadbeef"); !errors.Is(err, timeline.ErrConflict) {
			t.Errorf("Put() error = %v, want ErrConflict", err)
		}
	})

	t.Run("409 maps to conflict", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{"message": "merge conflict"})
		}))
		t.Cleanup(srv.Close)

		gs, err := store.NewGitHubStore(store.GitHubOptions{
			Owner: "owner", Repo: "repo", APIBase: srv.URL, Client: srv.Client(),
		})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := gs.Put(ctx, "timeline-data.csv", []byte("v1"), "update", "abc"); !errors.Is(err, timeline.ErrConflict) {
			t.Errorf("Put() error = %v, want ErrConflict", err)
		}
	})

	t.Run("other failures carry status and body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"message": "rate limited"})
		}))
		t.Cleanup(srv.Close)

		gs, err := store.NewGitHubStore(store.GitHubOptions{
			Owner: "owner", Repo: "repo", APIBase: srv.URL, Client: srv.Client(),
		})
		if err != nil {
			t.Fatal(err)
		}
		_, err = gs.Put(ctx, "timeline-data.csv", []byte("v1"), "update", "abc")
		if err == nil || errors.Is(err, timeline.ErrConflict) || errors.Is(err, timeline.ErrNotFound) {
			t.Fatalf("Put() error = %v, want plain failure", err)
		}
		if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "rate limited") {
			t.Errorf("error lacks status or body: %v", err)
		}
	})
}

func TestGitHubStoreDelete(t *testing.T) {
	ctx := context.Background()
	fake := newFakeContentsAPI()
	gs := newGitHubStore(t, fake)

	rev, err := gs.Put(ctx, "images/a.webp", []byte("img"), "add", "")
	if err != nil {
		t.Fatal(err)
	}

	if err := gs.Delete(ctx, "images/a.webp", "remove", "bogus"); !errors.Is(err, timeline.ErrConflict) {
		t.Errorf("Delete(stale) error = %v, want ErrConflict", err)
	}
	if err := gs.Delete(ctx, "images/a.webp", "remove", rev); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := gs.Get(ctx, "images/a.webp"); !errors.Is(err, timeline.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
}

func TestGitHubStoreList(t *testing.T) {
	ctx := context.Background()
	fake := newFakeContentsAPI()
	gs := newGitHubStore(t, fake)

	fake.files["images/a.webp"] = []byte("a")
	fake.files["images/b.png"] = []byte("b")
	fake.files["images/thumbs/c.webp"] = []byte("c")

	entries, err := gs.List(ctx, "images")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	got := map[string]bool{}
	for _, e := range entries {
		got[e.Path] = true
	}
	if len(got) != 2 || !got["images/a.webp"] || !got["images/b.png"] {
		t.Errorf("List() = %v, want the two direct files", entries)
	}

	if _, err := gs.List(ctx, "absent"); !errors.Is(err, timeline.ErrNotFound) {
		t.Errorf("List(absent) error = %v, want ErrNotFound", err)
	}
}

func TestGitHubStorePutBlob(t *testing.T) {
	ctx := context.Background()
	fake := newFakeContentsAPI()
	gs := newGitHubStore(t, fake)

	if err := gs.PutBlob(ctx, "images/a.webp", []byte("one"), "add"); err != nil {
		t.Fatalf("PutBlob(create) error = %v", err)
	}
	// Replacement fetches the current revision itself.
	if err := gs.PutBlob(ctx, "images/a.webp", []byte("two"), "replace"); err != nil {
		t.Fatalf("PutBlob(replace) error = %v", err)
	}

	fc, err := gs.Get(ctx, "images/a.webp")
	if err != nil {
		t.Fatal(err)
	}
	if string(fc.Content) != "two" {
		t.Errorf("blob content = %q, want two", fc.Content)
	}
}

func TestGitHubStoreURL(t *testing.T) {
	gs, err := store.NewGitHubStore(store.GitHubOptions{Owner: "owner", Repo: "repo", Branch: "data"})
	if err != nil {
		t.Fatal(err)
	}
	want := "https://raw.githubusercontent.com/owner/repo/data/images/a.webp"
	if got := gs.URL("images/a.webp"); got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
}
