package store_test

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strings"
	"sync"
	"testing"

	"momentshub/internal/store"
)

const (
	fakeOwner = "octo"
	fakeRepo  = "data"
	fakeToken = "ghp_test"
)

// fakeGitHub emulates the parts of the contents and blobs API the store
// uses, keeping files in memory.
type fakeGitHub struct {
	mu          sync.Mutex
	files       map[string][]byte
	inlineLimit int
	requests    []string
	headers     []http.Header
	putLengths  []int64
	failStatus  int
	failBody    string
}

func newFakeGitHub(t *testing.T) (*fakeGitHub, *httptest.Server) {
	t.Helper()
	f := &fakeGitHub{files: make(map[string][]byte), inlineLimit: 1 << 20}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeGitHub) seed(p string, content []byte) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[p] = content
	return store.BlobVersion(content)
}

func (f *fakeGitHub) file(p string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[p]
	return data, ok
}

func (f *fakeGitHub) log() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *fakeGitHub) count(prefix string) int {
	n := 0
	for _, r := range f.log() {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeGitHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.headers = append(f.headers, r.Header.Clone())
	if r.Method == http.MethodPut {
		f.putLengths = append(f.putLengths, r.ContentLength)
	}

	if f.failStatus != 0 {
		status := f.failStatus
		f.failStatus = 0
		http.Error(w, f.failBody, status)
		return
	}

	contents := "/repos/" + fakeOwner + "/" + fakeRepo + "/contents"
	blobs := "/repos/" + fakeOwner + "/" + fakeRepo + "/git/blobs/"
	switch {
	case strings.HasPrefix(r.URL.Path, blobs):
		f.serveBlob(w, strings.TrimPrefix(r.URL.Path, blobs))
	case strings.HasPrefix(r.URL.Path, contents):
		p := strings.Trim(strings.TrimPrefix(r.URL.Path, contents), "/")
		switch r.Method {
		case http.MethodGet:
			f.serveGet(w, p)
		case http.MethodPut:
			f.servePut(w, r, p)
		case http.MethodDelete:
			f.serveDelete(w, r, p)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		notFound(w)
	}
}

func (f *fakeGitHub) serveGet(w http.ResponseWriter, p string) {
	if data, ok := f.files[p]; ok {
		item := map[string]any{
			"type": "file",
			"name": path.Base(p),
			"path": p,
			"sha":  store.BlobVersion(data),
			"size": len(data),
		}
		if len(data) <= f.inlineLimit {
			item["encoding"] = "base64"
			item["content"] = wrapped(data)
		} else {
			item["encoding"] = "none"
			item["content"] = ""
		}
		writeJSON(w, http.StatusOK, item)
		return
	}

	prefix := p + "/"
	if p == "" {
		prefix = ""
	}
	children := map[string]map[string]any{}
	for fp, data := range f.files {
		rest, ok := strings.CutPrefix(fp, prefix)
		if !ok {
			continue
		}
		name, _, nested := strings.Cut(rest, "/")
		if nested {
			children[name] = map[string]any{"type": "dir", "name": name, "path": prefix + name, "sha": "tree", "size": 0}
		} else {
			children[name] = map[string]any{"type": "file", "name": name, "path": fp, "sha": store.BlobVersion(data), "size": len(data)}
		}
	}
	if len(children) == 0 {
		notFound(w)
		return
	}
	names := make([]string, 0, len(children))
	for n := range children {
		names = append(names, n)
	}
	sort.Strings(names)
	list := make([]map[string]any, 0, len(names))
	for _, n := range names {
		list = append(list, children[n])
	}
	writeJSON(w, http.StatusOK, list)
}

func (f *fakeGitHub) servePut(w http.ResponseWriter, r *http.Request, p string) {
	if r.Header.Get("Authorization") != "token "+fakeToken {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
		return
	}
	var body struct {
		Message string `json:"message"`
		Content string `json:"content"`
		SHA     string `json:"sha"`
		Branch  string `json:"branch"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	data, err := base64.StdEncoding.DecodeString(body.Content)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	current, exists := f.files[p]
	switch {
	case exists && body.SHA == "":
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": `"sha" wasn't supplied`})
		return
	case exists && body.SHA != store.BlobVersion(current):
		writeJSON(w, http.StatusConflict, map[string]string{"message": "does not match"})
		return
	case !exists && body.SHA != "":
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "sha for missing file"})
		return
	}

	f.files[p] = data
	status := http.StatusOK
	if !exists {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"content": map[string]any{"path": p, "sha": store.BlobVersion(data)},
		"commit":  map[string]any{"message": body.Message},
	})
}

func (f *fakeGitHub) serveDelete(w http.ResponseWriter, r *http.Request, p string) {
	if r.Header.Get("Authorization") != "token "+fakeToken {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
		return
	}
	var body struct {
		SHA string `json:"sha"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	current, exists := f.files[p]
	if !exists {
		notFound(w)
		return
	}
	if body.SHA != store.BlobVersion(current) {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "does not match"})
		return
	}
	delete(f.files, p)
	writeJSON(w, http.StatusOK, map[string]any{"commit": map[string]any{}})
}

func (f *fakeGitHub) serveBlob(w http.ResponseWriter, sha string) {
	for _, data := range f.files {
		if store.BlobVersion(data) == sha {
			writeJSON(w, http.StatusOK, map[string]any{
				"sha":      sha,
				"size":     len(data),
				"encoding": "base64",
				"content":  wrapped(data),
			})
			return
		}
	}
	notFound(w)
}

// wrapped encodes like the API does, with a line break every 60 characters.
func wrapped(data []byte) string {
	enc := base64.StdEncoding.EncodeToString(data)
	var b strings.Builder
	for len(enc) > 60 {
		b.WriteString(enc[:60])
		b.WriteByte('\n')
		enc = enc[60:]
	}
	b.WriteString(enc)
	b.WriteByte('\n')
	return b.String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
}
