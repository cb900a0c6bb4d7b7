package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"momentshub/internal/codec"
	"momentshub/internal/hub"
)

const (
	DefaultGitHubAPI = "https://api.github.com"
	DefaultUserAgent = "momentshub"
	githubAPIVersion = "2022-11-28"

	// errorBodyLimit bounds how much of an error response is read.
	errorBodyLimit = 4096

	// headerTimeout bounds the wait for response headers once a request
	// body has been sent. Bodies themselves are not timed, so slow media
	// uploads are limited only by the caller's context.
	headerTimeout = 60 * time.Second
)

// GitHubConfig configures a GitHubStore. Only Owner and Repo are required.
type GitHubConfig struct {
	Owner  string
	Repo   string
	Branch string
	// Token is a personal access token. Without one, reads of public
	// repositories still work but every write fails with ErrUnauthorized.
	Token     string
	BaseURL   string
	UserAgent string

	HTTPClient *http.Client
	// Cache, when set, is consulted for version tokens before writes that
	// do not carry one.
	Cache  hub.TokenCache
	Logger hub.Logger
}

// GitHubStore is a hub.ObjectStore over the GitHub repository contents API.
// Every object is a file on one branch; every write is a commit.
type GitHubStore struct {
	owner, repo, branch string
	token               string
	baseURL             string
	userAgent           string
	client              *http.Client
	cache               hub.TokenCache
	logger              hub.Logger
}

// NewGitHubStore creates a GitHub-backed store.
func NewGitHubStore(cfg GitHubConfig) (*GitHubStore, error) {
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, fmt.Errorf("github store requires owner and repo")
	}
	s := &GitHubStore{
		owner:     cfg.Owner,
		repo:      cfg.Repo,
		branch:    cfg.Branch,
		token:     cfg.Token,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		client:    cfg.HTTPClient,
		cache:     cfg.Cache,
		logger:    cfg.Logger,
	}
	if s.branch == "" {
		s.branch = "main"
	}
	if s.baseURL == "" {
		s.baseURL = DefaultGitHubAPI
	}
	if s.userAgent == "" {
		s.userAgent = DefaultUserAgent
	}
	if s.client == nil {
		s.client = newHTTPClient()
	}
	if s.logger == nil {
		s.logger = hub.NewNopLogger()
	}
	return s, nil
}

func newHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = headerTimeout
	return &http.Client{Transport: transport}
}

// contentItem is one element of a contents API response.
type contentItem struct {
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
	Size     int64  `json:"size"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Content  string `json:"content"`
}

type blobResponse struct {
	SHA      string `json:"sha"`
	Size     int64  `json:"size"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
}

type writeResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
}

// Stat returns the object's metadata.
func (s *GitHubStore) Stat(ctx context.Context, p string) (hub.ObjectInfo, error) {
	item, err := s.getItem(ctx, p)
	if err != nil {
		return hub.ObjectInfo{}, err
	}
	return hub.ObjectInfo{Path: item.Path, Name: item.Name, Version: item.SHA, Size: item.Size}, nil
}

// Get returns the decoded content of the object. Files the contents
// endpoint does not inline (over 1 MB) are fetched by blob id.
func (s *GitHubStore) Get(ctx context.Context, p string) (*hub.Object, error) {
	item, err := s.getItem(ctx, p)
	if err != nil {
		return nil, err
	}

	var content []byte
	switch {
	case item.Encoding == "base64" && item.Content != "":
		content, err = codec.Decode(item.Content)
	case item.Size > 0:
		s.logger.Debug("content not inlined, fetching blob", "path", item.Path, "size", item.Size)
		content, err = s.GetBlob(ctx, item.SHA)
	default:
		content = []byte{}
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", item.Path, err)
	}

	return &hub.Object{
		ObjectInfo: hub.ObjectInfo{Path: item.Path, Name: item.Name, Version: item.SHA, Size: item.Size},
		Content:    content,
	}, nil
}

// GetBlob fetches raw content by blob id.
func (s *GitHubStore) GetBlob(ctx context.Context, version string) ([]byte, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/git/blobs/%s", s.baseURL, url.PathEscape(s.owner), url.PathEscape(s.repo), url.PathEscape(version))
	var blob blobResponse
	if err := s.doJSON(ctx, http.MethodGet, u, nil, &blob); err != nil {
		return nil, err
	}
	if blob.Encoding == "base64" {
		return codec.Decode(blob.Content)
	}
	return []byte(blob.Content), nil
}

// Put commits the content read from r under cond.
func (s *GitHubStore) Put(ctx context.Context, p string, r io.Reader, message string, cond hub.Precondition) (string, error) {
	if s.token == "" {
		return "", fmt.Errorf("writing %s requires a token: %w", p, hub.ErrUnauthorized)
	}

	if !cond.IsAny() {
		version, err := s.put(ctx, p, r, message, cond.Version())
		if errors.Is(err, hub.ErrConflict) {
			s.forget(ctx, p)
		}
		return version, err
	}

	sha, cached, err := s.resolveToken(ctx, p)
	if err != nil {
		return "", err
	}
	if !cached {
		return s.put(ctx, p, r, message, sha)
	}

	// A cached token may be stale; keep the content so the write can be
	// repeated once with a fresh token.
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("reading content for %s: %w", p, err)
		}
		rs = bytes.NewReader(data)
	}
	start, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return "", fmt.Errorf("reading content for %s: %w", p, err)
	}

	version, err := s.put(ctx, p, rs, message, sha)
	if !errors.Is(err, hub.ErrConflict) {
		return version, err
	}
	s.logger.Debug("cached version token was stale", "path", p)
	s.forget(ctx, p)
	if sha, err = s.freshToken(ctx, p); err != nil {
		return "", err
	}
	if _, err := rs.Seek(start, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewinding content for %s: %w", p, err)
	}
	return s.put(ctx, p, rs, message, sha)
}

// put issues a single PUT. An empty sha creates the file.
func (s *GitHubStore) put(ctx context.Context, p string, r io.Reader, message, sha string) (string, error) {
	u, err := s.contentsURL(p, false)
	if err != nil {
		return "", err
	}

	pr, pw := io.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		pw.CloseWithError(writePutBody(pw, r, message, s.branch, sha))
	}()

	var resp writeResponse
	err = s.doJSON(ctx, http.MethodPut, u, pr, &resp)
	// The writer must be finished with r before the caller may rewind it.
	pr.Close()
	<-done
	if err != nil {
		return "", err
	}
	s.remember(ctx, p, resp.Content.SHA)
	s.logger.Info("object written", "path", p, "version", resp.Content.SHA)
	return resp.Content.SHA, nil
}

// writePutBody streams the JSON request body, base64-encoding content
// on the fly.
func writePutBody(w io.Writer, content io.Reader, message, branch, sha string) error {
	head := map[string]string{"message": message, "branch": branch}
	if sha != "" {
		head["sha"] = sha
	}
	prefix, err := json.Marshal(head)
	if err != nil {
		return err
	}
	// Reopen the object to append the content field.
	if _, err := w.Write(prefix[:len(prefix)-1]); err != nil {
		return err
	}
	if _, err := io.WriteString(w, `,"content":"`); err != nil {
		return err
	}
	if _, err := codec.Encode(w, content); err != nil {
		return err
	}
	_, err = io.WriteString(w, `"}`)
	return err
}

// Delete removes the object. Missing objects are not an error.
func (s *GitHubStore) Delete(ctx context.Context, p string, message string) error {
	if s.token == "" {
		return fmt.Errorf("deleting %s requires a token: %w", p, hub.ErrUnauthorized)
	}

	sha, cached, err := s.resolveToken(ctx, p)
	if err != nil {
		return err
	}
	if sha == "" {
		return nil
	}

	err = s.delete(ctx, p, message, sha)
	if cached && errors.Is(err, hub.ErrConflict) {
		s.forget(ctx, p)
		if sha, err = s.freshToken(ctx, p); err != nil || sha == "" {
			return err
		}
		err = s.delete(ctx, p, message, sha)
	}
	return err
}

func (s *GitHubStore) delete(ctx context.Context, p, message, sha string) error {
	u, err := s.contentsURL(p, false)
	if err != nil {
		return err
	}
	body, err := json.Marshal(map[string]string{"message": message, "sha": sha, "branch": s.branch})
	if err != nil {
		return err
	}

	err = s.doJSON(ctx, http.MethodDelete, u, bytes.NewReader(body), nil)
	if errors.Is(err, hub.ErrNotFound) {
		err = nil
	}
	if err == nil {
		s.forget(ctx, p)
		s.logger.Info("object deleted", "path", p)
	}
	return err
}

// List returns the direct children of dir. Symlinks and submodules are
// skipped.
func (s *GitHubStore) List(ctx context.Context, dir string) ([]hub.Entry, error) {
	u, err := s.contentsURL(dir, true)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := s.doJSON(ctx, http.MethodGet, u, nil, &raw); err != nil {
		if errors.Is(err, hub.ErrNotFound) {
			return []hub.Entry{}, nil
		}
		return nil, err
	}

	var items []contentItem
	if err := json.Unmarshal(raw, &items); err != nil {
		// dir names a file
		return []hub.Entry{}, nil
	}

	entries := make([]hub.Entry, 0, len(items))
	for _, it := range items {
		var kind hub.EntryKind
		switch it.Type {
		case "file":
			kind = hub.KindFile
			s.remember(ctx, it.Path, it.SHA)
		case "dir":
			kind = hub.KindDir
		default:
			continue
		}
		entries = append(entries, hub.Entry{Name: it.Name, Path: it.Path, Kind: kind, Version: it.SHA, Size: it.Size})
	}
	return entries, nil
}

func (s *GitHubStore) getItem(ctx context.Context, p string) (*contentItem, error) {
	u, err := s.contentsURL(p, false)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := s.doJSON(ctx, http.MethodGet, u, nil, &raw); err != nil {
		return nil, err
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		return nil, fmt.Errorf("%s is a directory: %w", p, hub.ErrNotFound)
	}

	var item contentItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, hub.NewTransportError(http.MethodGet, u, http.StatusOK, string(raw), err)
	}
	if item.Type != "" && item.Type != "file" {
		return nil, fmt.Errorf("%s is a %s: %w", p, item.Type, hub.ErrNotFound)
	}
	s.remember(ctx, item.Path, item.SHA)
	return &item, nil
}

// resolveToken returns the current version of p ("" when absent),
// preferring the cache. cached reports whether it came from the cache.
func (s *GitHubStore) resolveToken(ctx context.Context, p string) (sha string, cached bool, err error) {
	if s.cache != nil {
		sha, ok, err := s.cache.Lookup(ctx, p)
		if err != nil {
			s.logger.Warn("version cache lookup failed", "path", p, "error", err)
		} else if ok && sha != "" {
			return sha, true, nil
		}
	}
	sha, err = s.freshToken(ctx, p)
	return sha, false, err
}

func (s *GitHubStore) freshToken(ctx context.Context, p string) (string, error) {
	item, err := s.getItem(ctx, p)
	if errors.Is(err, hub.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolving version of %s: %w", p, err)
	}
	return item.SHA, nil
}

func (s *GitHubStore) remember(ctx context.Context, p, sha string) {
	if s.cache == nil || sha == "" {
		return
	}
	if err := s.cache.Remember(ctx, p, sha); err != nil {
		s.logger.Warn("version cache update failed", "path", p, "error", err)
	}
}

func (s *GitHubStore) forget(ctx context.Context, p string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Forget(ctx, p); err != nil {
		s.logger.Warn("version cache update failed", "path", p, "error", err)
	}
}

// contentsURL builds {base}/repos/{owner}/{repo}/contents/{path}?ref={branch}
// with every path segment escaped.
func (s *GitHubStore) contentsURL(p string, isDir bool) (string, error) {
	if isDir {
		p = cleanDir(p)
	} else {
		var err error
		if p, err = cleanPath(p); err != nil {
			return "", err
		}
	}
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s",
		s.baseURL, url.PathEscape(s.owner), url.PathEscape(s.repo),
		strings.Join(segments, "/"), url.QueryEscape(s.branch)), nil
}

// doJSON performs a request and decodes a 2xx JSON response into out
// (when non-nil). Error statuses are translated to hub errors.
func (s *GitHubStore) doJSON(ctx context.Context, method, u string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("X-GitHub-Api-Version", githubAPIVersion)
	if s.token != "" {
		req.Header.Set("Authorization", "token "+s.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return hub.NewTransportError(method, u, 0, "", err)
	}
	defer resp.Body.Close()
	s.logger.Debug("github request", "method", method, "url", u, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return statusError(method, u, resp.StatusCode, string(msg))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return hub.NewTransportError(method, u, resp.StatusCode, "", fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

func statusError(method, u string, status int, body string) error {
	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, u, hub.ErrNotFound)
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return fmt.Errorf("%s %s: %w", method, u, hub.ErrConflict)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s %s: %w", method, u, hub.ErrUnauthorized)
	default:
		return hub.NewTransportError(method, u, status, body, nil)
	}
}

// Compile-time checks
var (
	_ hub.ObjectStore = (*GitHubStore)(nil)
	_ hub.BlobFetcher = (*GitHubStore)(nil)
)
