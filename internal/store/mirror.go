package store

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"momentshub/internal/hub"
)

const DefaultPagesHost = "github.io"

// PagesMirror is the public static-hosting copy of a repository, served
// at https://{owner}.{host}/{repo}/{path}. It lags behind fresh commits.
type PagesMirror struct {
	base   string
	client *http.Client
}

// PagesBaseURL returns the mirror root of owner/repo on host.
func PagesBaseURL(owner, repo, host string) string {
	if host == "" {
		host = DefaultPagesHost
	}
	return fmt.Sprintf("https://%s.%s/%s", owner, host, repo)
}

// NewPagesMirror creates a mirror rooted at base (see PagesBaseURL).
func NewPagesMirror(base string, client *http.Client) *PagesMirror {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &PagesMirror{base: strings.TrimRight(base, "/"), client: client}
}

// URL returns the public URL of p.
func (m *PagesMirror) URL(p string) string {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return m.base + "/" + strings.Join(segments, "/")
}

// Probe issues an uncached GET and reports whether it succeeded.
// Any failure counts as a miss.
func (m *PagesMirror) Probe(ctx context.Context, u string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Cache-Control", "no-store")
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

var _ hub.Mirror = (*PagesMirror)(nil)
