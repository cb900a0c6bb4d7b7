package store

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"path"
	"strings"

	"momentshub/internal/hub"
)

// BlobVersion is the git blob id of content, the same token the GitHub
// contents API reports as "sha". Local stores use it so versions are
// comparable across backends.
func BlobVersion(content []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// checkPrecondition decides whether a write may replace the object whose
// current version is current ("" when it does not exist).
func checkPrecondition(p string, current string, cond hub.Precondition) error {
	switch {
	case cond.IsAny():
		return nil
	case cond.IsCreate():
		if current != "" {
			return fmt.Errorf("%s already exists: %w", p, hub.ErrConflict)
		}
	default:
		if current != cond.Version() {
			return fmt.Errorf("%s is at %s, not %s: %w", p, shortVersion(current), shortVersion(cond.Version()), hub.ErrConflict)
		}
	}
	return nil
}

func shortVersion(v string) string {
	if v == "" {
		return "<none>"
	}
	if len(v) > 8 {
		return v[:8]
	}
	return v
}

// cleanPath normalises a store path: slash-separated, no leading or
// trailing slash. It rejects paths escaping the root.
func cleanPath(p string) (string, error) {
	p = strings.Trim(path.Clean("/"+strings.TrimSpace(p)), "/")
	if p == "" || p == "." {
		return "", fmt.Errorf("empty path")
	}
	return p, nil
}

// cleanDir is cleanPath for directories, where the root is allowed.
func cleanDir(dir string) string {
	return strings.Trim(path.Clean("/"+strings.TrimSpace(dir)), "/")
}
