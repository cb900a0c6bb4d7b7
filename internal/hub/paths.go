package hub

import (
	"fmt"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// Persisted layout.
const (
	UsersPath  = "users/users.json"
	MomentsDir = "moments"
	StoriesDir = "stories"
	MediaDir   = "media"
	ChatDir    = "chat"
)

var (
	handlePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{2,20}$`)
	unsafeName    = regexp.MustCompile(`[^A-Za-z0-9._-]`)
)

// NormalizeHandle strips a leading '@' and surrounding space and checks
// the handle is 2-20 characters of letters, digits, '.', '_' or '-'.
func NormalizeHandle(raw string) (string, error) {
	h := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "@"))
	if !handlePattern.MatchString(h) {
		return "", fmt.Errorf("%w: %q must be 2-20 characters of A-Z, a-z, 0-9, '.', '_' or '-'", ErrInvalidHandle, raw)
	}
	return h, nil
}

// foldHandle is the case-insensitive comparison key of a handle.
// A Caser is stateful, so each call gets its own.
func foldHandle(h string) string { return cases.Fold().String(h) }

// SameHandle compares two handles case-insensitively.
func SameHandle(a, b string) bool { return foldHandle(a) == foldHandle(b) }

// ThreadID is the order-independent id of the conversation between a and b.
func ThreadID(a, b string) string {
	pair := []string{a, b}
	slices.Sort(pair)
	return strings.Join(pair, "__")
}

// ThreadPath is where the conversation between a and b is stored.
func ThreadPath(a, b string) string {
	return path.Join(ChatDir, ThreadID(a, b)+".json")
}

// SanitizeFilename replaces every character outside [A-Za-z0-9._-] with '_'.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		name = "file"
	}
	return unsafeName.ReplaceAllString(name, "_")
}

// MediaPath is where an uploaded file of handle is stored.
func MediaPath(handle string, ts int64, filename string) string {
	return fmt.Sprintf("%s/%s/%d_%s", MediaDir, handle, ts, SanitizeFilename(filename))
}

// RecordPath is where a moment or story metadata document is stored.
func RecordPath(entityDir, handle string, created int64, id string) string {
	return fmt.Sprintf("%s/%s/%d_%s.json", entityDir, handle, created, id)
}

// ParseRecordRef parses "handle/created_id" (optionally with a ".json"
// suffix) as printed by listings.
func ParseRecordRef(ref string) (handle string, created int64, id string, err error) {
	ref = strings.TrimSuffix(strings.TrimSpace(ref), ".json")
	owner, rest, ok := strings.Cut(ref, "/")
	if !ok || owner == "" {
		return "", 0, "", fmt.Errorf("invalid record reference %q: want handle/created_id", ref)
	}
	ts, recID, ok := strings.Cut(rest, "_")
	if !ok || recID == "" {
		return "", 0, "", fmt.Errorf("invalid record reference %q: want handle/created_id", ref)
	}
	created, err = strconv.ParseInt(ts, 10, 64)
	if err != nil || created <= 0 {
		return "", 0, "", fmt.Errorf("invalid record reference %q: bad timestamp", ref)
	}
	return owner, created, recID, nil
}
