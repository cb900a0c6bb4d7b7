package hub

import (
	"context"
	"io"
)

// EntryKind distinguishes files from directories in a listing.
type EntryKind string

const (
	KindFile EntryKind = "file"
	KindDir  EntryKind = "dir"
)

// ObjectInfo describes a stored object without its content.
// Version is the opaque token ("sha") required to update or delete it.
type ObjectInfo struct {
	Path    string
	Name    string
	Version string
	Size    int64
}

// Object is a stored object together with its decoded content.
type Object struct {
	ObjectInfo
	Content []byte
}

// Entry is one item of a directory listing.
type Entry struct {
	Name    string
	Path    string
	Kind    EntryKind
	Version string
	Size    int64
}

// ObjectStore is a path-addressed, versioned object store with
// single-object optimistic locking. Paths are slash-separated and
// case-sensitive.
type ObjectStore interface {
	// Stat returns the object's metadata, or ErrNotFound.
	Stat(ctx context.Context, path string) (ObjectInfo, error)

	// Get returns the object's content and current version, or ErrNotFound.
	Get(ctx context.Context, path string) (*Object, error)

	// Put writes content read from r under the given precondition and
	// returns the new version. A stale or violated precondition fails
	// with ErrConflict; the object is never silently overwritten.
	Put(ctx context.Context, path string, r io.Reader, message string, cond Precondition) (string, error)

	// Delete removes the object. Deleting an absent object is a no-op.
	Delete(ctx context.Context, path string, message string) error

	// List returns the direct children of dir. A missing directory
	// yields an empty listing.
	List(ctx context.Context, dir string) ([]Entry, error)
}

// BlobFetcher is implemented by stores that can return raw content
// addressed by version token rather than by path.
type BlobFetcher interface {
	GetBlob(ctx context.Context, version string) ([]byte, error)
}

// TokenCache remembers the last observed version token per path so
// writers can skip a lookup round-trip. Entries are hints: a stale entry
// surfaces as a conflict and is then forgotten.
type TokenCache interface {
	Lookup(ctx context.Context, path string) (string, bool, error)
	Remember(ctx context.Context, path, version string) error
	Forget(ctx context.Context, path string) error
}

type preconditionMode int

const (
	anyVersion preconditionMode = iota
	mustNotExist
	matchVersion
)

// Precondition controls how a Put treats the object's current version.
type Precondition struct {
	mode    preconditionMode
	version string
}

// AnyVersion resolves the current version just before writing, so the
// write replaces whatever is there (last writer wins).
func AnyVersion() Precondition { return Precondition{mode: anyVersion} }

// MustNotExist only succeeds if the object does not exist yet.
func MustNotExist() Precondition { return Precondition{mode: mustNotExist} }

// MatchVersion only succeeds if the object is still at version.
// An empty version is equivalent to MustNotExist.
func MatchVersion(version string) Precondition {
	if version == "" {
		return MustNotExist()
	}
	return Precondition{mode: matchVersion, version: version}
}

// IsAny reports whether the write should resolve the current version itself.
func (p Precondition) IsAny() bool { return p.mode == anyVersion }

// IsCreate reports whether the object must not exist yet.
func (p Precondition) IsCreate() bool { return p.mode == mustNotExist }

// Version returns the expected version for MatchVersion, or "".
func (p Precondition) Version() string { return p.version }

func (p Precondition) String() string {
	switch p.mode {
	case mustNotExist:
		return "must-not-exist"
	case matchVersion:
		return "match:" + p.version
	default:
		return "any"
	}
}
