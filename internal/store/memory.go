package store

import (
	"context"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"sync"

	"momentshub/internal/hub"
)

// MemoryStore is an in-memory implementation of hub.ObjectStore.
// Directories exist implicitly while they contain objects, as in git.
// This implementation is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte // path -> content
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Stat returns the object's metadata.
func (m *MemoryStore) Stat(_ context.Context, p string) (hub.ObjectInfo, error) {
	obj, err := m.get(p)
	if err != nil {
		return hub.ObjectInfo{}, err
	}
	return obj.ObjectInfo, nil
}

// Get returns the object's content.
func (m *MemoryStore) Get(_ context.Context, p string) (*hub.Object, error) {
	return m.get(p)
}

func (m *MemoryStore) get(p string) (*hub.Object, error) {
	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[p]
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, hub.ErrNotFound)
	}
	return &hub.Object{ObjectInfo: info(p, data), Content: slices.Clone(data)}, nil
}

// Put stores the content read from r under cond.
func (m *MemoryStore) Put(_ context.Context, p string, r io.Reader, _ string, cond hub.Precondition) (string, error) {
	p, err := cleanPath(p)
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read content: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current := ""
	if old, ok := m.objects[p]; ok {
		current = BlobVersion(old)
	}
	if err := checkPrecondition(p, current, cond); err != nil {
		return "", err
	}
	m.objects[p] = data
	return BlobVersion(data), nil
}

// Delete removes the object; a missing object is a no-op.
func (m *MemoryStore) Delete(_ context.Context, p string, _ string) error {
	p, err := cleanPath(p)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects, p)
	return nil
}

// List returns the direct children of dir, sorted by name.
func (m *MemoryStore) List(_ context.Context, dir string) ([]hub.Entry, error) {
	dir = cleanDir(dir)
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var entries []hub.Entry
	for p, data := range m.objects {
		rest, ok := strings.CutPrefix(p, prefix)
		if !ok {
			continue
		}
		name, _, nested := strings.Cut(rest, "/")
		if seen[name] {
			continue
		}
		seen[name] = true
		if nested {
			entries = append(entries, hub.Entry{Name: name, Path: prefix + name, Kind: hub.KindDir})
			continue
		}
		entries = append(entries, hub.Entry{
			Name:    name,
			Path:    p,
			Kind:    hub.KindFile,
			Version: BlobVersion(data),
			Size:    int64(len(data)),
		})
	}
	slices.SortFunc(entries, func(a, b hub.Entry) int { return strings.Compare(a.Name, b.Name) })
	return entries, nil
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

func info(p string, data []byte) hub.ObjectInfo {
	return hub.ObjectInfo{
		Path:    p,
		Name:    path.Base(p),
		Version: BlobVersion(data),
		Size:    int64(len(data)),
	}
}

// Compile-time check that MemoryStore implements hub.ObjectStore interface
var _ hub.ObjectStore = (*MemoryStore)(nil)
