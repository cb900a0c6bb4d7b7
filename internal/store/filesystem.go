package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"momentshub/internal/hub"
)

// FileSystemStore is a filesystem-based implementation of hub.ObjectStore.
// Store paths map directly onto files below root:
//
//	<root>/
//	  users/users.json
//	  moments/<handle>/<created>_<id>.json
//	  media/<handle>/<ts>_<name>
//
// Versions are the blob ids of the file content, computed on read.
// A process-wide mutex serialises precondition checks with writes.
type FileSystemStore struct {
	root string
	mu   sync.Mutex
}

// NewFileSystemStore creates a filesystem store rooted at the given path.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store root: %w", err)
	}
	return &FileSystemStore{root: root}, nil
}

func (s *FileSystemStore) local(p string) string {
	return filepath.Join(s.root, filepath.FromSlash(p))
}

// Stat returns the object's metadata.
func (s *FileSystemStore) Stat(ctx context.Context, p string) (hub.ObjectInfo, error) {
	obj, err := s.Get(ctx, p)
	if err != nil {
		return hub.ObjectInfo{}, err
	}
	return obj.ObjectInfo, nil
}

// Get reads the object's content.
func (s *FileSystemStore) Get(_ context.Context, p string) (*hub.Object, error) {
	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	data, err := s.readFile(p)
	if err != nil {
		return nil, err
	}
	return &hub.Object{ObjectInfo: info(p, data), Content: data}, nil
}

// Put writes the content read from r under cond using an atomic
// temp-file-and-rename.
func (s *FileSystemStore) Put(_ context.Context, p string, r io.Reader, _ string, cond hub.Precondition) (string, error) {
	p, err := cleanPath(p)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.currentVersion(p)
	if err != nil {
		return "", err
	}
	if err := checkPrecondition(p, current, cond); err != nil {
		return "", err
	}

	destPath := s.local(p)
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	version, err := s.writeFile(destPath, r)
	if err != nil {
		return "", err
	}
	return version, nil
}

// Delete removes the object; a missing object is a no-op. Directories
// left empty are removed so listings match the git-backed store.
func (s *FileSystemStore) Delete(_ context.Context, p string, _ string) error {
	p, err := cleanPath(p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.local(p)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", p, err)
	}
	for dir := path.Dir(p); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if os.Remove(s.local(dir)) != nil {
			break
		}
	}
	return nil
}

// List returns the direct children of dir, skipping temp files.
func (s *FileSystemStore) List(_ context.Context, dir string) ([]hub.Entry, error) {
	dir = cleanDir(dir)
	des, err := os.ReadDir(s.local(dir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
			return []hub.Entry{}, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	entries := make([]hub.Entry, 0, len(des))
	for _, de := range des {
		name := de.Name()
		if strings.HasPrefix(name, ".tmp-") {
			continue
		}
		p := path.Join(dir, name)
		if de.IsDir() {
			entries = append(entries, hub.Entry{Name: name, Path: p, Kind: hub.KindDir})
			continue
		}
		fi, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, hub.Entry{Name: name, Path: p, Kind: hub.KindFile, Size: fi.Size()})
	}
	slices.SortFunc(entries, func(a, b hub.Entry) int { return strings.Compare(a.Name, b.Name) })
	return entries, nil
}

func (s *FileSystemStore) currentVersion(p string) (string, error) {
	data, err := s.readFile(p)
	if errors.Is(err, hub.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return BlobVersion(data), nil
}

func (s *FileSystemStore) readFile(p string) ([]byte, error) {
	data, err := os.ReadFile(s.local(p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", p, hub.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// writeFile copies r into destPath via a temp file in the same directory
// and returns the blob version of what was written.
func (s *FileSystemStore) writeFile(destPath string, r io.Reader) (string, error) {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on failure
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmpFile, r); err != nil {
		tmpFile.Close()
		return "", fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to re-read temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return "", fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true
	return BlobVersion(data), nil
}

// Compile-time check that FileSystemStore implements hub.ObjectStore interface
var _ hub.ObjectStore = (*FileSystemStore)(nil)
