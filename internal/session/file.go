package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps the session in one sealed file.
type FileStore struct {
	path   string
	sealer Sealer
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a store for the file at path.
func NewFileStore(path string, sealer Sealer) *FileStore {
	return &FileStore{path: path, sealer: sealer}
}

// Exists reports whether a session file is present.
func (f *FileStore) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

func (f *FileStore) Load() (*Session, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session file: %w", err)
	}

	var plain bytes.Buffer
	if err := f.sealer.Open(bytes.NewReader(data), &plain); err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(plain.Bytes(), &s); err != nil {
		return nil, fmt.Errorf("parsing session: %w", err)
	}
	return &s, nil
}

func (f *FileStore) Save(s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".session-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := f.sealer.Seal(bytes.NewReader(data), tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	success = true
	return nil
}

func (f *FileStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing session file: %w", err)
	}
	return nil
}

// MemoryStore keeps the session in memory only.
type MemoryStore struct {
	session *Session
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load() (*Session, error) {
	if m.session == nil {
		return &Session{}, nil
	}
	cp := *m.session
	if cp.User != nil {
		u := *cp.User
		cp.User = &u
	}
	return &cp, nil
}

func (m *MemoryStore) Save(s *Session) error {
	cp := *s
	if cp.User != nil {
		u := *cp.User
		cp.User = &u
	}
	m.session = &cp
	return nil
}

func (m *MemoryStore) Clear() error {
	m.session = nil
	return nil
}
