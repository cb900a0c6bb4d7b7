package testutil

import (
	"context"
	"io"
	"sync"

	"momentshub/internal/hub"
	"momentshub/internal/store"
)

// NewTestStore creates a new in-memory object store for testing.
func NewTestStore() *store.MemoryStore {
	return store.NewMemoryStore()
}

// RecordingStore wraps an ObjectStore, counting writes per path and
// injecting failures. Safe for concurrent use.
type RecordingStore struct {
	hub.ObjectStore

	mu         sync.Mutex
	puts       map[string]int
	deletes    map[string]int
	gets       map[string]int
	putErrs    map[string][]error
	getErrs    map[string]error
	deleteErrs map[string]error

	// BeforePut, when set, runs before every Put reaches the inner store.
	// Tests use it to slip in a concurrent writer.
	BeforePut func(ctx context.Context, path string)
}

// NewRecordingStore wraps inner.
func NewRecordingStore(inner hub.ObjectStore) *RecordingStore {
	return &RecordingStore{
		ObjectStore: inner,
		puts:        make(map[string]int),
		deletes:     make(map[string]int),
		gets:        make(map[string]int),
		putErrs:     make(map[string][]error),
		getErrs:     make(map[string]error),
		deleteErrs:  make(map[string]error),
	}
}

// FailPut makes the next len(errs) Puts on path fail with errs in order.
func (s *RecordingStore) FailPut(path string, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putErrs[path] = append(s.putErrs[path], errs...)
}

// FailGet makes every Get on path fail with err.
func (s *RecordingStore) FailGet(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getErrs[path] = err
}

// FailDelete makes every Delete on path fail with err.
func (s *RecordingStore) FailDelete(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteErrs[path] = err
}

func (s *RecordingStore) Get(ctx context.Context, path string) (*hub.Object, error) {
	s.mu.Lock()
	s.gets[path]++
	err := s.getErrs[path]
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.ObjectStore.Get(ctx, path)
}

func (s *RecordingStore) Put(ctx context.Context, path string, r io.Reader, message string, cond hub.Precondition) (string, error) {
	if s.BeforePut != nil {
		s.BeforePut(ctx, path)
	}

	s.mu.Lock()
	s.puts[path]++
	var err error
	if q := s.putErrs[path]; len(q) > 0 {
		err, s.putErrs[path] = q[0], q[1:]
	}
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	return s.ObjectStore.Put(ctx, path, r, message, cond)
}

func (s *RecordingStore) Delete(ctx context.Context, path, message string) error {
	s.mu.Lock()
	s.deletes[path]++
	err := s.deleteErrs[path]
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.ObjectStore.Delete(ctx, path, message)
}

// Puts returns how many Puts were attempted on path.
func (s *RecordingStore) Puts(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts[path]
}

// Deletes returns how many Deletes were attempted on path.
func (s *RecordingStore) Deletes(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletes[path]
}

// Gets returns how many Gets were attempted on path.
func (s *RecordingStore) Gets(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets[path]
}

// Writes returns the total number of Puts and Deletes attempted.
func (s *RecordingStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.puts {
		n += c
	}
	for _, c := range s.deletes {
		n += c
	}
	return n
}

// StubMirror serves a fixed set of paths.
type StubMirror struct {
	mu     sync.Mutex
	served map[string]bool
	probes int
}

func NewStubMirror(paths ...string) *StubMirror {
	m := &StubMirror{served: make(map[string]bool)}
	for _, p := range paths {
		m.served[m.URL(p)] = true
	}
	return m
}

func (m *StubMirror) URL(path string) string { return "https://mirror.test/" + path }

func (m *StubMirror) Probe(_ context.Context, url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes++
	return m.served[url]
}

// Probes returns how many probes were made.
func (m *StubMirror) Probes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.probes
}

var (
	_ hub.ObjectStore = (*RecordingStore)(nil)
	_ hub.Mirror      = (*StubMirror)(nil)
)
