package store_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momentshub/internal/config"
	"momentshub/internal/hub"
	"momentshub/internal/store"
)

// backends returns a fresh instance of every store that can run without
// external services.
func backends(t *testing.T) map[string]hub.ObjectStore {
	t.Helper()

	fs, err := store.NewFileSystemStore(t.TempDir())
	require.NoError(t, err)

	_, srv := newFakeGitHub(t)
	gh, err := store.NewGitHubStore(store.GitHubConfig{
		Owner:   fakeOwner,
		Repo:    fakeRepo,
		Token:   fakeToken,
		BaseURL: srv.URL,
	})
	require.NoError(t, err)

	return map[string]hub.ObjectStore{
		"memory":     store.NewMemoryStore(),
		"filesystem": fs,
		"github":     gh,
	}
}

func put(t *testing.T, s hub.ObjectStore, p, content string, cond hub.Precondition) string {
	t.Helper()
	v, err := s.Put(context.Background(), p, strings.NewReader(content), "test "+p, cond)
	require.NoError(t, err)
	return v
}

func TestObjectStore_PutGet(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "users/users.json")
			assert.ErrorIs(t, err, hub.ErrNotFound)

			v := put(t, s, "users/users.json", `{"users":[]}`, hub.MustNotExist())
			assert.Equal(t, store.BlobVersion([]byte(`{"users":[]}`)), v)

			obj, err := s.Get(ctx, "users/users.json")
			require.NoError(t, err)
			assert.Equal(t, `{"users":[]}`, string(obj.Content))
			assert.Equal(t, v, obj.Version)
			assert.Equal(t, "users.json", obj.Name)

			info, err := s.Stat(ctx, "users/users.json")
			require.NoError(t, err)
			assert.Equal(t, v, info.Version)
			assert.EqualValues(t, len(`{"users":[]}`), info.Size)
		})
	}
}

func TestObjectStore_Preconditions(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			v1 := put(t, s, "chat/a__b.json", "one", hub.MustNotExist())

			_, err := s.Put(ctx, "chat/a__b.json", strings.NewReader("two"), "dup", hub.MustNotExist())
			assert.ErrorIs(t, err, hub.ErrConflict, "create over existing object")

			v2 := put(t, s, "chat/a__b.json", "two", hub.MatchVersion(v1))
			assert.NotEqual(t, v1, v2)

			_, err = s.Put(ctx, "chat/a__b.json", strings.NewReader("three"), "stale", hub.MatchVersion(v1))
			assert.ErrorIs(t, err, hub.ErrConflict, "write with stale version")

			put(t, s, "chat/a__b.json", "four", hub.AnyVersion())
			obj, err := s.Get(ctx, "chat/a__b.json")
			require.NoError(t, err)
			assert.Equal(t, "four", string(obj.Content))
		})
	}
}

func TestObjectStore_Delete(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			put(t, s, "moments/alice/1_x.json", "{}", hub.AnyVersion())

			require.NoError(t, s.Delete(ctx, "moments/alice/1_x.json", "delete"))
			_, err := s.Get(ctx, "moments/alice/1_x.json")
			assert.ErrorIs(t, err, hub.ErrNotFound)

			assert.NoError(t, s.Delete(ctx, "moments/alice/1_x.json", "delete again"))
		})
	}
}

func TestObjectStore_List(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			entries, err := s.List(ctx, "moments")
			require.NoError(t, err)
			assert.Empty(t, entries, "missing directory lists empty")

			put(t, s, "moments/alice/1_a.json", "{}", hub.AnyVersion())
			put(t, s, "moments/alice/2_b.json", "{}", hub.AnyVersion())
			put(t, s, "moments/bob/3_c.json", "{}", hub.AnyVersion())

			owners, err := s.List(ctx, "moments")
			require.NoError(t, err)
			require.Len(t, owners, 2)
			for _, e := range owners {
				assert.Equal(t, hub.KindDir, e.Kind)
			}

			files, err := s.List(ctx, "moments/alice")
			require.NoError(t, err)
			require.Len(t, files, 2)
			names := []string{files[0].Name, files[1].Name}
			assert.ElementsMatch(t, []string{"1_a.json", "2_b.json"}, names)
			for _, e := range files {
				assert.Equal(t, hub.KindFile, e.Kind)
				assert.True(t, strings.HasPrefix(e.Path, "moments/alice/"), "path %q", e.Path)
			}
		})
	}
}

func TestObjectStore_BinaryContent(t *testing.T) {
	ctx := context.Background()
	payload := make([]byte, 256*1024)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Put(ctx, "media/alice/1_pic.jpg", strings.NewReader(string(payload)), "upload", hub.MustNotExist())
			require.NoError(t, err)

			obj, err := s.Get(ctx, "media/alice/1_pic.jpg")
			require.NoError(t, err)
			assert.Equal(t, payload, obj.Content)
		})
	}
}

func TestFileSystemStore_RejectsEscapingPaths(t *testing.T) {
	root := t.TempDir()
	s, err := store.NewFileSystemStore(root)
	require.NoError(t, err)

	put(t, s, "../outside.json", "x", hub.AnyVersion())

	entries, err := s.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "outside.json", entries[0].Path, "path is clamped to the root")
}

func TestFileSystemStore_DeleteRemovesEmptyDirectories(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewFileSystemStore(t.TempDir())
	require.NoError(t, err)

	put(t, s, "stories/alice/1_a.json", "{}", hub.AnyVersion())
	require.NoError(t, s.Delete(ctx, "stories/alice/1_a.json", "delete"))

	entries, err := s.List(ctx, "stories")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestMemoryStore_ReaderFailureWritesNothing(t *testing.T) {
	s := store.NewMemoryStore()
	_, err := s.Put(context.Background(), "a.json", io.MultiReader(strings.NewReader("x"), failingReader{}), "m", hub.AnyVersion())
	require.Error(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestNewStoreFromConfig_UnsetTypeIsGitHub(t *testing.T) {
	conn := store.Connection{Owner: "octo", Repo: "data"}
	s, mirror, err := store.NewStoreFromConfig(context.Background(), config.StoreConfig{}, conn, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &store.GitHubStore{}, s)
	assert.NotNil(t, mirror)

	_, _, err = store.NewStoreFromConfig(context.Background(), config.StoreConfig{}, store.Connection{}, nil, nil)
	assert.Error(t, err, "github store needs coordinates")
}
