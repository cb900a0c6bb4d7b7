package hub_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momentshub/internal/hub"
	"momentshub/internal/testutil"
)

func newRegistry(t *testing.T) (*hub.Registry, *testutil.RecordingStore) {
	t.Helper()
	s := testutil.NewRecordingStore(testutil.NewTestStore())
	return hub.NewRegistry(s, fastRetry, hub.NewNopLogger()), s
}

func TestRegistry_RegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	reg, s := newRegistry(t)

	u, err := reg.Register(ctx, "@Alice", "  Alice A. ", "", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.Handle)
	assert.Equal(t, "Alice A.", u.Display)
	assert.Equal(t, 1, s.Puts(hub.UsersPath))

	got, err := reg.Authenticate(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Handle, "stored casing is kept")

	_, err = reg.Authenticate(ctx, "bob")
	assert.ErrorIs(t, err, hub.ErrNotFound)
	assert.Equal(t, 1, s.Writes(), "authentication never writes")
}

func TestRegistry_DisplayDefaultsToHandle(t *testing.T) {
	reg, _ := newRegistry(t)
	u, err := reg.Register(context.Background(), "bob", " ", "", "")
	require.NoError(t, err)
	assert.Equal(t, "bob", u.Display)
}

func TestRegistry_DuplicateHandle(t *testing.T) {
	ctx := context.Background()
	reg, s := newRegistry(t)
	_, err := reg.Register(ctx, "Alice", "", "", "")
	require.NoError(t, err)

	for _, h := range []string{"Alice", "alice", "ALICE", "@alice"} {
		_, err := reg.Register(ctx, h, "", "", "")
		assert.ErrorIs(t, err, hub.ErrDuplicateHandle, h)
	}
	assert.Equal(t, 1, s.Puts(hub.UsersPath), "duplicates write nothing")
}

func TestRegistry_InvalidHandle(t *testing.T) {
	ctx := context.Background()
	reg, s := newRegistry(t)
	for _, h := range []string{"", "a", "has space", strings.Repeat("x", 21), "émile"} {
		_, err := reg.Register(ctx, h, "", "", "")
		assert.ErrorIs(t, err, hub.ErrInvalidHandle, "%q", h)
	}
	assert.Zero(t, s.Writes())
	assert.Zero(t, s.Gets(hub.UsersPath), "validation happens before any read")
}

func TestRegistry_MissingDirectoryReadsEmpty(t *testing.T) {
	reg, s := newRegistry(t)
	users, err := reg.Refresh(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.Zero(t, s.Writes(), "reading never bootstraps the document")
}

func TestRegistry_CorruptDirectory(t *testing.T) {
	ctx := context.Background()
	reg, s := newRegistry(t)
	_, err := s.Put(ctx, hub.UsersPath, strings.NewReader("not json"), "seed", hub.AnyVersion())
	require.NoError(t, err)

	_, err = reg.Refresh(ctx)
	assert.ErrorIs(t, err, hub.ErrInvalidDocument)
}

func TestRegistry_RetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	reg, s := newRegistry(t)
	s.FailPut(hub.UsersPath, hub.ErrConflict)

	_, err := reg.Register(ctx, "alice", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Puts(hub.UsersPath))
}

func TestRegistry_ExhaustedRetries(t *testing.T) {
	ctx := context.Background()
	reg, s := newRegistry(t)
	s.FailPut(hub.UsersPath, hub.ErrConflict, hub.ErrConflict, hub.ErrConflict)

	_, err := reg.Register(ctx, "alice", "", "", "")
	assert.ErrorIs(t, err, hub.ErrRegistrationConflict)
	assert.ErrorIs(t, err, hub.ErrConflict)
	assert.Equal(t, 3, s.Puts(hub.UsersPath))

	users, err := reg.Refresh(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestRegistry_TransportErrorIsNotRetried(t *testing.T) {
	reg, s := newRegistry(t)
	s.FailPut(hub.UsersPath, hub.NewTransportError("PUT", "x", 500, "boom", nil))

	_, err := reg.Register(context.Background(), "alice", "", "", "")
	assert.ErrorIs(t, err, hub.ErrTransport)
	assert.False(t, errors.Is(err, hub.ErrRegistrationConflict))
	assert.Equal(t, 1, s.Puts(hub.UsersPath))
}

func TestRegistry_ConcurrentRegistrationsBothLand(t *testing.T) {
	ctx := context.Background()
	inner := testutil.NewTestStore()
	s := testutil.NewRecordingStore(inner)
	reg := hub.NewRegistry(s, fastRetry, hub.NewNopLogger())
	other := hub.NewRegistry(inner, fastRetry, hub.NewNopLogger())

	raced := false
	s.BeforePut = func(ctx context.Context, path string) {
		if raced || path != hub.UsersPath {
			return
		}
		raced = true
		_, err := other.Register(ctx, "bob", "", "", "")
		require.NoError(t, err)
	}

	_, err := reg.Register(ctx, "alice", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Puts(hub.UsersPath), "first write conflicts, second lands")

	users, err := reg.Refresh(ctx)
	require.NoError(t, err)
	var handles []string
	for _, u := range users {
		handles = append(handles, u.Handle)
	}
	assert.ElementsMatch(t, []string{"alice", "bob"}, handles)
}

func TestRegistry_SnapshotIsCached(t *testing.T) {
	ctx := context.Background()
	inner := testutil.NewTestStore()
	reg := hub.NewRegistry(inner, fastRetry, hub.NewNopLogger())
	other := hub.NewRegistry(inner, fastRetry, hub.NewNopLogger())

	_, err := reg.Users(ctx)
	require.NoError(t, err)
	_, err = other.Register(ctx, "carol", "", "", "")
	require.NoError(t, err)

	_, err = reg.Authenticate(ctx, "carol")
	assert.ErrorIs(t, err, hub.ErrNotFound, "stale snapshot")

	_, err = reg.Refresh(ctx)
	require.NoError(t, err)
	_, err = reg.Authenticate(ctx, "carol")
	assert.NoError(t, err)
}

func TestRegistry_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t)
	_, err := reg.Register(ctx, "alice", "Alice", "", "")
	require.NoError(t, err)
	_, err = reg.Register(ctx, "bob", "Bob", "", "")
	require.NoError(t, err)

	u, err := reg.UpdateProfile(ctx, "ALICE", "Ally", "https://img/a.png", " bio ")
	require.NoError(t, err)
	assert.Equal(t, hub.User{Handle: "alice", Display: "Ally", Avatar: "https://img/a.png", Bio: "bio"}, *u)

	users, err := reg.Refresh(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Ally", users[0].Display)
	assert.Equal(t, "Bob", users[1].Display, "other entries are untouched")

	_, err = reg.UpdateProfile(ctx, "nobody", "x", "", "")
	assert.ErrorIs(t, err, hub.ErrNotFound)
}
