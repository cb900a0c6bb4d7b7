package hub_test

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momentshub/internal/hub"
	"momentshub/internal/testutil"
)

const picture = "media/alice/1_a.png"

func seedPicture(t *testing.T, s hub.ObjectStore) {
	t.Helper()
	_, err := s.Put(context.Background(), picture, strings.NewReader("\x89PNG"), "seed", hub.MustNotExist())
	require.NoError(t, err)
}

func TestMediaResolver_MirrorHit(t *testing.T) {
	s := testutil.NewRecordingStore(testutil.NewTestStore())
	seedPicture(t, s)
	mirror := testutil.NewStubMirror(picture)

	media, err := hub.NewMediaResolver(s, mirror, hub.NewNopLogger()).Resolve(context.Background(), picture)
	require.NoError(t, err)
	assert.True(t, media.Mirrored)
	assert.Equal(t, "https://mirror.test/"+picture, media.URL)
	assert.Equal(t, "image/png", media.MIMEType)
	assert.Nil(t, media.Data)
	assert.Zero(t, s.Gets(picture), "store is not read")
}

func TestMediaResolver_FallsBackToDataURL(t *testing.T) {
	s := testutil.NewRecordingStore(testutil.NewTestStore())
	seedPicture(t, s)
	mirror := testutil.NewStubMirror()

	media, err := hub.NewMediaResolver(s, mirror, hub.NewNopLogger()).Resolve(context.Background(), picture)
	require.NoError(t, err)
	assert.False(t, media.Mirrored)
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString([]byte("\x89PNG")), media.URL)
	assert.Equal(t, []byte("\x89PNG"), media.Data)
	assert.Equal(t, 1, mirror.Probes())
}

func TestMediaResolver_NoMirror(t *testing.T) {
	s := testutil.NewTestStore()
	seedPicture(t, s)

	media, err := hub.NewMediaResolver(s, nil, hub.NewNopLogger()).Resolve(context.Background(), picture)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(media.URL, "data:image/png;base64,"))
}

func TestMediaResolver_Missing(t *testing.T) {
	_, err := hub.NewMediaResolver(testutil.NewTestStore(), nil, hub.NewNopLogger()).
		Resolve(context.Background(), "media/alice/404.jpg")
	assert.ErrorIs(t, err, hub.ErrNotFound)
}

// blobStore serves content through the blob endpoint only.
type blobStore struct {
	hub.ObjectStore
	blobs map[string][]byte
	gets  int
}

func (b *blobStore) Get(ctx context.Context, p string) (*hub.Object, error) {
	b.gets++
	return b.ObjectStore.Get(ctx, p)
}

func (b *blobStore) GetBlob(_ context.Context, version string) ([]byte, error) {
	data, ok := b.blobs[version]
	if !ok {
		return nil, hub.ErrNotFound
	}
	return data, nil
}

func TestMediaResolver_UsesBlobEndpoint(t *testing.T) {
	ctx := context.Background()
	inner := testutil.NewTestStore()
	seedPicture(t, inner)
	info, err := inner.Stat(ctx, picture)
	require.NoError(t, err)

	s := &blobStore{ObjectStore: inner, blobs: map[string][]byte{info.Version: []byte("from blob")}}
	media, err := hub.NewMediaResolver(s, nil, hub.NewNopLogger()).Resolve(ctx, picture)
	require.NoError(t, err)
	assert.Equal(t, []byte("from blob"), media.Data)
	assert.Zero(t, s.gets)
}

func TestGuessMIME(t *testing.T) {
	tests := map[string]string{
		"a.jpg":       "image/jpeg",
		"a.JPEG":      "image/jpeg",
		"a.png":       "image/png",
		"a.webp":      "image/webp",
		"a.gif":       "image/gif",
		"a.mp4":       "video/mp4",
		"a.webm":      "video/webm",
		"a.mov":       "video/quicktime",
		"a.pdf":       "application/octet-stream",
		"no-ext":      "application/octet-stream",
		"dir/x.y.mp4": "video/mp4",
	}
	for name, want := range tests {
		if got := hub.GuessMIME(name); got != want {
			t.Errorf("GuessMIME(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestKindOf(t *testing.T) {
	k, err := hub.KindOf("image/heic")
	require.NoError(t, err)
	assert.Equal(t, hub.MediaImage, k)

	k, err = hub.KindOf("video/mp4")
	require.NoError(t, err)
	assert.Equal(t, hub.MediaVideo, k)

	_, err = hub.KindOf("text/plain")
	assert.ErrorIs(t, err, hub.ErrUnsupportedMedia)
}
