package hub

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"strings"
)

// Mirror is a public, read-only copy of the store reachable without
// credentials (e.g. a static hosting site serving the same paths).
type Mirror interface {
	// URL returns the public URL of path.
	URL(path string) string

	// Probe reports whether url currently serves content.
	Probe(ctx context.Context, url string) bool
}

// Media is a fetchable location for a stored media object.
type Media struct {
	URL      string
	MIMEType string

	// Mirrored is true when URL points at the public mirror; Data is then nil.
	Mirrored bool

	// Data holds the decoded content when it had to be fetched from the store.
	Data []byte
}

// MediaResolver turns stored media paths into URLs: the public mirror
// when it already serves the object, otherwise an in-memory data URL
// built from the store's content.
type MediaResolver struct {
	store  ObjectStore
	mirror Mirror
	logger Logger
}

// NewMediaResolver creates a resolver. mirror may be nil.
func NewMediaResolver(store ObjectStore, mirror Mirror, logger Logger) *MediaResolver {
	return &MediaResolver{store: store, mirror: mirror, logger: logger}
}

// Resolve returns a URL for the media at p.
func (m *MediaResolver) Resolve(ctx context.Context, p string) (*Media, error) {
	mime := GuessMIME(p)

	if m.mirror != nil {
		url := m.mirror.URL(p)
		if m.mirror.Probe(ctx, url) {
			return &Media{URL: url, MIMEType: mime, Mirrored: true}, nil
		}
		m.logger.Debug("mirror miss, fetching from store", "path", p)
	}

	data, err := m.fetch(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("resolving media %s: %w", p, err)
	}
	return &Media{URL: dataURL(mime, data), MIMEType: mime, Data: data}, nil
}

// fetch reads the object's bytes, through the blob endpoint when the
// store has one.
func (m *MediaResolver) fetch(ctx context.Context, p string) ([]byte, error) {
	blobs, ok := m.store.(BlobFetcher)
	if !ok {
		obj, err := m.store.Get(ctx, p)
		if err != nil {
			return nil, err
		}
		return obj.Content, nil
	}

	info, err := m.store.Stat(ctx, p)
	if err != nil {
		return nil, err
	}
	data, err := blobs.GetBlob(ctx, info.Version)
	if err != nil {
		return nil, fmt.Errorf("fetching blob %s: %w", info.Version, err)
	}
	if data == nil {
		return nil, errors.New("blob has no content")
	}
	return data, nil
}

func dataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// GuessMIME maps a file extension to a MIME type.
func GuessMIME(name string) string {
	switch strings.ToLower(strings.TrimPrefix(path.Ext(name), ".")) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	case "gif":
		return "image/gif"
	case "mp4", "m4v":
		return "video/mp4"
	case "webm":
		return "video/webm"
	case "mov":
		return "video/quicktime"
	default:
		return "application/octet-stream"
	}
}

// KindOf classifies a MIME type as image or video.
func KindOf(mime string) (MediaKind, error) {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return MediaImage, nil
	case strings.HasPrefix(mime, "video/"):
		return MediaVideo, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMedia, mime)
	}
}
