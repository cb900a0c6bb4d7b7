package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// loadDocument fetches and parses the JSON document at path, returning
// its version. A missing document fails with an error matching ErrNotFound.
func loadDocument(ctx context.Context, store ObjectStore, path string, doc document) (string, error) {
	obj, err := store.Get(ctx, path)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", path, err)
	}
	if err := decodeDocument(obj.Content, doc); err != nil {
		return "", fmt.Errorf("parsing %s: %w", path, err)
	}
	return obj.Version, nil
}

// loadOrInit is loadDocument where a missing document leaves doc as the
// caller initialised it and reports an empty version.
func loadOrInit(ctx context.Context, store ObjectStore, path string, doc document) (string, error) {
	version, err := loadDocument(ctx, store, path, doc)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return version, err
}

// saveDocument serialises doc and writes it under cond.
func saveDocument(ctx context.Context, store ObjectStore, path string, doc any, message string, cond Precondition) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encoding %s: %w", path, err)
	}
	version, err := store.Put(ctx, path, bytes.NewReader(data), message, cond)
	if err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return version, nil
}
