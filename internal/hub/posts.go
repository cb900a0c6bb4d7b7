package hub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"time"
)

// Upload is a media file handed in by the caller.
type Upload struct {
	Name string
	// ContentType may be empty, in which case it is guessed from Name.
	ContentType string
	Body        io.Reader
}

func (u Upload) kind() (MediaKind, error) {
	ct := u.ContentType
	if ct == "" {
		ct = GuessMIME(u.Name)
	}
	return KindOf(ct)
}

// postMeta is what every metadata document shares.
type postMeta struct {
	Handle    string
	Created   int64
	ID        string
	MediaPath string
}

type record interface {
	document
	meta() postMeta
}

func (m *Moment) meta() postMeta {
	return postMeta{Handle: m.Handle, Created: m.Created, ID: m.ID, MediaPath: m.MediaPath}
}

func (s *Story) meta() postMeta {
	return postMeta{Handle: s.Handle, Created: s.Created, ID: s.ID, MediaPath: s.MediaPath}
}

// postStore maps one entity type onto {dir}/{handle}/{created}_{id}.json
// metadata documents plus media objects under media/.
type postStore[T any, P interface {
	*T
	record
}] struct {
	dir    string
	store  ObjectStore
	clock  Clock
	idgen  IDGenerator
	logger Logger
}

// create uploads the media first and only then writes the metadata
// document that references it.
func (s *postStore[T, P]) create(ctx context.Context, author User, up Upload, build func(meta postMeta, kind MediaKind) *T) (*T, error) {
	kind, err := up.kind()
	if err != nil {
		return nil, err
	}
	if up.Body == nil {
		return nil, errors.New("upload has no content")
	}

	created := millis(s.clock.Now())
	meta := postMeta{
		Handle:    author.Handle,
		Created:   created,
		ID:        s.idgen.New(),
		MediaPath: MediaPath(author.Handle, created, up.Name),
	}

	if _, err := s.store.Put(ctx, meta.MediaPath, up.Body, "upload "+meta.MediaPath, MustNotExist()); err != nil {
		return nil, fmt.Errorf("uploading media: %w", err)
	}
	s.logger.Debug("media uploaded", "path", meta.MediaPath)

	rec := build(meta, kind)
	p := RecordPath(s.dir, meta.Handle, meta.Created, meta.ID)
	version, err := saveDocument(ctx, s.store, p, rec, "create "+p, MustNotExist())
	if err != nil {
		// The media object is now an orphan; listings ignore it.
		return nil, err
	}
	s.logger.Info("record created", "path", p, "version", version)
	return rec, nil
}

// find loads a single metadata document.
func (s *postStore[T, P]) find(ctx context.Context, handle string, created int64, id string) (*T, error) {
	rec := new(T)
	if _, err := loadDocument(ctx, s.store, RecordPath(s.dir, handle, created, id), P(rec)); err != nil {
		return nil, err
	}
	return rec, nil
}

// list aggregates every readable metadata document, newest first.
// Unreadable or corrupt entries are logged and skipped.
func (s *postStore[T, P]) list(ctx context.Context) ([]T, error) {
	owners, err := s.store.List(ctx, s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.dir, err)
	}

	var out []T
	for _, owner := range owners {
		if owner.Kind != KindDir {
			continue
		}
		recs, err := s.listOwner(ctx, owner.Path)
		if err != nil {
			s.logger.Warn("skipping unreadable directory", "path", owner.Path, "error", err)
			continue
		}
		out = append(out, recs...)
	}

	slices.SortStableFunc(out, func(a, b T) int {
		ma, mb := P(&a).meta(), P(&b).meta()
		switch {
		case ma.Created > mb.Created:
			return -1
		case ma.Created < mb.Created:
			return 1
		default:
			return strings.Compare(ma.ID, mb.ID)
		}
	})
	return out, nil
}

// listOwner reads the metadata documents of one owner directory.
func (s *postStore[T, P]) listOwner(ctx context.Context, dir string) ([]T, error) {
	entries, err := s.store.List(ctx, dir)
	if err != nil {
		return nil, err
	}
	var out []T
	for _, e := range entries {
		if e.Kind != KindFile || path.Ext(e.Name) != ".json" {
			continue
		}
		var rec T
		if _, err := loadDocument(ctx, s.store, e.Path, P(&rec)); err != nil {
			s.logger.Warn("skipping unreadable record", "path", e.Path, "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// remove deletes the metadata document and then, best effort, its media.
// actor must own the record; otherwise nothing is touched.
func (s *postStore[T, P]) remove(ctx context.Context, actor, handle string, created int64, id string) error {
	if !SameHandle(actor, handle) {
		return fmt.Errorf("@%s may not delete a record of @%s: %w", actor, handle, ErrForbidden)
	}

	p := RecordPath(s.dir, handle, created, id)
	rec, err := s.find(ctx, handle, created, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	var mediaPath string
	if err == nil {
		mediaPath = P(rec).meta().MediaPath
	} else if !errors.Is(err, ErrInvalidDocument) {
		return err
	}

	if err := s.store.Delete(ctx, p, "delete "+p); err != nil {
		return fmt.Errorf("deleting %s: %w", p, err)
	}
	s.logger.Info("record deleted", "path", p)

	if mediaPath == "" {
		return nil
	}
	if err := s.store.Delete(ctx, mediaPath, "delete "+mediaPath); err != nil {
		s.logger.Warn("media left behind", "path", mediaPath, "error", err)
	}
	return nil
}

// Moments manages feed posts.
type Moments struct {
	posts postStore[Moment, *Moment]
}

// NewMoments creates a Moments manager over store.
func NewMoments(store ObjectStore, clock Clock, idgen IDGenerator, logger Logger) *Moments {
	return &Moments{posts: postStore[Moment, *Moment]{
		dir: MomentsDir, store: store, clock: clock, idgen: idgen, logger: logger,
	}}
}

// Post uploads the media and writes the moment's metadata.
func (m *Moments) Post(ctx context.Context, author User, up Upload, caption string, tags []string) (*Moment, error) {
	return m.posts.create(ctx, author, up, func(meta postMeta, kind MediaKind) *Moment {
		return &Moment{
			V:         schemaVersion,
			ID:        meta.ID,
			Kind:      kind,
			MediaPath: meta.MediaPath,
			Caption:   strings.TrimSpace(caption),
			Tags:      cleanTags(tags),
			Author:    author.DisplayName(),
			Handle:    author.Handle,
			Avatar:    author.Avatar,
			Created:   meta.Created,
			Comments:  []Comment{},
		}
	})
}

// List returns every readable moment, newest first.
func (m *Moments) List(ctx context.Context) ([]Moment, error) {
	return m.posts.list(ctx)
}

// Find loads one moment.
func (m *Moments) Find(ctx context.Context, handle string, created int64, id string) (*Moment, error) {
	return m.posts.find(ctx, handle, created, id)
}

// Delete removes a moment owned by actor. Deleting a missing moment is a no-op.
func (m *Moments) Delete(ctx context.Context, actor, handle string, created int64, id string) error {
	return m.posts.remove(ctx, actor, handle, created, id)
}

// DefaultStoryTTL is how long a story stays visible.
const DefaultStoryTTL = 48 * time.Hour

// Stories manages short-lived posts. Expired stories stay in storage
// until their owner deletes or prunes them.
type Stories struct {
	posts postStore[Story, *Story]
	ttl   time.Duration
}

// NewStories creates a Stories manager. A non-positive ttl means DefaultStoryTTL.
func NewStories(store ObjectStore, clock Clock, idgen IDGenerator, logger Logger, ttl time.Duration) *Stories {
	if ttl <= 0 {
		ttl = DefaultStoryTTL
	}
	return &Stories{
		posts: postStore[Story, *Story]{
			dir: StoriesDir, store: store, clock: clock, idgen: idgen, logger: logger,
		},
		ttl: ttl,
	}
}

// Post uploads the media and writes the story's metadata.
func (s *Stories) Post(ctx context.Context, author User, up Upload, caption string) (*Story, error) {
	return s.posts.create(ctx, author, up, func(meta postMeta, kind MediaKind) *Story {
		return &Story{
			V:         schemaVersion,
			ID:        meta.ID,
			Kind:      kind,
			MediaPath: meta.MediaPath,
			Caption:   strings.TrimSpace(caption),
			Author:    author.DisplayName(),
			Handle:    author.Handle,
			Avatar:    author.Avatar,
			Created:   meta.Created,
		}
	})
}

// List returns every readable story, expired or not, newest first.
func (s *Stories) List(ctx context.Context) ([]Story, error) {
	return s.posts.list(ctx)
}

// Active returns the stories younger than the TTL at now.
func (s *Stories) Active(ctx context.Context, now time.Time) ([]Story, error) {
	all, err := s.posts.list(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(st Story) bool { return s.Expired(st, now) }), nil
}

// Expired reports whether st is at least TTL old at now.
func (s *Stories) Expired(st Story, now time.Time) bool {
	return millis(now)-st.Created >= s.ttl.Milliseconds()
}

// Find loads one story.
func (s *Stories) Find(ctx context.Context, handle string, created int64, id string) (*Story, error) {
	return s.posts.find(ctx, handle, created, id)
}

// Delete removes a story owned by actor. Deleting a missing story is a no-op.
func (s *Stories) Delete(ctx context.Context, actor, handle string, created int64, id string) error {
	return s.posts.remove(ctx, actor, handle, created, id)
}

// Prune deletes actor's own expired stories and returns how many were removed.
func (s *Stories) Prune(ctx context.Context, actor string, now time.Time) (int, error) {
	h, err := NormalizeHandle(actor)
	if err != nil {
		return 0, err
	}
	mine, err := s.posts.listOwner(ctx, path.Join(StoriesDir, h))
	if err != nil {
		return 0, fmt.Errorf("listing stories of @%s: %w", h, err)
	}

	pruned := 0
	for _, st := range mine {
		if !s.Expired(st, now) {
			continue
		}
		if err := s.posts.remove(ctx, h, st.Handle, st.Created, st.ID); err != nil {
			return pruned, err
		}
		pruned++
	}
	return pruned, nil
}

func cleanTags(tags []string) []string {
	var out []string
	for _, t := range tags {
		t = strings.TrimPrefix(strings.TrimSpace(t), "#")
		if t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}
