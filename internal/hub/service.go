package hub

import (
	"context"
	"fmt"
	"time"
)

// Options tunes a Hub. Zero values select the defaults.
type Options struct {
	Retry    RetryPolicy
	StoryTTL time.Duration
}

// Hub is the UI-agnostic façade over the registry, the document managers
// and the media resolver. Every method that changes data takes the acting
// user explicitly.
type Hub struct {
	registry *Registry
	moments  *Moments
	stories  *Stories
	chat     *Chat
	media    *MediaResolver
	logger   Logger
	clock    Clock
}

// NewHub wires the managers over a single store. mirror may be nil.
func NewHub(store ObjectStore, mirror Mirror, logger Logger, clock Clock, idgen IDGenerator, opts Options) *Hub {
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	return &Hub{
		registry: NewRegistry(store, opts.Retry, logger),
		moments:  NewMoments(store, clock, idgen, logger),
		stories:  NewStories(store, clock, idgen, logger, opts.StoryTTL),
		chat:     NewChat(store, clock, idgen, logger),
		media:    NewMediaResolver(store, mirror, logger),
		logger:   logger,
		clock:    clock,
	}
}

// Register adds a user to the directory.
func (h *Hub) Register(ctx context.Context, handle, display, avatar, bio string) (*User, error) {
	return h.registry.Register(ctx, handle, display, avatar, bio)
}

// Authenticate signs a registered user in.
func (h *Hub) Authenticate(ctx context.Context, handle string) (*User, error) {
	return h.registry.Authenticate(ctx, handle)
}

// Users returns the cached user directory.
func (h *Hub) Users(ctx context.Context) ([]User, error) {
	return h.registry.Users(ctx)
}

// RefreshUsers re-reads the user directory.
func (h *Hub) RefreshUsers(ctx context.Context) ([]User, error) {
	return h.registry.Refresh(ctx)
}

// UpdateProfile edits actor's own directory entry.
func (h *Hub) UpdateProfile(ctx context.Context, actor *User, display, avatar, bio string) (*User, error) {
	return h.registry.UpdateProfile(ctx, actor.Handle, display, avatar, bio)
}

// PostMoment publishes a moment as actor.
func (h *Hub) PostMoment(ctx context.Context, actor *User, up Upload, caption string, tags []string) (*Moment, error) {
	return h.moments.Post(ctx, *actor, up, caption, tags)
}

// ListMoments returns the feed, newest first.
func (h *Hub) ListMoments(ctx context.Context) ([]Moment, error) {
	return h.moments.List(ctx)
}

// FindMoment loads one moment.
func (h *Hub) FindMoment(ctx context.Context, handle string, created int64, id string) (*Moment, error) {
	return h.moments.Find(ctx, handle, created, id)
}

// DeleteMoment deletes one of actor's moments together with its media.
func (h *Hub) DeleteMoment(ctx context.Context, actor *User, handle string, created int64, id string) error {
	return h.moments.Delete(ctx, actor.Handle, handle, created, id)
}

// PostStory publishes a story as actor.
func (h *Hub) PostStory(ctx context.Context, actor *User, up Upload, caption string) (*Story, error) {
	return h.stories.Post(ctx, *actor, up, caption)
}

// ActiveStories returns the stories that have not expired yet.
func (h *Hub) ActiveStories(ctx context.Context) ([]Story, error) {
	return h.stories.Active(ctx, h.clock.Now())
}

// ListStories returns every stored story, including expired ones.
func (h *Hub) ListStories(ctx context.Context) ([]Story, error) {
	return h.stories.List(ctx)
}

// FindStory loads one story.
func (h *Hub) FindStory(ctx context.Context, handle string, created int64, id string) (*Story, error) {
	return h.stories.Find(ctx, handle, created, id)
}

// StoryExpired reports whether st is past the story TTL.
func (h *Hub) StoryExpired(st Story) bool {
	return h.stories.Expired(st, h.clock.Now())
}

// DeleteStory deletes one of actor's stories together with its media.
func (h *Hub) DeleteStory(ctx context.Context, actor *User, handle string, created int64, id string) error {
	return h.stories.Delete(ctx, actor.Handle, handle, created, id)
}

// PruneExpiredStories deletes actor's expired stories.
func (h *Hub) PruneExpiredStories(ctx context.Context, actor *User) (int, error) {
	n, err := h.stories.Prune(ctx, actor.Handle, h.clock.Now())
	if n > 0 {
		h.logger.Info("expired stories pruned", "handle", actor.Handle, "count", n)
	}
	return n, err
}

// SendMessage sends text from actor to another registered user.
func (h *Hub) SendMessage(ctx context.Context, actor *User, to, text string) (*Message, error) {
	recipient, err := h.recipient(ctx, to)
	if err != nil {
		return nil, err
	}
	return h.chat.Send(ctx, actor.Handle, recipient.Handle, text)
}

// OpenThread returns the conversation with other and marks it read for actor.
func (h *Hub) OpenThread(ctx context.Context, actor *User, other string) (*Thread, error) {
	peer, err := h.recipient(ctx, other)
	if err != nil {
		return nil, err
	}
	return h.chat.Open(ctx, actor.Handle, peer.Handle)
}

// LoadThread returns the conversation with other without marking anything read.
func (h *Hub) LoadThread(ctx context.Context, actor *User, other string) (*Thread, error) {
	peer, err := h.recipient(ctx, other)
	if err != nil {
		return nil, err
	}
	return h.chat.LoadThread(ctx, actor.Handle, peer.Handle)
}

// UnreadCount is the number of unread messages from other.
func (h *Hub) UnreadCount(ctx context.Context, actor *User, other string) (int, error) {
	peer, err := h.recipient(ctx, other)
	if err != nil {
		return 0, err
	}
	return h.chat.UnreadCount(ctx, actor.Handle, peer.Handle)
}

// Contacts lists every other registered user with unread counts.
func (h *Hub) Contacts(ctx context.Context, actor *User) ([]Contact, error) {
	users, err := h.registry.Users(ctx)
	if err != nil {
		return nil, err
	}
	return h.chat.Contacts(ctx, actor.Handle, users)
}

// DeleteMessage removes one of actor's messages to other.
func (h *Hub) DeleteMessage(ctx context.Context, actor *User, other, id string) error {
	peer, err := h.recipient(ctx, other)
	if err != nil {
		return err
	}
	return h.chat.DeleteMessage(ctx, actor.Handle, peer.Handle, id)
}

// ResolveMedia returns a fetchable URL for a stored media path.
func (h *Hub) ResolveMedia(ctx context.Context, path string) (*Media, error) {
	return h.media.Resolve(ctx, path)
}

// recipient resolves a chat partner to their registered handle.
func (h *Hub) recipient(ctx context.Context, handle string) (*User, error) {
	u, err := h.registry.Authenticate(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("chat partner: %w", err)
	}
	return u, nil
}
