package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"momentshub/internal/config"
	"momentshub/internal/hub"
	"momentshub/internal/session"
	"momentshub/internal/store"
	"momentshub/internal/tokencache"
)

// MomentsApp is the application layer between the CLI and hub.Hub.
// It builds the store, token cache and Hub from config and the saved
// session, resolves the signed-in user for every action, and releases
// resources on Close.
type MomentsApp struct {
	cfg      *config.Config
	sessions session.Store
	sess     *session.Session
	op       *Operation
	logger   *slog.Logger
	logFile  *os.File

	// built on first use from the current session
	hub   *hub.Hub
	cache tokencache.Cache
}

// NewMomentsApp creates a MomentsApp from the given config. operation
// identifies the CLI command being run (e.g. "PostMoment", "Contacts").
// The caller must call Close when done.
func NewMomentsApp(cfg *config.Config, sessions session.Store, operation, parameters string) (*MomentsApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	op := NewOperation(operation, parameters, time.Now())
	logger, logFile, err := newLogger(cfg.LogDir, op.ID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	sess, err := sessions.Load()
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("loading session: %w", err)
	}

	logger.Debug("operation started", "operation", op.Name, "parameters", op.Parameters)
	return &MomentsApp{
		cfg:      cfg,
		sessions: sessions,
		sess:     sess,
		op:       op,
		logger:   logger,
		logFile:  logFile,
	}, nil
}

// connection returns the store coordinates saved in the session.
func (a *MomentsApp) connection() store.Connection {
	return store.Connection{
		Owner:  a.sess.Owner,
		Repo:   a.sess.Repo,
		Branch: a.sess.Branch,
		Token:  a.sess.Token,
	}
}

// service returns the Hub for the current session, building it on first use.
func (a *MomentsApp) service(ctx context.Context) (*hub.Hub, error) {
	if a.hub != nil {
		return a.hub, nil
	}
	h, cache, err := a.buildHub(ctx, a.connection())
	if err != nil {
		return nil, err
	}
	a.hub, a.cache = h, cache
	return h, nil
}

func (a *MomentsApp) buildHub(ctx context.Context, conn store.Connection) (*hub.Hub, tokencache.Cache, error) {
	log := &slogAdapter{l: a.logger}

	var cache tokencache.Cache
	if a.cfg.Store.IsGitHub() {
		var err error
		cache, err = a.openCache(conn)
		if err != nil {
			return nil, nil, err
		}
	}

	var tc hub.TokenCache
	if cache != nil {
		tc = cache
	}
	st, mirror, err := store.NewStoreFromConfig(ctx, a.cfg.Store, conn, tc, log)
	if err != nil {
		if cache != nil {
			cache.Close()
		}
		return nil, nil, fmt.Errorf("creating store: %w", err)
	}

	h := hub.NewHub(st, mirror, log, hub.RealClock{}, hub.ShortIDGenerator{}, hub.Options{
		Retry: hub.RetryPolicy{
			MaxAttempts: a.cfg.Registry.MaxAttempts,
			Backoff:     a.cfg.Registry.Backoff(),
		},
		StoryTTL: a.cfg.Stories.TTL(),
	})
	return h, cache, nil
}

// openCache opens the version token cache of the repository conn points at.
func (a *MomentsApp) openCache(conn store.Connection) (tokencache.Cache, error) {
	c := conn.Resolve(a.cfg.Store)
	if c.Owner == "" || c.Repo == "" {
		return nil, session.ErrNotConnected
	}
	cache, err := tokencache.NewCacheFromConfig(a.cfg.Cache, tokencache.Scope(c.Owner, c.Repo, c.Branch))
	if err != nil {
		return nil, fmt.Errorf("creating token cache: %w", err)
	}
	return cache, nil
}

// user returns the signed-in user.
func (a *MomentsApp) user() (*hub.User, error) {
	return a.sess.CurrentUser()
}

// Session returns the loaded session.
func (a *MomentsApp) Session() *session.Session {
	return a.sess
}

// Connect checks that the repository's user directory can be read with
// the given coordinates and saves them in the session. Switching to a
// different repository signs the current user out.
func (a *MomentsApp) Connect(ctx context.Context, owner, repo, branch, token string) ([]hub.User, error) {
	conn := store.Connection{
		Owner:  strings.TrimSpace(owner),
		Repo:   strings.TrimSpace(repo),
		Branch: strings.TrimSpace(branch),
		Token:  strings.TrimSpace(token),
	}
	h, cache, err := a.buildHub(ctx, conn)
	if err != nil {
		return nil, err
	}
	users, err := h.RefreshUsers(ctx)
	if err != nil {
		if cache != nil {
			cache.Close()
		}
		return nil, fmt.Errorf("reading user directory: %w", err)
	}

	next := &session.Session{Owner: conn.Owner, Repo: conn.Repo, Branch: conn.Branch, Token: conn.Token}
	if a.sess.Owner == next.Owner && a.sess.Repo == next.Repo && a.sess.Branch == next.Branch {
		next.User = a.sess.User
	}
	if err := a.sessions.Save(next); err != nil {
		if cache != nil {
			cache.Close()
		}
		return nil, fmt.Errorf("saving session: %w", err)
	}

	a.closeCache()
	a.sess, a.hub, a.cache = next, h, cache
	a.logger.Info("connected", "owner", conn.Owner, "repo", conn.Repo, "branch", conn.Branch, "authenticated", conn.Token != "")
	return users, nil
}

// Logout forgets the credentials, the signed-in user and the cached
// version tokens.
func (a *MomentsApp) Logout(ctx context.Context) error {
	if err := a.clearTokens(ctx); err != nil {
		a.logger.Warn("clearing token cache", "error", err)
	}
	if err := a.sessions.Clear(); err != nil {
		return err
	}
	a.closeCache()
	a.sess, a.hub = &session.Session{}, nil
	a.logger.Info("logged out")
	return nil
}

// clearTokens empties the token cache of the connected repository. Each
// CLI invocation is a fresh app, so the cache is opened here when no
// earlier call has done so.
func (a *MomentsApp) clearTokens(ctx context.Context) error {
	if a.cache != nil {
		return a.cache.Clear(ctx)
	}
	if !a.cfg.Store.IsGitHub() {
		return nil
	}
	cache, err := a.openCache(a.connection())
	if errors.Is(err, session.ErrNotConnected) {
		return nil
	}
	if err != nil {
		return err
	}
	defer cache.Close()
	return cache.Clear(ctx)
}

// Register adds a user to the directory and signs them in.
func (a *MomentsApp) Register(ctx context.Context, handle, display, avatar, bio string) (*hub.User, error) {
	h, err := a.service(ctx)
	if err != nil {
		return nil, err
	}
	u, err := h.Register(ctx, handle, display, avatar, bio)
	if err != nil {
		return nil, err
	}
	return u, a.signIn(u)
}

// Login signs an already registered user in.
func (a *MomentsApp) Login(ctx context.Context, handle string) (*hub.User, error) {
	h, err := a.service(ctx)
	if err != nil {
		return nil, err
	}
	u, err := h.Authenticate(ctx, handle)
	if err != nil {
		return nil, err
	}
	return u, a.signIn(u)
}

func (a *MomentsApp) signIn(u *hub.User) error {
	next := *a.sess
	next.User = u
	if err := a.sessions.Save(&next); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	a.sess = &next
	return nil
}

// Users returns the current user directory.
func (a *MomentsApp) Users(ctx context.Context) ([]hub.User, error) {
	h, err := a.service(ctx)
	if err != nil {
		return nil, err
	}
	return h.RefreshUsers(ctx)
}

// UpdateProfile edits the signed-in user's directory entry.
func (a *MomentsApp) UpdateProfile(ctx context.Context, display, avatar, bio string) (*hub.User, error) {
	me, err := a.user()
	if err != nil {
		return nil, err
	}
	h, err := a.service(ctx)
	if err != nil {
		return nil, err
	}
	u, err := h.UpdateProfile(ctx, me, display, avatar, bio)
	if err != nil {
		return nil, err
	}
	return u, a.signIn(u)
}

// openUpload opens the media file at rawPath. The caller must close it.
func openUpload(rawPath string) (hub.Upload, *os.File, error) {
	p, err := filepath.Abs(rawPath)
	if err != nil {
		return hub.Upload{}, nil, fmt.Errorf("resolving path: %w", err)
	}
	f, err := os.Open(p)
	if err != nil {
		return hub.Upload{}, nil, fmt.Errorf("opening media: %w", err)
	}
	return hub.Upload{Name: filepath.Base(p), Body: f}, f, nil
}

// PostMoment publishes the media file at rawPath as a moment.
func (a *MomentsApp) PostMoment(ctx context.Context, rawPath, caption string, tags []string) (*hub.Moment, error) {
	me, err := a.user()
	if err != nil {
		return nil, err
	}
	h, err := a.service(ctx)
	if err != nil {
		return nil, err
	}
	up, f, err := openUpload(rawPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return h.PostMoment(ctx, me, up, caption, tags)
}

// ListMoments returns the feed, newest first.
func (a *MomentsApp) ListMoments(ctx context.Context) ([]hub.Moment, error) {
	h, err := a.service(ctx)
	if err != nil {
		return nil, err
	}
	return h.ListMoments(ctx)
}

// DeleteMoment deletes the signed-in user's moment named by ref
// ("handle/created_id").
func (a *MomentsApp) DeleteMoment(ctx context.Context, ref string) error {
	me, err := a.user()
	if err != nil {
		return err
	}
	handle, created, id, err := hub.ParseRecordRef(ref)
	if err != nil {
		return err
	}
	h, err := a.service(ctx)
	if err != nil {
		return err
	}
	return h.DeleteMoment(ctx, me, handle, created, id)
}

// StoryEntry is a story together with whether it has expired.
type StoryEntry struct {
	hub.Story `yaml:",inline"`
	Expired   bool `json:"expired" yaml:"expired"`
}

// PostStory publishes the media file at rawPath as a story.
func (a *MomentsApp) PostStory(ctx context.Context, rawPath, caption string) (*hub.Story, error) {
	me, err := a.user()
	if err != nil {
		return nil, err
	}
	h, err := a.service(ctx)
	if err != nil {
		return nil, err
	}
	up, f, err := openUpload(rawPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return h.PostStory(ctx, me, up, caption)
}

// ListStories returns the active stories, or every stored story when all is set.
func (a *MomentsApp) ListStories(ctx context.Context, all bool) ([]StoryEntry, error) {
	h, err := a.service(ctx)
	if err != nil {
		return nil, err
	}
	var stories []hub.Story
	if all {
		stories, err = h.ListStories(ctx)
	} else {
		stories, err = h.ActiveStories(ctx)
	}
	if err != nil {
		return nil, err
	}
	out := make([]StoryEntry, 0, len(stories))
	for _, st := range stories {
		out = append(out, StoryEntry{Story: st, Expired: h.StoryExpired(st)})
	}
	return out, nil
}

// DeleteStory deletes the signed-in user's story named by ref.
func (a *MomentsApp) DeleteStory(ctx context.Context, ref string) error {
	me, err := a.user()
	if err != nil {
		return err
	}
	handle, created, id, err := hub.ParseRecordRef(ref)
	if err != nil {
		return err
	}
	h, err := a.service(ctx)
	if err != nil {
		return err
	}
	return h.DeleteStory(ctx, me, handle, created, id)
}

// PruneStories deletes the signed-in user's expired stories.
func (a *MomentsApp) PruneStories(ctx context.Context) (int, error) {
	me, err := a.user()
	if err != nil {
		return 0, err
	}
	h, err := a.service(ctx)
	if err != nil {
		return 0, err
	}
	return h.PruneExpiredStories(ctx, me)
}

// SendMessage sends text to another registered user.
func (a *MomentsApp) SendMessage(ctx context.Context, to, text string) (*hub.Message, error) {
	me, err := a.user()
	if err != nil {
		return nil, err
	}
	h, err := a.service(ctx)
	if err != nil {
		return nil, err
	}
	return h.SendMessage(ctx, me, to, text)
}

// OpenThread returns the conversation with other and marks it read.
func (a *MomentsApp) OpenThread(ctx context.Context, other string) (*hub.Thread, error) {
	me, err := a.user()
	if err != nil {
		return nil, err
	}
	h, err := a.service(ctx)
	if err != nil {
		return nil, err
	}
	return h.OpenThread(ctx, me, other)
}

// Contacts lists the other users with their unread counts.
func (a *MomentsApp) Contacts(ctx context.Context) ([]hub.Contact, error) {
	me, err := a.user()
	if err != nil {
		return nil, err
	}
	h, err := a.service(ctx)
	if err != nil {
		return nil, err
	}
	return h.Contacts(ctx, me)
}

// DeleteMessage removes one of the signed-in user's messages to other.
func (a *MomentsApp) DeleteMessage(ctx context.Context, other, id string) error {
	me, err := a.user()
	if err != nil {
		return err
	}
	h, err := a.service(ctx)
	if err != nil {
		return err
	}
	return h.DeleteMessage(ctx, me, other, id)
}

// ResolveMedia returns a fetchable URL for a stored media path.
func (a *MomentsApp) ResolveMedia(ctx context.Context, path string) (*hub.Media, error) {
	h, err := a.service(ctx)
	if err != nil {
		return nil, err
	}
	return h.ResolveMedia(ctx, path)
}

// Finish records the command's outcome in the operation log.
func (a *MomentsApp) Finish(err error) {
	a.op.Finish(err)
	if err != nil {
		a.logger.Error("operation failed", "operation", a.op.Name, "error", err)
	}
}

func (a *MomentsApp) closeCache() error {
	if a.cache == nil {
		return nil
	}
	err := a.cache.Close()
	a.cache = nil
	return err
}

// Close logs the operation summary and releases the token cache and log file.
func (a *MomentsApp) Close() error {
	var errs []error
	if err := a.closeCache(); err != nil {
		errs = append(errs, fmt.Errorf("closing token cache: %w", err))
	}

	a.logger.Info("operation finished",
		"operation", a.op.Name,
		"status", a.op.Status,
		"duration", time.Since(a.op.StartedAt).Truncate(time.Millisecond))

	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing log file: %w", err))
		}
	}
	return errors.Join(errs...)
}
