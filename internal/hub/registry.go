package hub

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Registry is the allow-list of registered users, kept in a single
// versioned document. Only users present in the directory may sign in.
type Registry struct {
	store  ObjectStore
	policy RetryPolicy
	logger Logger

	mu       sync.RWMutex
	snapshot *UserDirectory
}

// NewRegistry creates a Registry over store.
func NewRegistry(store ObjectStore, policy RetryPolicy, logger Logger) *Registry {
	return &Registry{store: store, policy: policy, logger: logger}
}

// Refresh re-reads the directory and replaces the cached snapshot.
// A missing directory reads as empty; nothing is written.
func (r *Registry) Refresh(ctx context.Context) ([]User, error) {
	dir, _, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	r.setSnapshot(dir)
	return slices.Clone(dir.Users), nil
}

// Users returns the cached snapshot, refreshing it first if none exists.
func (r *Registry) Users(ctx context.Context) ([]User, error) {
	r.mu.RLock()
	snap := r.snapshot
	r.mu.RUnlock()
	if snap == nil {
		return r.Refresh(ctx)
	}
	return slices.Clone(snap.Users), nil
}

// Authenticate looks handle up case-insensitively in the cached snapshot.
// It never writes.
func (r *Registry) Authenticate(ctx context.Context, handle string) (*User, error) {
	h, err := NormalizeHandle(handle)
	if err != nil {
		return nil, err
	}
	users, err := r.Users(ctx)
	if err != nil {
		return nil, err
	}
	dir := UserDirectory{Users: users}
	i := dir.find(h)
	if i < 0 {
		return nil, fmt.Errorf("user @%s: %w", h, ErrNotFound)
	}
	u := users[i]
	return &u, nil
}

// Register appends a new user to the directory. The handle is validated
// and checked for case-insensitive uniqueness before anything is written;
// the append itself is retried on version conflicts and fails with
// ErrRegistrationConflict once the retry policy is exhausted.
func (r *Registry) Register(ctx context.Context, handle, display, avatar, bio string) (*User, error) {
	h, err := NormalizeHandle(handle)
	if err != nil {
		return nil, err
	}
	user := User{
		Handle:  h,
		Display: strings.TrimSpace(display),
		Avatar:  strings.TrimSpace(avatar),
		Bio:     strings.TrimSpace(bio),
	}
	if user.Display == "" {
		user.Display = h
	}

	attempt := 0
	next, err := OptimisticUpdate(ctx, r.policy,
		func(ctx context.Context) (Versioned[*UserDirectory], error) {
			attempt++
			if attempt > 1 {
				r.logger.Info("retrying registration", "handle", h, "attempt", attempt)
			}
			return r.loadVersioned(ctx)
		},
		func(dir *UserDirectory) (*UserDirectory, error) {
			if dir.find(h) >= 0 {
				return nil, fmt.Errorf("@%s: %w", h, ErrDuplicateHandle)
			}
			return &UserDirectory{V: dir.V, Users: append(slices.Clone(dir.Users), user)}, nil
		},
		func(ctx context.Context, dir *UserDirectory, cond Precondition) error {
			_, err := saveDocument(ctx, r.store, UsersPath, dir, "register user "+h, cond)
			return err
		},
	)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("registering @%s after %d attempts: %w: %w", h, attempt, ErrRegistrationConflict, err)
		}
		return nil, fmt.Errorf("registering @%s: %w", h, err)
	}

	r.setSnapshot(next)
	r.logger.Info("user registered", "handle", h)
	return &user, nil
}

// UpdateProfile changes the display name, avatar and bio of actor's own
// directory entry.
func (r *Registry) UpdateProfile(ctx context.Context, actor, display, avatar, bio string) (*User, error) {
	h, err := NormalizeHandle(actor)
	if err != nil {
		return nil, err
	}

	var updated User
	next, err := OptimisticUpdate(ctx, r.policy,
		r.loadVersioned,
		func(dir *UserDirectory) (*UserDirectory, error) {
			i := dir.find(h)
			if i < 0 {
				return nil, fmt.Errorf("user @%s: %w", h, ErrNotFound)
			}
			users := slices.Clone(dir.Users)
			updated = users[i]
			updated.Display = strings.TrimSpace(display)
			if updated.Display == "" {
				updated.Display = updated.Handle
			}
			updated.Avatar = strings.TrimSpace(avatar)
			updated.Bio = strings.TrimSpace(bio)
			users[i] = updated
			return &UserDirectory{V: dir.V, Users: users}, nil
		},
		func(ctx context.Context, dir *UserDirectory, cond Precondition) error {
			_, err := saveDocument(ctx, r.store, UsersPath, dir, "update profile "+h, cond)
			return err
		},
	)
	if err != nil {
		return nil, fmt.Errorf("updating profile of @%s: %w", h, err)
	}

	r.setSnapshot(next)
	return &updated, nil
}

func (r *Registry) load(ctx context.Context) (*UserDirectory, string, error) {
	dir := &UserDirectory{Users: []User{}}
	version, err := loadOrInit(ctx, r.store, UsersPath, dir)
	if err != nil {
		return nil, "", fmt.Errorf("loading user directory: %w", err)
	}
	if dir.Users == nil {
		dir.Users = []User{}
	}
	return dir, version, nil
}

func (r *Registry) loadVersioned(ctx context.Context) (Versioned[*UserDirectory], error) {
	dir, version, err := r.load(ctx)
	if err != nil {
		return Versioned[*UserDirectory]{}, err
	}
	return Versioned[*UserDirectory]{Value: dir, Cond: MatchVersion(version)}, nil
}

func (r *Registry) setSnapshot(dir *UserDirectory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot = dir
}
