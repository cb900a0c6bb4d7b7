// Package session keeps the connection credentials and the signed-in
// user between CLI invocations. The state lives in a single sealed file
// that logout removes.
package session

import (
	"errors"

	"momentshub/internal/hub"
)

// ErrNotConnected means no store credentials have been saved yet.
var ErrNotConnected = errors.New("not connected (run `moments connect`)")

// ErrNotSignedIn means no user is signed in.
var ErrNotSignedIn = errors.New("not signed in (run `moments login` or `moments register`)")

// Session is the per-user client state.
type Session struct {
	Owner  string    `json:"owner,omitempty"`
	Repo   string    `json:"repo,omitempty"`
	Branch string    `json:"branch,omitempty"`
	Token  string    `json:"token,omitempty"`
	User   *hub.User `json:"user,omitempty"`
}

// Connected reports whether repository coordinates are present.
func (s *Session) Connected() bool {
	return s != nil && s.Owner != "" && s.Repo != ""
}

// CurrentUser returns the signed-in user or ErrNotSignedIn.
func (s *Session) CurrentUser() (*hub.User, error) {
	if s == nil || s.User == nil {
		return nil, ErrNotSignedIn
	}
	return s.User, nil
}

// Store persists a Session.
type Store interface {
	// Load returns the saved session, or an empty one if none exists.
	Load() (*Session, error)
	Save(s *Session) error
	// Clear removes the saved session. Clearing nothing is not an error.
	Clear() error
}
