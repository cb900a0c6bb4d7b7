package hub

import (
	"encoding/json"
	"fmt"
	"slices"
)

// schemaVersion is the newest document layout this package understands.
// Documents without a "v" field are treated as version 1.
const schemaVersion = 1

// MediaKind is the kind of media a post points at.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// User is one entry of the user directory.
type User struct {
	Handle  string `json:"handle" yaml:"handle"`
	Display string `json:"display,omitempty" yaml:"display,omitempty"`
	Avatar  string `json:"avatar,omitempty" yaml:"avatar,omitempty"`
	Bio     string `json:"bio,omitempty" yaml:"bio,omitempty"`
}

// DisplayName falls back to the handle when no display name is set.
func (u User) DisplayName() string {
	if u.Display != "" {
		return u.Display
	}
	return u.Handle
}

// UserDirectory is the users/users.json document.
type UserDirectory struct {
	V     int    `json:"v,omitempty"`
	Users []User `json:"users"`
}

func (d *UserDirectory) validate() error {
	if err := checkSchema(d.V); err != nil {
		return err
	}
	for i, u := range d.Users {
		if u.Handle == "" {
			return fmt.Errorf("%w: user %d has no handle", ErrInvalidDocument, i)
		}
	}
	return nil
}

// find returns the index of handle (case-insensitive), or -1.
func (d *UserDirectory) find(handle string) int {
	key := foldHandle(handle)
	return slices.IndexFunc(d.Users, func(u User) bool {
		return foldHandle(u.Handle) == key
	})
}

// Comment is a reply attached to a moment.
type Comment struct {
	Handle  string `json:"handle" yaml:"handle"`
	Text    string `json:"text" yaml:"text"`
	Created int64  `json:"created" yaml:"created"`
}

// Moment is the metadata document of a feed post. The media itself is a
// separate object at MediaPath.
type Moment struct {
	V         int       `json:"v,omitempty" yaml:"-"`
	ID        string    `json:"id" yaml:"id"`
	Kind      MediaKind `json:"kind" yaml:"kind"`
	MediaPath string    `json:"mediaPath" yaml:"mediaPath"`
	Caption   string    `json:"caption,omitempty" yaml:"caption,omitempty"`
	Tags      []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
	Author    string    `json:"author" yaml:"author"`
	Handle    string    `json:"handle" yaml:"handle"`
	Avatar    string    `json:"avatar,omitempty" yaml:"avatar,omitempty"`
	Created   int64     `json:"created" yaml:"created"`
	Likes     int       `json:"likes" yaml:"likes"`
	Liked     bool      `json:"liked" yaml:"liked"`
	Comments  []Comment `json:"comments" yaml:"comments,omitempty"`
}

func (m *Moment) validate() error {
	if err := checkSchema(m.V); err != nil {
		return err
	}
	return checkPost(m.ID, m.Handle, m.MediaPath, m.Kind, m.Created)
}

// Story is the metadata document of a story. Stories are only shown
// while younger than the story TTL.
type Story struct {
	V         int       `json:"v,omitempty" yaml:"-"`
	ID        string    `json:"id" yaml:"id"`
	Kind      MediaKind `json:"kind" yaml:"kind"`
	MediaPath string    `json:"mediaPath" yaml:"mediaPath"`
	Caption   string    `json:"caption" yaml:"caption,omitempty"`
	Author    string    `json:"author" yaml:"author"`
	Handle    string    `json:"handle" yaml:"handle"`
	Avatar    string    `json:"avatar,omitempty" yaml:"avatar,omitempty"`
	Created   int64     `json:"created" yaml:"created"`
}

func (s *Story) validate() error {
	if err := checkSchema(s.V); err != nil {
		return err
	}
	return checkPost(s.ID, s.Handle, s.MediaPath, s.Kind, s.Created)
}

// Message is one chat message. ReadBy only ever grows.
type Message struct {
	ID     string   `json:"id" yaml:"id"`
	From   string   `json:"from" yaml:"from"`
	To     string   `json:"to" yaml:"to"`
	Text   string   `json:"text" yaml:"text"`
	TS     int64    `json:"ts" yaml:"ts"`
	ReadBy []string `json:"readBy" yaml:"readBy"`
}

// HasRead reports whether handle is in the message's read-by set.
func (m *Message) HasRead(handle string) bool {
	return slices.Contains(m.ReadBy, handle)
}

// Thread is the chat/{threadID}.json document.
type Thread struct {
	V        int       `json:"v,omitempty" yaml:"-"`
	Messages []Message `json:"messages" yaml:"messages"`
}

func (t *Thread) validate() error {
	if err := checkSchema(t.V); err != nil {
		return err
	}
	for i, m := range t.Messages {
		if m.ID == "" || m.From == "" || m.To == "" {
			return fmt.Errorf("%w: message %d is missing id, from or to", ErrInvalidDocument, i)
		}
	}
	return nil
}

type document interface {
	validate() error
}

// decodeDocument parses data into doc. Unknown fields are ignored;
// required fields and the schema version are checked.
func decodeDocument(data []byte, doc document) error {
	if err := json.Unmarshal(data, doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return doc.validate()
}

func checkSchema(v int) error {
	if v > schemaVersion {
		return fmt.Errorf("%w: schema version %d is newer than %d", ErrInvalidDocument, v, schemaVersion)
	}
	return nil
}

func checkPost(id, handle, mediaPath string, kind MediaKind, created int64) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: missing id", ErrInvalidDocument)
	case handle == "":
		return fmt.Errorf("%w: missing handle", ErrInvalidDocument)
	case mediaPath == "":
		return fmt.Errorf("%w: missing mediaPath", ErrInvalidDocument)
	case created <= 0:
		return fmt.Errorf("%w: missing created", ErrInvalidDocument)
	case kind != MediaImage && kind != MediaVideo:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidDocument, kind)
	}
	return nil
}
