package hub

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Chat manages two-party conversation threads. Each thread is a single
// document written last-writer-wins.
type Chat struct {
	store  ObjectStore
	clock  Clock
	idgen  IDGenerator
	logger Logger
}

// NewChat creates a Chat manager over store.
func NewChat(store ObjectStore, clock Clock, idgen IDGenerator, logger Logger) *Chat {
	return &Chat{store: store, clock: clock, idgen: idgen, logger: logger}
}

// Contact is another user together with the number of messages from them
// that are still unread.
type Contact struct {
	User   User `json:"user" yaml:"user"`
	Unread int  `json:"unread" yaml:"unread"`
}

// LoadThread returns the conversation between me and other. A thread that
// does not exist yet reads as empty.
func (c *Chat) LoadThread(ctx context.Context, me, other string) (*Thread, error) {
	t, _, err := c.load(ctx, me, other)
	return t, err
}

// Send appends a message from -> to. The sender has implicitly read it.
func (c *Chat) Send(ctx context.Context, from, to, text string) (*Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	t, _, err := c.load(ctx, from, to)
	if err != nil {
		return nil, err
	}
	msg := Message{
		ID:     c.idgen.New(),
		From:   from,
		To:     to,
		Text:   text,
		TS:     millis(c.clock.Now()),
		ReadBy: []string{from},
	}
	t.Messages = append(t.Messages, msg)

	if err := c.save(ctx, from, to, t, fmt.Sprintf("message %s -> %s", from, to)); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Open marks every message addressed to me as read and returns the
// thread. It only writes when something changed.
func (c *Chat) Open(ctx context.Context, me, other string) (*Thread, error) {
	t, _, err := c.load(ctx, me, other)
	if err != nil {
		return nil, err
	}
	if !MarkRead(t, me) {
		return t, nil
	}
	if err := c.save(ctx, me, other, t, fmt.Sprintf("read %s by %s", ThreadID(me, other), me)); err != nil {
		return nil, err
	}
	return t, nil
}

// UnreadCount is the number of messages from other that me has not read.
func (c *Chat) UnreadCount(ctx context.Context, me, other string) (int, error) {
	t, _, err := c.load(ctx, me, other)
	if err != nil {
		return 0, err
	}
	return CountUnread(t, me), nil
}

// Contacts returns every user except me with their unread counts. A
// thread that cannot be read counts as having no unread messages.
func (c *Chat) Contacts(ctx context.Context, me string, users []User) ([]Contact, error) {
	var out []Contact
	for _, u := range users {
		if SameHandle(u.Handle, me) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := c.UnreadCount(ctx, me, u.Handle)
		if err != nil {
			c.logger.Warn("skipping unreadable thread", "path", ThreadPath(me, u.Handle), "error", err)
			n = 0
		}
		out = append(out, Contact{User: u, Unread: n})
	}
	return out, nil
}

// DeleteMessage removes message id from the thread. Only its sender may
// delete it; a missing message is a no-op.
func (c *Chat) DeleteMessage(ctx context.Context, actor, other, id string) error {
	t, version, err := c.load(ctx, actor, other)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(t.Messages, func(m Message) bool { return m.ID == id })
	if i < 0 || version == "" {
		return nil
	}
	if t.Messages[i].From != actor {
		return fmt.Errorf("@%s may not delete a message from @%s: %w", actor, t.Messages[i].From, ErrForbidden)
	}
	t.Messages = slices.Delete(t.Messages, i, i+1)
	return c.save(ctx, actor, other, t, fmt.Sprintf("delete message %s", id))
}

func (c *Chat) load(ctx context.Context, a, b string) (*Thread, string, error) {
	t := &Thread{Messages: []Message{}}
	version, err := loadOrInit(ctx, c.store, ThreadPath(a, b), t)
	if err != nil {
		return nil, "", err
	}
	if t.Messages == nil {
		t.Messages = []Message{}
	}
	return t, version, nil
}

func (c *Chat) save(ctx context.Context, a, b string, t *Thread, message string) error {
	t.V = schemaVersion
	p := ThreadPath(a, b)
	version, err := saveDocument(ctx, c.store, p, t, message, AnyVersion())
	if err != nil {
		return err
	}
	c.logger.Debug("thread saved", "path", p, "version", version)
	return nil
}
