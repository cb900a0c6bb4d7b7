package hub

// IsUnreadFor reports whether msg is addressed to handle and handle has
// not read it yet.
func IsUnreadFor(msg Message, handle string) bool {
	return msg.To == handle && !msg.HasRead(handle)
}

// CountUnread counts the messages of t that are unread for handle.
func CountUnread(t *Thread, handle string) int {
	n := 0
	for _, m := range t.Messages {
		if IsUnreadFor(m, handle) {
			n++
		}
	}
	return n
}

// MarkRead adds handle to the read-by set of every message addressed to
// it. It reports whether anything changed.
func MarkRead(t *Thread, handle string) bool {
	changed := false
	for i := range t.Messages {
		if IsUnreadFor(t.Messages[i], handle) {
			t.Messages[i].ReadBy = append(t.Messages[i].ReadBy, handle)
			changed = true
		}
	}
	return changed
}
