// Package transcript holds the ordered, append-only list of chat turns of
// one session.
package transcript

import "ai-tutoring-engine/internal/entity"

// Buffer only grows. Replace swaps the whole content and is reserved for
// installing an authoritative log when a session is (re)selected.
type Buffer struct {
	messages []entity.Message
}

func New(initial ...entity.Message) *Buffer {
	b := &Buffer{}
	b.messages = append(b.messages, initial...)
	return b
}

func (b *Buffer) Append(msg entity.Message) {
	b.messages = append(b.messages, msg)
}

func (b *Buffer) Replace(msgs []entity.Message) {
	b.messages = append([]entity.Message(nil), msgs...)
}

func (b *Buffer) Len() int {
	return len(b.messages)
}

// Last returns the newest message, if any.
func (b *Buffer) Last() (entity.Message, bool) {
	if len(b.messages) == 0 {
		return entity.Message{}, false
	}
	return b.messages[len(b.messages)-1], true
}

// Messages returns a copy; callers cannot reorder or edit the buffer.
func (b *Buffer) Messages() []entity.Message {
	out := make([]entity.Message, len(b.messages))
	copy(out, b.messages)
	return out
}

// CountRole is mostly useful to callers asserting on system notices.
func (b *Buffer) CountRole(role entity.MessageRole) int {
	n := 0
	for _, m := range b.messages {
		if m.Role == role {
			n++
		}
	}
	return n
}
