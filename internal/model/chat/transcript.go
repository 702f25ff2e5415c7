package chat

import "time"

// Transcript is the ordered, append-only history of one session.
// The first entry is always the assistant greeting it was created with.
type Transcript struct {
	messages []Message
}

// NewTranscript returns a transcript seeded with the greeting.
func NewTranscript(greeting string) *Transcript {
	t := &Transcript{messages: make([]Message, 0, 16)}
	t.Append(AssistantMessage(greeting))
	return t
}

// Append adds msg to the end of the transcript.
func (t *Transcript) Append(msg Message) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	t.messages = append(t.messages, msg)
}

// All returns a copy of every message in insertion order.
func (t *Transcript) All() []Message {
	copied := make([]Message, len(t.messages))
	copy(copied, t.messages)
	return copied
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}
