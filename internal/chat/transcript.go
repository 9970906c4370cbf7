// Package chat keeps the ephemeral message list of a conversation.
package chat

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"jarviscal/internal/model"
)

// Transcript is an ordered, in-memory list of chat messages. Each message
// gets a client-local UUID key that never collides with server ids.
type Transcript struct {
	mu       sync.Mutex
	messages []model.ChatMessage
	now      func() time.Time

	// streaming is the index of the assistant message being filled by
	// stream chunks, or -1.
	streaming int
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{now: time.Now, streaming: -1}
}

// AddUser appends a user message and returns it.
func (t *Transcript) AddUser(content string) model.ChatMessage {
	return t.add(model.RoleUser, content)
}

// AddAssistant appends a complete assistant message and returns it.
func (t *Transcript) AddAssistant(content string) model.ChatMessage {
	return t.add(model.RoleAssistant, content)
}

func (t *Transcript) add(role model.Role, content string) model.ChatMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	msg := model.ChatMessage{
		Key:       uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: t.now(),
	}
	t.messages = append(t.messages, msg)
	return msg
}

// AppendChunk adds streamed text to the open assistant message, starting
// one if needed.
func (t *Transcript) AppendChunk(chunk string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.streaming < 0 {
		t.messages = append(t.messages, model.ChatMessage{
			Key:       uuid.NewString(),
			Role:      model.RoleAssistant,
			Timestamp: t.now(),
		})
		t.streaming = len(t.messages) - 1
	}
	var b strings.Builder
	b.WriteString(t.messages[t.streaming].Content)
	b.WriteString(chunk)
	t.messages[t.streaming].Content = b.String()
}

// FinishStream closes the open assistant message and returns it. ok is
// false when no chunk arrived.
func (t *Transcript) FinishStream() (msg model.ChatMessage, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.streaming < 0 {
		return model.ChatMessage{}, false
	}
	msg = t.messages[t.streaming]
	t.streaming = -1
	return msg, true
}

// Messages returns a copy of the transcript.
func (t *Transcript) Messages() []model.ChatMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.ChatMessage, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

// Reset drops every message.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
	t.streaming = -1
}
