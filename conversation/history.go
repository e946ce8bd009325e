// Package conversation provides the bounded message history of a single
// assistant session and its optional persistence through a core.Memory.
package conversation

import (
	"sync"
	"time"

	"github.com/skillwire/skillwire/core"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// DefaultCapacity is the history bound used when none is configured.
const DefaultCapacity = 20

// Message is one exchanged message. Immutable once created.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// History is an ordered, capacity-bounded buffer of messages. When a new
// message would exceed the capacity the oldest message is evicted; relative
// order of the survivors is preserved. Safe for concurrent use.
type History struct {
	mu       sync.RWMutex
	messages []Message
	capacity int
}

// NewHistory creates a history bounded to capacity messages.
// Non-positive capacities fall back to DefaultCapacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{
		messages: make([]Message, 0, capacity),
		capacity: capacity,
	}
}

// Add appends a message, evicting the oldest one if the buffer is full,
// and returns the stored message.
func (h *History) Add(role Role, content string) Message {
	msg := Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.messages) >= h.capacity {
		drop := len(h.messages) - h.capacity + 1
		h.messages = append(h.messages[:0], h.messages[drop:]...)
	}
	h.messages = append(h.messages, msg)
	return msg
}

// Messages returns a copy of the buffered messages in insertion order.
func (h *History) Messages() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len returns the number of buffered messages.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// Capacity returns the configured bound.
func (h *History) Capacity() int {
	return h.capacity
}

// Clear drops all buffered messages.
func (h *History) Clear() {
	h.mu.Lock()
	h.messages = h.messages[:0]
	h.mu.Unlock()
}

// AsChatMessages converts the history into the ordered role/content list
// forwarded to the external chat collaborator.
func (h *History) AsChatMessages() []core.ChatMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]core.ChatMessage, len(h.messages))
	for i, m := range h.messages {
		out[i] = core.ChatMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}

// restore replaces the buffer contents, trimming to capacity from the front.
func (h *History) restore(messages []Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(messages) > h.capacity {
		messages = messages[len(messages)-h.capacity:]
	}
	h.messages = append(h.messages[:0], messages...)
}
