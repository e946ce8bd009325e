package conversation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryEvictsOldest(t *testing.T) {
	h := NewHistory(3)

	for i := 1; i <= 5; i++ {
		h.Add(RoleUser, fmt.Sprintf("message %d", i))
	}

	msgs := h.Messages()
	require.Len(t, msgs, 3, "capacity must never be exceeded")
	assert.Equal(t, "message 3", msgs[0].Content)
	assert.Equal(t, "message 4", msgs[1].Content)
	assert.Equal(t, "message 5", msgs[2].Content)
}

func TestHistoryPreservesOrder(t *testing.T) {
	h := NewHistory(10)
	h.Add(RoleUser, "question")
	h.Add(RoleAssistant, "answer")
	h.Add(RoleUser, "follow-up")

	msgs := h.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, "follow-up", msgs[2].Content)
}

func TestHistoryDefaultCapacity(t *testing.T) {
	h := NewHistory(0)
	assert.Equal(t, DefaultCapacity, h.Capacity())

	for i := 0; i < DefaultCapacity+5; i++ {
		h.Add(RoleUser, "x")
	}
	assert.Equal(t, DefaultCapacity, h.Len())
}

func TestHistoryClear(t *testing.T) {
	h := NewHistory(5)
	h.Add(RoleUser, "hello")
	h.Clear()
	assert.Zero(t, h.Len())
}

func TestHistoryAsChatMessages(t *testing.T) {
	h := NewHistory(5)
	h.Add(RoleSystem, "be helpful")
	h.Add(RoleUser, "hi")

	chat := h.AsChatMessages()
	require.Len(t, chat, 2)
	assert.Equal(t, "system", chat[0].Role)
	assert.Equal(t, "be helpful", chat[0].Content)
	assert.Equal(t, "user", chat[1].Role)
}
