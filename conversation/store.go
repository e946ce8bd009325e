package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/skillwire/skillwire/core"
)

// Store persists history snapshots into a core.Memory keyed by session ID,
// so a server process can resume a conversation after a restart or route
// the same session across workers when the memory is redis-backed.
type Store struct {
	memory core.Memory
	ttl    time.Duration
	logger core.Logger
}

// NewStore creates a store writing through the given memory. Snapshots
// expire after ttl; a non-positive ttl keeps them indefinitely.
func NewStore(memory core.Memory, ttl time.Duration, logger core.Logger) *Store {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Store{
		memory: memory,
		ttl:    ttl,
		logger: logger,
	}
}

func sessionKey(sessionID string) string {
	return "conversation:" + sessionID
}

// Save snapshots the history under the session ID.
func (s *Store) Save(ctx context.Context, sessionID string, history *History) error {
	data, err := json.Marshal(history.Messages())
	if err != nil {
		return fmt.Errorf("marshal conversation %q: %w", sessionID, err)
	}

	if err := s.memory.Set(ctx, sessionKey(sessionID), string(data), s.ttl); err != nil {
		s.logger.Error("Failed to persist conversation", map[string]interface{}{
			"operation":  "conversation_save",
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return err
	}

	s.logger.Debug("Conversation persisted", map[string]interface{}{
		"operation":  "conversation_save",
		"session_id": sessionID,
		"messages":   history.Len(),
	})
	return nil
}

// Load restores a history for the session ID. A missing session returns a
// fresh empty history bounded to capacity, not an error.
func (s *Store) Load(ctx context.Context, sessionID string, capacity int) (*History, error) {
	history := NewHistory(capacity)

	raw, err := s.memory.Get(ctx, sessionKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("load conversation %q: %w", sessionID, err)
	}
	if raw == "" {
		return history, nil
	}

	var messages []Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		// A corrupt snapshot must not wedge the session.
		s.logger.Warn("Discarding unreadable conversation snapshot", map[string]interface{}{
			"operation":  "conversation_load",
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return history, nil
	}

	history.restore(messages)
	s.logger.Debug("Conversation restored", map[string]interface{}{
		"operation":  "conversation_load",
		"session_id": sessionID,
		"messages":   history.Len(),
	})
	return history, nil
}

// Delete removes a persisted session.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	return s.memory.Delete(ctx, sessionKey(sessionID))
}
