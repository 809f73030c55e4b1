package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radebe49/objection-dojo/domain/entities"
	"github.com/radebe49/objection-dojo/domain/repositories"
)

// LocalMemory is an in-process ConversationMemory used when no remote
// credentials are configured. History lives in a session-keyed map, is kept
// in insertion order and is lost on process restart. Construct one store and
// pass it by reference; there is no process-wide singleton.
type LocalMemory struct {
	mu       sync.RWMutex
	sessions map[string][]entities.MemoryRecord
	logger   *zap.Logger
}

// Ensure LocalMemory implements the ConversationMemory interface
var _ repositories.ConversationMemory = (*LocalMemory)(nil)

// NewLocalMemory creates an empty ephemeral store
func NewLocalMemory(logger *zap.Logger) *LocalMemory {
	return &LocalMemory{
		sessions: make(map[string][]entities.MemoryRecord),
		logger:   logger,
	}
}

// GetHistory returns the session's records oldest first. An unknown session
// yields an empty history. The returned slice is a copy; callers cannot
// mutate stored records through it.
func (m *LocalMemory) GetHistory(ctx context.Context, sessionID string) ([]entities.MemoryRecord, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.sessions[sessionID]
	if len(records) == 0 {
		return nil, nil
	}

	history := make([]entities.MemoryRecord, len(records))
	copy(history, records)
	return history, nil
}

// AddMessage appends one record to the session's history.
func (m *LocalMemory) AddMessage(ctx context.Context, sessionID string, role entities.Role, content string) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if content == "" {
		return fmt.Errorf("content is required")
	}
	if role != entities.RoleUser && role != entities.RoleAssistant {
		return fmt.Errorf("unknown role %q", role)
	}

	record := entities.MemoryRecord{
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.sessions[sessionID] = append(m.sessions[sessionID], record)
	total := len(m.sessions[sessionID])
	m.mu.Unlock()

	m.logger.Debug("Message stored locally",
		zap.String("sessionID", sessionID),
		zap.String("role", string(role)),
		zap.Int("historyLength", total))

	return nil
}
