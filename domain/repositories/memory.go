package repositories

import (
	"context"

	"github.com/radebe49/objection-dojo/domain/entities"
)

// ConversationMemory stores per-session conversation history.
//
// GetHistory returns records oldest first; a session unknown to the backend
// yields an empty history, not an error. AddMessage is append-only.
type ConversationMemory interface {
	GetHistory(ctx context.Context, sessionID string) ([]entities.MemoryRecord, error)
	AddMessage(ctx context.Context, sessionID string, role entities.Role, content string) error
}
