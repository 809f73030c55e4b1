package entities

import "time"

// Role identifies the sender of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MemoryRecord is a single conversation entry. Records are owned by the
// memory backend that created them and are never mutated afterwards, only
// appended.
type MemoryRecord struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
