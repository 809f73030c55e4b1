package repositories

import (
	"context"

	"github.com/radebe49/objection-dojo/domain/entities"
)

// ResponseGenerator abstracts the persona completion endpoint.
type ResponseGenerator interface {
	// GetResponse sends the user utterance with prior conversation history
	// and returns the persona's validated structured reply.
	GetResponse(ctx context.Context, userText string, history []entities.MemoryRecord) (entities.StructuredReply, error)
}
