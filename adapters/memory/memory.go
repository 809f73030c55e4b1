// Package memory provides the two interchangeable conversation-memory
// backends: the remote Raindrop SmartMemory store and an ephemeral in-process
// store. The backend is selected once at startup and never re-evaluated per
// call.
package memory

import (
	"go.uber.org/zap"

	"github.com/radebe49/objection-dojo/domain/repositories"
)

// NewFromEnv resolves the memory backend from the environment: the remote
// Raindrop store when RAINDROP_API_KEY is configured, otherwise the local
// ephemeral store. This is a static strategy choice, not a per-request
// fallback.
func NewFromEnv(logger *zap.Logger) repositories.ConversationMemory {
	config := NewRaindropConfigFromEnv()
	if config.APIKey == "" {
		logger.Warn("RAINDROP_API_KEY not set, using ephemeral local memory")
		return NewLocalMemory(logger)
	}

	remote, err := NewRaindropMemory(config, logger)
	if err != nil {
		logger.Warn("Raindrop memory unavailable, using ephemeral local memory", zap.Error(err))
		return NewLocalMemory(logger)
	}

	logger.Info("Using Raindrop SmartMemory backend",
		zap.String("appName", config.AppName),
		zap.String("memoryName", config.MemoryName))
	return remote
}
