package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radebe49/objection-dojo/domain/entities"
	"github.com/radebe49/objection-dojo/domain/repositories"
)

// TurnRequest is one spoken user utterance to process.
type TurnRequest struct {
	SessionID       string
	UserText        string
	CurrentPatience int
}

// TurnResult is the consolidated outcome of one conversation turn.
type TurnResult struct {
	AIText        string
	PatienceScore int
	DealClosed    bool
	Audio         []byte
}

// TurnError is the unified failure type for a turn. The originating cause is
// reachable through Unwrap, so callers can still tell a transport failure
// from an unusable reply without this package re-exporting adapter errors.
type TurnError struct {
	Stage string
	Err   error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("turn failed during %s: %v", e.Stage, e.Err)
}

func (e *TurnError) Unwrap() error {
	return e.Err
}

// TurnService orchestrates one conversation turn end to end: history fetch,
// persona completion, concurrent synthesis and persistence, then scoring.
// The service holds no state between turns; all session continuity lives in
// the memory backend.
type TurnService struct {
	responder   repositories.ResponseGenerator
	synthesizer repositories.SpeechSynthesizer
	memory      repositories.ConversationMemory
	logger      *zap.Logger
}

// NewTurnService creates a new turn orchestration service
func NewTurnService(
	responder repositories.ResponseGenerator,
	synthesizer repositories.SpeechSynthesizer,
	memory repositories.ConversationMemory,
	logger *zap.Logger,
) *TurnService {
	return &TurnService{
		responder:   responder,
		synthesizer: synthesizer,
		memory:      memory,
		logger:      logger,
	}
}

// ProcessTurn runs the turn pipeline. Turns are independent units of work;
// two turns racing on the same session id may interleave their history reads
// and writes arbitrarily.
func (s *TurnService) ProcessTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	logger := s.logger.With(
		zap.String("turnID", uuid.New().String()),
		zap.String("sessionID", req.SessionID))

	// A turn never fails solely because history retrieval failed.
	history, err := s.memory.GetHistory(ctx, req.SessionID)
	if err != nil {
		logger.Warn("History retrieval failed, continuing with empty history", zap.Error(err))
		history = nil
	}

	// The reply is the turn's output; there is no fallback here.
	reply, err := s.responder.GetResponse(ctx, req.UserText, history)
	if err != nil {
		return nil, &TurnError{Stage: "completion", Err: err}
	}

	logger.Info("Persona reply generated",
		zap.String("sentiment", string(reply.Sentiment())),
		zap.Bool("dealClosed", reply.DealClosed()),
		zap.Int("historyLength", len(history)))

	// Synthesis and persistence start together and are joined together.
	// Synthesis gates the turn; the memory write is best effort.
	var (
		wg       sync.WaitGroup
		audio    []byte
		synthErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		audio, synthErr = s.synthesizer.Synthesize(ctx, reply.Text())
	}()
	go func() {
		defer wg.Done()
		s.storeTurn(ctx, logger, req.SessionID, req.UserText, reply.Text())
	}()
	wg.Wait()

	if synthErr != nil {
		return nil, &TurnError{Stage: "synthesis", Err: synthErr}
	}

	newScore := CalculatePatience(req.CurrentPatience, reply.Sentiment())

	logger.Info("Turn completed",
		zap.Int("patienceScore", newScore),
		zap.Int("audioSize", len(audio)))

	return &TurnResult{
		AIText:        reply.Text(),
		PatienceScore: newScore,
		DealClosed:    reply.DealClosed(),
		Audio:         audio,
	}, nil
}

// storeTurn appends both sides of the exchange, user message first.
// Persistence errors are logged and intentionally dropped right here at the
// join point; a turn still reports success when storage fails.
func (s *TurnService) storeTurn(ctx context.Context, logger *zap.Logger, sessionID, userText, aiText string) {
	if err := s.memory.AddMessage(ctx, sessionID, entities.RoleUser, userText); err != nil {
		logger.Warn("Failed to store user message", zap.Error(err))
	}
	if err := s.memory.AddMessage(ctx, sessionID, entities.RoleAssistant, aiText); err != nil {
		logger.Warn("Failed to store assistant message", zap.Error(err))
	}
}
