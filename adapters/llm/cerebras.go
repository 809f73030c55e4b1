package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/radebe49/objection-dojo/domain/entities"
	"github.com/radebe49/objection-dojo/domain/repositories"
)

const (
	defaultAPIBaseURL     = "https://api.cerebras.ai/v1"
	defaultModel          = "llama-3.3-70b"
	defaultTimeoutSeconds = 30 // Bounded timeout so an unresponsive endpoint cannot hang a turn

	// Sampling parameters tuned for short, low-latency persona replies
	requestTemperature = 0.7
	requestMaxTokens   = 500

	// Content-shape failures are retried; maxAttempts counts the first try too
	maxAttempts = 3
)

// systemPrompt defines "The Skeptic CTO" persona and the JSON contract the
// model must answer with.
const systemPrompt = `You are "The Skeptic CTO" - a busy, skeptical technology executive evaluating a sales pitch.

Your personality:
- Time-conscious and impatient with fluff
- Technically savvy - you see through buzzwords
- Respectful but direct
- You've heard every pitch before

Your job:
- Listen to the salesperson's pitch
- Respond with realistic objections OR agreement
- If genuinely convinced, you may agree to a meeting

ALWAYS respond with valid JSON in this exact format:
{
  "text": "Your spoken response here",
  "sentiment": "positive" | "negative" | "neutral",
  "deal_closed": true | false
}

Rules for sentiment:
- "positive": The pitch addressed your concerns well, you're warming up
- "negative": The pitch was weak, vague, or didn't answer your question
- "neutral": The pitch was okay but didn't move the needle

Rules for deal_closed:
- Set to true ONLY if you're genuinely convinced and ready to schedule a meeting
- This should be rare - you're a tough sell`

// CerebrasConfig holds configuration for the CerebrasClient adapter
// Required fields:
// - APIKey: Your Cerebras API key
// Optional fields with defaults:
// - APIBaseURL: The base URL for the Cerebras API (default: "https://api.cerebras.ai/v1")
// - Model: The completion model to use (default: "llama-3.3-70b")
// - TimeoutSeconds: HTTP client timeout in seconds (default: 30)
type CerebrasConfig struct {
	APIKey         string
	APIBaseURL     string
	Model          string
	TimeoutSeconds int
}

// CerebrasClient implements ResponseGenerator using the Cerebras
// chat-completions API
type CerebrasClient struct {
	apiKey     string
	apiBaseURL string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// Ensure CerebrasClient implements the ResponseGenerator interface
var _ repositories.ResponseGenerator = (*CerebrasClient)(nil)

// chatMessage is one entry of the outbound messages array
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// completionRequest is the chat-completions request payload
type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

// completionResponse carries the slice of the reply body we consume
type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// replyPayload is the JSON object the persona is prompted to emit.
// DealClosed is a pointer so a missing field is distinguishable from false.
type replyPayload struct {
	Text       string `json:"text"`
	Sentiment  string `json:"sentiment"`
	DealClosed *bool  `json:"deal_closed"`
}

// ValidateCerebrasConfig validates the CerebrasConfig
func ValidateCerebrasConfig(config CerebrasConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("cerebras API key is required")
	}

	if config.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout must be positive, got %d", config.TimeoutSeconds)
	}

	return nil
}

// NewCerebrasClient creates a new Cerebras completion client
func NewCerebrasClient(config CerebrasConfig, logger *zap.Logger) (*CerebrasClient, error) {
	if err := ValidateCerebrasConfig(config); err != nil {
		return nil, err
	}

	apiBaseURL := config.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
		logger.Info("Using default API base URL", zap.String("apiBaseURL", apiBaseURL))
	}

	model := config.Model
	if model == "" {
		model = defaultModel
		logger.Info("Using default model", zap.String("model", model))
	}

	timeoutSeconds := config.TimeoutSeconds
	if timeoutSeconds == 0 {
		timeoutSeconds = defaultTimeoutSeconds
	}

	return &CerebrasClient{
		apiKey:     config.APIKey,
		apiBaseURL: apiBaseURL,
		model:      model,
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
		logger: logger,
	}, nil
}

// NewCerebrasConfigFromEnv creates a new CerebrasConfig from environment variables
func NewCerebrasConfigFromEnv() CerebrasConfig {
	config := CerebrasConfig{
		APIKey:     os.Getenv("CEREBRAS_API_KEY"),
		APIBaseURL: os.Getenv("CEREBRAS_API_BASE_URL"),
		Model:      os.Getenv("CEREBRAS_MODEL"),
	}

	if timeoutStr := os.Getenv("CEREBRAS_TIMEOUT_SECONDS"); timeoutStr != "" {
		if timeout, err := strconv.Atoi(timeoutStr); err == nil && timeout > 0 {
			config.TimeoutSeconds = timeout
		}
	}

	return config
}

// GetResponse sends the utterance with history and returns the persona's
// validated reply.
//
// Content-shape failures (unparseable JSON, schema violations, empty choices)
// re-roll the model with the identical message list, up to maxAttempts total.
// Transport failures fail immediately: the endpoint itself is unreachable and
// re-sending would waste the latency budget. Attempts are strictly sequential.
func (c *CerebrasClient) GetResponse(ctx context.Context, userText string, history []entities.MemoryRecord) (entities.StructuredReply, error) {
	messages := c.buildMessages(userText, history)

	body, err := json.Marshal(completionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: requestTemperature,
		MaxTokens:   requestMaxTokens,
	})
	if err != nil {
		return entities.StructuredReply{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		reply, err := c.attempt(ctx, body)
		if err == nil {
			c.logger.Info("Structured reply accepted",
				zap.Int("attempt", attempt),
				zap.String("sentiment", string(reply.Sentiment())),
				zap.Bool("dealClosed", reply.DealClosed()))
			return reply, nil
		}

		var transportErr *TransportError
		if errors.As(err, &transportErr) {
			c.logger.Error("Cerebras request failed", zap.Error(err))
			return entities.StructuredReply{}, err
		}

		lastErr = err
		c.logger.Warn("Reply failed validation, re-rolling",
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	return entities.StructuredReply{}, &InvalidResponseError{Attempts: maxAttempts, Err: lastErr}
}

// attempt performs a single completion round trip. It returns a
// *TransportError for connection or HTTP-status failures and a plain error
// for content-shape failures, so the caller can decide retry eligibility in
// one place.
func (c *CerebrasClient) attempt(ctx context.Context, body []byte) (entities.StructuredReply, error) {
	url := fmt.Sprintf("%s/chat/completions", c.apiBaseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return entities.StructuredReply{}, &TransportError{Err: err}
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return entities.StructuredReply{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		errorBody, _ := io.ReadAll(resp.Body)
		c.logger.Error("Cerebras API returned error",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(errorBody)))
		return entities.StructuredReply{}, &TransportError{StatusCode: resp.StatusCode}
	}

	var completion completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return entities.StructuredReply{}, fmt.Errorf("failed to decode completion body: %w", err)
	}

	if len(completion.Choices) == 0 {
		return entities.StructuredReply{}, fmt.Errorf("completion contained no choices")
	}

	return parseReply(completion.Choices[0].Message.Content)
}

// buildMessages assembles the ordered message list: the persona instruction
// first, every history entry in order, then the current utterance.
func (c *CerebrasClient) buildMessages(userText string, history []entities.MemoryRecord) []chatMessage {
	messages := make([]chatMessage, 0, len(history)+2)
	messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})

	for _, record := range history {
		role := "user"
		if record.Role == entities.RoleAssistant {
			role = "assistant"
		}
		messages = append(messages, chatMessage{Role: role, Content: record.Content})
	}

	return append(messages, chatMessage{Role: "user", Content: userText})
}

// parseReply unwraps an optional markdown code fence, parses the content as
// JSON and validates it into a StructuredReply.
func parseReply(content string) (entities.StructuredReply, error) {
	unwrapped := stripCodeFence(content)

	var payload replyPayload
	if err := json.Unmarshal([]byte(unwrapped), &payload); err != nil {
		return entities.StructuredReply{}, fmt.Errorf("reply is not valid JSON: %w", err)
	}

	if payload.DealClosed == nil {
		return entities.StructuredReply{}, fmt.Errorf("reply is missing deal_closed")
	}

	return entities.NewStructuredReply(payload.Text, payload.Sentiment, *payload.DealClosed)
}

// stripCodeFence removes a surrounding markdown fence, with or without a
// language tag. Content without a fence passes through trimmed.
func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	var inner []string
	inBlock := false
	for _, line := range strings.Split(trimmed, "\n") {
		switch {
		case strings.HasPrefix(line, "```") && !inBlock:
			inBlock = true
		case strings.HasPrefix(line, "```") && inBlock:
			return strings.Join(inner, "\n")
		case inBlock:
			inner = append(inner, line)
		}
	}

	return strings.Join(inner, "\n")
}
