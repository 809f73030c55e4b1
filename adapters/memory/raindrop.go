package memory

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
	defaultAPIBaseURL     = "https://api.raindrop.run/v1"
	defaultAppName        = "objection-dojo"
	defaultMemoryName     = "conversation-memory"
	defaultVersion        = "1"
	defaultTimeoutSeconds = 30

	// History retrieval truncates to the most recent entries
	historyLimit = 20

	conversationTimeline = "conversation"

	// Role markers used only at the remote-API boundary. The store keeps one
	// text blob per message; these prefixes are re-split into role+content on
	// read and never leak past this adapter.
	userPrefix      = "[USER]: "
	assistantPrefix = "[ASSISTANT]: "

	userAgent      = "user"
	assistantAgent = "skeptic-cto"
)

// RaindropConfig holds configuration for the RaindropMemory adapter
// Required fields:
// - APIKey: Your Raindrop API key
// Optional fields with defaults:
// - APIBaseURL: The base URL for the Raindrop API (default: "https://api.raindrop.run/v1")
// - AppName: Application name in Raindrop (default: "objection-dojo")
// - MemoryName: SmartMemory instance name (default: "conversation-memory")
// - Version: Application version (default: "1")
// - TimeoutSeconds: HTTP client timeout in seconds (default: 30)
type RaindropConfig struct {
	APIKey         string
	APIBaseURL     string
	AppName        string
	MemoryName     string
	Version        string
	TimeoutSeconds int
}

// RaindropMemory implements ConversationMemory against the Raindrop
// SmartMemory API, keyed by an application/memory namespace.
type RaindropMemory struct {
	apiKey     string
	apiBaseURL string
	appName    string
	memoryName string
	version    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Ensure RaindropMemory implements the ConversationMemory interface
var _ repositories.ConversationMemory = (*RaindropMemory)(nil)

// smartMemoryLocation addresses one SmartMemory instance
type smartMemoryLocation struct {
	SmartMemory smartMemoryName `json:"smartMemory"`
}

type smartMemoryName struct {
	Name            string `json:"name"`
	ApplicationName string `json:"application_name"`
	Version         string `json:"version"`
}

// MemoryEntry is one stored memory as returned by the Raindrop API
type MemoryEntry struct {
	MemoryID string    `json:"memoryId"`
	Content  string    `json:"content"`
	At       time.Time `json:"at"`
}

// ValidateRaindropConfig validates the RaindropConfig
func ValidateRaindropConfig(config RaindropConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("raindrop API key is required")
	}

	if config.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout must be positive, got %d", config.TimeoutSeconds)
	}

	return nil
}

// NewRaindropMemory creates a new Raindrop SmartMemory client
func NewRaindropMemory(config RaindropConfig, logger *zap.Logger) (*RaindropMemory, error) {
	if err := ValidateRaindropConfig(config); err != nil {
		return nil, err
	}

	apiBaseURL := config.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
		logger.Info("Using default API base URL", zap.String("apiBaseURL", apiBaseURL))
	}

	appName := config.AppName
	if appName == "" {
		appName = defaultAppName
	}

	memoryName := config.MemoryName
	if memoryName == "" {
		memoryName = defaultMemoryName
	}

	version := config.Version
	if version == "" {
		version = defaultVersion
	}

	timeoutSeconds := config.TimeoutSeconds
	if timeoutSeconds == 0 {
		timeoutSeconds = defaultTimeoutSeconds
	}

	return &RaindropMemory{
		apiKey:     config.APIKey,
		apiBaseURL: apiBaseURL,
		appName:    appName,
		memoryName: memoryName,
		version:    version,
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
		logger: logger,
	}, nil
}

// NewRaindropConfigFromEnv creates a new RaindropConfig from environment variables
func NewRaindropConfigFromEnv() RaindropConfig {
	config := RaindropConfig{
		APIKey:     os.Getenv("RAINDROP_API_KEY"),
		APIBaseURL: os.Getenv("RAINDROP_API_BASE_URL"),
		AppName:    os.Getenv("RAINDROP_APP_NAME"),
		MemoryName: os.Getenv("RAINDROP_MEMORY_NAME"),
	}

	if timeoutStr := os.Getenv("RAINDROP_TIMEOUT_SECONDS"); timeoutStr != "" {
		if timeout, err := strconv.Atoi(timeoutStr); err == nil && timeout > 0 {
			config.TimeoutSeconds = timeout
		}
	}

	return config
}

func (r *RaindropMemory) location() smartMemoryLocation {
	return smartMemoryLocation{
		SmartMemory: smartMemoryName{
			Name:            r.memoryName,
			ApplicationName: r.appName,
			Version:         r.version,
		},
	}
}

// post sends one JSON request to the Raindrop API and decodes the reply into
// out when out is non-nil. A non-2xx status is returned as an error carrying
// the status code.
func (r *RaindropMemory) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.apiBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("raindrop request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		errorBody, _ := io.ReadAll(resp.Body)
		return &apiStatusError{StatusCode: resp.StatusCode, Body: string(errorBody)}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// apiStatusError reports a non-2xx reply from the Raindrop API
type apiStatusError struct {
	StatusCode int
	Body       string
}

func (e *apiStatusError) Error() string {
	return fmt.Sprintf("raindrop API returned status %d: %s", e.StatusCode, e.Body)
}

// StartSession opens a new working-memory session and returns its id.
func (r *RaindropMemory) StartSession(ctx context.Context) (string, error) {
	var result struct {
		SessionID string `json:"sessionId"`
	}

	payload := map[string]interface{}{
		"smart_memory_location": r.location(),
	}

	if err := r.post(ctx, "/start_session", payload, &result); err != nil {
		return "", fmt.Errorf("failed to start session: %w", err)
	}

	return result.SessionID, nil
}

// EndSession closes a working-memory session. With flush set, the session is
// archived to episodic memory.
func (r *RaindropMemory) EndSession(ctx context.Context, sessionID string, flush bool) error {
	payload := map[string]interface{}{
		"smart_memory_location": r.location(),
		"session_id":            sessionID,
		"flush":                 flush,
	}

	if err := r.post(ctx, "/end_session", payload, nil); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	return nil
}

// PutMemory stores one content blob on the conversation timeline and returns
// the assigned memory id.
func (r *RaindropMemory) PutMemory(ctx context.Context, sessionID, content, agent string) (string, error) {
	var result struct {
		MemoryID string `json:"memoryId"`
	}

	payload := map[string]interface{}{
		"smart_memory_location": r.location(),
		"session_id":            sessionID,
		"content":               content,
		"timeline":              conversationTimeline,
		"agent":                 agent,
	}

	if err := r.post(ctx, "/put_memory", payload, &result); err != nil {
		return "", fmt.Errorf("failed to store memory: %w", err)
	}

	return result.MemoryID, nil
}

// GetMemory retrieves up to nMostRecent entries from the conversation
// timeline, oldest first. A 404 means the session does not exist yet and
// maps to an empty list, not an error.
func (r *RaindropMemory) GetMemory(ctx context.Context, sessionID string, nMostRecent int) ([]MemoryEntry, error) {
	var result struct {
		Memories []MemoryEntry `json:"memories"`
	}

	payload := map[string]interface{}{
		"smart_memory_location": r.location(),
		"session_id":            sessionID,
		"timeline":              conversationTimeline,
	}
	if nMostRecent > 0 {
		payload["nMostRecent"] = nMostRecent
	}

	if err := r.post(ctx, "/get_memory", payload, &result); err != nil {
		var statusErr *apiStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get memory: %w", err)
	}

	return result.Memories, nil
}

// SearchMemory runs a semantic search over the session's working memory and
// returns ranked matches.
func (r *RaindropMemory) SearchMemory(ctx context.Context, sessionID, terms string, nMostRecent int) ([]MemoryEntry, error) {
	var result struct {
		Memories []MemoryEntry `json:"memories"`
	}

	payload := map[string]interface{}{
		"smart_memory_location": r.location(),
		"session_id":            sessionID,
		"terms":                 terms,
		"nMostRecent":           nMostRecent,
	}

	if err := r.post(ctx, "/search_memory", payload, &result); err != nil {
		return nil, fmt.Errorf("failed to search memory: %w", err)
	}

	return result.Memories, nil
}

// GetHistory returns the session's conversation history as structured
// records, re-splitting the role markers stored at the API boundary.
// Entries with an unrecognized marker are skipped.
func (r *RaindropMemory) GetHistory(ctx context.Context, sessionID string) ([]entities.MemoryRecord, error) {
	entries, err := r.GetMemory(ctx, sessionID, historyLimit)
	if err != nil {
		return nil, err
	}

	var history []entities.MemoryRecord
	for _, entry := range entries {
		switch {
		case strings.HasPrefix(entry.Content, userPrefix):
			history = append(history, entities.MemoryRecord{
				Role:      entities.RoleUser,
				Content:   strings.TrimPrefix(entry.Content, userPrefix),
				CreatedAt: entry.At,
			})
		case strings.HasPrefix(entry.Content, assistantPrefix):
			history = append(history, entities.MemoryRecord{
				Role:      entities.RoleAssistant,
				Content:   strings.TrimPrefix(entry.Content, assistantPrefix),
				CreatedAt: entry.At,
			})
		default:
			r.logger.Debug("Skipping memory with unknown role marker",
				zap.String("memoryID", entry.MemoryID))
		}
	}

	return history, nil
}

// AddMessage appends one message, tagging the content with the role marker
// the remote store expects.
func (r *RaindropMemory) AddMessage(ctx context.Context, sessionID string, role entities.Role, content string) error {
	var prefixed, agent string
	switch role {
	case entities.RoleUser:
		prefixed = userPrefix + content
		agent = userAgent
	case entities.RoleAssistant:
		prefixed = assistantPrefix + content
		agent = assistantAgent
	default:
		return fmt.Errorf("unknown role %q", role)
	}

	memoryID, err := r.PutMemory(ctx, sessionID, prefixed, agent)
	if err != nil {
		return err
	}

	r.logger.Debug("Message stored",
		zap.String("sessionID", sessionID),
		zap.String("role", string(role)),
		zap.String("memoryID", memoryID))

	return nil
}
