package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/radebe49/objection-dojo/domain/entities"
)

// completionBody wraps content the way the chat-completions API returns it
func completionBody(t *testing.T, content string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	if err != nil {
		t.Fatalf("Failed to marshal completion body: %v", err)
	}
	return body
}

func newTestClient(t *testing.T, baseURL string) *CerebrasClient {
	t.Helper()
	client, err := NewCerebrasClient(CerebrasConfig{
		APIKey:     "test-api-key",
		APIBaseURL: baseURL,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create CerebrasClient: %v", err)
	}
	return client
}

func TestNewCerebrasClient(t *testing.T) {
	logger := zaptest.NewLogger(t)

	// Test without API key
	os.Unsetenv("CEREBRAS_API_KEY")
	config := NewCerebrasConfigFromEnv()
	_, err := NewCerebrasClient(config, logger)
	if err == nil {
		t.Error("Expected error when API key is not set")
	}

	// Test with API key
	os.Setenv("CEREBRAS_API_KEY", "test-api-key")
	defer os.Unsetenv("CEREBRAS_API_KEY")

	config = NewCerebrasConfigFromEnv()
	client, err := NewCerebrasClient(config, logger)
	if err != nil {
		t.Fatalf("Failed to create CerebrasClient: %v", err)
	}

	if client.apiKey != "test-api-key" {
		t.Errorf("Expected API key 'test-api-key', got '%s'", client.apiKey)
	}

	if client.model != defaultModel {
		t.Errorf("Expected default model '%s', got '%s'", defaultModel, client.model)
	}
}

func TestGetResponseSendsRequestShape(t *testing.T) {
	var captured completionRequest
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected path /chat/completions, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("Failed to decode request body: %v", err)
		}
		w.Write(completionBody(t, `{"text": "Go on.", "sentiment": "neutral", "deal_closed": false}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	history := []entities.MemoryRecord{
		{Role: entities.RoleUser, Content: "Hi there"},
		{Role: entities.RoleAssistant, Content: "Make it quick."},
	}

	if _, err := client.GetResponse(context.Background(), "We save you money", history); err != nil {
		t.Fatalf("GetResponse failed: %v", err)
	}

	if gotAuth != "Bearer test-api-key" {
		t.Errorf("Expected bearer auth header, got %q", gotAuth)
	}
	if captured.Model != defaultModel {
		t.Errorf("Expected model %s, got %s", defaultModel, captured.Model)
	}
	if captured.Temperature != requestTemperature {
		t.Errorf("Expected temperature %v, got %v", requestTemperature, captured.Temperature)
	}
	if captured.MaxTokens != requestMaxTokens {
		t.Errorf("Expected max_tokens %d, got %d", requestMaxTokens, captured.MaxTokens)
	}

	// System instruction first, history in order, current utterance last.
	if len(captured.Messages) != 4 {
		t.Fatalf("Expected 4 messages, got %d", len(captured.Messages))
	}
	if captured.Messages[0].Role != "system" {
		t.Errorf("First message should be the system persona, got role %q", captured.Messages[0].Role)
	}
	if captured.Messages[1].Role != "user" || captured.Messages[1].Content != "Hi there" {
		t.Errorf("Unexpected second message: %+v", captured.Messages[1])
	}
	if captured.Messages[2].Role != "assistant" || captured.Messages[2].Content != "Make it quick." {
		t.Errorf("Unexpected third message: %+v", captured.Messages[2])
	}
	if captured.Messages[3].Role != "user" || captured.Messages[3].Content != "We save you money" {
		t.Errorf("Last message should be the current utterance: %+v", captured.Messages[3])
	}
}

func TestGetResponseRetriesMalformedContent(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests < 3 {
			w.Write(completionBody(t, "sorry, no JSON today"))
			return
		}
		w.Write(completionBody(t, `{"text": "Fine, you have two minutes.", "sentiment": "positive", "deal_closed": false}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	reply, err := client.GetResponse(context.Background(), "pitch", nil)
	if err != nil {
		t.Fatalf("Expected success on third attempt, got %v", err)
	}

	if requests != 3 {
		t.Errorf("Expected exactly 3 requests, got %d", requests)
	}
	if reply.Text() != "Fine, you have two minutes." {
		t.Errorf("Expected the third payload's text, got %q", reply.Text())
	}
	if reply.Sentiment() != entities.SentimentPositive {
		t.Errorf("Expected positive sentiment, got %q", reply.Sentiment())
	}
}

func TestGetResponseExhaustsRetries(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write(completionBody(t, `{"text": "Hm.", "sentiment": "confused", "deal_closed": false}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.GetResponse(context.Background(), "pitch", nil)
	if err == nil {
		t.Fatal("Expected failure after exhausting retries")
	}

	var invalidErr *InvalidResponseError
	if !errors.As(err, &invalidErr) {
		t.Fatalf("Expected *InvalidResponseError, got %T: %v", err, err)
	}
	if invalidErr.Attempts != 3 {
		t.Errorf("Expected 3 attempts recorded, got %d", invalidErr.Attempts)
	}
	if requests != 3 {
		t.Errorf("Expected exactly 3 requests, not more, not fewer; got %d", requests)
	}
}

func TestGetResponseDoesNotRetryTransportFailure(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "upstream exploded")
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.GetResponse(context.Background(), "pitch", nil)
	if err == nil {
		t.Fatal("Expected transport failure")
	}

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("Expected *TransportError, got %T: %v", err, err)
	}
	if transportErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", transportErr.StatusCode)
	}
	if requests != 1 {
		t.Errorf("Transport failures must not be retried, got %d requests", requests)
	}
}

func TestGetResponseConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client := newTestClient(t, server.URL)
	_, err := client.GetResponse(context.Background(), "pitch", nil)

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("Expected *TransportError for connection failure, got %T: %v", err, err)
	}
}

func TestGetResponseStripsCodeFence(t *testing.T) {
	payload := `{"text": "Numbers, not adjectives.", "sentiment": "negative", "deal_closed": false}`
	contents := map[string]string{
		"fence with language tag": "```json\n" + payload + "\n```",
		"bare fence":              "```\n" + payload + "\n```",
		"no fence":                payload,
	}

	for name, content := range contents {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write(completionBody(t, content))
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			reply, err := client.GetResponse(context.Background(), "pitch", nil)
			if err != nil {
				t.Fatalf("GetResponse failed: %v", err)
			}
			if reply.Text() != "Numbers, not adjectives." {
				t.Errorf("Expected fenced payload text, got %q", reply.Text())
			}
			if reply.Sentiment() != entities.SentimentNegative {
				t.Errorf("Expected negative sentiment, got %q", reply.Sentiment())
			}
		})
	}
}

func TestParseReplyRejectsSchemaViolations(t *testing.T) {
	invalid := map[string]string{
		"missing text":        `{"sentiment": "neutral", "deal_closed": false}`,
		"missing sentiment":   `{"text": "Hm.", "deal_closed": false}`,
		"missing deal_closed": `{"text": "Hm.", "sentiment": "neutral"}`,
		"invalid sentiment":   `{"text": "Hm.", "sentiment": "grumpy", "deal_closed": false}`,
		"not json":            `the pitch was fine I guess`,
	}

	for name, content := range invalid {
		t.Run(name, func(t *testing.T) {
			if _, err := parseReply(content); err == nil {
				t.Errorf("parseReply should reject %s", name)
			}
		})
	}

	// A single valid object passes with case-insensitive sentiment.
	reply, err := parseReply(`{"text": "Hm.", "sentiment": "Neutral", "deal_closed": true}`)
	if err != nil {
		t.Fatalf("parseReply rejected a valid payload: %v", err)
	}
	if !reply.DealClosed() {
		t.Error("Expected dealClosed true")
	}
}

func TestStripCodeFence(t *testing.T) {
	if got := stripCodeFence("```json\n{\"a\":1}\n```"); got != `{"a":1}` {
		t.Errorf("Tagged fence not stripped, got %q", got)
	}
	if got := stripCodeFence("```\n{\"a\":1}\n```"); got != `{"a":1}` {
		t.Errorf("Bare fence not stripped, got %q", got)
	}
	if got := stripCodeFence("  {\"a\":1}  "); got != `{"a":1}` {
		t.Errorf("Unfenced content should pass through trimmed, got %q", got)
	}
}
