package api

// ChatRequest is the turn-processing request payload
type ChatRequest struct {
	SessionID       string `json:"session_id"`
	UserText        string `json:"user_text"`
	CurrentPatience int    `json:"current_patience"`
}

// ChatResponse is the consolidated turn result returned to the frontend.
// AudioBase64 carries the raw MPEG bytes base64-encoded.
type ChatResponse struct {
	AIText        string `json:"ai_text"`
	PatienceScore int    `json:"patience_score"`
	DealClosed    bool   `json:"deal_closed"`
	AudioBase64   string `json:"audio_base64"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
