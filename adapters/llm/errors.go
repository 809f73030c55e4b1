package llm

import "fmt"

// TransportError reports a connection or HTTP-status failure talking to the
// completion endpoint. Transport failures are surfaced on first occurrence
// and never retried.
type TransportError struct {
	StatusCode int // zero when the request never reached the endpoint
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("cerebras API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("cerebras request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// InvalidResponseError reports that the model never produced content matching
// the reply schema within the retry budget. It carries the last failure.
type InvalidResponseError struct {
	Attempts int
	Err      error
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("no valid structured reply after %d attempts: %v", e.Attempts, e.Err)
}

func (e *InvalidResponseError) Unwrap() error {
	return e.Err
}
