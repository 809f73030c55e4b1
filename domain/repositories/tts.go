package repositories

import "context"

// SpeechSynthesizer converts reply text into playable audio bytes.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
