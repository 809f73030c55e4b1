// Command example synthesizes a sample pitch reply and writes the MP3 to
// disk. Useful for checking Eleven Labs credentials and voice settings.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/radebe49/objection-dojo/adapters/tts"
)

func main() {
	godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	synthesizer, err := tts.NewElevenLabsTTS(tts.NewElevenLabsConfigFromEnv(), logger)
	if err != nil {
		logger.Fatal("Failed to create Eleven Labs client", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	text := "Interesting. But I've heard that pitch before - what makes yours different?"
	audio, err := synthesizer.Synthesize(ctx, text)
	if err != nil {
		logger.Fatal("Synthesis failed", zap.Error(err))
	}

	outputFile := "example_output.mp3"
	if err := os.WriteFile(outputFile, audio, 0o644); err != nil {
		logger.Fatal("Failed to write audio file", zap.Error(err))
	}

	fmt.Printf("Wrote %d bytes to %s\n", len(audio), outputFile)
}
