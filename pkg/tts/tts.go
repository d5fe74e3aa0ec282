// Package tts provides a unified interface for text-to-speech providers.
//
// Two backends are supported: espeak-ng running locally (the default, works
// offline) and the OpenAI speech endpoint. Providers can be stacked with
// NewChain so a cloud voice falls back to the local one.
//
// Example usage:
//
//	provider, _ := tts.NewEspeak(tts.WithVoice("en"), tts.WithRate(150))
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, "Person at 1.5 meters")
//	// result.Audio contains a WAV file
package tts

import (
	"context"
	"time"
)

// Provider defines the TTS provider interface.
type Provider interface {
	// Synthesize converts text to audio, returning the complete audio buffer.
	// Alerts are short, so there is no streaming variant.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Health checks that the provider can synthesize (binary present, API reachable).
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioResult represents a complete audio synthesis result.
type AudioResult struct {
	// Audio contains the encoded audio, playable as-is by the audio player.
	Audio []byte

	// Format describes the audio encoding and sample rate.
	Format AudioFormat

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the synthesis time in milliseconds.
	LatencyMs int64
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	Encoding   Encoding
	SampleRate int
	Channels   int
}

// Encoding represents audio container/codec types.
type Encoding string

const (
	EncodingWAV Encoding = "wav" // espeak-ng --stdout
	EncodingMP3 Encoding = "mp3" // OpenAI default
	EncodingPCM Encoding = "pcm" // raw PCM16, used by the mock
)

// Elapsed converts a start time into the LatencyMs field.
func Elapsed(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
