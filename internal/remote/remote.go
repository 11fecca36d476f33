// Package remote defines the hosted generation backend: chat completion for
// supportive text, speech synthesis, and speech-to-text.
//
// Availability is decided once at startup. A Client built without usable
// credentials is Unconfigured and fails every call with ErrUnconfigured, so
// callers can treat "not set up" and "call failed" the same way.
package remote

import (
	"context"
	"fmt"

	"github.com/nadzzz/kindvoice/internal/message"
	"github.com/nadzzz/kindvoice/internal/tone"
)

// Client is the interface for the hosted generation backend.
type Client interface {
	// Name returns the backend identifier (e.g., "openai", "unconfigured").
	Name() string

	// Available reports whether the backend has credentials. It never
	// changes for the lifetime of the client.
	Available() bool

	// GenerateText produces one supportive response for msg in tone t.
	// Errors wrap message.ErrGeneration.
	GenerateText(ctx context.Context, msg string, t tone.Tone) (string, error)

	// SynthesizeSpeech renders text as audio. Errors wrap message.ErrSynthesis.
	SynthesizeSpeech(ctx context.Context, text string) (*message.Audio, error)

	// Transcribe converts a recorded clip to text. Errors wrap
	// message.ErrTranscription.
	Transcribe(ctx context.Context, clip *message.Audio) (string, error)
}

// Unconfigured is the Client used when no credentials are present.
type Unconfigured struct{}

var _ Client = Unconfigured{}

// Name returns the backend identifier.
func (Unconfigured) Name() string { return "unconfigured" }

// Available always returns false.
func (Unconfigured) Available() bool { return false }

// GenerateText always fails.
func (Unconfigured) GenerateText(context.Context, string, tone.Tone) (string, error) {
	return "", fmt.Errorf("%w: %w", message.ErrGeneration, message.ErrUnconfigured)
}

// SynthesizeSpeech always fails.
func (Unconfigured) SynthesizeSpeech(context.Context, string) (*message.Audio, error) {
	return nil, fmt.Errorf("%w: %w", message.ErrSynthesis, message.ErrUnconfigured)
}

// Transcribe always fails.
func (Unconfigured) Transcribe(context.Context, *message.Audio) (string, error) {
	return "", fmt.Errorf("%w: %w", message.ErrTranscription, message.ErrUnconfigured)
}
