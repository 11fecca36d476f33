// Package intake turns spoken input into text: it records from the host
// microphone and transcribes clips through the remote backend.
//
// Errors wrap message.ErrPermissionDenied, message.ErrUnsupportedEnvironment
// or message.ErrTranscription so callers can show the matching advisory.
package intake

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nadzzz/kindvoice/internal/message"
	"github.com/nadzzz/kindvoice/internal/remote"
)

// DefaultMaxBytes bounds an uploaded clip.
const DefaultMaxBytes = 10 << 20

// Service transcribes recorded clips.
type Service struct {
	remote   remote.Client
	maxBytes int
	log      *slog.Logger
}

// New creates a Service. maxBytes <= 0 uses DefaultMaxBytes.
func New(rc remote.Client, maxBytes int) *Service {
	if rc == nil {
		rc = remote.Unconfigured{}
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Service{remote: rc, maxBytes: maxBytes, log: slog.With("component", "intake")}
}

// Available reports whether transcription can work at all.
func (s *Service) Available() bool { return s.remote.Available() }

// Transcribe returns the text spoken in clip.
func (s *Service) Transcribe(ctx context.Context, clip *message.Audio) (string, error) {
	if !s.remote.Available() {
		return "", fmt.Errorf("%w: transcription needs a configured remote backend: %w",
			message.ErrUnsupportedEnvironment, message.ErrUnconfigured)
	}
	if clip.Empty() {
		return "", fmt.Errorf("%w: empty recording", message.ErrTranscription)
	}
	if len(clip.Data) > s.maxBytes {
		return "", fmt.Errorf("%w: recording is %d bytes, limit is %d", message.ErrTranscription, len(clip.Data), s.maxBytes)
	}

	text, err := s.remote.Transcribe(ctx, clip)
	if err != nil {
		s.log.Warn("transcription failed", "error", err)
		return "", err
	}
	return text, nil
}

// Listen records one clip with rec and transcribes it.
func (s *Service) Listen(ctx context.Context, rec Recorder) (string, error) {
	if !s.remote.Available() {
		return "", fmt.Errorf("%w: transcription needs a configured remote backend: %w",
			message.ErrUnsupportedEnvironment, message.ErrUnconfigured)
	}
	clip, err := rec.Record(ctx)
	if err != nil {
		return "", err
	}
	// The recording may have been stopped by cancelling ctx.
	return s.Transcribe(context.WithoutCancel(ctx), clip)
}
