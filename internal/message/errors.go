package message

import "errors"

// Error kinds. Backends wrap these with %w so callers can test with errors.Is.
var (
	ErrGeneration             = errors.New("text generation failed")
	ErrSynthesis              = errors.New("speech synthesis failed")
	ErrSynthesisUnavailable   = errors.New("speech synthesis unavailable")
	ErrTranscription          = errors.New("transcription failed")
	ErrPermissionDenied       = errors.New("microphone permission denied")
	ErrUnsupportedEnvironment = errors.New("voice input not supported")

	ErrUnconfigured   = errors.New("remote backend not configured")
	ErrInterrupted    = errors.New("utterance interrupted")
	ErrInvalidRequest = errors.New("invalid request")
)

// Advisory codes.
const (
	AdvisoryAudioUnavailable   = "audio_unavailable"
	AdvisoryPermissionDenied   = "permission_denied"
	AdvisoryUnsupported        = "unsupported_environment"
	AdvisoryTranscriptionError = "transcription_failed"
)

// AudioSkipped is attached to text-only results when every audio backend failed.
var AudioSkipped = Advisory{
	Code:    AdvisoryAudioUnavailable,
	Message: "We couldn't play audio this time. Please read the response below.",
}

// AdvisoryFor maps voice-input errors to the notice shown to the user.
// It returns false for errors that are not surfaced.
func AdvisoryFor(err error) (Advisory, bool) {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return Advisory{
			Code:    AdvisoryPermissionDenied,
			Message: "Microphone access was denied. Please allow microphone access or type your message instead.",
		}, true
	case errors.Is(err, ErrUnsupportedEnvironment):
		return Advisory{
			Code:    AdvisoryUnsupported,
			Message: "Voice input is not available here. Please type your message instead.",
		}, true
	case errors.Is(err, ErrTranscription):
		return Advisory{
			Code:    AdvisoryTranscriptionError,
			Message: "We couldn't understand the recording. Please try again or type your message.",
		}, true
	}
	return Advisory{}, false
}
