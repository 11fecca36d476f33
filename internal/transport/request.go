package transport

import (
	"log/slog"

	"github.com/nadzzz/kindvoice/internal/message"
	"github.com/nadzzz/kindvoice/internal/tone"
)

// NewRequest builds a GenerationRequest from wire fields. An unknown tone
// resolves to tone.Default with a warning. A nil audio flag uses
// audioDefault.
func NewRequest(userMessage, toneID string, audio *bool, audioDefault bool) message.GenerationRequest {
	t, ok := tone.Parse(toneID)
	if !ok {
		if toneID != "" {
			slog.Warn("unknown tone, using default", "tone", toneID, "default", tone.Default)
		}
		t = tone.Default
	}
	withAudio := audioDefault
	if audio != nil {
		withAudio = *audio
	}
	return message.GenerationRequest{
		UserMessage: userMessage,
		Tone:        t,
		TextOnly:    !withAudio,
	}
}
