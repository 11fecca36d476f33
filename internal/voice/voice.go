// Package voice provides on-device speech synthesis used when hosted speech
// is unavailable.
//
// An Engine renders text to audio. A Speaker wraps an engine and keeps at
// most one utterance active at a time: starting a new one interrupts the
// previous.
package voice

import (
	"context"
	"strings"

	"github.com/nadzzz/kindvoice/internal/message"
)

// Voice describes one installed voice.
type Voice struct {
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
	Gender   string `json:"gender,omitempty"`
}

// Prosody controls how text is spoken. Rate and Pitch are multipliers of the
// engine's normal values; Volume is in [0, 1].
type Prosody struct {
	Rate   float64
	Pitch  float64
	Volume float64
}

// DefaultProsody is slightly slower and higher than normal, at 90% volume.
var DefaultProsody = Prosody{Rate: 0.85, Pitch: 1.1, Volume: 0.9}

// PreferredVoices is checked in order when picking a voice. A voice matches
// when its name contains the entry.
var PreferredVoices = []string{
	"Google UK English Female",
	"Microsoft Zira Desktop",
	"Alex",
	"Samantha",
	"Victoria",
	"Karen",
	"Moira",
}

// Engine converts text to audio on the local host.
type Engine interface {
	// Name returns the engine identifier (e.g., "piper", "say").
	Name() string

	// Voices lists installed voices.
	Voices(ctx context.Context) ([]Voice, error)

	// Synthesize renders text with voice v. A zero Voice means the engine
	// default. Synthesize must return promptly once ctx is cancelled.
	Synthesize(ctx context.Context, text string, v Voice, p Prosody) (*message.Audio, error)
}

// SelectVoice picks a voice from voices: the first name in preferred that
// some voice contains, then any female voice, then the first voice. It
// returns false if voices is empty.
func SelectVoice(voices []Voice, preferred []string) (Voice, bool) {
	if len(voices) == 0 {
		return Voice{}, false
	}
	for _, name := range preferred {
		if name == "" {
			continue
		}
		needle := strings.ToLower(name)
		for _, v := range voices {
			if strings.Contains(strings.ToLower(v.Name), needle) {
				return v, true
			}
		}
	}
	for _, v := range voices {
		if isFemale(v) {
			return v, true
		}
	}
	return voices[0], true
}

func isFemale(v Voice) bool {
	if strings.EqualFold(v.Gender, "female") {
		return true
	}
	name := strings.ToLower(v.Name)
	return strings.Contains(name, "female") || strings.Contains(name, "woman")
}
