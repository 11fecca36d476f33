// Package message defines the core data types flowing through the kindvoice
// pipeline: generation requests and results, audio payloads, and the two
// record kinds kept in history.
package message

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nadzzz/kindvoice/internal/tone"
)

// TextSource records which backend produced a result's text.
type TextSource string

const (
	TextSourceRemote  TextSource = "remote"
	TextSourceCatalog TextSource = "catalog"

	// TextSourceDefault marks the last-resort response used after an
	// unexpected failure.
	TextSourceDefault TextSource = "default"
)

// AudioSource records which backend produced a result's audio.
type AudioSource string

const (
	AudioSourceNone   AudioSource = ""
	AudioSourceRemote AudioSource = "remote"
	AudioSourceLocal  AudioSource = "local"
)

// Input length limits, in characters.
const (
	MaxUserMessage    = 1000
	MaxEmotionalState = 100
	MaxInsights       = 500
)

func tooLong(field, v string, limit int) error {
	if utf8.RuneCountInString(v) > limit {
		return fmt.Errorf("%w: %s must be at most %d characters", ErrInvalidRequest, field, limit)
	}
	return nil
}

// GenerationRequest asks for one supportive response.
type GenerationRequest struct {
	// UserMessage is what the user shared. Must not be blank or longer than
	// MaxUserMessage.
	UserMessage string `json:"userMessage"`

	// Tone selects the response style.
	Tone tone.Tone `json:"tone"`

	// TextOnly skips speech synthesis entirely.
	TextOnly bool `json:"textOnly,omitempty"`
}

// Validate checks the request invariants.
func (r GenerationRequest) Validate() error {
	if strings.TrimSpace(r.UserMessage) == "" {
		return fmt.Errorf("%w: userMessage is required", ErrInvalidRequest)
	}
	return tooLong("userMessage", r.UserMessage, MaxUserMessage)
}

// Audio is a playable clip: encoded bytes plus their MIME type.
type Audio struct {
	Data        []byte      `json:"-"`
	ContentType string      `json:"contentType"`
	Voice       string      `json:"voice,omitempty"`
	Source      AudioSource `json:"source"`
}

// Empty reports whether the clip carries no audio bytes.
func (a *Audio) Empty() bool {
	return a == nil || len(a.Data) == 0
}

type audioJSON struct {
	Data        string      `json:"data"`
	ContentType string      `json:"contentType"`
	Voice       string      `json:"voice,omitempty"`
	Source      AudioSource `json:"source"`
}

// MarshalJSON base64-encodes the audio bytes.
func (a Audio) MarshalJSON() ([]byte, error) {
	return json.Marshal(audioJSON{
		Data:        base64.StdEncoding.EncodeToString(a.Data),
		ContentType: a.ContentType,
		Voice:       a.Voice,
		Source:      a.Source,
	})
}

// UnmarshalJSON decodes base64 audio bytes.
func (a *Audio) UnmarshalJSON(b []byte) error {
	var raw audioJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	data, err := base64.StdEncoding.DecodeString(raw.Data)
	if err != nil {
		return fmt.Errorf("decoding audio data: %w", err)
	}
	*a = Audio{Data: data, ContentType: raw.ContentType, Voice: raw.Voice, Source: raw.Source}
	return nil
}

// Advisory is a non-fatal notice shown to the user.
type Advisory struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// GenerationResult is the outcome of one generation request. Text is never
// empty.
type GenerationResult struct {
	Text        string      `json:"text"`
	Tone        tone.Tone   `json:"tone"`
	TextSource  TextSource  `json:"textSource"`
	Audio       *Audio      `json:"audio,omitempty"`
	AudioSource AudioSource `json:"audioSource,omitempty"`
	Advisory    *Advisory   `json:"advisory,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// HasAudio returns true if the result carries playable audio.
func (r *GenerationResult) HasAudio() bool {
	return !r.Audio.Empty()
}

// ConversationRecord is one completed exchange kept in history.
type ConversationRecord struct {
	ID           string    `json:"id"`
	UserMessage  string    `json:"userMessage"`
	Tone         tone.Tone `json:"tone"`
	ResponseText string    `json:"responseText"`
	Timestamp    time.Time `json:"timestamp"`
}

// Validate checks the fields a client must supply.
func (c ConversationRecord) Validate() error {
	switch {
	case strings.TrimSpace(c.UserMessage) == "":
		return fmt.Errorf("%w: userMessage is required", ErrInvalidRequest)
	case strings.TrimSpace(c.ResponseText) == "":
		return fmt.Errorf("%w: responseText is required", ErrInvalidRequest)
	case !c.Tone.Valid():
		return fmt.Errorf("%w: tone is required", ErrInvalidRequest)
	}
	return tooLong("userMessage", c.UserMessage, MaxUserMessage)
}

// Rating bounds for ReflectionRecord.
const (
	MinRating = 1
	MaxRating = 5
)

// RatingLabels names each rating value.
var RatingLabels = [...]string{
	1: "Still Struggling",
	2: "Slightly Comforted",
	3: "Somewhat Healed",
	4: "Much Better",
	5: "Deeply Nourished",
}

// ReflectionRecord is what the user noted after a conversation.
// ConversationID is not checked against stored conversations.
type ReflectionRecord struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	EmotionalState string    `json:"emotionalState"`
	Insights       string    `json:"insights"`
	Rating         int       `json:"rating"`
	Timestamp      time.Time `json:"timestamp"`
}

// Validate checks the rating bounds and text lengths.
func (r ReflectionRecord) Validate() error {
	if r.Rating < MinRating || r.Rating > MaxRating {
		return fmt.Errorf("%w: rating must be between %d and %d", ErrInvalidRequest, MinRating, MaxRating)
	}
	if err := tooLong("emotionalState", r.EmotionalState, MaxEmotionalState); err != nil {
		return err
	}
	return tooLong("insights", r.Insights, MaxInsights)
}

// RatingLabel returns the display label for the record's rating.
func (r ReflectionRecord) RatingLabel() string {
	if r.Rating < MinRating || r.Rating > MaxRating {
		return ""
	}
	return RatingLabels[r.Rating]
}
