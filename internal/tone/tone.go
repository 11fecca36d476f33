// Package tone defines the closed set of response tones a user can choose
// from, together with everything that varies by tone: display metadata and
// the system prompt used for hosted generation.
//
// All per-tone data lives in a single table indexed by Tone. Values outside
// the set resolve to Default through Info, so callers never index a map with
// an unchecked key.
package tone

import (
	"fmt"
	"strings"
)

// Tone is one of four fixed response styles. The zero value is unset and is
// not a valid tone.
type Tone uint8

const (
	Nurturing Tone = iota + 1
	Validating
	Protective
	Encouraging
)

// Default is the tone used when input does not name a known tone.
const Default = Nurturing

// Info holds the per-tone data shown to users and sent to the model.
type Info struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`

	// Prompt is the system instruction for hosted text generation.
	Prompt string `json:"-"`
}

var table = [...]Info{
	Nurturing: {
		ID:          "nurturing",
		Label:       "Nurturing & Comforting",
		Description: "Warm, gentle responses that provide comfort and emotional safety",
		Color:       "from-green-400 to-emerald-500",
		Icon:        "heart",
		Prompt: `You are a supportive, nurturing voice providing unconditional care and comfort. Your responses should be:
- Warm, gentle, and deeply caring
- Focused on emotional safety and comfort
- Validating of all feelings without judgment
- Offering reassurance and unconditional support
- Speaking as if comforting a beloved person
- Keep responses concise but emotionally rich (2-3 paragraphs max)
- Use "dear one," "sweetheart," or similar caring terms naturally
- Focus on wellness and emotional support, not medical advice`,
	},
	Validating: {
		ID:          "validating",
		Label:       "Validating & Understanding",
		Description: "Responses that acknowledge your feelings and affirm your experiences",
		Color:       "from-blue-400 to-indigo-500",
		Icon:        "sparkles",
		Prompt: `You are a supportive voice who deeply validates and understands. Your responses should be:
- Acknowledge all feelings as completely valid and understandable
- Reflect back what you hear with empathy
- Affirm the person's experiences and perspective
- Show that their emotions make perfect sense
- Demonstrate deep listening and understanding
- Keep responses concise but emotionally rich (2-3 paragraphs max)
- Use phrases like "I hear you," "That makes complete sense," "Your feelings are valid"
- Focus on emotional validation and support`,
	},
	Protective: {
		ID:          "protective",
		Label:       "Protective & Reassuring",
		Description: "Strong, secure responses that help you feel safe and defended",
		Color:       "from-purple-400 to-violet-500",
		Icon:        "shield",
		Prompt: `You are a supportive voice who provides safety and reassurance. Your responses should be:
- Strong, secure, and reassuring
- Create a sense of safety and being supported
- Take responsibility for providing comfort and care
- Be firm about the person's worth and safety
- Offer strength when they feel vulnerable
- Keep responses concise but emotionally rich (2-3 paragraphs max)
- Use phrases like "You are safe," "I will support you," "You don't have to face this alone"
- Focus on emotional safety and support`,
	},
	Encouraging: {
		ID:          "encouraging",
		Label:       "Encouraging & Empowering",
		Description: "Uplifting responses that build confidence and inner strength",
		Color:       "from-amber-400 to-orange-500",
		Icon:        "star",
		Prompt: `You are a supportive voice who empowers and encourages. Your responses should be:
- Uplifting and confidence-building
- Focus on strengths and capabilities
- Inspire hope and forward movement
- Celebrate progress and efforts
- Build inner strength and resilience
- Keep responses concise but emotionally rich (2-3 paragraphs max)
- Use phrases like "I believe in you," "You are capable," "I'm proud of you"
- Focus on personal growth and empowerment`,
	},
}

// All returns every valid tone in display order.
func All() []Tone {
	return []Tone{Nurturing, Validating, Protective, Encouraging}
}

// Valid reports whether t is one of the four known tones.
func (t Tone) Valid() bool {
	return t >= Nurturing && t <= Encouraging
}

// Resolve returns t, or Default when t is not a valid tone.
func (t Tone) Resolve() Tone {
	if t.Valid() {
		return t
	}
	return Default
}

// Info returns the table entry for t, aliasing invalid values to Default.
func (t Tone) Info() Info {
	return table[t.Resolve()]
}

// String returns the tone identifier, e.g. "protective".
func (t Tone) String() string {
	if !t.Valid() {
		return fmt.Sprintf("tone(%d)", uint8(t))
	}
	return table[t].ID
}

// Parse looks up a tone by identifier. Matching ignores case and
// surrounding whitespace.
func Parse(s string) (Tone, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, t := range All() {
		if table[t].ID == s {
			return t, true
		}
	}
	return 0, false
}

// Lookup is Parse with unknown input resolved to Default.
func Lookup(s string) Tone {
	if t, ok := Parse(s); ok {
		return t
	}
	return Default
}

// MarshalText encodes the tone as its identifier.
func (t Tone) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid tone %d", uint8(t))
	}
	return []byte(table[t].ID), nil
}

// UnmarshalText decodes a tone identifier. Unknown identifiers are an error;
// callers that want the lenient behavior use Lookup.
func (t *Tone) UnmarshalText(b []byte) error {
	parsed, ok := Parse(string(b))
	if !ok {
		return fmt.Errorf("unknown tone %q", string(b))
	}
	*t = parsed
	return nil
}
