package message

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/kindvoice/internal/tone"
)

func TestGenerationRequestValidate(t *testing.T) {
	assert.NoError(t, GenerationRequest{UserMessage: "I feel alone", Tone: tone.Nurturing}.Validate())

	err := GenerationRequest{UserMessage: "   ", Tone: tone.Nurturing}.Validate()
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestReflectionRatingBounds(t *testing.T) {
	for rating := MinRating; rating <= MaxRating; rating++ {
		r := ReflectionRecord{Rating: rating}
		assert.NoError(t, r.Validate())
		assert.NotEmpty(t, r.RatingLabel())
	}
	assert.ErrorIs(t, ReflectionRecord{Rating: 0}.Validate(), ErrInvalidRequest)
	assert.ErrorIs(t, ReflectionRecord{Rating: 6}.Validate(), ErrInvalidRequest)
	assert.Empty(t, ReflectionRecord{Rating: 9}.RatingLabel())
}

func TestLengthLimits(t *testing.T) {
	long := func(n int) string { return strings.Repeat("é", n) }

	assert.NoError(t, GenerationRequest{UserMessage: long(MaxUserMessage)}.Validate())
	assert.ErrorIs(t, GenerationRequest{UserMessage: long(MaxUserMessage + 1)}.Validate(), ErrInvalidRequest)

	conv := ConversationRecord{UserMessage: long(MaxUserMessage + 1), Tone: tone.Protective, ResponseText: "ok"}
	assert.ErrorContains(t, conv.Validate(), "userMessage")

	ok := ReflectionRecord{Rating: 3, EmotionalState: long(MaxEmotionalState), Insights: long(MaxInsights)}
	assert.NoError(t, ok.Validate())

	r := ok
	r.EmotionalState = long(MaxEmotionalState + 1)
	assert.ErrorContains(t, r.Validate(), "emotionalState")

	r = ok
	r.Insights = long(MaxInsights + 1)
	assert.ErrorContains(t, r.Validate(), "insights")
}

func TestAudioJSONEncodesBase64(t *testing.T) {
	in := Audio{Data: []byte("ID3"), ContentType: "audio/mpeg", Source: AudioSourceRemote}

	b, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"data":"SUQz"`)

	var out Audio
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in, out)
}

func TestAdvisoryFor(t *testing.T) {
	adv, ok := AdvisoryFor(fmt.Errorf("opening device: %w", ErrPermissionDenied))
	require.True(t, ok)
	assert.Equal(t, AdvisoryPermissionDenied, adv.Code)

	adv, ok = AdvisoryFor(ErrUnsupportedEnvironment)
	require.True(t, ok)
	assert.Equal(t, AdvisoryUnsupported, adv.Code)

	_, ok = AdvisoryFor(ErrGeneration)
	assert.False(t, ok)
}
