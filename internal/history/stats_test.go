package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/kindvoice/internal/message"
	"github.com/nadzzz/kindvoice/internal/tone"
)

func TestStatsEmpty(t *testing.T) {
	st, err := New(NewMemory()).Stats(context.Background(), base)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemory())
	for i := 0; i < 7; i++ {
		_, err := s.AppendConversation(ctx, message.ConversationRecord{
			UserMessage: "hard day", Tone: tone.Nurturing, ResponseText: "I am here",
			Timestamp: base.Add(time.Duration(i) * 6 * time.Hour),
		})
		require.NoError(t, err)
	}
	for _, r := range []int{5, 4, 4} {
		_, err := s.AppendReflection(ctx, message.ReflectionRecord{Rating: r})
		require.NoError(t, err)
	}

	// 49h after the first conversation counts as three days: 7/3 = 2.33.
	st, err := s.Stats(ctx, base.Add(49*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 7, st.Conversations)
	assert.Equal(t, 3, st.Reflections)
	assert.InDelta(t, 4.3, st.AverageRating, 1e-9)
	assert.InDelta(t, 2.3, st.PerDay, 1e-9)
}

func TestStatsAtLeastOneDay(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemory())
	for i := 0; i < 2; i++ {
		_, err := s.AppendConversation(ctx, message.ConversationRecord{
			UserMessage: "hi", Tone: tone.Validating, ResponseText: "hello", Timestamp: base,
		})
		require.NoError(t, err)
	}
	for _, r := range []int{1, 2} {
		_, err := s.AppendReflection(ctx, message.ReflectionRecord{Rating: r})
		require.NoError(t, err)
	}

	st, err := s.Stats(ctx, base)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, st.PerDay, 1e-9)
	assert.InDelta(t, 1.5, st.AverageRating, 1e-9)
}
