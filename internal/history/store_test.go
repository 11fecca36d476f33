package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/kindvoice/internal/config"
	"github.com/nadzzz/kindvoice/internal/message"
	"github.com/nadzzz/kindvoice/internal/tone"
)

func backends(t *testing.T) map[string]KV {
	t.Helper()
	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })
	return map[string]KV{"memory": NewMemory(), "sqlite": sq}
}

var base = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func TestConversationRoundTrip(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := New(kv)
			ctx := context.Background()
			tones := tone.All()

			var want []message.ConversationRecord
			for i := 0; i < 7; i++ {
				rec, err := s.AppendConversation(ctx, message.ConversationRecord{
					UserMessage:  fmt.Sprintf("message %d", i),
					Tone:         tones[i%len(tones)],
					ResponseText: fmt.Sprintf("response %d", i),
					Timestamp:    base.Add(time.Duration(i) * time.Minute),
				})
				require.NoError(t, err)
				require.NotEmpty(t, rec.ID)
				want = append(want, rec)
			}

			got, err := New(kv).Conversations(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestEmptyValuesMeanNoRecords(t *testing.T) {
	ctx := context.Background()
	for _, raw := range []string{"", "null", "  "} {
		kv := NewMemory()
		require.NoError(t, kv.Set(ctx, ConversationsKey, raw))
		list, err := New(kv).Conversations(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
		assert.NotNil(t, list)
	}

	list, err := New(NewMemory()).Reflections(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCorruptValue(t *testing.T) {
	kv := NewMemory()
	require.NoError(t, kv.Set(context.Background(), ReflectionsKey, "{oops"))
	_, err := New(kv).Reflections(context.Background())
	assert.ErrorContains(t, err, ReflectionsKey)
}

func TestAppendAssignsIDAndTimestamp(t *testing.T) {
	s := New(NewMemory())
	s.now = func() time.Time { return base }
	s.newID = func() string { return "fixed-id" }

	rec, err := s.AppendConversation(context.Background(), message.ConversationRecord{
		UserMessage: "hi", Tone: tone.Nurturing, ResponseText: "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", rec.ID)
	assert.Equal(t, base, rec.Timestamp)

	_, err = s.AppendConversation(context.Background(), message.ConversationRecord{
		UserMessage: "again", Tone: tone.Nurturing, ResponseText: "hello",
	})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestAppendRejectsInvalid(t *testing.T) {
	s := New(NewMemory())
	_, err := s.AppendConversation(context.Background(), message.ConversationRecord{Tone: tone.Nurturing})
	assert.ErrorIs(t, err, message.ErrInvalidRequest)

	_, err = s.AppendReflection(context.Background(), message.ReflectionRecord{Rating: 7})
	assert.ErrorIs(t, err, message.ErrInvalidRequest)
}

func TestReflections(t *testing.T) {
	s := New(NewMemory())
	ctx := context.Background()

	_, err := s.AppendReflection(ctx, message.ReflectionRecord{ConversationID: "c1", Rating: 2, Insights: "first"})
	require.NoError(t, err)
	_, err = s.AppendReflection(ctx, message.ReflectionRecord{ConversationID: "missing", Rating: 4})
	require.NoError(t, err)
	_, err = s.AppendReflection(ctx, message.ReflectionRecord{ConversationID: "c1", Rating: 5, Insights: "later"})
	require.NoError(t, err)

	list, err := s.Reflections(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "first", list[0].Insights)

	r, ok, err := s.ReflectionFor(ctx, "c1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "later", r.Insights)

	_, ok, err = s.ReflectionFor(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListConversations(t *testing.T) {
	s := New(NewMemory())
	ctx := context.Background()
	add := func(msg string, tn tone.Tone, at time.Time) {
		_, err := s.AppendConversation(ctx, message.ConversationRecord{
			UserMessage: msg, Tone: tn, ResponseText: "I am here", Timestamp: at,
		})
		require.NoError(t, err)
	}
	add("Work was hard", tone.Validating, base)
	add("I feel Lonely", tone.Nurturing, base.Add(time.Hour))
	add("lonely again", tone.Validating, base.Add(2*time.Hour))

	all, err := s.ListConversations(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "lonely again", all[0].UserMessage)
	assert.Equal(t, "Work was hard", all[2].UserMessage)

	lonely, err := s.ListConversations(ctx, Filter{Query: "LONELY"})
	require.NoError(t, err)
	assert.Len(t, lonely, 2)

	validating, err := s.ListConversations(ctx, Filter{Tone: tone.Validating, Query: "lonely"})
	require.NoError(t, err)
	require.Len(t, validating, 1)
	assert.Equal(t, "lonely again", validating[0].UserMessage)
}

func TestConversationLookup(t *testing.T) {
	s := New(NewMemory())
	rec, err := s.AppendConversation(context.Background(), message.ConversationRecord{
		UserMessage: "hi", Tone: tone.Protective, ResponseText: "safe",
	})
	require.NoError(t, err)

	got, err := s.Conversation(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "safe", got.ResponseText)

	_, err = s.Conversation(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen(t *testing.T) {
	s, err := Open(config.StorageConfig{Backend: "memory"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(config.StorageConfig{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "kv.db")})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(config.StorageConfig{Backend: "redis"})
	assert.Error(t, err)
}
