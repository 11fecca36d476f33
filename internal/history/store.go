// Package history keeps completed conversations and reflections.
//
// Each record kind is stored as one JSON array under a fixed key in a KV
// store, in insertion order. A missing, empty or "null" value means no
// records.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nadzzz/kindvoice/internal/config"
	"github.com/nadzzz/kindvoice/internal/message"
	"github.com/nadzzz/kindvoice/internal/tone"
)

// Storage keys.
const (
	ConversationsKey = "reparentingConversations"
	ReflectionsKey   = "reparentingReflections"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrDuplicateID = errors.New("duplicate record id")
)

// Store appends and lists records over a KV.
type Store struct {
	kv    KV
	now   func() time.Time
	newID func() string

	// Appends are read-modify-write.
	mu sync.Mutex
}

// New creates a Store over kv.
func New(kv KV) *Store {
	return &Store{kv: kv, now: time.Now, newID: uuid.NewString}
}

// Open creates a Store on the backend named in cfg.
func Open(cfg config.StorageConfig) (*Store, error) {
	switch cfg.Backend {
	case "memory":
		return New(NewMemory()), nil
	case "sqlite", "":
		kv, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		return New(kv), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Close closes the underlying KV.
func (s *Store) Close() error { return s.kv.Close() }

// AppendConversation validates rec, fills in a missing ID and timestamp, and
// appends it.
func (s *Store) AppendConversation(ctx context.Context, rec message.ConversationRecord) (message.ConversationRecord, error) {
	if err := rec.Validate(); err != nil {
		return rec, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := load[message.ConversationRecord](ctx, s.kv, ConversationsKey)
	if err != nil {
		return rec, err
	}
	if rec.ID == "" {
		rec.ID = s.newID()
	}
	if slices.ContainsFunc(list, func(c message.ConversationRecord) bool { return c.ID == rec.ID }) {
		return rec, fmt.Errorf("%w: conversation %s", ErrDuplicateID, rec.ID)
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now().UTC()
	}

	list = append(list, rec)
	return rec, save(ctx, s.kv, ConversationsKey, list)
}

// Conversations returns every conversation in insertion order.
func (s *Store) Conversations(ctx context.Context) ([]message.ConversationRecord, error) {
	return load[message.ConversationRecord](ctx, s.kv, ConversationsKey)
}

// Conversation returns the conversation with id.
func (s *Store) Conversation(ctx context.Context, id string) (message.ConversationRecord, error) {
	list, err := s.Conversations(ctx)
	if err != nil {
		return message.ConversationRecord{}, err
	}
	for _, c := range list {
		if c.ID == id {
			return c, nil
		}
	}
	return message.ConversationRecord{}, fmt.Errorf("%w: conversation %s", ErrNotFound, id)
}

// Filter narrows ListConversations. Zero fields match everything.
type Filter struct {
	Tone  tone.Tone
	Query string
}

// ListConversations returns conversations matching f, newest first. Query is
// matched case-insensitively against the message and the response.
func (s *Store) ListConversations(ctx context.Context, f Filter) ([]message.ConversationRecord, error) {
	list, err := s.Conversations(ctx)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]message.ConversationRecord, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		c := list[i]
		if f.Tone.Valid() && c.Tone != f.Tone {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(c.UserMessage), q) &&
			!strings.Contains(strings.ToLower(c.ResponseText), q) {
			continue
		}
		out = append(out, c)
	}
	// Stable for equal timestamps: later insertion first.
	slices.SortStableFunc(out, func(a, b message.ConversationRecord) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return out, nil
}

// AppendReflection validates rec, fills in a missing ID and timestamp, and
// appends it. The conversation ID is not checked.
func (s *Store) AppendReflection(ctx context.Context, rec message.ReflectionRecord) (message.ReflectionRecord, error) {
	if err := rec.Validate(); err != nil {
		return rec, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := load[message.ReflectionRecord](ctx, s.kv, ReflectionsKey)
	if err != nil {
		return rec, err
	}
	if rec.ID == "" {
		rec.ID = s.newID()
	}
	if slices.ContainsFunc(list, func(r message.ReflectionRecord) bool { return r.ID == rec.ID }) {
		return rec, fmt.Errorf("%w: reflection %s", ErrDuplicateID, rec.ID)
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now().UTC()
	}

	list = append(list, rec)
	return rec, save(ctx, s.kv, ReflectionsKey, list)
}

// Reflections returns every reflection in insertion order.
func (s *Store) Reflections(ctx context.Context) ([]message.ReflectionRecord, error) {
	return load[message.ReflectionRecord](ctx, s.kv, ReflectionsKey)
}

// ReflectionFor returns the most recent reflection on conversationID.
func (s *Store) ReflectionFor(ctx context.Context, conversationID string) (message.ReflectionRecord, bool, error) {
	list, err := s.Reflections(ctx)
	if err != nil {
		return message.ReflectionRecord{}, false, err
	}
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].ConversationID == conversationID {
			return list[i], true, nil
		}
	}
	return message.ReflectionRecord{}, false, nil
}

func load[T any](ctx context.Context, kv KV, key string) ([]T, error) {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" || raw == "null" {
		return []T{}, nil
	}

	var list []T
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}
	if list == nil {
		list = []T{}
	}
	return list, nil
}

func save[T any](ctx context.Context, kv KV, key string, list []T) error {
	b, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return kv.Set(ctx, key, string(b))
}
