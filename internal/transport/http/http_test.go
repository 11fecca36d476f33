package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/kindvoice/internal/catalog"
	"github.com/nadzzz/kindvoice/internal/config"
	"github.com/nadzzz/kindvoice/internal/history"
	"github.com/nadzzz/kindvoice/internal/intake"
	"github.com/nadzzz/kindvoice/internal/message"
	"github.com/nadzzz/kindvoice/internal/orchestrator"
	"github.com/nadzzz/kindvoice/internal/remote"
	"github.com/nadzzz/kindvoice/internal/tone"
)

var fixedNow = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

// fakeResponder echoes requests and records them.
type fakeResponder struct {
	mu    sync.Mutex
	calls []string
	reqs  []message.GenerationRequest
}

func (f *fakeResponder) answer(kind string, req message.GenerationRequest) (*message.GenerationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, kind)
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	return &message.GenerationResult{
		Text:       kind + ": " + req.UserMessage,
		Tone:       req.Tone,
		TextSource: message.TextSourceCatalog,
		CreatedAt:  fixedNow,
	}, nil
}

func (f *fakeResponder) Generate(_ context.Context, req message.GenerationRequest) (*message.GenerationResult, error) {
	return f.answer("generate", req)
}

func (f *fakeResponder) Regenerate(_ context.Context, req message.GenerationRequest) (*message.GenerationResult, error) {
	return f.answer("regenerate", req)
}

func (f *fakeResponder) last() message.GenerationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[len(f.reqs)-1]
}

// stubRemote transcribes every clip to text, or fails with err.
type stubRemote struct {
	remote.Unconfigured
	text string
	err  error
}

func (s stubRemote) Available() bool { return true }

func (s stubRemote) Transcribe(context.Context, *message.Audio) (string, error) {
	return s.text, s.err
}

type fixture struct {
	handler   http.Handler
	responder *fakeResponder
	store     *history.Store
}

func newFixture(t *testing.T, in *intake.Service, opts ...Option) *fixture {
	t.Helper()
	store := history.New(history.NewMemory())
	t.Cleanup(func() { _ = store.Close() })

	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	tr := New(config.HTTPConfig{Swagger: true, MaxUploadBytes: 64}, store, in, opts...)
	t.Cleanup(func() { _ = tr.Close() })

	r := &fakeResponder{}
	return &fixture{handler: tr.Router(r), responder: r, store: store}
}

func (f *fixture) do(t *testing.T, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) doJSON(t *testing.T, method, path string, v any) *httptest.ResponseRecorder {
	t.Helper()
	var body []byte
	if v != nil {
		var err error
		body, err = json.Marshal(v)
		require.NoError(t, err)
	}
	return f.do(t, method, path, "application/json", body)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestListTones(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/v1/tones", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	infos := decode[[]tone.Info](t, rec)
	require.Len(t, infos, 4)
	assert.Equal(t, "nurturing", infos[0].ID)
	assert.Equal(t, "Protective & Reassuring", infos[2].Label)
	assert.NotContains(t, rec.Body.String(), "You are a supportive")
}

func TestGenerate(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.doJSON(t, http.MethodPost, "/v1/responses", ResponseRequest{UserMessage: "I feel alone", Tone: "protective"})
	require.Equal(t, http.StatusOK, rec.Code)

	res := decode[message.GenerationResult](t, rec)
	assert.Equal(t, "generate: I feel alone", res.Text)
	assert.Equal(t, tone.Protective, res.Tone)

	req := f.responder.last()
	assert.False(t, req.TextOnly)
}

func TestGenerateUnknownToneUsesDefault(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.doJSON(t, http.MethodPost, "/v1/responses", ResponseRequest{UserMessage: "hi", Tone: "grumpy"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, tone.Default, f.responder.last().Tone)
}

func TestGenerateAudioFlag(t *testing.T) {
	off := false
	f := newFixture(t, nil)
	rec := f.doJSON(t, http.MethodPost, "/v1/responses", ResponseRequest{UserMessage: "hi", Audio: &off})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.responder.last().TextOnly)

	f = newFixture(t, nil, WithAudio(false))
	rec = f.doJSON(t, http.MethodPost, "/v1/responses", ResponseRequest{UserMessage: "hi"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.responder.last().TextOnly)
}

func TestGenerateInvalid(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.doJSON(t, http.MethodPost, "/v1/responses", ResponseRequest{UserMessage: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/responses", "application/json", []byte("{"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Error, "invalid json")

	rec = f.doJSON(t, http.MethodPost, "/v1/responses", ResponseRequest{UserMessage: strings.Repeat("a", message.MaxUserMessage+1)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Error, "at most 1000 characters")
}

func TestRegenerate(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.doJSON(t, http.MethodPost, "/v1/responses/regenerate", ResponseRequest{UserMessage: "again", Tone: "encouraging"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "regenerate: again", decode[message.GenerationResult](t, rec).Text)
}

func TestGenerateWithOrchestrator(t *testing.T) {
	orch, err := orchestrator.New(nil, nil)
	require.NoError(t, err)

	store := history.New(history.NewMemory())
	tr := New(config.HTTPConfig{}, store, nil)
	h := tr.Router(orch)

	body := `{"userMessage":"I was never heard","tone":"validating"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/responses", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	res := decode[message.GenerationResult](t, rec)
	assert.Contains(t, catalog.Entries(tone.Validating), res.Text)
	assert.Equal(t, message.TextSourceCatalog, res.TextSource)
	assert.Nil(t, res.Audio)
	require.NotNil(t, res.Advisory)
	assert.Equal(t, message.AdvisoryAudioUnavailable, res.Advisory.Code)
}

func TestTranscribe(t *testing.T) {
	f := newFixture(t, intake.New(stubRemote{text: "I feel tired"}, 0))
	rec := f.do(t, http.MethodPost, "/v1/transcriptions", "audio/webm", []byte("clip"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "I feel tired", decode[TranscriptionResult](t, rec).Text)
}

func TestTranscribeErrors(t *testing.T) {
	tests := []struct {
		name   string
		intake *intake.Service
		body   []byte
		status int
		code   string
	}{
		{
			name:   "unconfigured",
			intake: nil,
			body:   []byte("clip"),
			status: http.StatusServiceUnavailable,
			code:   message.AdvisoryUnsupported,
		},
		{
			name:   "permission",
			intake: intake.New(stubRemote{err: fmt.Errorf("%w: blocked", message.ErrPermissionDenied)}, 0),
			body:   []byte("clip"),
			status: http.StatusForbidden,
			code:   message.AdvisoryPermissionDenied,
		},
		{
			name:   "transcription",
			intake: intake.New(stubRemote{err: fmt.Errorf("%w: upstream", message.ErrTranscription)}, 0),
			body:   []byte("clip"),
			status: http.StatusBadGateway,
			code:   message.AdvisoryTranscriptionError,
		},
		{
			name:   "too large",
			intake: intake.New(stubRemote{text: "x"}, 0),
			body:   bytes.Repeat([]byte("a"), 65),
			status: http.StatusRequestEntityTooLarge,
			code:   message.AdvisoryTranscriptionError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.intake)
			rec := f.do(t, http.MethodPost, "/v1/transcriptions", "audio/webm", tt.body)
			assert.Equal(t, tt.status, rec.Code)

			body := decode[ErrorResponse](t, rec)
			require.NotNil(t, body.Advisory)
			assert.Equal(t, tt.code, body.Advisory.Code)
		})
	}
}

func TestConversations(t *testing.T) {
	f := newFixture(t, nil)

	for i, msg := range []string{"First worry", "second hope", "third worry"} {
		rec := f.doJSON(t, http.MethodPost, "/v1/conversations", map[string]any{
			"userMessage":  msg,
			"tone":         []string{"protective", "encouraging", "protective"}[i],
			"responseText": "response " + msg,
			"timestamp":    fixedNow.Add(time.Duration(i) * time.Minute),
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.NotEmpty(t, decode[message.ConversationRecord](t, rec).ID)
	}

	rec := f.do(t, http.MethodGet, "/v1/conversations", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[[]message.ConversationRecord](t, rec)
	require.Len(t, all, 3)
	assert.Equal(t, "third worry", all[0].UserMessage)

	rec = f.do(t, http.MethodGet, "/v1/conversations?tone=protective&q=WORRY", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	filtered := decode[[]message.ConversationRecord](t, rec)
	require.Len(t, filtered, 2)
	assert.Equal(t, "First worry", filtered[1].UserMessage)

	rec = f.do(t, http.MethodGet, "/v1/conversations?tone=grumpy", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateConversationInvalid(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.doJSON(t, http.MethodPost, "/v1/conversations", map[string]any{"userMessage": "x", "tone": "nurturing"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.doJSON(t, http.MethodPost, "/v1/conversations", map[string]any{"userMessage": "x", "responseText": "y", "tone": "grumpy"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	dup := map[string]any{"id": "c1", "userMessage": "x", "responseText": "y", "tone": "nurturing"}
	require.Equal(t, http.StatusCreated, f.doJSON(t, http.MethodPost, "/v1/conversations", dup).Code)
	assert.Equal(t, http.StatusConflict, f.doJSON(t, http.MethodPost, "/v1/conversations", dup).Code)
}

func TestReflections(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.doJSON(t, http.MethodPost, "/v1/reflections", map[string]any{"conversationId": "c1", "rating": 6})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for _, id := range []string{"c1", "c2", "c1"} {
		rec = f.doJSON(t, http.MethodPost, "/v1/reflections", map[string]any{"conversationId": id, "rating": 3})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/v1/reflections", "", nil)
	assert.Len(t, decode[[]message.ReflectionRecord](t, rec), 3)

	rec = f.do(t, http.MethodGet, "/v1/reflections?conversationId=c1", "", nil)
	assert.Len(t, decode[[]message.ReflectionRecord](t, rec), 2)
}

func TestExport(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	conv, err := f.store.AppendConversation(ctx, message.ConversationRecord{
		ID:           "abcdef123456",
		UserMessage:  "I was scared",
		Tone:         tone.Protective,
		ResponseText: "You are safe now.",
		Timestamp:    fixedNow,
	})
	require.NoError(t, err)
	_, err = f.store.AppendReflection(ctx, message.ReflectionRecord{ConversationID: conv.ID, Rating: 5, Timestamp: fixedNow})
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/v1/conversations/"+conv.ID+"/export", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="conversation-2025-03-01-abcdef12.txt"`, rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Body.String(), "Rating: 5/5 (Deeply Nourished)")

	rec = f.do(t, http.MethodGet, "/v1/conversations/missing/export", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/export", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="kindvoice-history-2025-03-01.txt"`, rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Body.String(), "Conversations: 1")
}

func TestStats(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	rec := f.do(t, http.MethodGet, "/v1/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"conversations":0,"reflections":0,"averageRating":0,"perDay":0}`, rec.Body.String())

	for i := 0; i < 3; i++ {
		_, err := f.store.AppendConversation(ctx, message.ConversationRecord{
			UserMessage: "rough week", Tone: tone.Validating, ResponseText: "That makes sense.",
			Timestamp: fixedNow.Add(-36 * time.Hour),
		})
		require.NoError(t, err)
	}
	for _, r := range []int{3, 4} {
		_, err := f.store.AppendReflection(ctx, message.ReflectionRecord{Rating: r})
		require.NoError(t, err)
	}

	rec = f.do(t, http.MethodGet, "/v1/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[history.Stats](t, rec)
	assert.Equal(t, 3, st.Conversations)
	assert.Equal(t, 2, st.Reflections)
	assert.InDelta(t, 3.5, st.AverageRating, 1e-9)
	assert.InDelta(t, 1.5, st.PerDay, 1e-9)
}

func TestSwagger(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/swagger/doc.json", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "/v1/responses")
	assert.Contains(t, string(body), "/v1/stats")
	assert.True(t, json.Valid(body))
}

func TestRecoverer(t *testing.T) {
	store := history.New(history.NewMemory())
	tr := New(config.HTTPConfig{}, store, nil)
	h := tr.Router(panicResponder{})

	req := httptest.NewRequest(http.MethodPost, "/v1/responses", strings.NewReader(`{"userMessage":"x"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type panicResponder struct{}

func (panicResponder) Generate(context.Context, message.GenerationRequest) (*message.GenerationResult, error) {
	panic(errors.New("boom"))
}

func (panicResponder) Regenerate(context.Context, message.GenerationRequest) (*message.GenerationResult, error) {
	panic(errors.New("boom"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(message.ErrInvalidRequest))
	assert.Equal(t, http.StatusNotFound, statusFor(fmt.Errorf("x: %w", history.ErrNotFound)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("other")))
}
