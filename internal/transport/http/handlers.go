package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nadzzz/kindvoice/internal/export"
	"github.com/nadzzz/kindvoice/internal/history"
	"github.com/nadzzz/kindvoice/internal/message"
	"github.com/nadzzz/kindvoice/internal/tone"
	"github.com/nadzzz/kindvoice/internal/transport"
)

type handlers struct {
	t         *Transport
	responder transport.Responder
}

// ResponseRequest asks for a supportive response.
type ResponseRequest struct {
	UserMessage string `json:"userMessage" example:"I keep thinking I am not good enough"`
	Tone        string `json:"tone" example:"protective"`

	// Audio requests speech. Omitted means the server default.
	Audio *bool `json:"audio,omitempty"`
}

// TranscriptionResult is the text heard in an uploaded clip.
type TranscriptionResult struct {
	Text string `json:"text"`
}

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Error    string            `json:"error"`
	Advisory *message.Advisory `json:"advisory,omitempty"`
}

// listTones returns the available tones.
//
// @Summary     List response tones
// @Tags        tones
// @Produce     json
// @Success     200  {array}  tone.Info
// @Router      /v1/tones [get]
func (h *handlers) listTones(w http.ResponseWriter, r *http.Request) {
	infos := make([]tone.Info, 0, len(tone.All()))
	for _, t := range tone.All() {
		infos = append(infos, t.Info())
	}
	writeJSON(w, http.StatusOK, infos)
}

// generate handles POST /v1/responses.
//
// @Summary     Generate a supportive response
// @Description Produces response text in the requested tone, with speech when available.
// @Description Hosted generation falls back to pre-written responses and never fails for a valid request.
// @Description An identical request may be answered from memory.
// @Tags        responses
// @Accept      json
// @Produce     json
// @Param       request  body      ResponseRequest  true  "What the user shared and the tone to answer in"
// @Success     200      {object}  message.GenerationResult
// @Failure     400      {object}  ErrorResponse
// @Router      /v1/responses [post]
func (h *handlers) generate(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.responder.Generate)
}

// regenerate handles POST /v1/responses/regenerate.
//
// @Summary     Regenerate a supportive response
// @Description Same as /v1/responses but always produces a fresh response.
// @Tags        responses
// @Accept      json
// @Produce     json
// @Param       request  body      ResponseRequest  true  "What the user shared and the tone to answer in"
// @Success     200      {object}  message.GenerationResult
// @Failure     400      {object}  ErrorResponse
// @Router      /v1/responses/regenerate [post]
func (h *handlers) regenerate(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.responder.Regenerate)
}

func (h *handlers) respond(w http.ResponseWriter, r *http.Request, gen func(ctx context.Context, req message.GenerationRequest) (*message.GenerationResult, error)) {
	var body ResponseRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	req := transport.NewRequest(body.UserMessage, body.Tone, body.Audio, h.t.audio)
	res, err := gen(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// transcribe handles POST /v1/transcriptions.
//
// @Summary     Transcribe a recorded clip
// @Description POST the raw clip bytes with their Content-Type. Failures carry an advisory
// @Description asking the user to type instead.
// @Tags        voice
// @Accept      audio/webm
// @Accept      audio/wav
// @Accept      audio/mpeg
// @Produce     json
// @Success     200  {object}  TranscriptionResult
// @Failure     403  {object}  ErrorResponse  "Microphone permission denied"
// @Failure     413  {object}  ErrorResponse  "Clip too large"
// @Failure     502  {object}  ErrorResponse  "Transcription failed"
// @Failure     503  {object}  ErrorResponse  "Voice input unsupported"
// @Router      /v1/transcriptions [post]
func (h *handlers) transcribe(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.t.cfg.MaxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = fmt.Errorf("%w: clip exceeds %d bytes", message.ErrTranscription, tooLarge.Limit)
			writeErrorStatus(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		writeError(w, fmt.Errorf("%w: reading clip: %w", message.ErrTranscription, err))
		return
	}

	clip := &message.Audio{Data: data, ContentType: r.Header.Get("Content-Type")}
	text, err := h.t.intake.Transcribe(r.Context(), clip)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TranscriptionResult{Text: text})
}

// listConversations handles GET /v1/conversations.
//
// @Summary     List saved conversations
// @Description Newest first. Optionally filtered by tone and a case-insensitive search.
// @Tags        history
// @Produce     json
// @Param       tone  query     string  false  "Tone identifier"
// @Param       q     query     string  false  "Search text"
// @Success     200   {array}   message.ConversationRecord
// @Failure     400   {object}  ErrorResponse
// @Router      /v1/conversations [get]
func (h *handlers) listConversations(w http.ResponseWriter, r *http.Request) {
	var f history.Filter
	if id := r.URL.Query().Get("tone"); id != "" {
		t, ok := tone.Parse(id)
		if !ok {
			writeError(w, fmt.Errorf("%w: unknown tone %q", message.ErrInvalidRequest, id))
			return
		}
		f.Tone = t
	}
	f.Query = r.URL.Query().Get("q")

	list, err := h.t.store.ListConversations(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// createConversation handles POST /v1/conversations.
//
// @Summary     Save a conversation
// @Description The id and timestamp are assigned when omitted.
// @Tags        history
// @Accept      json
// @Produce     json
// @Param       conversation  body      message.ConversationRecord  true  "Completed exchange"
// @Success     201           {object}  message.ConversationRecord
// @Failure     400           {object}  ErrorResponse
// @Failure     409           {object}  ErrorResponse
// @Router      /v1/conversations [post]
func (h *handlers) createConversation(w http.ResponseWriter, r *http.Request) {
	var rec message.ConversationRecord
	if err := decodeJSON(w, r, &rec); err != nil {
		writeError(w, err)
		return
	}
	saved, err := h.t.store.AppendConversation(r.Context(), rec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// listReflections handles GET /v1/reflections.
//
// @Summary     List saved reflections
// @Tags        history
// @Produce     json
// @Param       conversationId  query  string  false  "Only reflections on this conversation"
// @Success     200  {array}  message.ReflectionRecord
// @Router      /v1/reflections [get]
func (h *handlers) listReflections(w http.ResponseWriter, r *http.Request) {
	list, err := h.t.store.Reflections(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if id := r.URL.Query().Get("conversationId"); id != "" {
		filtered := list[:0]
		for _, rec := range list {
			if rec.ConversationID == id {
				filtered = append(filtered, rec)
			}
		}
		list = filtered
	}
	writeJSON(w, http.StatusOK, list)
}

// createReflection handles POST /v1/reflections.
//
// @Summary     Save a reflection
// @Tags        history
// @Accept      json
// @Produce     json
// @Param       reflection  body      message.ReflectionRecord  true  "Reflection on a conversation"
// @Success     201         {object}  message.ReflectionRecord
// @Failure     400         {object}  ErrorResponse
// @Failure     409         {object}  ErrorResponse
// @Router      /v1/reflections [post]
func (h *handlers) createReflection(w http.ResponseWriter, r *http.Request) {
	var rec message.ReflectionRecord
	if err := decodeJSON(w, r, &rec); err != nil {
		writeError(w, err)
		return
	}
	saved, err := h.t.store.AppendReflection(r.Context(), rec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// stats handles GET /v1/stats.
//
// @Summary     History statistics
// @Description Counts, average reflection rating and conversations per day.
// @Tags        history
// @Produce     json
// @Success     200  {object}  history.Stats
// @Router      /v1/stats [get]
func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.t.store.Stats(r.Context(), h.t.now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// exportConversation handles GET /v1/conversations/{id}/export.
//
// @Summary     Export one conversation
// @Description Plain-text document with the latest reflection, served as a download.
// @Tags        history
// @Produce     plain
// @Param       id   path      string  true  "Conversation id"
// @Success     200  {string}  string
// @Failure     404  {object}  ErrorResponse
// @Router      /v1/conversations/{id}/export [get]
func (h *handlers) exportConversation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conv, err := h.t.store.Conversation(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	entry := export.Entry{Conversation: conv}
	refl, ok, err := h.t.store.ReflectionFor(ctx, conv.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if ok {
		entry.Reflection = &refl
	}

	var buf bytes.Buffer
	if err := export.Conversation(&buf, entry); err != nil {
		writeError(w, err)
		return
	}
	writeDocument(w, export.ConversationFilename(entry), buf.Bytes())
}

// exportAll handles GET /v1/export.
//
// @Summary     Export all history
// @Description Every conversation in saved order, each with its latest reflection.
// @Tags        history
// @Produce     plain
// @Success     200  {string}  string
// @Router      /v1/export [get]
func (h *handlers) exportAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	convs, err := h.t.store.Conversations(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	refls, err := h.t.store.Reflections(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	now := h.t.now()
	var buf bytes.Buffer
	if err := export.All(&buf, export.Pair(convs, refls), now); err != nil {
		writeError(w, err)
		return
	}
	writeDocument(w, export.AllFilename(now), buf.Bytes())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid json: %w", message.ErrInvalidRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDocument(w http.ResponseWriter, filename string, body []byte) {
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, err error) {
	writeErrorStatus(w, statusFor(err), err)
}

func writeErrorStatus(w http.ResponseWriter, status int, err error) {
	body := ErrorResponse{Error: err.Error()}
	if adv, ok := message.AdvisoryFor(err); ok {
		body.Advisory = &adv
	}
	writeJSON(w, status, body)
}

// statusFor maps error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, message.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, history.ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, message.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, message.ErrUnsupportedEnvironment):
		return http.StatusServiceUnavailable
	case errors.Is(err, message.ErrTranscription):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
