package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nadzzz/kindvoice/internal/message"
	"github.com/nadzzz/kindvoice/internal/tone"
	"github.com/nadzzz/kindvoice/internal/transport"
)

const (
	voicePongWait   = 60 * time.Second
	voicePingPeriod = voicePongWait * 9 / 10
	voiceWriteWait  = 10 * time.Second

	defaultClipType = "audio/webm"
)

// Inbound voice session message types. Binary frames carry a recorded clip.
const (
	voiceConfig     = "config"
	voiceText       = "text"
	voiceRegenerate = "regenerate"
)

// Outbound voice session message types.
const (
	voiceReady      = "ready"
	voiceTranscript = "transcript"
	voiceResponse   = "response"
	voiceAdvisory   = "advisory"
	voiceError      = "error"
)

// VoiceInbound is a JSON text frame sent by the client.
type VoiceInbound struct {
	Type        string `json:"type"`
	Tone        string `json:"tone,omitempty"`
	Audio       *bool  `json:"audio,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Text        string `json:"text,omitempty"`
}

// VoiceOutbound is a JSON text frame sent to the client.
type VoiceOutbound struct {
	Type       string                    `json:"type"`
	Tone       string                    `json:"tone,omitempty"`
	VoiceInput *bool                     `json:"voiceInput,omitempty"`
	Text       string                    `json:"text,omitempty"`
	Result     *message.GenerationResult `json:"result,omitempty"`
	Advisory   *message.Advisory         `json:"advisory,omitempty"`
	Error      string                    `json:"error,omitempty"`
}

// voiceSession is the per-connection conversation state.
type voiceSession struct {
	h           *handlers
	conn        *websocket.Conn
	log         *slog.Logger
	tone        string
	audio       *bool
	contentType string
	last        string
}

// voice handles GET /v1/voice.
//
// @Summary     Spoken conversation session
// @Description Upgrades to a WebSocket. Binary frames are recorded clips, which are transcribed and
// @Description answered. JSON frames: {"type":"config","tone","audio","contentType"},
// @Description {"type":"text","text"} and {"type":"regenerate"}. The server replies with "ready",
// @Description "transcript", "response", "advisory" and "error" frames.
// @Tags        voice
// @Param       tone  query  string  false  "Initial tone identifier"
// @Success     101
// @Router      /v1/voice [get]
func (h *handlers) voice(w http.ResponseWriter, r *http.Request) {
	conn, err := h.t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.t.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(h.t.sessions, cancel)
	defer stop()

	s := &voiceSession{
		h:           h,
		conn:        conn,
		log:         h.t.log.With("session", r.RemoteAddr),
		tone:        r.URL.Query().Get("tone"),
		contentType: defaultClipType,
	}
	s.log.Debug("voice session opened")
	s.run(ctx)
	s.log.Debug("voice session closed")
}

func (s *voiceSession) run(ctx context.Context) {
	s.conn.SetReadLimit(s.h.t.cfg.MaxUploadBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(voicePongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(voicePongWait))
	})

	// Unblock the read loop on shutdown.
	go func() {
		<-ctx.Done()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(voiceWriteWait))
		_ = s.conn.SetReadDeadline(time.Now())
	}()
	go s.ping(ctx)

	s.sendReady()

	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && ctx.Err() == nil {
				s.log.Warn("voice session read failed", "error", err)
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(voicePongWait))

		switch kind {
		case websocket.BinaryMessage:
			s.handleClip(ctx, data)
		case websocket.TextMessage:
			var in VoiceInbound
			if err := json.Unmarshal(data, &in); err != nil {
				s.send(VoiceOutbound{Type: voiceError, Error: "invalid json: " + err.Error()})
				continue
			}
			s.handle(ctx, &in)
		}
	}
}

func (s *voiceSession) ping(ctx context.Context) {
	ticker := time.NewTicker(voicePingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(voiceWriteWait)); err != nil {
				return
			}
		}
	}
}

func (s *voiceSession) handle(ctx context.Context, in *VoiceInbound) {
	switch in.Type {
	case voiceConfig:
		if in.Tone != "" {
			s.tone = in.Tone
		}
		if in.Audio != nil {
			s.audio = in.Audio
		}
		if in.ContentType != "" {
			s.contentType = in.ContentType
		}
		s.sendReady()
	case voiceText:
		s.respond(ctx, in.Text, s.h.responder.Generate)
	case voiceRegenerate:
		if s.last == "" {
			s.send(VoiceOutbound{Type: voiceError, Error: "nothing to regenerate yet"})
			return
		}
		s.respond(ctx, s.last, s.h.responder.Regenerate)
	default:
		s.send(VoiceOutbound{Type: voiceError, Error: "unknown message type " + in.Type})
	}
}

func (s *voiceSession) handleClip(ctx context.Context, data []byte) {
	text, err := s.h.t.intake.Transcribe(ctx, &message.Audio{Data: data, ContentType: s.contentType})
	if err != nil {
		if adv, ok := message.AdvisoryFor(err); ok {
			s.send(VoiceOutbound{Type: voiceAdvisory, Advisory: &adv})
			return
		}
		s.send(VoiceOutbound{Type: voiceError, Error: err.Error()})
		return
	}
	s.send(VoiceOutbound{Type: voiceTranscript, Text: text})
	s.respond(ctx, text, s.h.responder.Generate)
}

func (s *voiceSession) respond(ctx context.Context, text string, gen func(context.Context, message.GenerationRequest) (*message.GenerationResult, error)) {
	req := transport.NewRequest(text, s.tone, s.audio, s.h.t.audio)
	res, err := gen(ctx, req)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, message.ErrInvalidRequest) && strings.TrimSpace(text) == "" {
			msg = "please share something first"
		}
		s.send(VoiceOutbound{Type: voiceError, Error: msg})
		return
	}
	s.last = req.UserMessage
	s.send(VoiceOutbound{Type: voiceResponse, Result: res})
}

func (s *voiceSession) sendReady() {
	available := s.h.t.intake.Available()
	s.send(VoiceOutbound{
		Type:       voiceReady,
		Tone:       tone.Lookup(s.tone).String(),
		VoiceInput: &available,
	})
}

func (s *voiceSession) send(out VoiceOutbound) {
	_ = s.conn.SetWriteDeadline(time.Now().Add(voiceWriteWait))
	if err := s.conn.WriteJSON(out); err != nil {
		s.log.Debug("voice session write failed", "type", out.Type, "error", err)
	}
}
