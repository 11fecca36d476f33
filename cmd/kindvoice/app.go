package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nadzzz/kindvoice/internal/config"
	"github.com/nadzzz/kindvoice/internal/history"
	"github.com/nadzzz/kindvoice/internal/intake"
	"github.com/nadzzz/kindvoice/internal/message"
	"github.com/nadzzz/kindvoice/internal/orchestrator"
	"github.com/nadzzz/kindvoice/internal/remote"
	openairemote "github.com/nadzzz/kindvoice/internal/remote/openai"
	"github.com/nadzzz/kindvoice/internal/telemetry"
	"github.com/nadzzz/kindvoice/internal/voice"
	"github.com/nadzzz/kindvoice/internal/voice/piper"
	"github.com/nadzzz/kindvoice/internal/voice/say"
)

// app holds the components shared by the commands.
type app struct {
	cfg          *config.Config
	reporter     *telemetry.Reporter
	remote       remote.Client
	speaker      *voice.Speaker
	orchestrator *orchestrator.Orchestrator
	intake       *intake.Service
	store        *history.Store
}

func newApp(cfg *config.Config) (*app, error) {
	reporter, err := telemetry.Init(cfg.Telemetry, version)
	if err != nil {
		// Error reporting is optional.
		slog.Warn("error reporting disabled", "error", err)
	}

	rc := newRemote(cfg.Remote)
	speaker := newSpeaker(cfg.Voice)

	orch, err := orchestrator.New(rc, speaker,
		orchestrator.WithReporter(reporter),
		orchestrator.WithMemoSize(cfg.Orchestrator.MemoSize),
	)
	if err != nil {
		return nil, err
	}

	store, err := history.Open(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}

	return &app{
		cfg:          cfg,
		reporter:     reporter,
		remote:       rc,
		speaker:      speaker,
		orchestrator: orch,
		intake:       intake.New(rc, int(cfg.Transports.HTTP.MaxUploadBytes)),
		store:        store,
	}, nil
}

func (a *app) Close() {
	a.speaker.Stop()
	if err := a.store.Close(); err != nil {
		slog.Error("closing history", "error", err)
	}
	a.reporter.Flush()
}

// newRemote picks the hosted backend. A missing or placeholder key yields
// the unconfigured client for the life of the process.
func newRemote(cfg config.RemoteConfig) remote.Client {
	if !cfg.Configured() {
		slog.Info("no API key configured, using pre-written responses and local voice")
		return remote.Unconfigured{}
	}
	slog.Info("using OpenAI backend",
		"chat_model", cfg.ChatModel,
		"speech_model", cfg.SpeechModel,
		"transcription_model", cfg.TranscriptionModel)
	return openairemote.New(cfg)
}

func newVoiceEngine(cfg config.VoiceConfig) voice.Engine {
	switch cfg.Engine {
	case "piper":
		slog.Info("using Piper local voice", "endpoint", cfg.Piper.Endpoint)
		return piper.New(cfg.Piper, cfg.Timeout)
	case "say":
		e := say.New(cfg.Say, cfg.Timeout)
		if !e.Available() {
			slog.Warn("say command not found, local voice disabled", "binary", cfg.Say.Binary)
			return nil
		}
		slog.Info("using say local voice", "binary", cfg.Say.Binary)
		return e
	}
	return nil
}

func newSpeaker(cfg config.VoiceConfig) *voice.Speaker {
	opts := []voice.SpeakerOption{
		voice.WithProsody(voice.Prosody{Rate: cfg.Rate, Pitch: cfg.Pitch, Volume: cfg.Volume}),
		voice.WithObserver(func(e voice.Event) {
			slog.Debug("utterance", "event", e.Kind, "id", e.ID, "voice", e.Voice)
		}),
	}
	if len(cfg.Preferred) > 0 {
		opts = append(opts, voice.WithPreferred(cfg.Preferred...))
	}
	if cfg.Piper.Voice != "" && cfg.Engine == "piper" {
		opts = append(opts, voice.WithVoice(cfg.Piper.Voice))
	}
	return voice.NewSpeaker(newVoiceEngine(cfg), opts...)
}

// saveConversation stores a completed exchange.
func (a *app) saveConversation(ctx context.Context, msg string, res *message.GenerationResult) (message.ConversationRecord, error) {
	return a.store.AppendConversation(ctx, message.ConversationRecord{
		UserMessage:  msg,
		Tone:         res.Tone,
		ResponseText: res.Text,
	})
}
