package voice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/nadzzz/kindvoice/internal/message"
)

// EventKind identifies a Speaker lifecycle event.
type EventKind string

const (
	EventStarted EventKind = "started"
	EventEnded   EventKind = "ended"
)

// Event is emitted for each utterance that starts or runs to completion.
// Interrupted and failed utterances emit no EventEnded.
type Event struct {
	Kind  EventKind
	ID    uint64
	Text  string
	Voice string
}

// Utterance is one in-flight synthesis.
type Utterance struct {
	id     uint64
	text   string
	cancel context.CancelFunc
	done   chan struct{}

	// Set by the Speaker under its lock.
	interrupted bool

	// Written once before done is closed.
	audio *message.Audio
	err   error
}

// ID returns the utterance sequence number.
func (u *Utterance) ID() uint64 { return u.id }

// Text returns the text being spoken.
func (u *Utterance) Text() string { return u.text }

// Done is closed when the utterance has finished, failed or been interrupted.
func (u *Utterance) Done() <-chan struct{} { return u.done }

// Wait blocks until the utterance completes or ctx is done. An interrupted
// utterance returns message.ErrInterrupted. Whitespace-only text completes
// with no audio and no error.
func (u *Utterance) Wait(ctx context.Context) (*message.Audio, error) {
	select {
	case <-u.done:
		return u.audio, u.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func finished(id uint64, text string, audio *message.Audio, err error) *Utterance {
	u := &Utterance{id: id, text: text, cancel: func() {}, done: make(chan struct{}), audio: audio, err: err}
	close(u.done)
	return u
}

// SpeakerOption configures a Speaker.
type SpeakerOption func(*Speaker)

// WithProsody overrides DefaultProsody.
func WithProsody(p Prosody) SpeakerOption {
	return func(s *Speaker) { s.prosody = p }
}

// WithPreferred adds voice names checked before PreferredVoices.
func WithPreferred(names ...string) SpeakerOption {
	return func(s *Speaker) {
		s.preferred = append(append([]string(nil), names...), s.preferred...)
	}
}

// WithVoice pins the voice name and skips selection.
func WithVoice(name string) SpeakerOption {
	return func(s *Speaker) {
		if name != "" {
			s.voice = &Voice{Name: name}
		}
	}
}

// WithObserver registers fn to receive lifecycle events. fn is called
// without the Speaker's lock held.
func WithObserver(fn func(Event)) SpeakerOption {
	return func(s *Speaker) { s.observers = append(s.observers, fn) }
}

// Speaker serializes utterances over one Engine.
type Speaker struct {
	engine    Engine
	prosody   Prosody
	preferred []string
	observers []func(Event)
	log       *slog.Logger

	mu     sync.Mutex
	voice  *Voice
	active *Utterance
	seq    uint64
}

// NewSpeaker creates a Speaker. A nil engine yields a Speaker that reports
// message.ErrSynthesisUnavailable for every utterance.
func NewSpeaker(engine Engine, opts ...SpeakerOption) *Speaker {
	s := &Speaker{
		engine:    engine,
		prosody:   DefaultProsody,
		preferred: append([]string(nil), PreferredVoices...),
		log:       slog.With("component", "voice"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Available reports whether an engine is present.
func (s *Speaker) Available() bool { return s.engine != nil }

// Engine returns the engine name, or "none".
func (s *Speaker) Engine() string {
	if s.engine == nil {
		return "none"
	}
	return s.engine.Name()
}

// Speak starts speaking text and returns immediately. Any utterance still in
// flight is interrupted first.
func (s *Speaker) Speak(ctx context.Context, text string) *Utterance {
	if s.engine == nil {
		return finished(0, text, nil, fmt.Errorf("%w: no local engine", message.ErrSynthesisUnavailable))
	}
	if strings.TrimSpace(text) == "" {
		return finished(0, text, nil, nil)
	}

	uctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.active != nil {
		s.active.interrupted = true
		s.active.cancel()
	}
	s.seq++
	u := &Utterance{id: s.seq, text: text, cancel: cancel, done: make(chan struct{})}
	s.active = u
	s.mu.Unlock()

	go s.run(uctx, u)
	return u
}

// Stop interrupts the active utterance, if any.
func (s *Speaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		s.active.interrupted = true
		s.active.cancel()
		s.active = nil
	}
}

func (s *Speaker) run(ctx context.Context, u *Utterance) {
	defer u.cancel()

	v := s.selectVoice(ctx)
	s.emit(Event{Kind: EventStarted, ID: u.id, Text: u.text, Voice: v.Name})

	audio, err := s.engine.Synthesize(ctx, u.text, v, s.prosody)
	if err == nil && audio.Empty() {
		err = fmt.Errorf("%w: %s returned no audio", message.ErrSynthesis, s.engine.Name())
	}
	if audio != nil {
		audio.Source = message.AudioSourceLocal
		if audio.Voice == "" {
			audio.Voice = v.Name
		}
	}

	s.mu.Lock()
	interrupted := u.interrupted
	if s.active == u {
		s.active = nil
	}
	s.mu.Unlock()

	switch {
	case interrupted:
		u.err = message.ErrInterrupted
		s.log.Debug("utterance interrupted", "id", u.id)
	case err != nil:
		u.err = err
		s.log.Warn("local synthesis failed", "id", u.id, "engine", s.engine.Name(), "error", err)
	default:
		u.audio = audio
		s.emit(Event{Kind: EventEnded, ID: u.id, Text: u.text, Voice: audio.Voice})
	}
	close(u.done)
}

// selectVoice resolves the voice once and caches it. Lookup failures fall
// back to the engine default without caching.
func (s *Speaker) selectVoice(ctx context.Context) Voice {
	s.mu.Lock()
	if s.voice != nil {
		v := *s.voice
		s.mu.Unlock()
		return v
	}
	s.mu.Unlock()

	voices, err := s.engine.Voices(ctx)
	if err != nil {
		s.log.Warn("listing voices failed, using engine default", "engine", s.engine.Name(), "error", err)
		return Voice{}
	}
	v, ok := SelectVoice(voices, s.preferred)
	if !ok {
		return Voice{}
	}

	s.mu.Lock()
	s.voice = &v
	s.mu.Unlock()
	s.log.Info("selected local voice", "engine", s.engine.Name(), "voice", v.Name)
	return v
}

func (s *Speaker) emit(e Event) {
	for _, fn := range s.observers {
		fn(e)
	}
}
