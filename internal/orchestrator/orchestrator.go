// Package orchestrator turns a user message and a tone into a supportive
// response, degrading through the available backends.
//
// Text comes from the remote backend, then the catalog. Audio comes from
// remote speech, then the local voice, and is otherwise skipped with an
// advisory. Generate never fails once the request is valid: any unexpected
// failure yields the catalog's default entry as text only.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nadzzz/kindvoice/internal/catalog"
	"github.com/nadzzz/kindvoice/internal/fallback"
	"github.com/nadzzz/kindvoice/internal/message"
	"github.com/nadzzz/kindvoice/internal/remote"
	"github.com/nadzzz/kindvoice/internal/tone"
	"github.com/nadzzz/kindvoice/internal/voice"
)

// Step names used in logs and reports.
const (
	stepRemote  = "remote"
	stepCatalog = "catalog"
	stepLocal   = "local"
)

// LocalVoice is the on-device speech fallback.
type LocalVoice interface {
	Available() bool
	Speak(ctx context.Context, text string) *voice.Utterance
}

// Reporter receives failures that were absorbed by a fallback.
type Reporter interface {
	Report(ctx context.Context, err error, tags map[string]string)
}

type memoKey struct {
	msg      string
	tone     tone.Tone
	textOnly bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCatalog replaces the default catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(o *Orchestrator) { o.catalog = c }
}

// WithReporter sets where absorbed failures are reported.
func WithReporter(r Reporter) Option {
	return func(o *Orchestrator) { o.reporter = r }
}

// WithMemoSize bounds the number of memoized results. Zero disables
// memoization.
func WithMemoSize(n int) Option {
	return func(o *Orchestrator) { o.memoSize = n }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator produces GenerationResults.
type Orchestrator struct {
	remote   remote.Client
	local    LocalVoice
	catalog  *catalog.Catalog
	reporter Reporter
	memoSize int
	memo     *lru.Cache[memoKey, *message.GenerationResult]
	now      func() time.Time
	log      *slog.Logger
}

// New creates an Orchestrator. rc and local may be nil, meaning the backend
// is absent.
func New(rc remote.Client, local LocalVoice, opts ...Option) (*Orchestrator, error) {
	if rc == nil {
		rc = remote.Unconfigured{}
	}
	o := &Orchestrator{
		remote:   rc,
		local:    local,
		memoSize: 128,
		now:      time.Now,
		log:      slog.With("component", "orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.catalog == nil {
		o.catalog = catalog.New()
	}
	if o.memoSize > 0 {
		memo, err := lru.New[memoKey, *message.GenerationResult](o.memoSize)
		if err != nil {
			return nil, fmt.Errorf("creating memo: %w", err)
		}
		o.memo = memo
	}

	o.log.Info("orchestrator ready",
		"remote", rc.Name(),
		"remote_available", rc.Available(),
		"local_available", o.localAvailable(),
		"memo_size", o.memoSize,
	)
	return o, nil
}

// RemoteAvailable reports whether hosted generation is configured.
func (o *Orchestrator) RemoteAvailable() bool { return o.remote.Available() }

// LocalAvailable reports whether an on-device voice is present.
func (o *Orchestrator) LocalAvailable() bool { return o.localAvailable() }

func (o *Orchestrator) localAvailable() bool {
	return o.local != nil && o.local.Available()
}

// Generate returns a response for req, reusing a memoized result for an
// identical request. Only an invalid request returns an error.
func (o *Orchestrator) Generate(ctx context.Context, req message.GenerationRequest) (*message.GenerationResult, error) {
	req, err := o.normalize(req)
	if err != nil {
		return nil, err
	}
	key := memoKey{msg: req.UserMessage, tone: req.Tone, textOnly: req.TextOnly}
	if o.memo != nil {
		if res, ok := o.memo.Get(key); ok {
			o.log.Debug("memoized result", "tone", req.Tone)
			return clone(res), nil
		}
	}
	return o.generate(ctx, key, req), nil
}

// Regenerate discards any memoized result for req and produces a new one.
// The new text may equal the previous one.
func (o *Orchestrator) Regenerate(ctx context.Context, req message.GenerationRequest) (*message.GenerationResult, error) {
	req, err := o.normalize(req)
	if err != nil {
		return nil, err
	}
	key := memoKey{msg: req.UserMessage, tone: req.Tone, textOnly: req.TextOnly}
	if o.memo != nil {
		o.memo.Remove(key)
	}
	return o.generate(ctx, key, req), nil
}

func (o *Orchestrator) normalize(req message.GenerationRequest) (message.GenerationRequest, error) {
	if err := req.Validate(); err != nil {
		return req, err
	}
	if !req.Tone.Valid() {
		o.log.Warn("unknown tone, using default", "tone", uint8(req.Tone), "default", tone.Default)
		req.Tone = tone.Default
	}
	return req, nil
}

func (o *Orchestrator) generate(ctx context.Context, key memoKey, req message.GenerationRequest) *message.GenerationResult {
	res, st := o.run(ctx, req)
	if o.memo != nil && memoizable(res, st) {
		o.memo.Add(key, clone(res))
	}
	return res
}

// memoizable reports whether res is a complete answer. Fallback text and
// skipped audio may be transient, so they are recomputed next time.
func memoizable(res *message.GenerationResult, last State) bool {
	return last != Failed && res.TextSource == message.TextSourceRemote && res.Advisory == nil
}

// run drives one request through the state machine. It returns the final
// result and the last state before Done.
func (o *Orchestrator) run(ctx context.Context, req message.GenerationRequest) (res *message.GenerationResult, last State) {
	// Callers cannot cancel an in-flight generation.
	ctx = context.WithoutCancel(ctx)
	log := o.log.With("tone", req.Tone)

	state := Start
	to := func(next State) {
		log.Debug("state transition", "from", state, "to", next)
		if next != Done {
			last = next
		}
		state = next
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic during generation in state %s: %v", state, r)
			log.Error("generation failed, using default response", "error", err)
			o.report(ctx, err, "orchestrator", state.String())
			to(Failed)
			res = &message.GenerationResult{
				Text:       catalog.DefaultEntry,
				Tone:       req.Tone,
				TextSource: message.TextSourceDefault,
				CreatedAt:  o.now(),
			}
			to(Done)
		}
	}()

	res = &message.GenerationResult{Tone: req.Tone, CreatedAt: o.now()}
	res.Text, res.TextSource = o.text(ctx, log, req)
	to(TextReady)

	if req.TextOnly {
		to(Done)
		return res, last
	}

	audio, source, ok := o.audio(ctx, log, res.Text)
	if ok {
		res.Audio = audio
		res.AudioSource = source
		to(AudioReady)
	} else {
		adv := message.AudioSkipped
		res.Advisory = &adv
		to(AudioSkipped)
	}
	to(Done)
	return res, last
}

func (o *Orchestrator) text(ctx context.Context, log *slog.Logger, req message.GenerationRequest) (string, message.TextSource) {
	var steps []fallback.Step[string]
	if o.remote.Available() {
		steps = append(steps, fallback.Step[string]{
			Name: stepRemote,
			Try: func(ctx context.Context) (string, error) {
				return o.remote.GenerateText(ctx, req.UserMessage, req.Tone)
			},
		})
	}
	steps = append(steps, fallback.Step[string]{
		Name: stepCatalog,
		Try: func(context.Context) (string, error) {
			return o.catalog.Pick(req.Tone), nil
		},
	})

	nonBlank := func(s string) bool { return strings.TrimSpace(s) != "" }
	for i := range steps {
		steps[i] = fallback.Validate(steps[i], nonBlank, message.ErrGeneration)
	}

	out, err := fallback.First(ctx, steps...)
	for _, f := range out.Failures {
		log.Warn("text generation failed, falling back", "step", f.Step, "error", f.Err)
		o.report(ctx, f.Err, "text", f.Step)
	}
	if err != nil {
		log.Error("no text produced, using default response", "error", err)
		return catalog.DefaultEntry, message.TextSourceDefault
	}

	if out.Step == stepRemote {
		return out.Value, message.TextSourceRemote
	}
	return out.Value, message.TextSourceCatalog
}

func (o *Orchestrator) audio(ctx context.Context, log *slog.Logger, text string) (*message.Audio, message.AudioSource, bool) {
	var steps []fallback.Step[*message.Audio]
	if o.remote.Available() {
		steps = append(steps, fallback.Step[*message.Audio]{
			Name: stepRemote,
			Try: func(ctx context.Context) (*message.Audio, error) {
				return o.remote.SynthesizeSpeech(ctx, text)
			},
		})
	}
	if o.localAvailable() {
		steps = append(steps, fallback.Step[*message.Audio]{
			Name: stepLocal,
			Try: func(ctx context.Context) (*message.Audio, error) {
				return o.local.Speak(ctx, text).Wait(ctx)
			},
		})
	}

	notEmpty := func(a *message.Audio) bool { return !a.Empty() }
	for i := range steps {
		steps[i] = fallback.Validate(steps[i], notEmpty, message.ErrSynthesis)
	}

	out, err := fallback.First(ctx, steps...)
	for _, f := range out.Failures {
		log.Warn("speech synthesis failed, falling back", "step", f.Step, "error", f.Err)
		o.report(ctx, f.Err, "audio", f.Step)
	}
	if err != nil {
		if len(steps) == 0 {
			log.Debug("no speech backend available, skipping audio")
		}
		return nil, message.AudioSourceNone, false
	}

	source := message.AudioSourceLocal
	if out.Step == stepRemote {
		source = message.AudioSourceRemote
	}
	out.Value.Source = source
	return out.Value, source, true
}

func (o *Orchestrator) report(ctx context.Context, err error, stage, step string) {
	if o.reporter == nil || errors.Is(err, message.ErrInterrupted) {
		return
	}
	o.reporter.Report(ctx, err, map[string]string{"stage": stage, "step": step})
}

func clone(r *message.GenerationResult) *message.GenerationResult {
	c := *r
	if r.Audio != nil {
		a := *r.Audio
		c.Audio = &a
	}
	if r.Advisory != nil {
		adv := *r.Advisory
		c.Advisory = &adv
	}
	return &c
}
