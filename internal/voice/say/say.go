// Package say implements a voice Engine using the host 'say' command
// (macOS, or any compatible binary on the PATH).
package say

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nadzzz/kindvoice/internal/config"
	"github.com/nadzzz/kindvoice/internal/message"
	"github.com/nadzzz/kindvoice/internal/voice"
)

// normalRate is the speaking rate of 'say' in words per minute.
const normalRate = 175

const defaultTimeout = 30 * time.Second

// voiceLine matches one line of `say -v ?`, e.g.
//
//	Samantha            en_US    # Hello! My name is Samantha.
var voiceLine = regexp.MustCompile(`^(.+?)\s+([a-z]{2,3}[_-][A-Za-z0-9]+)\s+#`)

// runFunc runs a command and returns its stdout.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return out, fmt.Errorf("%s failed: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Engine implements voice.Engine with the 'say' command.
type Engine struct {
	binary  string
	timeout time.Duration
	run     runFunc
	log     *slog.Logger
}

var _ voice.Engine = (*Engine)(nil)

// New creates an Engine from config. Each command is killed after timeout.
func New(cfg config.SayConfig, timeout time.Duration) *Engine {
	bin := cfg.Binary
	if bin == "" {
		bin = "say"
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Engine{
		binary:  bin,
		timeout: timeout,
		run:     run,
		log:     slog.With("component", "voice", "engine", "say"),
	}
}

// Available reports whether the binary is on the PATH.
func (e *Engine) Available() bool {
	_, err := exec.LookPath(e.binary)
	return err == nil
}

// Name returns the engine identifier.
func (e *Engine) Name() string { return "say" }

// Voices lists installed system voices.
func (e *Engine) Voices(ctx context.Context) ([]voice.Voice, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	out, err := e.run(ctx, e.binary, "-v", "?")
	if err != nil {
		return nil, fmt.Errorf("listing voices: %w", err)
	}
	return parseVoices(out), nil
}

func parseVoices(out []byte) []voice.Voice {
	var voices []voice.Voice
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		m := voiceLine.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		voices = append(voices, voice.Voice{Name: strings.TrimSpace(m[1]), Language: m[2]})
	}
	return voices
}

// Synthesize renders text to a temporary WAV file and returns its bytes.
// Rate maps to words per minute; volume is set with an embedded command.
func (e *Engine) Synthesize(ctx context.Context, text string, v voice.Voice, p voice.Prosody) (*message.Audio, error) {
	tmp, err := os.CreateTemp("", "kindvoice-say-*.wav")
	if err != nil {
		return nil, fmt.Errorf("%w: create temp file: %w", message.ErrSynthesis, err)
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	args := []string{"-o", path, "--file-format=WAVE", "--data-format=LEI16@22050"}
	if v.Name != "" {
		args = append(args, "-v", v.Name)
	}
	if p.Rate > 0 {
		args = append(args, "-r", strconv.Itoa(int(normalRate*p.Rate)))
	}
	if p.Volume > 0 && p.Volume < 1 {
		text = fmt.Sprintf("[[volm %.2f]] %s", p.Volume, text)
	}
	args = append(args, "--", text)

	e.log.Debug("say synthesize", "voice", v.Name, "text_length", len(text))

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	if _, err := e.run(runCtx, e.binary, args...); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if runCtx.Err() != nil {
			return nil, fmt.Errorf("%w: say timed out after %s", message.ErrSynthesis, e.timeout)
		}
		return nil, fmt.Errorf("%w: %w", message.ErrSynthesis, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read audio file: %w", message.ErrSynthesis, err)
	}
	return &message.Audio{Data: data, ContentType: "audio/wav", Voice: v.Name}, nil
}
