package intake

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/nadzzz/kindvoice/internal/config"
	"github.com/nadzzz/kindvoice/internal/message"
)

// Recorder captures one clip from a microphone.
type Recorder interface {
	// Record captures audio until ctx is done or the maximum duration
	// elapses. Audio captured before ctx is cancelled is returned.
	Record(ctx context.Context) (*message.Audio, error)
}

// knownRecorders are tried in order when none is configured.
var knownRecorders = []string{"arecord", "rec"}

// wavHeaderSize is the length of a canonical WAV header.
const wavHeaderSize = 44

// CommandRecorder records through a host command that writes WAV to stdout.
type CommandRecorder struct {
	binary     string
	maxSeconds int
	sampleRate int

	lookPath func(string) (string, error)
	command  func(ctx context.Context, name string, args ...string) *exec.Cmd
	log      *slog.Logger
}

var _ Recorder = (*CommandRecorder)(nil)

// NewRecorder creates a CommandRecorder from config.
func NewRecorder(cfg config.InputConfig) *CommandRecorder {
	secs := int(cfg.MaxSeconds / time.Second)
	if secs <= 0 {
		secs = 15
	}
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	return &CommandRecorder{
		binary:     cfg.Recorder,
		maxSeconds: secs,
		sampleRate: rate,
		lookPath:   exec.LookPath,
		command:    exec.CommandContext,
		log:        slog.With("component", "intake"),
	}
}

// Available reports whether a recorder binary can be found.
func (r *CommandRecorder) Available() bool {
	_, _, err := r.resolve()
	return err == nil
}

func (r *CommandRecorder) resolve() (name, path string, err error) {
	candidates := knownRecorders
	if r.binary != "" {
		candidates = []string{r.binary}
	}
	for _, c := range candidates {
		if p, err := r.lookPath(c); err == nil {
			return c, p, nil
		}
	}
	return "", "", fmt.Errorf("%w: no recorder found (tried %s)", message.ErrUnsupportedEnvironment, strings.Join(candidates, ", "))
}

func (r *CommandRecorder) args(name string) []string {
	secs := strconv.Itoa(r.maxSeconds)
	rate := strconv.Itoa(r.sampleRate)
	switch {
	case strings.HasSuffix(name, "rec"):
		// sox: rec -q -t wav -r 16000 -c 1 -b 16 - trim 0 15
		return []string{"-q", "-t", "wav", "-r", rate, "-c", "1", "-b", "16", "-", "trim", "0", secs}
	default:
		return []string{"-q", "-f", "S16_LE", "-r", rate, "-c", "1", "-t", "wav", "-d", secs, "-"}
	}
}

// Record runs the recorder. Cancelling ctx stops the recording with an
// interrupt so the captured audio is kept.
func (r *CommandRecorder) Record(ctx context.Context) (*message.Audio, error) {
	name, path, err := r.resolve()
	if err != nil {
		return nil, err
	}

	cmd := r.command(ctx, path, r.args(name)...)
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.log.Debug("recording", "recorder", name, "max_seconds", r.maxSeconds)
	runErr := cmd.Run()

	if runErr != nil && ctx.Err() == nil {
		return nil, classify(runErr, stderr.String())
	}
	if stdout.Len() <= wavHeaderSize {
		if msg := stderr.String(); msg != "" {
			return nil, classify(errors.New("no audio captured"), msg)
		}
		return nil, fmt.Errorf("%w: no audio captured", message.ErrTranscription)
	}

	r.log.Debug("recording complete", "bytes", stdout.Len())
	return &message.Audio{Data: stdout.Bytes(), ContentType: "audio/wav"}, nil
}

// classify maps recorder stderr to the voice input error kinds.
func classify(err error, stderr string) error {
	msg := strings.ToLower(stderr)
	switch {
	case strings.Contains(msg, "permission denied"), strings.Contains(msg, "not permitted"):
		return fmt.Errorf("%w: %s", message.ErrPermissionDenied, strings.TrimSpace(stderr))
	case strings.Contains(msg, "no such file"), strings.Contains(msg, "no such device"),
		strings.Contains(msg, "no default audio device"), strings.Contains(msg, "can't open input"):
		return fmt.Errorf("%w: %s", message.ErrUnsupportedEnvironment, strings.TrimSpace(stderr))
	}
	return fmt.Errorf("recording failed: %w: %s", err, strings.TrimSpace(stderr))
}
