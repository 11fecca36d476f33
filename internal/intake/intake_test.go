package intake

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/kindvoice/internal/config"
	"github.com/nadzzz/kindvoice/internal/message"
	"github.com/nadzzz/kindvoice/internal/remote"
	"github.com/nadzzz/kindvoice/internal/tone"
)

// TestHelperProcess stands in for the recorder binary.
func TestHelperProcess(t *testing.T) {
	mode := os.Getenv("KINDVOICE_HELPER_MODE")
	if mode == "" {
		return
	}
	switch mode {
	case "ok":
		fmt.Fprint(os.Stdout, "RIFF"+strings.Repeat("\x00", 60))
	case "denied":
		fmt.Fprint(os.Stderr, "arecord: main:830: audio open error: Permission denied")
		os.Exit(1)
	case "nodevice":
		fmt.Fprint(os.Stderr, "arecord: main:830: audio open error: No such file or directory")
		os.Exit(1)
	}
	os.Exit(0)
}

func helperRecorder(t *testing.T, mode string) *CommandRecorder {
	t.Helper()
	r := NewRecorder(config.InputConfig{})
	r.lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }
	r.command = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "KINDVOICE_HELPER_MODE="+mode)
		return cmd
	}
	return r
}

func TestRecord(t *testing.T) {
	clip, err := helperRecorder(t, "ok").Record(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "audio/wav", clip.ContentType)
	assert.Len(t, clip.Data, 64)
}

func TestRecordPermissionDenied(t *testing.T) {
	_, err := helperRecorder(t, "denied").Record(context.Background())
	assert.ErrorIs(t, err, message.ErrPermissionDenied)

	adv, ok := message.AdvisoryFor(err)
	require.True(t, ok)
	assert.Equal(t, message.AdvisoryPermissionDenied, adv.Code)
}

func TestRecordNoDevice(t *testing.T) {
	_, err := helperRecorder(t, "nodevice").Record(context.Background())
	assert.ErrorIs(t, err, message.ErrUnsupportedEnvironment)
}

func TestRecordNoBinary(t *testing.T) {
	r := NewRecorder(config.InputConfig{})
	r.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	assert.False(t, r.Available())

	_, err := r.Record(context.Background())
	assert.ErrorIs(t, err, message.ErrUnsupportedEnvironment)
}

func TestRecorderArgs(t *testing.T) {
	r := NewRecorder(config.InputConfig{})
	assert.Contains(t, strings.Join(r.args("arecord"), " "), "-d 15 -")
	assert.Contains(t, strings.Join(r.args("/usr/local/bin/rec"), " "), "trim 0 15")
}

type stubRemote struct {
	remote.Unconfigured
	text string
	err  error
}

func (s stubRemote) Available() bool { return true }

func (s stubRemote) Transcribe(context.Context, *message.Audio) (string, error) {
	return s.text, s.err
}

func (s stubRemote) GenerateText(context.Context, string, tone.Tone) (string, error) {
	return "", errors.New("unused")
}

type clipRecorder struct {
	clip *message.Audio
	err  error
}

func (c clipRecorder) Record(context.Context) (*message.Audio, error) { return c.clip, c.err }

func TestTranscribe(t *testing.T) {
	svc := New(stubRemote{text: "I feel tired"}, 0)
	text, err := svc.Transcribe(context.Background(), &message.Audio{Data: []byte("clip")})
	require.NoError(t, err)
	assert.Equal(t, "I feel tired", text)
}

func TestTranscribeUnconfigured(t *testing.T) {
	svc := New(nil, 0)
	assert.False(t, svc.Available())
	_, err := svc.Transcribe(context.Background(), &message.Audio{Data: []byte("clip")})
	assert.ErrorIs(t, err, message.ErrUnsupportedEnvironment)
	assert.ErrorIs(t, err, message.ErrUnconfigured)
}

func TestTranscribeLimits(t *testing.T) {
	svc := New(stubRemote{text: "x"}, 4)
	_, err := svc.Transcribe(context.Background(), &message.Audio{})
	assert.ErrorIs(t, err, message.ErrTranscription)

	_, err = svc.Transcribe(context.Background(), &message.Audio{Data: []byte("too long")})
	assert.ErrorIs(t, err, message.ErrTranscription)
}

func TestListen(t *testing.T) {
	svc := New(stubRemote{text: "hello"}, 0)
	text, err := svc.Listen(context.Background(), clipRecorder{clip: &message.Audio{Data: []byte("clip")}})
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	_, err = svc.Listen(context.Background(), clipRecorder{err: fmt.Errorf("%w: mic", message.ErrPermissionDenied)})
	assert.ErrorIs(t, err, message.ErrPermissionDenied)
}
