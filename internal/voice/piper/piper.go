// Package piper implements a voice Engine using a Piper Wyoming protocol server.
//
// Piper is a fast, local neural text-to-speech system. The linuxserver/piper
// container exposes the Wyoming protocol on TCP port 10200. This package
// implements a client for that protocol to list voices and synthesize speech.
//
// Wyoming protocol format (per event):
//
//	{"type": ..., "data_length": N, "payload_length": M}\n
//	<data_bytes>      (N bytes of JSON, if data_length > 0)
//	<payload_bytes>   (M bytes, if payload_length > 0)
package piper

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/nadzzz/kindvoice/internal/config"
	"github.com/nadzzz/kindvoice/internal/message"
	"github.com/nadzzz/kindvoice/internal/voice"
)

const defaultTimeout = 30 * time.Second

// Engine implements voice.Engine over the Wyoming protocol. Connections are
// per-request.
type Engine struct {
	endpoint string
	timeout  time.Duration
	log      *slog.Logger
}

var _ voice.Engine = (*Engine)(nil)

// New creates a new Piper engine from config.
func New(cfg config.PiperConfig, timeout time.Duration) *Engine {
	ep := strings.TrimPrefix(cfg.Endpoint, "tcp://")
	ep = strings.TrimPrefix(ep, "http://")
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Engine{
		endpoint: ep,
		timeout:  timeout,
		log:      slog.With("component", "voice", "engine", "piper"),
	}
}

// Name returns the engine identifier.
func (e *Engine) Name() string { return "piper" }

// Voices asks the server to describe itself and returns the voices of every
// TTS program it reports.
func (e *Engine) Voices(ctx context.Context) ([]voice.Voice, error) {
	conn, r, err := e.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := writeEvent(conn, "describe", nil, nil); err != nil {
		return nil, fmt.Errorf("sending describe event: %w", err)
	}

	for {
		evt, _, err := readEvent(r)
		if err != nil {
			return nil, fmt.Errorf("reading piper event: %w", err)
		}
		if evt.Type != "info" {
			e.log.Debug("piper unknown event", "type", evt.Type)
			continue
		}

		var info struct {
			TTS []struct {
				Voices []struct {
					Name      string   `json:"name"`
					Languages []string `json:"languages"`
				} `json:"voices"`
			} `json:"tts"`
		}
		if err := json.Unmarshal(evt.Data, &info); err != nil {
			return nil, fmt.Errorf("decoding info event: %w", err)
		}

		var voices []voice.Voice
		for _, prog := range info.TTS {
			for _, v := range prog.Voices {
				out := voice.Voice{Name: v.Name}
				if len(v.Languages) > 0 {
					out.Language = v.Languages[0]
				}
				voices = append(voices, out)
			}
		}
		return voices, nil
	}
}

// Synthesize sends text to the Piper server and returns synthesized audio as
// WAV. Piper has no rate or pitch controls over Wyoming; volume is applied
// to the PCM samples.
func (e *Engine) Synthesize(ctx context.Context, text string, v voice.Voice, p voice.Prosody) (*message.Audio, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty text for synthesis", message.ErrSynthesis)
	}

	e.log.Debug("piper synthesize", "text_length", len(text), "voice", v.Name, "endpoint", e.endpoint)

	conn, r, err := e.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	// Unblock reads when the utterance is interrupted.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	data := map[string]any{"text": text}
	if v.Name != "" {
		data["voice"] = map[string]any{"name": v.Name}
	}
	if err := writeEvent(conn, "synthesize", data, nil); err != nil {
		return nil, fmt.Errorf("%w: sending synthesize event: %w", message.ErrSynthesis, err)
	}

	// Read response events: audio-start → audio-chunk* → audio-stop
	var (
		pcmBuf bytes.Buffer
		format = audioFormat{Rate: 22050, Width: 2, Channels: 1}
	)

	for {
		evt, payload, err := readEvent(r)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: reading piper event: %w", message.ErrSynthesis, err)
		}

		switch evt.Type {
		case "audio-start":
			if len(evt.Data) > 0 {
				if err := json.Unmarshal(evt.Data, &format); err != nil {
					return nil, fmt.Errorf("%w: decoding audio-start: %w", message.ErrSynthesis, err)
				}
			}
			e.log.Debug("piper audio-start", "rate", format.Rate, "channels", format.Channels, "width", format.Width)

		case "audio-chunk":
			if len(payload) > 0 {
				pcmBuf.Write(payload)
			}

		case "audio-stop":
			e.log.Debug("piper audio-stop", "pcm_bytes", pcmBuf.Len())
			pcm := pcmBuf.Bytes()
			if format.Width == 2 {
				scaleVolume(pcm, p.Volume)
			}
			return &message.Audio{
				Data:        pcmToWAV(pcm, format.Rate, format.Channels, format.Width),
				ContentType: "audio/wav",
				Voice:       v.Name,
			}, nil

		case "error":
			var perr struct {
				Text string `json:"text"`
			}
			_ = json.Unmarshal(evt.Data, &perr)
			if perr.Text == "" {
				perr.Text = "unknown error"
			}
			return nil, fmt.Errorf("%w: piper error: %s", message.ErrSynthesis, perr.Text)

		default:
			e.log.Debug("piper unknown event", "type", evt.Type)
		}
	}
}

func (e *Engine) dial(ctx context.Context) (net.Conn, *bufio.Reader, error) {
	if e.endpoint == "" {
		return nil, nil, fmt.Errorf("%w: no piper endpoint configured", message.ErrSynthesisUnavailable)
	}

	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", e.endpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: connecting to piper: %w", message.ErrSynthesis, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(e.timeout))
	}
	return conn, bufio.NewReader(conn), nil
}

// --- Wyoming protocol helpers ---

const wyomingVersion = "1.5.0"

type wyomingHeader struct {
	Type          string          `json:"type"`
	Version       string          `json:"version,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
	DataLength    int             `json:"data_length,omitempty"`
	PayloadLength int             `json:"payload_length,omitempty"`
}

type wyomingEvent struct {
	Type string
	Data json.RawMessage
}

type audioFormat struct {
	Rate     int `json:"rate"`
	Width    int `json:"width"`
	Channels int `json:"channels"`
}

// writeEvent sends a Wyoming event. data, if non-nil, is sent as a separate
// JSON block after the header line.
func writeEvent(w io.Writer, typ string, data any, payload []byte) error {
	var dataBytes []byte
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshalling event data: %w", err)
		}
		dataBytes = raw
	}

	header, err := json.Marshal(wyomingHeader{
		Type:          typ,
		Version:       wyomingVersion,
		DataLength:    len(dataBytes),
		PayloadLength: len(payload),
	})
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(len(header) + 1 + len(dataBytes) + len(payload))
	buf.Write(header)
	buf.WriteByte('\n')
	buf.Write(dataBytes)
	buf.Write(payload)
	_, err = w.Write(buf.Bytes())
	return err
}

// readEvent reads one Wyoming event. Data sent as a separate block replaces
// any data inlined in the header.
func readEvent(r *bufio.Reader) (*wyomingEvent, []byte, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}

	var hdr wyomingHeader
	if err := json.Unmarshal(line, &hdr); err != nil {
		return nil, nil, fmt.Errorf("invalid wyoming header %q: %w", line, err)
	}
	if hdr.DataLength < 0 || hdr.PayloadLength < 0 {
		return nil, nil, fmt.Errorf("invalid wyoming lengths in %q", line)
	}

	evt := &wyomingEvent{Type: hdr.Type, Data: hdr.Data}
	if hdr.DataLength > 0 {
		data := make([]byte, hdr.DataLength)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, nil, fmt.Errorf("reading data: %w", err)
		}
		evt.Data = data
	}

	var payload []byte
	if hdr.PayloadLength > 0 {
		payload = make([]byte, hdr.PayloadLength)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, nil, fmt.Errorf("reading payload: %w", err)
		}
	}

	return evt, payload, nil
}

// scaleVolume multiplies 16-bit little-endian samples by gain in place.
func scaleVolume(pcm []byte, gain float64) {
	if gain <= 0 || gain >= 1 {
		return
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int16(binary.LittleEndian.Uint16(pcm[i:]))
		binary.LittleEndian.PutUint16(pcm[i:], uint16(int16(float64(s)*gain)))
	}
}

// pcmToWAV wraps raw PCM data in a WAV container.
func pcmToWAV(pcm []byte, sampleRate, channels, bytesPerSample int) []byte {
	dataLen := len(pcm)

	buf := &bytes.Buffer{}
	buf.Grow(44 + dataLen)

	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16)) // subchunk1 size
	_ = binary.Write(buf, binary.LittleEndian, uint16(1))  // PCM
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate*channels*bytesPerSample)) // byte rate
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels*bytesPerSample))            // block align
	_ = binary.Write(buf, binary.LittleEndian, uint16(bytesPerSample*8))                   // bits per sample

	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(pcm)

	return buf.Bytes()
}
