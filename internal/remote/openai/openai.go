// Package openai implements the remote Client using OpenAI's APIs.
//
// It uses the Chat Completions API for supportive text, the Audio Speech API
// for spoken responses, and the Audio Transcription API (Whisper) for voice
// input. Every operation makes exactly one request; SDK retries are off.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/nadzzz/kindvoice/internal/config"
	"github.com/nadzzz/kindvoice/internal/message"
	"github.com/nadzzz/kindvoice/internal/remote"
	"github.com/nadzzz/kindvoice/internal/tone"
)

// maxAudioBytes bounds the speech response body.
const maxAudioBytes = 25 << 20

// Client uses OpenAI APIs for generation, synthesis and transcription.
type Client struct {
	client openai.Client
	cfg    config.RemoteConfig
	log    *slog.Logger
}

var _ remote.Client = (*Client)(nil)

// New creates a new OpenAI client from config. BaseURL, when set, points the
// client at any OpenAI-compatible server.
func New(cfg config.RemoteConfig, opts ...option.RequestOption) *Client {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	reqOpts = append(reqOpts, opts...)

	return &Client{
		client: openai.NewClient(reqOpts...),
		cfg:    cfg,
		log:    slog.With("component", "remote", "backend", "openai"),
	}
}

// Name returns the backend identifier.
func (c *Client) Name() string { return "openai" }

// Available always returns true; an OpenAI client is only built with a key.
func (c *Client) Available() bool { return true }

// GenerateText sends the tone's system prompt and the user's message to the
// Chat Completions API and returns the first choice.
func (c *Client) GenerateText(ctx context.Context, msg string, t tone.Tone) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.cfg.ChatModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(t.Info().Prompt),
			openai.UserMessage(msg),
		},
		MaxTokens:        openai.Int(c.cfg.MaxTokens),
		Temperature:      openai.Float(c.cfg.Temperature),
		PresencePenalty:  openai.Float(c.cfg.PresencePenalty),
		FrequencyPenalty: openai.Float(c.cfg.FrequencyPenalty),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: chat request: %w", message.ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned from chat API", message.ErrGeneration)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty completion", message.ErrGeneration)
	}

	c.log.Debug("generation complete", "tone", t, "text_length", len(text))
	return text, nil
}

// SynthesizeSpeech renders text with the Audio Speech API as MP3.
func (c *Client) SynthesizeSpeech(ctx context.Context, text string) (*message.Audio, error) {
	params := openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(c.cfg.SpeechModel),
		Input:          text,
		Voice:          openai.AudioSpeechNewParamsVoice(c.cfg.SpeechVoice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	}
	if c.cfg.SpeechSpeed > 0 {
		params.Speed = openai.Float(c.cfg.SpeechSpeed)
	}

	resp, err := c.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: speech request: %w", message.ErrSynthesis, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading speech: %w", message.ErrSynthesis, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty speech response", message.ErrSynthesis)
	}

	c.log.Debug("synthesis complete", "audio_bytes", len(data))
	return &message.Audio{
		Data:        data,
		ContentType: "audio/mpeg",
		Voice:       c.cfg.SpeechVoice,
		Source:      message.AudioSourceRemote,
	}, nil
}

// Transcribe sends a recorded clip to the Audio Transcription API.
func (c *Client) Transcribe(ctx context.Context, clip *message.Audio) (string, error) {
	if clip.Empty() {
		return "", fmt.Errorf("%w: empty recording", message.ErrTranscription)
	}

	contentType := clip.ContentType
	if contentType == "" {
		contentType = "audio/webm"
	}
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(clip.Data), "audio"+extFromContentType(contentType), contentType),
		Model: openai.AudioModel(c.cfg.TranscriptionModel),
	}
	if c.cfg.Language != "" {
		params.Language = openai.String(c.cfg.Language)
	}

	resp, err := c.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: transcription request: %w", message.ErrTranscription, err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("%w: empty transcript", message.ErrTranscription)
	}

	c.log.Debug("transcription complete", "text_length", len(text))
	return text, nil
}

func extFromContentType(ct string) string {
	switch {
	case strings.Contains(ct, "wav"):
		return ".wav"
	case strings.Contains(ct, "ogg"):
		return ".ogg"
	case strings.Contains(ct, "mp3"), strings.Contains(ct, "mpeg"):
		return ".mp3"
	case strings.Contains(ct, "flac"):
		return ".flac"
	case strings.Contains(ct, "m4a"), strings.Contains(ct, "mp4"):
		return ".m4a"
	default:
		return ".webm"
	}
}
