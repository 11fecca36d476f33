package openai

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/kindvoice/internal/config"
	"github.com/nadzzz/kindvoice/internal/message"
	"github.com/nadzzz/kindvoice/internal/tone"
)

func testConfig(baseURL string) config.RemoteConfig {
	return config.RemoteConfig{
		APIKey:             "sk-test",
		BaseURL:            baseURL,
		ChatModel:          "gpt-4",
		MaxTokens:          400,
		Temperature:        0.8,
		PresencePenalty:    0.1,
		FrequencyPenalty:   0.1,
		SpeechModel:        "tts-1",
		SpeechVoice:        "nova",
		SpeechSpeed:        0.9,
		TranscriptionModel: "whisper-1",
		Language:           "en",
	}
}

func chatReply(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	return string(b)
}

func TestGenerateTextSendsToneAndParams(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatReply("  You are safe here.  "))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL + "/v1"))
	text, err := c.GenerateText(t.Context(), "I feel scared", tone.Protective)
	require.NoError(t, err)
	assert.Equal(t, "You are safe here.", text)

	assert.Equal(t, "gpt-4", body["model"])
	assert.EqualValues(t, 400, body["max_tokens"])
	assert.InDelta(t, 0.8, body["temperature"], 1e-9)
	assert.InDelta(t, 0.1, body["presence_penalty"], 1e-9)
	assert.InDelta(t, 0.1, body["frequency_penalty"], 1e-9)

	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	system := msgs[0].(map[string]any)
	assert.Equal(t, "system", system["role"])
	assert.Equal(t, tone.Protective.Info().Prompt, system["content"])
	user := msgs[1].(map[string]any)
	assert.Equal(t, "I feel scared", user["content"])
}

func TestGenerateTextEmptyIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatReply(" \n "))
	}))
	defer srv.Close()

	_, err := New(testConfig(srv.URL)).GenerateText(t.Context(), "hi", tone.Nurturing)
	assert.ErrorIs(t, err, message.ErrGeneration)
}

func TestGenerateTextNoRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(testConfig(srv.URL)).GenerateText(t.Context(), "hi", tone.Nurturing)
	assert.ErrorIs(t, err, message.ErrGeneration)
	assert.EqualValues(t, 1, calls.Load())
}

func TestSynthesizeSpeech(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/audio/speech", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3fake"))
	}))
	defer srv.Close()

	audio, err := New(testConfig(srv.URL)).SynthesizeSpeech(t.Context(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3fake"), audio.Data)
	assert.Equal(t, "audio/mpeg", audio.ContentType)
	assert.Equal(t, message.AudioSourceRemote, audio.Source)

	assert.Equal(t, "tts-1", body["model"])
	assert.Equal(t, "nova", body["voice"])
	assert.Equal(t, "mp3", body["response_format"])
	assert.InDelta(t, 0.9, body["speed"], 1e-9)
	assert.Equal(t, "hello", body["input"])
}

func TestSynthesizeSpeechEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
	}))
	defer srv.Close()

	_, err := New(testConfig(srv.URL)).SynthesizeSpeech(t.Context(), "hello")
	assert.ErrorIs(t, err, message.ErrSynthesis)
}

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/audio/transcriptions", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "en", r.FormValue("language"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.True(t, strings.HasSuffix(hdr.Filename, ".webm"))
		data, _ := io.ReadAll(f)
		assert.Equal(t, "clip", string(data))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":" I feel tired today "}`)
	}))
	defer srv.Close()

	text, err := New(testConfig(srv.URL)).Transcribe(t.Context(), &message.Audio{Data: []byte("clip"), ContentType: "audio/webm"})
	require.NoError(t, err)
	assert.Equal(t, "I feel tired today", text)
}

func TestTranscribeEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":""}`)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	_, err := c.Transcribe(t.Context(), &message.Audio{Data: []byte("clip")})
	assert.ErrorIs(t, err, message.ErrTranscription)

	_, err = c.Transcribe(t.Context(), nil)
	assert.ErrorIs(t, err, message.ErrTranscription)
}
