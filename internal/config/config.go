// Package config handles loading and validating the kindvoice configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// PlaceholderAPIKey is the sample key shipped in example env files. It is
// treated the same as no key at all.
const PlaceholderAPIKey = "your_openai_api_key_here"

// Config is the root configuration for the kindvoice daemon.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Transports   TransportsConfig   `mapstructure:"transports"`
	Remote       RemoteConfig       `mapstructure:"remote"`
	Voice        VoiceConfig        `mapstructure:"voice"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig holds the health check server settings.
type ServerConfig struct {
	HealthPort      int           `mapstructure:"health_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// TransportsConfig holds the configuration for each transport layer.
type TransportsConfig struct {
	GRPC GRPCConfig `mapstructure:"grpc"`
	HTTP HTTPConfig `mapstructure:"http"`
}

// GRPCConfig configures the gRPC transport.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HTTPConfig configures the HTTP/WebSocket transport.
type HTTPConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
	Swagger bool `mapstructure:"swagger"`

	// MaxUploadBytes bounds transcription uploads and voice session clips.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

// RemoteConfig holds the hosted generation backend settings (OpenAI or any
// API-compatible server reachable at BaseURL).
type RemoteConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`

	ChatModel        string  `mapstructure:"chat_model"`
	MaxTokens        int64   `mapstructure:"max_tokens"`
	Temperature      float64 `mapstructure:"temperature"`
	PresencePenalty  float64 `mapstructure:"presence_penalty"`
	FrequencyPenalty float64 `mapstructure:"frequency_penalty"`

	SpeechModel string  `mapstructure:"speech_model"`
	SpeechVoice string  `mapstructure:"speech_voice"`
	SpeechSpeed float64 `mapstructure:"speech_speed"`

	TranscriptionModel string `mapstructure:"transcription_model"`
	Language           string `mapstructure:"language"`
}

// Configured reports whether a usable API key is present.
func (c RemoteConfig) Configured() bool {
	key := strings.TrimSpace(c.APIKey)
	return key != "" && key != PlaceholderAPIKey
}

// VoiceConfig selects the on-device speech engine and the host recorder.
type VoiceConfig struct {
	Engine    string        `mapstructure:"engine"` // "piper", "say" or "none"
	Preferred []string      `mapstructure:"preferred"`
	Rate      float64       `mapstructure:"rate"`
	Pitch     float64       `mapstructure:"pitch"`
	Volume    float64       `mapstructure:"volume"`
	Piper     PiperConfig   `mapstructure:"piper"`
	Say       SayConfig     `mapstructure:"say"`
	Input     InputConfig   `mapstructure:"input"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// PiperConfig holds Piper TTS settings (Wyoming protocol).
type PiperConfig struct {
	Endpoint string `mapstructure:"endpoint"` // Wyoming TCP endpoint (host:port)
	Voice    string `mapstructure:"voice"`    // overrides voice selection when set
}

// SayConfig configures the host speech command.
type SayConfig struct {
	Binary string `mapstructure:"binary"`
}

// InputConfig configures microphone capture for the CLI.
type InputConfig struct {
	Recorder   string        `mapstructure:"recorder"` // "arecord" or "rec"; empty picks the first found
	MaxSeconds time.Duration `mapstructure:"max_duration"`
	SampleRate int           `mapstructure:"sample_rate"`
}

// StorageConfig selects where history records are kept.
type StorageConfig struct {
	Backend string `mapstructure:"backend"` // "sqlite" or "memory"
	Path    string `mapstructure:"path"`
}

// OrchestratorConfig tunes response generation.
type OrchestratorConfig struct {
	MemoSize int  `mapstructure:"memo_size"`
	Audio    bool `mapstructure:"audio"`
}

// TelemetryConfig holds error reporting settings.
type TelemetryConfig struct {
	SentryDSN   string  `mapstructure:"sentry_dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the configuration from file, environment variables, and defaults.
// A .env file in the working directory is loaded into the environment first.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./kindvoice.yaml, ./configs/kindvoice.yaml, /etc/kindvoice/kindvoice.yaml.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("could not load .env file", "error", err)
	}

	v := viper.New()
	setDefaults(v)

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("kindvoice")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/kindvoice")
	}

	// Environment variables: KINDVOICE_REMOTE_API_KEY, KINDVOICE_STORAGE_PATH, etc.
	v.SetEnvPrefix("KINDVOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional, env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${OPENAI_API_KEY}")
	cfg.Remote.APIKey = resolveEnvRef(cfg.Remote.APIKey)
	if cfg.Remote.APIKey == "" {
		cfg.Remote.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	cfg.Telemetry.SentryDSN = resolveEnvRef(cfg.Telemetry.SentryDSN)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("transports.grpc.enabled", false)
	v.SetDefault("transports.grpc.port", 50051)
	v.SetDefault("transports.http.enabled", true)
	v.SetDefault("transports.http.port", 8080)
	v.SetDefault("transports.http.swagger", true)
	v.SetDefault("transports.http.max_upload_bytes", 10<<20)
	v.SetDefault("remote.api_key", "")
	v.SetDefault("remote.base_url", "")
	v.SetDefault("remote.chat_model", "gpt-4")
	v.SetDefault("remote.max_tokens", 400)
	v.SetDefault("remote.temperature", 0.8)
	v.SetDefault("remote.presence_penalty", 0.1)
	v.SetDefault("remote.frequency_penalty", 0.1)
	v.SetDefault("remote.speech_model", "tts-1")
	v.SetDefault("remote.speech_voice", "nova")
	v.SetDefault("remote.speech_speed", 0.9)
	v.SetDefault("remote.transcription_model", "whisper-1")
	v.SetDefault("remote.language", "en")
	v.SetDefault("voice.engine", "none")
	v.SetDefault("voice.rate", 0.85)
	v.SetDefault("voice.pitch", 1.1)
	v.SetDefault("voice.volume", 0.9)
	v.SetDefault("voice.timeout", 30*time.Second)
	v.SetDefault("voice.piper.endpoint", "localhost:10200")
	v.SetDefault("voice.say.binary", "say")
	v.SetDefault("voice.input.recorder", "")
	v.SetDefault("voice.input.max_duration", 15*time.Second)
	v.SetDefault("voice.input.sample_rate", 16000)
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.path", "kindvoice.db")
	v.SetDefault("orchestrator.memo_size", 128)
	v.SetDefault("orchestrator.audio", true)
	v.SetDefault("telemetry.sentry_dsn", "")
	v.SetDefault("telemetry.environment", "development")
	v.SetDefault("telemetry.sample_rate", 1.0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks enum-like settings.
func (c *Config) Validate() error {
	switch c.Voice.Engine {
	case "piper", "say", "none", "":
	default:
		return fmt.Errorf("unknown voice engine %q", c.Voice.Engine)
	}
	switch c.Storage.Backend {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "sqlite" && c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required for the sqlite backend")
	}
	if c.Orchestrator.MemoSize < 0 {
		return fmt.Errorf("orchestrator.memo_size must not be negative")
	}
	return nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var
// value. An unset variable resolves to "".
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		return os.Getenv(val[2 : len(val)-1])
	}
	return val
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
