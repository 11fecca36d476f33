// Package http implements the HTTP/WebSocket transport for kindvoice.
//
// This transport exposes a REST API for response generation, transcription
// and history, a WebSocket endpoint for spoken conversations, and the
// Swagger UI. It is best suited for web clients and phones.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/nadzzz/kindvoice/internal/config"
	"github.com/nadzzz/kindvoice/internal/history"
	"github.com/nadzzz/kindvoice/internal/intake"
	"github.com/nadzzz/kindvoice/internal/transport"

	_ "github.com/nadzzz/kindvoice/internal/transport/http/docs" // registers the OpenAPI document
)

// maxJSONBytes bounds JSON request bodies.
const maxJSONBytes = 1 << 20

// Option configures a Transport.
type Option func(*Transport)

// WithAudio sets whether responses include audio when a request does not
// say.
func WithAudio(enabled bool) Option {
	return func(t *Transport) { t.audio = enabled }
}

// WithClock overrides time.Now for export timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Transport) { t.now = now }
}

// Transport implements transport.Transport over HTTP and WebSocket.
type Transport struct {
	cfg      config.HTTPConfig
	store    *history.Store
	intake   *intake.Service
	audio    bool
	now      func() time.Time
	upgrader websocket.Upgrader
	log      *slog.Logger

	// sessions is cancelled on shutdown; hijacked WebSocket connections
	// are not tracked by http.Server.
	sessions    context.Context
	endSessions context.CancelFunc

	mu     sync.Mutex
	server *http.Server
}

var _ transport.Transport = (*Transport)(nil)

// New creates a new HTTP transport. A nil intake service means voice input
// is unsupported.
func New(cfg config.HTTPConfig, store *history.Store, in *intake.Service, opts ...Option) *Transport {
	if in == nil {
		in = intake.New(nil, int(cfg.MaxUploadBytes))
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = intake.DefaultMaxBytes
	}
	sessions, end := context.WithCancel(context.Background())
	t := &Transport{
		cfg:    cfg,
		store:  store,
		intake: in,
		audio:  true,
		now:    time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log:         slog.With("component", "http"),
		sessions:    sessions,
		endSessions: end,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Router builds the request router answering with r.
func (t *Transport) Router(r transport.Responder) http.Handler {
	h := &handlers{t: t, responder: r}

	rt := chi.NewRouter()
	rt.Use(middleware.RequestID)
	rt.Use(middleware.RealIP)
	rt.Use(t.requestLogger)
	rt.Use(middleware.Recoverer)

	rt.Route("/v1", func(v chi.Router) {
		v.Get("/tones", h.listTones)

		v.Post("/responses", h.generate)
		v.Post("/responses/regenerate", h.regenerate)
		v.Post("/transcriptions", h.transcribe)

		v.Get("/conversations", h.listConversations)
		v.Post("/conversations", h.createConversation)
		v.Get("/conversations/{id}/export", h.exportConversation)

		v.Get("/reflections", h.listReflections)
		v.Post("/reflections", h.createReflection)

		v.Get("/stats", h.stats)
		v.Get("/export", h.exportAll)

		v.Get("/voice", h.voice)
	})

	if t.cfg.Swagger {
		rt.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}
	return rt
}

// Listen starts the HTTP server and routes incoming requests to r.
func (t *Transport) Listen(ctx context.Context, r transport.Responder) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", t.cfg.Port),
		Handler:           t.Router(r),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(t.endSessions)

	t.mu.Lock()
	t.server = srv
	t.mu.Unlock()

	slog.Info("http transport listening", "port", t.cfg.Port, "swagger", t.cfg.Swagger)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// Close gracefully shuts down the HTTP server.
func (t *Transport) Close() error {
	t.mu.Lock()
	srv := t.server
	t.mu.Unlock()

	t.endSessions()
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
	return nil
}

func (t *Transport) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		t.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
