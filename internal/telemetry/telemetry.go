// Package telemetry reports absorbed failures to Sentry.
//
// Reporting is best effort and never changes control flow. Without a DSN the
// Reporter is a no-op.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/nadzzz/kindvoice/internal/config"
)

const flushTimeout = 2 * time.Second

// Reporter sends errors to Sentry.
type Reporter struct {
	enabled bool
}

// Init initializes the Sentry client when cfg has a DSN. The returned
// Reporter is usable either way.
func Init(cfg config.TelemetryConfig, release string) (*Reporter, error) {
	if cfg.SentryDSN == "" {
		slog.Info("sentry not configured, error reporting disabled")
		return &Reporter{}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		Release:          "kindvoice@" + release,
		SampleRate:       cfg.SampleRate,
		AttachStacktrace: true,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			// Request bodies carry what the user shared.
			if event.Request != nil {
				event.Request.Data = ""
				delete(event.Request.Headers, "Authorization")
			}
			return event
		},
	})
	if err != nil {
		return &Reporter{}, fmt.Errorf("initializing sentry: %w", err)
	}

	slog.Info("sentry initialized", "environment", cfg.Environment, "release", release)
	return &Reporter{enabled: true}, nil
}

// Enabled reports whether events are sent.
func (r *Reporter) Enabled() bool { return r != nil && r.enabled }

// Report captures err with tags on the hub bound to ctx, or the current hub.
func (r *Reporter) Report(ctx context.Context, err error, tags map[string]string) {
	if !r.Enabled() || err == nil {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		hub.CaptureException(err)
	})
}

// Flush waits for buffered events to be sent.
func (r *Reporter) Flush() {
	if r.Enabled() {
		sentry.Flush(flushTimeout)
	}
}
