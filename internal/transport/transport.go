// Package transport defines the interface for the network front ends that
// expose response generation.
//
// Each transport (HTTP/WebSocket, gRPC) implements this interface. None of
// them knows how responses are produced; they only work with the Responder
// contract.
package transport

import (
	"context"

	"github.com/nadzzz/kindvoice/internal/message"
)

// Responder produces supportive responses. The orchestrator implements it.
type Responder interface {
	// Generate may return a memoized result for an identical request.
	Generate(ctx context.Context, req message.GenerationRequest) (*message.GenerationResult, error)

	// Regenerate always produces a fresh result.
	Regenerate(ctx context.Context, req message.GenerationRequest) (*message.GenerationResult, error)
}

// Transport is the interface that every transport adapter must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "grpc", "http").
	Name() string

	// Listen starts accepting requests and answers them with r.
	// It blocks until the context is cancelled.
	Listen(ctx context.Context, r Responder) error

	// Close gracefully shuts down the transport, draining in-flight work.
	Close() error
}
