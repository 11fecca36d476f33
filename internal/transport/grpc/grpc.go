// Package grpc implements the gRPC transport for kindvoice.
//
// This transport exposes the kindvoice.v1.Companion service with unary
// Generate and Regenerate methods. Messages are JSON encoded, so clients
// need no generated stubs: any gRPC client that forces the "json" codec
// can call it. It is best suited for companion devices and service-to-service
// calls.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nadzzz/kindvoice/internal/config"
	"github.com/nadzzz/kindvoice/internal/message"
	"github.com/nadzzz/kindvoice/internal/transport"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "kindvoice.v1.Companion"

// Full method names.
const (
	GenerateMethod   = "/" + ServiceName + "/Generate"
	RegenerateMethod = "/" + ServiceName + "/Regenerate"
)

// GenerateRequest is the request message for Generate and Regenerate.
type GenerateRequest struct {
	UserMessage string `json:"userMessage"`
	Tone        string `json:"tone,omitempty"`

	// Audio requests speech. Nil means the server default.
	Audio *bool `json:"audio,omitempty"`
}

// CompanionServer is the server API for the Companion service.
type CompanionServer interface {
	Generate(ctx context.Context, req *GenerateRequest) (*message.GenerationResult, error)
	Regenerate(ctx context.Context, req *GenerateRequest) (*message.GenerationResult, error)
}

// Option configures a Transport.
type Option func(*Transport)

// WithAudio sets whether responses include audio when a request does not
// say.
func WithAudio(enabled bool) Option {
	return func(t *Transport) { t.audio = enabled }
}

// WithServerOptions appends options passed to grpc.NewServer.
func WithServerOptions(opts ...grpc.ServerOption) Option {
	return func(t *Transport) { t.serverOpts = append(t.serverOpts, opts...) }
}

// Transport implements transport.Transport over gRPC.
type Transport struct {
	port       int
	audio      bool
	serverOpts []grpc.ServerOption

	mu     sync.Mutex
	server *grpc.Server
}

var _ transport.Transport = (*Transport)(nil)

// New creates a new gRPC transport.
func New(cfg config.GRPCConfig, opts ...Option) *Transport {
	t := &Transport{port: cfg.Port, audio: true}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "grpc" }

// Listen starts the gRPC server and routes incoming requests to r.
func (t *Transport) Listen(ctx context.Context, r transport.Responder) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	slog.Info("grpc transport listening", "port", t.port)
	return t.Serve(ctx, lis, r)
}

// Serve accepts connections on lis until ctx is cancelled.
func (t *Transport) Serve(ctx context.Context, lis net.Listener, r transport.Responder) error {
	opts := append([]grpc.ServerOption{grpc.ForceServerCodec(Codec{})}, t.serverOpts...)
	srv := grpc.NewServer(opts...)
	srv.RegisterService(&serviceDesc, &companionServer{responder: r, audio: t.audio})

	t.mu.Lock()
	t.server = srv
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		slog.Info("grpc transport shutting down")
		srv.GracefulStop()
	}()

	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// Close gracefully stops the gRPC server.
func (t *Transport) Close() error {
	t.mu.Lock()
	srv := t.server
	t.mu.Unlock()
	if srv != nil {
		srv.GracefulStop()
	}
	return nil
}

// companionServer adapts a Responder to CompanionServer.
type companionServer struct {
	responder transport.Responder
	audio     bool
}

func (s *companionServer) Generate(ctx context.Context, req *GenerateRequest) (*message.GenerationResult, error) {
	res, err := s.responder.Generate(ctx, s.request(req))
	return res, toStatus(err)
}

func (s *companionServer) Regenerate(ctx context.Context, req *GenerateRequest) (*message.GenerationResult, error) {
	res, err := s.responder.Regenerate(ctx, s.request(req))
	return res, toStatus(err)
}

func (s *companionServer) request(req *GenerateRequest) message.GenerationRequest {
	return transport.NewRequest(req.UserMessage, req.Tone, req.Audio, s.audio)
}

func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, message.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CompanionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Generate", Handler: unaryHandler(GenerateMethod, CompanionServer.Generate)},
		{MethodName: "Regenerate", Handler: unaryHandler(RegenerateMethod, CompanionServer.Regenerate)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "kindvoice/v1/companion",
}

type unaryMethod func(CompanionServer, context.Context, *GenerateRequest) (*message.GenerationResult, error)

// methodHandler matches the unexported handler type of grpc.MethodDesc.
type methodHandler = func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error)

func unaryHandler(fullMethod string, call unaryMethod) methodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(GenerateRequest)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CompanionServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CompanionServer), ctx, req.(*GenerateRequest))
		}
		return interceptor(ctx, in, info, handler)
	}
}
