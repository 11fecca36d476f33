package grpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/nadzzz/kindvoice/internal/message"
)

// Client calls a remote Companion service.
type Client struct {
	cc    grpc.ClientConnInterface
	close func() error
}

// Dial connects to a Companion server at target without TLS.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", target, err)
	}
	return &Client{cc: conn, close: conn.Close}, nil
}

// NewClient wraps an existing connection. Closing the Client does not close
// cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc, close: func() error { return nil }}
}

// Generate calls Companion.Generate.
func (c *Client) Generate(ctx context.Context, req *GenerateRequest) (*message.GenerationResult, error) {
	return c.invoke(ctx, GenerateMethod, req)
}

// Regenerate calls Companion.Regenerate.
func (c *Client) Regenerate(ctx context.Context, req *GenerateRequest) (*message.GenerationResult, error) {
	return c.invoke(ctx, RegenerateMethod, req)
}

// Close releases the connection opened by Dial.
func (c *Client) Close() error { return c.close() }

func (c *Client) invoke(ctx context.Context, method string, req *GenerateRequest) (*message.GenerationResult, error) {
	out := new(message.GenerationResult)
	if err := c.cc.Invoke(ctx, method, req, out, grpc.ForceCodec(Codec{})); err != nil {
		return nil, err
	}
	return out, nil
}
