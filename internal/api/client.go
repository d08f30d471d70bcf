package api

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/matheus3301/wppilot/internal/site"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client talks to a running daemon over its Unix socket.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the daemon listening on socketPath. The connection is
// established lazily on the first call.
func Dial(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func call[T any](ctx context.Context, c *Client, method string, req any) (T, error) {
	var zero T
	in, err := toStruct(req)
	if err != nil {
		return zero, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, fullName(method), in, out); err != nil {
		return zero, err
	}
	return fromStruct[T](out)
}

// Status returns the daemon status.
func (c *Client) Status(ctx context.Context) (StatusInfo, error) {
	return call[StatusInfo](ctx, c, MethodGetStatus, nil)
}

// CollectContext runs a collection pass on the daemon's tab.
func (c *Client) CollectContext(ctx context.Context, req CollectRequest) (site.Context, error) {
	return call[site.Context](ctx, c, MethodCollectContext, req)
}

// RunAction runs a page action. A failed action is a Result with OK false,
// not an error.
func (c *Client) RunAction(ctx context.Context, action string, args map[string]any) (site.Result, error) {
	return call[site.Result](ctx, c, MethodRunAction, ActionRequest{Action: action, Args: args})
}

// QueueMessage queues a message for delivery.
func (c *Client) QueueMessage(ctx context.Context, req QueueRequest) (QueueResponse, error) {
	return call[QueueResponse](ctx, c, MethodQueueMessage, req)
}

// ListOutbox lists recent outbox entries.
func (c *Client) ListOutbox(ctx context.Context, limit int) ([]OutboxItem, error) {
	out, err := call[OutboxList](ctx, c, MethodListOutbox, map[string]any{"limit": limit})
	return out.Entries, err
}

// SearchMessages searches archived messages.
func (c *Client) SearchMessages(ctx context.Context, req SearchRequest) ([]SearchHit, error) {
	out, err := call[SearchResponse](ctx, c, MethodSearchMessages, req)
	return out.Results, err
}

// ListLedger returns the daemon's sync ledger.
func (c *Client) ListLedger(ctx context.Context) (LedgerView, error) {
	return call[LedgerView](ctx, c, MethodListLedger, nil)
}

// WatchEvents streams events whose kind starts with prefix. fn is called for
// each event until ctx ends, the stream breaks, or fn returns an error.
func (c *Client) WatchEvents(ctx context.Context, prefix string, fn func(EventEnvelope) error) error {
	in, err := toStruct(WatchRequest{Prefix: prefix})
	if err != nil {
		return err
	}
	desc := &ServiceDesc.Streams[0]
	stream, err := c.conn.NewStream(ctx, desc, fullName(MethodWatchEvents))
	if err != nil {
		return err
	}
	if err := stream.SendMsg(in); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		env, err := fromStruct[EventEnvelope](msg)
		if err != nil {
			return err
		}
		if err := fn(env); err != nil {
			return err
		}
	}
}
