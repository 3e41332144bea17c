package controller

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client talks to a relay server.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Dial creates a client for an insecure relay server at address.
func Dial(address string) (*Client, *grpc.ClientConn, error) {
	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create client for %s: %w", address, err)
	}
	return NewClient(conn), conn, nil
}

func (c *Client) Invoke(ctx context.Context, req *InvokeRequest) (*InvokeResponse, error) {
	in, err := req.toStruct()
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, invokeMethod, in, out); err != nil {
		return nil, err
	}
	return invokeResponseFromStruct(out), nil
}

func (c *Client) Metrics(ctx context.Context) (*MetricsResponse, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, metricsMethod, &structpb.Struct{}, out); err != nil {
		return nil, err
	}
	return metricsResponseFromStruct(out), nil
}

// Status opens the status stream for nodeID and calls fn for every event
// until the stream ends, ctx is done or fn returns an error.
func (c *Client) Status(ctx context.Context, nodeID string, fn func(*StatusEvent) error) error {
	stream, err := c.conn.NewStream(ctx, &RelayServiceDesc.Streams[0], statusMethod)
	if err != nil {
		return err
	}
	in, err := structpb.NewStruct(map[string]any{"node_id": nodeID})
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
		out := new(structpb.Struct)
		if err := stream.RecvMsg(out); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		ev, err := statusEventFromStruct(out)
		if err != nil {
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}

// Healthy reports whether the relay service is serving.
func (c *Client) Healthy(ctx context.Context) (bool, error) {
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return false, err
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}
