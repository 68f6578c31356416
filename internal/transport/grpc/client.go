package grpcx

import (
	"context"

	"google.golang.org/grpc"
)

// Client — типизированная обёртка над conn.Invoke с json-кодеком.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *Client) ListUsers(ctx context.Context, in *ListUsersRequest, opts ...grpc.CallOption) (*ListUsersResponse, error) {
	out := new(ListUsersResponse)
	if err := c.invoke(ctx, MethodListUsers, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListMessages(ctx context.Context, in *ListMessagesRequest, opts ...grpc.CallOption) (*ListMessagesResponse, error) {
	out := new(ListMessagesResponse)
	if err := c.invoke(ctx, MethodListMessages, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*SendMessageResponse, error) {
	out := new(SendMessageResponse)
	if err := c.invoke(ctx, MethodSendMessage, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteMessage(ctx context.Context, in *DeleteMessageRequest, opts ...grpc.CallOption) (*DeleteMessageResponse, error) {
	out := new(DeleteMessageResponse)
	if err := c.invoke(ctx, MethodDeleteMessage, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
