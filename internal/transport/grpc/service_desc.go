package grpcx

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "chat.v1.ChatService"

const (
	MethodListUsers     = "/" + ServiceName + "/ListUsers"
	MethodListMessages  = "/" + ServiceName + "/ListMessages"
	MethodSendMessage   = "/" + ServiceName + "/SendMessage"
	MethodDeleteMessage = "/" + ServiceName + "/DeleteMessage"
)

type ChatServiceServer interface {
	ListUsers(context.Context, *ListUsersRequest) (*ListUsersResponse, error)
	ListMessages(context.Context, *ListMessagesRequest) (*ListMessagesResponse, error)
	SendMessage(context.Context, *SendMessageRequest) (*SendMessageResponse, error)
	DeleteMessage(context.Context, *DeleteMessageRequest) (*DeleteMessageResponse, error)
}

var ChatServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChatServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListUsers", Handler: unary(MethodListUsers, ChatServiceServer.ListUsers)},
		{MethodName: "ListMessages", Handler: unary(MethodListMessages, ChatServiceServer.ListMessages)},
		{MethodName: "SendMessage", Handler: unary(MethodSendMessage, ChatServiceServer.SendMessage)},
		{MethodName: "DeleteMessage", Handler: unary(MethodDeleteMessage, ChatServiceServer.DeleteMessage)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "chat/v1/chat.proto",
}

func RegisterChatServiceServer(s grpc.ServiceRegistrar, srv ChatServiceServer) {
	s.RegisterService(&ChatServiceDesc, srv)
}

// unary повторяет то, что protoc-gen-go-grpc генерирует для каждого метода.
func unary[Req, Resp any](fullMethod string, call func(ChatServiceServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ChatServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ChatServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
