package grpcx

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/logger"
)

type ChatService interface {
	CreateMessage(ctx context.Context, actor, receiver domain.UserID, content string) (*domain.Message, error)
	ListMessages(ctx context.Context, actor, other domain.UserID) ([]domain.Message, error)
	ListMessagesPage(ctx context.Context, actor, other domain.UserID, before string, limit int) ([]domain.Message, string, error)
	DeleteMessage(ctx context.Context, actor, other domain.UserID, id domain.MessageID) error
	ListConversationPartners(ctx context.Context, exclude domain.UserID) ([]domain.UserSummary, error)
}

type Server struct {
	chatSvc ChatService
}

func NewServer(chat ChatService) *Server {
	return &Server{chatSvc: chat}
}

// NewGRPCServer собирает *grpc.Server с цепочкой интерсепторов и
// зарегистрированным chat.v1.ChatService.
func NewGRPCServer(s *Server, v TokenVerifier, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			RequestIDInterceptor(),
			UnaryServerInterceptor(),
			AuthInterceptor(v, MethodListUsers),
		),
	}, opts...)

	gs := grpc.NewServer(opts...)
	RegisterChatServiceServer(gs, s)
	return gs
}

func (s *Server) ListUsers(ctx context.Context, _ *ListUsersRequest) (*ListUsersResponse, error) {
	users, err := s.chatSvc.ListConversationPartners(ctx, actorFromCtx(ctx))
	if err != nil {
		return nil, s.fail(ctx, "ListUsers", err)
	}
	return &ListUsersResponse{Users: users}, nil
}

func (s *Server) ListMessages(ctx context.Context, req *ListMessagesRequest) (*ListMessagesResponse, error) {
	actor, other := actorFromCtx(ctx), domain.UserID(req.UserID)

	if req.Limit == 0 && req.Before == "" {
		msgs, err := s.chatSvc.ListMessages(ctx, actor, other)
		if err != nil {
			return nil, s.fail(ctx, "ListMessages", err)
		}
		return &ListMessagesResponse{Messages: msgs}, nil
	}

	msgs, next, err := s.chatSvc.ListMessagesPage(ctx, actor, other, req.Before, req.Limit)
	if err != nil {
		return nil, s.fail(ctx, "ListMessagesPage", err)
	}
	return &ListMessagesResponse{Messages: msgs, NextCursor: next}, nil
}

func (s *Server) SendMessage(ctx context.Context, req *SendMessageRequest) (*SendMessageResponse, error) {
	msg, err := s.chatSvc.CreateMessage(ctx, actorFromCtx(ctx), domain.UserID(req.UserID), req.Content)
	if err != nil {
		return nil, s.fail(ctx, "SendMessage", err)
	}
	return &SendMessageResponse{Message: msg}, nil
}

func (s *Server) DeleteMessage(ctx context.Context, req *DeleteMessageRequest) (*DeleteMessageResponse, error) {
	err := s.chatSvc.DeleteMessage(ctx, actorFromCtx(ctx), domain.UserID(req.UserID), domain.MessageID(req.MessageID))
	if err != nil {
		return nil, s.fail(ctx, "DeleteMessage", err)
	}
	return &DeleteMessageResponse{Status: "deleted"}, nil
}

func (s *Server) fail(ctx context.Context, op string, err error) error {
	st := mapErr(err)
	if st != nil && isInternal(st) {
		logger.FromContext(ctx).Error("grpc."+op+":", slog.Any("err", err))
	}
	return st
}
