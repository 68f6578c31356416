package grpcx

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/logger"
	"github.com/cwrk-planet/chat-service/internal/security"
)

const (
	mdAuthorization = "authorization"
	mdRequestID     = "x-request-id"
)

// UnaryServerInterceptor: recovery, deadline guard (если у вызова нет
// deadline) и лог с длительностью.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp any, err error) {
		start := time.Now()
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
		}

		defer func() {
			l := logger.FromContext(ctx)
			if r := recover(); r != nil {
				l.Error("grpc unary panic",
					slog.String("method", info.FullMethod),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
				err = status.Error(codes.Internal, "internal server error")
			}
			lvl := slog.LevelInfo
			if status.Code(err) == codes.Internal || status.Code(err) == codes.Unknown {
				lvl = slog.LevelError
			}
			l.Log(ctx, lvl, "grpc unary",
				slog.String("method", info.FullMethod),
				slog.Int64("dur_ms", time.Since(start).Milliseconds()),
				slog.String("code", status.Code(err).String()),
				slog.String("err", errString(err)))
		}()

		return handler(ctx, req)
	}
}

// RequestIDInterceptor берёт x-request-id из metadata или генерирует новый
// и кладёт логгер запроса в контекст.
func RequestIDInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		reqID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			reqID = first(md.Get(mdRequestID))
		}
		if reqID == "" {
			reqID = uuid.NewString()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(mdRequestID, reqID))

		l := logger.L().With(slog.String("req_id", reqID), slog.String("method", info.FullMethod))
		return handler(logger.WithContext(ctx, l), req)
	}
}

type TokenVerifier interface {
	Verify(token string) (domain.UserID, error)
}

type actorKey struct{}

// AuthInterceptor проверяет Bearer из metadata. Методы из optional
// пропускаются без токена (актор пустой), но битый токен отклоняется.
func AuthInterceptor(v TokenVerifier, optional ...string) grpc.UnaryServerInterceptor {
	opt := make(map[string]struct{}, len(optional))
	for _, m := range optional {
		opt[m] = struct{}{}
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		auth := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			auth = first(md.Get(mdAuthorization))
		}

		if _, ok := opt[info.FullMethod]; ok && auth == "" {
			return handler(ctx, req)
		}

		uid, err := v.Verify(security.BearerToken(auth))
		if err != nil {
			return nil, mapErr(err)
		}
		return handler(context.WithValue(ctx, actorKey{}, uid), req)
	}
}

func actorFromCtx(ctx context.Context) domain.UserID {
	uid, _ := ctx.Value(actorKey{}).(domain.UserID)
	return uid
}

func first(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
