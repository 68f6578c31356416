package grpcx

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/security"
)

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, security.ErrMissingToken):
		return status.Error(codes.Unauthenticated, "authorization token required")
	case errors.Is(err, security.ErrInvalidToken):
		return status.Error(codes.Unauthenticated, "invalid or expired token")
	case errors.Is(err, domain.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, domain.ErrEmptyContent), errors.Is(err, domain.ErrInvalidCursor):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrContentTooLarge):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, domain.ErrNotMessageOwner):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, domain.ErrMessageNotFound), errors.Is(err, domain.ErrUserNotFound):
		return status.Error(codes.NotFound, err.Error())
	default:
		return status.Error(codes.Internal, "internal server error")
	}
}

func isInternal(err error) bool {
	return status.Code(err) == codes.Internal
}
