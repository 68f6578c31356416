package http

import (
	"errors"
	"net/http"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/security"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor переводит доменные ошибки в статус и текст ответа.
func statusFor(err error) (int, string) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, security.ErrMissingToken):
		return http.StatusUnauthorized, "Authorization token required"
	case errors.Is(err, security.ErrInvalidToken):
		return http.StatusUnauthorized, "Invalid or expired token"
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "User not authenticated"
	case errors.Is(err, domain.ErrEmptyContent):
		return http.StatusBadRequest, "Message content required"
	case errors.Is(err, domain.ErrInvalidCursor):
		return http.StatusBadRequest, "Invalid cursor"
	case errors.Is(err, domain.ErrContentTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "Payload too large"
	case errors.Is(err, domain.ErrNotMessageOwner):
		return http.StatusForbidden, "Only the sender can delete a message"
	case errors.Is(err, domain.ErrMessageNotFound):
		return http.StatusNotFound, "Message not found"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
