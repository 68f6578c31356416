package httpmw

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/security"
)

type ctxKey string

const ctxKeyUserID ctxKey = "user_id"

type TokenVerifier interface {
	Verify(token string) (domain.UserID, error)
}

// Auth требует валидный Bearer JWT и кладёт id пользователя в контекст.
func Auth(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid, err := v.Verify(security.BearerToken(r.Header.Get("Authorization")))
			if err != nil {
				msg := "Invalid or expired token"
				if errors.Is(err, security.ErrMissingToken) {
					msg = "Authorization token required"
				}
				unauthorized(w, msg)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), uid)))
		})
	}
}

// OptionalAuth: без заголовка запрос идёт анонимно, с битым токеном — 401.
func OptionalAuth(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			uid, err := v.Verify(security.BearerToken(r.Header.Get("Authorization")))
			if err != nil {
				unauthorized(w, "Invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), uid)))
		})
	}
}

func WithUserID(ctx context.Context, id domain.UserID) context.Context {
	return context.WithValue(ctx, ctxKeyUserID, id)
}

func UserIDFromCtx(ctx context.Context) domain.UserID {
	if id, ok := ctx.Value(ctxKeyUserID).(domain.UserID); ok {
		return id
	}
	return ""
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
