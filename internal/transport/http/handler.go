package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/logger"
	httpmw "github.com/cwrk-planet/chat-service/internal/transport/http/middleware"
)

type ChatService interface {
	CreateMessage(ctx context.Context, actor, receiver domain.UserID, content string) (*domain.Message, error)
	ListMessages(ctx context.Context, actor, other domain.UserID) ([]domain.Message, error)
	ListMessagesPage(ctx context.Context, actor, other domain.UserID, before string, limit int) ([]domain.Message, string, error)
	DeleteMessage(ctx context.Context, actor, other domain.UserID, id domain.MessageID) error
	ListConversationPartners(ctx context.Context, exclude domain.UserID) ([]domain.UserSummary, error)
}

type Handler struct {
	chatSvc ChatService
}

func NewHandler(chat ChatService) *Handler {
	return &Handler{chatSvc: chat}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("handler."+op+":", slog.Any("err", err))
	}
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// GET /api/chat/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.chatSvc.ListConversationPartners(r.Context(), httpmw.UserIDFromCtx(r.Context()))
	if err != nil {
		h.fail(w, r, "ListUsers", err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// GET /api/chat/{userId}/messages[?limit=&before=]
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	actor := httpmw.UserIDFromCtx(r.Context())
	other := domain.UserID(chi.URLParam(r, "userId"))

	q := r.URL.Query()
	if !q.Has("limit") && !q.Has("before") {
		msgs, err := h.chatSvc.ListMessages(r.Context(), actor, other)
		if err != nil {
			h.fail(w, r, "ListMessages", err)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
		return
	}

	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid limit"})
			return
		}
		limit = n
	}

	msgs, next, err := h.chatSvc.ListMessagesPage(r.Context(), actor, other, q.Get("before"), limit)
	if err != nil {
		h.fail(w, r, "ListMessagesPage", err)
		return
	}
	if next != "" {
		w.Header().Set(HeaderNextCursor, next)
	}
	writeJSON(w, http.StatusOK, msgs)
}

// POST /api/chat/{userId}/messages
func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	var req CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if status, msg := statusFor(err); status == http.StatusRequestEntityTooLarge {
			writeJSON(w, status, ErrorResponse{Error: msg})
			return
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid JSON body"})
		return
	}

	msg, err := h.chatSvc.CreateMessage(r.Context(),
		httpmw.UserIDFromCtx(r.Context()),
		domain.UserID(chi.URLParam(r, "userId")),
		req.Content,
	)
	if err != nil {
		h.fail(w, r, "CreateMessage", err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// DELETE /api/chat/{userId}/messages/{messageId}
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	err := h.chatSvc.DeleteMessage(r.Context(),
		httpmw.UserIDFromCtx(r.Context()),
		domain.UserID(chi.URLParam(r, "userId")),
		domain.MessageID(chi.URLParam(r, "messageId")),
	)
	if err != nil {
		h.fail(w, r, "DeleteMessage", err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteMessageResponse{Status: "deleted"})
}
