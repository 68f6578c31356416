package grpcx

import "github.com/cwrk-planet/chat-service/internal/domain"

type ListUsersRequest struct{}

type ListUsersResponse struct {
	Users []domain.UserSummary `json:"users"`
}

// ListMessagesRequest: Limit == 0 и пустой Before — весь диалог.
type ListMessagesRequest struct {
	UserID string `json:"userId"`
	Limit  int    `json:"limit,omitempty"`
	Before string `json:"before,omitempty"`
}

type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	NextCursor string           `json:"nextCursor,omitempty"`
}

type SendMessageRequest struct {
	UserID  string `json:"userId"`
	Content string `json:"content"`
}

type SendMessageResponse struct {
	Message *domain.Message `json:"message"`
}

type DeleteMessageRequest struct {
	UserID    string `json:"userId"`
	MessageID string `json:"messageId"`
}

type DeleteMessageResponse struct {
	Status string `json:"status"`
}
