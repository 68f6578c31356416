package service

import (
	"context"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

// MessageStore — хранилище сообщений (postgres или memstore).
type MessageStore interface {
	Append(ctx context.Context, sender, receiver domain.UserID, content string) (*domain.Message, error)
	Get(ctx context.Context, id domain.MessageID) (*domain.Message, error)
	ListBetween(ctx context.Context, a, b domain.UserID) ([]domain.Message, error)
	ListBetweenPage(ctx context.Context, a, b domain.UserID, before string, limit int) ([]domain.Message, string, error)
	Delete(ctx context.Context, id domain.MessageID, requester domain.UserID) error
}

// UserDirectory — профили пользователей, источник снапшотов отправителя.
type UserDirectory interface {
	GetSummary(ctx context.Context, id domain.UserID) (*domain.UserSummary, error)
	ListSummaries(ctx context.Context) ([]domain.UserSummary, error)
}

// ProfileLookup — точечный запрос профиля (cache.Directory или сам UserDirectory).
type ProfileLookup interface {
	GetSummary(ctx context.Context, id domain.UserID) (*domain.UserSummary, error)
}
