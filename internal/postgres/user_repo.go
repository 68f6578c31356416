package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

// UserRepository читает профили из users. Таблицу ведёт сервис профилей.
type UserRepository struct {
	q querier
}

func NewUserRepository(q querier) *UserRepository {
	return &UserRepository{q: q}
}

func (r *UserRepository) GetSummary(ctx context.Context, id domain.UserID) (*domain.UserSummary, error) {
	var u domain.UserSummary
	err := r.q.QueryRow(ctx, queryGetUserSummary, id).Scan(&u.ID, &u.Username, &u.AvatarURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) ListSummaries(ctx context.Context) ([]domain.UserSummary, error) {
	rows, err := r.q.Query(ctx, queryListUserSummaries)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := make([]domain.UserSummary, 0)
	for rows.Next() {
		var u domain.UserSummary
		if err := rows.Scan(&u.ID, &u.Username, &u.AvatarURL); err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
