package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

type idSource interface {
	NewMessageID() domain.MessageID
}

type MessageRepository struct {
	q   querier
	ids idSource
}

func NewMessageRepository(q querier, ids idSource) *MessageRepository {
	return &MessageRepository{q: q, ids: ids}
}

func (r *MessageRepository) Append(ctx context.Context, sender, receiver domain.UserID, content string) (*domain.Message, error) {
	if sender == "" {
		return nil, domain.ErrUnauthenticated
	}
	if content == "" {
		return nil, domain.ErrEmptyContent
	}

	var m domain.Message
	err := r.q.QueryRow(ctx, queryInsertMessage, r.ids.NewMessageID(), sender, receiver, content).
		Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.CreatedAt, &m.Seq)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", mapPgError(err))
	}
	return &m, nil
}

func (r *MessageRepository) Get(ctx context.Context, id domain.MessageID) (*domain.Message, error) {
	var m domain.Message
	err := r.q.QueryRow(ctx, queryGetMessage, id).
		Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.CreatedAt, &m.Seq)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return &m, nil
}

// ListBetween — весь диалог a<->b по возрастанию (created_at, seq).
func (r *MessageRepository) ListBetween(ctx context.Context, a, b domain.UserID) ([]domain.Message, error) {
	rows, err := r.q.Query(ctx, queryListBetween, a, b)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out, err := scanMessages(rows)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return out, nil
}

// ListBetweenPage — до limit самых свежих сообщений строго раньше курсора before,
// отданные по возрастанию. next пуст, когда старее ничего нет.
func (r *MessageRepository) ListBetweenPage(ctx context.Context, a, b domain.UserID, before string, limit int) ([]domain.Message, string, error) {
	limit = domain.ClampLimit(limit)
	cur, err := domain.DecodeCursor(before)
	if err != nil {
		return nil, "", err
	}

	var createdAt, seq any
	if cur != nil {
		createdAt = cur.CreatedAt
		seq = cur.Seq
	}

	rows, err := r.q.Query(ctx, queryListBetweenPage, a, b, createdAt, limit, seq)
	if err != nil {
		return nil, "", fmt.Errorf("list page: %w", err)
	}
	out, err := scanMessages(rows)
	if err != nil {
		return nil, "", fmt.Errorf("list page: %w", err)
	}

	var next string
	if len(out) == limit {
		oldest := out[len(out)-1]
		if c, e := domain.EncodeCursor(domain.CursorFor(&oldest)); e == nil {
			next = c
		}
	}

	// в запросе DESC, наружу — по возрастанию
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, next, nil
}

// Delete удаляет сообщение только от имени отправителя.
func (r *MessageRepository) Delete(ctx context.Context, id domain.MessageID, requester domain.UserID) error {
	if requester == "" {
		return domain.ErrUnauthenticated
	}

	tag, err := r.q.Exec(ctx, queryDeleteOwnMessage, id, requester)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// ничего не удалили: либо сообщения нет, либо оно чужое
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return domain.ErrNotMessageOwner
}

func scanMessages(rows pgx.Rows) ([]domain.Message, error) {
	defer rows.Close()

	out := make([]domain.Message, 0)
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.CreatedAt, &m.Seq); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
