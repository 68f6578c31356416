package domain

import (
	"strings"
	"time"
)

type MessageID string

const ImageContentPrefix = "data:image"

type Message struct {
	ID         MessageID `db:"id" json:"id"`
	SenderID   UserID    `db:"sender_id" json:"senderId"`
	ReceiverID UserID    `db:"receiver_id" json:"receiverId"`
	Content    string    `db:"content" json:"content"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	// Seq — порядок вставки в хранилище, разрешает равные created_at.
	Seq int64 `db:"seq" json:"-"`

	// Sender — снапшот профиля отправителя на момент выдачи, не живая ссылка.
	Sender *UserSummary `db:"-" json:"sender,omitempty"`
}

// IsImage сообщает, что content — inline-картинка (data URI), а не текст.
func (m *Message) IsImage() bool {
	return IsImageContent(m.Content)
}

func IsImageContent(content string) bool {
	return strings.HasPrefix(content, ImageContentPrefix)
}

// Before задаёт порядок внутри диалога: created_at, затем порядок вставки.
func (m *Message) Before(o *Message) bool {
	if !m.CreatedAt.Equal(o.CreatedAt) {
		return m.CreatedAt.Before(o.CreatedAt)
	}
	return m.Seq < o.Seq
}
