package domain

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

// PageCursor указывает на самое старое сообщение выданной страницы.
// Следующая страница — сообщения строго раньше него.
type PageCursor struct {
	CreatedAt time.Time `json:"created_at"`
	Seq       int64     `json:"seq"`
}

func CursorFor(m *Message) PageCursor {
	return PageCursor{CreatedAt: m.CreatedAt, Seq: m.Seq}
}

// After: сообщение m лежит строго раньше курсора.
func (c PageCursor) After(m *Message) bool {
	return m.Before(&Message{CreatedAt: c.CreatedAt, Seq: c.Seq})
}

func EncodeCursor(c PageCursor) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeCursor: пустая строка — первая (самая свежая) страница, nil.
func DecodeCursor(s string) (*PageCursor, error) {
	if s == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: decode base64: %v", ErrInvalidCursor, err)
	}
	var c PageCursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: decode json: %v", ErrInvalidCursor, err)
	}
	return &c, nil
}

// ClampLimit приводит limit к [1, MaxPageLimit], 0 — значение по умолчанию.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageLimit
	}
	if limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}
