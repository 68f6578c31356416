package domain

import "encoding/base64"

// Conversation — неупорядоченная пара участников. В хранилище не живёт:
// диалог вычисляется фильтром по sender_id/receiver_id при каждом запросе.
type Conversation struct {
	A UserID
	B UserID
}

func Between(a, b UserID) Conversation {
	return Conversation{A: a, B: b}
}

// Includes — симметричный предикат: (sender=A AND receiver=B) OR (sender=B AND receiver=A).
func (c Conversation) Includes(m *Message) bool {
	return (m.SenderID == c.A && m.ReceiverID == c.B) ||
		(m.SenderID == c.B && m.ReceiverID == c.A)
}

func (c Conversation) IsSelf() bool { return c.A == c.B }

func (c Conversation) Has(id UserID) bool { return c.A == id || c.B == id }

// Key — каноничный ключ пары. Используется только для маршрутизации
// push-событий, не как ключ хранения. id кодируются base64url без
// паддинга: разделитель ':' в них не встречается, а сам ключ годится
// как токен NATS-subject.
func (c Conversation) Key() string {
	a, b := c.A, c.B
	if b < a {
		a, b = b, a
	}
	return base64.RawURLEncoding.EncodeToString([]byte(a)) + ":" +
		base64.RawURLEncoding.EncodeToString([]byte(b))
}

// Equal: conversation(A,B) == conversation(B,A).
func (c Conversation) Equal(o Conversation) bool {
	return (c.A == o.A && c.B == o.B) || (c.A == o.B && c.B == o.A)
}
