package events

import (
	"context"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

type Kind string

const (
	KindMessageCreated Kind = "message_created"
	KindMessageDeleted Kind = "message_deleted"
)

// Event — изменение в диалоге. Conversation — domain.Conversation.Key(),
// по нему hub находит подписчиков.
type Event struct {
	Kind         Kind             `json:"type"`
	Conversation string           `json:"conversation"`
	Message      *domain.Message  `json:"message,omitempty"`
	MessageID    domain.MessageID `json:"messageId,omitempty"`
}

func MessageCreated(m *domain.Message) Event {
	return Event{
		Kind:         KindMessageCreated,
		Conversation: domain.Between(m.SenderID, m.ReceiverID).Key(),
		Message:      m,
		MessageID:    m.ID,
	}
}

func MessageDeleted(m *domain.Message) Event {
	return Event{
		Kind:         KindMessageDeleted,
		Conversation: domain.Between(m.SenderID, m.ReceiverID).Key(),
		MessageID:    m.ID,
	}
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Sink принимает события для локальных подписчиков (ws.Hub).
type Sink interface {
	Deliver(ev Event)
}

// Local отдаёт события напрямую в sink этого же процесса.
type Local struct {
	sink Sink
}

func NewLocal(sink Sink) *Local {
	return &Local{sink: sink}
}

func (l *Local) Publish(_ context.Context, ev Event) error {
	l.sink.Deliver(ev)
	return nil
}

// Nop — для конфигураций без push-канала.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
