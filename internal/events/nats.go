package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const DefaultSubjectPrefix = "chat.conversations"

// NATSBridge публикует события в <prefix>.<conversation> и слушает
// <prefix>.>, чтобы ws-подписчики на любом инстансе получили событие.
type NATSBridge struct {
	nc     *nats.Conn
	owned  bool
	prefix string
	sink   Sink
	sub    *nats.Subscription
}

func ConnectNATS(url, prefix string, sink Sink) (*NATSBridge, error) {
	nc, err := nats.Connect(url,
		nats.Name("chat-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", slog.Any("err", err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	b, err := NewNATSBridge(nc, prefix, sink)
	if err != nil {
		nc.Close()
		return nil, err
	}
	b.owned = true
	return b, nil
}

func NewNATSBridge(nc *nats.Conn, prefix string, sink Sink) (*NATSBridge, error) {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	b := &NATSBridge{nc: nc, prefix: prefix, sink: sink}

	sub, err := nc.Subscribe(prefix+".>", b.handle)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s.>: %w", prefix, err)
	}
	b.sub = sub
	return b, nil
}

func (b *NATSBridge) Publish(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	subject := b.Subject(ev.Conversation)
	if err := b.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish event to subject '%s': %w", subject, err)
	}
	return nil
}

// Subject: conversation — domain.Conversation.Key(), в нём нет '.', '*',
// '>' и пробелов, поэтому он идёт в subject без преобразований.
func (b *NATSBridge) Subject(conversation string) string {
	return b.prefix + "." + conversation
}

func (b *NATSBridge) handle(msg *nats.Msg) {
	var ev Event
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		slog.Warn("nats: bad event payload", slog.String("subject", msg.Subject), slog.Any("err", err))
		return
	}
	b.sink.Deliver(ev)
}

func (b *NATSBridge) Close() error {
	var err error
	if b.sub != nil {
		err = b.sub.Unsubscribe()
	}
	if b.owned {
		b.nc.Close()
	}
	return err
}
