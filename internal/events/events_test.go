package events

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

type recSink struct {
	mu  sync.Mutex
	got []Event
	ch  chan struct{}
}

func newRecSink() *recSink { return &recSink{ch: make(chan struct{}, 16)} }

func (s *recSink) Deliver(ev Event) {
	s.mu.Lock()
	s.got = append(s.got, ev)
	s.mu.Unlock()
	s.ch <- struct{}{}
}

func TestMessageEvents_UseSymmetricKey(t *testing.T) {
	ab := MessageCreated(&domain.Message{ID: "m1", SenderID: "a", ReceiverID: "b"})
	ba := MessageDeleted(&domain.Message{ID: "m1", SenderID: "b", ReceiverID: "a"})
	if ab.Conversation != ba.Conversation {
		t.Fatalf("keys differ: %q vs %q", ab.Conversation, ba.Conversation)
	}
	if ab.Kind != KindMessageCreated || ab.Message == nil {
		t.Fatalf("created event: %+v", ab)
	}
	if ba.Kind != KindMessageDeleted || ba.Message != nil || ba.MessageID != "m1" {
		t.Fatalf("deleted event: %+v", ba)
	}
}

func TestLocal_DeliversToSink(t *testing.T) {
	sink := newRecSink()
	if err := NewLocal(sink).Publish(context.Background(), Event{Kind: KindMessageCreated, Conversation: "a:b"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(sink.got) != 1 || sink.got[0].Conversation != "a:b" {
		t.Fatalf("sink got %v", sink.got)
	}
}

func TestNATSBridge_SubjectKeepsConversationsApart(t *testing.T) {
	b := &NATSBridge{prefix: "chat.conversations"}

	one := b.Subject(domain.Between("user.1", "user*2").Key())
	two := b.Subject(domain.Between("user_1", "user_2").Key())
	if one == two {
		t.Fatalf("different conversations share subject %q", one)
	}
	for _, s := range []string{one, two} {
		if strings.Count(s, ".") != 2 || strings.ContainsAny(s, "*> ") {
			t.Fatalf("subject %q must be <prefix>.<single token>", s)
		}
	}
}

// CHAT_TEST_NATS_URL=nats://127.0.0.1:4222 go test ./internal/events
func TestNATSBridge_RoundTrip(t *testing.T) {
	url := os.Getenv("CHAT_TEST_NATS_URL")
	if url == "" {
		t.Skip("CHAT_TEST_NATS_URL not set")
	}

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer nc.Close()

	sink := newRecSink()
	b, err := NewNATSBridge(nc, "chat-test", sink)
	if err != nil {
		t.Fatalf("bridge: %v", err)
	}
	defer func() { _ = b.Close() }()
	if err := nc.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	ev := MessageCreated(&domain.Message{ID: "m1", SenderID: "a", ReceiverID: "b", Content: "hi"})
	if err := b.Publish(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case <-sink.ch:
	case <-time.After(3 * time.Second):
		t.Fatalf("event not delivered")
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.got[0].Message == nil || sink.got[0].Message.Content != "hi" {
		t.Fatalf("payload lost: %+v", sink.got[0])
	}
}
