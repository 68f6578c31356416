package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/events"
	"github.com/cwrk-planet/chat-service/internal/security"
)

const secret = "ws-secret"

func newTestServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	v, err := security.NewHS256Verifier(secret)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	hub := NewHub()
	r := chi.NewRouter()
	r.Get("/ws/chat/{userId}", NewServer(hub, v).HandleWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, hub
}

func dial(t *testing.T, srv *httptest.Server, actor, other domain.UserID) *websocket.Conn {
	t.Helper()
	tok, _ := security.SignHS256(secret, actor, time.Minute)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat/" + string(other) + "?access_token=" + tok
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitSubscribers(t *testing.T, hub *Hub, key string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Count(key) < n {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers for %s: %d, want %d", key, hub.Count(key), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHandleWS_BothParticipantsReceiveConversationEvents(t *testing.T) {
	srv, hub := newTestServer(t)

	alice := dial(t, srv, "u1", "u2")
	bob := dial(t, srv, "u2", "u1")
	stranger := dial(t, srv, "u3", "u2")

	key := domain.Between("u1", "u2").Key()
	waitSubscribers(t, hub, key, 2)
	waitSubscribers(t, hub, domain.Between("u3", "u2").Key(), 1)

	msg := &domain.Message{ID: "m1", SenderID: "u1", ReceiverID: "u2", Content: "hi"}
	hub.Deliver(events.MessageCreated(msg))

	for name, c := range map[string]*websocket.Conn{"alice": alice, "bob": bob} {
		_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
		var ev events.Event
		if err := c.ReadJSON(&ev); err != nil {
			t.Fatalf("%s read: %v", name, err)
		}
		if ev.Kind != events.KindMessageCreated || ev.Message == nil || ev.Message.ID != "m1" {
			t.Fatalf("%s got %+v", name, ev)
		}
	}

	_ = stranger.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var ev events.Event
	if err := stranger.ReadJSON(&ev); err == nil {
		t.Fatalf("other conversation received %+v", ev)
	}
}

func TestHandleWS_RejectsMissingToken(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/ws/chat/u2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestHub_RemoveDropsEmptyConversation(t *testing.T) {
	hub := NewHub()
	c := &fakeConn{conv: "a:b"}
	hub.Add(c)
	if hub.Count("a:b") != 1 {
		t.Fatalf("add")
	}
	hub.Remove(c)
	if hub.Count("a:b") != 0 {
		t.Fatalf("remove")
	}
}

func TestHub_CountsDrops(t *testing.T) {
	hub := NewHub()
	drops := 0
	hub.OnDrop(func() { drops++ })
	hub.Add(&fakeConn{conv: "a:b", full: true})

	hub.Deliver(events.Event{Conversation: "a:b"})
	hub.Deliver(events.Event{Conversation: "x:y"})
	if drops != 1 {
		t.Fatalf("drops = %d, want 1", drops)
	}
}

type fakeConn struct {
	conv string
	full bool
}

func (f *fakeConn) Send(events.Event) bool { return !f.full }
func (f *fakeConn) Close() error           { return nil }
func (f *fakeConn) UserID() string         { return "" }
func (f *fakeConn) Conversation() string   { return f.conv }

func TestHub_SeparatorInUserIDDoesNotLeak(t *testing.T) {
	hub := NewHub()
	listener := &recConn{conv: domain.Between("a", "b:c").Key()}
	hub.Add(listener)

	foreign := &domain.Message{ID: "m1", SenderID: "a:b", ReceiverID: "c", Content: "secret"}
	hub.Deliver(events.MessageCreated(foreign))

	if len(listener.got) != 0 {
		t.Fatalf("conversation(a, b:c) received %+v", listener.got)
	}
}

type recConn struct {
	conv string
	got  []events.Event
}

func (r *recConn) Send(ev events.Event) bool { r.got = append(r.got, ev); return true }
func (r *recConn) Close() error              { return nil }
func (r *recConn) UserID() string            { return "" }
func (r *recConn) Conversation() string      { return r.conv }
