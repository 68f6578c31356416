package ws

import (
	"sync"

	"github.com/cwrk-planet/chat-service/internal/events"
)

type Conn interface {
	// Send не блокирует: false — очередь соединения переполнена.
	Send(ev events.Event) bool
	Close() error
	UserID() string
	Conversation() string
}

// Hub держит ws-соединения по ключу диалога и реализует events.Sink.
type Hub struct {
	mu    sync.RWMutex
	convs map[string]map[Conn]struct{} // conversation key -> set of connections

	onDrop func()
}

func NewHub() *Hub {
	return &Hub{convs: make(map[string]map[Conn]struct{})}
}

// OnDrop вызывается, когда событие не влезло в очередь соединения.
func (h *Hub) OnDrop(fn func()) { h.onDrop = fn }

func (h *Hub) Add(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cs, ok := h.convs[c.Conversation()]
	if !ok {
		cs = make(map[Conn]struct{})
		h.convs[c.Conversation()] = cs
	}
	cs[c] = struct{}{}
}

func (h *Hub) Remove(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cs, ok := h.convs[c.Conversation()]; ok {
		delete(cs, c)
		if len(cs) == 0 {
			delete(h.convs, c.Conversation())
		}
	}
}

func (h *Hub) Deliver(ev events.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.convs[ev.Conversation] {
		if !c.Send(ev) && h.onDrop != nil {
			h.onDrop()
		}
	}
}

func (h *Hub) Count(conversation string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.convs[conversation])
}
