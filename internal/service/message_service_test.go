package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-service/internal/attachment"
	"github.com/cwrk-planet/chat-service/internal/cache"
	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/events"
	"github.com/cwrk-planet/chat-service/internal/idgen"
	"github.com/cwrk-planet/chat-service/internal/memstore"
)

type recPublisher struct {
	mu  sync.Mutex
	evs []events.Event
	err error
}

func (p *recPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evs = append(p.evs, ev)
	return p.err
}

func avatar(s string) *string { return &s }

func newService(t *testing.T, opts ...Option) (*MessageService, *memstore.Store) {
	t.Helper()
	st := memstore.New(idgen.Fallback())
	st.PutUser(domain.UserSummary{ID: "u1", Username: "alice", AvatarURL: avatar("https://cdn/a.png")})
	st.PutUser(domain.UserSummary{ID: "u2", Username: "bob"})
	st.PutUser(domain.UserSummary{ID: "u3", Username: "carol"})
	return NewMessageService(st, st, opts...), st
}

func TestCreateMessage_ReturnsSenderSnapshotAndIsVisibleBothWays(t *testing.T) {
	ctx := context.Background()
	pub := &recPublisher{}
	svc, _ := newService(t, WithPublisher(pub))

	m, err := svc.CreateMessage(ctx, "u1", "u2", "hi")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.SenderID != "u1" || m.ReceiverID != "u2" || m.Content != "hi" {
		t.Fatalf("unexpected message: %+v", m)
	}
	if m.Sender == nil || m.Sender.Username != "alice" || m.Sender.AvatarURL == nil {
		t.Fatalf("sender snapshot missing: %+v", m.Sender)
	}

	forBob, err := svc.ListMessages(ctx, "u2", "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(forBob) != 1 || forBob[0].ID != m.ID || forBob[0].Sender == nil || forBob[0].Sender.ID != "u1" {
		t.Fatalf("receiver view: %+v", forBob)
	}

	if len(pub.evs) != 1 || pub.evs[0].Kind != events.KindMessageCreated {
		t.Fatalf("expected one created event, got %+v", pub.evs)
	}
}

func TestCreateMessage_Validation(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t, WithMaxContentBytes(16))

	cases := []struct {
		name     string
		actor    domain.UserID
		receiver domain.UserID
		content  string
		want     error
	}{
		{"no actor", "", "u2", "hi", domain.ErrUnauthenticated},
		{"empty", "u1", "u2", "", domain.ErrEmptyContent},
		{"too large", "u1", "u2", strings.Repeat("x", 17), domain.ErrContentTooLarge},
		{"actor without profile", "ghost", "u2", "hi", domain.ErrUnauthenticated},
		{"unknown receiver", "u1", "ghost", "hi", domain.ErrUserNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CreateMessage(ctx, tc.actor, tc.receiver, tc.content); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}

	if got, _ := st.ListBetween(ctx, "u1", "u2"); len(got) != 0 {
		t.Fatalf("rejected messages must not be stored: %v", got)
	}
}

func TestCreateMessage_ContentIsNotTransformed(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	raw := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01}
	img := attachment.EncodeJPEG(raw)
	padded := "  keep my spaces  "

	for _, content := range []string{img, padded} {
		if _, err := svc.CreateMessage(ctx, "u1", "u2", content); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	msgs, _ := svc.ListMessages(ctx, "u1", "u2")
	if msgs[0].Content != img || !msgs[0].IsImage() {
		t.Fatalf("image payload changed")
	}
	_, decoded, err := attachment.Decode(msgs[0].Content)
	if err != nil || string(decoded) != string(raw) {
		t.Fatalf("image bytes changed: %v", err)
	}
	if msgs[1].Content != padded {
		t.Fatalf("text content changed: %q", msgs[1].Content)
	}
}

func TestListMessages_IsolatedPerConversation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, _ = svc.CreateMessage(ctx, "u1", "u2", "to bob")
	_, _ = svc.CreateMessage(ctx, "u1", "u3", "to carol")
	_, _ = svc.CreateMessage(ctx, "u3", "u2", "carol to bob")

	got, _ := svc.ListMessages(ctx, "u1", "u2")
	if len(got) != 1 || got[0].Content != "to bob" {
		t.Fatalf("leak between conversations: %+v", got)
	}
	if _, err := svc.ListMessages(ctx, "", "u2"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("anonymous list: %v", err)
	}
}

func TestListMessagesPage(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	for i := 0; i < 5; i++ {
		_, _ = svc.CreateMessage(ctx, "u1", "u2", "m")
	}

	page, next, err := svc.ListMessagesPage(ctx, "u2", "u1", "", 3)
	if err != nil || len(page) != 3 || next == "" {
		t.Fatalf("first page: %d %q %v", len(page), next, err)
	}
	if page[0].Sender == nil {
		t.Fatalf("page messages must carry sender")
	}
	rest, next, err := svc.ListMessagesPage(ctx, "u2", "u1", next, 3)
	if err != nil || len(rest) != 2 || next != "" {
		t.Fatalf("second page: %d %q %v", len(rest), next, err)
	}
	if _, _, err := svc.ListMessagesPage(ctx, "u2", "u1", "%%", 3); !errors.Is(err, domain.ErrInvalidCursor) {
		t.Fatalf("bad cursor: %v", err)
	}
}

func TestListMessagesPage_DefaultLimit(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, WithDefaultPageLimit(2))
	for i := 0; i < 3; i++ {
		_, _ = svc.CreateMessage(ctx, "u1", "u2", "m")
	}

	page, next, err := svc.ListMessagesPage(ctx, "u1", "u2", "", 0)
	if err != nil || len(page) != 2 || next == "" {
		t.Fatalf("default page: %d %q %v", len(page), next, err)
	}
}

func TestDeleteMessage(t *testing.T) {
	ctx := context.Background()
	pub := &recPublisher{}
	svc, _ := newService(t, WithPublisher(pub))

	m, _ := svc.CreateMessage(ctx, "u1", "u2", "oops")

	if err := svc.DeleteMessage(ctx, "u2", "u1", m.ID); !errors.Is(err, domain.ErrNotMessageOwner) {
		t.Fatalf("receiver delete: %v", err)
	}
	if err := svc.DeleteMessage(ctx, "u1", "u3", m.ID); !errors.Is(err, domain.ErrMessageNotFound) {
		t.Fatalf("wrong conversation: %v", err)
	}
	if err := svc.DeleteMessage(ctx, "", "u2", m.ID); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("anonymous delete: %v", err)
	}
	if err := svc.DeleteMessage(ctx, "u1", "u2", m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.DeleteMessage(ctx, "u1", "u2", m.ID); !errors.Is(err, domain.ErrMessageNotFound) {
		t.Fatalf("repeat delete: %v", err)
	}

	last := pub.evs[len(pub.evs)-1]
	if last.Kind != events.KindMessageDeleted || last.MessageID != m.ID {
		t.Fatalf("deleted event: %+v", last)
	}
}

func TestPublishFailureDoesNotFailCreate(t *testing.T) {
	svc, _ := newService(t, WithPublisher(&recPublisher{err: errors.New("nats down")}))
	if _, err := svc.CreateMessage(context.Background(), "u1", "u2", "hi"); err != nil {
		t.Fatalf("create must succeed without push: %v", err)
	}
}

func TestListConversationPartners(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	all, err := svc.ListConversationPartners(ctx, "")
	if err != nil || len(all) != 3 {
		t.Fatalf("all users: %d %v", len(all), err)
	}
	others, _ := svc.ListConversationPartners(ctx, "u1")
	if len(others) != 2 {
		t.Fatalf("caller must be excluded: %+v", others)
	}
	for _, u := range others {
		if u.ID == "u1" {
			t.Fatalf("caller listed")
		}
	}
}

type mapKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *mapKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapKV) Set(_ context.Context, key string, val []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = val
	return nil
}

func (m *mapKV) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func TestProfileCache_ReadsStayLive(t *testing.T) {
	ctx := context.Background()
	st := memstore.New(idgen.Fallback())
	st.PutUser(domain.UserSummary{ID: "u1", Username: "alice"})
	st.PutUser(domain.UserSummary{ID: "u2", Username: "bob"})

	profiles := cache.NewDirectory(st, &mapKV{data: map[string][]byte{}}, time.Hour)
	svc := NewMessageService(st, st, WithProfileCache(profiles))

	if _, err := svc.CreateMessage(ctx, "u1", "u2", "hi"); err != nil {
		t.Fatalf("create: %v", err)
	}

	st.PutUser(domain.UserSummary{ID: "u1", Username: "alice2"})
	st.PutUser(domain.UserSummary{ID: "u3", Username: "carol"})

	msgs, err := svc.ListMessages(ctx, "u2", "u1")
	if err != nil || len(msgs) != 1 {
		t.Fatalf("list: %v %v", msgs, err)
	}
	if msgs[0].Sender == nil || msgs[0].Sender.Username != "alice2" {
		t.Fatalf("sender must reflect the current profile: %+v", msgs[0].Sender)
	}

	roster, err := svc.ListConversationPartners(ctx, "")
	if err != nil || len(roster) != 3 {
		t.Fatalf("roster must include new users: %v %v", roster, err)
	}

	// новый пользователь сразу доступен как получатель
	if _, err := svc.CreateMessage(ctx, "u1", "u3", "welcome"); err != nil {
		t.Fatalf("create to new user: %v", err)
	}
}

func TestCreateMessage_WhitespaceIsContent(t *testing.T) {
	svc, _ := newService(t)

	m, err := svc.CreateMessage(context.Background(), "u1", "u2", "   \n")
	if err != nil {
		t.Fatalf("whitespace-only message must be accepted: %v", err)
	}
	if m.Content != "   \n" {
		t.Fatalf("content changed: %q", m.Content)
	}
}
