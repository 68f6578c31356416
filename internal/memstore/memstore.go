package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

type idSource interface {
	NewMessageID() domain.MessageID
}

// Store — in-memory реализация хранилища сообщений и справочника
// пользователей. Семантика та же, что у postgres-репозиториев.
type Store struct {
	mu       sync.RWMutex
	messages []domain.Message // в порядке вставки
	users    map[domain.UserID]domain.UserSummary
	seq      int64

	ids idSource
	now func() time.Time
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(ids idSource, opts ...Option) *Store {
	s := &Store{
		users: make(map[domain.UserID]domain.UserSummary),
		ids:   ids,
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// PutUser добавляет или обновляет профиль.
func (s *Store) PutUser(u domain.UserSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) Append(_ context.Context, sender, receiver domain.UserID, content string) (*domain.Message, error) {
	if sender == "" {
		return nil, domain.ErrUnauthenticated
	}
	if content == "" {
		return nil, domain.ErrEmptyContent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// как FK в postgres
	if _, ok := s.users[sender]; !ok {
		return nil, domain.ErrUserNotFound
	}
	if _, ok := s.users[receiver]; !ok {
		return nil, domain.ErrUserNotFound
	}

	s.seq++
	m := domain.Message{
		ID:         s.ids.NewMessageID(),
		SenderID:   sender,
		ReceiverID: receiver,
		Content:    content,
		CreatedAt:  s.now().UTC(),
		Seq:        s.seq,
	}
	s.messages = append(s.messages, m)
	return &m, nil
}

func (s *Store) Get(_ context.Context, id domain.MessageID) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.messages {
		if s.messages[i].ID == id {
			m := s.messages[i]
			return &m, nil
		}
	}
	return nil, domain.ErrMessageNotFound
}

func (s *Store) ListBetween(_ context.Context, a, b domain.UserID) ([]domain.Message, error) {
	s.mu.RLock()
	out := s.between(a, b)
	s.mu.RUnlock()
	return out, nil
}

func (s *Store) ListBetweenPage(_ context.Context, a, b domain.UserID, before string, limit int) ([]domain.Message, string, error) {
	limit = domain.ClampLimit(limit)
	cur, err := domain.DecodeCursor(before)
	if err != nil {
		return nil, "", err
	}

	s.mu.RLock()
	all := s.between(a, b)
	s.mu.RUnlock()

	end := len(all)
	if cur != nil {
		end = sort.Search(len(all), func(i int) bool { return !cur.After(&all[i]) })
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	page := append([]domain.Message(nil), all[start:end]...)
	if page == nil {
		page = []domain.Message{}
	}

	var next string
	if len(page) == limit {
		if c, e := domain.EncodeCursor(domain.CursorFor(&page[0])); e == nil {
			next = c
		}
	}
	return page, next, nil
}

func (s *Store) Delete(_ context.Context, id domain.MessageID, requester domain.UserID) error {
	if requester == "" {
		return domain.ErrUnauthenticated
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.messages {
		if s.messages[i].ID != id {
			continue
		}
		if s.messages[i].SenderID != requester {
			return domain.ErrNotMessageOwner
		}
		s.messages = append(s.messages[:i], s.messages[i+1:]...)
		return nil
	}
	return domain.ErrMessageNotFound
}

func (s *Store) GetSummary(_ context.Context, id domain.UserID) (*domain.UserSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (s *Store) ListSummaries(_ context.Context) ([]domain.UserSummary, error) {
	s.mu.RLock()
	out := make([]domain.UserSummary, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Username != out[j].Username {
			return out[i].Username < out[j].Username
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// between вызывается под s.mu.
func (s *Store) between(a, b domain.UserID) []domain.Message {
	c := domain.Between(a, b)
	out := make([]domain.Message, 0)
	for i := range s.messages {
		if c.Includes(&s.messages[i]) {
			out = append(out, s.messages[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Before(&out[j]) })
	return out
}
