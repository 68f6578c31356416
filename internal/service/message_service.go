package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/events"
	"github.com/cwrk-planet/chat-service/internal/logger"
	"github.com/cwrk-planet/chat-service/internal/metrics"
)

// DefaultMaxContentBytes совпадает с лимитом тела запроса (10mb):
// inline-картинка в base64 должна пролезать целиком.
const DefaultMaxContentBytes = 10 << 20

type MessageService struct {
	store     MessageStore
	users     UserDirectory
	profiles  ProfileLookup
	publisher events.Publisher

	maxContentBytes int
	pageLimit       int
}

type Option func(*MessageService)

func WithPublisher(p events.Publisher) Option {
	return func(s *MessageService) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithMaxContentBytes(n int) Option {
	return func(s *MessageService) {
		if n > 0 {
			s.maxContentBytes = n
		}
	}
}

// WithProfileCache — источник профилей для CreateMessage (проверка
// участников и снапшот отправителя). Чтение диалога и список
// пользователей всегда идут в UserDirectory.
func WithProfileCache(p ProfileLookup) Option {
	return func(s *MessageService) {
		if p != nil {
			s.profiles = p
		}
	}
}

// WithDefaultPageLimit — размер страницы, когда клиент limit не указал.
func WithDefaultPageLimit(n int) Option {
	return func(s *MessageService) {
		if n > 0 {
			s.pageLimit = domain.ClampLimit(n)
		}
	}
}

func NewMessageService(store MessageStore, users UserDirectory, opts ...Option) *MessageService {
	s := &MessageService{
		store:           store,
		users:           users,
		publisher:       events.Nop{},
		maxContentBytes: DefaultMaxContentBytes,
		pageLimit:       domain.DefaultPageLimit,
	}
	s.profiles = users
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateMessage сохраняет сообщение actor -> receiver и возвращает его
// вместе со снапшотом профиля отправителя. Content не трансформируется.
func (s *MessageService) CreateMessage(ctx context.Context, actor, receiver domain.UserID, content string) (*domain.Message, error) {
	if actor == "" {
		return nil, domain.ErrUnauthenticated
	}
	if content == "" {
		return nil, domain.ErrEmptyContent
	}
	if len(content) > s.maxContentBytes {
		return nil, domain.ErrContentTooLarge
	}

	sender, err := s.profiles.GetSummary(ctx, actor)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			// валидный токен, но профиля нет
			return nil, domain.ErrUnauthenticated
		}
		return nil, fmt.Errorf("users.GetSummary sender: %w", err)
	}
	if _, err := s.profiles.GetSummary(ctx, receiver); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("users.GetSummary receiver: %w", err)
	}

	msg, err := s.store.Append(ctx, actor, receiver, content)
	if err != nil {
		return nil, fmt.Errorf("store.Append: %w", err)
	}
	msg.Sender = sender

	metrics.MessagesCreated.Inc()
	if msg.IsImage() {
		metrics.ImageMessagesCreated.Inc()
	}
	s.publish(ctx, events.MessageCreated(msg))
	return msg, nil
}

// ListMessages — весь диалог actor<->other по возрастанию времени.
func (s *MessageService) ListMessages(ctx context.Context, actor, other domain.UserID) ([]domain.Message, error) {
	if actor == "" {
		return nil, domain.ErrUnauthenticated
	}

	msgs, err := s.store.ListBetween(ctx, actor, other)
	if err != nil {
		return nil, fmt.Errorf("store.ListBetween: %w", err)
	}
	metrics.ConversationReads.Inc()

	if err := s.attachSenders(ctx, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListMessagesPage — страница диалога (см. MessageStore.ListBetweenPage).
func (s *MessageService) ListMessagesPage(ctx context.Context, actor, other domain.UserID, before string, limit int) ([]domain.Message, string, error) {
	if actor == "" {
		return nil, "", domain.ErrUnauthenticated
	}

	if limit <= 0 {
		limit = s.pageLimit
	}
	msgs, next, err := s.store.ListBetweenPage(ctx, actor, other, before, limit)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCursor) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("store.ListBetweenPage: %w", err)
	}
	metrics.ConversationReads.Inc()

	if err := s.attachSenders(ctx, msgs); err != nil {
		return nil, "", err
	}
	return msgs, next, nil
}

// DeleteMessage удаляет сообщение диалога actor<->other. Сообщение из
// другого диалога неотличимо от отсутствующего.
func (s *MessageService) DeleteMessage(ctx context.Context, actor, other domain.UserID, id domain.MessageID) error {
	if actor == "" {
		return domain.ErrUnauthenticated
	}

	msg, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			return err
		}
		return fmt.Errorf("store.Get: %w", err)
	}
	if !domain.Between(actor, other).Includes(msg) {
		return domain.ErrMessageNotFound
	}

	if err := s.store.Delete(ctx, id, actor); err != nil {
		if errors.Is(err, domain.ErrNotMessageOwner) || errors.Is(err, domain.ErrMessageNotFound) {
			return err
		}
		return fmt.Errorf("store.Delete: %w", err)
	}

	metrics.MessagesDeleted.Inc()
	s.publish(ctx, events.MessageDeleted(msg))
	return nil
}

// ListConversationPartners — все пользователи, кроме exclude (пустой — все).
func (s *MessageService) ListConversationPartners(ctx context.Context, exclude domain.UserID) ([]domain.UserSummary, error) {
	users, err := s.users.ListSummaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("users.ListSummaries: %w", err)
	}
	if exclude == "" {
		return users, nil
	}
	return lo.Filter(users, func(u domain.UserSummary, _ int) bool { return u.ID != exclude }), nil
}

// attachSenders: один запрос профиля на каждого различного отправителя.
func (s *MessageService) attachSenders(ctx context.Context, msgs []domain.Message) error {
	senderIDs := lo.Uniq(lo.Map(msgs, func(m domain.Message, _ int) domain.UserID { return m.SenderID }))

	profiles := make(map[domain.UserID]*domain.UserSummary, len(senderIDs))
	for _, id := range senderIDs {
		u, err := s.users.GetSummary(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				continue
			}
			return fmt.Errorf("users.GetSummary: %w", err)
		}
		profiles[id] = u
	}

	for i := range msgs {
		msgs[i].Sender = profiles[msgs[i].SenderID]
	}
	return nil
}

func (s *MessageService) publish(ctx context.Context, ev events.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		// push — best-effort, поллинг всё равно догонит
		logger.FromContext(ctx).Warn("publish event failed",
			slog.String("type", string(ev.Kind)),
			slog.String("message_id", string(ev.MessageID)),
			slog.Any("err", err),
		)
	}
}
