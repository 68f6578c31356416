package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/logger"
)

const (
	keyPrefix = "chat:user:"

	DefaultTTL = 5 * time.Minute
)

type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type backing interface {
	GetSummary(ctx context.Context, id domain.UserID) (*domain.UserSummary, error)
}

// Directory кэширует снапшоты профилей для записи сообщений: проверка
// существования участников и снапшот отправителя в ответе на create.
// Чтение диалога и список пользователей идут мимо кэша.
// Любая ошибка кэша — warn и запрос в исходный справочник.
type Directory struct {
	next backing
	kv   KV
	ttl  time.Duration
}

func NewDirectory(next backing, kv KV, ttl time.Duration) *Directory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Directory{next: next, kv: kv, ttl: ttl}
}

func (d *Directory) GetSummary(ctx context.Context, id domain.UserID) (*domain.UserSummary, error) {
	key := keyPrefix + string(id)

	var u domain.UserSummary
	if d.load(ctx, key, &u) {
		return &u, nil
	}

	got, err := d.next.GetSummary(ctx, id)
	if err != nil {
		return nil, err
	}
	d.store(ctx, key, got)
	return got, nil
}

func (d *Directory) load(ctx context.Context, key string, dst any) bool {
	raw, ok, err := d.kv.Get(ctx, key)
	if err != nil {
		logger.FromContext(ctx).Warn("profile cache get failed", slog.String("key", key), slog.Any("err", err))
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		logger.FromContext(ctx).Warn("profile cache: bad entry", slog.String("key", key), slog.Any("err", err))
		return false
	}
	return true
}

func (d *Directory) store(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := d.kv.Set(ctx, key, raw, d.ttl); err != nil {
		logger.FromContext(ctx).Warn("profile cache set failed", slog.String("key", key), slog.Any("err", err))
	}
}
