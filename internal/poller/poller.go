package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/cwrk-planet/chat-service/internal/attachment"
	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/logger"
)

const (
	DefaultInterval   = 2 * time.Second
	DefaultMaxBackoff = 30 * time.Second
)

var (
	ErrAlreadyStarted = errors.New("poller: already started")
	ErrStopped        = errors.New("poller: stopped")
)

type State int

const (
	StateIdle State = iota
	StateLoading
	StateSynced
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateSynced:
		return "synced"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Source — то, что поллер умеет делать с сервером (chatclient.Client).
type Source interface {
	ListMessages(ctx context.Context, other domain.UserID) ([]domain.Message, error)
	SendMessage(ctx context.Context, to domain.UserID, content string) (*domain.Message, error)
	DeleteMessage(ctx context.Context, other domain.UserID, id domain.MessageID) error
}

type Config struct {
	Interval   time.Duration
	MaxBackoff time.Duration
	// OnChange получает новый вид диалога при каждом его изменении.
	// Вызывается без удержания внутренних блокировок.
	OnChange func([]domain.Message)
}

type pendingMsg struct {
	msg domain.Message
	gen uint64 // номер последнего начатого fetch на момент отправки
}

// Poller держит локальный упорядоченный вид одного диалога и раз в
// Interval полностью перечитывает его с сервера.
type Poller struct {
	src   Source
	other domain.UserID
	cfg   Config

	mu      sync.Mutex
	state   State
	view    []domain.Message
	pending []pendingMsg
	lastErr error
	syncGen uint64
	// appliedGen — номер самого свежего fetch, чей ответ уже применён.
	appliedGen uint64

	cancel context.CancelFunc
	done   chan struct{}
}

func New(src Source, other domain.UserID, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxBackoff < cfg.Interval {
		cfg.MaxBackoff = DefaultMaxBackoff
		if cfg.MaxBackoff < cfg.Interval {
			cfg.MaxBackoff = cfg.Interval
		}
	}
	return &Poller{src: src, other: other, cfg: cfg, state: StateIdle}
}

// Start делает первую загрузку синхронно и запускает периодический
// цикл. Ошибка первой загрузки возвращается, но цикл всё равно
// работает и повторяет попытки с backoff.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	switch p.state {
	case StateStopped:
		p.mu.Unlock()
		return ErrStopped
	case StateIdle:
	default:
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.state = StateLoading
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.mu.Unlock()

	err := p.sync(loopCtx)
	go p.run(loopCtx, err != nil)
	return err
}

// Stop отменяет таймер и ждёт выхода цикла. После возврата ни один
// запрос к серверу от поллера не начнётся.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.state == StateStopped {
		p.mu.Unlock()
		return
	}
	p.state = StateStopped
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// LastError — ошибка последнего опроса, nil после успешного.
func (p *Poller) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Messages — текущий вид: данные последнего опроса плюс ещё не
// подтверждённые опросом отправленные сообщения, без повторов id.
func (p *Poller) Messages() []domain.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.merged()
}

// Sync — внеочередной опрос (например, по push-событию).
func (p *Poller) Sync(ctx context.Context) error {
	if p.State() == StateStopped {
		return ErrStopped
	}
	return p.sync(ctx)
}

// Send отправляет текст и сразу добавляет подтверждённое сервером
// сообщение в вид. Ошибка отправки возвращается вызывающему.
func (p *Poller) Send(ctx context.Context, content string) (*domain.Message, error) {
	if p.State() == StateStopped {
		return nil, ErrStopped
	}
	msg, err := p.src.SendMessage(ctx, p.other, content)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.pending = append(p.pending, pendingMsg{msg: *msg, gen: p.syncGen})
	view := p.merged()
	p.mu.Unlock()

	p.notify(view)
	return msg, nil
}

// SendImage отправляет байты картинки как data:image/jpeg;base64,...
// Формат не проверяется: что выбрал пользователь, то и уходит.
func (p *Poller) SendImage(ctx context.Context, raw []byte) (*domain.Message, error) {
	if len(raw) == 0 {
		return nil, attachment.ErrEmptyAttachment
	}
	return p.Send(ctx, attachment.EncodeJPEG(raw))
}

// Delete удаляет сообщение на сервере и убирает его из локального вида.
func (p *Poller) Delete(ctx context.Context, id domain.MessageID) error {
	if p.State() == StateStopped {
		return ErrStopped
	}
	if err := p.src.DeleteMessage(ctx, p.other, id); err != nil {
		return err
	}

	p.mu.Lock()
	p.view = lo.Filter(p.view, func(m domain.Message, _ int) bool { return m.ID != id })
	p.pending = lo.Filter(p.pending, func(pm pendingMsg, _ int) bool { return pm.msg.ID != id })
	view := p.merged()
	p.mu.Unlock()

	p.notify(view)
	return nil
}

func (p *Poller) run(ctx context.Context, failed bool) {
	defer close(p.done)

	failures := 0
	if failed {
		failures = 1
	}
	timer := time.NewTimer(p.delay(failures))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if err := p.sync(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
		} else {
			failures = 0
		}
		timer.Reset(p.delay(failures))
	}
}

// delay: Interval, при ошибках — Interval * 2^failures, не больше MaxBackoff.
func (p *Poller) delay(failures int) time.Duration {
	d := p.cfg.Interval
	for i := 0; i < failures && d < p.cfg.MaxBackoff; i++ {
		d *= 2
	}
	if d > p.cfg.MaxBackoff {
		d = p.cfg.MaxBackoff
	}
	return d
}

func (p *Poller) sync(ctx context.Context) error {
	p.mu.Lock()
	if p.state == StateStopped {
		p.mu.Unlock()
		return ErrStopped
	}
	p.state = StateLoading
	p.syncGen++
	gen := p.syncGen
	p.mu.Unlock()

	msgs, err := p.src.ListMessages(ctx, p.other)

	p.mu.Lock()
	if p.state == StateStopped {
		p.mu.Unlock()
		return ErrStopped
	}
	if gen < p.appliedGen {
		// более поздний fetch уже применён, этот ответ устарел
		p.mu.Unlock()
		return nil
	}
	if err != nil {
		p.lastErr = err
		p.mu.Unlock()
		logger.FromContext(ctx).Warn("chat poll failed",
			slog.String("conversation_with", string(p.other)),
			slog.Any("err", err))
		return err
	}

	before := p.merged()
	p.appliedGen = gen
	p.view = msgs
	p.lastErr = nil
	p.state = StateSynced

	// подтверждённые опросом и те, что были отправлены до начала этого
	// опроса, но в ответ не попали (удалены на сервере), больше не нужны
	fetched := lo.SliceToMap(msgs, func(m domain.Message) (domain.MessageID, struct{}) { return m.ID, struct{}{} })
	p.pending = lo.Filter(p.pending, func(pm pendingMsg, _ int) bool {
		_, confirmed := fetched[pm.msg.ID]
		return !confirmed && pm.gen >= gen
	})

	after := p.merged()
	p.mu.Unlock()

	if !sameView(before, after) {
		p.notify(after)
	}
	return nil
}

// merged вызывается под p.mu.
func (p *Poller) merged() []domain.Message {
	out := make([]domain.Message, 0, len(p.view)+len(p.pending))
	out = append(out, p.view...)
	seen := lo.SliceToMap(p.view, func(m domain.Message) (domain.MessageID, struct{}) { return m.ID, struct{}{} })
	for _, pm := range p.pending {
		if _, dup := seen[pm.msg.ID]; dup {
			continue
		}
		seen[pm.msg.ID] = struct{}{}
		out = append(out, pm.msg)
	}
	return out
}

func (p *Poller) notify(view []domain.Message) {
	if p.cfg.OnChange != nil {
		p.cfg.OnChange(view)
	}
}

func sameView(a, b []domain.Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Content != b[i].Content {
			return false
		}
	}
	return true
}
