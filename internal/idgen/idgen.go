package idgen

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/sonyflake"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

const prefix = "msg_"

// Generator выдаёт id сообщений. Основной источник — sonyflake,
// если машинный id определить не удалось — msg_<unix-ms>_<uuid8>.
type Generator struct {
	sf  *sonyflake.Sonyflake
	now func() time.Time

	mu       sync.Mutex
	degraded bool
}

// New: machineID == 0 — sonyflake берёт младшие биты приватного IP.
func New(machineID uint16) *Generator {
	st := sonyflake.Settings{
		StartTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if machineID != 0 {
		st.MachineID = func() (uint16, error) { return machineID, nil }
	}

	return &Generator{
		sf:  sonyflake.NewSonyflake(st),
		now: time.Now,
	}
}

// Fallback — генератор без sonyflake, только формат msg_<ms>_<uuid8>.
func Fallback() *Generator {
	return &Generator{now: time.Now}
}

func (g *Generator) NewMessageID() domain.MessageID {
	if g.sf != nil && !g.isDegraded() {
		id, err := g.sf.NextID()
		if err == nil {
			return domain.MessageID(prefix + strconv.FormatUint(id, 36))
		}
		// часы sonyflake исчерпаны — дальше только fallback
		g.mu.Lock()
		g.degraded = true
		g.mu.Unlock()
	}

	return domain.MessageID(fmt.Sprintf("%s%d_%s", prefix, g.now().UnixMilli(), uuid.NewString()[:8]))
}

// Sonyflake сообщает, работает ли основной источник.
func (g *Generator) Sonyflake() bool {
	return g.sf != nil && !g.isDegraded()
}

func (g *Generator) isDegraded() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.degraded
}
