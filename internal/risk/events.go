package risk

import (
	"fmt"
	"time"

	"github.com/Rajchodisetti/riskgate/internal/observ"
)

// DrawdownEventType names a transition of the drawdown circuit breaker.
type DrawdownEventType string

const (
	EventBlocked        DrawdownEventType = "blocked"
	EventBlockExtended  DrawdownEventType = "block_extended"
	EventUnblocked      DrawdownEventType = "unblocked"
	EventForceUnblocked DrawdownEventType = "force_unblocked"
	EventDayRollover    DrawdownEventType = "day_rollover"
)

// DrawdownEvent is one entry of the monitor's in-memory audit log.
type DrawdownEvent struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Type      DrawdownEventType `json:"type"`
	Kind      BlockKind         `json:"kind,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Equity    float64           `json:"equity"`
	Until     *time.Time        `json:"until,omitempty"`
}

// maxEvents bounds the audit log; older entries are dropped first.
const maxEvents = 1000

// addEvent appends to the event log. Callers hold m.mu.
func (m *DrawdownMonitor) addEvent(now time.Time, typ DrawdownEventType, kind BlockKind, reason string) {
	m.lastEventID++

	ev := DrawdownEvent{
		ID:        fmt.Sprintf("dd_%d", m.lastEventID),
		Timestamp: now,
		Type:      typ,
		Kind:      kind,
		Reason:    reason,
		Equity:    m.state.CurrentEquity,
	}
	if typ == EventBlocked || typ == EventBlockExtended {
		until := m.state.BlockUntil
		ev.Until = &until
	}

	m.events = append(m.events, ev)
	if len(m.events) > maxEvents {
		m.events = m.events[len(m.events)-maxEvents:]
	}

	observ.IncCounter("drawdown_events_total", map[string]string{"event_type": string(typ)})
}

// Events returns a copy of the audit log, oldest first.
func (m *DrawdownMonitor) Events() []DrawdownEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DrawdownEvent, len(m.events))
	copy(out, m.events)
	return out
}
