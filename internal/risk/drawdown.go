package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/Rajchodisetti/riskgate/internal/observ"
)

// Clock supplies the current time.
type Clock func() time.Time

// BlockKind says which limit tripped the breaker.
type BlockKind string

const (
	BlockDaily       BlockKind = "daily_drawdown"
	BlockTotal       BlockKind = "total_drawdown"
	BlockConsecutive BlockKind = "consecutive_losses"
	BlockNone        BlockKind = ""
)

// DrawdownConfig represents drawdown monitoring configuration
type DrawdownConfig struct {
	InitialEquity        float64
	MaxDailyDrawdownPct  float64 // fraction, e.g. 0.05
	MaxTotalDrawdownPct  float64 // fraction of peak equity
	MaxConsecutiveLosses int
	Cooldown             time.Duration
}

func DefaultDrawdownConfig() DrawdownConfig {
	return DrawdownConfig{
		InitialEquity:        10000,
		MaxDailyDrawdownPct:  0.05,
		MaxTotalDrawdownPct:  0.15,
		MaxConsecutiveLosses: 5,
		Cooldown:             24 * time.Hour,
	}
}

// DrawdownState is the mutable account state behind the breaker.
type DrawdownState struct {
	CurrentEquity     float64   `json:"current_equity"`
	PeakEquity        float64   `json:"peak_equity"`
	DayStartEquity    float64   `json:"day_start_equity"`
	ConsecutiveLosses int       `json:"consecutive_losses"`
	ConsecutiveWins   int       `json:"consecutive_wins"`
	TradingBlocked    bool      `json:"trading_blocked"`
	BlockKind         BlockKind `json:"block_kind,omitempty"`
	BlockReason       string    `json:"block_reason,omitempty"`
	BlockUntil        time.Time `json:"block_until"`
}

// DrawdownStatus is the externally visible view of the monitor.
type DrawdownStatus struct {
	CanTrade    bool       `json:"can_trade"`
	Blocked     bool       `json:"blocked"`
	BlockKind   BlockKind  `json:"block_kind,omitempty"`
	BlockReason string     `json:"block_reason"`
	BlockUntil  *time.Time `json:"block_until"`

	CurrentEquity  float64 `json:"current_equity"`
	PeakEquity     float64 `json:"peak_equity"`
	InitialEquity  float64 `json:"initial_equity"`
	DayStartEquity float64 `json:"day_start_equity"`

	DailyDrawdownPct float64 `json:"daily_drawdown_pct"`
	DailyDDLimit     float64 `json:"daily_dd_limit"`
	DailyDDRemaining float64 `json:"daily_dd_remaining"`
	TotalDrawdownPct float64 `json:"total_drawdown_pct"`
	TotalDDLimit     float64 `json:"total_dd_limit"`
	TotalDDRemaining float64 `json:"total_dd_remaining"`

	ConsecutiveLosses    int `json:"consecutive_losses"`
	ConsecutiveWins      int `json:"consecutive_wins"`
	MaxConsecutiveLosses int `json:"max_consecutive_losses"`

	TradesToday int     `json:"trades_today"`
	PnLToday    float64 `json:"pnl_today"`
}

// DailyStats summarises one finished trading day.
type DailyStats struct {
	Date           string  `json:"date"`
	StartingEquity float64 `json:"starting_equity"`
	EndingEquity   float64 `json:"ending_equity"`
	PnL            float64 `json:"pnl"`
	PnLPct         float64 `json:"pnl_pct"`
	Trades         int     `json:"trades"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
}

// DrawdownMonitor is the account-level circuit breaker. All methods are
// serialized on one mutex; use one monitor per account.
type DrawdownMonitor struct {
	mu    sync.Mutex
	cfg   DrawdownConfig
	clock Clock
	state DrawdownState

	day         string // UTC date of the current trading day
	tradesToday int
	winsToday   int
	lossesToday int
	pnlToday    float64
	history     []DailyStats

	events      []DrawdownEvent
	lastEventID int64
}

// NewDrawdownMonitor creates a monitor. A nil clock uses time.Now.
func NewDrawdownMonitor(cfg DrawdownConfig, clock Clock) *DrawdownMonitor {
	def := DefaultDrawdownConfig()
	if cfg.InitialEquity <= 0 {
		cfg.InitialEquity = def.InitialEquity
	}
	if cfg.MaxDailyDrawdownPct <= 0 {
		cfg.MaxDailyDrawdownPct = def.MaxDailyDrawdownPct
	}
	if cfg.MaxTotalDrawdownPct <= 0 {
		cfg.MaxTotalDrawdownPct = def.MaxTotalDrawdownPct
	}
	if cfg.MaxConsecutiveLosses <= 0 {
		cfg.MaxConsecutiveLosses = def.MaxConsecutiveLosses
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if clock == nil {
		clock = time.Now
	}
	return &DrawdownMonitor{
		cfg:   cfg,
		clock: clock,
		state: DrawdownState{
			CurrentEquity:  cfg.InitialEquity,
			PeakEquity:     cfg.InitialEquity,
			DayStartEquity: cfg.InitialEquity,
		},
		day: tradingDay(clock()),
	}
}

// RecordTrade applies a closed trade's PnL and evaluates the limits.
// A positive PnL is a win; anything else counts as a loss.
func (m *DrawdownMonitor) RecordTrade(pnl float64) DrawdownStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	m.rollover(now)
	m.expire(now)

	m.state.CurrentEquity += pnl
	if m.state.CurrentEquity > m.state.PeakEquity {
		m.state.PeakEquity = m.state.CurrentEquity
	}
	m.tradesToday++
	m.pnlToday += pnl
	if pnl > 0 {
		m.state.ConsecutiveWins++
		m.state.ConsecutiveLosses = 0
		m.winsToday++
	} else {
		m.state.ConsecutiveLosses++
		m.state.ConsecutiveWins = 0
		m.lossesToday++
	}

	m.checkLimits(now)

	observ.Log("drawdown_trade_recorded", map[string]any{
		"pnl":                pnl,
		"equity":             m.state.CurrentEquity,
		"consecutive_losses": m.state.ConsecutiveLosses,
		"consecutive_wins":   m.state.ConsecutiveWins,
		"blocked":            m.state.TradingBlocked,
	})
	return m.status()
}

// UpdateEquity sets equity without a trade, e.g. after a mark-to-market.
func (m *DrawdownMonitor) UpdateEquity(equity float64) DrawdownStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	m.rollover(now)
	m.expire(now)
	m.state.CurrentEquity = equity
	if equity > m.state.PeakEquity {
		m.state.PeakEquity = equity
	}
	m.checkLimits(now)
	return m.status()
}

// CanTrade clears an expired block, then reports whether trading is allowed.
// A lifted block is followed by a fresh limit check, so a breach it shadowed
// blocks again.
func (m *DrawdownMonitor) CanTrade() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.advance(m.clock())
	return !m.state.TradingBlocked
}

// Status reports the full monitor state as of now.
func (m *DrawdownMonitor) Status() DrawdownStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.advance(m.clock())
	return m.status()
}

// State returns a copy of the raw breaker state.
func (m *DrawdownMonitor) State() DrawdownState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ForceUnblock clears any block immediately.
func (m *DrawdownMonitor) ForceUnblock(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.TradingBlocked {
		return
	}
	now := m.clock()
	kind := m.state.BlockKind
	m.clearBlock()
	m.addEvent(now, EventForceUnblocked, kind, reason)
	observ.Warn("drawdown_force_unblock", map[string]any{"kind": string(kind), "reason": reason})
}

// DailyStats returns the archived per-day summaries, oldest first.
func (m *DrawdownMonitor) DailyStats() []DailyStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DailyStats, len(m.history))
	copy(out, m.history)
	return out
}

// checkLimits evaluates daily, total, then consecutive-loss limits; the first
// breach sets the block. An existing block is only ever lengthened.
func (m *DrawdownMonitor) checkLimits(now time.Time) {
	daily := m.dailyDrawdown()
	total := m.totalDrawdown()

	observ.SetGauge("drawdown_equity", m.state.CurrentEquity, nil)
	observ.SetGauge("drawdown_pct", daily, map[string]string{"scope": "daily"})
	observ.SetGauge("drawdown_pct", total, map[string]string{"scope": "total"})

	switch {
	case daily >= m.cfg.MaxDailyDrawdownPct:
		m.block(now, BlockDaily, m.cfg.Cooldown,
			fmt.Sprintf("Daily drawdown limit reached: %.1f%% >= %.1f%%", daily*100, m.cfg.MaxDailyDrawdownPct*100))
	case total >= m.cfg.MaxTotalDrawdownPct:
		m.block(now, BlockTotal, 2*m.cfg.Cooldown,
			fmt.Sprintf("Total drawdown limit reached: %.1f%% >= %.1f%%", total*100, m.cfg.MaxTotalDrawdownPct*100))
	case m.state.ConsecutiveLosses >= m.cfg.MaxConsecutiveLosses:
		m.block(now, BlockConsecutive, m.cfg.Cooldown,
			fmt.Sprintf("Consecutive losses limit reached: %d >= %d", m.state.ConsecutiveLosses, m.cfg.MaxConsecutiveLosses))
	}
}

func (m *DrawdownMonitor) block(now time.Time, kind BlockKind, cooldown time.Duration, reason string) {
	until := now.Add(cooldown)
	if m.state.TradingBlocked && !until.After(m.state.BlockUntil) {
		return
	}
	typ := EventBlocked
	if m.state.TradingBlocked {
		typ = EventBlockExtended
	}

	m.state.TradingBlocked = true
	m.state.BlockKind = kind
	m.state.BlockReason = reason
	m.state.BlockUntil = until

	m.addEvent(now, typ, kind, reason)
	observ.IncCounter("drawdown_blocks_total", map[string]string{"kind": string(kind)})
	observ.Warn("drawdown_blocked", map[string]any{
		"kind":        string(kind),
		"reason":      reason,
		"block_until": until.UTC().Format(time.RFC3339),
		"equity":      m.state.CurrentEquity,
	})
}

// advance applies rollover and cooldown expiry, then re-evaluates the limits
// if either lifted a block.
func (m *DrawdownMonitor) advance(now time.Time) {
	rolled := m.rollover(now)
	expired := m.expire(now)
	if rolled || expired {
		m.checkLimits(now)
	}
}

func (m *DrawdownMonitor) expire(now time.Time) bool {
	if !m.state.TradingBlocked || now.Before(m.state.BlockUntil) {
		return false
	}
	kind := m.state.BlockKind
	m.clearBlock()
	m.addEvent(now, EventUnblocked, kind, "cooldown expired")
	observ.Log("drawdown_unblocked", map[string]any{"kind": string(kind), "cause": "cooldown_expired"})
	return true
}

// clearBlock lifts the block. Lifting a consecutive-loss block also resets the losing streak.
func (m *DrawdownMonitor) clearBlock() {
	if m.state.BlockKind == BlockConsecutive {
		m.state.ConsecutiveLosses = 0
	}
	m.state.TradingBlocked = false
	m.state.BlockKind = BlockNone
	m.state.BlockReason = ""
	m.state.BlockUntil = time.Time{}
}

// rollover archives the finished day and resets daily counters when the
// UTC date advances. Only a daily-drawdown block is cleared; it reports
// whether one was.
func (m *DrawdownMonitor) rollover(now time.Time) bool {
	today := tradingDay(now)
	if today <= m.day {
		return false
	}

	if m.tradesToday > 0 {
		stats := DailyStats{
			Date:           m.day,
			StartingEquity: m.state.DayStartEquity,
			EndingEquity:   m.state.CurrentEquity,
			PnL:            m.pnlToday,
			Trades:         m.tradesToday,
			Wins:           m.winsToday,
			Losses:         m.lossesToday,
		}
		if m.state.DayStartEquity > 0 {
			stats.PnLPct = m.pnlToday / m.state.DayStartEquity
		}
		m.history = append(m.history, stats)
	}

	m.day = today
	m.state.DayStartEquity = m.state.CurrentEquity
	m.tradesToday, m.winsToday, m.lossesToday = 0, 0, 0
	m.pnlToday = 0
	m.addEvent(now, EventDayRollover, BlockNone, today)

	if m.state.TradingBlocked && m.state.BlockKind == BlockDaily {
		m.clearBlock()
		m.addEvent(now, EventUnblocked, BlockDaily, "new trading day")
		observ.Log("drawdown_unblocked", map[string]any{"kind": string(BlockDaily), "cause": "new_day"})
		return true
	}
	return false
}

func (m *DrawdownMonitor) dailyDrawdown() float64 {
	if m.state.DayStartEquity <= 0 {
		return 0
	}
	return max(0, (m.state.DayStartEquity-m.state.CurrentEquity)/m.state.DayStartEquity)
}

func (m *DrawdownMonitor) totalDrawdown() float64 {
	if m.state.PeakEquity <= 0 {
		return 0
	}
	return max(0, (m.state.PeakEquity-m.state.CurrentEquity)/m.state.PeakEquity)
}

func (m *DrawdownMonitor) status() DrawdownStatus {
	daily, total := m.dailyDrawdown(), m.totalDrawdown()
	st := DrawdownStatus{
		CanTrade:             !m.state.TradingBlocked,
		Blocked:              m.state.TradingBlocked,
		BlockKind:            m.state.BlockKind,
		BlockReason:          m.state.BlockReason,
		CurrentEquity:        m.state.CurrentEquity,
		PeakEquity:           m.state.PeakEquity,
		InitialEquity:        m.cfg.InitialEquity,
		DayStartEquity:       m.state.DayStartEquity,
		DailyDrawdownPct:     daily,
		DailyDDLimit:         m.cfg.MaxDailyDrawdownPct,
		DailyDDRemaining:     m.cfg.MaxDailyDrawdownPct - daily,
		TotalDrawdownPct:     total,
		TotalDDLimit:         m.cfg.MaxTotalDrawdownPct,
		TotalDDRemaining:     m.cfg.MaxTotalDrawdownPct - total,
		ConsecutiveLosses:    m.state.ConsecutiveLosses,
		ConsecutiveWins:      m.state.ConsecutiveWins,
		MaxConsecutiveLosses: m.cfg.MaxConsecutiveLosses,
		TradesToday:          m.tradesToday,
		PnLToday:             m.pnlToday,
	}
	if m.state.TradingBlocked {
		until := m.state.BlockUntil
		st.BlockUntil = &until
	}
	return st
}

// tradingDay is the UTC calendar date used for daily limits.
func tradingDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
