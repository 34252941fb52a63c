package risk

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Monday 09:00 UTC
var monday = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func TestDrawdown_ConsecutiveLossesBlock(t *testing.T) {
	clk := newFakeClock(monday)
	m := NewDrawdownMonitor(DrawdownConfig{InitialEquity: 10000, MaxConsecutiveLosses: 3}, clk.Now)

	trades := []float64{100, -50, 150, -200, -150, -100}
	var st DrawdownStatus
	for i, pnl := range trades {
		st = m.RecordTrade(pnl)
		if i < len(trades)-1 {
			require.True(t, st.CanTrade, "blocked early after trade %d", i)
		}
	}

	assert.False(t, st.CanTrade)
	assert.True(t, st.Blocked)
	assert.Equal(t, BlockConsecutive, st.BlockKind)
	assert.Contains(t, st.BlockReason, "Consecutive losses")
	assert.InDelta(t, 9750.0, st.CurrentEquity, 1e-9)
	assert.InDelta(t, 10200.0, st.PeakEquity, 1e-9)
	require.NotNil(t, st.BlockUntil)
	assert.Equal(t, monday.Add(24*time.Hour), *st.BlockUntil)
	assert.False(t, m.CanTrade())

	clk.Advance(12 * time.Hour)
	assert.False(t, m.CanTrade(), "cooldown not elapsed")

	clk.Advance(12 * time.Hour)
	assert.True(t, m.CanTrade())
	assert.Equal(t, 0, m.State().ConsecutiveLosses)
	assert.Nil(t, m.Status().BlockUntil)
}

func TestDrawdown_BlockIsOnlyExtended(t *testing.T) {
	clk := newFakeClock(monday)
	m := NewDrawdownMonitor(DrawdownConfig{InitialEquity: 10000, MaxConsecutiveLosses: 2}, clk.Now)

	m.RecordTrade(-10)
	st := m.RecordTrade(-10)
	require.True(t, st.Blocked)
	first := *st.BlockUntil

	clk.Advance(time.Hour)
	st = m.RecordTrade(-10)
	require.True(t, st.Blocked)
	assert.True(t, st.BlockUntil.After(first))

	events := m.Events()
	require.Len(t, events, 2)
	assert.Equal(t, EventBlocked, events[0].Type)
	assert.Equal(t, EventBlockExtended, events[1].Type)
	assert.Equal(t, "dd_1", events[0].ID)
}

func TestDrawdown_DailyBlockClearsOnNewDay(t *testing.T) {
	clk := newFakeClock(monday)
	m := NewDrawdownMonitor(DrawdownConfig{InitialEquity: 10000}, clk.Now)

	st := m.RecordTrade(-600)
	require.True(t, st.Blocked)
	assert.Equal(t, BlockDaily, st.BlockKind)
	assert.InDelta(t, 0.06, st.DailyDrawdownPct, 1e-9)

	clk.Advance(14 * time.Hour) // 23:00 same day
	assert.False(t, m.CanTrade())

	clk.Advance(time.Hour) // midnight UTC
	assert.True(t, m.CanTrade())

	st = m.Status()
	assert.InDelta(t, 9400.0, st.DayStartEquity, 1e-9)
	assert.Equal(t, 0, st.TradesToday)

	var types []DrawdownEventType
	for _, ev := range m.Events() {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []DrawdownEventType{EventBlocked, EventDayRollover, EventUnblocked}, types)
}

func TestDrawdown_TotalBlockSurvivesRolloverWithDoubleCooldown(t *testing.T) {
	clk := newFakeClock(monday)
	m := NewDrawdownMonitor(DrawdownConfig{InitialEquity: 10000, MaxConsecutiveLosses: 10}, clk.Now)

	days := [][]float64{{-400}, {-400}, {-380}, {-300, -50}}
	var st DrawdownStatus
	for i, day := range days {
		if i > 0 {
			clk.Advance(24 * time.Hour)
		}
		for _, pnl := range day {
			st = m.RecordTrade(pnl)
		}
	}

	require.True(t, st.Blocked)
	assert.Equal(t, BlockTotal, st.BlockKind)
	assert.Less(t, st.DailyDrawdownPct, 0.05)
	assert.GreaterOrEqual(t, st.TotalDrawdownPct, 0.15)
	assert.Equal(t, clk.Now().Add(48*time.Hour), *st.BlockUntil)

	clk.Advance(24 * time.Hour)
	assert.False(t, m.CanTrade(), "new day does not clear a total-drawdown block")

	clk.Advance(24 * time.Hour)
	assert.False(t, m.CanTrade(), "cooldown over but equity still past the total limit")
	st = m.Status()
	assert.Equal(t, BlockTotal, st.BlockKind)
	assert.Equal(t, clk.Now().Add(48*time.Hour), *st.BlockUntil)

	m.UpdateEquity(9000)
	clk.Advance(48 * time.Hour)
	assert.True(t, m.CanTrade(), "recovered below the total limit")
}

func TestDrawdown_TotalBreachShadowedByDailyBlock(t *testing.T) {
	clk := newFakeClock(monday)
	m := NewDrawdownMonitor(DrawdownConfig{InitialEquity: 10000}, clk.Now)

	st := m.RecordTrade(-2000)
	require.True(t, st.Blocked)
	assert.Equal(t, BlockDaily, st.BlockKind)
	assert.InDelta(t, 0.20, st.TotalDrawdownPct, 1e-9)

	clk.Advance(25 * time.Hour)
	assert.False(t, m.CanTrade())

	st = m.Status()
	assert.Equal(t, BlockTotal, st.BlockKind)
	assert.Contains(t, st.BlockReason, "Total drawdown")
	assert.InDelta(t, 0.0, st.DailyDrawdownPct, 1e-9)
	require.NotNil(t, st.BlockUntil)
	assert.Equal(t, clk.Now().Add(48*time.Hour), *st.BlockUntil)

	var types []DrawdownEventType
	for _, ev := range m.Events() {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []DrawdownEventType{EventBlocked, EventDayRollover, EventUnblocked, EventBlocked}, types)
}

func TestDrawdown_ForceUnblock(t *testing.T) {
	clk := newFakeClock(monday)
	m := NewDrawdownMonitor(DrawdownConfig{InitialEquity: 10000, MaxConsecutiveLosses: 2}, clk.Now)

	m.RecordTrade(-1)
	m.RecordTrade(-1)
	require.False(t, m.CanTrade())

	m.ForceUnblock("operator override")
	assert.True(t, m.CanTrade())
	assert.Equal(t, 0, m.State().ConsecutiveLosses)

	events := m.Events()
	last := events[len(events)-1]
	assert.Equal(t, EventForceUnblocked, last.Type)
	assert.Equal(t, "operator override", last.Reason)
	assert.Equal(t, BlockConsecutive, last.Kind)

	// no-op when not blocked
	m.ForceUnblock("again")
	assert.Len(t, m.Events(), len(events))
}

func TestDrawdown_ZeroPnLCountsAsLoss(t *testing.T) {
	m := NewDrawdownMonitor(DrawdownConfig{}, newFakeClock(monday).Now)
	m.RecordTrade(50)
	st := m.RecordTrade(0)
	assert.Equal(t, 1, st.ConsecutiveLosses)
	assert.Equal(t, 0, st.ConsecutiveWins)
}

func TestDrawdown_DailyStats(t *testing.T) {
	clk := newFakeClock(monday)
	m := NewDrawdownMonitor(DrawdownConfig{InitialEquity: 10000}, clk.Now)

	m.RecordTrade(100)
	m.RecordTrade(-40)
	m.RecordTrade(60)
	assert.Empty(t, m.DailyStats())

	clk.Advance(24 * time.Hour)
	m.Status()

	stats := m.DailyStats()
	require.Len(t, stats, 1)
	assert.Equal(t, "2025-03-10", stats[0].Date)
	assert.Equal(t, 3, stats[0].Trades)
	assert.Equal(t, 2, stats[0].Wins)
	assert.Equal(t, 1, stats[0].Losses)
	assert.InDelta(t, 120.0, stats[0].PnL, 1e-9)
	assert.InDelta(t, 0.012, stats[0].PnLPct, 1e-9)
	assert.InDelta(t, 10120.0, stats[0].EndingEquity, 1e-9)
}

func TestDrawdown_UpdateEquityChecksLimits(t *testing.T) {
	m := NewDrawdownMonitor(DrawdownConfig{InitialEquity: 10000}, newFakeClock(monday).Now)
	st := m.UpdateEquity(9400)
	assert.True(t, st.Blocked)
	assert.Equal(t, BlockDaily, st.BlockKind)
}

func TestDrawdown_ConcurrentTrades(t *testing.T) {
	m := NewDrawdownMonitor(DrawdownConfig{InitialEquity: 10000}, newFakeClock(monday).Now)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordTrade(1)
			m.CanTrade()
		}()
	}
	wg.Wait()

	st := m.Status()
	assert.Equal(t, 50, st.TradesToday)
	assert.InDelta(t, 10050.0, st.CurrentEquity, 1e-9)
	assert.Equal(t, 50, st.ConsecutiveWins)
}
