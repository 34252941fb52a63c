package decision

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajchodisetti/riskgate/internal/horizon"
	"github.com/Rajchodisetti/riskgate/internal/market"
	"github.com/Rajchodisetti/riskgate/internal/sentiment"
)

var now = time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

func newTestEngine(cfg Config) *Engine {
	n := 0
	return NewEngine(cfg, Deps{
		Clock: func() time.Time { return now },
		NewID: func() string { n++; return fmt.Sprintf("dec-%d", n) },
	})
}

func sentimentOf(t *testing.T, values ...float64) sentiment.Context {
	t.Helper()
	signals := make([]sentiment.Signal, 0, len(values))
	for _, v := range values {
		signals = append(signals, sentiment.NewSignal(sentiment.SourceForexNews, v, 0.95, now, 48*time.Hour))
	}
	return sentiment.Build(signals, now, sentiment.DefaultThresholds())
}

// baseInput is a tradeable long setup: 1H and 4H up, price above VWAP and PP.
func baseInput() Input {
	return Input{
		Session:   market.Session{CanTrade: true},
		VIX:       market.VolatilityIndex{Value: 18.5},
		Sentiment: sentiment.Build([]sentiment.Signal{sentiment.NewSignal(sentiment.SourceForexNews, 0.4, 0.7, now, 48*time.Hour)}, now, sentiment.DefaultThresholds()),
		MTF: market.MTF{
			Trends: map[string]market.Trend{
				market.TF1H: {Direction: market.Up, Strength: 0.6},
				market.TF4H: {Direction: market.Up, Strength: 0.4},
				market.TF1D: {Direction: market.Sideways, Strength: 0.2},
			},
			Alignment: market.GoodBullish,
		},
		Indicators: market.Indicators{
			RSI:    market.Float(55),
			ADX:    market.Float(28),
			VWAP:   market.Float(4.330),
			ATR:    market.Float(0.02),
			Pivots: market.Pivots{"PP": 4.340, "R1": 4.365, "S1": 4.315},
		},
		Price: 4.350,
	}
}

func TestDecide_LongSetup(t *testing.T) {
	res := newTestEngine(DefaultConfig()).Decide(baseInput())

	require.Equal(t, ActionLong, res.Action, strings.Join(res.DecisionPath, "\n"))
	assert.Equal(t, BlockNone, res.BlockReason)
	assert.Equal(t, horizon.Weekly, res.Horizon)
	assert.InDelta(t, 0.74, res.Confidence, 1e-9)
	assert.Equal(t, "trending", res.Regime)
	assert.Equal(t, "dec-1", res.ID)
	assert.Equal(t, now, res.Timestamp)
	assert.Equal(t, []string{"trend_1h_up", "rsi_not_overbought", "adx_trend_present", "above_pivot_pp"}, res.Confirmations)

	// emotional regime 0.9, then moderate conflict against SHORT 0.7
	assert.InDelta(t, 0.63, res.PositionModifier, 1e-9)
	assert.Contains(t, res.Warnings, "Sentiment warns against SHORT (moderate conflict)")

	require.NotNil(t, res.Trade)
	assert.Equal(t, 4.350, res.Trade.Entry)
	assert.Less(t, res.Trade.StopLoss, res.Trade.Entry)
	assert.Greater(t, res.Trade.TakeProfit, res.Trade.Entry)
	assert.InDelta(t, 4.31465, res.Trade.StopLoss, 2e-5)
	assert.Equal(t, "structure", res.Trade.StopMethod)
	assert.GreaterOrEqual(t, res.Trade.SLDistance, res.Trade.ATRDistance)
	assert.InDelta(t, 0.63, res.Trade.PositionModifier, 1e-9)

	assert.Equal(t, "Step 1: Checking if can trade", res.DecisionPath[0])
	assert.Contains(t, res.DecisionPath, "SHORT rejected: Required condition failed: htf_not_bullish")
	assert.Equal(t, "Step 8: Confidence = 0.740", res.DecisionPath[len(res.DecisionPath)-1])
}

func TestDecide_Blocks(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Input)
		wantAction Action
		wantReason BlockReason
	}{
		{
			name:       "session closed",
			mutate:     func(in *Input) { in.Session = market.Session{CanTrade: false, Recommendation: "Weekend"} },
			wantAction: ActionHold,
			wantReason: BlockSessionClosed,
		},
		{
			name:       "vix too high",
			mutate:     func(in *Input) { in.VIX.Value = 35 },
			wantAction: ActionStop,
			wantReason: BlockVIXTooHigh,
		},
		{
			name: "market chaos",
			mutate: func(in *Input) {
				in.VIX.Value = 28
				in.Price = 100
				in.Indicators.ADX = market.Float(12)
				in.Indicators.ATR = market.Float(3)
			},
			wantAction: ActionHold,
			wantReason: BlockMarketChaos,
		},
		{
			name:       "non-positive price",
			mutate:     func(in *Input) { in.Price = 0 },
			wantAction: ActionError,
			wantReason: BlockDataError,
		},
		{
			name: "no higher timeframe trend",
			mutate: func(in *Input) {
				in.MTF.Trends[market.TF4H] = market.Trend{Direction: market.Up, Strength: 0.2}
				in.MTF.Trends[market.TF1D] = market.Trend{Direction: market.Sideways, Strength: 0.9}
			},
			wantAction: ActionHold,
			wantReason: BlockNoClearDirection,
		},
		{
			name: "severe sentiment conflict",
			mutate: func(in *Input) {
				in.MTF.Trends[market.TF1D] = market.Trend{Direction: market.Up, Strength: 0.5}
				in.Sentiment = sentimentOf(t, -0.9, -0.9, -0.9)
			},
			wantAction: ActionHold,
			wantReason: BlockSentimentConflict,
		},
		{
			name: "required condition fails",
			mutate: func(in *Input) {
				in.MTF.Trends[market.TF1D] = market.Trend{Direction: market.Up, Strength: 0.5}
				in.Price = 4.30
			},
			wantAction: ActionHold,
			wantReason: BlockCriticalConditionsNotMet,
		},
		{
			name: "no level to locate price",
			mutate: func(in *Input) {
				in.MTF.Trends[market.TF1D] = market.Trend{Direction: market.Up, Strength: 0.5}
				in.Indicators.VWAP = nil
				in.Indicators.Pivots = nil
			},
			wantAction: ActionError,
			wantReason: BlockDataError,
		},
		{
			name:       "negative atr",
			mutate:     func(in *Input) { in.Indicators.ATR = market.Float(-1) },
			wantAction: ActionError,
			wantReason: BlockDataError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := baseInput()
			tt.mutate(&in)
			res := newTestEngine(DefaultConfig()).Decide(in)

			assert.Equal(t, tt.wantAction, res.Action, strings.Join(res.DecisionPath, "\n"))
			assert.Equal(t, tt.wantReason, res.BlockReason)
			assert.Nil(t, res.Trade)
			assert.Empty(t, res.Horizon)
			assert.Zero(t, res.Confidence)
			require.NotEmpty(t, res.DecisionPath)
			assert.True(t, strings.HasPrefix(res.DecisionPath[len(res.DecisionPath)-1], "BLOCKED: "))
		})
	}
}

func TestDecide_ScenarioB_WarnsThenBlocks(t *testing.T) {
	in := baseInput()
	in.VIX.Value = 28
	in.Price = 100
	in.Indicators.ADX = market.Float(12)
	in.Indicators.ATR = market.Float(3)

	res := newTestEngine(DefaultConfig()).Decide(in)
	assert.Equal(t, ActionHold, res.Action)
	assert.Equal(t, BlockMarketChaos, res.BlockReason)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "VIX elevated")
	assert.Equal(t, "BLOCKED: Chaos (ADX=12.0, vol=3.00%)", res.DecisionPath[len(res.DecisionPath)-1])
}

func TestDecide_PanicHalvesModifierAndForcesDaily(t *testing.T) {
	in := baseInput()
	in.MTF.Trends[market.TF1D] = market.Trend{Direction: market.Up, Strength: 0.5}
	in.Sentiment = sentimentOf(t, 0.9, 0.9, 0.9)

	res := newTestEngine(DefaultConfig()).Decide(in)
	require.Equal(t, ActionLong, res.Action, strings.Join(res.DecisionPath, "\n"))
	assert.Equal(t, horizon.Daily, res.Horizon)
	assert.InDelta(t, 0.25, res.PositionModifier, 1e-9)
	assert.Contains(t, res.Warnings, "Panic regime - 50% position reduction")
}

func TestDecide_AlignmentScalesConfidence(t *testing.T) {
	tests := []struct {
		alignment market.Alignment
		want      float64
	}{
		{market.PerfectBullish, 0.888},
		{market.GoodBullish, 0.74},
		{market.Mixed, 0.74},
		{market.Conflict, 0.518},
	}
	for _, tt := range tests {
		t.Run(string(tt.alignment), func(t *testing.T) {
			in := baseInput()
			in.MTF.Alignment = tt.alignment
			res := newTestEngine(DefaultConfig()).Decide(in)
			require.True(t, res.IsTrade())
			assert.InDelta(t, tt.want, res.Confidence, 1e-9)
		})
	}
}

func TestDecide_ShortSetup(t *testing.T) {
	in := Input{
		Session:   market.Session{CanTrade: true},
		VIX:       market.VolatilityIndex{Value: 16},
		Sentiment: sentiment.Neutral(),
		MTF: market.MTF{
			Trends: map[string]market.Trend{
				market.TF1H: {Direction: market.Down, Strength: 0.8},
				market.TF4H: {Direction: market.Down, Strength: 0.6},
				market.TF1D: {Direction: market.Down, Strength: 0.5},
			},
			Alignment: market.PerfectBearish,
		},
		Indicators: market.Indicators{
			RSI:      market.Float(45),
			ADX:      market.Float(35),
			VWAP:     market.Float(101),
			ATR:      market.Float(1),
			MACDHist: market.Float(-0.2),
			Pivots:   market.Pivots{"PP": 100.5, "R1": 102, "S1": 98},
		},
		Price: 100,
	}

	res := newTestEngine(DefaultConfig()).Decide(in)
	require.Equal(t, ActionShort, res.Action, strings.Join(res.DecisionPath, "\n"))
	assert.Equal(t, horizon.Weekly, res.Horizon)
	assert.InDelta(t, 0.96, res.Confidence, 1e-9)
	require.NotNil(t, res.Trade)
	assert.Greater(t, res.Trade.StopLoss, res.Trade.Entry)
	assert.Less(t, res.Trade.TakeProfit, res.Trade.Entry)
	assert.GreaterOrEqual(t, res.Trade.SLDistance, res.Trade.ATRDistance)
	assert.Len(t, res.Confirmations, 5)
}

func TestDecide_MaxStopBlocksWideStops(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxStopPct = 0.005

	res := newTestEngine(cfg).Decide(baseInput())
	assert.Equal(t, ActionHold, res.Action)
	assert.Equal(t, BlockRiskTooHigh, res.BlockReason)
	assert.Nil(t, res.Trade)
}

func TestDecide_Invariants(t *testing.T) {
	e := newTestEngine(DefaultConfig())

	for _, vix := range []float64{10, 20, 27, 31} {
		for _, price := range []float64{4.25, 4.32, 4.35, 4.40} {
			for _, dir := range []market.TrendDirection{market.Up, market.Down, market.Sideways} {
				in := baseInput()
				in.VIX.Value = vix
				in.Price = price
				in.MTF.Trends[market.TF4H] = market.Trend{Direction: dir, Strength: 0.6}

				res := e.Decide(in)
				name := fmt.Sprintf("vix=%.0f price=%.2f 4h=%s", vix, price, dir)

				if res.IsTrade() {
					require.NotNil(t, res.Trade, name)
					assert.Equal(t, BlockNone, res.BlockReason, name)
					assert.NotEmpty(t, res.Horizon, name)
					assert.GreaterOrEqual(t, res.Trade.SLDistance, res.Trade.ATRDistance, name)
					assert.LessOrEqual(t, res.Confidence, 1.0, name)
					if res.Action == ActionLong {
						assert.Less(t, res.Trade.StopLoss, price, name)
						assert.Greater(t, res.Trade.TakeProfit, price, name)
					} else {
						assert.Greater(t, res.Trade.StopLoss, price, name)
						assert.Less(t, res.Trade.TakeProfit, price, name)
					}
					continue
				}
				assert.NotEqual(t, BlockNone, res.BlockReason, name)
				assert.Nil(t, res.Trade, name)
			}
		}
	}
}

func TestResult_JSON(t *testing.T) {
	e := newTestEngine(DefaultConfig())

	t.Run("blocked", func(t *testing.T) {
		in := baseInput()
		in.VIX.Value = 35
		raw, err := json.Marshal(e.Decide(in))
		require.NoError(t, err)

		var out map[string]any
		require.NoError(t, json.Unmarshal(raw, &out))
		assert.Equal(t, "STOP", out["action"])
		assert.Nil(t, out["trade"])
		assert.Nil(t, out["horizon"])
		assert.Equal(t, false, out["is_trade"])
		reasoning := out["reasoning"].(map[string]any)
		assert.Equal(t, "VIX_TOO_HIGH", reasoning["block_reason"])
		assert.Equal(t, "VIX too high", reasoning["block_message"])
		assert.Equal(t, "2025-03-10T14:30:00Z", out["timestamp"])
	})

	t.Run("trade", func(t *testing.T) {
		raw, err := json.Marshal(e.Decide(baseInput()))
		require.NoError(t, err)

		var out map[string]any
		require.NoError(t, json.Unmarshal(raw, &out))
		assert.Equal(t, "LONG", out["action"])
		assert.Equal(t, "WEEKLY", out["horizon"])
		assert.Equal(t, 0.74, out["confidence"])
		trade := out["trade"].(map[string]any)
		assert.Equal(t, 4.35, trade["entry"])
		reasoning := out["reasoning"].(map[string]any)
		assert.Nil(t, reasoning["block_reason"])
		assert.NotEmpty(t, reasoning["decision_path"])
	})
}

func TestDecide_ConcurrentUse(t *testing.T) {
	e := NewEngine(DefaultConfig(), Deps{Clock: func() time.Time { return now }})
	done := make(chan Result, 20)
	for i := 0; i < 20; i++ {
		go func() { done <- e.Decide(baseInput()) }()
	}
	ids := map[string]bool{}
	for i := 0; i < 20; i++ {
		res := <-done
		assert.Equal(t, ActionLong, res.Action)
		ids[res.ID] = true
	}
	assert.Len(t, ids, 20)
}
