package entry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajchodisetti/riskgate/internal/market"
)

func bullishSnapshot() market.Snapshot {
	return market.Snapshot{
		market.KeyIsGoodTime: true,
		market.KeyVIX:        18.0,
		market.KeyTrend4H:    "up",
		market.KeyTrend1H:    "up",
		market.KeyPrice:      101.0,
		market.KeyVWAP:       100.0,
		market.KeyRSI:        55.0,
		market.KeyADX:        25.0,
		market.KeyPivotPP:    100.0,
		market.KeyPivotS1:    98.0,
		market.KeyPivotR1:    103.0,
		market.KeyMACDHist:   0.2,
	}
}

func TestEvaluate_AllConditionsMet(t *testing.T) {
	e := NewEngine(DefaultConfig())

	res := e.Evaluate(market.Long, bullishSnapshot())

	require.True(t, res.Confirmed)
	assert.Equal(t, market.Long, res.Direction)
	assert.Len(t, res.RequiredMet, 4)
	assert.Empty(t, res.RequiredFailed)
	assert.Len(t, res.OptionalMet, 5)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, 1.0, res.OptionalRatio())
	assert.Empty(t, res.BlockReason)
}

func TestEvaluate_RequiredFailureBlocksRegardlessOfOptional(t *testing.T) {
	e := NewEngine(DefaultConfig())

	tests := []struct {
		name       string
		mutate     func(market.Snapshot)
		wantReason string
	}{
		{"session closed", func(s market.Snapshot) { s[market.KeyIsGoodTime] = false }, "Required condition failed: session_ok"},
		{"first failure reported", func(s market.Snapshot) {
			s[market.KeyIsGoodTime] = false
			s[market.KeyVIX] = 35.0
		}, "Required condition failed: session_ok"},
		{"vix too high", func(s market.Snapshot) { s[market.KeyVIX] = 31.0 }, "Required condition failed: volatility_ok"},
		{"higher timeframe bearish", func(s market.Snapshot) { s[market.KeyTrend4H] = "down" }, "Required condition failed: htf_not_bearish"},
		{"price below both levels", func(s market.Snapshot) { s[market.KeyPrice] = 97.0 }, "Required condition failed: price_location_ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := bullishSnapshot()
			tt.mutate(s)

			res := e.Evaluate(market.Long, s)

			assert.False(t, res.Confirmed)
			assert.Equal(t, tt.wantReason, res.BlockReason)
			assert.Empty(t, res.OptionalMet)
			assert.Len(t, res.OptionalMissed, 5)
			assert.Equal(t, 0.0, res.Confidence)
		})
	}
}

func TestEvaluate_MissingDataFailsClosed(t *testing.T) {
	e := NewEngine(DefaultConfig())

	s := bullishSnapshot()
	delete(s, market.KeyPrice)
	res := e.Evaluate(market.Long, s)
	assert.False(t, res.Confirmed)
	assert.Contains(t, res.RequiredFailed, "price_location_ok")
	assert.Contains(t, res.Errors["price_location_ok"], "missing field")

	s = bullishSnapshot()
	delete(s, market.KeyVWAP)
	delete(s, market.KeyPivotS1)
	res = e.Evaluate(market.Long, s)
	assert.Equal(t, "Required condition failed: price_location_ok", res.BlockReason)

	s = bullishSnapshot()
	s[market.KeyTrend4H] = 42
	res = e.Evaluate(market.Long, s)
	assert.Contains(t, res.Errors["htf_not_bearish"], "wrong field type")
}

func TestEvaluate_OptionalErrorsCountAsMissed(t *testing.T) {
	e := NewEngine(DefaultConfig())
	s := bullishSnapshot()
	delete(s, market.KeyRSI)

	res := e.Evaluate(market.Long, s)

	require.True(t, res.Confirmed)
	assert.Equal(t, []string{"rsi_not_overbought"}, res.OptionalMissed)
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)
	assert.InDelta(t, 0.8, res.OptionalRatio(), 1e-9)
}

func TestEvaluate_ShortMirrorsLong(t *testing.T) {
	e := NewEngine(DefaultConfig())

	res := e.Evaluate(market.Short, bullishSnapshot())

	assert.False(t, res.Confirmed)
	assert.Equal(t, []string{"htf_not_bullish"}, res.RequiredFailed)
	assert.Contains(t, res.RequiredMet, "price_location_ok", "price is below R1")
}

func TestEvaluate_UnsupportedDirection(t *testing.T) {
	res := NewEngine(DefaultConfig()).Evaluate(market.Neutral, bullishSnapshot())
	assert.False(t, res.Confirmed)
	assert.Contains(t, res.BlockReason, "unsupported direction")
}

func TestBestDirection(t *testing.T) {
	e := NewEngine(DefaultConfig())

	tests := []struct {
		name          string
		snap          market.Snapshot
		want          market.Direction
		wantConfirmed bool
	}{
		{"only long confirmed", bullishSnapshot(), market.Long, true},
		{
			name: "both confirmed, short stronger",
			snap: market.Snapshot{
				market.KeyIsGoodTime: true, market.KeyVIX: 20.0,
				market.KeyTrend4H: "sideways", market.KeyTrend1H: "down",
				market.KeyPrice: 100.0, market.KeyVWAP: 99.0, market.KeyPivotR1: 101.0,
				market.KeyRSI: 50.0, market.KeyADX: 25.0, market.KeyPivotPP: 100.5, market.KeyMACDHist: -0.1,
			},
			want: market.Short, wantConfirmed: true,
		},
		{
			name: "both confirmed, tie goes long",
			snap: market.Snapshot{
				market.KeyIsGoodTime: true, market.KeyVIX: 20.0,
				market.KeyTrend4H: "sideways", market.KeyTrend1H: "sideways",
				market.KeyPrice: 100.0, market.KeyVWAP: 99.0, market.KeyPivotR1: 101.0,
			},
			want: market.Long, wantConfirmed: true,
		},
		{
			name: "neither confirmed, long fails less",
			snap: market.Snapshot{
				market.KeyIsGoodTime: false, market.KeyVIX: 20.0, market.KeyTrend4H: "sideways",
				market.KeyPrice: 101.0, market.KeyVWAP: 100.0,
			},
			want: market.Long, wantConfirmed: false,
		},
		{
			name: "neither confirmed, short fails less",
			snap: market.Snapshot{
				market.KeyIsGoodTime: false, market.KeyVIX: 20.0, market.KeyTrend4H: "sideways",
				market.KeyPrice: 99.0, market.KeyVWAP: 100.0,
			},
			want: market.Short, wantConfirmed: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.BestDirection(tt.snap)
			assert.Equal(t, tt.want, res.Direction)
			assert.Equal(t, tt.wantConfirmed, res.Confirmed)
		})
	}
}

func TestSummary(t *testing.T) {
	sum := NewEngine(DefaultConfig()).Summary(market.Short)

	assert.Equal(t, market.Short, sum.Direction)
	require.Len(t, sum.Required, 4)
	require.Len(t, sum.Optional, 5)
	for _, c := range sum.Required {
		assert.Equal(t, Required, c.Priority)
		assert.Equal(t, market.Short, c.Direction)
	}
	assert.Equal(t, "momentum_negative", sum.Optional[4].Name)
	assert.Equal(t, "beyond_pivot", BeyondPivot.String())
}
