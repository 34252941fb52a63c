package market

import (
	"fmt"
	"strings"
)

// Direction is a trade side or the absence of one.
type Direction string

const (
	Long    Direction = "LONG"
	Short   Direction = "SHORT"
	Neutral Direction = "NEUTRAL"
)

// ParseDirection accepts long/short/neutral in any case.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToUpper(strings.TrimSpace(s))) {
	case Long:
		return Long, nil
	case Short:
		return Short, nil
	case Neutral:
		return Neutral, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// Opposite flips LONG and SHORT. NEUTRAL stays NEUTRAL.
func (d Direction) Opposite() Direction {
	switch d {
	case Long:
		return Short
	case Short:
		return Long
	}
	return Neutral
}

type TrendDirection string

const (
	Up       TrendDirection = "up"
	Down     TrendDirection = "down"
	Sideways TrendDirection = "sideways"
)

// Trend is one timeframe's direction with a strength in [0,1].
type Trend struct {
	Direction TrendDirection `json:"direction"`
	Strength  float64        `json:"strength"`
}

type Alignment string

const (
	PerfectBullish Alignment = "perfect_bullish"
	PerfectBearish Alignment = "perfect_bearish"
	GoodBullish    Alignment = "good_bullish"
	GoodBearish    Alignment = "good_bearish"
	Mixed          Alignment = "mixed"
	Conflict       Alignment = "conflict"
)

// Timeframe keys used in MTF.Trends.
const (
	TF1H = "1h"
	TF4H = "4h"
	TF1D = "1d"
)

// MTF is the multi-timeframe trend summary supplied by the caller.
type MTF struct {
	Trends    map[string]Trend `json:"trends"`
	Alignment Alignment        `json:"alignment"`
	Conflict  bool             `json:"conflict"`
}

// Trend returns the trend for tf, if present.
func (m MTF) Trend(tf string) (Trend, bool) {
	t, ok := m.Trends[tf]
	return t, ok
}

// Pivots maps level names (PP, S1, S2, R1, R2) to prices.
type Pivots map[string]float64

// Level looks up a pivot by name, case-insensitively. Non-positive levels count as absent.
func (p Pivots) Level(name string) (float64, bool) {
	if v, ok := p[strings.ToUpper(name)]; ok && v > 0 {
		return v, true
	}
	if v, ok := p[strings.ToLower(name)]; ok && v > 0 {
		return v, true
	}
	return 0, false
}

// Indicators carries pre-computed technical values. Nil means not supplied.
type Indicators struct {
	ADX      *float64 `json:"adx,omitempty"`
	RSI      *float64 `json:"rsi,omitempty"`
	VWAP     *float64 `json:"vwap,omitempty"`
	ATR      *float64 `json:"atr,omitempty"`
	MACDHist *float64 `json:"macd_hist,omitempty"`
	Pivots   Pivots   `json:"pivots,omitempty"`
}

// Float is a helper for building Indicators literals.
func Float(v float64) *float64 { return &v }

// Session is the trading-session verdict from the session collaborator.
type Session struct {
	CanTrade       bool   `json:"can_trade"`
	Recommendation string `json:"recommendation,omitempty"`
}

// VolatilityIndex is the current VIX-style reading.
type VolatilityIndex struct {
	Value float64 `json:"value"`
}
