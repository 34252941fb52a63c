package horizon

import (
	"fmt"
	"strings"
	"time"
)

// Horizon is the intended holding-duration class of a trade.
type Horizon string

const (
	Daily   Horizon = "DAILY"
	Weekly  Horizon = "WEEKLY"
	Monthly Horizon = "MONTHLY"
)

// Parse accepts a horizon name in any case.
func Parse(s string) (Horizon, error) {
	switch h := Horizon(strings.ToUpper(strings.TrimSpace(s))); h {
	case Daily, Weekly, Monthly:
		return h, nil
	}
	return "", fmt.Errorf("unknown horizon %q", s)
}

// Range is an inclusive [Min, Max] pair.
type Range struct {
	Min float64
	Max float64
}

// Mid is the midpoint of the range.
func (r Range) Mid() float64 {
	return (r.Min + r.Max) / 2
}

// Lerp interpolates linearly, t clamped to [0,1].
func (r Range) Lerp(t float64) float64 {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return r.Min + (r.Max-r.Min)*t
}

// Volatility regime labels used to pick a stop-loss multiplier.
const (
	VolLow    = "low"
	VolNormal = "normal"
	VolHigh   = "high"
)

// Config binds a horizon to its duration and stop/target scaling.
type Config struct {
	MaxDuration  time.Duration
	SLMultiplier Range
	RRRatio      Range
}

// SLMultiplierFor picks max for high volatility, min for low, and the midpoint otherwise.
func (c Config) SLMultiplierFor(volRegime string) float64 {
	switch strings.ToLower(volRegime) {
	case VolHigh:
		return c.SLMultiplier.Max
	case VolLow:
		return c.SLMultiplier.Min
	}
	return c.SLMultiplier.Mid()
}

// RRRatioFor interpolates the risk:reward ratio by trend strength.
func (c Config) RRRatioFor(trendStrength float64) float64 {
	return c.RRRatio.Lerp(trendStrength)
}

// Table holds the per-horizon configuration.
type Table map[Horizon]Config

// DefaultTable returns the stock horizon settings.
func DefaultTable() Table {
	return Table{
		Daily: {
			MaxDuration:  48 * time.Hour,
			SLMultiplier: Range{Min: 0.8, Max: 1.2},
			RRRatio:      Range{Min: 1.0, Max: 1.8},
		},
		Weekly: {
			MaxDuration:  7 * 24 * time.Hour,
			SLMultiplier: Range{Min: 1.2, Max: 1.8},
			RRRatio:      Range{Min: 1.5, Max: 2.5},
		},
		Monthly: {
			MaxDuration:  30 * 24 * time.Hour,
			SLMultiplier: Range{Min: 2.0, Max: 2.5},
			RRRatio:      Range{Min: 2.0, Max: 3.0},
		},
	}
}

// Get returns the config for h. Unknown horizons fall back to DAILY.
func (t Table) Get(h Horizon) Config {
	if c, ok := t[h]; ok {
		return c
	}
	if c, ok := t[Daily]; ok {
		return c
	}
	return DefaultTable()[Daily]
}

// VolRegimeFromVIX maps a volatility index reading to a regime label.
func VolRegimeFromVIX(vix, high, low float64) string {
	switch {
	case vix > high:
		return VolHigh
	case vix < low:
		return VolLow
	}
	return VolNormal
}
