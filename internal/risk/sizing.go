package risk

import (
	"fmt"
	"math"
	"strings"

	"github.com/Rajchodisetti/riskgate/internal/observ"
)

// SizingMethod names a position sizing algorithm.
type SizingMethod string

const (
	SizingFixed      SizingMethod = "fixed"
	SizingKelly      SizingMethod = "kelly"
	SizingVolatility SizingMethod = "volatility"
	SizingRisk       SizingMethod = "risk"
)

// SizingConfig holds the sizing policy.
type SizingConfig struct {
	RiskPct              float64 // fraction of capital risked per trade
	KellyFraction        float64 // fraction of full Kelly, at most 0.5
	KellyCap             float64 // max fraction of capital from Kelly, at most 0.25
	VolatilityMultiplier float64 // ATR multiple used as the stop distance
	MaxPositionPct       float64 // cap for volatility and risk sizing
}

func DefaultSizingConfig() SizingConfig {
	return SizingConfig{
		RiskPct:              0.02,
		KellyFraction:        0.5,
		KellyCap:             0.25,
		VolatilityMultiplier: 2.0,
		MaxPositionPct:       0.5,
	}
}

// SizeRequest carries the inputs of every method; each method reads its own.
type SizeRequest struct {
	Capital float64 `json:"capital"`
	RiskPct float64 `json:"risk_pct,omitempty"`

	WinRate       float64 `json:"win_rate,omitempty"`
	AvgWin        float64 `json:"avg_win,omitempty"`
	AvgLoss       float64 `json:"avg_loss,omitempty"`
	KellyFraction float64 `json:"kelly_fraction,omitempty"`

	ATR   float64 `json:"atr,omitempty"`
	Price float64 `json:"price,omitempty"`

	Entry    float64 `json:"entry,omitempty"`
	StopLoss float64 `json:"stop_loss,omitempty"`
}

// SizeResult is a position value with how it was derived.
type SizeResult struct {
	Requested     SizingMethod `json:"requested"`
	Method        SizingMethod `json:"method"`
	PositionValue float64      `json:"position_value"`
	PositionPct   float64      `json:"position_pct"`
	Capital       float64      `json:"capital"`
	FellBack      bool         `json:"fell_back"`
	Reason        string       `json:"reason,omitempty"`
}

// PositionSizer converts capital and a risk policy into a position value.
type PositionSizer struct {
	cfg SizingConfig
}

func NewPositionSizer(cfg SizingConfig) *PositionSizer {
	def := DefaultSizingConfig()
	if cfg.RiskPct <= 0 {
		cfg.RiskPct = def.RiskPct
	}
	if cfg.KellyFraction <= 0 || cfg.KellyFraction > 0.5 {
		cfg.KellyFraction = def.KellyFraction
	}
	if cfg.KellyCap <= 0 || cfg.KellyCap > def.KellyCap {
		cfg.KellyCap = def.KellyCap
	}
	if cfg.VolatilityMultiplier <= 0 {
		cfg.VolatilityMultiplier = def.VolatilityMultiplier
	}
	if cfg.MaxPositionPct <= 0 {
		cfg.MaxPositionPct = def.MaxPositionPct
	}
	return &PositionSizer{cfg: cfg}
}

func (p *PositionSizer) riskPct(v float64) float64 {
	if v > 0 && !math.IsInf(v, 0) {
		return v
	}
	return p.cfg.RiskPct
}

// Fixed is capital * riskPct.
func (p *PositionSizer) Fixed(capital, riskPct float64) float64 {
	return capital * p.riskPct(riskPct)
}

// Kelly sizes by fractional Kelly, capped. It reports a fallback reason when
// the inputs cannot support Kelly.
func (p *PositionSizer) Kelly(capital, winRate, avgWin, avgLoss, fraction float64) (float64, string) {
	if !finite(winRate, avgWin, avgLoss) {
		return p.Fixed(capital, 0), "kelly: win rate or average win/loss is not a finite number"
	}
	if avgLoss == 0 || avgWin == 0 {
		return p.Fixed(capital, 0), "kelly: average win or loss is zero"
	}
	if winRate <= 0 || winRate >= 1 {
		return p.Fixed(capital, 0), fmt.Sprintf("kelly: win rate %.2f outside (0,1)", winRate)
	}
	if !finite(fraction) || fraction <= 0 || fraction > 0.5 {
		fraction = p.cfg.KellyFraction
	}
	b := math.Abs(avgWin / avgLoss)
	q := 1 - winRate
	kelly := (winRate*b - q) / b
	f := math.Max(0, math.Min(kelly*fraction, p.cfg.KellyCap))
	return capital * f, ""
}

// Volatility sizes so that a stop of ATR*multiplier risks riskPct of capital.
func (p *PositionSizer) Volatility(capital, atr, price, riskPct float64) (float64, string) {
	if !finite(atr, price) || atr <= 0 || price <= 0 {
		return p.Fixed(capital, riskPct), "volatility: ATR or price is not positive"
	}
	slPct := atr / price * p.cfg.VolatilityMultiplier
	v := capital * p.riskPct(riskPct) / slPct
	return math.Min(v, capital*p.cfg.MaxPositionPct), ""
}

// Risk sizes so that the distance to the stop risks riskPct of capital.
func (p *PositionSizer) Risk(capital, entry, stop, riskPct float64) (float64, string) {
	if !finite(entry, stop) {
		return p.Fixed(capital, riskPct), "risk: entry or stop is not a finite number"
	}
	if entry <= 0 {
		return p.Fixed(capital, riskPct), "risk: entry price is not positive"
	}
	slPct := math.Abs(entry-stop) / entry
	if slPct == 0 {
		return p.Fixed(capital, riskPct), "risk: stop distance is zero"
	}
	v := capital * p.riskPct(riskPct) / slPct
	return math.Min(v, capital*p.cfg.MaxPositionPct), ""
}

// Calculate dispatches by method name. Unknown methods use fixed sizing.
func (p *PositionSizer) Calculate(method SizingMethod, req SizeRequest) SizeResult {
	requested := SizingMethod(strings.ToLower(string(method)))
	res := SizeResult{Requested: requested, Method: requested, Capital: req.Capital}

	var reason string
	switch {
	case !finite(req.Capital):
		req.Capital, res.Capital = 0, 0
		reason = "capital is not a finite number"
	case requested == SizingFixed:
		res.PositionValue = p.Fixed(req.Capital, req.RiskPct)
	case requested == SizingKelly:
		res.PositionValue, reason = p.Kelly(req.Capital, req.WinRate, req.AvgWin, req.AvgLoss, req.KellyFraction)
	case requested == SizingVolatility:
		res.PositionValue, reason = p.Volatility(req.Capital, req.ATR, req.Price, req.RiskPct)
	case requested == SizingRisk:
		res.PositionValue, reason = p.Risk(req.Capital, req.Entry, req.StopLoss, req.RiskPct)
	default:
		res.PositionValue = p.Fixed(req.Capital, req.RiskPct)
		reason = fmt.Sprintf("unknown method %q", method)
	}

	if reason != "" {
		res.Method = SizingFixed
		res.FellBack = true
		res.Reason = reason
		observ.IncCounter("position_size_fallbacks_total", map[string]string{"method": string(requested)})
		observ.Warn("position_size_fallback", map[string]any{"requested": string(requested), "reason": reason})
	}
	if req.Capital > 0 {
		res.PositionPct = res.PositionValue / req.Capital
	}
	return res
}

// finite reports whether every value is neither NaN nor infinite.
func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
