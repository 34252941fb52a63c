package horizon

import (
	"fmt"
	"time"

	"github.com/Rajchodisetti/riskgate/internal/sentiment"
)

// Catalyst is what is expected to move the market.
type Catalyst string

const (
	Technical Catalyst = "technical"
	News      Catalyst = "news"
	Earnings  Catalyst = "earnings"
	Macro     Catalyst = "macro"
)

// Input is everything horizon detection looks at.
type Input struct {
	Volatility      float64 // ATR / price
	Catalyst        Catalyst
	TrendStrength   float64
	ADX             float64
	SentimentRegime sentiment.Regime
}

// Rules are the thresholds of the detection priority list.
type Rules struct {
	NewsVolatility float64
	StrongADX      float64
	StrongTrend    float64
	ModerateADX    float64
	ModerateTrend  float64
}

func DefaultRules() Rules {
	return Rules{
		NewsVolatility: 0.02,
		StrongADX:      30,
		StrongTrend:    0.7,
		ModerateADX:    20,
		ModerateTrend:  0.5,
	}
}

// Context is a detected horizon together with the parameters derived from it.
type Context struct {
	Horizon      Horizon       `json:"horizon"`
	MaxDuration  time.Duration `json:"max_duration"`
	SLMultiplier float64       `json:"sl_multiplier"`
	RRRatio      float64       `json:"rr_ratio"`
	Reason       string        `json:"reason"`
}

// Detector classifies holding horizons. It holds no mutable state.
type Detector struct {
	rules Rules
	table Table
}

func NewDetector(table Table, rules Rules) *Detector {
	if len(table) == 0 {
		table = DefaultTable()
	}
	if rules == (Rules{}) {
		rules = DefaultRules()
	}
	return &Detector{rules: rules, table: table}
}

// Detect returns the first matching horizon of the priority list.
func (d *Detector) Detect(in Input) Horizon {
	h, _ := d.detect(in)
	return h
}

// DetectContext detects the horizon and resolves its multipliers.
func (d *Detector) DetectContext(in Input, volRegime string) Context {
	h, reason := d.detect(in)
	cfg := d.table.Get(h)
	return Context{
		Horizon:      h,
		MaxDuration:  cfg.MaxDuration,
		SLMultiplier: cfg.SLMultiplierFor(volRegime),
		RRRatio:      cfg.RRRatioFor(in.TrendStrength),
		Reason:       reason,
	}
}

// Config returns the table entry for h, DAILY when unknown.
func (d *Detector) Config(h Horizon) Config {
	return d.table.Get(h)
}

// Table exposes the horizon table.
func (d *Detector) Table() Table {
	return d.table
}

func (d *Detector) detect(in Input) (Horizon, string) {
	r := d.rules
	switch {
	case in.SentimentRegime == sentiment.Panic:
		return Daily, "panic sentiment regime"
	case in.Volatility > r.NewsVolatility && (in.Catalyst == News || in.Catalyst == Earnings):
		return Daily, fmt.Sprintf("high volatility (%.2f%%) with %s catalyst", in.Volatility*100, in.Catalyst)
	case in.Catalyst == Macro:
		return Monthly, "macro catalyst"
	case in.ADX > r.StrongADX || in.TrendStrength > r.StrongTrend:
		return Weekly, fmt.Sprintf("strong trend (ADX=%.1f, strength=%.2f)", in.ADX, in.TrendStrength)
	case in.ADX > r.ModerateADX || in.TrendStrength > r.ModerateTrend:
		return Weekly, fmt.Sprintf("moderate trend (ADX=%.1f, strength=%.2f)", in.ADX, in.TrendStrength)
	}
	return Daily, "no clear trend"
}
