package sentiment

import (
	"math"
	"time"

	"github.com/Rajchodisetti/riskgate/internal/market"
)

// Regime is the emotional intensity of the current sentiment.
type Regime string

const (
	Calm      Regime = "CALM"
	Emotional Regime = "EMOTIONAL"
	Panic     Regime = "PANIC"
)

// Severity grades how strongly sentiment opposes a direction.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// Thresholds used to classify a signal set.
type Thresholds struct {
	DirectionThreshold    float64 // |value| above this sets a bias
	ExtremeValue          float64 // |value| above this counts as extreme
	PanicExtremeRatio     float64
	PanicSpread           float64
	PanicConfidence       float64
	EmotionalConfidence   float64
	EmotionalExtremeRatio float64
	UnbiasedConfidence    float64 // below this, any direction is allowed
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		DirectionThreshold:    0.15,
		ExtremeValue:          0.7,
		PanicExtremeRatio:     0.5,
		PanicSpread:           1.0,
		PanicConfidence:       0.6,
		EmotionalConfidence:   0.5,
		EmotionalExtremeRatio: 0.2,
		UnbiasedConfidence:    0.4,
	}
}

// Context is the aggregate view of all valid signals at one instant.
type Context struct {
	Bias         market.Direction `json:"bias_direction"`
	Confidence   float64          `json:"confidence"`
	Regime       Regime           `json:"regime"`
	Value        float64          `json:"value"`
	Spread       float64          `json:"spread"`
	ExtremeRatio float64          `json:"extreme_ratio"`
	Signals      []Signal         `json:"signals"`

	unbiasedConfidence float64
}

// Neutral is the context produced when no signal is valid.
func Neutral() Context {
	return Context{
		Bias:               market.Neutral,
		Regime:             Calm,
		Signals:            []Signal{},
		unbiasedConfidence: DefaultThresholds().UnbiasedConfidence,
	}
}

// Build computes the context from signals at now. Expired signals are dropped.
// Build does not mutate its input.
func Build(signals []Signal, now time.Time, th Thresholds) Context {
	valid := make([]Signal, 0, len(signals))
	for _, s := range signals {
		if !s.Expired(now) {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		ctx := Neutral()
		ctx.unbiasedConfidence = th.UnbiasedConfidence
		return ctx
	}

	var weighted, totalWeight float64
	extreme := 0
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range valid {
		w := s.Weight(now)
		weighted += s.Value * w
		totalWeight += w
		if math.Abs(s.Value) > th.ExtremeValue {
			extreme++
		}
		lo = math.Min(lo, s.Value)
		hi = math.Max(hi, s.Value)
	}

	value := 0.0
	if totalWeight > 0 {
		value = weighted / totalWeight
	}
	confidence := clamp(totalWeight/float64(len(valid)), 0, 1)

	spread := 0.0
	if len(valid) >= 2 {
		spread = hi - lo
	}
	extremeRatio := float64(extreme) / float64(len(valid))

	bias := market.Neutral
	switch {
	case value > th.DirectionThreshold:
		bias = market.Long
	case value < -th.DirectionThreshold:
		bias = market.Short
	}

	regime := Calm
	switch {
	case extremeRatio > th.PanicExtremeRatio || (spread > th.PanicSpread && confidence > th.PanicConfidence):
		regime = Panic
	case confidence > th.EmotionalConfidence || extremeRatio > th.EmotionalExtremeRatio:
		regime = Emotional
	}

	return Context{
		Bias:               bias,
		Confidence:         confidence,
		Regime:             regime,
		Value:              value,
		Spread:             spread,
		ExtremeRatio:       extremeRatio,
		Signals:            valid,
		unbiasedConfidence: th.UnbiasedConfidence,
	}
}

// PositionModifier scales position size for the sentiment regime.
func (c Context) PositionModifier() float64 {
	switch {
	case c.Regime == Panic:
		return 0.5
	case c.Confidence < 0.3:
		return 0.8
	case c.Regime == Emotional:
		return 0.9
	}
	return 1.0
}

// AllowsDirection is true when sentiment is neutral, weak, or agrees with dir.
func (c Context) AllowsDirection(dir market.Direction) bool {
	if c.Bias == market.Neutral || c.Bias == "" || c.Confidence < c.unbiased() {
		return true
	}
	return c.Bias == dir
}

// ConflictSeverity grades disagreement between sentiment and dir.
func (c Context) ConflictSeverity(dir market.Direction) Severity {
	if c.AllowsDirection(dir) {
		if c.Bias == dir {
			return SeverityNone
		}
		return SeverityMild
	}
	switch {
	case c.Confidence > 0.7 && c.Regime == Panic:
		return SeveritySevere
	case c.Confidence > 0.5:
		return SeverityModerate
	}
	return SeverityMild
}

func (c Context) unbiased() float64 {
	if c.unbiasedConfidence > 0 {
		return c.unbiasedConfidence
	}
	return DefaultThresholds().UnbiasedConfidence
}
