package entry

import (
	"fmt"

	"github.com/Rajchodisetti/riskgate/internal/market"
)

// Config sets how confidence is built from optional conditions.
type Config struct {
	Thresholds        Thresholds
	BaseConfidence    float64
	BonusPerCondition float64
}

func DefaultConfig() Config {
	return Config{
		Thresholds:        DefaultThresholds(),
		BaseConfidence:    0.5,
		BonusPerCondition: 0.1,
	}
}

// Result is the outcome of evaluating one direction.
type Result struct {
	Confirmed      bool              `json:"confirmed"`
	Direction      market.Direction  `json:"direction"`
	RequiredMet    []string          `json:"required_met"`
	RequiredFailed []string          `json:"required_failed"`
	OptionalMet    []string          `json:"optional_met"`
	OptionalMissed []string          `json:"optional_missed"`
	Errors         map[string]string `json:"errors,omitempty"`
	Confidence     float64           `json:"confidence"`
	BlockReason    string            `json:"block_reason,omitempty"`
}

// OptionalRatio is the share of optional conditions met.
func (r Result) OptionalRatio() float64 {
	total := len(r.OptionalMet) + len(r.OptionalMissed)
	if total == 0 {
		return 0
	}
	return float64(len(r.OptionalMet)) / float64(total)
}

type conditionSet struct {
	required []Condition
	optional []Condition
}

// Engine evaluates the REQUIRED/OPTIONAL condition tables. It holds no
// mutable state and may be shared between goroutines.
type Engine struct {
	cfg  Config
	sets map[market.Direction]conditionSet
}

func NewEngine(cfg Config) *Engine {
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}
	e := &Engine{cfg: cfg, sets: map[market.Direction]conditionSet{}}
	for _, dir := range []market.Direction{market.Long, market.Short} {
		req, opt := Conditions(dir)
		e.sets[dir] = conditionSet{required: req, optional: opt}
	}
	return e
}

// Evaluate checks dir against s. Required conditions fail closed and the first
// failure becomes the block reason; optional conditions are then skipped.
func (e *Engine) Evaluate(dir market.Direction, s market.Snapshot) Result {
	set, ok := e.sets[dir]
	if !ok {
		return Result{
			Direction:   dir,
			BlockReason: fmt.Sprintf("unsupported direction %q", dir),
		}
	}

	res := Result{
		Direction:      dir,
		RequiredMet:    []string{},
		RequiredFailed: []string{},
		OptionalMet:    []string{},
		OptionalMissed: []string{},
	}

	for _, c := range set.required {
		if e.check(c, s, &res) {
			res.RequiredMet = append(res.RequiredMet, c.Name)
		} else {
			res.RequiredFailed = append(res.RequiredFailed, c.Name)
		}
	}
	if len(res.RequiredFailed) > 0 {
		for _, c := range set.optional {
			res.OptionalMissed = append(res.OptionalMissed, c.Name)
		}
		res.BlockReason = "Required condition failed: " + res.RequiredFailed[0]
		return res
	}

	for _, c := range set.optional {
		if e.check(c, s, &res) {
			res.OptionalMet = append(res.OptionalMet, c.Name)
		} else {
			res.OptionalMissed = append(res.OptionalMissed, c.Name)
		}
	}

	res.Confirmed = true
	res.Confidence = e.cfg.BaseConfidence + float64(len(res.OptionalMet))*e.cfg.BonusPerCondition
	if res.Confidence > 1 {
		res.Confidence = 1
	}
	return res
}

func (e *Engine) check(c Condition, s market.Snapshot, res *Result) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			e.recordErr(res, c.Name, fmt.Sprint(r))
		}
	}()
	met, err := c.Evaluate(s, e.cfg.Thresholds)
	if err != nil {
		e.recordErr(res, c.Name, err.Error())
		return false
	}
	return met
}

func (e *Engine) recordErr(res *Result, name, msg string) {
	if res.Errors == nil {
		res.Errors = map[string]string{}
	}
	res.Errors[name] = msg
}

// BestDirection evaluates both sides. One confirmed side wins; with both
// confirmed the higher confidence wins; with neither, the side with fewer
// required failures is returned for diagnostics. Ties go to LONG.
func (e *Engine) BestDirection(s market.Snapshot) Result {
	long := e.Evaluate(market.Long, s)
	short := e.Evaluate(market.Short, s)

	switch {
	case long.Confirmed && !short.Confirmed:
		return long
	case short.Confirmed && !long.Confirmed:
		return short
	case long.Confirmed && short.Confirmed:
		if long.Confidence >= short.Confidence {
			return long
		}
		return short
	}
	if len(long.RequiredFailed) <= len(short.RequiredFailed) {
		return long
	}
	return short
}

// Summary describes the condition table for one direction.
type Summary struct {
	Direction market.Direction `json:"direction"`
	Required  []Condition      `json:"required"`
	Optional  []Condition      `json:"optional"`
}

// Summary lists the conditions checked for dir.
func (e *Engine) Summary(dir market.Direction) Summary {
	set := e.sets[dir]
	return Summary{
		Direction: dir,
		Required:  append([]Condition(nil), set.required...),
		Optional:  append([]Condition(nil), set.optional...),
	}
}
