package risk

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Rajchodisetti/riskgate/internal/horizon"
	"github.com/Rajchodisetti/riskgate/internal/market"
)

var ErrInvalidLevels = errors.New("invalid stop-loss input")

// StopLossConfig configures stop and target synthesis.
type StopLossConfig struct {
	Precision       int32   // decimal places of the instrument
	StructureBuffer float64 // multiplier on the distance to a pivot
	DefaultSLPct    float64
	DefaultRR       float64
	VIXHigh         float64
	VIXLow          float64
}

func DefaultStopLossConfig() StopLossConfig {
	return StopLossConfig{
		Precision:       5,
		StructureBuffer: 1.01,
		DefaultSLPct:    0.02,
		DefaultRR:       2.0,
		VIXHigh:         25,
		VIXLow:          15,
	}
}

// Levels is a stop-loss / take-profit pair with the distances behind it.
type Levels struct {
	Direction         market.Direction `json:"direction"`
	Entry             float64          `json:"entry"`
	StopLoss          float64          `json:"stop_loss"`
	TakeProfit        float64          `json:"take_profit"`
	SLDistance        float64          `json:"sl_distance"`
	TPDistance        float64          `json:"tp_distance"`
	SLPct             float64          `json:"sl_pct"`
	TPPct             float64          `json:"tp_pct"`
	RiskReward        float64          `json:"risk_reward"`
	ATRDistance       float64          `json:"atr_distance,omitempty"`
	StructureDistance float64          `json:"structure_distance,omitempty"`
	StructureLevel    string           `json:"structure_level,omitempty"`
	SLMultiplier      float64          `json:"sl_multiplier,omitempty"`
	RRRatio           float64          `json:"rr_ratio,omitempty"`
	Method            string           `json:"method"`
}

// StopLossCalculator derives protective stops and targets. It is stateless.
type StopLossCalculator struct {
	cfg   StopLossConfig
	table horizon.Table
}

func NewStopLossCalculator(table horizon.Table, cfg StopLossConfig) *StopLossCalculator {
	if len(table) == 0 {
		table = horizon.DefaultTable()
	}
	def := DefaultStopLossConfig()
	if cfg.Precision <= 0 {
		cfg.Precision = def.Precision
	}
	if cfg.VIXHigh <= 0 {
		cfg.VIXHigh = def.VIXHigh
	}
	if cfg.VIXLow <= 0 {
		cfg.VIXLow = def.VIXLow
	}
	if cfg.StructureBuffer <= 0 {
		cfg.StructureBuffer = 1.01
	}
	if cfg.DefaultSLPct <= 0 {
		cfg.DefaultSLPct = 0.02
	}
	if cfg.DefaultRR <= 0 {
		cfg.DefaultRR = 2.0
	}
	return &StopLossCalculator{cfg: cfg, table: table}
}

// AdaptiveInput is what the adaptive stop needs.
type AdaptiveInput struct {
	Entry         float64
	ATR           float64
	Direction     market.Direction
	Horizon       horizon.Horizon
	VIX           float64
	TrendStrength float64
	Pivots        market.Pivots
}

// Adaptive takes the wider of the ATR distance and the pivot structure distance.
func (c *StopLossCalculator) Adaptive(in AdaptiveInput) (Levels, error) {
	if err := validate(in.Entry, in.Direction); err != nil {
		return Levels{}, err
	}
	if in.ATR < 0 {
		return Levels{}, fmt.Errorf("%w: atr %.5f", ErrInvalidLevels, in.ATR)
	}

	hc := c.table.Get(in.Horizon)
	slMult := hc.SLMultiplierFor(horizon.VolRegimeFromVIX(in.VIX, c.cfg.VIXHigh, c.cfg.VIXLow))
	rr := hc.RRRatioFor(in.TrendStrength)

	atrDist := in.ATR * slMult
	structDist, level := c.structureDistance(in.Entry, in.Direction, in.Pivots)

	slDist, method := atrDist, "atr"
	if structDist > 0 && structDist >= atrDist {
		slDist, method = structDist, "structure"
	}

	lv := c.levels(in.Entry, in.Direction, slDist, slDist*rr)
	lv.ATRDistance = atrDist
	lv.StructureDistance = structDist
	lv.StructureLevel = level
	lv.SLMultiplier = slMult
	lv.RRRatio = rr
	lv.Method = method
	return lv, nil
}

// structureDistance measures to S1 (long) or R1 (short), falling back to PP,
// and widens by the configured buffer. Zero means no usable pivot.
func (c *StopLossCalculator) structureDistance(entry float64, dir market.Direction, p market.Pivots) (float64, string) {
	if len(p) == 0 {
		return 0, ""
	}
	if dir == market.Long {
		if s1, ok := p.Level("S1"); ok && s1 < entry {
			return (entry - s1) * c.cfg.StructureBuffer, "S1"
		}
		if pp, ok := p.Level("PP"); ok && pp < entry {
			return (entry - pp) * c.cfg.StructureBuffer, "PP"
		}
		return 0, ""
	}
	if r1, ok := p.Level("R1"); ok && r1 > entry {
		return (r1 - entry) * c.cfg.StructureBuffer, "R1"
	}
	if pp, ok := p.Level("PP"); ok && pp > entry {
		return (pp - entry) * c.cfg.StructureBuffer, "PP"
	}
	return 0, ""
}

// ATRBased places the stop at atr*slMult and the target at atr*tpMult.
func (c *StopLossCalculator) ATRBased(entry, atr float64, dir market.Direction, slMult, tpMult float64) (Levels, error) {
	if err := validate(entry, dir); err != nil {
		return Levels{}, err
	}
	if atr <= 0 || slMult <= 0 || tpMult <= 0 {
		return Levels{}, fmt.Errorf("%w: atr=%.5f sl_mult=%.2f tp_mult=%.2f", ErrInvalidLevels, atr, slMult, tpMult)
	}
	lv := c.levels(entry, dir, atr*slMult, atr*tpMult)
	lv.ATRDistance = atr * slMult
	lv.SLMultiplier = slMult
	lv.Method = "atr"
	return lv, nil
}

// FixedPercentage places stop and target a fixed fraction from entry.
// A zero slPct uses the default; a zero tpPct uses slPct times the default RR.
func (c *StopLossCalculator) FixedPercentage(entry float64, dir market.Direction, slPct, tpPct float64) (Levels, error) {
	if err := validate(entry, dir); err != nil {
		return Levels{}, err
	}
	if slPct <= 0 {
		slPct = c.cfg.DefaultSLPct
	}
	if tpPct <= 0 {
		tpPct = slPct * c.cfg.DefaultRR
	}
	lv := c.levels(entry, dir, entry*slPct, entry*tpPct)
	lv.Method = "fixed"
	return lv, nil
}

// SupportResistance places the stop just beyond the protective level and the
// target just before the opposite one.
func (c *StopLossCalculator) SupportResistance(entry, support, resistance float64, dir market.Direction, bufferPct float64) (Levels, error) {
	if err := validate(entry, dir); err != nil {
		return Levels{}, err
	}
	if support <= 0 || resistance <= 0 || support >= resistance {
		return Levels{}, fmt.Errorf("%w: support=%.5f resistance=%.5f", ErrInvalidLevels, support, resistance)
	}
	if bufferPct < 0 {
		bufferPct = 0
	}

	var sl, tp float64
	if dir == market.Long {
		sl = support * (1 - bufferPct)
		tp = resistance * (1 - bufferPct)
	} else {
		sl = resistance * (1 + bufferPct)
		tp = support * (1 + bufferPct)
	}
	slDist, tpDist := abs(entry-sl), abs(tp-entry)
	lv := Levels{
		Direction:  dir,
		Entry:      entry,
		StopLoss:   c.roundStop(sl, dir),
		TakeProfit: c.Round(tp),
		SLDistance: slDist,
		TPDistance: tpDist,
		SLPct:      slDist / entry,
		TPPct:      tpDist / entry,
		Method:     "support_resistance",
	}
	if slDist > 0 {
		lv.RiskReward = tpDist / slDist
	}
	return lv, nil
}

// TrailingStop is the current trailing level for an open position.
type TrailingStop struct {
	Stop      float64 `json:"stop"`
	Triggered bool    `json:"triggered"`
}

// Trailing trails trailPct behind the best price seen, never looser than the
// initial stop at entry.
func (c *StopLossCalculator) Trailing(entry, current, highest, lowest float64, dir market.Direction, trailPct float64) (TrailingStop, error) {
	if err := validate(entry, dir); err != nil {
		return TrailingStop{}, err
	}
	if trailPct <= 0 {
		trailPct = c.cfg.DefaultSLPct
	}
	if dir == market.Long {
		stop := highest * (1 - trailPct)
		if initial := entry * (1 - trailPct); initial > stop {
			stop = initial
		}
		stop = c.roundStop(stop, dir)
		return TrailingStop{Stop: stop, Triggered: current <= stop}, nil
	}
	stop := lowest * (1 + trailPct)
	if initial := entry * (1 + trailPct); initial < stop || lowest <= 0 {
		stop = initial
	}
	stop = c.roundStop(stop, dir)
	return TrailingStop{Stop: stop, Triggered: current >= stop}, nil
}

// Chandelier hangs the stop multiplier ATRs off the highest high (long) or
// lowest low (short).
func (c *StopLossCalculator) Chandelier(highestHigh, lowestLow, atr, multiplier float64, dir market.Direction) (float64, error) {
	if dir != market.Long && dir != market.Short {
		return 0, fmt.Errorf("%w: direction %q", ErrInvalidLevels, dir)
	}
	if atr <= 0 {
		return 0, fmt.Errorf("%w: atr %.5f", ErrInvalidLevels, atr)
	}
	if multiplier <= 0 {
		multiplier = 3.0
	}
	if dir == market.Long {
		return c.roundStop(highestHigh-atr*multiplier, dir), nil
	}
	return c.roundStop(lowestLow+atr*multiplier, dir), nil
}

// Breakeven is the price that covers round-trip commission.
func (c *StopLossCalculator) Breakeven(entry, commissionPct float64, dir market.Direction) float64 {
	total := 2 * commissionPct
	if dir == market.Short {
		return c.Round(entry * (1 - total))
	}
	return c.Round(entry * (1 + total))
}

// Round rounds to instrument precision.
func (c *StopLossCalculator) Round(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(c.cfg.Precision).Float64()
	return f
}

// roundStop rounds away from entry so rounding never tightens a stop.
func (c *StopLossCalculator) roundStop(v float64, dir market.Direction) float64 {
	d := decimal.NewFromFloat(v)
	if dir == market.Long {
		d = d.RoundFloor(c.cfg.Precision)
	} else {
		d = d.RoundCeil(c.cfg.Precision)
	}
	f, _ := d.Float64()
	return f
}

func (c *StopLossCalculator) levels(entry float64, dir market.Direction, slDist, tpDist float64) Levels {
	var sl, tp float64
	if dir == market.Long {
		sl, tp = entry-slDist, entry+tpDist
	} else {
		sl, tp = entry+slDist, entry-tpDist
	}
	lv := Levels{
		Direction:  dir,
		Entry:      entry,
		StopLoss:   c.roundStop(sl, dir),
		TakeProfit: c.Round(tp),
		SLDistance: slDist,
		TPDistance: tpDist,
		SLPct:      slDist / entry,
		TPPct:      tpDist / entry,
	}
	if slDist > 0 {
		lv.RiskReward = tpDist / slDist
	}
	return lv
}

func validate(entry float64, dir market.Direction) error {
	if entry <= 0 {
		return fmt.Errorf("%w: entry price %.5f", ErrInvalidLevels, entry)
	}
	if dir != market.Long && dir != market.Short {
		return fmt.Errorf("%w: direction %q", ErrInvalidLevels, dir)
	}
	return nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
