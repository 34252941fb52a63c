package decision

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Rajchodisetti/riskgate/internal/entry"
	"github.com/Rajchodisetti/riskgate/internal/horizon"
	"github.com/Rajchodisetti/riskgate/internal/market"
	"github.com/Rajchodisetti/riskgate/internal/risk"
	"github.com/Rajchodisetti/riskgate/internal/sentiment"
)

// Config holds the gate thresholds of the decision tree.
type Config struct {
	VIXMax          float64 // above: STOP
	VIXHigh         float64 // above: warning, widest stop multiplier
	VIXLow          float64 // below: tightest stop multiplier
	ADXChaos        float64
	ChaosVolatility float64 // ATR/price
	RangingADX      float64
	TrendingADX     float64
	MTFMinStrength  float64 // a 4H/1D trend counts only above this

	SentimentConflictModifier float64
	PanicModifier             float64

	BaseConfidence  float64
	OptionalWeight  float64
	AlignedBoost    float64
	ConflictPenalty float64

	// MaxStopPct blocks trades whose stop is further than this fraction of
	// entry. Zero disables the check.
	MaxStopPct float64

	DefaultADX           float64
	DefaultTrendStrength float64
	DefaultATRPct        float64
}

func DefaultConfig() Config {
	return Config{
		VIXMax:                    30,
		VIXHigh:                   25,
		VIXLow:                    15,
		ADXChaos:                  15,
		ChaosVolatility:           0.025,
		RangingADX:                20,
		TrendingADX:               40,
		MTFMinStrength:            0.3,
		SentimentConflictModifier: 0.7,
		PanicModifier:             0.5,
		BaseConfidence:            0.5,
		OptionalWeight:            0.3,
		AlignedBoost:              1.2,
		ConflictPenalty:           0.7,
		MaxStopPct:                0.10,
		DefaultADX:                20,
		DefaultTrendStrength:      0.5,
		DefaultATRPct:             0.01,
	}
}

// Input is one evaluation's worth of pre-fetched market state.
type Input struct {
	Session    market.Session
	VIX        market.VolatilityIndex
	Sentiment  sentiment.Context
	MTF        market.MTF
	Indicators market.Indicators
	Price      float64
	Catalyst   horizon.Catalyst // technical when empty
}

// Decider produces a decision from an input.
type Decider interface {
	Decide(in Input) Result
}

// Deps are the collaborators of the engine. Nil fields get defaults.
type Deps struct {
	Entry    *entry.Engine
	Horizon  *horizon.Detector
	StopLoss *risk.StopLossCalculator
	Clock    func() time.Time
	NewID    func() string
}

// Engine runs the gate chain. It holds no mutable state; Decide may be
// called from many goroutines.
type Engine struct {
	cfg     Config
	entry   *entry.Engine
	horizon *horizon.Detector
	sl      *risk.StopLossCalculator
	clock   func() time.Time
	newID   func() string
}

var _ Decider = (*Engine)(nil)

func NewEngine(cfg Config, deps Deps) *Engine {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	if deps.Entry == nil {
		deps.Entry = entry.NewEngine(entry.DefaultConfig())
	}
	if deps.Horizon == nil {
		deps.Horizon = horizon.NewDetector(horizon.DefaultTable(), horizon.DefaultRules())
	}
	if deps.StopLoss == nil {
		deps.StopLoss = risk.NewStopLossCalculator(deps.Horizon.Table(), risk.StopLossConfig{VIXHigh: cfg.VIXHigh, VIXLow: cfg.VIXLow})
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	return &Engine{
		cfg:     cfg,
		entry:   deps.Entry,
		horizon: deps.Horizon,
		sl:      deps.StopLoss,
		clock:   deps.Clock,
		newID:   deps.NewID,
	}
}

// draft accumulates the audit trail while the gates run.
type draft struct {
	res Result
}

func (d *draft) step(format string, args ...any) {
	d.res.DecisionPath = append(d.res.DecisionPath, fmt.Sprintf(format, args...))
}

func (d *draft) pass(format string, args ...any) {
	d.step("PASS: "+format, args...)
}

func (d *draft) warn(format string, args ...any) {
	d.res.Warnings = append(d.res.Warnings, fmt.Sprintf(format, args...))
}

func (d *draft) block(action Action, reason BlockReason, format string, args ...any) Result {
	d.step("BLOCKED: "+format, args...)
	r := d.res
	r.Action = action
	r.BlockReason = reason
	r.Confidence = 0
	r.Horizon = ""
	r.Trade = nil
	return r
}

// Decide runs the gates in order: can-trade, regime, higher-timeframe bias,
// sentiment, entry conditions, horizon, stop/target, confidence. The first
// blocking gate ends the evaluation.
func (e *Engine) Decide(in Input) Result {
	cfg := e.cfg
	d := &draft{res: Result{
		ID:               e.newID(),
		Timestamp:        e.clock(),
		PositionModifier: 1,
		Confirmations:    []string{},
		Warnings:         []string{},
		DecisionPath:     []string{},
	}}

	// 1. can trade
	d.step("Step 1: Checking if can trade")
	if !in.Session.CanTrade {
		msg := in.Session.Recommendation
		if msg == "" {
			msg = "Session closed"
		}
		return d.block(ActionHold, BlockSessionClosed, "%s", msg)
	}
	vix := in.VIX.Value
	if vix > cfg.VIXMax {
		return d.block(ActionStop, BlockVIXTooHigh, "VIX = %.1f > %.0f", vix, cfg.VIXMax)
	}
	if vix > cfg.VIXHigh {
		d.warn("VIX elevated (%.1f) - reduced position size recommended", vix)
	}
	d.pass("Session OK, VIX = %.1f", vix)

	price := in.Price
	if !(price > 0) || math.IsInf(price, 0) {
		return d.block(ActionError, BlockDataError, "current price %v is not a positive number", price)
	}

	// 2. market regime
	d.step("Step 2: Checking market regime")
	adx := valueOr(in.Indicators.ADX, cfg.DefaultADX)
	volatility := valueOr(in.Indicators.ATR, 0) / price
	if adx < cfg.ADXChaos && volatility > cfg.ChaosVolatility {
		return d.block(ActionHold, BlockMarketChaos, "Chaos (ADX=%.1f, vol=%.2f%%)", adx, volatility*100)
	}
	d.res.Regime = e.regime(adx)
	d.pass("Regime = %s (ADX = %.1f)", d.res.Regime, adx)

	// 3. higher timeframe bias
	d.step("Step 3: Checking MTF alignment")
	allowed, bullish, bearish := allowedDirections(in.MTF, cfg.MTFMinStrength)
	if len(allowed) == 0 {
		return d.block(ActionHold, BlockNoClearDirection, "No clear MTF direction (4h/1d without trend)")
	}
	if in.MTF.Conflict {
		d.warn("MTF conflict detected - reduced confidence")
	}
	d.pass("Allowed directions = %s (bullish=%d, bearish=%d)", joinDirs(allowed), bullish, bearish)

	// 4. sentiment gate
	d.step("Step 4: Checking sentiment gate")
	modifier := in.Sentiment.PositionModifier()
	var filtered []market.Direction
	for _, dir := range allowed {
		if in.Sentiment.AllowsDirection(dir) {
			filtered = append(filtered, dir)
			continue
		}
		severity := in.Sentiment.ConflictSeverity(dir)
		if severity == sentiment.SeveritySevere {
			d.step("Sentiment BLOCKS %s (severe conflict)", dir)
			continue
		}
		d.warn("Sentiment warns against %s (%s conflict)", dir, severity)
		filtered = append(filtered, dir)
		modifier *= cfg.SentimentConflictModifier
	}
	if len(filtered) == 0 {
		return d.block(ActionHold, BlockSentimentConflict, "All directions blocked by sentiment")
	}
	if in.Sentiment.Regime == sentiment.Panic {
		modifier *= cfg.PanicModifier
		d.warn("Panic regime - %.0f%% position reduction", (1-cfg.PanicModifier)*100)
	}
	d.res.PositionModifier = modifier
	d.pass("Filtered directions = %s, modifier = %.2f", joinDirs(filtered), modifier)

	// 5. entry conditions
	d.step("Step 5: Checking entry conditions")
	snap := market.BuildSnapshot(market.SnapshotInput{
		Session:    in.Session,
		VIX:        in.VIX,
		MTF:        in.MTF,
		Indicators: in.Indicators,
		Price:      price,
	})
	var best *entry.Result
	dataFailures := 0
	for _, dir := range filtered {
		r := e.entry.Evaluate(dir, snap)
		if !r.Confirmed {
			if failedOnData(r) {
				dataFailures++
			}
			d.step("%s rejected: %s", dir, r.BlockReason)
			continue
		}
		if best == nil || r.OptionalRatio() > best.OptionalRatio() {
			best = &r
		}
	}
	if best == nil {
		if dataFailures == len(filtered) {
			return d.block(ActionError, BlockDataError, "No direction could be evaluated (missing indicator data)")
		}
		return d.block(ActionHold, BlockCriticalConditionsNotMet, "Critical conditions not met")
	}
	d.res.Confirmations = append([]string{}, best.OptionalMet...)
	d.pass("%s with %d confirmations", best.Direction, len(best.OptionalMet))

	// 6. horizon
	d.step("Step 6: Detecting horizon")
	trendStrength := cfg.DefaultTrendStrength
	if t, ok := in.MTF.Trend(market.TF1H); ok {
		trendStrength = t.Strength
	}
	catalyst := in.Catalyst
	if catalyst == "" {
		catalyst = horizon.Technical
	}
	hc := e.horizon.DetectContext(horizon.Input{
		Volatility:      volatility,
		Catalyst:        catalyst,
		TrendStrength:   trendStrength,
		ADX:             adx,
		SentimentRegime: in.Sentiment.Regime,
	}, horizon.VolRegimeFromVIX(vix, cfg.VIXHigh, cfg.VIXLow))
	d.pass("Horizon = %s (%s)", hc.Horizon, hc.Reason)

	// 7. stop-loss and take-profit
	d.step("Step 7: Calculating SL/TP")
	atr := valueOr(in.Indicators.ATR, 0)
	if atr == 0 {
		atr = price * cfg.DefaultATRPct
	}
	lv, err := e.sl.Adaptive(risk.AdaptiveInput{
		Entry:         price,
		ATR:           atr,
		Direction:     best.Direction,
		Horizon:       hc.Horizon,
		VIX:           vix,
		TrendStrength: trendStrength,
		Pivots:        in.Indicators.Pivots,
	})
	if err != nil {
		return d.block(ActionError, BlockDataError, "stop-loss: %v", err)
	}
	if cfg.MaxStopPct > 0 && lv.SLPct > cfg.MaxStopPct {
		return d.block(ActionHold, BlockRiskTooHigh, "Stop distance %.2f%% exceeds %.2f%%", lv.SLPct*100, cfg.MaxStopPct*100)
	}
	d.step("CALCULATED: SL=%.5f, TP=%.5f (%s)", lv.StopLoss, lv.TakeProfit, lv.Method)

	// 8. confidence
	confidence := cfg.BaseConfidence + best.OptionalRatio()*cfg.OptionalWeight
	switch in.MTF.Alignment {
	case market.PerfectBullish, market.PerfectBearish:
		confidence *= cfg.AlignedBoost
	case market.Conflict:
		confidence *= cfg.ConflictPenalty
	}
	confidence = math.Min(1, confidence)
	d.step("Step 8: Confidence = %.3f", confidence)

	res := d.res
	res.Action = ActionLong
	if best.Direction == market.Short {
		res.Action = ActionShort
	}
	res.Confidence = confidence
	res.Horizon = hc.Horizon
	res.Trade = &Trade{
		Entry:            price,
		StopLoss:         lv.StopLoss,
		TakeProfit:       lv.TakeProfit,
		PositionModifier: modifier,
		SLDistance:       lv.SLDistance,
		ATRDistance:      lv.ATRDistance,
		RiskReward:       lv.RiskReward,
		StopMethod:       lv.Method,
	}
	return res
}

func (e *Engine) regime(adx float64) string {
	switch {
	case adx < e.cfg.RangingADX:
		return "ranging"
	case adx < e.cfg.TrendingADX:
		return "trending"
	}
	return "strong_trend"
}

// allowedDirections counts trending 4H and 1D timeframes. Both agreeing
// restricts to that side; otherwise both sides are allowed, majority first.
// No trend on either timeframe allows nothing.
func allowedDirections(mtf market.MTF, minStrength float64) ([]market.Direction, int, int) {
	bullish, bearish := 0, 0
	for _, tf := range []string{market.TF4H, market.TF1D} {
		t, ok := mtf.Trend(tf)
		if !ok || t.Strength <= minStrength {
			continue
		}
		switch t.Direction {
		case market.Up:
			bullish++
		case market.Down:
			bearish++
		}
	}

	switch {
	case bullish == 2:
		return []market.Direction{market.Long}, bullish, bearish
	case bearish == 2:
		return []market.Direction{market.Short}, bullish, bearish
	case bearish > bullish:
		return []market.Direction{market.Short, market.Long}, bullish, bearish
	case bullish == 0 && bearish == 0:
		return nil, bullish, bearish
	}
	return []market.Direction{market.Long, market.Short}, bullish, bearish
}

// failedOnData reports whether the first failed required condition errored
// rather than evaluating to false.
func failedOnData(r entry.Result) bool {
	if len(r.RequiredFailed) == 0 {
		return false
	}
	_, ok := r.Errors[r.RequiredFailed[0]]
	return ok
}

func valueOr(v *float64, def float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return def
	}
	return *v
}

func joinDirs(dirs []market.Direction) string {
	s := make([]string, len(dirs))
	for i, d := range dirs {
		s[i] = string(d)
	}
	return "[" + strings.Join(s, ", ") + "]"
}
