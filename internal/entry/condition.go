package entry

import (
	"fmt"

	"github.com/Rajchodisetti/riskgate/internal/market"
)

// Priority splits conditions into hard requirements and confidence bonuses.
type Priority string

const (
	Required Priority = "REQUIRED"
	Optional Priority = "OPTIONAL"
)

// Kind identifies what a condition checks. The direction of the condition
// decides which side of a level counts as passing.
type Kind int

const (
	SessionOpen Kind = iota + 1
	VolatilityAcceptable
	HigherTimeframeNotOpposing
	PriceLocation
	TrendAligned
	RSINotExtreme
	ADXTrending
	BeyondPivot
	MomentumAligned
)

var kindNames = map[Kind]string{
	SessionOpen:                "session_open",
	VolatilityAcceptable:       "volatility_acceptable",
	HigherTimeframeNotOpposing: "higher_timeframe_not_opposing",
	PriceLocation:              "price_location",
	TrendAligned:               "trend_aligned",
	RSINotExtreme:              "rsi_not_extreme",
	ADXTrending:                "adx_trending",
	BeyondPivot:                "beyond_pivot",
	MomentumAligned:            "momentum_aligned",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Thresholds parameterise condition evaluation.
type Thresholds struct {
	VIXMax        float64
	RSIOverbought float64
	RSIOversold   float64
	ADXTrendMin   float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		VIXMax:        30,
		RSIOverbought: 70,
		RSIOversold:   30,
		ADXTrendMin:   20,
	}
}

// Condition is one named, direction-scoped entry check.
type Condition struct {
	Name        string           `json:"name"`
	Kind        Kind             `json:"-"`
	Priority    Priority         `json:"priority"`
	Direction   market.Direction `json:"direction"`
	Description string           `json:"description"`
}

// Evaluate checks the condition against s. A missing or mistyped field
// returns an error, which callers treat as not met.
func (c Condition) Evaluate(s market.Snapshot, th Thresholds) (bool, error) {
	long := c.Direction == market.Long

	switch c.Kind {
	case SessionOpen:
		return s.Bool(market.KeyIsGoodTime)

	case VolatilityAcceptable:
		vix, err := s.Float(market.KeyVIX)
		if err != nil {
			return false, err
		}
		return vix <= th.VIXMax, nil

	case HigherTimeframeNotOpposing:
		tr, err := s.Trend(market.KeyTrend4H)
		if err != nil {
			return false, err
		}
		if long {
			return tr != market.Down, nil
		}
		return tr != market.Up, nil

	case PriceLocation:
		return priceLocation(s, long)

	case TrendAligned:
		tr, err := s.Trend(market.KeyTrend1H)
		if err != nil {
			return false, err
		}
		if long {
			return tr == market.Up, nil
		}
		return tr == market.Down, nil

	case RSINotExtreme:
		rsi, err := s.Float(market.KeyRSI)
		if err != nil {
			return false, err
		}
		if long {
			return rsi < th.RSIOverbought, nil
		}
		return rsi > th.RSIOversold, nil

	case ADXTrending:
		adx, err := s.Float(market.KeyADX)
		if err != nil {
			return false, err
		}
		return adx > th.ADXTrendMin, nil

	case BeyondPivot:
		price, err := s.Float(market.KeyPrice)
		if err != nil {
			return false, err
		}
		pp, err := s.Float(market.KeyPivotPP)
		if err != nil {
			return false, err
		}
		if long {
			return price > pp, nil
		}
		return price < pp, nil

	case MomentumAligned:
		hist, err := s.Float(market.KeyMACDHist)
		if err != nil {
			return false, err
		}
		if long {
			return hist > 0, nil
		}
		return hist < 0, nil
	}
	return false, fmt.Errorf("unknown condition kind %v", c.Kind)
}

// priceLocation passes when price is on the correct side of VWAP or of the
// protective pivot (S1 for longs, R1 for shorts). At least one level must be known.
func priceLocation(s market.Snapshot, long bool) (bool, error) {
	price, err := s.Float(market.KeyPrice)
	if err != nil {
		return false, err
	}
	pivotKey := market.KeyPivotS1
	if !long {
		pivotKey = market.KeyPivotR1
	}

	levels := 0
	for _, key := range []string{market.KeyVWAP, pivotKey} {
		if !s.Has(key) {
			continue
		}
		lvl, err := s.Float(key)
		if err != nil {
			return false, err
		}
		levels++
		if (long && price > lvl) || (!long && price < lvl) {
			return true, nil
		}
	}
	if levels == 0 {
		return false, fmt.Errorf("%w: %s or %s", market.ErrMissingField, market.KeyVWAP, pivotKey)
	}
	return false, nil
}

// Conditions returns the fixed condition table for dir.
func Conditions(dir market.Direction) (required, optional []Condition) {
	if dir == market.Long {
		required = []Condition{
			{Name: "session_ok", Kind: SessionOpen, Description: "trading session is open and liquid"},
			{Name: "volatility_ok", Kind: VolatilityAcceptable, Description: "VIX at or below the maximum"},
			{Name: "htf_not_bearish", Kind: HigherTimeframeNotOpposing, Description: "4H trend is not down"},
			{Name: "price_location_ok", Kind: PriceLocation, Description: "price above VWAP or pivot S1"},
		}
		optional = []Condition{
			{Name: "trend_1h_up", Kind: TrendAligned, Description: "1H trend is up"},
			{Name: "rsi_not_overbought", Kind: RSINotExtreme, Description: "RSI below overbought"},
			{Name: "adx_trend_present", Kind: ADXTrending, Description: "ADX shows a trend"},
			{Name: "above_pivot_pp", Kind: BeyondPivot, Description: "price above pivot point"},
			{Name: "momentum_positive", Kind: MomentumAligned, Description: "MACD histogram positive"},
		}
	} else {
		required = []Condition{
			{Name: "session_ok", Kind: SessionOpen, Description: "trading session is open and liquid"},
			{Name: "volatility_ok", Kind: VolatilityAcceptable, Description: "VIX at or below the maximum"},
			{Name: "htf_not_bullish", Kind: HigherTimeframeNotOpposing, Description: "4H trend is not up"},
			{Name: "price_location_ok", Kind: PriceLocation, Description: "price below VWAP or pivot R1"},
		}
		optional = []Condition{
			{Name: "trend_1h_down", Kind: TrendAligned, Description: "1H trend is down"},
			{Name: "rsi_not_oversold", Kind: RSINotExtreme, Description: "RSI above oversold"},
			{Name: "adx_trend_present", Kind: ADXTrending, Description: "ADX shows a trend"},
			{Name: "below_pivot_pp", Kind: BeyondPivot, Description: "price below pivot point"},
			{Name: "momentum_negative", Kind: MomentumAligned, Description: "MACD histogram negative"},
		}
	}
	for i := range required {
		required[i].Priority = Required
		required[i].Direction = dir
	}
	for i := range optional {
		optional[i].Priority = Optional
		optional[i].Direction = dir
	}
	return required, optional
}
