package market

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMissingField = errors.New("missing field")
	ErrWrongType    = errors.New("wrong field type")
)

// Snapshot keys read by entry conditions.
const (
	KeyTrend1H    = "trend_1h"
	KeyTrend4H    = "trend_4h"
	KeyPrice      = "price"
	KeyVWAP       = "vwap"
	KeyRSI        = "rsi"
	KeyADX        = "adx"
	KeyIsGoodTime = "is_good_time"
	KeyVIX        = "vix"
	KeyPivotPP    = "pivot_pp"
	KeyPivotS1    = "pivot_s1"
	KeyPivotR1    = "pivot_r1"
	KeyMACDHist   = "macd_hist"
)

// Snapshot is the flat key/value view of market state consumed by
// entry conditions. It is the one place loosely typed data is allowed.
type Snapshot map[string]any

// Has reports whether key is present and non-nil.
func (s Snapshot) Has(key string) bool {
	v, ok := s[key]
	return ok && v != nil
}

// Float reads a numeric field.
func (s Snapshot) Float(key string) (float64, error) {
	v, ok := s[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrWrongType, key, err)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%w: %s is %T", ErrWrongType, key, v)
}

// Bool reads a boolean field.
func (s Snapshot) Bool(key string) (bool, error) {
	v, ok := s[key]
	if !ok || v == nil {
		return false, fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s is %T", ErrWrongType, key, v)
	}
	return b, nil
}

// Trend reads a trend direction field stored as a string or TrendDirection.
func (s Snapshot) Trend(key string) (TrendDirection, error) {
	v, ok := s[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	switch t := v.(type) {
	case TrendDirection:
		return t, nil
	case string:
		return TrendDirection(t), nil
	}
	return "", fmt.Errorf("%w: %s is %T", ErrWrongType, key, v)
}

// SnapshotInput is the typed state a Snapshot is built from.
type SnapshotInput struct {
	Session    Session
	VIX        VolatilityIndex
	MTF        MTF
	Indicators Indicators
	Price      float64
}

// BuildSnapshot flattens typed inputs into a Snapshot. Absent values are left out
// so that conditions depending on them fail closed.
func BuildSnapshot(in SnapshotInput) Snapshot {
	s := Snapshot{
		KeyIsGoodTime: in.Session.CanTrade,
		KeyVIX:        in.VIX.Value,
	}
	if in.Price > 0 {
		s[KeyPrice] = in.Price
	}
	if t, ok := in.MTF.Trend(TF1H); ok && t.Direction != "" {
		s[KeyTrend1H] = t.Direction
	}
	if t, ok := in.MTF.Trend(TF4H); ok && t.Direction != "" {
		s[KeyTrend4H] = t.Direction
	}
	setFloat(s, KeyVWAP, in.Indicators.VWAP)
	setFloat(s, KeyRSI, in.Indicators.RSI)
	setFloat(s, KeyADX, in.Indicators.ADX)
	setFloat(s, KeyMACDHist, in.Indicators.MACDHist)
	if v, ok := in.Indicators.Pivots.Level("PP"); ok {
		s[KeyPivotPP] = v
	}
	if v, ok := in.Indicators.Pivots.Level("S1"); ok {
		s[KeyPivotS1] = v
	}
	if v, ok := in.Indicators.Pivots.Level("R1"); ok {
		s[KeyPivotR1] = v
	}
	return s
}

func setFloat(s Snapshot, key string, v *float64) {
	if v != nil {
		s[key] = *v
	}
}
