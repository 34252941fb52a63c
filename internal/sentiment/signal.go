package sentiment

import (
	"math"
	"time"
)

// Known sentiment sources.
const (
	SourceTwitter    = "twitter"
	SourceReddit     = "reddit"
	SourceCryptoNews = "crypto_news"
	SourceForexNews  = "forex_news"
	SourceMacroCB    = "macro_cb"
)

// Signal is one sentiment observation. Value and confidence are clamped
// on construction and never change afterwards.
type Signal struct {
	Source     string        `json:"source"`
	Value      float64       `json:"value"`
	Confidence float64       `json:"confidence"`
	Timestamp  time.Time     `json:"timestamp"`
	TTL        time.Duration `json:"ttl"`
}

// NewSignal builds a clamped signal.
func NewSignal(source string, value, confidence float64, ts time.Time, ttl time.Duration) Signal {
	return Signal{
		Source:     source,
		Value:      clamp(value, -1, 1),
		Confidence: clamp(confidence, 0, 1),
		Timestamp:  ts,
		TTL:        ttl,
	}
}

// Age is how old the signal is at now.
func (s Signal) Age(now time.Time) time.Duration {
	return now.Sub(s.Timestamp)
}

// Expired reports age > ttl.
func (s Signal) Expired(now time.Time) bool {
	return s.Age(now) > s.TTL
}

// Decay is max(0, 1 - age/ttl), capped at 1 for signals stamped in the future.
func (s Signal) Decay(now time.Time) float64 {
	if s.TTL <= 0 {
		return 0
	}
	d := 1 - s.Age(now).Hours()/s.TTL.Hours()
	return clamp(d, 0, 1)
}

// Weight is confidence scaled by decay.
func (s Signal) Weight(now time.Time) float64 {
	return s.Confidence * s.Decay(now)
}

// TTLTable maps sources to their time-to-live.
type TTLTable struct {
	BySource map[string]time.Duration
	Default  time.Duration
}

// DefaultTTLTable returns the stock per-source TTLs.
func DefaultTTLTable() TTLTable {
	return TTLTable{
		BySource: map[string]time.Duration{
			SourceTwitter:    12 * time.Hour,
			SourceReddit:     18 * time.Hour,
			SourceCryptoNews: 48 * time.Hour,
			SourceForexNews:  48 * time.Hour,
			SourceMacroCB:    168 * time.Hour,
		},
		Default: 24 * time.Hour,
	}
}

// TTL returns the ttl for source, falling back to Default.
func (t TTLTable) TTL(source string) time.Duration {
	if d, ok := t.BySource[source]; ok && d > 0 {
		return d
	}
	if t.Default > 0 {
		return t.Default
	}
	return 24 * time.Hour
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
