package sentiment

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Rajchodisetti/riskgate/internal/observ"
)

// ErrSourceThrottled is returned when a source exceeds its ingest rate.
var ErrSourceThrottled = errors.New("sentiment source throttled")

// AggregatorConfig configures an Aggregator.
type AggregatorConfig struct {
	TTL        TTLTable
	Thresholds Thresholds
	// IngestPerSourcePerMinute caps signals accepted per source. 0 disables the cap.
	IngestPerSourcePerMinute int
}

// Aggregator collects signals and builds contexts from the currently valid set.
// It is safe for concurrent use.
type Aggregator struct {
	mu       sync.Mutex
	signals  []Signal
	cfg      AggregatorConfig
	limiters map[string]*rate.Limiter
}

// NewAggregator creates an aggregator. Zero-valued config parts fall back to defaults.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	if cfg.TTL.BySource == nil && cfg.TTL.Default == 0 {
		cfg.TTL = DefaultTTLTable()
	}
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}
	return &Aggregator{
		cfg:      cfg,
		limiters: make(map[string]*rate.Limiter),
	}
}

// AddSignal records an observation from source made at now. Out-of-range
// value and confidence are clamped.
func (a *Aggregator) AddSignal(source string, value, confidence float64, now time.Time) (Signal, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.allow(source, now) {
		observ.IncCounter("sentiment_signals_total", map[string]string{"source": source, "result": "throttled"})
		observ.Warn("sentiment_signal_throttled", map[string]any{
			"source":     source,
			"per_minute": a.cfg.IngestPerSourcePerMinute,
		})
		return Signal{}, fmt.Errorf("%w: %s", ErrSourceThrottled, source)
	}

	sig := NewSignal(source, value, confidence, now, a.cfg.TTL.TTL(source))
	a.signals = append(a.signals, sig)
	observ.IncCounter("sentiment_signals_total", map[string]string{"source": source, "result": "accepted"})
	return sig, nil
}

func (a *Aggregator) allow(source string, now time.Time) bool {
	n := a.cfg.IngestPerSourcePerMinute
	if n <= 0 {
		return true
	}
	lim, ok := a.limiters[source]
	if !ok {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
		a.limiters[source] = lim
	}
	return lim.AllowN(now, 1)
}

// Context builds the aggregate view at now.
func (a *Aggregator) Context(now time.Time) Context {
	a.mu.Lock()
	snapshot := make([]Signal, len(a.signals))
	copy(snapshot, a.signals)
	th := a.cfg.Thresholds
	a.mu.Unlock()

	return Build(snapshot, now, th)
}

// ClearExpired drops signals that are past their ttl and returns how many were removed.
func (a *Aggregator) ClearExpired(now time.Time) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	kept := a.signals[:0]
	for _, s := range a.signals {
		if !s.Expired(now) {
			kept = append(kept, s)
		}
	}
	removed := len(a.signals) - len(kept)
	a.signals = kept
	return removed
}

// Clear drops every signal.
func (a *Aggregator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signals = nil
}

// Len is the number of stored signals, expired or not.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.signals)
}
