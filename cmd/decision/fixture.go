package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Rajchodisetti/riskgate/internal/decision"
	"github.com/Rajchodisetti/riskgate/internal/horizon"
	"github.com/Rajchodisetti/riskgate/internal/market"
	"github.com/Rajchodisetti/riskgate/internal/observ"
	"github.com/Rajchodisetti/riskgate/internal/sentiment"
)

type signalFixture struct {
	Source     string  `json:"source"`
	Value      float64 `json:"value"`
	Confidence float64 `json:"confidence"`
	AgeHours   float64 `json:"age_hours"`
}

// marketFixture is the on-disk form of one decision input.
type marketFixture struct {
	Session    market.Session         `json:"session"`
	VIX        market.VolatilityIndex `json:"volatility_index"`
	Sentiment  []signalFixture        `json:"sentiment"`
	MTF        market.MTF             `json:"mtf"`
	Indicators market.Indicators      `json:"indicators"`
	Price      float64                `json:"current_price"`
	Catalyst   horizon.Catalyst       `json:"catalyst,omitempty"`
}

func loadFixture(path string) (marketFixture, error) {
	var f marketFixture
	b, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := json.Unmarshal(b, &f); err != nil {
		return f, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}

// input replays the fixture's signals into agg and builds the decision input at now.
func (f marketFixture) input(agg *sentiment.Aggregator, now time.Time) decision.Input {
	for _, s := range f.Sentiment {
		at := now.Add(-time.Duration(s.AgeHours * float64(time.Hour)))
		if _, err := agg.AddSignal(s.Source, s.Value, s.Confidence, at); err != nil {
			observ.Warn("fixture_signal_skipped", map[string]any{"source": s.Source, "error": err.Error()})
		}
	}
	return decision.Input{
		Session:    f.Session,
		VIX:        f.VIX,
		Sentiment:  agg.Context(now),
		MTF:        f.MTF,
		Indicators: f.Indicators,
		Price:      f.Price,
		Catalyst:   f.Catalyst,
	}
}

func (f marketFixture) snapshot() market.Snapshot {
	return market.BuildSnapshot(market.SnapshotInput{
		Session:    f.Session,
		VIX:        f.VIX,
		MTF:        f.MTF,
		Indicators: f.Indicators,
		Price:      f.Price,
	})
}
