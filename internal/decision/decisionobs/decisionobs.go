// Package decisionobs adds tracing, logging and metrics around a decision.Decider
// so that the engine itself stays free of side effects.
package decisionobs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Rajchodisetti/riskgate/internal/decision"
	"github.com/Rajchodisetti/riskgate/internal/observ"
	"github.com/Rajchodisetti/riskgate/internal/trace"
)

type Observed struct {
	next decision.Decider
}

var _ decision.Decider = (*Observed)(nil)

func Wrap(d decision.Decider) *Observed {
	return &Observed{next: d}
}

// Decide implements decision.Decider with a background context.
func (o *Observed) Decide(in decision.Input) decision.Result {
	return o.DecideContext(context.Background(), in)
}

// DecideContext runs the wrapped decider inside a span and records the outcome.
func (o *Observed) DecideContext(ctx context.Context, in decision.Input) decision.Result {
	ctx, span := trace.StartSpan(ctx, "decision.Decide")
	defer span.End()

	start := time.Now()
	res := o.next.Decide(in)
	elapsed := time.Since(start)

	span.SetAttributes(
		attribute.String("decision.id", res.ID),
		attribute.String("decision.action", string(res.Action)),
		attribute.Float64("decision.confidence", res.Confidence),
		attribute.String("decision.block_reason", string(res.BlockReason)),
		attribute.Int("decision.path_len", len(res.DecisionPath)),
	)

	observ.IncCounter("decisions_total", map[string]string{"action": string(res.Action)})
	observ.RecordDuration("decision_latency", elapsed, nil)

	kv := map[string]any{
		"id":          res.ID,
		"action":      string(res.Action),
		"confidence":  res.Confidence,
		"price":       in.Price,
		"vix":         in.VIX.Value,
		"duration_ms": elapsed.Milliseconds(),
	}
	if traceID, ok := trace.TraceID(ctx); ok {
		kv["trace_id"] = traceID
	}

	if res.BlockReason != decision.BlockNone {
		observ.IncCounter("decision_blocks_total", map[string]string{"reason": string(res.BlockReason)})
		kv["block_reason"] = string(res.BlockReason)
		if n := len(res.DecisionPath); n > 0 {
			kv["blocked_at"] = res.DecisionPath[n-1]
		}
		if res.Action == decision.ActionError {
			observ.Warn("decision_data_error", kv)
			return res
		}
		observ.Log("decision_blocked", kv)
		return res
	}

	kv["horizon"] = string(res.Horizon)
	kv["warnings"] = len(res.Warnings)
	if res.Trade != nil {
		kv["stop_loss"] = res.Trade.StopLoss
		kv["take_profit"] = res.Trade.TakeProfit
		kv["position_modifier"] = res.Trade.PositionModifier
	}
	observ.Log("decision_trade", kv)
	return res
}
