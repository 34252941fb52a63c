package decisionobs

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajchodisetti/riskgate/internal/decision"
	"github.com/Rajchodisetti/riskgate/internal/observ"
	"github.com/Rajchodisetti/riskgate/internal/trace"
)

type stubDecider struct {
	res   decision.Result
	calls int
}

func (s *stubDecider) Decide(decision.Input) decision.Result {
	s.calls++
	return s.res
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		lines = append(lines, m)
	}
	return lines
}

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	observ.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	return rec.Body.String()
}

func TestWrap_BlockedDecision(t *testing.T) {
	observ.ResetMetrics()
	defer observ.ResetMetrics()
	var buf bytes.Buffer
	observ.SetLogOutput(&buf, observ.LogConfig{Level: "debug"})
	defer observ.SetLogOutput(io.Discard, observ.LogConfig{})

	stub := &stubDecider{res: decision.Result{
		ID:           "dec-1",
		Action:       decision.ActionStop,
		BlockReason:  decision.BlockVIXTooHigh,
		DecisionPath: []string{"Step 1: Checking if can trade", "BLOCKED: VIX = 35.0 > 30"},
	}}

	res := Wrap(stub).Decide(decision.Input{})
	assert.Equal(t, stub.res.ID, res.ID)
	assert.Equal(t, 1, stub.calls)

	lines := logLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "decision_blocked", lines[0]["event"])
	assert.Equal(t, "VIX_TOO_HIGH", lines[0]["block_reason"])
	assert.Equal(t, "BLOCKED: VIX = 35.0 > 30", lines[0]["blocked_at"])

	body := scrape(t)
	assert.Contains(t, body, `riskgate_decisions_total{action="STOP"} 1`)
	assert.Contains(t, body, `riskgate_decision_blocks_total{reason="VIX_TOO_HIGH"} 1`)
	assert.Contains(t, body, "riskgate_decision_latency_ms_count 1")
}

func TestWrap_TradeAndDataError(t *testing.T) {
	observ.ResetMetrics()
	defer observ.ResetMetrics()
	var buf bytes.Buffer
	observ.SetLogOutput(&buf, observ.LogConfig{Level: "debug"})
	defer observ.SetLogOutput(io.Discard, observ.LogConfig{})

	trade := &stubDecider{res: decision.Result{
		ID:      "dec-2",
		Action:  decision.ActionLong,
		Horizon: "WEEKLY",
		Trade:   &decision.Trade{Entry: 100, StopLoss: 97, TakeProfit: 106, PositionModifier: 0.9},
	}}
	bad := &stubDecider{res: decision.Result{
		ID:          "dec-3",
		Action:      decision.ActionError,
		BlockReason: decision.BlockDataError,
	}}

	Wrap(trade).Decide(decision.Input{Price: 100})
	Wrap(bad).Decide(decision.Input{})

	lines := logLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "decision_trade", lines[0]["event"])
	assert.Equal(t, "WEEKLY", lines[0]["horizon"])
	assert.Equal(t, 97.0, lines[0]["stop_loss"])
	assert.Equal(t, "decision_data_error", lines[1]["event"])
	assert.Equal(t, "warn", lines[1]["level"])

	body := scrape(t)
	assert.Contains(t, body, `riskgate_decisions_total{action="LONG"} 1`)
	assert.Contains(t, body, `riskgate_decisions_total{action="ERROR"} 1`)
	assert.NotContains(t, body, `reason="NONE"`)
}

func TestWrap_SpanCarriesTraceID(t *testing.T) {
	var spans bytes.Buffer
	require.NoError(t, trace.Init(trace.Config{Enabled: true, Output: &spans}))
	defer trace.Shutdown(context.Background())

	var buf bytes.Buffer
	observ.SetLogOutput(&buf, observ.LogConfig{})
	defer observ.SetLogOutput(io.Discard, observ.LogConfig{})

	stub := &stubDecider{res: decision.Result{ID: "dec-4", Action: decision.ActionHold, BlockReason: decision.BlockSessionClosed, Timestamp: time.Now()}}
	Wrap(stub).DecideContext(context.Background(), decision.Input{})

	lines := logLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Len(t, lines[0]["trace_id"], 32)
	assert.Contains(t, spans.String(), "decision.Decide")
	assert.Contains(t, spans.String(), "SESSION_CLOSED")
}
