package observ

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_WritesEventAndFields(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf, LogConfig{Level: "debug", Format: "json"})
	defer SetLogOutput(io.Discard, LogConfig{})

	Log("decision", map[string]any{"action": "HOLD", "confidence": 0.0})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "decision", line["event"])
	assert.Equal(t, "HOLD", line["action"])
	assert.Equal(t, "info", line["level"])
	assert.NotEmpty(t, line["ts"])
}

func TestLog_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf, LogConfig{Level: "warn"})
	defer SetLogOutput(io.Discard, LogConfig{})

	Log("dropped", nil)
	Debug("dropped_too", nil)
	Warn("kept", map[string]any{"k": 1})
	Error("failed", errors.New("boom"), nil)

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, `"event":"kept"`)
	assert.Contains(t, out, `"error":"boom"`)
}

func TestMetrics_HandlerExposesRegisteredSeries(t *testing.T) {
	ResetMetrics()
	defer ResetMetrics()

	IncCounter("decisions_total", map[string]string{"action": "LONG"})
	IncCounterBy("decisions_total", map[string]string{"action": "LONG"}, 2)
	SetGauge("drawdown_equity", 9750, nil)
	RecordDuration("decision_latency", 1500*time.Microsecond, nil)
	// mismatched label keys are ignored rather than panicking
	IncCounter("decisions_total", map[string]string{"other": "x"})

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.Contains(t, body, `riskgate_decisions_total{action="LONG"} 3`)
	assert.Contains(t, body, "riskgate_drawdown_equity 9750")
	assert.True(t, strings.Contains(body, "riskgate_decision_latency_ms_count 1"))
}
