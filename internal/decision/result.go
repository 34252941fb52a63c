package decision

import (
	"encoding/json"
	"math"
	"time"

	"github.com/Rajchodisetti/riskgate/internal/horizon"
)

type Action string

const (
	ActionLong  Action = "LONG"
	ActionShort Action = "SHORT"
	ActionHold  Action = "HOLD"  // no trade, keep watching
	ActionStop  Action = "STOP"  // no trade, conditions are dangerous
	ActionError Action = "ERROR" // input data unusable
)

// BlockReason explains why no trade was recommended.
type BlockReason string

const (
	BlockNone                     BlockReason = ""
	BlockSessionClosed            BlockReason = "SESSION_CLOSED"
	BlockVIXTooHigh               BlockReason = "VIX_TOO_HIGH"
	BlockMarketChaos              BlockReason = "MARKET_CHAOS"
	BlockSentimentConflict        BlockReason = "SENTIMENT_CONFLICT"
	BlockCriticalConditionsNotMet BlockReason = "CRITICAL_CONDITIONS_NOT_MET"
	BlockRiskTooHigh              BlockReason = "RISK_TOO_HIGH"
	BlockNoClearDirection         BlockReason = "NO_CLEAR_DIRECTION"
	BlockDataError                BlockReason = "DATA_ERROR"
)

var blockMessages = map[BlockReason]string{
	BlockSessionClosed:            "Outside trading session",
	BlockVIXTooHigh:               "VIX too high",
	BlockMarketChaos:              "Market chaos (low ADX with high volatility)",
	BlockSentimentConflict:        "Strong sentiment conflict",
	BlockCriticalConditionsNotMet: "Critical entry conditions not met",
	BlockRiskTooHigh:              "Risk parameters exceeded",
	BlockNoClearDirection:         "No clear direction from signals",
	BlockDataError:                "Invalid or missing data",
}

// Message is the human-readable description of the reason.
func (r BlockReason) Message() string {
	return blockMessages[r]
}

// Trade holds the order parameters of a LONG or SHORT decision.
type Trade struct {
	Entry            float64 `json:"entry"`
	StopLoss         float64 `json:"stop_loss"`
	TakeProfit       float64 `json:"take_profit"`
	PositionModifier float64 `json:"position_modifier"`
	SLDistance       float64 `json:"sl_distance"`
	ATRDistance      float64 `json:"atr_distance"`
	RiskReward       float64 `json:"risk_reward"`
	StopMethod       string  `json:"stop_method"`
}

// Result is one immutable decision with its audit trail.
type Result struct {
	ID               string
	Action           Action
	Confidence       float64
	Horizon          horizon.Horizon // empty unless a trade
	Trade            *Trade          // nil unless a trade
	PositionModifier float64         // sentiment scaling applied so far
	BlockReason      BlockReason
	Regime           string
	Confirmations    []string
	Warnings         []string
	DecisionPath     []string
	Timestamp        time.Time
}

// IsTrade reports whether the decision opens a position.
func (r Result) IsTrade() bool {
	return r.Action == ActionLong || r.Action == ActionShort
}

type reasoningJSON struct {
	BlockReason   *BlockReason `json:"block_reason"`
	BlockMessage  string       `json:"block_message,omitempty"`
	Confirmations []string     `json:"confirmations"`
	Warnings      []string     `json:"warnings"`
	DecisionPath  []string     `json:"decision_path"`
}

type resultJSON struct {
	ID         string           `json:"id"`
	Action     Action           `json:"action"`
	Confidence float64          `json:"confidence"`
	Horizon    *horizon.Horizon `json:"horizon"`
	IsTrade    bool             `json:"is_trade"`
	Trade      *Trade           `json:"trade"`
	Regime     string           `json:"regime,omitempty"`
	Reasoning  reasoningJSON    `json:"reasoning"`
	Timestamp  string           `json:"timestamp"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		ID:         r.ID,
		Action:     r.Action,
		Confidence: math.Round(r.Confidence*1000) / 1000,
		IsTrade:    r.IsTrade(),
		Trade:      r.Trade,
		Regime:     r.Regime,
		Reasoning: reasoningJSON{
			Confirmations: nonNil(r.Confirmations),
			Warnings:      nonNil(r.Warnings),
			DecisionPath:  nonNil(r.DecisionPath),
		},
		Timestamp: r.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if r.Horizon != "" {
		h := r.Horizon
		out.Horizon = &h
	}
	if r.BlockReason != BlockNone {
		br := r.BlockReason
		out.Reasoning.BlockReason = &br
		out.Reasoning.BlockMessage = br.Message()
	}
	return json.Marshal(out)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
