package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Rajchodisetti/riskgate/internal/decision"
	"github.com/Rajchodisetti/riskgate/internal/decision/decisionobs"
	"github.com/Rajchodisetti/riskgate/internal/observ"
	"github.com/Rajchodisetti/riskgate/internal/risk"
	"github.com/Rajchodisetti/riskgate/internal/sentiment"
)

// replayStep is one line of a replay file: trades closed since the previous
// step, then the market state to decide on.
type replayStep struct {
	At        time.Time     `json:"at"`
	ClosedPnL []float64     `json:"closed_pnl,omitempty"`
	Market    marketFixture `json:"market"`
}

// replayRecord is one emitted line.
type replayRecord struct {
	Step     int                  `json:"step"`
	At       time.Time            `json:"at"`
	Skipped  bool                 `json:"skipped"`
	Drawdown *risk.DrawdownStatus `json:"drawdown,omitempty"`
	Decision *decision.Result     `json:"decision,omitempty"`
}

func newReplayCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "replay FILE.jsonl",
		Short: "Replay a sequence of market steps through one account",
		Long: `Replay reads one JSON step per line. Sentiment signals accumulate across steps
in a single aggregator, closed trades feed the drawdown breaker, and a step is
skipped without a decision while the breaker blocks trading.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			now := a.now
			a.clockFn = func() time.Time { return now }
			agg := sentiment.NewAggregator(a.cfg.AggregatorConfig())
			mon := risk.NewDrawdownMonitor(a.cfg.DrawdownConfig(), a.clockFn)
			eng := decisionobs.Wrap(a.newEngine())

			enc := json.NewEncoder(cmd.OutOrStdout())
			sc := bufio.NewScanner(f)
			sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
			n := 0
			for sc.Scan() {
				if len(sc.Bytes()) == 0 {
					continue
				}
				n++
				var st replayStep
				if err := json.Unmarshal(sc.Bytes(), &st); err != nil {
					return fmt.Errorf("%s step %d: %w", args[0], n, err)
				}
				if !st.At.IsZero() {
					now = st.At
				}
				for _, pnl := range st.ClosedPnL {
					mon.RecordTrade(pnl)
				}
				agg.ClearExpired(now)

				rec := replayRecord{Step: n, At: now}
				if !mon.CanTrade() {
					status := mon.Status()
					rec.Skipped = true
					rec.Drawdown = &status
					observ.Log("replay_step_skipped", map[string]any{"step": n, "reason": status.BlockReason})
				} else {
					res := eng.DecideContext(cmd.Context(), st.Market.input(agg, now))
					rec.Decision = &res
				}
				if err := enc.Encode(rec); err != nil {
					return err
				}
			}
			if err := sc.Err(); err != nil {
				return err
			}
			observ.Log("replay_done", map[string]any{"steps": n})
			return nil
		},
	}
}
