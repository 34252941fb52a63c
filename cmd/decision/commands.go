package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Rajchodisetti/riskgate/internal/decision"
	"github.com/Rajchodisetti/riskgate/internal/decision/decisionobs"
	"github.com/Rajchodisetti/riskgate/internal/entry"
	"github.com/Rajchodisetti/riskgate/internal/horizon"
	"github.com/Rajchodisetti/riskgate/internal/market"
	"github.com/Rajchodisetti/riskgate/internal/risk"
	"github.com/Rajchodisetti/riskgate/internal/sentiment"
)

// decideOutput pairs a decision with the position size it implies.
type decideOutput struct {
	Decision      decision.Result  `json:"decision"`
	Size          *risk.SizeResult `json:"size,omitempty"`
	AdjustedValue float64          `json:"adjusted_position_value,omitempty"`
}

func (a *app) newEngine() *decision.Engine {
	table := a.cfg.HorizonTable()
	return decision.NewEngine(a.cfg.DecisionConfig(), decision.Deps{
		Entry:    entry.NewEngine(a.cfg.EntryConfig()),
		Horizon:  horizon.NewDetector(table, horizon.DefaultRules()),
		StopLoss: risk.NewStopLossCalculator(table, a.cfg.StopLossConfig()),
		Clock:    a.clock,
	})
}

func newDecideCmd(a *app) *cobra.Command {
	var capital float64

	cmd := &cobra.Command{
		Use:   "decide FIXTURE",
		Short: "Run the decision gates over a market fixture",
		Long: `Run the full gate chain over a JSON market fixture and print the decision.
With --capital, a LONG or SHORT decision is also sized with the configured method
and scaled by the decision's position modifier.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fx, err := loadFixture(args[0])
			if err != nil {
				return err
			}
			agg := sentiment.NewAggregator(a.cfg.AggregatorConfig())
			in := fx.input(agg, a.now)

			res := decisionobs.Wrap(a.newEngine()).DecideContext(cmd.Context(), in)
			out := decideOutput{Decision: res}

			if capital > 0 && res.Trade != nil {
				req := risk.SizeRequest{
					Capital:  capital,
					Entry:    res.Trade.Entry,
					StopLoss: res.Trade.StopLoss,
					Price:    res.Trade.Entry,
				}
				if fx.Indicators.ATR != nil {
					req.ATR = *fx.Indicators.ATR
				}
				size := risk.NewPositionSizer(a.cfg.SizingConfig()).Calculate(a.cfg.SizingMethod(), req)
				out.Size = &size
				out.AdjustedValue = size.PositionValue * res.Trade.PositionModifier
			}
			return a.emit(cmd.OutOrStdout(), out, func() string { return renderDecision(out) })
		},
	}
	cmd.Flags().Float64Var(&capital, "capital", 0, "account capital used to size a trade")
	return cmd
}

func newSizeCmd(a *app) *cobra.Command {
	var (
		method string
		req    risk.SizeRequest
	)
	cmd := &cobra.Command{
		Use:   "size",
		Short: "Compute a position size",
		Example: `  decision size --method kelly --capital 10000 --win-rate 0.6 --avg-win 200 --avg-loss 100
  decision size --method risk --capital 10000 --entry 100 --stop 98`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := a.cfg.SizingMethod()
			if method != "" {
				m = risk.SizingMethod(method)
			}
			res := risk.NewPositionSizer(a.cfg.SizingConfig()).Calculate(m, req)
			return a.emit(cmd.OutOrStdout(), res, func() string { return renderSize(res) })
		},
	}
	f := cmd.Flags()
	f.StringVar(&method, "method", "", "fixed | kelly | volatility | risk (config default when empty)")
	f.Float64Var(&req.Capital, "capital", 0, "account capital")
	f.Float64Var(&req.RiskPct, "risk-pct", 0, "fraction of capital at risk (config default when 0)")
	f.Float64Var(&req.WinRate, "win-rate", 0, "kelly: historical win rate")
	f.Float64Var(&req.AvgWin, "avg-win", 0, "kelly: average win")
	f.Float64Var(&req.AvgLoss, "avg-loss", 0, "kelly: average loss")
	f.Float64Var(&req.KellyFraction, "kelly-fraction", 0, "kelly: fraction of full kelly")
	f.Float64Var(&req.ATR, "atr", 0, "volatility: average true range")
	f.Float64Var(&req.Price, "price", 0, "volatility: current price")
	f.Float64Var(&req.Entry, "entry", 0, "risk: entry price")
	f.Float64Var(&req.StopLoss, "stop", 0, "risk: stop-loss price")
	_ = cmd.MarkFlagRequired("capital")
	return cmd
}

// drawdownOutput is the replay of a trade sequence through the monitor.
type drawdownOutput struct {
	Trades []drawdownStep       `json:"trades"`
	Final  risk.DrawdownStatus  `json:"final"`
	Events []risk.DrawdownEvent `json:"events"`
	Days   []risk.DailyStats    `json:"daily_stats"`
}

type drawdownStep struct {
	At       time.Time `json:"at"`
	PnL      float64   `json:"pnl"`
	Equity   float64   `json:"equity"`
	CanTrade bool      `json:"can_trade"`
	Reason   string    `json:"block_reason,omitempty"`
}

func newDrawdownCmd(a *app) *cobra.Command {
	var (
		pnls    []float64
		spacing time.Duration
		after   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "drawdown",
		Short: "Replay trade results through the drawdown circuit breaker",
		Example: `  decision drawdown --pnl=100,-50,150,-200,-150,-100
  decision drawdown --pnl=-600 --spacing 1h --after 24h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := a.now
			mon := risk.NewDrawdownMonitor(a.cfg.DrawdownConfig(), func() time.Time { return now })

			out := drawdownOutput{Trades: make([]drawdownStep, 0, len(pnls))}
			for i, pnl := range pnls {
				if i > 0 {
					now = now.Add(spacing)
				}
				st := mon.RecordTrade(pnl)
				out.Trades = append(out.Trades, drawdownStep{
					At:       now,
					PnL:      pnl,
					Equity:   st.CurrentEquity,
					CanTrade: st.CanTrade,
					Reason:   st.BlockReason,
				})
			}
			now = now.Add(after)
			out.Final = mon.Status()
			out.Events = mon.Events()
			out.Days = mon.DailyStats()
			return a.emit(cmd.OutOrStdout(), out, func() string { return renderDrawdown(out) })
		},
	}
	f := cmd.Flags()
	f.Float64SliceVar(&pnls, "pnl", nil, "comma separated trade results in account currency")
	f.DurationVar(&spacing, "spacing", time.Minute, "time between replayed trades")
	f.DurationVar(&after, "after", 0, "advance the clock this long before reading the final status")
	_ = cmd.MarkFlagRequired("pnl")
	return cmd
}

// exitOutput is a time-exit verdict with its deadline and size scaling.
type exitOutput struct {
	Check          risk.TimeExitCheck `json:"check"`
	Deadline       time.Time          `json:"deadline"`
	SizeMultiplier float64            `json:"size_multiplier"`
}

func newExitCheckCmd(a *app) *cobra.Command {
	var (
		entryAt string
		hz      string
		mkt     string
	)
	cmd := &cobra.Command{
		Use:     "exit-check",
		Short:   "Check an open position against its holding-time limit",
		Example: `  decision exit-check --entry-time 2025-03-10T09:00:00Z --horizon daily --market forex --now 2025-03-11T21:00:00Z`,
		RunE: func(cmd *cobra.Command, args []string) error {
			entryTime, err := time.Parse(time.RFC3339, entryAt)
			if err != nil {
				return fmt.Errorf("--entry-time: %w", err)
			}
			h, err := horizon.Parse(hz)
			if err != nil {
				return err
			}
			mgr := risk.NewTimeExitManager(a.cfg.HorizonTable(), a.cfg.TimeExitConfig())
			check := mgr.Check(entryTime, h, a.now, mkt)
			out := exitOutput{
				Check:          check,
				Deadline:       mgr.Deadline(entryTime, h),
				SizeMultiplier: risk.UrgencyMultiplier(check),
			}
			return a.emit(cmd.OutOrStdout(), out, func() string { return renderExit(out) })
		},
	}
	f := cmd.Flags()
	f.StringVar(&entryAt, "entry-time", "", "position entry time, RFC3339")
	f.StringVar(&hz, "horizon", string(horizon.Daily), "daily | weekly | monthly")
	f.StringVar(&mkt, "market", "", "market of the instrument, e.g. forex or crypto")
	_ = cmd.MarkFlagRequired("entry-time")
	return cmd
}

// conditionsOutput lists condition tables and, with a fixture, their evaluation.
type conditionsOutput struct {
	Summaries []entry.Summary `json:"summaries"`
	Results   []entry.Result  `json:"results,omitempty"`
}

func newConditionsCmd(a *app) *cobra.Command {
	var (
		dir     string
		fixture string
	)
	cmd := &cobra.Command{
		Use:   "conditions",
		Short: "List entry conditions, or evaluate them against a fixture",
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs := []market.Direction{market.Long, market.Short}
			if dir != "" {
				d, err := market.ParseDirection(dir)
				if err != nil {
					return err
				}
				if d == market.Neutral {
					return fmt.Errorf("--direction must be LONG or SHORT")
				}
				dirs = []market.Direction{d}
			}

			eng := entry.NewEngine(a.cfg.EntryConfig())
			var out conditionsOutput
			for _, d := range dirs {
				out.Summaries = append(out.Summaries, eng.Summary(d))
			}
			if fixture != "" {
				fx, err := loadFixture(fixture)
				if err != nil {
					return err
				}
				snap := fx.snapshot()
				for _, d := range dirs {
					out.Results = append(out.Results, eng.Evaluate(d, snap))
				}
			}
			return a.emit(cmd.OutOrStdout(), out, func() string { return renderConditions(out) })
		},
	}
	cmd.Flags().StringVar(&dir, "direction", "", "LONG or SHORT (both when empty)")
	cmd.Flags().StringVar(&fixture, "fixture", "", "market fixture to evaluate the conditions against")
	return cmd
}
