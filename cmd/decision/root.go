package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Rajchodisetti/riskgate/internal/config"
	"github.com/Rajchodisetti/riskgate/internal/observ"
	"github.com/Rajchodisetti/riskgate/internal/trace"
)

// app is the state shared by every subcommand after flag parsing.
type app struct {
	cfgPath string
	pretty  bool
	oneShot bool
	nowFlag string

	cfg     config.Root
	now     time.Time
	clockFn func() time.Time // overrides now when set
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "decision",
		Short: "riskgate - risk-gated trade decisions",
		Long: `riskgate evaluates pre-computed market state through a chain of risk gates
and recommends LONG, SHORT, HOLD or STOP together with its full reasoning.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.serveMetrics(cmd.Context()); err != nil {
				return err
			}
			return trace.Shutdown(context.Background())
		},
	}

	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "config path (defaults when empty)")
	root.PersistentFlags().BoolVar(&a.pretty, "pretty", false, "render for humans instead of JSON")
	root.PersistentFlags().BoolVar(&a.oneShot, "oneshot", true, "exit after the command (set false to keep the /metrics server)")
	root.PersistentFlags().StringVar(&a.nowFlag, "now", "", "evaluation time, RFC3339 (wall clock when empty)")

	root.AddCommand(
		newDecideCmd(a),
		newSizeCmd(a),
		newDrawdownCmd(a),
		newExitCheckCmd(a),
		newConditionsCmd(a),
		newReplayCmd(a),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.LoadWithEnv(a.cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	observ.InitLogger(cfg.LogConfig())
	if err := trace.Init(cfg.TraceConfig()); err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	a.now = time.Now().UTC()
	if a.nowFlag != "" {
		if a.now, err = time.Parse(time.RFC3339, a.nowFlag); err != nil {
			return fmt.Errorf("--now: %w", err)
		}
	}
	observ.Debug("startup", map[string]any{
		"config":  a.cfgPath,
		"now":     a.now,
		"tracing": cfg.Tracing.Enabled,
	})
	return nil
}

func (a *app) clock() time.Time {
	if a.clockFn != nil {
		return a.clockFn()
	}
	return a.now
}

// serveMetrics keeps /metrics up until ctx ends when metrics are enabled and
// the run is not one-shot.
func (a *app) serveMetrics(ctx context.Context) error {
	if a.oneShot || !a.cfg.Metrics.Enabled {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", observ.Handler())
	srv := &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	observ.Log("metrics_listen", map[string]any{"addr": a.cfg.Metrics.Addr})

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// emit writes v as indented JSON, or through render when --pretty is set.
func (a *app) emit(w io.Writer, v any, render func() string) error {
	if a.pretty && render != nil {
		_, err := fmt.Fprintln(w, render())
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
