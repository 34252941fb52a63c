package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Rajchodisetti/riskgate/internal/decision"
	"github.com/Rajchodisetti/riskgate/internal/risk"
)

var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED")).
		Padding(0, 1)

	boxStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#3B82F6")).
		Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280")).
		Width(22)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981")).
		Bold(true)

	warnStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#F59E0B")).
		Bold(true)

	badStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#EF4444")).
		Bold(true)

	pathStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#3B82F6"))
)

func row(label string, value any) string {
	return labelStyle.Render(label) + fmt.Sprint(value)
}

func actionStyle(a decision.Action) lipgloss.Style {
	switch a {
	case decision.ActionLong, decision.ActionShort:
		return okStyle
	case decision.ActionHold:
		return warnStyle
	}
	return badStyle
}

func renderDecision(out decideOutput) string {
	r := out.Decision
	lines := []string{
		titleStyle.Render("Decision " + r.ID),
		row("action", actionStyle(r.Action).Render(string(r.Action))),
		row("confidence", fmt.Sprintf("%.3f", r.Confidence)),
	}
	if r.Regime != "" {
		lines = append(lines, row("regime", r.Regime))
	}
	if r.BlockReason != decision.BlockNone {
		lines = append(lines, row("blocked", fmt.Sprintf("%s (%s)", r.BlockReason, r.BlockReason.Message())))
	}
	if t := r.Trade; t != nil {
		lines = append(lines,
			row("horizon", r.Horizon),
			row("entry", fmt.Sprintf("%.5f", t.Entry)),
			row("stop loss", fmt.Sprintf("%.5f (%s)", t.StopLoss, t.StopMethod)),
			row("take profit", fmt.Sprintf("%.5f", t.TakeProfit)),
			row("risk:reward", fmt.Sprintf("%.2f", t.RiskReward)),
			row("position modifier", fmt.Sprintf("%.3f", t.PositionModifier)),
		)
	}
	if out.Size != nil {
		lines = append(lines, row("position value", fmt.Sprintf("%.2f (%s, adjusted %.2f)", out.Size.PositionValue, out.Size.Method, out.AdjustedValue)))
	}
	for _, c := range r.Confirmations {
		lines = append(lines, okStyle.Render("+ ")+c)
	}
	for _, w := range r.Warnings {
		lines = append(lines, warnStyle.Render("! ")+w)
	}

	path := make([]string, 0, len(r.DecisionPath))
	for _, p := range r.DecisionPath {
		path = append(path, pathStyle.Render(p))
	}
	return boxStyle.Render(strings.Join(lines, "\n")) + "\n" + strings.Join(path, "\n")
}

func renderSize(s risk.SizeResult) string {
	lines := []string{
		titleStyle.Render("Position size"),
		row("method", s.Method),
		row("capital", fmt.Sprintf("%.2f", s.Capital)),
		row("position value", okStyle.Render(fmt.Sprintf("%.2f", s.PositionValue))),
		row("of capital", fmt.Sprintf("%.2f%%", s.PositionPct*100)),
	}
	if s.FellBack {
		lines = append(lines, warnStyle.Render(fmt.Sprintf("fell back from %s: %s", s.Requested, s.Reason)))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func renderDrawdown(out drawdownOutput) string {
	lines := []string{titleStyle.Render("Drawdown replay")}
	for i, t := range out.Trades {
		state := okStyle.Render("open")
		if !t.CanTrade {
			state = badStyle.Render("blocked")
		}
		lines = append(lines, fmt.Sprintf("#%-3d %+10.2f  equity %10.2f  %s", i+1, t.PnL, t.Equity, state))
	}
	f := out.Final
	lines = append(lines,
		"",
		row("can trade", f.CanTrade),
		row("equity / peak", fmt.Sprintf("%.2f / %.2f", f.CurrentEquity, f.PeakEquity)),
		row("daily drawdown", fmt.Sprintf("%.2f%% of %.2f%%", f.DailyDrawdownPct*100, f.DailyDDLimit*100)),
		row("total drawdown", fmt.Sprintf("%.2f%% of %.2f%%", f.TotalDrawdownPct*100, f.TotalDDLimit*100)),
		row("consecutive losses", fmt.Sprintf("%d / %d", f.ConsecutiveLosses, f.MaxConsecutiveLosses)),
	)
	if f.Blocked {
		lines = append(lines, badStyle.Render(f.BlockReason))
		if f.BlockUntil != nil {
			lines = append(lines, row("until", f.BlockUntil.Format("2006-01-02 15:04 MST")))
		}
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func renderExit(out exitOutput) string {
	c := out.Check
	st := okStyle
	switch c.Urgency {
	case risk.UrgencyWarning:
		st = warnStyle
	case risk.UrgencyUrgent, risk.UrgencyForce:
		st = badStyle
	}
	lines := []string{
		titleStyle.Render("Time exit"),
		row("urgency", st.Render(string(c.Urgency))),
		row("should exit", c.ShouldExit),
		row("elapsed", fmt.Sprintf("%.1fh (%.1f%%)", c.TimeElapsed.Hours(), c.ElapsedPercent())),
		row("remaining", fmt.Sprintf("%.1fh", c.TimeRemaining.Hours())),
		row("deadline", out.Deadline.Format("2006-01-02 15:04 MST")),
		row("size multiplier", out.SizeMultiplier),
		c.Reason,
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func renderConditions(out conditionsOutput) string {
	var blocks []string
	for _, s := range out.Summaries {
		lines := []string{titleStyle.Render(string(s.Direction) + " conditions")}
		for _, c := range s.Required {
			lines = append(lines, badStyle.Render("required ")+c.Name+" - "+c.Description)
		}
		for _, c := range s.Optional {
			lines = append(lines, warnStyle.Render("optional ")+c.Name+" - "+c.Description)
		}
		blocks = append(blocks, boxStyle.Render(strings.Join(lines, "\n")))
	}
	for _, r := range out.Results {
		verdict := okStyle.Render("confirmed")
		if !r.Confirmed {
			verdict = badStyle.Render(r.BlockReason)
		}
		lines := []string{
			titleStyle.Render(string(r.Direction) + " evaluation"),
			row("verdict", verdict),
			row("confidence", fmt.Sprintf("%.2f", r.Confidence)),
			row("optional met", strings.Join(r.OptionalMet, ", ")),
			row("optional missed", strings.Join(r.OptionalMissed, ", ")),
		}
		blocks = append(blocks, boxStyle.Render(strings.Join(lines, "\n")))
	}
	return strings.Join(blocks, "\n")
}
