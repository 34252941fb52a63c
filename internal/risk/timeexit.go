package risk

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Rajchodisetti/riskgate/internal/horizon"
	"github.com/Rajchodisetti/riskgate/internal/observ"
)

// Urgency grades how soon a position must be closed.
type Urgency string

const (
	UrgencyNone    Urgency = "NONE"
	UrgencyWarning Urgency = "WARNING"
	UrgencyUrgent  Urgency = "URGENT"
	UrgencyForce   Urgency = "FORCE"
)

// TimeExitConfig configures holding-time limits.
type TimeExitConfig struct {
	WarningThreshold float64 // elapsed fraction of max duration
	UrgentThreshold  float64
	PreWeekendDay    time.Weekday
	PreWeekendHour   int
	SessionMarkets   []string // markets that close for the weekend
	Location         *time.Location
}

func DefaultTimeExitConfig() TimeExitConfig {
	return TimeExitConfig{
		WarningThreshold: 0.75,
		UrgentThreshold:  0.90,
		PreWeekendDay:    time.Friday,
		PreWeekendHour:   16,
		SessionMarkets:   []string{"forex"},
		Location:         time.UTC,
	}
}

// TimeExitCheck is the verdict for one open position.
type TimeExitCheck struct {
	ShouldExit    bool          `json:"should_exit"`
	Urgency       Urgency       `json:"urgency"`
	TimeRemaining time.Duration `json:"-"`
	TimeElapsed   time.Duration `json:"-"`
	MaxDuration   time.Duration `json:"-"`
	Reason        string        `json:"reason"`
}

// ElapsedPercent is elapsed time as a percentage of the max duration.
func (c TimeExitCheck) ElapsedPercent() float64 {
	if c.MaxDuration <= 0 {
		return 100
	}
	return c.TimeElapsed.Seconds() / c.MaxDuration.Seconds() * 100
}

func (c TimeExitCheck) MarshalJSON() ([]byte, error) {
	type alias TimeExitCheck
	return json.Marshal(struct {
		alias
		TimeRemainingHours float64 `json:"time_remaining_hours"`
		TimeElapsedHours   float64 `json:"time_elapsed_hours"`
		MaxDurationHours   float64 `json:"max_duration_hours"`
		ElapsedPercent     float64 `json:"elapsed_percent"`
	}{
		alias:              alias(c),
		TimeRemainingHours: c.TimeRemaining.Hours(),
		TimeElapsedHours:   c.TimeElapsed.Hours(),
		MaxDurationHours:   c.MaxDuration.Hours(),
		ElapsedPercent:     c.ElapsedPercent(),
	})
}

// TimeExitManager enforces per-horizon holding limits. It keeps no state;
// now is always passed in.
type TimeExitManager struct {
	cfg   TimeExitConfig
	table horizon.Table
}

func NewTimeExitManager(table horizon.Table, cfg TimeExitConfig) *TimeExitManager {
	def := DefaultTimeExitConfig()
	if len(table) == 0 {
		table = horizon.DefaultTable()
	}
	if cfg.WarningThreshold <= 0 {
		cfg.WarningThreshold = def.WarningThreshold
	}
	if cfg.UrgentThreshold <= 0 {
		cfg.UrgentThreshold = def.UrgentThreshold
	}
	if cfg.PreWeekendHour < 0 || cfg.PreWeekendHour > 23 {
		cfg.PreWeekendHour = def.PreWeekendHour
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &TimeExitManager{cfg: cfg, table: table}
}

// Check evaluates an open position. Exceeding the max duration forces an exit;
// session markets are also closed ahead of the weekend.
func (m *TimeExitManager) Check(entry time.Time, h horizon.Horizon, now time.Time, market string) TimeExitCheck {
	maxDur := m.table.Get(h).MaxDuration
	elapsed := now.Sub(entry)
	remaining := maxDur - elapsed

	check := m.check(h, now, market, maxDur, elapsed, remaining)
	observ.IncCounter("time_exit_checks_total", map[string]string{"urgency": string(check.Urgency)})
	return check
}

func (m *TimeExitManager) check(h horizon.Horizon, now time.Time, market string, maxDur, elapsed, remaining time.Duration) TimeExitCheck {
	if remaining <= 0 {
		return TimeExitCheck{
			ShouldExit:  true,
			Urgency:     UrgencyForce,
			TimeElapsed: elapsed,
			MaxDuration: maxDur,
			Reason:      fmt.Sprintf("Max duration exceeded (%s: %s)", h, maxDur),
		}
	}

	if m.isSessionMarket(market) && m.isPreWeekend(now) {
		return TimeExitCheck{
			ShouldExit:  true,
			Urgency:     UrgencyUrgent,
			TimeElapsed: elapsed,
			MaxDuration: maxDur,
			Reason:      "Pre-weekend close - close before the weekend",
		}
	}

	ratio := 0.0
	if maxDur > 0 {
		ratio = elapsed.Seconds() / maxDur.Seconds()
	}
	check := TimeExitCheck{
		TimeRemaining: remaining,
		TimeElapsed:   elapsed,
		MaxDuration:   maxDur,
	}
	switch {
	case ratio >= m.cfg.UrgentThreshold:
		check.Urgency = UrgencyUrgent
		check.Reason = fmt.Sprintf("Approaching deadline (%.0f%% elapsed)", ratio*100)
	case ratio >= m.cfg.WarningThreshold:
		check.Urgency = UrgencyWarning
		check.Reason = fmt.Sprintf("Time warning (%.0f%% elapsed)", ratio*100)
	default:
		check.Urgency = UrgencyNone
		check.Reason = "Within time limits"
	}
	return check
}

// Deadline is entry plus the horizon's max duration.
func (m *TimeExitManager) Deadline(entry time.Time, h horizon.Horizon) time.Time {
	return entry.Add(m.table.Get(h).MaxDuration)
}

// SizeMultiplier scales a new entry by how close the horizon deadline is.
func (m *TimeExitManager) SizeMultiplier(entry time.Time, h horizon.Horizon, now time.Time, market string) float64 {
	return UrgencyMultiplier(m.Check(entry, h, now, market))
}

// UrgencyMultiplier maps a check to a position-size multiplier.
func UrgencyMultiplier(c TimeExitCheck) float64 {
	if c.ShouldExit || c.Urgency == UrgencyForce {
		return 0
	}
	switch c.Urgency {
	case UrgencyUrgent:
		return 0.3
	case UrgencyWarning:
		return 0.7
	}
	return 1.0
}

func (m *TimeExitManager) isSessionMarket(market string) bool {
	for _, s := range m.cfg.SessionMarkets {
		if strings.EqualFold(s, market) {
			return true
		}
	}
	return false
}

func (m *TimeExitManager) isPreWeekend(now time.Time) bool {
	local := now.In(m.cfg.Location)
	return local.Weekday() == m.cfg.PreWeekendDay && local.Hour() >= m.cfg.PreWeekendHour
}
