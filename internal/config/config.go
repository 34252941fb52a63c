package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Rajchodisetti/riskgate/internal/decision"
	"github.com/Rajchodisetti/riskgate/internal/entry"
	"github.com/Rajchodisetti/riskgate/internal/horizon"
	"github.com/Rajchodisetti/riskgate/internal/observ"
	"github.com/Rajchodisetti/riskgate/internal/risk"
	"github.com/Rajchodisetti/riskgate/internal/sentiment"
	"github.com/Rajchodisetti/riskgate/internal/trace"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

var validate = validator.New()

type Log struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"json" validate:"oneof=json console"`
}

type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" default:":9108"`
}

type Tracing struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name" default:"riskgate"`
}

type SentimentThresholds struct {
	Direction             float64 `yaml:"direction" default:"0.15" validate:"gt=0,lt=1"`
	ExtremeValue          float64 `yaml:"extreme_value" default:"0.7" validate:"gt=0,lte=1"`
	PanicExtremeRatio     float64 `yaml:"panic_extreme_ratio" default:"0.5" validate:"gt=0,lte=1"`
	PanicSpread           float64 `yaml:"panic_spread" default:"1.0" validate:"gt=0,lte=2"`
	PanicConfidence       float64 `yaml:"panic_confidence" default:"0.6" validate:"gt=0,lte=1"`
	EmotionalConfidence   float64 `yaml:"emotional_confidence" default:"0.5" validate:"gt=0,lte=1"`
	EmotionalExtremeRatio float64 `yaml:"emotional_extreme_ratio" default:"0.2" validate:"gt=0,lte=1"`
	UnbiasedConfidence    float64 `yaml:"unbiased_confidence" default:"0.4" validate:"gte=0,lte=1"`
}

type Sentiment struct {
	TTLHours                 map[string]float64  `yaml:"ttl_hours" validate:"dive,gt=0"`
	DefaultTTLHours          float64             `yaml:"default_ttl_hours" default:"24" validate:"gt=0"`
	IngestPerSourcePerMinute int                 `yaml:"ingest_per_source_per_minute" default:"60" validate:"gte=0"`
	Thresholds               SentimentThresholds `yaml:"thresholds"`
}

func (s *Sentiment) SetDefaults() {
	if s.TTLHours == nil {
		s.TTLHours = make(map[string]float64)
		for src, d := range sentiment.DefaultTTLTable().BySource {
			s.TTLHours[src] = d.Hours()
		}
	}
}

type Entry struct {
	BaseConfidence    float64 `yaml:"base_confidence" default:"0.5" validate:"gte=0,lte=1"`
	BonusPerCondition float64 `yaml:"bonus_per_condition" default:"0.1" validate:"gte=0,lte=1"`
	VIXMax            float64 `yaml:"vix_max" default:"30" validate:"gt=0"`
	RSIOverbought     float64 `yaml:"rsi_overbought" default:"70" validate:"gt=0,lte=100"`
	RSIOversold       float64 `yaml:"rsi_oversold" default:"30" validate:"gte=0,lt=100"`
	ADXTrendMin       float64 `yaml:"adx_trend_min" default:"20" validate:"gte=0"`
}

type Decision struct {
	VIXMax          float64 `yaml:"vix_max" default:"30" validate:"gt=0"`
	VIXHigh         float64 `yaml:"vix_high" default:"25" validate:"gt=0"`
	VIXLow          float64 `yaml:"vix_low" default:"15" validate:"gt=0"`
	ADXChaos        float64 `yaml:"adx_chaos" default:"15" validate:"gte=0"`
	ChaosVolatility float64 `yaml:"chaos_volatility" default:"0.025" validate:"gt=0"`
	RangingADX      float64 `yaml:"ranging_adx" default:"20" validate:"gte=0"`
	TrendingADX     float64 `yaml:"trending_adx" default:"40" validate:"gte=0"`
	MTFMinStrength  float64 `yaml:"mtf_min_strength" default:"0.3" validate:"gte=0,lte=1"`
	MaxStopPct      float64 `yaml:"max_stop_pct" default:"0.10" validate:"gte=0,lt=1"`
	PricePrecision  int32   `yaml:"price_precision" default:"5" validate:"gte=0,lte=10"`
}

type Range struct {
	Min float64 `yaml:"min" validate:"gt=0"`
	Max float64 `yaml:"max" validate:"gt=0"`
}

type Horizon struct {
	MaxDurationHours float64 `yaml:"max_duration_hours" validate:"gt=0"`
	SLMultiplier     Range   `yaml:"sl_multiplier"`
	RRRatio          Range   `yaml:"rr_ratio"`
}

func horizonFrom(c horizon.Config) Horizon {
	return Horizon{
		MaxDurationHours: c.MaxDuration.Hours(),
		SLMultiplier:     Range{Min: c.SLMultiplier.Min, Max: c.SLMultiplier.Max},
		RRRatio:          Range{Min: c.RRRatio.Min, Max: c.RRRatio.Max},
	}
}

func (h Horizon) domain() horizon.Config {
	return horizon.Config{
		MaxDuration:  time.Duration(h.MaxDurationHours * float64(time.Hour)),
		SLMultiplier: horizon.Range{Min: h.SLMultiplier.Min, Max: h.SLMultiplier.Max},
		RRRatio:      horizon.Range{Min: h.RRRatio.Min, Max: h.RRRatio.Max},
	}
}

type Horizons struct {
	Daily   Horizon `yaml:"daily"`
	Weekly  Horizon `yaml:"weekly"`
	Monthly Horizon `yaml:"monthly"`
}

// SetDefaults fills a horizon only when the file left it out entirely.
func (h *Horizons) SetDefaults() {
	def := horizon.DefaultTable()
	if h.Daily == (Horizon{}) {
		h.Daily = horizonFrom(def[horizon.Daily])
	}
	if h.Weekly == (Horizon{}) {
		h.Weekly = horizonFrom(def[horizon.Weekly])
	}
	if h.Monthly == (Horizon{}) {
		h.Monthly = horizonFrom(def[horizon.Monthly])
	}
}

type Sizing struct {
	Method               string  `yaml:"method" default:"risk" validate:"oneof=fixed kelly volatility risk"`
	RiskPct              float64 `yaml:"risk_pct" default:"0.02" validate:"gt=0,lte=0.2"`
	KellyFraction        float64 `yaml:"kelly_fraction" default:"0.5" validate:"gt=0,lte=0.5"`
	KellyCap             float64 `yaml:"kelly_cap" default:"0.25" validate:"gt=0,lte=0.25"`
	VolatilityMultiplier float64 `yaml:"volatility_multiplier" default:"2.0" validate:"gt=0"`
	MaxPositionPct       float64 `yaml:"max_position_pct" default:"0.5" validate:"gt=0,lte=1"`
}

type Drawdown struct {
	InitialEquity        float64 `yaml:"initial_equity" default:"10000" validate:"gt=0"`
	MaxDailyDrawdownPct  float64 `yaml:"max_daily_drawdown_pct" default:"0.05" validate:"gt=0,lt=1"`
	MaxTotalDrawdownPct  float64 `yaml:"max_total_drawdown_pct" default:"0.15" validate:"gt=0,lt=1"`
	MaxConsecutiveLosses int     `yaml:"max_consecutive_losses" default:"5" validate:"gte=1"`
	CooldownHours        float64 `yaml:"cooldown_hours" default:"24" validate:"gt=0"`
}

type TimeExit struct {
	WarningThreshold float64  `yaml:"warning_threshold" default:"0.75" validate:"gt=0,lt=1"`
	UrgentThreshold  float64  `yaml:"urgent_threshold" default:"0.90" validate:"gt=0,lt=1"`
	PreWeekendDay    string   `yaml:"pre_weekend_day" default:"friday" validate:"oneof=monday tuesday wednesday thursday friday saturday sunday"`
	PreWeekendHour   *int     `yaml:"pre_weekend_hour" default:"16" validate:"required,gte=0,lte=23"` // nil until defaults run; 0 is midnight
	SessionMarkets   []string `yaml:"session_markets" default:"[\"forex\"]"`
	Timezone         string   `yaml:"timezone" default:"UTC"`
}

type Root struct {
	Log       Log       `yaml:"log"`
	Metrics   Metrics   `yaml:"metrics"`
	Tracing   Tracing   `yaml:"tracing"`
	Sentiment Sentiment `yaml:"sentiment"`
	Entry     Entry     `yaml:"entry"`
	Decision  Decision  `yaml:"decision"`
	Horizons  Horizons  `yaml:"horizons"`
	Sizing    Sizing    `yaml:"sizing"`
	Drawdown  Drawdown  `yaml:"drawdown"`
	TimeExit  TimeExit  `yaml:"time_exit"`
}

// Default returns the stock configuration.
func Default() Root {
	var c Root
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return c
}

// Load reads a YAML file, fills unset fields with defaults and validates.
func Load(path string) (Root, error) {
	c, err := read(path)
	if err != nil {
		return c, err
	}
	return c, c.Validate()
}

func read(path string) (Root, error) {
	var c Root
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := defaults.Set(&c); err != nil {
		return c, fmt.Errorf("defaults: %w", err)
	}
	return c, nil
}

// Validate checks field ranges and the ordering between related fields.
func (c Root) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	var problems []string
	d := c.Decision
	if !(d.VIXLow < d.VIXHigh && d.VIXHigh <= d.VIXMax) {
		problems = append(problems, "decision: want vix_low < vix_high <= vix_max")
	}
	if d.RangingADX > d.TrendingADX {
		problems = append(problems, "decision: ranging_adx above trending_adx")
	}
	if c.Entry.RSIOversold >= c.Entry.RSIOverbought {
		problems = append(problems, "entry: rsi_oversold must be below rsi_overbought")
	}
	if c.TimeExit.WarningThreshold >= c.TimeExit.UrgentThreshold {
		problems = append(problems, "time_exit: warning_threshold must be below urgent_threshold")
	}
	if _, err := time.LoadLocation(c.TimeExit.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("time_exit: timezone %q: %v", c.TimeExit.Timezone, err))
	}
	for name, h := range map[string]Horizon{"daily": c.Horizons.Daily, "weekly": c.Horizons.Weekly, "monthly": c.Horizons.Monthly} {
		if h.SLMultiplier.Min > h.SLMultiplier.Max {
			problems = append(problems, fmt.Sprintf("horizons.%s: sl_multiplier min above max", name))
		}
		if h.RRRatio.Min > h.RRRatio.Max {
			problems = append(problems, fmt.Sprintf("horizons.%s: rr_ratio min above max", name))
		}
	}
	if c.Horizons.Daily.MaxDurationHours > c.Horizons.Weekly.MaxDurationHours ||
		c.Horizons.Weekly.MaxDurationHours > c.Horizons.Monthly.MaxDurationHours {
		problems = append(problems, "horizons: max_duration_hours must grow daily <= weekly <= monthly")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func (c Root) LogConfig() observ.LogConfig {
	return observ.LogConfig{Level: c.Log.Level, Format: c.Log.Format}
}

func (c Root) TraceConfig() trace.Config {
	return trace.Config{Enabled: c.Tracing.Enabled, ServiceName: c.Tracing.ServiceName}
}

func (c Root) HorizonTable() horizon.Table {
	return horizon.Table{
		horizon.Daily:   c.Horizons.Daily.domain(),
		horizon.Weekly:  c.Horizons.Weekly.domain(),
		horizon.Monthly: c.Horizons.Monthly.domain(),
	}
}

func (c Root) AggregatorConfig() sentiment.AggregatorConfig {
	ttl := sentiment.TTLTable{
		BySource: make(map[string]time.Duration, len(c.Sentiment.TTLHours)),
		Default:  hours(c.Sentiment.DefaultTTLHours),
	}
	for src, h := range c.Sentiment.TTLHours {
		ttl.BySource[strings.ToLower(src)] = hours(h)
	}
	th := c.Sentiment.Thresholds
	return sentiment.AggregatorConfig{
		TTL: ttl,
		Thresholds: sentiment.Thresholds{
			DirectionThreshold:    th.Direction,
			ExtremeValue:          th.ExtremeValue,
			PanicExtremeRatio:     th.PanicExtremeRatio,
			PanicSpread:           th.PanicSpread,
			PanicConfidence:       th.PanicConfidence,
			EmotionalConfidence:   th.EmotionalConfidence,
			EmotionalExtremeRatio: th.EmotionalExtremeRatio,
			UnbiasedConfidence:    th.UnbiasedConfidence,
		},
		IngestPerSourcePerMinute: c.Sentiment.IngestPerSourcePerMinute,
	}
}

func (c Root) EntryConfig() entry.Config {
	return entry.Config{
		Thresholds: entry.Thresholds{
			VIXMax:        c.Entry.VIXMax,
			RSIOverbought: c.Entry.RSIOverbought,
			RSIOversold:   c.Entry.RSIOversold,
			ADXTrendMin:   c.Entry.ADXTrendMin,
		},
		BaseConfidence:    c.Entry.BaseConfidence,
		BonusPerCondition: c.Entry.BonusPerCondition,
	}
}

// DecisionConfig overlays the configurable gates on the stock decision settings.
func (c Root) DecisionConfig() decision.Config {
	dc := decision.DefaultConfig()
	d := c.Decision
	dc.VIXMax = d.VIXMax
	dc.VIXHigh = d.VIXHigh
	dc.VIXLow = d.VIXLow
	dc.ADXChaos = d.ADXChaos
	dc.ChaosVolatility = d.ChaosVolatility
	dc.RangingADX = d.RangingADX
	dc.TrendingADX = d.TrendingADX
	dc.MTFMinStrength = d.MTFMinStrength
	dc.MaxStopPct = d.MaxStopPct
	return dc
}

func (c Root) StopLossConfig() risk.StopLossConfig {
	sl := risk.DefaultStopLossConfig()
	sl.Precision = c.Decision.PricePrecision
	sl.VIXHigh = c.Decision.VIXHigh
	sl.VIXLow = c.Decision.VIXLow
	return sl
}

func (c Root) SizingConfig() risk.SizingConfig {
	return risk.SizingConfig{
		RiskPct:              c.Sizing.RiskPct,
		KellyFraction:        c.Sizing.KellyFraction,
		KellyCap:             c.Sizing.KellyCap,
		VolatilityMultiplier: c.Sizing.VolatilityMultiplier,
		MaxPositionPct:       c.Sizing.MaxPositionPct,
	}
}

func (c Root) SizingMethod() risk.SizingMethod {
	return risk.SizingMethod(c.Sizing.Method)
}

func (c Root) DrawdownConfig() risk.DrawdownConfig {
	return risk.DrawdownConfig{
		InitialEquity:        c.Drawdown.InitialEquity,
		MaxDailyDrawdownPct:  c.Drawdown.MaxDailyDrawdownPct,
		MaxTotalDrawdownPct:  c.Drawdown.MaxTotalDrawdownPct,
		MaxConsecutiveLosses: c.Drawdown.MaxConsecutiveLosses,
		Cooldown:             hours(c.Drawdown.CooldownHours),
	}
}

func (c Root) TimeExitConfig() risk.TimeExitConfig {
	loc, err := time.LoadLocation(c.TimeExit.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return risk.TimeExitConfig{
		WarningThreshold: c.TimeExit.WarningThreshold,
		UrgentThreshold:  c.TimeExit.UrgentThreshold,
		PreWeekendDay:    weekdays[strings.ToLower(c.TimeExit.PreWeekendDay)],
		PreWeekendHour:   *c.TimeExit.PreWeekendHour,
		SessionMarkets:   c.TimeExit.SessionMarkets,
		Location:         loc,
	}
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
