package usecase

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"rebook-service/internal/domain/entity"
	"rebook-service/pkg/utils"

	"github.com/shopspring/decimal"
)

const (
	nightPenalty   = 30.0
	layoverPenalty = 20.0
	flexibleBoost  = 0.2
)

// eurRates converts the currencies backends report into EUR so mixed pools
// compare on one scale. Unknown currencies are taken at par.
var eurRates = map[string]decimal.Decimal{
	"EUR": decimal.NewFromInt(1),
	"KRW": decimal.RequireFromString("0.00068"),
	"USD": decimal.RequireFromString("0.92"),
	"GBP": decimal.RequireFromString("1.17"),
	"CHF": decimal.RequireFromString("1.05"),
	"CZK": decimal.RequireFromString("0.04"),
	"PLN": decimal.RequireFromString("0.23"),
}

type goalWeights struct {
	duration  float64
	price     float64
	transfers float64
	flexible  float64
}

var weightsByGoal = map[entity.PrimaryGoal]goalWeights{
	entity.GoalFastest:         {duration: 0.8, price: 0.1, transfers: 0.1},
	entity.GoalCheapest:        {duration: 0.1, price: 0.8, transfers: 0.1},
	entity.GoalFewestTransfers: {duration: 0.2, price: 0.1, transfers: 0.7},
	entity.GoalFlexibleChange:  {duration: 0.3, price: 0.3, transfers: 0.2, flexible: flexibleBoost},
}

// ScorerConfig tunes the soft penalties and the flexible-provider boost
type ScorerConfig struct {
	NightStartHour    int
	NightEndHour      int
	LongLayover       time.Duration
	FlexibleProviders []string
}

// Scorer picks the single best option for a set of preferences. It holds no
// mutable state and is safe for concurrent use.
type Scorer struct {
	cfg      ScorerConfig
	flexible []string
}

// NewScorer creates a new scorer
func NewScorer(cfg ScorerConfig) *Scorer {
	flexible := make([]string, 0, len(cfg.FlexibleProviders))
	for _, p := range cfg.FlexibleProviders {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			flexible = append(flexible, p)
		}
	}
	return &Scorer{cfg: cfg, flexible: flexible}
}

type candidate struct {
	option    entity.TransitOption
	priceEUR  decimal.Decimal
	score     float64
	penalties []string
	flexible  bool
}

// Select returns the top-scoring option. Candidates violating mode or transfer
// constraints are dropped unless that would leave nothing.
func (s *Scorer) Select(options []entity.TransitOption, prefs entity.Preferences) (entity.ScoredOption, error) {
	if len(options) == 0 {
		return entity.ScoredOption{}, entity.ErrNoOptionsFound
	}
	prefs = prefs.WithDefaults()

	pool := filterOptions(options, prefs)
	relaxed := len(pool) == 0
	if relaxed {
		pool = options
	}

	candidates := make([]*candidate, len(pool))
	for i, option := range pool {
		candidates[i] = &candidate{option: option, priceEUR: toEUR(option.Price)}
	}

	s.score(candidates, prefs)

	sort.SliceStable(candidates, func(i, k int) bool {
		return less(candidates[i], candidates[k])
	})

	best := candidates[0]
	return entity.ScoredOption{
		Option:      best.option,
		Score:       best.score,
		Explanation: explain(best, prefs, relaxed),
	}, nil
}

func filterOptions(options []entity.TransitOption, prefs entity.Preferences) []entity.TransitOption {
	var kept []entity.TransitOption
	for _, option := range options {
		if prefs.ModePreference != entity.ModeAny && option.Mode != prefs.ModePreference {
			continue
		}
		if prefs.MaxTransfers != nil && option.Transfers > *prefs.MaxTransfers {
			continue
		}
		kept = append(kept, option)
	}
	return kept
}

func (s *Scorer) score(candidates []*candidate, prefs entity.Preferences) {
	weights, ok := weightsByGoal[prefs.PrimaryGoal]
	if !ok {
		weights = weightsByGoal[entity.GoalFastest]
	}

	durations := make([]float64, len(candidates))
	prices := make([]float64, len(candidates))
	transfers := make([]float64, len(candidates))
	for i, c := range candidates {
		durations[i] = c.option.Duration.Minutes()
		prices[i] = c.priceEUR.InexactFloat64()
		transfers[i] = float64(c.option.Transfers)
	}

	durationScores := normalizeLowerBetter(durations)
	priceScores := normalizeLowerBetter(prices)
	transferScores := normalizeLowerBetter(transfers)

	for i, c := range candidates {
		total := weights.duration*durationScores[i] +
			weights.price*priceScores[i] +
			weights.transfers*transferScores[i]

		if weights.flexible > 0 && s.isFlexible(c.option.Provider) {
			c.flexible = true
			total += weights.flexible
		}

		value := total * 100

		if prefs.AvoidNight && s.atNight(c.option) {
			value -= nightPenalty
			c.penalties = append(c.penalties, "night travel")
		}
		if prefs.WantsShortLayovers() && s.cfg.LongLayover > 0 && c.option.LongestLayover() > s.cfg.LongLayover {
			value -= layoverPenalty
			c.penalties = append(c.penalties, "long layover")
		}

		c.score = math.Round(value*100) / 100
	}
}

// normalizeLowerBetter maps values onto [0,1] where the smallest value scores 1.
// A pool without spread scores 1 everywhere.
func normalizeLowerBetter(values []float64) []float64 {
	scores := make([]float64, len(values))
	if len(values) == 0 {
		return scores
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	for i, v := range values {
		if hi == lo {
			scores[i] = 1
			continue
		}
		scores[i] = 1 - (v-lo)/(hi-lo)
	}
	return scores
}

func (s *Scorer) isFlexible(provider string) bool {
	p := strings.ToLower(strings.TrimSpace(provider))
	for _, f := range s.flexible {
		if p == f || strings.HasPrefix(p, f+" ") {
			return true
		}
	}
	return false
}

func (s *Scorer) atNight(option entity.TransitOption) bool {
	return s.inNightWindow(option.Departure.Hour()) || s.inNightWindow(option.Arrival.Hour())
}

func (s *Scorer) inNightWindow(hour int) bool {
	start, end := s.cfg.NightStartHour, s.cfg.NightEndHour
	if start == end {
		return false
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

// less orders by score, then lower price, fewer transfers, earlier departure,
// and finally the option's tags so equal options never depend on input order.
func less(a, b *candidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if cmp := a.priceEUR.Cmp(b.priceEUR); cmp != 0 {
		return cmp < 0
	}
	if a.option.Transfers != b.option.Transfers {
		return a.option.Transfers < b.option.Transfers
	}
	if !a.option.Departure.Equal(b.option.Departure) {
		return a.option.Departure.Before(b.option.Departure)
	}
	if a.option.Provider != b.option.Provider {
		return a.option.Provider < b.option.Provider
	}
	if a.option.Mode != b.option.Mode {
		return a.option.Mode < b.option.Mode
	}
	return a.option.Source < b.option.Source
}

func toEUR(p entity.Price) decimal.Decimal {
	rate, ok := eurRates[strings.ToUpper(p.Currency)]
	if !ok {
		return p.Amount
	}
	return p.Amount.Mul(rate)
}

var goalPhrases = map[entity.PrimaryGoal]string{
	entity.GoalFastest:         "Fastest",
	entity.GoalCheapest:        "Cheapest",
	entity.GoalFewestTransfers: "Fewest transfers",
	entity.GoalFlexibleChange:  "Most flexible",
}

func explain(c *candidate, prefs entity.Preferences, relaxed bool) string {
	o := c.option

	transfers := "direct"
	if o.Transfers > 0 {
		transfers = utils.Plural(o.Transfers, "transfer")
	}

	parts := []string{fmt.Sprintf("%s %s option: %s by %s, %s, %s",
		goalPhrases[prefs.PrimaryGoal], o.Mode, utils.FormatDuration(o.Duration), o.Provider, o.Price, transfers)}

	if c.flexible {
		parts = append(parts, "provider allows free changes")
	}
	if relaxed {
		parts = append(parts, "no option met the mode/transfer limits, so the best overall is shown")
	}
	if len(c.penalties) > 0 {
		parts = append(parts, "penalized for "+strings.Join(c.penalties, " and "))
	}

	return strings.Join(parts, "; ")
}
