package usecase

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rebook-service/internal/domain/entity"
)

var tomorrow = time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func opt(mode entity.Mode, provider string, price float64, transfers int, depHour int, duration time.Duration) entity.TransitOption {
	dep := tomorrow.Add(time.Duration(depHour) * time.Hour)
	return entity.TransitOption{
		Mode:      mode,
		Provider:  provider,
		Source:    string(mode),
		Departure: dep,
		Arrival:   dep.Add(duration),
		Duration:  duration,
		Price:     entity.Price{Amount: decimal.NewFromFloat(price), Currency: "EUR"},
		Transfers: transfers,
	}
}

func newTestScorer() *Scorer {
	return NewScorer(ScorerConfig{
		NightStartHour:    22,
		NightEndHour:      6,
		LongLayover:       2 * time.Hour,
		FlexibleProviders: []string{"DB", "Deutsche Bahn", "FlixBus"},
	})
}

func parisBerlinPool() []entity.TransitOption {
	return []entity.TransitOption{
		opt(entity.ModeTrain, "SNCF", 80, 1, 8, 5*time.Hour),
		opt(entity.ModeBus, "FlixBus", 40, 0, 9, 9*time.Hour),
		opt(entity.ModeFlight, "Air France", 120, 0, 10, 2*time.Hour),
	}
}

func TestScorer_CheapestWithTransferCap(t *testing.T) {
	got, err := newTestScorer().Select(parisBerlinPool(), entity.Preferences{
		PrimaryGoal:  entity.GoalCheapest,
		MaxTransfers: intPtr(1),
	})
	require.NoError(t, err)

	assert.Equal(t, entity.ModeBus, got.Option.Mode)
	assert.Equal(t, "FlixBus", got.Option.Provider)
	assert.Equal(t, 90.0, got.Score)
	assert.Contains(t, got.Explanation, "Cheapest bus option")
	assert.Contains(t, got.Explanation, "EUR 40.00")
	assert.Contains(t, got.Explanation, "direct")
}

func TestScorer_Goals(t *testing.T) {
	tests := []struct {
		name     string
		prefs    entity.Preferences
		wantMode entity.Mode
	}{
		{"fastest by default", entity.Preferences{}, entity.ModeFlight},
		{"cheapest", entity.Preferences{PrimaryGoal: entity.GoalCheapest}, entity.ModeBus},
		{"fewest transfers prefers the faster direct option", entity.Preferences{PrimaryGoal: entity.GoalFewestTransfers}, entity.ModeFlight},
		{"mode preference", entity.Preferences{ModePreference: entity.ModeTrain}, entity.ModeTrain},
		{"direct only", entity.Preferences{PrimaryGoal: entity.GoalCheapest, MaxTransfers: intPtr(0)}, entity.ModeBus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newTestScorer().Select(parisBerlinPool(), tt.prefs)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMode, got.Option.Mode)
		})
	}
}

func TestScorer_FallsBackWhenFiltersRemoveEverything(t *testing.T) {
	pool := []entity.TransitOption{
		opt(entity.ModeTrain, "SNCF", 80, 2, 8, 5*time.Hour),
		opt(entity.ModeBus, "FlixBus", 40, 1, 9, 9*time.Hour),
	}

	got, err := newTestScorer().Select(pool, entity.Preferences{
		ModePreference: entity.ModeFlight,
		MaxTransfers:   intPtr(0),
	})
	require.NoError(t, err)

	assert.Equal(t, entity.ModeTrain, got.Option.Mode)
	assert.Contains(t, got.Explanation, "best overall")
}

func TestScorer_TieBreaks(t *testing.T) {
	tests := []struct {
		name         string
		pool         []entity.TransitOption
		wantProvider string
	}{
		{
			name: "earliest departure",
			pool: []entity.TransitOption{
				opt(entity.ModeTrain, "B-Rail", 50, 0, 11, 3*time.Hour),
				opt(entity.ModeTrain, "A-Rail", 50, 0, 9, 3*time.Hour),
			},
			wantProvider: "A-Rail",
		},
		{
			name: "provider name when everything else is equal",
			pool: []entity.TransitOption{
				opt(entity.ModeTrain, "Zug", 50, 0, 9, 3*time.Hour),
				opt(entity.ModeTrain, "Bahn", 50, 0, 9, 3*time.Hour),
			},
			wantProvider: "Bahn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scorer := newTestScorer()

			forward, err := scorer.Select(tt.pool, entity.Preferences{})
			require.NoError(t, err)

			reversed := []entity.TransitOption{tt.pool[1], tt.pool[0]}
			backward, err := scorer.Select(reversed, entity.Preferences{})
			require.NoError(t, err)

			assert.Equal(t, tt.wantProvider, forward.Option.Provider)
			assert.Equal(t, forward, backward)
		})
	}
}

func TestScorer_Deterministic(t *testing.T) {
	scorer := newTestScorer()
	prefs := entity.Preferences{PrimaryGoal: entity.GoalFlexibleChange, AvoidNight: true}

	first, err := scorer.Select(parisBerlinPool(), prefs)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		pool := parisBerlinPool()
		pool[0], pool[i%3] = pool[i%3], pool[0]
		got, err := scorer.Select(pool, prefs)
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}
}

func TestScorer_NightPenalty(t *testing.T) {
	pool := []entity.TransitOption{
		opt(entity.ModeTrain, "Night", 50, 0, 23, 3*time.Hour),
		opt(entity.ModeTrain, "Day", 50, 0, 10, 3*time.Hour+10*time.Minute),
		opt(entity.ModeTrain, "Slow", 50, 0, 8, 10*time.Hour),
	}

	got, err := newTestScorer().Select(pool, entity.Preferences{})
	require.NoError(t, err)
	assert.Equal(t, "Night", got.Option.Provider)

	got, err = newTestScorer().Select(pool, entity.Preferences{AvoidNight: true})
	require.NoError(t, err)
	assert.Equal(t, "Day", got.Option.Provider)
}

func TestScorer_LongLayoverPenalty(t *testing.T) {
	layover := opt(entity.ModeTrain, "Layover", 50, 1, 8, 3*time.Hour)
	layover.Legs = []entity.Leg{
		{Line: "ICE 1", Departure: layover.Departure, Arrival: layover.Departure.Add(30 * time.Minute)},
		{Line: "ICE 2", Departure: layover.Departure.Add(2*time.Hour + 45*time.Minute), Arrival: layover.Arrival},
	}
	pool := []entity.TransitOption{
		layover,
		opt(entity.ModeTrain, "Straight", 50, 1, 8, 3*time.Hour+10*time.Minute),
		opt(entity.ModeTrain, "Slow", 50, 1, 8, 10*time.Hour),
	}

	got, err := newTestScorer().Select(pool, entity.Preferences{AvoidLongLayover: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, "Layover", got.Option.Provider)

	got, err = newTestScorer().Select(pool, entity.Preferences{AvoidLongLayover: boolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, "Straight", got.Option.Provider)
}

func TestScorer_FlexibleChangeBoost(t *testing.T) {
	pool := []entity.TransitOption{
		opt(entity.ModeFlight, "Air France", 60, 0, 9, 3*time.Hour),
		opt(entity.ModeTrain, "DB Fernverkehr AG", 60, 0, 9, 3*time.Hour),
	}

	got, err := newTestScorer().Select(pool, entity.Preferences{PrimaryGoal: entity.GoalFlexibleChange})
	require.NoError(t, err)

	assert.Equal(t, "DB Fernverkehr AG", got.Option.Provider)
	assert.Equal(t, 100.0, got.Score)
	assert.Contains(t, got.Explanation, "free changes")
}

func TestScorer_MixedCurrencies(t *testing.T) {
	flight := opt(entity.ModeFlight, "Jeju Air", 0, 0, 9, time.Hour)
	flight.Price = entity.Price{Amount: decimal.NewFromInt(47000), Currency: "KRW"}
	bus := opt(entity.ModeBus, "Express", 60, 0, 9, 5*time.Hour)

	got, err := newTestScorer().Select([]entity.TransitOption{bus, flight}, entity.Preferences{PrimaryGoal: entity.GoalCheapest})
	require.NoError(t, err)
	assert.Equal(t, "Jeju Air", got.Option.Provider)
}

func TestScorer_EmptyPool(t *testing.T) {
	_, err := newTestScorer().Select(nil, entity.Preferences{})
	assert.ErrorIs(t, err, entity.ErrNoOptionsFound)
}

func TestNormalizeLowerBetter(t *testing.T) {
	assert.Equal(t, []float64{1, 0.5, 0}, normalizeLowerBetter([]float64{1, 2, 3}))
	assert.Equal(t, []float64{1, 1}, normalizeLowerBetter([]float64{4, 4}))
	assert.Empty(t, normalizeLowerBetter(nil))
}
