package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Price is an amount in a currency
type Price struct {
	Amount   decimal.Decimal `json:"amount" bson:"amount"`
	Currency string          `json:"currency" bson:"currency"`
}

func (p Price) String() string {
	return fmt.Sprintf("%s %s", p.Currency, p.Amount.StringFixed(2))
}

// Leg is one vehicle ride within an option
type Leg struct {
	Line      string    `json:"line,omitempty" bson:"line,omitempty"`
	Departure time.Time `json:"departure" bson:"departure"`
	Arrival   time.Time `json:"arrival" bson:"arrival"`
}

// TransitOption is a normalized candidate itinerary returned by a search backend
type TransitOption struct {
	Mode      Mode          `json:"mode" bson:"mode"`
	Provider  string        `json:"provider" bson:"provider"`
	Source    string        `json:"source" bson:"source"`
	Departure time.Time     `json:"departure" bson:"departure"`
	Arrival   time.Time     `json:"arrival" bson:"arrival"`
	Duration  time.Duration `json:"-" bson:"duration"`
	Price     Price         `json:"price" bson:"price"`
	Transfers int           `json:"transfers" bson:"transfers"`
	Legs      []Leg         `json:"legs,omitempty" bson:"legs,omitempty"`
	DeepLink  string        `json:"deep_link,omitempty" bson:"deepLink,omitempty"`
	Details   string        `json:"details,omitempty" bson:"details,omitempty"`
}

type transitOptionJSON TransitOption

// MarshalJSON writes the duration as whole minutes in duration_minutes
func (o TransitOption) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		transitOptionJSON
		DurationMinutes int64 `json:"duration_minutes"`
	}{
		transitOptionJSON: transitOptionJSON(o),
		DurationMinutes:   int64(o.Duration.Round(time.Minute) / time.Minute),
	})
}

// UnmarshalJSON reads the form written by MarshalJSON
func (o *TransitOption) UnmarshalJSON(data []byte) error {
	aux := struct {
		*transitOptionJSON
		DurationMinutes int64 `json:"duration_minutes"`
	}{transitOptionJSON: (*transitOptionJSON)(o)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	o.Duration = time.Duration(aux.DurationMinutes) * time.Minute
	return nil
}

// LongestLayover returns the largest gap between consecutive legs.
// Options without leg data report zero.
func (o TransitOption) LongestLayover() time.Duration {
	var longest time.Duration
	for i := 1; i < len(o.Legs); i++ {
		gap := o.Legs[i].Departure.Sub(o.Legs[i-1].Arrival)
		if gap > longest {
			longest = gap
		}
	}
	return longest
}

// ScoredOption is the option the scorer picked, with its score and a display explanation
type ScoredOption struct {
	Option      TransitOption `json:"option" bson:"option"`
	Score       float64       `json:"score" bson:"score"`
	Explanation string        `json:"explanation" bson:"explanation"`
}
