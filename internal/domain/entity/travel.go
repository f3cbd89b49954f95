package entity

import (
	"fmt"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Mode is the kind of vehicle an option travels on
type Mode string

const (
	ModeAny    Mode = "any"
	ModeTrain  Mode = "train"
	ModeBus    Mode = "bus"
	ModeFlight Mode = "flight"
)

// ParseMode maps a free-form answer to a Mode. Unknown values degrade to ModeAny.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeTrain, ModeBus, ModeFlight:
		return Mode(s)
	}
	return ModeAny
}

// PrimaryGoal selects the scoring weights
type PrimaryGoal string

const (
	GoalFastest         PrimaryGoal = "fastest"
	GoalCheapest        PrimaryGoal = "cheapest"
	GoalFewestTransfers PrimaryGoal = "fewest_transfers"
	GoalFlexibleChange  PrimaryGoal = "flexible_change"
)

// ParsePrimaryGoal maps a free-form answer to a PrimaryGoal. Unknown values degrade to fastest.
func ParsePrimaryGoal(s string) PrimaryGoal {
	switch PrimaryGoal(s) {
	case GoalFastest, GoalCheapest, GoalFewestTransfers, GoalFlexibleChange:
		return PrimaryGoal(s)
	case "least_transfers":
		return GoalFewestTransfers
	}
	return GoalFastest
}

// Preferences are the traveler's ranking preferences. The zero value means
// "fastest, any mode, any number of transfers, no penalties".
type Preferences struct {
	PrimaryGoal      PrimaryGoal `json:"primary_goal" bson:"primaryGoal"`
	MaxTransfers     *int        `json:"max_transfers" bson:"maxTransfers,omitempty"` // nil means any
	ModePreference   Mode        `json:"mode_preference" bson:"modePreference"`
	AvoidNight       bool        `json:"avoid_night" bson:"avoidNight"`
	AvoidLongLayover *bool       `json:"avoid_long_layover,omitempty" bson:"avoidLongLayover,omitempty"`
}

// WithDefaults fills unset fields with their documented defaults
func (p Preferences) WithDefaults() Preferences {
	if p.PrimaryGoal == "" {
		p.PrimaryGoal = GoalFastest
	}
	if p.ModePreference == "" {
		p.ModePreference = ModeAny
	}
	return p
}

// WantsShortLayovers reports whether long layovers should be penalized
func (p Preferences) WantsShortLayovers() bool {
	return p.AvoidLongLayover != nil && *p.AvoidLongLayover
}

// TravelRequest is the canonical, vendor-neutral form of a survey submission
type TravelRequest struct {
	ResponseID     string      `json:"response_id"`
	Origin         string      `json:"origin"`
	Destination    string      `json:"destination"`
	DepartureDate  string      `json:"departure_date"`
	DepartureTime  string      `json:"departure_time,omitempty"`
	PassengerCount int         `json:"passenger_count"`
	Email          string      `json:"email,omitempty"`
	Preferences    Preferences `json:"preferences"`
}

// Validate checks the required fields and the date/time formats
func (r TravelRequest) Validate() error {
	if r.ResponseID == "" {
		return &ValidationError{Field: "response_id", Reason: "is missing"}
	}
	if r.Origin == "" {
		return &ValidationError{Field: "origin", Reason: "is missing"}
	}
	if r.Destination == "" {
		return &ValidationError{Field: "destination", Reason: "is missing"}
	}
	if r.DepartureDate == "" {
		return &ValidationError{Field: "departure_date", Reason: "is missing"}
	}
	if _, err := time.Parse(DateLayout, r.DepartureDate); err != nil {
		return &ValidationError{Field: "departure_date", Reason: fmt.Sprintf("must be YYYY-MM-DD, got %q", r.DepartureDate)}
	}
	if r.DepartureTime != "" {
		if _, err := time.Parse(TimeLayout, r.DepartureTime); err != nil {
			return &ValidationError{Field: "departure_time", Reason: fmt.Sprintf("must be HH:MM, got %q", r.DepartureTime)}
		}
	}
	if r.PassengerCount < 1 {
		return &ValidationError{Field: "passenger_count", Reason: "must be at least 1"}
	}
	return nil
}

// EarliestDeparture combines date and optional time. Missing time means midnight.
func (r TravelRequest) EarliestDeparture() time.Time {
	clock := r.DepartureTime
	if clock == "" {
		clock = "00:00"
	}
	t, err := time.Parse(DateLayout+" "+TimeLayout, r.DepartureDate+" "+clock)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Summary strips the request of personal and survey identifiers
func (r TravelRequest) Summary() RequestSummary {
	return RequestSummary{
		Origin:         r.Origin,
		Destination:    r.Destination,
		DepartureDate:  r.DepartureDate,
		DepartureTime:  r.DepartureTime,
		PassengerCount: r.PassengerCount,
		Preferences:    r.Preferences,
	}
}

// Traveler returns the profile handed to the booking provider
func (r TravelRequest) Traveler() TravelerProfile {
	return TravelerProfile{
		Origin:         r.Origin,
		Destination:    r.Destination,
		DepartureDate:  r.DepartureDate,
		DepartureTime:  r.DepartureTime,
		PassengerCount: r.PassengerCount,
		Email:          r.Email,
	}
}

// RequestSummary is the persisted, identifier-free view of a TravelRequest
type RequestSummary struct {
	Origin         string      `json:"origin" bson:"origin"`
	Destination    string      `json:"destination" bson:"destination"`
	DepartureDate  string      `json:"departure_date" bson:"departureDate"`
	DepartureTime  string      `json:"departure_time,omitempty" bson:"departureTime,omitempty"`
	PassengerCount int         `json:"passenger_count" bson:"passengerCount"`
	Preferences    Preferences `json:"preferences" bson:"preferences"`
}

// TravelerProfile is what a booking provider needs to prefill a checkout
type TravelerProfile struct {
	Origin         string
	Destination    string
	DepartureDate  string
	DepartureTime  string
	PassengerCount int
	Email          string
}
