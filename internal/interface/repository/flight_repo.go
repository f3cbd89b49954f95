package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rebook-service/internal/domain/entity"
	"rebook-service/internal/domain/repository"
	"rebook-service/pkg/logger"
	"rebook-service/pkg/utils"

	"github.com/shopspring/decimal"
)

type flightTemplate struct {
	provider string
	duration time.Duration
	price    int64
	currency string
}

type routeKey struct {
	origin      string
	destination string
}

// flightRoutes holds fares for known city pairs. Both directions are registered in init.
var flightRoutes = map[routeKey][]flightTemplate{
	{"seoul", "busan"}: {
		{"Korean Air", 60 * time.Minute, 77000, "KRW"},
		{"Asiana Airlines", 60 * time.Minute, 74000, "KRW"},
		{"Jin Air", 65 * time.Minute, 49000, "KRW"},
		{"Jeju Air", 65 * time.Minute, 47000, "KRW"},
	},
	{"seoul", "jeju"}: {
		{"Korean Air", 70 * time.Minute, 82000, "KRW"},
		{"Asiana Airlines", 70 * time.Minute, 79000, "KRW"},
		{"Jin Air", 75 * time.Minute, 52000, "KRW"},
		{"T'way Air", 75 * time.Minute, 50000, "KRW"},
	},
	{"seoul", "gwangju"}: {
		{"Korean Air", 55 * time.Minute, 68000, "KRW"},
		{"Asiana Airlines", 55 * time.Minute, 65000, "KRW"},
	},
	{"seoul", "daegu"}: {
		{"Korean Air", 55 * time.Minute, 71000, "KRW"},
		{"Jin Air", 60 * time.Minute, 45000, "KRW"},
	},
	{"busan", "jeju"}: {
		{"Korean Air", 55 * time.Minute, 65000, "KRW"},
		{"Asiana Airlines", 55 * time.Minute, 62000, "KRW"},
		{"Air Busan", 60 * time.Minute, 42000, "KRW"},
	},
	{"paris", "berlin"}: {
		{"Air France", 105 * time.Minute, 120, "EUR"},
		{"Eurowings", 110 * time.Minute, 89, "EUR"},
	},
	{"paris", "munich"}: {
		{"Lufthansa", 95 * time.Minute, 135, "EUR"},
		{"Air France", 95 * time.Minute, 128, "EUR"},
	},
	{"london", "paris"}: {
		{"British Airways", 75 * time.Minute, 110, "EUR"},
		{"easyJet", 80 * time.Minute, 65, "EUR"},
	},
}

func init() {
	for key, templates := range flightRoutes {
		reverse := routeKey{origin: key.destination, destination: key.origin}
		if _, ok := flightRoutes[reverse]; !ok {
			flightRoutes[reverse] = templates
		}
	}
}

// unknownRouteFlight is offered for city pairs missing from the route table
var unknownRouteFlight = flightTemplate{"Korean Air", 70 * time.Minute, 80000, "KRW"}

// FlightSearch is a deterministic flight backend over a static route table
type FlightSearch struct {
	logger logger.Logger
}

// NewFlightSearch creates the flight backend
func NewFlightSearch(logger logger.Logger) repository.TransitSearcher {
	return &FlightSearch{logger: logger}
}

func (s *FlightSearch) Name() string { return "flight" }

// Search returns one option per airline serving the route on the requested date
func (s *FlightSearch) Search(ctx context.Context, req entity.TravelRequest) ([]entity.TransitOption, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	date, err := time.Parse(entity.DateLayout, req.DepartureDate)
	if err != nil {
		return nil, fmt.Errorf("invalid departure date %q: %w", req.DepartureDate, err)
	}

	origin := utils.NormalizeCity(req.Origin)
	destination := utils.NormalizeCity(req.Destination)

	templates, ok := flightRoutes[routeKey{strings.ToLower(origin), strings.ToLower(destination)}]
	if !ok {
		s.logger.Debug("Unknown flight route, using generic fare", "origin", origin, "destination", destination)
		templates = []flightTemplate{unknownRouteFlight}
	}

	departures := departureSlots(date, req.DepartureTime, len(templates))

	options := make([]entity.TransitOption, 0, len(templates))
	for i, tmpl := range templates {
		dep := departures[i]
		arr := dep.Add(tmpl.duration)
		options = append(options, entity.TransitOption{
			Mode:      entity.ModeFlight,
			Provider:  tmpl.provider,
			Source:    s.Name(),
			Departure: dep,
			Arrival:   arr,
			Duration:  tmpl.duration,
			Price:     entity.Price{Amount: decimal.NewFromInt(tmpl.price), Currency: tmpl.currency},
			Transfers: 0,
			Legs:      []entity.Leg{{Line: tmpl.provider, Departure: dep, Arrival: arr}},
			Details:   fmt.Sprintf("%s %s → %s", tmpl.provider, origin, destination),
		})
	}

	return options, nil
}

// departureSlots spreads count departures three hours apart starting two hours
// before the preferred hour (11:00 when none), never before 07:00 or after 21:50.
func departureSlots(date time.Time, preferred string, count int) []time.Time {
	center := 11
	if t, err := time.Parse(entity.TimeLayout, preferred); err == nil {
		center = t.Hour()
	}

	start := center - 2
	if start < 7 {
		start = 7
	}

	slots := make([]time.Time, 0, count)
	for i := 0; i < count; i++ {
		hour := start + i*3
		if hour > 21 {
			hour = 21 - (count - 1 - i)
		}
		minute := (i * 20) % 60
		slots = append(slots, time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, time.UTC))
	}
	return slots
}
