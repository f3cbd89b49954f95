package webhook

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"rebook-service/internal/domain/entity"
)

// Canonical answer names. Provider adapters map their own field identifiers onto these.
const (
	fieldOrigin           = "origin"
	fieldDestination      = "destination"
	fieldDepartureDate    = "departure_date"
	fieldDepartureTime    = "departure_time"
	fieldPassengerCount   = "passenger_count"
	fieldEmail            = "email"
	fieldPrimaryGoal      = "primary_goal"
	fieldMaxTransfers     = "max_transfers"
	fieldModePreference   = "mode_preference"
	fieldAvoidNight       = "avoid_night"
	fieldAvoidLongLayover = "avoid_long_layover"
)

// answerLookup returns the answer for a canonical field name
type answerLookup func(name string) (string, bool)

// buildRequest assembles a TravelRequest from a provider's answers. Only the
// route and date are required; preferences degrade to their defaults.
func buildRequest(responseID string, answer answerLookup) (entity.TravelRequest, error) {
	get := func(name string) string {
		v, _ := answer(name)
		return strings.TrimSpace(v)
	}

	req := entity.TravelRequest{
		ResponseID:     responseID,
		Origin:         get(fieldOrigin),
		Destination:    get(fieldDestination),
		DepartureDate:  get(fieldDepartureDate),
		DepartureTime:  get(fieldDepartureTime),
		Email:          get(fieldEmail),
		PassengerCount: 1,
	}

	// Date pickers may send a full timestamp
	if len(req.DepartureDate) > len(entity.DateLayout) {
		req.DepartureDate = req.DepartureDate[:len(entity.DateLayout)]
	}

	if raw := get(fieldPassengerCount); raw != "" {
		n, err := strconv.Atoi(strings.TrimSuffix(raw, ".0"))
		if err != nil {
			return req, &entity.ValidationError{Field: fieldPassengerCount, Reason: fmt.Sprintf("must be a number, got %q", raw)}
		}
		req.PassengerCount = n
	}

	req.Preferences = entity.Preferences{
		PrimaryGoal:    entity.ParsePrimaryGoal(strings.ToLower(get(fieldPrimaryGoal))),
		ModePreference: entity.ParseMode(strings.ToLower(get(fieldModePreference))),
		MaxTransfers:   parseMaxTransfers(get(fieldMaxTransfers)),
		AvoidNight:     parseBool(get(fieldAvoidNight)),
	}
	if raw := get(fieldAvoidLongLayover); raw != "" {
		avoid := parseBool(raw)
		req.Preferences.AvoidLongLayover = &avoid
	}

	return req, req.Validate()
}

// parseMaxTransfers returns nil for "any" and anything that is not a small count
func parseMaxTransfers(raw string) *int {
	n, err := strconv.Atoi(strings.TrimSuffix(raw, ".0"))
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

func parseBool(raw string) bool {
	switch strings.ToLower(raw) {
	case "true", "yes", "y", "1", "on":
		return true
	}
	return false
}

// validateSchema checks the envelope shape before any field is read
func validateSchema(schema gojsonschema.JSONLoader, body []byte) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return entity.MalformedPayload(err)
	}
	if !result.Valid() {
		var sb strings.Builder
		for i, e := range result.Errors() {
			if i > 0 {
				sb.WriteString("; ")
			}
			sb.WriteString(e.String())
		}
		return entity.MalformedPayload(fmt.Errorf("payload does not match expected schema: %s", sb.String()))
	}
	return nil
}
