package webhook

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/xeipuuv/gojsonschema"

	"rebook-service/internal/domain/entity"
)

const tallySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["data"],
  "properties": {
    "eventId": { "type": "string" },
    "eventType": { "type": "string" },
    "data": {
      "type": "object",
      "required": ["fields"],
      "properties": {
        "responseId": { "type": "string" },
        "fields": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["key"],
            "properties": { "key": { "type": "string" } }
          }
        }
      }
    }
  }
}`

var tallySchemaLoader = gojsonschema.NewStringLoader(tallySchema)

// tallyKeys maps the form's question keys to canonical field names. Fields whose
// key is already a canonical name need no entry.
var tallyKeys = map[string]string{
	"question_nGVOax": fieldOrigin,
	"question_mOWkbr": fieldDestination,
	"question_3XePVe": fieldDepartureDate,
	"question_wQ72Nd": fieldPassengerCount,
	"question_3jPB7E": fieldEmail,
	"question_wMEaVL": fieldDepartureTime,
	"question_3Nbyp2": fieldPrimaryGoal,
}

type tallyPayload struct {
	EventID   string    `json:"eventId"`
	EventType string    `json:"eventType"`
	Data      tallyData `json:"data"`
}

type tallyData struct {
	ResponseID string       `json:"responseId"`
	Fields     []tallyField `json:"fields"`
}

type tallyField struct {
	Key   string      `json:"key"`
	Label string      `json:"label"`
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// TallyAdapter translates Tally form submissions
type TallyAdapter struct {
	verifier *HMACVerifier
}

// NewTallyAdapter creates the Tally adapter. An empty secret disables signature checks.
func NewTallyAdapter(signingSecret string) *TallyAdapter {
	return &TallyAdapter{verifier: NewHMACVerifier(signingSecret, "")}
}

func (a *TallyAdapter) CanHandle(provider string) bool { return provider == "tally" }

func (a *TallyAdapter) SignatureHeader() string { return "Tally-Signature" }

func (a *TallyAdapter) VerifySignature(body []byte, signature string) error {
	return a.verifier.Verify(body, signature)
}

// Parse reads data.responseId and the mapped fields
func (a *TallyAdapter) Parse(body []byte) (entity.TravelRequest, error) {
	if err := validateSchema(tallySchemaLoader, body); err != nil {
		return entity.TravelRequest{}, err
	}

	var payload tallyPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return entity.TravelRequest{}, entity.MalformedPayload(err)
	}

	return buildRequest(payload.Data.ResponseID, func(name string) (string, bool) {
		for _, field := range payload.Data.Fields {
			key := field.Key
			if mapped, ok := tallyKeys[key]; ok {
				key = mapped
			}
			if key == name {
				return tallyValue(field.Value)
			}
		}
		return "", false
	})
}

// tallyValue flattens the shapes Tally uses for answers: plain values, option
// objects with a name or label, and lists of either
func tallyValue(v interface{}) (string, bool) {
	switch value := v.(type) {
	case nil:
		return "", false
	case string:
		return value, true
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(value), true
	case map[string]interface{}:
		for _, key := range []string{"name", "label", "text"} {
			if s, ok := value[key].(string); ok && s != "" {
				return s, true
			}
		}
		return fmt.Sprint(value), true
	case []interface{}:
		if len(value) == 0 {
			return "", false
		}
		return tallyValue(value[0])
	}
	return fmt.Sprint(v), true
}
