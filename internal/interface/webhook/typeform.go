package webhook

import (
	"encoding/json"
	"strconv"

	"github.com/xeipuuv/gojsonschema"

	"rebook-service/internal/domain/entity"
)

const typeformSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["form_response"],
  "properties": {
    "event_id": { "type": "string" },
    "event_type": { "type": "string" },
    "form_response": {
      "type": "object",
      "required": ["answers"],
      "properties": {
        "token": { "type": "string" },
        "answers": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["field"],
            "properties": {
              "type": { "type": "string" },
              "field": {
                "type": "object",
                "properties": { "ref": { "type": "string" } }
              }
            }
          }
        }
      }
    }
  }
}`

var typeformSchemaLoader = gojsonschema.NewStringLoader(typeformSchema)

type typeformPayload struct {
	EventID      string               `json:"event_id"`
	EventType    string               `json:"event_type"`
	FormResponse typeformFormResponse `json:"form_response"`
}

type typeformFormResponse struct {
	Token   string           `json:"token"`
	Answers []typeformAnswer `json:"answers"`
}

type typeformAnswer struct {
	Type  string `json:"type"`
	Field struct {
		ID   string `json:"id"`
		Ref  string `json:"ref"`
		Type string `json:"type"`
	} `json:"field"`
	Text    *string  `json:"text"`
	Email   *string  `json:"email"`
	Date    *string  `json:"date"`
	Number  *float64 `json:"number"`
	Boolean *bool    `json:"boolean"`
	Choice  *struct {
		Label string `json:"label"`
		Other string `json:"other"`
	} `json:"choice"`
}

// TypeformAdapter translates Typeform responses. Questions are matched by their
// field ref, which the form author sets to the canonical field name.
type TypeformAdapter struct {
	verifier *HMACVerifier
}

// NewTypeformAdapter creates the Typeform adapter. An empty secret disables signature checks.
func NewTypeformAdapter(secret string) *TypeformAdapter {
	return &TypeformAdapter{verifier: NewHMACVerifier(secret, "sha256=")}
}

func (a *TypeformAdapter) CanHandle(provider string) bool { return provider == "typeform" }

func (a *TypeformAdapter) SignatureHeader() string { return "Typeform-Signature" }

func (a *TypeformAdapter) VerifySignature(body []byte, signature string) error {
	return a.verifier.Verify(body, signature)
}

// Parse reads form_response.token and the answers by field ref
func (a *TypeformAdapter) Parse(body []byte) (entity.TravelRequest, error) {
	if err := validateSchema(typeformSchemaLoader, body); err != nil {
		return entity.TravelRequest{}, err
	}

	var payload typeformPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return entity.TravelRequest{}, entity.MalformedPayload(err)
	}

	return buildRequest(payload.FormResponse.Token, func(name string) (string, bool) {
		for _, answer := range payload.FormResponse.Answers {
			if answer.Field.Ref == name {
				return answer.value()
			}
		}
		return "", false
	})
}

func (a typeformAnswer) value() (string, bool) {
	switch a.Type {
	case "text":
		if a.Text != nil {
			return *a.Text, true
		}
	case "choice":
		if a.Choice != nil {
			if a.Choice.Label != "" {
				return a.Choice.Label, true
			}
			return a.Choice.Other, a.Choice.Other != ""
		}
	case "date":
		if a.Date != nil {
			return *a.Date, true
		}
	case "number":
		if a.Number != nil {
			return strconv.FormatFloat(*a.Number, 'f', -1, 64), true
		}
	}

	switch {
	case a.Text != nil:
		return *a.Text, true
	case a.Date != nil:
		return *a.Date, true
	case a.Number != nil:
		return strconv.FormatFloat(*a.Number, 'f', -1, 64), true
	case a.Boolean != nil:
		return strconv.FormatBool(*a.Boolean), true
	case a.Email != nil:
		return *a.Email, true
	}
	return "", false
}
