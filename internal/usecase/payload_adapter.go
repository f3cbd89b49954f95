package usecase

import (
	"rebook-service/internal/domain/entity"
)

// PayloadAdapter translates one survey provider's webhook into a TravelRequest
type PayloadAdapter interface {
	// CanHandle determines if this adapter serves the given provider name
	CanHandle(provider string) bool

	// SignatureHeader is the HTTP header carrying the provider's signature
	SignatureHeader() string

	// VerifySignature checks the raw body against the signature header value.
	// Adapters without a configured secret accept every payload.
	VerifySignature(body []byte, signature string) error

	// Parse converts the raw body into a canonical request
	Parse(body []byte) (entity.TravelRequest, error)
}

// ProviderRouter routes webhook deliveries to the adapter of their provider
type ProviderRouter interface {
	// Register registers an adapter
	Register(adapter PayloadAdapter)

	// GetAdapter returns the adapter for a provider, nil when none matches
	GetAdapter(provider string) PayloadAdapter
}
