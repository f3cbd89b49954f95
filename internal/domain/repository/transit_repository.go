package repository

import (
	"context"

	"rebook-service/internal/domain/entity"
)

// TransitSearcher is one independent transit search backend
type TransitSearcher interface {
	// Name is the backend tag used in logs and metrics
	Name() string
	Search(ctx context.Context, req entity.TravelRequest) ([]entity.TransitOption, error)
}

// BookingProvider creates a checkout link for a chosen option
type BookingProvider interface {
	CreateCheckout(ctx context.Context, option entity.ScoredOption, traveler entity.TravelerProfile) (entity.Checkout, error)
}
