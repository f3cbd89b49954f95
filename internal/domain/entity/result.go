package entity

import (
	"time"
)

// Checkout is the booking link metadata for a recommendation
type Checkout struct {
	URL       string     `json:"checkout_url" bson:"checkoutUrl"`
	ExpiresAt *time.Time `json:"expires_at" bson:"expiresAt,omitempty"`
}

// RecommendationResult is the single stored outcome of a job
type RecommendationResult struct {
	ResultID       string         `json:"result_id" bson:"_id"`
	CreatedAt      time.Time      `json:"created_at" bson:"createdAt"`
	Request        RequestSummary `json:"request" bson:"request"`
	Recommendation ScoredOption   `json:"recommendation" bson:"recommendation"`
	Checkout       Checkout       `json:"checkout" bson:"checkout"`
}

// IsExpired reports whether the checkout link has expired at now.
// Results without an expiry never expire.
func (r *RecommendationResult) IsExpired(now time.Time) bool {
	if r.Checkout.ExpiresAt == nil {
		return false
	}
	return r.Checkout.ExpiresAt.Before(now)
}
