package payments

import (
	"context"
	"math"

	"github.com/flowmarket/marketplace/internal/store"
)

// CommissionRate is the platform's fixed cut of a paid implementation.
const CommissionRate = 0.15

// Commission computes the platform fee for a budget, rounded to cents.
func Commission(budget float64) float64 {
	return math.Round(budget*CommissionRate*100) / 100
}

// CheckoutSession is the provider-agnostic result of creating a
// checkout. URL is where the client completes payment.
type CheckoutSession struct {
	ID               string  `json:"id"`
	Provider         string  `json:"provider"`
	URL              string  `json:"url"`
	Amount           float64 `json:"amount"`
	Currency         string  `json:"currency"`
	ImplementationID uint    `json:"implementation_id"`
}

// Provider creates checkouts with one payment processor. Unlike search,
// provider failures surface as errors: money operations are never
// degraded silently.
type Provider interface {
	Name() string
	CreateCheckout(ctx context.Context, impl *store.Implementation, title string) (*CheckoutSession, error)
}
