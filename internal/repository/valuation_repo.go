package repository

import (
	"context"
	"time"
)

// ValuationProvider drives the third-party valuation form for one vehicle
// and returns the short text fragments of the result page that mention a price.
type ValuationProvider interface {
	// QuoteFragments returns ErrValuationUnavailable when the flow cannot be completed.
	QuoteFragments(ctx context.Context, plate string, mileage int) ([]string, error)
}

// ValuationCache remembers resolved valuations per plate and mileage.
type ValuationCache interface {
	// GetValuation returns ErrCacheMiss when nothing is stored.
	GetValuation(ctx context.Context, plate string, mileage int) (string, error)
	SetValuation(ctx context.Context, plate string, mileage int, valuation string, ttl time.Duration) error
}
