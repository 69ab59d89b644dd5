package store

import (
	"context"

	"golang.org/x/time/rate"

	"menuwatch/models"
)

// RateLimitedStore throttles calls to a wrapped store with a token
// bucket. Throttling lives entirely in the adapter: the core stays
// oblivious to it and the call ordering is unchanged.
type RateLimitedStore struct {
	inner   Store
	limiter *rate.Limiter
}

// RateLimited wraps inner so that store calls stay under
// requestsPerSecond with the given burst.
func RateLimited(inner Store, requestsPerSecond float64, burst int) *RateLimitedStore {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedStore{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

func (s *RateLimitedStore) ReadPrevious(ctx context.Context) (*models.Snapshot, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return s.inner.ReadPrevious(ctx)
}

func (s *RateLimitedStore) WriteSnapshot(ctx context.Context, snap *models.Snapshot) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	return s.inner.WriteSnapshot(ctx, snap)
}

func (s *RateLimitedStore) AppendChanges(ctx context.Context, events []models.ChangeEvent) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	return s.inner.AppendChanges(ctx, events)
}
