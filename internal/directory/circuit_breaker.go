package directory

import (
	"context"
	"errors"
	"fmt"

	"bookflow/internal/config"
	"bookflow/pkg/circuitbreaker"
	"bookflow/pkg/models"
)

type CircuitBreakerSource struct {
	source Source
	cb     *circuitbreaker.Wrapper
}

// WrapWithCircuitBreaker returns source unchanged when the breaker is disabled.
// Not-found answers do not count as failures.
func WrapWithCircuitBreaker(source Source, name string, cfg config.CircuitBreakerConfig) Source {
	if !cfg.Enabled {
		return source
	}
	return &CircuitBreakerSource{
		source: source,
		cb:     circuitbreaker.FromSettings(name, cfg.MaxRequests, cfg.Interval, cfg.Timeout, cfg.FailureRatio, cfg.MinRequests),
	}
}

func (s *CircuitBreakerSource) Lookup(ctx context.Context, organizerID string) (*models.Organizer, error) {
	result, err := s.cb.Execute(ctx, func() (interface{}, error) {
		org, err := s.source.Lookup(ctx, organizerID)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return org, err
	})
	if err != nil {
		if s.cb.IsOpen() {
			return nil, fmt.Errorf("circuit breaker is open for %s: %w", s.cb.Name(), err)
		}
		return nil, err
	}

	org, _ := result.(*models.Organizer)
	if org == nil {
		return nil, ErrNotFound
	}
	return org, nil
}

func (s *CircuitBreakerSource) State() string {
	return s.cb.State().String()
}
