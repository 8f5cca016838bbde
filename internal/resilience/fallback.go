package resilience

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoTiers is returned by Fallback when it is given nothing to try
var ErrNoTiers = errors.New("no fallback tiers configured")

// Tier is one strategy in a fixed-priority fallback chain. Run must either
// return a complete result or an error; partial results are discarded.
type Tier[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// TierError records why one tier was rejected
type TierError struct {
	Tier string
	Err  error
}

func (e *TierError) Error() string {
	return fmt.Sprintf("%s: %v", e.Tier, e.Err)
}

func (e *TierError) Unwrap() error {
	return e.Err
}

// Fallback tries tiers in order and commits to the first success. It returns
// the winning tier's name; on total failure the joined tier errors are returned.
// A done context stops the chain before the next tier starts.
func Fallback[T any](ctx context.Context, tiers ...Tier[T]) (T, string, error) {
	var zero T
	if len(tiers) == 0 {
		return zero, "", ErrNoTiers
	}

	var errs []error
	for _, tier := range tiers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		result, err := tier.Run(ctx)
		if err == nil {
			return result, tier.Name, nil
		}
		errs = append(errs, &TierError{Tier: tier.Name, Err: err})
	}

	return zero, "", errors.Join(errs...)
}
