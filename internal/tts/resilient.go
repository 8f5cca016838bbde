package tts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/doc-audio-service/internal/observability"
	"github.com/lexiqai/doc-audio-service/internal/resilience"
)

// Resilient wraps a backend with per-attempt timeouts, retry with backoff
// and a circuit breaker. Every error it returns wraps ErrSynthesis.
type Resilient struct {
	name    string
	next    Synthesizer
	breaker *resilience.CircuitBreaker
	retry   *resilience.RetryConfig
	timeout time.Duration
	logger  zerolog.Logger
}

// NewResilient wraps next. A zero timeout leaves attempts bounded only by ctx.
func NewResilient(name string, next Synthesizer, breaker *resilience.CircuitBreaker, retry *resilience.RetryConfig, timeout time.Duration) *Resilient {
	if retry == nil {
		retry = resilience.DefaultRetryConfig()
	}
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	breaker.OnStateChange(func(service string, from, to resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(service, int(to))
		logger := observability.GetLogger()
		logger.Warn().
			Str("service", service).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("Circuit breaker state changed")
	})

	return &Resilient{
		name:    name,
		next:    next,
		breaker: breaker,
		retry:   retry,
		timeout: timeout,
		logger:  observability.Component("tts").With().Str("provider", name).Logger(),
	}
}

// Synthesize implements Synthesizer
func (r *Resilient) Synthesize(ctx context.Context, text string, voice VoiceConfig) ([]byte, error) {
	var audio []byte
	attempt := 0

	err := resilience.Retry(ctx, func(ctx context.Context) error {
		attempt++
		return r.breaker.Execute(ctx, func(ctx context.Context) error {
			callCtx := ctx
			if r.timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, r.timeout)
				defer cancel()
			}

			data, err := r.next.Synthesize(callCtx, text, voice)
			if err == nil && len(data) == 0 {
				err = resilience.NewRetryableError(errors.New("empty audio"))
			}
			if err != nil {
				observability.IncrementCircuitBreakerFailures(r.name)
				r.logger.Debug().Err(err).Int("attempt", attempt).Msg("Synthesis attempt failed")
				return err
			}
			audio = data
			return nil
		})
	}, r.retry, isRetryable)

	if err != nil {
		return nil, fmt.Errorf("%w: %s after %d attempt(s): %w", ErrSynthesis, r.name, attempt, err)
	}
	return audio, nil
}

// isRetryable retries transient failures but never an open circuit
func isRetryable(err error) bool {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return false
	}
	return resilience.IsRetryableNetworkError(err)
}
