package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lexiqai/doc-audio-service/internal/resilience"
)

// ErrSynthesis is returned once a segment could not be synthesized after
// retries were exhausted
var ErrSynthesis = errors.New("speech synthesis failed")

// Synthesizer turns one bounded text segment into encoded audio
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice VoiceConfig) ([]byte, error)
}

// statusError converts a non-200 response into an error. Rate limiting and
// server errors are marked retryable.
func statusError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err := fmt.Errorf("%s API returned status %d: %s", provider, resp.StatusCode, strings.TrimSpace(string(body)))

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return resilience.NewRetryableError(err)
	}
	return err
}
