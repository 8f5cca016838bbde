package tts

import (
	"time"

	"github.com/lexiqai/doc-audio-service/internal/config"
	"github.com/lexiqai/doc-audio-service/internal/observability"
	"github.com/lexiqai/doc-audio-service/internal/resilience"
)

// New builds the configured backend wrapped in Resilient. It returns the
// provider actually in use: MiniMax without an API key degrades to the mock
// backend.
func New(cfg *config.Config) (Synthesizer, string, error) {
	logger := observability.Component("tts")
	timeout := time.Duration(cfg.TTSTimeout) * time.Second

	var (
		backend  Synthesizer
		provider = cfg.TTSProvider
	)

	switch provider {
	case config.ProviderCartesia:
		backend = NewCartesiaClient(cfg.CartesiaAPIKey, cfg.CartesiaVoiceID, cfg.CartesiaModelID, timeout)
	case config.ProviderDeepgram:
		backend = NewDeepgramClient(cfg.DeepgramAPIKey, cfg.DeepgramModel)
	case config.ProviderExec:
		synth, err := NewExecSynth(cfg.TTSCommand, cfg.TTSSampleRate, 1)
		if err != nil {
			return nil, "", err
		}
		backend = synth
	case config.ProviderMock:
		backend = MockSynth{}
	default:
		if cfg.MiniMaxAPIKey == "" {
			logger.Warn().Msg("MINIMAX_API_KEY not set, using mock synthesizer")
			provider = config.ProviderMock
			backend = MockSynth{}
			break
		}
		if cfg.MiniMaxGroupID == "" {
			logger.Warn().Msg("MINIMAX_GROUP_ID not set")
		}
		backend = NewMiniMaxClient(cfg.MiniMaxAPIKey, cfg.MiniMaxGroupID, cfg.MiniMaxURL, timeout)
	}

	breaker := resilience.NewCircuitBreaker(
		provider,
		cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
	)
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.RetryMaxAttempts
	retry.InitialBackoff = time.Duration(cfg.RetryInitialBackoff) * time.Millisecond

	logger.Info().Str("provider", provider).Msg("Speech synthesizer ready")
	return NewResilient(provider, backend, breaker, retry, timeout), provider, nil
}
