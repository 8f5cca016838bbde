package tts

import (
	"context"
	"fmt"
	"strings"

	speakapi "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/speak/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	speakclient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/speak"
)

// streamFunc writes synthesized audio for text into buf
type streamFunc func(ctx context.Context, text string, options *interfaces.SpeakOptions, buf *interfaces.RawResponse) error

// DeepgramClient implements Synthesizer using Deepgram Aura over REST
type DeepgramClient struct {
	stream streamFunc
	model  string
}

// NewDeepgramClient creates a Deepgram speak client
func NewDeepgramClient(apiKey, model string) *DeepgramClient {
	c := speakclient.NewREST(apiKey, &interfaces.ClientOptions{})
	dg := speakapi.New(c)

	return &DeepgramClient{
		stream: func(ctx context.Context, text string, options *interfaces.SpeakOptions, buf *interfaces.RawResponse) error {
			_, err := dg.ToStream(ctx, text, options, buf)
			return err
		},
		model: model,
	}
}

// Synthesize implements Synthesizer. A job voice naming an Aura model
// overrides the configured model.
func (d *DeepgramClient) Synthesize(ctx context.Context, text string, voice VoiceConfig) ([]byte, error) {
	model := d.model
	if strings.HasPrefix(voice.VoiceID, "aura") {
		model = voice.VoiceID
	}

	var buf interfaces.RawResponse
	if err := d.stream(ctx, text, &interfaces.SpeakOptions{Model: model}, &buf); err != nil {
		return nil, fmt.Errorf("deepgram speak: %w", err)
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("deepgram returned empty audio data")
	}
	return buf.Bytes(), nil
}
