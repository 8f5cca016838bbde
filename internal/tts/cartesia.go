package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	cartesiaURL     = "https://api.cartesia.ai/tts/bytes"
	cartesiaVersion = "2024-06-10"
)

// CartesiaClient implements Synthesizer using Cartesia's bytes endpoint
type CartesiaClient struct {
	apiKey     string
	apiURL     string
	voiceID    string
	modelID    string
	httpClient *http.Client
}

type cartesiaVoice struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type cartesiaOutputFormat struct {
	Container  string `json:"container"`
	SampleRate int    `json:"sample_rate"`
	BitRate    int    `json:"bit_rate,omitempty"`
}

// CartesiaRequest represents the request payload for Cartesia TTS API
type CartesiaRequest struct {
	ModelID      string               `json:"model_id"`
	Transcript   string               `json:"transcript"`
	Voice        cartesiaVoice        `json:"voice"`
	OutputFormat cartesiaOutputFormat `json:"output_format"`
	Language     string               `json:"language,omitempty"`
}

// NewCartesiaClient creates a new Cartesia TTS client
func NewCartesiaClient(apiKey, voiceID, modelID string, timeout time.Duration) *CartesiaClient {
	return &CartesiaClient{
		apiKey:     apiKey,
		apiURL:     cartesiaURL,
		voiceID:    voiceID,
		modelID:    modelID,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Synthesize implements Synthesizer. The catalogue voice ID only applies to
// MiniMax, so the configured Cartesia voice is used unless the job names one
// that is not in the catalogue.
func (c *CartesiaClient) Synthesize(ctx context.Context, text string, voice VoiceConfig) ([]byte, error) {
	voiceID := c.voiceID
	if _, known := LookupVoice(voice.VoiceID); voice.VoiceID != "" && !known {
		voiceID = voice.VoiceID
	}

	jsonData, err := json.Marshal(CartesiaRequest{
		ModelID:    c.modelID,
		Transcript: text,
		Voice:      cartesiaVoice{Mode: "id", ID: voiceID},
		OutputFormat: cartesiaOutputFormat{
			Container:  "mp3",
			SampleRate: 44100,
			BitRate:    128000,
		},
		Language: "en",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Cartesia-Version", cartesiaVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("cartesia", resp)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio response: %w", err)
	}
	if len(audioData) == 0 {
		return nil, fmt.Errorf("cartesia returned empty audio data")
	}
	return audioData, nil
}
