package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultMiniMaxURL is the MiniMax t2a_v2 endpoint
const DefaultMiniMaxURL = "https://api.minimax.chat/v1/t2a_v2"

// MiniMaxClient implements Synthesizer using the MiniMax t2a_v2 API
type MiniMaxClient struct {
	apiKey     string
	groupID    string
	apiURL     string
	httpClient *http.Client
}

type timberWeight struct {
	VoiceID string `json:"voice_id"`
	Weight  int    `json:"weight"`
}

// MiniMaxRequest is the request payload for the t2a_v2 API
type MiniMaxRequest struct {
	Text          string         `json:"text"`
	VoiceID       string         `json:"voice_id"`
	Speed         float64        `json:"speed"`
	Vol           float64        `json:"vol"`
	Pitch         int            `json:"pitch"`
	TimberWeights []timberWeight `json:"timber_weights"`
}

// miniMaxResponse covers the JSON response forms: a download URL or inline
// base64 audio
type miniMaxResponse struct {
	AudioFile string `json:"audio_file"`
	AudioData string `json:"audio_data"`
}

// NewMiniMaxClient creates a MiniMax client. An empty apiURL selects the
// public endpoint.
func NewMiniMaxClient(apiKey, groupID, apiURL string, timeout time.Duration) *MiniMaxClient {
	if apiURL == "" {
		apiURL = DefaultMiniMaxURL
	}
	return &MiniMaxClient{
		apiKey:     apiKey,
		groupID:    groupID,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Synthesize implements Synthesizer
func (c *MiniMaxClient) Synthesize(ctx context.Context, text string, voice VoiceConfig) ([]byte, error) {
	voice = voice.Clamp()

	jsonData, err := json.Marshal(MiniMaxRequest{
		Text:          text,
		VoiceID:       voice.VoiceID,
		Speed:         voice.Speed,
		Vol:           voice.Volume,
		Pitch:         voice.Pitch,
		TimberWeights: []timberWeight{{VoiceID: voice.VoiceID, Weight: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.groupID != "" {
		req.Header.Set("X-GroupId", c.groupID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("minimax", resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "audio") {
		return body, nil
	}

	var parsed miniMaxResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("unexpected minimax response: %w", err)
	}

	switch {
	case parsed.AudioFile != "":
		return c.download(ctx, parsed.AudioFile)
	case parsed.AudioData != "":
		audio, err := base64.StdEncoding.DecodeString(parsed.AudioData)
		if err != nil {
			return nil, fmt.Errorf("failed to decode audio_data: %w", err)
		}
		return audio, nil
	default:
		return nil, fmt.Errorf("unexpected minimax response format")
	}
}

func (c *MiniMaxClient) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("minimax download", resp)
	}
	return io.ReadAll(resp.Body)
}
