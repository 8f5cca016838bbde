package tts

import (
	"context"
	"strings"
)

// MockSynth produces silent MP3-shaped audio, roughly one second per three
// words. It stands in for a real backend when no credentials are configured.
type MockSynth struct{}

var mockHeader = append([]byte{0xFF, 0xFB, 0x90, 0x00}, make([]byte, 32)...)

const (
	mockFrameSize       = 144
	mockFramesPerSecond = 10
)

// Synthesize implements Synthesizer
func (MockSynth) Synthesize(ctx context.Context, text string, voice VoiceConfig) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seconds := max(1, len(strings.Fields(text))/3)
	out := make([]byte, len(mockHeader), len(mockHeader)+seconds*mockFramesPerSecond*mockFrameSize)
	copy(out, mockHeader)
	return append(out, make([]byte, seconds*mockFramesPerSecond*mockFrameSize)...), nil
}
