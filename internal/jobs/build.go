package jobs

import (
	"fmt"
	"time"

	"github.com/lexiqai/doc-audio-service/internal/audio"
	"github.com/lexiqai/doc-audio-service/internal/config"
	"github.com/lexiqai/doc-audio-service/internal/extract"
	"github.com/lexiqai/doc-audio-service/internal/resilience"
	"github.com/lexiqai/doc-audio-service/internal/text"
	"github.com/lexiqai/doc-audio-service/internal/tts"
)

// Pipeline is the conversion stack built from configuration
type Pipeline struct {
	Converter *Converter
	FFmpeg    *audio.FFmpeg
	Provider  string // synthesis provider in use
}

// NewPipeline assembles extraction, segmentation, synthesis and merging
// from cfg
func NewPipeline(cfg *config.Config) (*Pipeline, error) {
	segmenter, err := text.NewSegmenter(cfg.MaxChunkSize, cfg.MinChunkSize)
	if err != nil {
		return nil, err
	}

	backends := []extract.Backend{extract.PDFLibrary{}}
	if cfg.PDFToTextPath != "" {
		pdftotext, err := extract.NewPDFToText(cfg.PDFToTextPath)
		if err != nil {
			return nil, err
		}
		backends = append(backends, pdftotext)
	}

	synth, provider, err := tts.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("create synthesizer: %w", err)
	}

	ffmpeg := audio.NewFFmpeg(cfg.FFmpegPath)

	var throttle *resilience.Throttle
	if cfg.TTSRequestDelayMs > 0 {
		throttle = resilience.NewThrottle(time.Duration(cfg.TTSRequestDelayMs) * time.Millisecond)
	}

	return &Pipeline{
		Converter: &Converter{
			Extractor:         extract.NewService(backends...),
			Segmenter:         segmenter,
			Synthesizer:       synth,
			Assembler:         audio.NewAssembler(ffmpeg),
			Throttle:          throttle,
			PreferFormatAware: cfg.PreferFormatAware,
		},
		FFmpeg:   ffmpeg,
		Provider: provider,
	}, nil
}

// DefaultVoice returns the configured voice settings, clamped
func DefaultVoice(cfg *config.Config) tts.VoiceConfig {
	return tts.VoiceConfig{
		VoiceID: cfg.DefaultVoice,
		Speed:   cfg.DefaultSpeed,
		Volume:  cfg.DefaultVolume,
		Pitch:   cfg.DefaultPitch,
	}.Clamp()
}
