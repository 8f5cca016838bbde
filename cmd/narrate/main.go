// Command narrate converts a single PDF or TXT document to audio without
// running the HTTP service. Provider settings come from the same
// environment variables as the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/lexiqai/doc-audio-service/internal/config"
	"github.com/lexiqai/doc-audio-service/internal/jobs"
	"github.com/lexiqai/doc-audio-service/internal/observability"
	"github.com/lexiqai/doc-audio-service/internal/tts"
)

func main() {
	var (
		output  = flag.String("o", "", "output file (default: input name with the audio extension)")
		voiceID = flag.String("voice", "", "voice ID (default: DEFAULT_VOICE)")
		speed   = flag.Float64("speed", 0, "speech speed 0.5-2.0 (default: DEFAULT_SPEED)")
		volume  = flag.Float64("volume", 0, "volume 0.1-2.0 (default: DEFAULT_VOLUME)")
		pitch   = flag.Int("pitch", 0, "pitch -12..12 (default: DEFAULT_PITCH)")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: narrate [flags] <document.pdf|document.txt>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger(cfg.LogLevel, true)

	voice := jobs.DefaultVoice(cfg)
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "voice":
			voice.VoiceID = *voiceID
		case "speed":
			voice.Speed = *speed
		case "volume":
			voice.Volume = *volume
		case "pitch":
			voice.Pitch = *pitch
		}
	})

	if err := run(cfg, flag.Arg(0), *output, voice.Clamp()); err != nil {
		fmt.Fprintf(os.Stderr, "narrate: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, input, output string, voice tts.VoiceConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline, err := jobs.NewPipeline(cfg)
	if err != nil {
		return err
	}

	logger := observability.Component("narrate").With().Str("input", input).Logger()
	ctx = logger.WithContext(ctx)

	metrics := observability.NewJobMetrics(filepath.Base(input))
	metrics.RecordJobStart()
	start := time.Now()

	result, err := pipeline.Converter.Convert(ctx, input, voice, metrics, func(progress int, message string) {
		fmt.Fprintf(os.Stderr, "[%3d%%] %s\n", progress, message)
	})
	metrics.RecordJobEnd(err == nil)
	if err != nil {
		return err
	}

	merged := result.Audio
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + "." + merged.Format
	}
	if err := os.WriteFile(output, merged.Data, 0o644); err != nil {
		return fmt.Errorf("write audio: %w", err)
	}

	fmt.Printf("%s: %s %s, %d/%d segments, %s merge, took %s\n",
		output,
		humanize.Bytes(uint64(merged.Size())),
		merged.Format,
		result.SegmentsTotal-result.SegmentsFailed,
		result.SegmentsTotal,
		merged.Strategy,
		time.Since(start).Round(time.Millisecond),
	)
	return nil
}
