package jobs

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lexiqai/doc-audio-service/internal/audio"
	"github.com/lexiqai/doc-audio-service/internal/extract"
	"github.com/lexiqai/doc-audio-service/internal/observability"
	"github.com/lexiqai/doc-audio-service/internal/resilience"
	"github.com/lexiqai/doc-audio-service/internal/text"
	"github.com/lexiqai/doc-audio-service/internal/tts"
)

// ProgressFunc receives milestone updates while a conversion runs
type ProgressFunc func(progress int, message string)

// Result is the outcome of one successful conversion
type Result struct {
	Audio          *audio.MergedAudio
	SegmentsTotal  int
	SegmentsFailed int
}

// Converter runs the document to audio pipeline: extract, segment,
// synthesize each segment in order, merge.
type Converter struct {
	Extractor         extract.Extractor
	Segmenter         *text.Segmenter
	Synthesizer       tts.Synthesizer
	Assembler         *audio.Assembler
	Throttle          *resilience.Throttle // spacing between synthesis calls, may be nil
	PreferFormatAware bool
}

// Convert produces the merged audio for the document at docPath. A failed
// segment is logged and skipped; the conversion fails only when extraction
// or segmentation fails or no segment survives synthesis. The logger is
// taken from ctx.
func (c *Converter) Convert(ctx context.Context, docPath string, voice tts.VoiceConfig, metrics *observability.JobMetrics, report ProgressFunc) (result *Result, err error) {
	if report == nil {
		report = func(int, string) {}
	}
	logger := zerolog.Ctx(ctx)

	ctx, span := observability.StartSpan(ctx, "convert", attribute.String("voice_id", voice.VoiceID))
	defer func() { observability.EndSpan(span, err) }()

	report(ProgressExtracting, "Extracting text from document...")
	raw, err := c.extract(ctx, docPath)
	if err != nil {
		metrics.RecordError("extraction", "converter")
		return nil, err
	}

	report(ProgressSegmenting, "Processing and chunking text...")
	segments, err := c.Segmenter.Segment(raw)
	if err != nil {
		metrics.RecordError("segmentation", "converter")
		return nil, err
	}
	metrics.RecordSegments(len(segments))
	span.SetAttributes(attribute.Int("segments", len(segments)))
	logger.Info().
		Int("segments", len(segments)).
		Int("chars", len(raw)).
		Msg("Text segmented")

	report(ProgressSynthesizing, "Converting text to speech...")
	results := make([]audio.AudioSegment, len(segments))
	failed := 0
	progressSpan := ProgressSynthEnd - ProgressSynthesizing

	for i, seg := range segments {
		if c.Throttle != nil {
			if err := c.Throttle.Wait(ctx); err != nil {
				return nil, err
			}
		}

		metrics.RecordSynthesisStart()
		data, err := c.synthesize(ctx, seg, voice)
		metrics.RecordSynthesisEnd(err == nil, len(data))

		results[i] = audio.AudioSegment{Index: seg.Index}
		if err != nil {
			failed++
			metrics.RecordError("synthesis", "converter")
			logger.Warn().
				Err(err).
				Int("segment", seg.Index).
				Int("chars", seg.Len()).
				Msg("Segment synthesis failed, skipping")
		} else {
			results[i].Data = data
		}

		report(ProgressSynthesizing+(i+1)*progressSpan/len(segments),
			fmt.Sprintf("Converting chunk %d/%d...", i+1, len(segments)))
	}

	report(ProgressMerging, "Merging audio files...")
	merged, err := c.merge(ctx, results)
	if err != nil {
		metrics.RecordError("merge", "converter")
		return nil, err
	}
	metrics.RecordMerge(merged.Strategy, merged.Size(), merged.FellBack)
	span.SetAttributes(
		attribute.Int("segments_failed", failed),
		attribute.String("merge_strategy", merged.Strategy),
	)

	logger.Info().
		Str("strategy", merged.Strategy).
		Int("bytes", merged.Size()).
		Str("size", humanize.Bytes(uint64(merged.Size()))).
		Int("segments_failed", failed).
		Msg("Audio merged")

	return &Result{
		Audio:          merged,
		SegmentsTotal:  len(segments),
		SegmentsFailed: failed,
	}, nil
}

func (c *Converter) extract(ctx context.Context, docPath string) (raw string, err error) {
	ctx, span := observability.StartSpan(ctx, "extract")
	defer func() { observability.EndSpan(span, err) }()
	return c.Extractor.Extract(ctx, docPath)
}

func (c *Converter) synthesize(ctx context.Context, seg text.Segment, voice tts.VoiceConfig) (data []byte, err error) {
	ctx, span := observability.StartSpan(ctx, "synthesize",
		attribute.Int("segment", seg.Index),
		attribute.Int("chars", seg.Len()),
	)
	defer func() { observability.EndSpan(span, err) }()
	return c.Synthesizer.Synthesize(ctx, seg.Text, voice)
}

func (c *Converter) merge(ctx context.Context, segments []audio.AudioSegment) (merged *audio.MergedAudio, err error) {
	ctx, span := observability.StartSpan(ctx, "merge", attribute.Int("segments", len(segments)))
	defer func() { observability.EndSpan(span, err) }()
	return c.Assembler.Merge(ctx, segments, c.PreferFormatAware)
}
