package audio

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/lexiqai/doc-audio-service/internal/observability"
	"github.com/lexiqai/doc-audio-service/internal/resilience"
)

// HeaderSkipBytes is how much of every segment after the first the raw
// concatenation drops, assuming encoder headers occupy about that many
// leading bytes. Nothing validates the assumption: it holds for the MP3
// streams the synthesis backends return and may corrupt other encodings.
const HeaderSkipBytes = 128

// Merge strategies reported in MergedAudio.Strategy
const (
	StrategySingle      = "single"
	StrategyFormatAware = "format-aware"
	StrategyHeaderSkip  = "header-skip"
)

// AudioSegment is the synthesis result for one text segment. Empty Data
// records a failed synthesis.
type AudioSegment struct {
	Index int
	Data  []byte
}

// Failed reports whether synthesis produced nothing for this segment
func (s AudioSegment) Failed() bool {
	return len(s.Data) == 0
}

// MergedAudio is the final artifact of one job
type MergedAudio struct {
	Data     []byte
	Format   string
	Strategy string
	Segments int  // survivors that went into Data
	FellBack bool // format-aware merge was attempted and failed
}

// Size returns the artifact length in bytes
func (m *MergedAudio) Size() int {
	return len(m.Data)
}

// MergeTool concatenates encoded audio without re-encoding
type MergeTool interface {
	// Available reports whether the tool can be used. It never fails; any
	// probe error means unavailable.
	Available(ctx context.Context) bool

	// Concat joins inputs in order. ext names the container of the inputs.
	Concat(ctx context.Context, inputs [][]byte, ext string) ([]byte, error)
}

// Assembler merges per-segment audio into one artifact
type Assembler struct {
	tool   MergeTool
	logger zerolog.Logger
}

// NewAssembler creates an assembler. A nil tool limits merging to raw
// concatenation.
func NewAssembler(tool MergeTool) *Assembler {
	return &Assembler{
		tool:   tool,
		logger: observability.Component("assembler"),
	}
}

// Survivors drops failed segments and orders the rest by index
func Survivors(segments []AudioSegment) []AudioSegment {
	out := make([]AudioSegment, 0, len(segments))
	for _, s := range segments {
		if !s.Failed() {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Merge combines the surviving segments in ascending index order. A single
// survivor is returned byte for byte. Otherwise the format-aware tool is
// tried first when preferred and available; any tool failure falls back to
// header-skip concatenation. ErrNoInput is returned only when nothing
// survived.
func (a *Assembler) Merge(ctx context.Context, segments []AudioSegment, preferFormatAware bool) (*MergedAudio, error) {
	survivors := Survivors(segments)

	switch len(survivors) {
	case 0:
		return nil, fmt.Errorf("%w: %d of %d segments failed", ErrNoInput, len(segments), len(segments))
	case 1:
		return &MergedAudio{
			Data:     survivors[0].Data,
			Format:   DetectFormat(survivors[0].Data),
			Strategy: StrategySingle,
			Segments: 1,
		}, nil
	}

	inputs := make([][]byte, len(survivors))
	for i, s := range survivors {
		inputs[i] = s.Data
	}
	format := DetectFormat(inputs[0])

	var tiers []resilience.Tier[[]byte]
	var toolErr error
	if preferFormatAware && a.tool != nil {
		tiers = append(tiers, resilience.Tier[[]byte]{
			Name: StrategyFormatAware,
			Run: func(ctx context.Context) ([]byte, error) {
				if !a.tool.Available(ctx) {
					return nil, errToolUnavailable
				}
				out, err := a.tool.Concat(ctx, inputs, format)
				if err == nil && len(out) == 0 {
					err = errors.New("empty output")
				}
				if err != nil {
					toolErr = fmt.Errorf("%w: %v", ErrMergeTool, err)
					return nil, toolErr
				}
				return out, nil
			},
		})
	}
	tiers = append(tiers, resilience.Tier[[]byte]{
		Name: StrategyHeaderSkip,
		Run: func(ctx context.Context) ([]byte, error) {
			return ConcatHeaderSkip(inputs), nil
		},
	})

	data, strategy, err := resilience.Fallback(ctx, tiers...)
	if err != nil {
		return nil, err
	}

	fellBack := toolErr != nil
	if fellBack {
		a.logger.Warn().
			Err(toolErr).
			Int("segments", len(survivors)).
			Msg("Format-aware merge failed, used header-skip concatenation")
	} else if strategy == StrategyHeaderSkip && preferFormatAware && a.tool != nil {
		a.logger.Debug().Msg("Merge tool unavailable, used header-skip concatenation")
	}

	return &MergedAudio{
		Data:     data,
		Format:   format,
		Strategy: strategy,
		Segments: len(survivors),
		FellBack: fellBack,
	}, nil
}

// ConcatHeaderSkip writes the first input unchanged and every later input
// minus its first HeaderSkipBytes bytes. Inputs no longer than
// HeaderSkipBytes are written whole.
func ConcatHeaderSkip(inputs [][]byte) []byte {
	size := 0
	for _, in := range inputs {
		size += len(in)
	}

	out := make([]byte, 0, size)
	for i, in := range inputs {
		if i > 0 && len(in) > HeaderSkipBytes {
			in = in[HeaderSkipBytes:]
		}
		out = append(out, in...)
	}
	return out
}
