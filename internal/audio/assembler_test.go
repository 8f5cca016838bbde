package audio

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

type fakeTool struct {
	available bool
	err       error
	calls     int
	gotExt    string
}

func (f *fakeTool) Available(ctx context.Context) bool { return f.available }

func (f *fakeTool) Concat(ctx context.Context, inputs [][]byte, ext string) ([]byte, error) {
	f.calls++
	f.gotExt = ext
	if f.err != nil {
		return nil, f.err
	}
	return bytes.Join(inputs, nil), nil
}

// fill returns n bytes of value b, prefixed by an MPEG frame sync
func fill(b byte, n int) []byte {
	data := bytes.Repeat([]byte{b}, n)
	if n >= 2 {
		data[0], data[1] = 0xFF, 0xFB
	}
	return data
}

func TestMerge_NoSurvivors(t *testing.T) {
	tests := []struct {
		name     string
		segments []AudioSegment
	}{
		{"empty", nil},
		{"all failed", []AudioSegment{{Index: 0}, {Index: 1, Data: []byte{}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAssembler(&fakeTool{available: true}).Merge(context.Background(), tt.segments, true)
			if !errors.Is(err, ErrNoInput) {
				t.Errorf("Expected ErrNoInput, got %v", err)
			}
		})
	}
}

func TestMerge_SingleSurvivorUnchanged(t *testing.T) {
	tool := &fakeTool{available: true}
	only := fill(7, 300)

	merged, err := NewAssembler(tool).Merge(context.Background(), []AudioSegment{
		{Index: 0},
		{Index: 1, Data: only},
		{Index: 2},
	}, true)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !bytes.Equal(merged.Data, only) {
		t.Error("Expected single survivor bytes unchanged")
	}
	if merged.Strategy != StrategySingle {
		t.Errorf("Expected strategy %s, got %s", StrategySingle, merged.Strategy)
	}
	if tool.calls != 0 {
		t.Errorf("Expected merge tool not to be called, got %d calls", tool.calls)
	}
}

func TestMerge_FormatAware(t *testing.T) {
	tool := &fakeTool{available: true}
	a, b := fill(1, 200), fill(2, 200)

	merged, err := NewAssembler(tool).Merge(context.Background(), []AudioSegment{
		{Index: 1, Data: b},
		{Index: 0, Data: a},
	}, true)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if merged.Strategy != StrategyFormatAware {
		t.Errorf("Expected strategy %s, got %s", StrategyFormatAware, merged.Strategy)
	}
	if !bytes.Equal(merged.Data, append(append([]byte{}, a...), b...)) {
		t.Error("Expected segments joined in index order")
	}
	if tool.gotExt != FormatMP3 {
		t.Errorf("Expected ext %s, got %s", FormatMP3, tool.gotExt)
	}
	if merged.FellBack {
		t.Error("Expected no fallback")
	}
}

func TestMerge_FallsBackToHeaderSkip(t *testing.T) {
	seg0, seg2 := fill(1, 500), fill(3, 400)
	segments := []AudioSegment{
		{Index: 0, Data: seg0},
		{Index: 1},
		{Index: 2, Data: seg2},
	}
	want := append(append([]byte{}, seg0...), seg2[HeaderSkipBytes:]...)

	tests := []struct {
		name         string
		tool         MergeTool
		prefer       bool
		wantFellBack bool
	}{
		{"tool unavailable", &fakeTool{available: false}, true, false},
		{"tool fails", &fakeTool{available: true, err: errors.New("exit status 1")}, true, true},
		{"no tool", nil, true, false},
		{"format-aware not preferred", &fakeTool{available: true}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged, err := NewAssembler(tt.tool).Merge(context.Background(), segments, tt.prefer)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if merged.Strategy != StrategyHeaderSkip {
				t.Errorf("Expected strategy %s, got %s", StrategyHeaderSkip, merged.Strategy)
			}
			if !bytes.Equal(merged.Data, want) {
				t.Errorf("Expected %d bytes, got %d", len(want), len(merged.Data))
			}
			if merged.Segments != 2 {
				t.Errorf("Expected 2 merged segments, got %d", merged.Segments)
			}
			if merged.FellBack != tt.wantFellBack {
				t.Errorf("Expected FellBack %v, got %v", tt.wantFellBack, merged.FellBack)
			}
		})
	}
}

func TestMerge_OutputSmallerThanAllSegments(t *testing.T) {
	sizes := []int{600, 700, 800, 900}
	var segments []AudioSegment
	total := 0
	for i, n := range sizes {
		total += n
		data := fill(byte(i+1), n)
		if i == 1 {
			data = nil
		}
		segments = append(segments, AudioSegment{Index: i, Data: data})
	}

	merged, err := NewAssembler(nil).Merge(context.Background(), segments, true)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if merged.Size() == 0 || merged.Size() >= total {
		t.Errorf("Expected 0 < size < %d, got %d", total, merged.Size())
	}
	if merged.Size() < sizes[0] {
		t.Errorf("Expected at least the first survivor's %d bytes, got %d", sizes[0], merged.Size())
	}
}

func TestConcatHeaderSkip(t *testing.T) {
	tests := []struct {
		name   string
		inputs [][]byte
		want   int
	}{
		{"first kept whole", [][]byte{make([]byte, 100)}, 100},
		{"later trimmed", [][]byte{make([]byte, 200), make([]byte, 300)}, 200 + 300 - HeaderSkipBytes},
		{"short later kept whole", [][]byte{make([]byte, 200), make([]byte, HeaderSkipBytes)}, 200 + HeaderSkipBytes},
		{"one byte over", [][]byte{make([]byte, 10), make([]byte, HeaderSkipBytes+1)}, 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConcatHeaderSkip(tt.inputs)
			if len(got) != tt.want {
				t.Errorf("Expected %d bytes, got %d", tt.want, len(got))
			}
		})
	}
}

func TestSurvivors_SortsByIndex(t *testing.T) {
	got := Survivors([]AudioSegment{
		{Index: 3, Data: []byte{3}},
		{Index: 0, Data: []byte{0}},
		{Index: 2},
		{Index: 1, Data: []byte{1}},
	})

	if len(got) != 3 {
		t.Fatalf("Expected 3 survivors, got %d", len(got))
	}
	for i, want := range []int{0, 1, 3} {
		if got[i].Index != want {
			t.Errorf("Position %d: expected index %d, got %d", i, want, got[i].Index)
		}
	}
}
