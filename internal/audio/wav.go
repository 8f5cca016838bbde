package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavHeaderSize = 44
	bitsPerSample = 16
	pcmFormat     = 1
)

// EncodeWAV wraps little-endian 16-bit PCM in a WAV container
func EncodeWAV(pcm []byte, sampleRate, channels int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio samples")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if channels <= 0 {
		channels = 1
	}
	if len(pcm)%(2*channels) != 0 {
		return nil, fmt.Errorf("PCM data length %d is not a whole number of 16-bit frames", len(pcm))
	}

	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
	}

	out := &writeSeeker{buf: make([]byte, 0, wavHeaderSize+len(pcm))}
	enc := wav.NewEncoder(out, sampleRate, bitsPerSample, channels, pcmFormat)
	err := enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: bitsPerSample,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write WAV samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize WAV header: %w", err)
	}
	return out.buf, nil
}

// WAVDuration reads the playback length from the fmt and data chunks
func WAVDuration(data []byte) (time.Duration, error) {
	if len(data) < wavHeaderSize {
		return 0, fmt.Errorf("WAV data too short: need at least %d bytes, got %d", wavHeaderSize, len(data))
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return 0, errors.New("not a WAV file")
	}
	if err := dec.FwdToPCM(); err != nil {
		return 0, fmt.Errorf("failed to locate WAV data: %w", err)
	}
	if dec.AvgBytesPerSec == 0 {
		return 0, errors.New("invalid byte rate")
	}

	seconds := float64(dec.PCMLen()) / float64(dec.AvgBytesPerSec)
	return time.Duration(seconds * float64(time.Second)), nil
}

// writeSeeker is an in-memory io.WriteSeeker; the WAV encoder seeks back
// to patch chunk sizes on Close
type writeSeeker struct {
	buf []byte
	pos int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	if end := w.pos + len(p); end > len(w.buf) {
		w.buf = append(w.buf, make([]byte, end-len(w.buf))...)
	}
	n := copy(w.buf[w.pos:], p)
	w.pos += n
	return n, nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(w.pos)
	case io.SeekEnd:
		base = int64(len(w.buf))
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	pos := base + offset
	if pos < 0 {
		return 0, errors.New("negative seek position")
	}
	w.pos = int(pos)
	return pos, nil
}
