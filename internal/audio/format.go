package audio

import (
	"bytes"
	"time"
)

// Container formats recognised by DetectFormat
const (
	FormatMP3  = "mp3"
	FormatWAV  = "wav"
	FormatOGG  = "ogg"
	FormatFLAC = "flac"
)

// assumedBitrate is the byte rate used for duration estimates (128 kbps)
const assumedBitrate = 128 * 1000 / 8

// DetectFormat sniffs the container from the leading bytes. Unrecognised
// data is reported as MP3, which is what the synthesis backends produce by
// default.
func DetectFormat(data []byte) string {
	switch {
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return FormatWAV
	case bytes.HasPrefix(data, []byte("OggS")):
		return FormatOGG
	case bytes.HasPrefix(data, []byte("fLaC")):
		return FormatFLAC
	case bytes.HasPrefix(data, []byte("ID3")):
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		// MPEG frame sync
		return FormatMP3
	}
	return FormatMP3
}

// ContentType maps a format to its MIME type
func ContentType(format string) string {
	switch format {
	case FormatWAV:
		return "audio/wav"
	case FormatOGG:
		return "audio/ogg"
	case FormatFLAC:
		return "audio/flac"
	default:
		return "audio/mpeg"
	}
}

// EstimateDuration approximates playback length from the encoded size
func EstimateDuration(size int) time.Duration {
	if size <= 0 {
		return 0
	}
	return time.Duration(float64(size) / assumedBitrate * float64(time.Second))
}
