package tts

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/lexiqai/doc-audio-service/internal/audio"
)

// ExecSynth runs a local synthesizer process per segment. The process gets
// one JSON request on stdin and answers with JSON lines carrying base64
// 16-bit PCM, which is wrapped as WAV.
type ExecSynth struct {
	cmd        []string
	sampleRate int
	channels   int
}

type execRequest struct {
	Text       string  `json:"text"`
	Voice      string  `json:"voice"`
	Speed      float64 `json:"speed"`
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
}

type execResponse struct {
	PCMBase64 string `json:"pcm_base64"`
	Final     bool   `json:"final"`
}

// NewExecSynth parses command with shell quoting rules
func NewExecSynth(command string, sampleRate, channels int) (*ExecSynth, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse tts command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("tts command empty")
	}
	if channels <= 0 {
		channels = 1
	}
	return &ExecSynth{cmd: args, sampleRate: sampleRate, channels: channels}, nil
}

// Synthesize implements Synthesizer
func (e *ExecSynth) Synthesize(ctx context.Context, text string, voice VoiceConfig) ([]byte, error) {
	voice = voice.Clamp()
	data, err := json.Marshal(execRequest{
		Text:       text,
		Voice:      voice.VoiceID,
		Speed:      voice.Speed,
		SampleRate: e.sampleRate,
		Channels:   e.channels,
	})
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, e.cmd[0], e.cmd[1:]...)
	cmd.Stdin = bytes.NewReader(data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", e.cmd[0], err)
	}

	var pcm bytes.Buffer
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var resp execResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			cmd.Wait()
			return nil, fmt.Errorf("decode synthesizer output: %w", err)
		}
		chunk, err := base64.StdEncoding.DecodeString(resp.PCMBase64)
		if err != nil {
			cmd.Wait()
			return nil, fmt.Errorf("decode pcm: %w", err)
		}
		pcm.Write(chunk)
	}
	scanErr := scanner.Err()

	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", e.cmd[0], err, strings.TrimSpace(stderr.String()))
	}
	if scanErr != nil {
		return nil, scanErr
	}

	return audio.EncodeWAV(pcm.Bytes(), e.sampleRate, e.channels)
}
