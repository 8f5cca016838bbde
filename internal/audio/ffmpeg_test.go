package audio

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
)

// concatRunner emulates the ffmpeg concat demuxer by joining the listed files
type concatRunner struct {
	fail     bool
	lastArgs []string
	listDir  string
}

func (r *concatRunner) CombinedOutput(ctx context.Context, name string, args []string) ([]byte, error) {
	r.lastArgs = args
	if r.fail {
		return []byte("Invalid data found when processing input"), errors.New("exit status 1")
	}
	if len(args) == 1 && args[0] == "-version" {
		return []byte("ffmpeg version 6.1"), nil
	}

	var listPath, outPath string
	for i, a := range args {
		if a == "-i" {
			listPath = args[i+1]
		}
	}
	outPath = args[len(args)-1]

	f, err := os.Open(listPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var merged bytes.Buffer
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		p := strings.TrimSuffix(strings.TrimPrefix(sc.Text(), "file '"), "'")
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		merged.Write(data)
	}
	r.listDir = listPath[:strings.LastIndex(listPath, string(os.PathSeparator))]
	return nil, os.WriteFile(outPath, merged.Bytes(), 0o600)
}

func TestFFmpeg_Available(t *testing.T) {
	if !NewFFmpeg("", WithCommandRunner(&concatRunner{})).Available(context.Background()) {
		t.Error("Expected tool to be available")
	}
	if NewFFmpeg("", WithCommandRunner(&concatRunner{fail: true})).Available(context.Background()) {
		t.Error("Expected tool to be unavailable")
	}
}

func TestFFmpeg_AvailableMissingBinary(t *testing.T) {
	tool := NewFFmpeg("/nonexistent/ffmpeg-binary")
	if tool.Available(context.Background()) {
		t.Error("Expected missing binary to be unavailable")
	}
}

func TestFFmpeg_Concat(t *testing.T) {
	runner := &concatRunner{}
	tool := NewFFmpeg("ffmpeg", WithCommandRunner(runner))

	out, err := tool.Concat(context.Background(), [][]byte{[]byte("abc"), []byte("def")}, FormatMP3)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if string(out) != "abcdef" {
		t.Errorf("Expected 'abcdef', got %q", out)
	}

	joined := strings.Join(runner.lastArgs, " ")
	if !strings.Contains(joined, "-c copy") {
		t.Errorf("Expected stream copy, got args %q", joined)
	}
	if !strings.Contains(joined, "-f concat") {
		t.Errorf("Expected concat demuxer, got args %q", joined)
	}
	if _, err := os.Stat(runner.listDir); !os.IsNotExist(err) {
		t.Errorf("Expected temp dir %s to be removed", runner.listDir)
	}
}

func TestFFmpeg_ConcatFailure(t *testing.T) {
	tool := NewFFmpeg("ffmpeg", WithCommandRunner(&concatRunner{fail: true}))

	_, err := tool.Concat(context.Background(), [][]byte{[]byte("a"), []byte("b")}, FormatMP3)
	if err == nil {
		t.Fatal("Expected error")
	}
	if !strings.Contains(err.Error(), "Invalid data") {
		t.Errorf("Expected ffmpeg output in error, got %v", err)
	}
}

func TestEscapeConcatPath(t *testing.T) {
	got := escapeConcatPath("/tmp/it's here.mp3")
	want := `/tmp/it'\''s here.mp3`
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}
