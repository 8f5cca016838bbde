package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// commandRunner runs an external command and returns its combined output
type commandRunner interface {
	CombinedOutput(ctx context.Context, name string, args []string) ([]byte, error)
}

type osCommandRunner struct{}

func (osCommandRunner) CombinedOutput(ctx context.Context, name string, args []string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// FFmpeg is a MergeTool backed by the ffmpeg concat demuxer. Streams are
// copied, never re-encoded.
type FFmpeg struct {
	path string
	cmd  commandRunner
}

// FFmpegOption configures an FFmpeg tool
type FFmpegOption func(*FFmpeg)

// WithCommandRunner replaces the process runner, mainly for tests
func WithCommandRunner(r commandRunner) FFmpegOption {
	return func(f *FFmpeg) {
		f.cmd = r
	}
}

// NewFFmpeg creates a merge tool for the given binary. An empty path means
// "ffmpeg" on PATH.
func NewFFmpeg(path string, opts ...FFmpegOption) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	f := &FFmpeg{path: path, cmd: osCommandRunner{}}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Available runs "ffmpeg -version". Any failure means unavailable.
func (f *FFmpeg) Available(ctx context.Context) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	_, err := f.cmd.CombinedOutput(ctx, f.path, []string{"-version"})
	return err == nil
}

// Concat writes every input to a private temp directory, runs the concat
// demuxer over them and returns the joined file. The directory is removed
// on every path.
func (f *FFmpeg) Concat(ctx context.Context, inputs [][]byte, ext string) ([]byte, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInput
	}
	if ext == "" {
		ext = FormatMP3
	}

	dir, err := os.MkdirTemp("", "merge-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	var list strings.Builder
	for i, data := range inputs {
		name := filepath.Join(dir, fmt.Sprintf("segment_%04d.%s", i, ext))
		if err := os.WriteFile(name, data, 0o600); err != nil {
			return nil, fmt.Errorf("failed to write segment %d: %w", i, err)
		}
		fmt.Fprintf(&list, "file '%s'\n", escapeConcatPath(name))
	}

	listPath := filepath.Join(dir, "list.txt")
	if err := os.WriteFile(listPath, []byte(list.String()), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write concat list: %w", err)
	}

	outPath := filepath.Join(dir, "merged."+ext)
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "concat", "-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-y", outPath,
	}
	if output, err := f.cmd.CombinedOutput(ctx, f.path, args); err != nil {
		return nil, fmt.Errorf("ffmpeg concat: %w: %s", err, strings.TrimSpace(string(output)))
	}

	merged, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read merged output: %w", err)
	}
	return merged, nil
}

// escapeConcatPath quotes a path for a single-quoted concat list entry
func escapeConcatPath(p string) string {
	return strings.ReplaceAll(p, "'", `'\''`)
}
