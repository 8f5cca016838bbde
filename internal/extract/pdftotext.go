package extract

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"
)

// commandRunner runs a command and returns its standard output
type commandRunner interface {
	Output(ctx context.Context, name string, args []string) ([]byte, error)
}

type osCommandRunner struct{}

func (osCommandRunner) Output(ctx context.Context, name string, args []string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// PDFToText shells out to poppler's pdftotext
type PDFToText struct {
	cmd    []string
	runner commandRunner
}

// NewPDFToText parses command, e.g. "pdftotext -enc UTF-8", with shell quoting rules
func NewPDFToText(command string) (*PDFToText, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse pdftotext command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("pdftotext command empty")
	}
	return &PDFToText{cmd: args, runner: osCommandRunner{}}, nil
}

// Name implements Backend
func (p *PDFToText) Name() string { return "pdftotext" }

// Extract writes the document text to stdout and returns it. Form feeds
// between pages become paragraph breaks.
func (p *PDFToText) Extract(ctx context.Context, path string) (string, error) {
	args := append(append([]string{}, p.cmd[1:]...), path, "-")
	out, err := p.runner.Output(ctx, p.cmd[0], args)
	if err != nil {
		return "", fmt.Errorf("%s: %w", p.cmd[0], err)
	}
	return strings.ReplaceAll(string(out), "\f", "\n\n"), nil
}
