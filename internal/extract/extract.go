// Package extract turns uploaded documents into raw text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lexiqai/doc-audio-service/internal/observability"
	"github.com/lexiqai/doc-audio-service/internal/resilience"
)

var (
	// ErrExtraction is returned when no backend yields non-empty text
	ErrExtraction = errors.New("text extraction failed")

	// ErrUnsupportedFormat is returned for documents other than PDF or plain text
	ErrUnsupportedFormat = errors.New("unsupported document format")

	errEmptyText = errors.New("no text extracted")
)

// Extractor produces the raw text of a document
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Backend is one PDF extraction strategy
type Backend interface {
	Name() string
	Extract(ctx context.Context, path string) (string, error)
}

// Supported reports whether the file name has an extension Service accepts
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".txt":
		return true
	}
	return false
}

// Service routes documents by extension. PDFs go through the backends in
// priority order until one yields text.
type Service struct {
	backends []Backend
	logger   zerolog.Logger
}

// NewService creates an extractor trying backends in the given order
func NewService(backends ...Backend) *Service {
	return &Service{
		backends: backends,
		logger:   observability.Component("extract"),
	}
}

// Extract returns the document text, or an error wrapping ErrExtraction or
// ErrUnsupportedFormat
func (s *Service) Extract(ctx context.Context, path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return extractPlainText(path)
	case ".pdf":
		return s.extractPDF(ctx, path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func (s *Service) extractPDF(ctx context.Context, path string) (string, error) {
	tiers := make([]resilience.Tier[string], 0, len(s.backends))
	for _, b := range s.backends {
		b := b
		tiers = append(tiers, resilience.Tier[string]{
			Name: b.Name(),
			Run: func(ctx context.Context) (string, error) {
				text, err := b.Extract(ctx, path)
				if err != nil {
					s.logger.Warn().Err(err).Str("backend", b.Name()).Msg("PDF backend failed")
					return "", err
				}
				if strings.TrimSpace(text) == "" {
					s.logger.Warn().Str("backend", b.Name()).Msg("PDF backend returned no text")
					return "", errEmptyText
				}
				return text, nil
			},
		})
	}

	text, backend, err := resilience.Fallback(ctx, tiers...)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrExtraction, filepath.Base(path), err)
	}

	s.logger.Info().
		Str("backend", backend).
		Int("chars", len(text)).
		Msg("Extracted PDF text")
	return text, nil
}

func extractPlainText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrExtraction, filepath.Base(path))
	}
	return string(data), nil
}
