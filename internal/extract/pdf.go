package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFLibrary reads the text layer in-process
type PDFLibrary struct{}

// Name implements Backend
func (PDFLibrary) Name() string { return "pdf-library" }

// Extract joins the plain text of every page with a paragraph break
func (PDFLibrary) Extract(ctx context.Context, path string) (text string, err error) {
	// The parser panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		if content = strings.TrimSpace(content); content != "" {
			pages = append(pages, content)
		}
	}

	return strings.Join(pages, "\n\n"), nil
}
