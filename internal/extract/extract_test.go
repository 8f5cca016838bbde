package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeBackend struct {
	name  string
	text  string
	err   error
	calls int
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Extract(ctx context.Context, path string) (string, error) {
	f.calls++
	return f.text, f.err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestService_PDFTiers(t *testing.T) {
	tests := []struct {
		name        string
		primary     *fakeBackend
		secondary   *fakeBackend
		wantText    string
		wantErr     bool
		wantSecCall bool
	}{
		{
			name:      "primary succeeds",
			primary:   &fakeBackend{name: "lib", text: "from library"},
			secondary: &fakeBackend{name: "cmd", text: "from command"},
			wantText:  "from library",
		},
		{
			name:        "primary fails",
			primary:     &fakeBackend{name: "lib", err: errors.New("malformed xref")},
			secondary:   &fakeBackend{name: "cmd", text: "from command"},
			wantText:    "from command",
			wantSecCall: true,
		},
		{
			name:        "primary empty",
			primary:     &fakeBackend{name: "lib", text: "  \n "},
			secondary:   &fakeBackend{name: "cmd", text: "from command"},
			wantText:    "from command",
			wantSecCall: true,
		},
		{
			name:        "all fail",
			primary:     &fakeBackend{name: "lib", text: ""},
			secondary:   &fakeBackend{name: "cmd", err: errors.New("not installed")},
			wantErr:     true,
			wantSecCall: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.primary, tt.secondary)
			text, err := svc.Extract(context.Background(), "/docs/book.PDF")

			if tt.wantErr {
				if !errors.Is(err, ErrExtraction) {
					t.Errorf("Expected ErrExtraction, got %v", err)
				}
			} else if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if text != tt.wantText {
				t.Errorf("Expected %q, got %q", tt.wantText, text)
			}
			if (tt.secondary.calls > 0) != tt.wantSecCall {
				t.Errorf("Expected secondary called %v, got %d calls", tt.wantSecCall, tt.secondary.calls)
			}
		})
	}
}

func TestService_PlainText(t *testing.T) {
	path := writeFile(t, "notes.txt", "Hello there.\n\nSecond paragraph.")

	text, err := NewService().Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.HasPrefix(text, "Hello there.") {
		t.Errorf("Expected file content, got %q", text)
	}
}

func TestService_EmptyPlainText(t *testing.T) {
	path := writeFile(t, "empty.txt", " \n\t")

	_, err := NewService().Extract(context.Background(), path)
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("Expected ErrExtraction, got %v", err)
	}
}

func TestService_Unsupported(t *testing.T) {
	_, err := NewService().Extract(context.Background(), "/docs/slides.pptx")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestSupported(t *testing.T) {
	tests := map[string]bool{
		"book.pdf":   true,
		"BOOK.PDF":   true,
		"notes.txt":  true,
		"image.png":  false,
		"no-ext":     false,
		"archive.gz": false,
	}
	for name, want := range tests {
		if got := Supported(name); got != want {
			t.Errorf("Supported(%q): expected %v, got %v", name, want, got)
		}
	}
}

func TestPDFLibrary_InvalidFile(t *testing.T) {
	path := writeFile(t, "broken.pdf", "this is not a pdf")

	if _, err := (PDFLibrary{}).Extract(context.Background(), path); err == nil {
		t.Error("Expected error for invalid PDF")
	}
}
