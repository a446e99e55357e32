// Package extract pulls plain text out of uploaded files for indexing.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

var (
	// ErrNoText is returned when extraction yields no selectable text,
	// usually a scanned image rendered as PDF.
	ErrNoText = errors.New("no selectable text found in file")
)

// CommandRunner executes an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// PDFExtractor extracts text from PDF files by shelling out to pdftotext.
type PDFExtractor struct {
	runner CommandRunner
}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{runner: ExecRunner{}}
}

func NewPDFExtractorWithRunner(runner CommandRunner) *PDFExtractor {
	return &PDFExtractor{runner: runner}
}

// ExtractText converts the given PDF bytes to plain text. The file is staged
// in a temp directory because pdftotext wants a path.
func (e *PDFExtractor) ExtractText(ctx context.Context, data []byte) (string, error) {
	dir, err := os.MkdirTemp("", "norma-extract-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to stage file: %w", err)
	}

	out, err := e.runner.Run(ctx, "pdftotext", "-layout", path, "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}

	text := normalizeWhitespace(string(out))
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// normalizeWhitespace collapses runs of blank lines and trims trailing
// spaces so chunking sees clean paragraphs.
func normalizeWhitespace(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	var b strings.Builder
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
