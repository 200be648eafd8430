// Package reader turns incoming order documents into plain text for the
// pipeline. Plain-text files are read directly; PDFs go through the
// pdftotext CLI.
package reader

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Reader resolves a document path to its text content.
type Reader struct {
	pdfToTextPath string
}

// New creates a Reader. If pdfToTextPath is empty, "pdftotext" is looked
// up on PATH.
func New(pdfToTextPath string) *Reader {
	if pdfToTextPath == "" {
		pdfToTextPath = "pdftotext"
	}
	return &Reader{pdfToTextPath: pdfToTextPath}
}

// Read returns the text of the document at path. The result is always
// trimmed; an empty document is an error because no pipeline stage can
// do anything with it.
func (r *Reader) Read(ctx context.Context, path string) (string, error) {
	var text string

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		extracted, err := r.extractPDF(ctx, path)
		if err != nil {
			return "", err
		}
		text = extracted
	default:
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", eris.Wrapf(err, "reader: read %s", path)
		}
		text = string(raw)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", eris.Errorf("reader: document %s is empty", path)
	}
	return text, nil
}

// extractPDF runs pdftotext -layout and returns stdout.
func (r *Reader) extractPDF(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, r.pdfToTextPath, "-layout", path, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "reader: pdftotext failed for %s: %s", path, stderr.String())
	}
	return stdout.String(), nil
}
