package docconv

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// PdfToText converts PDFs using the pdftotext CLI tool. Image formats are
// not supported by this provider.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText converter. If binPath is empty,
// "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// ToMarkdown runs pdftotext -layout over the document bytes and returns
// stdout. The -layout flag preserves the tabular column alignment the
// loose-text parser depends on.
func (p *PdfToText) ToMarkdown(ctx context.Context, name string, data []byte, _ Options) (string, error) {
	if err := Validate(name, len(data)); err != nil {
		return "", err
	}
	if strings.ToLower(filepath.Ext(name)) != ".pdf" {
		return "", eris.Errorf("docconv: pdftotext provider only handles PDFs, got %s", name)
	}

	tmp, err := os.CreateTemp("", "market-report-*.pdf")
	if err != nil {
		return "", eris.Wrap(err, "docconv: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return "", eris.Wrap(err, "docconv: write temp file")
	}
	if err := tmp.Close(); err != nil {
		return "", eris.Wrap(err, "docconv: close temp file")
	}

	cmd := exec.CommandContext(ctx, p.binPath, "-layout", tmp.Name(), "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "docconv: pdftotext failed for %s: %s", name, stderr.String())
	}

	return stdout.String(), nil
}
