// Package docconv converts report documents (PDF, JPEG, PNG, WebP) into
// markdown text via an external OCR service or a local pdftotext binary.
package docconv

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// MaxFileSize caps accepted uploads at 10MB.
const MaxFileSize = 10 << 20

// Options tunes a single conversion.
type Options struct {
	// HighFidelity requests the premium OCR mode. Market report sheets are
	// dense tables; the cheap mode drops columns.
	HighFidelity bool
}

// Converter turns raw document bytes into markdown. Implementations may
// return an empty string when the service extracts nothing.
type Converter interface {
	ToMarkdown(ctx context.Context, name string, data []byte, opts Options) (string, error)
}

// Config selects and configures a conversion provider.
type Config struct {
	Provider      string  `yaml:"provider" mapstructure:"provider"`
	APIKey        string  `yaml:"api_key" mapstructure:"api_key"`
	Model         string  `yaml:"model" mapstructure:"model"`
	PdfToTextPath string  `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
}

// New creates a Converter based on config.
func New(cfg Config) (Converter, error) {
	switch cfg.Provider {
	case "local", "":
		return NewPdfToText(cfg.PdfToTextPath), nil
	case "mistral":
		if cfg.APIKey == "" {
			return nil, eris.New("docconv: mistral provider requires api_key")
		}
		return NewMistralOCR(cfg.APIKey, cfg.Model, cfg.RatePerSecond), nil
	default:
		return nil, eris.Errorf("docconv: unknown provider %q", cfg.Provider)
	}
}

// mimeTypes maps accepted file extensions to MIME types.
var mimeTypes = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// MIMEType returns the MIME type for a supported file name, or an error for
// unsupported extensions.
func MIMEType(name string) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	mt, ok := mimeTypes[ext]
	if !ok {
		return "", eris.Errorf("docconv: unsupported file type %q", ext)
	}
	return mt, nil
}

// Validate checks a file's type and size before conversion.
func Validate(name string, size int) error {
	if _, err := MIMEType(name); err != nil {
		return err
	}
	if size > MaxFileSize {
		return eris.Errorf("docconv: %s exceeds %dMB limit", name, MaxFileSize>>20)
	}
	return nil
}
