// Package dto holds the records handlers return and the writers that render them.
package dto

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/trusted-programming/tree-grepper/internal/domain/errors/domain"
	"github.com/trusted-programming/tree-grepper/internal/domain/valueobject"
)

// OutputFormat selects how extraction results are rendered.
type OutputFormat string

const (
	FormatLines      OutputFormat = "lines"
	FormatJSON       OutputFormat = "json"
	FormatJSONLines  OutputFormat = "json-lines"
	FormatPrettyJSON OutputFormat = "pretty-json"
)

// OutputFormats lists every accepted format name.
func OutputFormats() []OutputFormat {
	return []OutputFormat{FormatLines, FormatJSON, FormatJSONLines, FormatPrettyJSON}
}

// ParseOutputFormat maps a flag value to a format. Empty selects lines.
func ParseOutputFormat(s string) (OutputFormat, error) {
	if s == "" {
		return FormatLines, nil
	}
	for _, f := range OutputFormats() {
		if string(f) == strings.ToLower(s) {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormatKind, s)
}

// WriteExtracted renders files in the given format.
func WriteExtracted(w io.Writer, format OutputFormat, files []*valueobject.ExtractedFile) error {
	switch format {
	case FormatLines:
		for _, f := range files {
			if err := f.WriteLines(w); err != nil {
				return err
			}
		}
		return nil
	case FormatJSON, FormatPrettyJSON:
		if files == nil {
			files = []*valueobject.ExtractedFile{}
		}
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		if format == FormatPrettyJSON {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(files)
	case FormatJSONLines:
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for _, f := range files {
			if err := enc.Encode(f); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnsupportedFormatKind, format)
	}
}
