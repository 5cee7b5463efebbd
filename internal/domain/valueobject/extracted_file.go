package valueobject

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const noFileLabel = "NO FILE"

// ExtractedFile is the reporting record for the visible captures of one input.
type ExtractedFile struct {
	File     *string
	FileType string
	Matches  []Capture
}

// NewExtractedFile creates a record for buffer with the given visible captures.
func NewExtractedFile(buffer SourceBuffer, fileType string, matches []Capture) *ExtractedFile {
	record := &ExtractedFile{FileType: fileType, Matches: matches}
	if path, ok := buffer.Path(); ok {
		record.File = &path
	}
	return record
}

// FileLabel returns the path used in line reports.
func (f *ExtractedFile) FileLabel() string {
	if f.File == nil {
		return noFileLabel
	}
	return *f.File
}

// WriteLines writes one line per capture:
// path:start_byte:start_row:start_col:end_byte:end_row:end_col:name:text
// Rows and columns are 1-indexed.
func (f *ExtractedFile) WriteLines(w io.Writer) error {
	label := f.FileLabel()
	for _, c := range f.Matches {
		_, err := fmt.Fprintf(w, "%s:%d:%d:%d:%d:%d:%d:%s:%s\n",
			label,
			c.StartByte, c.Start.Row+1, c.Start.Column+1,
			c.EndByte, c.End.Row+1, c.End.Column+1,
			c.Name, c.Text,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// String returns the line report.
func (f *ExtractedFile) String() string {
	var sb strings.Builder
	_ = f.WriteLines(&sb)
	return sb.String()
}

type reportPoint struct {
	Row    uint32 `json:"row"`
	Column uint32 `json:"column"`
}

type reportMatch struct {
	Kind      string      `json:"kind"`
	Name      string      `json:"name"`
	Text      string      `json:"text"`
	StartByte uint32      `json:"start_byte"`
	EndByte   uint32      `json:"end_byte"`
	Start     reportPoint `json:"start"`
	End       reportPoint `json:"end"`
}

type reportFile struct {
	File     *string       `json:"file"`
	FileType string        `json:"file_type"`
	Matches  []reportMatch `json:"matches"`
}

// MarshalJSON encodes the record with 1-indexed rows and columns.
func (f *ExtractedFile) MarshalJSON() ([]byte, error) {
	out := reportFile{
		File:     f.File,
		FileType: f.FileType,
		Matches:  make([]reportMatch, 0, len(f.Matches)),
	}
	for _, c := range f.Matches {
		out.Matches = append(out.Matches, reportMatch{
			Kind:      c.Kind,
			Name:      c.Name,
			Text:      c.Text,
			StartByte: c.StartByte,
			EndByte:   c.EndByte,
			Start:     reportPoint{Row: c.Start.Row + 1, Column: c.Start.Column + 1},
			End:       reportPoint{Row: c.End.Row + 1, Column: c.End.Column + 1},
		})
	}
	return json.Marshal(out)
}
