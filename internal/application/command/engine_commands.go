// Package command holds the validated inputs of every CLI operation.
package command

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/trusted-programming/tree-grepper/internal/domain/errors/domain"
	"github.com/trusted-programming/tree-grepper/internal/domain/valueobject"
)

// QuerySpec pairs a language name with a query pattern.
type QuerySpec struct {
	Language string
	Pattern  string
}

// LanguageValue resolves the language name or alias.
func (q QuerySpec) LanguageValue() (valueobject.Language, error) {
	lang, ok := valueobject.LookupLanguage(q.Language)
	if !ok {
		return valueobject.Language{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedLanguage, q.Language)
	}
	return lang, nil
}

func (q QuerySpec) validate() error {
	if strings.TrimSpace(q.Pattern) == "" {
		return invalid("query for %s is empty", q.Language)
	}
	_, err := q.LanguageValue()
	return err
}

// InputSet selects the sources of an operation: paths, or standard input.
type InputSet struct {
	Paths []string
	Stdin bool
}

func (in InputSet) validate() error {
	switch {
	case in.Stdin && len(in.Paths) > 0:
		return invalid("paths and --stdin are mutually exclusive")
	case !in.Stdin && len(in.Paths) == 0:
		return invalid("no paths given; pass paths or --stdin")
	}
	return nil
}

// ExtractCommand runs one or more queries and reports their visible captures.
type ExtractCommand struct {
	Queries []QuerySpec
	Inputs  InputSet
	// FailFast aborts the batch on the first failing input.
	FailFast bool
}

// Validate checks the command.
func (c ExtractCommand) Validate() error {
	if len(c.Queries) == 0 {
		return invalid("at least one query is required")
	}
	for _, q := range c.Queries {
		if err := q.validate(); err != nil {
			return err
		}
	}
	return c.Inputs.validate()
}

// RewriteCommand applies the substitution directives of one query.
type RewriteCommand struct {
	Query    QuerySpec
	Inputs   InputSet
	InPlace  bool
	OutDir   string
	FailFast bool
}

// Validate checks the command.
func (c RewriteCommand) Validate() error {
	if err := c.Query.validate(); err != nil {
		return err
	}
	if err := c.Inputs.validate(); err != nil {
		return err
	}
	switch {
	case c.InPlace && c.OutDir != "":
		return invalid("--in-place and --out are mutually exclusive")
	case c.InPlace && c.Inputs.Stdin:
		return invalid("--in-place needs file paths")
	}
	return nil
}

// MarkupCommand annotates sources with a markup profile.
type MarkupCommand struct {
	// ProfilePath names a profile file; empty selects the embedded default.
	ProfilePath string
	Inputs      InputSet
	// Split stores one artifact per top-level item instead of printing the whole file.
	Split    bool
	FailFast bool
}

// Validate checks the command.
func (c MarkupCommand) Validate() error {
	return c.Inputs.validate()
}

// Gzip level bounds accepted by ExportCommand: -2 is Huffman only, -1 the default.
const (
	MinCompressionLevel = -2
	MaxCompressionLevel = 9
)

// ExportCommand archives stored artifacts. A zero ModTime stamps entries with the
// export time.
type ExportCommand struct {
	Prefix  string
	Out     string
	Level   int
	ModTime time.Time
}

// Validate checks the command.
func (c ExportCommand) Validate() error {
	if c.Out == "" {
		return invalid("--out is required")
	}
	if c.Level < MinCompressionLevel || c.Level > MaxCompressionLevel {
		return invalid("--level must be between %d and %d", MinCompressionLevel, MaxCompressionLevel)
	}
	return nil
}

// ImportCommand loads an exported archive back into the store.
type ImportCommand struct {
	Archive string
	Prefix  string
}

// Validate checks the command.
func (c ImportCommand) Validate() error {
	if c.Archive == "" {
		return invalid("an archive file is required")
	}
	return nil
}

// ErrInvalidCommand marks command validation failures.
var ErrInvalidCommand = errors.New("invalid command")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", ErrInvalidCommand, domain.ErrInvalidInput, fmt.Sprintf(format, args...))
}
