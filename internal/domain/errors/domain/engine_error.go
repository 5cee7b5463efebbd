package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorCategory represents the category of an engine error.
type ErrorCategory string

const (
	ErrorCategoryRead              ErrorCategory = "read"
	ErrorCategoryCompile           ErrorCategory = "compile"
	ErrorCategoryParse             ErrorCategory = "parse"
	ErrorCategoryDecode            ErrorCategory = "decode"
	ErrorCategoryRewriteDivergence ErrorCategory = "rewrite_divergence"
	ErrorCategoryStore             ErrorCategory = "store"
)

// EngineError is the typed error surfaced by every engine operation.
type EngineError struct {
	Message  string        `json:"message"`
	Category ErrorCategory `json:"category"`

	Path      string `json:"path,omitempty"`
	Language  string `json:"language,omitempty"`
	Operation string `json:"operation,omitempty"`
	Offset    int    `json:"offset,omitempty"`

	Details map[string]any `json:"details,omitempty"`

	Timestamp time.Time `json:"timestamp"`

	Cause error `json:"-"`
}

// NewEngineError creates a new engine error with the given category and message.
func NewEngineError(category ErrorCategory, message string) *EngineError {
	return &EngineError{
		Message:   message,
		Category:  category,
		Timestamp: time.Now(),
	}
}

// NewReadError creates an error for an unreadable source.
func NewReadError(path string, cause error) *EngineError {
	return NewEngineError(ErrorCategoryRead, "could not read source").
		WithPath(path).
		WithCause(cause)
}

// NewWriteError creates an error for an output file that could not be written. It
// shares the read category: both are source I/O failures.
func NewWriteError(path string, cause error) *EngineError {
	return NewEngineError(ErrorCategoryRead, "could not write output").
		WithPath(path).
		WithOperation("write").
		WithCause(cause)
}

// NewCompileError creates an error for a malformed query or grammar mismatch.
func NewCompileError(language, message string, offset int) *EngineError {
	return NewEngineError(ErrorCategoryCompile, message).
		WithLanguage(language).
		WithOffset(offset)
}

// NewParseError creates an error for a tree that could not be produced. This is an
// internal condition: the grammar is always set before parsing.
func NewParseError(language string, cause error) *EngineError {
	return NewEngineError(ErrorCategoryParse, "could not parse to a tree").
		WithLanguage(language).
		WithCause(cause)
}

// NewDecodeError creates an error for a capture whose byte range is not valid text.
func NewDecodeError(captureName string, start, end uint32) *EngineError {
	return NewEngineError(ErrorCategoryDecode, "could not extract text from capture").
		WithOffset(int(start)).
		WithDetails("capture", captureName).
		WithDetails("end_byte", end)
}

// NewRewriteDivergenceError creates an error for a rewrite loop that hit its bound.
func NewRewriteDivergenceError(limit int) *EngineError {
	return NewEngineError(
		ErrorCategoryRewriteDivergence,
		fmt.Sprintf("no fixpoint after %d substitution passes", limit),
	).WithDetails("limit", limit)
}

// NewStoreError creates an error for a failed blob store operation.
func NewStoreError(operation, key string, cause error) *EngineError {
	return NewEngineError(ErrorCategoryStore, "blob store operation failed").
		WithOperation(operation).
		WithDetails("key", key).
		WithCause(cause)
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := fmt.Sprintf("%s error: %s", e.Category, e.Message)
	if e.Operation != "" {
		msg = fmt.Sprintf("%s error in %s: %s", e.Category, e.Operation, e.Message)
	}
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain unwrapping.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel of this error's category.
func (e *EngineError) Is(target error) bool {
	sentinel, ok := categorySentinels[e.Category]
	return ok && target == sentinel
}

var categorySentinels = map[ErrorCategory]error{ //nolint:gochecknoglobals // lookup table
	ErrorCategoryRead:              ErrRead,
	ErrorCategoryCompile:           ErrCompile,
	ErrorCategoryParse:             ErrParse,
	ErrorCategoryDecode:            ErrDecode,
	ErrorCategoryRewriteDivergence: ErrRewriteDivergence,
	ErrorCategoryStore:             ErrStore,
}

// WithCause adds a cause to the error.
func (e *EngineError) WithCause(cause error) *EngineError {
	e.Cause = cause
	return e
}

// WithDetails adds details to the error.
func (e *EngineError) WithDetails(key string, value any) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithPath sets the source path context.
func (e *EngineError) WithPath(path string) *EngineError {
	e.Path = path
	return e
}

// WithLanguage sets the language context.
func (e *EngineError) WithLanguage(language string) *EngineError {
	e.Language = language
	return e
}

// WithOperation sets the operation context.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithOffset sets the byte offset the error refers to.
func (e *EngineError) WithOffset(offset int) *EngineError {
	e.Offset = offset
	return e
}

// CategoryOf returns the category of err if it wraps an EngineError.
func CategoryOf(err error) (ErrorCategory, bool) {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Category, true
	}
	return "", false
}

// WithPathIfMissing annotates an engine error with path when it has none yet.
// Non-engine errors are returned unchanged.
func WithPathIfMissing(err error, path string) error {
	var engineErr *EngineError
	if errors.As(err, &engineErr) && engineErr.Path == "" {
		engineErr.Path = path
	}
	return err
}

// ParseErrorFromContext creates a parse error if the context is done.
func ParseErrorFromContext(ctx context.Context, language string) *EngineError {
	if err := ctx.Err(); err != nil {
		return NewParseError(language, err)
	}
	return nil
}
