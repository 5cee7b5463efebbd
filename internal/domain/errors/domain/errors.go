// Package domain provides domain-specific error definitions and utilities.
package domain

import "errors"

// Engine error sentinels. Every EngineError matches the sentinel of its category
// through errors.Is.
var (
	ErrRead              = errors.New("source could not be read")
	ErrCompile           = errors.New("query could not be compiled")
	ErrParse             = errors.New("source could not be parsed")
	ErrDecode            = errors.New("capture is not valid text")
	ErrRewriteDivergence = errors.New("rewrite did not reach a fixpoint")
	ErrStore             = errors.New("blob store operation failed")
)

// Lookup errors.
var (
	ErrBlobNotFound          = errors.New("blob not found")
	ErrUnsupportedLanguage   = errors.New("unsupported language")
	ErrInvalidMarkupProfile  = errors.New("invalid markup profile")
	ErrUnsupportedStoreKind  = errors.New("unsupported store backend")
	ErrUnsupportedFormatKind = errors.New("unsupported output format")
)

// General domain errors.
var (
	ErrInvalidInput = errors.New("invalid input")
)
