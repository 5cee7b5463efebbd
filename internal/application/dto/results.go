package dto

import (
	"errors"
	"time"

	"github.com/trusted-programming/tree-grepper/internal/domain/errors/domain"
	"github.com/trusted-programming/tree-grepper/internal/domain/valueobject"
)

// InputFailure describes one input that could not be processed.
type InputFailure struct {
	Input    string               `json:"input"`
	Category domain.ErrorCategory `json:"category,omitempty"`
	Message  string               `json:"message"`
}

// NewInputFailure builds a failure record from err.
func NewInputFailure(input string, err error) InputFailure {
	failure := InputFailure{Input: input, Message: err.Error()}
	var engineErr *domain.EngineError
	if errors.As(err, &engineErr) {
		failure.Category = engineErr.Category
	}
	return failure
}

// BatchStats summarizes a batch.
type BatchStats struct {
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// ExtractReport is the result of an extract run, in input path order.
type ExtractReport struct {
	Files    []*valueobject.ExtractedFile `json:"files"`
	Failures []InputFailure               `json:"failures,omitempty"`
	Stats    BatchStats                   `json:"stats"`
}

// RewrittenSource is the outcome for one rewritten input.
type RewrittenSource struct {
	Input         string `json:"input"`
	Source        []byte `json:"-"`
	Substitutions int    `json:"substitutions"`
	Passes        int    `json:"passes"`
	// WrittenTo is the file the result was saved to; empty when it goes to stdout.
	WrittenTo string `json:"written_to,omitempty"`
}

// Changed reports whether any substitution happened.
func (r RewrittenSource) Changed() bool {
	return r.Substitutions > 0
}

// RewriteReport is the result of a rewrite run, in input path order.
type RewriteReport struct {
	Sources  []RewrittenSource `json:"sources"`
	Failures []InputFailure    `json:"failures,omitempty"`
	Stats    BatchStats        `json:"stats"`
}

// MarkedUpSource is the outcome for one annotated input.
type MarkedUpSource struct {
	Input  string `json:"input"`
	Output string `json:"-"`
	// Items, Written, Skipped and Replaced are set in split mode.
	Items    int `json:"items,omitempty"`
	Written  int `json:"written,omitempty"`
	Skipped  int `json:"skipped,omitempty"`
	Replaced int `json:"replaced,omitempty"`
}

// MarkupReport is the result of a markup run, in input path order.
type MarkupReport struct {
	Sources  []MarkedUpSource `json:"sources"`
	Failures []InputFailure   `json:"failures,omitempty"`
	Stats    BatchStats       `json:"stats"`
}
