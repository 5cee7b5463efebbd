package valueobject

import (
	"fmt"
	"strings"
)

// CategoryKind selects how a markup category's regions are rendered.
type CategoryKind string

const (
	// CategoryDelete elides the covered bytes.
	CategoryDelete CategoryKind = "delete"
	// CategoryWrap surrounds the covered bytes with an open and a close tag.
	CategoryWrap CategoryKind = "wrap"
	// CategoryBoundary inserts an empty tag pair at the node start.
	CategoryBoundary CategoryKind = "boundary"
)

// ParseCategoryKind validates a kind name.
func ParseCategoryKind(s string) (CategoryKind, error) {
	switch k := CategoryKind(strings.ToLower(strings.TrimSpace(s))); k {
	case CategoryDelete, CategoryWrap, CategoryBoundary:
		return k, nil
	default:
		return "", fmt.Errorf("unknown category kind %q", s)
	}
}

// MarkupCategory is one independent annotation layer evaluated by its own query.
// Lower priority values are emitted first when several categories fire at one offset.
type MarkupCategory struct {
	Tag      string
	Kind     CategoryKind
	Priority int
	// Scope marks wrap categories whose presence classifies an item as unsafe.
	Scope bool
	Query string
}

// Validate checks the category is usable.
func (c MarkupCategory) Validate() error {
	if strings.TrimSpace(c.Tag) == "" {
		return fmt.Errorf("category tag is empty")
	}
	if strings.ContainsAny(c.Tag, "<>/ \t\n") {
		return fmt.Errorf("category tag %q contains markup characters", c.Tag)
	}
	if _, err := ParseCategoryKind(string(c.Kind)); err != nil {
		return err
	}
	if strings.TrimSpace(c.Query) == "" {
		return fmt.Errorf("category %q has an empty query", c.Tag)
	}
	if c.Scope && c.Kind != CategoryWrap {
		return fmt.Errorf("category %q: only wrap categories can be scopes", c.Tag)
	}
	return nil
}

// OpenTag returns "<tag>".
func (c MarkupCategory) OpenTag() string { return "<" + c.Tag + ">" }

// CloseTag returns "</tag>".
func (c MarkupCategory) CloseTag() string { return "</" + c.Tag + ">" }

// AnnotatedRegion is a resolved byte range of one category.
type AnnotatedRegion struct {
	Category int
	Tag      string
	Kind     CategoryKind
	Start    uint32
	End      uint32
}

// Contains reports whether offset lies in [Start, End).
func (r AnnotatedRegion) Contains(offset uint32) bool {
	return offset >= r.Start && offset < r.End
}
