package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/trusted-programming/tree-grepper/internal/domain/errors/domain"
	"github.com/trusted-programming/tree-grepper/internal/domain/valueobject"
	"gopkg.in/yaml.v3"
)

//go:embed profiles/rust.yaml
var defaultRustProfile []byte

// MarkupProfile describes the categories the markup command overlays on one language.
type MarkupProfile struct {
	Language   string            `yaml:"language"`
	Items      string            `yaml:"items"`
	ScopeTag   string            `yaml:"scope_tag"`
	Categories []ProfileCategory `yaml:"categories"`
}

// ProfileCategory is one category entry of a profile file.
type ProfileCategory struct {
	Tag      string `yaml:"tag"`
	Kind     string `yaml:"kind"`
	Priority int    `yaml:"priority"`
	Scope    bool   `yaml:"scope"`
	Query    string `yaml:"query"`
}

// DefaultMarkupProfile returns the embedded Rust profile.
func DefaultMarkupProfile() (*MarkupProfile, error) {
	return ParseMarkupProfile(defaultRustProfile)
}

// LoadMarkupProfile reads a profile file. An empty path selects the default profile.
func LoadMarkupProfile(path string) (*MarkupProfile, error) {
	if path == "" {
		return DefaultMarkupProfile()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading markup profile %s: %w", path, err)
	}
	profile, err := ParseMarkupProfile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return profile, nil
}

// ParseMarkupProfile decodes and validates a profile document.
func ParseMarkupProfile(data []byte) (*MarkupProfile, error) {
	var profile MarkupProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidMarkupProfile, err)
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Validate checks the profile names a known language and usable categories.
func (p *MarkupProfile) Validate() error {
	if _, err := p.LanguageValue(); err != nil {
		return err
	}
	if strings.TrimSpace(p.Items) == "" {
		return fmt.Errorf("%w: items query is empty", domain.ErrInvalidMarkupProfile)
	}
	if len(p.Categories) == 0 {
		return fmt.Errorf("%w: at least one category is required", domain.ErrInvalidMarkupProfile)
	}
	categories, err := p.MarkupCategories()
	if err != nil {
		return err
	}
	for i, c := range categories {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("%w: category %d: %w", domain.ErrInvalidMarkupProfile, i, err)
		}
	}
	return nil
}

// LanguageValue resolves the profile language.
func (p *MarkupProfile) LanguageValue() (valueobject.Language, error) {
	lang, ok := valueobject.LookupLanguage(p.Language)
	if !ok {
		return valueobject.Language{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedLanguage, p.Language)
	}
	return lang, nil
}

// MarkupCategories converts the profile entries, in file order. Wrap categories tagged
// with the profile's scope tag are scopes.
func (p *MarkupProfile) MarkupCategories() ([]valueobject.MarkupCategory, error) {
	out := make([]valueobject.MarkupCategory, 0, len(p.Categories))
	for i, c := range p.Categories {
		kind, err := valueobject.ParseCategoryKind(c.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: category %d: %w", domain.ErrInvalidMarkupProfile, i, err)
		}
		scope := c.Scope || (p.ScopeTag != "" && c.Tag == p.ScopeTag && kind == valueobject.CategoryWrap)
		out = append(out, valueobject.MarkupCategory{
			Tag:      c.Tag,
			Kind:     kind,
			Priority: c.Priority,
			Scope:    scope,
			Query:    c.Query,
		})
	}
	return out, nil
}
