package valueobject

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Language identifies a tree-sitter grammar together with the file extensions and
// aliases it is selected by. It is the file_type reported in extraction records.
type Language struct {
	name        string
	displayName string
	aliases     []string
	extensions  []string
}

// Canonical grammar names.
const (
	LanguageBash       = "bash"
	LanguageC          = "c"
	LanguageCPlusPlus  = "cpp"
	LanguageElm        = "elm"
	LanguageGo         = "go"
	LanguageJava       = "java"
	LanguageJavaScript = "javascript"
	LanguagePython     = "python"
	LanguageRuby       = "ruby"
	LanguageRust       = "rust"
	LanguageTSX        = "tsx"
	LanguageTypeScript = "typescript"
	LanguageUnknown    = "unknown"
)

// NewLanguage creates a new Language value object with validation.
func NewLanguage(name string) (Language, error) {
	if name == "" {
		return Language{}, errors.New("language name cannot be empty")
	}

	normalizedName := strings.ToLower(strings.TrimSpace(name))
	if normalizedName == "" {
		return Language{}, errors.New("language name cannot be empty after normalization")
	}

	if err := validateLanguageName(normalizedName); err != nil {
		return Language{}, fmt.Errorf("invalid language name: %w", err)
	}

	return Language{
		name:        normalizedName,
		displayName: normalizedName,
		aliases:     []string{},
		extensions:  []string{},
	}, nil
}

// NewLanguageWithDetails creates a Language with display name, aliases and extensions.
func NewLanguageWithDetails(name, displayName string, aliases, extensions []string) (Language, error) {
	lang, err := NewLanguage(name)
	if err != nil {
		return Language{}, err
	}

	normalizedAliases, err := validateAndNormalizeAliases(aliases)
	if err != nil {
		return Language{}, fmt.Errorf("invalid aliases: %w", err)
	}

	normalizedExtensions, err := validateAndNormalizeExtensions(extensions)
	if err != nil {
		return Language{}, fmt.Errorf("invalid extensions: %w", err)
	}

	if strings.TrimSpace(displayName) != "" {
		lang.displayName = strings.TrimSpace(displayName)
	}
	lang.aliases = normalizedAliases
	lang.extensions = normalizedExtensions

	return lang, nil
}

// validateLanguageName validates the language name format.
func validateLanguageName(name string) error {
	if len(name) > 50 {
		return errors.New("language name too long (max 50 characters)")
	}

	for _, char := range name {
		if char < ' ' || char > '~' || char == ' ' {
			return fmt.Errorf("invalid character in language name: %q", char)
		}
	}

	return nil
}

// validateAndNormalizeAliases validates and normalizes language aliases.
func validateAndNormalizeAliases(aliases []string) ([]string, error) {
	normalized := make([]string, 0, len(aliases))
	seen := make(map[string]bool)

	for _, alias := range aliases {
		trimmed := strings.ToLower(strings.TrimSpace(alias))
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true

		if err := validateLanguageName(trimmed); err != nil {
			return nil, fmt.Errorf("invalid alias: %w", err)
		}

		normalized = append(normalized, trimmed)
	}

	return normalized, nil
}

// validateAndNormalizeExtensions validates and normalizes file extensions.
func validateAndNormalizeExtensions(extensions []string) ([]string, error) {
	normalized := make([]string, 0, len(extensions))
	seen := make(map[string]bool)

	for _, ext := range extensions {
		trimmed := strings.ToLower(strings.TrimSpace(ext))
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, ".") {
			trimmed = "." + trimmed
		}
		if seen[trimmed] {
			continue
		}
		seen[trimmed] = true

		if err := validateExtension(trimmed); err != nil {
			return nil, fmt.Errorf("invalid extension: %w", err)
		}

		normalized = append(normalized, trimmed)
	}

	return normalized, nil
}

// validateExtension validates a single file extension.
func validateExtension(ext string) error {
	if len(ext) < 2 {
		return errors.New("extension too short")
	}

	for i, char := range ext[1:] {
		if (char < 'a' || char > 'z') &&
			(char < '0' || char > '9') &&
			char != '-' && char != '_' {
			return fmt.Errorf("invalid character at position %d: %c", i+1, char)
		}
	}

	return nil
}

// Name returns the canonical grammar name.
func (l Language) Name() string {
	return l.name
}

// DisplayName returns the human readable language name.
func (l Language) DisplayName() string {
	return l.displayName
}

// Aliases returns the language aliases.
func (l Language) Aliases() []string {
	aliases := make([]string, len(l.aliases))
	copy(aliases, l.aliases)
	return aliases
}

// Extensions returns the file extensions for this language.
func (l Language) Extensions() []string {
	extensions := make([]string, len(l.extensions))
	copy(extensions, l.extensions)
	return extensions
}

// IsUnknown returns true if this is the zero or unknown language.
func (l Language) IsUnknown() bool {
	return l.name == "" || l.name == LanguageUnknown
}

// HasExtension returns true if the language supports the given extension.
func (l Language) HasExtension(extension string) bool {
	normalized := strings.ToLower(strings.TrimSpace(extension))
	if !strings.HasPrefix(normalized, ".") {
		normalized = "." + normalized
	}

	for _, ext := range l.extensions {
		if ext == normalized {
			return true
		}
	}
	return false
}

// MatchesPath returns true if the path's extension belongs to this language.
func (l Language) MatchesPath(path string) bool {
	ext := filepath.Ext(path)
	return ext != "" && l.HasExtension(ext)
}

// HasAlias returns true if name is the language name or one of its aliases.
func (l Language) HasAlias(name string) bool {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if l.name == normalized {
		return true
	}
	for _, a := range l.aliases {
		if a == normalized {
			return true
		}
	}
	return false
}

// String returns the canonical name, which is also the reported file type.
func (l Language) String() string {
	return l.name
}

// Equal compares two Language instances for equality.
func (l Language) Equal(other Language) bool {
	return l.name == other.name
}
