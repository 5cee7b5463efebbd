package valueobject

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLanguage(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantName  string
		wantError bool
		errorMsg  string
	}{
		{
			name:     "valid language name",
			input:    "rust",
			wantName: "rust",
		},
		{
			name:     "name is normalized to lower case",
			input:    "  Elm ",
			wantName: "elm",
		},
		{
			name:      "empty language name",
			input:     "",
			wantError: true,
			errorMsg:  "language name cannot be empty",
		},
		{
			name:      "whitespace only language name",
			input:     "   ",
			wantError: true,
			errorMsg:  "language name cannot be empty after normalization",
		},
		{
			name:      "language name too long",
			input:     strings.Repeat("a", 51),
			wantError: true,
			errorMsg:  "invalid language name: language name too long",
		},
		{
			name:      "language name with control characters",
			input:     "go\x00lang",
			wantError: true,
			errorMsg:  "invalid language name: invalid character in language name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lang, err := NewLanguage(tt.input)
			if tt.wantError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, lang.Name())
		})
	}
}

func TestNewLanguageWithDetails_NormalizesExtensionsAndAliases(t *testing.T) {
	lang, err := NewLanguageWithDetails("rust", "Rust", []string{"RS", "rs", ""}, []string{"RS", ".rs", " "})
	require.NoError(t, err)

	assert.Equal(t, "Rust", lang.DisplayName())
	assert.Equal(t, []string{"rs"}, lang.Aliases())
	assert.Equal(t, []string{".rs"}, lang.Extensions())
	assert.True(t, lang.HasExtension("rs"))
	assert.True(t, lang.HasExtension(".RS"))
	assert.True(t, lang.HasAlias("Rs"))
	assert.True(t, lang.HasAlias("rust"))
	assert.False(t, lang.HasAlias("go"))
}

func TestNewLanguageWithDetails_RejectsBadExtension(t *testing.T) {
	_, err := NewLanguageWithDetails("rust", "Rust", nil, []string{".r$"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid extension")
}

func TestLanguage_ExtensionsReturnsCopy(t *testing.T) {
	exts := Rust.Extensions()
	exts[0] = ".mutated"
	assert.Equal(t, ".rs", Rust.Extensions()[0])
}

func TestLookupLanguage(t *testing.T) {
	tests := []struct {
		input string
		want  string
		found bool
	}{
		{input: "elm", want: LanguageElm, found: true},
		{input: "JS", want: LanguageJavaScript, found: true},
		{input: "golang", want: LanguageGo, found: true},
		{input: "rs", want: LanguageRust, found: true},
		{input: "cobol", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			lang, ok := LookupLanguage(tt.input)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.want, lang.Name())
				assert.Equal(t, tt.want, lang.String())
			}
		})
	}
}

func TestLanguageForPath(t *testing.T) {
	lang, ok := LanguageForPath("src/lib.rs")
	require.True(t, ok)
	assert.True(t, lang.Equal(Rust))

	lang, ok = LanguageForPath("web/app.tsx")
	require.True(t, ok)
	assert.Equal(t, LanguageTSX, lang.Name())

	_, ok = LanguageForPath("README")
	assert.False(t, ok)
}

func TestKnownLanguages_SortedAndComplete(t *testing.T) {
	langs := KnownLanguages()
	require.Len(t, langs, 12)
	for i := 1; i < len(langs); i++ {
		assert.Less(t, langs[i-1].Name(), langs[i].Name())
	}
	assert.False(t, langs[0].IsUnknown())
	assert.True(t, Language{}.IsUnknown())
}
