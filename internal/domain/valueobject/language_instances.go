package valueobject

import (
	"sort"
	"strings"
)

//nolint:gochecknoglobals // Immutable language table initialised once.
var (
	Bash       = mustLanguage(LanguageBash, "Bash", []string{"sh", "shell"}, []string{".sh", ".bash"})
	C          = mustLanguage(LanguageC, "C", nil, []string{".c", ".h"})
	CPlusPlus  = mustLanguage(LanguageCPlusPlus, "C++", []string{"c++", "cxx"}, []string{".cpp", ".cc", ".cxx", ".hpp", ".hh"})
	Elm        = mustLanguage(LanguageElm, "Elm", nil, []string{".elm"})
	Go         = mustLanguage(LanguageGo, "Go", []string{"golang"}, []string{".go"})
	Java       = mustLanguage(LanguageJava, "Java", nil, []string{".java"})
	JavaScript = mustLanguage(LanguageJavaScript, "JavaScript", []string{"js"}, []string{".js", ".jsx", ".mjs", ".cjs"})
	Python     = mustLanguage(LanguagePython, "Python", []string{"py"}, []string{".py", ".pyi"})
	Ruby       = mustLanguage(LanguageRuby, "Ruby", []string{"rb"}, []string{".rb"})
	Rust       = mustLanguage(LanguageRust, "Rust", []string{"rs"}, []string{".rs"})
	TSX        = mustLanguage(LanguageTSX, "TSX", nil, []string{".tsx"})
	TypeScript = mustLanguage(LanguageTypeScript, "TypeScript", []string{"ts"}, []string{".ts", ".mts", ".cts"})

	knownLanguages = []Language{Bash, C, CPlusPlus, Elm, Go, Java, JavaScript, Python, Ruby, Rust, TSX, TypeScript}
)

func mustLanguage(name, display string, aliases, extensions []string) Language {
	lang, err := NewLanguageWithDetails(name, display, aliases, extensions)
	if err != nil {
		panic(err)
	}
	return lang
}

// KnownLanguages returns every language with a bundled grammar, sorted by name.
func KnownLanguages() []Language {
	out := make([]Language, len(knownLanguages))
	copy(out, knownLanguages)
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// LookupLanguage resolves a language by canonical name or alias.
func LookupLanguage(name string) (Language, bool) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for _, lang := range knownLanguages {
		if lang.HasAlias(normalized) {
			return lang, true
		}
	}
	return Language{}, false
}

// LanguageForPath resolves a language from a file extension.
func LanguageForPath(path string) (Language, bool) {
	for _, lang := range knownLanguages {
		if lang.MatchesPath(path) {
			return lang, true
		}
	}
	return Language{}, false
}
