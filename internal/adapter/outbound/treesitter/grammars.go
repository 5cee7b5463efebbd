package treesitter

import (
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/elm"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
	"github.com/trusted-programming/tree-grepper/internal/domain/valueobject"
)

// grammarLoaders maps language names to their grammar constructors.
var grammarLoaders = map[string]func() *sitter.Language{ //nolint:gochecknoglobals // static registry
	valueobject.LanguageBash:       bash.GetLanguage,
	valueobject.LanguageC:          c.GetLanguage,
	valueobject.LanguageCPlusPlus:  cpp.GetLanguage,
	valueobject.LanguageElm:        elm.GetLanguage,
	valueobject.LanguageGo:         golang.GetLanguage,
	valueobject.LanguageJava:       java.GetLanguage,
	valueobject.LanguageJavaScript: javascript.GetLanguage,
	valueobject.LanguagePython:     python.GetLanguage,
	valueobject.LanguageRuby:       ruby.GetLanguage,
	valueobject.LanguageRust:       rust.GetLanguage,
	valueobject.LanguageTSX:        tsx.GetLanguage,
	valueobject.LanguageTypeScript: typescript.GetLanguage,
}

func grammarFor(language valueobject.Language) (*sitter.Language, bool) {
	load, ok := grammarLoaders[language.Name()]
	if !ok {
		return nil, false
	}
	return load(), true
}

func supportedLanguageNames() []string {
	names := make([]string, 0, len(grammarLoaders))
	for name := range grammarLoaders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
