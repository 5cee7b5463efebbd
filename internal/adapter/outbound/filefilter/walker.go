// Package filefilter discovers source files below the paths given on the command
// line, honouring .gitignore files and the extension table of each language.
package filefilter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/trusted-programming/tree-grepper/internal/application/common/slogger"
	"github.com/trusted-programming/tree-grepper/internal/domain/errors/domain"
	"github.com/trusted-programming/tree-grepper/internal/domain/valueobject"
	"github.com/trusted-programming/tree-grepper/internal/port/outbound"
)

// SourceFile is a discovered file and the language its extension selects.
type SourceFile = outbound.SourceFile

//nolint:gochecknoglobals // lookup table
var defaultSkipDirs = map[string]bool{
	".git":          true,
	".hg":           true,
	".svn":          true,
	"node_modules":  true,
	"target":        true,
	"vendor":        true,
	".tree-grepper": true,
}

// Walker expands paths into source files.
type Walker struct {
	languages map[string]bool
	skipDirs  map[string]bool
	gitignore bool
	hidden    bool
}

// WalkerOption configures a Walker.
type WalkerOption func(*Walker)

// WithLanguages keeps only files of the given languages. Without it every known
// language is kept.
func WithLanguages(languages ...valueobject.Language) WalkerOption {
	return func(w *Walker) {
		w.languages = make(map[string]bool, len(languages))
		for _, l := range languages {
			w.languages[l.Name()] = true
		}
	}
}

// WithGitignore toggles .gitignore handling. It is on by default.
func WithGitignore(enabled bool) WalkerOption {
	return func(w *Walker) { w.gitignore = enabled }
}

// WithHidden includes dot files and dot directories.
func WithHidden(enabled bool) WalkerOption {
	return func(w *Walker) { w.hidden = enabled }
}

// WithSkipDirs adds directory names that are never entered.
func WithSkipDirs(names ...string) WalkerOption {
	return func(w *Walker) {
		for _, n := range names {
			w.skipDirs[n] = true
		}
	}
}

var _ outbound.SourceWalker = (*Walker)(nil)

// NewWalker creates a walker.
func NewWalker(opts ...WalkerOption) *Walker {
	w := &Walker{skipDirs: make(map[string]bool, len(defaultSkipDirs)), gitignore: true}
	for name := range defaultSkipDirs {
		w.skipDirs[name] = true
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Walker) accept(path string) (valueobject.Language, bool) {
	lang, ok := valueobject.LanguageForPath(path)
	if !ok {
		return valueobject.Language{}, false
	}
	if w.languages != nil && !w.languages[lang.Name()] {
		return valueobject.Language{}, false
	}
	return lang, true
}

// Walk expands every path. A file argument is kept when its language is accepted,
// even if it is ignored; directory arguments are walked recursively. Output is sorted
// by path and free of duplicates.
func (w *Walker) Walk(ctx context.Context, paths []string) ([]SourceFile, error) {
	seen := make(map[string]bool)
	var files []SourceFile
	add := func(p string, lang valueobject.Language) {
		clean := filepath.Clean(p)
		if !seen[clean] {
			seen[clean] = true
			files = append(files, SourceFile{Path: clean, Language: lang})
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, domain.NewReadError(p, err)
		}
		if !info.IsDir() {
			if lang, ok := w.accept(p); ok {
				add(p, lang)
			} else {
				slogger.Debug(ctx, "skipping file with unselected language", slogger.Fields{"path": p})
			}
			continue
		}
		if err := w.walkDir(ctx, p, add); err != nil {
			return nil, err
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (w *Walker) walkDir(ctx context.Context, root string, add func(string, valueobject.Language)) error {
	stack := &ignoreStack{}

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		name := d.Name()

		if d.IsDir() {
			if rel == "." {
				if w.gitignore {
					return stack.push(root, rel)
				}
				return nil
			}
			stack.popTo(relDirOf(rel))
			if w.skipDirs[name] || (!w.hidden && name[0] == '.') || (w.gitignore && stack.ignored(rel, true)) {
				return filepath.SkipDir
			}
			if w.gitignore {
				return stack.push(root, rel)
			}
			return nil
		}

		stack.popTo(relDirOf(rel))
		if !d.Type().IsRegular() {
			return nil
		}
		if !w.hidden && name[0] == '.' {
			return nil
		}
		if w.gitignore && stack.ignored(rel, false) {
			return nil
		}
		if IsBinaryPath(p) {
			return nil
		}
		lang, ok := w.accept(p)
		if !ok {
			return nil
		}
		if sniffBinary(p) {
			slogger.Debug(ctx, "skipping binary file", slogger.Fields{"path": p})
			return nil
		}
		add(p, lang)
		return nil
	})
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return domain.NewReadError(pathErr.Path, err)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("walk %s: %w", root, err)
	}
	return nil
}

// sniffBinary reads the head of p. Unreadable files are left to the reader to report.
func sniffBinary(p string) bool {
	f, err := os.Open(p)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, binarySampleSize)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false
	}
	return IsBinaryContent(head[:n])
}
