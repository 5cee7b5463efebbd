package filefilter

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// GitignoreFileName is the per-directory ignore file honoured while walking.
const GitignoreFileName = ".gitignore"

// ignoreLayer is one compiled .gitignore and the slash-separated directory it sits in,
// relative to the walk root.
type ignoreLayer struct {
	dir     string
	matcher *ignore.GitIgnore
}

// ignoreStack holds the .gitignore files between the walk root and the current directory.
type ignoreStack struct {
	layers []ignoreLayer
}

// loadGitignore compiles dir/.gitignore. A missing file yields nil without error.
func loadGitignore(dir string) (*ignore.GitIgnore, error) {
	p := filepath.Join(dir, GitignoreFileName)
	if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // no ignore file
	} else if err != nil {
		return nil, err
	}
	return ignore.CompileIgnoreFile(p)
}

// push adds the ignore file of relDir, if any.
func (s *ignoreStack) push(root, relDir string) error {
	matcher, err := loadGitignore(filepath.Join(root, filepath.FromSlash(relDir)))
	if err != nil || matcher == nil {
		return err
	}
	s.layers = append(s.layers, ignoreLayer{dir: relDir, matcher: matcher})
	return nil
}

// popTo drops layers that do not contain relDir.
func (s *ignoreStack) popTo(relDir string) {
	for len(s.layers) > 0 {
		top := s.layers[len(s.layers)-1]
		if top.dir == "." || relDir == top.dir || strings.HasPrefix(relDir, top.dir+"/") {
			return
		}
		s.layers = s.layers[:len(s.layers)-1]
	}
}

// ignored reports whether relPath is ignored by any layer. Each layer matches the
// path relative to its own directory.
func (s *ignoreStack) ignored(relPath string, isDir bool) bool {
	for _, layer := range s.layers {
		candidate := relPath
		if layer.dir != "." {
			rel, ok := strings.CutPrefix(relPath, layer.dir+"/")
			if !ok {
				continue
			}
			candidate = rel
		}
		if layer.matcher.MatchesPath(candidate) || (isDir && layer.matcher.MatchesPath(candidate+"/")) {
			return true
		}
	}
	return false
}

func relDirOf(relPath string) string {
	return path.Dir(relPath)
}
