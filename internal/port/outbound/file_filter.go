package outbound

import (
	"context"

	"github.com/trusted-programming/tree-grepper/internal/domain/valueobject"
)

// SourceFile is a discovered file and the language its extension selects.
type SourceFile struct {
	Path     string
	Language valueobject.Language
}

// SourceWalker expands command line paths into source files. Directories are walked
// recursively, skipping ignored entries; explicit file paths are kept when their
// language is selected. Output is sorted by path.
type SourceWalker interface {
	Walk(ctx context.Context, paths []string) ([]SourceFile, error)
}
