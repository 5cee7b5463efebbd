package handler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/trusted-programming/tree-grepper/internal/adapter/outbound/filefilter"
	"github.com/trusted-programming/tree-grepper/internal/adapter/outbound/treesitter"
	"github.com/trusted-programming/tree-grepper/internal/application/service"
	"github.com/trusted-programming/tree-grepper/internal/domain/valueobject"
	"github.com/trusted-programming/tree-grepper/internal/port/outbound"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func testOptions(stdin string) Options {
	return Options{
		Walker:      filefilter.NewWalker(),
		Stdin:       strings.NewReader(stdin),
		Concurrency: 2,
	}
}

func newExtractor() *service.MatchExtractor {
	return service.NewMatchExtractor(treesitter.NewProvider())
}

// failingExtractor fails every file whose base name is in fail.
type failingExtractor struct {
	*service.MatchExtractor
	fail map[string]bool
}

func (f *failingExtractor) ExtractFile(
	ctx context.Context,
	query outbound.Query,
	buffer valueobject.SourceBuffer,
) (*valueobject.ExtractedFile, error) {
	if path, ok := buffer.Path(); ok && f.fail[filepath.Base(path)] {
		return nil, errors.New("extractor exploded")
	}
	return f.MatchExtractor.ExtractFile(ctx, query, buffer)
}
