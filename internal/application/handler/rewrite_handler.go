package handler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/trusted-programming/tree-grepper/internal/application/command"
	"github.com/trusted-programming/tree-grepper/internal/application/common/slogger"
	"github.com/trusted-programming/tree-grepper/internal/application/dto"
	"github.com/trusted-programming/tree-grepper/internal/application/service"
	"github.com/trusted-programming/tree-grepper/internal/domain/errors/domain"
	"github.com/trusted-programming/tree-grepper/internal/domain/valueobject"
	"github.com/trusted-programming/tree-grepper/internal/port/outbound"
)

// SourceRewriter applies substitution directives to one buffer.
type SourceRewriter interface {
	Rewrite(ctx context.Context, buffer valueobject.SourceBuffer, query outbound.Query) (*service.RewriteResult, error)
}

// RewriteHandler handles rewrite commands.
type RewriteHandler struct {
	provider outbound.SyntaxProvider
	rewriter SourceRewriter
	opts     Options
}

// NewRewriteHandler creates a new rewrite handler.
func NewRewriteHandler(provider outbound.SyntaxProvider, rewriter SourceRewriter, opts Options) *RewriteHandler {
	return &RewriteHandler{provider: provider, rewriter: rewriter, opts: opts}
}

// Handle rewrites every input of the query's language. With InPlace changed files are
// overwritten; with OutDir every result is written below it; otherwise the rewritten
// sources are only returned.
func (h *RewriteHandler) Handle(ctx context.Context, cmd command.RewriteCommand) (*dto.RewriteReport, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	query, err := compileQuery(h.provider, cmd.Query)
	if err != nil {
		return nil, err
	}
	defer query.Close()

	if len(query.Directives()) == 0 {
		slogger.Warn(ctx, "query has no #sub! directives; sources are left unchanged", slogger.Fields{
			"language": query.Language().Name(),
		})
	}

	sources, err := resolveSources(ctx, h.opts, cmd.Inputs, languageSet(query.Language()))
	if err != nil {
		return nil, err
	}

	rewritten, failures, stats, err := runSources(ctx, sources, h.opts, cmd.FailFast,
		func(ctx context.Context, src source) (dto.RewrittenSource, error) {
			return h.rewriteSource(ctx, src, query, cmd)
		})
	if err != nil && !errors.Is(err, ErrInputsFailed) {
		return nil, err
	}

	slogger.Info(ctx, "rewrite finished", slogger.Fields{
		"inputs":   len(sources),
		"failed":   stats.Failed,
		"duration": stats.Duration.String(),
	})
	return &dto.RewriteReport{Sources: rewritten, Failures: failures, Stats: stats}, err
}

func (h *RewriteHandler) rewriteSource(
	ctx context.Context,
	src source,
	query outbound.Query,
	cmd command.RewriteCommand,
) (dto.RewrittenSource, error) {
	buffer, err := src.load()
	if err != nil {
		return dto.RewrittenSource{}, err
	}

	result, err := h.rewriter.Rewrite(ctx, buffer, query)
	if err != nil {
		return dto.RewrittenSource{}, err
	}

	out := dto.RewrittenSource{
		Input:         src.name,
		Source:        result.Source.Bytes(),
		Substitutions: result.Substitutions,
		Passes:        result.Passes,
	}

	switch {
	case cmd.InPlace:
		if !result.Changed() {
			return out, nil
		}
		if err := writeReplacing(src.name, out.Source); err != nil {
			return dto.RewrittenSource{}, err
		}
		out.WrittenTo = src.name
	case cmd.OutDir != "":
		dest := OutputPath(cmd.OutDir, src.name)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return dto.RewrittenSource{}, domain.NewWriteError(dest, err)
		}
		if err := writeReplacing(dest, out.Source); err != nil {
			return dto.RewrittenSource{}, err
		}
		out.WrittenTo = dest
	}

	if out.WrittenTo != "" {
		slogger.Debug(ctx, "rewritten source saved", slogger.Fields{
			"input":         src.name,
			"dest":          out.WrittenTo,
			"substitutions": out.Substitutions,
		})
	}
	return out, nil
}

// OutputPath mirrors input below dir. Absolute inputs lose their root and parent
// segments are dropped so nothing is written outside dir.
func OutputPath(dir, input string) string {
	rel := filepath.ToSlash(filepath.Clean(input))
	if vol := filepath.VolumeName(input); vol != "" {
		rel = strings.TrimPrefix(rel, filepath.ToSlash(vol))
	}
	rel = strings.TrimLeft(rel, "/")

	parts := strings.Split(rel, "/")
	kept := parts[:0]
	for _, p := range parts {
		if p != ".." && p != "." && p != "" {
			kept = append(kept, p)
		}
	}
	return filepath.Join(append([]string{dir}, kept...)...)
}

// writeReplacing writes content to path keeping the mode of an existing file.
func writeReplacing(path string, content []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".rewrite-*")
	if err != nil {
		return domain.NewWriteError(path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return domain.NewWriteError(path, err)
	}
	if err := tmp.Close(); err != nil {
		return domain.NewWriteError(path, err)
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return domain.NewWriteError(path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return domain.NewWriteError(path, err)
	}
	return nil
}
