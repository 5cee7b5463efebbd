// Package handler executes validated commands against the engine services.
package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/trusted-programming/tree-grepper/internal/application/command"
	"github.com/trusted-programming/tree-grepper/internal/application/common/slogger"
	"github.com/trusted-programming/tree-grepper/internal/application/dto"
	"github.com/trusted-programming/tree-grepper/internal/application/service"
	"github.com/trusted-programming/tree-grepper/internal/domain/errors/domain"
	"github.com/trusted-programming/tree-grepper/internal/domain/valueobject"
	"github.com/trusted-programming/tree-grepper/internal/port/outbound"
)

// ErrInputsFailed is returned after a batch in which at least one input failed.
// The report returned alongside it is complete.
var ErrInputsFailed = errors.New("one or more inputs failed")

// Options holds the settings shared by every handler.
type Options struct {
	Walker      outbound.SourceWalker
	Stdin       io.Reader
	Concurrency int
}

// source is one resolved input. Stdin inputs carry their content.
type source struct {
	name     string
	language valueobject.Language
	stdin    bool
	content  []byte
}

func (s source) load() (valueobject.SourceBuffer, error) {
	if s.stdin {
		return valueobject.NewSourceBuffer(s.content), nil
	}
	content, err := os.ReadFile(s.name)
	if err != nil {
		return valueobject.SourceBuffer{}, domain.NewReadError(s.name, err)
	}
	return valueobject.NewFileSourceBuffer(s.name, content), nil
}

// resolveSources expands the input set. accept filters walked files by language;
// the stdin source gets the zero language and is matched by every query.
func resolveSources(
	ctx context.Context,
	opts Options,
	inputs command.InputSet,
	accept func(valueobject.Language) bool,
) ([]source, error) {
	if inputs.Stdin {
		reader := opts.Stdin
		if reader == nil {
			reader = os.Stdin
		}
		content, err := io.ReadAll(reader)
		if err != nil {
			return nil, domain.NewReadError(service.StdinSourceLabel, err)
		}
		return []source{{name: service.StdinSourceLabel, stdin: true, content: content}}, nil
	}

	if opts.Walker == nil {
		return nil, errors.New("no source walker configured")
	}
	files, err := opts.Walker.Walk(ctx, inputs.Paths)
	if err != nil {
		return nil, err
	}

	sources := make([]source, 0, len(files))
	for _, f := range files {
		if accept != nil && !accept(f.Language) {
			continue
		}
		sources = append(sources, source{name: f.Path, language: f.Language})
	}
	slogger.Debug(ctx, "inputs resolved", slogger.Fields{
		"walked":   len(files),
		"selected": len(sources),
	})
	return sources, nil
}

func sourceNames(sources []source) []string {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.name
	}
	return names
}

// runSources applies fn to every source with bounded concurrency and splits the
// results into values, in input order, and failures.
func runSources[T any](
	ctx context.Context,
	sources []source,
	opts Options,
	failFast bool,
	fn func(ctx context.Context, src source) (T, error),
) ([]T, []dto.InputFailure, dto.BatchStats, error) {
	started := time.Now()
	byName := make(map[string]source, len(sources))
	for _, s := range sources {
		byName[s.name] = s
	}

	results, err := service.RunBatch(ctx, sourceNames(sources), service.BatchOptions{
		Concurrency: opts.Concurrency,
		FailFast:    failFast,
	}, func(ctx context.Context, name string) (T, error) {
		return fn(ctx, byName[name])
	})
	if err != nil {
		return nil, nil, dto.BatchStats{}, err
	}

	summary := service.Summarize(ctx, results, started)
	stats := dto.BatchStats{Succeeded: summary.Succeeded, Failed: summary.Failed, Duration: summary.Duration}

	values := make([]T, 0, summary.Succeeded)
	var failures []dto.InputFailure
	for _, r := range results {
		if r.Err != nil {
			failures = append(failures, dto.NewInputFailure(r.Input, r.Err))
			continue
		}
		values = append(values, r.Value)
	}
	if len(failures) > 0 {
		return values, failures, stats, fmt.Errorf("%w: %d of %d", ErrInputsFailed, len(failures), len(results))
	}
	return values, nil, stats, nil
}

func languageSet(languages ...valueobject.Language) func(valueobject.Language) bool {
	names := make(map[string]bool, len(languages))
	for _, l := range languages {
		names[l.Name()] = true
	}
	return func(l valueobject.Language) bool { return names[l.Name()] }
}
