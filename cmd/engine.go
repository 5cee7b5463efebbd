package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/trusted-programming/tree-grepper/internal/adapter/outbound/blobstore"
	"github.com/trusted-programming/tree-grepper/internal/adapter/outbound/cache"
	"github.com/trusted-programming/tree-grepper/internal/adapter/outbound/filefilter"
	"github.com/trusted-programming/tree-grepper/internal/adapter/outbound/treesitter"
	"github.com/trusted-programming/tree-grepper/internal/application/command"
	"github.com/trusted-programming/tree-grepper/internal/application/common/slogger"
	"github.com/trusted-programming/tree-grepper/internal/application/handler"
	"github.com/trusted-programming/tree-grepper/internal/application/service"
	"github.com/trusted-programming/tree-grepper/internal/port/outbound"
)

// engine bundles the services one invocation runs on.
type engine struct {
	provider  *cache.QueryCache
	metrics   *service.EngineMetrics
	telemetry *telemetry
	extractor *service.MatchExtractor
	rewriter  *service.SubstitutionEngine
	markup    *service.MarkupEngine
}

func (c *cli) newEngine() (*engine, error) {
	tel := newTelemetry(c.metrics)
	metrics, err := service.NewEngineMetricsWithProvider(tel.provider)
	if err != nil {
		slogger.WarnNoCtx("engine metrics disabled", slogger.Fields{"error": err.Error()})
		metrics = nil
	}

	provider := cache.NewQueryCache(treesitter.NewProvider(), c.cfg.Engine.QueryCacheSize)
	extractor := service.NewMatchExtractor(provider,
		service.WithIgnorePrefix(c.cfg.Engine.IgnorePrefix),
		service.WithExtractorMetrics(metrics),
	)
	return &engine{
		provider:  provider,
		metrics:   metrics,
		telemetry: tel,
		extractor: extractor,
		rewriter: service.NewSubstitutionEngine(extractor,
			service.WithMaxRewriteIterations(c.cfg.Engine.MaxRewriteIterations),
			service.WithRewriteMetrics(metrics),
		),
		markup: service.NewMarkupEngine(extractor,
			service.WithBoundaryGuard(uint32(c.cfg.Markup.Guard)), //nolint:gosec // validated non-negative
			service.WithMarkupMetrics(metrics),
		),
	}, nil
}

// close prints collected metrics when enabled and releases the compiled queries.
func (e *engine) close(cmd *cobra.Command) {
	if err := e.telemetry.report(cmd.Context(), cmd.ErrOrStderr()); err != nil {
		slogger.Warn(cmd.Context(), "metrics report failed", slogger.Fields{"error": err.Error()})
	}
	stats := e.provider.Statistics()
	slogger.DebugNoCtx("query cache released", slogger.Fields{
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"bypassed": stats.Bypassed,
	})
	e.provider.Close()
}

func (c *cli) openStore(ctx context.Context) (outbound.BlobStore, error) {
	return blobstore.Open(ctx, c.cfg.Store)
}

// inputFlags are the source selection flags shared by extract, rewrite and markup.
type inputFlags struct {
	stdin    bool
	noIgnore bool
	hidden   bool
	failFast bool
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.stdin, "stdin", false, "Read a single source from standard input")
	cmd.Flags().BoolVar(&f.noIgnore, "no-ignore", false, "Do not honour .gitignore files")
	cmd.Flags().BoolVar(&f.hidden, "hidden", false, "Include hidden files and directories")
	cmd.Flags().BoolVar(&f.failFast, "fail-fast", false, "Stop at the first failing input")
}

func (f *inputFlags) inputSet(paths []string) command.InputSet {
	return command.InputSet{Paths: paths, Stdin: f.stdin}
}

func (c *cli) handlerOptions(cmd *cobra.Command, f *inputFlags) handler.Options {
	return handler.Options{
		Walker: filefilter.NewWalker(
			filefilter.WithGitignore(!f.noIgnore),
			filefilter.WithHidden(f.hidden),
		),
		Stdin:       cmd.InOrStdin(),
		Concurrency: c.cfg.Worker.Concurrency,
	}
}

// splitQueryArgs pairs each -q language with the positional argument that follows it.
// pflag keeps positional arguments in order, so the first len(languages) arguments
// are the query patterns and the rest are paths.
func splitQueryArgs(languages, args []string) ([]command.QuerySpec, []string, error) {
	if len(languages) == 0 {
		return nil, nil, fmt.Errorf("at least one -q LANGUAGE QUERY pair is required")
	}
	if len(args) < len(languages) {
		return nil, nil, fmt.Errorf("-q %s is missing its query", languages[len(args)])
	}
	queries := make([]command.QuerySpec, len(languages))
	for i, lang := range languages {
		queries[i] = command.QuerySpec{Language: lang, Pattern: args[i]}
	}
	return queries, args[len(languages):], nil
}
