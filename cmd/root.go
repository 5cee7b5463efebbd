// Package cmd provides the command-line interface of tree-grepper.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/trusted-programming/tree-grepper/internal/application/common/logging"
	"github.com/trusted-programming/tree-grepper/internal/application/common/slogger"
	"github.com/trusted-programming/tree-grepper/internal/config"
	"github.com/trusted-programming/tree-grepper/internal/version"
)

const (
	configName = "tree-grepper"
	envPrefix  = "TREEGREPPER"
)

// cli carries the state shared by every subcommand of one invocation.
type cli struct {
	cfgFile string
	viper   *viper.Viper
	cfg     *config.Config
	metrics bool
}

// newRootCmd builds the full command tree.
func newRootCmd() *cobra.Command {
	syncBuildVars()
	state := &cli{viper: viper.New()}

	root := &cobra.Command{
		Use:   "tree-grepper",
		Short: "Query, rewrite and annotate source code with tree-sitter",
		Long: `tree-grepper runs tree-sitter queries over source files.

It can:
- report the named captures of queries in several output formats
- rewrite sources with #sub! substitution directives
- annotate sources with markup profiles and store item artifacts`,
		Version:       version.Get().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := state.initConfig(cmd); err != nil {
				return err
			}
			cmd.SetContext(logging.WithNewCorrelationID(cmd.Context()))
			return nil
		},
	}
	root.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	flags := root.PersistentFlags()
	flags.StringVar(&state.cfgFile, "config", "",
		"config file (default: tree-grepper.yaml in ./configs, . or $HOME/.config/tree-grepper)")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "json", "Log format (json, text)")
	flags.Int("concurrency", 0, "Files processed in parallel (default: worker.concurrency)")
	flags.BoolVar(&state.metrics, "metrics", false, "Print engine metrics to stderr when done")

	root.AddCommand(
		newExtractCmd(state),
		newRewriteCmd(state),
		newMarkupCmd(state),
		newStoreCmd(state),
		newLanguagesCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (c *cli) initConfig(cmd *cobra.Command) error {
	v := c.viper
	config.SetDefaults(v)

	if c.cfgFile != "" {
		v.SetConfigFile(c.cfgFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/tree-grepper")
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(config.EnvKeyReplacer())
	v.AutomaticEnv()

	for key, flag := range map[string]string{
		"log.level":          "log-level",
		"log.format":         "log-format",
		"worker.concurrency": "concurrency",
	} {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding %s flag: %w", flag, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	if err := slogger.Configure(cfg.Log.LoggingConfig()); err != nil {
		return fmt.Errorf("configuring logger: %w", err)
	}
	c.cfg = cfg

	slogger.Debug(cmd.Context(), "configuration loaded", slogger.Fields{
		"config_file": v.ConfigFileUsed(),
		"store":       cfg.Store.Backend,
		"concurrency": cfg.Worker.Concurrency,
	})
	return nil
}
