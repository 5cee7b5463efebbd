package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/trusted-programming/tree-grepper/internal/application/command"
	"github.com/trusted-programming/tree-grepper/internal/application/dto"
	"github.com/trusted-programming/tree-grepper/internal/application/handler"
	"github.com/trusted-programming/tree-grepper/internal/port/outbound"
)

func newMarkupCmd(state *cli) *cobra.Command {
	var (
		profile string
		split   bool
		inputs  inputFlags
	)

	cmd := &cobra.Command{
		Use:   "markup [--profile FILE] [--split] [PATH...]",
		Short: "Annotate sources with a markup profile",
		Long: `Annotate sources with the categories of a markup profile. Wrap categories
surround their captures with <tag>...</tag>, delete categories remove them and
boundary categories emit an empty tag pair. Without --profile the embedded Rust
profile is used.

With --split every top-level item is annotated on its own and stored in the
configured blob store under <namespace>/<source>/<clean|unsafe>/<sha256>.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if profile == "" {
				profile = state.cfg.Markup.Profile
			}
			eng, err := state.newEngine()
			if err != nil {
				return err
			}
			defer eng.close(cmd)

			var store outbound.BlobStore
			if split {
				store, err = state.openStore(cmd.Context())
				if err != nil {
					return err
				}
				defer store.Close()
			}

			h := handler.NewMarkupHandler(eng.markup, store, eng.metrics, state.handlerOptions(cmd, &inputs))
			report, runErr := h.Handle(cmd.Context(), command.MarkupCommand{
				ProfilePath: profile,
				Inputs:      inputs.inputSet(args),
				Split:       split,
				FailFast:    inputs.failFast,
			})
			if report != nil {
				if err := writeMarkupReport(cmd.OutOrStdout(), report, split); err != nil {
					return err
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&profile, "profile", "p", "", "Markup profile file (default: markup.profile or the embedded Rust profile)")
	cmd.Flags().BoolVar(&split, "split", false, "Store one artifact per top-level item")
	inputs.register(cmd)
	return cmd
}

func writeMarkupReport(w io.Writer, report *dto.MarkupReport, split bool) error {
	for _, src := range report.Sources {
		var err error
		if split {
			_, err = fmt.Fprintf(w, "%s: items=%d written=%d skipped=%d replaced=%d\n",
				src.Input, src.Items, src.Written, src.Skipped, src.Replaced)
		} else {
			_, err = io.WriteString(w, src.Output)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
