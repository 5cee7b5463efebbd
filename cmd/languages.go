package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/trusted-programming/tree-grepper/internal/adapter/outbound/treesitter"
)

func newLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List the supported languages, their aliases and file extensions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "LANGUAGE\tALIASES\tEXTENSIONS")
			for _, lang := range treesitter.NewProvider().Languages() {
				fmt.Fprintf(w, "%s\t%s\t%s\n",
					lang.Name(),
					strings.Join(lang.Aliases(), ","),
					strings.Join(lang.Extensions(), ","),
				)
			}
			return w.Flush()
		},
	}
}
