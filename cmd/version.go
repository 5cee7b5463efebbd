package cmd

import (
	"github.com/spf13/cobra"
	"github.com/trusted-programming/tree-grepper/internal/version"
)

// Build variables injected with -ldflags "-X github.com/trusted-programming/tree-grepper/cmd.Version=...".
//
//nolint:gochecknoglobals // set by the linker
var (
	Version   string
	Commit    string
	BuildTime string
)

func newVersionCmd() *cobra.Command {
	var short, asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			syncBuildVars()
			return version.Get().Write(cmd.OutOrStdout(), short, asJSON)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Show only the version number")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Show version information as JSON")
	return cmd
}

// syncBuildVars forwards linker-injected values to the version package.
func syncBuildVars() {
	if Version != "" || Commit != "" || BuildTime != "" {
		version.SetBuildVars(Version, Commit, BuildTime)
	}
}
