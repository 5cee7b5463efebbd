package cmd

import (
	"github.com/spf13/cobra"
	"github.com/trusted-programming/tree-grepper/internal/application/command"
	"github.com/trusted-programming/tree-grepper/internal/application/handler"
)

func newRewriteCmd(state *cli) *cobra.Command {
	var (
		language string
		inPlace  bool
		outDir   string
		inputs   inputFlags
	)

	cmd := &cobra.Command{
		Use:   "rewrite -q LANGUAGE QUERY [PATH...]",
		Short: "Apply #sub! substitution directives",
		Long: `Rewrite sources with the #sub! directives of a query. A directive replaces a
capture with a template in which @name tokens are replaced by the text of the
named capture. The rewritten sources are printed unless --in-place or --out is
given.`,
		Example: `  tree-grepper rewrite -q javascript '(variable_declarator name: (identifier) @n (#sub! @n "renamed"))' app.js
  tree-grepper rewrite -q rust '((identifier) @id (#eq? @id "old") (#sub! @id "new"))' --in-place src`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var languages []string
			if language != "" {
				languages = []string{language}
			}
			queries, paths, err := splitQueryArgs(languages, args)
			if err != nil {
				return err
			}

			eng, err := state.newEngine()
			if err != nil {
				return err
			}
			defer eng.close(cmd)
			h := handler.NewRewriteHandler(eng.provider, eng.rewriter, state.handlerOptions(cmd, &inputs))
			report, runErr := h.Handle(cmd.Context(), command.RewriteCommand{
				Query:    queries[0],
				Inputs:   inputs.inputSet(paths),
				InPlace:  inPlace,
				OutDir:   outDir,
				FailFast: inputs.failFast,
			})
			if report != nil && !inPlace && outDir == "" {
				out := cmd.OutOrStdout()
				for _, src := range report.Sources {
					if _, err := out.Write(src.Source); err != nil {
						return err
					}
				}
			}
			if report != nil && (inPlace || outDir != "") {
				for _, src := range report.Sources {
					if src.WrittenTo != "" {
						cmd.PrintErrf("%s: %d substitutions -> %s\n", src.Input, src.Substitutions, src.WrittenTo)
					}
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&language, "query", "q", "", "Language of the query; the query itself is the next argument")
	cmd.Flags().BoolVarP(&inPlace, "in-place", "i", false, "Overwrite changed files")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Write every result below this directory")
	inputs.register(cmd)
	return cmd
}
