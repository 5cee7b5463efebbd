package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/trusted-programming/tree-grepper/internal/application/command"
	"github.com/trusted-programming/tree-grepper/internal/application/dto"
	"github.com/trusted-programming/tree-grepper/internal/application/handler"
)

func newExtractCmd(state *cli) *cobra.Command {
	var (
		languages []string
		format    string
		inputs    inputFlags
	)

	cmd := &cobra.Command{
		Use:   "extract -q LANGUAGE QUERY [-q LANGUAGE QUERY]... [PATH...]",
		Short: "Report the named captures of queries",
		Long: `Run one or more tree-sitter queries over the given paths and report every
named capture. Captures whose name starts with the ignore prefix (default "_")
are hidden. Each query applies to files of its own language.`,
		Example: `  tree-grepper extract -q elm '(import_clause (upper_case_qid)@import)' src
  cat Main.elm | tree-grepper extract -q elm '(import_clause (upper_case_qid)@import)' --stdin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, err := dto.ParseOutputFormat(format)
			if err != nil {
				return err
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
			h := handler.NewExtractHandler(eng.extractor, state.handlerOptions(cmd, &inputs))
			report, runErr := h.Handle(cmd.Context(), command.ExtractCommand{
				Queries:  queries,
				Inputs:   inputs.inputSet(paths),
				FailFast: inputs.failFast,
			})
			if report != nil {
				if err := dto.WriteExtracted(cmd.OutOrStdout(), outputFormat, report.Files); err != nil {
					return err
				}
			}
			return runErr
		},
	}

	formats := make([]string, 0, len(dto.OutputFormats()))
	for _, f := range dto.OutputFormats() {
		formats = append(formats, string(f))
	}
	cmd.Flags().StringArrayVarP(&languages, "query", "q", nil,
		"Language of a query; the query itself is the next argument")
	cmd.Flags().StringVarP(&format, "format", "f", string(dto.FormatLines),
		"Output format ("+strings.Join(formats, ", ")+")")
	inputs.register(cmd)
	return cmd
}
