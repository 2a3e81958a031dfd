package main

import (
	"github.com/spf13/cobra"

	"ingest/internal/ingress"
	"ingest/internal/recipe"
)

// fileCommand ingests a JSON batch file: an array of records, a single
// record object, or an envelope object holding the record array.
func fileCommand() *cobra.Command {
	var flags uploadFlags

	cmd := &cobra.Command{
		Use:   "file <path>...",
		Short: "Upload recipes from JSON batch files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw []recipe.Raw
			for _, path := range args {
				recs, err := ingress.ReadBatchFile(path)
				if err != nil {
					return err
				}
				raw = append(raw, recs...)
			}
			return runPipeline(cmd.Context(), flags, raw, recipe.SourceFile)
		},
	}

	flags.register(cmd)
	return cmd
}
