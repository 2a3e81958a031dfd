package main

import (
	"os"

	"github.com/spf13/cobra"

	"ingest/internal/stats"
)

// statsCommand summarizes the corpus already uploaded to the configured
// store.
func statsCommand() *cobra.Command {
	var (
		pageSize int
		topN     int
		jsonPath string
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the uploaded recipe corpus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			summary, err := stats.Collect(cmd.Context(), store, pageSize)
			if err != nil {
				return err
			}

			summary.Print(os.Stdout, topN)
			if jsonPath != "" {
				return summary.WriteFile(jsonPath)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&pageSize, "page-size", 200, "documents fetched per store read")
	cmd.Flags().IntVar(&topN, "top", 10, "entries shown per distribution")
	cmd.Flags().StringVar(&jsonPath, "json", "", "also write the full summary as JSON to this file")
	return cmd
}
