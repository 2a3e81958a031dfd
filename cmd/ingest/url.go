package main

import (
	"log"
	"time"

	"github.com/spf13/cobra"

	"ingest/internal/recipe"
	"ingest/internal/scrape"
)

// urlCommand scrapes recipe pages and ingests the extracted records. A
// page that yields no recipe is logged and skipped so one bad URL never
// sinks the batch.
func urlCommand() *cobra.Command {
	var (
		flags   uploadFlags
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "url <url>...",
		Short: "Scrape recipe pages and upload them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := scrape.NewClient(timeout)

			var raw []recipe.Raw
			for _, u := range args {
				rec, err := scrape.Fetch(cmd.Context(), client, u)
				if err != nil {
					log.Printf("scrape: %v", err)
					continue
				}
				raw = append(raw, rec)
			}
			return runPipeline(cmd.Context(), flags, raw, recipe.SourceScrape)
		},
	}

	flags.register(cmd)
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "per-page fetch timeout")
	return cmd
}
