// Command ingest validates recipe records from a dataset, a JSON batch
// file, or a live page scrape, and uploads the new ones to a document
// store.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ingest/internal/config"
	"ingest/internal/docstore"
	_ "ingest/internal/docstore/all"
	"ingest/internal/metrics"
	"ingest/internal/metrics/datadog"
	"ingest/internal/pipeline"
	"ingest/internal/recipe"
)

var (
	cfgFile        string
	envName        string
	verbose        bool
	metricsBackend string

	// closeMetrics shuts down the metrics backend after the command ran;
	// nil when metrics are disabled.
	closeMetrics func()

	rootCmd = &cobra.Command{
		Use:           "ingest",
		Short:         "Collect, validate and upload recipe records",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initMetrics()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if closeMetrics != nil {
				closeMetrics()
			}
		},
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file")
	rootCmd.PersistentFlags().StringVar(&envName, "env", "dev", "environment from the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().StringVar(&metricsBackend, "metrics-backend", "", "metrics backend (datadog or none)")

	rootCmd.AddCommand(localCommand())
	rootCmd.AddCommand(fileCommand())
	rootCmd.AddCommand(urlCommand())
	rootCmd.AddCommand(statsCommand())
}

func initMetrics() {
	name := metricsBackend
	if name == "" {
		name = os.Getenv("METRICS_BACKEND")
	}
	switch name {
	case "datadog":
		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			JobName:    "ingest",
			Tags:       datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS")),
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			log.Printf("metrics: datadog init failed: %v; metrics disabled", err)
			return
		}
		metrics.SetBackend(b)
		closeMetrics = func() {
			if err := b.Close(); err != nil {
				log.Printf("metrics: close/flush error: %v", err)
			}
		}
	case "", "none":
		if verbose {
			log.Printf("metrics: disabled")
		}
	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", name)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	for _, issue := range config.Validate(cfg) {
		switch issue.Severity {
		case config.SeverityError:
			return nil, fmt.Errorf("config: %s: %s", issue.Path, issue.Message)
		default:
			log.Printf("config: warning: %s: %s", issue.Path, issue.Message)
		}
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg *config.Config) (docstore.Store, error) {
	env, err := cfg.Env(envName)
	if err != nil {
		return nil, err
	}
	return docstore.New(ctx, docstore.Config{
		Kind:       env.Kind,
		DSN:        env.DSN,
		Collection: env.Collection,
	})
}

// uploadFlags are the options shared by every command that ends in an
// upload run.
type uploadFlags struct {
	dryRun          bool
	includeUploaded bool
	batchSize       int
	workers         int
	reportPath      string
}

func (f *uploadFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "validate and dedup but never touch the store")
	cmd.Flags().BoolVar(&f.includeUploaded, "include-uploaded", false, "upload records even when already present")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", 0, "records per upload batch (default from config)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "concurrent upload batches (default from config)")
	cmd.Flags().StringVar(&f.reportPath, "report", "", "write the run report as JSON to this file")
}

// runPipeline wires config, store and flags into one pipeline run and
// prints the report.
func runPipeline(ctx context.Context, flags uploadFlags, raw []recipe.Raw, source recipe.Source) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	batchSize := flags.batchSize
	if batchSize <= 0 {
		batchSize = cfg.Upload.BatchSize
	}
	workers := flags.workers
	if workers <= 0 {
		workers = cfg.Upload.Workers
	}
	includeUploaded := flags.includeUploaded
	if !cfg.Upload.SkipExisting {
		includeUploaded = true
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	report, err := pipeline.Run(ctx, pipeline.Options{
		Raw:             raw,
		Source:          source,
		Store:           store,
		BatchSize:       batchSize,
		Workers:         workers,
		DryRun:          flags.dryRun,
		IncludeUploaded: includeUploaded,
		Verbose:         verbose,
	})
	if err != nil {
		return err
	}

	report.Print(os.Stdout)
	if flags.reportPath != "" {
		if err := report.WriteFile(flags.reportPath); err != nil {
			return err
		}
		if verbose {
			log.Printf("report written to %s", flags.reportPath)
		}
	}
	return nil
}
