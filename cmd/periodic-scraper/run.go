package main

import (
	"context"
	"fmt"
	"io"

	scraper "github.com/Vaibhav-Sahai/periodic-scraper"
	"github.com/Vaibhav-Sahai/periodic-scraper/articles"
	"github.com/Vaibhav-Sahai/periodic-scraper/config"
	"github.com/Vaibhav-Sahai/periodic-scraper/discovery"
	"github.com/Vaibhav-Sahai/periodic-scraper/logger"
	"github.com/spf13/cobra"
)

func newRunCommand(opts *globalOptions) *cobra.Command {
	ro := runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrape every configured source once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, settings, err := loadConfig(opts, ro)
			if err != nil {
				return err
			}

			log, err := newLogger(opts, settings)
			if err != nil {
				return err
			}
			defer log.Sync()

			_, err = scrapeOnce(cmd.Context(), cfg, settings, log, cmd.OutOrStdout())
			return err
		},
	}

	cmd.Flags().StringVarP(&ro.source, "source", "s", "", "scrape only the named source")
	cmd.Flags().IntVar(&ro.saveInterval, "save-interval", -1, "save after this many articles (0 saves only at the end)")
	cmd.Flags().StringVarP(&ro.output, "output", "o", "", "output file, overriding settings.output_path")

	return cmd
}

// scrapeOnce runs every source in cfg once and prints the summary to out.
// Per-article and per-source failures are reported in the summary; only
// configuration and output errors are returned.
func scrapeOnce(ctx context.Context, cfg *config.FileConfig, settings config.RunSettings, log logger.Logger, out io.Writer) (*scraper.Summary, error) {
	store, err := articles.Open(settings.OutputPath, settings.OutputFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to open output: %w", err)
	}
	defer store.Close()

	log.Info("Writing articles",
		logger.String("path", settings.OutputPath),
		logger.String("format", settings.OutputFormat),
	)

	fetcher := discovery.NewHTTPFetcher(settings.RequestTimeout, settings.MaxRetries, log)
	orchestrator := scraper.NewOrchestrator(fetcher, store, settings, log)

	summary, err := orchestrator.Run(ctx, cfg.Sources, cfg.CommonConfigs)
	if summary != nil {
		summary.Render(out)
		if summary.Failed() {
			log.Warn("Run saved no articles and some sources failed",
				logger.Int("sources", len(summary.Sources)),
			)
		}
	}
	return summary, err
}
