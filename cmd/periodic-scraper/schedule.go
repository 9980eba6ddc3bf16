package main

import (
	"github.com/Vaibhav-Sahai/periodic-scraper/logger"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

func newScheduleCommand(opts *globalOptions) *cobra.Command {
	ro := runOptions{}
	var spec string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Scrape now and then on a cron schedule until interrupted",
		Long: `Runs a scrape immediately and then on the schedule from settings.schedule
(default "@every 12h"). The configuration is reloaded before every run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			_, settings, err := loadConfig(opts, ro)
			if err != nil {
				return err
			}
			if spec == "" {
				spec = settings.Schedule
			}

			log, err := newLogger(opts, settings)
			if err != nil {
				return err
			}
			defer log.Sync()

			job := func() {
				cfg, settings, err := loadConfig(opts, ro)
				if err != nil {
					log.Error("Skipping scheduled run", logger.Error(err))
					return
				}
				if _, err := scrapeOnce(ctx, cfg, settings, log, cmd.OutOrStdout()); err != nil {
					log.Error("Scheduled run failed", logger.Error(err))
				}
			}

			c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
			if _, err := c.AddFunc(spec, job); err != nil {
				return err
			}

			job()
			if ctx.Err() != nil {
				return nil
			}

			log.Info("Scheduler started", logger.String("schedule", spec))
			c.Start()

			<-ctx.Done()
			log.Info("Scheduler stopping, waiting for the current run")
			<-c.Stop().Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&spec, "every", "", `cron spec, overriding settings.schedule (e.g. "@every 6h", "0 */12 * * *")`)
	cmd.Flags().StringVarP(&ro.source, "source", "s", "", "scrape only the named source")
	cmd.Flags().IntVar(&ro.saveInterval, "save-interval", -1, "save after this many articles (0 saves only at the end)")
	cmd.Flags().StringVarP(&ro.output, "output", "o", "", "output file, overriding settings.output_path")

	return cmd
}
