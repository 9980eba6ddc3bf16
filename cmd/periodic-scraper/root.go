package main

import (
	"fmt"
	"time"

	"github.com/Vaibhav-Sahai/periodic-scraper/config"
	"github.com/Vaibhav-Sahai/periodic-scraper/logger"
	"github.com/spf13/cobra"
)

// globalOptions are the flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "periodic-scraper",
		Short:         "Scrape news articles from configured sites into CSV or SQLite",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !logger.ValidLevel(opts.logLevel) {
				return fmt.Errorf("invalid log level %q (use debug, info, warn or error)", opts.logLevel)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c",
		getEnv("SCRAPER_CONFIG", "config.yaml"), "path to the YAML configuration (SCRAPER_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level",
		getEnv("SCRAPER_LOG_LEVEL", "info"), "log level: debug, info, warn, error (SCRAPER_LOG_LEVEL)")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newScheduleCommand(opts))
	cmd.AddCommand(newSourcesCommand(opts))

	return cmd
}

// runOptions narrow or override the configuration for one invocation.
type runOptions struct {
	source       string
	saveInterval int
	output       string
}

// loadConfig reads the configuration and applies command-line overrides.
func loadConfig(opts *globalOptions, ro runOptions) (*config.FileConfig, config.RunSettings, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, config.RunSettings{}, err
	}

	if ro.source != "" {
		if err := cfg.Only(ro.source); err != nil {
			return nil, config.RunSettings{}, err
		}
	}

	settings, err := cfg.Settings.Resolve(time.Now())
	if err != nil {
		return nil, config.RunSettings{}, err
	}

	if ro.saveInterval >= 0 {
		settings.SaveInterval = ro.saveInterval
	}
	if ro.output != "" {
		settings.OutputPath = ro.output
		if cfg.Settings.OutputFormat == "" {
			settings.OutputFormat = config.InferFormat(ro.output)
		}
	}

	return cfg, settings, nil
}

func newLogger(opts *globalOptions, settings config.RunSettings) (logger.Logger, error) {
	cfg := logger.Config{Level: opts.logLevel, Console: true}
	if settings.LogFile != "" {
		cfg.OutputPaths = []string{"stderr", settings.LogFile}
	}
	return logger.New(cfg)
}
