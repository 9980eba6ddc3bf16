package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/Vaibhav-Sahai/periodic-scraper/profile"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newSourcesCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Inspect configured sources",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configured sources with their resolved profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := resolveSources(opts)
			if err != nil {
				return err
			}
			renderSources(cmd.OutOrStdout(), profiles)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check the configuration without fetching anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := resolveSources(opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration OK: %d sources\n", len(profiles))
			return nil
		},
	})

	return cmd
}

// resolveSources loads the configuration and resolves every source the way a
// run would.
func resolveSources(opts *globalOptions) ([]profile.SourceProfile, error) {
	cfg, settings, err := loadConfig(opts, runOptions{saveInterval: -1})
	if err != nil {
		return nil, err
	}
	return profile.NewResolver(cfg.CommonConfigs, settings.MaxArticlesPerSource).ResolveAll(cfg.Sources)
}

func renderSources(w io.Writer, profiles []profile.SourceProfile) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Base URL", "Discovery", "Max Articles", "Article Selectors", "Date Formats"})

	for _, p := range profiles {
		t.AppendRow(table.Row{
			p.Name,
			p.BaseURL,
			p.Discovery,
			p.MaxArticles,
			strings.Join(p.ArticleSelectors, ", "),
			strings.Join(p.DateFormats, ", "),
		})
	}

	t.Render()
}
