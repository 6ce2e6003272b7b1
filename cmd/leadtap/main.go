package main

import (
	"os"

	"github.com/spf13/cobra"

	_ "github.com/rendis/leadtap/internal/engine/sites/directory"
	_ "github.com/rendis/leadtap/internal/engine/sites/gmaps"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "leadtap",
		Short:   "Scrape business leads from Google Maps and directory pages",
		Version: version,
		Long: `leadtap drives a browser tab you already positioned on a Google Maps search
(or a business directory page), collects the listed businesses, deduplicates them
and keeps them in a local database you can export as CSV, JSON or GeoJSON.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newScrapeCmd(),
		newExportCmd(),
		newHostCmd(),
		newClearCmd(),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
