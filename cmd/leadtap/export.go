package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rendis/leadtap/internal/export"
)

func newExportCmd() *cobra.Command {
	var dbPath, outputPath, format string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored businesses as CSV, JSON or GeoJSON",
		Example: `  leadtap export
  leadtap export --db leads.db -o results.json
  leadtap export -f geojson -o - | jq '.features | length'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, dbPath, outputPath, format)
		},
	}

	addDBFlag(cmd, &dbPath)
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path, - for stdout (default: business-leads.<format> next to the db)")
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "Export format: csv, json, geojson (inferred from --output extension if not set)")
	return cmd
}

func runExport(cmd *cobra.Command, dbPath, outputPath, format string) error {
	if !cmd.Flags().Changed("format") && outputPath != "" && outputPath != "-" {
		if ext := strings.TrimPrefix(filepath.Ext(outputPath), "."); ext != "" {
			format = ext
		}
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return err
	}

	if outputPath == "" {
		outputPath = filepath.Join(filepath.Dir(dbPath), export.DefaultFilename(f))
	}

	repo, err := openRepository(dbPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	records, err := repo.Records(context.Background())
	if err != nil {
		return fmt.Errorf("loading records: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("no businesses found in database")
	}

	if outputPath == "-" {
		return export.Write(os.Stdout, f, records)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	if err := export.Write(out, f, records); err != nil {
		out.Close()
		return fmt.Errorf("writing %s: %w", outputPath, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing output: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Exported %d businesses to %s\n", len(records), outputPath)
	return nil
}
