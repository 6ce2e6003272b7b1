package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newClearCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete stored businesses and reset settings to defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepository(dbPath)
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.ClearAll(context.Background()); err != nil {
				return fmt.Errorf("clearing data: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Cleared %s\n", dbPath)
			return nil
		},
	}
	addDBFlag(cmd, &dbPath)
	return cmd
}
