package main

import (
	"github.com/spf13/cobra"

	"github.com/rendis/leadtap/internal/engine/storage"
)

const defaultDBPath = "leadtap.db"

func addDBFlag(cmd *cobra.Command, dbPath *string) {
	cmd.Flags().StringVar(dbPath, "db", envOr("LEADTAP_DB", defaultDBPath), "Path to the leadtap database, defaults to LEADTAP_DB env var")
}

func openRepository(dbPath string) (*storage.Repository, error) {
	db, err := storage.OpenSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	return storage.NewRepository(db), nil
}
