package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/setoracle/internal/logger"
	"github.com/rewired-gh/setoracle/internal/storage"
)

var exportCSVPath string

var exportCmd = &cobra.Command{
	Use:   "export <artist name>",
	Short: "Write an artist's stored rows to a CSV file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		artist := strings.Join(args, " ")

		store, err := storage.New(ctx, cfg.Storage.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		artist, err = store.ResolveArtist(ctx, artist)
		if err != nil {
			return err
		}
		rows, err := store.LoadRows(ctx, artist)
		if err != nil {
			return err
		}
		if err := storage.ExportCSV(exportCSVPath, rows); err != nil {
			return err
		}

		logger.Info("Exported %d rows for %s", len(rows), artist)
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d rows to %s\n", len(rows), exportCSVPath)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "output CSV path (required)")
	_ = exportCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(exportCmd)
}
