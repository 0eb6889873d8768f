package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/setoracle/internal/storage"
)

var predictionsLimit int

var predictionsCmd = &cobra.Command{
	Use:   "predictions <artist name>",
	Short: "List previously generated setlists for an artist",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := storage.New(ctx, cfg.Storage.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		artist := strings.Join(args, " ")
		// Predictions made from a CSV file may have no stored rows to resolve against.
		if name, err := store.ResolveArtist(ctx, artist); err == nil {
			artist = name
		}

		preds, err := store.ListPredictions(ctx, artist, predictionsLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(preds) == 0 {
			fmt.Fprintln(out, "No predictions stored.")
			return nil
		}
		for i := range preds {
			fmt.Fprintf(out, "[%s] %s\n", preds[i].GeneratedAt.Local().Format("2006-01-02 15:04"), preds[i].ID)
			printPrediction(out, &preds[i])
			fmt.Fprintln(out)
		}
		return nil
	},
}

func init() {
	predictionsCmd.Flags().IntVar(&predictionsLimit, "limit", 5, "maximum number of predictions to show; 0 shows all")
	rootCmd.AddCommand(predictionsCmd)
}
