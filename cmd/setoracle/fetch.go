package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/rewired-gh/setoracle/internal/logger"
	"github.com/rewired-gh/setoracle/internal/markov"
	"github.com/rewired-gh/setoracle/internal/normalize"
	"github.com/rewired-gh/setoracle/internal/resolver"
	"github.com/rewired-gh/setoracle/internal/setlistfm"
	"github.com/rewired-gh/setoracle/internal/storage"
)

var fetchCSVPath string

var fetchCmd = &cobra.Command{
	Use:   "fetch <artist name>",
	Short: "Resolve an artist and store their complete show history",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		csvPath := cfg.Storage.CSVPath
		if fetchCSVPath != "" {
			csvPath = fetchCSVPath
		}

		client := setlistfm.NewClient(cfg.ClientConfig())
		sel := newConsoleSelector(cmd.InOrStdin(), cmd.OutOrStdout())
		return runFetch(ctx, cmd.OutOrStdout(), client, sel, strings.Join(args, " "), csvPath)
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchCSVPath, "csv", "", "also export the rows to this CSV file")
	rootCmd.AddCommand(fetchCmd)
}

// catalog is the part of the setlist.fm client the fetch pipeline needs.
type catalog interface {
	resolver.Searcher
	setlistfm.PageFetcher
}

func runFetch(ctx context.Context, out io.Writer, client catalog, sel resolver.Selector, name, csvPath string) error {
	artist, err := resolver.New(client, sel, cfg.Setlistfm.MaxCandidates).Resolve(ctx, name)
	if errors.Is(err, resolver.ErrCancelled) {
		fmt.Fprintln(out, "Cancelled.")
		return nil
	}
	if err != nil {
		return err
	}

	pager := setlistfm.NewHistoryPaginator(client, cfg.Setlistfm.PageDelay, setlistfm.Sleep)
	records, err := pager.FetchAll(ctx, artist.ID)
	if err != nil {
		return eris.Wrapf(err, "fetch history for %s", artist.Name)
	}

	rows := normalize.FlattenAll(records)
	logger.Info("Flattened %d shows into %d rows", len(records), len(rows))

	store, err := storage.New(ctx, cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	run, err := store.SaveRows(ctx, artist, rows)
	if err != nil {
		return err
	}

	if csvPath != "" {
		if err := storage.ExportCSV(csvPath, rows); err != nil {
			return err
		}
		logger.Info("Exported rows to %s", csvPath)
	}

	fmt.Fprintf(out, "Stored %d songs from %d shows for %s (run %s)\n",
		len(rows), markov.ShowCount(rows), artist.Name, run.ID)
	fmt.Fprintf(out, "Next: setoracle predict %q\n", artist.Name)
	return nil
}
