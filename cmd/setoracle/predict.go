package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/rewired-gh/setoracle/internal/logger"
	"github.com/rewired-gh/setoracle/internal/markov"
	"github.com/rewired-gh/setoracle/internal/models"
	"github.com/rewired-gh/setoracle/internal/storage"
	"github.com/rewired-gh/setoracle/internal/telegram"
)

var (
	predictCSVPath string
	predictLength  int
	predictSeed    int64
	predictNotify  bool
)

var predictCmd = &cobra.Command{
	Use:   "predict <artist name>",
	Short: "Generate a setlist from an artist's stored show history",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		artist := strings.Join(args, " ")

		length := cfg.Model.Length
		if cmd.Flags().Changed("length") {
			length = predictLength
		}
		seed := cfg.Model.Seed
		if cmd.Flags().Changed("seed") {
			seed = predictSeed
		}

		store, err := storage.New(ctx, cfg.Storage.DBPath)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("Failed to close storage: %v", err)
			}
		}()

		var rows []models.FlatRow
		if predictCSVPath != "" {
			rows, err = storage.ImportCSV(predictCSVPath)
		} else {
			artist, rows, err = loadStoredRows(ctx, cmd.OutOrStdout(), store, artist)
		}
		if err != nil {
			return err
		}

		p, err := predict(rows, artist, length, seed, time.Now())
		if err != nil {
			return err
		}
		if err := store.SavePrediction(ctx, p); err != nil {
			return err
		}
		printPrediction(cmd.OutOrStdout(), p)

		if predictNotify {
			return notify(ctx, p)
		}
		return nil
	},
}

func init() {
	predictCmd.Flags().StringVar(&predictCSVPath, "csv", "", "read rows from this CSV file instead of the database")
	predictCmd.Flags().IntVar(&predictLength, "length", 10, "number of songs to generate, opener included")
	predictCmd.Flags().Int64Var(&predictSeed, "seed", 0, "random seed; 0 picks one and reports it")
	predictCmd.Flags().BoolVar(&predictNotify, "notify", false, "send the result to the configured Telegram chat")
	rootCmd.AddCommand(predictCmd)
}

// predict builds the transition model over rows and generates one sequence
// that starts at the most common opener.
func predict(rows []models.FlatRow, artist string, length int, seed int64, now time.Time) (*models.Prediction, error) {
	table := markov.Build(rows)
	if err := table.Validate(); err != nil {
		return nil, eris.Wrap(err, "invalid transition table")
	}

	opener, err := markov.MostCommonOpener(rows)
	if err != nil {
		return nil, err
	}

	if seed == 0 {
		seed = rand.Int64N(1<<53) + 1
		logger.Info("Using random seed %d", seed)
	}

	songs, err := markov.Generate(table, opener, length, markov.NewSource(seed))
	if err != nil {
		return nil, err
	}

	return &models.Prediction{
		ID:          uuid.New().String(),
		ArtistName:  artist,
		Opener:      opener,
		Songs:       songs,
		Seed:        seed,
		ShowCount:   markov.ShowCount(rows),
		GeneratedAt: now,
	}, nil
}

// loadStoredRows resolves query to a stored artist and loads the rows of its
// latest fetch, reporting which run is used.
func loadStoredRows(ctx context.Context, out io.Writer, store *storage.Store, query string) (string, []models.FlatRow, error) {
	artist, err := store.ResolveArtist(ctx, query)
	if err != nil {
		return "", nil, err
	}
	run, err := store.LatestRun(ctx, artist)
	if err != nil {
		return "", nil, err
	}
	rows, err := store.LoadRows(ctx, artist)
	if err != nil {
		return "", nil, err
	}
	fmt.Fprintf(out, "Using %d songs for %s from run %s (fetched %s)\n",
		len(rows), artist, run.ID, run.CreatedAt.Local().Format("2006-01-02 15:04"))
	return artist, rows, nil
}

func printPrediction(out io.Writer, p *models.Prediction) {
	fmt.Fprintf(out, "Predicted setlist for %s (%d shows, seed %d):\n", p.ArtistName, p.ShowCount, p.Seed)
	for i, song := range p.Songs {
		fmt.Fprintf(out, "%d. %s\n", i+1, song)
	}
}

func notify(ctx context.Context, p *models.Prediction) error {
	if !cfg.Telegram.Enabled {
		logger.Warn("Telegram notifications disabled, skipping --notify")
		return nil
	}
	tg, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
	if err != nil {
		return err
	}
	return tg.Send(ctx, p)
}
