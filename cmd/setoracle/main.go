package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/rewired-gh/setoracle/internal/config"
	"github.com/rewired-gh/setoracle/internal/logger"
)

var (
	cfg        *config.Config
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "setoracle",
	Short: "Predict a performer's next setlist from their show history",
	Long: "Fetches a performer's complete show history from setlist.fm, flattens it into one row per song, " +
		"and fits a first-order Markov model over song transitions to generate a likely setlist.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		if err := c.Validate(); err != nil {
			return err
		}
		cfg = c

		if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
			return eris.Wrap(err, "init logger")
		}
		if configPath != "" {
			logger.Info("Configuration loaded from %s", configPath)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to configuration file (optional)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
