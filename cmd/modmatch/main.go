package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "modmatch",
	Short: "Resolve blocked mod downloads against local files",
	Long: `Modmatch checks which externally-distributed mods from a modpack manifest
are already present on disk, by content hash rather than file name.

Point it at a manifest of blocked mods (expected name + hash) and it scans
your download and mods directories, hashing candidate files concurrently.
In resolve mode it keeps watching those directories and reports each mod
the moment its file lands.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: false,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "Set log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config file (default ~/.config/modmatch/config.toml)")
}

// newLogger builds a logger from the global --log-level flag.
func newLogger(cmd *cobra.Command) *logrus.Logger {
	logLevel, _ := cmd.Flags().GetString("log-level")

	logger := logrus.New()
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return logger
}
