package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/addityasingh/modmatch/pkg/config"
	"github.com/addityasingh/modmatch/pkg/hashing"
	"github.com/addityasingh/modmatch/pkg/manifest"
	"github.com/addityasingh/modmatch/pkg/pool"
	"github.com/addityasingh/modmatch/pkg/registry"
	"github.com/addityasingh/modmatch/pkg/scanner"
)

var scanCmd = &cobra.Command{
	Use:   "scan <manifest> [dir...]",
	Short: "Run one scan pass and report which blocked mods are present",
	Long: `Scan hashes candidate files in the given directories (plus the configured
defaults) once, with no watching, and reports the match state of every
blocked mod. The exit status is zero only when every mod was found.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

var (
	scanJSON          bool
	scanFiles         []string
	scanNoDefaultDirs bool
)

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Emit machine-readable JSON instead of a table")
	scanCmd.Flags().StringArrayVarP(&scanFiles, "file", "f", nil, "Explicit file to hash regardless of name (repeatable)")
	scanCmd.Flags().BoolVar(&scanNoDefaultDirs, "no-default-dirs", false, "Scan only the directories given on the command line")
}

// scanResult is the JSON shape of a one-shot scan.
type scanResult struct {
	AllMatched bool          `json:"all_matched"`
	Mods       []scanModJSON `json:"mods"`
	Stats      scanner.Stats `json:"stats"`
}

type scanModJSON struct {
	Name      string `json:"name"`
	Hash      string `json:"hash"`
	URL       string `json:"url,omitempty"`
	Matched   bool   `json:"matched"`
	LocalPath string `json:"local_path,omitempty"`
}

func runScan(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)
	configPath, _ := cmd.Flags().GetString("config")

	cfg, _, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	m, err := manifest.Load(args[0])
	if err != nil {
		return err
	}

	hasher, err := hashing.NewComputer(m.Algorithm)
	if err != nil {
		return err
	}

	reg := registry.New(m.Entries(), logger)
	p := pool.New(cfg.Scan.Concurrency, logger)
	coord, err := scanner.New(scanner.Config{
		Registry: reg,
		Pool:     p,
		Hasher:   hasher,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("creating scan coordinator: %w", err)
	}

	dirs := args[1:]
	if !scanNoDefaultDirs {
		dirs = append(cfg.WatchDirs(), dirs...)
	}

	ctx := context.Background()
	for _, dir := range dirs {
		coord.AddDirectory(ctx, dir)
	}
	coord.SubmitFiles(ctx, scanFiles)
	p.Wait()

	mods := reg.Snapshot()
	if scanJSON {
		if err := writeScanJSON(os.Stdout, reg.AllMatched(), mods, coord.Stats()); err != nil {
			return err
		}
	} else {
		renderModsTable(os.Stdout, mods)
		renderSummary(os.Stdout, mods, coord.Stats())
	}

	if !reg.AllMatched() {
		return fmt.Errorf("%d of %d blocked mods not found locally", reg.Len()-reg.MatchedCount(), reg.Len())
	}
	return nil
}

func writeScanJSON(w io.Writer, allMatched bool, mods []registry.BlockedMod, stats scanner.Stats) error {
	result := scanResult{
		AllMatched: allMatched,
		Mods:       make([]scanModJSON, len(mods)),
		Stats:      stats,
	}
	for i, mod := range mods {
		result.Mods[i] = scanModJSON{
			Name:      mod.Name,
			Hash:      mod.Hash,
			URL:       mod.URL,
			Matched:   mod.Matched,
			LocalPath: mod.LocalPath,
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encoding scan result: %w", err)
	}
	return nil
}
