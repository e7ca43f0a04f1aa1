package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/addityasingh/modmatch/pkg/config"
	"github.com/addityasingh/modmatch/pkg/hashing"
	"github.com/addityasingh/modmatch/pkg/manifest"
	"github.com/addityasingh/modmatch/pkg/pool"
	"github.com/addityasingh/modmatch/pkg/registry"
	"github.com/addityasingh/modmatch/pkg/scanner"
	"github.com/addityasingh/modmatch/pkg/watcher"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <manifest>",
	Short: "Watch directories until every blocked mod is found",
	Long: `Resolve starts a live session: it scans the configured directories, keeps
watching them for new or removed files, and reports each blocked mod as soon
as a file with the expected content hash appears. The session ends when every
mod is matched, or on interrupt.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

var (
	resolveDirs          []string
	resolveFiles         []string
	resolveExitWhenDone  bool
	resolveNoDefaultDirs bool
)

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().StringArrayVarP(&resolveDirs, "dir", "d", nil, "Additional directory to watch (repeatable)")
	resolveCmd.Flags().StringArrayVarP(&resolveFiles, "file", "f", nil, "Explicit file to hash regardless of name (repeatable)")
	resolveCmd.Flags().BoolVar(&resolveExitWhenDone, "exit-when-done", true, "Exit as soon as every mod is matched")
	resolveCmd.Flags().BoolVar(&resolveNoDefaultDirs, "no-default-dirs", false, "Skip the configured default directories")
}

func runResolve(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)
	configPath, _ := cmd.Flags().GetString("config")

	cfg, _, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	sess, err := newSession(sessionConfig{
		ManifestPath: args[0],
		ExtraDirs:    resolveDirs,
		ExtraFiles:   resolveFiles,
		ExitWhenDone: resolveExitWhenDone,
		DefaultDirs:  !resolveNoDefaultDirs,
		Config:       cfg,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return sess.Run(ctx)
}

// sessionConfig holds everything a resolve session needs.
type sessionConfig struct {
	ManifestPath string
	ExtraDirs    []string
	ExtraFiles   []string
	ExitWhenDone bool
	DefaultDirs  bool
	Config       *config.Config
	Logger       *logrus.Logger
}

// session wires the matching engine to a terminal front end: registry, task
// pool, scan coordinator, and directory watcher, plus a lockfile so two
// sessions cannot fight over one manifest.
type session struct {
	cfg      sessionConfig
	logger   *logrus.Logger
	registry *registry.Registry
	pool     *pool.Pool
	coord    *scanner.Coordinator
	watcher  *watcher.DirectoryWatcher
	lock     *flock.Flock

	ctx      context.Context
	allFound chan struct{}
	found    sync.Once
}

func newSession(cfg sessionConfig) (*session, error) {
	m, err := manifest.Load(cfg.ManifestPath)
	if err != nil {
		return nil, err
	}

	hasher, err := hashing.NewComputer(m.Algorithm)
	if err != nil {
		return nil, err
	}

	sess := &session{
		cfg:      cfg,
		logger:   cfg.Logger,
		registry: registry.New(m.Entries(), cfg.Logger),
		pool:     pool.New(cfg.Config.Scan.Concurrency, cfg.Logger),
		lock:     flock.New(cfg.ManifestPath + ".lock"),
		allFound: make(chan struct{}),
	}

	sess.coord, err = scanner.New(scanner.Config{
		Registry: sess.registry,
		Pool:     sess.pool,
		Hasher:   hasher,
		OnUpdate: sess.handleUpdate,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating scan coordinator: %w", err)
	}

	sess.watcher, err = watcher.New(watcher.Config{
		OnChange: sess.handleDirectoryChanged,
		Debounce: cfg.Config.Debounce(),
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating directory watcher: %w", err)
	}

	return sess, nil
}

// Run drives the session until every mod is matched or ctx is cancelled.
func (s *session) Run(ctx context.Context) error {
	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring session lock: %w", err)
	}
	if !ok {
		return errors.New("another modmatch session is already resolving this manifest")
	}
	defer func() {
		_ = s.lock.Unlock()
		_ = os.Remove(s.lock.Path())
	}()

	s.ctx = ctx
	s.watcher.Start()
	defer s.watcher.Stop()

	s.logger.Infof("Resolving %d blocked mods", s.registry.Len())

	for _, dir := range s.watchDirs() {
		s.coord.AddDirectory(ctx, dir)
		if err := s.watcher.Add(dir); err != nil {
			s.logger.WithError(err).WithField("dir", dir).Warn("Cannot watch directory, it will not be rescanned")
		}
	}
	s.coord.SubmitFiles(ctx, s.cfg.ExtraFiles)

	select {
	case <-s.allFound:
		s.pool.Wait()
		s.finish()
		if !s.cfg.ExitWhenDone {
			s.logger.Info("All mods found; waiting for interrupt (--exit-when-done=false)")
			<-ctx.Done()
		}
		return nil

	case <-ctx.Done():
		s.pool.Wait()
		s.finish()
		if missing := s.registry.Len() - s.registry.MatchedCount(); missing > 0 {
			return fmt.Errorf("interrupted with %d of %d blocked mods still missing", missing, s.registry.Len())
		}
		return nil
	}
}

// watchDirs combines the configured defaults with --dir extras, dropping
// duplicates while preserving order.
func (s *session) watchDirs() []string {
	var dirs []string
	if s.cfg.DefaultDirs {
		dirs = append(dirs, s.cfg.Config.WatchDirs()...)
	}
	dirs = append(dirs, s.cfg.ExtraDirs...)

	seen := make(map[string]bool, len(dirs))
	out := dirs[:0]
	for _, dir := range dirs {
		if seen[dir] {
			continue
		}
		seen[dir] = true
		out = append(out, dir)
	}
	return out
}

// handleDirectoryChanged runs on the watcher goroutine; the coordinator hands
// the actual hashing to pool goroutines, so this stays cheap.
func (s *session) handleDirectoryChanged(dir string) {
	s.coord.OnDirectoryChanged(s.ctx, dir)
}

// handleUpdate receives a registry snapshot after every effective change.
func (s *session) handleUpdate(mods []registry.BlockedMod) {
	matched := 0
	for _, mod := range mods {
		if mod.Matched {
			matched++
		}
	}
	s.logger.Infof("📦 %d/%d blocked mods found", matched, len(mods))

	if matched == len(mods) {
		s.found.Do(func() { close(s.allFound) })
	}
}

func (s *session) finish() {
	mods := s.registry.Snapshot()
	renderModsTable(os.Stdout, mods)
	renderSummary(os.Stdout, mods, s.coord.Stats())
}
