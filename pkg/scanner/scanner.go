// Package scanner orchestrates directory scan passes: enumerate candidate
// files, dispatch hashing work, and feed confirmed hashes into the registry.
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/addityasingh/modmatch/pkg/hashing"
	"github.com/addityasingh/modmatch/pkg/pool"
	"github.com/addityasingh/modmatch/pkg/registry"
)

// UpdateFunc receives a fresh snapshot of the blocked mod set after every
// effective state change. Invocations are serialized.
type UpdateFunc func(mods []registry.BlockedMod)

// Config holds configuration for the Coordinator.
type Config struct {
	Registry *registry.Registry
	Pool     *pool.Pool
	Hasher   *hashing.Computer
	OnUpdate UpdateFunc // optional
	Logger   *logrus.Logger
}

// Coordinator drives scan passes over a set of watched directories. It never
// blocks on hash results: candidate paths are handed to the shared task pool
// and each completed hash flows into the registry on a pool goroutine.
type Coordinator struct {
	registry *registry.Registry
	pool     *pool.Pool
	hasher   *hashing.Computer
	onUpdate UpdateFunc
	logger   *logrus.Logger

	mu           sync.Mutex
	watched      []string
	fingerprints map[string]passFingerprint

	notifyMu sync.Mutex

	stats statsCounters
}

// passFingerprint identifies the inputs of a completed scan pass: what the
// directory looked like and what the registry knew. A repeat pass with the
// same pair cannot change anything, so it dispatches no work. Any registry
// mutation or directory change invalidates the skip.
type passFingerprint struct {
	candidates uint64
	generation uint64
}

// candidate is one enumerated file that survived the name prefilter.
type candidate struct {
	path    string
	name    string
	size    int64
	modTime int64
}

// New creates a Coordinator.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if cfg.Pool == nil {
		return nil, fmt.Errorf("task pool cannot be nil")
	}
	if cfg.Hasher == nil {
		return nil, fmt.Errorf("hasher cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	return &Coordinator{
		registry:     cfg.Registry,
		pool:         cfg.Pool,
		hasher:       cfg.Hasher,
		onUpdate:     cfg.OnUpdate,
		logger:       cfg.Logger,
		fingerprints: make(map[string]passFingerprint),
	}, nil
}

// AddDirectory adds dir to the watch set and scans it immediately. A
// nonexistent or unreadable directory is a logged no-op, never an error.
func (c *Coordinator) AddDirectory(ctx context.Context, dir string) {
	c.mu.Lock()
	known := false
	for _, existing := range c.watched {
		if existing == dir {
			known = true
			break
		}
	}
	if !known {
		c.watched = append(c.watched, dir)
	}
	c.mu.Unlock()

	c.ScanDirectory(ctx, dir)
}

// Directories returns the current watch set.
func (c *Coordinator) Directories() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, len(c.watched))
	copy(out, c.watched)
	return out
}

// ScanAll scans every directory in the watch set.
func (c *Coordinator) ScanAll(ctx context.Context) {
	for _, dir := range c.Directories() {
		c.ScanDirectory(ctx, dir)
	}
}

// OnDirectoryChanged handles a change notification for dir: previously
// matched files may be gone, so matches are revalidated before the rescan
// picks up whatever is new. The ordering matters; rescanning first could
// report a stale match as fresh.
func (c *Coordinator) OnDirectoryChanged(ctx context.Context, dir string) {
	if c.registry.Revalidate() {
		c.notify()
	}
	c.ScanDirectory(ctx, dir)
}

// ScanDirectory runs one scan pass over the immediate files of dir: dotfiles
// included, subdirectories not descended into. Files whose names match no
// blocked entry are discarded before hashing, as are files already attributed
// to a matched entry. Surviving candidates are queued on the task pool and
// the pool is started; the pass does not wait for results.
func (c *Coordinator) ScanDirectory(ctx context.Context, dir string) {
	passID := uuid.NewString()
	log := c.logger.WithFields(logrus.Fields{"dir": dir, "pass_id": passID})

	entries, err := os.ReadDir(dir)
	if err != nil {
		log.WithError(err).Debug("Cannot enumerate directory, skipping")
		return
	}

	var candidates []candidate
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		c.stats.filesSeen.Add(1)

		if !c.registry.NameRelevant(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if c.registry.MatchedPath(path) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// Vanished between ReadDir and Info; nothing to hash.
			continue
		}
		candidates = append(candidates, candidate{
			path:    path,
			name:    entry.Name(),
			size:    info.Size(),
			modTime: info.ModTime().UnixNano(),
		})
	}

	if len(candidates) == 0 {
		log.Debug("No candidate files")
		return
	}

	fp := passFingerprint{
		candidates: fingerprintCandidates(candidates),
		generation: c.registry.Generation(),
	}
	c.mu.Lock()
	if c.fingerprints[dir] == fp {
		c.mu.Unlock()
		c.stats.passesSkipped.Add(1)
		log.Debug("Directory unchanged since last pass, skipping dispatch")
		return
	}
	c.fingerprints[dir] = fp
	c.mu.Unlock()

	log.WithField("candidates", len(candidates)).Debug("Dispatching hash tasks")
	for _, cand := range candidates {
		c.submitHashTask(cand.path, cand.size)
	}
	c.pool.Start(ctx)
}

// SubmitFiles hashes every given path unconditionally: no name prefilter, no
// directory enumeration, no unchanged-pass skip. An explicitly provided file
// is assumed relevant regardless of its name.
func (c *Coordinator) SubmitFiles(ctx context.Context, paths []string) {
	if len(paths) == 0 {
		return
	}

	for _, path := range paths {
		size := int64(0)
		if info, err := os.Stat(path); err == nil {
			size = info.Size()
		}
		c.submitHashTask(path, size)
	}
	c.pool.Start(ctx)
}

// submitHashTask queues one hashing task. A hash failure is logged and
// dropped; it never affects other tasks or the pass as a whole.
func (c *Coordinator) submitHashTask(path string, size int64) {
	c.stats.filesHashed.Add(1)
	c.stats.bytesHashed.Add(size)

	c.pool.Submit(func(ctx context.Context) error {
		digest, err := c.hasher.Compute(path)
		if err != nil {
			c.stats.hashFailures.Add(1)
			c.logger.WithError(err).WithField("path", path).Debug("Hashing failed, dropping candidate")
			return err
		}

		if outcome := c.registry.Confirm(digest, path); outcome.Matched {
			c.stats.matches.Add(1)
			c.logger.WithFields(logrus.Fields{
				"name": outcome.Mod.Name,
				"path": path,
			}).Info("Found blocked mod")
			c.notify()
		}
		return nil
	})
}

// notify hands a fresh registry snapshot to the observer. Calls are
// serialized so concurrently completing hash tasks cannot interleave
// notifications.
func (c *Coordinator) notify() {
	if c.onUpdate == nil {
		return
	}
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.onUpdate(c.registry.Snapshot())
}

// fingerprintCandidates digests the candidate list independent of
// enumeration order.
func fingerprintCandidates(candidates []candidate) uint64 {
	sorted := make([]candidate, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].name < sorted[j].name })

	digest := xxhash.New()
	for _, cand := range sorted {
		digest.WriteString(cand.name)
		digest.WriteString("\x00")
		digest.WriteString(strconv.FormatInt(cand.size, 10))
		digest.WriteString("\x00")
		digest.WriteString(strconv.FormatInt(cand.modTime, 10))
		digest.WriteString("\x00")
	}
	return digest.Sum64()
}
