// Package registry tracks blocked mod entries and reconciles computed file
// hashes against the expected set.
package registry

import (
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// BlockedMod is one required artifact: the expected file name, the expected
// content hash, and, once found, the local file it was matched to.
type BlockedMod struct {
	Name      string // expected file name, compared case-insensitively
	Hash      string // expected digest, normalized to lowercase hex
	URL       string // where the artifact can be fetched by hand; never used in matching
	Matched   bool
	LocalPath string
}

// Outcome reports the result of confirming a computed hash against the set.
type Outcome struct {
	Matched bool
	Mod     BlockedMod // copy of the winning entry when Matched is true
}

// Registry owns the blocked mod set. Entry membership is fixed at
// construction; only the Matched and LocalPath fields ever change, and only
// through Confirm and Revalidate. All methods are safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	mods       []BlockedMod
	generation uint64
	logger     *logrus.Logger
}

// New builds a Registry over a copy of mods. Expected hashes are normalized
// to lowercase and any pre-set match state is discarded.
func New(mods []BlockedMod, logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.New()
	}

	owned := make([]BlockedMod, len(mods))
	for i, mod := range mods {
		owned[i] = BlockedMod{
			Name: strings.TrimSpace(mod.Name),
			Hash: strings.ToLower(strings.TrimSpace(mod.Hash)),
			URL:  strings.TrimSpace(mod.URL),
		}
	}

	return &Registry{
		mods:   owned,
		logger: logger,
	}
}

// Confirm scans unmatched entries in insertion order and attributes path to
// the first whose expected hash equals the computed hash case-insensitively.
// Matched entries are never re-matched or overwritten, so when several local
// files carry the same content the first confirmed result wins.
func (r *Registry) Confirm(hash, path string) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.mods {
		mod := &r.mods[i]
		if mod.Matched {
			continue
		}
		if strings.EqualFold(mod.Hash, hash) {
			mod.Matched = true
			mod.LocalPath = path
			r.generation++

			r.logger.WithFields(logrus.Fields{
				"name": mod.Name,
				"path": path,
			}).Debug("Hash match confirmed")

			return Outcome{Matched: true, Mod: *mod}
		}
	}

	return Outcome{}
}

// NameRelevant reports whether fileName equals any entry's expected name
// case-insensitively, regardless of match state. Scanners use it as a cheap
// prefilter before hashing.
func (r *Registry) NameRelevant(fileName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.mods {
		if strings.EqualFold(r.mods[i].Name, fileName) {
			return true
		}
	}
	return false
}

// Revalidate drops matches whose local file no longer exists as a regular
// file. It reports whether any entry changed so callers can decide whether to
// re-notify observers.
func (r *Registry) Revalidate() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := false
	for i := range r.mods {
		mod := &r.mods[i]
		if !mod.Matched {
			continue
		}
		if !isRegularFile(mod.LocalPath) {
			r.logger.WithFields(logrus.Fields{
				"name": mod.Name,
				"path": mod.LocalPath,
			}).Debug("Matched file no longer exists, invalidating")

			mod.Matched = false
			mod.LocalPath = ""
			changed = true
		}
	}

	if changed {
		r.generation++
	}
	return changed
}

// AllMatched reports whether every entry has been matched. It is vacuously
// true for an empty set.
func (r *Registry) AllMatched() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.mods {
		if !r.mods[i].Matched {
			return false
		}
	}
	return true
}

// MatchedPath reports whether path is already attributed to a matched entry.
func (r *Registry) MatchedPath(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.mods {
		if r.mods[i].Matched && r.mods[i].LocalPath == path {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the entry set in insertion order for rendering.
func (r *Registry) Snapshot() []BlockedMod {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]BlockedMod, len(r.mods))
	copy(out, r.mods)
	return out
}

// Generation returns a counter that increments on every effective state
// change. Scanners compare it across passes to detect that nothing moved.
func (r *Registry) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.mods)
}

// MatchedCount returns how many entries are currently matched.
func (r *Registry) MatchedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for i := range r.mods {
		if r.mods[i].Matched {
			count++
		}
	}
	return count
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
