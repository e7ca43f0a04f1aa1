package scanner

import "sync/atomic"

// Stats is a point-in-time snapshot of scan activity since the Coordinator
// was created.
type Stats struct {
	FilesSeen     int64 `json:"files_seen"`     // regular files enumerated across all passes
	FilesHashed   int64 `json:"files_hashed"`   // candidates submitted for hashing
	BytesHashed   int64 `json:"bytes_hashed"`   // total size of submitted candidates
	Matches       int64 `json:"matches"`        // confirmed hash matches
	HashFailures  int64 `json:"hash_failures"`  // hashing tasks that failed (vanished/unreadable files)
	PassesSkipped int64 `json:"passes_skipped"` // passes skipped because nothing changed since the last one
}

type statsCounters struct {
	filesSeen     atomic.Int64
	filesHashed   atomic.Int64
	bytesHashed   atomic.Int64
	matches       atomic.Int64
	hashFailures  atomic.Int64
	passesSkipped atomic.Int64
}

// Stats returns a snapshot of the Coordinator's counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		FilesSeen:     c.stats.filesSeen.Load(),
		FilesHashed:   c.stats.filesHashed.Load(),
		BytesHashed:   c.stats.bytesHashed.Load(),
		Matches:       c.stats.matches.Load(),
		HashFailures:  c.stats.hashFailures.Load(),
		PassesSkipped: c.stats.passesSkipped.Load(),
	}
}
