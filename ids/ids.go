// Package ids provides the Id/time primitives (spec §2.G): UUID generation
// for experiments and monotonic-safe wall-clock milliseconds for timestamps
// attached to draw replies and log records.
package ids

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ExperimentID is the 128-bit identifier assigned on create, stable across
// restarts, and used as the on-disk snapshot filename stem.
type ExperimentID = uuid.UUID

// NewExperimentID generates a fresh random (v4) experiment id.
func NewExperimentID() ExperimentID {
	return uuid.New()
}

// ParseExperimentID parses the {uuid} path segment used throughout §6's
// HTTP surface.
func ParseExperimentID(s string) (ExperimentID, error) {
	return uuid.Parse(s)
}

var (
	clockMu   sync.Mutex
	lastEpoch uint64
)

// NowMillis returns the current wall-clock time in epoch milliseconds,
// guarded so it never returns a value less than the previous call within
// this process even if the system clock steps backward (NTP adjustment,
// VM migration). It is NOT a substitute for a true monotonic clock across
// processes; it only protects timestamps embedded in replies/log records
// from appearing to run backward within one run.
func NowMillis() uint64 {
	clockMu.Lock()
	defer clockMu.Unlock()

	now := uint64(time.Now().UnixMilli())
	if now <= lastEpoch {
		now = lastEpoch + 1
	}
	lastEpoch = now
	return now
}
