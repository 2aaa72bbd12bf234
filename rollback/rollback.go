// Package rollback is the policy layer explicitly left out of the core
// orchestrator: the core exposes FlagRollbackProtected and Sequence on a
// parsed manifest.Manifest but deliberately does not enforce monotonicity
// itself. Store persists the last-installed sequence per module id; Check
// compares a candidate manifest against it and is meant to run before
// slimmy.Runtime.Execute for any module whose manifest has
// FlagRollbackProtected set.
package rollback

import (
	"sync"

	"github.com/tinyrange/slimmy/internal/slimerr"
	"github.com/tinyrange/slimmy/manifest"
)

// Store persists the last-installed sequence number per ModuleId. The
// zero value is ready to use. It is in-memory only, and Check reads from
// this concrete type, so the recorded sequences do not survive a restart.
type Store struct {
	mu        sync.Mutex
	sequences map[uint32]uint32
}

// NewStore creates an empty, in-memory rollback store.
func NewStore() *Store {
	return &Store{sequences: make(map[uint32]uint32)}
}

// LastSequence returns the last sequence recorded for id, or (0, false) if
// none has been recorded yet.
func (s *Store) LastSequence(id uint32) (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq, ok := s.sequences[id]
	return seq, ok
}

// Record sets the last-installed sequence for id. Callers call this after a
// module has actually been installed/flashed, not merely verified.
func (s *Store) Record(id uint32, sequence uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sequences == nil {
		s.sequences = make(map[uint32]uint32)
	}
	s.sequences[id] = sequence
}

// Check enforces the rollback policy for m: if m is not
// FlagRollbackProtected, or its Sequence is 0 ("no rollback constraint" per
// the manifest format), Check always passes. Otherwise m.Sequence must be
// strictly greater than the last sequence recorded in s for m.ModuleId (no
// prior record also passes, since there is nothing to roll back behind).
func (s *Store) Check(m *manifest.Manifest) error {
	if !m.RollbackProtected() || m.Sequence == 0 {
		return nil
	}
	last, ok := s.LastSequence(m.ModuleId)
	if !ok {
		return nil
	}
	if m.Sequence <= last {
		return slimerr.Engine("rollback rejected: sequence not newer than last installed")
	}
	return nil
}
