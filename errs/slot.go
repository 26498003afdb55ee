package errs

import "sync"

// Slot is a single last-error holder, one per caller "thread": holds
// the most recent Kind, cleared only by an explicit read. A new
// failure always overwrites whatever was there, never aggregates.
type Slot struct {
	mu   sync.Mutex
	kind Kind
	set  bool
}

// Set records k as the most recent error. Successful calls must never
// call Set — the slot only updates on failure.
func (s *Slot) Set(k Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kind = k
	s.set = true
}

// Last reads the slot without clearing it.
func (s *Slot) Last() (Kind, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kind, s.set
}

// Clear reads and clears the slot, mirroring get-last-error()'s
// read-and-clear contract.
func (s *Slot) Clear() (Kind, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.kind, s.set
	s.set = false
	return k, ok
}
