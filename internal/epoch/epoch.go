// Package epoch tracks a per-subject session version counter. Bumping the
// counter invalidates every token minted before the bump without keeping a
// revocation list.
package epoch

import (
	"context"
	"sync"
)

// Store is the epoch counter contract. A single-process map and a shared
// database counter implement the same interface; the gateway depends only
// on this.
type Store interface {
	// Current returns the subject's epoch, lazily initialized to 1.
	Current(ctx context.Context, subjectID string) (int64, error)
	// Bump atomically increments and returns the new epoch. Any successful
	// bump achieves full invalidation of previously minted tokens, so
	// concurrent bumps may race on the final value.
	Bump(ctx context.Context, subjectID string) (int64, error)
}

// Memory is a process-local Store.
type Memory struct {
	mu sync.Mutex
	m  map[string]int64
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{m: make(map[string]int64)}
}

// Current returns the subject's epoch, initializing it to 1 on first use.
func (s *Memory) Current(_ context.Context, subjectID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[subjectID]
	if !ok {
		v = 1
		s.m[subjectID] = v
	}
	return v, nil
}

// Bump increments the subject's epoch and returns the new value.
func (s *Memory) Bump(_ context.Context, subjectID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[subjectID]
	if !ok {
		v = 1
	}
	v++
	s.m[subjectID] = v
	return v, nil
}
