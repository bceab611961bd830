package session

import (
	"fmt"
	"math/rand"
	"os"
	"sync"
)

// Identifier allocation strategies.
const (
	StrategyPID    = "pid"
	StrategyRandom = "random"
)

// IdentifierAllocator hands out ICMP echo identifiers. The "pid" strategy
// mirrors classic ping and uses the low 16 bits of the process ID; "random"
// avoids collisions between concurrent pingers sharing a PID namespace.
type IdentifierAllocator struct {
	strategy string
	pid      func() int
	rand     func() uint32
	used     map[uint16]bool
	mu       sync.Mutex
}

// NewIdentifierAllocator creates an allocator with the given strategy.
func NewIdentifierAllocator(strategy string) *IdentifierAllocator {
	return &IdentifierAllocator{
		strategy: strategy,
		pid:      os.Getpid,
		rand:     rand.Uint32,
		used:     make(map[uint16]bool),
	}
}

// Allocate returns an identifier for a new session.
func (a *IdentifierAllocator) Allocate() (uint16, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.strategy {
	case StrategyPID:
		id := uint16(a.pid() & 0xffff)
		a.used[id] = true
		return id, nil
	case StrategyRandom:
		for attempts := 0; attempts < 1000; attempts++ {
			id := uint16(a.rand())
			if a.used[id] {
				continue
			}
			a.used[id] = true
			return id, nil
		}
		return 0, fmt.Errorf("failed to allocate random identifier after 1000 attempts")
	default:
		return 0, fmt.Errorf("unknown identifier strategy: %s", a.strategy)
	}
}

// Release frees an identifier so the random strategy may hand it out again.
func (a *IdentifierAllocator) Release(id uint16) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.used, id)
}

// SequenceCounter issues echo sequence numbers starting at 0. The counter is
// 16 bits wide and wraps.
type SequenceCounter struct {
	next uint16
	mu   sync.Mutex
}

// Next returns the next sequence number.
func (s *SequenceCounter) Next() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.next
	s.next++
	return seq
}
