package stats

import (
	"sync"
	"time"

	"icmp-ping/pkg/types"
)

// Collector accumulates probe outcomes for one session. It is safe to read
// from a reporting goroutine while the session records.
type Collector struct {
	StartTime time.Time
	EndTime   time.Time

	Sent     int
	Received int
	Timeouts int
	Errors   int

	// Delays holds the delay of every successful probe in milliseconds,
	// in the order the replies arrived.
	Delays []int64

	LastTTL uint8

	mu sync.Mutex
}

// NewCollector creates a new statistics collector.
func NewCollector() *Collector {
	return &Collector{
		StartTime: time.Now(),
	}
}

// Record adds one probe outcome.
func (c *Collector) Record(o types.ProbeOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Sent++
	switch {
	case o.Success():
		c.Received++
		c.Delays = append(c.Delays, o.DelayMillis())
		c.LastTTL = o.TTL
	case o.Err != nil:
		c.Errors++
	default:
		c.Timeouts++
	}
}

// Finish marks the end of the collection period.
func (c *Collector) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.EndTime.IsZero() {
		c.EndTime = time.Now()
	}
}

// Duration returns the elapsed time.
func (c *Collector) Duration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.EndTime.IsZero() {
		return time.Since(c.StartTime)
	}
	return c.EndTime.Sub(c.StartTime)
}

// Summary returns the aggregated statistics recorded so far.
func (c *Collector) Summary() Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Summarize(c.Sent, c.Received, c.Delays)
}

// Snapshot returns a copy of the current statistics (thread-safe).
func (c *Collector) Snapshot() *Collector {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := &Collector{
		StartTime: c.StartTime,
		EndTime:   c.EndTime,
		Sent:      c.Sent,
		Received:  c.Received,
		Timeouts:  c.Timeouts,
		Errors:    c.Errors,
		LastTTL:   c.LastTTL,
		Delays:    make([]int64, len(c.Delays)),
	}
	copy(snap.Delays, c.Delays)
	return snap
}
