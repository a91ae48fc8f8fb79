package version

import "sync"

// Lamport is a logical clock for one replica. It is safe for concurrent use.
type Lamport struct {
	mu   sync.Mutex
	last int64
}

// NewLamport returns a clock whose next tick is start+1.
func NewLamport(start int64) *Lamport {
	return &Lamport{last: start}
}

// Tick advances the clock and returns the new timestamp.
func (l *Lamport) Tick() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last++
	return l.last
}

// Observe moves the clock forward to ts if ts is ahead, so the next Tick
// orders after every observed event.
func (l *Lamport) Observe(ts int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ts > l.last {
		l.last = ts
	}
}

// Now returns the last issued or observed timestamp without advancing.
func (l *Lamport) Now() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}
