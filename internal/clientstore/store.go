// Package clientstore holds the latest Client snapshot for one Engine and
// fans replacements out to subscribers.
package clientstore

import (
	"sync"

	"github.com/MrEthical07/goClerk/resource"
)

// Snapshot is an immutable view of the store. Version increases by one on
// every Replace or Reset.
type Snapshot struct {
	Client  *resource.Client
	Version uint64
}

type subscriber struct {
	ch chan Snapshot
}

// Store is safe for concurrent use. The zero value is not usable; call New.
type Store struct {
	mu      sync.RWMutex
	current *resource.Client
	version uint64

	subMu  sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

// New returns an empty store. Current reports nil until the first Replace.
func New() *Store {
	return &Store{subs: make(map[*subscriber]struct{})}
}

// Current returns a deep copy of the latest client, or nil before the first
// load.
func (s *Store) Current() *resource.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// ID returns the current client id without copying the snapshot.
func (s *Store) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.ID
}

// Snapshot returns the latest client together with its version.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Client: s.current.Clone(), Version: s.version}
}

// Replace stores a copy of c as the new snapshot and publishes it. A nil c is
// stored as an empty Client. The last call wins.
func (s *Store) Replace(c *resource.Client) Snapshot {
	if c == nil {
		c = &resource.Client{}
	}
	stored := c.Clone()

	// subMu is held across the version bump and the fan-out so subscribers
	// see versions in increasing order. Lock order is subMu then mu.
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.mu.Lock()
	s.current = stored
	s.version++
	snap := Snapshot{Client: stored, Version: s.version}
	s.mu.Unlock()

	s.publishLocked(snap)
	return Snapshot{Client: stored.Clone(), Version: snap.Version}
}

// Reset replaces the snapshot with an empty Client.
func (s *Store) Reset() Snapshot {
	return s.Replace(&resource.Client{})
}

// Subscribe registers a listener that receives every subsequent snapshot.
// When the listener falls behind by more than buffer snapshots the oldest
// pending one is discarded. The returned func unsubscribes and closes the
// channel; it is safe to call more than once.
func (s *Store) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	sub := &subscriber{ch: make(chan Snapshot, buffer)}

	s.subMu.Lock()
	if s.closed {
		s.subMu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	s.subs[sub] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			if _, ok := s.subs[sub]; ok {
				delete(s.subs, sub)
				close(sub.ch)
			}
		})
	}
}

// Close unsubscribes every listener. Later Replace calls still update the
// snapshot but publish nothing.
func (s *Store) Close() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for sub := range s.subs {
		close(sub.ch)
		delete(s.subs, sub)
	}
}

// publishLocked requires subMu.
func (s *Store) publishLocked(snap Snapshot) {
	for sub := range s.subs {
		offer(sub.ch, Snapshot{Client: snap.Client.Clone(), Version: snap.Version})
	}
}

// offer never blocks. Only publishLocked sends, under subMu, so after draining one
// element the second send always has room.
func offer(ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}
