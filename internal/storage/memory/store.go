package memory

import (
	"sync"
	"time"

	"github.com/yndnr/keymesh-go/pkg/glob"
)

// TTL sentinels returned by Store.TTL.
const (
	// TTLNone means the key exists but carries no expiry.
	TTLNone = -1
	// TTLMissing means the key does not exist (or has expired).
	TTLMissing = -2
)

// Clock abstracts the time source so expiry is testable.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// entry is the stored record for one key.
//
// A zero expiresAt means the entry never expires. Deadlines come from
// time.Now(), whose monotonic reading makes them immune to wall clock
// adjustments.
type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Pair is one key/value assignment for MSet.
type Pair struct {
	Key   string
	Value []byte
}

// Store is the in-memory keyspace: a key to entry map guarded by a single
// mutex, so every operation is linearizable with respect to every other.
// Multi-key reads and writes observe one serialization point; no partial
// MSet is ever visible.
//
// Expired entries are evicted lazily by whichever operation touches them
// first; the Sweeper reclaims keys no request revisits.
type Store struct {
	mu      sync.Mutex
	items   map[string]entry
	clock   Clock
	onEvict func(n int)
}

// Option configures the Store.
type Option func(*Store)

// WithClock sets the time source.
func WithClock(c Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// WithEvictionHook registers a callback invoked with the number of entries
// evicted by expiry. Used to feed metrics; must not call back into the
// Store.
func WithEvictionHook(fn func(n int)) Option {
	return func(s *Store) {
		s.onEvict = fn
	}
}

// New creates an empty keyspace.
func New(opts ...Option) *Store {
	s := &Store{
		items: make(map[string]entry),
		clock: realClock{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// evictLocked removes an expired entry. Callers hold s.mu.
func (s *Store) evictLocked(key string) {
	delete(s.items, key)
	if s.onEvict != nil {
		s.onEvict(1)
	}
}

// liveLocked returns the entry for key if present and unexpired, evicting
// it on the fly otherwise. Callers hold s.mu.
func (s *Store) liveLocked(key string, now time.Time) (entry, bool) {
	e, ok := s.items[key]
	if !ok {
		return entry{}, false
	}
	if e.expired(now) {
		s.evictLocked(key)
		return entry{}, false
	}
	return e, true
}

// Get returns the value for key, or ok=false if the key is absent or
// expired. The returned slice is owned by the store; callers must not
// modify it.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.liveLocked(key, s.clock.Now())
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key, replacing any existing entry. A positive ttl
// sets the expiry deadline; ttl <= 0 stores the entry without one, clearing
// any prior deadline.
func (s *Store) Set(key string, value []byte, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = s.clock.Now().Add(ttl)
	}
	s.items[key] = e
}

// MGet returns one value per key, in order, with nil for keys that are
// absent or expired. All keys are read at a single serialization point.
func (s *Store) MGet(keys []string) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	out := make([][]byte, len(keys))
	for i, key := range keys {
		if e, ok := s.liveLocked(key, now); ok {
			out[i] = e.value
		}
	}
	return out
}

// MSet applies all assignments atomically: concurrent readers see either
// none or all of them. Prior expiries on touched keys are cleared.
func (s *Store) MSet(pairs []Pair) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range pairs {
		s.items[p.Key] = entry{value: p.Value}
	}
}

// Delete removes the given keys and returns how many existed. Entries that
// had already expired are evicted but not counted.
func (s *Store) Delete(keys []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	removed := 0
	for _, key := range keys {
		if _, ok := s.liveLocked(key, now); ok {
			delete(s.items, key)
			removed++
		}
	}
	return removed
}

// Exists counts, with multiplicity, how many of the given keys are present
// and unexpired.
func (s *Store) Exists(keys []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	count := 0
	for _, key := range keys {
		if _, ok := s.liveLocked(key, now); ok {
			count++
		}
	}
	return count
}

// Expire sets or overwrites the expiry deadline on key. Returns false if
// the key is absent or already expired, or if ttl is not positive; expired
// keys are not resurrected.
func (s *Store) Expire(key string, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	e, ok := s.liveLocked(key, now)
	if !ok {
		return false
	}
	e.expiresAt = now.Add(ttl)
	s.items[key] = e
	return true
}

// TTL returns the remaining lifetime of key in milliseconds, truncated
// toward zero. Returns TTLMissing for absent or expired keys and TTLNone
// for keys without a deadline. Never negative for live keys.
func (s *Store) TTL(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	e, ok := s.liveLocked(key, now)
	if !ok {
		return TTLMissing
	}
	if e.expiresAt.IsZero() {
		return TTLNone
	}
	return e.expiresAt.Sub(now).Milliseconds()
}

// Keys returns all live keys matching pattern, in unspecified order.
// Expired keys encountered during the scan are evicted and never appear.
//
// The scan is O(n) over the whole keyspace and holds the store mutex for
// its duration; an incremental cursor variant is a possible future
// extension.
func (s *Store) Keys(pattern string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	out := make([]string, 0)
	for key, e := range s.items {
		if e.expired(now) {
			s.evictLocked(key)
			continue
		}
		if glob.Match(pattern, key) {
			out = append(out, key)
		}
	}
	return out
}

// Flush removes every entry and all expiry bookkeeping.
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]entry)
}

// Len returns the number of entries, counting expired ones not yet
// reclaimed.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.items)
}

// sweep examines up to batch entries and evicts the expired ones, holding
// the mutex for one bounded pass so request handlers are never starved.
// Returns the number of entries evicted.
//
// Go's randomized map iteration order makes each pass an independent
// sample of the keyspace.
func (s *Store) sweep(batch int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	seen := 0
	evicted := 0
	for key, e := range s.items {
		if seen >= batch {
			break
		}
		seen++
		if e.expired(now) {
			s.evictLocked(key)
			evicted++
		}
	}
	return evicted
}
