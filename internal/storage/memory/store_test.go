package memory

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ============================================================
// Get / Set
// ============================================================

func TestStore_SetGet(t *testing.T) {
	s := New()

	s.Set("name", []byte("Alice"), 0)

	got, ok := s.Get("name")
	if !ok {
		t.Fatal("Get = miss, want hit")
	}
	if string(got) != "Alice" {
		t.Errorf("Get = %q, want %q", got, "Alice")
	}

	if _, ok := s.Get("missing"); ok {
		t.Error("Get(missing) = hit, want miss")
	}
}

func TestStore_SetReplacesEntry(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock))

	s.Set("k", []byte("v1"), time.Second)
	s.Set("k", []byte("v2"), 0)

	// The replacement cleared the expiry.
	clock.Advance(2 * time.Second)
	got, ok := s.Get("k")
	if !ok {
		t.Fatal("Get = miss, want hit after expiry was cleared")
	}
	if string(got) != "v2" {
		t.Errorf("Get = %q, want %q", got, "v2")
	}
}

func TestStore_EmptyValue(t *testing.T) {
	s := New()
	s.Set("k", []byte{}, 0)

	got, ok := s.Get("k")
	if !ok {
		t.Fatal("Get = miss, want hit for empty value")
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Get = %v, want zero-length value", got)
	}
}

func TestStore_BinaryKeysAndValues(t *testing.T) {
	s := New()

	key := make([]byte, 256)
	val := make([]byte, 256)
	for i := 0; i < 256; i++ {
		key[i] = byte(i)
		val[255-i] = byte(i)
	}

	s.Set(string(key), val, 0)
	got, ok := s.Get(string(key))
	if !ok {
		t.Fatal("Get = miss, want hit for binary key")
	}
	if !bytes.Equal(got, val) {
		t.Error("binary value did not round trip")
	}
}

// ============================================================
// Expiry
// ============================================================

func TestStore_LazyExpiry(t *testing.T) {
	clock := newFakeClock()
	evicted := 0
	s := New(WithClock(clock), WithEvictionHook(func(n int) { evicted += n }))

	s.Set("k", []byte("v"), 50*time.Millisecond)

	if _, ok := s.Get("k"); !ok {
		t.Fatal("Get before deadline = miss, want hit")
	}

	clock.Advance(50 * time.Millisecond)

	// At the deadline the key is gone.
	if _, ok := s.Get("k"); ok {
		t.Fatal("Get at deadline = hit, want miss")
	}
	if evicted != 1 {
		t.Errorf("evicted = %d, want 1", evicted)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0 after lazy eviction", s.Len())
	}
}

func TestStore_ExpireAndTTL(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock))

	if s.TTL("missing") != TTLMissing {
		t.Errorf("TTL(missing) = %d, want %d", s.TTL("missing"), TTLMissing)
	}

	if s.Expire("missing", time.Second) {
		t.Error("Expire(missing) = true, want false")
	}

	s.Set("k", []byte("v"), 0)
	if s.TTL("k") != TTLNone {
		t.Errorf("TTL = %d, want %d for key without expiry", s.TTL("k"), TTLNone)
	}

	if !s.Expire("k", time.Minute) {
		t.Fatal("Expire = false, want true")
	}

	got := s.TTL("k")
	if got <= 0 || got > 60_000 {
		t.Errorf("TTL = %d, want in (0, 60000]", got)
	}

	clock.Advance(30 * time.Second)
	got = s.TTL("k")
	if got != 30_000 {
		t.Errorf("TTL = %d, want 30000", got)
	}

	clock.Advance(30 * time.Second)
	if s.TTL("k") != TTLMissing {
		t.Errorf("TTL after deadline = %d, want %d", s.TTL("k"), TTLMissing)
	}
}

func TestStore_TTLNeverExceedsLastSet(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock))

	s.Set("k", []byte("v"), 0)
	s.Expire("k", time.Hour)
	s.Expire("k", time.Second) // shorten

	if got := s.TTL("k"); got > 1000 {
		t.Errorf("TTL = %d, want <= 1000 after overwrite", got)
	}
}

func TestStore_ExpireDoesNotResurrect(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock))

	s.Set("k", []byte("v"), 10*time.Millisecond)
	clock.Advance(20 * time.Millisecond)

	if s.Expire("k", time.Hour) {
		t.Error("Expire on expired key = true, want false")
	}
	if _, ok := s.Get("k"); ok {
		t.Error("expired key resurrected")
	}
}

func TestStore_ExpireRejectsNonPositiveTTL(t *testing.T) {
	s := New()
	s.Set("k", []byte("v"), 0)

	if s.Expire("k", 0) {
		t.Error("Expire(0) = true, want false")
	}
	if s.Expire("k", -time.Second) {
		t.Error("Expire(<0) = true, want false")
	}
	if _, ok := s.Get("k"); !ok {
		t.Error("key lost after rejected Expire")
	}
}

// ============================================================
// Multi-key operations
// ============================================================

func TestStore_MGetMSet(t *testing.T) {
	s := New()

	s.MSet([]Pair{
		{Key: "a", Value: []byte("1")},
		{Key: "b", Value: []byte("2")},
		{Key: "c", Value: []byte("3")},
	})

	got := s.MGet([]string{"a", "x", "c"})
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if string(got[0]) != "1" || got[1] != nil || string(got[2]) != "3" {
		t.Errorf("MGet = [%q %v %q], want [1 <nil> 3]", got[0], got[1], got[2])
	}
}

func TestStore_MSetClearsExpiry(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock))

	s.Set("a", []byte("old"), 10*time.Millisecond)
	s.MSet([]Pair{{Key: "a", Value: []byte("new")}})

	clock.Advance(time.Hour)
	got, ok := s.Get("a")
	if !ok {
		t.Fatal("Get = miss, want hit: MSet should clear prior expiry")
	}
	if string(got) != "new" {
		t.Errorf("Get = %q, want %q", got, "new")
	}
}

func TestStore_Delete(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock))

	s.Set("a", []byte("1"), 0)
	s.Set("b", []byte("2"), 0)
	s.Set("gone", []byte("3"), 10*time.Millisecond)
	clock.Advance(time.Second)

	// Expired entries do not count as existing.
	if got := s.Delete([]string{"a", "b", "gone", "missing"}); got != 2 {
		t.Errorf("Delete = %d, want 2", got)
	}

	// Second delete finds nothing.
	if got := s.Delete([]string{"a", "b"}); got != 0 {
		t.Errorf("second Delete = %d, want 0", got)
	}
}

func TestStore_ExistsMultiplicity(t *testing.T) {
	s := New()
	s.Set("a", []byte("1"), 0)

	if got := s.Exists([]string{"a", "a", "a"}); got != 3 {
		t.Errorf("Exists(a a a) = %d, want 3", got)
	}
	if got := s.Exists([]string{"a", "missing", "a"}); got != 2 {
		t.Errorf("Exists = %d, want 2", got)
	}
}

// ============================================================
// Keys / Flush
// ============================================================

func TestStore_Keys(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock))

	s.Set("a", []byte("1"), 0)
	s.Set("b", []byte("2"), 0)
	s.Set("ab", []byte("3"), 0)
	s.Set("axp", []byte("4"), 10*time.Millisecond)
	clock.Advance(time.Second)

	got := s.Keys("a*")
	sort.Strings(got)
	want := []string{"a", "ab"}
	if len(got) != len(want) {
		t.Fatalf("Keys = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Keys = %v, want %v", got, want)
		}
	}

	// The scan evicted the expired key.
	if s.Len() != 3 {
		t.Errorf("Len = %d, want 3 after scan eviction", s.Len())
	}
}

func TestStore_KeysMalformedPattern(t *testing.T) {
	s := New()
	s.Set("a", []byte("1"), 0)

	if got := s.Keys("["); len(got) != 0 {
		t.Errorf("Keys([) = %v, want empty", got)
	}
}

func TestStore_Flush(t *testing.T) {
	s := New()
	s.Set("a", []byte("1"), time.Hour)
	s.Set("b", []byte("2"), 0)

	s.Flush()
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0 after Flush", s.Len())
	}

	// Idempotent.
	s.Flush()
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0 after second Flush", s.Len())
	}
}

// ============================================================
// Sweeper
// ============================================================

func TestStore_SweepEvictsExpired(t *testing.T) {
	clock := newFakeClock()
	evicted := 0
	s := New(WithClock(clock), WithEvictionHook(func(n int) { evicted += n }))

	for i := 0; i < 10; i++ {
		s.Set(fmt.Sprintf("k%d", i), []byte("v"), 10*time.Millisecond)
	}
	clock.Advance(time.Second)

	// Sweeping the whole keyspace in batches eventually reclaims all.
	total := 0
	for i := 0; i < 10; i++ {
		total += s.sweep(4)
	}
	if total != 10 {
		t.Errorf("swept = %d, want 10", total)
	}
	if evicted != 10 {
		t.Errorf("eviction hook total = %d, want 10", evicted)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestStore_SweepNeverEarly(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock))

	s.Set("k", []byte("v"), time.Hour)
	if n := s.sweep(100); n != 0 {
		t.Errorf("sweep = %d, want 0 before deadline", n)
	}
	if _, ok := s.Get("k"); !ok {
		t.Error("live key lost to sweep")
	}
}

func TestSweeper_Lifecycle(t *testing.T) {
	s := New()
	s.Set("k", []byte("v"), time.Millisecond)

	sw := NewSweeper(s, SweeperConfig{Interval: 5 * time.Millisecond, Batch: 20})
	sw.Start()

	deadline := time.Now().Add(time.Second)
	for s.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	sw.Stop()

	if s.Len() != 0 {
		t.Error("sweeper did not reclaim expired key")
	}
}

// ============================================================
// Concurrency
// ============================================================

func TestStore_ConcurrentSetGet(t *testing.T) {
	s := New()

	const clients = 8
	const iters = 200

	valid := make(map[string]bool)
	for i := 0; i < clients; i++ {
		valid[fmt.Sprintf("v%d", i)] = true
	}

	var wg sync.WaitGroup
	errCh := make(chan string, clients)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			val := []byte(fmt.Sprintf("v%d", id))
			for j := 0; j < iters; j++ {
				s.Set("shared", val, 0)
				got, ok := s.Get("shared")
				if !ok {
					errCh <- "Get = miss during concurrent writes"
					return
				}
				if !valid[string(got)] {
					errCh <- fmt.Sprintf("Get observed torn value %q", got)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for msg := range errCh {
		t.Error(msg)
	}
}

func TestStore_ConcurrentMSetMGet(t *testing.T) {
	s := New()

	// Writers alternate the pair (a,b) between (1,1) and (2,2); readers
	// must always see both keys equal: a partial MSet is never visible.
	var writers, readers sync.WaitGroup
	stop := make(chan struct{})
	errCh := make(chan string, 4)

	for w := 0; w < 2; w++ {
		writers.Add(1)
		go func(w int) {
			defer writers.Done()
			v := []byte(fmt.Sprintf("%d", w+1))
			for {
				select {
				case <-stop:
					return
				default:
				}
				s.MSet([]Pair{{Key: "a", Value: v}, {Key: "b", Value: v}})
			}
		}(w)
	}

	for r := 0; r < 2; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for i := 0; i < 2000; i++ {
				got := s.MGet([]string{"a", "b"})
				if got[0] == nil || got[1] == nil {
					continue // before first write
				}
				if string(got[0]) != string(got[1]) {
					errCh <- fmt.Sprintf("observed partial MSet: a=%q b=%q", got[0], got[1])
					return
				}
			}
		}()
	}

	readers.Wait()
	close(stop)
	writers.Wait()
	close(errCh)

	for msg := range errCh {
		t.Error(msg)
	}
}

// ============================================================
// Benchmarks
// ============================================================

func BenchmarkStore_Set(b *testing.B) {
	s := New()
	v := []byte("value")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Set("key", v, 0)
	}
}

func BenchmarkStore_Get(b *testing.B) {
	s := New()
	s.Set("key", []byte("value"), 0)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Get("key")
	}
}
