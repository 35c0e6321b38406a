package scroll

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/reel/internal/clock"
)

type fakeTarget struct {
	mu      sync.Mutex
	x, y    int
	scrolls int
}

func (f *fakeTarget) Offset() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.x, f.y
}

func (f *fakeTarget) ScrollTo(x, y int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.x, f.y = x, y
	f.scrolls++
}

func (f *fakeTarget) set(x, y int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.x, f.y = x, y
}

// countingStore records writes so throttling can be observed
type countingStore struct {
	*MemoryStore
	mu   sync.Mutex
	sets int
}

func (c *countingStore) Set(key string, value []byte) error {
	c.mu.Lock()
	c.sets++
	c.mu.Unlock()
	return c.MemoryStore.Set(key, value)
}

func (c *countingStore) writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}

type brokenStore struct{}

var errQuota = errors.New("quota exceeded")

func (brokenStore) Get(string) ([]byte, bool, error) { return nil, false, errQuota }
func (brokenStore) Set(string, []byte) error { return errQuota }
func (brokenStore) Delete(string) error { return errQuota }
func (brokenStore) Keys(string) ([]string, error) { return nil, errQuota }

func newClock() *clock.Manual {
	return clock.NewManual(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
}

func readRecord(t *testing.T, s *MemoryStore, key string) Record {
	t.Helper()
	data, ok, err := s.Get(KeyPrefix + key)
	require.NoError(t, err)
	require.True(t, ok)
	var rec Record
	require.NoError(t, json.Unmarshal(data, &rec))
	return rec
}

func TestRestore_AfterNavigation(t *testing.T) {
	clk := newClock()
	store := NewMemoryStore()

	before := &fakeTarget{}
	r := New(store, "catalog", before, Options{Clock: clk})
	before.set(0, 137)
	r.Save()
	r.Close()

	// The view is rebuilt with a fresh container at the top
	after := &fakeTarget{}
	r2 := New(store, "catalog", after, Options{Clock: clk})
	defer r2.Close()

	require.True(t, r2.Restore())
	assert.True(t, r2.Restoring())

	clk.Advance(49 * time.Millisecond)
	_, y := after.Offset()
	assert.Equal(t, 0, y, "offset applied only after the settle delay")

	clk.Advance(time.Millisecond)
	x, y := after.Offset()
	assert.Equal(t, 0, x)
	assert.InDelta(t, 137, y, 1)
	assert.False(t, r2.Restoring())
}

func TestRestore_NoRecord(t *testing.T) {
	clk := newClock()
	target := &fakeTarget{}
	r := New(NewMemoryStore(), "search", target, Options{Clock: clk})

	assert.False(t, r.Restore())
	clk.Advance(time.Second)
	assert.Zero(t, target.scrolls)
}

func TestSave_Throttled(t *testing.T) {
	clk := newClock()
	store := &countingStore{MemoryStore: NewMemoryStore()}
	target := &fakeTarget{}
	r := New(store, "catalog", target, Options{Clock: clk})
	defer r.Close()

	for i := 1; i <= 10; i++ {
		target.set(0, i*10)
		r.Save()
		clk.Advance(5 * time.Millisecond)
	}
	// One leading write plus one pending trailing write
	assert.Equal(t, 1, store.writes())

	clk.Advance(100 * time.Millisecond)
	assert.Equal(t, 2, store.writes())
	assert.Equal(t, 100, readRecord(t, store.MemoryStore, "catalog").Y, "trailing write records the latest offset")
}

func TestSaveNow_BypassesThrottle(t *testing.T) {
	clk := newClock()
	store := &countingStore{MemoryStore: NewMemoryStore()}
	target := &fakeTarget{}
	r := New(store, "catalog", target, Options{Clock: clk})
	defer r.Close()

	target.set(0, 5)
	r.Save()
	target.set(0, 9)
	r.Save()
	r.SaveNow()
	assert.Equal(t, 2, store.writes())
	assert.Equal(t, 9, readRecord(t, store.MemoryStore, "catalog").Y)

	clk.Advance(time.Second)
	assert.Equal(t, 2, store.writes(), "trailing write was superseded")
}

func TestSave_SuppressedWhileRestoring(t *testing.T) {
	clk := newClock()
	store := NewMemoryStore()
	target := &fakeTarget{}
	r := New(store, "catalog", target, Options{Clock: clk})
	defer r.Close()

	target.set(0, 300)
	r.SaveNow()

	// The container reports 0 while the layout settles
	target.set(0, 0)
	require.True(t, r.Restore())
	r.Save()
	r.SaveNow()
	assert.Equal(t, 300, readRecord(t, store, "catalog").Y)

	clk.Advance(DefaultSettleDelay)
	_, y := target.Offset()
	assert.Equal(t, 300, y)
}

func TestClear(t *testing.T) {
	clk := newClock()
	store := NewMemoryStore()
	require.NoError(t, store.Set("theme", []byte("dark")))

	a := New(store, "catalog", &fakeTarget{y: 4}, Options{Clock: clk})
	b := New(store, "search", &fakeTarget{y: 8}, Options{Clock: clk})
	a.SaveNow()
	b.SaveNow()

	a.Clear()
	assert.False(t, a.Restore())
	assert.True(t, b.Restore())
	b.Close()

	b.ClearAll()
	keys, err := store.Keys("")
	require.NoError(t, err)
	assert.Equal(t, []string{"theme"}, keys)
}

func TestUnavailableStore_NoOps(t *testing.T) {
	clk := newClock()
	target := &fakeTarget{y: 12}

	for name, r := range map[string]*Restorer{
		"nil":    New(nil, "catalog", target, Options{Clock: clk}),
		"broken": New(brokenStore{}, "catalog", target, Options{Clock: clk}),
	} {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				r.Save()
				r.SaveNow()
				assert.False(t, r.Restore())
				r.Clear()
				r.ClearAll()
				r.Close()
			})
		})
	}
	clk.Advance(time.Second)
	assert.Zero(t, target.scrolls)
}

func TestRestore_CorruptRecordIgnored(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set(KeyPrefix+"catalog", []byte("{not json")))

	r := New(store, "catalog", &fakeTarget{}, Options{Clock: newClock()})
	assert.False(t, r.Restore())
}
