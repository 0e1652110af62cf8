package cache

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type sample struct {
	Name  string   `json:"name"`
	Count int      `json:"count"`
	Tags  []string `json:"tags"`
}

func setupCacheTest(opts ...Option) (*Cache, *MemoryStorage, clockwork.FakeClock) {
	storage := NewMemoryStorage()
	clock := clockwork.NewFakeClock()
	opts = append([]Option{WithClock(clock)}, opts...)
	return New(storage, zap.NewNop(), opts...), storage, clock
}

// countingRefresh returns a refresh func that records its calls
func countingRefresh[T any](calls *int32, v T) RefreshFunc[T] {
	return func(ctx context.Context) (T, error) {
		atomic.AddInt32(calls, 1)
		return v, nil
	}
}

// waitFor polls cond until it holds or the deadline passes
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestCache_SetGet_RoundTrip(t *testing.T) {
	c, _, _ := setupCacheTest()
	ctx := context.Background()

	want := sample{Name: "alpha", Count: 3, Tags: []string{"a", "b"}}
	c.Set(ctx, "k", want)

	got, ok, err := Get(ctx, c, "k", Options[sample]{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected a hit")
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestCache_Get_MissWithoutRefresh(t *testing.T) {
	c, _, _ := setupCacheTest()

	got, ok, err := Get(context.Background(), c, "missing", Options[string]{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || got != "" {
		t.Errorf("expected no data, got %q", got)
	}
}

func TestCache_Get_MissWithRefresh(t *testing.T) {
	c, storage, _ := setupCacheTest()
	ctx := context.Background()
	var calls int32

	got, ok, err := Get(ctx, c, "k", Options[string]{Refresh: countingRefresh(&calls, "fresh")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || got != "fresh" {
		t.Errorf("expected fresh, got %q", got)
	}
	if calls != 1 {
		t.Errorf("expected 1 refresh call, got %d", calls)
	}
	if storage.Len() != 1 {
		t.Errorf("expected refreshed value to be written back, got %d entries", storage.Len())
	}
}

func TestCache_Get_FreshDoesNotRefresh(t *testing.T) {
	c, _, clock := setupCacheTest()
	ctx := context.Background()
	var calls int32

	c.Set(ctx, "k", "original")
	clock.Advance(30 * time.Second)

	got, _, err := Get(ctx, c, "k", Options[string]{
		TTL:     time.Hour,
		Refresh: countingRefresh(&calls, "new"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "original" {
		t.Errorf("expected original, got %q", got)
	}
	if calls != 0 {
		t.Errorf("expected no refresh, got %d calls", calls)
	}
}

func TestCache_Get_StaleWithinGrace(t *testing.T) {
	c, _, clock := setupCacheTest()
	ctx := context.Background()
	var calls int32

	c.Set(ctx, "k", "old")
	clock.Advance(90 * time.Second)

	opts := Options[string]{
		TTL:         time.Minute,
		GracePeriod: time.Minute,
		Refresh:     countingRefresh(&calls, "new"),
	}
	got, ok, err := Get(ctx, c, "k", opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || got != "old" {
		t.Errorf("expected stale value old, got %q", got)
	}

	waitFor(t, func() bool {
		v, _, _ := Get(ctx, c, "k", Options[string]{TTL: time.Minute, GracePeriod: time.Minute})
		return v == "new"
	})
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("expected exactly 1 refresh, got %d", n)
	}
}

func TestCache_Get_StaleWithinGrace_RefreshErrorKeepsData(t *testing.T) {
	c, _, clock := setupCacheTest()
	ctx := context.Background()
	done := make(chan struct{})

	c.Set(ctx, "k", "old")
	clock.Advance(90 * time.Second)

	got, ok, err := Get(ctx, c, "k", Options[string]{
		TTL:         time.Minute,
		GracePeriod: time.Minute,
		Refresh: func(ctx context.Context) (string, error) {
			defer close(done)
			return "", errors.New("upstream down")
		},
	})
	if err != nil {
		t.Fatalf("expected background error to be swallowed, got %v", err)
	}
	if !ok || got != "old" {
		t.Errorf("expected old, got %q", got)
	}

	<-done
	got, ok, _ = Get(ctx, c, "k", Options[string]{TTL: time.Minute, GracePeriod: time.Minute})
	if !ok || got != "old" {
		t.Errorf("expected stale entry to survive a failed refresh, got %q", got)
	}
}

func TestCache_Get_BeyondGrace(t *testing.T) {
	c, _, clock := setupCacheTest()
	ctx := context.Background()
	var calls int32

	c.Set(ctx, "k", "old")
	clock.Advance(3 * time.Minute)

	got, ok, err := Get(ctx, c, "k", Options[string]{
		TTL:         time.Minute,
		GracePeriod: time.Minute,
		Refresh:     countingRefresh(&calls, "new"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || got != "new" {
		t.Errorf("expected new, got %q", got)
	}
	if calls != 1 {
		t.Errorf("expected 1 refresh call, got %d", calls)
	}
}

func TestCache_Get_StaleWithoutGraceIsMiss(t *testing.T) {
	c, storage, clock := setupCacheTest()
	ctx := context.Background()

	c.Set(ctx, "k", "old")
	clock.Advance(2 * time.Minute)

	_, ok, err := Get(ctx, c, "k", Options[string]{TTL: time.Minute})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected no data once the ttl has passed")
	}
	if storage.Len() != 0 {
		t.Errorf("expected expired entry to be evicted, got %d entries", storage.Len())
	}
}

func TestCache_Get_SingleFlight(t *testing.T) {
	c, _, _ := setupCacheTest()
	ctx := context.Background()

	var calls int32
	release := make(chan struct{})
	refresh := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "shared", nil
	}

	var wg sync.WaitGroup
	results := make([]string, 3)
	errs := make([]error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = Get(ctx, c, "k", Options[string]{Refresh: refresh})
		}(i)
	}

	waitFor(t, func() bool { return atomic.LoadInt32(&calls) == 1 })
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("expected exactly 1 refresh, got %d", n)
	}
	for i := range results {
		if errs[i] != nil {
			t.Errorf("call %d: unexpected error: %v", i, errs[i])
		}
		if results[i] != "shared" {
			t.Errorf("call %d: expected shared, got %q", i, results[i])
		}
	}
}

func TestCache_Get_RefreshAllowedAfterSettle(t *testing.T) {
	c, _, _ := setupCacheTest()
	ctx := context.Background()
	var calls int32

	failing := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", errors.New("boom")
	}

	if _, _, err := Get(ctx, c, "k", Options[string]{Refresh: failing}); err == nil {
		t.Fatal("expected refresh error")
	}
	if _, _, err := Get(ctx, c, "k", Options[string]{Refresh: failing}); err == nil {
		t.Fatal("expected refresh error")
	}
	if calls != 2 {
		t.Errorf("expected a new refresh after the first settled, got %d calls", calls)
	}
}

func TestCache_Get_VersionMismatch(t *testing.T) {
	c, _, _ := setupCacheTest()
	ctx := context.Background()
	var calls int32

	c.SetWithVersion(ctx, "k", "v1 data", 1)

	got, ok, err := Get(ctx, c, "k", Options[string]{
		Version: 2,
		Refresh: countingRefresh(&calls, "v2 data"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || got != "v2 data" {
		t.Errorf("expected v2 data, got %q", got)
	}
	if calls != 1 {
		t.Errorf("expected 1 refresh call, got %d", calls)
	}

	got, ok, _ = Get(ctx, c, "k", Options[string]{Version: 2})
	if !ok || got != "v2 data" {
		t.Errorf("expected refreshed entry to be stored under version 2, got %q", got)
	}

	c.SetWithVersion(ctx, "other", "v1 data", 1)
	got, ok, err = Get(ctx, c, "other", Options[string]{Version: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || got != "" {
		t.Errorf("expected no data without refresh, got %q", got)
	}
}

func TestCache_SetVersion(t *testing.T) {
	c, _, _ := setupCacheTest(WithDefaultVersion(3))
	ctx := context.Background()

	c.Set(ctx, "k", "x")
	if _, ok, _ := Get(ctx, c, "k", Options[string]{Version: 3}); !ok {
		t.Error("expected entry written under the default version")
	}

	c.SetVersion(4)
	if got, ok, _ := Get(ctx, c, "k", Options[string]{}); !ok || got != "x" {
		t.Errorf("expected unversioned read to keep the earlier entry, got %q", got)
	}
	if _, ok, _ := Get(ctx, c, "k", Options[string]{Version: 4}); ok {
		t.Error("expected entry from the previous version to be invalid for version 4")
	}

	var calls int32
	if _, _, err := Get(ctx, c, "k", Options[string]{Refresh: countingRefresh(&calls, "y")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok, _ := Get(ctx, c, "k", Options[string]{Version: 4}); !ok {
		t.Error("expected refresh to write back under the current version")
	}
}

func TestCache_Get_CorruptedData(t *testing.T) {
	c, storage, _ := setupCacheTest()
	ctx := context.Background()

	for _, bad := range []string{"not base64!!", "aGVsbG8=", ""} {
		_ = storage.SetItem(ctx, "k", bad)

		got, ok, err := Get(ctx, c, "k", Options[sample]{})
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", bad, err)
		}
		if ok || !reflect.DeepEqual(got, sample{}) {
			t.Errorf("expected no data for %q, got %+v", bad, got)
		}
		if _, exists, _ := storage.GetItem(ctx, "k"); exists {
			t.Errorf("expected corrupted entry %q to be evicted", bad)
		}
	}
}

func TestCache_Get_WrongShapeIsEvicted(t *testing.T) {
	c, storage, _ := setupCacheTest()
	ctx := context.Background()
	var calls int32

	c.Set(ctx, "k", "a string")

	got, ok, err := Get(ctx, c, "k", Options[sample]{Refresh: countingRefresh(&calls, sample{Name: "s"})})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || got.Name != "s" {
		t.Errorf("expected refreshed sample, got %+v", got)
	}
	if storage.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", storage.Len())
	}
}

func TestCache_BigIntegersBecomeStrings(t *testing.T) {
	c, _, _ := setupCacheTest()
	ctx := context.Background()

	type withBig struct {
		ID    uint64 `json:"id"`
		Small int64  `json:"small"`
	}
	c.Set(ctx, "k", withBig{ID: 18446744073709551615, Small: 42})

	got, ok, err := Get(ctx, c, "k", Options[map[string]any]{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected a hit")
	}
	if got["id"] != "18446744073709551615" {
		t.Errorf("expected id as decimal string, got %#v", got["id"])
	}
	if got["small"] != float64(42) {
		t.Errorf("expected small to stay numeric, got %#v", got["small"])
	}
}

func TestCache_BigIntegersRoundTripTyped(t *testing.T) {
	c, storage, _ := setupCacheTest()
	ctx := context.Background()

	type block struct {
		ID     uint64   `json:"id"`
		Signed int64    `json:"signed"`
		Value  *big.Int `json:"value"`
	}
	want := block{ID: 1 << 60, Signed: -(1 << 62), Value: new(big.Int).Lsh(big.NewInt(1), 100)}
	c.Set(ctx, "k", want)

	got, ok, err := Get(ctx, c, "k", Options[block]{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected a hit")
	}
	if got.ID != want.ID || got.Signed != want.Signed || got.Value.Cmp(want.Value) != 0 {
		t.Errorf("expected %+v, got %+v", want, got)
	}
	if storage.Len() != 1 {
		t.Errorf("expected entry to stay stored, got %d entries", storage.Len())
	}
}

func TestCache_LargePayloadCompression(t *testing.T) {
	c, storage, _ := setupCacheTest()
	ctx := context.Background()

	items := make([]sample, 1000)
	for i := range items {
		items[i] = sample{
			Name:  fmt.Sprintf("item-%d", i),
			Count: i,
			Tags:  []string{"collective", "ledger", strings.Repeat("x", 16)},
		}
	}
	c.Set(ctx, "big", items)

	stored, _, _ := storage.GetItem(ctx, "big")
	raw, _ := marshalData(items)
	if len(raw) < 10*1024 {
		t.Fatalf("expected payload larger than 10KB, got %d bytes", len(raw))
	}
	if len(stored) >= len(raw) {
		t.Errorf("expected stored entry (%d bytes) to be smaller than raw JSON (%d bytes)", len(stored), len(raw))
	}

	got, ok, err := Get(ctx, c, "big", Options[[]sample]{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || !reflect.DeepEqual(got, items) {
		t.Error("expected large payload to round-trip")
	}
}

func TestCache_RemoveAndClear(t *testing.T) {
	c, storage, _ := setupCacheTest()
	ctx := context.Background()

	c.Set(ctx, "a", 1)
	c.Set(ctx, "b", 2)

	c.Remove(ctx, "a")
	c.Remove(ctx, "a")
	if _, ok, _ := Get(ctx, c, "a", Options[int]{}); ok {
		t.Error("expected a to be removed")
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if storage.Len() != 0 {
		t.Errorf("expected empty storage, got %d entries", storage.Len())
	}
}

func TestCache_ClearForgetsInFlightRefresh(t *testing.T) {
	c, storage, _ := setupCacheTest()
	ctx := context.Background()

	release := make(chan struct{})
	started := make(chan struct{})
	result := make(chan string, 1)
	go func() {
		v, _, _ := Get(ctx, c, "k", Options[string]{Refresh: func(ctx context.Context) (string, error) {
			close(started)
			<-release
			return "before clear", nil
		}})
		result <- v
	}()

	<-started
	if err := c.Clear(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var calls int32
	got, _, err := Get(ctx, c, "k", Options[string]{Refresh: countingRefresh(&calls, "after clear")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "after clear" || calls != 1 {
		t.Errorf("expected a new refresh after clear, got %q with %d calls", got, calls)
	}

	close(release)
	if v := <-result; v != "before clear" {
		t.Errorf("expected the original waiter to get its result, got %q", v)
	}
	stored, _, _ := Get(ctx, c, "k", Options[string]{})
	if stored != "before clear" {
		t.Errorf("expected refresh started before clear to write back when it settles, got %q", stored)
	}
	if storage.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", storage.Len())
	}
}

func TestCache_Get_CallerCancellation(t *testing.T) {
	c, _, _ := setupCacheTest()
	ctx, cancel := context.WithCancel(context.Background())

	release := make(chan struct{})
	started := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		_, _, err := Get(ctx, c, "k", Options[string]{Refresh: func(rctx context.Context) (string, error) {
			close(started)
			<-release
			return "late", rctx.Err()
		}})
		errCh <- err
	}()

	<-started
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	close(release)
	waitFor(t, func() bool {
		v, _, _ := Get(context.Background(), c, "k", Options[string]{})
		return v == "late"
	})
}

func TestCache_RefreshTimeout(t *testing.T) {
	c, _, _ := setupCacheTest(WithRefreshTimeout(20 * time.Millisecond))

	_, ok, err := Get(context.Background(), c, "k", Options[string]{Refresh: func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if ok {
		t.Error("expected no data")
	}
}

type failingStorage struct {
	*MemoryStorage
}

func (f failingStorage) SetItem(context.Context, string, string) error {
	return errors.New("disk full")
}

func TestCache_SetSwallowsStorageErrors(t *testing.T) {
	c := New(failingStorage{NewMemoryStorage()}, zap.NewNop())
	ctx := context.Background()

	c.Set(ctx, "k", "v")
	c.Set(ctx, "k", make(chan int))

	got, ok, err := Get(ctx, c, "k", Options[string]{Refresh: func(ctx context.Context) (string, error) {
		return "from source", nil
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || got != "from source" {
		t.Errorf("expected value from source, got %q", got)
	}
}

func TestCache_HealthCheck_MemoryStorage(t *testing.T) {
	c, _, _ := setupCacheTest()
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("expected nil for memory storage, got %v", err)
	}
}
