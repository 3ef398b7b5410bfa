package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/citecheck/internal/model"
)

func sampleRecord() model.CacheRecord {
	return model.CacheRecord{
		CaseName:          "State v. Smith",
		Year:              "2000",
		ParallelCitations: []string{"100 wn.2d 1", "5 p.3d 2"},
		Verification: model.VerificationResult{
			Verified:      true,
			CanonicalName: "State v. Smith",
			CanonicalDate: model.ParseDate("2000-06-01"),
			URL:           "https://www.courtlistener.com/opinion/1/state-v-smith/",
			Source:        model.SourcePrimaryLookup,
			Confidence:    0.9,
		},
	}
}

func newDurable(t *testing.T) *DurableCache {
	t.Helper()
	d, err := NewDurableCache(filepath.Join(t.TempDir(), "citations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func newRemote(t *testing.T) (*RemoteCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r, err := NewRemoteCache(context.Background(), RemoteOptions{Addr: mr.Addr(), TTL: time.Hour}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, mr
}

func TestMemoryCache_RoundTripAndIsolation(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Hour, 10)

	require.NoError(t, c.Set(ctx, "100 wn.2d 1", sampleRecord()))

	got, err := c.Get(ctx, "100 wn.2d 1")
	require.NoError(t, err)
	assert.Equal(t, sampleRecord(), got)

	got.ParallelCitations[0] = "mutated"
	again, err := c.Get(ctx, "100 wn.2d 1")
	require.NoError(t, err)
	assert.Equal(t, "100 wn.2d 1", again.ParallelCitations[0])

	_, err = c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Hour, 2)

	require.NoError(t, c.Set(ctx, "a", sampleRecord()))
	require.NoError(t, c.Set(ctx, "b", sampleRecord()))
	_, err := c.Get(ctx, "a") // a is now most recent
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "c", sampleRecord()))

	_, err = c.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrMiss, "b should have been evicted")
	_, err = c.Get(ctx, "a")
	assert.NoError(t, err)
	_, err = c.Get(ctx, "c")
	assert.NoError(t, err)
	assert.Equal(t, 2, c.Len())
}

func TestMemoryCache_Expires(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(20*time.Millisecond, 10)

	require.NoError(t, c.Set(ctx, "a", sampleRecord()))
	time.Sleep(50 * time.Millisecond)

	_, err := c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrMiss)
	assert.Equal(t, 0, c.Len())
}

func TestDiskCache_RoundTripExpiryAndClear(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	c := NewDiskCache(dir, time.Hour)
	require.NoError(t, c.Set(ctx, "347 u.s. 483", sampleRecord()))

	got, err := c.Get(ctx, "347 u.s. 483")
	require.NoError(t, err)
	assert.Equal(t, sampleRecord(), got)

	files, _ := filepath.Glob(filepath.Join(dir, "*.json"))
	assert.Len(t, files, 1)
	assert.Equal(t, HashKey("347 u.s. 483")+".json", filepath.Base(files[0]))

	require.NoError(t, c.Clear(ctx))
	_, err = c.Get(ctx, "347 u.s. 483")
	assert.ErrorIs(t, err, ErrMiss)

	expiring := NewDiskCache(dir, time.Millisecond)
	require.NoError(t, expiring.Set(ctx, "k", sampleRecord()))
	time.Sleep(10 * time.Millisecond)
	_, err = expiring.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestDurableCache_RoundTripAndRecent(t *testing.T) {
	ctx := context.Background()
	d := newDurable(t)

	for i := 0; i < 3; i++ {
		rec := sampleRecord()
		rec.CaseName = fmt.Sprintf("Case %d", i)
		require.NoError(t, d.Set(ctx, fmt.Sprintf("key-%d", i), rec))
		time.Sleep(2 * time.Millisecond)
	}

	got, err := d.Get(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "Case 1", got.CaseName)
	assert.Equal(t, sampleRecord().Verification, got.Verification)

	recent, err := d.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "key-2", recent[0].Key)
	assert.Equal(t, "key-1", recent[1].Key)

	n, err := d.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = d.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestDurableCache_ConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	d := newDurable(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, d.Set(ctx, fmt.Sprintf("key-%d", i), sampleRecord()))
		}(i)
	}
	wg.Wait()

	n, err := d.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, n)
}

func TestDurableCache_WriteAfterClose(t *testing.T) {
	d := newDurable(t)
	require.NoError(t, d.Close())

	err := d.Set(context.Background(), "k", sampleRecord())
	assert.ErrorIs(t, err, ErrTierUnavailable)
}

func TestRemoteCache_CompressedRoundTrip(t *testing.T) {
	ctx := context.Background()
	r, mr := newRemote(t)

	require.NoError(t, r.Set(ctx, "347 u.s. 483", sampleRecord()))

	raw, err := mr.Get(remoteKeyPrefix + "347 u.s. 483")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(raw), 2)
	assert.Equal(t, []byte{0x1f, 0x8b}, []byte(raw[:2]), "expected gzip payload")

	got, err := r.Get(ctx, "347 u.s. 483")
	require.NoError(t, err)
	assert.Equal(t, sampleRecord(), got)

	mr.FastForward(2 * time.Hour)
	_, err = r.Get(ctx, "347 u.s. 483")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRemoteCache_ClearKeepsForeignKeys(t *testing.T) {
	ctx := context.Background()
	r, mr := newRemote(t)

	require.NoError(t, r.Set(ctx, "a", sampleRecord()))
	require.NoError(t, r.Set(ctx, "b", sampleRecord()))
	require.NoError(t, mr.Set("other:key", "value"))

	require.NoError(t, r.Clear(ctx))
	assert.Equal(t, []string{"other:key"}, mr.Keys())
}

func TestRemoteCache_UnreachableIsUnavailable(t *testing.T) {
	orig := remoteConnectBackoff
	remoteConnectBackoff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
	defer func() { remoteConnectBackoff = orig }()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRemoteCache(context.Background(), RemoteOptions{Addr: addr, ConnectRetries: 2}, nil)
	assert.ErrorIs(t, err, ErrTierUnavailable)
}

func TestStore_MemoryOnlyRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStore(StoreOptions{Memory: NewMemoryCache(time.Hour, 100)}, nil)

	require.NoError(t, s.Set(ctx, "347 u.s. 483", sampleRecord()))

	got, tier, err := s.Get(ctx, "347 u.s. 483")
	require.NoError(t, err)
	assert.Equal(t, TierMemory, tier)
	assert.Equal(t, sampleRecord(), got)
}

func TestStore_ColdDurableRoundTripBackfills(t *testing.T) {
	ctx := context.Background()
	durable := newDurable(t)
	require.NoError(t, durable.Set(ctx, "347 u.s. 483", sampleRecord()))

	memory := NewMemoryCache(time.Hour, 100)
	disk := NewDiskCache(t.TempDir(), time.Hour)
	s := NewStore(StoreOptions{Memory: memory, Disk: disk, Durable: durable}, nil)

	got, tier, err := s.Get(ctx, "347 u.s. 483")
	require.NoError(t, err)
	assert.Equal(t, TierDurable, tier)
	assert.Equal(t, sampleRecord(), got)

	_, err = memory.Get(ctx, "347 u.s. 483")
	assert.NoError(t, err, "memory tier should be back-filled")
	_, err = disk.Get(ctx, "347 u.s. 483")
	assert.NoError(t, err, "disk tier should be back-filled")

	_, tier, err = s.Get(ctx, "347 u.s. 483")
	require.NoError(t, err)
	assert.Equal(t, TierMemory, tier)
}

func TestStore_RemoteBackfill(t *testing.T) {
	ctx := context.Background()
	remote, _ := newRemote(t)
	durable := newDurable(t)
	require.NoError(t, durable.Set(ctx, "k", sampleRecord()))

	s := NewStore(StoreOptions{Memory: NewMemoryCache(time.Hour, 10), Remote: remote, Durable: durable}, nil)
	_, tier, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, TierDurable, tier)

	_, err = remote.Get(ctx, "k")
	assert.NoError(t, err)
}

func TestStore_SetToleratesTierFailure(t *testing.T) {
	ctx := context.Background()
	durable := newDurable(t)
	require.NoError(t, durable.Close())

	s := NewStore(StoreOptions{Memory: NewMemoryCache(time.Hour, 10), Durable: durable}, nil)
	assert.NoError(t, s.Set(ctx, "k", sampleRecord()))

	onlyBroken := NewStore(StoreOptions{Durable: durable}, nil)
	assert.Error(t, onlyBroken.Set(ctx, "k", sampleRecord()))
}

func TestStore_Miss(t *testing.T) {
	s := NewStore(StoreOptions{Memory: NewMemoryCache(time.Hour, 10)}, nil)
	_, _, err := s.Get(context.Background(), "nothing")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestStore_WarmIntoRemote(t *testing.T) {
	ctx := context.Background()
	remote, _ := newRemote(t)
	durable := newDurable(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, durable.Set(ctx, fmt.Sprintf("key-%d", i), sampleRecord()))
		time.Sleep(2 * time.Millisecond)
	}

	s := NewStore(StoreOptions{Memory: NewMemoryCache(time.Hour, 10), Remote: remote, Durable: durable}, nil)
	n, err := s.Warm(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = remote.Get(ctx, "key-4")
	assert.NoError(t, err)
	_, err = remote.Get(ctx, "key-0")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestStore_WarmIntoMemoryWithoutRemote(t *testing.T) {
	ctx := context.Background()
	durable := newDurable(t)
	require.NoError(t, durable.Set(ctx, "k", sampleRecord()))

	memory := NewMemoryCache(time.Hour, 10)
	s := NewStore(StoreOptions{Memory: memory, Durable: durable}, nil)
	n, err := s.Warm(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = memory.Get(ctx, "k")
	assert.NoError(t, err)

	noDurable := NewStore(StoreOptions{Memory: memory}, nil)
	_, err = noDurable.Warm(ctx, 10)
	assert.ErrorIs(t, err, ErrTierUnavailable)
}

func TestStore_ClearByTier(t *testing.T) {
	ctx := context.Background()
	memory := NewMemoryCache(time.Hour, 10)
	durable := newDurable(t)
	s := NewStore(StoreOptions{Memory: memory, Durable: durable}, nil)
	require.NoError(t, s.Set(ctx, "k", sampleRecord()))

	require.NoError(t, s.Clear(ctx, TierMemory))
	_, err := memory.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
	_, err = durable.Get(ctx, "k")
	assert.NoError(t, err)

	assert.ErrorIs(t, s.Clear(ctx, TierRemote), ErrTierUnavailable)
	assert.Error(t, s.Clear(ctx, "bogus"))

	require.NoError(t, s.Clear(ctx, TierAll))
	_, err = durable.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	assert.Equal(t, []string{TierMemory, TierDurable}, s.Tiers())
}
