package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	calls atomic.Int32
	delay time.Duration
}

func (c *countingSource) Name() string { return "counting" }

func (c *countingSource) Fetch(ctx context.Context) (Catalog, error) {
	c.calls.Add(1)
	select {
	case <-time.After(c.delay):
	case <-ctx.Done():
		return Catalog{}, ctx.Err()
	}
	return SampleCatalog(), nil
}

func TestRegistry_StartsEmpty(t *testing.T) {
	reg := New(NewStaticSource(SampleCatalog()))
	snap := reg.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, uint64(0), snap.Version())
	assert.Equal(t, 0, snap.Count(CategoryMachines))
}

func TestRegistry_RefreshKeepsLastGood(t *testing.T) {
	src := NewStaticSource(SampleCatalog())
	reg := New(src)

	first, err := reg.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, first.Contains(CategoryMachines, "Pump-2"))

	src.Fail(errors.New("directory service unreachable"))
	served, err := reg.Refresh(context.Background())
	require.Error(t, err)
	assert.Same(t, first, served)
	assert.Same(t, first, reg.Snapshot())
	assert.Contains(t, reg.Status().LastError, "unreachable")

	src.Set(Catalog{Machines: []Member{{Name: "Press-9"}}})
	next, err := reg.Refresh(context.Background())
	require.NoError(t, err)
	assert.Greater(t, next.Version(), first.Version())
	assert.Empty(t, reg.Status().LastError)
	assert.False(t, reg.Snapshot().Contains(CategoryMachines, "Pump-2"))
}

func TestRegistry_InvalidCatalogKeepsLastGood(t *testing.T) {
	src := NewStaticSource(SampleCatalog())
	reg := New(src)
	good, err := reg.Refresh(context.Background())
	require.NoError(t, err)

	src.Set(Catalog{Machines: []Member{{Name: "A-1"}, {Name: "A-1"}}})
	_, err = reg.Refresh(context.Background())
	require.Error(t, err)
	assert.Same(t, good, reg.Snapshot())
}

func TestRegistry_ConcurrentRefreshShared(t *testing.T) {
	src := &countingSource{delay: 100 * time.Millisecond}
	reg := New(src)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.Refresh(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, src.calls.Load(), int32(2), "refreshes in flight are shared")
}

func TestRegistry_SnapshotStableDuringRefresh(t *testing.T) {
	src := NewStaticSource(SampleCatalog())
	reg := New(src)
	_, err := reg.Refresh(context.Background())
	require.NoError(t, err)

	held := reg.Snapshot()
	src.Set(Catalog{})
	_, err = reg.Refresh(context.Background())
	require.NoError(t, err)

	assert.True(t, held.Contains(CategoryMachines, "Compressor-1"), "a held snapshot never changes")
	assert.False(t, reg.Snapshot().Contains(CategoryMachines, "Compressor-1"))
}

func TestFileSource_FetchAndWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, WriteCatalog(path, SampleCatalog()))

	src := NewFileSource(path)
	src.debounce = 20 * time.Millisecond

	c, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, c.Machines, 5)

	ctx, cancel := context.WithCancel(context.Background())
	var changes atomic.Int32
	done := make(chan error, 1)
	go func() { done <- src.Watch(ctx, func() { changes.Add(1) }) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, WriteCatalog(path, Catalog{Machines: []Member{{Name: "Press-9"}}}))

	assert.Eventually(t, func() bool { return changes.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	c, err = src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, c.Machines, 1)
	assert.Equal(t, "Press-9", c.Machines[0].Name)
}

func TestFileSource_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte("machines: {name: ["), 0644))
	_, err := NewFileSource(path).Fetch(context.Background())
	assert.Error(t, err)
}

func TestSQLiteSource_RoundTrip(t *testing.T) {
	src, err := OpenSQLiteSource(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	defer src.Close()

	want := SampleCatalog()
	require.NoError(t, src.Import(context.Background(), want))

	got, err := src.Fetch(context.Background())
	require.NoError(t, err)

	sortAliases := cmp.Transformer("sortAliases", func(in []string) []string {
		out := append([]string(nil), in...)
		sort.Strings(out)
		return out
	})
	if diff := cmp.Diff(want, got, sortAliases); diff != "" {
		t.Fatalf("catalog mismatch (-want +got):\n%s", diff)
	}

	reg := New(src)
	snap, err := reg.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Contains(CategoryEnergySources, "natural_gas"))
}

func TestRefresher(t *testing.T) {
	_, err := NewRefresher(New(NewStaticSource(Catalog{})), "every now and then", 0)
	require.Error(t, err)

	src := NewStaticSource(SampleCatalog())
	reg := New(src)
	r, err := NewRefresher(reg, "@every 1s", time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	assert.Eventually(t, func() bool { return reg.Snapshot().Version() > 0 }, 3*time.Second, 50*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
