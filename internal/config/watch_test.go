package config

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchShops_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "shops.yaml", "shops: [{id: a}]")

	var mu sync.Mutex
	var seen [][]string
	onUpdate := func(cfg *ShopsConfig) {
		ids := make([]string, 0, len(cfg.Shops))
		for _, s := range cfg.Shops {
			ids = append(ids, s.ID)
		}
		mu.Lock()
		seen = append(seen, ids)
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, WatchShops(ctx, path, 10*time.Millisecond, zerolog.Nop(), onUpdate))

	mu.Lock()
	require.Len(t, seen, 1)
	mu.Unlock()

	// An invalid edit is skipped.
	require.NoError(t, os.WriteFile(path, []byte("shops: []"), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("shops: [{id: a}, {id: b}]"), 0o644))
	later := future.Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, later, later))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"a", "b"}, seen[1])
	mu.Unlock()
}

func TestWatchShops_InitialLoadError(t *testing.T) {
	err := WatchShops(context.Background(), "/nonexistent/shops.yaml", time.Second, zerolog.Nop(), nil)
	assert.Error(t, err)
}
