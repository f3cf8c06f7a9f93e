package statefile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mastodon_syncer/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestStore(t *testing.T, historySize int) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sync_state.json")
	store, err := New(path, historySize, testLogger())
	require.NoError(t, err)
	return store, path
}

func TestNew_CreatesFileWithDefaults(t *testing.T) {
	_, path := newTestStore(t, 100)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var state domain.SyncState
	require.NoError(t, json.Unmarshal(data, &state))
	assert.Empty(t, state.PostedItems)
	assert.Nil(t, state.LastSync)
	assert.Equal(t, domain.Stats{}, state.Stats)
}

func TestNew_RejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync_state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := New(path, 100, testLogger())
	assert.Error(t, err)
}

func TestMarkPosted_PersistsImmediately(t *testing.T) {
	ctx := context.Background()
	store, path := newTestStore(t, 100)

	require.NoError(t, store.MarkPosted(ctx, "abc123"))

	// A fresh store must see the mutation; every write is flushed.
	reloaded, err := New(path, 100, testLogger())
	require.NoError(t, err)

	posted, err := reloaded.IsPosted(ctx, "abc123")
	require.NoError(t, err)
	assert.True(t, posted)

	stats, err := reloaded.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
}

func TestMarkPosted_SetsLastSync(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, 100)
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	require.NoError(t, store.MarkPosted(ctx, "x"))
	require.NotNil(t, store.state.LastSync)
	assert.Equal(t, fixed, *store.state.LastSync)
}

func TestMarkPosted_HistoryCapEvictsOldest(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, 3)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.MarkPosted(ctx, fmt.Sprintf("id-%d", i)))
	}

	// Most recent first, capped at 3.
	assert.Equal(t, []string{"id-4", "id-3", "id-2"}, store.state.PostedItems)

	evicted, err := store.IsPosted(ctx, "id-0")
	require.NoError(t, err)
	assert.False(t, evicted)

	kept, err := store.IsPosted(ctx, "id-4")
	require.NoError(t, err)
	assert.True(t, kept)

	// The total counter is not capped.
	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Total)
}

func TestIsPosted_UnknownID(t *testing.T) {
	store, _ := newTestStore(t, 100)
	posted, err := store.IsPosted(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.False(t, posted)
}

func TestCounters(t *testing.T) {
	ctx := context.Background()
	store, path := newTestStore(t, 100)

	require.NoError(t, store.IncrementFailed(ctx))
	require.NoError(t, store.IncrementFailed(ctx))
	require.NoError(t, store.IncrementMediaUploaded(ctx, 1))
	require.NoError(t, store.IncrementMediaUploaded(ctx, 3))

	reloaded, err := New(path, 100, testLogger())
	require.NoError(t, err)

	stats, err := reloaded.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Stats{Total: 0, Failed: 2, MediaUploaded: 4}, stats)
}

func TestNew_LoadsExistingState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync_state.json")
	existing := `{"postedItems":["a","b"],"lastSync":"2025-06-01T10:00:00Z","stats":{"total":7,"failed":1,"mediaUploaded":4}}`
	require.NoError(t, os.WriteFile(path, []byte(existing), 0o644))

	store, err := New(path, 100, testLogger())
	require.NoError(t, err)

	posted, err := store.IsPosted(context.Background(), "b")
	require.NoError(t, err)
	assert.True(t, posted)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, stats.Total)
}
