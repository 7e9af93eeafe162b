package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"flash-trader/internal/config"
	"flash-trader/internal/engine"
	"flash-trader/internal/identity"
)

// setupStore starts a PostgreSQL container and applies the embedded schema.
// Set FLASHTRADER_INTEGRATION=1 to run; it needs a Docker daemon.
func setupStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("FLASHTRADER_INTEGRATION") != "1" {
		t.Skip("FLASHTRADER_INTEGRATION not set")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("flashtrader"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, config.DatabaseConfig{DSN: dsn, MaxOpenConns: 4})
	require.NoError(t, err)

	store := NewStore(pool)
	require.NoError(t, store.Migrate(ctx))
	// second run must be a no-op
	require.NoError(t, store.Migrate(ctx))

	t.Cleanup(func() {
		store.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})
	return store
}

func key(b byte) identity.Pubkey {
	var k identity.Pubkey
	k[31] = b
	return k
}

func TestNilStoreNotConfigured(t *testing.T) {
	var s *Store
	_, err := s.GetLeaderboard(context.Background())
	assert.True(t, errors.Is(err, ErrNotConfigured))

	_, _, err = s.TryAdvisoryLock(context.Background(), 1)
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestNewPoolRequiresDSN(t *testing.T) {
	_, err := NewPool(context.Background(), config.DatabaseConfig{})
	assert.Error(t, err)
}

func TestStoreTradeRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	fresh, err := store.GetTraderStats(ctx, key(1))
	require.NoError(t, err)
	assert.Equal(t, engine.NewTraderStats(key(1)), fresh)

	stats := engine.TraderStats{
		Trader:          key(1),
		OneMinCount:     ^uint64(0),
		FiveMinCount:    4,
		FifteenMinCount: 9,
		LastTradeTime:   1_700_000_000,
		StreakCounter:   2,
	}
	board := engine.Leaderboard{LastResetTime: 42}.Record(stats)
	require.NoError(t, store.SaveTrade(ctx, stats, board))

	got, err := store.GetTraderStats(ctx, key(1))
	require.NoError(t, err)
	assert.Equal(t, stats, got)

	gotBoard, err := store.GetLeaderboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, board, gotBoard)
}

func TestStoreCycleAndOutbox(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	rec := CycleRecord{
		Leaderboard: engine.Leaderboard{Traders: []engine.TraderStats{{Trader: key(1), StreakCounter: 1}}, LastResetTime: 1000},
		Entry:       engine.ArchiveEntry{Timestamp: 1000, TopTraders: []identity.Pubkey{key(1), key(2)}},
		Traders:     []engine.TraderStats{{Trader: key(1), StreakCounter: 1}},
		Transfers: []engine.Transfer{
			{Destination: key(1), Amount: 25_000_000, Purpose: engine.PurposeReward},
			{Destination: key(1), Amount: 10_000_000, Purpose: engine.PurposeLotteryBonus},
		},
	}
	queued, err := store.SaveCycle(ctx, rec)
	require.NoError(t, err)
	require.Len(t, queued, 2)
	assert.NotEqual(t, queued[0].Key, queued[1].Key)

	entries, err := store.ListArchive(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, rec.Entry, entries[0])

	for _, limit := range []int{0, -1} {
		entries, err = store.ListArchive(ctx, limit)
		require.NoError(t, err)
		assert.Len(t, entries, 1, "limit %d", limit)
	}

	require.NoError(t, store.MarkTransferSent(ctx, queued[0].ID))
	pending, err := store.ListPendingTransfers(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, rec.Transfers[1], pending[0].Transfer)
	assert.Equal(t, queued[1].Key, pending[0].Key)

	pending, err = store.ListPendingTransfers(ctx, -1)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	err = store.MarkTransferSent(ctx, 1<<40)
	assert.True(t, errors.Is(err, ErrTransferNotFound))

	removed, err := store.PruneArchive(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestStoreStakingAndAllocations(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	acct, err := engine.Stake(engine.NewStakingAccount(key(3)), engine.TierTwoThreshold, 3600, 1000)
	require.NoError(t, err)
	require.NoError(t, store.SaveStakingAccount(ctx, acct))

	got, err := store.GetStakingAccount(ctx, key(3))
	require.NoError(t, err)
	assert.Equal(t, acct, got)

	require.NoError(t, store.SaveAllocation(ctx, key(3), 5000))
	allocs, err := store.GetAllocations(ctx)
	require.NoError(t, err)
	assert.Equal(t, engine.Allocations{key(3): 5000}, allocs)
}

func TestStoreAdvisoryLock(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	unlock, ok, err := store.TryAdvisoryLock(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)

	_, again, err := store.TryAdvisoryLock(ctx, 7)
	require.NoError(t, err)
	assert.False(t, again)

	unlock()
	unlock2, ok, err := store.TryAdvisoryLock(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok)
	unlock2()
}
