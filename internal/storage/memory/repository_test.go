package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flash-trader/internal/engine"
	"flash-trader/internal/identity"
	"flash-trader/internal/storage"
)

func pk(b byte) identity.Pubkey {
	var k identity.Pubkey
	k[0] = b
	return k
}

func TestRepository_MissingRecordsAreZero(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	stats, err := repo.GetTraderStats(ctx, pk(1))
	require.NoError(t, err)
	assert.Equal(t, engine.NewTraderStats(pk(1)), stats)

	acct, err := repo.GetStakingAccount(ctx, pk(2))
	require.NoError(t, err)
	assert.Equal(t, pk(2), acct.Owner)
	assert.Zero(t, acct.StakedAmount)

	lb, err := repo.GetLeaderboard(ctx)
	require.NoError(t, err)
	assert.Empty(t, lb.Traders)
}

func TestRepository_SaveTradeCopiesBoard(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	stats := engine.TraderStats{Trader: pk(1), OneMinCount: 3, LastTradeTime: 100}
	board := engine.Leaderboard{}.Record(stats)
	require.NoError(t, repo.SaveTrade(ctx, stats, board))

	// mutating the caller's slice must not reach the stored board
	board.Traders[0].OneMinCount = 99

	got, err := repo.GetLeaderboard(ctx)
	require.NoError(t, err)
	require.Len(t, got.Traders, 1)
	assert.Equal(t, uint64(3), got.Traders[0].OneMinCount)

	gotStats, err := repo.GetTraderStats(ctx, pk(1))
	require.NoError(t, err)
	assert.Equal(t, stats, gotStats)
}

func TestRepository_SaveCycleAndArchive(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	for i, ts := range []int64{100, 200, 300} {
		rec := storage.CycleRecord{
			Leaderboard: engine.Leaderboard{LastResetTime: ts},
			Entry:       engine.ArchiveEntry{Timestamp: ts, TopTraders: []identity.Pubkey{pk(byte(i + 1))}},
			Traders:     []engine.TraderStats{{Trader: pk(byte(i + 1)), StreakCounter: 1}},
			Transfers:   []engine.Transfer{{Destination: pk(byte(i + 1)), Amount: 10, Purpose: engine.PurposeReward}},
		}
		queued, err := repo.SaveCycle(ctx, rec)
		require.NoError(t, err)
		require.Len(t, queued, 1)
		assert.Equal(t, storage.TransferPending, queued[0].Status)
	}

	entries, err := repo.ListArchive(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(300), entries[0].Timestamp)
	assert.Equal(t, int64(200), entries[1].Timestamp)

	removed, err := repo.PruneArchive(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	entries, err = repo.ListArchive(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	lb, err := repo.GetLeaderboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(300), lb.LastResetTime)
}

func TestRepository_TransferOutbox(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	queued, err := repo.InsertTransfers(ctx, []engine.Transfer{
		{Destination: pk(1), Amount: 5, Purpose: engine.PurposeFlashLoan},
		{Destination: pk(2), Amount: 7, Purpose: engine.PurposeBurn},
	})
	require.NoError(t, err)
	require.Len(t, queued, 2)
	assert.Less(t, queued[0].ID, queued[1].ID)
	assert.NotEmpty(t, queued[0].Key)
	assert.NotEqual(t, queued[0].Key, queued[1].Key)

	// IDs restart in every repository; keys do not.
	other, err := NewRepository().InsertTransfers(ctx, []engine.Transfer{{Destination: pk(1), Amount: 5, Purpose: engine.PurposeFlashLoan}})
	require.NoError(t, err)
	assert.Equal(t, queued[0].ID, other[0].ID)
	assert.NotEqual(t, queued[0].Key, other[0].Key)

	require.NoError(t, repo.MarkTransferSent(ctx, queued[0].ID))

	pending, err := repo.ListPendingTransfers(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, queued[1].ID, pending[0].ID)
	assert.Equal(t, queued[1].Key, pending[0].Key)

	entries, err := repo.ListArchive(ctx, -1)
	require.NoError(t, err)
	assert.Empty(t, entries)

	err = repo.MarkTransferSent(ctx, 999)
	assert.True(t, errors.Is(err, storage.ErrTransferNotFound))
}

func TestRepository_Allocations(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	require.NoError(t, repo.SaveAllocation(ctx, pk(1), 1000))
	require.NoError(t, repo.SaveAllocation(ctx, pk(1), 5000))

	allocs, err := repo.GetAllocations(ctx)
	require.NoError(t, err)
	assert.Equal(t, engine.Allocations{pk(1): 5000}, allocs)

	allocs[pk(2)] = 1
	again, err := repo.GetAllocations(ctx)
	require.NoError(t, err)
	assert.Len(t, again, 1)
}
