package storage

import (
	"context"

	"flash-trader/internal/engine"
	"flash-trader/internal/identity"
)

// TraderStore loads and saves trade activity. Missing records load as zero values.
type TraderStore interface {
	GetTraderStats(ctx context.Context, trader identity.Pubkey) (engine.TraderStats, error)
	GetLeaderboard(ctx context.Context) (engine.Leaderboard, error)
	// SaveTrade writes the trader's record and the rebuilt board atomically.
	SaveTrade(ctx context.Context, stats engine.TraderStats, board engine.Leaderboard) error
}

// CycleStore persists cycle resets and the leaderboard archive.
type CycleStore interface {
	// SaveCycle commits the board, archive entry, trader records, and transfers atomically.
	SaveCycle(ctx context.Context, rec CycleRecord) ([]TransferRecord, error)
	ListArchive(ctx context.Context, limit int) ([]engine.ArchiveEntry, error)
	PruneArchive(ctx context.Context, olderThan int64) (int64, error)
}

// StakingStore persists staking accounts and liquidity allocations.
type StakingStore interface {
	GetStakingAccount(ctx context.Context, owner identity.Pubkey) (engine.StakingAccount, error)
	SaveStakingAccount(ctx context.Context, acct engine.StakingAccount) error
	GetAllocations(ctx context.Context) (engine.Allocations, error)
	SaveAllocation(ctx context.Context, owner identity.Pubkey, value uint64) error
}

// TransferStore is the outbox of transfer requests.
type TransferStore interface {
	InsertTransfers(ctx context.Context, transfers []engine.Transfer) ([]TransferRecord, error)
	MarkTransferSent(ctx context.Context, id int64) error
	ListPendingTransfers(ctx context.Context, limit int) ([]TransferRecord, error)
}

// Repository aggregates every store the service needs.
type Repository interface {
	TraderStore
	CycleStore
	StakingStore
	TransferStore
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}
