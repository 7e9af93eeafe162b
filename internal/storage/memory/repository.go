// Package memory provides an in-process storage.Repository for tests and
// for running without PostgreSQL.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"flash-trader/internal/engine"
	"flash-trader/internal/identity"
	"flash-trader/internal/storage"
)

// Repository is an in-memory implementation of storage.Repository.
type Repository struct {
	mu          sync.RWMutex
	traders     map[identity.Pubkey]engine.TraderStats
	board       engine.Leaderboard
	archive     engine.Archive
	accounts    map[identity.Pubkey]engine.StakingAccount
	allocations engine.Allocations
	transfers   []storage.TransferRecord
	nextID      int64
	now         func() time.Time
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{
		traders:     make(map[identity.Pubkey]engine.TraderStats),
		accounts:    make(map[identity.Pubkey]engine.StakingAccount),
		allocations: make(engine.Allocations),
		now:         time.Now,
	}
}

// GetTraderStats returns the stored record or a fresh one.
func (r *Repository) GetTraderStats(_ context.Context, trader identity.Pubkey) (engine.TraderStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if stats, ok := r.traders[trader]; ok {
		return stats, nil
	}
	return engine.NewTraderStats(trader), nil
}

// GetLeaderboard returns a copy of the board.
func (r *Repository) GetLeaderboard(_ context.Context) (engine.Leaderboard, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.board.Clone(), nil
}

// SaveTrade stores the trader record and the board together.
func (r *Repository) SaveTrade(_ context.Context, stats engine.TraderStats, board engine.Leaderboard) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.traders[stats.Trader] = stats
	r.board = board.Clone()
	return nil
}

// SaveCycle applies a cycle reset and queues its transfers.
func (r *Repository) SaveCycle(_ context.Context, rec storage.CycleRecord) ([]storage.TransferRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.board = rec.Leaderboard.Clone()
	r.archive = r.archive.Append(engine.ArchiveEntry{
		Timestamp:  rec.Entry.Timestamp,
		TopTraders: slices.Clone(rec.Entry.TopTraders),
	})
	for _, stats := range rec.Traders {
		r.traders[stats.Trader] = stats
	}
	return r.queue(rec.Transfers), nil
}

// ListArchive returns up to limit entries, newest first.
func (r *Repository) ListArchive(_ context.Context, limit int) ([]engine.ArchiveEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := slices.Clone(r.archive.Entries)
	slices.Reverse(entries)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].TopTraders = slices.Clone(entries[i].TopTraders)
	}
	return entries, nil
}

// PruneArchive removes entries strictly older than olderThan.
func (r *Repository) PruneArchive(_ context.Context, olderThan int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int
	r.archive, removed = r.archive.Prune(olderThan)
	return int64(removed), nil
}

// GetStakingAccount returns the stored account or an empty one.
func (r *Repository) GetStakingAccount(_ context.Context, owner identity.Pubkey) (engine.StakingAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if acct, ok := r.accounts[owner]; ok {
		return acct, nil
	}
	return engine.NewStakingAccount(owner), nil
}

// SaveStakingAccount stores acct.
func (r *Repository) SaveStakingAccount(_ context.Context, acct engine.StakingAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[acct.Owner] = acct
	return nil
}

// GetAllocations returns a copy of all allocations.
func (r *Repository) GetAllocations(_ context.Context) (engine.Allocations, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.allocations), nil
}

// SaveAllocation records owner's allocation.
func (r *Repository) SaveAllocation(_ context.Context, owner identity.Pubkey, value uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.allocations[owner] = value
	return nil
}

// InsertTransfers queues transfers as pending.
func (r *Repository) InsertTransfers(_ context.Context, transfers []engine.Transfer) ([]storage.TransferRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queue(transfers), nil
}

// MarkTransferSent flags a queued transfer as sent.
func (r *Repository) MarkTransferSent(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.transfers {
		if r.transfers[i].ID == id {
			sentAt := r.now().UTC()
			r.transfers[i].Status = storage.TransferSent
			r.transfers[i].SentAt = &sentAt
			return nil
		}
	}
	return fmt.Errorf("mark transfer %d: %w", id, storage.ErrTransferNotFound)
}

// ListPendingTransfers returns pending transfers in insertion order.
func (r *Repository) ListPendingTransfers(_ context.Context, limit int) ([]storage.TransferRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var pending []storage.TransferRecord
	for _, rec := range r.transfers {
		if rec.Status != storage.TransferPending {
			continue
		}
		pending = append(pending, rec)
		if limit > 0 && len(pending) == limit {
			break
		}
	}
	return pending, nil
}

// queue must be called with mu held.
func (r *Repository) queue(transfers []engine.Transfer) []storage.TransferRecord {
	queued := make([]storage.TransferRecord, 0, len(transfers))
	for _, t := range transfers {
		r.nextID++
		rec := storage.TransferRecord{
			ID:        r.nextID,
			Key:       storage.NewTransferKey(),
			Transfer:  t,
			Status:    storage.TransferPending,
			CreatedAt: r.now().UTC(),
		}
		r.transfers = append(r.transfers, rec)
		queued = append(queued, rec)
	}
	return queued
}
