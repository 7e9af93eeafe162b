package storage

import (
	"time"

	"github.com/google/uuid"

	"flash-trader/internal/engine"
)

// Transfer request statuses.
const (
	TransferPending = "pending"
	TransferSent    = "sent"
)

// TransferRecord is a persisted transfer request awaiting or past execution.
type TransferRecord struct {
	ID int64
	// Key is assigned at queue time and is unique across stores and processes.
	Key       string
	Transfer  engine.Transfer
	Status    string
	CreatedAt time.Time
	SentAt    *time.Time
}

// NewTransferKey returns a fresh idempotency key for a queued transfer.
func NewTransferKey() string {
	return uuid.NewString()
}

// CycleRecord is everything a cycle reset commits in one transaction.
type CycleRecord struct {
	Leaderboard engine.Leaderboard
	Entry       engine.ArchiveEntry
	Traders     []engine.TraderStats
	Transfers   []engine.Transfer
}
