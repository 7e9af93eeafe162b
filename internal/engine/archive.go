package engine

import (
	"slices"

	"flash-trader/internal/identity"
)

// ArchiveEntry is a timestamped snapshot of the ranking at cycle reset.
type ArchiveEntry struct {
	Timestamp  int64             `json:"timestamp"`
	TopTraders []identity.Pubkey `json:"top_traders"`
}

// Snapshot captures the leaderboard's identity order.
func Snapshot(now int64, lb Leaderboard) ArchiveEntry {
	return ArchiveEntry{Timestamp: now, TopTraders: lb.Ranking()}
}

// Archive is the append-only history of cycle winners.
type Archive struct {
	Entries []ArchiveEntry `json:"entries"`
}

// Append returns the archive with entry added at the end. No dedup, no cap.
func (a Archive) Append(entry ArchiveEntry) Archive {
	entries := make([]ArchiveEntry, 0, len(a.Entries)+1)
	entries = append(entries, a.Entries...)
	entries = append(entries, entry)
	return Archive{Entries: entries}
}

// Prune drops entries strictly older than cutoff and reports how many were removed.
func (a Archive) Prune(cutoff int64) (Archive, int) {
	kept := slices.DeleteFunc(slices.Clone(a.Entries), func(e ArchiveEntry) bool {
		return e.Timestamp < cutoff
	})
	return Archive{Entries: kept}, len(a.Entries) - len(kept)
}
