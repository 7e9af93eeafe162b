package engine

import (
	"cmp"
	"slices"

	"flash-trader/internal/identity"
)

// MaxLeaderboardEntries bounds the ranked collection.
const MaxLeaderboardEntries = 10

// Leaderboard holds the top traders ranked by OneMinCount, highest first.
// It is a value: Record returns a rebuilt board and never edits the receiver.
type Leaderboard struct {
	Traders       []TraderStats `json:"traders"`
	LastResetTime int64         `json:"last_reset_time"`
}

// Record inserts or replaces the trader's snapshot, re-sorts, and truncates.
// Equal counts keep their prior relative order. Traders pushed past the cap drop out silently.
func (lb Leaderboard) Record(stats TraderStats) Leaderboard {
	traders := make([]TraderStats, 0, len(lb.Traders)+1)
	traders = append(traders, lb.Traders...)

	idx := slices.IndexFunc(traders, func(t TraderStats) bool { return t.Trader == stats.Trader })
	if idx >= 0 {
		traders[idx] = stats
	} else {
		traders = append(traders, stats)
	}

	sortByActivity(traders)
	if len(traders) > MaxLeaderboardEntries {
		traders = slices.Clip(traders[:MaxLeaderboardEntries])
	}

	return Leaderboard{Traders: traders, LastResetTime: lb.LastResetTime}
}

func sortByActivity(traders []TraderStats) {
	slices.SortStableFunc(traders, func(a, b TraderStats) int {
		return cmp.Compare(b.OneMinCount, a.OneMinCount)
	})
}

// Ranking returns trader identities in rank order.
func (lb Leaderboard) Ranking() []identity.Pubkey {
	ids := make([]identity.Pubkey, len(lb.Traders))
	for i, t := range lb.Traders {
		ids[i] = t.Trader
	}
	return ids
}

// Rank returns the 1-based position of trader, or 0 when not ranked.
func (lb Leaderboard) Rank(trader identity.Pubkey) int {
	for i, t := range lb.Traders {
		if t.Trader == trader {
			return i + 1
		}
	}
	return 0
}

// TotalActivity sums OneMinCount over all entries.
func (lb Leaderboard) TotalActivity() (uint64, error) {
	return totalActivity(lb.Traders)
}

// Clone returns a deep copy.
func (lb Leaderboard) Clone() Leaderboard {
	return Leaderboard{Traders: slices.Clone(lb.Traders), LastResetTime: lb.LastResetTime}
}

func totalActivity(entries []TraderStats) (uint64, error) {
	var total uint64
	for _, e := range entries {
		var err error
		if total, err = checkedAdd(total, e.OneMinCount, "total activity"); err != nil {
			return 0, err
		}
	}
	return total, nil
}
