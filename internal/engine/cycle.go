package engine

import (
	"fmt"
	"slices"
)

// CyclePolicy bundles the reward and bonus rules applied at each reset.
type CyclePolicy struct {
	Rewards RewardPolicy
	Bonus   BonusPolicy
}

// DefaultCyclePolicy returns the stock reward and bonus rules.
func DefaultCyclePolicy() CyclePolicy {
	return CyclePolicy{Rewards: DefaultRewardPolicy(), Bonus: DefaultBonusPolicy()}
}

// CycleResult carries everything a reset produced. Nothing is committed by the engine.
type CycleResult struct {
	ResetAt int64
	// Leaderboard is the post-reset board: same ranking, cleared window counters.
	Leaderboard Leaderboard
	// Entry is the archived ranking, captured before counters were cleared.
	Entry ArchiveEntry
	// Distributed is false when the board had no activity and no pool was split.
	Distributed  bool
	Distribution Distribution
	Bonuses      []Bonus
	// Traders are the per-trader records to write back (streak advanced, windows cleared).
	Traders   []TraderStats
	Transfers []Transfer
}

// ResetCycle distributes the pool, selects bonuses, archives the ranking, and clears
// the window counters, in that order, on a copy of lb.
//
// A board with zero total activity skips distribution and bonuses but is still
// archived and reset, so back-to-back resets without trades are harmless.
//
// The cleared windows are also returned in Traders, which callers persist as the
// per-trader records. LastTradeTime is kept, so a trade a few seconds after a reset
// continues the gap rule but counts up from zero: one_min becomes 1, not count+1.
func ResetCycle(lb Leaderboard, pool uint64, now int64, policy CyclePolicy) (CycleResult, error) {
	traders := slices.Clone(lb.Traders)
	result := CycleResult{ResetAt: now}

	total, err := totalActivity(traders)
	if err != nil {
		return CycleResult{}, fmt.Errorf("reset cycle: %w", err)
	}

	if total > 0 {
		dist, err := DistributeRewards(traders, pool, policy.Rewards)
		if err != nil {
			return CycleResult{}, fmt.Errorf("reset cycle: %w", err)
		}
		traders = dist.Traders
		result.Distributed = true
		result.Distribution = dist
		result.Transfers = append(result.Transfers, dist.Transfers()...)

		result.Bonuses = SelectBonuses(traders, policy.Bonus)
		for _, b := range result.Bonuses {
			if b.Amount == 0 {
				continue
			}
			result.Transfers = append(result.Transfers, Transfer{Destination: b.Trader, Amount: b.Amount, Purpose: PurposeLotteryBonus})
		}
	}

	result.Entry = Snapshot(now, Leaderboard{Traders: traders})

	for i := range traders {
		traders[i] = traders[i].ClearWindows()
	}
	result.Traders = traders
	result.Leaderboard = Leaderboard{Traders: slices.Clone(traders), LastResetTime: now}
	return result, nil
}
