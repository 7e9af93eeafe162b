package engine

import "flash-trader/internal/identity"

// BonusPolicy configures the secondary lottery bonus.
type BonusPolicy struct {
	MinOneMinCount uint64
	Amount         uint64
}

// DefaultBonusPolicy pays 10 tokens to entries with at least 5 one-minute trades.
func DefaultBonusPolicy() BonusPolicy {
	return BonusPolicy{
		MinOneMinCount: 5,
		Amount:         10 * BaseUnitsPerToken,
	}
}

// Bonus is a lottery payout to one trader.
type Bonus struct {
	Trader identity.Pubkey `json:"trader"`
	Amount uint64          `json:"amount"`
}

// SelectBonuses picks qualifying entries whose last trade landed on an even second.
//
// The parity rule is deterministic and predictable by the trader; it is a selection
// rule, not a random draw. The amount is flat and independent of rank.
func SelectBonuses(entries []TraderStats, policy BonusPolicy) []Bonus {
	var out []Bonus
	for _, e := range entries {
		if e.OneMinCount < policy.MinOneMinCount {
			continue
		}
		if e.LastTradeTime%2 != 0 {
			continue
		}
		out = append(out, Bonus{Trader: e.Trader, Amount: policy.Amount})
	}
	return out
}
