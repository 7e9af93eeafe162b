package engine

// BaseUnitsPerToken is the scale of the reward token (6 decimals).
const BaseUnitsPerToken uint64 = 1_000_000

// Tier is a staking bracket used to prioritise liquidity access.
type Tier uint8

const (
	TierNone Tier = iota
	TierOne
	TierTwo
	TierThree
)

// Tier thresholds are inclusive lower bounds, evaluated high to low.
const (
	TierOneThreshold   = 10 * BaseUnitsPerToken
	TierTwoThreshold   = 100 * BaseUnitsPerToken
	TierThreeThreshold = 500 * BaseUnitsPerToken
)

// ComputeTier maps a staked amount to its tier.
func ComputeTier(staked uint64) Tier {
	switch {
	case staked >= TierThreeThreshold:
		return TierThree
	case staked >= TierTwoThreshold:
		return TierTwo
	case staked >= TierOneThreshold:
		return TierOne
	default:
		return TierNone
	}
}
