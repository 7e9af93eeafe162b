package engine

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"flash-trader/internal/identity"
)

// RewardPolicy controls decay of high-streak traders' shares.
type RewardPolicy struct {
	// DecayStreakThreshold: entries with StreakCounter strictly above it are decayed.
	DecayStreakThreshold uint64
	// DecayFactor multiplies the base share of decayed entries. Must be within [0, 1].
	DecayFactor decimal.Decimal
}

// DefaultRewardPolicy decays streaks above 5 by 0.8.
func DefaultRewardPolicy() RewardPolicy {
	return RewardPolicy{
		DecayStreakThreshold: 5,
		DecayFactor:          decimal.New(8, -1),
	}
}

// PoolPolicy sizes the reward pool from the external volume signal.
type PoolPolicy struct {
	VolumeThreshold uint64
	LowVolumePool   uint64
	HighVolumePool  uint64
}

// DefaultPoolPolicy pays 50 tokens below 1,000,000 volume and 500 tokens otherwise.
func DefaultPoolPolicy() PoolPolicy {
	return PoolPolicy{
		VolumeThreshold: 1_000_000,
		LowVolumePool:   50 * BaseUnitsPerToken,
		HighVolumePool:  500 * BaseUnitsPerToken,
	}
}

// PoolForVolume is a two-step function, no interpolation.
func (p PoolPolicy) PoolForVolume(volume uint64) uint64 {
	if volume < p.VolumeThreshold {
		return p.LowVolumePool
	}
	return p.HighVolumePool
}

// Reward is one entry's computed share.
type Reward struct {
	Trader      identity.Pubkey `json:"trader"`
	OneMinCount uint64          `json:"one_min_count"`
	BaseShare   uint64          `json:"base_share"`
	FinalShare  uint64          `json:"final_share"`
	Decayed     bool            `json:"decayed"`
}

// Distribution is the outcome of splitting a pool across leaderboard entries.
type Distribution struct {
	Pool          uint64
	TotalActivity uint64
	Rewards       []Reward
	Distributed   uint64
	// Undistributed is the floor-rounding and decay remainder. It is never reallocated.
	Undistributed uint64
	// Traders are the entries with StreakCounter advanced by one.
	Traders []TraderStats
}

// DistributeRewards splits pool proportionally to OneMinCount.
//
// base = floor(count*pool/total) is computed in 256-bit space; decayed entries then
// receive floor(base*DecayFactor). Every entry's streak advances by one, which only
// affects the next cycle's decay. entries is not modified.
func DistributeRewards(entries []TraderStats, pool uint64, policy RewardPolicy) (Distribution, error) {
	total, err := totalActivity(entries)
	if err != nil {
		return Distribution{}, err
	}
	if total == 0 {
		return Distribution{}, fmt.Errorf("distribute pool %d across %d entries: %w", pool, len(entries), ErrDivisionByZero)
	}

	dist := Distribution{
		Pool:          pool,
		TotalActivity: total,
		Rewards:       make([]Reward, 0, len(entries)),
		Traders:       make([]TraderStats, 0, len(entries)),
	}

	wPool := uint256.NewInt(pool)
	wTotal := uint256.NewInt(total)

	for _, entry := range entries {
		share, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(entry.OneMinCount), wPool)
		if overflow {
			return Distribution{}, fmt.Errorf("share of %s: %w", entry.Trader, ErrArithmeticOverflow)
		}
		share.Div(share, wTotal)
		if !share.IsUint64() {
			return Distribution{}, fmt.Errorf("share of %s: %w", entry.Trader, ErrArithmeticOverflow)
		}

		base := share.Uint64()
		final, decayed, err := policy.apply(base, entry.StreakCounter)
		if err != nil {
			return Distribution{}, fmt.Errorf("decayed share of %s: %w", entry.Trader, err)
		}

		if dist.Distributed, err = checkedAdd(dist.Distributed, final, "distributed total"); err != nil {
			return Distribution{}, err
		}

		next := entry
		if next.StreakCounter, err = checkedAdd(entry.StreakCounter, 1, "streak counter"); err != nil {
			return Distribution{}, err
		}

		dist.Rewards = append(dist.Rewards, Reward{
			Trader:      entry.Trader,
			OneMinCount: entry.OneMinCount,
			BaseShare:   base,
			FinalShare:  final,
			Decayed:     decayed,
		})
		dist.Traders = append(dist.Traders, next)
	}

	if dist.Undistributed, err = checkedSub(pool, dist.Distributed, "undistributed remainder"); err != nil {
		return Distribution{}, err
	}
	return dist, nil
}

func (p RewardPolicy) apply(base, streak uint64) (uint64, bool, error) {
	if streak <= p.DecayStreakThreshold {
		return base, false, nil
	}
	decayed := decimal.NewFromBigInt(new(big.Int).SetUint64(base), 0).Mul(p.DecayFactor).Floor()
	if decayed.Sign() <= 0 {
		return 0, true, nil
	}
	units := decayed.BigInt()
	if !units.IsUint64() {
		return 0, true, ErrArithmeticOverflow
	}
	return units.Uint64(), true, nil
}

// Transfers turns non-zero final shares into reward transfer requests.
func (d Distribution) Transfers() []Transfer {
	out := make([]Transfer, 0, len(d.Rewards))
	for _, r := range d.Rewards {
		if r.FinalShare == 0 {
			continue
		}
		out = append(out, Transfer{Destination: r.Trader, Amount: r.FinalShare, Purpose: PurposeReward})
	}
	return out
}
