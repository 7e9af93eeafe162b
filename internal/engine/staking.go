package engine

import (
	"fmt"

	"flash-trader/internal/identity"
)

// StakingAccount tracks one participant's stake. Tier always equals ComputeTier(StakedAmount).
type StakingAccount struct {
	Owner          identity.Pubkey `json:"owner"`
	StakedAmount   uint64          `json:"staked_amount"`
	StakeStartTime int64           `json:"stake_start_time"`
	// LockDuration is informational. Unstake does not consult it.
	LockDuration int64 `json:"lock_duration"`
	Tier         Tier  `json:"tier"`
}

// NewStakingAccount returns an empty account for owner.
func NewStakingAccount(owner identity.Pubkey) StakingAccount {
	return StakingAccount{Owner: owner}
}

// Stake adds amount, overwrites the start time and lock, and recomputes the tier.
func Stake(acct StakingAccount, amount uint64, lockDuration, now int64) (StakingAccount, error) {
	staked, err := checkedAdd(acct.StakedAmount, amount, "staked amount")
	if err != nil {
		return acct, fmt.Errorf("stake for %s: %w", acct.Owner, err)
	}

	next := acct
	next.StakedAmount = staked
	next.StakeStartTime = now
	next.LockDuration = lockDuration
	next.Tier = ComputeTier(staked)
	return next, nil
}

// Unstake removes amount and recomputes the tier. On error acct is returned unchanged.
func Unstake(acct StakingAccount, amount uint64) (StakingAccount, error) {
	if amount > acct.StakedAmount {
		return acct, fmt.Errorf("unstake %d of %d for %s: %w", amount, acct.StakedAmount, acct.Owner, ErrInsufficientStake)
	}

	staked, err := checkedSub(acct.StakedAmount, amount, "staked amount")
	if err != nil {
		return acct, fmt.Errorf("unstake for %s: %w", acct.Owner, err)
	}

	next := acct
	next.StakedAmount = staked
	next.Tier = ComputeTier(staked)
	return next, nil
}
