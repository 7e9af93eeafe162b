package service

import (
	"context"
	"fmt"
	"time"

	"flash-trader/internal/engine"
	"flash-trader/internal/identity"
)

// Stake adds amount to owner's stake, restarting the stake clock with the given lock.
func (s *Service) Stake(ctx context.Context, owner identity.Pubkey, amount uint64, lock time.Duration) (engine.StakingAccount, error) {
	var acct engine.StakingAccount
	err := s.withLock(ctx, "stake", func() error {
		current, err := s.repo.GetStakingAccount(ctx, owner)
		if err != nil {
			return fmt.Errorf("load staking account: %w", err)
		}
		next, err := engine.Stake(current, amount, int64(lock/time.Second), s.now().Unix())
		if err != nil {
			return err
		}
		if err := s.repo.SaveStakingAccount(ctx, next); err != nil {
			return err
		}
		acct = next
		return nil
	})
	if err != nil {
		return engine.StakingAccount{}, err
	}

	s.logger.Info().Str("owner", owner.String()).
		Str("staked", engine.FormatTokenAmount(acct.StakedAmount)).
		Uint8("tier", uint8(acct.Tier)).
		Msg("stake recorded")
	return acct, nil
}

// Unstake removes amount from owner's stake. Nothing is written on failure.
func (s *Service) Unstake(ctx context.Context, owner identity.Pubkey, amount uint64) (engine.StakingAccount, error) {
	var acct engine.StakingAccount
	err := s.withLock(ctx, "unstake", func() error {
		current, err := s.repo.GetStakingAccount(ctx, owner)
		if err != nil {
			return fmt.Errorf("load staking account: %w", err)
		}
		next, err := engine.Unstake(current, amount)
		if err != nil {
			return err
		}
		if err := s.repo.SaveStakingAccount(ctx, next); err != nil {
			return err
		}
		acct = next
		return nil
	})
	if err != nil {
		return engine.StakingAccount{}, err
	}

	s.logger.Info().Str("owner", owner.String()).
		Str("staked", engine.FormatTokenAmount(acct.StakedAmount)).
		Uint8("tier", uint8(acct.Tier)).
		Msg("unstake recorded")
	return acct, nil
}

// Allocate records owner's liquidity priority from its current tier.
func (s *Service) Allocate(ctx context.Context, owner identity.Pubkey) (uint64, error) {
	var value uint64
	err := s.withLock(ctx, "allocate", func() error {
		acct, err := s.repo.GetStakingAccount(ctx, owner)
		if err != nil {
			return fmt.Errorf("load staking account: %w", err)
		}
		allocations, err := s.repo.GetAllocations(ctx)
		if err != nil {
			return fmt.Errorf("load allocations: %w", err)
		}
		value = allocations.Allocate(owner, acct.Tier)[owner]
		return s.repo.SaveAllocation(ctx, owner, value)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info().Str("owner", owner.String()).Uint64("allocation", value).Msg("liquidity allocated")
	return value, nil
}
