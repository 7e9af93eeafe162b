package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"flash-trader/internal/engine"
	"flash-trader/internal/identity"
	"flash-trader/internal/service"
)

// RecordTrade records one trade by a signing wallet and prints its standing.
func (a *App) RecordTrade(ctx context.Context, trader string) error {
	pk, err := identity.ParseWallet(trader)
	if err != nil {
		return err
	}
	return a.withService(ctx, func(svc *service.Service) error {
		receipt, err := svc.RecordTrade(ctx, pk)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.Out, "trader %s: 1m=%d 5m=%d 15m=%d rank=%s\n",
			pk, receipt.Stats.OneMinCount, receipt.Stats.FiveMinCount, receipt.Stats.FifteenMinCount, formatRank(receipt.Rank))
		return nil
	})
}

// ResetCycle resets the cycle. A nil volume is fetched from the configured source.
func (a *App) ResetCycle(ctx context.Context, volume *uint64) error {
	return a.withService(ctx, func(svc *service.Service) error {
		v, err := a.resolveVolume(ctx, volume)
		if err != nil {
			return err
		}
		outcome, err := svc.ResetCycle(ctx, v)
		if err != nil {
			return err
		}
		a.printCycle(outcome, false)
		return nil
	})
}

// Stake adds a token amount to owner's stake.
func (a *App) Stake(ctx context.Context, owner, amount string, lock time.Duration) error {
	pk, units, err := parseSignerAmount(owner, amount)
	if err != nil {
		return err
	}
	return a.withService(ctx, func(svc *service.Service) error {
		acct, err := svc.Stake(ctx, pk, units, lock)
		if err != nil {
			return err
		}
		a.printAccount(acct)
		return nil
	})
}

// Unstake removes a token amount from owner's stake.
func (a *App) Unstake(ctx context.Context, owner, amount string) error {
	pk, units, err := parseSignerAmount(owner, amount)
	if err != nil {
		return err
	}
	return a.withService(ctx, func(svc *service.Service) error {
		acct, err := svc.Unstake(ctx, pk, units)
		if err != nil {
			return err
		}
		a.printAccount(acct)
		return nil
	})
}

// Allocate records owner's liquidity priority from its tier.
func (a *App) Allocate(ctx context.Context, owner string) error {
	pk, err := identity.ParseWallet(owner)
	if err != nil {
		return err
	}
	return a.withService(ctx, func(svc *service.Service) error {
		value, err := svc.Allocate(ctx, pk)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.Out, "allocation %s: %d\n", pk, value)
		return nil
	})
}

// FlashLoan requests a pool-to-borrower transfer.
func (a *App) FlashLoan(ctx context.Context, borrower, amount string) error {
	pk, units, err := parseSignerAmount(borrower, amount)
	if err != nil {
		return err
	}
	return a.withService(ctx, func(svc *service.Service) error {
		rec, err := svc.FlashLoan(ctx, pk, units)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.Out, "flash loan #%d to %s: %s (%s)\n", rec.ID, pk, engine.FormatTokenAmount(units), rec.Status)
		return nil
	})
}

// Burn requests a buyback-and-burn out of the configured vault.
func (a *App) Burn(ctx context.Context, amount string) error {
	units, err := engine.ParseTokenAmount(amount)
	if err != nil {
		return err
	}
	return a.withService(ctx, func(svc *service.Service) error {
		rec, err := svc.BuybackBurn(ctx, units)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.Out, "burn #%d from %s: %s (%s)\n", rec.ID, rec.Transfer.Destination, engine.FormatTokenAmount(units), rec.Status)
		return nil
	})
}

// DispatchPending retries queued transfers.
func (a *App) DispatchPending(ctx context.Context) error {
	return a.withService(ctx, func(svc *service.Service) error {
		sent, err := svc.DispatchPending(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.Out, "dispatched %d transfer(s)\n", sent)
		return nil
	})
}

func (a *App) resolveVolume(ctx context.Context, volume *uint64) (uint64, error) {
	if volume != nil {
		return *volume, nil
	}
	v, err := a.newVolumeFetcher().FetchVolume(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch volume: %w", err)
	}
	return v, nil
}

func (a *App) printAccount(acct engine.StakingAccount) {
	fmt.Fprintf(a.Out, "staker %s: staked=%s tier=%d lock=%s\n",
		acct.Owner, engine.FormatTokenAmount(acct.StakedAmount), acct.Tier, time.Duration(acct.LockDuration)*time.Second)
}

func (a *App) printCycle(outcome service.CycleOutcome, preview bool) {
	label := "cycle reset"
	if preview {
		label = "cycle preview"
	}
	result := outcome.Result
	fmt.Fprintf(a.Out, "%s at %s: volume=%d pool=%s\n", label,
		time.Unix(result.ResetAt, 0).UTC().Format(time.RFC3339), outcome.Volume, engine.FormatTokenAmount(outcome.Pool))

	if !result.Distributed {
		fmt.Fprintln(a.Out, "no activity; nothing distributed")
		return
	}

	dist := result.Distribution
	for i, r := range dist.Rewards {
		decay := ""
		if r.Decayed {
			decay = " (decayed)"
		}
		fmt.Fprintf(a.Out, "  #%d %s trades=%d reward=%s%s\n", i+1, r.Trader, r.OneMinCount, engine.FormatTokenAmount(r.FinalShare), decay)
	}
	for _, b := range result.Bonuses {
		fmt.Fprintf(a.Out, "  bonus %s +%s\n", b.Trader, engine.FormatTokenAmount(b.Amount))
	}
	fmt.Fprintf(a.Out, "distributed=%s undistributed=%s transfers=%d\n",
		engine.FormatTokenAmount(dist.Distributed), engine.FormatTokenAmount(dist.Undistributed), len(result.Transfers))
}

func parseSignerAmount(signer, amount string) (identity.Pubkey, uint64, error) {
	pk, err := identity.ParseWallet(signer)
	if err != nil {
		return identity.Pubkey{}, 0, err
	}
	units, err := engine.ParseTokenAmount(amount)
	if err != nil {
		return identity.Pubkey{}, 0, err
	}
	return pk, units, nil
}

// ParseVolume parses a raw integer DEX volume.
func ParseVolume(s string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse volume %q: %w", s, err)
	}
	return v, nil
}

func formatRank(rank int) string {
	if rank == 0 {
		return "-"
	}
	return strconv.Itoa(rank)
}
