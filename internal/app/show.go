package app

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"flash-trader/internal/identity"
	"flash-trader/internal/service"
)

// Show prints the leaderboard and, on request, archive history, one trader,
// one staking account, or the allocation table.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	var trader, owner *identity.Pubkey
	if opts.Trader != "" {
		pk, err := identity.Parse(opts.Trader)
		if err != nil {
			return err
		}
		trader = &pk
	}
	if opts.Owner != "" {
		pk, err := identity.Parse(opts.Owner)
		if err != nil {
			return err
		}
		owner = &pk
	}

	return a.withService(ctx, func(svc *service.Service) error {
		switch {
		case trader != nil:
			return a.showTrader(ctx, svc, *trader)
		case owner != nil:
			acct, err := svc.StakingAccount(ctx, *owner)
			if err != nil {
				return err
			}
			a.printAccount(acct)
			return nil
		case opts.Allocations:
			return a.showAllocations(ctx, svc)
		case opts.Archive:
			return a.showArchive(ctx, svc, opts.Limit)
		default:
			return a.showLeaderboard(ctx, svc)
		}
	})
}

func (a *App) showLeaderboard(ctx context.Context, svc *service.Service) error {
	board, err := svc.Leaderboard(ctx)
	if err != nil {
		return err
	}
	if len(board.Traders) == 0 {
		fmt.Fprintln(a.Out, "leaderboard is empty")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Rank\tTrader\t1m\t5m\t15m\tStreak\tLast Trade (UTC)")
	for i, t := range board.Traders {
		fmt.Fprintf(writer, "%d\t%s\t%d\t%d\t%d\t%d\t%s\n",
			i+1, t.Trader, t.OneMinCount, t.FiveMinCount, t.FifteenMinCount, t.StreakCounter, formatUnix(t.LastTradeTime))
	}
	writer.Flush()

	if board.LastResetTime != 0 {
		fmt.Fprintf(a.Out, "last reset: %s\n", formatUnix(board.LastResetTime))
	}
	return nil
}

func (a *App) showTrader(ctx context.Context, svc *service.Service, trader identity.Pubkey) error {
	stats, err := svc.TraderStats(ctx, trader)
	if err != nil {
		return err
	}
	board, err := svc.Leaderboard(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "trader %s: 1m=%d 5m=%d 15m=%d streak=%d last=%s rank=%s\n",
		trader, stats.OneMinCount, stats.FiveMinCount, stats.FifteenMinCount, stats.StreakCounter,
		formatUnix(stats.LastTradeTime), formatRank(board.Rank(trader)))
	return nil
}

func (a *App) showArchive(ctx context.Context, svc *service.Service, limit int) error {
	entries, err := svc.Archive(ctx, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.Out, "archive is empty")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Reset (UTC)\tTop Traders")
	for _, e := range entries {
		fmt.Fprintf(writer, "%s\t%s\n", formatUnix(e.Timestamp), joinShort(e.TopTraders))
	}
	writer.Flush()
	return nil
}

func (a *App) showAllocations(ctx context.Context, svc *service.Service) error {
	allocations, err := svc.Allocations(ctx)
	if err != nil {
		return err
	}
	if len(allocations) == 0 {
		fmt.Fprintln(a.Out, "no allocations")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Owner\tAllocation")
	for _, row := range allocations.Sorted() {
		fmt.Fprintf(writer, "%s\t%d\n", row.Owner, row.Value)
	}
	writer.Flush()
	return nil
}

func formatUnix(ts int64) string {
	if ts == 0 {
		return "-"
	}
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

func joinShort(keys []identity.Pubkey) string {
	if len(keys) == 0 {
		return "-"
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.Short()
	}
	return strings.Join(parts, ", ")
}
