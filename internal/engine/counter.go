package engine

import (
	"fmt"

	"flash-trader/internal/identity"
)

// Window lengths in seconds.
const (
	OneMinuteWindow     int64 = 60
	FiveMinuteWindow    int64 = 300
	FifteenMinuteWindow int64 = 900
)

// TraderStats is the per-trader activity record.
//
// The window counters are reset-on-gap approximations: a counter restarts at 1
// when the gap since the previous trade reaches its window, otherwise it grows.
// They are not sliding-window counts.
type TraderStats struct {
	Trader          identity.Pubkey `json:"trader"`
	OneMinCount     uint64          `json:"one_min_count"`
	FiveMinCount    uint64          `json:"five_min_count"`
	FifteenMinCount uint64          `json:"fifteen_min_count"`
	LastTradeTime   int64           `json:"last_trade_time"`
	StreakCounter   uint64          `json:"streak_counter"`
}

// NewTraderStats returns the record of a trader that has never traded.
func NewTraderStats(trader identity.Pubkey) TraderStats {
	return TraderStats{Trader: trader}
}

// RecordTrade applies one trade at now and returns the updated record.
// stats itself is left untouched.
func RecordTrade(stats TraderStats, now int64) (TraderStats, error) {
	gap, err := elapsed(now, stats.LastTradeTime)
	if err != nil {
		return TraderStats{}, fmt.Errorf("record trade for %s: %w", stats.Trader, err)
	}

	next := stats
	if next.OneMinCount, err = bumpWindow(stats.OneMinCount, gap, OneMinuteWindow); err != nil {
		return TraderStats{}, fmt.Errorf("record trade for %s: %w", stats.Trader, err)
	}
	if next.FiveMinCount, err = bumpWindow(stats.FiveMinCount, gap, FiveMinuteWindow); err != nil {
		return TraderStats{}, fmt.Errorf("record trade for %s: %w", stats.Trader, err)
	}
	if next.FifteenMinCount, err = bumpWindow(stats.FifteenMinCount, gap, FifteenMinuteWindow); err != nil {
		return TraderStats{}, fmt.Errorf("record trade for %s: %w", stats.Trader, err)
	}
	next.LastTradeTime = now
	return next, nil
}

func bumpWindow(count uint64, gap, window int64) (uint64, error) {
	if gap >= window {
		return 1, nil
	}
	return checkedAdd(count, 1, "window counter")
}

// ClearWindows zeroes the three window counters, keeping the streak and last trade time.
func (s TraderStats) ClearWindows() TraderStats {
	s.OneMinCount = 0
	s.FiveMinCount = 0
	s.FifteenMinCount = 0
	return s
}
