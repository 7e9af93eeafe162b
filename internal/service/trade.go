package service

import (
	"context"
	"fmt"
	"time"

	"flash-trader/internal/engine"
	"flash-trader/internal/identity"
)

// TradeReceipt reports the trader's state after a recorded trade.
type TradeReceipt struct {
	Stats engine.TraderStats
	// Rank is 1-based; 0 means the trader did not make the leaderboard.
	Rank int
}

// RecordTrade records a trade by trader at the current time.
func (s *Service) RecordTrade(ctx context.Context, trader identity.Pubkey) (TradeReceipt, error) {
	return s.RecordTradeAt(ctx, trader, s.now())
}

// RecordTradeAt records a trade at an explicit time. Used by replays.
func (s *Service) RecordTradeAt(ctx context.Context, trader identity.Pubkey, at time.Time) (TradeReceipt, error) {
	var receipt TradeReceipt
	err := s.withLock(ctx, "record_trade", func() error {
		stats, err := s.repo.GetTraderStats(ctx, trader)
		if err != nil {
			return fmt.Errorf("load trader stats: %w", err)
		}

		updated, err := engine.RecordTrade(stats, at.Unix())
		if err != nil {
			return err
		}

		board, err := s.repo.GetLeaderboard(ctx)
		if err != nil {
			return fmt.Errorf("load leaderboard: %w", err)
		}
		board = board.Record(updated)

		if err := s.repo.SaveTrade(ctx, updated, board); err != nil {
			return err
		}

		receipt = TradeReceipt{Stats: updated, Rank: board.Rank(trader)}
		s.metrics.RecordTrade(len(board.Traders))
		return nil
	})
	if err != nil {
		return TradeReceipt{}, err
	}

	s.logger.Debug().
		Str("trader", trader.String()).
		Uint64("one_min_count", receipt.Stats.OneMinCount).
		Int("rank", receipt.Rank).
		Msg("trade recorded")
	return receipt, nil
}
