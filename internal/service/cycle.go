package service

import (
	"context"
	"fmt"
	"time"

	"flash-trader/internal/alerting"
	"flash-trader/internal/engine"
	"flash-trader/internal/storage"
)

// CycleOutcome is a committed (or previewed) cycle reset.
type CycleOutcome struct {
	Volume uint64
	Pool   uint64
	Result engine.CycleResult
	Queued []storage.TransferRecord
}

// RunCycle is the scheduler tick: fetch volume, reset, prune history, retry stuck transfers.
func (s *Service) RunCycle(ctx context.Context, boundary time.Time) error {
	if s.volume == nil {
		return fmt.Errorf("volume fetcher not configured")
	}
	volume, err := s.volume.FetchVolume(ctx)
	if err != nil {
		s.metrics.RecordError("fetch_volume")
		return fmt.Errorf("fetch volume: %w", err)
	}

	outcome, err := s.ResetCycleAt(ctx, volume, boundary)
	if err != nil {
		return err
	}

	if s.retention > 0 {
		cutoff := outcome.Result.ResetAt - int64(s.retention/time.Second)
		removed, err := s.repo.PruneArchive(ctx, cutoff)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to prune archive")
		} else if removed > 0 {
			s.logger.Info().Int64("removed", removed).Int64("cutoff", cutoff).Msg("archive pruned")
		}
	}

	if _, err := s.DispatchPending(ctx); err != nil {
		s.logger.Error().Err(err).Msg("failed to dispatch pending transfers")
	}
	return nil
}

// ResetCycle resets the cycle now, sizing the pool from volume.
func (s *Service) ResetCycle(ctx context.Context, volume uint64) (CycleOutcome, error) {
	return s.ResetCycleAt(ctx, volume, s.now())
}

// ResetCycleAt distributes rewards, awards bonuses, archives the ranking, and clears
// the windows as one committed step, then dispatches the resulting transfers.
func (s *Service) ResetCycleAt(ctx context.Context, volume uint64, at time.Time) (CycleOutcome, error) {
	started := time.Now()
	var outcome CycleOutcome

	err := s.withLock(ctx, "reset_cycle", func() error {
		board, err := s.repo.GetLeaderboard(ctx)
		if err != nil {
			return fmt.Errorf("load leaderboard: %w", err)
		}

		pool := s.pools.PoolForVolume(volume)
		result, err := engine.ResetCycle(board, pool, at.Unix(), s.policy)
		if err != nil {
			return err
		}

		queued, err := s.repo.SaveCycle(ctx, storage.CycleRecord{
			Leaderboard: result.Leaderboard,
			Entry:       result.Entry,
			Traders:     result.Traders,
			Transfers:   result.Transfers,
		})
		if err != nil {
			return err
		}
		for _, rec := range queued {
			s.metrics.RecordTransfer(string(rec.Transfer.Purpose), storage.TransferPending)
		}

		outcome = CycleOutcome{Volume: volume, Pool: pool, Result: result, Queued: s.dispatch(ctx, queued)}
		return nil
	})
	if err != nil {
		return CycleOutcome{}, err
	}

	dist := outcome.Result.Distribution
	s.metrics.RecordCycle(outcome.Result.Distributed, dist.Distributed, dist.Undistributed,
		len(outcome.Result.Bonuses), at, time.Since(started))

	s.logger.Info().
		Time("reset_at", at).
		Uint64("volume", volume).
		Uint64("pool", outcome.Pool).
		Bool("distributed", outcome.Result.Distributed).
		Uint64("paid", dist.Distributed).
		Uint64("undistributed", dist.Undistributed).
		Int("bonuses", len(outcome.Result.Bonuses)).
		Int("transfers", len(outcome.Queued)).
		Msg("cycle reset")

	if s.notifier != nil {
		note := alerting.NewNotification(outcome.Result, volume, outcome.Pool)
		if err := s.notifier.Notify(ctx, note); err != nil {
			s.logger.Error().Err(err).Msg("failed to announce cycle")
		}
	}
	return outcome, nil
}

// PreviewCycle computes what a reset would do now without committing anything.
func (s *Service) PreviewCycle(ctx context.Context, volume uint64) (CycleOutcome, error) {
	board, err := s.repo.GetLeaderboard(ctx)
	if err != nil {
		return CycleOutcome{}, fmt.Errorf("load leaderboard: %w", err)
	}
	pool := s.pools.PoolForVolume(volume)
	result, err := engine.ResetCycle(board, pool, s.now().Unix(), s.policy)
	if err != nil {
		return CycleOutcome{}, err
	}
	return CycleOutcome{Volume: volume, Pool: pool, Result: result}, nil
}
