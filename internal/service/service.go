package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"flash-trader/internal/alerting"
	"flash-trader/internal/engine"
	"flash-trader/internal/fetcher"
	"flash-trader/internal/identity"
	"flash-trader/internal/logging"
	"flash-trader/internal/metrics"
	"flash-trader/internal/scheduler"
	"flash-trader/internal/storage"
	"flash-trader/internal/transfer"
)

// ErrBusy is returned when another instance holds the advisory lock.
var ErrBusy = errors.New("service: state lock held by another instance")

// Options wires the service's collaborators. Repository is required.
type Options struct {
	Repository storage.Repository
	Volume     fetcher.VolumeFetcher
	Executor   transfer.Executor
	Notifier   alerting.Notifier
	Metrics    *metrics.Metrics
	Scheduler  *scheduler.Scheduler

	Pools     engine.PoolPolicy
	Policy    engine.CyclePolicy
	BurnVault identity.Pubkey
	// Retention bounds archive history; zero keeps everything.
	Retention time.Duration
	// LockKey selects the postgres advisory lock; zero disables it.
	LockKey int64
	Clock   func() time.Time
}

// Service serialises every state change of the leaderboard, staking, and transfer outbox.
type Service struct {
	repo      storage.Repository
	volume    fetcher.VolumeFetcher
	executor  transfer.Executor
	notifier  alerting.Notifier
	metrics   *metrics.Metrics
	scheduler *scheduler.Scheduler
	logger    zerolog.Logger

	pools     engine.PoolPolicy
	policy    engine.CyclePolicy
	burnVault identity.Pubkey
	retention time.Duration
	now       func() time.Time

	mu      sync.Mutex
	locker  storage.AdvisoryLocker
	lockKey int64
}

// New constructs the leaderboard service.
func New(opts Options, logger zerolog.Logger) (*Service, error) {
	if opts.Repository == nil {
		return nil, fmt.Errorf("repository not configured")
	}

	clock := opts.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	var locker storage.AdvisoryLocker
	if l, ok := opts.Repository.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		repo:      opts.Repository,
		volume:    opts.Volume,
		executor:  opts.Executor,
		notifier:  opts.Notifier,
		metrics:   opts.Metrics,
		scheduler: opts.Scheduler,
		logger:    logging.Component(logger, "service"),
		pools:     opts.Pools,
		policy:    opts.Policy,
		burnVault: opts.BurnVault,
		retention: opts.Retention,
		now:       clock,
		locker:    locker,
		lockKey:   opts.LockKey,
	}, nil
}

// Run begins the cycle loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.RunCycle)
}

// Leaderboard returns the current ranking.
func (s *Service) Leaderboard(ctx context.Context) (engine.Leaderboard, error) {
	return s.repo.GetLeaderboard(ctx)
}

// TraderStats returns a trader's activity record.
func (s *Service) TraderStats(ctx context.Context, trader identity.Pubkey) (engine.TraderStats, error) {
	return s.repo.GetTraderStats(ctx, trader)
}

// Archive returns up to limit archived rankings, newest first.
func (s *Service) Archive(ctx context.Context, limit int) ([]engine.ArchiveEntry, error) {
	return s.repo.ListArchive(ctx, limit)
}

// StakingAccount returns an owner's stake.
func (s *Service) StakingAccount(ctx context.Context, owner identity.Pubkey) (engine.StakingAccount, error) {
	return s.repo.GetStakingAccount(ctx, owner)
}

// Allocations returns every liquidity allocation.
func (s *Service) Allocations(ctx context.Context) (engine.Allocations, error) {
	return s.repo.GetAllocations(ctx)
}

// withLock runs fn holding the in-process mutex and, when configured, the advisory lock.
func (s *Service) withLock(ctx context.Context, op string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		s.metrics.RecordError(op)
		return err
	}
	if !proceed {
		s.metrics.RecordError(op)
		return fmt.Errorf("%s: %w", op, ErrBusy)
	}
	if unlock != nil {
		defer unlock()
	}

	if err := fn(); err != nil {
		s.metrics.RecordError(op)
		return err
	}
	return nil
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
