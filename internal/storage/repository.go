package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"flash-trader/internal/engine"
	"flash-trader/internal/identity"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrTransferNotFound is returned when marking an unknown transfer request.
	ErrTransferNotFound = errors.New("storage: transfer request not found")
)

const (
	getTraderStatsSQL = `SELECT
        trader,
        one_min_count::text,
        five_min_count::text,
        fifteen_min_count::text,
        last_trade_time,
        streak_counter::text
    FROM trader_stats
    WHERE trader = $1;`

	upsertTraderStatsSQL = `INSERT INTO trader_stats (
        trader,
        one_min_count,
        five_min_count,
        fifteen_min_count,
        last_trade_time,
        streak_counter,
        updated_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,now()
    )
    ON CONFLICT (trader) DO UPDATE
    SET
        one_min_count     = EXCLUDED.one_min_count,
        five_min_count    = EXCLUDED.five_min_count,
        fifteen_min_count = EXCLUDED.fifteen_min_count,
        last_trade_time   = EXCLUDED.last_trade_time,
        streak_counter    = EXCLUDED.streak_counter,
        updated_at        = now();`

	getLeaderboardSQL = `SELECT traders, last_reset_time FROM leaderboard WHERE id = 1;`

	upsertLeaderboardSQL = `INSERT INTO leaderboard (id, traders, last_reset_time, updated_at)
    VALUES (1, $1, $2, now())
    ON CONFLICT (id) DO UPDATE
    SET traders         = EXCLUDED.traders,
        last_reset_time = EXCLUDED.last_reset_time,
        updated_at      = now();`

	insertArchiveSQL = `INSERT INTO leaderboard_archive (archived_at, top_traders) VALUES ($1, $2);`

	listArchiveSQL = `SELECT archived_at, top_traders
    FROM leaderboard_archive
    ORDER BY archived_at DESC, id DESC
    LIMIT $1;`

	pruneArchiveSQL = `DELETE FROM leaderboard_archive WHERE archived_at < $1;`

	getStakingAccountSQL = `SELECT
        owner,
        staked_amount::text,
        stake_start_time,
        lock_duration
    FROM staking_accounts
    WHERE owner = $1;`

	upsertStakingAccountSQL = `INSERT INTO staking_accounts (
        owner,
        staked_amount,
        stake_start_time,
        lock_duration,
        tier,
        updated_at
    ) VALUES (
        $1,$2,$3,$4,$5,now()
    )
    ON CONFLICT (owner) DO UPDATE
    SET
        staked_amount    = EXCLUDED.staked_amount,
        stake_start_time = EXCLUDED.stake_start_time,
        lock_duration    = EXCLUDED.lock_duration,
        tier             = EXCLUDED.tier,
        updated_at       = now();`

	listAllocationsSQL = `SELECT owner, allocation::text FROM liquidity_allocations;`

	upsertAllocationSQL = `INSERT INTO liquidity_allocations (owner, allocation, updated_at)
    VALUES ($1, $2, now())
    ON CONFLICT (owner) DO UPDATE
    SET allocation = EXCLUDED.allocation,
        updated_at = now();`

	insertTransferSQL = `INSERT INTO transfer_requests (key, destination, amount, purpose, status)
    VALUES ($1, $2, $3, $4, 'pending')
    RETURNING id, status, created_at;`

	markTransferSentSQL = `UPDATE transfer_requests
    SET status = 'sent', sent_at = now()
    WHERE id = $1;`

	listPendingTransfersSQL = `SELECT
        id,
        key::text,
        destination,
        amount::text,
        purpose,
        status,
        created_at,
        sent_at
    FROM transfer_requests
    WHERE status = 'pending'
    ORDER BY id
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// Store is the PostgreSQL-backed Repository.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ Repository     = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; the session lock dies with the connection anyway
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// GetTraderStats loads a trader record, or a fresh one if the trader never traded.
func (s *Store) GetTraderStats(ctx context.Context, trader identity.Pubkey) (engine.TraderStats, error) {
	pool, err := s.getPool()
	if err != nil {
		return engine.TraderStats{}, err
	}

	var (
		traderStr                   string
		oneStr, fiveStr, fifteenStr string
		streakStr                   string
		stats                       engine.TraderStats
	)
	scanErr := pool.QueryRow(ctx, getTraderStatsSQL, trader.String()).Scan(
		&traderStr,
		&oneStr,
		&fiveStr,
		&fifteenStr,
		&stats.LastTradeTime,
		&streakStr,
	)
	if errors.Is(scanErr, pgx.ErrNoRows) {
		return engine.NewTraderStats(trader), nil
	}
	if scanErr != nil {
		return engine.TraderStats{}, fmt.Errorf("get trader stats: %w", scanErr)
	}

	stats.Trader = trader
	if stats.OneMinCount, err = parseUnits(oneStr, "one_min_count"); err != nil {
		return engine.TraderStats{}, err
	}
	if stats.FiveMinCount, err = parseUnits(fiveStr, "five_min_count"); err != nil {
		return engine.TraderStats{}, err
	}
	if stats.FifteenMinCount, err = parseUnits(fifteenStr, "fifteen_min_count"); err != nil {
		return engine.TraderStats{}, err
	}
	if stats.StreakCounter, err = parseUnits(streakStr, "streak_counter"); err != nil {
		return engine.TraderStats{}, err
	}
	return stats, nil
}

// GetLeaderboard loads the singleton board. An empty board is returned before the first write.
func (s *Store) GetLeaderboard(ctx context.Context) (engine.Leaderboard, error) {
	pool, err := s.getPool()
	if err != nil {
		return engine.Leaderboard{}, err
	}
	return getLeaderboard(ctx, pool)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getLeaderboard(ctx context.Context, q rowQuerier) (engine.Leaderboard, error) {
	var (
		raw []byte
		lb  engine.Leaderboard
	)
	scanErr := q.QueryRow(ctx, getLeaderboardSQL).Scan(&raw, &lb.LastResetTime)
	if errors.Is(scanErr, pgx.ErrNoRows) {
		return engine.Leaderboard{}, nil
	}
	if scanErr != nil {
		return engine.Leaderboard{}, fmt.Errorf("get leaderboard: %w", scanErr)
	}
	if err := json.Unmarshal(raw, &lb.Traders); err != nil {
		return engine.Leaderboard{}, fmt.Errorf("decode leaderboard: %w", err)
	}
	return lb, nil
}

// SaveTrade writes the trader record and the leaderboard in one transaction.
func (s *Store) SaveTrade(ctx context.Context, stats engine.TraderStats, board engine.Leaderboard) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if err := upsertTraderStats(ctx, tx, stats); err != nil {
			return err
		}
		return upsertLeaderboard(ctx, tx, board)
	})
	if err != nil {
		return fmt.Errorf("save trade: %w", err)
	}
	return nil
}

// SaveCycle commits a cycle reset: board, archive entry, trader records, and queued transfers.
func (s *Store) SaveCycle(ctx context.Context, rec CycleRecord) ([]TransferRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var queued []TransferRecord
	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if err := upsertLeaderboard(ctx, tx, rec.Leaderboard); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, insertArchiveSQL, rec.Entry.Timestamp, pubkeyStrings(rec.Entry.TopTraders)); err != nil {
			return fmt.Errorf("insert archive entry: %w", err)
		}
		for _, stats := range rec.Traders {
			if err := upsertTraderStats(ctx, tx, stats); err != nil {
				return err
			}
		}
		var txErr error
		queued, txErr = insertTransfers(ctx, tx, rec.Transfers)
		return txErr
	})
	if err != nil {
		return nil, fmt.Errorf("save cycle: %w", err)
	}
	return queued, nil
}

// ListArchive returns the newest archive entries first. A limit of zero returns all.
func (s *Store) ListArchive(ctx context.Context, limit int) ([]engine.ArchiveEntry, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	// LIMIT NULL is no limit.
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, queryErr := pool.Query(ctx, listArchiveSQL, lim)
	if queryErr != nil {
		return nil, fmt.Errorf("list archive: %w", queryErr)
	}
	defer rows.Close()

	entries := make([]engine.ArchiveEntry, 0, max(limit, 0))
	for rows.Next() {
		var (
			entry engine.ArchiveEntry
			top   []string
		)
		if err := rows.Scan(&entry.Timestamp, &top); err != nil {
			return nil, err
		}
		if entry.TopTraders, err = parsePubkeys(top); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return entries, nil
}

// PruneArchive deletes entries archived strictly before olderThan.
func (s *Store) PruneArchive(ctx context.Context, olderThan int64) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	tag, execErr := pool.Exec(ctx, pruneArchiveSQL, olderThan)
	if execErr != nil {
		return 0, fmt.Errorf("prune archive: %w", execErr)
	}
	return tag.RowsAffected(), nil
}

// GetStakingAccount loads an account, or an empty one for a new owner.
func (s *Store) GetStakingAccount(ctx context.Context, owner identity.Pubkey) (engine.StakingAccount, error) {
	pool, err := s.getPool()
	if err != nil {
		return engine.StakingAccount{}, err
	}

	var (
		ownerStr  string
		stakedStr string
		acct      engine.StakingAccount
	)
	scanErr := pool.QueryRow(ctx, getStakingAccountSQL, owner.String()).Scan(
		&ownerStr,
		&stakedStr,
		&acct.StakeStartTime,
		&acct.LockDuration,
	)
	if errors.Is(scanErr, pgx.ErrNoRows) {
		return engine.NewStakingAccount(owner), nil
	}
	if scanErr != nil {
		return engine.StakingAccount{}, fmt.Errorf("get staking account: %w", scanErr)
	}

	acct.Owner = owner
	if acct.StakedAmount, err = parseUnits(stakedStr, "staked_amount"); err != nil {
		return engine.StakingAccount{}, err
	}
	acct.Tier = engine.ComputeTier(acct.StakedAmount)
	return acct, nil
}

// SaveStakingAccount upserts an account.
func (s *Store) SaveStakingAccount(ctx context.Context, acct engine.StakingAccount) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	_, execErr := pool.Exec(ctx, upsertStakingAccountSQL,
		acct.Owner.String(),
		formatUnits(acct.StakedAmount),
		acct.StakeStartTime,
		acct.LockDuration,
		int16(acct.Tier),
	)
	if execErr != nil {
		return fmt.Errorf("save staking account: %w", execErr)
	}
	return nil
}

// GetAllocations loads every recorded liquidity allocation.
func (s *Store) GetAllocations(ctx context.Context) (engine.Allocations, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listAllocationsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list allocations: %w", queryErr)
	}
	defer rows.Close()

	allocations := make(engine.Allocations)
	for rows.Next() {
		var ownerStr, valueStr string
		if err := rows.Scan(&ownerStr, &valueStr); err != nil {
			return nil, err
		}
		owner, err := identity.Parse(ownerStr)
		if err != nil {
			return nil, fmt.Errorf("parse allocation owner: %w", err)
		}
		value, err := parseUnits(valueStr, "allocation")
		if err != nil {
			return nil, err
		}
		allocations[owner] = value
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return allocations, nil
}

// SaveAllocation upserts the allocation recorded for owner.
func (s *Store) SaveAllocation(ctx context.Context, owner identity.Pubkey, value uint64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, upsertAllocationSQL, owner.String(), formatUnits(value)); execErr != nil {
		return fmt.Errorf("save allocation: %w", execErr)
	}
	return nil
}

// InsertTransfers queues transfer requests as pending.
func (s *Store) InsertTransfers(ctx context.Context, transfers []engine.Transfer) ([]TransferRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var queued []TransferRecord
	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		var txErr error
		queued, txErr = insertTransfers(ctx, tx, transfers)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return queued, nil
}

// MarkTransferSent flags a request as executed.
func (s *Store) MarkTransferSent(ctx context.Context, id int64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	tag, execErr := pool.Exec(ctx, markTransferSentSQL, id)
	if execErr != nil {
		return fmt.Errorf("mark transfer sent: %w", execErr)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark transfer %d: %w", id, ErrTransferNotFound)
	}
	return nil
}

// ListPendingTransfers returns pending requests in insertion order. A limit of zero returns all.
func (s *Store) ListPendingTransfers(ctx context.Context, limit int) ([]TransferRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, queryErr := pool.Query(ctx, listPendingTransfersSQL, lim)
	if queryErr != nil {
		return nil, fmt.Errorf("list pending transfers: %w", queryErr)
	}
	defer rows.Close()

	records := make([]TransferRecord, 0, max(limit, 0))
	for rows.Next() {
		rec, scanErr := scanTransfer(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func upsertTraderStats(ctx context.Context, tx pgx.Tx, stats engine.TraderStats) error {
	_, err := tx.Exec(ctx, upsertTraderStatsSQL,
		stats.Trader.String(),
		formatUnits(stats.OneMinCount),
		formatUnits(stats.FiveMinCount),
		formatUnits(stats.FifteenMinCount),
		stats.LastTradeTime,
		formatUnits(stats.StreakCounter),
	)
	if err != nil {
		return fmt.Errorf("upsert trader stats %s: %w", stats.Trader, err)
	}
	return nil
}

func upsertLeaderboard(ctx context.Context, tx pgx.Tx, board engine.Leaderboard) error {
	traders := board.Traders
	if traders == nil {
		traders = []engine.TraderStats{}
	}
	raw, err := json.Marshal(traders)
	if err != nil {
		return fmt.Errorf("encode leaderboard: %w", err)
	}
	if _, err := tx.Exec(ctx, upsertLeaderboardSQL, raw, board.LastResetTime); err != nil {
		return fmt.Errorf("upsert leaderboard: %w", err)
	}
	return nil
}

func insertTransfers(ctx context.Context, tx pgx.Tx, transfers []engine.Transfer) ([]TransferRecord, error) {
	queued := make([]TransferRecord, 0, len(transfers))
	for _, t := range transfers {
		rec := TransferRecord{Key: NewTransferKey(), Transfer: t}
		err := tx.QueryRow(ctx, insertTransferSQL,
			rec.Key,
			t.Destination.String(),
			formatUnits(t.Amount),
			string(t.Purpose),
		).Scan(&rec.ID, &rec.Status, &rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert transfer request: %w", err)
		}
		queued = append(queued, rec)
	}
	return queued, nil
}

func scanTransfer(rows pgx.Rows) (TransferRecord, error) {
	var (
		rec       TransferRecord
		destStr   string
		amountStr string
		purpose   string
	)
	if err := rows.Scan(
		&rec.ID,
		&rec.Key,
		&destStr,
		&amountStr,
		&purpose,
		&rec.Status,
		&rec.CreatedAt,
		&rec.SentAt,
	); err != nil {
		return TransferRecord{}, err
	}

	dest, err := identity.Parse(destStr)
	if err != nil {
		return TransferRecord{}, fmt.Errorf("parse transfer destination: %w", err)
	}
	amount, err := parseUnits(amountStr, "amount")
	if err != nil {
		return TransferRecord{}, err
	}
	rec.Transfer = engine.Transfer{Destination: dest, Amount: amount, Purpose: engine.Purpose(purpose)}
	return rec, nil
}

func parseUnits(s, column string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", column, err)
	}
	return v, nil
}

func formatUnits(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func pubkeyStrings(keys []identity.Pubkey) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}

func parsePubkeys(values []string) ([]identity.Pubkey, error) {
	out := make([]identity.Pubkey, len(values))
	for i, v := range values {
		pk, err := identity.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("parse archived trader: %w", err)
		}
		out[i] = pk
	}
	return out, nil
}
