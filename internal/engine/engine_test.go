package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flash-trader/internal/identity"
)

func trader(n byte) identity.Pubkey {
	return identity.Pubkey{n}
}

func stats(n byte, oneMin uint64) TraderStats {
	return TraderStats{Trader: trader(n), OneMinCount: oneMin}
}

func TestRecordTradeFirstTrade(t *testing.T) {
	s, err := RecordTrade(NewTraderStats(trader(1)), 1_700_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), s.OneMinCount)
	assert.Equal(t, uint64(1), s.FiveMinCount)
	assert.Equal(t, uint64(1), s.FifteenMinCount)
	assert.Equal(t, int64(1_700_000_000), s.LastTradeTime)
}

func TestRecordTradeWithinMinuteIncreases(t *testing.T) {
	s := NewTraderStats(trader(1))
	now := int64(1_000)
	var prev uint64
	for i := 0; i < 20; i++ {
		var err error
		s, err = RecordTrade(s, now)
		require.NoError(t, err)
		assert.Greater(t, s.OneMinCount, prev)
		prev = s.OneMinCount
		now += 59
	}
	assert.Equal(t, uint64(20), s.OneMinCount)
	assert.Equal(t, uint64(20), s.FifteenMinCount)
}

func TestRecordTradeWindowsUseSameGap(t *testing.T) {
	s := TraderStats{Trader: trader(1), OneMinCount: 7, FiveMinCount: 7, FifteenMinCount: 7, LastTradeTime: 1_000}

	next, err := RecordTrade(s, 1_000+60)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), next.OneMinCount)
	assert.Equal(t, uint64(8), next.FiveMinCount)
	assert.Equal(t, uint64(8), next.FifteenMinCount)

	next, err = RecordTrade(s, 1_000+300)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), next.OneMinCount)
	assert.Equal(t, uint64(1), next.FiveMinCount)
	assert.Equal(t, uint64(8), next.FifteenMinCount)

	next, err = RecordTrade(s, 1_000+900)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), next.OneMinCount)
	assert.Equal(t, uint64(1), next.FiveMinCount)
	assert.Equal(t, uint64(1), next.FifteenMinCount)
	assert.Equal(t, int64(1_900), next.LastTradeTime)

	// input untouched
	assert.Equal(t, uint64(7), s.OneMinCount)
}

func TestRecordTradeOverflow(t *testing.T) {
	s := TraderStats{Trader: trader(1), OneMinCount: math.MaxUint64, LastTradeTime: 10}
	_, err := RecordTrade(s, 11)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)

	s = TraderStats{Trader: trader(1), LastTradeTime: math.MinInt64}
	_, err = RecordTrade(s, math.MaxInt64)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)
}

func TestLeaderboardBoundedAndSorted(t *testing.T) {
	var lb Leaderboard
	for i := 0; i < 25; i++ {
		lb = lb.Record(stats(byte(i+1), uint64((i*7)%13)))
		require.LessOrEqual(t, len(lb.Traders), MaxLeaderboardEntries)
		for j := 1; j < len(lb.Traders); j++ {
			require.GreaterOrEqual(t, lb.Traders[j-1].OneMinCount, lb.Traders[j].OneMinCount)
		}
	}
	assert.Len(t, lb.Traders, MaxLeaderboardEntries)
}

func TestLeaderboardStableTies(t *testing.T) {
	var lb Leaderboard
	lb = lb.Record(stats(1, 3))
	lb = lb.Record(stats(2, 3))
	lb = lb.Record(stats(3, 5))
	lb = lb.Record(stats(4, 3))

	assert.Equal(t, []identity.Pubkey{trader(3), trader(1), trader(2), trader(4)}, lb.Ranking())
}

func TestLeaderboardReplacesExisting(t *testing.T) {
	var lb Leaderboard
	lb = lb.Record(stats(1, 1))
	lb = lb.Record(stats(2, 2))
	before := lb

	lb = lb.Record(stats(1, 9))
	assert.Len(t, lb.Traders, 2)
	assert.Equal(t, 1, lb.Rank(trader(1)))
	assert.Equal(t, uint64(9), lb.Traders[0].OneMinCount)

	// the prior value is not edited
	assert.Equal(t, 1, before.Rank(trader(2)))
	assert.Equal(t, 0, before.Rank(trader(9)))
}

func TestLeaderboardDropsLowest(t *testing.T) {
	var lb Leaderboard
	for i := 1; i <= MaxLeaderboardEntries; i++ {
		lb = lb.Record(stats(byte(i), 10))
	}
	lb = lb.Record(stats(99, 1))
	assert.Equal(t, 0, lb.Rank(trader(99)))

	lb = lb.Record(stats(99, 11))
	assert.Equal(t, 1, lb.Rank(trader(99)))
	assert.Equal(t, 0, lb.Rank(trader(MaxLeaderboardEntries)))
}

func TestDistributeRewardsExact(t *testing.T) {
	entries := []TraderStats{stats(1, 10), stats(2, 5), stats(3, 5)}

	dist, err := DistributeRewards(entries, 50_000_000, DefaultRewardPolicy())
	require.NoError(t, err)

	shares := []uint64{dist.Rewards[0].FinalShare, dist.Rewards[1].FinalShare, dist.Rewards[2].FinalShare}
	assert.Equal(t, []uint64{25_000_000, 12_500_000, 12_500_000}, shares)
	assert.Equal(t, uint64(50_000_000), dist.Distributed)
	assert.Zero(t, dist.Undistributed)

	for i, tr := range dist.Traders {
		assert.Equal(t, uint64(1), tr.StreakCounter)
		assert.Zero(t, entries[i].StreakCounter)
	}
}

func TestDistributeRewardsDecay(t *testing.T) {
	top := stats(1, 10)
	top.StreakCounter = 6
	entries := []TraderStats{top, stats(2, 10)}

	dist, err := DistributeRewards(entries, 50_000_000, DefaultRewardPolicy())
	require.NoError(t, err)

	assert.Equal(t, uint64(25_000_000), dist.Rewards[0].BaseShare)
	assert.Equal(t, uint64(20_000_000), dist.Rewards[0].FinalShare)
	assert.True(t, dist.Rewards[0].Decayed)
	assert.Equal(t, uint64(25_000_000), dist.Rewards[1].FinalShare)
	assert.Equal(t, uint64(5_000_000), dist.Undistributed)
	assert.Equal(t, uint64(7), dist.Traders[0].StreakCounter)
}

func TestDistributeRewardsStreakBoundary(t *testing.T) {
	e := stats(1, 1)
	e.StreakCounter = 5

	dist, err := DistributeRewards([]TraderStats{e}, 1_000, DefaultRewardPolicy())
	require.NoError(t, err)
	assert.False(t, dist.Rewards[0].Decayed)
	assert.Equal(t, uint64(1_000), dist.Rewards[0].FinalShare)
}

func TestDistributeRewardsFloorRemainder(t *testing.T) {
	entries := []TraderStats{stats(1, 1), stats(2, 1), stats(3, 1)}

	dist, err := DistributeRewards(entries, 100, DefaultRewardPolicy())
	require.NoError(t, err)
	assert.Equal(t, uint64(99), dist.Distributed)
	assert.Equal(t, uint64(1), dist.Undistributed)
	assert.LessOrEqual(t, dist.Distributed, dist.Pool)
}

func TestDistributeRewardsWideMultiply(t *testing.T) {
	entries := []TraderStats{stats(1, math.MaxUint64/2), stats(2, math.MaxUint64/2)}

	dist, err := DistributeRewards(entries, math.MaxUint64, RewardPolicy{DecayStreakThreshold: 5, DecayFactor: decimal.NewFromInt(1)})
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64/2), dist.Rewards[0].FinalShare)
}

func TestDistributeRewardsDecayOverflow(t *testing.T) {
	entry := stats(1, 1)
	entry.StreakCounter = 6

	_, err := DistributeRewards([]TraderStats{entry}, math.MaxUint64, RewardPolicy{DecayStreakThreshold: 5, DecayFactor: decimal.NewFromInt(2)})
	assert.ErrorIs(t, err, ErrArithmeticOverflow)
}

func TestDistributeRewardsZeroActivity(t *testing.T) {
	_, err := DistributeRewards([]TraderStats{stats(1, 0)}, 50_000_000, DefaultRewardPolicy())
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = DistributeRewards(nil, 50_000_000, DefaultRewardPolicy())
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestDistributeRewardsTotalOverflow(t *testing.T) {
	_, err := DistributeRewards([]TraderStats{stats(1, math.MaxUint64), stats(2, 1)}, 10, DefaultRewardPolicy())
	assert.ErrorIs(t, err, ErrArithmeticOverflow)
}

func TestPoolForVolume(t *testing.T) {
	p := DefaultPoolPolicy()
	assert.Equal(t, uint64(50_000_000), p.PoolForVolume(0))
	assert.Equal(t, uint64(50_000_000), p.PoolForVolume(999_999))
	assert.Equal(t, uint64(500_000_000), p.PoolForVolume(1_000_000))
}

func TestSelectBonuses(t *testing.T) {
	entries := []TraderStats{
		{Trader: trader(1), OneMinCount: 5, LastTradeTime: 100},
		{Trader: trader(2), OneMinCount: 5, LastTradeTime: 101},
		{Trader: trader(3), OneMinCount: 4, LastTradeTime: 100},
		{Trader: trader(4), OneMinCount: 50, LastTradeTime: 2},
	}

	bonuses := SelectBonuses(entries, DefaultBonusPolicy())
	require.Len(t, bonuses, 2)
	assert.Equal(t, trader(1), bonuses[0].Trader)
	assert.Equal(t, trader(4), bonuses[1].Trader)
	assert.Equal(t, 10*BaseUnitsPerToken, bonuses[0].Amount)
	assert.Equal(t, bonuses[0].Amount, bonuses[1].Amount)
}

func TestArchiveAppendAndPrune(t *testing.T) {
	var lb Leaderboard
	lb = lb.Record(stats(1, 2))
	lb = lb.Record(stats(2, 4))

	var a Archive
	a = a.Append(Snapshot(100, lb))
	a = a.Append(Snapshot(200, lb))
	require.Len(t, a.Entries, 2)
	assert.Equal(t, []identity.Pubkey{trader(2), trader(1)}, a.Entries[0].TopTraders)

	pruned, removed := a.Prune(150)
	assert.Equal(t, 1, removed)
	require.Len(t, pruned.Entries, 1)
	assert.Equal(t, int64(200), pruned.Entries[0].Timestamp)
	assert.Len(t, a.Entries, 2)
}

func TestComputeTierBoundaries(t *testing.T) {
	cases := map[uint64]Tier{
		0:              TierNone,
		9_999_999:      TierNone,
		10_000_000:     TierOne,
		99_999_999:     TierOne,
		100_000_000:    TierTwo,
		499_999_999:    TierTwo,
		500_000_000:    TierThree,
		math.MaxUint64: TierThree,
	}
	for amount, want := range cases {
		assert.Equal(t, want, ComputeTier(amount), "amount %d", amount)
	}
}

func TestStakeAndUnstake(t *testing.T) {
	acct := NewStakingAccount(trader(7))

	acct, err := Stake(acct, 10_000_000, 3_600, 1_000)
	require.NoError(t, err)
	assert.Equal(t, TierOne, acct.Tier)
	assert.Equal(t, int64(1_000), acct.StakeStartTime)

	acct, err = Stake(acct, 90_000_000, 60, 2_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000_000), acct.StakedAmount)
	assert.Equal(t, TierTwo, acct.Tier)
	assert.Equal(t, int64(60), acct.LockDuration, "lock is overwritten, not summed")
	assert.Equal(t, int64(2_000), acct.StakeStartTime)

	acct, err = Unstake(acct, 1)
	require.NoError(t, err)
	assert.Equal(t, TierOne, acct.Tier)
}

func TestUnstakeInsufficient(t *testing.T) {
	acct := StakingAccount{Owner: trader(1), StakedAmount: 100_000_000, Tier: TierTwo}

	got, err := Unstake(acct, 100_000_001)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientStake))
	assert.Equal(t, acct, got)
}

func TestStakeOverflow(t *testing.T) {
	acct := StakingAccount{Owner: trader(1), StakedAmount: math.MaxUint64, Tier: TierThree}
	got, err := Stake(acct, 1, 0, 5)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)
	assert.Equal(t, acct, got)
}

func TestAllocationsOverwrite(t *testing.T) {
	var a Allocations
	a = a.Allocate(trader(1), TierOne)
	a = a.Allocate(trader(2), TierThree)
	b := a.Allocate(trader(1), TierTwo)

	assert.Equal(t, uint64(1), a[trader(1)])
	assert.Equal(t, uint64(2), b[trader(1)])
	assert.Len(t, b, 2)

	sorted := b.Sorted()
	assert.Equal(t, trader(2), sorted[0].Owner)
	assert.Equal(t, uint64(3), sorted[0].Value)
}

func TestFlashLoanAndBurn(t *testing.T) {
	tr, err := FlashLoan(trader(1), 1_000)
	require.NoError(t, err)
	assert.Equal(t, PurposeFlashLoan, tr.Purpose)

	_, err = FlashLoan(trader(1), 0)
	assert.ErrorIs(t, err, ErrZeroAmount)

	tr, err = BuybackBurn(trader(2), 5)
	require.NoError(t, err)
	assert.Equal(t, PurposeBurn, tr.Purpose)
	assert.Equal(t, trader(2), tr.Destination)
}

func TestTokenAmounts(t *testing.T) {
	units, err := ParseTokenAmount("12.5")
	require.NoError(t, err)
	assert.Equal(t, uint64(12_500_000), units)
	assert.Equal(t, "12.500000", FormatTokenAmount(units))

	_, err = ParseTokenAmount("-1")
	assert.Error(t, err)
	_, err = ParseTokenAmount("0.0000001")
	assert.Error(t, err)
	_, err = ParseTokenAmount("99999999999999999999")
	assert.ErrorIs(t, err, ErrArithmeticOverflow)
}
