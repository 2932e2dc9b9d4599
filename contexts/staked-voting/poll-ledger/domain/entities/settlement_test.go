package entities_test

import (
	"testing"
	"time"

	"stakepoll/contexts/staked-voting/poll-ledger/domain/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amount(t *testing.T, raw string) entities.Amount {
	t.Helper()
	value, err := entities.ParseAmount(raw)
	require.NoError(t, err)
	return value
}

func tallies(counts []uint64, stake entities.Amount) []entities.OptionTally {
	items := make([]entities.OptionTally, 0, len(counts))
	for i, count := range counts {
		items = append(items, entities.OptionTally{
			PollID:    1,
			OptionID:  i,
			VoteCount: count,
			Pool:      stake.MulUint64(count),
		})
	}
	return items
}

func TestSelectWinnerPicksHighestCount(t *testing.T) {
	assert.Equal(t, 1, entities.SelectWinner(tallies([]uint64{1, 2, 0}, entities.ZeroAmount())))
	assert.Equal(t, 2, entities.SelectWinner(tallies([]uint64{0, 3, 4, 1}, entities.ZeroAmount())))
}

func TestSelectWinnerTieGoesToLowestOption(t *testing.T) {
	assert.Equal(t, 0, entities.SelectWinner(tallies([]uint64{1, 1}, entities.ZeroAmount())))
	assert.Equal(t, 1, entities.SelectWinner(tallies([]uint64{0, 5, 5, 2}, entities.ZeroAmount())))
	assert.Equal(t, 0, entities.SelectWinner(tallies([]uint64{0, 0, 0}, entities.ZeroAmount())))
}

func TestHouseFeeRoundsDown(t *testing.T) {
	assert.Equal(t, "6000000000000000", entities.HouseFee(amount(t, "300000000000000000")).String())
	assert.Equal(t, "0", entities.HouseFee(entities.NewAmount(49)).String())
	assert.Equal(t, "1", entities.HouseFee(entities.NewAmount(50)).String())
	assert.True(t, entities.HouseFee(entities.ZeroAmount()).IsZero())
}

func TestWinnerPayoutSplitsPoolAfterFee(t *testing.T) {
	stake := amount(t, "100000000000000000")
	items := tallies([]uint64{1, 2, 0}, stake)
	total := entities.TotalPool(items)
	fee := entities.HouseFee(total)

	require.Equal(t, "300000000000000000", total.String())
	payout := entities.WinnerPayout(total, fee, 2)
	assert.Equal(t, "147000000000000000", payout.String())
}

func TestWinnerPayoutZeroWinners(t *testing.T) {
	assert.True(t, entities.WinnerPayout(entities.NewAmount(1000), entities.NewAmount(20), 0).IsZero())
}

func TestWinnerPayoutConservesPool(t *testing.T) {
	for _, counts := range [][]uint64{
		{1, 2, 0},
		{3, 3},
		{7, 1, 1, 1},
		{1, 0, 0, 0, 0, 0, 0, 0, 0, 13},
	} {
		items := tallies(counts, entities.NewAmount(333333333333333333))
		total := entities.TotalPool(items)
		fee := entities.HouseFee(total)
		winner := entities.SelectWinner(items)
		winners := items[winner].VoteCount
		payout := entities.WinnerPayout(total, fee, winners)

		paid := payout.MulUint64(winners).Add(fee)
		assert.True(t, paid.LTE(total), "counts %v: paid %s exceeds pool %s", counts, paid, total)
		dust := total.Sub(paid)
		assert.True(t, dust.LT(entities.NewAmount(winners)), "counts %v: dust %s not below winner count", counts, dust)
	}
}

func TestPotentialPayoutUsesCurrentCounts(t *testing.T) {
	items := tallies([]uint64{1, 2, 0}, entities.NewAmount(100))
	assert.Equal(t, "294", entities.PotentialPayout(items, 0).String())
	assert.Equal(t, "147", entities.PotentialPayout(items, 1).String())
	assert.True(t, entities.PotentialPayout(items, 2).IsZero())
	assert.True(t, entities.PotentialPayout(items, 9).IsZero())
}

func TestVoteCountsAndPoolsFollowOptionOrder(t *testing.T) {
	items := tallies([]uint64{2, 0, 1}, entities.NewAmount(5))
	assert.Equal(t, []uint64{2, 0, 1}, entities.VoteCounts(items))
	pools := entities.OptionPools(items)
	require.Len(t, pools, 3)
	assert.Equal(t, "10", pools[0].String())
	assert.Equal(t, "0", pools[1].String())
	assert.Equal(t, "5", pools[2].String())
	assert.Equal(t, "15", entities.TotalPool(items).String())
}

func TestPollTimeWindow(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	poll := entities.Poll{
		Options:   []string{"yes", "no"},
		CreatedAt: created,
		EndTime:   created.Add(10 * time.Minute),
	}

	assert.True(t, poll.IsActive(created))
	assert.False(t, poll.HasEnded(created.Add(9*time.Minute)))
	assert.Equal(t, time.Minute, poll.TimeRemaining(created.Add(9*time.Minute)))

	assert.True(t, poll.HasEnded(poll.EndTime))
	assert.False(t, poll.IsActive(poll.EndTime))
	assert.Zero(t, poll.TimeRemaining(poll.EndTime.Add(time.Hour)))

	poll.Resolved = true
	assert.False(t, poll.IsActive(created))
}

func TestPollOptionAndRoleChecks(t *testing.T) {
	poll := entities.Poll{Options: []string{"a", "b", "c"}, Creator: "alice"}
	assert.True(t, poll.ValidOption(0))
	assert.True(t, poll.ValidOption(2))
	assert.False(t, poll.ValidOption(3))
	assert.False(t, poll.ValidOption(-1))

	assert.True(t, poll.IsCreator("alice"))
	assert.False(t, poll.IsCreator("bob"))
	assert.False(t, entities.Poll{}.IsCreator(""))

	treasury := entities.Treasury{Owner: "owner"}
	assert.True(t, treasury.IsOwner("owner"))
	assert.False(t, treasury.IsOwner(""))
}

func TestAmountOrZeroHandlesUnsetValues(t *testing.T) {
	var unset entities.Amount
	assert.True(t, entities.AmountOrZero(unset).IsZero())
	assert.Equal(t, "7", entities.AmountOrZero(entities.NewAmount(7)).String())

	parsed, err := entities.ParseAmount("")
	require.NoError(t, err)
	assert.True(t, parsed.IsZero())

	_, err = entities.ParseAmount("-1")
	assert.Error(t, err)
}
