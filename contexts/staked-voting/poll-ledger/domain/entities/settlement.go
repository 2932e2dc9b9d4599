package entities

// SelectWinner scans options in ascending order and keeps the first index that
// reaches the running maximum, so ties go to the lowest option id.
// Tallies must be ordered by OptionID.
func SelectWinner(tallies []OptionTally) int {
	winner := 0
	var best uint64
	for i, tally := range tallies {
		if i == 0 || tally.VoteCount > best {
			winner = tally.OptionID
			best = tally.VoteCount
		}
	}
	return winner
}

func TotalPool(tallies []OptionTally) Amount {
	total := ZeroAmount()
	for _, tally := range tallies {
		total = total.Add(tally.Pool)
	}
	return total
}

// HouseFee is HouseFeePercent of the total pool, rounded down.
func HouseFee(totalPool Amount) Amount {
	return totalPool.MulUint64(HouseFeePercent).QuoUint64(100)
}

// WinnerPayout splits the pool left after the fee evenly across winning votes.
// The remainder of the integer division stays in custody.
func WinnerPayout(totalPool Amount, houseFee Amount, winnerVotes uint64) Amount {
	if winnerVotes == 0 || houseFee.GT(totalPool) {
		return ZeroAmount()
	}
	return totalPool.Sub(houseFee).QuoUint64(winnerVotes)
}

// PotentialPayout projects the per-vote payout of an option if it won with the
// current counts.
func PotentialPayout(tallies []OptionTally, optionID int) Amount {
	total := TotalPool(tallies)
	for _, tally := range tallies {
		if tally.OptionID == optionID {
			return WinnerPayout(total, HouseFee(total), tally.VoteCount)
		}
	}
	return ZeroAmount()
}

func VoteCounts(tallies []OptionTally) []uint64 {
	counts := make([]uint64, 0, len(tallies))
	for _, tally := range tallies {
		counts = append(counts, tally.VoteCount)
	}
	return counts
}

func OptionPools(tallies []OptionTally) []Amount {
	pools := make([]Amount, 0, len(tallies))
	for _, tally := range tallies {
		pools = append(pools, tally.Pool)
	}
	return pools
}
