package queries

import (
	"context"
	"errors"
	"strings"
	"time"

	"stakepoll/contexts/staked-voting/poll-ledger/domain/entities"
	domainerrors "stakepoll/contexts/staked-voting/poll-ledger/domain/errors"
	"stakepoll/contexts/staked-voting/poll-ledger/ports"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type PollQueryUseCase struct {
	Ledger ports.Ledger
	Clock  ports.Clock
}

// PollTallies is the aggregate view of one poll's counters.
type PollTallies struct {
	PollID     uint64
	VoteCounts []uint64
	Pools      []entities.Amount
	TotalPool  entities.Amount
}

type PollStatus struct {
	PollID        uint64
	Active        bool
	Ended         bool
	Resolved      bool
	TimeRemaining time.Duration
}

func (uc PollQueryUseCase) GetPoll(ctx context.Context, pollID uint64) (entities.Poll, error) {
	return uc.Ledger.GetPoll(ctx, pollID)
}

func (uc PollQueryUseCase) ListPolls(ctx context.Context, limit int, offset int) ([]entities.Poll, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return uc.Ledger.ListPolls(ctx, limit, offset)
}

func (uc PollQueryUseCase) GetTallies(ctx context.Context, pollID uint64) (PollTallies, error) {
	tallies, err := uc.tallies(ctx, pollID)
	if err != nil {
		return PollTallies{}, err
	}
	return PollTallies{
		PollID:     pollID,
		VoteCounts: entities.VoteCounts(tallies),
		Pools:      entities.OptionPools(tallies),
		TotalPool:  entities.TotalPool(tallies),
	}, nil
}

func (uc PollQueryUseCase) GetVoteCounts(ctx context.Context, pollID uint64) ([]uint64, error) {
	tallies, err := uc.tallies(ctx, pollID)
	if err != nil {
		return nil, err
	}
	return entities.VoteCounts(tallies), nil
}

func (uc PollQueryUseCase) GetOptionPools(ctx context.Context, pollID uint64) ([]entities.Amount, error) {
	tallies, err := uc.tallies(ctx, pollID)
	if err != nil {
		return nil, err
	}
	return entities.OptionPools(tallies), nil
}

func (uc PollQueryUseCase) GetTotalPool(ctx context.Context, pollID uint64) (entities.Amount, error) {
	tallies, err := uc.tallies(ctx, pollID)
	if err != nil {
		return entities.Amount{}, err
	}
	return entities.TotalPool(tallies), nil
}

// CalculatePotentialWinnings projects what one winning vote on optionID would
// receive if the poll resolved now. Demo polls and options without votes
// project zero.
func (uc PollQueryUseCase) CalculatePotentialWinnings(ctx context.Context, pollID uint64, optionID int) (entities.Amount, error) {
	poll, err := uc.Ledger.GetPoll(ctx, pollID)
	if err != nil {
		return entities.Amount{}, err
	}
	if !poll.ValidOption(optionID) {
		return entities.Amount{}, domainerrors.ErrInvalidOption
	}
	if poll.DemoMode {
		return entities.ZeroAmount(), nil
	}
	tallies, err := uc.Ledger.ListTallies(ctx, pollID)
	if err != nil {
		return entities.Amount{}, err
	}
	return entities.PotentialPayout(tallies, optionID), nil
}

func (uc PollQueryUseCase) GetUserVote(ctx context.Context, pollID uint64, voter entities.Principal) (entities.VoteRecord, bool, error) {
	if _, err := uc.Ledger.GetPoll(ctx, pollID); err != nil {
		return entities.VoteRecord{}, false, err
	}
	return uc.Ledger.GetVote(ctx, pollID, entities.Principal(strings.TrimSpace(string(voter))))
}

func (uc PollQueryUseCase) HasClaimed(ctx context.Context, pollID uint64, voter entities.Principal) (bool, error) {
	if _, err := uc.Ledger.GetPoll(ctx, pollID); err != nil {
		return false, err
	}
	return uc.Ledger.HasClaimed(ctx, pollID, entities.Principal(strings.TrimSpace(string(voter))))
}

// IsPollActive reports false for unknown polls instead of failing.
func (uc PollQueryUseCase) IsPollActive(ctx context.Context, pollID uint64) (bool, error) {
	poll, err := uc.Ledger.GetPoll(ctx, pollID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrPollNotFound) {
			return false, nil
		}
		return false, err
	}
	return poll.IsActive(uc.now()), nil
}

func (uc PollQueryUseCase) GetTimeRemaining(ctx context.Context, pollID uint64) (time.Duration, error) {
	poll, err := uc.Ledger.GetPoll(ctx, pollID)
	if err != nil {
		return 0, err
	}
	return poll.TimeRemaining(uc.now()), nil
}

func (uc PollQueryUseCase) GetStatus(ctx context.Context, pollID uint64) (PollStatus, error) {
	poll, err := uc.Ledger.GetPoll(ctx, pollID)
	if err != nil {
		return PollStatus{}, err
	}
	now := uc.now()
	return PollStatus{
		PollID:        poll.PollID,
		Active:        poll.IsActive(now),
		Ended:         poll.HasEnded(now),
		Resolved:      poll.Resolved,
		TimeRemaining: poll.TimeRemaining(now),
	}, nil
}

func (uc PollQueryUseCase) GetTreasury(ctx context.Context) (entities.Treasury, error) {
	return uc.Ledger.GetTreasury(ctx)
}

func (uc PollQueryUseCase) tallies(ctx context.Context, pollID uint64) ([]entities.OptionTally, error) {
	if _, err := uc.Ledger.GetPoll(ctx, pollID); err != nil {
		return nil, err
	}
	return uc.Ledger.ListTallies(ctx, pollID)
}

func (uc PollQueryUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}
