package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"stakepoll/contexts/staked-voting/poll-ledger/application/commands"
	"stakepoll/contexts/staked-voting/poll-ledger/application/queries"
	"stakepoll/contexts/staked-voting/poll-ledger/domain/entities"
	httptransport "stakepoll/contexts/staked-voting/poll-ledger/transport/http"
)

// Handler maps transport DTOs onto ledger use cases.
type Handler struct {
	Registry   commands.RegistryUseCase
	Voting     commands.VotingUseCase
	Resolution commands.ResolutionUseCase
	Payouts    commands.PayoutUseCase
	Treasury   commands.TreasuryUseCase
	Polls      queries.PollQueryUseCase
	Amounts    httptransport.AmountCodec
	Logger     *slog.Logger
}

func (h Handler) CreatePollHandler(
	ctx context.Context,
	userID string,
	idempotencyKey string,
	req httptransport.CreatePollRequest,
) (httptransport.PollResponse, error) {
	stake, err := h.Amounts.Parse(req.Stake)
	if err != nil {
		return httptransport.PollResponse{}, err
	}
	result, err := h.Registry.CreatePoll(ctx, commands.CreatePollCommand{
		Creator:         entities.Principal(userID),
		IdempotencyKey:  idempotencyKey,
		Question:        req.Question,
		Options:         req.Options,
		StakeAmount:     stake,
		DurationMinutes: req.DurationMinutes,
		DemoMode:        req.DemoMode,
	})
	if err != nil {
		return httptransport.PollResponse{}, err
	}
	resp := h.mapPoll(result.Poll)
	resp.Replayed = result.Replayed
	return resp, nil
}

func (h Handler) GetPollHandler(ctx context.Context, pollID uint64) (httptransport.PollResponse, error) {
	poll, err := h.Polls.GetPoll(ctx, pollID)
	if err != nil {
		return httptransport.PollResponse{}, err
	}
	return h.mapPoll(poll), nil
}

func (h Handler) ListPollsHandler(ctx context.Context, limit int, offset int) (httptransport.ListPollsResponse, error) {
	polls, err := h.Polls.ListPolls(ctx, limit, offset)
	if err != nil {
		return httptransport.ListPollsResponse{}, err
	}
	items := make([]httptransport.PollResponse, 0, len(polls))
	for _, poll := range polls {
		items = append(items, h.mapPoll(poll))
	}
	return httptransport.ListPollsResponse{Items: items}, nil
}

func (h Handler) VoteHandler(
	ctx context.Context,
	userID string,
	pollID uint64,
	req httptransport.VoteRequest,
) (httptransport.VoteResponse, error) {
	value, err := h.Amounts.Parse(req.Value)
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	vote, err := h.Voting.Vote(ctx, commands.VoteCommand{
		Voter:         entities.Principal(userID),
		PollID:        pollID,
		OptionID:      req.OptionID,
		SuppliedValue: value,
	})
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	return httptransport.VoteResponse{
		PollID:    vote.PollID,
		Voter:     string(vote.Voter),
		OptionID:  vote.OptionID,
		Amount:    h.Amounts.View(vote.Amount),
		CreatedAt: vote.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}

func (h Handler) DemoVoteHandler(
	ctx context.Context,
	pollID uint64,
	req httptransport.DemoVoteRequest,
) (httptransport.DemoVoteResponse, error) {
	vote, err := h.Voting.DemoVote(ctx, commands.DemoVoteCommand{
		PollID:   pollID,
		OptionID: req.OptionID,
		Token:    entities.DemoToken(req.Token),
	})
	if err != nil {
		return httptransport.DemoVoteResponse{}, err
	}
	return httptransport.DemoVoteResponse{
		PollID:   vote.PollID,
		OptionID: vote.OptionID,
		Counted:  true,
	}, nil
}

func (h Handler) ResolvePollHandler(ctx context.Context, userID string, pollID uint64, emergency bool) (httptransport.ResolveResponse, error) {
	cmd := commands.ResolvePollCommand{Caller: entities.Principal(userID), PollID: pollID}
	var (
		result commands.ResolvePollResult
		err    error
	)
	if emergency {
		result, err = h.Resolution.EmergencyResolvePoll(ctx, cmd)
	} else {
		result, err = h.Resolution.ResolvePoll(ctx, cmd)
	}
	if err != nil {
		return httptransport.ResolveResponse{}, err
	}
	return httptransport.ResolveResponse{
		PollID:        result.Poll.PollID,
		WinningOption: result.Poll.WinningOption,
		TotalPool:     h.Amounts.View(result.TotalPool),
		HouseFee:      h.Amounts.View(result.Poll.HouseFee),
		Emergency:     result.Poll.Emergency,
	}, nil
}

func (h Handler) ClaimWinningsHandler(ctx context.Context, userID string, pollID uint64) (httptransport.ClaimResponse, error) {
	claim, err := h.Payouts.ClaimWinnings(ctx, commands.ClaimWinningsCommand{
		Caller: entities.Principal(userID),
		PollID: pollID,
	})
	if err != nil {
		return httptransport.ClaimResponse{}, err
	}
	return httptransport.ClaimResponse{
		PollID: claim.PollID,
		Voter:  string(claim.Voter),
		Amount: h.Amounts.View(claim.Amount),
	}, nil
}

// BatchClaimWinningsHandler returns the partial result together with the
// error when the batch stops on a storage failure.
func (h Handler) BatchClaimWinningsHandler(
	ctx context.Context,
	userID string,
	pollID uint64,
	req httptransport.BatchClaimRequest,
) (httptransport.BatchClaimResponse, error) {
	identities := make([]entities.Principal, 0, len(req.Identities))
	for _, identity := range req.Identities {
		identities = append(identities, entities.Principal(identity))
	}
	result, err := h.Payouts.BatchClaimWinnings(ctx, commands.BatchClaimWinningsCommand{
		Caller:     entities.Principal(userID),
		PollID:     pollID,
		Identities: identities,
	})
	resp := httptransport.BatchClaimResponse{
		PollID:  result.PollID,
		Payout:  h.Amounts.View(result.Payout),
		Paid:    make([]string, 0, len(result.Paid)),
		Skipped: make([]httptransport.BatchClaimSkipped, 0, len(result.Skipped)),
	}
	for _, voter := range result.Paid {
		resp.Paid = append(resp.Paid, string(voter))
	}
	for _, skipped := range result.Skipped {
		resp.Skipped = append(resp.Skipped, httptransport.BatchClaimSkipped{
			Voter:  string(skipped.Voter),
			Reason: skipped.Reason,
		})
	}
	return resp, err
}

func (h Handler) TalliesHandler(ctx context.Context, pollID uint64) (httptransport.TalliesResponse, error) {
	tallies, err := h.Polls.GetTallies(ctx, pollID)
	if err != nil {
		return httptransport.TalliesResponse{}, err
	}
	pools := make([]httptransport.AmountView, 0, len(tallies.Pools))
	for _, pool := range tallies.Pools {
		pools = append(pools, h.Amounts.View(pool))
	}
	return httptransport.TalliesResponse{
		PollID:     tallies.PollID,
		VoteCounts: tallies.VoteCounts,
		Pools:      pools,
		TotalPool:  h.Amounts.View(tallies.TotalPool),
	}, nil
}

func (h Handler) PotentialWinningsHandler(ctx context.Context, pollID uint64, optionID int) (httptransport.PotentialWinningsResponse, error) {
	payout, err := h.Polls.CalculatePotentialWinnings(ctx, pollID, optionID)
	if err != nil {
		return httptransport.PotentialWinningsResponse{}, err
	}
	return httptransport.PotentialWinningsResponse{
		PollID:   pollID,
		OptionID: optionID,
		Payout:   h.Amounts.View(payout),
	}, nil
}

func (h Handler) UserVoteHandler(ctx context.Context, pollID uint64, voterID string) (httptransport.UserVoteResponse, error) {
	voter := entities.Principal(voterID)
	vote, voted, err := h.Polls.GetUserVote(ctx, pollID, voter)
	if err != nil {
		return httptransport.UserVoteResponse{}, err
	}
	claimed, err := h.Polls.HasClaimed(ctx, pollID, voter)
	if err != nil {
		return httptransport.UserVoteResponse{}, err
	}
	resp := httptransport.UserVoteResponse{
		PollID:   pollID,
		Voter:    voterID,
		HasVoted: voted,
		Amount:   h.Amounts.View(entities.ZeroAmount()),
		Claimed:  claimed,
	}
	if voted {
		optionID := vote.OptionID
		resp.OptionID = &optionID
		resp.Amount = h.Amounts.View(vote.Amount)
	}
	return resp, nil
}

func (h Handler) PollStatusHandler(ctx context.Context, pollID uint64) (httptransport.PollStatusResponse, error) {
	status, err := h.Polls.GetStatus(ctx, pollID)
	if err != nil {
		return httptransport.PollStatusResponse{}, err
	}
	return httptransport.PollStatusResponse{
		PollID:               status.PollID,
		Active:               status.Active,
		Ended:                status.Ended,
		Resolved:             status.Resolved,
		TimeRemainingSeconds: int64(status.TimeRemaining / time.Second),
	}, nil
}

func (h Handler) TreasuryHandler(ctx context.Context) (httptransport.TreasuryResponse, error) {
	treasury, err := h.Polls.GetTreasury(ctx)
	if err != nil {
		return httptransport.TreasuryResponse{}, err
	}
	return httptransport.TreasuryResponse{
		Owner:        string(treasury.Owner),
		HouseBalance: h.Amounts.View(treasury.HouseBalance),
	}, nil
}

func (h Handler) WithdrawHouseFeesHandler(ctx context.Context, userID string) (httptransport.WithdrawResponse, error) {
	result, err := h.Treasury.WithdrawHouseFees(ctx, commands.WithdrawHouseFeesCommand{
		Caller: entities.Principal(userID),
	})
	if err != nil {
		return httptransport.WithdrawResponse{}, err
	}
	return httptransport.WithdrawResponse{
		Owner:  string(result.Owner),
		Amount: h.Amounts.View(result.Amount),
	}, nil
}

func (h Handler) TransferOwnershipHandler(
	ctx context.Context,
	userID string,
	req httptransport.TransferOwnershipRequest,
) (httptransport.TreasuryResponse, error) {
	treasury, err := h.Treasury.TransferOwnership(ctx, commands.TransferOwnershipCommand{
		Caller:   entities.Principal(userID),
		NewOwner: entities.Principal(req.NewOwner),
	})
	if err != nil {
		return httptransport.TreasuryResponse{}, err
	}
	return httptransport.TreasuryResponse{
		Owner:        string(treasury.Owner),
		HouseBalance: h.Amounts.View(treasury.HouseBalance),
	}, nil
}

func (h Handler) mapPoll(poll entities.Poll) httptransport.PollResponse {
	resp := httptransport.PollResponse{
		PollID:    poll.PollID,
		Question:  poll.Question,
		Options:   append([]string(nil), poll.Options...),
		Stake:     h.Amounts.View(poll.StakeAmount),
		Creator:   string(poll.Creator),
		DemoMode:  poll.DemoMode,
		CreatedAt: poll.CreatedAt.UTC().Format(time.RFC3339),
		EndTime:   poll.EndTime.UTC().Format(time.RFC3339),
		Resolved:  poll.Resolved,
		HouseFee:  h.Amounts.View(poll.HouseFee),
		Emergency: poll.Emergency,
	}
	if poll.Resolved {
		winner := poll.WinningOption
		resp.WinningOption = &winner
	}
	return resp
}
