package commands

import (
	"context"
	"log/slog"
	"strings"

	application "stakepoll/contexts/staked-voting/poll-ledger/application"
	"stakepoll/contexts/staked-voting/poll-ledger/domain/entities"
	domainerrors "stakepoll/contexts/staked-voting/poll-ledger/domain/errors"
	"stakepoll/contexts/staked-voting/poll-ledger/ports"
)

type VoteCommand struct {
	Voter         entities.Principal
	PollID        uint64
	OptionID      int
	SuppliedValue entities.Amount
}

type DemoVoteCommand struct {
	PollID   uint64
	OptionID int
	Token    entities.DemoToken
}

// VotingUseCase records real and demo votes. Real votes are keyed by
// principal, demo votes by caller-supplied token; the two never share a key
// space.
type VotingUseCase struct {
	Ledger  ports.Ledger
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Metrics ports.LedgerMetrics
	Logger  *slog.Logger
}

// Vote stakes SuppliedValue on one option. The value must match the poll
// stake exactly. On demo polls nothing is taken into custody, so only a zero
// value is accepted there and the option pool is left untouched.
func (uc VotingUseCase) Vote(ctx context.Context, cmd VoteCommand) (entities.VoteRecord, error) {
	logger := application.ResolveLogger(uc.Logger)
	voter := normalizePrincipal(cmd.Voter)
	if voter == "" {
		return entities.VoteRecord{}, domainerrors.ErrUnauthenticated
	}
	supplied := entities.AmountOrZero(cmd.SuppliedValue)
	now := resolveNow(uc.Clock)

	var record entities.VoteRecord
	var demoMode bool
	err := uc.Ledger.WithinPoll(ctx, cmd.PollID, func(ctx context.Context, tx ports.PollTx) error {
		poll := tx.Poll()
		demoMode = poll.DemoMode
		if poll.Resolved || poll.HasEnded(now) {
			return domainerrors.ErrPollEnded
		}
		_, voted, err := tx.GetVote(ctx, voter)
		if err != nil {
			return err
		}
		if voted {
			return domainerrors.ErrAlreadyVoted
		}
		if !poll.ValidOption(cmd.OptionID) {
			return domainerrors.ErrInvalidOption
		}
		stake := entities.AmountOrZero(poll.StakeAmount)
		if poll.DemoMode {
			stake = entities.ZeroAmount()
		}
		if !supplied.Equal(stake) {
			return domainerrors.ErrIncorrectStake
		}

		record = entities.VoteRecord{
			PollID:    poll.PollID,
			Voter:     voter,
			OptionID:  cmd.OptionID,
			Amount:    stake,
			CreatedAt: now,
		}
		if err := tx.InsertVote(ctx, record); err != nil {
			return err
		}
		if err := tx.AddToTally(ctx, cmd.OptionID, stake); err != nil {
			return err
		}
		return appendPollEvent(ctx, tx, uc.IDGen, EventVoteCast, poll.PollID, now, map[string]any{
			"voter":     string(voter),
			"option_id": cmd.OptionID,
			"amount":    stake.String(),
		})
	})
	if err != nil {
		logVoteRejected(logger, "vote_rejected", cmd.PollID, cmd.OptionID, err, "voter", string(voter))
		return entities.VoteRecord{}, err
	}

	resolveMetrics(uc.Metrics).VoteCast(demoMode)
	logger.Info("vote recorded",
		"event", "vote_cast",
		"module", application.ModuleName,
		"layer", "application",
		"poll_id", record.PollID,
		"voter", string(voter),
		"option_id", record.OptionID,
		"amount", record.Amount.String(),
	)
	return record, nil
}

// DemoVote counts a free vote identified only by an opaque token. It is
// rejected on polls that hold real funds.
func (uc VotingUseCase) DemoVote(ctx context.Context, cmd DemoVoteCommand) (entities.DemoVoteRecord, error) {
	logger := application.ResolveLogger(uc.Logger)
	token := entities.DemoToken(strings.TrimSpace(string(cmd.Token)))
	now := resolveNow(uc.Clock)

	var record entities.DemoVoteRecord
	err := uc.Ledger.WithinPoll(ctx, cmd.PollID, func(ctx context.Context, tx ports.PollTx) error {
		poll := tx.Poll()
		if !poll.DemoMode {
			return domainerrors.ErrDemoModeOnly
		}
		if poll.Resolved || poll.HasEnded(now) {
			return domainerrors.ErrPollEnded
		}
		if token == "" {
			return domainerrors.ErrInvalidDemoToken
		}
		used, err := tx.HasDemoVote(ctx, token)
		if err != nil {
			return err
		}
		if used {
			return domainerrors.ErrAlreadyVoted
		}
		if !poll.ValidOption(cmd.OptionID) {
			return domainerrors.ErrInvalidOption
		}

		record = entities.DemoVoteRecord{
			PollID:    poll.PollID,
			Token:     token,
			OptionID:  cmd.OptionID,
			CreatedAt: now,
		}
		if err := tx.InsertDemoVote(ctx, record); err != nil {
			return err
		}
		if err := tx.AddToTally(ctx, cmd.OptionID, entities.ZeroAmount()); err != nil {
			return err
		}
		return appendPollEvent(ctx, tx, uc.IDGen, EventDemoVoteCast, poll.PollID, now, map[string]any{
			"token":     string(token),
			"option_id": cmd.OptionID,
		})
	})
	if err != nil {
		logVoteRejected(logger, "demo_vote_rejected", cmd.PollID, cmd.OptionID, err)
		return entities.DemoVoteRecord{}, err
	}

	resolveMetrics(uc.Metrics).VoteCast(true)
	logger.Debug("demo vote recorded",
		"event", "demo_vote_cast",
		"module", application.ModuleName,
		"layer", "application",
		"poll_id", record.PollID,
		"option_id", record.OptionID,
	)
	return record, nil
}

func logVoteRejected(logger *slog.Logger, event string, pollID uint64, optionID int, err error, extra ...any) {
	args := []any{
		"event", event,
		"module", application.ModuleName,
		"layer", "application",
		"poll_id", pollID,
		"option_id", optionID,
		"error", err.Error(),
	}
	args = append(args, extra...)
	if isDomainRejection(err) {
		logger.Warn("vote rejected", args...)
		return
	}
	logger.Error("vote failed", args...)
}
