package commands

import (
	"context"
	"log/slog"

	application "stakepoll/contexts/staked-voting/poll-ledger/application"
	"stakepoll/contexts/staked-voting/poll-ledger/domain/entities"
	domainerrors "stakepoll/contexts/staked-voting/poll-ledger/domain/errors"
	"stakepoll/contexts/staked-voting/poll-ledger/ports"
)

type ResolvePollCommand struct {
	Caller entities.Principal
	PollID uint64
}

type ResolvePollResult struct {
	Poll      entities.Poll
	TotalPool entities.Amount
}

// ResolutionUseCase freezes a poll's winning option and house fee exactly once.
type ResolutionUseCase struct {
	Ledger  ports.Ledger
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Metrics ports.LedgerMetrics
	Logger  *slog.Logger
}

// ResolvePoll may be called by the poll creator or the protocol owner once
// the poll has ended.
func (uc ResolutionUseCase) ResolvePoll(ctx context.Context, cmd ResolvePollCommand) (ResolvePollResult, error) {
	return uc.resolve(ctx, cmd, false)
}

// EmergencyResolvePoll is the owner-only variant that ignores the end time.
func (uc ResolutionUseCase) EmergencyResolvePoll(ctx context.Context, cmd ResolvePollCommand) (ResolvePollResult, error) {
	return uc.resolve(ctx, cmd, true)
}

func (uc ResolutionUseCase) resolve(ctx context.Context, cmd ResolvePollCommand, emergency bool) (ResolvePollResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	caller := normalizePrincipal(cmd.Caller)
	if caller == "" {
		return ResolvePollResult{}, domainerrors.ErrUnauthenticated
	}
	now := resolveNow(uc.Clock)

	var result ResolvePollResult
	err := uc.Ledger.WithinPoll(ctx, cmd.PollID, func(ctx context.Context, tx ports.PollTx) error {
		poll := tx.Poll()
		treasury, err := tx.GetTreasury(ctx)
		if err != nil {
			return err
		}
		if emergency {
			if !treasury.IsOwner(caller) {
				return domainerrors.ErrNotOwner
			}
		} else {
			if !poll.IsCreator(caller) && !treasury.IsOwner(caller) {
				return domainerrors.ErrNotPollCreator
			}
			if !poll.HasEnded(now) {
				return domainerrors.ErrPollNotEnded
			}
		}
		if poll.Resolved {
			return domainerrors.ErrAlreadyResolved
		}

		tallies, err := tx.ListTallies(ctx)
		if err != nil {
			return err
		}
		total := entities.TotalPool(tallies)
		fee := entities.ZeroAmount()
		if !poll.DemoMode && !total.IsZero() {
			fee = entities.HouseFee(total)
			if err := tx.CreditHouse(ctx, fee); err != nil {
				return err
			}
		}

		poll.Resolved = true
		poll.WinningOption = entities.SelectWinner(tallies)
		poll.HouseFee = fee
		poll.ResolvedAt = now
		poll.ResolvedBy = caller
		poll.Emergency = emergency
		if err := tx.SavePoll(ctx, poll); err != nil {
			return err
		}
		result = ResolvePollResult{Poll: poll, TotalPool: total}

		return appendPollEvent(ctx, tx, uc.IDGen, EventPollResolved, poll.PollID, now, map[string]any{
			"winning_option": poll.WinningOption,
			"vote_counts":    entities.VoteCounts(tallies),
			"total_pool":     total.String(),
			"house_fee":      fee.String(),
			"resolved_by":    string(caller),
			"emergency":      emergency,
		})
	})
	if err != nil {
		args := []any{
			"event", "poll_resolve_rejected",
			"module", application.ModuleName,
			"layer", "application",
			"poll_id", cmd.PollID,
			"caller", string(caller),
			"emergency", emergency,
			"error", err.Error(),
		}
		if isDomainRejection(err) {
			logger.Warn("poll resolve rejected", args...)
		} else {
			logger.Error("poll resolve failed", args...)
		}
		return ResolvePollResult{}, err
	}

	resolveMetrics(uc.Metrics).PollResolved(emergency, result.Poll.HouseFee)
	logger.Info("poll resolved",
		"event", "poll_resolved",
		"module", application.ModuleName,
		"layer", "application",
		"poll_id", result.Poll.PollID,
		"winning_option", result.Poll.WinningOption,
		"total_pool", result.TotalPool.String(),
		"house_fee", result.Poll.HouseFee.String(),
		"emergency", emergency,
	)
	return result, nil
}
