package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	application "stakepoll/contexts/staked-voting/poll-ledger/application"
	"stakepoll/contexts/staked-voting/poll-ledger/domain/entities"
	domainerrors "stakepoll/contexts/staked-voting/poll-ledger/domain/errors"
	"stakepoll/contexts/staked-voting/poll-ledger/ports"
)

const (
	SkipReasonInvalidIdentity = "invalid_identity"
	SkipReasonDuplicate       = "duplicate"
	SkipReasonNotVoted        = "not_voted"
	SkipReasonLosingOption    = "losing_option"
	SkipReasonAlreadyClaimed  = "already_claimed"
	SkipReasonTransferFailed  = "transfer_failed"
)

type ClaimWinningsCommand struct {
	Caller entities.Principal
	PollID uint64
}

type BatchClaimWinningsCommand struct {
	Caller     entities.Principal
	PollID     uint64
	Identities []entities.Principal
}

type BatchClaimSkip struct {
	Voter  entities.Principal
	Reason string
}

type BatchClaimResult struct {
	PollID  uint64
	Payout  entities.Amount
	Paid    []entities.Principal
	Skipped []BatchClaimSkip
}

// PayoutUseCase moves winnings out of custody. Every claim writes its claim
// flag before the transfer is attempted and runs in the same unit of work as
// the transfer, so a failed transfer leaves no flag behind.
type PayoutUseCase struct {
	Ledger   ports.Ledger
	Transfer ports.FundsTransfer
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Metrics  ports.LedgerMetrics
	Logger   *slog.Logger
}

// ClaimWinnings pays the caller's share of a resolved poll. Any ineligible
// caller fails the call.
func (uc PayoutUseCase) ClaimWinnings(ctx context.Context, cmd ClaimWinningsCommand) (entities.Claim, error) {
	logger := application.ResolveLogger(uc.Logger)
	caller := normalizePrincipal(cmd.Caller)
	if caller == "" {
		return entities.Claim{}, domainerrors.ErrUnauthenticated
	}
	now := resolveNow(uc.Clock)

	var claim entities.Claim
	err := uc.Ledger.WithinPoll(ctx, cmd.PollID, func(ctx context.Context, tx ports.PollTx) error {
		poll := tx.Poll()
		if poll.DemoMode {
			return domainerrors.ErrNoWinnings
		}
		if !poll.Resolved {
			return domainerrors.ErrPollNotResolved
		}
		vote, voted, err := tx.GetVote(ctx, caller)
		if err != nil {
			return err
		}
		if !voted || vote.OptionID != poll.WinningOption {
			return domainerrors.ErrNoWinnings
		}
		claimed, err := tx.HasClaimed(ctx, caller)
		if err != nil {
			return err
		}
		if claimed {
			return domainerrors.ErrAlreadyClaimed
		}
		payout, err := payoutFor(ctx, tx, poll)
		if err != nil {
			return err
		}
		claim, err = uc.claimThenPay(ctx, tx, poll.PollID, caller, payout, false, now)
		return err
	})
	if err != nil {
		args := []any{
			"event", "winnings_claim_rejected",
			"module", application.ModuleName,
			"layer", "application",
			"poll_id", cmd.PollID,
			"voter", string(caller),
			"error", err.Error(),
		}
		if isDomainRejection(err) {
			logger.Warn("winnings claim rejected", args...)
		} else {
			logger.Error("winnings claim failed", args...)
		}
		return entities.Claim{}, err
	}

	resolveMetrics(uc.Metrics).WinningsClaimed(false, claim.Amount)
	logger.Info("winnings claimed",
		"event", "winnings_claimed",
		"module", application.ModuleName,
		"layer", "application",
		"poll_id", claim.PollID,
		"voter", string(claim.Voter),
		"amount", claim.Amount.String(),
	)
	return claim, nil
}

// BatchClaimWinnings lets the poll creator pay out a list of identities in one
// call. Ineligible entries are skipped instead of failing the batch. Each paid
// entry commits on its own; an entry whose transfer fails keeps its claim open
// and is skipped as transfer_failed. Any other failure stops the batch and the
// partial result is returned alongside the error.
func (uc PayoutUseCase) BatchClaimWinnings(ctx context.Context, cmd BatchClaimWinningsCommand) (BatchClaimResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	caller := normalizePrincipal(cmd.Caller)
	if caller == "" {
		return BatchClaimResult{}, domainerrors.ErrUnauthenticated
	}
	now := resolveNow(uc.Clock)
	metrics := resolveMetrics(uc.Metrics)

	var poll entities.Poll
	var payout entities.Amount
	err := uc.Ledger.WithinPoll(ctx, cmd.PollID, func(ctx context.Context, tx ports.PollTx) error {
		poll = tx.Poll()
		if !poll.IsCreator(caller) {
			return domainerrors.ErrNotPollCreator
		}
		if poll.DemoMode {
			return domainerrors.ErrNoWinnings
		}
		if !poll.Resolved {
			return domainerrors.ErrPollNotResolved
		}
		var err error
		payout, err = payoutFor(ctx, tx, poll)
		return err
	})
	if err != nil {
		logger.Warn("batch claim rejected",
			"event", "batch_claim_rejected",
			"module", application.ModuleName,
			"layer", "application",
			"poll_id", cmd.PollID,
			"caller", string(caller),
			"error", err.Error(),
		)
		return BatchClaimResult{}, err
	}

	result := BatchClaimResult{
		PollID:  poll.PollID,
		Payout:  payout,
		Paid:    make([]entities.Principal, 0, len(cmd.Identities)),
		Skipped: make([]BatchClaimSkip, 0),
	}
	seen := make(map[entities.Principal]struct{}, len(cmd.Identities))
	skip := func(voter entities.Principal, reason string) {
		result.Skipped = append(result.Skipped, BatchClaimSkip{Voter: voter, Reason: reason})
		metrics.ClaimSkipped(reason)
	}

	for _, identity := range cmd.Identities {
		voter := normalizePrincipal(identity)
		if voter == "" {
			skip(identity, SkipReasonInvalidIdentity)
			continue
		}
		if _, dup := seen[voter]; dup {
			skip(voter, SkipReasonDuplicate)
			continue
		}
		seen[voter] = struct{}{}

		reason := ""
		err := uc.Ledger.WithinPoll(ctx, poll.PollID, func(ctx context.Context, tx ports.PollTx) error {
			vote, voted, err := tx.GetVote(ctx, voter)
			if err != nil {
				return err
			}
			if !voted {
				reason = SkipReasonNotVoted
				return nil
			}
			if vote.OptionID != poll.WinningOption {
				reason = SkipReasonLosingOption
				return nil
			}
			claimed, err := tx.HasClaimed(ctx, voter)
			if err != nil {
				return err
			}
			if claimed {
				reason = SkipReasonAlreadyClaimed
				return nil
			}
			_, err = uc.claimThenPay(ctx, tx, poll.PollID, voter, payout, true, now)
			return err
		})
		if errors.Is(err, domainerrors.ErrTransferFailed) {
			logger.Warn("batch claim transfer failed",
				"event", "batch_claim_transfer_failed",
				"module", application.ModuleName,
				"layer", "application",
				"poll_id", poll.PollID,
				"voter", string(voter),
				"error", err.Error(),
			)
			skip(voter, SkipReasonTransferFailed)
			continue
		}
		if err != nil {
			logger.Error("batch claim entry failed",
				"event", "batch_claim_entry_failed",
				"module", application.ModuleName,
				"layer", "application",
				"poll_id", poll.PollID,
				"voter", string(voter),
				"paid_so_far", len(result.Paid),
				"error", err.Error(),
			)
			return result, err
		}
		if reason != "" {
			skip(voter, reason)
			continue
		}
		result.Paid = append(result.Paid, voter)
		metrics.WinningsClaimed(true, payout)
	}

	logger.Info("batch claim completed",
		"event", "batch_claim_completed",
		"module", application.ModuleName,
		"layer", "application",
		"poll_id", poll.PollID,
		"caller", string(caller),
		"payout", payout.String(),
		"paid_count", len(result.Paid),
		"skipped_count", len(result.Skipped),
	)
	return result, nil
}

// claimThenPay stages the claim flag and its event, then invokes the transfer
// as the last step of the unit of work.
func (uc PayoutUseCase) claimThenPay(
	ctx context.Context,
	tx ports.PollTx,
	pollID uint64,
	voter entities.Principal,
	payout entities.Amount,
	batch bool,
	now time.Time,
) (entities.Claim, error) {
	claim := entities.Claim{
		PollID:    pollID,
		Voter:     voter,
		Amount:    payout,
		Batch:     batch,
		ClaimedAt: now,
	}
	if err := tx.InsertClaim(ctx, claim); err != nil {
		return entities.Claim{}, err
	}
	if err := appendPollEvent(ctx, tx, uc.IDGen, EventWinningsClaimed, pollID, now, map[string]any{
		"voter":  string(voter),
		"amount": payout.String(),
		"batch":  batch,
	}); err != nil {
		return entities.Claim{}, err
	}
	if payout.IsZero() {
		return claim, nil
	}
	if uc.Transfer == nil {
		return entities.Claim{}, fmt.Errorf("%w: no funds transfer configured", domainerrors.ErrTransferFailed)
	}
	if err := uc.Transfer.Transfer(ctx, voter, payout); err != nil {
		return entities.Claim{}, fmt.Errorf("%w: %w", domainerrors.ErrTransferFailed, err)
	}
	return claim, nil
}

func payoutFor(ctx context.Context, tx ports.PollTx, poll entities.Poll) (entities.Amount, error) {
	tallies, err := tx.ListTallies(ctx)
	if err != nil {
		return entities.Amount{}, err
	}
	var winnerVotes uint64
	for _, tally := range tallies {
		if tally.OptionID == poll.WinningOption {
			winnerVotes = tally.VoteCount
		}
	}
	return entities.WinnerPayout(entities.TotalPool(tallies), entities.AmountOrZero(poll.HouseFee), winnerVotes), nil
}
