package commands

import (
	"context"
	"fmt"
	"log/slog"

	application "stakepoll/contexts/staked-voting/poll-ledger/application"
	"stakepoll/contexts/staked-voting/poll-ledger/domain/entities"
	domainerrors "stakepoll/contexts/staked-voting/poll-ledger/domain/errors"
	"stakepoll/contexts/staked-voting/poll-ledger/ports"
)

type WithdrawHouseFeesCommand struct {
	Caller entities.Principal
}

type TransferOwnershipCommand struct {
	Caller   entities.Principal
	NewOwner entities.Principal
}

type WithdrawHouseFeesResult struct {
	Owner  entities.Principal
	Amount entities.Amount
}

// TreasuryUseCase covers the owner-only operations on collected house fees.
type TreasuryUseCase struct {
	Ledger   ports.Ledger
	Transfer ports.FundsTransfer
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Logger   *slog.Logger
}

// WithdrawHouseFees drains the house balance to zero and transfers it to the
// owner. A failed transfer restores the balance.
func (uc TreasuryUseCase) WithdrawHouseFees(ctx context.Context, cmd WithdrawHouseFeesCommand) (WithdrawHouseFeesResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	caller := normalizePrincipal(cmd.Caller)
	if caller == "" {
		return WithdrawHouseFeesResult{}, domainerrors.ErrUnauthenticated
	}
	now := resolveNow(uc.Clock)

	var result WithdrawHouseFeesResult
	err := uc.Ledger.WithinTreasury(ctx, func(ctx context.Context, tx ports.TreasuryTx) error {
		treasury := tx.Treasury()
		if !treasury.IsOwner(caller) {
			return domainerrors.ErrNotOwner
		}
		balance := entities.AmountOrZero(treasury.HouseBalance)
		if balance.IsZero() {
			return domainerrors.ErrNothingToWithdraw
		}

		treasury.HouseBalance = entities.ZeroAmount()
		treasury.UpdatedAt = now
		if err := tx.SaveTreasury(ctx, treasury); err != nil {
			return err
		}
		if err := appendTreasuryEvent(ctx, tx, uc.IDGen, EventHouseFeesWithdrawn, now, map[string]any{
			"owner":  string(treasury.Owner),
			"amount": balance.String(),
		}); err != nil {
			return err
		}
		if uc.Transfer == nil {
			return fmt.Errorf("%w: no funds transfer configured", domainerrors.ErrTransferFailed)
		}
		if err := uc.Transfer.Transfer(ctx, treasury.Owner, balance); err != nil {
			return fmt.Errorf("%w: %w", domainerrors.ErrTransferFailed, err)
		}
		result = WithdrawHouseFeesResult{Owner: treasury.Owner, Amount: balance}
		return nil
	})
	if err != nil {
		args := []any{
			"event", "house_fees_withdraw_rejected",
			"module", application.ModuleName,
			"layer", "application",
			"caller", string(caller),
			"error", err.Error(),
		}
		if isDomainRejection(err) {
			logger.Warn("house fee withdrawal rejected", args...)
		} else {
			logger.Error("house fee withdrawal failed", args...)
		}
		return WithdrawHouseFeesResult{}, err
	}

	logger.Info("house fees withdrawn",
		"event", "house_fees_withdrawn",
		"module", application.ModuleName,
		"layer", "application",
		"owner", string(result.Owner),
		"amount", result.Amount.String(),
	)
	return result, nil
}

func (uc TreasuryUseCase) TransferOwnership(ctx context.Context, cmd TransferOwnershipCommand) (entities.Treasury, error) {
	logger := application.ResolveLogger(uc.Logger)
	caller := normalizePrincipal(cmd.Caller)
	if caller == "" {
		return entities.Treasury{}, domainerrors.ErrUnauthenticated
	}
	newOwner := normalizePrincipal(cmd.NewOwner)
	now := resolveNow(uc.Clock)

	var updated entities.Treasury
	var previous entities.Principal
	err := uc.Ledger.WithinTreasury(ctx, func(ctx context.Context, tx ports.TreasuryTx) error {
		treasury := tx.Treasury()
		if !treasury.IsOwner(caller) {
			return domainerrors.ErrNotOwner
		}
		if newOwner == "" {
			return domainerrors.ErrInvalidOwner
		}
		previous = treasury.Owner
		treasury.Owner = newOwner
		treasury.UpdatedAt = now
		if err := tx.SaveTreasury(ctx, treasury); err != nil {
			return err
		}
		updated = treasury
		return appendTreasuryEvent(ctx, tx, uc.IDGen, EventOwnershipTransferred, now, map[string]any{
			"previous_owner": string(previous),
			"new_owner":      string(newOwner),
		})
	})
	if err != nil {
		logger.Warn("ownership transfer rejected",
			"event", "ownership_transfer_rejected",
			"module", application.ModuleName,
			"layer", "application",
			"caller", string(caller),
			"error", err.Error(),
		)
		return entities.Treasury{}, err
	}

	logger.Info("ownership transferred",
		"event", "ownership_transferred",
		"module", application.ModuleName,
		"layer", "application",
		"previous_owner", string(previous),
		"new_owner", string(newOwner),
	)
	return updated, nil
}
