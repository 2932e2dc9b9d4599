package commands

import (
	"errors"
	"strings"
	"time"

	"stakepoll/contexts/staked-voting/poll-ledger/domain/entities"
	domainerrors "stakepoll/contexts/staked-voting/poll-ledger/domain/errors"
	"stakepoll/contexts/staked-voting/poll-ledger/ports"
)

func resolveNow(clock ports.Clock) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock.Now().UTC()
}

func resolveMetrics(metrics ports.LedgerMetrics) ports.LedgerMetrics {
	if metrics == nil {
		return noopMetrics{}
	}
	return metrics
}

func normalizePrincipal(principal entities.Principal) entities.Principal {
	return entities.Principal(strings.TrimSpace(string(principal)))
}

var domainRejections = []error{
	domainerrors.ErrInvalidOptionsCount,
	domainerrors.ErrInvalidDuration,
	domainerrors.ErrInvalidOption,
	domainerrors.ErrIncorrectStake,
	domainerrors.ErrInvalidPollInput,
	domainerrors.ErrInvalidDemoToken,
	domainerrors.ErrInvalidOwner,
	domainerrors.ErrPollNotFound,
	domainerrors.ErrPollEnded,
	domainerrors.ErrPollNotEnded,
	domainerrors.ErrAlreadyVoted,
	domainerrors.ErrPollNotResolved,
	domainerrors.ErrAlreadyResolved,
	domainerrors.ErrAlreadyClaimed,
	domainerrors.ErrDemoModeOnly,
	domainerrors.ErrNoWinnings,
	domainerrors.ErrNothingToWithdraw,
	domainerrors.ErrNotOwner,
	domainerrors.ErrNotPollCreator,
	domainerrors.ErrUnauthenticated,
	domainerrors.ErrIdempotencyConflict,
}

// isDomainRejection separates caller mistakes (logged at Warn) from
// infrastructure failures (logged at Error).
func isDomainRejection(err error) bool {
	for _, target := range domainRejections {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

type noopMetrics struct{}

func (noopMetrics) PollCreated(bool)                      {}
func (noopMetrics) VoteCast(bool)                         {}
func (noopMetrics) PollResolved(bool, entities.Amount)    {}
func (noopMetrics) WinningsClaimed(bool, entities.Amount) {}
func (noopMetrics) ClaimSkipped(string)                   {}
