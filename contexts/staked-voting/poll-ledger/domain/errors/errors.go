package errors

import "errors"

// Validation errors.
var (
	ErrInvalidOptionsCount = errors.New("poll must have between 2 and 10 options")
	ErrInvalidDuration     = errors.New("poll duration must be greater than zero and within the supported range")
	ErrInvalidOption       = errors.New("option does not exist on poll")
	ErrIncorrectStake      = errors.New("supplied value must equal the poll stake amount")
	ErrInvalidPollInput    = errors.New("invalid poll input")
	ErrInvalidDemoToken    = errors.New("demo vote token is required")
	ErrInvalidOwner        = errors.New("owner identity is required")
)

// State precondition errors.
var (
	ErrPollNotFound      = errors.New("poll not found")
	ErrPollEnded         = errors.New("poll has ended")
	ErrPollNotEnded      = errors.New("poll has not ended yet")
	ErrAlreadyVoted      = errors.New("identity has already voted on this poll")
	ErrPollNotResolved   = errors.New("poll is not resolved")
	ErrAlreadyResolved   = errors.New("poll is already resolved")
	ErrAlreadyClaimed    = errors.New("winnings already claimed")
	ErrDemoModeOnly      = errors.New("operation is only available on demo polls")
	ErrNoWinnings        = errors.New("no winnings to claim")
	ErrNothingToWithdraw = errors.New("house balance is empty")
)

// Authorization errors.
var (
	ErrNotOwner       = errors.New("caller is not the protocol owner")
	ErrNotPollCreator = errors.New("caller is not the poll creator")
)

var (
	ErrTransferFailed      = errors.New("funds transfer failed")
	ErrIdempotencyConflict = errors.New("idempotency key already used with different payload")
	ErrUnauthenticated     = errors.New("caller identity is required")
)
