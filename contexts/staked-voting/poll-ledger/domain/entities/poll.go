package entities

import (
	"math"
	"time"

	sdkmath "cosmossdk.io/math"
)

const (
	MinOptions      = 2
	MaxOptions      = 10
	HouseFeePercent = 2

	// MaxDurationMinutes is the longest duration whose end time still fits in
	// a time.Duration offset from creation.
	MaxDurationMinutes = int64(math.MaxInt64 / time.Minute)
)

// Amount is a non-negative integer quantity in base units (wei-like).
type Amount = sdkmath.Uint

func ZeroAmount() Amount {
	return sdkmath.ZeroUint()
}

func NewAmount(value uint64) Amount {
	return sdkmath.NewUint(value)
}

func ParseAmount(raw string) (Amount, error) {
	if raw == "" {
		return ZeroAmount(), nil
	}
	return sdkmath.ParseUint(raw)
}

// AmountOrZero maps the uninitialised Uint value to zero.
func AmountOrZero(amount Amount) Amount {
	if amount.IsNil() {
		return ZeroAmount()
	}
	return amount
}

// Principal is an authenticated caller identity. DemoToken is the unauthenticated
// key used by demo votes. The two key spaces are never mixed.
type Principal string

type DemoToken string

type Poll struct {
	PollID        uint64
	Question      string
	Options       []string
	StakeAmount   Amount
	Creator       Principal
	DemoMode      bool
	CreatedAt     time.Time
	EndTime       time.Time
	Resolved      bool
	WinningOption int
	HouseFee      Amount
	ResolvedAt    time.Time
	ResolvedBy    Principal
	Emergency     bool
}

func (p Poll) HasEnded(now time.Time) bool {
	return !now.Before(p.EndTime)
}

func (p Poll) IsActive(now time.Time) bool {
	return !p.Resolved && now.Before(p.EndTime)
}

func (p Poll) TimeRemaining(now time.Time) time.Duration {
	if p.HasEnded(now) {
		return 0
	}
	return p.EndTime.Sub(now)
}

func (p Poll) ValidOption(optionID int) bool {
	return optionID >= 0 && optionID < len(p.Options)
}

func (p Poll) IsCreator(principal Principal) bool {
	return p.Creator != "" && p.Creator == principal
}

type VoteRecord struct {
	PollID    uint64
	Voter     Principal
	OptionID  int
	Amount    Amount
	CreatedAt time.Time
}

type DemoVoteRecord struct {
	PollID    uint64
	Token     DemoToken
	OptionID  int
	CreatedAt time.Time
}

// OptionTally holds the aggregate counters of one (poll, option) pair.
// VoteCount includes demo votes; Pool only ever grows from real stakes.
type OptionTally struct {
	PollID    uint64
	OptionID  int
	VoteCount uint64
	Pool      Amount
}

type Claim struct {
	PollID    uint64
	Voter     Principal
	Amount    Amount
	Batch     bool
	ClaimedAt time.Time
}

type Treasury struct {
	Owner        Principal
	HouseBalance Amount
	UpdatedAt    time.Time
}

func (t Treasury) IsOwner(principal Principal) bool {
	return t.Owner != "" && t.Owner == principal
}
