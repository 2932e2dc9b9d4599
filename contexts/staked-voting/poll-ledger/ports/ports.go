package ports

import (
	"context"
	"time"

	"stakepoll/contexts/staked-voting/poll-ledger/domain/entities"
	contractsv1 "stakepoll/contracts/gen/events/v1"
)

// Ledger is the authoritative state store. Every mutation goes through one of
// the Within* units of work: the callback either returns nil and all staged
// writes become visible together, or returns an error and nothing is applied.
type Ledger interface {
	WithinRegistry(ctx context.Context, fn func(ctx context.Context, tx RegistryTx) error) error
	WithinPoll(ctx context.Context, pollID uint64, fn func(ctx context.Context, tx PollTx) error) error
	WithinTreasury(ctx context.Context, fn func(ctx context.Context, tx TreasuryTx) error) error

	GetPoll(ctx context.Context, pollID uint64) (entities.Poll, error)
	ListPolls(ctx context.Context, limit int, offset int) ([]entities.Poll, error)
	ListTallies(ctx context.Context, pollID uint64) ([]entities.OptionTally, error)
	GetVote(ctx context.Context, pollID uint64, voter entities.Principal) (entities.VoteRecord, bool, error)
	HasClaimed(ctx context.Context, pollID uint64, voter entities.Principal) (bool, error)
	GetTreasury(ctx context.Context) (entities.Treasury, error)
}

type RegistryTx interface {
	NextPollID(ctx context.Context) (uint64, error)
	InsertPoll(ctx context.Context, poll entities.Poll) error
	// LookupIdempotency and SaveIdempotency see and write replay records in
	// the same unit of work as the poll they point at.
	LookupIdempotency(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	SaveIdempotency(ctx context.Context, record IdempotencyRecord, now time.Time) error
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

// PollTx is scoped to a single poll whose sub-state is locked for the duration
// of the unit of work.
type PollTx interface {
	Poll() entities.Poll
	SavePoll(ctx context.Context, poll entities.Poll) error
	GetVote(ctx context.Context, voter entities.Principal) (entities.VoteRecord, bool, error)
	InsertVote(ctx context.Context, vote entities.VoteRecord) error
	HasDemoVote(ctx context.Context, token entities.DemoToken) (bool, error)
	InsertDemoVote(ctx context.Context, vote entities.DemoVoteRecord) error
	ListTallies(ctx context.Context) ([]entities.OptionTally, error)
	AddToTally(ctx context.Context, optionID int, stake entities.Amount) error
	HasClaimed(ctx context.Context, voter entities.Principal) (bool, error)
	InsertClaim(ctx context.Context, claim entities.Claim) error
	CreditHouse(ctx context.Context, amount entities.Amount) error
	GetTreasury(ctx context.Context) (entities.Treasury, error)
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type TreasuryTx interface {
	Treasury() entities.Treasury
	SaveTreasury(ctx context.Context, treasury entities.Treasury) error
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

// FundsTransfer moves funds out of custody. A non-nil error means nothing was
// transferred.
type FundsTransfer interface {
	Transfer(ctx context.Context, to entities.Principal, amount entities.Amount) error
}

type IdempotencyRecord struct {
	Key         string
	RequestHash string
	PollID      uint64
	ExpiresAt   time.Time
}

// IdempotencyStore serves replay lookups outside a unit of work. Records are
// written only through RegistryTx.
type IdempotencyStore interface {
	Get(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// LedgerMetrics receives counters for committed ledger transitions.
type LedgerMetrics interface {
	PollCreated(demoMode bool)
	VoteCast(demoMode bool)
	PollResolved(emergency bool, houseFee entities.Amount)
	WinningsClaimed(batch bool, amount entities.Amount)
	ClaimSkipped(reason string)
}

type EventEnvelope = contractsv1.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}
