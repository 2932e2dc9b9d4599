package commands

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"stakepoll/contexts/staked-voting/poll-ledger/ports"

	"github.com/google/uuid"
)

const (
	EventPollCreated          = "poll.created"
	EventVoteCast             = "poll.vote_cast"
	EventDemoVoteCast         = "poll.demo_vote_cast"
	EventPollResolved         = "poll.resolved"
	EventWinningsClaimed      = "poll.winnings_claimed"
	EventHouseFeesWithdrawn   = "treasury.fees_withdrawn"
	EventOwnershipTransferred = "treasury.ownership_transferred"
)

const (
	pollPartitionKeyPath      = "poll_id"
	treasuryPartitionKeyPath  = "treasury"
	treasuryPartitionKey      = "treasury"
	ledgerSourceService       = "poll-ledger"
	ledgerEventsSchemaVersion = 1
)

type outboxAppender interface {
	AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error
}

func newLedgerEnvelope(
	eventID string,
	eventType string,
	partitionKeyPath string,
	partitionKey string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    ledgerSourceService,
		TraceID:          eventID,
		SchemaVersion:    ledgerEventsSchemaVersion,
		PartitionKeyPath: partitionKeyPath,
		PartitionKey:     partitionKey,
		Data:             payload,
	}, nil
}

func newEventID(ctx context.Context, idGen ports.IDGenerator) (string, error) {
	if idGen == nil {
		return uuid.NewString(), nil
	}
	return idGen.NewID(ctx)
}

// appendPollEvent stages a poll-scoped event in the same unit of work as the
// state change it describes. Events are partitioned by poll so consumers see
// one poll's history in order.
func appendPollEvent(
	ctx context.Context,
	outbox outboxAppender,
	idGen ports.IDGenerator,
	eventType string,
	pollID uint64,
	occurredAt time.Time,
	data map[string]any,
) error {
	eventID, err := newEventID(ctx, idGen)
	if err != nil {
		return err
	}
	data["poll_id"] = pollID
	data["occurred_at"] = occurredAt.UTC().Format(time.RFC3339)
	envelope, err := newLedgerEnvelope(eventID, eventType, pollPartitionKeyPath, pollKey(pollID), occurredAt, data)
	if err != nil {
		return err
	}
	return outbox.AppendOutbox(ctx, envelope)
}

func appendTreasuryEvent(
	ctx context.Context,
	outbox outboxAppender,
	idGen ports.IDGenerator,
	eventType string,
	occurredAt time.Time,
	data map[string]any,
) error {
	eventID, err := newEventID(ctx, idGen)
	if err != nil {
		return err
	}
	data["occurred_at"] = occurredAt.UTC().Format(time.RFC3339)
	envelope, err := newLedgerEnvelope(eventID, eventType, treasuryPartitionKeyPath, treasuryPartitionKey, occurredAt, data)
	if err != nil {
		return err
	}
	return outbox.AppendOutbox(ctx, envelope)
}

func pollKey(pollID uint64) string {
	return strconv.FormatUint(pollID, 10)
}
