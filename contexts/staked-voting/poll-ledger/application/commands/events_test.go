package commands_test

import (
	"context"
	"encoding/json"
	"testing"

	"stakepoll/contexts/staked-voting/poll-ledger/application/commands"
	"stakepoll/contexts/staked-voting/poll-ledger/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerEventsFollowCommitOrder(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	poll := f.createPoll(t, 2, tenthEther, false)
	f.vote(t, poll.PollID, "alice", 1, tenthEther)
	f.vote(t, poll.PollID, "bob", 0, tenthEther)

	_, err := f.voting.Vote(ctx, commands.VoteCommand{Voter: "alice", PollID: poll.PollID, SuppliedValue: tenthEther})
	require.Error(t, err)

	f.expireAndResolve(t, poll.PollID)
	_, err = f.claim(poll.PollID, "bob")
	require.NoError(t, err)

	rows, err := f.store.ListPendingOutbox(ctx, 50)
	require.NoError(t, err)
	types := make([]string, 0, len(rows))
	for _, row := range rows {
		types = append(types, row.EventType)
		assert.Equal(t, "0", row.PartitionKey)
	}
	assert.Equal(t, []string{
		commands.EventPollCreated,
		commands.EventVoteCast,
		commands.EventVoteCast,
		commands.EventPollResolved,
		commands.EventWinningsClaimed,
	}, types)

	var envelope ports.EventEnvelope
	require.NoError(t, json.Unmarshal(rows[3].Payload, &envelope))
	var resolved struct {
		PollID        uint64   `json:"poll_id"`
		WinningOption int      `json:"winning_option"`
		VoteCounts    []uint64 `json:"vote_counts"`
		TotalPool     string   `json:"total_pool"`
		HouseFee      string   `json:"house_fee"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &resolved))
	assert.Equal(t, 0, resolved.WinningOption)
	assert.Equal(t, []uint64{1, 1}, resolved.VoteCounts)
	assert.Equal(t, "200000000000000000", resolved.TotalPool)
	assert.Equal(t, "4000000000000000", resolved.HouseFee)
	assert.Equal(t, "poll_id", envelope.PartitionKeyPath)
	assert.Equal(t, 1, envelope.SchemaVersion)
}

func TestFailedClaimStagesNoEvent(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	poll := f.createPoll(t, 2, tenthEther, false)
	f.vote(t, poll.PollID, "alice", 0, tenthEther)
	f.expireAndResolve(t, poll.PollID)

	before, err := f.store.ListPendingOutbox(ctx, 50)
	require.NoError(t, err)
	f.wallet.Reject("alice", nil)
	_, err = f.claim(poll.PollID, "alice")
	require.Error(t, err)

	after, err := f.store.ListPendingOutbox(ctx, 50)
	require.NoError(t, err)
	assert.Len(t, after, len(before))
}

func TestTreasuryEventsUseTreasuryPartition(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	_, err := f.treasury.TransferOwnership(ctx, commands.TransferOwnershipCommand{Caller: testOwner, NewOwner: "heir"})
	require.NoError(t, err)

	rows, err := f.store.ListPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, commands.EventOwnershipTransferred, rows[0].EventType)
	assert.Equal(t, "treasury", rows[0].PartitionKey)
}

func TestEventIDsWithoutGenerator(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	f.registry.IDGen = nil
	f.voting.IDGen = nil
	poll := f.createPoll(t, 2, tenthEther, false)
	f.vote(t, poll.PollID, "alice", 0, tenthEther)

	rows, err := f.store.ListPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	ids := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		var envelope ports.EventEnvelope
		require.NoError(t, json.Unmarshal(row.Payload, &envelope))
		assert.NotEmpty(t, envelope.EventID)
		ids[envelope.EventID] = struct{}{}
	}
	assert.Len(t, ids, 2)
}
