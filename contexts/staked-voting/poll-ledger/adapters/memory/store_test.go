package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"stakepoll/contexts/staked-voting/poll-ledger/adapters/memory"
	"stakepoll/contexts/staked-voting/poll-ledger/domain/entities"
	domainerrors "stakepoll/contexts/staked-voting/poll-ledger/domain/errors"
	"stakepoll/contexts/staked-voting/poll-ledger/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errAbort = errors.New("abort")

func seedPoll(t *testing.T, store *memory.Store, options int) uint64 {
	t.Helper()
	labels := make([]string, options)
	for i := range labels {
		labels[i] = string(rune('a' + i))
	}
	var pollID uint64
	err := store.WithinRegistry(context.Background(), func(ctx context.Context, tx ports.RegistryTx) error {
		id, err := tx.NextPollID(ctx)
		if err != nil {
			return err
		}
		pollID = id
		return tx.InsertPoll(ctx, entities.Poll{
			PollID:      id,
			Question:    "q",
			Options:     labels,
			StakeAmount: entities.NewAmount(10),
			Creator:     "creator",
			EndTime:     time.Now().Add(time.Hour),
		})
	})
	require.NoError(t, err)
	return pollID
}

func TestRegistryRollbackKeepsPollCounter(t *testing.T) {
	store := memory.NewStore("owner")
	ctx := context.Background()

	err := store.WithinRegistry(ctx, func(ctx context.Context, tx ports.RegistryTx) error {
		_, err := tx.NextPollID(ctx)
		require.NoError(t, err)
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	assert.Equal(t, uint64(0), seedPoll(t, store, 2))
	assert.Equal(t, uint64(1), seedPoll(t, store, 3))

	tallies, err := store.ListTallies(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, tallies, 3)
}

func TestPollUnitOfWorkRollsBackOnError(t *testing.T) {
	store := memory.NewStore("owner")
	ctx := context.Background()
	pollID := seedPoll(t, store, 2)

	err := store.WithinPoll(ctx, pollID, func(ctx context.Context, tx ports.PollTx) error {
		require.NoError(t, tx.InsertVote(ctx, entities.VoteRecord{PollID: pollID, Voter: "alice", Amount: entities.NewAmount(10)}))
		require.NoError(t, tx.AddToTally(ctx, 0, entities.NewAmount(10)))
		require.NoError(t, tx.InsertClaim(ctx, entities.Claim{PollID: pollID, Voter: "alice"}))
		require.NoError(t, tx.CreditHouse(ctx, entities.NewAmount(3)))

		_, voted, err := tx.GetVote(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, voted, "journal must be visible inside the unit of work")
		tallies, err := tx.ListTallies(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), tallies[0].VoteCount)
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	_, voted, err := store.GetVote(ctx, pollID, "alice")
	require.NoError(t, err)
	assert.False(t, voted)
	claimed, err := store.HasClaimed(ctx, pollID, "alice")
	require.NoError(t, err)
	assert.False(t, claimed)
	tallies, err := store.ListTallies(ctx, pollID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 0}, entities.VoteCounts(tallies))
	treasury, err := store.GetTreasury(ctx)
	require.NoError(t, err)
	assert.True(t, treasury.HouseBalance.IsZero())
}

func TestPollUnitOfWorkCommits(t *testing.T) {
	store := memory.NewStore("owner")
	ctx := context.Background()
	pollID := seedPoll(t, store, 2)

	err := store.WithinPoll(ctx, pollID, func(ctx context.Context, tx ports.PollTx) error {
		if err := tx.InsertVote(ctx, entities.VoteRecord{PollID: pollID, Voter: "alice", OptionID: 1, Amount: entities.NewAmount(10)}); err != nil {
			return err
		}
		if err := tx.AddToTally(ctx, 1, entities.NewAmount(10)); err != nil {
			return err
		}
		if err := tx.InsertDemoVote(ctx, entities.DemoVoteRecord{PollID: pollID, Token: "alice", OptionID: 0}); err != nil {
			return err
		}
		if err := tx.AddToTally(ctx, 0, entities.ZeroAmount()); err != nil {
			return err
		}
		poll := tx.Poll()
		poll.Resolved = true
		if err := tx.SavePoll(ctx, poll); err != nil {
			return err
		}
		return tx.CreditHouse(ctx, entities.NewAmount(2))
	})
	require.NoError(t, err)

	poll, err := store.GetPoll(ctx, pollID)
	require.NoError(t, err)
	assert.True(t, poll.Resolved)
	tallies, err := store.ListTallies(ctx, pollID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 1}, entities.VoteCounts(tallies))
	assert.Equal(t, "10", entities.TotalPool(tallies).String())
	treasury, err := store.GetTreasury(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2", treasury.HouseBalance.String())
}

func TestDuplicateInsertsRejected(t *testing.T) {
	store := memory.NewStore("owner")
	ctx := context.Background()
	pollID := seedPoll(t, store, 2)

	err := store.WithinPoll(ctx, pollID, func(ctx context.Context, tx ports.PollTx) error {
		require.NoError(t, tx.InsertVote(ctx, entities.VoteRecord{PollID: pollID, Voter: "alice"}))
		assert.ErrorIs(t, tx.InsertVote(ctx, entities.VoteRecord{PollID: pollID, Voter: "alice"}), domainerrors.ErrAlreadyVoted)
		require.NoError(t, tx.InsertDemoVote(ctx, entities.DemoVoteRecord{PollID: pollID, Token: "t"}))
		assert.ErrorIs(t, tx.InsertDemoVote(ctx, entities.DemoVoteRecord{PollID: pollID, Token: "t"}), domainerrors.ErrAlreadyVoted)
		require.NoError(t, tx.InsertClaim(ctx, entities.Claim{PollID: pollID, Voter: "alice"}))
		assert.ErrorIs(t, tx.InsertClaim(ctx, entities.Claim{PollID: pollID, Voter: "alice"}), domainerrors.ErrAlreadyClaimed)
		assert.ErrorIs(t, tx.AddToTally(ctx, 5, entities.ZeroAmount()), domainerrors.ErrInvalidOption)
		return nil
	})
	require.NoError(t, err)

	err = store.WithinPoll(ctx, pollID, func(ctx context.Context, tx ports.PollTx) error {
		return tx.InsertVote(ctx, entities.VoteRecord{PollID: pollID, Voter: "alice"})
	})
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyVoted)
}

func TestWithinPollUnknownPoll(t *testing.T) {
	store := memory.NewStore("owner")
	called := false
	err := store.WithinPoll(context.Background(), 3, func(context.Context, ports.PollTx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, domainerrors.ErrPollNotFound)
	assert.False(t, called)
}

func TestTreasuryUnitOfWorkRollsBack(t *testing.T) {
	store := memory.NewStore(" owner ")
	ctx := context.Background()

	err := store.WithinTreasury(ctx, func(ctx context.Context, tx ports.TreasuryTx) error {
		treasury := tx.Treasury()
		assert.Equal(t, entities.Principal("owner"), treasury.Owner)
		treasury.Owner = "thief"
		require.NoError(t, tx.SaveTreasury(ctx, treasury))
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	treasury, err := store.GetTreasury(ctx)
	require.NoError(t, err)
	assert.Equal(t, entities.Principal("owner"), treasury.Owner)
}

func TestListPollsPaginates(t *testing.T) {
	store := memory.NewStore("owner")
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		seedPoll(t, store, 2)
	}

	page, err := store.ListPolls(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, uint64(1), page[0].PollID)
	assert.Equal(t, uint64(2), page[1].PollID)

	empty, err := store.ListPolls(ctx, 10, 9)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func saveIdempotency(store *memory.Store, record ports.IdempotencyRecord, now time.Time, after error) error {
	return store.WithinRegistry(context.Background(), func(ctx context.Context, tx ports.RegistryTx) error {
		if err := tx.SaveIdempotency(ctx, record, now); err != nil {
			return err
		}
		return after
	})
}

func TestIdempotencyRecords(t *testing.T) {
	store := memory.NewStore("owner")
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, saveIdempotency(store, ports.IdempotencyRecord{Key: "k1", RequestHash: "h1", PollID: 4, ExpiresAt: now.Add(time.Hour)}, now, nil))
	record, found, err := store.Get(ctx, "k1", now)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(4), record.PollID)

	err = saveIdempotency(store, ports.IdempotencyRecord{Key: "k1", RequestHash: "h2", ExpiresAt: now.Add(time.Hour)}, now, nil)
	assert.ErrorIs(t, err, domainerrors.ErrIdempotencyConflict)

	_, found, err = store.Get(ctx, "k1", now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIdempotencyRollsBackWithRegistry(t *testing.T) {
	store := memory.NewStore("owner")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := saveIdempotency(store, ports.IdempotencyRecord{Key: "k1", RequestHash: "h1", ExpiresAt: now.Add(time.Hour)}, now, errAbort)
	require.ErrorIs(t, err, errAbort)

	_, found, err := store.Get(context.Background(), "k1", now)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIdempotencyLookupSeesStagedRecord(t *testing.T) {
	store := memory.NewStore("owner")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := store.WithinRegistry(context.Background(), func(ctx context.Context, tx ports.RegistryTx) error {
		require.NoError(t, tx.SaveIdempotency(ctx, ports.IdempotencyRecord{Key: "k1", RequestHash: "h1", PollID: 2, ExpiresAt: now.Add(time.Hour)}, now))
		record, found, err := tx.LookupIdempotency(ctx, "k1", now)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, uint64(2), record.PollID)
		return tx.SaveIdempotency(ctx, ports.IdempotencyRecord{Key: "k1", RequestHash: "h2", ExpiresAt: now.Add(time.Hour)}, now)
	})
	assert.ErrorIs(t, err, domainerrors.ErrIdempotencyConflict)
}

func TestIdempotencyExpiryFollowsSuppliedTime(t *testing.T) {
	store := memory.NewStore("owner")
	future := time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, saveIdempotency(store, ports.IdempotencyRecord{Key: "k1", RequestHash: "h1", PollID: 1, ExpiresAt: future.Add(time.Hour)}, future, nil))
	later := future.Add(2 * time.Hour)
	require.NoError(t, saveIdempotency(store, ports.IdempotencyRecord{Key: "k1", RequestHash: "h2", PollID: 9, ExpiresAt: later.Add(time.Hour)}, later, nil))

	record, found, err := store.Get(context.Background(), "k1", later)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(9), record.PollID)
}

func TestOutboxOrderAndPublish(t *testing.T) {
	store := memory.NewStore("owner")
	ctx := context.Background()
	pollID := seedPoll(t, store, 2)

	for _, id := range []string{"e-3", "e-1", "e-2"} {
		eventID := id
		err := store.WithinPoll(ctx, pollID, func(ctx context.Context, tx ports.PollTx) error {
			return tx.AppendOutbox(ctx, ports.EventEnvelope{EventID: eventID, EventType: "poll.test", PartitionKey: "0"})
		})
		require.NoError(t, err)
	}

	rows, err := store.ListPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "e-3", rows[0].OutboxID)
	assert.Equal(t, "e-1", rows[1].OutboxID)
	assert.Equal(t, "e-2", rows[2].OutboxID)

	require.NoError(t, store.MarkOutboxPublished(ctx, "e-3", time.Now()))
	assert.Error(t, store.MarkOutboxPublished(ctx, "missing", time.Now()))

	rows, err = store.ListPendingOutbox(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "e-1", rows[0].OutboxID)
}

func TestWalletRejectAndAccept(t *testing.T) {
	wallet := memory.NewWallet()
	ctx := context.Background()

	require.NoError(t, wallet.Transfer(ctx, "alice", entities.NewAmount(5)))
	require.NoError(t, wallet.Transfer(ctx, "alice", entities.NewAmount(7)))
	assert.Equal(t, "12", wallet.Balance("alice").String())

	wallet.Reject("bob", nil)
	assert.ErrorIs(t, wallet.Transfer(ctx, "bob", entities.NewAmount(1)), memory.ErrRecipientRejected)
	assert.True(t, wallet.Balance("bob").IsZero())

	wallet.Accept("bob")
	require.NoError(t, wallet.Transfer(ctx, "bob", entities.NewAmount(1)))
	assert.Equal(t, 3, wallet.TransferCount())
}
