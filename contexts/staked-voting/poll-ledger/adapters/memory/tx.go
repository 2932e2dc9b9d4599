package memory

import (
	"context"
	"strings"
	"time"

	"stakepoll/contexts/staked-voting/poll-ledger/domain/entities"
	domainerrors "stakepoll/contexts/staked-voting/poll-ledger/domain/errors"
	"stakepoll/contexts/staked-voting/poll-ledger/ports"
)

type registryTx struct {
	store       *Store
	next        uint64
	polls       []entities.Poll
	idempotency []stagedIdempotency
	outbox      []ports.EventEnvelope
}

type stagedIdempotency struct {
	record ports.IdempotencyRecord
	now    time.Time
}

func (tx *registryTx) NextPollID(_ context.Context) (uint64, error) {
	id := tx.next
	tx.next++
	return id, nil
}

func (tx *registryTx) InsertPoll(_ context.Context, poll entities.Poll) error {
	tx.polls = append(tx.polls, clonePoll(poll))
	return nil
}

func (tx *registryTx) LookupIdempotency(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	key = strings.TrimSpace(key)
	for i := len(tx.idempotency) - 1; i >= 0; i-- {
		if staged := tx.idempotency[i].record; staged.Key == key && idempotencyLive(staged, now) {
			return staged, true, nil
		}
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	record, ok := tx.store.idempotencyLocked(key, now)
	return record, ok, nil
}

func (tx *registryTx) SaveIdempotency(ctx context.Context, record ports.IdempotencyRecord, now time.Time) error {
	record.Key = strings.TrimSpace(record.Key)
	existing, found, err := tx.LookupIdempotency(ctx, record.Key, now)
	if err != nil {
		return err
	}
	if found && existing.RequestHash != record.RequestHash {
		return domainerrors.ErrIdempotencyConflict
	}
	tx.idempotency = append(tx.idempotency, stagedIdempotency{record: record, now: now})
	return nil
}

func (tx *registryTx) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	tx.outbox = append(tx.outbox, envelope)
	return nil
}

// pollTx reads through its own journal first, then the committed store.
type pollTx struct {
	store *Store

	poll       entities.Poll
	pollDirty  bool
	votes      map[entities.Principal]entities.VoteRecord
	demoVotes  map[entities.DemoToken]entities.DemoVoteRecord
	tallyDelta map[int]entities.OptionTally
	claims     map[entities.Principal]entities.Claim
	credit     entities.Amount
	outbox     []ports.EventEnvelope
}

func (tx *pollTx) Poll() entities.Poll {
	return clonePoll(tx.poll)
}

func (tx *pollTx) SavePoll(_ context.Context, poll entities.Poll) error {
	if poll.PollID != tx.poll.PollID {
		return domainerrors.ErrPollNotFound
	}
	tx.poll = clonePoll(poll)
	tx.pollDirty = true
	return nil
}

func (tx *pollTx) GetVote(ctx context.Context, voter entities.Principal) (entities.VoteRecord, bool, error) {
	if vote, ok := tx.votes[voter]; ok {
		return vote, true, nil
	}
	return tx.store.GetVote(ctx, tx.poll.PollID, voter)
}

func (tx *pollTx) InsertVote(ctx context.Context, vote entities.VoteRecord) error {
	_, exists, err := tx.GetVote(ctx, vote.Voter)
	if err != nil {
		return err
	}
	if exists {
		return domainerrors.ErrAlreadyVoted
	}
	vote.Amount = entities.AmountOrZero(vote.Amount)
	tx.votes[vote.Voter] = vote
	return nil
}

func (tx *pollTx) HasDemoVote(_ context.Context, token entities.DemoToken) (bool, error) {
	if _, ok := tx.demoVotes[token]; ok {
		return true, nil
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	_, ok := tx.store.demoVotes[demoVoteKey{pollID: tx.poll.PollID, token: token}]
	return ok, nil
}

func (tx *pollTx) InsertDemoVote(ctx context.Context, vote entities.DemoVoteRecord) error {
	used, err := tx.HasDemoVote(ctx, vote.Token)
	if err != nil {
		return err
	}
	if used {
		return domainerrors.ErrAlreadyVoted
	}
	tx.demoVotes[vote.Token] = vote
	return nil
}

func (tx *pollTx) ListTallies(_ context.Context) ([]entities.OptionTally, error) {
	tx.store.mu.RLock()
	items := tx.store.talliesLocked(tx.poll.PollID)
	tx.store.mu.RUnlock()

	for i := range items {
		if delta, ok := tx.tallyDelta[items[i].OptionID]; ok {
			items[i].VoteCount += delta.VoteCount
			items[i].Pool = items[i].Pool.Add(delta.Pool)
		}
	}
	return items, nil
}

func (tx *pollTx) AddToTally(_ context.Context, optionID int, stake entities.Amount) error {
	if !tx.poll.ValidOption(optionID) {
		return domainerrors.ErrInvalidOption
	}
	delta, ok := tx.tallyDelta[optionID]
	if !ok {
		delta = entities.OptionTally{PollID: tx.poll.PollID, OptionID: optionID, Pool: entities.ZeroAmount()}
	}
	delta.VoteCount++
	delta.Pool = delta.Pool.Add(entities.AmountOrZero(stake))
	tx.tallyDelta[optionID] = delta
	return nil
}

func (tx *pollTx) HasClaimed(ctx context.Context, voter entities.Principal) (bool, error) {
	if _, ok := tx.claims[voter]; ok {
		return true, nil
	}
	return tx.store.HasClaimed(ctx, tx.poll.PollID, voter)
}

func (tx *pollTx) InsertClaim(ctx context.Context, claim entities.Claim) error {
	claimed, err := tx.HasClaimed(ctx, claim.Voter)
	if err != nil {
		return err
	}
	if claimed {
		return domainerrors.ErrAlreadyClaimed
	}
	claim.Amount = entities.AmountOrZero(claim.Amount)
	tx.claims[claim.Voter] = claim
	return nil
}

func (tx *pollTx) CreditHouse(_ context.Context, amount entities.Amount) error {
	tx.credit = tx.credit.Add(entities.AmountOrZero(amount))
	return nil
}

func (tx *pollTx) GetTreasury(ctx context.Context) (entities.Treasury, error) {
	return tx.store.GetTreasury(ctx)
}

func (tx *pollTx) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	tx.outbox = append(tx.outbox, envelope)
	return nil
}

type treasuryTx struct {
	treasury entities.Treasury
	dirty    bool
	outbox   []ports.EventEnvelope
}

func (tx *treasuryTx) Treasury() entities.Treasury {
	treasury := tx.treasury
	treasury.HouseBalance = entities.AmountOrZero(treasury.HouseBalance)
	return treasury
}

func (tx *treasuryTx) SaveTreasury(_ context.Context, treasury entities.Treasury) error {
	tx.treasury = treasury
	tx.dirty = true
	return nil
}

func (tx *treasuryTx) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	tx.outbox = append(tx.outbox, envelope)
	return nil
}
