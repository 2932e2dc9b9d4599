package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"stakepoll/contexts/staked-voting/poll-ledger/domain/entities"
	domainerrors "stakepoll/contexts/staked-voting/poll-ledger/domain/errors"
	"stakepoll/contexts/staked-voting/poll-ledger/ports"

	"github.com/google/uuid"
)

var errOutboxRowNotFound = errors.New("outbox row not found")

type voteKey struct {
	pollID uint64
	voter  entities.Principal
}

type demoVoteKey struct {
	pollID uint64
	token  entities.DemoToken
}

type tallyKey struct {
	pollID   uint64
	optionID int
}

type outboxRecord struct {
	seq       uint64
	message   ports.OutboxMessage
	published bool
}

// Store is the in-process ledger. Units of work on one poll are serialized by
// a per-poll mutex and stage their writes in a journal that is applied under
// the store lock only when the callback succeeds.
type Store struct {
	mu sync.RWMutex

	nextPollID  uint64
	polls       map[uint64]entities.Poll
	votes       map[voteKey]entities.VoteRecord
	demoVotes   map[demoVoteKey]entities.DemoVoteRecord
	tallies     map[tallyKey]entities.OptionTally
	claims      map[voteKey]entities.Claim
	treasury    entities.Treasury
	idempotency map[string]ports.IdempotencyRecord
	outbox      map[string]outboxRecord
	outboxSeq   uint64

	registryMu sync.Mutex
	treasuryMu sync.Mutex
	locksMu    sync.Mutex
	pollLocks  map[uint64]*sync.Mutex
}

func NewStore(owner entities.Principal) *Store {
	return &Store{
		polls:       make(map[uint64]entities.Poll),
		votes:       make(map[voteKey]entities.VoteRecord),
		demoVotes:   make(map[demoVoteKey]entities.DemoVoteRecord),
		tallies:     make(map[tallyKey]entities.OptionTally),
		claims:      make(map[voteKey]entities.Claim),
		treasury:    entities.Treasury{Owner: entities.Principal(strings.TrimSpace(string(owner))), HouseBalance: entities.ZeroAmount()},
		idempotency: make(map[string]ports.IdempotencyRecord),
		outbox:      make(map[string]outboxRecord),
		pollLocks:   make(map[uint64]*sync.Mutex),
	}
}

func (s *Store) WithinRegistry(ctx context.Context, fn func(ctx context.Context, tx ports.RegistryTx) error) error {
	s.registryMu.Lock()
	defer s.registryMu.Unlock()

	s.mu.RLock()
	tx := &registryTx{store: s, next: s.nextPollID}
	s.mu.RUnlock()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, staged := range tx.idempotency {
		if err := s.checkIdempotencyLocked(staged.record, staged.now); err != nil {
			return err
		}
	}
	s.nextPollID = tx.next
	for _, poll := range tx.polls {
		s.polls[poll.PollID] = clonePoll(poll)
		for optionID := range poll.Options {
			s.tallies[tallyKey{pollID: poll.PollID, optionID: optionID}] = entities.OptionTally{
				PollID:   poll.PollID,
				OptionID: optionID,
				Pool:     entities.ZeroAmount(),
			}
		}
	}
	for _, staged := range tx.idempotency {
		s.idempotency[staged.record.Key] = staged.record
	}
	return s.appendOutboxLocked(tx.outbox)
}

func (s *Store) WithinPoll(ctx context.Context, pollID uint64, fn func(ctx context.Context, tx ports.PollTx) error) error {
	lock := s.pollLock(pollID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	poll, ok := s.polls[pollID]
	s.mu.RUnlock()
	if !ok {
		return domainerrors.ErrPollNotFound
	}

	tx := &pollTx{
		store:      s,
		poll:       clonePoll(poll),
		votes:      make(map[entities.Principal]entities.VoteRecord),
		demoVotes:  make(map[entities.DemoToken]entities.DemoVoteRecord),
		tallyDelta: make(map[int]entities.OptionTally),
		claims:     make(map[entities.Principal]entities.Claim),
		credit:     entities.ZeroAmount(),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return s.commitPoll(tx)
}

func (s *Store) WithinTreasury(ctx context.Context, fn func(ctx context.Context, tx ports.TreasuryTx) error) error {
	s.treasuryMu.Lock()
	defer s.treasuryMu.Unlock()

	s.mu.RLock()
	tx := &treasuryTx{treasury: s.treasury}
	s.mu.RUnlock()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.dirty {
		tx.treasury.HouseBalance = entities.AmountOrZero(tx.treasury.HouseBalance)
		s.treasury = tx.treasury
	}
	return s.appendOutboxLocked(tx.outbox)
}

func (s *Store) commitPoll(tx *pollTx) error {
	if !tx.credit.IsZero() {
		s.treasuryMu.Lock()
		defer s.treasuryMu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pollID := tx.poll.PollID
	if tx.pollDirty {
		s.polls[pollID] = clonePoll(tx.poll)
	}
	for voter, vote := range tx.votes {
		s.votes[voteKey{pollID: pollID, voter: voter}] = vote
	}
	for token, vote := range tx.demoVotes {
		s.demoVotes[demoVoteKey{pollID: pollID, token: token}] = vote
	}
	for optionID, delta := range tx.tallyDelta {
		key := tallyKey{pollID: pollID, optionID: optionID}
		current := s.tallies[key]
		current.PollID = pollID
		current.OptionID = optionID
		current.VoteCount += delta.VoteCount
		current.Pool = entities.AmountOrZero(current.Pool).Add(delta.Pool)
		s.tallies[key] = current
	}
	for voter, claim := range tx.claims {
		s.claims[voteKey{pollID: pollID, voter: voter}] = claim
	}
	if !tx.credit.IsZero() {
		s.treasury.HouseBalance = entities.AmountOrZero(s.treasury.HouseBalance).Add(tx.credit)
	}
	return s.appendOutboxLocked(tx.outbox)
}

func (s *Store) pollLock(pollID uint64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.pollLocks[pollID]
	if !ok {
		lock = &sync.Mutex{}
		s.pollLocks[pollID] = lock
	}
	return lock
}

func (s *Store) GetPoll(_ context.Context, pollID uint64) (entities.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	poll, ok := s.polls[pollID]
	if !ok {
		return entities.Poll{}, domainerrors.ErrPollNotFound
	}
	return clonePoll(poll), nil
}

func (s *Store) ListPolls(_ context.Context, limit int, offset int) ([]entities.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Poll, 0, len(s.polls))
	for _, poll := range s.polls {
		items = append(items, clonePoll(poll))
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].PollID < items[j].PollID
	})
	if offset >= len(items) {
		return []entities.Poll{}, nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) ListTallies(_ context.Context, pollID uint64) ([]entities.OptionTally, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.talliesLocked(pollID), nil
}

func (s *Store) GetVote(_ context.Context, pollID uint64, voter entities.Principal) (entities.VoteRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vote, ok := s.votes[voteKey{pollID: pollID, voter: voter}]
	return vote, ok, nil
}

func (s *Store) HasClaimed(_ context.Context, pollID uint64, voter entities.Principal) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.claims[voteKey{pollID: pollID, voter: voter}]
	return ok, nil
}

func (s *Store) GetTreasury(_ context.Context) (entities.Treasury, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.treasury, nil
}

func (s *Store) talliesLocked(pollID uint64) []entities.OptionTally {
	poll, ok := s.polls[pollID]
	if !ok {
		return []entities.OptionTally{}
	}
	items := make([]entities.OptionTally, 0, len(poll.Options))
	for optionID := range poll.Options {
		tally, ok := s.tallies[tallyKey{pollID: pollID, optionID: optionID}]
		if !ok {
			tally = entities.OptionTally{PollID: pollID, OptionID: optionID}
		}
		tally.Pool = entities.AmountOrZero(tally.Pool)
		items = append(items, tally)
	}
	return items
}

func (s *Store) Get(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.idempotencyLocked(strings.TrimSpace(key), now)
	return record, ok, nil
}

func (s *Store) idempotencyLocked(key string, now time.Time) (ports.IdempotencyRecord, bool) {
	record, ok := s.idempotency[key]
	if !ok || !idempotencyLive(record, now) {
		return ports.IdempotencyRecord{}, false
	}
	return record, true
}

func (s *Store) checkIdempotencyLocked(record ports.IdempotencyRecord, now time.Time) error {
	existing, ok := s.idempotencyLocked(record.Key, now)
	if ok && existing.RequestHash != record.RequestHash {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

func idempotencyLive(record ports.IdempotencyRecord, now time.Time) bool {
	return record.ExpiresAt.IsZero() || now.Before(record.ExpiresAt)
}

func (s *Store) appendOutboxLocked(envelopes []ports.EventEnvelope) error {
	for _, envelope := range envelopes {
		payload, err := json.Marshal(envelope)
		if err != nil {
			return err
		}
		outboxID := strings.TrimSpace(envelope.EventID)
		if outboxID == "" {
			outboxID = uuid.NewString()
		}
		if _, ok := s.outbox[outboxID]; ok {
			continue
		}
		createdAt := envelope.OccurredAt.UTC()
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		s.outboxSeq++
		s.outbox[outboxID] = outboxRecord{
			seq: s.outboxSeq,
			message: ports.OutboxMessage{
				OutboxID:     outboxID,
				EventType:    strings.TrimSpace(envelope.EventType),
				PartitionKey: strings.TrimSpace(envelope.PartitionKey),
				Payload:      payload,
				CreatedAt:    createdAt,
			},
		}
	}
	return nil
}

// ListPendingOutbox returns unpublished rows in the order they were committed.
func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows := make([]outboxRecord, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].seq < rows[j].seq
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.message)
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.TrimSpace(outboxID)
	row, ok := s.outbox[key]
	if !ok {
		return errOutboxRowNotFound
	}
	row.published = true
	s.outbox[key] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func clonePoll(poll entities.Poll) entities.Poll {
	poll.Options = append([]string(nil), poll.Options...)
	poll.StakeAmount = entities.AmountOrZero(poll.StakeAmount)
	poll.HouseFee = entities.AmountOrZero(poll.HouseFee)
	return poll
}

var _ ports.Ledger = (*Store)(nil)
var _ ports.IdempotencyStore = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
