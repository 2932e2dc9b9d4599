package commands_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"stakepoll/contexts/staked-voting/poll-ledger/adapters/memory"
	"stakepoll/contexts/staked-voting/poll-ledger/application/commands"
	"stakepoll/contexts/staked-voting/poll-ledger/domain/entities"

	"github.com/stretchr/testify/require"
)

const (
	testOwner   entities.Principal = "owner"
	testCreator entities.Principal = "creator"
)

// tenthEther is 0.1 display units at 18 decimals.
var tenthEther = entities.NewAmount(100_000_000_000_000_000)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingMetrics struct {
	mu       sync.Mutex
	created  int
	votes    int
	resolved int
	claimed  int
	skipped  map[string]int
}

func (m *countingMetrics) PollCreated(bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
}

func (m *countingMetrics) VoteCast(bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.votes++
}

func (m *countingMetrics) PollResolved(bool, entities.Amount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolved++
}

func (m *countingMetrics) WinningsClaimed(bool, entities.Amount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claimed++
}

func (m *countingMetrics) ClaimSkipped(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.skipped == nil {
		m.skipped = map[string]int{}
	}
	m.skipped[reason]++
}

type ledgerFixture struct {
	store   *memory.Store
	wallet  *memory.Wallet
	clock   *manualClock
	metrics *countingMetrics

	registry   commands.RegistryUseCase
	voting     commands.VotingUseCase
	resolution commands.ResolutionUseCase
	payouts    commands.PayoutUseCase
	treasury   commands.TreasuryUseCase
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	store := memory.NewStore(testOwner)
	wallet := memory.NewWallet()
	clock := &manualClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	metrics := &countingMetrics{}
	return &ledgerFixture{
		store:   store,
		wallet:  wallet,
		clock:   clock,
		metrics: metrics,
		registry: commands.RegistryUseCase{
			Ledger:      store,
			Idempotency: store,
			Clock:       clock,
			IDGen:       store,
			Metrics:     metrics,
		},
		voting: commands.VotingUseCase{
			Ledger:  store,
			Clock:   clock,
			IDGen:   store,
			Metrics: metrics,
		},
		resolution: commands.ResolutionUseCase{
			Ledger:  store,
			Clock:   clock,
			IDGen:   store,
			Metrics: metrics,
		},
		payouts: commands.PayoutUseCase{
			Ledger:   store,
			Transfer: wallet,
			Clock:    clock,
			IDGen:    store,
			Metrics:  metrics,
		},
		treasury: commands.TreasuryUseCase{
			Ledger:   store,
			Transfer: wallet,
			Clock:    clock,
			IDGen:    store,
		},
	}
}

func (f *ledgerFixture) createPoll(t *testing.T, options int, stake entities.Amount, demo bool) entities.Poll {
	t.Helper()
	labels := make([]string, 0, options)
	for i := 0; i < options; i++ {
		labels = append(labels, string(rune('A'+i)))
	}
	result, err := f.registry.CreatePoll(context.Background(), commands.CreatePollCommand{
		Creator:         testCreator,
		Question:        "Which one?",
		Options:         labels,
		StakeAmount:     stake,
		DurationMinutes: 60,
		DemoMode:        demo,
	})
	require.NoError(t, err)
	return result.Poll
}

func (f *ledgerFixture) vote(t *testing.T, pollID uint64, voter entities.Principal, optionID int, value entities.Amount) {
	t.Helper()
	_, err := f.voting.Vote(context.Background(), commands.VoteCommand{
		Voter:         voter,
		PollID:        pollID,
		OptionID:      optionID,
		SuppliedValue: value,
	})
	require.NoError(t, err)
}

func (f *ledgerFixture) expireAndResolve(t *testing.T, pollID uint64) commands.ResolvePollResult {
	t.Helper()
	f.clock.Advance(61 * time.Minute)
	result, err := f.resolution.ResolvePoll(context.Background(), commands.ResolvePollCommand{
		Caller: testCreator,
		PollID: pollID,
	})
	require.NoError(t, err)
	return result
}

func (f *ledgerFixture) claim(pollID uint64, voter entities.Principal) (entities.Claim, error) {
	return f.payouts.ClaimWinnings(context.Background(), commands.ClaimWinningsCommand{
		Caller: voter,
		PollID: pollID,
	})
}

func (f *ledgerFixture) hasClaimed(t *testing.T, pollID uint64, voter entities.Principal) bool {
	t.Helper()
	claimed, err := f.store.HasClaimed(context.Background(), pollID, voter)
	require.NoError(t, err)
	return claimed
}

func (f *ledgerFixture) houseBalance(t *testing.T) entities.Amount {
	t.Helper()
	treasury, err := f.store.GetTreasury(context.Background())
	require.NoError(t, err)
	return entities.AmountOrZero(treasury.HouseBalance)
}
