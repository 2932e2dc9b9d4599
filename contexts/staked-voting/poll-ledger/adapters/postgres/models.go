package postgresadapter

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"stakepoll/contexts/staked-voting/poll-ledger/domain/entities"
)

const (
	singletonRowID = 1

	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type pollModel struct {
	PollID        uint64     `gorm:"column:poll_id;primaryKey;autoIncrement:false"`
	Question      string     `gorm:"column:question"`
	Options       []byte     `gorm:"column:options"`
	StakeAmount   string     `gorm:"column:stake_amount"`
	Creator       string     `gorm:"column:creator"`
	DemoMode      bool       `gorm:"column:demo_mode"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
	EndTime       time.Time  `gorm:"column:end_time"`
	Resolved      bool       `gorm:"column:resolved"`
	WinningOption *int       `gorm:"column:winning_option"`
	HouseFee      string     `gorm:"column:house_fee"`
	ResolvedAt    *time.Time `gorm:"column:resolved_at"`
	ResolvedBy    string     `gorm:"column:resolved_by"`
	Emergency     bool       `gorm:"column:emergency"`
}

func (pollModel) TableName() string {
	return "polls"
}

func pollModelFromEntity(poll entities.Poll) (pollModel, error) {
	options, err := json.Marshal(poll.Options)
	if err != nil {
		return pollModel{}, err
	}
	row := pollModel{
		PollID:      poll.PollID,
		Question:    poll.Question,
		Options:     options,
		StakeAmount: entities.AmountOrZero(poll.StakeAmount).String(),
		Creator:     string(poll.Creator),
		DemoMode:    poll.DemoMode,
		CreatedAt:   poll.CreatedAt.UTC(),
		EndTime:     poll.EndTime.UTC(),
		Resolved:    poll.Resolved,
		HouseFee:    entities.AmountOrZero(poll.HouseFee).String(),
		ResolvedBy:  string(poll.ResolvedBy),
		Emergency:   poll.Emergency,
	}
	if poll.Resolved {
		winner := poll.WinningOption
		row.WinningOption = &winner
		resolvedAt := poll.ResolvedAt.UTC()
		row.ResolvedAt = &resolvedAt
	}
	return row, nil
}

func (m pollModel) toEntity() (entities.Poll, error) {
	var options []string
	if len(m.Options) > 0 {
		if err := json.Unmarshal(m.Options, &options); err != nil {
			return entities.Poll{}, fmt.Errorf("decode poll %d options: %w", m.PollID, err)
		}
	}
	stake, err := parseNumeric(m.StakeAmount)
	if err != nil {
		return entities.Poll{}, fmt.Errorf("decode poll %d stake: %w", m.PollID, err)
	}
	fee, err := parseNumeric(m.HouseFee)
	if err != nil {
		return entities.Poll{}, fmt.Errorf("decode poll %d house fee: %w", m.PollID, err)
	}
	poll := entities.Poll{
		PollID:      m.PollID,
		Question:    m.Question,
		Options:     options,
		StakeAmount: stake,
		Creator:     entities.Principal(m.Creator),
		DemoMode:    m.DemoMode,
		CreatedAt:   m.CreatedAt.UTC(),
		EndTime:     m.EndTime.UTC(),
		Resolved:    m.Resolved,
		HouseFee:    fee,
		ResolvedBy:  entities.Principal(m.ResolvedBy),
		Emergency:   m.Emergency,
	}
	if m.WinningOption != nil {
		poll.WinningOption = *m.WinningOption
	}
	if m.ResolvedAt != nil {
		poll.ResolvedAt = m.ResolvedAt.UTC()
	}
	return poll, nil
}

type voteModel struct {
	PollID    uint64    `gorm:"column:poll_id;primaryKey;autoIncrement:false"`
	Voter     string    `gorm:"column:voter;primaryKey"`
	OptionID  int       `gorm:"column:option_id"`
	Amount    string    `gorm:"column:amount"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (voteModel) TableName() string {
	return "poll_votes"
}

func (m voteModel) toEntity() (entities.VoteRecord, error) {
	amount, err := parseNumeric(m.Amount)
	if err != nil {
		return entities.VoteRecord{}, err
	}
	return entities.VoteRecord{
		PollID:    m.PollID,
		Voter:     entities.Principal(m.Voter),
		OptionID:  m.OptionID,
		Amount:    amount,
		CreatedAt: m.CreatedAt.UTC(),
	}, nil
}

type demoVoteModel struct {
	PollID    uint64    `gorm:"column:poll_id;primaryKey;autoIncrement:false"`
	Token     string    `gorm:"column:token;primaryKey"`
	OptionID  int       `gorm:"column:option_id"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (demoVoteModel) TableName() string {
	return "poll_demo_votes"
}

type tallyModel struct {
	PollID    uint64 `gorm:"column:poll_id;primaryKey;autoIncrement:false"`
	OptionID  int    `gorm:"column:option_id;primaryKey;autoIncrement:false"`
	VoteCount uint64 `gorm:"column:vote_count"`
	Pool      string `gorm:"column:pool"`
}

func (tallyModel) TableName() string {
	return "poll_option_tallies"
}

func (m tallyModel) toEntity() (entities.OptionTally, error) {
	pool, err := parseNumeric(m.Pool)
	if err != nil {
		return entities.OptionTally{}, err
	}
	return entities.OptionTally{
		PollID:    m.PollID,
		OptionID:  m.OptionID,
		VoteCount: m.VoteCount,
		Pool:      pool,
	}, nil
}

type claimModel struct {
	PollID    uint64    `gorm:"column:poll_id;primaryKey;autoIncrement:false"`
	Voter     string    `gorm:"column:voter;primaryKey"`
	Amount    string    `gorm:"column:amount"`
	Batch     bool      `gorm:"column:batch"`
	ClaimedAt time.Time `gorm:"column:claimed_at"`
}

func (claimModel) TableName() string {
	return "poll_claims"
}

type treasuryModel struct {
	ID           int       `gorm:"column:id;primaryKey;autoIncrement:false"`
	Owner        string    `gorm:"column:owner"`
	HouseBalance string    `gorm:"column:house_balance"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (treasuryModel) TableName() string {
	return "poll_treasury"
}

func (m treasuryModel) toEntity() (entities.Treasury, error) {
	balance, err := parseNumeric(m.HouseBalance)
	if err != nil {
		return entities.Treasury{}, err
	}
	return entities.Treasury{
		Owner:        entities.Principal(m.Owner),
		HouseBalance: balance,
		UpdatedAt:    m.UpdatedAt.UTC(),
	}, nil
}

type registryModel struct {
	ID         int    `gorm:"column:id;primaryKey;autoIncrement:false"`
	NextPollID uint64 `gorm:"column:next_poll_id"`
}

func (registryModel) TableName() string {
	return "poll_registry"
}

type idempotencyModel struct {
	Key         string    `gorm:"column:key;primaryKey"`
	RequestHash string    `gorm:"column:request_hash"`
	PollID      uint64    `gorm:"column:poll_id"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "poll_ledger_idempotency"
}

type outboxModel struct {
	Seq          int64      `gorm:"column:seq;->"`
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "poll_ledger_outbox"
}

type accountModel struct {
	Principal string    `gorm:"column:principal;primaryKey"`
	Balance   string    `gorm:"column:balance"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (accountModel) TableName() string {
	return "poll_ledger_accounts"
}

// parseNumeric reads a NUMERIC(78,0) column rendered as text.
func parseNumeric(raw string) (entities.Amount, error) {
	raw = strings.TrimSpace(raw)
	if idx := strings.IndexByte(raw, '.'); idx >= 0 {
		raw = raw[:idx]
	}
	return entities.ParseAmount(raw)
}
