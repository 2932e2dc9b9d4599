package postgresadapter

import (
	"context"
	"time"

	"stakepoll/contexts/staked-voting/poll-ledger/domain/entities"
	domainerrors "stakepoll/contexts/staked-voting/poll-ledger/domain/errors"
	"stakepoll/contexts/staked-voting/poll-ledger/ports"

	"gorm.io/gorm"
)

type registryTx struct {
	repo *Repository
	db   *gorm.DB
	next uint64
}

func (tx *registryTx) NextPollID(_ context.Context) (uint64, error) {
	id := tx.next
	tx.next++
	return id, nil
}

func (tx *registryTx) InsertPoll(_ context.Context, poll entities.Poll) error {
	row, err := pollModelFromEntity(poll)
	if err != nil {
		return err
	}
	if err := tx.db.Create(&row).Error; err != nil {
		return tx.repo.logError("ledger_repo_insert_poll_failed", err, "poll_id", poll.PollID)
	}
	tallies := make([]tallyModel, 0, len(poll.Options))
	for optionID := range poll.Options {
		tallies = append(tallies, tallyModel{
			PollID:   poll.PollID,
			OptionID: optionID,
			Pool:     "0",
		})
	}
	if err := tx.db.Create(&tallies).Error; err != nil {
		return tx.repo.logError("ledger_repo_insert_tallies_failed", err, "poll_id", poll.PollID)
	}
	return nil
}

func (tx *registryTx) LookupIdempotency(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	return tx.repo.getIdempotency(tx.db, key, now)
}

func (tx *registryTx) SaveIdempotency(_ context.Context, record ports.IdempotencyRecord, now time.Time) error {
	return tx.repo.putIdempotency(tx.db, record, now)
}

func (tx *registryTx) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	return tx.repo.appendOutbox(tx.db, envelope)
}

// pollTx runs against a transaction holding the poll row lock.
type pollTx struct {
	repo *Repository
	db   *gorm.DB
	poll entities.Poll
}

func (tx *pollTx) Poll() entities.Poll {
	poll := tx.poll
	poll.Options = append([]string(nil), tx.poll.Options...)
	return poll
}

func (tx *pollTx) SavePoll(_ context.Context, poll entities.Poll) error {
	if poll.PollID != tx.poll.PollID {
		return domainerrors.ErrPollNotFound
	}
	row, err := pollModelFromEntity(poll)
	if err != nil {
		return err
	}
	if err := tx.db.Model(&pollModel{}).
		Where("poll_id = ?", poll.PollID).
		Updates(map[string]any{
			"resolved":       row.Resolved,
			"winning_option": row.WinningOption,
			"house_fee":      row.HouseFee,
			"resolved_at":    row.ResolvedAt,
			"resolved_by":    row.ResolvedBy,
			"emergency":      row.Emergency,
		}).Error; err != nil {
		return tx.repo.logError("ledger_repo_save_poll_failed", err, "poll_id", poll.PollID)
	}
	tx.poll = poll
	return nil
}

func (tx *pollTx) GetVote(_ context.Context, voter entities.Principal) (entities.VoteRecord, bool, error) {
	return tx.repo.getVote(tx.db, tx.poll.PollID, voter)
}

func (tx *pollTx) InsertVote(_ context.Context, vote entities.VoteRecord) error {
	row := voteModel{
		PollID:    tx.poll.PollID,
		Voter:     string(vote.Voter),
		OptionID:  vote.OptionID,
		Amount:    entities.AmountOrZero(vote.Amount).String(),
		CreatedAt: vote.CreatedAt.UTC(),
	}
	if err := tx.db.Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrAlreadyVoted
		}
		return tx.repo.logError("ledger_repo_insert_vote_failed", err,
			"poll_id", tx.poll.PollID,
			"voter", string(vote.Voter),
		)
	}
	return nil
}

func (tx *pollTx) HasDemoVote(_ context.Context, token entities.DemoToken) (bool, error) {
	var count int64
	if err := tx.db.Model(&demoVoteModel{}).
		Where("poll_id = ? AND token = ?", tx.poll.PollID, string(token)).
		Count(&count).Error; err != nil {
		return false, tx.repo.logError("ledger_repo_has_demo_vote_failed", err, "poll_id", tx.poll.PollID)
	}
	return count > 0, nil
}

func (tx *pollTx) InsertDemoVote(_ context.Context, vote entities.DemoVoteRecord) error {
	row := demoVoteModel{
		PollID:    tx.poll.PollID,
		Token:     string(vote.Token),
		OptionID:  vote.OptionID,
		CreatedAt: vote.CreatedAt.UTC(),
	}
	if err := tx.db.Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrAlreadyVoted
		}
		return tx.repo.logError("ledger_repo_insert_demo_vote_failed", err, "poll_id", tx.poll.PollID)
	}
	return nil
}

func (tx *pollTx) ListTallies(_ context.Context) ([]entities.OptionTally, error) {
	return tx.repo.listTallies(tx.db, tx.poll.PollID)
}

func (tx *pollTx) AddToTally(_ context.Context, optionID int, stake entities.Amount) error {
	result := tx.db.Model(&tallyModel{}).
		Where("poll_id = ? AND option_id = ?", tx.poll.PollID, optionID).
		Updates(map[string]any{
			"vote_count": gorm.Expr("vote_count + 1"),
			"pool":       gorm.Expr("pool + ?::numeric", entities.AmountOrZero(stake).String()),
		})
	if result.Error != nil {
		return tx.repo.logError("ledger_repo_add_to_tally_failed", result.Error,
			"poll_id", tx.poll.PollID,
			"option_id", optionID,
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrInvalidOption
	}
	return nil
}

func (tx *pollTx) HasClaimed(_ context.Context, voter entities.Principal) (bool, error) {
	return tx.repo.hasClaimed(tx.db, tx.poll.PollID, voter)
}

func (tx *pollTx) InsertClaim(_ context.Context, claim entities.Claim) error {
	row := claimModel{
		PollID:    tx.poll.PollID,
		Voter:     string(claim.Voter),
		Amount:    entities.AmountOrZero(claim.Amount).String(),
		Batch:     claim.Batch,
		ClaimedAt: claim.ClaimedAt.UTC(),
	}
	if err := tx.db.Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrAlreadyClaimed
		}
		return tx.repo.logError("ledger_repo_insert_claim_failed", err,
			"poll_id", tx.poll.PollID,
			"voter", string(claim.Voter),
		)
	}
	return nil
}

func (tx *pollTx) CreditHouse(_ context.Context, amount entities.Amount) error {
	if err := tx.db.Model(&treasuryModel{}).
		Where("id = ?", singletonRowID).
		Updates(map[string]any{
			"house_balance": gorm.Expr("house_balance + ?::numeric", entities.AmountOrZero(amount).String()),
			"updated_at":    time.Now().UTC(),
		}).Error; err != nil {
		return tx.repo.logError("ledger_repo_credit_house_failed", err, "poll_id", tx.poll.PollID)
	}
	return nil
}

func (tx *pollTx) GetTreasury(_ context.Context) (entities.Treasury, error) {
	return tx.repo.getTreasury(tx.db)
}

func (tx *pollTx) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	return tx.repo.appendOutbox(tx.db, envelope)
}

type treasuryTx struct {
	repo     *Repository
	db       *gorm.DB
	treasury entities.Treasury
}

func (tx *treasuryTx) Treasury() entities.Treasury {
	return tx.treasury
}

func (tx *treasuryTx) SaveTreasury(_ context.Context, treasury entities.Treasury) error {
	if err := tx.db.Model(&treasuryModel{}).
		Where("id = ?", singletonRowID).
		Updates(map[string]any{
			"owner":         string(treasury.Owner),
			"house_balance": entities.AmountOrZero(treasury.HouseBalance).String(),
			"updated_at":    treasury.UpdatedAt.UTC(),
		}).Error; err != nil {
		return tx.repo.logError("ledger_repo_save_treasury_failed", err)
	}
	tx.treasury = treasury
	return nil
}

func (tx *treasuryTx) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	return tx.repo.appendOutbox(tx.db, envelope)
}
