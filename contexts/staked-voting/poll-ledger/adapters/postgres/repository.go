package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "stakepoll/contexts/staked-voting/poll-ledger/application"
	"stakepoll/contexts/staked-voting/poll-ledger/domain/entities"
	domainerrors "stakepoll/contexts/staked-voting/poll-ledger/domain/errors"
	"stakepoll/contexts/staked-voting/poll-ledger/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type txContextKey struct{}

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// conn returns the transaction bound to ctx by a Within* call, so adapters
// invoked inside a unit of work (the account transfer) join it.
func (r *Repository) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txContextKey{}).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

// EnsureTreasury seeds the singleton treasury row with the configured owner.
// An existing row keeps its owner.
func (r *Repository) EnsureTreasury(ctx context.Context, owner entities.Principal) error {
	row := treasuryModel{
		ID:           singletonRowID,
		Owner:        strings.TrimSpace(string(owner)),
		HouseBalance: "0",
		UpdatedAt:    time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return r.logError("ledger_repo_ensure_treasury_failed", err)
	}
	registry := registryModel{ID: singletonRowID}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&registry).Error; err != nil {
		return r.logError("ledger_repo_ensure_registry_failed", err)
	}
	return nil
}

func (r *Repository) WithinRegistry(ctx context.Context, fn func(ctx context.Context, tx ports.RegistryTx) error) error {
	return r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		var registry registryModel
		if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", singletonRowID).
			First(&registry).Error; err != nil {
			return r.logError("ledger_repo_lock_registry_failed", err)
		}
		txCtx := context.WithValue(ctx, txContextKey{}, db)
		tx := &registryTx{repo: r, db: db, next: registry.NextPollID}
		if err := fn(txCtx, tx); err != nil {
			return err
		}
		if err := db.Model(&registryModel{}).
			Where("id = ?", singletonRowID).
			Update("next_poll_id", tx.next).Error; err != nil {
			return r.logError("ledger_repo_advance_registry_failed", err, "next_poll_id", tx.next)
		}
		return nil
	})
}

func (r *Repository) WithinPoll(ctx context.Context, pollID uint64, fn func(ctx context.Context, tx ports.PollTx) error) error {
	return r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		var row pollModel
		if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("poll_id = ?", pollID).
			First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrPollNotFound
			}
			return r.logError("ledger_repo_lock_poll_failed", err, "poll_id", pollID)
		}
		poll, err := row.toEntity()
		if err != nil {
			return r.logError("ledger_repo_decode_poll_failed", err, "poll_id", pollID)
		}
		txCtx := context.WithValue(ctx, txContextKey{}, db)
		return fn(txCtx, &pollTx{repo: r, db: db, poll: poll})
	})
}

func (r *Repository) WithinTreasury(ctx context.Context, fn func(ctx context.Context, tx ports.TreasuryTx) error) error {
	return r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		var row treasuryModel
		if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", singletonRowID).
			First(&row).Error; err != nil {
			return r.logError("ledger_repo_lock_treasury_failed", err)
		}
		treasury, err := row.toEntity()
		if err != nil {
			return r.logError("ledger_repo_decode_treasury_failed", err)
		}
		txCtx := context.WithValue(ctx, txContextKey{}, db)
		return fn(txCtx, &treasuryTx{repo: r, db: db, treasury: treasury})
	})
}

func (r *Repository) GetPoll(ctx context.Context, pollID uint64) (entities.Poll, error) {
	var row pollModel
	if err := r.conn(ctx).Where("poll_id = ?", pollID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Poll{}, domainerrors.ErrPollNotFound
		}
		return entities.Poll{}, r.logError("ledger_repo_get_poll_failed", err, "poll_id", pollID)
	}
	return row.toEntity()
}

func (r *Repository) ListPolls(ctx context.Context, limit int, offset int) ([]entities.Poll, error) {
	var rows []pollModel
	query := r.conn(ctx).Order("poll_id ASC").Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, r.logError("ledger_repo_list_polls_failed", err, "limit", limit, "offset", offset)
	}
	items := make([]entities.Poll, 0, len(rows))
	for _, row := range rows {
		poll, err := row.toEntity()
		if err != nil {
			return nil, r.logError("ledger_repo_decode_poll_failed", err, "poll_id", row.PollID)
		}
		items = append(items, poll)
	}
	return items, nil
}

func (r *Repository) ListTallies(ctx context.Context, pollID uint64) ([]entities.OptionTally, error) {
	return r.listTallies(r.conn(ctx), pollID)
}

func (r *Repository) listTallies(db *gorm.DB, pollID uint64) ([]entities.OptionTally, error) {
	var rows []tallyModel
	if err := db.Where("poll_id = ?", pollID).Order("option_id ASC").Find(&rows).Error; err != nil {
		return nil, r.logError("ledger_repo_list_tallies_failed", err, "poll_id", pollID)
	}
	items := make([]entities.OptionTally, 0, len(rows))
	for _, row := range rows {
		tally, err := row.toEntity()
		if err != nil {
			return nil, r.logError("ledger_repo_decode_tally_failed", err, "poll_id", pollID, "option_id", row.OptionID)
		}
		items = append(items, tally)
	}
	return items, nil
}

func (r *Repository) GetVote(ctx context.Context, pollID uint64, voter entities.Principal) (entities.VoteRecord, bool, error) {
	return r.getVote(r.conn(ctx), pollID, voter)
}

func (r *Repository) getVote(db *gorm.DB, pollID uint64, voter entities.Principal) (entities.VoteRecord, bool, error) {
	var row voteModel
	err := db.Where("poll_id = ? AND voter = ?", pollID, string(voter)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.VoteRecord{}, false, nil
		}
		return entities.VoteRecord{}, false, r.logError("ledger_repo_get_vote_failed", err,
			"poll_id", pollID,
			"voter", string(voter),
		)
	}
	vote, err := row.toEntity()
	if err != nil {
		return entities.VoteRecord{}, false, err
	}
	return vote, true, nil
}

func (r *Repository) HasClaimed(ctx context.Context, pollID uint64, voter entities.Principal) (bool, error) {
	return r.hasClaimed(r.conn(ctx), pollID, voter)
}

func (r *Repository) hasClaimed(db *gorm.DB, pollID uint64, voter entities.Principal) (bool, error) {
	var count int64
	if err := db.Model(&claimModel{}).
		Where("poll_id = ? AND voter = ?", pollID, string(voter)).
		Count(&count).Error; err != nil {
		return false, r.logError("ledger_repo_has_claimed_failed", err,
			"poll_id", pollID,
			"voter", string(voter),
		)
	}
	return count > 0, nil
}

func (r *Repository) GetTreasury(ctx context.Context) (entities.Treasury, error) {
	return r.getTreasury(r.conn(ctx))
}

func (r *Repository) getTreasury(db *gorm.DB) (entities.Treasury, error) {
	var row treasuryModel
	if err := db.Where("id = ?", singletonRowID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Treasury{HouseBalance: entities.ZeroAmount()}, nil
		}
		return entities.Treasury{}, r.logError("ledger_repo_get_treasury_failed", err)
	}
	return row.toEntity()
}

func (r *Repository) Get(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	return r.getIdempotency(r.conn(ctx), key, now)
}

func (r *Repository) getIdempotency(db *gorm.DB, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := db.
		Where("key = ? AND expires_at > ?", strings.TrimSpace(key), now.UTC()).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, r.logError("ledger_repo_get_idempotency_failed", err,
			"idempotency_key", strings.TrimSpace(key),
		)
	}
	return ports.IdempotencyRecord{
		Key:         row.Key,
		RequestHash: row.RequestHash,
		PollID:      row.PollID,
		ExpiresAt:   row.ExpiresAt.UTC(),
	}, true, nil
}

func (r *Repository) putIdempotency(db *gorm.DB, record ports.IdempotencyRecord, now time.Time) error {
	row := idempotencyModel{
		Key:         strings.TrimSpace(record.Key),
		RequestHash: strings.TrimSpace(record.RequestHash),
		PollID:      record.PollID,
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	create := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"request_hash": row.RequestHash,
			"poll_id":      row.PollID,
			"expires_at":   row.ExpiresAt,
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{
				SQL:  "poll_ledger_idempotency.expires_at <= ? OR poll_ledger_idempotency.request_hash = EXCLUDED.request_hash",
				Vars: []any{now.UTC()},
			},
		}},
	}).Create(&row)
	if create.Error != nil {
		return r.logError("ledger_repo_put_idempotency_failed", create.Error,
			"idempotency_key", row.Key,
		)
	}
	if create.RowsAffected == 0 {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

func (r *Repository) appendOutbox(db *gorm.DB, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	create := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("ledger_repo_append_outbox_failed", create.Error,
			"outbox_id", row.OutboxID,
			"event_type", row.EventType,
		)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.conn(ctx).
		Where("status = ?", outboxStatusPending).
		Order("seq ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("ledger_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.conn(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("ledger_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) Now() time.Time {
	return time.Now().UTC()
}

func (r *Repository) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", application.ModuleName,
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("ledger repository operation failed", fields...)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.Ledger = (*Repository)(nil)
var _ ports.IdempotencyStore = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
var _ ports.Clock = (*Repository)(nil)
var _ ports.IDGenerator = (*Repository)(nil)
