package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	application "stakepoll/contexts/staked-voting/poll-ledger/application"
	"stakepoll/contexts/staked-voting/poll-ledger/domain/entities"
	domainerrors "stakepoll/contexts/staked-voting/poll-ledger/domain/errors"
	"stakepoll/contexts/staked-voting/poll-ledger/ports"
)

// CreatePollCommand is the write-model input for poll creation.
type CreatePollCommand struct {
	Creator         entities.Principal
	IdempotencyKey  string
	Question        string
	Options         []string
	StakeAmount     entities.Amount
	DurationMinutes int64
	DemoMode        bool
}

type CreatePollResult struct {
	Poll     entities.Poll
	Replayed bool
}

// RegistryUseCase owns poll creation: parameter validation, sequential id
// allocation and the poll.created event.
type RegistryUseCase struct {
	Ledger         ports.Ledger
	Idempotency    ports.IdempotencyStore
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	Metrics        ports.LedgerMetrics
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

// CreatePoll validates the request and stores a new open poll ending
// DurationMinutes after now. When an idempotency key is supplied, a retried
// request with the same payload returns the originally created poll.
func (uc RegistryUseCase) CreatePoll(ctx context.Context, cmd CreatePollCommand) (CreatePollResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	creator := normalizePrincipal(cmd.Creator)
	logger.Info("poll create processing started",
		"event", "poll_create_started",
		"module", application.ModuleName,
		"layer", "application",
		"creator", string(creator),
		"options_count", len(cmd.Options),
		"demo_mode", cmd.DemoMode,
	)

	if creator == "" {
		return CreatePollResult{}, domainerrors.ErrUnauthenticated
	}
	if err := validateCreatePoll(cmd); err != nil {
		logger.Warn("poll create validation failed",
			"event", "poll_create_validation_failed",
			"module", application.ModuleName,
			"layer", "application",
			"creator", string(creator),
			"error", err.Error(),
		)
		return CreatePollResult{}, err
	}

	now := resolveNow(uc.Clock)
	idempotencyKey := strings.TrimSpace(cmd.IdempotencyKey)
	requestHash := hashCreatePollCommand(creator, cmd)
	if idempotencyKey != "" && uc.Idempotency != nil {
		record, found, err := uc.Idempotency.Get(ctx, idempotencyKey, now)
		if err != nil {
			logger.Error("poll create idempotency lookup failed",
				"event", "poll_create_idempotency_lookup_failed",
				"module", application.ModuleName,
				"layer", "application",
				"creator", string(creator),
				"error", err.Error(),
			)
			return CreatePollResult{}, err
		}
		if found {
			if record.RequestHash != requestHash {
				logger.Warn("poll create idempotency conflict",
					"event", "poll_create_idempotency_conflict",
					"module", application.ModuleName,
					"layer", "application",
					"creator", string(creator),
				)
				return CreatePollResult{}, domainerrors.ErrIdempotencyConflict
			}
			return uc.replay(ctx, record.PollID, creator)
		}
	}

	options := make([]string, 0, len(cmd.Options))
	for _, option := range cmd.Options {
		options = append(options, strings.TrimSpace(option))
	}
	stake := entities.AmountOrZero(cmd.StakeAmount)

	var (
		created  entities.Poll
		replayed bool
	)
	err := uc.Ledger.WithinRegistry(ctx, func(ctx context.Context, tx ports.RegistryTx) error {
		if idempotencyKey != "" {
			record, found, err := tx.LookupIdempotency(ctx, idempotencyKey, now)
			if err != nil {
				return err
			}
			if found {
				if record.RequestHash != requestHash {
					return domainerrors.ErrIdempotencyConflict
				}
				created.PollID = record.PollID
				replayed = true
				return nil
			}
		}

		pollID, err := tx.NextPollID(ctx)
		if err != nil {
			return err
		}
		created = entities.Poll{
			PollID:      pollID,
			Question:    strings.TrimSpace(cmd.Question),
			Options:     options,
			StakeAmount: stake,
			Creator:     creator,
			DemoMode:    cmd.DemoMode,
			CreatedAt:   now,
			EndTime:     now.Add(time.Duration(cmd.DurationMinutes) * time.Minute),
			HouseFee:    entities.ZeroAmount(),
		}
		if !created.EndTime.After(created.CreatedAt) {
			return domainerrors.ErrInvalidDuration
		}
		if err := tx.InsertPoll(ctx, created); err != nil {
			return err
		}
		if idempotencyKey != "" {
			if err := tx.SaveIdempotency(ctx, ports.IdempotencyRecord{
				Key:         idempotencyKey,
				RequestHash: requestHash,
				PollID:      pollID,
				ExpiresAt:   now.Add(uc.resolveIdempotencyTTL()),
			}, now); err != nil {
				return err
			}
		}
		return appendPollEvent(ctx, tx, uc.IDGen, EventPollCreated, pollID, now, map[string]any{
			"creator":      string(creator),
			"question":     created.Question,
			"options":      created.Options,
			"stake_amount": stake.String(),
			"end_time":     created.EndTime.Format(time.RFC3339),
			"demo_mode":    created.DemoMode,
		})
	})
	if err != nil {
		if isDomainRejection(err) {
			logger.Warn("poll create rejected",
				"event", "poll_create_rejected",
				"module", application.ModuleName,
				"layer", "application",
				"creator", string(creator),
				"error", err.Error(),
			)
			return CreatePollResult{}, err
		}
		logger.Error("poll create failed",
			"event", "poll_create_failed",
			"module", application.ModuleName,
			"layer", "application",
			"creator", string(creator),
			"error", err.Error(),
		)
		return CreatePollResult{}, err
	}
	if replayed {
		return uc.replay(ctx, created.PollID, creator)
	}

	resolveMetrics(uc.Metrics).PollCreated(created.DemoMode)
	logger.Info("poll created",
		"event", "poll_created",
		"module", application.ModuleName,
		"layer", "application",
		"poll_id", created.PollID,
		"creator", string(creator),
		"stake_amount", created.StakeAmount.String(),
		"end_time", created.EndTime,
		"demo_mode", created.DemoMode,
	)
	return CreatePollResult{Poll: created}, nil
}

func (uc RegistryUseCase) replay(ctx context.Context, pollID uint64, creator entities.Principal) (CreatePollResult, error) {
	poll, err := uc.Ledger.GetPoll(ctx, pollID)
	if err != nil {
		return CreatePollResult{}, err
	}
	application.ResolveLogger(uc.Logger).Info("poll create replayed",
		"event", "poll_create_replayed",
		"module", application.ModuleName,
		"layer", "application",
		"poll_id", poll.PollID,
		"creator", string(creator),
	)
	return CreatePollResult{Poll: poll, Replayed: true}, nil
}

func (uc RegistryUseCase) resolveIdempotencyTTL() time.Duration {
	if uc.IdempotencyTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return uc.IdempotencyTTL
}

func validateCreatePoll(cmd CreatePollCommand) error {
	if len(cmd.Options) < entities.MinOptions || len(cmd.Options) > entities.MaxOptions {
		return domainerrors.ErrInvalidOptionsCount
	}
	if cmd.DurationMinutes <= 0 || cmd.DurationMinutes > entities.MaxDurationMinutes {
		return domainerrors.ErrInvalidDuration
	}
	if strings.TrimSpace(cmd.Question) == "" {
		return domainerrors.ErrInvalidPollInput
	}
	for _, option := range cmd.Options {
		if strings.TrimSpace(option) == "" {
			return domainerrors.ErrInvalidPollInput
		}
	}
	return nil
}

func hashCreatePollCommand(creator entities.Principal, cmd CreatePollCommand) string {
	options := make([]string, 0, len(cmd.Options))
	for _, option := range cmd.Options {
		options = append(options, strings.TrimSpace(option))
	}
	payload := map[string]any{
		"creator":          string(creator),
		"question":         strings.TrimSpace(cmd.Question),
		"options":          options,
		"stake_amount":     entities.AmountOrZero(cmd.StakeAmount).String(),
		"duration_minutes": cmd.DurationMinutes,
		"demo_mode":        cmd.DemoMode,
		"op":               "create_poll",
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
