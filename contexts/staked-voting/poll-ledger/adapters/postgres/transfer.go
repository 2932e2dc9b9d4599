package postgresadapter

import (
	"context"
	"strings"
	"time"

	"stakepoll/contexts/staked-voting/poll-ledger/domain/entities"
	"stakepoll/contexts/staked-voting/poll-ledger/ports"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountTransfer settles payouts into the poll_ledger_accounts table. Called
// inside a ledger unit of work it joins that transaction, so a rolled-back
// claim never leaves a credited balance behind.
type AccountTransfer struct {
	repo *Repository
}

func NewAccountTransfer(repo *Repository) *AccountTransfer {
	return &AccountTransfer{repo: repo}
}

func (t *AccountTransfer) Transfer(ctx context.Context, to entities.Principal, amount entities.Amount) error {
	row := accountModel{
		Principal: strings.TrimSpace(string(to)),
		Balance:   entities.AmountOrZero(amount).String(),
		UpdatedAt: time.Now().UTC(),
	}
	err := t.repo.conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "principal"}},
		DoUpdates: clause.Assignments(map[string]any{
			"balance":    gorm.Expr("poll_ledger_accounts.balance + EXCLUDED.balance"),
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row).Error
	if err != nil {
		return t.repo.logError("ledger_repo_account_transfer_failed", err,
			"recipient", row.Principal,
			"amount", row.Balance,
		)
	}
	return nil
}

var _ ports.FundsTransfer = (*AccountTransfer)(nil)
