package memory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"stakepoll/contexts/staked-voting/poll-ledger/domain/entities"
	"stakepoll/contexts/staked-voting/poll-ledger/ports"
)

var ErrRecipientRejected = errors.New("recipient rejected transfer")

// Wallet is an in-process FundsTransfer that credits recipient balances.
// Recipients can be marked as rejecting to exercise failed transfers.
type Wallet struct {
	mu        sync.Mutex
	balances  map[entities.Principal]entities.Amount
	rejecting map[entities.Principal]error
	transfers int
}

func NewWallet() *Wallet {
	return &Wallet{
		balances:  make(map[entities.Principal]entities.Amount),
		rejecting: make(map[entities.Principal]error),
	}
}

func (w *Wallet) Transfer(_ context.Context, to entities.Principal, amount entities.Amount) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	to = entities.Principal(strings.TrimSpace(string(to)))
	if err, ok := w.rejecting[to]; ok {
		return err
	}
	current := entities.AmountOrZero(w.balances[to])
	w.balances[to] = current.Add(entities.AmountOrZero(amount))
	w.transfers++
	return nil
}

// Reject makes every later transfer to recipient fail with err, or with
// ErrRecipientRejected when err is nil.
func (w *Wallet) Reject(recipient entities.Principal, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err == nil {
		err = ErrRecipientRejected
	}
	w.rejecting[recipient] = err
}

func (w *Wallet) Accept(recipient entities.Principal) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.rejecting, recipient)
}

func (w *Wallet) Balance(recipient entities.Principal) entities.Amount {
	w.mu.Lock()
	defer w.mu.Unlock()
	return entities.AmountOrZero(w.balances[recipient])
}

func (w *Wallet) TransferCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.transfers
}

var _ ports.FundsTransfer = (*Wallet)(nil)
