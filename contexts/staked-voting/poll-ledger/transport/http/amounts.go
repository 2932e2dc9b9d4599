package http

import (
	"errors"
	"strings"

	"stakepoll/contexts/staked-voting/poll-ledger/domain/entities"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("amount must be a non-negative number with at most the configured decimals")

// AmountCodec converts between base units and display decimals. Decimals of 18
// treats 1 display unit as 10^18 base units.
type AmountCodec struct {
	Decimals int32
}

func (c AmountCodec) View(amount entities.Amount) AmountView {
	amount = entities.AmountOrZero(amount)
	return AmountView{
		BaseUnits: amount.String(),
		Display:   decimal.NewFromBigInt(amount.BigInt(), -c.Decimals).String(),
	}
}

// Parse reads a display-unit decimal. Blank input is zero. Values finer than
// one base unit are rejected rather than rounded.
func (c AmountCodec) Parse(raw string) (entities.Amount, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return entities.ZeroAmount(), nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return entities.Amount{}, ErrInvalidAmount
	}
	if value.IsNegative() {
		return entities.Amount{}, ErrInvalidAmount
	}
	scaled := value.Shift(c.Decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return entities.Amount{}, ErrInvalidAmount
	}
	amount, err := entities.ParseAmount(scaled.BigInt().String())
	if err != nil {
		return entities.Amount{}, ErrInvalidAmount
	}
	return amount, nil
}
