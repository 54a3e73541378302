// Package money represents monetary amounts as exact integer minor units
// (cents) so that ledger arithmetic never touches a float.
package money

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidAmount   = errors.New("invalid_amount")
	ErrCurrencyMismatch = errors.New("currency_mismatch")
)

// Amount is an exact monetary value: Minor units (e.g. cents) of Currency.
type Amount struct {
	Minor    int64
	Currency string
}

// New builds an Amount, upper-casing the currency code.
func New(minor int64, currency string) Amount {
	return Amount{Minor: minor, Currency: strings.ToUpper(strings.TrimSpace(currency))}
}

// Zero reports whether the amount is exactly zero.
func (a Amount) Zero() bool { return a.Minor == 0 }

// Positive reports whether the amount is strictly greater than zero.
func (a Amount) Positive() bool { return a.Minor > 0 }

// Negative reports whether the amount is strictly less than zero.
func (a Amount) Negative() bool { return a.Minor < 0 }

// Add returns a+b. Both operands must share a currency.
func (a Amount) Add(b Amount) (Amount, error) {
	if a.Currency != b.Currency {
		return Amount{}, ErrCurrencyMismatch
	}
	return Amount{Minor: a.Minor + b.Minor, Currency: a.Currency}, nil
}

// Sub returns a-b. Both operands must share a currency.
func (a Amount) Sub(b Amount) (Amount, error) {
	if a.Currency != b.Currency {
		return Amount{}, ErrCurrencyMismatch
	}
	return Amount{Minor: a.Minor - b.Minor, Currency: a.Currency}, nil
}

// Negate returns the additive inverse, used to post reversal entries.
func (a Amount) Negate() Amount {
	return Amount{Minor: -a.Minor, Currency: a.Currency}
}

// Cmp returns -1, 0, 1 comparing a to b. Panics on currency mismatch since
// callers are expected to validate currency before comparing.
func (a Amount) Cmp(b Amount) int {
	if a.Currency != b.Currency {
		panic("money: Cmp across currencies")
	}
	switch {
	case a.Minor < b.Minor:
		return -1
	case a.Minor > b.Minor:
		return 1
	default:
		return 0
	}
}

// Validate rejects zero/negative amounts and missing currency, the shape
// every LedgerEntryLine and PaymentInstruction amount must satisfy.
func (a Amount) Validate() error {
	if a.Currency == "" {
		return ErrInvalidAmount
	}
	if a.Minor <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (a Amount) String() string {
	sign := ""
	minor := a.Minor
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, minor/100, minor%100, a.Currency)
}
