// Package validate holds the precondition checks shared by the calculators.
// Every violation wraps ErrInvalidParameter so callers can classify failures
// with errors.Is without inspecting messages.
package validate

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"retirement-engine/internal/money"
)

// ErrInvalidParameter marks a caller-supplied value that violates a documented
// precondition. Detected before any computation proceeds; never retried.
var ErrInvalidParameter = errors.New("invalid parameter")

// NonNegativeAmount checks that the amount is not negative.
func NonNegativeAmount(name string, m money.Money) error {
	if m.IsNegative() {
		return fmt.Errorf("%w: %s must not be negative, got %s", ErrInvalidParameter, name, m)
	}
	return nil
}

// PositiveAmount checks that the amount is strictly positive.
func PositiveAmount(name string, m money.Money) error {
	if !m.IsPositive() {
		return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidParameter, name, m)
	}
	return nil
}

// CurrencyIs checks that the amount carries the expected currency.
func CurrencyIs(name string, m money.Money, want money.Currency) error {
	if m.Currency() != want {
		return fmt.Errorf("%w: %s must be in %s, got %s", ErrInvalidParameter, name, want, m.Currency())
	}
	return nil
}

// RateBetween checks that a fractional rate lies within [lo, hi] inclusive.
func RateBetween(name string, rate, lo, hi decimal.Decimal) error {
	if rate.LessThan(lo) || rate.GreaterThan(hi) {
		return fmt.Errorf("%w: %s must be within [%s, %s], got %s", ErrInvalidParameter, name, lo, hi, rate)
	}
	return nil
}

// IntBetween checks that an integer lies within [lo, hi] inclusive.
func IntBetween(name string, v, lo, hi int) error {
	if v < lo || v > hi {
		return fmt.Errorf("%w: %s must be within [%d, %d], got %d", ErrInvalidParameter, name, lo, hi, v)
	}
	return nil
}
