// Package drawdown models flexible drawdown of an invested pension pot and
// annuity purchase quotes. Drawdown withdraws a fixed percentage of the
// remaining pot each year and grows the remainder; the depletion age is the
// first year the pot hits zero within a bounded horizon.
package drawdown

import (
	"github.com/shopspring/decimal"

	"retirement-engine/internal/money"
	"retirement-engine/internal/rules"
	"retirement-engine/internal/validate"
)

// horizonAge bounds the simulation; a pot alive at this age is treated as
// lasting indefinitely under the assumptions.
const horizonAge = 100

var (
	one = decimal.NewFromInt(1)

	minWithdrawalRate = decimal.RequireFromString("0.02")
	maxWithdrawalRate = decimal.RequireFromString("0.08")
	minAnnuityRate    = decimal.RequireFromString("0.03")
	maxAnnuityRate    = decimal.RequireFromString("0.15")
)

// Input is one drawdown scenario.
type Input struct {
	PotValue money.Money
	StartAge int
	// WithdrawalRate is the fraction of the remaining pot withdrawn each year.
	// Must lie within [2%, 8%].
	WithdrawalRate decimal.Decimal
	GrowthRate     decimal.Decimal
}

// YearBalance is the pot position after one simulated year.
type YearBalance struct {
	Age        int         `json:"age"`
	Withdrawal money.Money `json:"withdrawal"`
	EndBalance money.Money `json:"end_balance"`
}

// Result is the outcome of a drawdown scenario.
type Result struct {
	// AnnualIncome is the first-year withdrawal.
	AnnualIncome money.Money `json:"annual_income"`
	// DepletionAge is the age at which the pot ran out, or nil if it survives
	// to the bounded horizon.
	DepletionAge *int          `json:"depletion_age"`
	Path         []YearBalance `json:"path"`
}

// Scenario simulates year-over-year pot reduction: withdraw the annual income
// (the withdrawal rate applied to the starting pot), then grow the remainder;
// stop at depletion or the horizon.
func Scenario(in Input) (Result, error) {
	if err := validate.PositiveAmount("pot value", in.PotValue); err != nil {
		return Result{}, err
	}
	if err := validate.IntBetween("start age", in.StartAge, 16, horizonAge); err != nil {
		return Result{}, err
	}
	if err := validate.RateBetween("withdrawal rate", in.WithdrawalRate, minWithdrawalRate, maxWithdrawalRate); err != nil {
		return Result{}, err
	}

	income := in.PotValue.Mul(in.WithdrawalRate).Round(2)
	pot := in.PotValue
	growth := one.Add(in.GrowthRate)

	result := Result{AnnualIncome: income}
	for age := in.StartAge; age < horizonAge; age++ {
		withdrawal := income
		if withdrawal.GreaterThan(pot) {
			withdrawal = pot
		}
		remainder, err := pot.Sub(withdrawal)
		if err != nil {
			return Result{}, err
		}
		pot = remainder.Mul(growth).Round(2)

		result.Path = append(result.Path, YearBalance{Age: age, Withdrawal: withdrawal, EndBalance: pot})

		if !pot.IsPositive() {
			depleted := age
			result.DepletionAge = &depleted
			return result, nil
		}
	}

	// Never depleted within the horizon.
	return result, nil
}

// AnnuityInput is one annuity quote request.
type AnnuityInput struct {
	PotValue money.Money
	// AnnuityRate must lie within [3%, 15%].
	AnnuityRate     decimal.Decimal
	SpouseProvision bool
	// EscalationRate, when non-nil, requests an escalating annuity; the quoted
	// first-year income is discounted because payments rise over time.
	EscalationRate *decimal.Decimal
}

// Quote is the annual income an annuity purchase would secure.
type Quote struct {
	AnnualIncome    money.Money     `json:"annual_income"`
	AnnuityRate     decimal.Decimal `json:"annuity_rate"`
	SpouseProvision bool            `json:"spouse_provision"`
	Escalating      bool            `json:"escalating"`
}

// AnnuityQuote converts a pot into guaranteed annual income. Spouse provision
// and escalation apply the ruleset's load factors.
func AnnuityQuote(rs rules.Ruleset, in AnnuityInput) (Quote, error) {
	if err := validate.PositiveAmount("pot value", in.PotValue); err != nil {
		return Quote{}, err
	}
	if err := validate.RateBetween("annuity rate", in.AnnuityRate, minAnnuityRate, maxAnnuityRate); err != nil {
		return Quote{}, err
	}
	if in.EscalationRate != nil {
		if err := validate.RateBetween("escalation rate", *in.EscalationRate, decimal.Zero, decimal.RequireFromString("0.1")); err != nil {
			return Quote{}, err
		}
	}

	factors := rs.Annuity()

	income := in.PotValue.Mul(in.AnnuityRate)
	if in.SpouseProvision {
		income = income.Mul(factors.SpouseProvisionFactor)
	}
	if in.EscalationRate != nil {
		income = income.Mul(factors.EscalationDiscount)
	}

	return Quote{
		AnnualIncome:    income.Round(2),
		AnnuityRate:     in.AnnuityRate,
		SpouseProvision: in.SpouseProvision,
		Escalating:      in.EscalationRate != nil,
	}, nil
}
