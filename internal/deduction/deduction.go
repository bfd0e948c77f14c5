// Package deduction computes the South African Section 10C allowable deduction
// for retirement fund contributions: a percentage of remuneration up to a
// statutory rand cap. Unlike the UK annual allowance there is no carry-forward;
// unused room cannot roll forward or back.
package deduction

import (
	"github.com/shopspring/decimal"

	"retirement-engine/internal/money"
	"retirement-engine/internal/rules"
	"retirement-engine/internal/taxyear"
	"retirement-engine/internal/validate"
)

// Input is one year's deduction calculation request. MarginalRate is the
// taxpayer's marginal income-tax rate, supplied by the caller's tax-bracket
// component.
type Input struct {
	Year               taxyear.TaxYear
	Remuneration       money.Money
	TotalContributions money.Money
	MarginalRate       decimal.Decimal
}

// Result is the Section 10C position for the year.
type Result struct {
	Year               string      `json:"year"`
	MaxDeductible      money.Money `json:"max_deductible"`
	DeductionClaimed   money.Money `json:"deduction_claimed"`
	TaxSaving          money.Money `json:"tax_saving"`
	RemainingAllowance money.Money `json:"remaining_allowance"`
}

// Compute derives the deduction for the input year.
func Compute(rs rules.Ruleset, in Input) (Result, error) {
	yearRules, err := rs.SAFor(in.Year)
	if err != nil {
		return Result{}, err
	}

	if err := validate.CurrencyIs("remuneration", in.Remuneration, money.ZAR); err != nil {
		return Result{}, err
	}
	if err := validate.NonNegativeAmount("remuneration", in.Remuneration); err != nil {
		return Result{}, err
	}
	if err := validate.CurrencyIs("total contributions", in.TotalContributions, money.ZAR); err != nil {
		return Result{}, err
	}
	if err := validate.NonNegativeAmount("total contributions", in.TotalContributions); err != nil {
		return Result{}, err
	}
	if err := validate.RateBetween("marginal rate", in.MarginalRate, decimal.Zero, decimal.NewFromInt(1)); err != nil {
		return Result{}, err
	}

	maxDeductible, err := money.Min(in.Remuneration.Mul(yearRules.DeductionRate), yearRules.DeductionCap)
	if err != nil {
		return Result{}, err
	}

	claimed, err := money.Min(in.TotalContributions, maxDeductible)
	if err != nil {
		return Result{}, err
	}

	remaining, err := maxDeductible.Sub(claimed)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Year:               in.Year.Label(),
		MaxDeductible:      maxDeductible,
		DeductionClaimed:   claimed,
		TaxSaving:          claimed.Mul(in.MarginalRate).Round(2),
		RemainingAllowance: remaining.FloorZero(),
	}, nil
}
