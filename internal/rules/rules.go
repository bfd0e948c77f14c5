// Package rules holds the versioned statutory figures the calculators run against.
// Tables are keyed by tax-year label so historical calculations stay reproducible
// as the rules change year to year. A Ruleset is an immutable value injected into
// the engine by the caller; there is no package-level mutable state.
package rules

import (
	"fmt"

	"github.com/shopspring/decimal"

	"retirement-engine/internal/money"
	"retirement-engine/internal/taxyear"
)

// UKYearRules are the UK annual-allowance figures for one tax year.
type UKYearRules struct {
	// AnnualAllowance is the statutory annual allowance before tapering.
	AnnualAllowance money.Money
	// TaperThreshold is the adjusted-income level above which the allowance tapers
	// by £1 for every £2 of excess.
	TaperThreshold money.Money
	// TaperFloor is the minimum tapered allowance; tapering never reduces below it.
	TaperFloor money.Money
	// MPAA is the money purchase annual allowance applied after flexible access.
	MPAA money.Money
}

// SAYearRules are the Section 10C deduction figures for one SA tax year.
type SAYearRules struct {
	// DeductionRate is the deductible fraction of remuneration (currently 27.5%).
	DeductionRate decimal.Decimal
	// DeductionCap is the statutory rand cap on the deduction.
	DeductionCap money.Money
}

// AnnuityFactors are the load factors applied to annuity quotes.
type AnnuityFactors struct {
	// SpouseProvisionFactor scales income down when a joint-life annuity is requested.
	SpouseProvisionFactor decimal.Decimal
	// EscalationDiscount scales first-year income down for escalating annuities,
	// which start lower in exchange for rising payments.
	EscalationDiscount decimal.Decimal
}

// Ruleset is the full set of statutory tables for both jurisdictions.
type Ruleset struct {
	uk      map[string]UKYearRules
	sa      map[string]SAYearRules
	annuity AnnuityFactors
}

func ukYear(allowance, threshold, floor, mpaa string) UKYearRules {
	return UKYearRules{
		AnnualAllowance: money.MustParse(allowance, money.GBP),
		TaperThreshold:  money.MustParse(threshold, money.GBP),
		TaperFloor:      money.MustParse(floor, money.GBP),
		MPAA:            money.MustParse(mpaa, money.GBP),
	}
}

// Default returns the built-in tables: UK tax years 2020/21 through 2025/26 and
// SA tax years 2021 through 2026.
func Default() Ruleset {
	uk := map[string]UKYearRules{
		"2020/21": ukYear("40000", "240000", "4000", "4000"),
		"2021/22": ukYear("40000", "240000", "4000", "4000"),
		"2022/23": ukYear("40000", "240000", "4000", "4000"),
		"2023/24": ukYear("60000", "260000", "10000", "10000"),
		"2024/25": ukYear("60000", "260000", "10000", "10000"),
		"2025/26": ukYear("60000", "260000", "10000", "10000"),
	}

	sa := make(map[string]SAYearRules, 6)
	s10c := SAYearRules{
		DeductionRate: decimal.RequireFromString("0.275"),
		DeductionCap:  money.FromInt(350000, money.ZAR),
	}
	for y := 2021; y <= 2026; y++ {
		sa[fmt.Sprintf("%d", y)] = s10c
	}

	return Ruleset{
		uk: uk,
		sa: sa,
		annuity: AnnuityFactors{
			SpouseProvisionFactor: decimal.RequireFromString("0.90"),
			EscalationDiscount:    decimal.RequireFromString("0.72"),
		},
	}
}

// UKFor returns the UK rules for the given tax year.
func (rs Ruleset) UKFor(ty taxyear.TaxYear) (UKYearRules, error) {
	if ty.Jurisdiction() != taxyear.UK {
		return UKYearRules{}, fmt.Errorf("tax year %s is not a UK tax year", ty)
	}
	r, ok := rs.uk[ty.Label()]
	if !ok {
		return UKYearRules{}, fmt.Errorf("no UK rules for tax year %s", ty)
	}
	return r, nil
}

// SAFor returns the SA rules for the given tax year.
func (rs Ruleset) SAFor(ty taxyear.TaxYear) (SAYearRules, error) {
	if ty.Jurisdiction() != taxyear.SA {
		return SAYearRules{}, fmt.Errorf("tax year %s is not an SA tax year", ty)
	}
	r, ok := rs.sa[ty.Label()]
	if !ok {
		return SAYearRules{}, fmt.Errorf("no SA rules for tax year %s", ty)
	}
	return r, nil
}

// Annuity returns the annuity load factors.
func (rs Ruleset) Annuity() AnnuityFactors {
	return rs.annuity
}

// UKYears returns the labels of all UK tax years the ruleset covers.
func (rs Ruleset) UKYears() []string {
	out := make([]string, 0, len(rs.uk))
	for label := range rs.uk {
		out = append(out, label)
	}
	return out
}

func (rs Ruleset) clone() Ruleset {
	uk := make(map[string]UKYearRules, len(rs.uk))
	for k, v := range rs.uk {
		uk[k] = v
	}
	sa := make(map[string]SAYearRules, len(rs.sa))
	for k, v := range rs.sa {
		sa[k] = v
	}
	return Ruleset{uk: uk, sa: sa, annuity: rs.annuity}
}
