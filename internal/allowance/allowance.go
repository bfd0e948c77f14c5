// Package allowance computes UK pension annual-allowance usage for a tax year:
// statutory allowance, high-income tapering, the money purchase annual allowance
// after flexible access, and carry-forward of unused allowance from up to three
// preceding years.
package allowance

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"retirement-engine/internal/money"
	"retirement-engine/internal/rules"
	"retirement-engine/internal/taxyear"
	"retirement-engine/internal/validate"
)

// ContributionSource identifies who paid a contribution.
type ContributionSource string

const (
	SourceEmployee ContributionSource = "EMPLOYEE"
	SourceEmployer ContributionSource = "EMPLOYER"
	SourcePersonal ContributionSource = "PERSONAL"
)

// ContributionRecord is one pension contribution. Records are never mutated;
// a correction is a superseding record supplied by the caller.
type ContributionRecord struct {
	Amount money.Money        `json:"amount"`
	Date   time.Time          `json:"date"`
	Source ContributionSource `json:"source"`
	// MoneyPurchase is true for defined-contribution scheme inputs, false for
	// defined-benefit accrual.
	MoneyPurchase bool `json:"money_purchase"`
	// FlexibleAccess marks a contribution made after the saver flexibly accessed
	// a pension, which triggers the MPAA.
	FlexibleAccess bool `json:"flexible_access"`
}

// AdjustedIncomeFunc converts gross income into the statutory adjusted income
// used by the taper test. The exact adjustment set is a caller concern; a nil
// function means gross income is used as-is.
type AdjustedIncomeFunc func(money.Money) money.Money

// Input is everything the calculator needs for one tax year.
type Input struct {
	Year           taxyear.TaxYear
	GrossIncome    money.Money
	AdjustedIncome AdjustedIncomeFunc
	Contributions  []ContributionRecord
	// PriorYears holds up to three snapshots of the immediately preceding tax
	// years, in any order. Only years with UK scheme membership may be supplied.
	PriorYears []Snapshot
	// PriorFlexibleAccess is true when a flexible-access trigger event occurred
	// in the lookback window before this year.
	PriorFlexibleAccess bool
}

// CarryForwardCredit is one prior year's contribution to the carry-forward pool.
type CarryForwardCredit struct {
	Year     string      `json:"year"`
	Unused   money.Money `json:"unused"`
	Consumed money.Money `json:"consumed"`
}

// Snapshot is the allowance position for one tax year. It is derived, never
// persisted here, and recomputed on demand.
type Snapshot struct {
	Year               string      `json:"year"`
	GrossIncome        money.Money `json:"gross_income"`
	StatutoryAllowance money.Money `json:"statutory_allowance"`
	// TaperedAllowance is set only when the taper reduced the allowance.
	TaperedAllowance *money.Money `json:"tapered_allowance,omitempty"`

	MPAAApplies bool `json:"mpaa_applies"`
	// Sub-totals reported only when MPAAApplies, so a caller can distinguish
	// "exceeded MPAA but not the full allowance" from "exceeded the full allowance".
	MoneyPurchaseAllowance  *money.Money `json:"money_purchase_allowance,omitempty"`
	DefinedBenefitAllowance *money.Money `json:"defined_benefit_allowance,omitempty"`

	TotalContributions         money.Money `json:"total_contributions"`
	MoneyPurchaseContributions money.Money `json:"money_purchase_contributions"`

	// UnusedAllowance is max(0, current-year allowance - contributions): the
	// credit future years may carry forward. In MPAA trigger years the
	// money-purchase portion never creates carry-forward.
	UnusedAllowance money.Money `json:"unused_allowance"`

	CarryForwardAvailable money.Money          `json:"carry_forward_available"`
	CarryForwardByYear    []CarryForwardCredit `json:"carry_forward_by_year,omitempty"`
	// MissingPriorYears lists preceding tax years for which no snapshot was
	// supplied; carry-forward degrades gracefully rather than failing.
	MissingPriorYears []string `json:"missing_prior_years,omitempty"`

	// AvailableAllowance is the current-year allowance plus carry-forward.
	AvailableAllowance money.Money `json:"available_allowance"`
	// Headroom is AvailableAllowance minus contributions. A negative value is
	// reported, not clamped: the saver has genuinely exceeded the allowance.
	Headroom              money.Money `json:"headroom"`
	AllowanceExceeded     bool        `json:"allowance_exceeded"`
	MoneyPurchaseExceeded bool        `json:"money_purchase_exceeded"`
}

const maxCarryForwardYears = 3

var two = decimal.NewFromInt(2)

// Compute derives the allowance snapshot for the input year.
func Compute(rs rules.Ruleset, in Input) (Snapshot, error) {
	yearRules, err := rs.UKFor(in.Year)
	if err != nil {
		return Snapshot{}, err
	}

	if err := validate.CurrencyIs("gross income", in.GrossIncome, money.GBP); err != nil {
		return Snapshot{}, err
	}
	if err := validate.NonNegativeAmount("gross income", in.GrossIncome); err != nil {
		return Snapshot{}, err
	}
	if err := validateContributions(in.Year, in.Contributions); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Year:               in.Year.Label(),
		GrossIncome:        in.GrossIncome,
		StatutoryAllowance: yearRules.AnnualAllowance,
	}

	// Taper: £1 off for every £2 of adjusted income over the threshold, never
	// below the statutory floor.
	current := yearRules.AnnualAllowance
	adjusted := in.GrossIncome
	if in.AdjustedIncome != nil {
		adjusted = in.AdjustedIncome(in.GrossIncome)
	}
	if adjusted.GreaterThan(yearRules.TaperThreshold) {
		excess, err := adjusted.Sub(yearRules.TaperThreshold)
		if err != nil {
			return Snapshot{}, err
		}
		reduced, err := yearRules.AnnualAllowance.Sub(excess.Div(two))
		if err != nil {
			return Snapshot{}, err
		}
		current, err = money.Max(reduced, yearRules.TaperFloor)
		if err != nil {
			return Snapshot{}, err
		}
		tapered := current
		snap.TaperedAllowance = &tapered
	}

	// Usage totals.
	total := money.Zero(money.GBP)
	mpTotal := money.Zero(money.GBP)
	mpaaApplies := in.PriorFlexibleAccess
	for _, c := range in.Contributions {
		if total, err = total.Add(c.Amount); err != nil {
			return Snapshot{}, err
		}
		if c.MoneyPurchase {
			if mpTotal, err = mpTotal.Add(c.Amount); err != nil {
				return Snapshot{}, err
			}
		}
		if c.FlexibleAccess {
			mpaaApplies = true
		}
	}
	snap.TotalContributions = total
	snap.MoneyPurchaseContributions = mpTotal

	if mpaaApplies {
		snap.MPAAApplies = true
		mpAllowance, err := money.Min(yearRules.MPAA, current)
		if err != nil {
			return Snapshot{}, err
		}
		dbAllowance, err := current.Sub(mpAllowance)
		if err != nil {
			return Snapshot{}, err
		}
		snap.MoneyPurchaseAllowance = &mpAllowance
		snap.DefinedBenefitAllowance = &dbAllowance
		snap.MoneyPurchaseExceeded = mpTotal.GreaterThan(mpAllowance)
	}

	// Carry-forward pool from up to three preceding years, consumed oldest first.
	credits, missing, err := carryForward(in.Year, in.PriorYears)
	if err != nil {
		return Snapshot{}, err
	}
	snap.MissingPriorYears = missing

	pool := money.Zero(money.GBP)
	for _, c := range credits {
		if pool, err = pool.Add(c.Unused); err != nil {
			return Snapshot{}, err
		}
	}
	snap.CarryForwardAvailable = pool

	available, err := current.Add(pool)
	if err != nil {
		return Snapshot{}, err
	}
	snap.AvailableAllowance = available

	headroom, err := available.Sub(total)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Headroom = headroom
	snap.AllowanceExceeded = headroom.IsNegative()

	// Unused allowance for future carry-forward is measured against this year's
	// own allowance, not the carried pool. Money-purchase inputs in a trigger
	// year never create carry-forward.
	unusedBase := current
	unusedSpend := total
	if mpaaApplies {
		unusedBase = *snap.DefinedBenefitAllowance
		if unusedSpend, err = total.Sub(mpTotal); err != nil {
			return Snapshot{}, err
		}
	}
	unused, err := unusedBase.Sub(unusedSpend)
	if err != nil {
		return Snapshot{}, err
	}
	snap.UnusedAllowance = unused.FloorZero()

	snap.CarryForwardByYear = consumeOldestFirst(credits, total, current)

	return snap, nil
}

func validateContributions(year taxyear.TaxYear, recs []ContributionRecord) error {
	for i, c := range recs {
		name := fmt.Sprintf("contribution[%d]", i)
		if err := validate.CurrencyIs(name, c.Amount, money.GBP); err != nil {
			return err
		}
		if err := validate.NonNegativeAmount(name, c.Amount); err != nil {
			return err
		}
		if !year.Contains(c.Date) {
			return fmt.Errorf("%w: %s dated %s falls outside tax year %s",
				validate.ErrInvalidParameter, name, c.Date.Format("2006-01-02"), year)
		}
	}
	return nil
}

// carryForward orders the supplied prior snapshots oldest first and reports the
// labels of preceding years that were not supplied.
func carryForward(year taxyear.TaxYear, prior []Snapshot) ([]CarryForwardCredit, []string, error) {
	if len(prior) > maxCarryForwardYears {
		return nil, nil, fmt.Errorf("%w: at most %d prior-year snapshots may be supplied, got %d",
			validate.ErrInvalidParameter, maxCarryForwardYears, len(prior))
	}

	byLabel := make(map[string]Snapshot, len(prior))
	for _, s := range prior {
		if _, dup := byLabel[s.Year]; dup {
			return nil, nil, fmt.Errorf("%w: duplicate prior-year snapshot for %s",
				validate.ErrInvalidParameter, s.Year)
		}
		byLabel[s.Year] = s
	}

	// Walk the three preceding years oldest first.
	labels := make([]string, 0, maxCarryForwardYears)
	ty := year
	for i := 0; i < maxCarryForwardYears; i++ {
		ty = ty.Prev()
		labels = append([]string{ty.Label()}, labels...)
	}

	var credits []CarryForwardCredit
	var missing []string
	matched := 0
	for _, label := range labels {
		s, ok := byLabel[label]
		if !ok {
			missing = append(missing, label)
			continue
		}
		matched++
		credits = append(credits, CarryForwardCredit{Year: label, Unused: s.UnusedAllowance})
	}

	if matched != len(prior) {
		return nil, nil, fmt.Errorf("%w: prior-year snapshots must be from the %d tax years preceding %s",
			validate.ErrInvalidParameter, maxCarryForwardYears, year)
	}

	return credits, missing, nil
}

// consumeOldestFirst records how much of each carry-forward credit the current
// year's contributions consumed after the current-year allowance was exhausted.
func consumeOldestFirst(credits []CarryForwardCredit, used, current money.Money) []CarryForwardCredit {
	overflow, err := used.Sub(current)
	if err != nil {
		return credits
	}
	overflow = overflow.FloorZero()

	out := make([]CarryForwardCredit, len(credits))
	for i, c := range credits {
		consumed, merr := money.Min(overflow, c.Unused)
		if merr != nil {
			consumed = money.Zero(money.GBP)
		}
		c.Consumed = consumed
		if overflow, err = overflow.Sub(consumed); err != nil {
			overflow = money.Zero(money.GBP)
		}
		out[i] = c
	}
	return out
}
