// Package projection turns a portfolio of pension pots into a retirement income
// forecast. Defined-contribution pots are compounded forward to retirement at
// the growth assumption net of inflation; defined-benefit entitlements convert
// an accrual formula straight into annual income.
package projection

import (
	"fmt"

	"github.com/shopspring/decimal"

	"retirement-engine/internal/money"
	"retirement-engine/internal/validate"
)

// PotKind distinguishes defined-contribution from defined-benefit pensions.
type PotKind string

const (
	DefinedContribution PotKind = "DC"
	DefinedBenefit      PotKind = "DB"
)

// DBDefinition is the accrual formula of a defined-benefit pension:
// income = AccrualFraction × ServiceYears × PensionableSalary.
type DBDefinition struct {
	AccrualFraction   decimal.Decimal `json:"accrual_fraction"`
	ServiceYears      decimal.Decimal `json:"service_years"`
	PensionableSalary money.Money     `json:"pensionable_salary"`
}

// PensionPot is one pension product's state at calculation time. Owned by the
// caller and passed by value.
type PensionPot struct {
	ID   string  `json:"id"`
	Name string  `json:"name,omitempty"`
	Kind PotKind `json:"kind"`

	CurrentValue       money.Money     `json:"current_value"`
	AnnualContribution money.Money     `json:"annual_contribution"`
	GrowthRate         decimal.Decimal `json:"growth_rate"`
	InflationRate      decimal.Decimal `json:"inflation_rate"`

	DB *DBDefinition `json:"db,omitempty"`
}

// Input is one projection request.
type Input struct {
	Pots          []PensionPot
	StatePension  money.Money // annual amount from state pension age
	TargetIncome  money.Money
	CurrentAge    int
	RetirementAge int
	// DrawdownRate converts the projected DC value into income. Zero means the
	// default of 4%; a supplied rate must lie within [2%, 8%].
	DrawdownRate decimal.Decimal
}

// TrajectoryPoint is the aggregate defined-contribution value at one age.
type TrajectoryPoint struct {
	Age   int         `json:"age"`
	Value money.Money `json:"value"`
}

// Result is the income forecast.
type Result struct {
	Trajectory []TrajectoryPoint `json:"trajectory"`

	ProjectedDCValue money.Money `json:"projected_dc_value"`
	DCIncome         money.Money `json:"dc_income"`
	DBIncome         money.Money `json:"db_income"`
	StatePension     money.Money `json:"state_pension"`

	TotalAnnualIncome money.Money `json:"total_annual_income"`
	TargetIncome      money.Money `json:"target_income"`
	GapOrSurplus      money.Money `json:"gap_or_surplus"`
	OnTrack           bool        `json:"on_track"`
}

var (
	one                 = decimal.NewFromInt(1)
	defaultDrawdownRate = decimal.RequireFromString("0.04")
	minDrawdownRate     = decimal.RequireFromString("0.02")
	maxDrawdownRate     = decimal.RequireFromString("0.08")
)

// Project compounds the portfolio forward to retirement and compares the
// resulting income against the target.
func Project(in Input) (Result, error) {
	if err := validate.IntBetween("current age", in.CurrentAge, 16, 100); err != nil {
		return Result{}, err
	}
	if err := validate.IntBetween("retirement age", in.RetirementAge, in.CurrentAge, 100); err != nil {
		return Result{}, err
	}

	rate := in.DrawdownRate
	if rate.IsZero() {
		rate = defaultDrawdownRate
	}
	if err := validate.RateBetween("drawdown rate", rate, minDrawdownRate, maxDrawdownRate); err != nil {
		return Result{}, err
	}

	currency := in.TargetIncome.Currency()
	if err := validate.NonNegativeAmount("target income", in.TargetIncome); err != nil {
		return Result{}, err
	}
	if err := validate.CurrencyIs("state pension", in.StatePension, currency); err != nil {
		return Result{}, err
	}
	if err := validate.NonNegativeAmount("state pension", in.StatePension); err != nil {
		return Result{}, err
	}

	for i, pot := range in.Pots {
		if err := validatePot(i, pot, currency); err != nil {
			return Result{}, err
		}
	}

	years := in.RetirementAge - in.CurrentAge

	// DC pots: per-pot compounding at the real rate, contributions added at the
	// end of each year; the trajectory reports the aggregate by age.
	values := make([]money.Money, len(in.Pots))
	for i, pot := range in.Pots {
		values[i] = pot.CurrentValue
	}

	trajectory := make([]TrajectoryPoint, 0, years+1)
	point, err := aggregateDC(in.Pots, values, currency)
	if err != nil {
		return Result{}, err
	}
	trajectory = append(trajectory, TrajectoryPoint{Age: in.CurrentAge, Value: point})

	for y := 1; y <= years; y++ {
		for i, pot := range in.Pots {
			if pot.Kind != DefinedContribution {
				continue
			}
			grown := values[i].Mul(one.Add(realRate(pot)))
			values[i], err = grown.Add(pot.AnnualContribution)
			if err != nil {
				return Result{}, err
			}
		}
		point, err = aggregateDC(in.Pots, values, currency)
		if err != nil {
			return Result{}, err
		}
		trajectory = append(trajectory, TrajectoryPoint{Age: in.CurrentAge + y, Value: point})
	}

	dcValue := trajectory[len(trajectory)-1].Value

	// DB entitlements: accrual formula straight to income, no compounding.
	dbIncome := money.Zero(currency)
	for _, pot := range in.Pots {
		if pot.Kind != DefinedBenefit {
			continue
		}
		income := pot.DB.PensionableSalary.Mul(pot.DB.AccrualFraction).Mul(pot.DB.ServiceYears)
		if dbIncome, err = dbIncome.Add(income); err != nil {
			return Result{}, err
		}
	}

	dcIncome := dcValue.Mul(rate).Round(2)

	total, err := in.StatePension.Add(dbIncome)
	if err != nil {
		return Result{}, err
	}
	if total, err = total.Add(dcIncome); err != nil {
		return Result{}, err
	}

	gap, err := total.Sub(in.TargetIncome)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Trajectory:        trajectory,
		ProjectedDCValue:  dcValue,
		DCIncome:          dcIncome,
		DBIncome:          dbIncome.Round(2),
		StatePension:      in.StatePension,
		TotalAnnualIncome: total.Round(2),
		TargetIncome:      in.TargetIncome,
		GapOrSurplus:      gap.Round(2),
		OnTrack:           !gap.IsNegative(),
	}, nil
}

// realRate is the growth assumption net of inflation: (1+g)/(1+i) - 1.
func realRate(pot PensionPot) decimal.Decimal {
	return one.Add(pot.GrowthRate).Div(one.Add(pot.InflationRate)).Sub(one)
}

func aggregateDC(pots []PensionPot, values []money.Money, currency money.Currency) (money.Money, error) {
	total := money.Zero(currency)
	var err error
	for i, pot := range pots {
		if pot.Kind != DefinedContribution {
			continue
		}
		if total, err = total.Add(values[i].Round(2)); err != nil {
			return money.Money{}, err
		}
	}
	return total, nil
}

func validatePot(i int, pot PensionPot, currency money.Currency) error {
	name := fmt.Sprintf("pot[%d]", i)

	switch pot.Kind {
	case DefinedContribution:
		if err := validate.CurrencyIs(name+" value", pot.CurrentValue, currency); err != nil {
			return err
		}
		if err := validate.NonNegativeAmount(name+" value", pot.CurrentValue); err != nil {
			return err
		}
		if err := validate.CurrencyIs(name+" contribution", pot.AnnualContribution, currency); err != nil {
			return err
		}
		return validate.NonNegativeAmount(name+" contribution", pot.AnnualContribution)
	case DefinedBenefit:
		if pot.DB == nil {
			return fmt.Errorf("%w: %s is defined benefit but has no accrual definition",
				validate.ErrInvalidParameter, name)
		}
		if err := validate.CurrencyIs(name+" pensionable salary", pot.DB.PensionableSalary, currency); err != nil {
			return err
		}
		if err := validate.NonNegativeAmount(name+" pensionable salary", pot.DB.PensionableSalary); err != nil {
			return err
		}
		if pot.DB.AccrualFraction.IsNegative() || pot.DB.ServiceYears.IsNegative() {
			return fmt.Errorf("%w: %s accrual fraction and service years must not be negative",
				validate.ErrInvalidParameter, name)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s has unknown kind %q", validate.ErrInvalidParameter, name, pot.Kind)
	}
}
