package projection_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retirement-engine/internal/money"
	"retirement-engine/internal/projection"
	"retirement-engine/internal/validate"
)

func gbp(units int64) money.Money {
	return money.FromInt(units, money.GBP)
}

func dcPot(value, contribution int64, growth, inflation string) projection.PensionPot {
	return projection.PensionPot{
		ID:                 "pot-1",
		Kind:               projection.DefinedContribution,
		CurrentValue:       gbp(value),
		AnnualContribution: gbp(contribution),
		GrowthRate:         decimal.RequireFromString(growth),
		InflationRate:      decimal.RequireFromString(inflation),
	}
}

func TestProject_SingleDCPot(t *testing.T) {
	// 100,000 at 5% growth, 0% inflation, 10,000 added yearly, 3 years:
	// y1: 100000*1.05 + 10000 = 115000
	// y2: 115000*1.05 + 10000 = 130750
	// y3: 130750*1.05 + 10000 = 147287.50
	res, err := projection.Project(projection.Input{
		Pots:          []projection.PensionPot{dcPot(100000, 10000, "0.05", "0")},
		StatePension:  gbp(0),
		TargetIncome:  gbp(10000),
		CurrentAge:    62,
		RetirementAge: 65,
	})
	require.NoError(t, err)

	require.Len(t, res.Trajectory, 4)
	assert.Equal(t, 62, res.Trajectory[0].Age)
	assert.True(t, res.Trajectory[0].Value.Equal(gbp(100000)))
	assert.True(t, res.Trajectory[1].Value.Equal(gbp(115000)))
	assert.True(t, res.Trajectory[2].Value.Equal(gbp(130750)))
	assert.True(t, res.ProjectedDCValue.Equal(money.MustParse("147287.50", money.GBP)))

	// Default 4% drawdown: 147287.50 × 0.04 = 5891.50.
	assert.True(t, res.DCIncome.Equal(money.MustParse("5891.50", money.GBP)))
	assert.True(t, res.GapOrSurplus.Equal(money.MustParse("-4108.50", money.GBP)))
	assert.False(t, res.OnTrack)
}

func TestProject_RealRateNetsInflation(t *testing.T) {
	// Growth equal to inflation means a flat real value.
	res, err := projection.Project(projection.Input{
		Pots:          []projection.PensionPot{dcPot(50000, 0, "0.03", "0.03")},
		StatePension:  gbp(0),
		TargetIncome:  gbp(0),
		CurrentAge:    60,
		RetirementAge: 64,
	})
	require.NoError(t, err)

	for _, p := range res.Trajectory {
		assert.Truef(t, p.Value.Equal(gbp(50000)), "age %d: value %s", p.Age, p.Value)
	}
}

func TestProject_DBPotConvertsWithoutCompounding(t *testing.T) {
	// 1/60 accrual × 30 years × 48,000 salary = 24,000 a year.
	db := projection.PensionPot{
		ID:   "db-1",
		Kind: projection.DefinedBenefit,
		DB: &projection.DBDefinition{
			AccrualFraction:   decimal.NewFromInt(1).Div(decimal.NewFromInt(60)),
			ServiceYears:      decimal.NewFromInt(30),
			PensionableSalary: gbp(48000),
		},
	}

	res, err := projection.Project(projection.Input{
		Pots:          []projection.PensionPot{db},
		StatePension:  gbp(11500),
		TargetIncome:  gbp(30000),
		CurrentAge:    55,
		RetirementAge: 67,
	})
	require.NoError(t, err)

	assert.True(t, res.DBIncome.Equal(gbp(24000)), "db income = %s", res.DBIncome)
	assert.True(t, res.TotalAnnualIncome.Equal(gbp(35500)))
	assert.True(t, res.GapOrSurplus.Equal(gbp(5500)))
	assert.True(t, res.OnTrack)

	// DB pots contribute nothing to the DC trajectory.
	for _, p := range res.Trajectory {
		assert.True(t, p.Value.IsZero())
	}
}

func TestProject_MixedPortfolio(t *testing.T) {
	db := projection.PensionPot{
		ID:   "db-1",
		Kind: projection.DefinedBenefit,
		DB: &projection.DBDefinition{
			AccrualFraction:   decimal.RequireFromString("0.0125"),
			ServiceYears:      decimal.NewFromInt(20),
			PensionableSalary: gbp(40000),
		},
	}

	res, err := projection.Project(projection.Input{
		Pots:          []projection.PensionPot{dcPot(200000, 0, "0.04", "0.02"), db},
		StatePension:  gbp(11500),
		TargetIncome:  gbp(25000),
		CurrentAge:    64,
		RetirementAge: 65,
		DrawdownRate:  decimal.RequireFromString("0.05"),
	})
	require.NoError(t, err)

	// DB: 0.0125 × 20 × 40000 = 10,000.
	assert.True(t, res.DBIncome.Equal(gbp(10000)))
	// DC value after one year at real rate (1.04/1.02 - 1), income at 5%.
	expectedDC := money.MustParse("203921.57", money.GBP)
	assert.True(t, res.ProjectedDCValue.Equal(expectedDC), "dc = %s", res.ProjectedDCValue)
	assert.True(t, res.OnTrack)
}

func TestProject_RetirementThisYear(t *testing.T) {
	res, err := projection.Project(projection.Input{
		Pots:          []projection.PensionPot{dcPot(100000, 10000, "0.05", "0")},
		StatePension:  gbp(0),
		TargetIncome:  gbp(0),
		CurrentAge:    65,
		RetirementAge: 65,
	})
	require.NoError(t, err)

	require.Len(t, res.Trajectory, 1)
	assert.True(t, res.ProjectedDCValue.Equal(gbp(100000)))
}

func TestProject_InvalidInputs(t *testing.T) {
	valid := dcPot(100000, 0, "0.05", "0.02")

	cases := []struct {
		name string
		in   projection.Input
	}{
		{"retirement before current age", projection.Input{
			Pots: []projection.PensionPot{valid}, StatePension: gbp(0), TargetIncome: gbp(0),
			CurrentAge: 60, RetirementAge: 55,
		}},
		{"drawdown rate too high", projection.Input{
			Pots: []projection.PensionPot{valid}, StatePension: gbp(0), TargetIncome: gbp(0),
			CurrentAge: 60, RetirementAge: 65, DrawdownRate: decimal.RequireFromString("0.09"),
		}},
		{"negative pot value", projection.Input{
			Pots:         []projection.PensionPot{dcPot(-1, 0, "0.05", "0")},
			StatePension: gbp(0), TargetIncome: gbp(0), CurrentAge: 60, RetirementAge: 65,
		}},
		{"db pot without definition", projection.Input{
			Pots:         []projection.PensionPot{{ID: "x", Kind: projection.DefinedBenefit}},
			StatePension: gbp(0), TargetIncome: gbp(0), CurrentAge: 60, RetirementAge: 65,
		}},
		{"unknown pot kind", projection.Input{
			Pots:         []projection.PensionPot{{ID: "x", Kind: projection.PotKind("ISA")}},
			StatePension: gbp(0), TargetIncome: gbp(0), CurrentAge: 60, RetirementAge: 65,
		}},
		{"mixed currencies", projection.Input{
			Pots:         []projection.PensionPot{valid},
			StatePension: money.FromInt(0, money.ZAR), TargetIncome: gbp(0),
			CurrentAge:   60, RetirementAge: 65,
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := projection.Project(tc.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, validate.ErrInvalidParameter)
		})
	}
}
