package model

import (
	"retirement-engine/internal/allowance"
	"retirement-engine/internal/deduction"
	"retirement-engine/internal/drawdown"
	"retirement-engine/internal/money"
	"retirement-engine/internal/montecarlo"
	"retirement-engine/internal/projection"
	"retirement-engine/internal/taxyear"
)

// Situation is the state threaded through the instruction sequence. A nil
// Plan means no create_plan instruction has run yet.
type Situation struct {
	Plan *Plan `json:"plan"`
}

type Person struct {
	PersonID  string `json:"person_id"`
	Name      string `json:"name"`
	BirthDate string `json:"birth_date"`
}

// Plan is one saver's retirement plan: the recorded facts (contributions,
// pots) plus every derived result computed so far. Derived fields are
// overwritten on recomputation, never merged.
type Plan struct {
	PlanID        string               `json:"plan_id"`
	Status        string               `json:"status"`
	Jurisdiction  taxyear.Jurisdiction `json:"jurisdiction"`
	Person        Person               `json:"person"`
	TargetIncome  money.Money          `json:"target_income"`
	RetirementAge int                  `json:"retirement_age"`

	Contributions []allowance.ContributionRecord `json:"contributions,omitempty"`
	Pots          []projection.PensionPot        `json:"pots,omitempty"`
	PotSeq        int                            `json:"-"` // internal: next pot sequence number

	// AllowanceYears holds one snapshot per computed tax year, ordered by
	// label, so later compute_allowance runs can carry forward from them.
	AllowanceYears []allowance.Snapshot `json:"allowance_years,omitempty"`
	Deduction      *deduction.Result    `json:"deduction,omitempty"`
	Projection     *projection.Result   `json:"projection,omitempty"`
	Drawdowns      []drawdown.Result    `json:"drawdowns,omitempty"`
	Annuities      []drawdown.Quote     `json:"annuities,omitempty"`
	Simulation     *montecarlo.Result   `json:"simulation,omitempty"`
}

const PlanStatusActive = "ACTIVE"

// Currency returns the plan's home currency, fixed by jurisdiction.
func (p *Plan) Currency() money.Currency {
	if p.Jurisdiction == taxyear.SA {
		return money.ZAR
	}
	return money.GBP
}
