package instructions

import (
	"context"
	"fmt"
	"sort"
	"strings"

	json "github.com/goccy/go-json"

	"retirement-engine/internal/allowance"
	"retirement-engine/internal/model"
	"retirement-engine/internal/money"
	"retirement-engine/internal/rules"
	"retirement-engine/internal/taxyear"
)

type computeAllowanceProps struct {
	TaxYear     string `json:"tax_year"`
	GrossIncome string `json:"gross_income"`
	// AdjustedIncome, when supplied, overrides the taper test's income figure
	// (gross income otherwise stands in for it).
	AdjustedIncome string `json:"adjusted_income,omitempty"`
}

type ComputeAllowanceHandler struct {
	rules rules.Ruleset
}

func (h *ComputeAllowanceHandler) Validate(state *model.Situation, instr *model.Instruction) []model.CalculationMessage {
	if state.Plan == nil {
		return []model.CalculationMessage{model.Critical("PLAN_NOT_FOUND", "No plan exists")}
	}
	if state.Plan.Jurisdiction != taxyear.UK {
		return []model.CalculationMessage{model.Critical("WRONG_JURISDICTION", "Annual allowance applies to UK plans only")}
	}

	var props computeAllowanceProps
	if err := json.Unmarshal(instr.InstructionProperties, &props); err != nil {
		return []model.CalculationMessage{model.Critical("INVALID_PROPERTIES", err.Error())}
	}

	ty, err := taxyear.FromLabel(taxyear.UK, props.TaxYear)
	if err != nil {
		return []model.CalculationMessage{model.Critical("INVALID_TAX_YEAR", err.Error())}
	}
	if _, err := h.rules.UKFor(ty); err != nil {
		return []model.CalculationMessage{model.Critical("UNKNOWN_TAX_YEAR", err.Error())}
	}

	if income, err := parseAmount(props.GrossIncome, money.GBP); err != nil || income.IsNegative() {
		return []model.CalculationMessage{model.Critical("INVALID_AMOUNT", "Gross income must be a non-negative amount")}
	}
	if props.AdjustedIncome != "" {
		if adj, err := parseAmount(props.AdjustedIncome, money.GBP); err != nil || adj.IsNegative() {
			return []model.CalculationMessage{model.Critical("INVALID_AMOUNT", "Adjusted income must be a non-negative amount")}
		}
	}

	return nil
}

func (h *ComputeAllowanceHandler) Apply(ctx context.Context, state *model.Situation, instr *model.Instruction) []model.CalculationMessage {
	var props computeAllowanceProps
	json.Unmarshal(instr.InstructionProperties, &props)

	ty, _ := taxyear.FromLabel(taxyear.UK, props.TaxYear)
	gross, _ := parseAmount(props.GrossIncome, money.GBP)

	in := allowance.Input{
		Year:                ty,
		GrossIncome:         gross,
		Contributions:       contributionsIn(state.Plan, ty),
		PriorYears:          priorSnapshots(state.Plan, ty),
		PriorFlexibleAccess: flexibleAccessBefore(state.Plan, ty),
	}
	if props.AdjustedIncome != "" {
		adjusted, _ := parseAmount(props.AdjustedIncome, money.GBP)
		in.AdjustedIncome = func(money.Money) money.Money { return adjusted }
	}

	snap, err := allowance.Compute(h.rules, in)
	if err != nil {
		return []model.CalculationMessage{calculationError(err)}
	}

	upsertSnapshot(state.Plan, snap)

	var msgs []model.CalculationMessage
	if len(snap.MissingPriorYears) > 0 {
		msgs = append(msgs, model.Warning("MISSING_PRIOR_YEARS",
			fmt.Sprintf("No allowance position for %s; carry-forward is understated", strings.Join(snap.MissingPriorYears, ", "))))
	}
	if snap.MoneyPurchaseExceeded {
		msgs = append(msgs, model.Warning("MPAA_EXCEEDED",
			fmt.Sprintf("Money-purchase contributions exceed the money purchase annual allowance in %s", snap.Year)))
	}
	if snap.AllowanceExceeded {
		msgs = append(msgs, model.Warning("ALLOWANCE_EXCEEDED",
			fmt.Sprintf("Contributions exceed the available allowance in %s by %s", snap.Year, snap.Headroom.Abs())))
	}
	return msgs
}

// contributionsIn selects the plan's contributions dated within the tax year.
func contributionsIn(plan *model.Plan, ty taxyear.TaxYear) []allowance.ContributionRecord {
	var recs []allowance.ContributionRecord
	for _, rec := range plan.Contributions {
		if ty.Contains(rec.Date) {
			recs = append(recs, rec)
		}
	}
	return recs
}

// priorSnapshots collects the stored positions of the three preceding tax
// years, where computed. Years never computed are simply absent; the
// calculator reports them as missing.
func priorSnapshots(plan *model.Plan, ty taxyear.TaxYear) []allowance.Snapshot {
	window := map[string]bool{}
	prev := ty
	for i := 0; i < 3; i++ {
		prev = prev.Prev()
		window[prev.Label()] = true
	}

	var prior []allowance.Snapshot
	for _, snap := range plan.AllowanceYears {
		if window[snap.Year] {
			prior = append(prior, snap)
		}
	}
	return prior
}

// flexibleAccessBefore reports whether any recorded contribution marks a
// flexible-access event dated before the start of the tax year.
func flexibleAccessBefore(plan *model.Plan, ty taxyear.TaxYear) bool {
	for _, rec := range plan.Contributions {
		if rec.FlexibleAccess && rec.Date.Before(ty.Start()) {
			return true
		}
	}
	return false
}

// upsertSnapshot replaces any previous position for the same year and keeps
// the list ordered by label.
func upsertSnapshot(plan *model.Plan, snap allowance.Snapshot) {
	for i, existing := range plan.AllowanceYears {
		if existing.Year == snap.Year {
			plan.AllowanceYears[i] = snap
			return
		}
	}
	plan.AllowanceYears = append(plan.AllowanceYears, snap)
	sort.Slice(plan.AllowanceYears, func(i, j int) bool {
		return plan.AllowanceYears[i].Year < plan.AllowanceYears[j].Year
	})
}
