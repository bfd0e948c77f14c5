package instructions

import (
	"context"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"retirement-engine/internal/deduction"
	"retirement-engine/internal/model"
	"retirement-engine/internal/money"
	"retirement-engine/internal/rules"
	"retirement-engine/internal/taxyear"
)

type computeDeductionProps struct {
	TaxYear      string `json:"tax_year"`
	Remuneration string `json:"remuneration"`
	// TotalContributions overrides the recorded contributions for the year,
	// for what-if runs. Empty means sum what the plan has recorded.
	TotalContributions string  `json:"total_contributions,omitempty"`
	MarginalRate       float64 `json:"marginal_rate"`
}

type ComputeDeductionHandler struct {
	rules rules.Ruleset
}

func (h *ComputeDeductionHandler) Validate(state *model.Situation, instr *model.Instruction) []model.CalculationMessage {
	if state.Plan == nil {
		return []model.CalculationMessage{model.Critical("PLAN_NOT_FOUND", "No plan exists")}
	}
	if state.Plan.Jurisdiction != taxyear.SA {
		return []model.CalculationMessage{model.Critical("WRONG_JURISDICTION", "Section 10C deduction applies to SA plans only")}
	}

	var props computeDeductionProps
	if err := json.Unmarshal(instr.InstructionProperties, &props); err != nil {
		return []model.CalculationMessage{model.Critical("INVALID_PROPERTIES", err.Error())}
	}

	if _, err := taxyear.FromLabel(taxyear.SA, props.TaxYear); err != nil {
		return []model.CalculationMessage{model.Critical("INVALID_TAX_YEAR", err.Error())}
	}
	if r, err := parseAmount(props.Remuneration, money.ZAR); err != nil || !r.IsPositive() {
		return []model.CalculationMessage{model.Critical("INVALID_AMOUNT", "Remuneration must be a positive amount")}
	}
	if props.TotalContributions != "" {
		if c, err := parseAmount(props.TotalContributions, money.ZAR); err != nil || c.IsNegative() {
			return []model.CalculationMessage{model.Critical("INVALID_AMOUNT", "Total contributions must be a non-negative amount")}
		}
	}
	if props.MarginalRate <= 0 || props.MarginalRate >= 1 {
		return []model.CalculationMessage{model.Critical("INVALID_MARGINAL_RATE", "Marginal rate must lie between 0 and 1")}
	}

	return nil
}

func (h *ComputeDeductionHandler) Apply(ctx context.Context, state *model.Situation, instr *model.Instruction) []model.CalculationMessage {
	var props computeDeductionProps
	json.Unmarshal(instr.InstructionProperties, &props)

	ty, _ := taxyear.FromLabel(taxyear.SA, props.TaxYear)
	remuneration, _ := parseAmount(props.Remuneration, money.ZAR)

	contributions := money.Zero(money.ZAR)
	if props.TotalContributions != "" {
		contributions, _ = parseAmount(props.TotalContributions, money.ZAR)
	} else {
		for _, rec := range state.Plan.Contributions {
			if ty.Contains(rec.Date) {
				contributions, _ = contributions.Add(rec.Amount)
			}
		}
	}

	result, err := deduction.Compute(h.rules, deduction.Input{
		Year:               ty,
		Remuneration:       remuneration,
		TotalContributions: contributions,
		MarginalRate:       decimal.NewFromFloat(props.MarginalRate),
	})
	if err != nil {
		return []model.CalculationMessage{calculationError(err)}
	}

	state.Plan.Deduction = &result

	var msgs []model.CalculationMessage
	if contributions.GreaterThan(result.MaxDeductible) {
		msgs = append(msgs, model.Warning("DEDUCTION_CAPPED",
			"Contributions exceed the deductible maximum; the excess attracts no deduction this year"))
	}
	return msgs
}
