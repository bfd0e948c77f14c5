package instructions

import (
	"context"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"retirement-engine/internal/drawdown"
	"retirement-engine/internal/model"
	"retirement-engine/internal/rules"
)

type annuityQuoteProps struct {
	// PotValue overrides the purchase amount. Empty means the projected DC
	// value, falling back to the current DC pot total.
	PotValue        string   `json:"pot_value,omitempty"`
	AnnuityRate     float64  `json:"annuity_rate"`
	SpouseProvision bool     `json:"spouse_provision"`
	EscalationRate  *float64 `json:"escalation_rate,omitempty"`
}

type AnnuityQuoteHandler struct {
	rules rules.Ruleset
}

func (h *AnnuityQuoteHandler) Validate(state *model.Situation, instr *model.Instruction) []model.CalculationMessage {
	if state.Plan == nil {
		return []model.CalculationMessage{model.Critical("PLAN_NOT_FOUND", "No plan exists")}
	}

	var props annuityQuoteProps
	if err := json.Unmarshal(instr.InstructionProperties, &props); err != nil {
		return []model.CalculationMessage{model.Critical("INVALID_PROPERTIES", err.Error())}
	}

	if props.PotValue != "" {
		if v, err := parseAmount(props.PotValue, state.Plan.Currency()); err != nil || !v.IsPositive() {
			return []model.CalculationMessage{model.Critical("INVALID_AMOUNT", "Pot value must be a positive amount")}
		}
	} else if _, ok := scenarioPot(state.Plan); !ok {
		return []model.CalculationMessage{model.Critical("NO_POT_VALUE", "Plan has no DC value to annuitize; supply pot_value")}
	}

	return nil
}

func (h *AnnuityQuoteHandler) Apply(ctx context.Context, state *model.Situation, instr *model.Instruction) []model.CalculationMessage {
	var props annuityQuoteProps
	json.Unmarshal(instr.InstructionProperties, &props)

	pot, _ := scenarioPot(state.Plan)
	if props.PotValue != "" {
		pot, _ = parseAmount(props.PotValue, state.Plan.Currency())
	}

	in := drawdown.AnnuityInput{
		PotValue:        pot,
		AnnuityRate:     decimal.NewFromFloat(props.AnnuityRate),
		SpouseProvision: props.SpouseProvision,
	}
	if props.EscalationRate != nil {
		esc := decimal.NewFromFloat(*props.EscalationRate)
		in.EscalationRate = &esc
	}

	quote, err := drawdown.AnnuityQuote(h.rules, in)
	if err != nil {
		return []model.CalculationMessage{calculationError(err)}
	}

	state.Plan.Annuities = append(state.Plan.Annuities, quote)

	return nil
}
