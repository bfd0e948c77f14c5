package instructions

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"retirement-engine/internal/drawdown"
	"retirement-engine/internal/model"
	"retirement-engine/internal/money"
	"retirement-engine/internal/projection"
)

type drawdownScenarioProps struct {
	// PotValue overrides the pot the scenario starts from. Empty means the
	// projected DC value, falling back to the current DC pot total.
	PotValue       string  `json:"pot_value,omitempty"`
	StartAge       int     `json:"start_age,omitempty"`
	WithdrawalRate float64 `json:"withdrawal_rate"`
	GrowthRate     float64 `json:"growth_rate"`
}

type DrawdownScenarioHandler struct{}

func (h *DrawdownScenarioHandler) Validate(state *model.Situation, instr *model.Instruction) []model.CalculationMessage {
	if state.Plan == nil {
		return []model.CalculationMessage{model.Critical("PLAN_NOT_FOUND", "No plan exists")}
	}

	var props drawdownScenarioProps
	if err := json.Unmarshal(instr.InstructionProperties, &props); err != nil {
		return []model.CalculationMessage{model.Critical("INVALID_PROPERTIES", err.Error())}
	}

	if props.PotValue != "" {
		if v, err := parseAmount(props.PotValue, state.Plan.Currency()); err != nil || !v.IsPositive() {
			return []model.CalculationMessage{model.Critical("INVALID_AMOUNT", "Pot value must be a positive amount")}
		}
	} else if _, ok := scenarioPot(state.Plan); !ok {
		return []model.CalculationMessage{model.Critical("NO_POT_VALUE", "Plan has no DC value to draw from; supply pot_value")}
	}

	return nil
}

func (h *DrawdownScenarioHandler) Apply(ctx context.Context, state *model.Situation, instr *model.Instruction) []model.CalculationMessage {
	var props drawdownScenarioProps
	json.Unmarshal(instr.InstructionProperties, &props)

	pot, _ := scenarioPot(state.Plan)
	if props.PotValue != "" {
		pot, _ = parseAmount(props.PotValue, state.Plan.Currency())
	}
	startAge := props.StartAge
	if startAge == 0 {
		startAge = state.Plan.RetirementAge
	}

	result, err := drawdown.Scenario(drawdown.Input{
		PotValue:       pot,
		StartAge:       startAge,
		WithdrawalRate: decimal.NewFromFloat(props.WithdrawalRate),
		GrowthRate:     decimal.NewFromFloat(props.GrowthRate),
	})
	if err != nil {
		return []model.CalculationMessage{calculationError(err)}
	}

	state.Plan.Drawdowns = append(state.Plan.Drawdowns, result)

	if result.DepletionAge != nil {
		return []model.CalculationMessage{model.Warning("POT_DEPLETED",
			fmt.Sprintf("Pot runs out at age %d at this withdrawal rate", *result.DepletionAge))}
	}
	return nil
}

// scenarioPot resolves the pot a drawdown or annuity starts from: the
// projected DC value when a projection has run, otherwise the current DC
// total.
func scenarioPot(plan *model.Plan) (money.Money, bool) {
	if plan.Projection != nil && plan.Projection.ProjectedDCValue.IsPositive() {
		return plan.Projection.ProjectedDCValue, true
	}
	total := money.Zero(plan.Currency())
	for _, pot := range plan.Pots {
		if pot.Kind != projection.DefinedContribution {
			continue
		}
		total, _ = total.Add(pot.CurrentValue)
	}
	return total, total.IsPositive()
}
