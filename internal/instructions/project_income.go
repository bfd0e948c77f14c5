package instructions

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"retirement-engine/internal/model"
	"retirement-engine/internal/projection"
)

type projectIncomeProps struct {
	StatePension string `json:"state_pension"`
	CurrentAge   int    `json:"current_age"`
	// DrawdownRate converts projected DC value into income. Zero means the
	// calculator's default.
	DrawdownRate float64 `json:"drawdown_rate,omitempty"`
}

type ProjectIncomeHandler struct{}

func (h *ProjectIncomeHandler) Validate(state *model.Situation, instr *model.Instruction) []model.CalculationMessage {
	if state.Plan == nil {
		return []model.CalculationMessage{model.Critical("PLAN_NOT_FOUND", "No plan exists")}
	}
	if len(state.Plan.Pots) == 0 {
		return []model.CalculationMessage{model.Critical("NO_POTS", "Plan has no pension pots")}
	}

	var props projectIncomeProps
	if err := json.Unmarshal(instr.InstructionProperties, &props); err != nil {
		return []model.CalculationMessage{model.Critical("INVALID_PROPERTIES", err.Error())}
	}

	if sp, err := parseAmount(props.StatePension, state.Plan.Currency()); err != nil || sp.IsNegative() {
		return []model.CalculationMessage{model.Critical("INVALID_AMOUNT", "State pension must be a non-negative amount")}
	}
	if props.CurrentAge < 16 || props.CurrentAge > state.Plan.RetirementAge {
		return []model.CalculationMessage{model.Critical("INVALID_AGE",
			fmt.Sprintf("Current age must lie between 16 and the retirement age of %d", state.Plan.RetirementAge))}
	}

	return nil
}

func (h *ProjectIncomeHandler) Apply(ctx context.Context, state *model.Situation, instr *model.Instruction) []model.CalculationMessage {
	var props projectIncomeProps
	json.Unmarshal(instr.InstructionProperties, &props)

	statePension, _ := parseAmount(props.StatePension, state.Plan.Currency())

	result, err := projection.Project(projection.Input{
		Pots:          state.Plan.Pots,
		StatePension:  statePension,
		TargetIncome:  state.Plan.TargetIncome,
		CurrentAge:    props.CurrentAge,
		RetirementAge: state.Plan.RetirementAge,
		DrawdownRate:  decimal.NewFromFloat(props.DrawdownRate),
	})
	if err != nil {
		return []model.CalculationMessage{calculationError(err)}
	}

	state.Plan.Projection = &result

	if !result.OnTrack {
		return []model.CalculationMessage{model.Warning("INCOME_BELOW_TARGET",
			fmt.Sprintf("Projected income falls short of target by %s a year", result.GapOrSurplus.Abs()))}
	}
	return nil
}
