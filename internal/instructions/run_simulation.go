package instructions

import (
	"context"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"

	"retirement-engine/internal/model"
	"retirement-engine/internal/montecarlo"
)

type runSimulationProps struct {
	// InitialPot overrides the starting pot. Empty means the projected DC
	// value, falling back to the current DC pot total.
	InitialPot       string `json:"initial_pot,omitempty"`
	AnnualWithdrawal string `json:"annual_withdrawal"`
	StartAge         int    `json:"start_age,omitempty"`
	HorizonYears     int    `json:"horizon_years"`

	Trials        int     `json:"trials,omitempty"`
	Seed          *int64  `json:"seed,omitempty"`
	MeanReturn    float64 `json:"mean_return"`
	ReturnStdDev  float64 `json:"return_std_dev"`
	TargetSuccess float64 `json:"target_success,omitempty"`
}

type RunSimulationHandler struct{}

func (h *RunSimulationHandler) Validate(state *model.Situation, instr *model.Instruction) []model.CalculationMessage {
	if state.Plan == nil {
		return []model.CalculationMessage{model.Critical("PLAN_NOT_FOUND", "No plan exists")}
	}

	var props runSimulationProps
	if err := json.Unmarshal(instr.InstructionProperties, &props); err != nil {
		return []model.CalculationMessage{model.Critical("INVALID_PROPERTIES", err.Error())}
	}

	currency := state.Plan.Currency()
	if props.InitialPot != "" {
		if v, err := parseAmount(props.InitialPot, currency); err != nil || !v.IsPositive() {
			return []model.CalculationMessage{model.Critical("INVALID_AMOUNT", "Initial pot must be a positive amount")}
		}
	} else if _, ok := scenarioPot(state.Plan); !ok {
		return []model.CalculationMessage{model.Critical("NO_POT_VALUE", "Plan has no DC value to simulate; supply initial_pot")}
	}
	if w, err := parseAmount(props.AnnualWithdrawal, currency); err != nil || !w.IsPositive() {
		return []model.CalculationMessage{model.Critical("INVALID_AMOUNT", "Annual withdrawal must be a positive amount")}
	}
	if props.ReturnStdDev < 0 {
		return []model.CalculationMessage{model.Critical("INVALID_RETURN_MODEL", "Return standard deviation must be non-negative")}
	}

	return nil
}

func (h *RunSimulationHandler) Apply(ctx context.Context, state *model.Situation, instr *model.Instruction) []model.CalculationMessage {
	var props runSimulationProps
	json.Unmarshal(instr.InstructionProperties, &props)

	pot, _ := scenarioPot(state.Plan)
	if props.InitialPot != "" {
		pot, _ = parseAmount(props.InitialPot, state.Plan.Currency())
	}
	withdrawal, _ := parseAmount(props.AnnualWithdrawal, state.Plan.Currency())
	startAge := props.StartAge
	if startAge == 0 {
		startAge = state.Plan.RetirementAge
	}

	result, err := montecarlo.Simulate(ctx, montecarlo.Config{
		InitialPot:       pot,
		AnnualWithdrawal: withdrawal,
		StartAge:         startAge,
		HorizonYears:     props.HorizonYears,
		Trials:           props.Trials,
		Seed:             props.Seed,
		Model:            montecarlo.NormalReturns{Mean: props.MeanReturn, StdDev: props.ReturnStdDev},
		TargetSuccess:    props.TargetSuccess,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return []model.CalculationMessage{model.Critical("SIMULATION_CANCELLED", "Simulation was cancelled before completion")}
		}
		return []model.CalculationMessage{calculationError(err)}
	}

	state.Plan.Simulation = &result

	var msgs []model.CalculationMessage
	if result.SafeWithdrawalStatus == montecarlo.SWRNotDetermined {
		msgs = append(msgs, model.Warning("SWR_NOT_DETERMINED",
			"Safe withdrawal rate search could not bracket the target success probability"))
	}
	if result.WorstCaseDepletionAge != nil {
		msgs = append(msgs, model.Warning("DEPLETION_OBSERVED",
			fmt.Sprintf("%.1f%% of trials ran out of money; earliest at age %d",
				(1-result.SuccessProbability)*100, *result.WorstCaseDepletionAge)))
	}
	return msgs
}
