package instructions

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"retirement-engine/internal/model"
	"retirement-engine/internal/projection"
)

type dbDefinitionProps struct {
	AccrualFraction   float64 `json:"accrual_fraction"`
	ServiceYears      float64 `json:"service_years"`
	PensionableSalary string  `json:"pensionable_salary"`
}

type addPensionPotProps struct {
	Name               string             `json:"name"`
	Kind               string             `json:"kind"`
	CurrentValue       string             `json:"current_value"`
	AnnualContribution string             `json:"annual_contribution"`
	GrowthRate         float64            `json:"growth_rate"`
	InflationRate      float64            `json:"inflation_rate"`
	DB                 *dbDefinitionProps `json:"db,omitempty"`
}

type AddPensionPotHandler struct{}

func (h *AddPensionPotHandler) Validate(state *model.Situation, instr *model.Instruction) []model.CalculationMessage {
	if state.Plan == nil {
		return []model.CalculationMessage{model.Critical("PLAN_NOT_FOUND", "No plan exists")}
	}

	var props addPensionPotProps
	if err := json.Unmarshal(instr.InstructionProperties, &props); err != nil {
		return []model.CalculationMessage{model.Critical("INVALID_PROPERTIES", err.Error())}
	}

	kind := projection.PotKind(props.Kind)
	if kind != projection.DefinedContribution && kind != projection.DefinedBenefit {
		return []model.CalculationMessage{model.Critical("INVALID_POT_KIND", "Pot kind must be DC or DB")}
	}

	currency := state.Plan.Currency()
	if v, err := parseAmount(props.CurrentValue, currency); err != nil || v.IsNegative() {
		return []model.CalculationMessage{model.Critical("INVALID_AMOUNT", "Current value must be a non-negative amount")}
	}
	if c, err := parseAmount(props.AnnualContribution, currency); err != nil || c.IsNegative() {
		return []model.CalculationMessage{model.Critical("INVALID_AMOUNT", "Annual contribution must be a non-negative amount")}
	}

	if kind == projection.DefinedBenefit {
		if props.DB == nil {
			return []model.CalculationMessage{model.Critical("INVALID_DB_DEFINITION", "A DB pot requires a db accrual definition")}
		}
		if s, err := parseAmount(props.DB.PensionableSalary, currency); err != nil || s.IsNegative() {
			return []model.CalculationMessage{model.Critical("INVALID_DB_DEFINITION", "Pensionable salary must be a non-negative amount")}
		}
	}

	// Duplicate name is suspicious but not fatal.
	var msgs []model.CalculationMessage
	for _, pot := range state.Plan.Pots {
		if pot.Name != "" && pot.Name == props.Name {
			msgs = append(msgs, model.Warning("DUPLICATE_POT",
				fmt.Sprintf("A pot named %q already exists", props.Name)))
			break
		}
	}

	return msgs
}

func (h *AddPensionPotHandler) Apply(ctx context.Context, state *model.Situation, instr *model.Instruction) []model.CalculationMessage {
	var props addPensionPotProps
	json.Unmarshal(instr.InstructionProperties, &props)

	currency := state.Plan.Currency()
	currentValue, _ := parseAmount(props.CurrentValue, currency)
	contribution, _ := parseAmount(props.AnnualContribution, currency)

	state.Plan.PotSeq++
	pot := projection.PensionPot{
		ID:                 fmt.Sprintf("%s-%d", state.Plan.PlanID, state.Plan.PotSeq),
		Name:               props.Name,
		Kind:               projection.PotKind(props.Kind),
		CurrentValue:       currentValue,
		AnnualContribution: contribution,
		GrowthRate:         decimal.NewFromFloat(props.GrowthRate),
		InflationRate:      decimal.NewFromFloat(props.InflationRate),
	}

	if props.DB != nil {
		salary, _ := parseAmount(props.DB.PensionableSalary, currency)
		pot.DB = &projection.DBDefinition{
			AccrualFraction:   decimal.NewFromFloat(props.DB.AccrualFraction),
			ServiceYears:      decimal.NewFromFloat(props.DB.ServiceYears),
			PensionableSalary: salary,
		}
	}

	state.Plan.Pots = append(state.Plan.Pots, pot)

	return nil
}
