package instructions

import (
	"context"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"retirement-engine/internal/model"
	"retirement-engine/internal/money"
	"retirement-engine/internal/taxyear"
)

type createPlanProps struct {
	PlanID        string `json:"plan_id"`
	PersonID      string `json:"person_id"`
	Name          string `json:"name"`
	BirthDate     string `json:"birth_date"`
	Jurisdiction  string `json:"jurisdiction"`
	TargetIncome  string `json:"target_income"`
	RetirementAge int    `json:"retirement_age"`
}

type CreatePlanHandler struct{}

func (h *CreatePlanHandler) Validate(state *model.Situation, instr *model.Instruction) []model.CalculationMessage {
	if state.Plan != nil {
		return []model.CalculationMessage{model.Critical("PLAN_ALREADY_EXISTS", "A plan already exists")}
	}

	var props createPlanProps
	if err := json.Unmarshal(instr.InstructionProperties, &props); err != nil {
		return []model.CalculationMessage{model.Critical("INVALID_PROPERTIES", err.Error())}
	}

	if strings.TrimSpace(props.Name) == "" {
		return []model.CalculationMessage{model.Critical("INVALID_NAME", "Name is empty or blank")}
	}

	if birth, ok := fastParseDate(props.BirthDate); !ok || birth.After(time.Now()) {
		return []model.CalculationMessage{model.Critical("INVALID_BIRTH_DATE", "Birth date is invalid or in the future")}
	}

	if !taxyear.Jurisdiction(props.Jurisdiction).Valid() {
		return []model.CalculationMessage{model.Critical("INVALID_JURISDICTION", "Jurisdiction must be UK or SA")}
	}

	currency := currencyFor(taxyear.Jurisdiction(props.Jurisdiction))
	if target, err := parseAmount(props.TargetIncome, currency); err != nil || target.IsNegative() {
		return []model.CalculationMessage{model.Critical("INVALID_TARGET_INCOME", "Target income must be a non-negative amount")}
	}

	if props.RetirementAge < 55 || props.RetirementAge > 75 {
		return []model.CalculationMessage{model.Critical("INVALID_RETIREMENT_AGE", "Retirement age must be between 55 and 75")}
	}

	return nil
}

func (h *CreatePlanHandler) Apply(ctx context.Context, state *model.Situation, instr *model.Instruction) []model.CalculationMessage {
	var props createPlanProps
	json.Unmarshal(instr.InstructionProperties, &props)

	jurisdiction := taxyear.Jurisdiction(props.Jurisdiction)
	target, _ := parseAmount(props.TargetIncome, currencyFor(jurisdiction))

	state.Plan = &model.Plan{
		PlanID:       props.PlanID,
		Status:       model.PlanStatusActive,
		Jurisdiction: jurisdiction,
		Person: model.Person{
			PersonID:  props.PersonID,
			Name:      props.Name,
			BirthDate: props.BirthDate,
		},
		TargetIncome:  target,
		RetirementAge: props.RetirementAge,
	}

	return nil
}

func currencyFor(j taxyear.Jurisdiction) money.Currency {
	if j == taxyear.SA {
		return money.ZAR
	}
	return money.GBP
}
