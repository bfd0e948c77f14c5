package instructions

import (
	"context"

	json "github.com/goccy/go-json"

	"retirement-engine/internal/allowance"
	"retirement-engine/internal/model"
)

type recordContributionProps struct {
	Amount         string `json:"amount"`
	Date           string `json:"date"`
	Source         string `json:"source"`
	MoneyPurchase  bool   `json:"money_purchase"`
	FlexibleAccess bool   `json:"flexible_access"`
}

type RecordContributionHandler struct{}

func (h *RecordContributionHandler) Validate(state *model.Situation, instr *model.Instruction) []model.CalculationMessage {
	if state.Plan == nil {
		return []model.CalculationMessage{model.Critical("PLAN_NOT_FOUND", "No plan exists")}
	}

	var props recordContributionProps
	if err := json.Unmarshal(instr.InstructionProperties, &props); err != nil {
		return []model.CalculationMessage{model.Critical("INVALID_PROPERTIES", err.Error())}
	}

	if amount, err := parseAmount(props.Amount, state.Plan.Currency()); err != nil || !amount.IsPositive() {
		return []model.CalculationMessage{model.Critical("INVALID_AMOUNT", "Contribution amount must be a positive amount")}
	}

	if _, ok := fastParseDate(props.Date); !ok {
		return []model.CalculationMessage{model.Critical("INVALID_DATE", "Contribution date must be YYYY-MM-DD")}
	}

	switch allowance.ContributionSource(props.Source) {
	case allowance.SourceEmployee, allowance.SourceEmployer, allowance.SourcePersonal:
	default:
		return []model.CalculationMessage{model.Critical("INVALID_SOURCE", "Source must be EMPLOYEE, EMPLOYER or PERSONAL")}
	}

	return nil
}

func (h *RecordContributionHandler) Apply(ctx context.Context, state *model.Situation, instr *model.Instruction) []model.CalculationMessage {
	var props recordContributionProps
	json.Unmarshal(instr.InstructionProperties, &props)

	amount, _ := parseAmount(props.Amount, state.Plan.Currency())
	date, _ := fastParseDate(props.Date)

	state.Plan.Contributions = append(state.Plan.Contributions, allowance.ContributionRecord{
		Amount:         amount,
		Date:           date,
		Source:         allowance.ContributionSource(props.Source),
		MoneyPurchase:  props.MoneyPurchase,
		FlexibleAccess: props.FlexibleAccess,
	})

	return nil
}
