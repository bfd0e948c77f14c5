package instructions

import (
	"context"
	"sort"

	"retirement-engine/internal/model"
	"retirement-engine/internal/rules"
)

// Handler defines the contract for all instruction implementations. Validate
// checks business rules against the current state; Apply performs the state
// change or calculation. Apply may itself raise messages, and a CRITICAL one
// aborts the run.
type Handler interface {
	Validate(state *model.Situation, instr *model.Instruction) []model.CalculationMessage
	Apply(ctx context.Context, state *model.Situation, instr *model.Instruction) []model.CalculationMessage
}

// Registry maps instruction definition names to handlers. Handlers that need
// fiscal rules receive the ruleset at construction; the registry itself is
// immutable after NewRegistry.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry(rs rules.Ruleset) *Registry {
	return &Registry{handlers: map[string]Handler{
		"create_plan":         &CreatePlanHandler{},
		"record_contribution": &RecordContributionHandler{},
		"add_pension_pot":     &AddPensionPotHandler{},
		"compute_allowance":   &ComputeAllowanceHandler{rules: rs},
		"compute_deduction":   &ComputeDeductionHandler{rules: rs},
		"project_income":      &ProjectIncomeHandler{},
		"drawdown_scenario":   &DrawdownScenarioHandler{},
		"annuity_quote":       &AnnuityQuoteHandler{rules: rs},
		"run_simulation":      &RunSimulationHandler{},
	}}
}

func (r *Registry) Get(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered definition names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
