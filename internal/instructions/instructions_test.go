package instructions

import (
	"context"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"retirement-engine/internal/model"
	"retirement-engine/internal/money"
	"retirement-engine/internal/projection"
	"retirement-engine/internal/rules"
	"retirement-engine/internal/taxyear"
)

func propsInstr(name, props string) *model.Instruction {
	return &model.Instruction{
		InstructionID:             "i1",
		InstructionDefinitionName: name,
		ActualAt:                  "2024-01-01",
		InstructionProperties:     json.RawMessage(props),
	}
}

func ukPlan() *model.Situation {
	return &model.Situation{Plan: &model.Plan{
		PlanID:        "plan-1",
		Status:        model.PlanStatusActive,
		Jurisdiction:  taxyear.UK,
		TargetIncome:  money.MustParse("30000", money.GBP),
		RetirementAge: 67,
	}}
}

func firstCode(msgs []model.CalculationMessage) string {
	if len(msgs) == 0 {
		return ""
	}
	return msgs[0].Code
}

func TestRegistryNames(t *testing.T) {
	reg := NewRegistry(rules.Default())

	want := []string{
		"add_pension_pot", "annuity_quote", "compute_allowance",
		"compute_deduction", "create_plan", "drawdown_scenario",
		"project_income", "record_contribution", "run_simulation",
	}
	got := reg.Names()
	if len(got) != len(want) {
		t.Fatalf("expected %d handlers, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestCreatePlanValidation(t *testing.T) {
	h := &CreatePlanHandler{}

	cases := []struct {
		name  string
		props string
		code  string
	}{
		{"blank name", `{"name":"  ","birth_date":"1975-06-15","jurisdiction":"UK","target_income":"30000","retirement_age":67}`, "INVALID_NAME"},
		{"future birth date", `{"name":"Jane","birth_date":"2099-01-01","jurisdiction":"UK","target_income":"30000","retirement_age":67}`, "INVALID_BIRTH_DATE"},
		{"garbled birth date", `{"name":"Jane","birth_date":"15/06/1975","jurisdiction":"UK","target_income":"30000","retirement_age":67}`, "INVALID_BIRTH_DATE"},
		{"bad jurisdiction", `{"name":"Jane","birth_date":"1975-06-15","jurisdiction":"US","target_income":"30000","retirement_age":67}`, "INVALID_JURISDICTION"},
		{"negative target", `{"name":"Jane","birth_date":"1975-06-15","jurisdiction":"UK","target_income":"-1","retirement_age":67}`, "INVALID_TARGET_INCOME"},
		{"retirement too early", `{"name":"Jane","birth_date":"1975-06-15","jurisdiction":"UK","target_income":"30000","retirement_age":45}`, "INVALID_RETIREMENT_AGE"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msgs := h.Validate(&model.Situation{}, propsInstr("create_plan", tc.props))
			if firstCode(msgs) != tc.code {
				t.Fatalf("expected %s, got %v", tc.code, msgs)
			}
		})
	}

	if msgs := h.Validate(ukPlan(), propsInstr("create_plan", `{}`)); firstCode(msgs) != "PLAN_ALREADY_EXISTS" {
		t.Fatalf("expected PLAN_ALREADY_EXISTS, got %v", msgs)
	}
}

func TestRecordContributionValidation(t *testing.T) {
	h := &RecordContributionHandler{}

	if msgs := h.Validate(&model.Situation{}, propsInstr("record_contribution", `{}`)); firstCode(msgs) != "PLAN_NOT_FOUND" {
		t.Fatalf("expected PLAN_NOT_FOUND, got %v", msgs)
	}

	state := ukPlan()
	if msgs := h.Validate(state, propsInstr("record_contribution",
		`{"amount":"0","date":"2024-06-01","source":"EMPLOYEE"}`)); firstCode(msgs) != "INVALID_AMOUNT" {
		t.Fatalf("expected INVALID_AMOUNT for zero, got %v", msgs)
	}
	if msgs := h.Validate(state, propsInstr("record_contribution",
		`{"amount":"100","date":"June 2024","source":"EMPLOYEE"}`)); firstCode(msgs) != "INVALID_DATE" {
		t.Fatalf("expected INVALID_DATE, got %v", msgs)
	}
	if msgs := h.Validate(state, propsInstr("record_contribution",
		`{"amount":"100","date":"2024-06-01","source":"LOTTERY"}`)); firstCode(msgs) != "INVALID_SOURCE" {
		t.Fatalf("expected INVALID_SOURCE, got %v", msgs)
	}

	// And a valid record applies cleanly.
	props := propsInstr("record_contribution", `{"amount":"100","date":"2024-06-01","source":"EMPLOYEE","money_purchase":true}`)
	if msgs := h.Validate(state, props); len(msgs) != 0 {
		t.Fatalf("expected clean validation, got %v", msgs)
	}
	if msgs := h.Apply(context.Background(), state, props); len(msgs) != 0 {
		t.Fatalf("expected clean apply, got %v", msgs)
	}
	if len(state.Plan.Contributions) != 1 || !state.Plan.Contributions[0].MoneyPurchase {
		t.Fatalf("expected one money-purchase contribution, got %v", state.Plan.Contributions)
	}
}

func TestAddPensionPotDuplicateWarning(t *testing.T) {
	h := &AddPensionPotHandler{}
	state := ukPlan()

	props := propsInstr("add_pension_pot", `{
		"name": "Workplace DC",
		"kind": "DC",
		"current_value": "100000",
		"annual_contribution": "5000",
		"growth_rate": 0.05,
		"inflation_rate": 0.02
	}`)

	if msgs := h.Validate(state, props); len(msgs) != 0 {
		t.Fatalf("expected clean validation, got %v", msgs)
	}
	h.Apply(context.Background(), state, props)

	msgs := h.Validate(state, props)
	if len(msgs) != 1 || msgs[0].Code != "DUPLICATE_POT" || msgs[0].Level != model.LevelWarning {
		t.Fatalf("expected a DUPLICATE_POT warning, got %v", msgs)
	}

	// The warning does not block: a second apply assigns the next sequence ID.
	h.Apply(context.Background(), state, props)
	if len(state.Plan.Pots) != 2 {
		t.Fatalf("expected 2 pots, got %d", len(state.Plan.Pots))
	}
	if state.Plan.Pots[1].ID != "plan-1-2" {
		t.Fatalf("expected pot ID plan-1-2, got %s", state.Plan.Pots[1].ID)
	}
}

func TestAddPensionPotDBRequiresDefinition(t *testing.T) {
	h := &AddPensionPotHandler{}

	msgs := h.Validate(ukPlan(), propsInstr("add_pension_pot", `{
		"name": "Final salary",
		"kind": "DB",
		"current_value": "0",
		"annual_contribution": "0"
	}`))
	if firstCode(msgs) != "INVALID_DB_DEFINITION" {
		t.Fatalf("expected INVALID_DB_DEFINITION, got %v", msgs)
	}
}

func TestComputeAllowanceUnknownYear(t *testing.T) {
	h := &ComputeAllowanceHandler{rules: rules.Default()}

	msgs := h.Validate(ukPlan(), propsInstr("compute_allowance",
		`{"tax_year":"2010/11","gross_income":"90000"}`))
	if firstCode(msgs) != "UNKNOWN_TAX_YEAR" {
		t.Fatalf("expected UNKNOWN_TAX_YEAR, got %v", msgs)
	}

	msgs = h.Validate(ukPlan(), propsInstr("compute_allowance",
		`{"tax_year":"2024-25","gross_income":"90000"}`))
	if firstCode(msgs) != "INVALID_TAX_YEAR" {
		t.Fatalf("expected INVALID_TAX_YEAR for a bad label, got %v", msgs)
	}
}

func TestComputeAllowanceAdjustedIncomeOverride(t *testing.T) {
	h := &ComputeAllowanceHandler{rules: rules.Default()}
	state := ukPlan()

	// Gross income below the taper threshold, adjusted income well above.
	props := propsInstr("compute_allowance", `{
		"tax_year": "2024/25",
		"gross_income": "200000",
		"adjusted_income": "360000"
	}`)
	if msgs := h.Validate(state, props); len(msgs) != 0 {
		t.Fatalf("expected clean validation, got %v", msgs)
	}
	h.Apply(context.Background(), state, props)

	snap := state.Plan.AllowanceYears[0]
	if snap.TaperedAllowance == nil {
		t.Fatal("expected the taper to bite at adjusted income 360000")
	}
	// 60000 - (360000-260000)/2 = 10000.
	if snap.TaperedAllowance.Amount().String() != "10000" {
		t.Fatalf("expected tapered allowance 10000, got %s", snap.TaperedAllowance)
	}
}

func TestDrawdownScenarioPotFallback(t *testing.T) {
	state := ukPlan()
	state.Plan.Pots = []projection.PensionPot{
		{ID: "plan-1-1", Kind: projection.DefinedContribution, CurrentValue: money.MustParse("200000", money.GBP)},
		{ID: "plan-1-2", Kind: projection.DefinedBenefit, CurrentValue: money.Zero(money.GBP)},
		{ID: "plan-1-3", Kind: projection.DefinedContribution, CurrentValue: money.MustParse("50000", money.GBP)},
	}

	pot, ok := scenarioPot(state.Plan)
	if !ok {
		t.Fatal("expected a resolvable pot")
	}
	if pot.Amount().String() != "250000" {
		t.Fatalf("expected DC total 250000, got %s", pot)
	}

	// A stored projection takes precedence over the raw pot total.
	state.Plan.Projection = &projection.Result{ProjectedDCValue: money.MustParse("400000", money.GBP)}
	pot, _ = scenarioPot(state.Plan)
	if pot.Amount().String() != "400000" {
		t.Fatalf("expected projected value 400000, got %s", pot)
	}
}

func TestDrawdownScenarioNoPotValue(t *testing.T) {
	h := &DrawdownScenarioHandler{}

	msgs := h.Validate(ukPlan(), propsInstr("drawdown_scenario",
		`{"withdrawal_rate":0.04,"growth_rate":0.03}`))
	if firstCode(msgs) != "NO_POT_VALUE" {
		t.Fatalf("expected NO_POT_VALUE, got %v", msgs)
	}
}

func TestProjectIncomeValidation(t *testing.T) {
	h := &ProjectIncomeHandler{}

	if msgs := h.Validate(ukPlan(), propsInstr("project_income",
		`{"state_pension":"11500","current_age":40}`)); firstCode(msgs) != "NO_POTS" {
		t.Fatalf("expected NO_POTS, got %v", msgs)
	}

	state := ukPlan()
	state.Plan.Pots = []projection.PensionPot{{
		ID: "plan-1-1", Kind: projection.DefinedContribution,
		CurrentValue:       money.MustParse("100000", money.GBP),
		AnnualContribution: money.Zero(money.GBP),
		GrowthRate:         decimal.RequireFromString("0.05"),
		InflationRate:      decimal.RequireFromString("0.02"),
	}}
	if msgs := h.Validate(state, propsInstr("project_income",
		`{"state_pension":"11500","current_age":70}`)); firstCode(msgs) != "INVALID_AGE" {
		t.Fatalf("expected INVALID_AGE past retirement, got %v", msgs)
	}
}

func TestComputeDeductionDefaultsToRecordedContributions(t *testing.T) {
	h := &ComputeDeductionHandler{rules: rules.Default()}
	state := &model.Situation{Plan: &model.Plan{
		PlanID:        "plan-sa",
		Status:        model.PlanStatusActive,
		Jurisdiction:  taxyear.SA,
		TargetIncome:  money.MustParse("240000", money.ZAR),
		RetirementAge: 65,
	}}

	rec := &RecordContributionHandler{}
	rec.Apply(context.Background(), state, propsInstr("record_contribution",
		`{"amount":"48000","date":"2025-06-01","source":"EMPLOYEE"}`))
	rec.Apply(context.Background(), state, propsInstr("record_contribution",
		`{"amount":"48000","date":"2025-09-01","source":"EMPLOYER"}`))
	// Outside the 2026 SA year (starts 2025-03-01): not counted.
	rec.Apply(context.Background(), state, propsInstr("record_contribution",
		`{"amount":"10000","date":"2025-01-15","source":"PERSONAL"}`))

	props := propsInstr("compute_deduction", `{
		"tax_year": "2026",
		"remuneration": "500000",
		"marginal_rate": 0.31
	}`)
	if msgs := h.Validate(state, props); len(msgs) != 0 {
		t.Fatalf("expected clean validation, got %v", msgs)
	}
	h.Apply(context.Background(), state, props)

	if state.Plan.Deduction == nil {
		t.Fatal("expected a deduction result")
	}
	if state.Plan.Deduction.DeductionClaimed.Amount().String() != "96000" {
		t.Fatalf("expected claimed 96000 from recorded contributions, got %s", state.Plan.Deduction.DeductionClaimed)
	}
}

func TestRunSimulationCancelled(t *testing.T) {
	h := &RunSimulationHandler{}
	state := ukPlan()
	state.Plan.Pots = []projection.PensionPot{{
		ID: "plan-1-1", Kind: projection.DefinedContribution,
		CurrentValue: money.MustParse("500000", money.GBP),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	msgs := h.Apply(ctx, state, propsInstr("run_simulation", `{
		"annual_withdrawal": "20000",
		"horizon_years": 30,
		"trials": 1000,
		"seed": 7,
		"mean_return": 0.05,
		"return_std_dev": 0.12
	}`))
	if firstCode(msgs) != "SIMULATION_CANCELLED" {
		t.Fatalf("expected SIMULATION_CANCELLED, got %v", msgs)
	}
	if state.Plan.Simulation != nil {
		t.Fatal("expected no simulation result after cancellation")
	}
}
