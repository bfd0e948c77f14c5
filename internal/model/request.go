package model

import "github.com/goccy/go-json"

type CalculationRequest struct {
	TenantID                string                  `json:"tenant_id"`
	CalculationInstructions CalculationInstructions `json:"calculation_instructions"`
}

type CalculationInstructions struct {
	Instructions []Instruction `json:"instructions"`
}

// Instruction is one ordered step of a calculation: creating a plan,
// recording facts about it, or asking for a derived result. Properties are
// decoded by the handler registered for the definition name.
type Instruction struct {
	InstructionID             string          `json:"instruction_id"`
	InstructionDefinitionName string          `json:"instruction_definition_name"`
	ActualAt                  string          `json:"actual_at"`
	PlanID                    string          `json:"plan_id,omitempty"`
	InstructionProperties     json.RawMessage `json:"instruction_properties"`
}
