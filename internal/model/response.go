package model

import "github.com/goccy/go-json"

type CalculationResponse struct {
	CalculationMetadata CalculationMetadata `json:"calculation_metadata"`
	CalculationResult   CalculationResult   `json:"calculation_result"`
}

type CalculationMetadata struct {
	CalculationID          string `json:"calculation_id"`
	TenantID               string `json:"tenant_id"`
	CalculationStartedAt   string `json:"calculation_started_at"`
	CalculationCompletedAt string `json:"calculation_completed_at"`
	CalculationDurationMs  int64  `json:"calculation_duration_ms"`
	CalculationOutcome     string `json:"calculation_outcome"`
}

type CalculationResult struct {
	Messages         []CalculationMessage   `json:"messages"`
	Instructions     []ProcessedInstruction `json:"instructions"`
	EndSituation     SituationEnvelope      `json:"end_situation"`
	InitialSituation InitialSituation       `json:"initial_situation"`
}

// ProcessedInstruction echoes an instruction the engine applied, the indexes
// of any messages it raised, and an RFC 6902 patch describing how it changed
// the situation.
type ProcessedInstruction struct {
	Instruction               Instruction     `json:"instruction"`
	CalculationMessageIndexes []int           `json:"calculation_message_indexes,omitempty"`
	SituationPatch            json.RawMessage `json:"situation_patch,omitempty"`
}

type SituationEnvelope struct {
	InstructionID    string    `json:"instruction_id"`
	InstructionIndex int       `json:"instruction_index"`
	ActualAt         string    `json:"actual_at"`
	Situation        Situation `json:"situation"`
}

type InitialSituation struct {
	ActualAt  string    `json:"actual_at"`
	Situation Situation `json:"situation"`
}

const (
	OutcomeSuccess = "SUCCESS"
	OutcomeFailure = "FAILURE"
)
