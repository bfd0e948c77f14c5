package engine

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"retirement-engine/internal/instructions"
	"retirement-engine/internal/jsonpatch"
	"retirement-engine/internal/model"
	"retirement-engine/internal/rules"
)

// Engine processes calculation requests against a fixed fiscal ruleset.
type Engine struct {
	reg *instructions.Registry
}

func New(rs rules.Ruleset) *Engine {
	return &Engine{reg: instructions.NewRegistry(rs)}
}

// Process runs the request's instructions in order against a fresh situation.
// Each instruction is validated and then applied; a CRITICAL message aborts
// the run with outcome FAILURE, WARNING messages are collected and processing
// continues. Every applied instruction carries an RFC 6902 patch describing
// its effect on the situation.
func (e *Engine) Process(ctx context.Context, req *model.CalculationRequest) *model.CalculationResponse {
	start := time.Now()

	state := &model.Situation{Plan: nil}
	instrs := req.CalculationInstructions.Instructions

	var allMessages []model.CalculationMessage
	var processed []model.ProcessedInstruction
	outcome := model.OutcomeSuccess
	hasCritical := false

	// Track the last successfully applied instruction for end_situation.
	lastInstructionID := ""
	lastInstructionIndex := 0
	lastActualAt := ""
	firstActualAt := ""
	if len(instrs) > 0 {
		lastInstructionID = instrs[0].InstructionID
		lastActualAt = instrs[0].ActualAt
		firstActualAt = instrs[0].ActualAt
	}
	appliedAny := false

	before := snapshot(state)

	for i, instr := range instrs {
		if err := ctx.Err(); err != nil {
			msg := model.Critical("CALCULATION_CANCELLED", err.Error())
			msg.ID = len(allMessages)
			allMessages = append(allMessages, msg)
			processed = append(processed, model.ProcessedInstruction{
				Instruction:               instr,
				CalculationMessageIndexes: []int{msg.ID},
			})
			outcome = model.OutcomeFailure
			hasCritical = true
			break
		}

		handler, ok := e.reg.Get(instr.InstructionDefinitionName)
		if !ok {
			msg := model.Critical("UNKNOWN_INSTRUCTION",
				fmt.Sprintf("Unknown instruction: %s", instr.InstructionDefinitionName))
			msg.ID = len(allMessages)
			allMessages = append(allMessages, msg)
			processed = append(processed, model.ProcessedInstruction{
				Instruction:               instr,
				CalculationMessageIndexes: []int{msg.ID},
			})
			outcome = model.OutcomeFailure
			hasCritical = true
			break
		}

		validationMsgs := handler.Validate(state, &instr)
		var msgIndexes []int
		for _, vm := range validationMsgs {
			vm.ID = len(allMessages)
			allMessages = append(allMessages, vm)
			msgIndexes = append(msgIndexes, vm.ID)
			if vm.Level == model.LevelCritical {
				hasCritical = true
			}
		}

		if hasCritical {
			outcome = model.OutcomeFailure
			processed = append(processed, model.ProcessedInstruction{
				Instruction:               instr,
				CalculationMessageIndexes: msgIndexes,
			})
			break
		}

		applyMsgs := handler.Apply(ctx, state, &instr)
		for _, am := range applyMsgs {
			am.ID = len(allMessages)
			allMessages = append(allMessages, am)
			msgIndexes = append(msgIndexes, am.ID)
			if am.Level == model.LevelCritical {
				hasCritical = true
			}
		}

		after := snapshot(state)
		pi := model.ProcessedInstruction{
			Instruction:               instr,
			CalculationMessageIndexes: msgIndexes,
		}
		if !hasCritical {
			if ops := jsonpatch.Diff(before, after, ""); len(ops) > 0 {
				if b, err := json.Marshal(ops); err == nil {
					pi.SituationPatch = b
				}
			}
		}
		processed = append(processed, pi)
		before = after

		if hasCritical {
			outcome = model.OutcomeFailure
			break
		}

		lastInstructionID = instr.InstructionID
		lastInstructionIndex = i
		lastActualAt = instr.ActualAt
		appliedAny = true
	}

	endSituation := model.SituationEnvelope{
		InstructionID:    lastInstructionID,
		InstructionIndex: lastInstructionIndex,
		ActualAt:         lastActualAt,
		Situation:        *state,
	}

	// A critical before anything applied leaves the initial state in place.
	if hasCritical && !appliedAny {
		endSituation.Situation = model.Situation{Plan: nil}
	}

	elapsed := time.Since(start)
	now := time.Now().UTC()

	if allMessages == nil {
		allMessages = []model.CalculationMessage{}
	}
	if processed == nil {
		processed = []model.ProcessedInstruction{}
	}

	return &model.CalculationResponse{
		CalculationMetadata: model.CalculationMetadata{
			CalculationID:          uuid.New().String(),
			TenantID:               req.TenantID,
			CalculationStartedAt:   now.Add(-elapsed).Format(time.RFC3339),
			CalculationCompletedAt: now.Format(time.RFC3339),
			CalculationDurationMs:  elapsed.Milliseconds(),
			CalculationOutcome:     outcome,
		},
		CalculationResult: model.CalculationResult{
			Messages:     allMessages,
			Instructions: processed,
			EndSituation: endSituation,
			InitialSituation: model.InitialSituation{
				ActualAt:  firstActualAt,
				Situation: model.Situation{Plan: nil},
			},
		},
	}
}

// snapshot converts the situation into the generic JSON shape the patch
// differ operates on.
func snapshot(state *model.Situation) interface{} {
	b, err := json.Marshal(state)
	if err != nil {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	return v
}
