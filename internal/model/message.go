package model

// CalculationMessage is one leveled diagnostic produced while processing an
// instruction. IDs index into the response's flat message list.
type CalculationMessage struct {
	ID      int    `json:"id"`
	Level   string `json:"level"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	LevelCritical = "CRITICAL"
	LevelWarning  = "WARNING"
)

// Critical builds a CRITICAL message; the engine stops after the instruction
// that produced it.
func Critical(code, message string) CalculationMessage {
	return CalculationMessage{Level: LevelCritical, Code: code, Message: message}
}

// Warning builds a WARNING message; processing continues.
func Warning(code, message string) CalculationMessage {
	return CalculationMessage{Level: LevelWarning, Code: code, Message: message}
}
