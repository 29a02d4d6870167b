package sim

import "multiverse-copilot-backend/models"

// validateState tracks where a model response stands in the validate/repair
// cycle. The cycle is explicit data flow, not error unwinding: a failed
// first parse produces a needs-repair value carrying the broken content and
// the reason, which the engine turns into exactly one repair call.
type validateState int

const (
	stateValid validateState = iota
	stateNeedsRepair
)

type validateOutcome struct {
	state  validateState
	result *models.SimulationResult
	broken string
	err    error
}

// validateSimulationPayload parses raw model content against the result
// schema and reports either a valid result or the material for one repair
// attempt.
func validateSimulationPayload(content string) validateOutcome {
	result, err := models.ParseSimulationResult([]byte(content))
	if err != nil {
		return validateOutcome{state: stateNeedsRepair, broken: content, err: err}
	}
	return validateOutcome{state: stateValid, result: result}
}
