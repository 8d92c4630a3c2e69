package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a replay.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Replay phase
	Step    int    // Current step number, 1-based
	Total   int    // Total steps in the script
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Replay phase enumeration
type Phase int

const (
	PhaseLoadScript Phase = iota
	RunStep
	CheckExpectation
	Complete
)

func (p Phase) String() string {
	switch p {
	case PhaseLoadScript:
		return "load_script"
	case RunStep:
		return "run_step"
	case CheckExpectation:
		return "check_expectation"
	case Complete:
		return "complete"
	default:
		return ""
	}
}

func loadScriptUpdate(total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseLoadScript,
		Total:   total,
		Message: fmt.Sprintf("Replaying %q (%d steps)...", name, total),
	}
}

func runStepUpdate(step, total int, s Step) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RunStep,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, s),
	}
}

func checkUpdate(step, total int, failures []string) ProgressUpdate {
	if len(failures) == 0 {
		return ProgressUpdate{
			Phase:   CheckExpectation,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✓ expectations met", step, total),
		}
	}
	return ProgressUpdate{
		Phase:   CheckExpectation,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %d expectation(s) failed", step, total, len(failures)),
		Data:    failures,
	}
}

func completeUpdate(total int, result *ReplayResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Complete,
		Step:    total,
		Total:   total,
		Message: fmt.Sprintf("Replay finished: %d checks, %d failed", result.Checks, len(result.Failures)),
		Data:    result,
	}
}
