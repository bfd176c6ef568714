package tasks

import "fmt"

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	LoadSettings Phase = iota
	RefreshConfigs
	Backfill
	Reconcile
	RunPolicies
	Substitute
	Notify
)

func (p Phase) String() string {
	switch p {
	case LoadSettings:
		return "load_settings"
	case RefreshConfigs:
		return "refresh_configs"
	case Backfill:
		return "backfill"
	case Reconcile:
		return "reconcile"
	case RunPolicies:
		return "run_policies"
	case Substitute:
		return "substitute"
	case Notify:
		return "notify"
	default:
		return ""
	}
}

func phaseUpdate(phase Phase, step, total int, message string) ProgressUpdate {
	return ProgressUpdate{Phase: phase, Step: step, Total: total, Message: message}
}

func playlistUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Reconcile,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Reconciling: %s", step, total, name),
	}
}

func automationUpdate(step, total int, playlistID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RunPolicies,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Applying policies: %s", step, total, playlistID),
	}
}

func substitutionUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Substitute,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Searching candidates: %s", step, total, title),
	}
}
