package tasks

import (
	"fmt"

	"github.com/desertthunder/multiverse/internal/models"
)

// ProgressUpdate represents a progress event during a discover or re-roll.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within the operation
	Total   int    // Total steps in the operation
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Preprocess Phase = iota
	Upload
	Submit
	CheckCredits
	SpendCredits
	Roll
	Reload
	Done
)

func (p Phase) String() string {
	switch p {
	case Preprocess:
		return "preprocess"
	case Upload:
		return "upload"
	case Submit:
		return "submit"
	case CheckCredits:
		return "check_credits"
	case SpendCredits:
		return "spend_credits"
	case Roll:
		return "roll"
	case Reload:
		return "reload"
	case Done:
		return "done"
	default:
		return ""
	}
}

func preprocessUpdate(step, total, size int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Preprocess,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Preparing source image (%d bytes)...", size),
	}
}

func uploadUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Upload,
		Step:    step,
		Total:   total,
		Message: "Uploading source image...",
	}
}

func submitUpdate(step, total, themes int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Submit,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Requesting %d themes...", themes),
	}
}

func checkCreditsUpdate(step, total, cost int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CheckCredits,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Checking balance (re-roll costs %d)...", cost),
	}
}

func spendCreditsUpdate(step, total, remaining int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SpendCredits,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Credits remaining: %d", remaining),
		Data:    remaining,
	}
}

func rollUpdate(step, total int, prev *models.GenerationJob) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Roll,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Rolling new themes for %s...", prev.SourceImageID),
	}
}

func reloadUpdate(step, total int, job *models.GenerationJob) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Reload,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Loading job %s (%d themes)...", job.RequestID, len(job.Images)),
	}
}

func doneUpdate(step, total int, job *models.GenerationJob) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Done,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("✓ Job %s is current", job.RequestID),
		Data:    job,
	}
}
