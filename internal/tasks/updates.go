package tasks

import (
	"fmt"

	"github.com/desertthunder/ytrelay/internal/models"
)

// ProgressUpdate represents a progress event during a batch operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	Queue Phase = iota
	Resolve
	Resolved
	Failed
)

func (p Phase) String() string {
	switch p {
	case Queue:
		return "queue"
	case Resolve:
		return "resolve"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

func queueUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Queue,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Resolving %d sources...", total),
	}
}

func resolvingUpdate(step, total int, source string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Resolve,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Resolving: %s...", step, total, source),
	}
}

func resolvedUpdate(step, total int, resp *models.StreamResponse) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Resolved,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%s)", step, total, resp.Title, resp.CacheID),
		Data:    resp,
	}
}

func failedUpdate(step, total int, source string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Failed,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, source, err),
	}
}

// sendProgress sends without blocking; updates are dropped when the channel is full.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
