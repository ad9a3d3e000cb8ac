package monitor

import (
	"time"

	"github.com/jonwraymond/toolengine/tool"
)

// ExecutionRecord describes one finished attempt. Records are never
// modified after they are appended to the history.
type ExecutionRecord struct {
	ToolName    string         `json:"toolName"`
	ExecutionID string         `json:"executionId"`
	StartTime   time.Time      `json:"startTime"`
	EndTime     time.Time      `json:"endTime"`
	DurationMs  int64          `json:"durationMs"`
	Succeeded   bool           `json:"succeeded"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Outcome     tool.Outcome   `json:"outcome"`

	// ErrorMessage is empty for successful attempts.
	ErrorMessage string `json:"errorMessage,omitempty"`

	// Resources is nil unless resource tracking was enabled and the tool
	// finished before being interrupted.
	Resources *ResourceDelta `json:"resourceDelta,omitempty"`

	WasCancelled bool `json:"wasCancelled"`
	WasTimedOut  bool `json:"wasTimedOut"`
}

// Status summarizes how an attempt ended.
type Status string

// Attempt statuses.
const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
	StatusCancelled Status = "cancelled"
)

// Status derives the attempt's status from its flags. Interruption takes
// precedence over the outcome.
func (r ExecutionRecord) Status() Status {
	switch {
	case r.WasTimedOut:
		return StatusTimedOut
	case r.WasCancelled:
		return StatusCancelled
	case r.Succeeded:
		return StatusSucceeded
	default:
		return StatusFailed
	}
}

// Duration returns the attempt's wall-clock duration.
func (r ExecutionRecord) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// ResourceDelta holds the resource snapshots taken around an attempt.
type ResourceDelta struct {
	MemoryBeforeBytes uint64  `json:"memoryBeforeBytes"`
	MemoryAfterBytes  uint64  `json:"memoryAfterBytes"`
	CPUPercent        float64 `json:"cpuPercent"`
}

// MemoryDelta returns the signed change in memory.
func (d ResourceDelta) MemoryDelta() int64 {
	return int64(d.MemoryAfterBytes) - int64(d.MemoryBeforeBytes)
}
