package monitor

import (
	"sort"
	"time"
)

// ToolStats aggregates the recorded attempts of one tool.
type ToolStats struct {
	ToolName       string        `json:"toolName"`
	Executions     int           `json:"executions"`
	Succeeded      int           `json:"succeeded"`
	SuccessRate    float64       `json:"successRate"`
	MeanDuration   time.Duration `json:"meanDuration"`
	MedianDuration time.Duration `json:"medianDuration"`
	MinDuration    time.Duration `json:"minDuration"`
	MaxDuration    time.Duration `json:"maxDuration"`
	Timeouts       int           `json:"timeouts"`
	Cancellations  int           `json:"cancellations"`

	// Errors counts failed attempts that were neither timed out nor cancelled.
	Errors int `json:"errors"`

	// MeanMemoryDeltaBytes averages over attempts that carry resource data.
	MeanMemoryDeltaBytes float64 `json:"meanMemoryDeltaBytes"`
}

// ComputeStats aggregates records per tool, sorted by tool name.
func ComputeStats(records []ExecutionRecord) []ToolStats {
	byTool := make(map[string][]ExecutionRecord)
	for _, r := range records {
		byTool[r.ToolName] = append(byTool[r.ToolName], r)
	}

	out := make([]ToolStats, 0, len(byTool))
	for name, recs := range byTool {
		out = append(out, toolStats(name, recs))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ToolName < out[j].ToolName })
	return out
}

func toolStats(name string, recs []ExecutionRecord) ToolStats {
	s := ToolStats{ToolName: name, Executions: len(recs)}
	if len(recs) == 0 {
		return s
	}

	durations := make([]time.Duration, 0, len(recs))
	var total time.Duration
	var memTotal float64
	memCount := 0
	for _, r := range recs {
		d := r.Duration()
		durations = append(durations, d)
		total += d

		switch r.Status() {
		case StatusSucceeded:
			s.Succeeded++
		case StatusTimedOut:
			s.Timeouts++
		case StatusCancelled:
			s.Cancellations++
		default:
			s.Errors++
		}
		if r.Resources != nil {
			memTotal += float64(r.Resources.MemoryDelta())
			memCount++
		}
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	n := len(durations)
	s.SuccessRate = float64(s.Succeeded) / float64(n)
	s.MeanDuration = total / time.Duration(n)
	s.MinDuration = durations[0]
	s.MaxDuration = durations[n-1]
	if n%2 == 1 {
		s.MedianDuration = durations[n/2]
	} else {
		s.MedianDuration = (durations[n/2-1] + durations[n/2]) / 2
	}
	if memCount > 0 {
		s.MeanMemoryDeltaBytes = memTotal / float64(memCount)
	}
	return s
}
