package monitor

import (
	"bufio"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Sample is a point-in-time resource snapshot.
type Sample struct {
	MemoryBytes uint64

	// CPUIdle and CPUTotal are OS-wide tick counters. CPUValid is false when
	// they could not be read.
	CPUIdle  uint64
	CPUTotal uint64
	CPUValid bool
}

// Sampler takes resource snapshots.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
type Sampler interface {
	Sample() Sample
}

// SamplerFunc adapts a function into a Sampler.
type SamplerFunc func() Sample

// Sample calls f.
func (f SamplerFunc) Sample() Sample {
	return f()
}

type runtimeSampler struct {
	statPath string
}

// NewRuntimeSampler returns a Sampler reading memory obtained from the OS by
// the Go runtime and CPU ticks from /proc/stat. CPU figures are unavailable
// on systems without /proc.
func NewRuntimeSampler() Sampler {
	return runtimeSampler{statPath: "/proc/stat"}
}

func (s runtimeSampler) Sample() Sample {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	out := Sample{MemoryBytes: ms.Sys}

	f, err := os.Open(s.statPath)
	if err != nil {
		return out
	}
	defer f.Close()
	out.CPUIdle, out.CPUTotal, out.CPUValid = parseCPUTimes(f)
	return out
}

// parseCPUTimes reads the aggregate "cpu" line of /proc/stat. Idle time
// includes iowait; guest time is already part of user time and is skipped.
func parseCPUTimes(r io.Reader) (idle, total uint64, ok bool) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 5 || fields[0] != "cpu" {
			continue
		}
		values := fields[1:]
		if len(values) > 8 {
			values = values[:8]
		}
		for i, v := range values {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return 0, 0, false
			}
			total += n
			if i == 3 || i == 4 {
				idle += n
			}
		}
		return idle, total, true
	}
	return 0, 0, false
}

// cpuPercent estimates OS-wide CPU usage between two samples.
func cpuPercent(before, after Sample) float64 {
	if !before.CPUValid || !after.CPUValid || after.CPUTotal <= before.CPUTotal {
		return 0
	}
	totalDelta := float64(after.CPUTotal - before.CPUTotal)
	idleDelta := float64(after.CPUIdle - before.CPUIdle)
	if idleDelta > totalDelta {
		idleDelta = totalDelta
	}
	return 100 * (1 - idleDelta/totalDelta)
}
