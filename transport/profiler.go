package transport

import (
	"sync"
	"sync/atomic"
	"time"
)

// CommandStats aggregates observed wall times for one command string.
type CommandStats struct {
	Count uint64
	Total time.Duration
}

// The profiler is a process-wide, opt-in registry of per-command timings.
// When disabled (the default) RecordCommandTiming is a single atomic load.
var profiler = struct {
	enabled atomic.Bool
	mu      sync.Mutex
	stats   map[string]CommandStats
}{stats: make(map[string]CommandStats)}

// EnableProfiling turns command-timing collection on or off.
func EnableProfiling(enable bool) {
	profiler.enabled.Store(enable)
}

// ProfilingEnabled reports whether timings are being collected.
func ProfilingEnabled() bool {
	return profiler.enabled.Load()
}

// RecordCommandTiming adds one observation for command. No-op while
// profiling is disabled.
func RecordCommandTiming(command string, d time.Duration) {
	if !profiler.enabled.Load() {
		return
	}
	profiler.mu.Lock()
	s := profiler.stats[command]
	s.Count++
	s.Total += d
	profiler.stats[command] = s
	profiler.mu.Unlock()
}

// ProfilerStats returns a snapshot of collected timings.
func ProfilerStats() map[string]CommandStats {
	profiler.mu.Lock()
	defer profiler.mu.Unlock()
	out := make(map[string]CommandStats, len(profiler.stats))
	for k, v := range profiler.stats {
		out[k] = v
	}
	return out
}

// ResetProfilerStats clears all collected timings.
func ResetProfilerStats() {
	profiler.mu.Lock()
	profiler.stats = make(map[string]CommandStats)
	profiler.mu.Unlock()
}
