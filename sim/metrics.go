// Tracks simulation-wide memory access statistics for the final summary.

package sim

import (
	"fmt"
	"io"
	"os"

	"github.com/sugawarayuuta/sonnet"
)

// Metrics aggregates statistics about the simulation for final reporting.
type Metrics struct {
	MemoryAccesses    int   // references served (hits + faults)
	PageFaults        int   // references that found no valid mapping
	Evictions         int   // faults served by displacing the LRU head
	WriteBacks        int   // evictions of a dirty page
	Terminations      int   // terminate replies received
	TotalAccessTimeNs int64 // simulated time charged to memory accesses
	PeakFramesUsed    int   // max simultaneously occupied frames

	WorkersSpawned int
	WorkersExited  int
	Interrupted    bool    // run ended by a forced shutdown
	SystemTime     SimTime // clock at the end of the run
}

// NewMetrics returns zeroed metrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordAccess accounts for one served reference that cost chargedNs.
func (m *Metrics) RecordAccess(o Outcome, chargedNs int64, usedFrames int) {
	m.MemoryAccesses++
	m.TotalAccessTimeNs += chargedNs
	if o.Kind == Fault {
		m.PageFaults++
	}
	if o.Evicted != nil {
		m.Evictions++
	}
	if o.WroteBack {
		m.WriteBacks++
	}
	if usedFrames > m.PeakFramesUsed {
		m.PeakFramesUsed = usedFrames
	}
}

// AccessesPerSecond returns references per simulated second.
func (m *Metrics) AccessesPerSecond() float64 {
	secs := float64(m.SystemTime.Total()) / NanosPerSecond
	if secs == 0 {
		return 0
	}
	return float64(m.MemoryAccesses) / secs
}

// FaultsPerAccess returns the page fault rate.
func (m *Metrics) FaultsPerAccess() float64 {
	if m.MemoryAccesses == 0 {
		return 0
	}
	return float64(m.PageFaults) / float64(m.MemoryAccesses)
}

// AverageAccessMs returns the mean simulated time per reference in milliseconds.
func (m *Metrics) AverageAccessMs() float64 {
	if m.MemoryAccesses == 0 {
		return 0
	}
	return float64(m.TotalAccessTimeNs) / float64(m.MemoryAccesses) / 1e6
}

// TotalAccessMs returns the total simulated access time in milliseconds.
func (m *Metrics) TotalAccessMs() float64 {
	return float64(m.TotalAccessTimeNs) / 1e6
}

// Print writes the statistics summary to w.
func (m *Metrics) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Simulation Statistics ===")
	if m.Interrupted {
		fmt.Fprintln(w, "Run interrupted        : yes")
	}
	fmt.Fprintf(w, "Memory accesses/sec    : %f\n", m.AccessesPerSecond())
	fmt.Fprintf(w, "Page faults/access     : %f\n", m.FaultsPerAccess())
	fmt.Fprintf(w, "Page faults            : %d\n", m.PageFaults)
	fmt.Fprintf(w, "Memory accesses        : %d\n", m.MemoryAccesses)
	fmt.Fprintf(w, "Evictions              : %d (%d written back)\n", m.Evictions, m.WriteBacks)
	fmt.Fprintf(w, "Peak frames used       : %d\n", m.PeakFramesUsed)
	fmt.Fprintf(w, "Workers executed       : %d (%d exited)\n", m.WorkersSpawned, m.WorkersExited)
	fmt.Fprintf(w, "System time            : %s\n", m.SystemTime)
	fmt.Fprintf(w, "Average access time    : %f ms\n", m.AverageAccessMs())
	fmt.Fprintf(w, "Total access time      : %f ms\n", m.TotalAccessMs())
}

// Summary is the machine-readable form of Metrics.
type Summary struct {
	MemoryAccesses    int     `json:"memory_accesses"`
	PageFaults        int     `json:"page_faults"`
	Evictions         int     `json:"evictions"`
	WriteBacks        int     `json:"write_backs"`
	PeakFramesUsed    int     `json:"peak_frames_used"`
	WorkersSpawned    int     `json:"workers_spawned"`
	WorkersExited     int     `json:"workers_exited"`
	Interrupted       bool    `json:"interrupted"`
	SystemTime        string  `json:"system_time"`
	AccessesPerSecond float64 `json:"accesses_per_second"`
	FaultsPerAccess   float64 `json:"faults_per_access"`
	AverageAccessMs   float64 `json:"average_access_ms"`
	TotalAccessMs     float64 `json:"total_access_ms"`
}

// Summary snapshots the metrics with derived rates filled in.
func (m *Metrics) Summary() Summary {
	return Summary{
		MemoryAccesses:    m.MemoryAccesses,
		PageFaults:        m.PageFaults,
		Evictions:         m.Evictions,
		WriteBacks:        m.WriteBacks,
		PeakFramesUsed:    m.PeakFramesUsed,
		WorkersSpawned:    m.WorkersSpawned,
		WorkersExited:     m.WorkersExited,
		Interrupted:       m.Interrupted,
		SystemTime:        m.SystemTime.String(),
		AccessesPerSecond: m.AccessesPerSecond(),
		FaultsPerAccess:   m.FaultsPerAccess(),
		AverageAccessMs:   m.AverageAccessMs(),
		TotalAccessMs:     m.TotalAccessMs(),
	}
}

// WriteJSON writes the summary as JSON to path.
func (m *Metrics) WriteJSON(path string) error {
	data, err := sonnet.Marshal(m.Summary())
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing summary %s: %w", path, err)
	}
	return nil
}
