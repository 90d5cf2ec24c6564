package trace

// WorkerSummary aggregates the exchanges of one logical worker id.
type WorkerSummary struct {
	Hits   int
	Faults int
}

// HitRatio returns hits / (hits + faults), or 0 with no references.
func (w WorkerSummary) HitRatio() float64 {
	if w.Hits+w.Faults == 0 {
		return 0
	}
	return float64(w.Hits) / float64(w.Hits+w.Faults)
}

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalExchanges int
	Hits           int
	Faults         int
	Terminations   int
	Evictions      int
	WriteBacks     int
	HitRatio       float64
	PerWorker      map[int]WorkerSummary // logical id → references served
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		PerWorker: make(map[int]WorkerSummary),
	}
	if st == nil {
		return summary
	}

	summary.TotalExchanges = len(st.Exchanges)
	for _, r := range st.Exchanges {
		ws := summary.PerWorker[r.Worker]
		switch r.Kind {
		case KindHit:
			summary.Hits++
			ws.Hits++
		case KindFault:
			summary.Faults++
			ws.Faults++
		case KindTerminate:
			summary.Terminations++
			continue
		}
		summary.PerWorker[r.Worker] = ws
		if r.Evicted() {
			summary.Evictions++
		}
		if r.WroteBack {
			summary.WriteBacks++
		}
	}

	if refs := summary.Hits + summary.Faults; refs > 0 {
		summary.HitRatio = float64(summary.Hits) / float64(refs)
	}
	return summary
}
