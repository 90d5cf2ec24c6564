// Package trace provides per-exchange recording of dispatch decisions.
// This package has no dependencies on sim/; it stores pure data types.
package trace

// Exchange kinds.
const (
	KindHit       = "hit"
	KindFault     = "fault"
	KindTerminate = "terminate"
)

// ExchangeRecord captures one turn-token/reply exchange and how it was served.
type ExchangeRecord struct {
	Seq         int    // exchange ordinal within the run
	Clock       int64  // simulated nanoseconds when the exchange completed
	Worker      int    // logical worker id
	Page        int    // requested page; -1 for a terminate reply
	Address     uint32 // requested address; 0 for a terminate reply
	Kind        string // KindHit, KindFault or KindTerminate
	Frame       int    // frame holding the page afterwards; -1 for a terminate reply
	VictimOwner int    // worker of the evicted mapping; -1 when nothing was evicted
	VictimPage  int    // page of the evicted mapping; -1 when nothing was evicted
	WroteBack   bool   // evicted mapping was dirty
	CostNs      int64  // simulated time charged for the exchange
}

// Evicted reports whether serving the exchange displaced another mapping.
func (r ExchangeRecord) Evicted() bool {
	return r.VictimOwner >= 0
}
