package collector

import "time"

// TypeKV tags a plain key/value gauge.
const TypeKV = "kv"

// Sample is one untimed reading as produced by a Source.
type Sample struct {
	Value float64 // numeric value
	Key   string  // dot-separated name, e.g. "ses.quota.max_send_rate"
	Type  string  // statistical kind, always TypeKV for now
}

// Reading is a Sample stamped with the instant of the cycle that produced it.
type Reading struct {
	Sample
	Timestamp time.Time
}

// Snapshot is the result of a single collection cycle.
// All readings share the same collection timestamp.
type Snapshot struct {
	CollectedAt time.Time
	Readings    []Reading // in collection order
}

// NewSnapshot creates an empty snapshot with the supplied time.
func NewSnapshot(ts time.Time) *Snapshot {
	return &Snapshot{CollectedAt: ts}
}
