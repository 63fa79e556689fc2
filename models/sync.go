package models

// Synced collection names. CollectionOrder fixes the per-cycle processing
// order: passwords first so the slow bookmark pass never delays credential
// sync, bookmarks last.
const (
	CollectionPasswords = "passwords"
	CollectionHistory   = "history"
	CollectionBookmarks = "bookmarks"
)

// CollectionOrder is the fixed order collections are processed in a cycle.
var CollectionOrder = []string{CollectionPasswords, CollectionHistory, CollectionBookmarks}

// Watermarks maps a collection name to the last server modification time
// observed for it. A collection is pulled only while the remote time
// differs from the stored watermark.
type Watermarks map[string]float64

// Clone returns an independent copy of the watermark map.
func (w Watermarks) Clone() Watermarks {
	out := make(Watermarks, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// CollectionOutcome describes how a single collection pass ended.
type CollectionOutcome string

const (
	// OutcomeSynced: the pass completed and the watermark advanced.
	OutcomeSynced CollectionOutcome = "synced"
	// OutcomeSkipped: remote time matched the watermark, nothing to do.
	OutcomeSkipped CollectionOutcome = "skipped"
	// OutcomeFailed: the pass aborted; the watermark was left untouched.
	OutcomeFailed CollectionOutcome = "failed"
	// OutcomeCancelled: the pass was cooperatively cancelled mid-flight.
	OutcomeCancelled CollectionOutcome = "cancelled"
)

// CollectionResult is the outcome of one collection pass within a cycle.
type CollectionResult struct {
	Collection string
	Outcome    CollectionOutcome
	Pulled     int
	Pushed     int
	Err        error
}

// CycleResult is delivered to the caller when a sync cycle completes. A
// collection-level failure never fails the cycle; callers inspect the
// per-collection results instead.
type CycleResult struct {
	Collections []CollectionResult
}

// Failed reports whether any collection pass in the cycle failed.
func (r CycleResult) Failed() bool {
	for _, c := range r.Collections {
		if c.Outcome == OutcomeFailed {
			return true
		}
	}
	return false
}
