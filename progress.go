package tabular

// progress.go implements the cooperative cancellation and progress-reporting
// primitives shared by the tree and linear learners. Grounded in spec.md §5:
// a checkable atomic flag replaces any thread-local or exception-based
// interrupt mechanism, and a caller-supplied callback replaces an ambient
// logger on the hot path (seafan.go's package-level Verbose is kept only to
// gate FromPath's coarse row-count events; nothing in the package prints).

import "sync/atomic"

// KillChip is a shared, checkable cancellation flag. The zero value is
// "not tripped". Trip is safe to call from any goroutine.
type KillChip struct {
	tripped atomic.Bool
}

// NewKillChip returns a fresh, untripped KillChip.
func NewKillChip() *KillChip {
	return &KillChip{}
}

// Trip marks the chip as tripped. Idempotent.
func (k *KillChip) Trip() {
	if k == nil {
		return
	}

	k.tripped.Store(true)
}

// Tripped reports whether Trip has been called. A nil KillChip is never
// tripped, so callers may pass nil to mean "never cancel".
func (k *KillChip) Tripped() bool {
	return k != nil && k.tripped.Load()
}

// EventKind enumerates the progress events the learners report.
type EventKind int

const (
	EventRoundComplete EventKind = iota
	EventEpochComplete
	EventEarlyStopped
	EventCancelled
	EventNumericWarning
	EventGridItemComplete
)

// ProgressEvent is the payload passed to a ProgressFunc.
type ProgressEvent struct {
	Kind          EventKind
	Round         int     // tree round or grid item (0-based), or linear epoch (1-based)
	TrainLoss     float64 // valid when Kind == EventRoundComplete/EventEpochComplete; for EventGridItemComplete, the comparison metric
	ValidLoss     float64 // valid only if a comparison split was configured
	HasValidLoss  bool
	Message       string
}

// ProgressFunc is the caller-supplied progress callback. It must return
// quickly: it is invoked synchronously on the training goroutine at coarse
// round/epoch boundaries, never inside a hot inner loop.
type ProgressFunc func(ProgressEvent)

// reportProgress is a nil-safe convenience used by the learners.
func reportProgress(fn ProgressFunc, ev ProgressEvent) {
	if fn != nil {
		fn(ev)
	}
}

// Diagnostics accumulates non-fatal NumericWarning counts produced during
// training, surfaced on TrainOutput.Diagnostics per spec.md §7.
type Diagnostics struct {
	NonFiniteGradientCount int
	NonFiniteHessianCount  int
	ClampedProbabilityCount int
}

func (d *Diagnostics) noteNonFiniteGradient() {
	if d != nil {
		d.NonFiniteGradientCount++
	}
}

func (d *Diagnostics) noteNonFiniteHessian() {
	if d != nil {
		d.NonFiniteHessianCount++
	}
}

func (d *Diagnostics) noteClampedProbability() {
	if d != nil {
		d.ClampedProbabilityCount++
	}
}
