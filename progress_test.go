package tabular

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNilKillChipIsNeverTripped(t *testing.T) {
	var k *KillChip
	assert.False(t, k.Tripped())
	assert.NotPanics(t, func() { k.Trip() })
}

func TestKillChipTripIsIdempotent(t *testing.T) {
	k := NewKillChip()
	assert.False(t, k.Tripped())

	k.Trip()
	k.Trip()
	assert.True(t, k.Tripped())
}

func TestReportProgressIsNilSafe(t *testing.T) {
	assert.NotPanics(t, func() { reportProgress(nil, ProgressEvent{Kind: EventRoundComplete}) })
}

func TestReportProgressInvokesCallback(t *testing.T) {
	var got ProgressEvent
	reportProgress(func(ev ProgressEvent) { got = ev }, ProgressEvent{Kind: EventEpochComplete, Round: 3})

	assert.Equal(t, EventEpochComplete, got.Kind)
	assert.Equal(t, 3, got.Round)
}

func TestDiagnosticsCountersAreNilSafe(t *testing.T) {
	var d *Diagnostics
	assert.NotPanics(t, func() {
		d.noteNonFiniteGradient()
		d.noteNonFiniteHessian()
		d.noteClampedProbability()
	})
}

func TestDiagnosticsCountersIncrement(t *testing.T) {
	d := &Diagnostics{}
	d.noteNonFiniteGradient()
	d.noteNonFiniteGradient()
	d.noteNonFiniteHessian()
	d.noteClampedProbability()

	assert.Equal(t, 2, d.NonFiniteGradientCount)
	assert.Equal(t, 1, d.NonFiniteHessianCount)
	assert.Equal(t, 1, d.ClampedProbabilityCount)
}
