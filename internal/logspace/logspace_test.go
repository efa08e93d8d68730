package logspace_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grailbio/diploidphase/internal/logspace"
)

func TestLogAddExactMatchesDirectComputation(t *testing.T) {
	a, b := math.Log(3), math.Log(4)
	got := logspace.LogAddExact(a, b)
	want := math.Log(7)
	assert.InDelta(t, want, got, 1e-9)
}

func TestLogAddExactHandlesNegInfOperands(t *testing.T) {
	assert.Equal(t, 5.0, logspace.LogAddExact(logspace.NegInf, 5))
	assert.Equal(t, 5.0, logspace.LogAddExact(5, logspace.NegInf))
	assert.True(t, math.IsInf(logspace.LogAddExact(logspace.NegInf, logspace.NegInf), -1))
}

func TestLogSumExpMatchesDirectComputation(t *testing.T) {
	xs := []float64{math.Log(1), math.Log(2), math.Log(3)}
	got := logspace.LogSumExp(xs)
	want := math.Log(6)
	assert.InDelta(t, want, got, 1e-9)
}

func TestLogSumExpEmptyIsNegInf(t *testing.T) {
	assert.True(t, math.IsInf(logspace.LogSumExp(nil), -1))
}

func TestLogSumExpAllNegInfIsNegInf(t *testing.T) {
	got := logspace.LogSumExp([]float64{logspace.NegInf, logspace.NegInf})
	assert.True(t, math.IsInf(got, -1))
}

func TestLogSumExpSingleElementIsIdentity(t *testing.T) {
	assert.InDelta(t, 3.5, logspace.LogSumExp([]float64{3.5}), 1e-12)
}
