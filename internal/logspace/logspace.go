// Package logspace provides log-domain arithmetic shared by the bubble
// package, the read-partition HMM, the refiner and the filtered-read
// attacher.
// All probability code in this module works in natural-log space so
// that underflow never silently zeroes out a read's support.
package logspace

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// NegInf is the log-probability of an impossible event.
var NegInf = math.Inf(-1)

// LogAddExact returns log(exp(a) + exp(b)), handling -Inf operands
// without producing NaN.
func LogAddExact(a, b float64) float64 {
	if math.IsInf(a, -1) {
		return b
	}
	if math.IsInf(b, -1) {
		return a
	}
	if a < b {
		a, b = b, a
	}
	return a + math.Log1p(math.Exp(b-a))
}

// LogSumExp returns log(sum(exp(xs))) using gonum's reduction for the
// max-finding pass, then m + log(sum(exp(x - m))). An empty
// slice returns -Inf, matching the "no support" sentinel used
// throughout the bubble scorer and profile-seq projector.
func LogSumExp(xs []float64) float64 {
	if len(xs) == 0 {
		return NegInf
	}
	m := floats.Max(xs)
	if math.IsInf(m, -1) {
		return NegInf
	}
	var sum float64
	for _, x := range xs {
		sum += math.Exp(x - m)
	}
	return m + math.Log(sum)
}
