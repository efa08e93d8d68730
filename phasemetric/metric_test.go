package phasemetric_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grailbio/diploidphase/phasemetric"
)

func pv(pos int, a, b string, gt1, gt2 int, ps string) phasemetric.PhasedVariant {
	return phasemetric.PhasedVariant{Contig: "chr1", RefPos: pos, Alleles: []string{a, b}, Gt1: gt1, Gt2: gt2, PhaseSet: ps}
}

func TestMatchVariantsStraightAndCrossed(t *testing.T) {
	query := []phasemetric.PhasedVariant{
		pv(10, "A", "C", 0, 1, "100"), // 0|1: A/C
		pv(20, "G", "T", 1, 0, "100"), // 1|0: T/G
	}
	truth := []phasemetric.PhasedVariant{
		pv(10, "A", "C", 0, 1, "200"), // same order: straight match
		pv(20, "G", "T", 0, 1, "200"), // opposite order: crossed match
	}
	pairs := phasemetric.MatchVariants(query, truth)
	assert.Equal(t, 2, len(pairs))
	assert.True(t, pairs[0].Match11)
	assert.False(t, pairs[1].Match11)
}

func TestMatchVariantsSkipsDisagreeingAlleleSets(t *testing.T) {
	query := []phasemetric.PhasedVariant{pv(10, "A", "C", 0, 1, "100")}
	truth := []phasemetric.PhasedVariant{pv(10, "A", "G", 0, 1, "200")}
	pairs := phasemetric.MatchVariants(query, truth)
	assert.Empty(t, pairs)
}

func TestPhaseSetIntervals(t *testing.T) {
	variants := []phasemetric.PhasedVariant{
		pv(10, "A", "C", 0, 1, "100"),
		pv(20, "A", "C", 0, 1, "100"),
		pv(30, "A", "C", 0, 1, "200"),
	}
	intervals := phasemetric.PhaseSetIntervals(variants)
	assert.Equal(t, [2]int{0, 1}, intervals["100"])
	assert.Equal(t, [2]int{2, 2}, intervals["200"])
}

func concordantSeries(n int, ps string) (query, truth []phasemetric.PhasedVariant) {
	for i := 0; i < n; i++ {
		query = append(query, pv(i*10, "A", "C", 0, 1, ps))
		truth = append(truth, pv(i*10, "A", "C", 0, 1, ps))
	}
	return query, truth
}

func TestCorrectnessIsOneForFullyConcordantPhasing(t *testing.T) {
	query, truth := concordantSeries(5, "100")
	got := phasemetric.Correctness(query, truth, 0.9)
	assert.InDelta(t, 1.0, got, 1e-9)
}

func TestSwitchCorrectnessIsOneForFullyConcordantPhasing(t *testing.T) {
	query, truth := concordantSeries(5, "100")
	got := phasemetric.SwitchCorrectness(query, truth)
	assert.InDelta(t, 1.0, got, 1e-9)
}

func TestSwitchCorrectnessDetectsASwitchWithinAPhaseSet(t *testing.T) {
	query := []phasemetric.PhasedVariant{
		pv(10, "A", "C", 0, 1, "100"),
		pv(20, "A", "C", 1, 0, "100"), // switched orientation, same phase set
	}
	truth := []phasemetric.PhasedVariant{
		pv(10, "A", "C", 0, 1, "200"),
		pv(20, "A", "C", 0, 1, "200"), // truth stays consistent
	}
	got := phasemetric.SwitchCorrectness(query, truth)
	assert.Equal(t, 0.0, got)
}

func TestSwitchCorrectnessNaNWithFewerThanTwoPairs(t *testing.T) {
	query := []phasemetric.PhasedVariant{pv(10, "A", "C", 0, 1, "100")}
	truth := []phasemetric.PhasedVariant{pv(10, "A", "C", 0, 1, "200")}
	got := phasemetric.SwitchCorrectness(query, truth)
	assert.True(t, math.IsNaN(got))
}

func TestCorrectnessAtZeroDecayMatchesSwitchCorrectness(t *testing.T) {
	query := []phasemetric.PhasedVariant{
		pv(10, "A", "C", 0, 1, "100"),
		pv(20, "A", "C", 0, 1, "100"),
		pv(30, "A", "C", 1, 0, "100"), // a switch within the phase set
	}
	truth := []phasemetric.PhasedVariant{
		pv(10, "A", "C", 0, 1, "200"),
		pv(20, "A", "C", 0, 1, "200"),
		pv(30, "A", "C", 0, 1, "200"),
	}
	want := phasemetric.SwitchCorrectness(query, truth)
	assert.InDelta(t, 0.5, want, 1e-9)
	assert.Equal(t, want, phasemetric.Correctness(query, truth, 0.0))
}

func TestSwitchCorrectnessUnconditionallyCorrectAcrossPhaseSetBoundary(t *testing.T) {
	query := []phasemetric.PhasedVariant{
		pv(10, "A", "C", 0, 1, "100"),
		pv(20, "A", "C", 1, 0, "101"), // new phase set: can't be a switch
	}
	truth := []phasemetric.PhasedVariant{
		pv(10, "A", "C", 0, 1, "200"),
		pv(20, "A", "C", 0, 1, "200"),
	}
	got := phasemetric.SwitchCorrectness(query, truth)
	assert.Equal(t, 1.0, got)
}
