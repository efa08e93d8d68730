// Package phasehmm implements the read-partition HMM (spec §4.F): a
// column HMM whose hidden state at each bubble is a bit-partition of
// the reads currently active there, phased into two haplotypes by a
// Viterbi pass and traceback. No forward-backward pass is run; per-site
// posteriors are the local normalization in GenotypePosteriors.
package phasehmm

import (
	"math"

	"github.com/grailbio/diploidphase/bubble"
)

// Site mirrors one entry of spec §3's stReference: per-bubble allele
// count/offset, uniform allele priors, and the substitution-cost
// matrix used by the HMM's emission model when includeAncestorSubProb
// is set. SubCost is in the same scaled-cost units as
// bubble.ProfileProbScalar (0 on the diagonal, positive off it); NatsFromCost
// converts an entry back to natural-log units for combination with
// profile log-likelihoods.
type Site struct {
	AlleleCount  int
	AlleleOffset int
	// SubCost[c][a] = bubble.ProfileProbScalar * -log(hetSubstitutionProbability)
	// for c != a, 0 for c == a (§3's A×A substitution-log-prob matrix).
	SubCost [][]float64
}

// NatsFromCost converts a scaled cost (as found in SubCost or in a
// ProfileSeq byte) back to natural-log units.
func NatsFromCost(cost float64) float64 {
	return -cost / bubble.ProfileProbScalar
}

// StReference is the HMM's per-bubble parameter table, parallel to the
// bubble graph (spec §3).
type StReference struct {
	Sites []Site
}

// BuildStReference derives a StReference from a bubble graph and the
// het-substitution probability: uniform priors, and a substitution-cost
// matrix whose off-diagonal entries are all equal to
// ProfileProbScalar * -log(hetSubstitutionProbability), independent of
// which two alleles are involved (spec §3 doesn't distinguish
// transition/transversion-style costs here).
func BuildStReference(g *bubble.BubbleGraph, hetSubstitutionProbability float64) *StReference {
	offCost := bubble.ProfileProbScalar * -math.Log(hetSubstitutionProbability)
	sites := make([]Site, len(g.Bubbles))
	for i, b := range g.Bubbles {
		a := b.NumAlleles()
		sub := make([][]float64, a)
		for c := 0; c < a; c++ {
			sub[c] = make([]float64, a)
			for j := 0; j < a; j++ {
				if c != j {
					sub[c][j] = offCost
				}
			}
		}
		sites[i] = Site{AlleleCount: a, AlleleOffset: b.AlleleOffset, SubCost: sub}
	}
	return &StReference{Sites: sites}
}

// UniformPriorNats returns log(1/AlleleCount), the uniform allele prior
// in natural-log units for this site.
func (s *Site) UniformPriorNats() float64 {
	return -math.Log(float64(s.AlleleCount))
}
