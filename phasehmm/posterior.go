package phasehmm

import (
	"math"

	"github.com/grailbio/diploidphase/internal/logspace"
)

// GenotypePosteriors returns, for each site along the Viterbi path, the
// local posterior probability of the chosen (hap1, hap2) allele pair:
// the emission mass at the winning partition and allele pair, divided
// by the total emission mass summed over every allele pair at that
// partition. This is a per-site normalization rather than a full
// forward-backward marginal over partitions; it is enough to rank
// site confidence for the output the GenomeFragment carries (spec §3's
// "per-site genotype/haplotype posterior probabilities"), without
// requiring the joint (partition, allele-pair) forward-backward lattice
// a fully general implementation would track.
func (h *HMM) GenotypePosteriors(result ViterbiResult) []float64 {
	n := len(h.Columns)
	posteriors := make([]float64, n)
	for i := 0; i < n; i++ {
		col := &h.Columns[i]
		site := &h.StRef.Sites[col.BubbleIndex]
		p := result.Partitions[i]

		var all []float64
		var chosen float64
		for a := 0; a < site.AlleleCount; a++ {
			for b := 0; b < site.AlleleCount; b++ {
				emit, _ := h.emission(col, site, p, a, b)
				all = append(all, emit)
				if a == result.HapAllele1[i] && b == result.HapAllele2[i] {
					chosen = emit
				}
			}
		}
		total := logspace.LogSumExp(all)
		if total == logspace.NegInf {
			posteriors[i] = 0
			continue
		}
		posteriors[i] = expClamped(chosen - total)
	}
	return posteriors
}

func expClamped(logP float64) float64 {
	if logP > 0 {
		logP = 0
	}
	return math.Exp(logP)
}
