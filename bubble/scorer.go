package bubble

import (
	"sort"

	"github.com/grailbio/diploidphase/internal/logspace"
	"github.com/grailbio/diploidphase/rle"
)

// FilterReadsByQuality implements §4.D's quality-based coverage
// filter: sort by descending mean base quality, then drop the
// lowest-quality entries while coverage strictly exceeds
// minCoverage AND the next candidate's quality is below
// minAvgBaseQual. Reads without qualities (AvgBaseQual == -1) are
// never dropped.
func FilterReadsByQuality(reads []ReadSubstring, minCoverage int, minAvgBaseQual float64) []ReadSubstring {
	withQual := make([]ReadSubstring, 0, len(reads))
	var noQual []ReadSubstring
	for _, r := range reads {
		if r.HasQuality() {
			withQual = append(withQual, r)
		} else {
			noQual = append(noQual, r)
		}
	}
	sort.SliceStable(withQual, func(i, j int) bool {
		return withQual[i].AvgBaseQual > withQual[j].AvgBaseQual
	})

	coverage := len(withQual) + len(noQual)
	for len(withQual) > 0 && coverage > minCoverage && withQual[len(withQual)-1].AvgBaseQual < minAvgBaseQual {
		withQual = withQual[:len(withQual)-1]
		coverage--
	}

	out := append(withQual, noQual...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ReadID < out[j].ReadID })
	return out
}

// rleKey is the memoization key for the bubble scorer's per-bubble
// cache: reads with string-and-run-identical substrings share one set
// of forwardProb evaluations.
func rleKey(r rle.RleString) string {
	return string(r.Seq) + "\x00" + string(r.Runs)
}

// ScoreBubble fills b.AlleleReadSupports by calling forward.ForwardProb
// for every (read, allele) pair, memoizing identical read substrings
// within the bubble (§4.D): when two reads share an RLE-identical
// substring, the second's allele-support column is copied from the
// first rather than recomputed. The read's strand selects which of
// params.StateMachineForForwardStrandRead /
// StateMachineForReverseStrandRead the pair-HMM collaborator uses
// (threaded opaquely through params).
func ScoreBubble(b *Bubble, forward ForwardProber, params *PolishParams) {
	R := len(b.Reads)
	A := len(b.Alleles)
	b.AlleleReadSupports = make([]float64, A*R)

	cache := make(map[string][]float64, R)
	for k, read := range b.Reads {
		var readRLE rle.RleString
		if read.Explicit != nil {
			readRLE = *read.Explicit
		}
		key := rleKey(readRLE)
		if col, ok := cache[key]; ok {
			for j := 0; j < A; j++ {
				b.SetSupport(j, k, col[j])
			}
			continue
		}
		col := make([]float64, A)
		for j, allele := range b.Alleles {
			col[j] = forward.ForwardProb(allele, read, read.ForwardStrand, params)
		}
		cache[key] = col
		for j := 0; j < A; j++ {
			b.SetSupport(j, k, col[j])
		}
	}
}

// BestAlleleForRead returns the index of the allele with the highest
// log-likelihood support for read k, used by tests and diagnostics
// (not by the HMM itself, which consumes the full support matrix).
func (b *Bubble) BestAlleleForRead(k int) int {
	best, bestIdx := logspace.NegInf, -1
	for j := 0; j < b.NumAlleles(); j++ {
		if v := b.Support(j, k); bestIdx == -1 || v > best {
			best, bestIdx = v, j
		}
	}
	return bestIdx
}
