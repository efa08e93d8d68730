package phasehmm

import (
	"math"

	"github.com/grailbio/diploidphase/bubble"
	"github.com/grailbio/diploidphase/internal/logspace"
)

// HMM is a column HMM over a bubble graph's sites: Columns gives the
// active-read set per site, StRef the per-site allele priors and
// substitution-cost table, and Profiles each read's quantized
// per-allele log-likelihoods.
type HMM struct {
	Graph    *bubble.BubbleGraph
	Columns  []Column
	StRef    *StReference
	Profiles map[int]*bubble.ProfileSeq
	// IncludeAncestorSubProb toggles the ancestor-substitution emission
	// term (§4.F step 3): true at the top level, false inside per-strand
	// phasing.
	IncludeAncestorSubProb bool
}

// readEmissionNats returns read readID's log-likelihood of allele a at
// bubble bi, derived from its quantized profile byte.
func (h *HMM) readEmissionNats(readID, bi, a int) float64 {
	ps := h.Profiles[readID]
	if ps == nil || !ps.Covers(bi) {
		return 0 // no information: contributes nothing either way.
	}
	cost := float64(bubble.ProfileByteAt(h.Graph, ps, bi, a))
	return NatsFromCost(cost)
}

// emission computes log P(reads at column | cell partition, haplotype
// alleles (a, b)), optionally maximized over an ancestor allele c
// when h.IncludeAncestorSubProb. It returns the emission log-likelihood
// and, when the ancestor term is on, the best-scoring ancestor allele
// (used for the per-site "ancestor" output field).
func (h *HMM) emission(col *Column, site *Site, p Partition, a, b int) (nats float64, ancestor int) {
	var readSum float64
	for k, readID := range col.ActiveReadIDs {
		if p.Bit(k) == 0 {
			readSum += h.readEmissionNats(readID, col.BubbleIndex, a)
		} else {
			readSum += h.readEmissionNats(readID, col.BubbleIndex, b)
		}
	}
	if !h.IncludeAncestorSubProb {
		return readSum, -1
	}
	best := logspace.NegInf
	bestC := 0
	for c := 0; c < site.AlleleCount; c++ {
		subNats := site.UniformPriorNats() + NatsFromCost(site.SubCost[c][a]) + NatsFromCost(site.SubCost[c][b])
		total := subNats + readSum
		if total > best {
			best = total
			bestC = c
		}
	}
	return best, bestC
}

// cellValue bundles the per-(site, cell) values the Viterbi forward
// pass needs to carry forward and trace back.
type cellValue struct {
	logProb  float64
	bestA    int
	bestB    int
	ancestor int
	prevCell Partition
}

// ViterbiResult holds the most-probable path through the HMM, one
// entry per bubble.
type ViterbiResult struct {
	Partitions []Partition
	HapAllele1 []int
	HapAllele2 []int
	Ancestor   []int
	// PathLogProb is the log-likelihood of the globally best path.
	PathLogProb float64
}

// RunViterbi computes the most-probable path of cells across all
// columns (spec §4.F step 4): a transition between consecutive columns
// requires reads present in both columns to keep their bit assignment;
// reads entering get a free (uniform) choice, and reads leaving are
// simply dropped from the state.
func (h *HMM) RunViterbi() ViterbiResult {
	n := len(h.Columns)
	result := ViterbiResult{
		Partitions: make([]Partition, n),
		HapAllele1: make([]int, n),
		HapAllele2: make([]int, n),
		Ancestor:   make([]int, n),
	}
	if n == 0 {
		return result
	}

	// prev maps a canonical partition at the previous column to its
	// best (logProb, path) so far.
	prev := map[Partition]*cellValue{}
	prevReadIDs := []int{}

	type trace struct {
		cells map[Partition]*cellValue
	}
	traces := make([]trace, n)

	for i := 0; i < n; i++ {
		col := &h.Columns[i]
		site := &h.StRef.Sites[col.BubbleIndex]
		k := len(col.ActiveReadIDs)
		cells := map[Partition]*cellValue{}

		for _, p := range EnumerateCanonicalPartitions(k) {
			best := &cellValue{logProb: logspace.NegInf}
			for a := 0; a < site.AlleleCount; a++ {
				for b := 0; b < site.AlleleCount; b++ {
					emit, ancestor := h.emission(col, site, p, a, b)
					if i == 0 {
						total := emit
						if total > best.logProb {
							*best = cellValue{logProb: total, bestA: a, bestB: b, ancestor: ancestor}
						}
						continue
					}
					transLogProb, predecessor := h.bestTransition(prevReadIDs, col.ActiveReadIDs, p, prev)
					total := emit + transLogProb
					if total > best.logProb {
						*best = cellValue{logProb: total, bestA: a, bestB: b, ancestor: ancestor, prevCell: predecessor}
					}
				}
			}
			cells[p] = best
		}
		traces[i] = trace{cells: cells}
		prev = cells
		prevReadIDs = col.ActiveReadIDs
	}

	// Traceback from the best final cell.
	lastCells := traces[n-1].cells
	bestFinal, bestVal := Partition(0), logspace.NegInf
	for p, cv := range lastCells {
		if cv.logProb > bestVal {
			bestVal = cv.logProb
			bestFinal = p
		}
	}
	result.PathLogProb = bestVal
	cur := bestFinal
	for i := n - 1; i >= 0; i-- {
		cv := traces[i].cells[cur]
		result.Partitions[i] = cur
		result.HapAllele1[i] = cv.bestA
		result.HapAllele2[i] = cv.bestB
		result.Ancestor[i] = cv.ancestor
		cur = cv.prevCell
	}
	return result
}

// bestTransition finds the highest-scoring predecessor cell consistent
// with newPartition, given which reads carry over from prevReadIDs
// into newReadIDs. Reads entering receive a uniform (log 0.5 per free
// bit) contribution; reads leaving are marginalized away by simply not
// constraining them.
func (h *HMM) bestTransition(prevReadIDs, newReadIDs []int, newPartition Partition, prev map[Partition]*cellValue) (float64, Partition) {
	prevIndex := make(map[int]int, len(prevReadIDs))
	for i, id := range prevReadIDs {
		prevIndex[id] = i
	}

	bestLogProb := logspace.NegInf
	var bestPrev Partition
	for prevRaw, cv := range prev {
		// Expand the canonical prev partition back to both possible raw
		// assignments (itself and its complement), since canonicalization
		// lost which literal value was used at the previous step.
		for _, rawPrev := range []Partition{prevRaw, invert(prevRaw, len(prevReadIDs))} {
			consistent := true
			freeBits := 0
			for k, id := range newReadIDs {
				if pi, ok := prevIndex[id]; ok {
					if newPartition.Bit(k) != rawPrev.Bit(pi) {
						consistent = false
						break
					}
				} else {
					freeBits++
				}
			}
			if !consistent {
				continue
			}
			transLogProb := -float64(freeBits) * math.Ln2
			total := cv.logProb + transLogProb
			if total > bestLogProb {
				bestLogProb = total
				bestPrev = prevRaw
			}
		}
	}
	if bestLogProb == logspace.NegInf {
		// No predecessor exists, e.g. the active-read set changed
		// completely (possible with a small enough coverage cap): treat
		// this column as a fresh start.
		return 0, 0
	}
	return bestLogProb, bestPrev
}

func invert(p Partition, n int) Partition {
	if n == 0 {
		return 0
	}
	mask := Partition(1)<<uint(n) - 1
	return (^p) & mask
}
