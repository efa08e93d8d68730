// Package refine implements the iterative greedy read-reassignment pass
// that follows the read-partition HMM (spec §4.G): starting from a
// GenomeFragment, repeatedly move reads between haplotypes when the
// other haplotype explains them better, until a round produces no
// flips or maxIterations is reached.
package refine

import (
	"github.com/grailbio/base/log"

	"github.com/grailbio/diploidphase/bubble"
	"github.com/grailbio/diploidphase/internal/logspace"
	"github.com/grailbio/diploidphase/phasehmm"
)

// Refine repeatedly reassigns reads between hap1/hap2 while a round
// still flips at least one read, capped at maxIterations rounds
// (§4.G). It mutates neither g nor profiles; it returns a new
// GenomeFragment with updated Reads1/Reads2 and, after any round that
// flipped a read, Hap1/Hap2 allele calls re-derived at every bubble
// from the updated read sets.
func Refine(g *bubble.BubbleGraph, profiles map[int]*bubble.ProfileSeq, fragment *phasehmm.GenomeFragment, maxIterations int) *phasehmm.GenomeFragment {
	reads1 := cloneIDs(fragment.Reads1)
	reads2 := cloneIDs(fragment.Reads2)
	hap1 := append([]int(nil), fragment.Hap1...)
	hap2 := append([]int(nil), fragment.Hap2...)

	for round := 0; round < maxIterations; round++ {
		toHap2, toHap1 := flipCandidates(g, profiles, reads1, reads2, hap1, hap2)
		if len(toHap2) == 0 && len(toHap1) == 0 {
			log.Debug.Printf("refine: converged after %d rounds", round)
			break
		}
		for id := range toHap2 {
			delete(reads1, id)
			reads2[id] = true
		}
		for id := range toHap1 {
			delete(reads2, id)
			reads1[id] = true
		}
		hap1, hap2 = rederiveHaplotypes(g, profiles, reads1, reads2)
	}

	out := &phasehmm.GenomeFragment{
		RefStart:   fragment.RefStart,
		Length:     fragment.Length,
		Hap1:       hap1,
		Hap2:       hap2,
		Posteriors: fragment.Posteriors,
		Ancestor:   fragment.Ancestor,
		Reads1:     toReadSet(reads1),
		Reads2:     toReadSet(reads2),
	}
	return out
}

// flipCandidates computes, for every currently-assigned read, whether
// the opposite haplotype now explains it better (§4.G step 1): all
// flips within a round are identified against the *same* hap1/hap2
// snapshot, then applied simultaneously by the caller, rather than one
// at a time, so the order reads happen to be visited in doesn't bias
// the outcome.
func flipCandidates(g *bubble.BubbleGraph, profiles map[int]*bubble.ProfileSeq, reads1, reads2 map[int]bool, hap1, hap2 []int) (toHap2, toHap1 map[int]bool) {
	toHap2 = map[int]bool{}
	toHap1 = map[int]bool{}
	for id := range reads1 {
		ps := profiles[id]
		if ps == nil {
			continue
		}
		if logProbReadGivenHaplotype(g, ps, hap2) > logProbReadGivenHaplotype(g, ps, hap1) {
			toHap2[id] = true
		}
	}
	for id := range reads2 {
		ps := profiles[id]
		if ps == nil {
			continue
		}
		if logProbReadGivenHaplotype(g, ps, hap1) > logProbReadGivenHaplotype(g, ps, hap2) {
			toHap1[id] = true
		}
	}
	return toHap2, toHap1
}

// logProbReadGivenHaplotype sums, over every bubble the read's profile
// covers, the read's log-likelihood of the haplotype's called allele
// at that bubble (§4.G's logProb(read|haplotype)).
func logProbReadGivenHaplotype(g *bubble.BubbleGraph, ps *bubble.ProfileSeq, haplotype []int) float64 {
	var sum float64
	for bi := ps.RefStart; bi < ps.RefStart+ps.Length && bi < len(haplotype); bi++ {
		allele := haplotype[bi]
		cost := float64(bubble.ProfileByteAt(g, ps, bi, allele))
		sum += -cost / bubble.ProfileProbScalar
	}
	return sum
}

// rederiveHaplotypes recomputes, for every bubble, the per-haplotype
// consensus allele call from the (possibly just-updated) read
// partition: the allele most supported, in aggregate, by the reads now
// assigned to each haplotype (§4.G step 2's "re-derive haplotype
// strings at each site from the new cell partitions").
func rederiveHaplotypes(g *bubble.BubbleGraph, profiles map[int]*bubble.ProfileSeq, reads1, reads2 map[int]bool) (hap1, hap2 []int) {
	n := g.NumBubbles()
	hap1 = make([]int, n)
	hap2 = make([]int, n)
	for bi, b := range g.Bubbles {
		hap1[bi] = bestAlleleFor(g, b, profiles, reads1, bi)
		hap2[bi] = bestAlleleFor(g, b, profiles, reads2, bi)
	}
	return hap1, hap2
}

// bestAlleleFor picks the allele with the highest aggregate
// log-likelihood across readSet at bubble g.Bubbles[bubbleIndex],
// falling back to the reference allele when no assigned read covers
// this bubble.
func bestAlleleFor(g *bubble.BubbleGraph, b *bubble.Bubble, profiles map[int]*bubble.ProfileSeq, readSet map[int]bool, bubbleIndex int) int {
	sums := make([]float64, b.NumAlleles())
	any := false
	for id := range readSet {
		ps := profiles[id]
		if ps == nil || !ps.Covers(bubbleIndex) {
			continue
		}
		any = true
		for a := 0; a < b.NumAlleles(); a++ {
			cost := float64(bubble.ProfileByteAt(g, ps, bubbleIndex, a))
			sums[a] += -cost / bubble.ProfileProbScalar
		}
	}
	if !any {
		if ref := b.RefAlleleIndex(); ref >= 0 {
			return ref
		}
		return 0
	}
	best, bestIdx := logspace.NegInf, 0
	for a, v := range sums {
		if v > best {
			best, bestIdx = v, a
		}
	}
	return bestIdx
}

func cloneIDs(s *phasehmm.ReadSet) map[int]bool {
	out := map[int]bool{}
	if s == nil {
		return out
	}
	s.Each(func(id int) { out[id] = true })
	return out
}

func toReadSet(ids map[int]bool) *phasehmm.ReadSet {
	maxID := -1
	for id := range ids {
		if id > maxID {
			maxID = id
		}
	}
	s := phasehmm.NewReadSet(maxID + 1)
	for id := range ids {
		s.Set(id)
	}
	return s
}
