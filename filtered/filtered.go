// Package filtered implements the filtered-read attacher (spec §4.H):
// reads the HMM never saw (coverage-capped by ApplyCoverageFilter, or
// supplied separately) are classified against the phased haplotypes by
// a cumulative log-odds score over heterozygous bubbles.
package filtered

import (
	"fmt"

	"github.com/grailbio/base/log"

	"github.com/grailbio/diploidphase/bubble"
	"github.com/grailbio/diploidphase/internal/logspace"
	"github.com/grailbio/diploidphase/phasehmm"
)

// Counts mirrors markduplicates.Metrics' style of a plain counters
// struct: classified splits into hap1/hap2, Unclassified is a tie
// (s1 == s2), NoScore is a read with no het-bubble overlap at all.
type Counts struct {
	Hap1         int
	Hap2         int
	Unclassified int
	NoScore      int
}

// String renders the counts as a single tab-separated line, in the
// style of markduplicates.Metrics.String.
func (c Counts) String() string {
	return fmt.Sprintf("%d\t%d\t%d\t%d", c.Hap1, c.Hap2, c.Unclassified, c.NoScore)
}

// Attach classifies every read in readIDs (expected to be reads the
// HMM did not phase) against fragment's haplotype calls, using only
// bubbles where the two haplotypes disagree ("het" bubbles -- spec
// §4.H only accumulates evidence there, since a homozygous bubble
// carries no phasing information). Reads never observed at any het
// bubble are counted NoScore and left unclassified, per the spec's own
// Open Question on zero-support reads: no tiebreak is guessed, the
// read is simply reported as having no score.
func Attach(g *bubble.BubbleGraph, profiles map[int]*bubble.ProfileSeq, fragment *phasehmm.GenomeFragment, readIDs []int) (hap1IDs, hap2IDs, unclassifiedIDs []int, counts Counts) {
	hetBubbles := hetBubbleIndices(g, fragment)

	for _, id := range readIDs {
		ps := profiles[id]
		s1, s2, scored := scoreRead(g, ps, fragment, hetBubbles)
		switch {
		case !scored:
			counts.NoScore++
		case s1 > s2:
			hap1IDs = append(hap1IDs, id)
			counts.Hap1++
		case s2 > s1:
			hap2IDs = append(hap2IDs, id)
			counts.Hap2++
		default:
			unclassifiedIDs = append(unclassifiedIDs, id)
			counts.Unclassified++
		}
	}
	log.Debug.Printf("filtered: attached %s (hap1/hap2/unclassified/noScore)", counts.String())
	return hap1IDs, hap2IDs, unclassifiedIDs, counts
}

// hetBubbleIndices returns the bubbles where fragment's two haplotype
// calls differ.
func hetBubbleIndices(g *bubble.BubbleGraph, fragment *phasehmm.GenomeFragment) []int {
	var het []int
	for bi := 0; bi < g.NumBubbles() && bi < len(fragment.Hap1) && bi < len(fragment.Hap2); bi++ {
		if fragment.Hap1[bi] != fragment.Hap2[bi] {
			het = append(het, bi)
		}
	}
	return het
}

// scoreRead accumulates the §4.H cumulative log-odds over every het
// bubble the read's profile covers; scored is false if the read
// covers none of them (the zero-support case).
func scoreRead(g *bubble.BubbleGraph, ps *bubble.ProfileSeq, fragment *phasehmm.GenomeFragment, hetBubbles []int) (s1, s2 float64, scored bool) {
	if ps == nil {
		return 0, 0, false
	}
	for _, bi := range hetBubbles {
		if !ps.Covers(bi) {
			continue
		}
		a1 := fragment.Hap1[bi]
		a2 := fragment.Hap2[bi]
		support1 := -float64(bubble.ProfileByteAt(g, ps, bi, a1)) / bubble.ProfileProbScalar
		support2 := -float64(bubble.ProfileByteAt(g, ps, bi, a2)) / bubble.ProfileProbScalar
		total := logspace.LogSumExp([]float64{support1, support2})
		s1 += support1 - total
		s2 += support2 - total
		scored = true
	}
	return s1, s2, scored
}
