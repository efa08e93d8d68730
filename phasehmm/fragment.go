package phasehmm

import (
	"github.com/grailbio/base/log"

	"github.com/grailbio/diploidphase/bubble"
)

// ReadSet is a fixed-capacity bitset of read IDs, in the spirit of
// circular/bitmap.go's word-packed bitmaps: GenomeFragment.Reads1/
// Reads2 are small enough (bounded by a chunk's read count) that a
// plain []uint64 word array is the right representation, with no
// need for the sliding-window machinery circular.Bitmap adds for
// whole-genome scans.
type ReadSet struct {
	words []uint64
}

// NewReadSet allocates a ReadSet able to hold read IDs in [0, n).
func NewReadSet(n int) *ReadSet {
	return &ReadSet{words: make([]uint64, (n+63)/64)}
}

// Set marks readID as a member.
func (s *ReadSet) Set(readID int) {
	w := readID / 64
	if w >= len(s.words) {
		grown := make([]uint64, w+1)
		copy(grown, s.words)
		s.words = grown
	}
	s.words[w] |= 1 << uint(readID%64)
}

// Contains reports whether readID is a member.
func (s *ReadSet) Contains(readID int) bool {
	w := readID / 64
	if w >= len(s.words) {
		return false
	}
	return s.words[w]&(1<<uint(readID%64)) != 0
}

// Count returns the number of members.
func (s *ReadSet) Count() int {
	n := 0
	for _, w := range s.words {
		for w != 0 {
			n++
			w &= w - 1
		}
	}
	return n
}

// Each calls fn once per member, in ascending order.
func (s *ReadSet) Each(fn func(readID int)) {
	for wi, w := range s.words {
		for w != 0 {
			bit := w & -w
			idx := 0
			for bit > 1 {
				bit >>= 1
				idx++
			}
			fn(wi*64 + idx)
			w &= w - 1
		}
	}
}

// GenomeFragment is the HMM's output (spec §3): two haplotype allele
// arrays, per-site posteriors and ancestor calls, and the two disjoint
// read sets the reads were partitioned into.
type GenomeFragment struct {
	RefStart int
	Length   int

	Hap1 []int
	Hap2 []int

	Posteriors []float64
	Ancestor   []int

	Reads1 *ReadSet
	Reads2 *ReadSet
}

// EmptyGenomeFragment returns the zero-site fragment spec §7's
// EmptyAlignment case calls for when there are no profile sequences to
// phase.
func EmptyGenomeFragment() *GenomeFragment {
	return &GenomeFragment{Reads1: NewReadSet(0), Reads2: NewReadSet(0)}
}

// Phase runs the read-partition HMM pipeline (§4.F): strand split,
// per-strand Viterbi passes (includeAncestorSubProb=false), a single
// top-level Viterbi pass over all kept reads
// (includeAncestorSubProb=true), and traceback into a GenomeFragment.
// Only the top-level pass determines the result; the per-strand paths
// are not merged into it.
// Reads dropped by the coverage filter are returned separately so
// §4.H can reattach them.
func Phase(g *bubble.BubbleGraph, profiles map[int]*bubble.ProfileSeq, hetSubstitutionProbability float64, maxCoverageDepth int) (fragment *GenomeFragment, discardedReadIDs []int) {
	if len(profiles) == 0 {
		log.Debug.Printf("phasehmm: no profile sequences to phase, returning empty fragment")
		return EmptyGenomeFragment(), nil
	}

	kept, discarded := ApplyCoverageFilter(g, profiles, maxCoverageDepth)
	var discardedIDs []int
	for id := range discarded {
		discardedIDs = append(discardedIDs, id)
	}

	stRef := BuildStReference(g, hetSubstitutionProbability)

	// Per-strand passes (includeAncestorSubProb=false) compute each
	// strand's own best path; §4.F step 1. Their results are discarded:
	// the top-level pass below phases all kept reads from scratch and
	// does not use them.
	for _, forwardStrand := range []bool{true, false} {
		strandKept := strandSubset(g, kept, forwardStrand)
		if len(strandKept) == 0 {
			continue
		}
		columns := BuildColumns(g, profiles, strandKept)
		hmm := &HMM{Graph: g, Columns: columns, StRef: stRef, Profiles: profiles, IncludeAncestorSubProb: false}
		hmm.RunViterbi()
	}

	// Top-level pass over all kept reads, ancestor-aware.
	columns := BuildColumns(g, profiles, kept)
	hmm := &HMM{Graph: g, Columns: columns, StRef: stRef, Profiles: profiles, IncludeAncestorSubProb: true}
	result := hmm.RunViterbi()
	posteriors := hmm.GenotypePosteriors(result)

	fragment = buildFragment(columns, result, posteriors)
	return fragment, discardedIDs
}

// strandSubset restricts kept to reads observed on the given strand,
// determined from the bubble graph's own read substrings (strand is a
// property of the read, recorded once per bubble it appears in).
func strandSubset(g *bubble.BubbleGraph, kept map[int]bool, forwardStrand bool) map[int]bool {
	out := make(map[int]bool, len(kept))
	for _, b := range g.Bubbles {
		for _, r := range b.Reads {
			if kept[r.ReadID] && r.ForwardStrand == forwardStrand {
				out[r.ReadID] = true
			}
		}
	}
	return out
}

func buildFragment(columns []Column, result ViterbiResult, posteriors []float64) *GenomeFragment {
	n := len(columns)
	maxReadID := 0
	for _, col := range columns {
		for _, id := range col.ActiveReadIDs {
			if id > maxReadID {
				maxReadID = id
			}
		}
	}
	reads1 := NewReadSet(maxReadID + 1)
	reads2 := NewReadSet(maxReadID + 1)
	// Each read gets exactly one haplotype assignment for the whole
	// fragment, taken from the first column it's active in; this keeps
	// reads1/reads2 disjoint (spec §8) even in degenerate cases where a
	// transition can't find a strictly consistent predecessor cell.
	assigned := make(map[int]bool, maxReadID+1)
	for i, col := range columns {
		p := result.Partitions[i]
		for k, id := range col.ActiveReadIDs {
			if assigned[id] {
				continue
			}
			assigned[id] = true
			if p.Bit(k) == 0 {
				reads1.Set(id)
			} else {
				reads2.Set(id)
			}
		}
	}
	return &GenomeFragment{
		RefStart:   0,
		Length:     n,
		Hap1:       result.HapAllele1,
		Hap2:       result.HapAllele2,
		Posteriors: posteriors,
		Ancestor:   result.Ancestor,
		Reads1:     reads1,
		Reads2:     reads2,
	}
}
