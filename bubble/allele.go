package bubble

import (
	"github.com/grailbio/base/log"
	grerrors "github.com/grailbio/base/errors"

	"github.com/grailbio/diploidphase/rle"
)

// maxEnumerationRetries bounds the "increase threshold ×1.5 and retry"
// backoff loop (§4.C, §7 OverflowBudget) before the enumerator gives up
// on POA-enumeration mode and falls back to read-derived alleles.
const maxEnumerationRetries = 6

// EnumerateReadDerivedAlleles implements §4.C's read-derived mode:
// group the interval's read substrings by RLE-string equality, and
// within each group emit one consensus allele whose per-position run
// count is the rounded mean of the group's run counts. The reference
// substring is always included, even if no read supports it exactly.
func EnumerateReadDerivedAlleles(refSubstring rle.RleString, memberSeqs []rle.RleString) []rle.RleString {
	var groups [][]rle.RleString
	for _, seq := range memberSeqs {
		placed := false
		for gi, g := range groups {
			if g[0].EqualString(seq) {
				groups[gi] = append(groups[gi], seq)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []rle.RleString{seq})
		}
	}

	alleles := make([]rle.RleString, 0, len(groups)+1)
	haveRef := false
	for _, g := range groups {
		consensus := rle.ConsensusRuns(g)
		if consensus.EqualExpanded(refSubstring) {
			haveRef = true
		}
		alleles = append(alleles, consensus)
	}
	if !haveRef {
		alleles = append(alleles, refSubstring)
	}
	return alleles
}

// poaCandidate is one (base, repeat count, edit) choice at a single POA
// position within a bubble interval, used by the recursive enumerator.
type poaCandidate struct {
	base        byte
	repeatCount int
	insert      []byte // nil for "no edit" or a delete
	deleteLen   int     // >0 for a delete consuming this many more positions
}

func candidatesAt(node *PoaNode, threshold float64) []poaCandidate {
	var cands []poaCandidate
	// reference / no-edit choice is always available.
	cands = append(cands, poaCandidate{base: node.RefBase, repeatCount: node.RefRepeatCount})
	for c, w := range node.BaseWeights {
		if byte(c) == node.RefBase || w <= threshold {
			continue
		}
		cands = append(cands, poaCandidate{base: byte(c), repeatCount: node.RefRepeatCount})
	}
	for n, w := range node.RepeatCountWeights {
		if n == node.RefRepeatCount || w <= 2*threshold {
			continue
		}
		cands = append(cands, poaCandidate{base: node.RefBase, repeatCount: n})
	}
	for _, ins := range node.Inserts {
		if ins.Weight > threshold {
			cands = append(cands, poaCandidate{base: node.RefBase, repeatCount: node.RefRepeatCount, insert: ins.Seq})
		}
	}
	for _, del := range node.Deletes {
		if del.Weight > threshold {
			cands = append(cands, poaCandidate{base: node.RefBase, repeatCount: node.RefRepeatCount, deleteLen: del.Length})
		}
	}
	return cands
}

// EnumeratePoaAlleles implements §4.C's POA-enumeration mode: a
// recursive product of per-position (base × repeat count × edit)
// choices across the interval, deduplicated by string equality and
// capped at params.MaxConsensusStrings. Enumeration starts at a
// candidate weight threshold of 0; on overflow the threshold is raised
// (to 1 after the first attempt, then ×1.5 each time) and enumeration
// retried; after
// maxEnumerationRetries failed attempts it falls back to read-derived
// alleles (§7 OverflowBudget).
func EnumeratePoaAlleles(span []PoaNode, refSubstring rle.RleString, params *PolishParams, fallbackMemberSeqs []rle.RleString) []rle.RleString {
	threshold := 0.0 // start permissive: every candidate with nonzero weight in span is enumerated.
	for attempt := 0; attempt < maxEnumerationRetries; attempt++ {
		strs, ok := enumerateOnce(span, params.MaxConsensusStrings, threshold)
		if ok {
			seqs := make([]rle.RleString, 0, len(strs)+1)
			haveRef := false
			for _, s := range strs {
				if s.EqualExpanded(refSubstring) {
					haveRef = true
				}
				seqs = append(seqs, s)
			}
			if !haveRef {
				seqs = append(seqs, refSubstring)
			}
			return seqs
		}
		log.Debug.Printf("bubble: enumeration overflowed maxConsensusStrings=%d at attempt %d, inflating threshold", params.MaxConsensusStrings, attempt)
		if threshold == 0 {
			threshold = 1
		} else {
			threshold *= 1.5
		}
	}
	err := grerrors.E(grerrors.NotSupported, "bubble: POA-enumeration exceeded maxConsensusStrings after retries, falling back to read-derived alleles")
	log.Error.Print(err)
	return EnumerateReadDerivedAlleles(refSubstring, fallbackMemberSeqs)
}

// enumerateOnce performs one bounded enumeration pass; ok is false if
// the cap was exceeded partway through (caller should retry with a
// higher threshold).
func enumerateOnce(span []PoaNode, cap int, threshold float64) ([]rle.RleString, bool) {
	seen := map[string]rle.RleString{}
	var overflowed bool
	var rec func(pos int, seq []byte, runs []int)
	rec = func(pos int, seq []byte, runs []int) {
		if overflowed {
			return
		}
		if pos == len(span) {
			key := string(seq)
			if _, ok := seen[key]; !ok {
				if len(seen) >= cap {
					overflowed = true
					return
				}
				seen[key] = rle.NewRleStringFromRuns(append([]byte(nil), seq...), append([]int(nil), runs...))
			}
			return
		}
		for _, cand := range candidatesAt(&span[pos], threshold) {
			if overflowed {
				return
			}
			nextSeq := append(append([]byte(nil), seq...), cand.base)
			nextRuns := append(append([]int(nil), runs...), cand.repeatCount)
			if len(cand.insert) > 0 {
				for _, c := range cand.insert {
					nextSeq = append(nextSeq, c)
					nextRuns = append(nextRuns, 1)
				}
				rec(pos+1, nextSeq, nextRuns)
				continue
			}
			if cand.deleteLen > 0 {
				rec(pos+cand.deleteLen, nextSeq, nextRuns)
				continue
			}
			rec(pos+1, nextSeq, nextRuns)
		}
	}
	rec(0, nil, nil)
	if overflowed {
		return nil, false
	}
	out := make([]rle.RleString, 0, len(seen))
	for _, v := range seen {
		out = append(out, v)
	}
	return out, true
}
