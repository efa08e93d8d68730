package phasemetric

import (
	"math"

	"github.com/grailbio/base/log"
)

// MatchedPair is one position where query and truth both carry a
// phased, heterozygous variant whose allele sets agree (spec §4.I
// "Variant matching").
type MatchedPair struct {
	QueryIndex, TruthIndex int
	QueryPS, TruthPS       string
	Match11                bool
}

// MatchVariants walks two ascending-refPos variant lists and matches
// them by position and allele-set agreement (spec §4.I): a site where
// {qv.Allele1, qv.Allele2} matches {tv.Allele1, tv.Allele2} either
// straight (gt1↔gt1, gt2↔gt2) or crossed records a MatchedPair;
// anything else (no allele-set agreement, or an ambiguous match on
// both orientations at once) is skipped.
func MatchVariants(query, truth []PhasedVariant) []MatchedPair {
	var pairs []MatchedPair
	qi, ti := 0, 0
	for qi < len(query) && ti < len(truth) {
		qv, tv := &query[qi], &truth[ti]
		if qv.Contig != tv.Contig {
			// Contigs are assumed pre-filtered to the shared set by the
			// caller; on a mismatch, advance the side whose contig name
			// sorts first.
			if qv.Contig < tv.Contig {
				qi++
			} else {
				ti++
			}
			continue
		}
		switch {
		case qv.RefPos < tv.RefPos:
			qi++
		case qv.RefPos > tv.RefPos:
			ti++
		default:
			straight := qv.Allele1() == tv.Allele1() && qv.Allele2() == tv.Allele2()
			crossed := qv.Allele1() == tv.Allele2() && qv.Allele2() == tv.Allele1()
			switch {
			case straight && crossed:
				log.Error.Printf("phasemetric: ambiguous allele match at %s:%d, skipping", qv.Contig, qv.RefPos)
			case straight:
				pairs = append(pairs, MatchedPair{qi, ti, qv.PhaseSet, tv.PhaseSet, true})
			case crossed:
				pairs = append(pairs, MatchedPair{qi, ti, qv.PhaseSet, tv.PhaseSet, false})
			}
			qi++
			ti++
		}
	}
	return pairs
}

// PhaseSetIntervals records, for every phase set in variants, the
// first and last index (into variants) at which it appears (spec
// §4.I "Phase-set intervals").
func PhaseSetIntervals(variants []PhasedVariant) map[string][2]int {
	out := map[string][2]int{}
	for i, v := range variants {
		iv, ok := out[v.PhaseSet]
		if !ok {
			out[v.PhaseSet] = [2]int{i, i}
			continue
		}
		iv[1] = i
		out[v.PhaseSet] = iv
	}
	return out
}

// partialSum is one (queryPS, truthPS) pair's running decay-weighted
// accumulator.
type partialSum struct {
	phaseSum1, phaseSum2, unphasedSum float64
}

type psKey struct{ queryPS, truthPS string }

// decayPass implements spec §4.I's decay-weighted sum, walking pairs
// in the order given (forward or, with a pre-reversed slice,
// backward). queryIntervals/truthIntervals are used to garbage-collect
// a partial sum once either list's iterator has moved past its phase
// set's span.
func decayPass(pairs []MatchedPair, queryIntervals, truthIntervals map[string][2]int, decay float64, reverse bool) (totalSum, partitionTotalSum float64) {
	sums := map[psKey]*partialSum{}
	var outOfScopeSum, partitionSum float64

	inScope := func(interval [2]int, idx int) bool {
		if reverse {
			return interval[0] <= idx
		}
		return interval[1] >= idx
	}

	for _, p := range pairs {
		key := psKey{p.QueryPS, p.TruthPS}

		// Step 1: fold in every existing partial sum.
		for k, s := range sums {
			if k == key {
				if p.Match11 {
					totalSum += s.phaseSum1
					s.phaseSum1++
				} else {
					totalSum += s.phaseSum2
					s.phaseSum2++
				}
			} else {
				totalSum += s.unphasedSum
			}
			s.unphasedSum++
		}

		// Step 2.
		totalSum += outOfScopeSum

		// Step 3.
		partitionTotalSum += partitionSum
		partitionSum++

		// Step 4.
		if _, ok := sums[key]; !ok {
			sums[key] = &partialSum{phaseSum1: 1, phaseSum2: 1, unphasedSum: 1}
		}

		// Step 5: decay every accumulator.
		for _, s := range sums {
			s.phaseSum1 *= decay
			s.phaseSum2 *= decay
			s.unphasedSum *= decay
		}
		outOfScopeSum *= decay
		partitionSum *= decay

		// Step 6: garbage-collect partial sums whose phase sets are no
		// longer live on either side.
		qIdx, tIdx := p.QueryIndex, p.TruthIndex
		for k, s := range sums {
			qIv, qOK := queryIntervals[k.queryPS]
			tIv, tOK := truthIntervals[k.truthPS]
			live := qOK && tOK && inScope(qIv, qIdx) && inScope(tIv, tIdx)
			if !live {
				outOfScopeSum += s.unphasedSum
				delete(sums, k)
			}
		}
	}
	return totalSum, partitionTotalSum
}

// Correctness computes spec §4.I's decay-weighted phasing-correctness
// metric. decay=0 is the switch-correctness limit, a distinct
// algorithm from the decay pass below (every accumulator the decay
// pass keeps would be multiplied to zero before it could ever be
// read), so it's delegated to SwitchCorrectness directly rather than
// evaluating the decay>0 pass at decay=0. For decay > 0, a forward
// pass and a backward pass are run over the same matched pairs, and
// the metric is the ratio of their combined numerators and
// denominators.
func Correctness(query, truth []PhasedVariant, decay float64) float64 {
	if decay == 0 {
		return SwitchCorrectness(query, truth)
	}
	pairs := MatchVariants(query, truth)
	queryIntervals := PhaseSetIntervals(query)
	truthIntervals := PhaseSetIntervals(truth)

	forwardNumer, forwardDenom := decayPass(pairs, queryIntervals, truthIntervals, decay, false)

	reversed := make([]MatchedPair, len(pairs))
	for i, p := range pairs {
		reversed[len(pairs)-1-i] = p
	}
	backwardNumer, backwardDenom := decayPass(reversed, queryIntervals, truthIntervals, decay, true)

	denom := forwardDenom + backwardDenom
	if denom == 0 {
		return math.NaN()
	}
	return (forwardNumer + backwardNumer) / denom
}

// SwitchCorrectness implements the decay=0 limit (spec §4.I): for each
// consecutive matched pair, a switch can only occur when both phase
// sets are unchanged from the previous pair; otherwise the transition
// counts as correct unconditionally. Per spec §9's Open Question 2, a
// matched-pair count of 0 or 1 (no consecutive transitions to judge)
// returns NaN rather than a guessed value.
func SwitchCorrectness(query, truth []PhasedVariant) float64 {
	pairs := MatchVariants(query, truth)
	if len(pairs)-1 <= 0 {
		return math.NaN()
	}
	correct := 0
	for i := 1; i < len(pairs); i++ {
		prev, cur := pairs[i-1], pairs[i]
		if prev.QueryPS == cur.QueryPS && prev.TruthPS == cur.TruthPS {
			if cur.Match11 == prev.Match11 {
				correct++
			}
		} else {
			correct++
		}
	}
	return float64(correct) / float64(len(pairs)-1)
}
