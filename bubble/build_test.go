package bubble_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grailbio/diploidphase/bubble"
	"github.com/grailbio/diploidphase/rle"
)

// hammingForwardProb is a stand-in forwardProb: -|mismatches| in log
// space, just enough to make the scorer favor the allele closest to
// the read's own sequence -- the "hard part" (pair-HMM scoring) is out
// of scope per spec §1.
type hammingForwardProb struct{}

func (hammingForwardProb) ForwardProb(allele rle.RleString, read bubble.ReadSubstring, forwardStrand bool, params *bubble.PolishParams) float64 {
	a := allele.Expand()
	var r []byte
	if read.Explicit != nil {
		r = read.Explicit.Expand()
	}
	mismatches := 0
	n := len(a)
	if len(r) < n {
		n = len(r)
	}
	mismatches += abs(len(a) - len(r))
	for i := 0; i < n; i++ {
		if a[i] != r[i] {
			mismatches++
		}
	}
	return -float64(mismatches)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func makeExtractor(refLen int, seqs map[int]string) *bubble.PoaReadExtractor {
	var obs []bubble.ReadObservation
	for id, s := range seqs {
		obs = append(obs, bubble.ReadObservation{
			ReadID:        id,
			ReadName:      "",
			ForwardStrand: true,
			AvgBaseQual:   30,
			ObsStart:      0,
			ObsEnd:        refLen,
			ExpandedSeq:   []byte(s),
		})
	}
	return &bubble.PoaReadExtractor{Observations: obs, NumPoaPositions: refLen, UseRLE: true}
}

func TestBuildBubbleGraphRefAlleleAlwaysPresent(t *testing.T) {
	ref := "AAACCCGGGTTT"
	poa := make([]bubble.PoaNode, len(ref))
	for i, c := range []byte(ref) {
		n := bubble.PoaNode{RefBase: c}
		n.BaseWeights[c] = 10
		poa[i] = n
	}
	// Introduce a clear alt allele at position 4 (a 'C' -> 'T' SNP with
	// strong support).
	poa[4].BaseWeights['T'] = 5

	extractor := makeExtractor(len(ref), map[int]string{
		0: "AAACCCGGGTTT",
		1: "AAACTCGGGTTT",
	})
	params := bubble.DefaultPolishParams
	opts := &bubble.BuildOpts{
		Poa:        poa,
		Extractor:  extractor,
		ReadIDs:    []int{0, 1},
		ReadNames:  []string{"r0", "r1"},
		ReadQuals:  []float64{30, 30},
		ReadStrand: []bool{true, true},
		Params:     &params,
		Forward:    hammingForwardProb{},
	}
	g := bubble.BuildBubbleGraph(opts)

	assert.True(t, g.NumBubbles() >= 1, "expected at least one bubble from the alt allele")
	total := 0
	offset := 0
	for _, b := range g.Bubbles {
		assert.Equal(t, offset, b.AlleleOffset)
		offset += b.NumAlleles()
		total += b.NumAlleles()

		foundRef := false
		for _, a := range b.Alleles {
			if a.EqualExpanded(b.RefAllele) {
				foundRef = true
			}
		}
		assert.True(t, foundRef, "bubble at %d missing reference allele", b.RefStart)
		assert.Equal(t, b.NumAlleles()*b.NumReads(), len(b.AlleleReadSupports))
	}
	assert.Equal(t, total, g.TotalAlleles)
}

func TestScorerRanksNonRefReadToNonRefAllele(t *testing.T) {
	// Scenario 5 from spec §8: one allele == reference, one distinct;
	// two reads with clearly different allele supports.
	refAllele := rle.NewRleString([]byte("C"), true)
	altAllele := rle.NewRleString([]byte("T"), true)
	b := &bubble.Bubble{
		RefStart:     4,
		BubbleLength: 1,
		RefAllele:    refAllele,
		Alleles:      []rle.RleString{refAllele, altAllele},
		Reads: []bubble.ReadSubstring{
			{ReadID: 0, Start: 4, Length: 1, AvgBaseQual: 30, ForwardStrand: true, Explicit: ref(refAllele)},
			{ReadID: 1, Start: 4, Length: 1, AvgBaseQual: 30, ForwardStrand: true, Explicit: ref(altAllele)},
		},
	}
	params := bubble.DefaultPolishParams
	bubble.ScoreBubble(b, hammingForwardProb{}, &params)

	assert.Equal(t, 0, b.BestAlleleForRead(0), "read 0 (matches ref) should rank the ref allele highest")
	assert.Equal(t, 1, b.BestAlleleForRead(1), "read 1 (matches alt) should rank the alt allele highest")
}

func ref(r rle.RleString) *rle.RleString { return &r }

func TestFilterReadsByQualityNeverDropsUnqualified(t *testing.T) {
	reads := []bubble.ReadSubstring{
		{ReadID: 0, AvgBaseQual: -1},
		{ReadID: 1, AvgBaseQual: 5},
		{ReadID: 2, AvgBaseQual: 40},
	}
	out := bubble.FilterReadsByQuality(reads, 1, 10)
	var ids []int
	for _, r := range out {
		ids = append(ids, r.ReadID)
	}
	assert.True(t, contains(ids, 0), "unqualified read must never be dropped")
	assert.True(t, contains(ids, 2), "high quality read kept")
}

func contains(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func TestEnumerateReadDerivedAllelesGroupsByStringEquality(t *testing.T) {
	ref := rle.NewRleString([]byte("AC"), true)
	members := []rle.RleString{
		rle.NewRleStringFromRuns([]byte("AC"), []int{1, 1}),
		rle.NewRleStringFromRuns([]byte("AC"), []int{2, 1}), // same string, different runs
		rle.NewRleString([]byte("AT"), true),
	}
	alleles := bubble.EnumerateReadDerivedAlleles(ref, members)
	// AC group collapses to one consensus allele (runs rounded to 2,1,
	// i.e. "AAC"); AT is a second. The consensus is not run-for-run equal
	// to the reference (runs 1,1), so the reference is appended as a third.
	assert.Equal(t, 3, len(alleles))
	var seqs []string
	for _, a := range alleles {
		seqs = append(seqs, strings.TrimSpace(a.String()))
	}
	assert.Contains(t, seqs, "AC")
	assert.Contains(t, seqs, "AT")
}
