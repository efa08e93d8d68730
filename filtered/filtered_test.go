package filtered_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grailbio/diploidphase/bubble"
	"github.com/grailbio/diploidphase/filtered"
	"github.com/grailbio/diploidphase/phasehmm"
	"github.com/grailbio/diploidphase/rle"
)

func hetGraph(t *testing.T) (*bubble.BubbleGraph, *phasehmm.GenomeFragment) {
	t.Helper()
	ref := rle.NewRleString([]byte("C"), true)
	alt := rle.NewRleString([]byte("T"), true)
	b := &bubble.Bubble{
		RefStart: 4, BubbleLength: 1,
		RefAllele: ref,
		Alleles:   []rle.RleString{ref, alt},
	}
	g := bubble.NewBubbleGraph(rle.RleString{}, []*bubble.Bubble{b})
	fragment := &phasehmm.GenomeFragment{Hap1: []int{0}, Hap2: []int{1}}
	return g, fragment
}

func profileFavoring(g *bubble.BubbleGraph, readID, allele int) *bubble.ProfileSeq {
	b := g.Bubbles[0]
	bytes := make([]byte, b.NumAlleles())
	for a := range bytes {
		if a != allele {
			bytes[a] = 200
		}
	}
	return &bubble.ProfileSeq{ReadID: readID, RefStart: 0, Length: 1, ProfileProbs: bytes}
}

func TestAttachClassifiesReadsByLogOdds(t *testing.T) {
	g, fragment := hetGraph(t)
	profiles := map[int]*bubble.ProfileSeq{
		0: profileFavoring(g, 0, 0), // favors hap1's allele (ref)
		1: profileFavoring(g, 1, 1), // favors hap2's allele (alt)
	}

	hap1IDs, hap2IDs, unclassified, counts := filtered.Attach(g, profiles, fragment, []int{0, 1})
	assert.Equal(t, []int{0}, hap1IDs)
	assert.Equal(t, []int{1}, hap2IDs)
	assert.Empty(t, unclassified)
	assert.Equal(t, 1, counts.Hap1)
	assert.Equal(t, 1, counts.Hap2)
	assert.Equal(t, 0, counts.Unclassified)
	assert.Equal(t, 0, counts.NoScore)
}

func TestAttachReportsNoScoreForUncoveredReads(t *testing.T) {
	g, fragment := hetGraph(t)
	uncovered := &bubble.ProfileSeq{ReadID: 2, RefStart: 5, Length: 1, ProfileProbs: []byte{0, 0}}
	profiles := map[int]*bubble.ProfileSeq{2: uncovered}

	hap1IDs, hap2IDs, unclassified, counts := filtered.Attach(g, profiles, fragment, []int{2})
	assert.Empty(t, hap1IDs)
	assert.Empty(t, hap2IDs)
	assert.Empty(t, unclassified)
	assert.Equal(t, 1, counts.NoScore)
}

func TestAttachLeavesTieUnclassified(t *testing.T) {
	g, fragment := hetGraph(t)
	tied := &bubble.ProfileSeq{ReadID: 3, RefStart: 0, Length: 1, ProfileProbs: []byte{100, 100}}
	profiles := map[int]*bubble.ProfileSeq{3: tied}

	_, _, unclassified, counts := filtered.Attach(g, profiles, fragment, []int{3})
	assert.Equal(t, []int{3}, unclassified)
	assert.Equal(t, 1, counts.Unclassified)
}
