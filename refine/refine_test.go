package refine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grailbio/diploidphase/bubble"
	"github.com/grailbio/diploidphase/phasehmm"
	"github.com/grailbio/diploidphase/refine"
	"github.com/grailbio/diploidphase/rle"
)

func misassignedGraph(t *testing.T) (*bubble.BubbleGraph, map[int]*bubble.ProfileSeq) {
	t.Helper()
	ref := rle.NewRleString([]byte("C"), true)
	alt := rle.NewRleString([]byte("T"), true)
	b := &bubble.Bubble{
		RefStart:     4,
		BubbleLength: 1,
		RefAllele:    ref,
		Alleles:      []rle.RleString{ref, alt},
		Reads: []bubble.ReadSubstring{
			{ReadID: 0, Start: 4, Length: 1, AvgBaseQual: 30, ForwardStrand: true},
			{ReadID: 1, Start: 4, Length: 1, AvgBaseQual: 30, ForwardStrand: true},
			{ReadID: 2, Start: 4, Length: 1, AvgBaseQual: 30, ForwardStrand: true},
		},
	}
	// Reads 0 and 1 clearly support alt; read 2 clearly supports ref.
	b.AlleleReadSupports = make([]float64, b.NumAlleles()*b.NumReads())
	b.SetSupport(0, 0, -10)
	b.SetSupport(1, 0, 0)
	b.SetSupport(0, 1, -10)
	b.SetSupport(1, 1, 0)
	b.SetSupport(0, 2, 0)
	b.SetSupport(1, 2, -10)

	g := bubble.NewBubbleGraph(rle.RleString{}, []*bubble.Bubble{b})
	profiles := bubble.BuildProfileSeqs(g)
	return g, profiles
}

func TestRefineMovesMisassignedReadToBetterHaplotype(t *testing.T) {
	g, profiles := misassignedGraph(t)

	// Seed a deliberately wrong fragment: every read starts in hap1,
	// with hap1 called as the alt allele (index 1) and hap2 as ref
	// (index 0) -- read 2 (a ref supporter) should flip to hap2.
	reads1 := phasehmm.NewReadSet(3)
	reads1.Set(0)
	reads1.Set(1)
	reads1.Set(2)
	fragment := &phasehmm.GenomeFragment{
		Length: 1,
		Hap1:   []int{1},
		Hap2:   []int{0},
		Reads1: reads1,
		Reads2: phasehmm.NewReadSet(3),
	}

	refined := refine.Refine(g, profiles, fragment, 10)

	assert.True(t, refined.Reads1.Contains(0))
	assert.True(t, refined.Reads1.Contains(1))
	assert.True(t, refined.Reads2.Contains(2), "read 2 (ref-supporting) should flip away from the alt-calling haplotype")
	assert.False(t, refined.Reads1.Contains(2))
}

func TestRefineConvergesWithoutFlippingAnAlreadyStablePartition(t *testing.T) {
	g, profiles := misassignedGraph(t)

	reads1 := phasehmm.NewReadSet(3)
	reads1.Set(0)
	reads1.Set(1)
	reads2 := phasehmm.NewReadSet(3)
	reads2.Set(2)
	fragment := &phasehmm.GenomeFragment{
		Length: 1,
		Hap1:   []int{1},
		Hap2:   []int{0},
		Reads1: reads1,
		Reads2: reads2,
	}

	refined := refine.Refine(g, profiles, fragment, 10)
	assert.True(t, refined.Reads1.Contains(0))
	assert.True(t, refined.Reads1.Contains(1))
	assert.True(t, refined.Reads2.Contains(2))
}
