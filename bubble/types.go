// Package bubble builds the bubble graph (spec §4.B-E): it finds
// candidate variant sites in a POA, enumerates per-bubble allele sets,
// scores each (read, allele) pair with an injected pair-HMM, and
// projects the resulting supports into per-read profile-probability
// vectors for the phasing HMM.
package bubble

import (
	"github.com/grailbio/diploidphase/rle"
)

// PoaNode is the subset of a partial-order-alignment node the bubble
// graph needs: per-base and per-repeat-count weight, and weighted
// candidate inserts/deletes. POA construction itself is out of scope
// (spec §1); this is the consumed interface.
type PoaNode struct {
	RefBase byte
	// RefRepeatCount is the reference's run length at this position;
	// used to decide which entry of RepeatCountWeights is "reference".
	RefRepeatCount int
	// BaseWeights[c] is the accumulated read weight supporting base c,
	// indexed by alphabet.Letter value.
	BaseWeights [256]float64
	// RepeatCountWeights[n] is the accumulated weight supporting a
	// repeat count of n runs at this position.
	RepeatCountWeights []float64

	Inserts []PoaIndelCandidate
	Deletes []PoaIndelCandidate
}

// TotalWeight sums the per-base weight vector, which stands in for
// the node's total observed coverage at this POA position.
func (n *PoaNode) TotalWeight() float64 {
	var sum float64
	for _, w := range n.BaseWeights {
		sum += w
	}
	return sum
}

// PoaIndelCandidate is a candidate insert or delete anchored at a POA
// node, with its accumulated supporting weight.
type PoaIndelCandidate struct {
	Seq    []byte // empty for deletes
	Length int    // number of reference positions spanned, for deletes
	Weight float64
}

// ReadSubstring is a read's contribution to one bubble: which read,
// the POA position range it was cut from (Start, Length), its mean
// phred quality, and (when the caller already has it, e.g. VCF-driven
// mode) the literal substring so the scorer need not re-slice it.
type ReadSubstring struct {
	ReadID        int
	ReadName      string
	Start         int
	Length        int
	AvgBaseQual   float64 // -1 means "no quality available"
	ForwardStrand bool
	Explicit      *rle.RleString
}

// HasQuality reports whether this read substring carries a usable
// quality value; reads without qualities are never dropped by the
// §4.D coverage filter.
func (rs ReadSubstring) HasQuality() bool { return rs.AvgBaseQual >= 0 }

// Bubble is one candidate variant site: the reference interval it
// spans, its candidate alleles (reference allele always present),
// the reads observed across it, and their allele-support matrix.
type Bubble struct {
	RefStart     int
	BubbleLength int

	RefAllele rle.RleString
	Alleles   []rle.RleString

	Reads []ReadSubstring

	// AlleleReadSupports is row-major A×R: allele j, read k at
	// index j*len(Reads)+k.
	AlleleReadSupports []float64

	// VariantPositionOffsets are offsets within the bubble
	// corresponding to called variant positions (VCF-driven mode).
	VariantPositionOffsets []int

	// AlleleOffset is the prefix sum of allele counts of preceding
	// bubbles in the owning BubbleGraph.
	AlleleOffset int
}

// NumAlleles returns A, the number of candidate alleles.
func (b *Bubble) NumAlleles() int { return len(b.Alleles) }

// NumReads returns R, the number of read substrings scored.
func (b *Bubble) NumReads() int { return len(b.Reads) }

// Support returns AlleleReadSupports[allele*R + read].
func (b *Bubble) Support(allele, read int) float64 {
	return b.AlleleReadSupports[allele*len(b.Reads)+read]
}

// SetSupport sets AlleleReadSupports[allele*R + read] = v.
func (b *Bubble) SetSupport(allele, read int, v float64) {
	b.AlleleReadSupports[allele*len(b.Reads)+read] = v
}

// RefAlleleIndex returns the index of b.RefAllele within b.Alleles, or
// -1 if the invariant "alleles contains refAllele" was somehow
// violated (a bug, not a data condition).
func (b *Bubble) RefAlleleIndex() int {
	for i, a := range b.Alleles {
		if a.EqualExpanded(b.RefAllele) {
			return i
		}
	}
	return -1
}

// BubbleGraph is the ordered sequence of bubbles produced from one POA
// or VCF-site list, plus the reference RLE string they were cut from.
// Bubbles are disjoint, sorted by RefStart, and separated by anchor
// regions in which every read agrees with the reference.
type BubbleGraph struct {
	Reference rle.RleString
	Bubbles   []*Bubble

	TotalAlleles int
}

// NewBubbleGraph assembles a BubbleGraph from already-built bubbles
// (sorted by RefStart) and assigns AlleleOffset/TotalAlleles.
func NewBubbleGraph(reference rle.RleString, bubbles []*Bubble) *BubbleGraph {
	g := &BubbleGraph{Reference: reference, Bubbles: bubbles}
	offset := 0
	for _, b := range bubbles {
		b.AlleleOffset = offset
		offset += b.NumAlleles()
	}
	g.TotalAlleles = offset
	return g
}

// NumBubbles returns the number of bubbles in the graph.
func (g *BubbleGraph) NumBubbles() int { return len(g.Bubbles) }
