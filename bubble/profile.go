package bubble

import (
	"github.com/grailbio/diploidphase/internal/logspace"
)

// ProfileProbScalar scales a log-probability difference into the
// [0, 255] byte range used by ProfileSeq.ProfileProbs and by the
// stReference substitution-log-prob matrix (§3, §4.E). Chosen so that
// a ~25-unit natural-log difference (well beyond what a single bubble
// realistically produces) saturates the byte range.
const ProfileProbScalar = 10.0

// ProfileSeq is one read's per-bubble, per-allele quantized
// log-probability vector (§3). RefStart/Length are in bubble-index
// space; AlleleOffset is the bubble offset into the flat allele
// dimension (matches Bubble.AlleleOffset of the bubble at RefStart).
type ProfileSeq struct {
	ReadID       int
	RefStart     int
	Length       int
	AlleleOffset int
	ProfileProbs []byte
}

// BuildProfileSeqs projects every bubble's AlleleReadSupports into a
// ProfileSeq per read, per §4.E: for the bubbles a read spans,
// log-sum-exp the per-bubble allele supports, then write, for each
// allele j, byte(min(255, round(ProfileProbScalar*(total-logProb[j])))).
// A lower byte means higher posterior allele probability.
func BuildProfileSeqs(g *BubbleGraph) map[int]*ProfileSeq {
	type span struct {
		first, last int // bubble indices, inclusive
	}
	spans := map[int]*span{}
	for bi, b := range g.Bubbles {
		for _, read := range b.Reads {
			sp, ok := spans[read.ReadID]
			if !ok {
				spans[read.ReadID] = &span{first: bi, last: bi}
				continue
			}
			if bi < sp.first {
				sp.first = bi
			}
			if bi > sp.last {
				sp.last = bi
			}
		}
	}

	out := make(map[int]*ProfileSeq, len(spans))
	for readID, sp := range spans {
		alleleCount := 0
		for bi := sp.first; bi <= sp.last; bi++ {
			alleleCount += g.Bubbles[bi].NumAlleles()
		}
		ps := &ProfileSeq{
			ReadID:       readID,
			RefStart:     sp.first,
			Length:       sp.last - sp.first + 1,
			AlleleOffset: g.Bubbles[sp.first].AlleleOffset,
			ProfileProbs: make([]byte, alleleCount),
		}
		writeOffset := 0
		for bi := sp.first; bi <= sp.last; bi++ {
			b := g.Bubbles[bi]
			readIdx := b.readIndex(readID)
			if readIdx == -1 {
				// Read doesn't cover this bubble within its span; its
				// profile there is flat/uninformative (all alleles
				// equally likely, encoded as zero difference from total).
				for j := 0; j < b.NumAlleles(); j++ {
					ps.ProfileProbs[writeOffset+j] = 0
				}
				writeOffset += b.NumAlleles()
				continue
			}
			logProbs := make([]float64, b.NumAlleles())
			for j := 0; j < b.NumAlleles(); j++ {
				logProbs[j] = b.Support(j, readIdx)
			}
			total := logspace.LogSumExp(logProbs)
			for j, lp := range logProbs {
				ps.ProfileProbs[writeOffset+j] = quantize(total - lp)
			}
			writeOffset += b.NumAlleles()
		}
		out[readID] = ps
	}
	return out
}

func quantize(diff float64) byte {
	v := ProfileProbScalar * diff
	if v < 0 {
		v = 0
	}
	rounded := int(v + 0.5)
	if rounded > 255 {
		rounded = 255
	}
	return byte(rounded)
}

func (b *Bubble) readIndex(readID int) int {
	for i, r := range b.Reads {
		if r.ReadID == readID {
			return i
		}
	}
	return -1
}

// ProfileByteAt returns ps.ProfileProbs[j] for the allele j of the
// bubble at bubbleIndex, given that ps spans bubbleIndex. It is the
// HMM's only point of contact with a ProfileSeq's internal byte
// layout.
func ProfileByteAt(g *BubbleGraph, ps *ProfileSeq, bubbleIndex, allele int) byte {
	offset := 0
	for bi := ps.RefStart; bi < bubbleIndex; bi++ {
		offset += g.Bubbles[bi].NumAlleles()
	}
	return ps.ProfileProbs[offset+allele]
}

// Covers reports whether ps has any observation at bubbleIndex.
func (ps *ProfileSeq) Covers(bubbleIndex int) bool {
	return bubbleIndex >= ps.RefStart && bubbleIndex < ps.RefStart+ps.Length
}
