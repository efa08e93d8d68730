package bubble

import (
	"github.com/grailbio/base/log"

	"github.com/grailbio/diploidphase/interval"
	"github.com/grailbio/diploidphase/rle"
)

// BuildOpts bundles the collaborators BuildBubbleGraph needs beyond
// PolishParams: the POA-derived reference, the per-read observations,
// and the scoring collaborator. Kept as its own struct (rather than
// a long parameter list) the way pileup/snp.Opts groups a pipeline's
// inputs.
type BuildOpts struct {
	Poa        []PoaNode
	Extractor  *PoaReadExtractor
	ReadIDs    []int
	ReadNames  []string
	ReadQuals  []float64
	ReadStrand []bool

	Params   *PolishParams
	Forward  ForwardProber
	VcfSites []VcfGuideEntry
}

// BuildBubbleGraph runs the full B→C→D pipeline (§4.B-D): detect
// anchors, carve the non-anchor intervals into bubbles, enumerate
// alleles for each, extract and quality-filter read substrings, and
// score every (read, allele) pair.
func BuildBubbleGraph(opts *BuildOpts) *BubbleGraph {
	anchors, stats := DetectAnchors(opts.Poa, opts.Params, opts.VcfSites)
	if stats != (CandidateStats{}) {
		log.Debug.Printf("bubble graph: candidate stats %+v", stats)
	}
	endpoints := AnchorIntervalEndpoints(anchors)

	refExpanded := make([]byte, len(opts.Poa))
	for i, n := range opts.Poa {
		refExpanded[i] = n.RefBase
	}
	reference := rle.NewRleString(refExpanded, opts.Params.UseRunLengthEncoding)

	var bubbles []*Bubble
	scanner := interval.NewUnionScanner(endpoints)
	var start, end interval.PosType
	for scanner.Scan(&start, &end, interval.PosType(len(opts.Poa))) {
		b := buildOneBubble(int(start), int(end), opts)
		bubbles = append(bubbles, b)
	}
	return NewBubbleGraph(reference, bubbles)
}

func buildOneBubble(start, end int, opts *BuildOpts) *Bubble {
	refSub := make([]byte, end-start)
	for i := start; i < end; i++ {
		refSub[i-start] = opts.Poa[i].RefBase
	}
	refAllele := rle.NewRleString(refSub, opts.Params.UseRunLengthEncoding)

	reads := ExtractReadSubstrings(opts.Extractor, opts.ReadIDs, opts.ReadNames, opts.ReadQuals, opts.ReadStrand, start, end, start == 0, end >= len(opts.Poa))
	reads = FilterReadsByQuality(reads, opts.Params.FilterReadsWhileHaveAtLeastThisCoverage, opts.Params.MinAvgBaseQuality)

	var alleles []rle.RleString
	memberSeqs := make([]rle.RleString, 0, len(reads))
	for _, r := range reads {
		memberSeqs = append(memberSeqs, *r.Explicit)
	}
	if opts.Params.UseReadAlleles {
		alleles = EnumerateReadDerivedAlleles(refAllele, memberSeqs)
	} else {
		alleles = EnumeratePoaAlleles(opts.Poa[start:end], refAllele, opts.Params, memberSeqs)
	}

	b := &Bubble{
		RefStart:     start,
		BubbleLength: end - start,
		RefAllele:    refAllele,
		Alleles:      alleles,
		Reads:        reads,
	}
	ScoreBubble(b, opts.Forward, opts.Params)
	return b
}
