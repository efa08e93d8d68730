package bubble

import (
	"github.com/biogo/biogo/alphabet"

	"github.com/grailbio/diploidphase/rle"
)

// PolishParams mirrors spec §6's PolishParams: the knobs shared by
// candidate-site detection, allele enumeration, and bubble scoring.
// Like pileup/snp.Opts, all fields are plain values with a
// package-level DefaultPolishParams for the common case.
type PolishParams struct {
	UseRunLengthEncoding bool
	UseReadAlleles       bool
	// UseReadAllelesInPhasing is not read by any code in this module:
	// bubble construction honors UseReadAlleles, and the HMM phases
	// whatever allele set the bubbles carry.
	UseReadAllelesInPhasing bool

	// CandidateVariantWeight scales the sliding-window threshold used by
	// the candidate-site detector (§4.B).
	CandidateVariantWeight float64
	// ColumnAnchorTrim dilates the variant-position set by this many
	// positions on each side before taking the anchor complement.
	ColumnAnchorTrim int
	// MaxConsensusStrings bounds POA-enumeration mode combinatorics
	// (§4.C); exceeding it triggers the OverflowBudget backoff.
	MaxConsensusStrings int

	// FilterReadsWhileHaveAtLeastThisCoverage and MinAvgBaseQuality
	// drive the bubble scorer's quality filter (§4.D).
	FilterReadsWhileHaveAtLeastThisCoverage int
	MinAvgBaseQuality                       float64

	UseRepeatCountsInAlignment bool
	Alphabet                   alphabet.Alphabet
	MaxRepeatCount             int
	HetSubstitutionProbability float64

	// P carries the opaque pair-HMM parameters; the core never
	// interprets it, only threads it through to ForwardProb.
	P interface{}

	StateMachineForForwardStrandRead interface{}
	StateMachineForReverseStrandRead interface{}
}

// DefaultPolishParams matches the parameter values used by margin-style
// long-read polishing pipelines for ONT/HiFi data; callers override
// individual fields as needed.
var DefaultPolishParams = PolishParams{
	UseRunLengthEncoding:                     true,
	UseReadAlleles:                           true,
	UseReadAllelesInPhasing:                  true,
	CandidateVariantWeight:                   0.3,
	ColumnAnchorTrim:                         1,
	MaxConsensusStrings:                      50,
	FilterReadsWhileHaveAtLeastThisCoverage:  10,
	MinAvgBaseQuality:                        10.0,
	UseRepeatCountsInAlignment:               true,
	Alphabet:                                 alphabet.DNA,
	MaxRepeatCount:                           50,
	HetSubstitutionProbability:               0.001,
}

// CandidateWindowSize is the sliding-window width (in POA positions)
// used to compute the per-position candidate-weight threshold (§4.B).
const CandidateWindowSize = 100

// ForwardProber is the opaque pair-HMM collaborator spec §1 treats as
// external: forwardProb(allele, read) as a pure, reentrant
// log-likelihood function. Forward and reverse strand reads may use
// distinct state machines (carried in PolishParams), which is why the
// strand is passed explicitly rather than baked into the allele.
type ForwardProber interface {
	ForwardProb(allele rle.RleString, read ReadSubstring, forwardStrand bool, params *PolishParams) float64
}
