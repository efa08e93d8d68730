// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

/*
bio-phase runs the bubble-graph + read-partition-HMM phasing core
(candidate detection, allele enumeration, scoring, profile projection,
HMM phasing, iterative refinement, and filtered-read reattachment)
over one POA chunk described by a JSON input file, and writes the
resulting genome fragment as JSON.

POA construction itself (from a BAM region, say) lives upstream and is
out of scope here; this binary is the chunk-level phasing step.
*/

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/sam"
	"github.com/pkg/errors"

	"github.com/grailbio/diploidphase/bubble"
	"github.com/grailbio/diploidphase/filtered"
	"github.com/grailbio/diploidphase/phasehmm"
	"github.com/grailbio/diploidphase/refine"
	"github.com/grailbio/diploidphase/rle"
	"github.com/grailbio/diploidphase/util"
)

var (
	inputPath  = flag.String("input", "", "Path to a chunkInput JSON file")
	outputPath = flag.String("output", "", "Path to write the phased-fragment JSON result")

	maxCoverageDepth            = flag.Int("max-coverage-depth", 32, "Maximum active-read count per HMM column")
	roundsOfIterativeRefinement = flag.Int("refine-rounds", 10, "Iterative-refiner round cap")
)

func bioPhaseUsage() {
	fmt.Printf("Usage: %s -input chunk.json -output fragment.json [OPTIONS]\n", os.Args[0])
	flag.PrintDefaults()
}

// chunkInput is the JSON shape of one phasing chunk: a POA plus its
// observed reads and the polish params governing bubble construction.
type chunkInput struct {
	Poa   []poaNodeJSON `json:"poa"`
	Reads []readJSON    `json:"reads"`

	UseRunLengthEncoding                    bool    `json:"useRunLengthEncoding"`
	UseReadAlleles                          bool    `json:"useReadAlleles"`
	CandidateVariantWeight                  float64 `json:"candidateVariantWeight"`
	ColumnAnchorTrim                        int     `json:"columnAnchorTrim"`
	MaxConsensusStrings                     int     `json:"maxConsensusStrings"`
	FilterReadsWhileHaveAtLeastThisCoverage int     `json:"filterReadsWhileHaveAtLeastThisCoverage"`
	MinAvgBaseQuality                       float64 `json:"minAvgBaseQuality"`
	HetSubstitutionProbability              float64 `json:"hetSubstitutionProbability"`
}

type poaNodeJSON struct {
	RefBase     string             `json:"refBase"`
	BaseWeights map[string]float64 `json:"baseWeights"`
}

type readJSON struct {
	ReadName string `json:"readName"`
	// ForwardStrand is used directly when Flags is zero; a non-zero
	// Flags (a raw SAM FLAG field, as markduplicates.helpers.go reads
	// off sam.Record.Flags) takes precedence, matching callers that
	// feed bio-phase straight from alignment records.
	ForwardStrand bool      `json:"forwardStrand"`
	Flags         sam.Flags `json:"flags,omitempty"`
	Seq           string    `json:"seq"`
	AvgBaseQual   float64   `json:"avgBaseQual"`
}

// forwardStrand resolves a readJSON's strand, preferring the raw SAM
// flags field when present over the plain bool (spec §6's reads input
// only requires forwardStrand, but a FLAG-bearing caller shouldn't
// have to pre-decode it).
func (r readJSON) forwardStrand() bool {
	if r.Flags != 0 {
		return r.Flags&sam.Reverse == 0
	}
	return r.ForwardStrand
}

// fragmentOutput is the JSON result: the two haplotype allele-index arrays
// and the disjoint/unclassified read-name partitions (spec §6's
// "BubbleGraph, GenomeFragment ... optional JSON describing per-bubble
// per-read haplotype supports" output contract).
type fragmentOutput struct {
	RefStart int   `json:"refStart"`
	Length   int   `json:"length"`
	Hap1     []int `json:"hap1"`
	Hap2     []int `json:"hap2"`

	Hap1Reads         []string `json:"hap1Reads"`
	Hap2Reads         []string `json:"hap2Reads"`
	UnclassifiedReads []string `json:"unclassifiedReads"`
	DiscardedReads    []string `json:"discardedReads"`

	FilterCounts string `json:"filterCounts"`
}

func main() {
	flag.Usage = bioPhaseUsage
	shutdown := grail.Init()
	defer shutdown()

	if *inputPath == "" || *outputPath == "" {
		log.Fatalf("-input and -output are both required")
	}

	in, err := loadChunkInput(*inputPath)
	if err != nil {
		log.Fatalf("%+v", err)
	}

	out := runChunk(vcontext.Background(), in)

	buf, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		log.Fatalf("encoding result: %v", err)
	}
	if err := os.WriteFile(*outputPath, buf, 0644); err != nil {
		log.Fatalf("%+v", errors.Wrapf(err, "writing %s", *outputPath))
	}
	log.Printf("bio-phase: wrote %s (%d bubbles worth of reads: %d hap1, %d hap2, %d unclassified)",
		*outputPath, out.Length, len(out.Hap1Reads), len(out.Hap2Reads), len(out.UnclassifiedReads))
}

// loadChunkInput reads and parses the chunkInput JSON file, wrapping
// either failure with a stack-carrying cause in the style of
// encoding/fasta/index.go's error handling.
func loadChunkInput(path string) (*chunkInput, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	var in chunkInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return &in, nil
}

func runChunk(_ context.Context, in *chunkInput) *fragmentOutput {
	params := bubble.DefaultPolishParams
	params.UseRunLengthEncoding = in.UseRunLengthEncoding
	params.UseReadAlleles = in.UseReadAlleles
	if in.CandidateVariantWeight > 0 {
		params.CandidateVariantWeight = in.CandidateVariantWeight
	}
	if in.ColumnAnchorTrim > 0 {
		params.ColumnAnchorTrim = in.ColumnAnchorTrim
	}
	if in.MaxConsensusStrings > 0 {
		params.MaxConsensusStrings = in.MaxConsensusStrings
	}
	if in.FilterReadsWhileHaveAtLeastThisCoverage > 0 {
		params.FilterReadsWhileHaveAtLeastThisCoverage = in.FilterReadsWhileHaveAtLeastThisCoverage
	}
	if in.MinAvgBaseQuality > 0 {
		params.MinAvgBaseQuality = in.MinAvgBaseQuality
	}
	if in.HetSubstitutionProbability > 0 {
		params.HetSubstitutionProbability = in.HetSubstitutionProbability
	}

	poa := make([]bubble.PoaNode, len(in.Poa))
	for i, n := range in.Poa {
		poa[i] = decodePoaNode(n)
	}

	readIDs := make([]int, len(in.Reads))
	readNames := make([]string, len(in.Reads))
	readQuals := make([]float64, len(in.Reads))
	readStrand := make([]bool, len(in.Reads))
	observations := make([]bubble.ReadObservation, len(in.Reads))
	for i, r := range in.Reads {
		readIDs[i] = i
		readNames[i] = r.ReadName
		readQuals[i] = r.AvgBaseQual
		readStrand[i] = r.forwardStrand()
		seq := []byte(r.Seq)
		end := len(seq)
		if end > len(poa) {
			end = len(poa)
		}
		observations[i] = bubble.ReadObservation{
			ReadID:        i,
			ReadName:      r.ReadName,
			ForwardStrand: r.forwardStrand(),
			AvgBaseQual:   r.AvgBaseQual,
			ObsStart:      0,
			ObsEnd:        end,
			ExpandedSeq:   seq[:end],
		}
	}
	extractor := &bubble.PoaReadExtractor{
		Observations:    observations,
		NumPoaPositions: len(poa),
		UseRLE:          params.UseRunLengthEncoding,
	}

	g := bubble.BuildBubbleGraph(&bubble.BuildOpts{
		Poa:        poa,
		Extractor:  extractor,
		ReadIDs:    readIDs,
		ReadNames:  readNames,
		ReadQuals:  readQuals,
		ReadStrand: readStrand,
		Params:     &params,
		Forward:    levenshteinForwardProber{},
	})

	profiles := bubble.BuildProfileSeqs(g)
	if len(profiles) == 0 {
		return emptyOutput()
	}

	fragment, discarded := phasehmm.Phase(g, profiles, params.HetSubstitutionProbability, *maxCoverageDepth)
	fragment = refine.Refine(g, profiles, fragment, *roundsOfIterativeRefinement)

	hap1IDs, hap2IDs, unclassifiedIDs, counts := filtered.Attach(g, profiles, fragment, discarded)

	return &fragmentOutput{
		RefStart:          fragment.RefStart,
		Length:            fragment.Length,
		Hap1:              fragment.Hap1,
		Hap2:              fragment.Hap2,
		Hap1Reads:         namesOf(readNames, fragment.Reads1, hap1IDs),
		Hap2Reads:         namesOf(readNames, fragment.Reads2, hap2IDs),
		UnclassifiedReads: namesFromIDs(readNames, unclassifiedIDs),
		DiscardedReads:    namesFromIDs(readNames, discarded),
		FilterCounts:      counts.String(),
	}
}

func emptyOutput() *fragmentOutput {
	f := phasehmm.EmptyGenomeFragment()
	return &fragmentOutput{RefStart: f.RefStart, Length: f.Length}
}

func namesOf(readNames []string, base *phasehmm.ReadSet, extra []int) []string {
	var out []string
	base.Each(func(readID int) {
		if readID < len(readNames) {
			out = append(out, readNames[readID])
		}
	})
	out = append(out, namesFromIDs(readNames, extra)...)
	return out
}

func namesFromIDs(readNames []string, ids []int) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id < len(readNames) {
			out = append(out, readNames[id])
		}
	}
	return out
}

func decodePoaNode(n poaNodeJSON) bubble.PoaNode {
	var node bubble.PoaNode
	if len(n.RefBase) > 0 {
		node.RefBase = n.RefBase[0]
	}
	for base, w := range n.BaseWeights {
		if len(base) == 0 {
			continue
		}
		node.BaseWeights[base[0]] = w
	}
	return node
}

// levenshteinForwardProber is the default pair-HMM-shaped scorer: the
// log-probability of an allele given a read substring, decreasing with
// edit distance. Real callers inject an actual pair-HMM (spec §1
// treats ForwardProb as external); this keeps bio-phase runnable
// standalone by reusing util.Levenshtein, adapted from barcode
// error-correction to arbitrary allele/read substrings by splitting
// each sequence at the shorter of the two lengths and feeding the
// remainder in as Levenshtein's downstream-context arguments, exactly
// the role those arguments play for a barcode's post-sequence bases.
type levenshteinForwardProber struct{}

func (levenshteinForwardProber) ForwardProb(allele rle.RleString, read bubble.ReadSubstring, _ bool, params *bubble.PolishParams) float64 {
	a := allele.Expand()
	var b []byte
	if read.Explicit != nil {
		b = read.Explicit.Expand()
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		// Levenshtein requires a non-empty equal-length prefix; an
		// empty allele or read substring can only differ by the
		// other side's full length.
		return -float64(len(a)+len(b)) * 2.0
	}
	dist := util.Levenshtein(string(a[:n]), string(b[:n]), string(a[n:]), string(b[n:]))
	return -float64(dist) * 2.0
}
