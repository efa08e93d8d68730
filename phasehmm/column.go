package phasehmm

import (
	"sort"

	"github.com/grailbio/diploidphase/bubble"
)

// Column is one bubble's HMM state: which reads are active there, in a
// fixed, deterministic order (ascending read ID) that defines what
// each Partition bit refers to.
type Column struct {
	BubbleIndex   int
	ActiveReadIDs []int
}

// ApplyCoverageFilter implements spec §4.F's coverage filter: drop
// reads so that no site's active-read count exceeds maxCoverageDepth.
// Reads are kept greedily by descending span length (longer reads
// carry more phasing information per read), breaking ties by ascending
// read ID for determinism; a read is discarded in its entirety the
// moment keeping it would push any site it covers over the cap, so a
// read is never "half phased".
func ApplyCoverageFilter(g *bubble.BubbleGraph, profiles map[int]*bubble.ProfileSeq, maxCoverageDepth int) (kept map[int]bool, discarded map[int]bool) {
	type candidate struct {
		readID int
		length int
	}
	cands := make([]candidate, 0, len(profiles))
	for id, ps := range profiles {
		cands = append(cands, candidate{readID: id, length: ps.Length})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].length != cands[j].length {
			return cands[i].length > cands[j].length
		}
		return cands[i].readID < cands[j].readID
	})

	siteCount := make([]int, len(g.Bubbles))
	kept = make(map[int]bool, len(cands))
	discarded = make(map[int]bool)
	for _, c := range cands {
		ps := profiles[c.readID]
		fits := true
		for bi := ps.RefStart; bi < ps.RefStart+ps.Length; bi++ {
			if siteCount[bi]+1 > maxCoverageDepth {
				fits = false
				break
			}
		}
		if !fits {
			discarded[c.readID] = true
			continue
		}
		kept[c.readID] = true
		for bi := ps.RefStart; bi < ps.RefStart+ps.Length; bi++ {
			siteCount[bi]++
		}
	}
	return kept, discarded
}

// BuildColumns returns one Column per bubble in g, listing the active
// (kept) reads at that bubble in ascending read-ID order.
func BuildColumns(g *bubble.BubbleGraph, profiles map[int]*bubble.ProfileSeq, kept map[int]bool) []Column {
	columns := make([]Column, len(g.Bubbles))
	for bi := range g.Bubbles {
		columns[bi] = Column{BubbleIndex: bi}
	}
	for id, ps := range profiles {
		if !kept[id] {
			continue
		}
		for bi := ps.RefStart; bi < ps.RefStart+ps.Length; bi++ {
			columns[bi].ActiveReadIDs = append(columns[bi].ActiveReadIDs, id)
		}
	}
	for bi := range columns {
		sort.Ints(columns[bi].ActiveReadIDs)
	}
	return columns
}
