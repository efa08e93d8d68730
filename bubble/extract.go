package bubble

import "github.com/grailbio/diploidphase/rle"

// ReadObservation is one read's alignment against a POA: the
// half-open range of POA positions it was aligned across
// ([ObsStart, ObsEnd)), and its expanded (pre-RLE) base at each of
// those positions. Reads are not guaranteed to span the whole POA, so
// ObsStart/ObsEnd vary per read.
type ReadObservation struct {
	ReadID        int
	ReadName      string
	ForwardStrand bool
	AvgBaseQual   float64
	ObsStart      int
	ObsEnd        int
	ExpandedSeq   []byte
}

// PoaReadExtractor implements ReadSpanExtractor by slicing each read's
// expanded per-position sequence according to §4.D's three cases:
// prefix (bubble touches position 0), suffix (bubble touches the last
// POA position), and interior (both endpoints are within the read's
// observed range).
type PoaReadExtractor struct {
	Observations    []ReadObservation
	NumPoaPositions int
	UseRLE          bool
}

// Extract returns the read's RLE substring over POA positions
// [start, end), or ok=false if the read has no observation overlapping
// that range.
func (e *PoaReadExtractor) Extract(readID int, start, end int) (rle.RleString, bool) {
	for _, obs := range e.Observations {
		if obs.ReadID != readID {
			continue
		}
		s, ok := e.sliceObservation(&obs, start, end)
		if !ok {
			return rle.RleString{}, false
		}
		return rle.NewRleString(s, e.UseRLE), true
	}
	return rle.RleString{}, false
}

func (e *PoaReadExtractor) sliceObservation(obs *ReadObservation, start, end int) ([]byte, bool) {
	isFirstBubble := start == 0
	isLastBubble := end >= e.NumPoaPositions

	lo, hi := start, end
	switch {
	case isFirstBubble && isLastBubble:
		lo, hi = obs.ObsStart, obs.ObsEnd
	case isFirstBubble:
		// Prefix: everything the read observed up to the end anchor.
		lo = obs.ObsStart
		hi = end
	case isLastBubble:
		// Suffix: everything from the start anchor to the end of the
		// read's observation.
		lo = start
		hi = obs.ObsEnd
	default:
		lo, hi = start, end
	}
	if lo < obs.ObsStart || hi > obs.ObsEnd || lo > hi {
		return nil, false
	}
	return obs.ExpandedSeq[lo-obs.ObsStart : hi-obs.ObsStart], true
}

// ExtractReadSubstrings extracts every read's substring over POA
// positions [start, end) and returns the ReadSubstrings observed
// there (reads with no overlapping observation are skipped, per
// §4.D's "reads not spanning a bubble contribute nothing to it").
// isFirstBubble/isLastBubble are accepted for symmetry with the
// extractor's own prefix/suffix handling but are otherwise redundant
// with start==0/end>=NumPoaPositions, which e.Extract derives itself.
func ExtractReadSubstrings(e *PoaReadExtractor, readIDs []int, readNames []string, readQuals []float64, readStrand []bool, start, end int, isFirstBubble, isLastBubble bool) []ReadSubstring {
	var out []ReadSubstring
	for i, id := range readIDs {
		s, ok := e.Extract(id, start, end)
		if !ok {
			continue
		}
		out = append(out, ReadSubstring{
			ReadID:        id,
			ReadName:      readNames[i],
			Start:         start,
			Length:        end - start,
			AvgBaseQual:   readQuals[i],
			ForwardStrand: readStrand[i],
			Explicit:      &s,
		})
	}
	return out
}
