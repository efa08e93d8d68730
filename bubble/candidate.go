package bubble

import (
	"github.com/grailbio/base/log"

	"github.com/grailbio/diploidphase/interval"
)

// VcfGuideEntry is the minimal shape of an externally-called site used
// to steer candidate-site detection (§4.B "Optional VCF guidance").
type VcfGuideEntry struct {
	RefPos int
}

// CandidateStats carries the TP/FP/FN/TN observability counters
// produced when VCF guidance replaces the detector's own call set,
// logged the way pileup/snp/pileup.go logs per-shard counters.
type CandidateStats struct {
	TruePositive  int
	FalsePositive int
	FalseNegative int
	TrueNegative  int
}

// DetectAnchors finds candidate variant positions in poa and returns
// the anchor array (the complement of the variant-position set,
// dilated by params.ColumnAnchorTrim on both sides). When vcfEntries
// is non-empty, the detector's own call set is replaced by the VCF
// positions, and CandidateStats reports how the two sets compared.
func DetectAnchors(poa []PoaNode, params *PolishParams, vcfEntries []VcfGuideEntry) (anchors []bool, stats CandidateStats) {
	n := len(poa)
	threshold := slidingWindowThreshold(poa, params.CandidateVariantWeight)

	detected := make([]bool, n)
	for i := range poa {
		if isCandidateVariantPosition(&poa[i], threshold[i]) {
			detected[i] = true
		}
		if isCandidateDelete(&poa[i], threshold[i]) {
			end := i + poa[i].longestDeleteLength()
			if end > n {
				end = n
			}
			for j := i; j < end; j++ {
				detected[j] = true
			}
		}
	}

	variantPositions := detected
	if len(vcfEntries) > 0 {
		vcfSet := make(map[int]bool, len(vcfEntries))
		for _, e := range vcfEntries {
			vcfSet[e.RefPos] = true
		}
		guided := make([]bool, n)
		for i := 0; i < n; i++ {
			guided[i] = vcfSet[i]
			switch {
			case guided[i] && detected[i]:
				stats.TruePositive++
			case guided[i] && !detected[i]:
				stats.FalseNegative++
			case !guided[i] && detected[i]:
				stats.FalsePositive++
			default:
				stats.TrueNegative++
			}
		}
		variantPositions = guided
		log.Debug.Printf("bubble: VCF guidance TP=%d FP=%d FN=%d TN=%d", stats.TruePositive, stats.FalsePositive, stats.FalseNegative, stats.TrueNegative)
	}

	dilated := dilate(variantPositions, params.ColumnAnchorTrim)
	anchors = make([]bool, n)
	for i := range anchors {
		anchors[i] = !dilated[i]
	}
	return anchors, stats
}

// slidingWindowThreshold computes, for each POA position, a threshold
// equal to the CandidateWindowSize-wide average total node weight
// scaled by candidateVariantWeight. Positions within half a window of
// either end inherit the nearest interior threshold, since there isn't
// a full window to average there.
func slidingWindowThreshold(poa []PoaNode, scale float64) []float64 {
	n := len(poa)
	thresholds := make([]float64, n)
	if n == 0 {
		return thresholds
	}
	half := CandidateWindowSize / 2

	// Prefix sums let each window average be computed in O(1).
	prefix := make([]float64, n+1)
	for i, node := range poa {
		prefix[i+1] = prefix[i] + node.TotalWeight()
	}
	windowAvg := func(center int) float64 {
		lo := center - half
		hi := center + half
		if lo < 0 {
			lo = 0
		}
		if hi > n {
			hi = n
		}
		if hi <= lo {
			return 0
		}
		return (prefix[hi] - prefix[lo]) / float64(hi-lo)
	}

	firstInterior := half
	lastInterior := n - 1 - half
	if lastInterior < firstInterior {
		firstInterior = 0
		lastInterior = n - 1
	}
	for i := 0; i < n; i++ {
		center := i
		if center < firstInterior {
			center = firstInterior
		}
		if center > lastInterior {
			center = lastInterior
		}
		thresholds[i] = windowAvg(center) * scale
	}
	return thresholds
}

func isCandidateVariantPosition(node *PoaNode, threshold float64) bool {
	for c, w := range node.BaseWeights {
		if byte(c) == node.RefBase {
			continue
		}
		if w > threshold {
			return true
		}
	}
	for n, w := range node.RepeatCountWeights {
		if n == node.RefRepeatCount {
			continue
		}
		if w > 2*threshold {
			return true
		}
	}
	for _, ins := range node.Inserts {
		if ins.Weight > threshold {
			return true
		}
	}
	return false
}

func isCandidateDelete(node *PoaNode, threshold float64) bool {
	for _, del := range node.Deletes {
		if del.Weight > threshold {
			return true
		}
	}
	return false
}

func (n *PoaNode) longestDeleteLength() int {
	max := 0
	for _, del := range n.Deletes {
		if del.Length > max {
			max = del.Length
		}
	}
	return max
}

// dilate marks every position within trim of a true entry as true,
// implementing the anchor-set trimming around candidate variants.
func dilate(marks []bool, trim int) []bool {
	if trim <= 0 {
		return marks
	}
	n := len(marks)
	out := make([]bool, n)
	for i, m := range marks {
		if !m {
			continue
		}
		lo := i - trim
		hi := i + trim
		if lo < 0 {
			lo = 0
		}
		if hi >= n {
			hi = n - 1
		}
		for j := lo; j <= hi; j++ {
			out[j] = true
		}
	}
	return out
}

// AnchorIntervalEndpoints converts an anchor boolean array into the
// sorted endpoint representation of the *non-anchor* (bubble) interval
// union: interval.NewUnionScanner(endpoints) then yields each bubble's
// [start, end) span in RefStart order, the same idiom
// interval/endpoint_index.go documents for BED interval-unions.
func AnchorIntervalEndpoints(anchors []bool) []interval.PosType {
	var endpoints []interval.PosType
	inBubble := false
	for i, a := range anchors {
		if !a && !inBubble {
			endpoints = append(endpoints, interval.PosType(i))
			inBubble = true
		} else if a && inBubble {
			endpoints = append(endpoints, interval.PosType(i))
			inBubble = false
		}
	}
	if inBubble {
		endpoints = append(endpoints, interval.PosType(len(anchors)))
	}
	return endpoints
}
