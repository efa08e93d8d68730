// Package rle implements run-length encoded strings and the allele
// algebra built on top of them: construction, expansion, substring
// extraction, and the two notions of equality ("RLE-expanded", which
// compares characters and run lengths, and "RLE-string", which
// compares only characters) that the bubble graph and allele
// enumerator depend on.
package rle

import (
	"bytes"
	"strings"

	"github.com/biogo/biogo/alphabet"
)

// MaxRunLength is the largest run count a single run can hold.
// NewRleString splits a longer run into several runs of the same
// character; NewRleStringFromRuns and ConsensusRuns clamp counts to it.
const MaxRunLength = 255

// RleString is a run-length encoded sequence: Seq holds one
// representative character per run, and Runs holds the corresponding
// run lengths (each in [1, MaxRunLength]). Adjacent runs in Seq have
// distinct characters, except where NewRleString has split a run
// longer than MaxRunLength into consecutive runs of the same character.
type RleString struct {
	Seq  []byte
	Runs []uint8
}

// Len returns the number of runs (not the expanded length).
func (r RleString) Len() int { return len(r.Seq) }

// ExpandedLen returns the total length of the expanded string.
func (r RleString) ExpandedLen() int {
	n := 0
	for _, c := range r.Runs {
		n += int(c)
	}
	return n
}

// NewRleString builds an RleString from an expanded byte sequence by
// collapsing runs of identical characters. If useRunLengthEncoding is
// false, every run has length 1 and no collapsing occurs; expanding
// such a string is then the identity, and RLE-expanded equality
// degenerates to plain string equality, as spec'd in §4.A.
func NewRleString(expanded []byte, useRunLengthEncoding bool) RleString {
	if len(expanded) == 0 {
		return RleString{}
	}
	if !useRunLengthEncoding {
		seq := make([]byte, len(expanded))
		runs := make([]uint8, len(expanded))
		for i, c := range expanded {
			seq[i] = c
			runs[i] = 1
		}
		return RleString{Seq: seq, Runs: runs}
	}
	var seq []byte
	var runs []uint8
	cur := expanded[0]
	count := 1
	flush := func() {
		for count > 0 {
			n := count
			if n > MaxRunLength {
				n = MaxRunLength
			}
			seq = append(seq, cur)
			runs = append(runs, uint8(n))
			count -= n
		}
	}
	for _, c := range expanded[1:] {
		if c == cur {
			count++
			continue
		}
		flush()
		cur = c
		count = 1
	}
	flush()
	return RleString{Seq: seq, Runs: runs}
}

// NewRleStringFromRuns builds an RleString directly from a parallel
// (characters, run-lengths) pair, e.g. as produced by POA-enumeration
// consensus building (§4.C). Each run count is clamped to
// [1, MaxRunLength]; a count of 0 is not a legal run and is coerced to
// 1 rather than silently dropped, since a dropped run would desync the
// caller's offset bookkeeping.
func NewRleStringFromRuns(seq []byte, runs []int) RleString {
	out := RleString{Seq: append([]byte(nil), seq...), Runs: make([]uint8, len(runs))}
	for i, c := range runs {
		if c < 1 {
			c = 1
		}
		if c > MaxRunLength {
			c = MaxRunLength
		}
		out.Runs[i] = uint8(c)
	}
	return out
}

// Expand returns the plain expanded byte sequence.
func (r RleString) Expand() []byte {
	out := make([]byte, 0, r.ExpandedLen())
	for i, c := range r.Seq {
		for n := uint8(0); n < r.Runs[i]; n++ {
			out = append(out, c)
		}
	}
	return out
}

// Substring returns the run-indexed slice r[start:start+length) as a
// new RleString sharing no backing array with r.
func (r RleString) Substring(start, length int) RleString {
	seq := make([]byte, length)
	runs := make([]uint8, length)
	copy(seq, r.Seq[start:start+length])
	copy(runs, r.Runs[start:start+length])
	return RleString{Seq: seq, Runs: runs}
}

// EqualExpanded is "RLE-expanded" equality: both characters and run
// lengths must match run-for-run.
func (r RleString) EqualExpanded(o RleString) bool {
	return bytes.Equal(r.Seq, o.Seq) && bytesEqualUint8(r.Runs, o.Runs)
}

// EqualString is "RLE-string" equality: only the character sequence is
// compared, run lengths are ignored. This is the equality used to
// group read substrings into allele consensus classes in §4.C.
func (r RleString) EqualString(o RleString) bool {
	return bytes.Equal(r.Seq, o.Seq)
}

func bytesEqualUint8(a, b []uint8) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Concat concatenates two RLE strings by expanding both, joining, and
// re-encoding; this is the only correct way to concatenate since a run
// at the boundary may merge with the run on the other side.
func Concat(a, b RleString, useRunLengthEncoding bool) RleString {
	expanded := make([]byte, 0, a.ExpandedLen()+b.ExpandedLen())
	expanded = append(expanded, a.Expand()...)
	expanded = append(expanded, b.Expand()...)
	return NewRleString(expanded, useRunLengthEncoding)
}

// String renders the expanded sequence, mainly for logging/debugging.
func (r RleString) String() string {
	var sb strings.Builder
	sb.Write(r.Expand())
	return sb.String()
}

// ValidateAlphabet reports whether every character of the expanded
// sequence is a member of the given alphabet. Bubble construction does
// not call it; the scoring path trusts upstream POA/VCF input.
func ValidateAlphabet(r RleString, alpha alphabet.Alphabet) bool {
	for _, c := range r.Seq {
		if !alpha.IsValid(alphabet.Letter(c)) {
			return false
		}
	}
	return true
}

// ConsensusRuns computes, position-by-position, the rounded mean run
// count across a set of RLE strings that are already known to be
// RLE-string-equal (same Seq). This implements the "consensus RLE
// string whose per-position run count is the rounded mean of members'
// run counts" rule from §4.C's read-derived allele mode.
func ConsensusRuns(members []RleString) RleString {
	if len(members) == 0 {
		return RleString{}
	}
	n := len(members[0].Seq)
	seq := append([]byte(nil), members[0].Seq...)
	runs := make([]uint8, n)
	for pos := 0; pos < n; pos++ {
		sum := 0
		for _, m := range members {
			sum += int(m.Runs[pos])
		}
		mean := (sum + len(members)/2) / len(members)
		if mean < 1 {
			mean = 1
		}
		if mean > MaxRunLength {
			mean = MaxRunLength
		}
		runs[pos] = uint8(mean)
	}
	return RleString{Seq: seq, Runs: runs}
}
