// Package phasemetric implements the phasing-correctness metric (spec
// §4.I): decay-weighted local phasing correctness between a query and
// a truth set of phased variants on their shared contigs, with the
// decay=0 switch-correctness limit as a special case.
package phasemetric

// PhasedVariant is one heterozygous, phased VCF record reduced to what
// the metric needs (spec §3): the two genotype allele indices into
// Alleles, and the phase set it belongs to. Records with gt1 == gt2
// (homozygous) or an empty PhaseSet are not valid inputs to the
// metric; callers (the VCF reader) are responsible for filtering them
// out before this package ever sees them.
type PhasedVariant struct {
	Contig   string
	RefPos   int
	Quality  float64
	Alleles  []string
	Gt1, Gt2 int
	PhaseSet string
}

// Allele1/Allele2 resolve the genotype indices against Alleles.
func (v *PhasedVariant) Allele1() string { return v.Alleles[v.Gt1] }
func (v *PhasedVariant) Allele2() string { return v.Alleles[v.Gt2] }
