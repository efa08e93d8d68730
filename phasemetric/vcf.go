package phasemetric

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
)

// ReadStats counts the records a VCF scan skipped, for the CLI's
// exit-code and diagnostic reporting (spec §6/§7: "Unknown PS is
// skipped with a counter").
type ReadStats struct {
	TotalRecords     int
	MissingPS        int
	HomozygousOrRef  int
	NotPassOrNotSnv  int
	Kept             int
}

// ReadPhasedVariants scans a VCF (optionally gzip-compressed, detected
// from the path the way pileup.LoadFa does) and returns every
// heterozygous, PASS-only, phased record from the first sample column,
// sorted by refPos within each contig (spec §6's metric CLI input
// contract). A VCF without a ##FORMAT=<ID=PS,...> header line, or with
// records out of position order within a contig, is an error;
// individual records simply missing a PS value are skipped and
// counted, not treated as fatal.
func ReadPhasedVariants(ctx context.Context, path string) (variants []PhasedVariant, stats ReadStats, err error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, stats, errors.E(err, "phasemetric: opening VCF", path)
	}
	defer func() {
		if e := f.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()

	var reader io.Reader = f.Reader(ctx)
	if fileio.DetermineType(path) == fileio.Gzip {
		gz, gzErr := gzip.NewReader(reader)
		if gzErr != nil {
			return nil, stats, errors.E(gzErr, "phasemetric: opening gzip VCF", path)
		}
		defer gz.Close()
		reader = gz
	}

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lastPos := map[string]int{}
	sawPSHeader := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "##FORMAT=<ID=PS,") {
			sawPSHeader = true
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		stats.TotalRecords++
		v, ok, why := parseRecord(line)
		if !ok {
			switch why {
			case skipMissingPS:
				stats.MissingPS++
			case skipHomozygous:
				stats.HomozygousOrRef++
			default:
				stats.NotPassOrNotSnv++
			}
			continue
		}
		if prev, seen := lastPos[v.Contig]; seen && v.RefPos < prev {
			return nil, stats, errors.E(errors.Invalid, "phasemetric: unsorted VCF records on contig", v.Contig, path)
		}
		lastPos[v.Contig] = v.RefPos
		variants = append(variants, v)
		stats.Kept++
	}
	if scanErr := scanner.Err(); scanErr != nil {
		return nil, stats, errors.E(scanErr, "phasemetric: scanning VCF", path)
	}
	if !sawPSHeader {
		return nil, stats, errors.E(errors.Invalid, "phasemetric: VCF has no PS FORMAT header", path)
	}
	log.Debug.Printf("phasemetric: read %s: %d total, %d kept, %d missingPS, %d homozygous, %d filtered", path, stats.TotalRecords, stats.Kept, stats.MissingPS, stats.HomozygousOrRef, stats.NotPassOrNotSnv)
	return variants, stats, nil
}

type skipReason int

const (
	skipFilterOrFormat skipReason = iota
	skipMissingPS
	skipHomozygous
)

// parseRecord parses a single VCF data line down to a PhasedVariant,
// reading only CHROM/POS/FILTER/REF/ALT/FORMAT and the first sample
// column -- all spec §6 requires. Non-PASS records and genotypes
// without a usable PS value are rejected rather than guessed at.
func parseRecord(line string) (v PhasedVariant, ok bool, reason skipReason) {
	fields := strings.Split(line, "\t")
	if len(fields) < 10 {
		return v, false, skipFilterOrFormat
	}
	if fields[6] != "PASS" {
		return v, false, skipFilterOrFormat
	}
	pos, err := strconv.Atoi(fields[1])
	if err != nil {
		return v, false, skipFilterOrFormat
	}

	alleles := append([]string{fields[3]}, strings.Split(fields[4], ",")...)
	format := strings.Split(fields[8], ":")
	sample := strings.Split(fields[9], ":")

	gtIdx, psIdx := -1, -1
	for i, key := range format {
		switch key {
		case "GT":
			gtIdx = i
		case "PS":
			psIdx = i
		}
	}
	if gtIdx == -1 || gtIdx >= len(sample) {
		return v, false, skipFilterOrFormat
	}
	gt1, gt2, gtOK := parseGT(sample[gtIdx])
	if !gtOK || gt1 == gt2 {
		return v, false, skipHomozygous
	}
	if psIdx == -1 || psIdx >= len(sample) || sample[psIdx] == "." || sample[psIdx] == "" {
		return v, false, skipMissingPS
	}

	v = PhasedVariant{
		Contig:   fields[0],
		RefPos:   pos - 1, // VCF is 1-based; the core works in 0-based offsets.
		Alleles:  alleles,
		Gt1:      gt1,
		Gt2:      gt2,
		PhaseSet: sample[psIdx],
	}
	return v, true, 0
}

// parseGT parses a "a|b" or "a/b" genotype string into its two allele
// indices.
func parseGT(s string) (gt1, gt2 int, ok bool) {
	sep := strings.IndexAny(s, "|/")
	if sep < 0 {
		return 0, 0, false
	}
	a, errA := strconv.Atoi(s[:sep])
	b, errB := strconv.Atoi(s[sep+1:])
	if errA != nil || errB != nil {
		return 0, 0, false
	}
	return a, b, true
}
