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
bio-phase-metric computes decay-weighted local phasing correctness
between a query and a truth VCF, reporting one row per shared contig.
*/

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/base/vcontext"

	"github.com/grailbio/diploidphase/phasemetric"
)

var (
	queryVcf  = flag.String("query", "", "Query (candidate) phased VCF path")
	truthVcf  = flag.String("truth", "", "Truth phased VCF path")
	decayList = flag.String("decays", "0,0.9", "Comma-separated list of decay values in [0,1]; 0 selects switch correctness")
	outPrefix = flag.String("out", "bio-phase-metric", "Output path prefix")
)

func bioPhaseMetricUsage() {
	fmt.Printf("Usage: %s -query query.vcf -truth truth.vcf [OPTIONS]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = bioPhaseMetricUsage
	shutdown := grail.Init()
	defer shutdown()

	if *queryVcf == "" || *truthVcf == "" {
		log.Fatalf("-query and -truth are both required")
	}
	decays, err := parseDecays(*decayList)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx := vcontext.Background()
	query, queryStats, err := phasemetric.ReadPhasedVariants(ctx, *queryVcf)
	if err != nil {
		log.Fatalf("reading query VCF %s: %v", *queryVcf, err)
	}
	truth, truthStats, err := phasemetric.ReadPhasedVariants(ctx, *truthVcf)
	if err != nil {
		log.Fatalf("reading truth VCF %s: %v", *truthVcf, err)
	}
	log.Printf("bio-phase-metric: query %+v, truth %+v", queryStats, truthStats)

	contigs := sharedContigs(query, truth)
	rows := make([][]string, len(contigs))
	if err := traverse.Each(len(contigs), func(i int) error {
		contig := contigs[i]
		qc := byContig(query, contig)
		tc := byContig(truth, contig)
		pairs := phasemetric.MatchVariants(qc, tc)

		cells := make([]string, 0, len(decays)+2)
		cells = append(cells, contig, strconv.Itoa(len(pairs)))
		for _, d := range decays {
			if d == 0 {
				cells = append(cells, formatMetric(phasemetric.SwitchCorrectness(qc, tc)))
			} else {
				cells = append(cells, formatMetric(phasemetric.Correctness(qc, tc, d)))
			}
		}
		rows[i] = cells
		return nil
	}); err != nil {
		log.Fatalf("computing per-contig metrics: %v", err)
	}

	if err := writeTable(*outPrefix+".tsv", decays, rows); err != nil {
		log.Fatalf("writing output: %v", err)
	}
}

func parseDecays(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed decay value %q: %w", part, err)
		}
		if d < 0 || d > 1 {
			return nil, fmt.Errorf("decay value %v outside [0, 1]", d)
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no decay values given")
	}
	return out, nil
}

func sharedContigs(query, truth []phasemetric.PhasedVariant) []string {
	truthSet := map[string]bool{}
	for _, v := range truth {
		truthSet[v.Contig] = true
	}
	seen := map[string]bool{}
	var out []string
	for _, v := range query {
		if truthSet[v.Contig] && !seen[v.Contig] {
			seen[v.Contig] = true
			out = append(out, v.Contig)
		}
	}
	sort.Strings(out)
	return out
}

func byContig(variants []phasemetric.PhasedVariant, contig string) []phasemetric.PhasedVariant {
	var out []phasemetric.PhasedVariant
	for _, v := range variants {
		if v.Contig == contig {
			out = append(out, v)
		}
	}
	return out
}

func formatMetric(v float64) string {
	if v != v { // NaN
		return "NaN"
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func writeTable(path string, decays []float64, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	header := []string{"contig", "numPairs"}
	for _, d := range decays {
		header = append(header, fmt.Sprintf("correctness_d%v", d))
	}
	if _, err := fmt.Fprintln(f, strings.Join(header, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(f, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return nil
}
