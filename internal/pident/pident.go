// Package pident summarizes the percent-identity distribution of an
// alignment hit table. It is an optional post-processing collaborator:
// pipelines invoke it only when one is configured.
package pident

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Analyzer is the capability interface for identity-distribution
// post-processing. A nil Analyzer means the step is absent, which is
// not an error.
type Analyzer interface {
	Analyze(hitPath, outPrefix string) (Report, error)
}

// Report summarizes one analysis
type Report struct {
	TotalQueries   int    // distinct query sequences with at least one hit
	HistogramPath  string
	CumulativePath string
}

// HistAnalyzer writes a floored-pident histogram and a descending
// cumulative distribution, matching the layout produced for downstream
// plotting scripts.
type HistAnalyzer struct{}

// Analyze reads an outfmt-6 table and writes
// <outPrefix>_pident_hist.txt and <outPrefix>_pident_cumulative.txt.
func (HistAnalyzer) Analyze(hitPath, outPrefix string) (Report, error) {
	f, err := os.Open(hitPath)
	if err != nil {
		return Report{}, fmt.Errorf("opening hit table: %w", err)
	}
	defer f.Close()

	counts := make(map[int]int)
	queries := make(map[string]struct{})

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 3 {
			continue
		}
		pident, err := strconv.ParseFloat(cols[2], 64)
		if err != nil {
			continue
		}
		counts[int(math.Floor(pident))]++
		queries[cols[0]] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return Report{}, fmt.Errorf("reading hit table: %w", err)
	}

	bins := make([]int, 0, len(counts))
	for b := range counts {
		bins = append(bins, b)
	}
	sort.Ints(bins)

	rep := Report{
		TotalQueries:   len(queries),
		HistogramPath:  outPrefix + "_pident_hist.txt",
		CumulativePath: outPrefix + "_pident_cumulative.txt",
	}

	hist, err := os.Create(rep.HistogramPath)
	if err != nil {
		return Report{}, err
	}
	defer hist.Close()
	fmt.Fprintln(hist, "pident\tcount")
	for _, b := range bins {
		fmt.Fprintf(hist, "%d\t%d\n", b, counts[b])
	}

	cum, err := os.Create(rep.CumulativePath)
	if err != nil {
		return Report{}, err
	}
	defer cum.Close()
	fmt.Fprintln(cum, "pident_threshold\tcumulative_hits")
	running := 0
	for i := len(bins) - 1; i >= 0; i-- {
		running += counts[bins[i]]
		fmt.Fprintf(cum, ">=%d\t%d\n", bins[i], running)
	}

	return rep, nil
}
