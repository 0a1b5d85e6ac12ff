// Package busco builds BUSCO invocations and parses the short-summary
// file that BUSCO leaves in its per-genome run directory.
package busco

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/pgmlab/genomeqc/internal/domain"
	"github.com/pgmlab/genomeqc/internal/toolrunner"
)

// ResultMissingError reports a summary file that is absent even though
// the tool exited successfully
type ResultMissingError struct {
	GenomeID string
	Path     string
}

func (e *ResultMissingError) Error() string {
	return fmt.Sprintf("BUSCO summary for %s not found at %s", e.GenomeID, e.Path)
}

// summaryRegex matches the one-line completeness string, e.g.
// C:98.5%[S:97.1%,D:1.4%],F:0.8%,M:0.7%,n:5991
var summaryRegex = regexp.MustCompile(`C:([\d.]+)%\[S:([\d.]+)%,D:([\d.]+)%\],F:([\d.]+)%,M:([\d.]+)%,n:(\d+)`)

// GenomeInvocation returns the BUSCO genome-mode invocation for one
// assembly. BUSCO creates run_<prefix>/ under the working directory.
func GenomeInvocation(rec domain.GenomeRecord, lineagePath string, threads int, workDir string) toolrunner.Invocation {
	prefix := rec.Prefix()
	return toolrunner.Invocation{
		Tool: string(domain.ToolBUSCO),
		Args: []string{
			"--in=" + rec.GenomePath,
			"--out=" + prefix,
			"--lineage_path=" + lineagePath,
			"--mode=genome",
			fmt.Sprintf("--cpu=%d", threads),
		},
		Dir:            workDir,
		DeclaredOutput: SummaryPath(workDir, prefix),
	}
}

// SummaryPath returns where BUSCO writes the machine-readable summary
// for the given output prefix
func SummaryPath(workDir, prefix string) string {
	return filepath.Join(workDir, "run_"+prefix, "short_summary_"+prefix+".txt")
}

// ParseSummary extracts the completeness metric set from a short-summary
// file. The file mixes free text with a single metrics line; only the
// metrics line is consumed.
func ParseSummary(path, genomeID string) (domain.CompletenessRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.CompletenessRecord{}, &ResultMissingError{GenomeID: genomeID, Path: path}
		}
		return domain.CompletenessRecord{}, fmt.Errorf("reading BUSCO summary: %w", err)
	}

	m := summaryRegex.FindSubmatch(data)
	if m == nil {
		return domain.CompletenessRecord{}, fmt.Errorf("no completeness line in %s", path)
	}

	rec := domain.CompletenessRecord{GenomeID: genomeID, Status: domain.GenomeCompleted}
	rec.Complete, _ = strconv.ParseFloat(string(m[1]), 64)
	rec.Single, _ = strconv.ParseFloat(string(m[2]), 64)
	rec.Duplicated, _ = strconv.ParseFloat(string(m[3]), 64)
	rec.Fragmented, _ = strconv.ParseFloat(string(m[4]), 64)
	rec.Missing, _ = strconv.ParseFloat(string(m[5]), 64)
	rec.TotalBUSCOs, _ = strconv.Atoi(string(m[6]))
	return rec, nil
}
