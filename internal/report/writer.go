// Package report serializes summary tables to tab-delimited files.
// Writes are atomic: content goes to a temp file in the destination
// directory and is renamed into place, so an interrupted run never
// leaves a partial table.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pgmlab/genomeqc/internal/domain"
)

// CompletenessHeader documents the summary column order
var CompletenessHeader = []string{
	"GenomeID", "Complete(%)", "Single(%)", "Duplicated(%)",
	"Fragmented(%)", "Missing(%)", "TotalBUSCOs", "Status",
}

// WriteCompleteness writes the completeness summary table. Failed
// genomes appear with NA metric fields so every manifest genome is
// accounted for in the output.
func WriteCompleteness(path string, records []domain.CompletenessRecord) error {
	var b strings.Builder
	b.WriteString(strings.Join(CompletenessHeader, "\t"))
	b.WriteByte('\n')

	for _, rec := range records {
		if rec.Status == domain.GenomeFailed {
			fmt.Fprintf(&b, "%s\tNA\tNA\tNA\tNA\tNA\tNA\t%s\n", rec.GenomeID, rec.Status)
			continue
		}
		fmt.Fprintf(&b, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			rec.GenomeID,
			formatPct(rec.Complete),
			formatPct(rec.Single),
			formatPct(rec.Duplicated),
			formatPct(rec.Fragmented),
			formatPct(rec.Missing),
			rec.TotalBUSCOs,
			rec.Status,
		)
	}

	return writeAtomic(path, []byte(b.String()))
}

// WriteMerged writes a merged hit table: one header followed by
// already-labeled rows in the order they were produced.
func WriteMerged(path string, header string, rows []string) error {
	var b strings.Builder
	b.WriteString(header)
	b.WriteByte('\n')
	for _, row := range rows {
		b.WriteString(row)
		b.WriteByte('\n')
	}
	return writeAtomic(path, []byte(b.String()))
}

func formatPct(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// writeAtomic writes data to a temp file next to path and renames it
// into place
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}
