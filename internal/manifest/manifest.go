// Package manifest parses the tab-separated genome list that drives a
// pipeline run. A manifest row is:
//
//	GenomeID \t GenomePath [\t ProteinPath [\t OutputPrefix]]
//
// Lines beginning with '#' and blank lines are skipped. The whole file
// is validated before any external tool runs, so a malformed manifest
// aborts a run before any work starts.
package manifest

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/pgmlab/genomeqc/internal/domain"
)

// FormatError reports a data line with too few fields
type FormatError struct {
	Path string
	Line int
	Text string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s:%d: manifest line needs at least GenomeID and GenomePath: %q", e.Path, e.Line, e.Text)
}

// DuplicateIDError reports a genome ID that appears on two lines.
// Duplicate IDs would make the summary-table aggregation key ambiguous.
type DuplicateIDError struct {
	GenomeID  string
	FirstLine int
	Line      int
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate genome ID %q (lines %d and %d)", e.GenomeID, e.FirstLine, e.Line)
}

// Read parses the manifest at path into genome records, preserving line
// order. It is a pure parse: re-reading the same file yields the same
// sequence.
func Read(path string) ([]domain.GenomeRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer f.Close()

	var records []domain.GenomeRecord
	seen := make(map[string]int) // genome ID -> first line

	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		// Tolerate space-separated manifests the way the field count
		// tolerates it: a single-field tab split may still be a valid
		// whitespace-separated row.
		if len(fields) < 2 {
			fields = strings.Fields(line)
		}
		if len(fields) < 2 {
			return nil, &FormatError{Path: path, Line: lineNum, Text: line}
		}

		rec := domain.GenomeRecord{
			ID:         strings.TrimSpace(fields[0]),
			GenomePath: strings.TrimSpace(fields[1]),
			Line:       lineNum,
		}
		if rec.ID == "" {
			return nil, &FormatError{Path: path, Line: lineNum, Text: line}
		}
		if len(fields) > 2 {
			rec.ProteinPath = strings.TrimSpace(fields[2])
		}
		if len(fields) > 3 {
			rec.OutputPrefix = strings.TrimSpace(fields[3])
		}
		if rec.OutputPrefix == "" {
			rec.OutputPrefix = rec.ID
		}

		if first, ok := seen[rec.ID]; ok {
			return nil, &DuplicateIDError{GenomeID: rec.ID, FirstLine: first, Line: lineNum}
		}
		seen[rec.ID] = lineNum

		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	return records, nil
}

// Append adds a single genome row to the manifest at path, creating the
// file with a header comment if it does not exist. Used by the intake
// watcher when new assemblies arrive.
func Append(path string, rec domain.GenomeRecord) error {
	_, statErr := os.Stat(path)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening manifest for append: %w", err)
	}
	defer f.Close()

	if os.IsNotExist(statErr) {
		if _, err := fmt.Fprintln(f, "# GenomeID\tGenomePath\tProteinPath\tOutputPrefix"); err != nil {
			return err
		}
	}

	line := rec.ID + "\t" + rec.GenomePath
	if rec.ProteinPath != "" || rec.OutputPrefix != rec.ID {
		line += "\t" + rec.ProteinPath
	}
	if rec.OutputPrefix != "" && rec.OutputPrefix != rec.ID {
		line += "\t" + rec.OutputPrefix
	}
	_, err = fmt.Fprintln(f, line)
	return err
}
