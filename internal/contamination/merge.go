// Package contamination labels and merges per-reference screen output.
// This layer is a pure row transform: it injects GenomeID and
// contaminant-label columns and concatenates, never deduplicating or
// filtering hits.
package contamination

import (
	"fmt"
	"strings"

	"github.com/pgmlab/genomeqc/internal/diamond"
)

// SchemaError reports reference outputs whose column counts disagree.
// Fatal for the merge step only.
type SchemaError struct {
	Label       string
	Columns     int
	WantColumns int
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("reference %q produced %d columns, other references produced %d", e.Label, e.Columns, e.WantColumns)
}

// Table is one reference's screen output: a header plus labeled rows
// for every genome in the manifest, in processing order.
type Table struct {
	Label  string
	Header string
	Rows   []string
}

// Header returns the labeled hit-table header: the two injected columns
// followed by the tool's column set.
func Header() string {
	return "GenomeID\tContaminant\t" + strings.Join(diamond.OutFormatColumns, "\t")
}

// LabelRows prefixes every raw hit row with the genome ID and the
// contaminant label. Row order and multiplicity are preserved.
func LabelRows(genomeID, label string, raw []string) []string {
	labeled := make([]string, len(raw))
	for i, row := range raw {
		labeled[i] = genomeID + "\t" + label + "\t" + row
	}
	return labeled
}

// Merge concatenates per-reference tables in the order given, keeping
// exactly one header. The header comes from the first non-empty table;
// all tables must agree on column count.
func Merge(tables []Table) (Table, error) {
	merged := Table{}
	wantCols := 0

	for _, tbl := range tables {
		if len(tbl.Rows) == 0 {
			continue
		}
		cols := len(strings.Split(tbl.Header, "\t"))
		if merged.Header == "" {
			merged.Header = tbl.Header
			wantCols = cols
		} else if cols != wantCols {
			return Table{}, &SchemaError{Label: tbl.Label, Columns: cols, WantColumns: wantCols}
		}
		merged.Rows = append(merged.Rows, tbl.Rows...)
	}

	if merged.Header == "" {
		// All references produced zero hits; still emit the schema.
		merged.Header = Header()
	}
	return merged, nil
}
