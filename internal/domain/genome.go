package domain

// GenomeRecord is one row of the genome manifest. Records are immutable
// after parsing; every downstream component keys on ID.
type GenomeRecord struct {
	ID           string // unique, non-empty
	GenomePath   string // assembly FASTA
	ProteinPath  string // predicted proteins FASTA, may be empty
	OutputPrefix string // defaults to ID
	Line         int    // 1-based manifest line, for error reporting
}

// HasProteins reports whether a predicted-protein FASTA was supplied
// for this genome. Protein-vs-protein alignment steps are skipped when
// this is false.
func (g GenomeRecord) HasProteins() bool {
	return g.ProteinPath != ""
}

// Prefix returns the output prefix, falling back to the genome ID
func (g GenomeRecord) Prefix() string {
	if g.OutputPrefix != "" {
		return g.OutputPrefix
	}
	return g.ID
}

// CompletenessRecord holds the metric set extracted from one genome's
// BUSCO short summary. Percentages are as reported by the tool.
type CompletenessRecord struct {
	GenomeID    string
	Complete    float64
	Single      float64
	Duplicated  float64
	Fragmented  float64
	Missing     float64
	TotalBUSCOs int
	Status      GenomeStatus
	FailReason  string
}
