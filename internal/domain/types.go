package domain

// GenomeStatus represents the processing outcome for one genome
type GenomeStatus string

const (
	GenomePending   GenomeStatus = "pending"
	GenomeRunning   GenomeStatus = "running"
	GenomeCompleted GenomeStatus = "completed"
	GenomeFailed    GenomeStatus = "failed"
)

// Tool identifies an external command-line collaborator
type Tool string

const (
	ToolBUSCO   Tool = "busco"
	ToolDiamond Tool = "diamond"
)

// AlignMode selects the DIAMOND search mode
type AlignMode string

const (
	// AlignBlastP searches protein queries against a protein reference
	AlignBlastP AlignMode = "blastp"
	// AlignBlastX six-frame-translates nucleotide queries against a protein reference
	AlignBlastX AlignMode = "blastx"
)
