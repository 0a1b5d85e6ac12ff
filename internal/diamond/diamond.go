// Package diamond builds DIAMOND invocations and parses its tabular
// (outfmt 6) hit output. Hits pass through unmodified: no reordering,
// no deduplication, no rescoring.
package diamond

import (
	"fmt"
	"strings"

	"github.com/pgmlab/genomeqc/internal/domain"
	"github.com/pgmlab/genomeqc/internal/toolrunner"
)

// OutFormatColumns is the outfmt-6 column set requested from DIAMOND,
// in output order
var OutFormatColumns = []string{
	"qseqid", "sseqid", "pident", "length", "mismatch", "gapopen",
	"qstart", "qend", "sstart", "send", "evalue", "bitscore",
}

// MakeDBInvocation builds the database-creation call. The database is
// built once per reference and shared by every genome invocation.
func MakeDBInvocation(refFaa, dbPrefix, workDir string) toolrunner.Invocation {
	return toolrunner.Invocation{
		Tool:           string(domain.ToolDiamond),
		Args:           []string{"makedb", "--in", refFaa, "-d", dbPrefix},
		Dir:            workDir,
		DeclaredOutput: dbPrefix + ".dmnd",
	}
}

// AlignOptions configure a single similarity search
type AlignOptions struct {
	Mode    domain.AlignMode
	DB      string // db prefix, without .dmnd
	Query   string // genome FASTA (blastx) or protein FASTA (blastp)
	Out     string // hit table destination
	Threads int
	EValue  string // empty means tool default
	WorkDir string
}

// AlignInvocation builds a blastp/blastx call. Hits are captured from
// stdout into opts.Out so the same path works for both modes.
func AlignInvocation(opts AlignOptions) toolrunner.Invocation {
	args := []string{
		string(opts.Mode),
		"--db", opts.DB + ".dmnd",
		"--query", opts.Query,
		"--outfmt", "6 " + strings.Join(OutFormatColumns, " "),
		"--threads", fmt.Sprintf("%d", opts.Threads),
	}
	if opts.EValue != "" {
		args = append(args, "--evalue", opts.EValue)
	}
	return toolrunner.Invocation{
		Tool:           string(domain.ToolDiamond),
		Args:           args,
		Dir:            opts.WorkDir,
		StdoutPath:     opts.Out,
		DeclaredOutput: opts.Out,
	}
}
