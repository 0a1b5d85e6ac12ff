// Package pipeline composes manifest parsing, external tool dispatch,
// result collection and report writing into the two QC workflows:
// completeness assessment and contamination screening.
//
// Scheduling is sequential in manifest order: one genome's tool
// invocation completes before the next begins. Parallelism is delegated
// to the tools' own thread pools via the thread-count option. Fatal
// preconditions (manifest, lineage, references, missing tools) abort
// before any per-genome work; per-genome failures are logged, recorded
// and never stop the batch.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/pgmlab/genomeqc/internal/domain"
	"github.com/pgmlab/genomeqc/internal/runstore"
	"github.com/pgmlab/genomeqc/internal/toolrunner"
)

// Summary reports the outcome of one pipeline run
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

// Partial reports whether any genome failed. Callers turn this into a
// non-zero exit after outputs are written.
func (s Summary) Partial() bool {
	return s.Failed > 0
}

func (s Summary) String() string {
	return fmt.Sprintf("%d genomes: %d succeeded, %d failed", s.Total, s.Succeeded, s.Failed)
}

// recorder wraps the optional run store; a nil store records nothing
type recorder struct {
	store *runstore.Store
}

func (r recorder) record(inv *runstore.Invocation) {
	if r.store == nil {
		return
	}
	// History is advisory; a write failure must not affect the batch.
	_ = r.store.Record(inv)
}

// withTimeout derives a per-genome context when a timeout is configured
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// invocationRecord builds a history entry from a finished invocation
func invocationRecord(genomeID string, inv toolrunner.Invocation, res toolrunner.Result, start time.Time, runErr error) *runstore.Invocation {
	rec := &runstore.Invocation{
		GenomeID:   genomeID,
		Tool:       domain.Tool(inv.Tool),
		Args:       inv.Args,
		ExitCode:   res.ExitCode,
		OutputPath: res.DeclaredOutput,
		Status:     domain.GenomeCompleted,
		StartedAt:  start,
		FinishedAt: time.Now(),
	}
	if runErr != nil {
		rec.Status = domain.GenomeFailed
		rec.Error = runErr.Error()
	}
	return rec
}
