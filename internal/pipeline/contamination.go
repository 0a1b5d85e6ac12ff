package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/pgmlab/genomeqc/internal/contamination"
	"github.com/pgmlab/genomeqc/internal/diamond"
	"github.com/pgmlab/genomeqc/internal/domain"
	"github.com/pgmlab/genomeqc/internal/notify"
	"github.com/pgmlab/genomeqc/internal/refset"
	"github.com/pgmlab/genomeqc/internal/report"
	"github.com/pgmlab/genomeqc/internal/runstore"
	"github.com/pgmlab/genomeqc/internal/toolrunner"
)

// ContaminationOptions configure one contamination screen
type ContaminationOptions struct {
	References []refset.Reference
	Threads    int
	EValue     string
	WorkDir    string
	OutPath    string
	Timeout    time.Duration // per-genome; zero means none
}

// Contamination screens every genome against one or more labeled
// contaminant references and merges all hits into a single table.
type Contamination struct {
	runner   toolrunner.Runner
	store    *runstore.Store // optional
	notifier notify.Notifier // optional
	log      *zap.Logger
}

// NewContamination assembles a contamination pipeline. store and
// notifier may be nil.
func NewContamination(runner toolrunner.Runner, store *runstore.Store, notifier notify.Notifier, log *zap.Logger) *Contamination {
	return &Contamination{runner: runner, store: store, notifier: notifier, log: log}
}

// Run screens all genomes against all references in order and writes
// the merged table. References are fully present and indexed before the
// first per-genome invocation. A genome counts as failed when any of
// its reference screens failed; those screens are skipped in the merge
// but the remaining ones still contribute rows.
func (p *Contamination) Run(ctx context.Context, genomes []domain.GenomeRecord, opts ContaminationOptions) (Summary, error) {
	rec := recorder{store: p.store}
	summary := Summary{Total: len(genomes)}

	if len(opts.References) == 0 {
		return summary, fmt.Errorf("no contaminant references given")
	}
	if err := refset.EnsureAll(ctx, opts.References, p.log); err != nil {
		return summary, err
	}

	// One database per reference, built before any screening
	dbs := make(map[string]string, len(opts.References))
	for _, ref := range opts.References {
		db := filepath.Join(opts.WorkDir, ref.Label+"_db")
		inv := diamond.MakeDBInvocation(ref.Path, db, opts.WorkDir)
		if _, err := p.runner.Run(ctx, inv); err != nil {
			return summary, fmt.Errorf("building %s database: %w", ref.Label, err)
		}
		dbs[ref.Label] = db
	}

	failedGenomes := make(map[string]bool)
	var tables []contamination.Table

	for _, ref := range opts.References {
		tbl := contamination.Table{Label: ref.Label, Header: contamination.Header()}

		for _, genome := range genomes {
			rows, err := p.screenGenome(ctx, genome, ref, dbs[ref.Label], opts, rec)
			if err != nil {
				if errors.Is(err, toolrunner.ErrToolNotFound) {
					return summary, err
				}
				p.log.Warn("screen failed",
					zap.String("genome", genome.ID),
					zap.String("reference", ref.Label),
					zap.Error(err))
				failedGenomes[genome.ID] = true
				continue
			}
			p.log.Info("screened genome",
				zap.String("genome", genome.ID),
				zap.String("reference", ref.Label),
				zap.Int("hits", len(rows)))
			tbl.Rows = append(tbl.Rows, rows...)
		}

		tables = append(tables, tbl)
	}

	merged, err := contamination.Merge(tables)
	if err != nil {
		return summary, err
	}
	if err := report.WriteMerged(opts.OutPath, merged.Header, merged.Rows); err != nil {
		return summary, fmt.Errorf("writing merged table: %w", err)
	}

	summary.Failed = len(failedGenomes)
	summary.Succeeded = summary.Total - summary.Failed

	p.log.Info("contamination screen finished",
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("hits", len(merged.Rows)),
		zap.String("out", opts.OutPath))
	p.notifyDone(summary)

	return summary, nil
}

// screenGenome runs one blastx screen and returns the labeled rows
func (p *Contamination) screenGenome(ctx context.Context, genome domain.GenomeRecord, ref refset.Reference, db string, opts ContaminationOptions, rec recorder) ([]string, error) {
	gctx, cancel := withTimeout(ctx, opts.Timeout)
	defer cancel()

	out := filepath.Join(opts.WorkDir, fmt.Sprintf("%s_%s_hits.tsv", genome.Prefix(), ref.Label))
	inv := diamond.AlignInvocation(diamond.AlignOptions{
		Mode:    domain.AlignBlastX,
		DB:      db,
		Query:   genome.GenomePath,
		Out:     out,
		Threads: opts.Threads,
		EValue:  opts.EValue,
		WorkDir: opts.WorkDir,
	})

	start := time.Now()
	res, err := p.runner.Run(gctx, inv)
	rec.record(invocationRecord(genome.ID, inv, res, start, err))
	if err != nil {
		return nil, err
	}

	raw, err := diamond.ReadRawHits(out)
	if err != nil {
		return nil, err
	}
	return contamination.LabelRows(genome.ID, ref.Label, raw), nil
}

func (p *Contamination) notifyDone(s Summary) {
	if p.notifier == nil {
		return
	}
	typ := notify.NotifySuccess
	if s.Failed > 0 {
		typ = notify.NotifyWarning
	}
	_ = p.notifier.Send(notify.Notification{
		Title:    "Contamination screen finished",
		Message:  s.String(),
		Type:     typ,
		Pipeline: "contamination",
	})
}
