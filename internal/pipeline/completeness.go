package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/pgmlab/genomeqc/internal/busco"
	"github.com/pgmlab/genomeqc/internal/diamond"
	"github.com/pgmlab/genomeqc/internal/domain"
	"github.com/pgmlab/genomeqc/internal/lineage"
	"github.com/pgmlab/genomeqc/internal/notify"
	"github.com/pgmlab/genomeqc/internal/pident"
	"github.com/pgmlab/genomeqc/internal/report"
	"github.com/pgmlab/genomeqc/internal/runstore"
	"github.com/pgmlab/genomeqc/internal/toolrunner"
)

// CompletenessOptions configure one completeness run
type CompletenessOptions struct {
	Lineage      string
	ReferenceFaa string // protein reference for the optional blastp step; empty disables it
	Threads      int
	WorkDir      string
	OutPath      string
	Timeout      time.Duration // per-genome; zero means none
}

// Completeness runs BUSCO per genome and aggregates the metric rows
// into a single summary table.
type Completeness struct {
	runner   toolrunner.Runner
	lineages *lineage.Cache
	store    *runstore.Store // optional
	analyzer pident.Analyzer // optional
	notifier notify.Notifier // optional
	log      *zap.Logger
}

// NewCompleteness assembles a completeness pipeline. store, analyzer
// and notifier may be nil; the corresponding steps are skipped.
func NewCompleteness(runner toolrunner.Runner, lineages *lineage.Cache, store *runstore.Store, analyzer pident.Analyzer, notifier notify.Notifier, log *zap.Logger) *Completeness {
	return &Completeness{
		runner:   runner,
		lineages: lineages,
		store:    store,
		analyzer: analyzer,
		notifier: notifier,
		log:      log,
	}
}

// Run processes every genome in manifest order, writes the summary
// table, and reports how many genomes succeeded. Per-genome failures
// produce NA rows and do not stop the batch; a missing tool or lineage
// aborts before any summary is written.
func (p *Completeness) Run(ctx context.Context, genomes []domain.GenomeRecord, opts CompletenessOptions) (Summary, error) {
	rec := recorder{store: p.store}
	summary := Summary{Total: len(genomes)}

	lineagePath, err := p.lineages.Ensure(ctx, opts.Lineage)
	if err != nil {
		return summary, err
	}

	// Build the protein reference database once, before the genome
	// loop, so per-genome alignment only runs searches.
	refDB := ""
	if opts.ReferenceFaa != "" && anyProteins(genomes) {
		refDB = filepath.Join(opts.WorkDir, "reference_db")
		inv := diamond.MakeDBInvocation(opts.ReferenceFaa, refDB, opts.WorkDir)
		if _, err := p.runner.Run(ctx, inv); err != nil {
			return summary, fmt.Errorf("building reference database: %w", err)
		}
	}

	var records []domain.CompletenessRecord
	for _, genome := range genomes {
		row, err := p.runGenome(ctx, genome, lineagePath, refDB, opts, rec)
		if err != nil {
			if errors.Is(err, toolrunner.ErrToolNotFound) {
				return summary, err
			}
			p.log.Warn("genome failed",
				zap.String("genome", genome.ID),
				zap.Error(err))
			summary.Failed++
			records = append(records, domain.CompletenessRecord{
				GenomeID:   genome.ID,
				Status:     domain.GenomeFailed,
				FailReason: err.Error(),
			})
			continue
		}
		summary.Succeeded++
		records = append(records, row)
	}

	if err := report.WriteCompleteness(opts.OutPath, records); err != nil {
		return summary, fmt.Errorf("writing summary: %w", err)
	}

	p.log.Info("completeness run finished",
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.String("out", opts.OutPath))
	p.notifyDone("Completeness run finished", summary)

	return summary, nil
}

// runGenome runs BUSCO for one genome, parses its summary, and runs
// the optional protein alignment and pident steps.
func (p *Completeness) runGenome(ctx context.Context, genome domain.GenomeRecord, lineagePath, refDB string, opts CompletenessOptions, rec recorder) (domain.CompletenessRecord, error) {
	gctx, cancel := withTimeout(ctx, opts.Timeout)
	defer cancel()

	p.log.Info("processing genome",
		zap.String("genome", genome.ID),
		zap.String("fasta", genome.GenomePath))

	inv := busco.GenomeInvocation(genome, lineagePath, opts.Threads, opts.WorkDir)
	start := time.Now()
	res, err := p.runner.Run(gctx, inv)
	rec.record(invocationRecord(genome.ID, inv, res, start, err))
	if err != nil {
		return domain.CompletenessRecord{}, err
	}

	row, err := busco.ParseSummary(inv.DeclaredOutput, genome.ID)
	if err != nil {
		return domain.CompletenessRecord{}, err
	}

	if refDB != "" && genome.HasProteins() {
		p.alignProteins(gctx, genome, refDB, opts, rec)
	}

	return row, nil
}

// alignProteins runs the protein reference alignment and, when an
// analyzer is configured, the identity-distribution step. Failures here
// are logged but do not fail the genome: the completeness metrics are
// already extracted.
func (p *Completeness) alignProteins(ctx context.Context, genome domain.GenomeRecord, refDB string, opts CompletenessOptions, rec recorder) {
	out := filepath.Join(opts.WorkDir, genome.Prefix()+"_diamond.tsv")
	inv := diamond.AlignInvocation(diamond.AlignOptions{
		Mode:    domain.AlignBlastP,
		DB:      refDB,
		Query:   genome.ProteinPath,
		Out:     out,
		Threads: opts.Threads,
		WorkDir: opts.WorkDir,
	})

	start := time.Now()
	res, err := p.runner.Run(ctx, inv)
	rec.record(invocationRecord(genome.ID, inv, res, start, err))
	if err != nil {
		p.log.Warn("protein alignment failed",
			zap.String("genome", genome.ID),
			zap.Error(err))
		return
	}

	if p.analyzer == nil {
		return
	}
	rep, err := p.analyzer.Analyze(out, filepath.Join(opts.WorkDir, genome.Prefix()+"_pident"))
	if err != nil {
		p.log.Warn("pident analysis failed",
			zap.String("genome", genome.ID),
			zap.Error(err))
		return
	}
	p.log.Info("pident distribution written",
		zap.String("genome", genome.ID),
		zap.Int("queries_with_hits", rep.TotalQueries))
}

func (p *Completeness) notifyDone(title string, s Summary) {
	if p.notifier == nil {
		return
	}
	typ := notify.NotifySuccess
	if s.Failed > 0 {
		typ = notify.NotifyWarning
	}
	_ = p.notifier.Send(notify.Notification{
		Title:    title,
		Message:  s.String(),
		Type:     typ,
		Pipeline: "completeness",
	})
}

func anyProteins(genomes []domain.GenomeRecord) bool {
	for _, g := range genomes {
		if g.HasProteins() {
			return true
		}
	}
	return false
}
