package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pgmlab/genomeqc/internal/batch"
	"github.com/pgmlab/genomeqc/internal/config"
	"github.com/pgmlab/genomeqc/internal/domain"
	"github.com/pgmlab/genomeqc/internal/lineage"
	"github.com/pgmlab/genomeqc/internal/manifest"
	"github.com/pgmlab/genomeqc/internal/notify"
	"github.com/pgmlab/genomeqc/internal/observer"
	"github.com/pgmlab/genomeqc/internal/pident"
	"github.com/pgmlab/genomeqc/internal/pipeline"
	"github.com/pgmlab/genomeqc/internal/refset"
	"github.com/pgmlab/genomeqc/internal/runstore"
	"github.com/pgmlab/genomeqc/internal/toolrunner"
)

var (
	outPath       string
	lineageName   string
	referenceFaa  string
	threads       int
	workDir       string
	refsPath      string
	refPairs      []string
	historyGenome string
	historyStatus string
	watchIntake   string
	watchManifest string
)

func init() {
	// completeness command
	completenessCmd := &cobra.Command{
		Use:   "completeness MANIFEST",
		Short: "Run BUSCO completeness assessment over a genome manifest",
		Args:  cobra.ExactArgs(1),
		RunE:  runCompleteness,
	}
	completenessCmd.Flags().StringVar(&outPath, "out", "completeness.tsv", "summary table output path")
	completenessCmd.Flags().StringVar(&lineageName, "lineage", "", "BUSCO lineage dataset (defaults to config)")
	completenessCmd.Flags().StringVar(&referenceFaa, "reference-faa", "", "protein reference for the identity step (defaults to config)")
	completenessCmd.Flags().IntVar(&threads, "threads", 0, "threads per tool invocation (defaults to config)")
	completenessCmd.Flags().StringVar(&workDir, "workdir", "", "working directory for intermediate files (defaults to config)")
	rootCmd.AddCommand(completenessCmd)

	// contamination command
	contaminationCmd := &cobra.Command{
		Use:   "contamination MANIFEST",
		Short: "Screen genomes against contaminant references with DIAMOND",
		Args:  cobra.ExactArgs(1),
		RunE:  runContamination,
	}
	contaminationCmd.Flags().StringVar(&outPath, "out", "contamination.tsv", "merged hit table output path")
	contaminationCmd.Flags().StringVar(&refsPath, "refs", "", "reference set YAML file")
	contaminationCmd.Flags().StringArrayVar(&refPairs, "ref", nil, "contaminant reference as label=path (repeatable)")
	contaminationCmd.Flags().IntVar(&threads, "threads", 0, "threads per tool invocation (defaults to config)")
	contaminationCmd.Flags().StringVar(&workDir, "workdir", "", "working directory for intermediate files (defaults to config)")
	rootCmd.AddCommand(contaminationCmd)

	// history command
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded tool invocations",
		RunE:  runHistory,
	}
	historyCmd.Flags().StringVar(&historyGenome, "genome", "", "filter by genome ID")
	historyCmd.Flags().StringVar(&historyStatus, "status", "", "filter by status (completed, failed)")
	rootCmd.AddCommand(historyCmd)

	// schedule command
	scheduleCmd := &cobra.Command{
		Use:   "schedule SCHEDULE_FILE",
		Short: "Run QC batches on a cron schedule",
		Args:  cobra.ExactArgs(1),
		RunE:  runSchedule,
	}
	rootCmd.AddCommand(scheduleCmd)

	// watch command
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch an intake directory and register new assemblies",
		RunE:  runWatch,
	}
	watchCmd.Flags().StringVar(&watchIntake, "intake", "", "directory to watch for new assemblies")
	watchCmd.Flags().StringVar(&watchManifest, "manifest", "", "manifest file to append registrations to")
	watchCmd.MarkFlagRequired("intake")
	watchCmd.MarkFlagRequired("manifest")
	rootCmd.AddCommand(watchCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

// applyDefaults fills flag values from the config where flags were not set.
func applyDefaults(cfg *config.Config) {
	if threads == 0 {
		threads = cfg.General.Threads
	}
	if workDir == "" {
		workDir = cfg.General.WorkDir
	}
	if lineageName == "" {
		lineageName = cfg.BUSCO.Lineage
	}
	if referenceFaa == "" {
		referenceFaa = cfg.BUSCO.ReferenceFile
	}
}

func openStore(cfg *config.Config) *runstore.Store {
	store, err := runstore.New(cfg.General.DatabasePath)
	if err != nil {
		logger.Warn("invocation history disabled", zap.Error(err))
		return nil
	}
	return store
}

func notifier(cfg *config.Config) notify.Notifier {
	if cfg.Notifications.SlackWebhook == "" {
		return nil
	}
	return notify.NewSlackNotifier(cfg.Notifications.SlackWebhook)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runCompleteness(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyDefaults(cfg)

	genomes, err := manifest.Read(args[0])
	if err != nil {
		return err
	}
	if len(genomes) == 0 {
		return fmt.Errorf("manifest %s lists no genomes", args[0])
	}

	store := openStore(cfg)
	if store != nil {
		defer store.Close()
	}

	runner := toolrunner.NewExecRunner(logger)
	lineages := lineage.NewCache(cfg.BUSCO.LineageDir, runner, cfg.BUSCO.AutoDownload, logger)
	p := pipeline.NewCompleteness(runner, lineages, store, pident.HistAnalyzer{}, notifier(cfg), logger)

	ctx, cancel := signalContext()
	defer cancel()

	summary, err := p.Run(ctx, genomes, pipeline.CompletenessOptions{
		Lineage:      lineageName,
		ReferenceFaa: referenceFaa,
		Threads:      threads,
		WorkDir:      workDir,
		OutPath:      outPath,
		Timeout:      cfg.General.ToolTimeout,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Completeness summary written to %s (%s)\n", outPath, summary)
	if summary.Partial() {
		return fmt.Errorf("%d of %d genomes failed", summary.Failed, summary.Total)
	}
	return nil
}

func runContamination(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyDefaults(cfg)

	genomes, err := manifest.Read(args[0])
	if err != nil {
		return err
	}
	if len(genomes) == 0 {
		return fmt.Errorf("manifest %s lists no genomes", args[0])
	}

	refs, err := loadReferences()
	if err != nil {
		return err
	}

	store := openStore(cfg)
	if store != nil {
		defer store.Close()
	}

	runner := toolrunner.NewExecRunner(logger)
	p := pipeline.NewContamination(runner, store, notifier(cfg), logger)

	ctx, cancel := signalContext()
	defer cancel()

	summary, err := p.Run(ctx, genomes, pipeline.ContaminationOptions{
		References: refs,
		Threads:    threads,
		EValue:     cfg.Diamond.EValue,
		WorkDir:    workDir,
		OutPath:    outPath,
		Timeout:    cfg.General.ToolTimeout,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Contamination table written to %s (%s)\n", outPath, summary)
	if summary.Partial() {
		return fmt.Errorf("%d of %d genomes failed", summary.Failed, summary.Total)
	}
	return nil
}

// loadReferences resolves --refs / --ref into a reference list.
func loadReferences() ([]refset.Reference, error) {
	if refsPath != "" && len(refPairs) > 0 {
		return nil, fmt.Errorf("--refs and --ref are mutually exclusive")
	}
	if refsPath != "" {
		return refset.Load(refsPath)
	}
	if len(refPairs) == 0 {
		return nil, fmt.Errorf("no contaminant references: pass --refs or --ref")
	}

	refs := make([]refset.Reference, 0, len(refPairs))
	for _, pair := range refPairs {
		label, path, ok := strings.Cut(pair, "=")
		if !ok || label == "" || path == "" {
			return nil, fmt.Errorf("invalid --ref %q, want label=path", pair)
		}
		refs = append(refs, refset.Reference{Label: label, Path: path})
	}
	return refs, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := runstore.New(cfg.General.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	invocations, err := store.List(runstore.ListOptions{
		GenomeID: historyGenome,
		Status:   domain.GenomeStatus(historyStatus),
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GENOME\tTOOL\tSTATUS\tEXIT\tSTARTED\tDURATION")
	for _, inv := range invocations {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			inv.GenomeID, inv.Tool, inv.Status, inv.ExitCode,
			inv.StartedAt.Format("2006-01-02 15:04:05"),
			inv.FinishedAt.Sub(inv.StartedAt).Round(0))
	}
	w.Flush()

	counts, err := store.CountByStatus()
	if err != nil {
		return err
	}
	fmt.Printf("\n%d invocations | %d completed | %d failed\n",
		len(invocations), counts[domain.GenomeCompleted], counts[domain.GenomeFailed])

	return nil
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyDefaults(cfg)

	schedCfg, err := batch.LoadScheduleConfig(args[0])
	if err != nil {
		return err
	}

	sched, err := batch.NewScheduler(schedCfg.Batches, logger)
	if err != nil {
		return err
	}

	store := openStore(cfg)
	if store != nil {
		defer store.Close()
	}

	ctx, cancel := signalContext()
	defer cancel()

	go sched.Start(func(bc batch.BatchConfig) error {
		return runBatch(ctx, cfg, store, bc)
	})

	logger.Info("scheduler started", zap.Strings("batches", sched.ListBatches()))
	<-ctx.Done()
	sched.Stop()
	logger.Info("scheduler stopped")
	return nil
}

// runBatch executes one scheduled batch end to end.
func runBatch(ctx context.Context, cfg *config.Config, store *runstore.Store, bc batch.BatchConfig) error {
	genomes, err := manifest.Read(bc.Manifest)
	if err != nil {
		return err
	}

	runner := toolrunner.NewExecRunner(logger)

	switch bc.Pipeline {
	case batch.PipelineCompleteness:
		lineages := lineage.NewCache(cfg.BUSCO.LineageDir, runner, cfg.BUSCO.AutoDownload, logger)
		p := pipeline.NewCompleteness(runner, lineages, store, pident.HistAnalyzer{}, notifier(cfg), logger)
		_, err = p.Run(ctx, genomes, pipeline.CompletenessOptions{
			Lineage: bc.Lineage,
			Threads: threads,
			WorkDir: workDir,
			OutPath: bc.Out,
			Timeout: cfg.General.ToolTimeout,
		})
		return err
	case batch.PipelineContamination:
		refs, err := refset.Load(bc.Refs)
		if err != nil {
			return err
		}
		p := pipeline.NewContamination(runner, store, notifier(cfg), logger)
		_, err = p.Run(ctx, genomes, pipeline.ContaminationOptions{
			References: refs,
			Threads:    threads,
			EValue:     cfg.Diamond.EValue,
			WorkDir:    workDir,
			OutPath:    bc.Out,
			Timeout:    cfg.General.ToolTimeout,
		})
		return err
	default:
		return fmt.Errorf("unknown pipeline %q in batch %s", bc.Pipeline, bc.Name)
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	iw, err := observer.NewIntakeWatcher(watchIntake, watchManifest, func(records []domain.GenomeRecord) {
		for _, rec := range records {
			fmt.Printf("Registered %s (%s)\n", rec.ID, rec.GenomePath)
		}
	}, logger)
	if err != nil {
		return err
	}
	defer iw.Stop()

	ctx, cancel := signalContext()
	defer cancel()

	iw.Start(ctx)
	logger.Info("watching for new assemblies",
		zap.String("intake", watchIntake),
		zap.String("manifest", watchManifest))
	<-ctx.Done()
	return nil
}
