package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pgmlab/genomeqc/internal/domain"
	"github.com/pgmlab/genomeqc/internal/lineage"
	"github.com/pgmlab/genomeqc/internal/pident"
	"github.com/pgmlab/genomeqc/internal/toolrunner"
)

const fakeSummaryFmt = "# BUSCO fake summary\n\tC:%s%%[S:%s%%,D:%s%%],F:%s%%,M:%s%%,n:%d\n"

// writeFakeSummary simulates BUSCO leaving its short summary under the
// invocation's declared output path
func writeFakeSummary(t *testing.T, path string, c, s, d, f, m string, n int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(fakeSummaryFmt, c, s, d, f, m, n)), 0644))
}

func buscoHandler(t *testing.T, failIDs map[string]bool) func(inv toolrunner.Invocation) (toolrunner.Result, error) {
	return func(inv toolrunner.Invocation) (toolrunner.Result, error) {
		res := toolrunner.Result{StdoutPath: inv.StdoutPath, DeclaredOutput: inv.DeclaredOutput}
		switch inv.Tool {
		case "busco":
			for id := range failIDs {
				if strings.Contains(strings.Join(inv.Args, " "), "--out="+id) {
					res.ExitCode = 1
					return res, &toolrunner.InvocationError{Tool: "busco", ExitCode: 1}
				}
			}
			writeFakeSummary(t, inv.DeclaredOutput, "98.5", "97.1", "1.4", "0.8", "0.7", 5991)
		case "diamond":
			if inv.StdoutPath != "" {
				hit := "p1\tNP_1\t96.5\t120\t4\t0\t1\t120\t1\t120\t1e-60\t230\n"
				require.NoError(t, os.WriteFile(inv.StdoutPath, []byte(hit), 0644))
			}
		}
		return res, nil
	}
}

func newCompleteness(t *testing.T, fake *toolrunner.FakeRunner, dir string, analyzer pident.Analyzer) *Completeness {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "hymenoptera_odb10"), 0755))
	lineages := lineage.NewCache(dir, fake, false, zap.NewNop())
	return NewCompleteness(fake, lineages, nil, analyzer, nil, zap.NewNop())
}

func TestCompletenessRun(t *testing.T) {
	dir := t.TempDir()
	fake := &toolrunner.FakeRunner{Handler: buscoHandler(t, nil)}
	p := newCompleteness(t, fake, dir, nil)

	genomes := []domain.GenomeRecord{
		{ID: "amel", GenomePath: "/data/amel.fna", OutputPrefix: "amel"},
		{ID: "bter", GenomePath: "/data/bter.fna", OutputPrefix: "bter"},
	}
	out := filepath.Join(dir, "master_summary.tsv")
	summary, err := p.Run(context.Background(), genomes, CompletenessOptions{
		Lineage: "hymenoptera_odb10", Threads: 4, WorkDir: dir, OutPath: out,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.False(t, summary.Partial())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "amel\t98.5\t"), "rows follow manifest order: %q", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "bter\t98.5\t"), "rows follow manifest order: %q", lines[2])
}

func TestCompletenessContinuesPastFailedGenome(t *testing.T) {
	dir := t.TempDir()
	fake := &toolrunner.FakeRunner{Handler: buscoHandler(t, map[string]bool{"bter": true})}
	p := newCompleteness(t, fake, dir, nil)

	genomes := []domain.GenomeRecord{
		{ID: "amel", GenomePath: "/data/amel.fna", OutputPrefix: "amel"},
		{ID: "bter", GenomePath: "/data/bter.fna", OutputPrefix: "bter"},
		{ID: "mros", GenomePath: "/data/mros.fna", OutputPrefix: "mros"},
	}
	out := filepath.Join(dir, "master_summary.tsv")
	summary, err := p.Run(context.Background(), genomes, CompletenessOptions{
		Lineage: "hymenoptera_odb10", Threads: 4, WorkDir: dir, OutPath: out,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.True(t, summary.Partial(), "partial failure must surface in the summary")

	// All three genomes were attempted
	assert.Len(t, fake.Calls("busco"), 3)

	// The failed genome appears as an NA row in manifest position
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "bter\tNA\tNA\tNA\tNA\tNA\tNA\tfailed", lines[2])
}

func TestCompletenessResultFileMissing(t *testing.T) {
	dir := t.TempDir()
	// busco reports success but never writes the summary file
	fake := &toolrunner.FakeRunner{}
	p := newCompleteness(t, fake, dir, nil)

	genomes := []domain.GenomeRecord{{ID: "amel", GenomePath: "/data/amel.fna", OutputPrefix: "amel"}}
	summary, err := p.Run(context.Background(), genomes, CompletenessOptions{
		Lineage: "hymenoptera_odb10", Threads: 4, WorkDir: dir,
		OutPath: filepath.Join(dir, "out.tsv"),
	})
	require.NoError(t, err, "missing result is a per-genome failure, not a batch failure")
	assert.Equal(t, 1, summary.Failed)
}

func TestCompletenessSkipsAlignmentWithoutProteins(t *testing.T) {
	dir := t.TempDir()
	fake := &toolrunner.FakeRunner{Handler: buscoHandler(t, nil)}
	p := newCompleteness(t, fake, dir, nil)

	genomes := []domain.GenomeRecord{{ID: "sampleA", GenomePath: "/data/sampleA.fna", OutputPrefix: "sampleA"}}
	_, err := p.Run(context.Background(), genomes, CompletenessOptions{
		Lineage: "hymenoptera_odb10", ReferenceFaa: "/refs/dmel.faa",
		Threads: 4, WorkDir: dir, OutPath: filepath.Join(dir, "out.tsv"),
	})
	require.NoError(t, err)

	assert.Empty(t, fake.Calls("diamond"), "no alignment may run for a genome without proteins")
}

func TestCompletenessRunsAlignmentAndAnalyzer(t *testing.T) {
	dir := t.TempDir()
	fake := &toolrunner.FakeRunner{Handler: buscoHandler(t, nil)}
	p := newCompleteness(t, fake, dir, pident.HistAnalyzer{})

	genomes := []domain.GenomeRecord{
		{ID: "amel", GenomePath: "/data/amel.fna", ProteinPath: "/data/amel.faa", OutputPrefix: "amel"},
		{ID: "bter", GenomePath: "/data/bter.fna", ProteinPath: "/data/bter.faa", OutputPrefix: "bter"},
	}
	_, err := p.Run(context.Background(), genomes, CompletenessOptions{
		Lineage: "hymenoptera_odb10", ReferenceFaa: "/refs/dmel.faa",
		Threads: 4, WorkDir: dir, OutPath: filepath.Join(dir, "out.tsv"),
	})
	require.NoError(t, err)

	calls := fake.Calls("diamond")
	require.Len(t, calls, 3, "one makedb plus one blastp per genome")
	assert.Equal(t, "makedb", calls[0].Args[0], "reference database is built once, before the genome loop")
	assert.Equal(t, "blastp", calls[1].Args[0])
	assert.Equal(t, "blastp", calls[2].Args[0])

	// Analyzer output exists for both genomes
	for _, id := range []string{"amel", "bter"} {
		if _, err := os.Stat(filepath.Join(dir, id+"_pident_hist.txt")); err != nil {
			t.Errorf("missing pident histogram for %s: %v", id, err)
		}
	}
}

func TestCompletenessToolNotFoundIsFatal(t *testing.T) {
	dir := t.TempDir()
	fake := &toolrunner.FakeRunner{
		Handler: func(inv toolrunner.Invocation) (toolrunner.Result, error) {
			return toolrunner.Result{}, fmt.Errorf("%w: busco", toolrunner.ErrToolNotFound)
		},
	}
	p := newCompleteness(t, fake, dir, nil)

	genomes := []domain.GenomeRecord{
		{ID: "amel", GenomePath: "/a.fna", OutputPrefix: "amel"},
		{ID: "bter", GenomePath: "/b.fna", OutputPrefix: "bter"},
	}
	_, err := p.Run(context.Background(), genomes, CompletenessOptions{
		Lineage: "hymenoptera_odb10", Threads: 4, WorkDir: dir,
		OutPath: filepath.Join(dir, "out.tsv"),
	})
	require.ErrorIs(t, err, toolrunner.ErrToolNotFound)

	assert.Len(t, fake.Calls("busco"), 1, "a missing tool aborts the whole run")
}
