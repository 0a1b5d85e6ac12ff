package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pgmlab/genomeqc/internal/domain"
)

func TestWriteCompleteness(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master_summary.tsv")

	records := []domain.CompletenessRecord{
		{GenomeID: "amel", Complete: 98.5, Single: 97.1, Duplicated: 1.4, Fragmented: 0.8, Missing: 0.7, TotalBUSCOs: 5991, Status: domain.GenomeCompleted},
		{GenomeID: "bter", Status: domain.GenomeFailed, FailReason: "busco exited with code 1"},
	}
	if err := WriteCompleteness(path, records); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if lines[0] != strings.Join(CompletenessHeader, "\t") {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "amel\t98.5\t97.1\t1.4\t0.8\t0.7\t5991\tcompleted" {
		t.Errorf("row 1 = %q", lines[1])
	}
	if lines[2] != "bter\tNA\tNA\tNA\tNA\tNA\tNA\tfailed" {
		t.Errorf("NA row = %q", lines[2])
	}
}

func TestWriteCompletenessRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.tsv")
	records := []domain.CompletenessRecord{
		{GenomeID: "a", Complete: 90.1, Single: 88, Duplicated: 2.1, Fragmented: 5, Missing: 4.9, TotalBUSCOs: 100, Status: domain.GenomeCompleted},
		{GenomeID: "b", Complete: 75.5, Single: 70, Duplicated: 5.5, Fragmented: 10, Missing: 14.5, TotalBUSCOs: 100, Status: domain.GenomeCompleted},
	}
	if err := WriteCompleteness(path, records); err != nil {
		t.Fatal(err)
	}

	// Re-read with manifest-style parsing: skip header, split on tabs,
	// recover genome_id -> Complete(%) mapping.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got := make(map[string]string)
	for i, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if i == 0 {
			continue
		}
		fields := strings.Split(line, "\t")
		got[fields[0]] = fields[1]
	}
	if got["a"] != "90.1" || got["b"] != "75.5" {
		t.Errorf("round trip mapping = %v", got)
	}
}

func TestWriteMerged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "merged.tsv")
	header := "GenomeID\tContaminant\tqseqid\tsseqid\tpident"
	rows := []string{
		"amel\tunivec\tq1\ts1\t99.0",
		"amel\tphix\tq2\ts2\t80.0",
	}
	if err := WriteMerged(path, header, rows); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := header + "\n" + rows[0] + "\n" + rows[1] + "\n"
	if string(data) != want {
		t.Errorf("merged = %q, want %q", data, want)
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.tsv")
	if err := WriteMerged(path, "h", nil); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "out.tsv" {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("directory contents = %v, want only out.tsv", names)
	}
}
