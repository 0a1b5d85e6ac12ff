package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pgmlab/genomeqc/internal/domain"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "genome_list.tsv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRead(t *testing.T) {
	content := "# comment line\n" +
		"\n" +
		"amel\t/data/amel.fna\t/data/amel.faa\tamel_v3\n" +
		"bter\t/data/bter.fna\t/data/bter.faa\n" +
		"mros\t/data/mros.fna\n"

	records, err := Read(writeManifest(t, content))
	if err != nil {
		t.Fatal(err)
	}

	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}

	want := []domain.GenomeRecord{
		{ID: "amel", GenomePath: "/data/amel.fna", ProteinPath: "/data/amel.faa", OutputPrefix: "amel_v3", Line: 3},
		{ID: "bter", GenomePath: "/data/bter.fna", ProteinPath: "/data/bter.faa", OutputPrefix: "bter", Line: 4},
		{ID: "mros", GenomePath: "/data/mros.fna", OutputPrefix: "mros", Line: 5},
	}
	for i, w := range want {
		if records[i] != w {
			t.Errorf("record %d = %+v, want %+v", i, records[i], w)
		}
	}
}

func TestReadCountsOnlyDataLines(t *testing.T) {
	content := "# header\n\na\t/a.fna\n# mid comment\nb\t/b.fna\n\n"
	records, err := Read(writeManifest(t, content))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Errorf("got %d records, want 2", len(records))
	}
}

func TestReadSpaceSeparated(t *testing.T) {
	records, err := Read(writeManifest(t, "amel /data/amel.fna /data/amel.faa\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].ProteinPath != "/data/amel.faa" {
		t.Errorf("got %+v", records)
	}
}

func TestReadTooFewFields(t *testing.T) {
	_, err := Read(writeManifest(t, "amel\t/data/amel.fna\nonlyanid\n"))
	var ferr *FormatError
	if !errors.As(err, &ferr) {
		t.Fatalf("got %v, want FormatError", err)
	}
	if ferr.Line != 2 {
		t.Errorf("Line = %d, want 2", ferr.Line)
	}
}

func TestReadDuplicateID(t *testing.T) {
	content := "amel\t/data/amel_v1.fna\nbter\t/data/bter.fna\namel\t/data/amel_v2.fna\n"
	_, err := Read(writeManifest(t, content))
	var derr *DuplicateIDError
	if !errors.As(err, &derr) {
		t.Fatalf("got %v, want DuplicateIDError", err)
	}
	if derr.GenomeID != "amel" || derr.FirstLine != 1 || derr.Line != 3 {
		t.Errorf("unexpected error detail: %+v", derr)
	}
}

func TestReadIsRestartable(t *testing.T) {
	path := writeManifest(t, "a\t/a.fna\nb\t/b.fna\n")
	first, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Fatalf("re-read changed length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("record %d differs between reads", i)
		}
	}
}

func TestAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genome_list.tsv")
	rec := domain.GenomeRecord{ID: "newasm", GenomePath: "/incoming/newasm.fna", OutputPrefix: "newasm"}
	if err := Append(path, rec); err != nil {
		t.Fatal(err)
	}

	records, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].ID != "newasm" || records[0].GenomePath != "/incoming/newasm.fna" {
		t.Errorf("got %+v", records[0])
	}
}
