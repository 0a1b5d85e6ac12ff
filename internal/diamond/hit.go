package diamond

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Hit is one outfmt-6 row. Field order matches OutFormatColumns.
type Hit struct {
	QSeqID   string
	SSeqID   string
	PIdent   float64
	Length   int
	Mismatch int
	GapOpen  int
	QStart   int
	QEnd     int
	SStart   int
	SEnd     int
	EValue   float64
	BitScore float64
}

// ParseHit parses one tab-split outfmt-6 row
func ParseHit(fields []string) (Hit, error) {
	if len(fields) < len(OutFormatColumns) {
		return Hit{}, fmt.Errorf("outfmt 6 row has %d fields, want %d", len(fields), len(OutFormatColumns))
	}

	var h Hit
	var err error
	h.QSeqID = fields[0]
	h.SSeqID = fields[1]
	if h.PIdent, err = strconv.ParseFloat(fields[2], 64); err != nil {
		return Hit{}, fmt.Errorf("pident %q: %w", fields[2], err)
	}
	if h.Length, err = strconv.Atoi(fields[3]); err != nil {
		return Hit{}, fmt.Errorf("length %q: %w", fields[3], err)
	}
	if h.Mismatch, err = strconv.Atoi(fields[4]); err != nil {
		return Hit{}, fmt.Errorf("mismatch %q: %w", fields[4], err)
	}
	if h.GapOpen, err = strconv.Atoi(fields[5]); err != nil {
		return Hit{}, fmt.Errorf("gapopen %q: %w", fields[5], err)
	}
	if h.QStart, err = strconv.Atoi(fields[6]); err != nil {
		return Hit{}, fmt.Errorf("qstart %q: %w", fields[6], err)
	}
	if h.QEnd, err = strconv.Atoi(fields[7]); err != nil {
		return Hit{}, fmt.Errorf("qend %q: %w", fields[7], err)
	}
	if h.SStart, err = strconv.Atoi(fields[8]); err != nil {
		return Hit{}, fmt.Errorf("sstart %q: %w", fields[8], err)
	}
	if h.SEnd, err = strconv.Atoi(fields[9]); err != nil {
		return Hit{}, fmt.Errorf("send %q: %w", fields[9], err)
	}
	if h.EValue, err = strconv.ParseFloat(fields[10], 64); err != nil {
		return Hit{}, fmt.Errorf("evalue %q: %w", fields[10], err)
	}
	if h.BitScore, err = strconv.ParseFloat(fields[11], 64); err != nil {
		return Hit{}, fmt.Errorf("bitscore %q: %w", fields[11], err)
	}
	return h, nil
}

// ReadRawHits returns the non-empty hit rows of a hit table as raw
// tab-separated lines, in file order. The merger works on raw rows so
// multiplicities and tool-chosen ordering survive untouched.
func ReadRawHits(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening hit table: %w", err)
	}
	defer f.Close()

	var rows []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading hit table: %w", err)
	}
	return rows, nil
}
