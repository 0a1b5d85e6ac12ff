// Package refset manages labeled contaminant protein reference sets.
// A reference set file lists the references a contamination screen runs
// against; references with a URL are fetched up front so every genome
// invocation sees a complete, read-only reference on disk.
package refset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

const fetchTimeout = 5 * time.Minute

// Reference is one labeled contaminant protein set
type Reference struct {
	Label string `yaml:"label"`
	Path  string `yaml:"path"`
	URL   string `yaml:"url,omitempty"`
}

// File is the on-disk reference set description
type File struct {
	References []Reference `yaml:"references"`
}

// Load reads a YAML reference set file
func Load(path string) ([]Reference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading reference set file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing reference set file: %w", err)
	}

	if len(f.References) == 0 {
		return nil, fmt.Errorf("reference set file %s lists no references", path)
	}
	seen := make(map[string]bool)
	for i, ref := range f.References {
		if ref.Label == "" || ref.Path == "" {
			return nil, fmt.Errorf("reference %d needs both label and path", i)
		}
		if seen[ref.Label] {
			return nil, fmt.Errorf("duplicate reference label %q", ref.Label)
		}
		seen[ref.Label] = true
	}

	return f.References, nil
}

// EnsureAll makes sure every reference FASTA exists locally, fetching
// missing ones concurrently. It must complete before the first
// per-genome screen so no invocation observes a partial download.
func EnsureAll(ctx context.Context, refs []Reference, log *zap.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, ref := range refs {
		ref := ref
		g.Go(func() error {
			if _, err := os.Stat(ref.Path); err == nil {
				log.Debug("reference present", zap.String("label", ref.Label), zap.String("path", ref.Path))
				return nil
			}
			if ref.URL == "" {
				return fmt.Errorf("reference %q missing at %s and no URL to fetch it from", ref.Label, ref.Path)
			}
			return fetch(ctx, ref, log)
		})
	}

	return g.Wait()
}

func fetch(ctx context.Context, ref Reference, log *zap.Logger) error {
	log.Info("fetching reference", zap.String("label", ref.Label), zap.String("url", ref.URL))

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetching reference %q: %w", ref.Label, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching reference %q: server returned %d", ref.Label, resp.StatusCode)
	}

	// Download to a temp path and rename so a failed fetch never
	// leaves a truncated reference behind.
	tmp, err := os.CreateTemp(filepath.Dir(ref.Path), ".fetch-"+ref.Label+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("downloading reference %q: %w", ref.Label, err)
	}
	if err := os.Rename(tmpName, ref.Path); err != nil {
		os.Remove(tmpName)
		return err
	}

	log.Info("reference fetched",
		zap.String("label", ref.Label),
		zap.String("size", humanize.Bytes(uint64(n))))
	return nil
}
