// Package lineage manages the BUSCO lineage datasets shared by every
// genome invocation in a run. The dataset must be fully present before
// the first per-genome invocation; Ensure is idempotent per lineage
// name for the lifetime of the Cache.
package lineage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/pgmlab/genomeqc/internal/domain"
	"github.com/pgmlab/genomeqc/internal/toolrunner"
)

// Cache checks for and downloads lineage datasets. Safe for concurrent
// use; each distinct lineage name is checked or fetched at most once.
type Cache struct {
	dir          string // directory lineage folders live under
	runner       toolrunner.Runner
	autoDownload bool
	log          *zap.Logger

	mu      sync.Mutex
	ensured map[string]string // lineage name -> resolved path
}

// NewCache returns a Cache rooted at dir. When autoDownload is false a
// missing lineage is an error instead of a download attempt.
func NewCache(dir string, runner toolrunner.Runner, autoDownload bool, log *zap.Logger) *Cache {
	return &Cache{
		dir:          dir,
		runner:       runner,
		autoDownload: autoDownload,
		log:          log,
		ensured:      make(map[string]string),
	}
}

// Ensure makes sure the named lineage dataset exists locally and
// returns its path. Repeated calls with the same name return the cached
// result without touching the filesystem again.
func (c *Cache) Ensure(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if path, ok := c.ensured[name]; ok {
		return path, nil
	}

	path := filepath.Join(c.dir, name)
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		c.log.Info("lineage dataset found",
			zap.String("lineage", name),
			zap.String("size", humanize.Bytes(uint64(dirSize(path)))))
		c.ensured[name] = path
		return path, nil
	}

	if !c.autoDownload {
		return "", fmt.Errorf("lineage dataset %q not found under %s and auto download is disabled", name, c.dir)
	}

	c.log.Info("lineage dataset not found, downloading", zap.String("lineage", name))
	inv := toolrunner.Invocation{
		Tool: string(domain.ToolBUSCO),
		Args: []string{"download", "--lineages", name},
		Dir:  c.dir,
	}
	if _, err := c.runner.Run(ctx, inv); err != nil {
		return "", fmt.Errorf("downloading lineage %q: %w", name, err)
	}

	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("lineage %q still missing after download", name)
	}

	c.log.Info("lineage dataset downloaded",
		zap.String("lineage", name),
		zap.String("size", humanize.Bytes(uint64(dirSize(path)))))
	c.ensured[name] = path
	return path, nil
}

// dirSize sums regular-file sizes under root. Best effort; used only
// for log output.
func dirSize(root string) int64 {
	var total int64
	filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if info, err := d.Info(); err == nil && info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})
	return total
}
