package observer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/pgmlab/genomeqc/internal/domain"
	"github.com/pgmlab/genomeqc/internal/manifest"
)

// IntakeCallback is called after new assemblies have been registered in the
// manifest. records holds the entries that were appended.
type IntakeCallback func(records []domain.GenomeRecord)

// assemblyExts are the filename extensions treated as genome assemblies.
var assemblyExts = map[string]struct{}{
	".fa":    {},
	".fna":   {},
	".fasta": {},
}

// IntakeWatcher monitors an intake directory for newly dropped genome
// assemblies and appends them to a manifest. Rapid events for the same file
// (common while a large FASTA is still being copied in) are debounced so a
// file is registered once, after writes have settled.
type IntakeWatcher struct {
	watcher      *fsnotify.Watcher
	manifestPath string
	callback     IntakeCallback
	log          *zap.Logger
	debounce     time.Duration

	// IDs already present in the manifest or registered this session
	known map[string]struct{}

	// Debounce state
	pending map[string]struct{}
	timer   *time.Timer
	mu      sync.Mutex

	cancel context.CancelFunc
}

// NewIntakeWatcher creates a watcher on intakeDir that appends new assemblies
// to manifestPath. IDs already listed in the manifest are never re-added.
func NewIntakeWatcher(intakeDir, manifestPath string, callback IntakeCallback, log *zap.Logger) (*IntakeWatcher, error) {
	if log == nil {
		log = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	iw := &IntakeWatcher{
		watcher:      watcher,
		manifestPath: manifestPath,
		callback:     callback,
		log:          log,
		debounce:     500 * time.Millisecond,
		known:        make(map[string]struct{}),
		pending:      make(map[string]struct{}),
	}

	// Seed known IDs from an existing manifest so restarts are idempotent.
	if records, err := manifest.Read(manifestPath); err == nil {
		for _, rec := range records {
			iw.known[rec.ID] = struct{}{}
		}
	}

	if err := watcher.Add(intakeDir); err != nil {
		watcher.Close()
		return nil, err
	}

	return iw, nil
}

// Start begins watching for dropped assemblies.
func (iw *IntakeWatcher) Start(ctx context.Context) {
	ctx, iw.cancel = context.WithCancel(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-iw.watcher.Events:
				if !ok {
					return
				}
				iw.handleEvent(event)
			case err, ok := <-iw.watcher.Errors:
				if !ok {
					return
				}
				iw.log.Warn("intake watcher error", zap.Error(err))
			}
		}
	}()
}

// Stop stops watching and releases the underlying watcher.
func (iw *IntakeWatcher) Stop() {
	if iw.cancel != nil {
		iw.cancel()
	}
	iw.watcher.Close()
}

// SetDebounce sets the settle time before a dropped file is registered.
func (iw *IntakeWatcher) SetDebounce(d time.Duration) {
	iw.mu.Lock()
	defer iw.mu.Unlock()
	iw.debounce = d
}

func (iw *IntakeWatcher) handleEvent(event fsnotify.Event) {
	if _, ok := assemblyExts[strings.ToLower(filepath.Ext(event.Name))]; !ok {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	iw.mu.Lock()
	defer iw.mu.Unlock()

	iw.pending[event.Name] = struct{}{}

	if iw.timer != nil {
		iw.timer.Stop()
	}
	iw.timer = time.AfterFunc(iw.debounce, iw.flush)
}

func (iw *IntakeWatcher) flush() {
	iw.mu.Lock()
	pending := iw.pending
	iw.pending = make(map[string]struct{})
	iw.mu.Unlock()

	var added []domain.GenomeRecord
	for path := range pending {
		rec, ok := iw.register(path)
		if ok {
			added = append(added, rec)
		}
	}

	if len(added) > 0 && iw.callback != nil {
		iw.callback(added)
	}
}

// register appends one assembly to the manifest. The genome ID is the file
// basename without extension.
func (iw *IntakeWatcher) register(path string) (domain.GenomeRecord, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return domain.GenomeRecord{}, false
	}

	base := filepath.Base(path)
	id := strings.TrimSuffix(base, filepath.Ext(base))

	iw.mu.Lock()
	_, seen := iw.known[id]
	if !seen {
		iw.known[id] = struct{}{}
	}
	iw.mu.Unlock()
	if seen {
		return domain.GenomeRecord{}, false
	}

	rec := domain.GenomeRecord{ID: id, GenomePath: path, OutputPrefix: id}
	if err := manifest.Append(iw.manifestPath, rec); err != nil {
		iw.log.Error("failed to register assembly",
			zap.String("genome", id),
			zap.Error(err))
		return domain.GenomeRecord{}, false
	}

	iw.log.Info("registered new assembly",
		zap.String("genome", id),
		zap.String("path", path))
	return rec, true
}
