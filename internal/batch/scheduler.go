package batch

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// cronParser accepts standard five-field expressions
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseCron parses a five-field cron expression
func ParseCron(expr string) (cron.Schedule, error) {
	return cronParser.Parse(expr)
}

// entry is one scheduled batch with its parsed cron schedule
type entry struct {
	config   BatchConfig
	schedule cron.Schedule
	lastRun  time.Time
	running  bool
}

// Scheduler runs configured QC batches on their cron schedules. Due
// batches execute one at a time: the external tools already saturate
// their configured thread counts, so overlapping two pipeline runs
// would only fight for cores.
type Scheduler struct {
	entries  map[string]*entry
	log      *zap.Logger
	mu       sync.Mutex
	stopChan chan struct{}
}

// NewScheduler validates every batch config, parses its cron
// expression, and returns a scheduler ready to Start.
func NewScheduler(configs []BatchConfig, log *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		entries:  make(map[string]*entry, len(configs)),
		log:      log,
		stopChan: make(chan struct{}),
	}

	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		sched, err := cronParser.Parse(cfg.Cron)
		if err != nil {
			return nil, fmt.Errorf("batch %s: bad cron %q: %w", cfg.Name, cfg.Cron, err)
		}
		if _, dup := s.entries[cfg.Name]; dup {
			return nil, fmt.Errorf("duplicate batch name %q", cfg.Name)
		}
		s.entries[cfg.Name] = &entry{config: cfg, schedule: sched}
	}

	return s, nil
}

// NextRun returns when the named batch is next due, or the zero time
// for an unknown batch
func (s *Scheduler) NextRun(name string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return time.Time{}
	}
	return e.schedule.Next(time.Now())
}

// ShouldRun reports whether the named batch is due and not already
// running. A batch that has never run is due as soon as its schedule
// fired within the last day.
func (s *Scheduler) ShouldRun(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok || e.running {
		return false
	}

	since := e.lastRun
	if since.IsZero() {
		since = time.Now().Add(-24 * time.Hour)
	}
	return time.Now().After(e.schedule.Next(since))
}

// MarkRunning flags a batch as in progress so it is not dispatched twice
func (s *Scheduler) MarkRunning(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[name]; ok {
		e.running = true
	}
}

// MarkComplete records a finished run and re-arms the schedule
func (s *Scheduler) MarkComplete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[name]; ok {
		e.running = false
		e.lastRun = time.Now()
	}
}

// ListBatches returns all configured batch names, sorted
func (s *Scheduler) ListBatches() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start polls once a minute and runs every due batch via runFunc,
// blocking until Stop is called
func (s *Scheduler) Start(runFunc func(BatchConfig) error) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			for _, name := range s.ListBatches() {
				if !s.ShouldRun(name) {
					continue
				}

				s.mu.Lock()
				cfg := s.entries[name].config
				s.mu.Unlock()

				s.MarkRunning(name)
				s.log.Info("running scheduled batch",
					zap.String("batch", cfg.Name),
					zap.String("pipeline", string(cfg.Pipeline)))
				if err := runFunc(cfg); err != nil {
					s.log.Error("scheduled batch failed",
						zap.String("batch", cfg.Name),
						zap.Error(err))
				}
				s.MarkComplete(name)
			}
		}
	}
}

// Stop ends the Start loop
func (s *Scheduler) Stop() {
	close(s.stopChan)
}
