// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline wires the watch sources, the debouncer and the document
// stages into a running monitor.
//
// Raw events from every target are pushed into one debouncer. A single
// dispatcher reads settled events: project file changes reload the
// references, deletions in the storage directory clear ledger entries, and
// settled documents in the downloads directories go to a bounded worker
// pool that extracts, matches, organizes and journals them. Each processed
// document produces one Report.
package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/paperwatch/internal/debounce"
	"github.com/pdiddy/paperwatch/internal/ledger"
	"github.com/pdiddy/paperwatch/internal/logging"
	"github.com/pdiddy/paperwatch/internal/match"
	"github.com/pdiddy/paperwatch/internal/metrics"
	"github.com/pdiddy/paperwatch/internal/organize"
	"github.com/pdiddy/paperwatch/internal/refs"
	"github.com/pdiddy/paperwatch/internal/watch"
	"github.com/pdiddy/paperwatch/pkg/types"
)

// Target names used in events.
const (
	TargetDownloads = "downloads"
	TargetStorage   = "storage"
	TargetProject   = "project"
)

const reportBuffer = 64

// Extractor produces a candidate document for a path.
type Extractor interface {
	Extract(ctx context.Context, path string) types.CandidateDocument
}

// Organizer places a matched document.
type Organizer interface {
	Organize(ctx context.Context, res types.MatchResult, mode types.OrganizeMode) types.OrganizationOutcome
}

// Journal records outcomes.
type Journal interface {
	Record(ctx context.Context, o types.OrganizationOutcome) error
}

// Deps are the stages the monitor drives. Journal and Metrics are optional.
type Deps struct {
	Extractor Extractor
	Matcher   *match.Matcher
	Library   *match.Library
	Organizer Organizer
	Ledger    *ledger.Ledger
	Loader    refs.Loader
	Journal   Journal
	Metrics   *metrics.Collector
	Log       *zap.Logger
}

// Report is the result of processing one settled document.
type Report struct {
	Event types.SettledEvent
	Match types.MatchResult

	// Outcome is nil when the document was only matched.
	Outcome *types.OrganizationOutcome

	// Err carries ambiguous matches, conflicts and failures.
	Err error
}

// Monitor runs the pipeline. Reports must be drained while it runs.
type Monitor struct {
	cfg  types.PipelineConfig
	deps Deps
	log  *zap.Logger
	exts map[string]bool

	ctx    context.Context
	cancel context.CancelFunc

	source    *watch.Source
	debouncer *debounce.Debouncer
	reports   chan Report
	group     errgroup.Group

	forwarders sync.WaitGroup
	background sync.WaitGroup

	mu          sync.Mutex
	started     bool
	inflight    map[string]*types.SettledEvent
	unavailable []error
	stopOnce    sync.Once
}

// New validates cfg and creates a Monitor. Missing Library, Ledger and
// Loader are created from cfg.
func New(cfg types.PipelineConfig, deps Deps) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	if deps.Extractor == nil || deps.Matcher == nil || deps.Organizer == nil {
		return nil, errors.New("extractor, matcher and organizer are required")
	}
	if deps.Library == nil {
		deps.Library = match.NewLibrary()
	}
	if deps.Ledger == nil {
		deps.Ledger = ledger.New(cfg.Ledger)
	}
	if deps.Loader == nil {
		path := cfg.ReferencesFile
		if path == "" {
			path = cfg.ProjectFile
		}
		if path != "" {
			deps.Loader = refs.FileLoader{Path: path}
		}
	}

	exts := make(map[string]bool, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" && !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if e != "" {
			exts[e] = true
		}
	}

	return &Monitor{
		cfg:      cfg,
		deps:     deps,
		log:      logging.Component(deps.Log, "pipeline"),
		exts:     exts,
		reports:  make(chan Report, reportBuffer),
		inflight: make(map[string]*types.SettledEvent),
	}, nil
}

// Targets returns the watch targets built from the configuration.
func (m *Monitor) Targets() []types.WatchTarget {
	var targets []types.WatchTarget
	for _, dir := range m.cfg.DownloadsDirs {
		targets = append(targets, types.WatchTarget{
			Name:      TargetDownloads,
			Path:      dir,
			Kind:      types.TargetDir,
			Recursive: m.cfg.Recursive,
			Debounce:  m.cfg.DownloadDebounce,
		})
	}
	targets = append(targets, types.WatchTarget{
		Name:     TargetStorage,
		Path:     m.cfg.Organize.StorageDir,
		Kind:     types.TargetDir,
		Events:   []types.EventKind{types.EventDeleted},
		Debounce: 0,
	})
	if m.cfg.ProjectFile != "" {
		targets = append(targets, types.WatchTarget{
			Name:     TargetProject,
			Path:     m.cfg.ProjectFile,
			Kind:     types.TargetFile,
			Events:   []types.EventKind{types.EventCreated, types.EventModified},
			Debounce: m.cfg.ProjectDebounce,
		})
	}
	return targets
}

// Reports returns the report stream. It is closed by Stop.
func (m *Monitor) Reports() <-chan Report { return m.reports }

// Unavailable returns the targets that could not be watched.
func (m *Monitor) Unavailable() []error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]error(nil), m.unavailable...)
}

// Start loads the references, subscribes to every target and starts the
// dispatcher. A target that cannot be watched is logged and skipped; Start
// fails only when no downloads directory can be watched.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return errors.New("monitor already started")
	}
	m.started = true
	m.mu.Unlock()

	m.ctx, m.cancel = context.WithCancel(ctx)
	m.source = watch.NewSource(m.deps.Log, watch.Options{})
	m.debouncer = debounce.New(reportBuffer)

	if err := m.Reload(m.ctx); err != nil {
		m.log.Warn("initial reference load failed, starting with an empty library", zap.Error(err))
	}

	watching := 0
	for _, t := range m.Targets() {
		ch, err := m.source.Watch(t)
		if err != nil {
			m.log.Error("target unavailable",
				zap.String(logging.FieldTarget, t.Name),
				zap.String(logging.FieldPath, t.Path),
				zap.Error(err))
			m.mu.Lock()
			m.unavailable = append(m.unavailable, err)
			m.mu.Unlock()
			continue
		}
		if t.Name == TargetDownloads {
			watching++
		}
		m.forwarders.Add(1)
		go m.forward(ch, t.Debounce)
	}
	if watching == 0 {
		m.Stop()
		var err error
		for _, e := range m.Unavailable() {
			err = errors.CombineErrors(err, e)
		}
		return errors.Wrap(err, "no downloads directory can be watched")
	}

	m.group.SetLimit(m.cfg.Workers)
	m.background.Add(2)
	go m.dispatch()
	go m.sweep()

	m.log.Info("monitor started",
		zap.Strings("downloads", m.cfg.DownloadsDirs),
		zap.String("storage", m.cfg.Organize.StorageDir),
		zap.Int("references", m.deps.Library.Load().Len()))
	return nil
}

// Stop stops the sources, cancels pending debounce timers and in-flight
// work, waits for the workers and closes the report stream. Results of
// cancelled work are discarded.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}
		if m.source != nil {
			m.source.Stop()
		}
		m.forwarders.Wait()
		if m.debouncer != nil {
			m.debouncer.Stop()
		}
		m.background.Wait()
		m.group.Wait()
		close(m.reports)
		m.log.Info("monitor stopped")
	})
}

// Reload reads the references and swaps the library snapshot. On failure
// the previous snapshot stays in place.
func (m *Monitor) Reload(ctx context.Context) error {
	if m.deps.Loader == nil {
		return nil
	}
	list, err := m.deps.Loader.Load(ctx)
	m.deps.Metrics.Reload(err, len(list))
	if err != nil {
		return errors.Wrap(err, "loading references")
	}
	m.deps.Library.Replace(match.NewSnapshot(list))
	m.log.Info("references loaded", zap.Int(logging.FieldCount, len(list)))
	return nil
}

func (m *Monitor) forward(ch <-chan types.RawEvent, window time.Duration) {
	defer m.forwarders.Done()
	for ev := range ch {
		m.deps.Metrics.RawEvent(ev)
		m.debouncer.Push(ev, window)
	}
}

func (m *Monitor) dispatch() {
	defer m.background.Done()
	for ev := range m.debouncer.Events() {
		m.deps.Metrics.SettledEvent(ev)
		switch ev.Target {
		case TargetProject:
			if err := m.Reload(m.ctx); err != nil {
				m.log.Warn("reference reload failed, keeping previous snapshot", zap.Error(err))
			}
		case TargetStorage:
			m.deps.Ledger.Forget(ev.Path)
		default:
			if m.wanted(ev) {
				m.submit(ev)
			}
		}
	}
}

// wanted filters settled download events before any work is scheduled.
func (m *Monitor) wanted(ev types.SettledEvent) bool {
	if ev.Kind == types.EventDeleted {
		return false
	}
	if len(m.exts) > 0 && !m.exts[strings.ToLower(filepath.Ext(ev.Path))] {
		return false
	}
	if strings.HasPrefix(filepath.Base(ev.Path), ".") {
		return false
	}
	if within(ev.Path, m.cfg.Organize.StorageDir) {
		return false
	}
	if m.deps.Ledger.Seen(ev.Path) {
		m.log.Debug("ignoring event caused by organizer", zap.String(logging.FieldPath, ev.Path))
		return false
	}
	return true
}

// submit schedules ev on the worker pool. A path already being processed is
// processed once more afterwards with the latest event.
func (m *Monitor) submit(ev types.SettledEvent) {
	m.mu.Lock()
	if _, busy := m.inflight[ev.Path]; busy {
		next := ev
		m.inflight[ev.Path] = &next
		m.mu.Unlock()
		return
	}
	m.inflight[ev.Path] = nil
	m.mu.Unlock()

	m.group.Go(func() error {
		for {
			if r, ok := m.process(m.ctx, ev, true); ok {
				select {
				case m.reports <- r:
				case <-m.ctx.Done():
				}
			}

			m.mu.Lock()
			next := m.inflight[ev.Path]
			if next == nil || m.ctx.Err() != nil {
				delete(m.inflight, ev.Path)
				m.mu.Unlock()
				return nil
			}
			m.inflight[ev.Path] = nil
			m.mu.Unlock()
			ev = *next
		}
	})
}

// ProcessFile runs one document through extraction and matching, and
// through organization when doOrganize is set. It does not require Start.
func (m *Monitor) ProcessFile(ctx context.Context, path string, doOrganize bool) Report {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	now := time.Now()
	ev := types.SettledEvent{Path: abs, Kind: types.EventCreated, LastSeen: now, SettledAt: now, Target: TargetDownloads}
	r, ok := m.process(ctx, ev, doOrganize)
	if !ok {
		r = Report{Event: ev, Err: errors.Wrap(ctx.Err(), "processing cancelled")}
	}
	return r
}

// process returns false when the result must be discarded.
func (m *Monitor) process(ctx context.Context, ev types.SettledEvent, doOrganize bool) (Report, bool) {
	if ctx.Err() != nil {
		return Report{}, false
	}
	start := time.Now()
	log := m.log.With(zap.String(logging.FieldPath, ev.Path))

	cand := m.deps.Extractor.Extract(ctx, ev.Path)
	res := m.deps.Matcher.Match(cand, m.deps.Library.Load())
	r := Report{Event: ev, Match: res, Err: match.ResultError(res)}
	log.Info("document matched",
		zap.String(logging.FieldTier, string(res.Tier)),
		zap.String("title", cand.Title),
		zap.String("extraction_tier", string(cand.Tier)),
		zap.Float64(logging.FieldScore, res.Score))

	if !doOrganize {
		if ctx.Err() != nil {
			return Report{}, false
		}
		m.deps.Metrics.Document(cand, res, nil, time.Since(start))
		return r, true
	}

	out := m.deps.Organizer.Organize(ctx, res, m.cfg.Organize.Mode)
	if ctx.Err() != nil {
		return Report{}, false
	}
	r.Outcome = &out
	switch out.Status {
	case types.StatusConflict, types.StatusFailed:
		r.Err = errors.CombineErrors(r.Err, organize.Err(out))
	}

	if m.deps.Journal != nil {
		if err := m.deps.Journal.Record(ctx, out); err != nil {
			log.Warn("cannot journal outcome", zap.Error(err))
		}
	}
	m.deps.Metrics.Document(cand, res, &out, time.Since(start))
	return r, true
}

func (m *Monitor) sweep() {
	defer m.background.Done()
	interval := m.cfg.Ledger.SweepInterval
	if interval <= 0 {
		interval = types.DefaultLedgerConfig().SweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if n := m.deps.Ledger.Sweep(); n > 0 {
				m.log.Debug("ledger swept", zap.Int(logging.FieldCount, n))
			}
			m.deps.Metrics.LedgerSize(m.deps.Ledger.Len())
		}
	}
}

// within reports whether path is dir or below it.
func within(path, dir string) bool {
	if dir == "" {
		return false
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
