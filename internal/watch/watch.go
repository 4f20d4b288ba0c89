// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package watch turns fsnotify notifications into raw path events, one
// subscription per watch target.
//
// Directory targets that do not exist yet are waited for with exponential
// backoff. File targets subscribe to their parent directory and filter on the
// base name, so editors and downloaders that write a temporary file and
// rename it over the target are still seen.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/pdiddy/paperwatch/internal/logging"
	"github.com/pdiddy/paperwatch/pkg/types"
)

// ErrWatchUnavailable is returned by Watch when the OS subscription for a
// target cannot be established. It is fatal to that target only.
var ErrWatchUnavailable = errors.New("watch unavailable")

var errNotYet = errors.New("watched directory does not exist yet")

// Options tunes a Source. Zero values select the defaults.
type Options struct {
	// Buffer is the capacity of each target's event channel (default 256).
	Buffer int

	// RetryInitial and RetryMax bound the backoff used while waiting for a
	// missing directory (defaults 100ms and 5s).
	RetryInitial time.Duration
	RetryMax     time.Duration
}

// Source owns the fsnotify subscriptions of all watch targets.
type Source struct {
	log  *zap.Logger
	opts Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

type subscription struct {
	target  types.WatchTarget
	dir     string
	base    string
	watcher *fsnotify.Watcher
	out     chan types.RawEvent
}

// NewSource creates a Source. Call Stop to release every subscription.
func NewSource(log *zap.Logger, opts Options) *Source {
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	if opts.RetryInitial <= 0 {
		opts.RetryInitial = 100 * time.Millisecond
	}
	if opts.RetryMax <= 0 {
		opts.RetryMax = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Source{
		log:    logging.Component(log, "watch"),
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Watch subscribes to target and returns its raw event stream. The stream is
// closed when the Source is stopped. Failures to establish the subscription
// are reported synchronously as ErrWatchUnavailable.
func (s *Source) Watch(target types.WatchTarget) (<-chan types.RawEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, errors.Wrapf(ErrWatchUnavailable, "source stopped, cannot watch %s", target.Path)
	}

	path, err := filepath.Abs(target.Path)
	if err != nil {
		return nil, errors.Wrapf(ErrWatchUnavailable, "resolving %s: %v", target.Path, err)
	}
	target.Path = path

	sub := &subscription{target: target, dir: path}
	if target.Kind == types.TargetFile {
		sub.dir = filepath.Dir(path)
		sub.base = filepath.Base(path)
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return nil, errors.WithHint(
				errors.Wrapf(ErrWatchUnavailable, "%s is a directory", path),
				"watch it as a directory target instead")
		}
	}

	present, err := checkDir(sub.dir)
	if err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrapf(ErrWatchUnavailable, "creating watcher for %s: %v", path, err)
	}
	sub.watcher = w
	sub.out = make(chan types.RawEvent, s.opts.Buffer)

	if present {
		if err := s.subscribe(sub); err != nil {
			w.Close()
			return nil, err
		}
	} else {
		s.log.Info("watched directory missing, waiting for it",
			zap.String(logging.FieldTarget, target.Name),
			zap.String(logging.FieldPath, sub.dir))
	}

	s.wg.Add(1)
	go s.run(sub, !present)
	return sub.out, nil
}

// Stop releases every subscription and waits for the event loops to exit.
// All event channels are closed when Stop returns.
func (s *Source) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// checkDir reports whether dir exists. Anything other than "does not exist"
// that prevents watching is ErrWatchUnavailable.
func checkDir(dir string) (bool, error) {
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, errors.WithHint(
			errors.Wrapf(ErrWatchUnavailable, "inspecting %s: %v", dir, err),
			"check the directory permissions")
	case !info.IsDir():
		return false, errors.Wrapf(ErrWatchUnavailable, "%s is not a directory", dir)
	}
	return true, nil
}

func (s *Source) subscribe(sub *subscription) error {
	if err := sub.watcher.Add(sub.dir); err != nil {
		return errors.WithHint(
			errors.Wrapf(ErrWatchUnavailable, "subscribing to %s: %v", sub.dir, err),
			"check the directory permissions and the inotify watch limit")
	}
	if sub.target.Kind == types.TargetDir && sub.target.Recursive {
		s.addTree(sub, sub.dir)
	}
	return nil
}

// addTree subscribes to every directory below root. Subdirectories that
// cannot be watched are logged and skipped.
func (s *Source) addTree(sub *subscription, root string) {
	filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() || p == sub.dir {
			return nil
		}
		if err := sub.watcher.Add(p); err != nil {
			s.log.Warn("cannot watch subdirectory", zap.String(logging.FieldPath, p), zap.Error(err))
		}
		return nil
	})
}

func (s *Source) run(sub *subscription, await bool) {
	defer s.wg.Done()
	defer close(sub.out)
	defer sub.watcher.Close()

	if await {
		if !s.awaitDir(sub) {
			return
		}
		s.emitExisting(sub)
	}

	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-sub.watcher.Events:
			if !ok {
				return
			}
			s.handle(sub, ev)
		case err, ok := <-sub.watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("watcher error",
				zap.String(logging.FieldTarget, sub.target.Name),
				zap.Error(err))
		}
	}
}

// awaitDir blocks until the target directory exists and is subscribed, or
// the source is stopped. It reports whether watching can proceed.
func (s *Source) awaitDir(sub *subscription) bool {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.RetryInitial
	b.MaxInterval = s.opts.RetryMax
	b.MaxElapsedTime = 0

	op := func() error {
		present, err := checkDir(sub.dir)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !present {
			return errNotYet
		}
		if err := s.subscribe(sub); err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(b, s.ctx)); err != nil {
		if s.ctx.Err() == nil {
			s.log.Error("giving up on watch target",
				zap.String(logging.FieldTarget, sub.target.Name),
				zap.String(logging.FieldPath, sub.dir),
				zap.Error(err))
		}
		return false
	}
	s.log.Info("watched directory appeared",
		zap.String(logging.FieldTarget, sub.target.Name),
		zap.String(logging.FieldPath, sub.dir))
	return true
}

// emitExisting reports files that were created before a late subscription
// was in place.
func (s *Source) emitExisting(sub *subscription) {
	now := time.Now()
	if sub.target.Kind == types.TargetFile {
		if info, err := os.Stat(sub.target.Path); err == nil && !info.IsDir() {
			s.emit(sub, types.RawEvent{Path: sub.target.Path, Kind: types.EventCreated, Time: now, Target: sub.target.Name})
		}
		return
	}
	filepath.WalkDir(sub.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != sub.dir && !sub.target.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		s.emit(sub, types.RawEvent{Path: p, Kind: types.EventCreated, Time: now, Target: sub.target.Name})
		return nil
	})
}

func (s *Source) handle(sub *subscription, ev fsnotify.Event) {
	kind, ok := kindOf(ev.Op)
	if !ok {
		return
	}

	if sub.target.Kind == types.TargetFile {
		if filepath.Base(ev.Name) != sub.base {
			return
		}
	} else if kind == types.EventCreated && sub.target.Recursive {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := sub.watcher.Add(ev.Name); err != nil {
				s.log.Warn("cannot watch new subdirectory", zap.String(logging.FieldPath, ev.Name), zap.Error(err))
			}
			s.addTree(sub, ev.Name)
			return
		}
	}

	if !sub.target.Subscribes(kind) {
		return
	}
	s.emit(sub, types.RawEvent{
		Path:   ev.Name,
		Kind:   kind,
		Time:   time.Now(),
		Target: sub.target.Name,
	})
}

func (s *Source) emit(sub *subscription, ev types.RawEvent) {
	select {
	case sub.out <- ev:
	case <-s.ctx.Done():
	}
}

func kindOf(op fsnotify.Op) (types.EventKind, bool) {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return types.EventDeleted, true
	case op.Has(fsnotify.Create):
		return types.EventCreated, true
	case op.Has(fsnotify.Write):
		return types.EventModified, true
	default:
		return "", false
	}
}
