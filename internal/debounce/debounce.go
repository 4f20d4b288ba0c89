// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package debounce coalesces bursts of raw filesystem events per path into a
// single settled event.
//
// Each path moves Idle -> Pending -> Idle. A raw event starts or resets the
// path's timer (sliding window); when the timer fires with no intervening
// event the path settles. Deletions cancel any pending timer and settle at
// once. Paths are spread over independently locked shards, and Push never
// blocks: settled events are queued and forwarded to the output channel by a
// single goroutine.
package debounce

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/pdiddy/paperwatch/pkg/types"
)

const shardCount = 32

type pending struct {
	timer *time.Timer
	gen   uint64
	last  types.RawEvent
}

type shard struct {
	mu      sync.Mutex
	closed  bool
	gen     uint64
	pending map[string]*pending
}

// Debouncer turns raw events into settled events.
type Debouncer struct {
	shards [shardCount]shard

	out  chan types.SettledEvent
	done chan struct{}
	wake chan struct{}

	qmu     sync.Mutex
	queue   []types.SettledEvent
	qclosed bool

	now      func() time.Time
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Debouncer whose output channel has the given buffer size.
func New(buffer int) *Debouncer {
	if buffer < 0 {
		buffer = 0
	}
	d := &Debouncer{
		out:  make(chan types.SettledEvent, buffer),
		done: make(chan struct{}),
		wake: make(chan struct{}, 1),
		now:  time.Now,
	}
	for i := range d.shards {
		d.shards[i].pending = make(map[string]*pending)
	}
	d.wg.Add(1)
	go d.forward()
	return d
}

// Events returns the settled event stream. It is closed by Stop.
func (d *Debouncer) Events() <-chan types.SettledEvent {
	return d.out
}

// Push records a raw event. window is the debounce window of the event's
// watch target; a non-positive window settles immediately, as do deletions.
func (d *Debouncer) Push(ev types.RawEvent, window time.Duration) {
	s := d.shardFor(ev.Path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	p, ok := s.pending[ev.Path]
	if ev.Kind == types.EventDeleted || window <= 0 {
		if ok {
			p.timer.Stop()
			delete(s.pending, ev.Path)
		}
		d.enqueue(d.settle(ev))
		return
	}

	s.gen++
	gen := s.gen
	path := ev.Path
	if ok {
		p.timer.Stop()
		p.last = ev
		p.gen = gen
		p.timer = time.AfterFunc(window, func() { d.fire(path, gen) })
		return
	}
	s.pending[path] = &pending{
		last:  ev,
		gen:   gen,
		timer: time.AfterFunc(window, func() { d.fire(path, gen) }),
	}
}

// Pending returns the number of paths waiting to settle.
func (d *Debouncer) Pending() int {
	n := 0
	for i := range d.shards {
		s := &d.shards[i]
		s.mu.Lock()
		n += len(s.pending)
		s.mu.Unlock()
	}
	return n
}

// Stop cancels every pending timer, discards queued events and closes the
// output channel. No settled event is delivered after Stop returns.
func (d *Debouncer) Stop() {
	d.stopOnce.Do(func() {
		for i := range d.shards {
			s := &d.shards[i]
			s.mu.Lock()
			s.closed = true
			for path, p := range s.pending {
				p.timer.Stop()
				delete(s.pending, path)
			}
			s.mu.Unlock()
		}

		d.qmu.Lock()
		d.qclosed = true
		d.queue = nil
		d.qmu.Unlock()

		close(d.done)
		d.wg.Wait()
	})
}

func (d *Debouncer) fire(path string, gen uint64) {
	s := d.shardFor(path)
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[path]
	if s.closed || !ok || p.gen != gen {
		// Reset or cancelled after this timer was already running.
		return
	}
	delete(s.pending, path)
	d.enqueue(d.settle(p.last))
}

func (d *Debouncer) settle(last types.RawEvent) types.SettledEvent {
	return types.SettledEvent{
		Path:      last.Path,
		Kind:      last.Kind,
		LastSeen:  last.Time,
		SettledAt: d.now(),
		Target:    last.Target,
	}
}

// enqueue is called with the path's shard lock held so per-path order is kept.
func (d *Debouncer) enqueue(ev types.SettledEvent) {
	d.qmu.Lock()
	if d.qclosed {
		d.qmu.Unlock()
		return
	}
	d.queue = append(d.queue, ev)
	d.qmu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Debouncer) forward() {
	defer d.wg.Done()
	defer close(d.out)

	for {
		d.qmu.Lock()
		batch := d.queue
		d.queue = nil
		d.qmu.Unlock()

		if len(batch) == 0 {
			select {
			case <-d.wake:
				continue
			case <-d.done:
				return
			}
		}

		for _, ev := range batch {
			select {
			case d.out <- ev:
			case <-d.done:
				return
			}
		}
	}
}

func (d *Debouncer) shardFor(path string) *shard {
	h := fnv.New32a()
	h.Write([]byte(path))
	return &d.shards[h.Sum32()%shardCount]
}
