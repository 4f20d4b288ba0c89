// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package debounce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperwatch/pkg/types"
)

func raw(path string, kind types.EventKind, at time.Time) types.RawEvent {
	return types.RawEvent{Path: path, Kind: kind, Time: at, Target: "downloads"}
}

// collect reads settled events until quiet elapses with nothing new.
func collect(t *testing.T, d *Debouncer, quiet time.Duration) []types.SettledEvent {
	t.Helper()
	var got []types.SettledEvent
	for {
		select {
		case ev, ok := <-d.Events():
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-time.After(quiet):
			return got
		}
	}
}

func TestBurstSettlesOnce(t *testing.T) {
	d := New(16)
	defer d.Stop()

	window := 80 * time.Millisecond
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var last time.Time
	for i := 0; i < 10; i++ {
		last = base.Add(time.Duration(i) * time.Millisecond)
		kind := types.EventModified
		if i == 0 {
			kind = types.EventCreated
		}
		d.Push(raw("/dl/paper.pdf", kind, last), window)
		time.Sleep(window / 4)
	}

	got := collect(t, d, 4*window)
	require.Len(t, got, 1)
	assert.Equal(t, "/dl/paper.pdf", got[0].Path)
	assert.Equal(t, types.EventModified, got[0].Kind)
	assert.Equal(t, last, got[0].LastSeen)
	assert.Equal(t, "downloads", got[0].Target)
	assert.False(t, got[0].SettledAt.IsZero())
	assert.Zero(t, d.Pending())
}

func TestSlidingWindowDelaysSettle(t *testing.T) {
	d := New(4)
	defer d.Stop()

	window := 60 * time.Millisecond
	start := time.Now()
	for i := 0; i < 5; i++ {
		d.Push(raw("/dl/big.pdf", types.EventModified, time.Now()), window)
		time.Sleep(window / 2)
	}

	select {
	case ev := <-d.Events():
		// Five pushes half a window apart keep the path pending for at
		// least two full windows.
		assert.GreaterOrEqual(t, ev.SettledAt.Sub(start), 2*window)
	case <-time.After(2 * time.Second):
		t.Fatal("no settled event")
	}
}

func TestDeletionSettlesImmediately(t *testing.T) {
	d := New(4)
	defer d.Stop()

	d.Push(raw("/dl/gone.pdf", types.EventModified, time.Now()), time.Hour)
	require.Equal(t, 1, d.Pending())

	d.Push(raw("/dl/gone.pdf", types.EventDeleted, time.Now()), time.Hour)

	select {
	case ev := <-d.Events():
		assert.Equal(t, types.EventDeleted, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("deletion did not settle immediately")
	}
	assert.Zero(t, d.Pending(), "pending modify timer must be cancelled")

	assert.Empty(t, collect(t, d, 100*time.Millisecond))
}

func TestPathsSettleIndependently(t *testing.T) {
	d := New(4)
	defer d.Stop()

	d.Push(raw("/dl/slow.pdf", types.EventCreated, time.Now()), 300*time.Millisecond)
	d.Push(raw("/dl/fast.pdf", types.EventCreated, time.Now()), 20*time.Millisecond)

	select {
	case ev := <-d.Events():
		assert.Equal(t, "/dl/fast.pdf", ev.Path)
	case <-time.After(time.Second):
		t.Fatal("fast path did not settle")
	}

	select {
	case ev := <-d.Events():
		assert.Equal(t, "/dl/slow.pdf", ev.Path)
	case <-time.After(time.Second):
		t.Fatal("slow path did not settle")
	}
}

func TestZeroWindowSettlesImmediately(t *testing.T) {
	d := New(1)
	defer d.Stop()

	d.Push(raw("/proj/refs.yaml", types.EventModified, time.Now()), 0)
	select {
	case ev := <-d.Events():
		assert.Equal(t, types.EventModified, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("zero window did not settle")
	}
}

func TestStopCancelsPendingTimers(t *testing.T) {
	d := New(4)

	window := 50 * time.Millisecond
	for _, p := range []string{"/dl/a.pdf", "/dl/b.pdf", "/dl/c.pdf"} {
		d.Push(raw(p, types.EventCreated, time.Now()), window)
	}
	require.Equal(t, 3, d.Pending())

	d.Stop()
	assert.Zero(t, d.Pending())

	time.Sleep(3 * window)
	for ev := range d.Events() {
		t.Fatalf("event emitted after Stop: %+v", ev)
	}

	// Pushes after Stop are ignored and Stop is idempotent.
	d.Push(raw("/dl/d.pdf", types.EventDeleted, time.Now()), window)
	d.Stop()
}

func TestManyPathsEachSettleOnce(t *testing.T) {
	d := New(0)
	defer d.Stop()

	paths := make(map[string]bool)
	for i := 0; i < 50; i++ {
		p := "/dl/" + string(rune('a'+i%26)) + string(rune('A'+i/26)) + ".pdf"
		paths[p] = true
		for j := 0; j < 3; j++ {
			d.Push(raw(p, types.EventModified, time.Now()), 30*time.Millisecond)
		}
	}

	got := collect(t, d, 300*time.Millisecond)
	require.Len(t, got, len(paths))
	seen := make(map[string]int)
	for _, ev := range got {
		seen[ev.Path]++
	}
	for p := range paths {
		assert.Equal(t, 1, seen[p], p)
	}
}
