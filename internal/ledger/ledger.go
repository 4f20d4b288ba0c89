// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger remembers paths the organizer produced or consumed so the
// events those file operations cause are not processed again. Entries
// expire after a TTL, the ledger holds at most MaxEntries paths, and Sweep
// drops entries whose files no longer exist.
package ledger

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/pdiddy/paperwatch/pkg/types"
)

// Ledger is safe for concurrent use.
type Ledger struct {
	entries *expirable.LRU[string, time.Time]
}

// New creates a Ledger. Zero fields in cfg fall back to the defaults.
func New(cfg types.LedgerConfig) *Ledger {
	def := types.DefaultLedgerConfig()
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = def.MaxEntries
	}
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	return &Ledger{entries: expirable.NewLRU[string, time.Time](cfg.MaxEntries, nil, cfg.TTL)}
}

func key(path string) string { return filepath.Clean(path) }

// Register records path as produced or consumed by the organizer.
func (l *Ledger) Register(paths ...string) {
	now := time.Now()
	for _, p := range paths {
		if p != "" {
			l.entries.Add(key(p), now)
		}
	}
}

// Seen reports whether path is registered and not yet expired.
func (l *Ledger) Seen(path string) bool {
	_, ok := l.entries.Peek(key(path))
	return ok
}

// Forget removes path.
func (l *Ledger) Forget(path string) {
	l.entries.Remove(key(path))
}

// Len returns the number of live entries.
func (l *Ledger) Len() int {
	return len(l.entries.Keys())
}

// Sweep removes entries whose files are gone and returns how many it removed.
func (l *Ledger) Sweep() int {
	removed := 0
	for _, p := range l.entries.Keys() {
		if _, err := os.Lstat(p); errors.Is(err, fs.ErrNotExist) {
			if l.entries.Remove(p) {
				removed++
			}
		}
	}
	return removed
}
