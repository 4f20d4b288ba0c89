// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package match

import (
	"sync/atomic"
	"time"

	"github.com/pdiddy/paperwatch/pkg/types"
)

// Snapshot is an immutable view of the project's references with their
// titles normalized once at construction.
type Snapshot struct {
	refs     []types.LiteratureReference
	titles   [][]string
	loadedAt time.Time
}

// NewSnapshot copies refs into a new Snapshot. Order is preserved; a later
// position wins ties during matching.
func NewSnapshot(refs []types.LiteratureReference) *Snapshot {
	s := &Snapshot{
		refs:     make([]types.LiteratureReference, len(refs)),
		titles:   make([][]string, len(refs)),
		loadedAt: time.Now(),
	}
	for i, r := range refs {
		r.AltTitles = append([]string(nil), r.AltTitles...)
		r.Authors = append([]string(nil), r.Authors...)
		s.refs[i] = r
		for _, t := range r.Titles() {
			if n := Normalize(t); n != "" {
				s.titles[i] = append(s.titles[i], n)
			}
		}
	}
	return s
}

// Len returns the number of references.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.refs)
}

// LoadedAt returns when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Lookup returns the reference with the given identifier.
func (s *Snapshot) Lookup(id string) (types.LiteratureReference, bool) {
	if s == nil {
		return types.LiteratureReference{}, false
	}
	for _, r := range s.refs {
		if r.ID == id {
			return r, true
		}
	}
	return types.LiteratureReference{}, false
}

// Library holds the current Snapshot. Readers always see either the old or
// the new snapshot in full.
type Library struct {
	cur atomic.Pointer[Snapshot]
}

// NewLibrary returns a Library holding an empty snapshot.
func NewLibrary() *Library {
	l := &Library{}
	l.cur.Store(NewSnapshot(nil))
	return l
}

// Load returns the current snapshot.
func (l *Library) Load() *Snapshot { return l.cur.Load() }

// Replace installs s and returns the previous snapshot.
func (l *Library) Replace(s *Snapshot) *Snapshot {
	if s == nil {
		s = NewSnapshot(nil)
	}
	return l.cur.Swap(s)
}
