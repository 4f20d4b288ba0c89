// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// EventKind classifies a filesystem change.
type EventKind string

const (
	EventCreated  EventKind = "created"
	EventModified EventKind = "modified"
	EventDeleted  EventKind = "deleted"
)

// TargetKind says whether a WatchTarget names a directory or a single file.
type TargetKind string

const (
	TargetDir  TargetKind = "dir"
	TargetFile TargetKind = "file"
)

// WatchTarget describes one watched directory or file. Targets are built when
// the monitor starts and are not modified afterwards.
type WatchTarget struct {
	// Name identifies the target in events and logs (e.g. "downloads", "project").
	Name string `json:"name" yaml:"name"`

	// Path is the directory or file being watched.
	Path string `json:"path" yaml:"path"`

	// Kind selects directory or single-file semantics.
	Kind TargetKind `json:"kind" yaml:"kind"`

	// Recursive also watches subdirectories of a directory target.
	Recursive bool `json:"recursive" yaml:"recursive"`

	// Events lists the subscribed kinds. Empty means all kinds.
	Events []EventKind `json:"events,omitempty" yaml:"events,omitempty"`

	// Debounce is the quiet window before a change on a path is settled.
	Debounce time.Duration `json:"debounce" yaml:"debounce"`
}

// Subscribes reports whether the target wants events of the given kind.
func (t WatchTarget) Subscribes(kind EventKind) bool {
	if len(t.Events) == 0 {
		return true
	}
	for _, k := range t.Events {
		if k == kind {
			return true
		}
	}
	return false
}

// RawEvent is a single filesystem notification before debouncing.
type RawEvent struct {
	Path   string    `json:"path"`
	Kind   EventKind `json:"kind"`
	Time   time.Time `json:"time"`
	Target string    `json:"target"`
}

// SettledEvent represents one logical change on a path after its debounce
// window elapsed with no further raw activity.
type SettledEvent struct {
	Path string    `json:"path"`
	Kind EventKind `json:"kind"`

	// LastSeen is the timestamp of the last raw event folded into this one.
	LastSeen time.Time `json:"last_seen"`

	// SettledAt is when the debounce window closed.
	SettledAt time.Time `json:"settled_at"`

	Target string `json:"target"`
}
