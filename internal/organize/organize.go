// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package organize places matched documents in the canonical storage
// directory under a name derived from the reference identifier.
//
// Only actionable matches (exact or fuzzy with a bound reference) are
// organized. An existing destination is never replaced: the outcome is a
// conflict and the source stays where it is. Paths already in the ledger
// are skipped, and every organized destination and moved source is
// registered so the events the file operation causes are ignored.
package organize

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/paperwatch/internal/ledger"
	"github.com/pdiddy/paperwatch/internal/logging"
	"github.com/pdiddy/paperwatch/pkg/types"
)

// ErrDestinationConflict means a file already exists at the destination.
var ErrDestinationConflict = errors.New("destination already exists")

// ErrNotActionable means the match binds no reference or its tier does not
// allow organizing.
var ErrNotActionable = errors.New("match not actionable")

// Coordinator is safe for concurrent use.
type Coordinator struct {
	cfg    types.OrganizeConfig
	ledger *ledger.Ledger
	log    *zap.Logger

	mu    sync.Mutex
	locks map[string]*destLock
}

type destLock struct {
	mu   sync.Mutex
	refs int
}

// New creates a Coordinator and the storage directory if it is missing.
func New(cfg types.OrganizeConfig, l *ledger.Ledger, log *zap.Logger) (*Coordinator, error) {
	if cfg.StorageDir == "" {
		return nil, errors.New("storage directory is required")
	}
	if cfg.Mode == "" {
		cfg.Mode = types.ModeMove
	}
	abs, err := filepath.Abs(cfg.StorageDir)
	if err != nil {
		return nil, errors.Wrap(err, "resolving storage directory")
	}
	cfg.StorageDir = abs
	if err := os.MkdirAll(cfg.StorageDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating storage directory")
	}
	if l == nil {
		l = ledger.New(types.LedgerConfig{})
	}
	return &Coordinator{
		cfg:    cfg,
		ledger: l,
		log:    logging.Component(log, "organize"),
		locks:  make(map[string]*destLock),
	}, nil
}

// StorageDir returns the canonical storage directory.
func (c *Coordinator) StorageDir() string { return c.cfg.StorageDir }

// Destination returns where src would be placed for ref.
func (c *Coordinator) Destination(ref types.LiteratureReference, src string) string {
	return filepath.Join(c.cfg.StorageDir, c.cfg.IDPrefix+Slug(ref.ID)+filepath.Ext(src))
}

// Organize moves or copies the matched file. An empty mode uses the
// configured one.
func (c *Coordinator) Organize(ctx context.Context, res types.MatchResult, mode types.OrganizeMode) types.OrganizationOutcome {
	if mode == "" {
		mode = c.cfg.Mode
	}
	out := types.OrganizationOutcome{
		ID:     uuid.NewString(),
		Match:  res,
		Mode:   mode,
		Source: res.Candidate.Path,
	}
	finish := func(status types.OutcomeStatus, err error) types.OrganizationOutcome {
		out.Status = status
		if err != nil {
			out.Error = err.Error()
		}
		out.Time = time.Now().UTC()
		c.log.Info("organize outcome",
			zap.String(logging.FieldPath, out.Source),
			zap.String(logging.FieldDest, out.Destination),
			zap.String(logging.FieldStatus, string(status)),
			zap.String(logging.FieldTier, string(res.Tier)),
			zap.Error(err))
		return out
	}

	if res.Reference == nil || !res.Tier.Actionable() {
		return finish(types.StatusNotActionable, errors.Wrapf(ErrNotActionable, "tier %s", res.Tier))
	}
	if mode != types.ModeMove && mode != types.ModeCopy {
		return finish(types.StatusFailed, errors.Newf("unsupported file operation %q", mode))
	}

	src := filepath.Clean(res.Candidate.Path)
	dst := c.Destination(*res.Reference, src)
	out.Destination = dst

	// Only a re-trigger of a path we wrote is a no-op. A different source
	// landing on an existing destination is a conflict.
	if src == dst || c.ledger.Seen(src) {
		return finish(types.StatusSkipped, nil)
	}

	unlock := c.lock(dst)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return finish(types.StatusFailed, err)
	}
	// Another worker may have filed this same source while we waited.
	if c.ledger.Seen(src) {
		return finish(types.StatusSkipped, nil)
	}
	if _, err := os.Lstat(dst); err == nil {
		return finish(types.StatusConflict, errors.Wrapf(ErrDestinationConflict, "%s", dst))
	}
	if _, err := os.Stat(src); err != nil {
		return finish(types.StatusFailed, errors.Wrap(err, "source unavailable"))
	}

	if err := place(src, dst, mode == types.ModeMove); err != nil {
		if errors.Is(err, ErrDestinationConflict) {
			return finish(types.StatusConflict, err)
		}
		if _, statErr := os.Lstat(dst); statErr == nil {
			c.ledger.Register(dst)
		}
		return finish(types.StatusFailed, err)
	}

	c.ledger.Register(dst, src)
	return finish(types.StatusOrganized, nil)
}

// lock serializes organizers per destination path.
func (c *Coordinator) lock(dst string) func() {
	c.mu.Lock()
	l, ok := c.locks[dst]
	if !ok {
		l = &destLock{}
		c.locks[dst] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(c.locks, dst)
		}
		c.mu.Unlock()
	}
}

// Err maps an outcome back to its error, or nil for organized and skipped
// outcomes.
func Err(o types.OrganizationOutcome) error {
	switch o.Status {
	case types.StatusConflict:
		return errors.Wrapf(ErrDestinationConflict, "%s", o.Destination)
	case types.StatusNotActionable:
		return errors.Wrapf(ErrNotActionable, "tier %s", o.Match.Tier)
	case types.StatusFailed:
		if o.Error == "" {
			return errors.New("organize failed")
		}
		return errors.Newf("organize failed: %s", o.Error)
	default:
		return nil
	}
}
