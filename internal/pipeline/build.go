// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/pdiddy/paperwatch/internal/extract"
	"github.com/pdiddy/paperwatch/internal/ledger"
	"github.com/pdiddy/paperwatch/internal/match"
	"github.com/pdiddy/paperwatch/internal/metrics"
	"github.com/pdiddy/paperwatch/internal/organize"
	"github.com/pdiddy/paperwatch/pkg/types"
)

// Build creates a Monitor with the standard stages. journal and collector
// may be nil.
func Build(cfg types.PipelineConfig, log *zap.Logger, journal Journal, collector *metrics.Collector) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	led := ledger.New(cfg.Ledger)

	ex, err := extract.New(cfg.Extraction, log)
	if err != nil {
		return nil, err
	}
	coord, err := organize.New(cfg.Organize, led, log)
	if err != nil {
		return nil, err
	}

	deps := Deps{
		Extractor: ex,
		Matcher:   match.New(cfg.Match, match.WithLogger(log)),
		Library:   match.NewLibrary(),
		Organizer: coord,
		Ledger:    led,
		Journal:   journal,
		Metrics:   collector,
		Log:       log,
	}
	return New(cfg, deps)
}
